// Package config loads the run configuration from an HCL file. The
// configuration is read once at run start; the batch list and all tuning
// parameters are immutable for the duration of the run.
package config

import (
	"bufio"
	"fmt"
	"os"
	"regexp"
	"strings"

	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"

	"github.com/Francii-B/Phylign-Fulgor/internal/stage"
)

// Config is the root of the HCL configuration file.
type Config struct {
	Pipeline  Pipeline   `hcl:"pipeline,block"`
	Resources *Resources `hcl:"resources,block"`
	Tools     *Tools     `hcl:"tools,block"`
	Remote    Remote     `hcl:"remote,block"`
}

// Pipeline holds the search parameters.
type Pipeline struct {
	// Batches is the ordered batch identifier list; alternatively
	// BatchesFile names a text file with one identifier per line.
	Batches     []string `hcl:"batches,optional"`
	BatchesFile string   `hcl:"batches_file,optional"`

	// QueriesDir is scanned once at run start for query read files.
	QueriesDir string `hcl:"queries_dir"`
	// Workdir holds all artifacts; it is the run's persisted state.
	Workdir string `hcl:"workdir,optional"`

	CobsThreshold float64 `hcl:"cobs_threshold,optional"`
	KeepMatches   int     `hcl:"keep_matches,optional"`
	MatchThreads  int     `hcl:"match_threads,optional"`
	AlignThreads  int     `hcl:"align_threads,optional"`
	MinimapPreset string  `hcl:"minimap_preset,optional"`

	DownloadRetries int `hcl:"download_retries,optional"`
}

// Resources holds the slot count of each resource class. A class's count
// bounds how many distinct units of that class run concurrently, independent
// of each unit's internal thread count.
type Resources struct {
	Downloads      int `hcl:"downloads,optional"`
	Decompressions int `hcl:"decompressions,optional"`
	Matches        int `hcl:"matches,optional"`
	Alignments     int `hcl:"alignments,optional"`
	CPU            int `hcl:"cpu,optional"`
}

// Tools names the collaborator binaries.
type Tools struct {
	Cobs    string `hcl:"cobs,optional"`
	Minimap string `hcl:"minimap,optional"`
	XZ      string `hcl:"xz,optional"`
}

// Remote holds the base URLs batch artifacts are downloaded from; the batch
// file name is appended to the matching base.
type Remote struct {
	AsmURL   string `hcl:"asm_url"`
	IndexURL string `hcl:"index_url"`
}

// batchNameRe matches the batch identifier convention: a name plus a
// two-digit numeric suffix, e.g. "generaA__01".
var batchNameRe = regexp.MustCompile(`^[A-Za-z0-9.-]+__[0-9]+$`)

// Load parses and validates the configuration file at path, applying
// defaults and resolving the batch list. Any problem here is a fatal
// configuration error: the run must not start.
func Load(path string) (*Config, error) {
	parser := hclparse.NewParser()
	file, diags := parser.ParseHCLFile(path)
	if diags.HasErrors() {
		return nil, fmt.Errorf("parsing %s: %w", path, diags)
	}

	var cfg Config
	if diags := gohcl.DecodeBody(file.Body, nil, &cfg); diags.HasErrors() {
		return nil, fmt.Errorf("decoding %s: %w", path, diags)
	}

	cfg.applyDefaults()
	if err := cfg.resolveBatches(); err != nil {
		return nil, err
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	p := &c.Pipeline
	if p.Workdir == "" {
		p.Workdir = "work"
	}
	if p.CobsThreshold == 0 {
		p.CobsThreshold = 0.33
	}
	if p.MatchThreads == 0 {
		p.MatchThreads = 4
	}
	if p.AlignThreads == 0 {
		p.AlignThreads = 4
	}
	if p.MinimapPreset == "" {
		p.MinimapPreset = "sr"
	}
	if p.DownloadRetries == 0 {
		p.DownloadRetries = 3
	}

	if c.Resources == nil {
		c.Resources = &Resources{}
	}
	r := c.Resources
	if r.Downloads == 0 {
		r.Downloads = 2
	}
	if r.Decompressions == 0 {
		r.Decompressions = 1
	}
	if r.Matches == 0 {
		r.Matches = 2
	}
	if r.Alignments == 0 {
		r.Alignments = 4
	}
	if r.CPU == 0 {
		r.CPU = 4
	}

	if c.Tools == nil {
		c.Tools = &Tools{}
	}
	t := c.Tools
	if t.Cobs == "" {
		t.Cobs = "cobs"
	}
	if t.Minimap == "" {
		t.Minimap = "minimap2"
	}
	if t.XZ == "" {
		t.XZ = "xz"
	}
}

func (c *Config) resolveBatches() error {
	p := &c.Pipeline
	if len(p.Batches) > 0 && p.BatchesFile != "" {
		return fmt.Errorf("both batches and batches_file are set; pick one")
	}
	if p.BatchesFile == "" {
		return nil
	}

	f, err := os.Open(p.BatchesFile)
	if err != nil {
		return fmt.Errorf("opening batches file: %w", err)
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		p.Batches = append(p.Batches, line)
	}
	if err := sc.Err(); err != nil {
		return fmt.Errorf("reading batches file: %w", err)
	}
	return nil
}

func (c *Config) validate() error {
	seen := make(map[string]bool, len(c.Pipeline.Batches))
	for _, b := range c.Pipeline.Batches {
		if !batchNameRe.MatchString(b) {
			return fmt.Errorf("invalid batch identifier %q", b)
		}
		if seen[b] {
			return fmt.Errorf("duplicate batch identifier %q", b)
		}
		seen[b] = true
	}
	if c.Pipeline.QueriesDir == "" {
		return fmt.Errorf("queries_dir must be set")
	}
	if c.Pipeline.KeepMatches < 0 {
		return fmt.Errorf("keep_matches must be >= 0")
	}
	if c.Pipeline.CobsThreshold <= 0 || c.Pipeline.CobsThreshold > 1 {
		return fmt.Errorf("cobs_threshold must be in (0, 1]")
	}
	return nil
}

// Slots returns the per-class slot counts keyed by resource class name.
func (c *Config) Slots() map[string]int {
	return map[string]int{
		stage.ClassDownload:   c.Resources.Downloads,
		stage.ClassDecompress: c.Resources.Decompressions,
		stage.ClassMatch:      c.Resources.Matches,
		stage.ClassAlign:      c.Resources.Alignments,
		stage.ClassCPU:        c.Resources.CPU,
	}
}
