package app

import (
	"context"
	"fmt"
	"os"
	"path"
	"strings"

	"github.com/Francii-B/Phylign-Fulgor/internal/aggregate"
	"github.com/Francii-B/Phylign-Fulgor/internal/artifact"
	"github.com/Francii-B/Phylign-Fulgor/internal/cobs"
	"github.com/Francii-B/Phylign-Fulgor/internal/executor"
	"github.com/Francii-B/Phylign-Fulgor/internal/fetch"
	"github.com/Francii-B/Phylign-Fulgor/internal/filter"
	"github.com/Francii-B/Phylign-Fulgor/internal/minimap"
	"github.com/Francii-B/Phylign-Fulgor/internal/seqio"
	"github.com/Francii-B/Phylign-Fulgor/internal/stage"
	"github.com/Francii-B/Phylign-Fulgor/internal/tool"
)

// actions binds every stage kind to its collaborator adapter.
func (a *App) actions(store *artifact.Store, downloader *fetch.Downloader) map[stage.Kind]executor.Action {
	engine := cobs.Engine{
		Bin:       a.cfg.Tools.Cobs,
		Threshold: a.cfg.Pipeline.CobsThreshold,
	}
	aligner := minimap.Aligner{
		Bin:    a.cfg.Tools.Minimap,
		Preset: a.cfg.Pipeline.MinimapPreset,
	}
	decompressor := tool.Decompressor{Bin: a.cfg.Tools.XZ}
	keep := a.cfg.Pipeline.KeepMatches

	return map[stage.Kind]executor.Action{
		stage.DownloadAsm: func(ctx context.Context, u *stage.Unit, tmp string) error {
			return downloader.Fetch(ctx, remoteURL(a.cfg.Remote.AsmURL, u.Output), tmp)
		},
		stage.DownloadIndex: func(ctx context.Context, u *stage.Unit, tmp string) error {
			return downloader.Fetch(ctx, remoteURL(a.cfg.Remote.IndexURL, u.Output), tmp)
		},
		stage.Decompress: func(ctx context.Context, u *stage.Unit, tmp string) error {
			return decompressor.Decompress(ctx, store.Abs(u.Inputs[0]), tmp)
		},
		stage.FixQuery: func(ctx context.Context, u *stage.Unit, tmp string) error {
			f, err := os.Create(tmp)
			if err != nil {
				return err
			}
			defer f.Close()
			if _, err := seqio.Normalize(u.Source, f); err != nil {
				return err
			}
			return f.Close()
		},
		stage.Match: func(ctx context.Context, u *stage.Unit, tmp string) error {
			e := engine
			e.Threads = u.Threads
			return e.Query(ctx, store.Abs(u.Inputs[0]), store.Abs(u.Inputs[1]), tmp)
		},
		stage.Filter: func(ctx context.Context, u *stage.Unit, tmp string) error {
			f, err := os.Create(tmp)
			if err != nil {
				return err
			}
			defer f.Close()
			matches := make([]string, 0, len(u.Inputs)-1)
			for _, in := range u.Inputs[1:] {
				matches = append(matches, store.Abs(in))
			}
			if err := filter.Run(ctx, matches, store.Abs(u.Inputs[0]), keep, f); err != nil {
				return err
			}
			return f.Close()
		},
		stage.Align: func(ctx context.Context, u *stage.Unit, tmp string) error {
			al := aligner
			al.Threads = u.Threads
			return al.Align(ctx, store.Abs(u.Inputs[0]), store.Abs(u.Inputs[1]), tmp)
		},
		stage.Aggregate: func(ctx context.Context, u *stage.Unit, tmp string) error {
			f, err := os.Create(tmp)
			if err != nil {
				return err
			}
			defer f.Close()
			sams := make([]string, 0, len(u.Inputs))
			for _, in := range u.Inputs {
				sams = append(sams, store.Abs(in))
			}
			if err := aggregate.Merge(ctx, sams, f); err != nil {
				return err
			}
			return f.Close()
		},
	}
}

// remoteURL joins a base URL with the file name of an artifact path.
func remoteURL(base, artifactPath string) string {
	return fmt.Sprintf("%s/%s", strings.TrimRight(base, "/"), path.Base(artifactPath))
}
