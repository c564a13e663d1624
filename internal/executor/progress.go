package executor

import (
	"os"

	"github.com/vbauerster/mpb/v8"
	"github.com/vbauerster/mpb/v8/decor"
)

// progressBar wraps an optional mpb bar over the planned unit count so the
// Run loop can stay free of nil checks.
type progressBar struct {
	pbs *mpb.Progress
	bar *mpb.Bar
}

func newProgress(enabled bool, total int) *progressBar {
	if !enabled || total == 0 {
		return &progressBar{}
	}
	pbs := mpb.New(mpb.WithWidth(40), mpb.WithOutput(os.Stderr))
	bar := pbs.AddBar(int64(total),
		mpb.PrependDecorators(
			decor.Name("units: "),
			decor.CountersNoUnit("%d / %d", decor.WCSyncWidth),
		),
		mpb.AppendDecorators(
			decor.Percentage(decor.WCSyncSpace),
		),
	)
	return &progressBar{pbs: pbs, bar: bar}
}

func (p *progressBar) increment() {
	if p.bar != nil {
		p.bar.Increment()
	}
}

func (p *progressBar) wait() {
	if p.pbs != nil {
		// Force completion so Wait cannot hang if the run ended early.
		if !p.bar.Completed() {
			p.bar.SetTotal(-1, true)
		}
		p.pbs.Wait()
	}
}
