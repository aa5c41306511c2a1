package observer

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/schollz/progressbar/v3"
)

// BarObserver draws one terminal progress bar per phase.
type BarObserver struct {
	mu     sync.Mutex
	writer io.Writer
	bar    *progressbar.ProgressBar
}

func NewBarObserver(w io.Writer) *BarObserver {
	return &BarObserver{writer: w}
}

func (o *BarObserver) newBar(total int, phase Phase) *progressbar.ProgressBar {
	w := o.writer
	return progressbar.NewOptions(total,
		progressbar.OptionSetWriter(w),
		progressbar.OptionShowCount(),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionSetWidth(40),
		progressbar.OptionSetDescription(fmt.Sprintf("%-12s", phase)),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "█",
			SaucerHead:    "█",
			SaucerPadding: "░",
			BarStart:      "│",
			BarEnd:        "│",
		}),
		progressbar.OptionOnCompletion(func() {
			fmt.Fprintln(w)
		}),
		progressbar.OptionSetRenderBlankState(true),
	)
}

func (o *BarObserver) OnEvent(ctx context.Context, event ProgressEvent) {
	o.mu.Lock()
	defer o.mu.Unlock()

	switch event.EventType {
	case PhaseStarted:
		o.bar = o.newBar(event.Total, event.Phase)
	case ItemProcessed:
		if o.bar != nil {
			_ = o.bar.Set(event.Done)
		}
	case PhaseCompleted:
		if o.bar != nil {
			_ = o.bar.Finish()
			o.bar = nil
		}
	case BatchFailed:
		if o.bar != nil {
			_ = o.bar.Exit()
			o.bar = nil
		}
	}
}

func (o *BarObserver) GetObserverName() string {
	return "progress_bar_observer"
}
