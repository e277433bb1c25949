package progress

import (
	"os"

	"github.com/schollz/progressbar/v3"
)

// Bar is a terminal progress bar advanced once per processed item. A
// nil *Bar is a no-op so callers never check whether progress output
// is enabled.
type Bar struct {
	bar *progressbar.ProgressBar
}

// New returns a bar for n items, described by description.
func New(description string, n int) *Bar {
	return &Bar{bar: progressbar.NewOptions(n,
		progressbar.OptionSetDescription(description),
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionShowCount(),
		progressbar.OptionClearOnFinish(),
	)}
}

func (b *Bar) Add(n int) {
	if b == nil {
		return
	}
	_ = b.bar.Add(n)
}

func (b *Bar) Finish() {
	if b == nil {
		return
	}
	_ = b.bar.Finish()
}
