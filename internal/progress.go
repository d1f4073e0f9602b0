package internal

import (
	"fmt"
	"os"

	"github.com/mattn/go-isatty"
	"github.com/schollz/progressbar/v3"
)

// UIManager handles terminal status output for the CLI.
type UIManager interface {
	NewSpinner(description string) ProgressBar
	Printf(format string, args ...any)
	Println(args ...any)
}

// ProgressBar abstracts an indeterminate status line.
type ProgressBar interface {
	Describe(description string)
	Advance()
	Finish()
}

// StandardUIManager writes status to stderr unless quiet.
type StandardUIManager struct {
	quiet bool
}

// NewUIManager returns a UI that stays silent when quiet is set or stderr
// is not a terminal.
func NewUIManager(quiet bool) UIManager {
	if !isatty.IsTerminal(os.Stderr.Fd()) && !isatty.IsCygwinTerminal(os.Stderr.Fd()) {
		quiet = true
	}
	return &StandardUIManager{quiet: quiet}
}

func (ui *StandardUIManager) NewSpinner(description string) ProgressBar {
	if ui.quiet {
		return &SilentProgressBar{}
	}
	bar := progressbar.NewOptions(-1,
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionSetDescription(description),
		progressbar.OptionSpinnerType(14),
		progressbar.OptionClearOnFinish(),
	)
	_ = bar.RenderBlank()
	return &VisibleProgressBar{bar: bar}
}

func (ui *StandardUIManager) Printf(format string, args ...any) {
	if !ui.quiet {
		fmt.Fprintf(os.Stderr, format, args...)
	}
}

func (ui *StandardUIManager) Println(args ...any) {
	if !ui.quiet {
		fmt.Fprintln(os.Stderr, args...)
	}
}

// VisibleProgressBar wraps the actual progress bar
type VisibleProgressBar struct {
	bar *progressbar.ProgressBar
}

func (v *VisibleProgressBar) Describe(description string) {
	v.bar.Describe(description)
}

func (v *VisibleProgressBar) Advance() {
	_ = v.bar.Add(1)
}

func (v *VisibleProgressBar) Finish() {
	_ = v.bar.Finish()
}

// SilentProgressBar discards all updates.
type SilentProgressBar struct{}

func (SilentProgressBar) Describe(string) {}
func (SilentProgressBar) Advance()        {}
func (SilentProgressBar) Finish()         {}
