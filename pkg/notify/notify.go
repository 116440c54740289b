// Package notify holds the optional operator feedback hooks: an acceptance
// signal per verified scan and a viewer for the finished report.
package notify

import (
	"fmt"
	"io"
	"os"
	"os/exec"
	"runtime"
	"sync"

	"github.com/teslashibe/shelfscan/pkg/report"
)

// Notifier is told about every newly verified scan.
type Notifier interface {
	Accepted(rec report.Record)
}

// Viewer hands a finished report to the operator.
type Viewer interface {
	Open(path string) error
}

// Nop ignores every notification.
type Nop struct{}

// Accepted implements Notifier.
func (Nop) Accepted(report.Record) {}

// Open implements Viewer.
func (Nop) Open(string) error { return nil }

// Bell rings the terminal bell on each accepted scan.
type Bell struct {
	mu  sync.Mutex
	out io.Writer
}

// NewBell returns a Bell writing to out, or stdout when out is nil.
func NewBell(out io.Writer) *Bell {
	if out == nil {
		out = os.Stdout
	}
	return &Bell{out: out}
}

// Accepted implements Notifier.
func (b *Bell) Accepted(report.Record) {
	b.mu.Lock()
	defer b.mu.Unlock()
	io.WriteString(b.out, "\a")
}

// SystemViewer opens files with the platform's default application.
type SystemViewer struct {
	// GOOS overrides runtime.GOOS, for tests.
	GOOS string
	// run executes the command; exec.Cmd.Start when nil.
	run func(*exec.Cmd) error
}

// Open implements Viewer. It does not wait for the application to exit.
func (v SystemViewer) Open(path string) error {
	cmd := v.command(path)
	run := v.run
	if run == nil {
		run = (*exec.Cmd).Start
	}
	if err := run(cmd); err != nil {
		return fmt.Errorf("notify: open %s: %w", path, err)
	}
	return nil
}

func (v SystemViewer) command(path string) *exec.Cmd {
	goos := v.GOOS
	if goos == "" {
		goos = runtime.GOOS
	}
	switch goos {
	case "windows":
		return exec.Command("cmd", "/c", "start", "", path)
	case "darwin":
		return exec.Command("open", path)
	default:
		return exec.Command("xdg-open", path)
	}
}
