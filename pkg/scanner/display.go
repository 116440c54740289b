package scanner

import (
	"gocv.io/x/gocv"
)

// WindowTitle names the operator window.
const WindowTitle = "Project View"

// QuitKey stops the loop when pressed in the window.
const QuitKey = 'q'

// Display shows annotated frames to the operator and reports the quit key.
type Display interface {
	Show(frame gocv.Mat)
	// QuitRequested polls for the quit signal once.
	QuitRequested() bool
	Close() error
}

// Window is a Display backed by a native OpenCV window.
type Window struct {
	win *gocv.Window
}

// NewWindow opens the operator window.
func NewWindow(title string) *Window {
	return &Window{win: gocv.NewWindow(title)}
}

// Show implements Display.
func (w *Window) Show(frame gocv.Mat) {
	w.win.IMShow(frame)
}

// QuitRequested implements Display. It also pumps the window's event queue,
// so it must be called once per shown frame.
func (w *Window) QuitRequested() bool {
	return w.win.WaitKey(1)&0xFF == QuitKey
}

// Close implements Display.
func (w *Window) Close() error {
	if w.win == nil {
		return nil
	}
	err := w.win.Close()
	w.win = nil
	return err
}

// Headless is a Display without a window. Runs stop on end of stream or
// context cancellation.
type Headless struct{}

// Show implements Display.
func (Headless) Show(gocv.Mat) {}

// QuitRequested implements Display.
func (Headless) QuitRequested() bool { return false }

// Close implements Display.
func (Headless) Close() error { return nil }
