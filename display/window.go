package display

import (
	"gocv.io/x/gocv"
)

const KeyEsc = 27

// Viewer shows frames and reports the key pressed while waiting.
type Viewer interface {
	Show(frame gocv.Mat) int
	Close() error
}

type Window struct {
	win *gocv.Window
}

func NewWindow(title string) *Window {
	return &Window{win: gocv.NewWindow(title)}
}

func (w *Window) Show(frame gocv.Mat) int {
	w.win.IMShow(frame)
	return w.win.WaitKey(1)
}

func (w *Window) Close() error {
	return w.win.Close()
}

// Headless discards frames; used when the window is disabled.
type Headless struct{}

func (Headless) Show(gocv.Mat) int { return -1 }
func (Headless) Close() error      { return nil }

// ShouldExit reports whether key asks the loop to stop.
func ShouldExit(key int) bool {
	return key&0xff == KeyEsc
}
