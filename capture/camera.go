// Package capture reads the camera on its own goroutine and keeps only the
// newest frame.
package capture

import (
	"errors"
	"fmt"
	"sync"

	"UnityGaze/logger"

	"go.uber.org/zap"
	"gocv.io/x/gocv"
)

var ErrCameraUnavailable = errors.New("camera unavailable")

// Slot holds the latest frame. Writers replace it; readers get a copy, so a
// slow reader may see the same frame twice and a slow writer's frames are lost.
type Slot struct {
	mu    sync.Mutex
	frame gocv.Mat
	has   bool
	seq   uint64
}

// Store takes ownership of frame and releases the one it replaces.
func (s *Slot) Store(frame gocv.Mat) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.has {
		_ = s.frame.Close()
	}
	s.frame = frame
	s.has = true
	s.seq++
}

// Load returns a clone of the newest frame, which the caller closes.
func (s *Slot) Load() (gocv.Mat, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.has {
		return gocv.Mat{}, false
	}
	return s.frame.Clone(), true
}

// Seq counts stores so far.
func (s *Slot) Seq() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.seq
}

func (s *Slot) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.has {
		return nil
	}
	s.has = false
	return s.frame.Close()
}

// grabber is the part of gocv.VideoCapture the producer uses.
type grabber interface {
	Read(m *gocv.Mat) bool
	Close() error
}

// Camera is a FrameSource backed by an OpenCV capture device.
type Camera struct {
	device  int
	capture grabber
	slot    Slot
	stop    chan struct{}
	wg      sync.WaitGroup

	errMu sync.RWMutex
	err   error
}

func NewCamera(device int) *Camera {
	return &Camera{device: device}
}

func (c *Camera) Start() error {
	capture, err := gocv.OpenVideoCapture(c.device)
	if err != nil {
		return fmt.Errorf("%w: device %d: %v", ErrCameraUnavailable, c.device, err)
	}
	capture.Set(gocv.VideoCaptureBufferSize, 1)
	c.startWith(capture)
	return nil
}

func (c *Camera) startWith(g grabber) {
	c.capture = g
	c.stop = make(chan struct{})
	c.wg.Add(1)
	go c.run()
}

func (c *Camera) run() {
	defer c.wg.Done()
	for {
		select {
		case <-c.stop:
			return
		default:
		}
		img := gocv.NewMat()
		if ok := c.capture.Read(&img); !ok {
			_ = img.Close()
			c.fail(fmt.Errorf("%w: device %d stopped delivering frames", ErrCameraUnavailable, c.device))
			return
		}
		if img.Empty() {
			_ = img.Close()
			continue
		}
		c.slot.Store(img)
	}
}

func (c *Camera) fail(err error) {
	logger.Log().Error("failed to read frame from camera", zap.Int("device", c.device), zap.Error(err))
	c.errMu.Lock()
	c.err = err
	c.errMu.Unlock()
}

// Err reports why the producer stopped, or nil while it is running.
func (c *Camera) Err() error {
	c.errMu.RLock()
	defer c.errMu.RUnlock()
	return c.err
}

// Read returns the most recent frame. It reports false before the first
// capture and after the camera has failed.
func (c *Camera) Read() (gocv.Mat, bool) {
	if c.Err() != nil {
		return gocv.Mat{}, false
	}
	return c.slot.Load()
}

func (c *Camera) Frames() uint64 { return c.slot.Seq() }

func (c *Camera) Stop() error {
	if c.stop == nil {
		return nil
	}
	close(c.stop)
	c.wg.Wait()
	c.stop = nil
	err := c.capture.Close()
	_ = c.slot.Close()
	return err
}
