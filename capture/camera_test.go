package capture

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	iface "UnityGaze/interface"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gocv.io/x/gocv"
)

func filled(v float64) gocv.Mat {
	return gocv.NewMatWithSizeFromScalar(gocv.NewScalar(v, 0, 0, 0), 4, 4, gocv.MatTypeCV8U)
}

func TestSlot(t *testing.T) {
	var s Slot
	defer s.Close()

	_, ok := s.Load()
	assert.False(t, ok)

	s.Store(filled(1))
	s.Store(filled(2))
	assert.Equal(t, uint64(2), s.Seq())

	got, ok := s.Load()
	require.True(t, ok)
	defer got.Close()
	assert.Equal(t, uint8(2), got.GetUCharAt(0, 0))

	t.Run("reading twice gives the same frame", func(t *testing.T) {
		again, ok := s.Load()
		require.True(t, ok)
		defer again.Close()
		assert.Equal(t, uint8(2), again.GetUCharAt(0, 0))
	})

	t.Run("loaded copy outlives the next store", func(t *testing.T) {
		s.Store(filled(3))
		assert.Equal(t, uint8(2), got.GetUCharAt(0, 0))
	})
}

func TestSlot_Concurrent(t *testing.T) {
	var s Slot
	defer s.Close()

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 0; i < 200; i++ {
			s.Store(filled(float64(i % 250)))
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < 200; i++ {
			if m, ok := s.Load(); ok {
				_ = m.Close()
			}
		}
	}()
	wg.Wait()
	assert.Equal(t, uint64(200), s.Seq())
}

func TestCamera_StopBeforeStart(t *testing.T) {
	c := NewCamera(0)
	assert.NoError(t, c.Stop())
	_, ok := c.Read()
	assert.False(t, ok)
}

var _ iface.FrameSource = (*Camera)(nil)

// scriptedCapture delivers good frames and then fails, like an unplugged camera.
type scriptedCapture struct {
	good   int32
	reads  atomic.Int32
	closed atomic.Bool
}

func (s *scriptedCapture) Read(m *gocv.Mat) bool {
	if s.reads.Add(1) > s.good {
		return false
	}
	src := filled(7)
	defer src.Close()
	src.CopyTo(m)
	return true
}

func (s *scriptedCapture) Close() error {
	s.closed.Store(true)
	return nil
}

func TestCamera_ReadFailureIsTerminal(t *testing.T) {
	src := &scriptedCapture{good: 3}
	c := NewCamera(2)
	c.startWith(src)

	require.Eventually(t, func() bool { return c.Err() != nil }, 2*time.Second, 5*time.Millisecond)
	assert.ErrorIs(t, c.Err(), ErrCameraUnavailable)
	assert.Equal(t, uint64(3), c.Frames())

	// The last good frame is still buffered but must not be handed out again.
	_, ok := c.Read()
	assert.False(t, ok)

	assert.NoError(t, c.Stop())
	assert.True(t, src.closed.Load())
}

func TestCamera_Running(t *testing.T) {
	src := &scriptedCapture{good: 1 << 30}
	c := NewCamera(0)
	c.startWith(src)
	defer c.Stop()

	require.Eventually(t, func() bool { return c.Frames() > 0 }, 2*time.Second, 5*time.Millisecond)
	assert.NoError(t, c.Err())
	frame, ok := c.Read()
	require.True(t, ok)
	defer frame.Close()
	assert.Equal(t, uint8(7), frame.GetUCharAt(0, 0))
}
