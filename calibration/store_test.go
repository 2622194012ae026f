package calibration

import (
	"testing"

	iface "UnityGaze/interface"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStore_Threshold(t *testing.T) {
	t.Run("empty history is undetermined", func(t *testing.T) {
		s := New(10, 0.48)
		_, ok := s.Threshold(iface.LeftEye)
		assert.False(t, ok)
		assert.False(t, s.IsComplete())
	})

	t.Run("full window is the mean of its samples", func(t *testing.T) {
		s := New(4, 0.48)
		for _, v := range []int{10, 20, 30, 40} {
			s.Record(iface.LeftEye, v)
		}
		th, ok := s.Threshold(iface.LeftEye)
		require.True(t, ok)
		assert.Equal(t, 25, th)
	})

	t.Run("one more sample evicts the oldest", func(t *testing.T) {
		s := New(4, 0.48)
		for _, v := range []int{10, 20, 30, 40, 50} {
			s.Record(iface.LeftEye, v)
		}
		assert.Equal(t, []int{20, 30, 40, 50}, s.Samples(iface.LeftEye))
		th, _ := s.Threshold(iface.LeftEye)
		assert.Equal(t, 35, th)
	})

	t.Run("mean is truncated", func(t *testing.T) {
		s := New(3, 0.48)
		for _, v := range []int{5, 10, 10} {
			s.Record(iface.RightEye, v)
		}
		th, _ := s.Threshold(iface.RightEye)
		assert.Equal(t, 8, th)
	})

	t.Run("sides are independent", func(t *testing.T) {
		s := New(2, 0.48)
		s.Record(iface.LeftEye, 10)
		s.Record(iface.LeftEye, 20)
		assert.False(t, s.IsComplete())
		_, ok := s.Threshold(iface.RightEye)
		assert.False(t, ok)
		s.Record(iface.RightEye, 50)
		s.Record(iface.RightEye, 60)
		assert.True(t, s.IsComplete())
		l, _ := s.Threshold(iface.LeftEye)
		r, _ := s.Threshold(iface.RightEye)
		assert.Equal(t, 15, l)
		assert.Equal(t, 55, r)
	})
}

func TestStore_Evaluate(t *testing.T) {
	// Ratio grows linearly with the threshold: 0.01 per unit.
	linear := func(th int) float64 { return float64(th) / 100 }

	s := New(10, 0.48)
	got := s.Evaluate(iface.LeftEye, linear)
	assert.Equal(t, 50, got)
	assert.Equal(t, []int{50}, s.Samples(iface.LeftEye))

	t.Run("ties keep the lowest candidate", func(t *testing.T) {
		flat := func(int) float64 { return 0.2 }
		assert.Equal(t, 5, BestThreshold(flat, 0.48))
	})

	t.Run("defaults replace invalid settings", func(t *testing.T) {
		d := New(0, 2)
		assert.Equal(t, DefaultHistorySize, d.Capacity())
		assert.Equal(t, DefaultTargetRatio, d.TargetRatio())
	})
}
