// Package calibration learns, per eye, the binarization threshold that turns a
// stable share of the eye region dark.
package calibration

import (
	"math"

	iface "UnityGaze/interface"

	"gonum.org/v1/gonum/stat"
)

const (
	DefaultHistorySize = 10
	DefaultTargetRatio = 0.48

	sweepStart = 5
	sweepStop  = 100
	sweepStep  = 5
)

// Measure reports the dark pixel fraction of an eye region binarized at threshold.
type Measure func(threshold int) float64

type Store struct {
	capacity    int
	targetRatio float64
	history     [2][]int
}

func New(capacity int, targetRatio float64) *Store {
	if capacity <= 0 {
		capacity = DefaultHistorySize
	}
	if targetRatio <= 0 || targetRatio >= 1 {
		targetRatio = DefaultTargetRatio
	}
	return &Store{capacity: capacity, targetRatio: targetRatio}
}

func (s *Store) Capacity() int { return s.capacity }

func (s *Store) TargetRatio() float64 { return s.targetRatio }

// IsComplete is true once both sides hold a full window of samples.
func (s *Store) IsComplete() bool {
	return len(s.history[iface.LeftEye]) >= s.capacity &&
		len(s.history[iface.RightEye]) >= s.capacity
}

// Record appends a threshold to the side's window, dropping the oldest sample
// once the window is full.
func (s *Store) Record(side iface.Side, threshold int) {
	h := append(s.history[side], threshold)
	if len(h) > s.capacity {
		h = h[len(h)-s.capacity:]
	}
	s.history[side] = h
}

// Threshold is the truncated mean of the side's window. The second result is
// false until at least one sample has been recorded.
func (s *Store) Threshold(side iface.Side) (int, bool) {
	h := s.history[side]
	if len(h) == 0 {
		return 0, false
	}
	xs := make([]float64, len(h))
	for i, v := range h {
		xs[i] = float64(v)
	}
	return int(stat.Mean(xs, nil)), true
}

func (s *Store) Samples(side iface.Side) []int {
	return append([]int(nil), s.history[side]...)
}

// Evaluate sweeps the candidate thresholds, records the one whose dark ratio is
// closest to the target and returns it.
func (s *Store) Evaluate(side iface.Side, measure Measure) int {
	best := BestThreshold(measure, s.targetRatio)
	s.Record(side, best)
	return best
}

// BestThreshold returns the candidate whose measured ratio lies closest to
// target. Ties keep the lowest candidate.
func BestThreshold(measure Measure, target float64) int {
	best := sweepStart
	bestDiff := math.Inf(1)
	for t := sweepStart; t < sweepStop; t += sweepStep {
		diff := math.Abs(measure(t) - target)
		if diff < bestDiff {
			best, bestDiff = t, diff
		}
	}
	return best
}
