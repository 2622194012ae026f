package screen

import "math"

// Projector turns a gaze Estimate into a screen position. ok is false when
// the estimate cannot be placed on screen.
type Projector interface {
	Project(e Estimate) (x, y int, ok bool)
}

// Reciprocal divides each screen dimension by the matching ratio, which is
// the same as scaling it by the pupil's fractional offset inside the eye box.
// Clamp keeps the result on screen.
type Reciprocal struct {
	Width  int
	Height int
	Clamp  bool
}

func (r Reciprocal) Project(e Estimate) (int, int, bool) {
	fx, okX := reciprocal(r.Width, e.XRatio)
	fy, okY := reciprocal(r.Height, e.YRatio)
	if !okX || !okY {
		return 0, 0, false
	}
	x, y := int(fx), int(fy)
	if r.Clamp {
		x = clamp(x, 0, r.Width-1)
		y = clamp(y, 0, r.Height-1)
	}
	return x, y, true
}

// reciprocal is dim/ratio, rejected unless it converts to int exactly as
// computed.
func reciprocal(dim int, ratio float64) (float64, bool) {
	if !(ratio > 0) || math.IsInf(ratio, 0) {
		return 0, false
	}
	v := float64(dim) / ratio
	if math.IsInf(v, 0) || v > math.MaxInt32 {
		return 0, false
	}
	return v, true
}

func clamp(v, lo, hi int) int {
	return max(lo, min(v, hi))
}
