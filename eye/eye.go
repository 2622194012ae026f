// Package eye isolates one eye from a face and locates its pupil.
package eye

import (
	"image"
	"math"

	"UnityGaze/calibration"
	iface "UnityGaze/interface"

	"gocv.io/x/gocv"
)

// Eye is the per-frame result for one side. Pupil is nil when no blob was
// found in the binarized region.
type Eye struct {
	Side      iface.Side
	Origin    image.Point
	Center    Center
	Pupil     *image.Point
	Blinking  float64
	Threshold int
}

// New extracts the eye region, feeds the calibration store while it is still
// learning (or always, when continuous is set) and locates the pupil with the
// side's current threshold.
func New(gray gocv.Mat, landmarks *iface.Landmarks, side iface.Side, store *calibration.Store, continuous bool) (*Eye, error) {
	region, err := ExtractRegion(gray, landmarks, side)
	if err != nil {
		return nil, err
	}
	defer region.Close()

	if continuous || !store.IsComplete() {
		store.Evaluate(side, func(threshold int) float64 {
			return DarkRatio(region.Frame, threshold)
		})
	}
	threshold, _ := store.Threshold(side)

	e := &Eye{
		Side:      side,
		Origin:    region.Origin,
		Center:    region.Center,
		Blinking:  BlinkRatio(landmarks, side),
		Threshold: threshold,
	}
	if p, ok := LocatePupil(region.Frame, threshold); ok {
		e.Pupil = &p
	}
	return e, nil
}

// FramePupil is the pupil in frame coordinates.
func (e *Eye) FramePupil() (image.Point, bool) {
	if e == nil || e.Pupil == nil {
		return image.Point{}, false
	}
	return e.Origin.Add(*e.Pupil), true
}

// BlinkRatio is eye width over eye height measured on the contour. The lids
// are taken at the integer midpoints of the two upper and two lower points.
// A zero height eye is fully closed and yields +Inf.
func BlinkRatio(landmarks *iface.Landmarks, side iface.Side) float64 {
	p := landmarks.EyeContour(side)
	top := midpoint(p[1], p[2])
	bottom := midpoint(p[5], p[4])

	width := math.Hypot(float64(p[0].X-p[3].X), float64(p[0].Y-p[3].Y))
	height := math.Hypot(float64(top.X-bottom.X), float64(top.Y-bottom.Y))
	if height == 0 {
		return math.Inf(1)
	}
	return width / height
}

func midpoint(a, b image.Point) image.Point {
	return image.Pt((a.X+b.X)/2, (a.Y+b.Y)/2)
}
