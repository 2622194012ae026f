// Package screen turns per-eye geometry into one gaze position relative to
// the averaged eye box, and projects it onto a display.
package screen

import (
	"image"

	iface "UnityGaze/interface"

	"gonum.org/v1/gonum/floats"
)

// Inward padding applied to the averaged eye box, trimming eyebrow and cheek.
const (
	padX1 = 5
	padX2 = -5
	padY1 = -2
	padY2 = 2
)

// Box is the averaged eye box in frame coordinates.
type Box struct {
	X1, X2 int
	Y1, Y2 int
}

// Estimate is the gaze signal handed to the projection policy: box width over
// the pupil's distance to the left edge, box height over its distance to the
// top edge.
type Estimate struct {
	XRatio float64 `json:"xRatio"`
	YRatio float64 `json:"yRatio"`
}

// AverageBox merges the two coarse eye boxes and pads the result.
func AverageBox(left, right iface.EyeBox) Box {
	return Box{
		X1: int(float64(left.X1+right.X1)/2 + padX1),
		X2: int(float64(left.X2+right.X2)/2 + padX2),
		Y1: int(float64(left.Y1+right.Y1)/2 + padY1),
		Y2: int(float64(left.Y2+right.Y2)/2 + padY2),
	}
}

func distance(a, b image.Point) int {
	return int(floats.Distance(
		[]float64{float64(a.X), float64(a.Y)},
		[]float64{float64(b.X), float64(b.Y)},
		2,
	))
}

// Size measures the box as corner to corner distances.
func (b Box) Size() (width, height int) {
	topLeft := image.Pt(b.X1, b.Y1)
	return distance(topLeft, image.Pt(b.X2, b.Y1)), distance(topLeft, image.Pt(b.X1, b.Y2))
}

// AveragePupil is the integer midpoint of the two frame-space pupils.
func AveragePupil(left, right image.Point) image.Point {
	return image.Pt(int(float64(left.X+right.X)/2), int(float64(left.Y+right.Y)/2))
}

// Map computes the gaze Estimate. It is undetermined when the padded box
// collapses to nothing or the averaged pupil sits on its left or top edge.
func Map(boxes [2]iface.EyeBox, left, right image.Point) (Estimate, bool) {
	box := AverageBox(boxes[0], boxes[1])
	width, height := box.Size()
	if width == 0 || height == 0 {
		return Estimate{}, false
	}
	pupil := AveragePupil(left, right)

	toLeft := distance(image.Pt(box.X1, pupil.Y), pupil)
	toTop := distance(image.Pt(pupil.X, box.Y1), pupil)
	if toLeft == 0 || toTop == 0 {
		return Estimate{}, false
	}
	return Estimate{
		XRatio: float64(width) / float64(toLeft),
		YRatio: float64(height) / float64(toTop),
	}, true
}

// Source is the part of the gaze tracker the mapper reads.
type Source interface {
	EyeBoxes() ([2]iface.EyeBox, bool)
	PupilLeftCoords() (image.Point, bool)
	PupilRightCoords() (image.Point, bool)
}

// FromTracker maps the tracker's current frame, if both pupils are known.
func FromTracker(src Source) (Estimate, bool) {
	boxes, ok := src.EyeBoxes()
	if !ok {
		return Estimate{}, false
	}
	left, okL := src.PupilLeftCoords()
	right, okR := src.PupilRightCoords()
	if !okL || !okR {
		return Estimate{}, false
	}
	return Map(boxes, left, right)
}
