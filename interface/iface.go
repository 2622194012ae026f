package iface

import (
	"image"

	"gocv.io/x/gocv"
)

type Side int

const (
	LeftEye  Side = 0
	RightEye Side = 1
)

func (s Side) String() string {
	if s == RightEye {
		return "right"
	}
	return "left"
}

// NumLandmarks is the size of the dlib style 68 point face shape.
const NumLandmarks = 68

var (
	LeftEyePoints  = [6]int{36, 37, 38, 39, 40, 41}
	RightEyePoints = [6]int{42, 43, 44, 45, 46, 47}
)

type Landmarks [NumLandmarks]image.Point

// EyeContour returns the six contour points of one eye, in predictor order.
func (l *Landmarks) EyeContour(side Side) [6]image.Point {
	idx := LeftEyePoints
	if side == RightEye {
		idx = RightEyePoints
	}
	var pts [6]image.Point
	for i, n := range idx {
		pts[i] = l[n]
	}
	return pts
}

// EyeBox is the coarse eye bound taken straight from four landmarks.
type EyeBox struct {
	X1, X2 int
	Y1, Y2 int
}

// EyeBox builds the coarse box: eye corners for x, upper and lower lid for y.
func (l *Landmarks) EyeBox(side Side) EyeBox {
	if side == RightEye {
		return EyeBox{X1: l[42].X, X2: l[45].X, Y1: l[44].Y, Y2: l[47].Y}
	}
	return EyeBox{X1: l[36].X, X2: l[39].X, Y1: l[37].Y, Y2: l[40].Y}
}

type FaceDetector interface {
	Detect(gray gocv.Mat) []image.Rectangle
	Close() error
}

type LandmarkPredictor interface {
	Predict(gray gocv.Mat, face image.Rectangle) (Landmarks, error)
	Close() error
}

// FrameSource hands out the newest frame. Err is non-nil once the source has
// failed for good; Read then reports false.
type FrameSource interface {
	Start() error
	Read() (gocv.Mat, bool)
	Err() error
	Stop() error
}
