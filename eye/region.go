package eye

import (
	"errors"
	"image"
	"image/color"

	iface "UnityGaze/interface"

	"gocv.io/x/gocv"
)

// Margin keeps the eyelid edges inside the crop.
const Margin = 5

var (
	ErrEmptyRegion = errors.New("eye region is empty")
	ErrNotGray     = errors.New("frame must be single channel")
)

type Center struct {
	X, Y float64
}

// Region is one eye cut out of the grayscale frame. Pixels outside the eye
// contour are white so they never count as dark.
type Region struct {
	Frame  gocv.Mat
	Origin image.Point
	Center Center
}

func (r *Region) Close() error {
	return r.Frame.Close()
}

// ToFrame converts a region-local point to frame coordinates.
func (r *Region) ToFrame(p image.Point) image.Point {
	return r.Origin.Add(p)
}

// ExtractRegion isolates one eye of the face described by landmarks.
func ExtractRegion(gray gocv.Mat, landmarks *iface.Landmarks, side iface.Side) (*Region, error) {
	if gray.Empty() {
		return nil, ErrEmptyRegion
	}
	if gray.Channels() != 1 {
		return nil, ErrNotGray
	}
	contour := landmarks.EyeContour(side)
	bounds := contourBounds(contour[:])
	rect := image.Rect(bounds.Min.X-Margin, bounds.Min.Y-Margin, bounds.Max.X+Margin, bounds.Max.Y+Margin).
		Intersect(image.Rect(0, 0, gray.Cols(), gray.Rows()))
	if rect.Empty() {
		return nil, ErrEmptyRegion
	}

	local := make([]image.Point, len(contour))
	for i, p := range contour {
		local[i] = p.Sub(rect.Min)
	}
	pv := gocv.NewPointsVectorFromPoints([][]image.Point{local})
	defer pv.Close()

	mask := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(0, 0, 0, 0), rect.Dy(), rect.Dx(), gocv.MatTypeCV8U)
	defer mask.Close()
	gocv.FillPoly(&mask, pv, color.RGBA{R: 255, G: 255, B: 255, A: 0})

	roi := gray.Region(rect)
	defer roi.Close()
	out := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(255, 0, 0, 0), rect.Dy(), rect.Dx(), gocv.MatTypeCV8U)
	roi.CopyToWithMask(&out, mask)

	return &Region{
		Frame:  out,
		Origin: rect.Min,
		Center: Center{X: float64(rect.Dx()) / 2, Y: float64(rect.Dy()) / 2},
	}, nil
}

// contourBounds is the min/max box of the points, max inclusive of the
// extreme point coordinate.
func contourBounds(pts []image.Point) image.Rectangle {
	r := image.Rectangle{Min: pts[0], Max: pts[0]}
	for _, p := range pts[1:] {
		r.Min.X = min(r.Min.X, p.X)
		r.Min.Y = min(r.Min.Y, p.Y)
		r.Max.X = max(r.Max.X, p.X)
		r.Max.Y = max(r.Max.Y, p.Y)
	}
	return r
}
