package eye

import (
	"image"
	"image/color"

	"gocv.io/x/gocv"
)

// trim is the border dropped before measuring the dark ratio; the crop margin
// is mostly mask fill.
const trim = 5

// Binarize turns the dark pixels of region (at or below threshold) white and
// cleans the result with one erode/dilate pass. The caller closes the result.
func Binarize(region gocv.Mat, threshold int) gocv.Mat {
	filtered := gocv.NewMat()
	defer filtered.Close()
	gocv.BilateralFilter(region, &filtered, 10, 15, 15)

	bin := gocv.NewMat()
	defer bin.Close()
	gocv.Threshold(filtered, &bin, float32(threshold), 255, gocv.ThresholdBinaryInv)

	kernel := gocv.GetStructuringElement(gocv.MorphRect, image.Pt(3, 3))
	defer kernel.Close()
	eroded := gocv.NewMat()
	defer eroded.Close()
	gocv.Erode(bin, &eroded, kernel)

	out := gocv.NewMat()
	gocv.Dilate(eroded, &out, kernel)
	return out
}

// DarkRatio is the share of region pixels that binarize to foreground at
// threshold.
func DarkRatio(region gocv.Mat, threshold int) float64 {
	bin := Binarize(region, threshold)
	defer bin.Close()

	area := bin
	if bin.Rows() > 2*trim && bin.Cols() > 2*trim {
		area = bin.Region(image.Rect(trim, trim, bin.Cols()-trim, bin.Rows()-trim))
		defer area.Close()
	}
	total := area.Rows() * area.Cols()
	if total == 0 {
		return 0
	}
	return float64(gocv.CountNonZero(area)) / float64(total)
}

// LocatePupil returns the centroid of the largest dark blob, in region
// coordinates. A closed eye usually leaves nothing after cleanup, which is
// reported as false.
func LocatePupil(region gocv.Mat, threshold int) (image.Point, bool) {
	bin := Binarize(region, threshold)
	defer bin.Close()

	contours := gocv.FindContours(bin, gocv.RetrievalExternal, gocv.ChainApproxNone)
	defer contours.Close()
	if contours.Size() == 0 {
		return image.Point{}, false
	}

	largest, largestArea := 0, -1.0
	for i := 0; i < contours.Size(); i++ {
		if a := gocv.ContourArea(contours.At(i)); a > largestArea {
			largest, largestArea = i, a
		}
	}

	blob := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(0, 0, 0, 0), bin.Rows(), bin.Cols(), gocv.MatTypeCV8U)
	defer blob.Close()
	gocv.DrawContours(&blob, contours, largest, color.RGBA{R: 255, G: 255, B: 255, A: 0}, -1)

	m := gocv.Moments(blob, true)
	if m["m00"] == 0 {
		return image.Point{}, false
	}
	return image.Pt(int(m["m10"]/m["m00"]), int(m["m01"]/m["m00"])), true
}
