package engine

import (
	"errors"
	"fmt"
	"image"

	iface "UnityGaze/interface"

	"gocv.io/x/gocv"
)

const DefaultLandmarkInputSize = 112

var ErrBadLandmarkOutput = errors.New("landmark model output is too small")

// DNNLandmarker predicts the 68 point face shape with an ONNX model that maps
// a square face crop to 136 coordinates normalised to the crop.
type DNNLandmarker struct {
	net       gocv.Net
	inputSize int
}

func NewDNNLandmarker(modelPath string, inputSize int) (*DNNLandmarker, error) {
	if modelPath == "" {
		return nil, fmt.Errorf("landmark model path cannot be empty")
	}
	net := gocv.ReadNetFromONNX(modelPath)
	if net.Empty() {
		return nil, fmt.Errorf("failed to load landmark model %s", modelPath)
	}
	net.SetPreferableBackend(gocv.NetBackendDefault)
	net.SetPreferableTarget(gocv.NetTargetCPU)
	if inputSize <= 0 {
		inputSize = DefaultLandmarkInputSize
	}
	return &DNNLandmarker{net: net, inputSize: inputSize}, nil
}

func (l *DNNLandmarker) Predict(gray gocv.Mat, face image.Rectangle) (iface.Landmarks, error) {
	var lm iface.Landmarks
	face = face.Intersect(image.Rect(0, 0, gray.Cols(), gray.Rows()))
	if face.Empty() {
		return lm, ErrNoFace
	}

	crop := gray.Region(face)
	defer crop.Close()
	bgr := gocv.NewMat()
	defer bgr.Close()
	gocv.CvtColor(crop, &bgr, gocv.ColorGrayToBGR)

	blob := gocv.BlobFromImage(bgr, 1.0/255.0, image.Pt(l.inputSize, l.inputSize), gocv.NewScalar(0, 0, 0, 0), false, false)
	defer blob.Close()
	l.net.SetInput(blob, "")
	output := l.net.Forward("")
	defer output.Close()

	values, err := output.DataPtrFloat32()
	if err != nil {
		return lm, fmt.Errorf("read landmark output: %w", err)
	}
	return decodeLandmarks(values, face)
}

func (l *DNNLandmarker) Close() error {
	return l.net.Close()
}

// decodeLandmarks maps crop-normalised (x, y) pairs back onto the frame.
func decodeLandmarks(values []float32, face image.Rectangle) (iface.Landmarks, error) {
	var lm iface.Landmarks
	if len(values) < 2*iface.NumLandmarks {
		return lm, ErrBadLandmarkOutput
	}
	w, h := float32(face.Dx()), float32(face.Dy())
	for i := range lm {
		lm[i] = image.Pt(
			face.Min.X+int(values[2*i]*w),
			face.Min.Y+int(values[2*i+1]*h),
		)
	}
	return lm, nil
}
