package engine

import (
	"fmt"
	"image"
	"os"

	iface "UnityGaze/interface"

	pigo "github.com/esimov/pigo/core"
	"gocv.io/x/gocv"
)

type BackendConfig struct {
	UseBackend        string `yaml:"useBackend" validate:"oneof=cascade pigo"`
	CascadePath       string `yaml:"cascadePath"`
	PigoCascadePath   string `yaml:"pigoCascadePath"`
	LandmarkModelPath string `yaml:"landmarkModelPath" validate:"required"`
	LandmarkInputSize int    `yaml:"landmarkInputSize" validate:"gte=0"`
}

// NewFaceDetector picks the face detector named by cfg.UseBackend.
func NewFaceDetector(cfg BackendConfig) (iface.FaceDetector, error) {
	switch cfg.UseBackend {
	case "cascade", "":
		d, err := NewCascadeDetector(cfg.CascadePath)
		if err != nil {
			return nil, err
		}
		return d, nil
	case "pigo":
		d, err := NewPigoDetector(cfg.PigoCascadePath)
		if err != nil {
			return nil, err
		}
		return d, nil
	default:
		return nil, fmt.Errorf("unsupported backend: %s", cfg.UseBackend)
	}
}

// CascadeDetector finds faces with an OpenCV Haar cascade.
type CascadeDetector struct {
	classifier gocv.CascadeClassifier
}

var cascadeFallbacks = []string{
	"haarcascade_frontalface_default.xml",
	"/usr/local/share/opencv4/haarcascades/haarcascade_frontalface_default.xml",
	"/usr/share/opencv4/haarcascades/haarcascade_frontalface_default.xml",
	"/opt/homebrew/share/opencv4/haarcascades/haarcascade_frontalface_default.xml",
}

func NewCascadeDetector(path string) (*CascadeDetector, error) {
	classifier := gocv.NewCascadeClassifier()
	candidates := cascadeFallbacks
	if path != "" {
		candidates = append([]string{path}, cascadeFallbacks...)
	}
	for _, p := range candidates {
		if classifier.Load(p) {
			return &CascadeDetector{classifier: classifier}, nil
		}
	}
	_ = classifier.Close()
	return nil, fmt.Errorf("failed to load face cascade from %q or fallback paths", path)
}

func (c *CascadeDetector) Detect(gray gocv.Mat) []image.Rectangle {
	return c.classifier.DetectMultiScale(gray)
}

func (c *CascadeDetector) Close() error {
	return c.classifier.Close()
}

// PigoDetector finds faces with the pure Go pigo cascade.
type PigoDetector struct {
	classifier *pigo.Pigo
	MinSize    int
	MaxSize    int
	MinQuality float32
}

func NewPigoDetector(path string) (*PigoDetector, error) {
	cascade, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading the facefinder cascade file: %w", err)
	}
	classifier, err := pigo.NewPigo().Unpack(cascade)
	if err != nil {
		return nil, fmt.Errorf("error unpacking the facefinder cascade file: %w", err)
	}
	return &PigoDetector{classifier: classifier, MinSize: 60, MaxSize: 1000, MinQuality: 5}, nil
}

func (p *PigoDetector) Detect(gray gocv.Mat) []image.Rectangle {
	if gray.Empty() || gray.Channels() != 1 {
		return nil
	}
	cols, rows := gray.Cols(), gray.Rows()
	params := pigo.CascadeParams{
		MinSize:     p.MinSize,
		MaxSize:     p.MaxSize,
		ShiftFactor: 0.1,
		ScaleFactor: 1.1,
		ImageParams: pigo.ImageParams{
			Pixels: gray.ToBytes(),
			Rows:   rows,
			Cols:   cols,
			Dim:    cols,
		},
	}
	dets := p.classifier.RunCascade(params, 0.0)
	dets = p.classifier.ClusterDetections(dets, 0.2)

	var faces []image.Rectangle
	for _, d := range dets {
		if d.Q < p.MinQuality {
			continue
		}
		half := d.Scale / 2
		faces = append(faces, image.Rect(d.Col-half, d.Row-half, d.Col+half, d.Row+half))
	}
	return faces
}

func (p *PigoDetector) Close() error { return nil }
