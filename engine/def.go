package engine

import (
	"errors"
	"fmt"

	iface "UnityGaze/interface"

	"gocv.io/x/gocv"
)

const UNREGISTERED = 0x0001
const REGISTERED = 0x0002
const IDLE = 0x0003

var (
	ErrNoFace    = errors.New("no face detected")
	ErrNotLoaded = errors.New("detector not loaded")
)

// Detector pairs a face detector with a landmark predictor and tracks whether
// both are ready.
type Detector struct {
	Backend   string
	State     int
	faces     iface.FaceDetector
	predictor iface.LandmarkPredictor
}

func (d *Detector) New() bool {
	d.State = REGISTERED
	return true
}

// NewDetector wraps already loaded collaborators.
func NewDetector(backend string, faces iface.FaceDetector, predictor iface.LandmarkPredictor) *Detector {
	d := &Detector{}
	d.New()
	d.Load(backend, faces, predictor)
	return d
}

func (d *Detector) Load(backend string, faces iface.FaceDetector, predictor iface.LandmarkPredictor) {
	d.Backend = backend
	d.faces = faces
	d.predictor = predictor
	d.State = IDLE
}

// LoadModel builds the collaborators described by cfg.
func (d *Detector) LoadModel(cfg BackendConfig) error {
	faces, err := NewFaceDetector(cfg)
	if err != nil {
		return err
	}
	predictor, err := NewDNNLandmarker(cfg.LandmarkModelPath, cfg.LandmarkInputSize)
	if err != nil {
		_ = faces.Close()
		return err
	}
	d.Load(cfg.UseBackend, faces, predictor)
	return nil
}

// Detect finds the first face in gray and predicts its landmarks. It is
// called only from the tracker's loop, one frame at a time.
func (d *Detector) Detect(gray gocv.Mat) (iface.Landmarks, error) {
	if d.State != IDLE {
		return iface.Landmarks{}, ErrNotLoaded
	}

	faces := d.faces.Detect(gray)
	if len(faces) == 0 {
		return iface.Landmarks{}, ErrNoFace
	}
	lm, err := d.predictor.Predict(gray, faces[0])
	if err != nil {
		return iface.Landmarks{}, fmt.Errorf("predict landmarks: %w", err)
	}
	return lm, nil
}

func (d *Detector) Destroy() {
	if d.faces != nil {
		_ = d.faces.Close()
	}
	if d.predictor != nil {
		_ = d.predictor.Close()
	}
	d.faces = nil
	d.predictor = nil
	d.Backend = ""
	d.State = UNREGISTERED
}
