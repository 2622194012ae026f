package engine

import (
	"image"
	"image/color"
	"math"

	"UnityGaze/calibration"
	"UnityGaze/eye"
	iface "UnityGaze/interface"
	"UnityGaze/logger"

	"go.uber.org/zap"
	"gocv.io/x/gocv"
)

const (
	// DefaultCenterAdjust is subtracted from the doubled mask centre before
	// normalising the pupil. The mask based centre runs consistently wide;
	// tune per camera if ratios drift off 0.5 when looking straight ahead.
	DefaultCenterAdjust = 10.0

	RightThreshold = 0.35
	LeftThreshold  = 0.65
	BlinkThreshold = 3.8

	crosshair = 5
)

type Direction int

const (
	DirectionUnknown Direction = iota
	DirectionRight
	DirectionCenter
	DirectionLeft
)

func (d Direction) String() string {
	switch d {
	case DirectionRight:
		return "right"
	case DirectionCenter:
		return "center"
	case DirectionLeft:
		return "left"
	}
	return "unknown"
}

// Classify maps a horizontal ratio to a gaze direction.
func Classify(horizontal float64) Direction {
	switch {
	case horizontal <= RightThreshold:
		return DirectionRight
	case horizontal >= LeftThreshold:
		return DirectionLeft
	default:
		return DirectionCenter
	}
}

type Option func(*Tracker)

func WithCenterAdjust(v float64) Option {
	return func(t *Tracker) { t.centerAdjust = v }
}

// WithMirror flips every frame horizontally before analysis.
func WithMirror(on bool) Option {
	return func(t *Tracker) { t.mirror = on }
}

// WithContinuousCalibration keeps feeding the calibration window after it is
// full instead of freezing it.
func WithContinuousCalibration(on bool) Option {
	return func(t *Tracker) { t.continuous = on }
}

// Tracker estimates gaze from one frame at a time. Nothing but the
// calibration store survives between calls to Refresh.
type Tracker struct {
	detector     *Detector
	calibration  *calibration.Store
	centerAdjust float64
	mirror       bool
	continuous   bool

	frame     gocv.Mat
	left      *eye.Eye
	right     *eye.Eye
	boxes     [2]iface.EyeBox
	faceFound bool
	located   bool
}

func NewTracker(detector *Detector, store *calibration.Store, opts ...Option) *Tracker {
	t := &Tracker{
		detector:     detector,
		calibration:  store,
		centerAdjust: DefaultCenterAdjust,
		mirror:       true,
		frame:        gocv.NewMat(),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

func (t *Tracker) Calibration() *calibration.Store { return t.calibration }

// Refresh analyses frame (BGR or gray). Detection failures leave every query
// undetermined until the next call.
func (t *Tracker) Refresh(frame gocv.Mat) {
	t.setEyes(nil, nil)
	t.faceFound = false
	t.boxes = [2]iface.EyeBox{}
	if frame.Empty() {
		_ = t.frame.Close()
		t.frame = gocv.NewMat()
		return
	}
	if t.mirror {
		gocv.Flip(frame, &t.frame, 1)
	} else {
		frame.CopyTo(&t.frame)
	}

	gray := gocv.NewMat()
	defer gray.Close()
	if t.frame.Channels() == 1 {
		t.frame.CopyTo(&gray)
	} else {
		gocv.CvtColor(t.frame, &gray, gocv.ColorBGRToGray)
	}

	lm, err := t.detector.Detect(gray)
	if err != nil {
		logger.Log().Debug("no landmarks this frame", zap.Error(err))
		return
	}
	t.faceFound = true
	t.boxes = [2]iface.EyeBox{lm.EyeBox(iface.LeftEye), lm.EyeBox(iface.RightEye)}

	left, err := eye.New(gray, &lm, iface.LeftEye, t.calibration, t.continuous)
	if err != nil {
		logger.Log().Debug("left eye unavailable", zap.Error(err))
	}
	right, err := eye.New(gray, &lm, iface.RightEye, t.calibration, t.continuous)
	if err != nil {
		logger.Log().Debug("right eye unavailable", zap.Error(err))
	}
	t.setEyes(left, right)
}

func (t *Tracker) setEyes(left, right *eye.Eye) {
	t.left, t.right = left, right
	t.located = left != nil && right != nil && left.Pupil != nil && right.Pupil != nil
}

// PupilsLocated is true only when both eyes were found and both pupils
// resolved this frame.
func (t *Tracker) PupilsLocated() bool { return t.located }

func (t *Tracker) FaceFound() bool { return t.faceFound }

func (t *Tracker) PupilLeftCoords() (image.Point, bool) {
	if !t.located {
		return image.Point{}, false
	}
	return t.left.FramePupil()
}

func (t *Tracker) PupilRightCoords() (image.Point, bool) {
	if !t.located {
		return image.Point{}, false
	}
	return t.right.FramePupil()
}

// HorizontalRatio is 0.0 at the extreme right, 0.5 centred and 1.0 at the
// extreme left, averaged over both eyes.
func (t *Tracker) HorizontalRatio() (float64, bool) {
	if !t.located {
		return 0, false
	}
	l, okL := ratio(t.left.Pupil.X, t.left.Center.X, t.centerAdjust)
	r, okR := ratio(t.right.Pupil.X, t.right.Center.X, t.centerAdjust)
	if !okL || !okR {
		return 0, false
	}
	return (l + r) / 2, true
}

// VerticalRatio is 0.0 at the extreme top, 0.5 centred and 1.0 at the
// extreme bottom, averaged over both eyes.
func (t *Tracker) VerticalRatio() (float64, bool) {
	if !t.located {
		return 0, false
	}
	l, okL := ratio(t.left.Pupil.Y, t.left.Center.Y, t.centerAdjust)
	r, okR := ratio(t.right.Pupil.Y, t.right.Center.Y, t.centerAdjust)
	if !okL || !okR {
		return 0, false
	}
	return (l + r) / 2, true
}

func ratio(pupil int, center, adjust float64) (float64, bool) {
	span := center*2 - adjust
	if span <= 0 {
		return 0, false
	}
	return float64(pupil) / span, true
}

func (t *Tracker) Direction() (Direction, bool) {
	h, ok := t.HorizontalRatio()
	if !ok {
		return DirectionUnknown, false
	}
	return Classify(h), true
}

func (t *Tracker) IsRight() (bool, bool) {
	d, ok := t.Direction()
	return d == DirectionRight, ok
}

func (t *Tracker) IsLeft() (bool, bool) {
	d, ok := t.Direction()
	return d == DirectionLeft, ok
}

func (t *Tracker) IsCenter() (bool, bool) {
	d, ok := t.Direction()
	return d == DirectionCenter, ok
}

func (t *Tracker) BlinkRatio() (float64, bool) {
	if !t.located {
		return 0, false
	}
	return (t.left.Blinking + t.right.Blinking) / 2, true
}

// IsBlinking compares the mean blink ratio against BlinkThreshold; the
// boundary itself counts as open.
func (t *Tracker) IsBlinking() (bool, bool) {
	b, ok := t.BlinkRatio()
	if !ok {
		return false, false
	}
	return b > BlinkThreshold, true
}

// EyeBoxes returns the coarse landmark boxes of the current face, left first.
func (t *Tracker) EyeBoxes() ([2]iface.EyeBox, bool) {
	return t.boxes, t.faceFound
}

func (t *Tracker) FrameSize() (int, int) {
	return t.frame.Cols(), t.frame.Rows()
}

// AnnotatedFrame returns a copy of the analysed frame with the pupils marked.
// The caller closes it.
func (t *Tracker) AnnotatedFrame() gocv.Mat {
	out := t.frame.Clone()
	if !t.located {
		return out
	}
	white := color.RGBA{R: 255, G: 255, B: 255, A: 0}
	for _, e := range []*eye.Eye{t.left, t.right} {
		p, _ := e.FramePupil()
		gocv.Line(&out, image.Pt(p.X-crosshair, p.Y), image.Pt(p.X+crosshair, p.Y), white, 1)
		gocv.Line(&out, image.Pt(p.X, p.Y-crosshair), image.Pt(p.X, p.Y+crosshair), white, 1)
	}
	return out
}

// Snapshot is the outcome of one Refresh. Nil fields are undetermined.
type Snapshot struct {
	FaceFound       bool         `json:"faceFound"`
	PupilsLocated   bool         `json:"pupilsLocated"`
	LeftPupil       *image.Point `json:"leftPupil"`
	RightPupil      *image.Point `json:"rightPupil"`
	HorizontalRatio *float64     `json:"horizontalRatio"`
	VerticalRatio   *float64     `json:"verticalRatio"`
	Direction       string       `json:"direction"`
	BlinkRatio      *float64     `json:"blinkRatio"`
	Blinking        *bool        `json:"blinking"`
}

func (t *Tracker) Snapshot() Snapshot {
	s := Snapshot{
		FaceFound:     t.faceFound,
		PupilsLocated: t.located,
		Direction:     DirectionUnknown.String(),
	}
	if p, ok := t.PupilLeftCoords(); ok {
		s.LeftPupil = &p
	}
	if p, ok := t.PupilRightCoords(); ok {
		s.RightPupil = &p
	}
	if h, ok := t.HorizontalRatio(); ok {
		s.HorizontalRatio = &h
		s.Direction = Classify(h).String()
	}
	if v, ok := t.VerticalRatio(); ok {
		s.VerticalRatio = &v
	}
	if b, ok := t.BlinkRatio(); ok {
		blinking := b > BlinkThreshold
		s.Blinking = &blinking
		if !math.IsInf(b, 0) {
			s.BlinkRatio = &b
		}
	}
	return s
}

func (t *Tracker) Close() error {
	return t.frame.Close()
}
