package main

import (
	"context"
	"testing"

	"UnityGaze/capture"

	"github.com/stretchr/testify/assert"
	"gocv.io/x/gocv"
)

type deadCamera struct{ err error }

func (d deadCamera) Start() error           { return nil }
func (d deadCamera) Read() (gocv.Mat, bool) { return gocv.Mat{}, false }
func (d deadCamera) Err() error             { return d.err }
func (d deadCamera) Stop() error            { return nil }

func TestStep_CameraFailureStopsLoop(t *testing.T) {
	p := &pipeline{camera: deadCamera{err: capture.ErrCameraUnavailable}}
	more, err := p.step(context.Background())
	assert.False(t, more)
	assert.ErrorIs(t, err, capture.ErrCameraUnavailable)
}

func TestStep_WaitsForFirstFrame(t *testing.T) {
	p := &pipeline{camera: deadCamera{}}
	more, err := p.step(context.Background())
	assert.True(t, more)
	assert.NoError(t, err)
}
