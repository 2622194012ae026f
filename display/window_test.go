package display

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"gocv.io/x/gocv"
)

func TestShouldExit(t *testing.T) {
	assert.True(t, ShouldExit(KeyEsc))
	assert.True(t, ShouldExit(0x10001b))
	assert.False(t, ShouldExit(-1))
	assert.False(t, ShouldExit('q'))
}

func TestHeadless(t *testing.T) {
	var v Viewer = Headless{}
	m := gocv.NewMatWithSize(4, 4, gocv.MatTypeCV8UC3)
	defer m.Close()
	assert.Equal(t, -1, v.Show(m))
	assert.NoError(t, v.Close())
}
