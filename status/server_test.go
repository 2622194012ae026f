package status

import (
	"encoding/json"
	"image"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"UnityGaze/engine"
	"UnityGaze/transport"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func located() engine.Snapshot {
	h := 0.5
	left, right := image.Pt(10, 12), image.Pt(30, 12)
	return engine.Snapshot{
		FaceFound:       true,
		PupilsLocated:   true,
		LeftPupil:       &left,
		RightPupil:      &right,
		HorizontalRatio: &h,
		Direction:       engine.DirectionCenter.String(),
	}
}

func TestRouter(t *testing.T) {
	hub := NewHub()
	srv := httptest.NewServer(NewRouter(hub))
	defer srv.Close()

	t.Run("ping", func(t *testing.T) {
		resp, err := http.Get(srv.URL + "/api/ping")
		require.NoError(t, err)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusOK, resp.StatusCode)
	})

	t.Run("no sample yet", func(t *testing.T) {
		resp, err := http.Get(srv.URL + "/api/gaze")
		require.NoError(t, err)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	})

	hub.Publish(engine.Snapshot{}, nil, Calibration{})
	hub.Publish(located(), &transport.Message{X: 960, Y: 540}, Calibration{Capacity: 10, Left: []int{40}, Right: []int{45}})

	t.Run("latest sample", func(t *testing.T) {
		resp, err := http.Get(srv.URL + "/api/gaze")
		require.NoError(t, err)
		defer resp.Body.Close()
		require.Equal(t, http.StatusOK, resp.StatusCode)

		var body struct {
			Data Sample `json:"data"`
		}
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
		assert.Equal(t, uint64(2), body.Data.Seq)
		assert.True(t, body.Data.Snapshot.PupilsLocated)
		assert.Equal(t, "center", body.Data.Snapshot.Direction)
		require.NotNil(t, body.Data.Message)
		assert.Equal(t, 960, body.Data.Message.X)
	})

	t.Run("calibration", func(t *testing.T) {
		resp, err := http.Get(srv.URL + "/api/calibration")
		require.NoError(t, err)
		defer resp.Body.Close()
		var body struct {
			Data Calibration `json:"data"`
		}
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
		assert.Equal(t, 10, body.Data.Capacity)
		assert.Equal(t, []int{45}, body.Data.Right)
	})
}

func TestWebsocketStream(t *testing.T) {
	hub := NewHub()
	srv := httptest.NewServer(NewRouter(hub))
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/gaze"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool { return hub.Clients() == 1 }, 2*time.Second, 10*time.Millisecond)

	hub.Publish(located(), &transport.Message{X: 1, Y: 2, Blink: true}, Calibration{})

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var got Sample
	require.NoError(t, conn.ReadJSON(&got))
	assert.Equal(t, uint64(1), got.Seq)
	require.NotNil(t, got.Message)
	assert.True(t, got.Message.Blink)

	conn.Close()
	assert.Eventually(t, func() bool { return hub.Clients() == 0 }, 2*time.Second, 10*time.Millisecond)
}
