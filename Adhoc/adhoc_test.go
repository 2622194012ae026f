package Adhoc

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func registry(t *testing.T, status int, got chan<- RegisterRequest) (RegServerConfig, func()) {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/register", r.URL.Path)
		var req RegisterRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		select {
		case got <- req:
		default:
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(RegisterResponse{Id: req.Id, Success: status == http.StatusOK})
	}))
	host, port, err := net.SplitHostPort(srv.Listener.Addr().String())
	require.NoError(t, err)
	p, _ := strconv.Atoi(port)
	reg := RegServerConfig{}
	reg.SetAddress(host, p)
	return reg, srv.Close
}

func TestHeartbeat_Send(t *testing.T) {
	got := make(chan RegisterRequest, 1)
	reg, stop := registry(t, http.StatusOK, got)
	defer stop()

	hb := NewHeartbeat(reg, Announcement{IP: "10.0.0.2", StatusPort: 8080, ScreenWidth: 1920, ScreenHeight: 1080, Consumer: "127.0.0.1:5500"})
	ok, err := hb.Send(context.Background())
	require.NoError(t, err)
	assert.True(t, ok)

	req := <-got
	assert.Equal(t, hb.Id, req.Id)
	assert.Equal(t, TrackerClass, req.Class)
	assert.Equal(t, 1920, req.ScreenWidth)
	assert.Equal(t, 8080, req.Port)
	assert.NotZero(t, req.TimeStamp)
}

func TestHeartbeat_ServerError(t *testing.T) {
	reg, stop := registry(t, http.StatusInternalServerError, make(chan RegisterRequest, 1))
	defer stop()

	_, err := NewHeartbeat(reg, Announcement{}).Send(context.Background())
	assert.ErrorContains(t, err, "server returned error")
}

func TestHeartbeat_Run(t *testing.T) {
	got := make(chan RegisterRequest, 4)
	reg, stop := registry(t, http.StatusOK, got)
	defer stop()

	hb := NewHeartbeat(reg, Announcement{})
	hb.Interval = 20 * time.Millisecond
	ctx, cancel := context.WithCancel(context.Background())
	var wg sync.WaitGroup
	wg.Add(1)
	go hb.Run(ctx, &wg)

	first := <-got
	second := <-got
	assert.Equal(t, first.Id, second.Id)

	cancel()
	wg.Wait()
}
