// Package status exposes the latest gaze sample over HTTP and streams every
// published sample to websocket clients.
package status

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"UnityGaze/engine"
	"UnityGaze/logger"
	"UnityGaze/transport"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const writeTimeout = time.Second

// Sample is one published pipeline result.
type Sample struct {
	Seq      uint64             `json:"seq"`
	Time     time.Time          `json:"time"`
	Snapshot engine.Snapshot    `json:"snapshot"`
	Message  *transport.Message `json:"message,omitempty"`
}

// Calibration reports learning progress for both eyes.
type Calibration struct {
	Complete bool  `json:"complete"`
	Capacity int   `json:"capacity"`
	Left     []int `json:"left"`
	Right    []int `json:"right"`
}

type client struct {
	id        string
	conn      *websocket.Conn
	send      chan Sample
	closeOnce sync.Once
}

func (c *client) close() {
	c.closeOnce.Do(func() {
		close(c.send)
	})
}

// Hub holds the latest sample and fans it out to subscribers.
type Hub struct {
	mu          sync.RWMutex
	latest      *Sample
	calibration Calibration
	seq         uint64
	clientMu    sync.RWMutex
	clients     map[string]*client
}

func NewHub() *Hub {
	return &Hub{clients: map[string]*client{}}
}

// Publish replaces the latest sample. Slow subscribers miss samples rather
// than stall the caller.
func (h *Hub) Publish(snap engine.Snapshot, msg *transport.Message, cal Calibration) Sample {
	h.mu.Lock()
	h.seq++
	s := Sample{Seq: h.seq, Time: time.Now(), Snapshot: snap, Message: msg}
	h.latest = &s
	h.calibration = cal
	h.mu.Unlock()

	h.clientMu.RLock()
	defer h.clientMu.RUnlock()
	for _, c := range h.clients {
		select {
		case c.send <- s:
		default:
		}
	}
	return s
}

func (h *Hub) Latest() (Sample, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.latest == nil {
		return Sample{}, false
	}
	return *h.latest, true
}

func (h *Hub) Calibration() Calibration {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.calibration
}

func (h *Hub) Clients() int {
	h.clientMu.RLock()
	defer h.clientMu.RUnlock()
	return len(h.clients)
}

func (h *Hub) subscribe(conn *websocket.Conn) *client {
	c := &client{id: uuid.NewString(), conn: conn, send: make(chan Sample, 8)}
	h.clientMu.Lock()
	h.clients[c.id] = c
	h.clientMu.Unlock()
	return c
}

func (h *Hub) unsubscribe(c *client) {
	h.clientMu.Lock()
	delete(h.clients, c.id)
	h.clientMu.Unlock()
	c.close()
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

func NewRouter(h *Hub) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())
	r.GET("/api/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "pong"})
	})
	r.GET("/api/gaze", func(c *gin.Context) {
		s, ok := h.Latest()
		if !ok {
			c.JSON(http.StatusNotFound, gin.H{"error": "no sample yet"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"data": s})
	})
	r.GET("/api/calibration", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"data": h.Calibration()})
	})
	r.GET("/ws/gaze", func(c *gin.Context) {
		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			// 升级失败，不要再写 JSON
			return
		}
		serve(h, conn)
	})
	return r
}

// serve pumps samples to one websocket client until it goes away.
func serve(h *Hub, conn *websocket.Conn) {
	cl := h.subscribe(conn)
	defer func() {
		h.unsubscribe(cl)
		_ = conn.Close()
	}()

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-done:
			logger.Log().Debug("status client disconnected", zap.String("client", cl.id))
			return
		case s, ok := <-cl.send:
			if !ok {
				return
			}
			_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := conn.WriteJSON(s); err != nil {
				logger.Log().Debug("status client write failed", zap.String("client", cl.id), zap.Error(err))
				return
			}
		}
	}
}

// Start serves the router on port until ctx ends.
func Start(ctx context.Context, port int, h *Hub) error {
	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: NewRouter(h),
	}
	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()
	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
