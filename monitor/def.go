package monitor

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/http"
	"os"
	"time"

	"UnityGaze/engine"
	"UnityGaze/logger"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shirou/gopsutil/v4/process"
	"go.uber.org/zap"
)

// Metrics holds the gaze pipeline counters and process gauges.
type Metrics struct {
	Registry       *prometheus.Registry
	FramesTotal    prometheus.Counter
	FacesMissing   prometheus.Counter
	Undetermined   prometheus.Counter
	MessagesSent   prometheus.Counter
	Blinks         prometheus.Counter
	Directions     *prometheus.CounterVec
	HorizontalLast prometheus.Gauge
	memUsage       prometheus.Gauge
	cpuUsage       prometheus.Gauge
	pid            *process.Process
}

func NewMetrics() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		FramesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "gaze_frames_total",
			Help: "Total number of camera frames analysed",
		}),
		FacesMissing: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "gaze_faces_missing_total",
			Help: "Frames in which no face was found",
		}),
		Undetermined: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "gaze_undetermined_total",
			Help: "Frames with a face but no usable gaze estimate",
		}),
		MessagesSent: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "gaze_messages_sent_total",
			Help: "Messages written to the game engine",
		}),
		Blinks: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "gaze_blinks_total",
			Help: "Frames classified as blinking",
		}),
		Directions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gaze_direction_total",
			Help: "Frames per classified gaze direction",
		}, []string{"direction"}),
		HorizontalLast: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "gaze_horizontal_ratio",
			Help: "Last determined horizontal gaze ratio",
		}),
		memUsage: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "memory_usage_Megabytes",
			Help: "Memory usage in Megabytes",
		}),
		cpuUsage: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "cpu_usage_percent",
			Help: "CPU usage in percent",
		}),
		pid: &process.Process{Pid: int32(os.Getpid())},
	}
	m.Registry.MustRegister(m.FramesTotal, m.FacesMissing, m.Undetermined, m.MessagesSent,
		m.Blinks, m.Directions, m.HorizontalLast, m.memUsage, m.cpuUsage)
	return m
}

// Observe counts one refresh outcome.
func (m *Metrics) Observe(s engine.Snapshot) {
	m.FramesTotal.Inc()
	if !s.FaceFound {
		m.FacesMissing.Inc()
		return
	}
	if s.HorizontalRatio == nil {
		m.Undetermined.Inc()
		return
	}
	m.HorizontalLast.Set(*s.HorizontalRatio)
	m.Directions.WithLabelValues(s.Direction).Inc()
	if s.Blinking != nil && *s.Blinking {
		m.Blinks.Inc()
	}
}

func (m *Metrics) CheckProcessInfo() {
	memInfo, err := m.pid.MemoryInfo()
	if err == nil {
		m.memUsage.Set(float64(memInfo.RSS / 1024 / 1024))
	}
	cpuPercent, err := m.pid.CPUPercent()
	if err == nil {
		m.cpuUsage.Set(math.Round(cpuPercent*100) / 100)
	}
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{Registry: m.Registry})
}

// StartMon serves /metrics on port and samples the process until ctx ends.
func StartMon(ctx context.Context, port int, m *Metrics) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: mux,
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Log().Error("Prometheus server ListenAndServe error", zap.Error(err))
		}
	}()
	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()
checkPcs:
	for {
		select {
		case <-ctx.Done():
			break checkPcs
		case <-ticker.C:
			m.CheckProcessInfo()
		}
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Log().Error("Prometheus server Shutdown error", zap.Error(err))
	}
}
