package main

import (
	adhoc "UnityGaze/Adhoc"
	"UnityGaze/calibration"
	"UnityGaze/capture"
	"UnityGaze/config"
	"UnityGaze/display"
	"UnityGaze/engine"
	rpc "UnityGaze/gRPC"
	iface "UnityGaze/interface"
	"UnityGaze/logger"
	"UnityGaze/monitor"
	"UnityGaze/screen"
	"UnityGaze/status"
	"UnityGaze/transport"
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"strings"
	"sync"
	"syscall"
	"time"

	"go.uber.org/zap"
)

// idleWait is how long the loop pauses when the camera has not produced a
// frame yet.
const idleWait = 10 * time.Millisecond

type pipeline struct {
	camera    iface.FrameSource
	tracker   *engine.Tracker
	projector screen.Projector
	sender    *transport.Sender
	viewer    display.Viewer
	hub       *status.Hub
	metrics   *monitor.Metrics
}

// step runs one iteration: analyse the newest frame, send an estimate when
// there is one, publish the outcome. It returns false when the viewer asks
// to quit. Errors come from the camera or the game engine socket and are
// fatal.
func (p *pipeline) step(ctx context.Context) (bool, error) {
	frame, ok := p.camera.Read()
	if !ok {
		if err := p.camera.Err(); err != nil {
			return false, err
		}
		time.Sleep(idleWait)
		return true, nil
	}
	p.tracker.Refresh(frame)
	_ = frame.Close()

	snap := p.tracker.Snapshot()
	p.metrics.Observe(snap)

	var msg *transport.Message
	if x, y, ok := p.project(); ok {
		blinking, _ := p.tracker.IsBlinking()
		m := transport.Message{X: x, Y: y, Blink: blinking}
		if err := p.sender.Send(ctx, m); err != nil {
			return false, err
		}
		p.metrics.MessagesSent.Inc()
		msg = &m
	}
	p.hub.Publish(snap, msg, calibrationStatus(p.tracker.Calibration()))

	annotated := p.tracker.AnnotatedFrame()
	key := p.viewer.Show(annotated)
	_ = annotated.Close()
	return !display.ShouldExit(key), nil
}

// project places the current estimate on screen, if there is one.
func (p *pipeline) project() (int, int, bool) {
	est, ok := screen.FromTracker(p.tracker)
	if !ok {
		return 0, 0, false
	}
	return p.projector.Project(est)
}

func calibrationStatus(s *calibration.Store) status.Calibration {
	return status.Calibration{
		Complete: s.IsComplete(),
		Capacity: s.Capacity(),
		Left:     s.Samples(iface.LeftEye),
		Right:    s.Samples(iface.RightEye),
	}
}

func main() {
	configPath := flag.String("config", "config.yaml", "path to the config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Println("Failed to load config:", err)
		os.Exit(1)
	}
	if err := logger.Init(cfg.Log.Development, cfg.Log.File); err != nil {
		fmt.Println("Failed to init logger:", err)
		os.Exit(1)
	}
	defer logger.Sync()

	fmt.Println(strings.Repeat("#", 64))
	fmt.Printf("CPU Cores: %d\n", runtime.NumCPU())
	fmt.Println(" Consumer   :", cfg.Consumer.Address())
	fmt.Printf(" Screen     : %dx%d\n", cfg.Screen.Width, cfg.Screen.Height)
	fmt.Println(" Backend    :", cfg.Detector.UseBackend)
	fmt.Println(" Status Port:", cfg.StatusPort)
	fmt.Println(" gRPC  Port :", cfg.RPCPort)
	fmt.Println(strings.Repeat("#", 64))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	detector := &engine.Detector{}
	detector.New()
	if err := detector.LoadModel(cfg.Detector); err != nil {
		logger.Fatal("failed to load detector", zap.Error(err))
	}
	defer detector.Destroy()

	store := calibration.New(cfg.Calibration.HistorySize, cfg.Calibration.TargetRatio)
	tracker := engine.NewTracker(detector, store,
		engine.WithCenterAdjust(cfg.Gaze.CenterAdjust),
		engine.WithMirror(cfg.MirrorEnabled()),
		engine.WithContinuousCalibration(cfg.Calibration.Continuous),
	)
	defer tracker.Close()

	camera := capture.NewCamera(cfg.Camera.Device)
	if err := camera.Start(); err != nil {
		logger.Fatal("failed to start camera", zap.Error(err))
	}
	defer camera.Stop()

	sender, err := transport.Dial(ctx, cfg.Consumer.Address(), cfg.Consumer.SendInterval)
	if err != nil {
		logger.Fatal("failed to connect to game engine", zap.Error(err))
	}
	defer sender.Close()
	logger.Log().Info("connected to game engine", zap.String("addr", sender.RemoteAddr()))

	var viewer display.Viewer = display.Headless{}
	if cfg.Display.Enabled {
		viewer = display.NewWindow(cfg.Display.Title)
	}
	defer viewer.Close()

	var wg sync.WaitGroup
	hub := status.NewHub()
	metrics := monitor.NewMetrics()
	if cfg.StatusPort > 0 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := status.Start(ctx, cfg.StatusPort, hub); err != nil {
				logger.Log().Error("status server stopped", zap.Error(err))
			}
		}()
	}
	if cfg.MetricsPort > 0 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			monitor.StartMon(ctx, cfg.MetricsPort, metrics)
		}()
	}
	var health *rpc.Server
	if cfg.RPCPort > 0 {
		health, err = rpc.StartGRPCServer(cfg.RPCPort)
		if err != nil {
			logger.Log().Error("gRPC health disabled", zap.Error(err))
		}
	}
	if cfg.RegServer.Use {
		ip, err := adhoc.GetOutboundIP()
		if err != nil {
			logger.Log().Warn("failed to get outbound IP", zap.Error(err))
		}
		reg := adhoc.RegServerConfig{}
		reg.SetAddress(cfg.RegServer.Host, cfg.RegServer.Port)
		hb := adhoc.NewHeartbeat(reg, adhoc.Announcement{
			IP:           ip,
			StatusPort:   cfg.StatusPort,
			ScreenWidth:  cfg.Screen.Width,
			ScreenHeight: cfg.Screen.Height,
			Consumer:     cfg.Consumer.Address(),
		})
		wg.Add(1)
		go hb.Run(ctx, &wg)
	} else {
		fmt.Println("UseRegServer is set to false, skipping registration")
	}

	p := &pipeline{
		camera:    camera,
		tracker:   tracker,
		projector: screen.Reciprocal{Width: cfg.Screen.Width, Height: cfg.Screen.Height, Clamp: cfg.Screen.Clamp},
		sender:    sender,
		viewer:    viewer,
		hub:       hub,
		metrics:   metrics,
	}
	if health != nil {
		health.SetServing(true)
	}

	for ctx.Err() == nil {
		more, err := p.step(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				break
			}
			logger.Fatal("gaze pipeline failed", zap.Error(err))
		}
		if !more {
			break
		}
	}

	stop()
	if health != nil {
		health.GracefulStop()
	}
	wg.Wait()
	logger.Log().Info("Safely exited", zap.Int("sent", sender.Sent()), zap.Uint64("frames", camera.Frames()))
}
