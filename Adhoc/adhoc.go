package Adhoc

import (
	"context"
	"fmt"
	"net"
	"sync"
	"time"

	"UnityGaze/logger"

	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	TimeOutSeconds = 5
	TrackerClass   = "gaze-tracker"
)

type RegisterRequest struct {
	Id           string `json:"id"`
	IP           string `json:"ip"`
	Port         int    `json:"port"`
	Class        string `json:"class"`
	ScreenWidth  int    `json:"screenWidth"`
	ScreenHeight int    `json:"screenHeight"`
	Consumer     string `json:"consumer"`
	TimeStamp    int64  `json:"timestamp"`
}

type RegisterResponse struct {
	Id      string `json:"id"`
	Success bool   `json:"success"`
}

type RegServerConfig struct {
	Port int
	Addr string
}

func (reg *RegServerConfig) SetAddress(addr string, port int) {
	reg.Addr = addr
	reg.Port = port
}

func (reg RegServerConfig) URL() string {
	return fmt.Sprintf("http://%s:%d/api/register", reg.Addr, reg.Port)
}

// Announcement describes this tracker to the registry.
type Announcement struct {
	IP           string
	StatusPort   int
	ScreenWidth  int
	ScreenHeight int
	Consumer     string
}

// Heartbeat re-registers the tracker every interval under one stable id.
type Heartbeat struct {
	Id       string
	Interval time.Duration
	reg      RegServerConfig
	client   *resty.Client
	ann      Announcement
}

func NewHeartbeat(reg RegServerConfig, ann Announcement) *Heartbeat {
	return &Heartbeat{
		Id:       uuid.NewString(),
		Interval: TimeOutSeconds * time.Second,
		reg:      reg,
		client:   resty.New().SetTimeout(TimeOutSeconds * time.Second), // 总超时
		ann:      ann,
	}
}

// Send posts one registration and reports whether the registry accepted it.
func (h *Heartbeat) Send(ctx context.Context) (bool, error) {
	var respBody RegisterResponse
	reqBody := RegisterRequest{
		Id:           h.Id,
		IP:           h.ann.IP,
		Port:         h.ann.StatusPort,
		Class:        TrackerClass,
		ScreenWidth:  h.ann.ScreenWidth,
		ScreenHeight: h.ann.ScreenHeight,
		Consumer:     h.ann.Consumer,
		TimeStamp:    time.Now().Unix(),
	}
	resp, err := h.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(reqBody).     // 可以直接传 struct，resty 会 JSON 编码
		SetResult(&respBody). // 2xx 自动反序列化到 respBody
		Post(h.reg.URL())
	if err != nil {
		return false, fmt.Errorf("request error: %w", err)
	}
	// 检查 HTTP 状态码
	if resp.IsError() {
		return false, fmt.Errorf("server returned error: %s, body: %s", resp.Status(), resp.String())
	}
	return respBody.Success, nil
}

func (h *Heartbeat) safeSend(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			logger.Log().Error(fmt.Sprintf("SendAliveMessage panic recovered: %v", r))
		}
	}()
	ok, err := h.Send(ctx)
	if err != nil {
		logger.Log().Error("registration failed", zap.Error(err))
		return
	}
	if !ok {
		logger.Log().Warn("registry rejected tracker", zap.String("id", h.Id))
	}
}

// Run sends immediately and then on every tick until ctx ends.
func (h *Heartbeat) Run(ctx context.Context, wg *sync.WaitGroup) {
	defer wg.Done()
	ticker := time.NewTicker(h.Interval)
	defer ticker.Stop()
	h.safeSend(ctx)
	for {
		select {
		case <-ctx.Done():
			logger.Log().Info("SendAliveMessage context cancelled, exiting goroutine.")
			return
		case <-ticker.C:
			h.safeSend(ctx)
		}
	}
}

func GetOutboundIP() (string, error) {
	// 8.8.8.8 是 Google DNS，这里只是为了建立路由路径得到本地出口 IP
	// 实际并没有真正的物理连接，所以不需要联网也可以（只要有路由表）
	conn, err := net.Dial("udp", "8.8.8.8:80")
	if err != nil {
		return "", err
	}
	defer conn.Close()

	localAddr := conn.LocalAddr().(*net.UDPAddr)

	return localAddr.IP.String(), nil
}
