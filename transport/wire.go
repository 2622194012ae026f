// Package transport carries gaze samples to the game engine over one TCP
// connection.
package transport

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"time"

	"golang.org/x/time/rate"
)

const DefaultInterval = 500 * time.Millisecond

var ErrMalformed = errors.New("malformed gaze message")

// Message is one gaze sample in screen pixels.
type Message struct {
	X     int  `json:"x"`
	Y     int  `json:"y"`
	Blink bool `json:"blink"`
}

// Encode renders "x,y,blink" in ASCII with no framing; the consumer reads on
// its own cadence.
func Encode(m Message) []byte {
	b := make([]byte, 0, 16)
	b = strconv.AppendInt(b, int64(m.X), 10)
	b = append(b, ',')
	b = strconv.AppendInt(b, int64(m.Y), 10)
	b = append(b, ',')
	if m.Blink {
		b = append(b, '1')
	} else {
		b = append(b, '0')
	}
	return b
}

func Decode(b []byte) (Message, error) {
	parts := bytes.Split(b, []byte{','})
	if len(parts) != 3 {
		return Message{}, fmt.Errorf("%w: %q", ErrMalformed, b)
	}
	x, err := strconv.Atoi(string(parts[0]))
	if err != nil {
		return Message{}, fmt.Errorf("%w: x: %v", ErrMalformed, err)
	}
	y, err := strconv.Atoi(string(parts[1]))
	if err != nil {
		return Message{}, fmt.Errorf("%w: y: %v", ErrMalformed, err)
	}
	var blink bool
	switch string(parts[2]) {
	case "0":
	case "1":
		blink = true
	default:
		return Message{}, fmt.Errorf("%w: blink %q", ErrMalformed, parts[2])
	}
	return Message{X: x, Y: y, Blink: blink}, nil
}

// Sender writes messages to the consumer, at most one per interval.
type Sender struct {
	conn    net.Conn
	limiter *rate.Limiter
	sent    int
}

func Dial(ctx context.Context, addr string, interval time.Duration) (*Sender, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("connect to consumer %s: %w", addr, err)
	}
	return NewSender(conn, interval), nil
}

func NewSender(conn net.Conn, interval time.Duration) *Sender {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Sender{conn: conn, limiter: rate.NewLimiter(rate.Every(interval), 1)}
}

// Send blocks until the rate limit admits the message, then writes it whole.
// There is no retry: a write error means the consumer is gone.
func (s *Sender) Send(ctx context.Context, m Message) error {
	if err := s.limiter.Wait(ctx); err != nil {
		return err
	}
	payload := Encode(m)
	for len(payload) > 0 {
		n, err := s.conn.Write(payload)
		if err != nil {
			return fmt.Errorf("send gaze message: %w", err)
		}
		payload = payload[n:]
	}
	s.sent++
	return nil
}

func (s *Sender) Sent() int { return s.sent }

func (s *Sender) RemoteAddr() string { return s.conn.RemoteAddr().String() }

func (s *Sender) Close() error {
	return s.conn.Close()
}
