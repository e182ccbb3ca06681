// Package transport connects the engine to the robot controller's websocket
// server and turns its newline-JSON stream into sensor frames.
package transport

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/teslashibe/go-swarm/internal/log"
	"github.com/teslashibe/go-swarm/pkg/action"
	"github.com/teslashibe/go-swarm/pkg/protocol"
	"github.com/teslashibe/go-swarm/pkg/sensor"
)

// ErrNotConnected is returned when sending on a closed link.
var ErrNotConnected = errors.New("transport: not connected")

// Options tunes the connection.
type Options struct {
	HandshakeTimeout time.Duration
	PingInterval     time.Duration
	WriteTimeout     time.Duration
	FrameBuffer      int
}

// DefaultOptions returns options suited to an ESP32 on the local network.
func DefaultOptions() Options {
	return Options{
		HandshakeTimeout: 5 * time.Second,
		PingInterval:     5 * time.Second,
		WriteTimeout:     time.Second,
		FrameBuffer:      4,
	}
}

// Stats counts link traffic.
type Stats struct {
	FramesReceived uint64 `json:"frames_received"`
	FramesDropped  uint64 `json:"frames_dropped"`
	CommandsSent   uint64 `json:"commands_sent"`
	BadMessages    uint64 `json:"bad_messages"`
}

// Client is a websocket link to one robot controller.
type Client struct {
	url  string
	opts Options
	ws   *websocket.Conn
	wsMu sync.Mutex

	frames chan sensor.Frame
	done   chan struct{}
	closed atomic.Bool
	once   sync.Once
	wg     sync.WaitGroup

	framesReceived atomic.Uint64
	framesDropped  atomic.Uint64
	commandsSent   atomic.Uint64
	badMessages    atomic.Uint64

	logger *slog.Logger
}

// Dial connects to the robot at url (e.g. ws://192.168.4.1:81).
func Dial(ctx context.Context, url string, opts Options) (*Client, error) {
	if opts.FrameBuffer <= 0 {
		opts.FrameBuffer = 1
	}
	dialer := websocket.Dialer{HandshakeTimeout: opts.HandshakeTimeout}

	ws, _, err := dialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to robot at %s: %w", url, err)
	}

	c := &Client{
		url:    url,
		opts:   opts,
		ws:     ws,
		frames: make(chan sensor.Frame, opts.FrameBuffer),
		done:   make(chan struct{}),
		logger: log.Component("transport").With("url", url),
	}

	c.wg.Add(1)
	go c.readLoop()
	if opts.PingInterval > 0 {
		c.wg.Add(1)
		go c.keepAlive()
	}

	c.logger.Info("robot connected")
	return c, nil
}

// Frames delivers sensor frames in arrival order. When the consumer falls
// behind, the oldest buffered frame is dropped. The channel is closed when
// the connection ends.
func (c *Client) Frames() <-chan sensor.Frame {
	return c.frames
}

// Send writes a wheel command for d.
func (c *Client) Send(ctx context.Context, d action.Decision) error {
	msg, err := protocol.NewCommandMessage(d)
	if err != nil {
		return err
	}
	if err := c.write(ctx, msg); err != nil {
		return err
	}
	c.commandsSent.Add(1)
	return nil
}

func (c *Client) write(ctx context.Context, msg *protocol.Message) error {
	if c.closed.Load() {
		return ErrNotConnected
	}
	data, err := msg.Bytes()
	if err != nil {
		return err
	}

	deadline := time.Now().Add(c.opts.WriteTimeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}

	c.wsMu.Lock()
	defer c.wsMu.Unlock()
	c.ws.SetWriteDeadline(deadline)
	if err := c.ws.WriteMessage(websocket.TextMessage, data); err != nil {
		return fmt.Errorf("write %s: %w", msg.Type, err)
	}
	return nil
}

// readLoop owns the frames channel.
func (c *Client) readLoop() {
	defer c.wg.Done()
	defer close(c.frames)

	for {
		_, payload, err := c.ws.ReadMessage()
		if err != nil {
			if !c.closed.Load() {
				c.logger.Warn("robot connection lost", "error", err)
				c.closed.Store(true)
			}
			return
		}
		for _, line := range protocol.SplitLines(payload) {
			c.handle(line)
		}
	}
}

func (c *Client) handle(line []byte) {
	msg, err := protocol.ParseMessage(line)
	if err != nil {
		c.badMessages.Add(1)
		c.logger.Debug("ignoring message", "error", err)
		return
	}

	switch msg.Type {
	case protocol.TypeSensors:
		data, err := protocol.GetSensorData(msg)
		if err != nil {
			c.badMessages.Add(1)
			return
		}
		c.framesReceived.Add(1)
		c.push(data.Frame(time.Now()))

	case protocol.TypeStatus:
		if st, err := protocol.GetStatusData(msg); err == nil {
			c.logger.Info("robot status", "level", st.Level, "battery", st.BatteryVoltage, "message", st.Message)
		}

	case protocol.TypePing:
		ping, err := protocol.GetPingData(msg)
		if err != nil {
			return
		}
		pong, err := protocol.NewPongMessage(ping.Seq)
		if err == nil {
			_ = c.write(context.Background(), pong)
		}
	}
}

func (c *Client) push(f sensor.Frame) {
	for {
		select {
		case c.frames <- f:
			return
		default:
		}
		select {
		case <-c.frames:
			c.framesDropped.Add(1)
		default:
		}
	}
}

// keepAlive sends periodic pings so a dead robot is noticed by the reader.
func (c *Client) keepAlive() {
	defer c.wg.Done()
	ticker := time.NewTicker(c.opts.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			c.wsMu.Lock()
			err := c.ws.WriteControl(websocket.PingMessage, nil, time.Now().Add(c.opts.WriteTimeout))
			c.wsMu.Unlock()
			if err != nil {
				c.logger.Debug("ping failed", "error", err)
				return
			}
		}
	}
}

// Stats returns link counters.
func (c *Client) Stats() Stats {
	return Stats{
		FramesReceived: c.framesReceived.Load(),
		FramesDropped:  c.framesDropped.Load(),
		CommandsSent:   c.commandsSent.Load(),
		BadMessages:    c.badMessages.Load(),
	}
}

// Close sends a close frame, shuts the connection and waits for the
// reader to exit.
func (c *Client) Close() error {
	var err error
	c.once.Do(func() {
		c.closed.Store(true)
		close(c.done)

		c.wsMu.Lock()
		_ = c.ws.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		c.wsMu.Unlock()

		err = c.ws.Close()
		c.wg.Wait()
		c.logger.Info("robot disconnected")
	})
	return err
}
