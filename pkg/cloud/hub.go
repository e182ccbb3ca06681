// Package cloud accepts robot connections over websocket, for robots (or
// simulators) that dial in rather than serve.
//
// Exactly one robot session drives the engine at a time. Further robots are
// turned away until the active one disconnects.
package cloud

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/teslashibe/go-swarm/internal/log"
	"github.com/teslashibe/go-swarm/pkg/action"
	"github.com/teslashibe/go-swarm/pkg/protocol"
	"github.com/teslashibe/go-swarm/pkg/sensor"
)

var (
	// ErrRobotNotConnected is returned when sending without an active session.
	ErrRobotNotConnected = errors.New("cloud: robot not connected")
	// ErrBusy is returned when a second robot tries to connect.
	ErrBusy = errors.New("cloud: another robot is connected")
)

const writeTimeout = time.Second

// RobotConnection represents a connected robot
type RobotConnection struct {
	ID        string
	Conn      *websocket.Conn
	Connected time.Time
	LastSeen  time.Time

	mu sync.Mutex
}

// Send sends a message to the robot
func (r *RobotConnection) Send(msg *protocol.Message) error {
	data, err := msg.Bytes()
	if err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.Conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return r.Conn.WriteMessage(websocket.TextMessage, data)
}

func (r *RobotConnection) touch() {
	r.mu.Lock()
	r.LastSeen = time.Now()
	r.mu.Unlock()
}

// Hub manages the robot session and exposes it as a frame source and
// command sink.
type Hub struct {
	mu     sync.RWMutex
	active *RobotConnection

	frames chan sensor.Frame
	logger *slog.Logger

	// Stats
	messagesReceived atomic.Uint64
	messagesSent     atomic.Uint64
	framesReceived   atomic.Uint64
	framesDropped    atomic.Uint64
	sessions         atomic.Uint64
	rejected         atomic.Uint64
}

// NewHub creates a hub buffering up to buffer frames.
func NewHub(buffer int) *Hub {
	if buffer <= 0 {
		buffer = 1
	}
	return &Hub{
		frames: make(chan sensor.Frame, buffer),
		logger: log.Component("cloud"),
	}
}

// RegisterRoutes registers WebSocket routes on a Fiber app
func (h *Hub) RegisterRoutes(app *fiber.App) {
	app.Use("/ws/robot", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			c.Locals("allowed", true)
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})

	app.Get("/ws/robot", websocket.New(h.handleRobot))
	app.Get("/ws/robot/:id", websocket.New(h.handleRobot))
}

// claim makes robot the active session.
func (h *Hub) claim(robot *RobotConnection) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.active != nil {
		return ErrBusy
	}
	h.active = robot
	return nil
}

func (h *Hub) release(robot *RobotConnection) {
	h.mu.Lock()
	if h.active == robot {
		h.active = nil
	}
	h.mu.Unlock()
}

// handleRobot handles a robot WebSocket connection
func (h *Hub) handleRobot(c *websocket.Conn) {
	robotID := c.Params("id")
	if robotID == "" {
		robotID = uuid.NewString()
	}

	robot := &RobotConnection{
		ID:        robotID,
		Conn:      c,
		Connected: time.Now(),
		LastSeen:  time.Now(),
	}
	logger := h.logger.With("robot", robotID)

	if err := h.claim(robot); err != nil {
		h.rejected.Add(1)
		logger.Warn("robot rejected", "error", err)
		if msg, merr := protocol.NewStatusMessage("error", 0, err.Error()); merr == nil {
			robot.Send(msg)
		}
		return
	}
	h.sessions.Add(1)
	logger.Info("robot connected")

	defer func() {
		h.release(robot)
		logger.Info("robot disconnected")
	}()

	for {
		_, data, err := c.ReadMessage()
		if err != nil {
			logger.Debug("robot read ended", "error", err)
			return
		}
		robot.touch()
		for _, line := range protocol.SplitLines(data) {
			h.messagesReceived.Add(1)
			h.handleMessage(robot, line, logger)
		}
	}
}

// handleMessage processes an incoming message from a robot
func (h *Hub) handleMessage(robot *RobotConnection, data []byte, logger *slog.Logger) {
	msg, err := protocol.ParseMessage(data)
	if err != nil {
		logger.Debug("parse error", "error", err)
		return
	}

	switch msg.Type {
	case protocol.TypeSensors:
		sd, err := protocol.GetSensorData(msg)
		if err != nil {
			return
		}
		h.framesReceived.Add(1)
		h.push(sd.Frame(time.Now()))

	case protocol.TypeStatus:
		if st, err := protocol.GetStatusData(msg); err == nil {
			logger.Info("robot status", "level", st.Level, "battery", st.BatteryVoltage, "message", st.Message)
		}

	case protocol.TypePing:
		ping, err := protocol.GetPingData(msg)
		if err != nil {
			return
		}
		if pong, err := protocol.NewPongMessage(ping.Seq); err == nil {
			h.messagesSent.Add(1)
			robot.Send(pong)
		}
	}
}

// push keeps the newest frames when the consumer falls behind.
func (h *Hub) push(f sensor.Frame) {
	for {
		select {
		case h.frames <- f:
			return
		default:
		}
		select {
		case <-h.frames:
			h.framesDropped.Add(1)
		default:
		}
	}
}

// Frames delivers frames from whichever robot is connected. The channel
// stays open across sessions.
func (h *Hub) Frames() <-chan sensor.Frame {
	return h.frames
}

// Send sends a wheel command to the active robot.
func (h *Hub) Send(_ context.Context, d action.Decision) error {
	h.mu.RLock()
	robot := h.active
	h.mu.RUnlock()
	if robot == nil {
		return ErrRobotNotConnected
	}

	msg, err := protocol.NewCommandMessage(d)
	if err != nil {
		return err
	}
	h.messagesSent.Add(1)
	return robot.Send(msg)
}

// Connected reports whether a robot session is active.
func (h *Hub) Connected() bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.active != nil
}

// RobotInfo contains info about a connected robot
type RobotInfo struct {
	ID        string    `json:"id"`
	Connected time.Time `json:"connected"`
	LastSeen  time.Time `json:"last_seen"`
}

// Active returns the active robot, if any.
func (h *Hub) Active() (RobotInfo, bool) {
	h.mu.RLock()
	r := h.active
	h.mu.RUnlock()
	if r == nil {
		return RobotInfo{}, false
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return RobotInfo{ID: r.ID, Connected: r.Connected, LastSeen: r.LastSeen}, true
}

// Stats contains hub statistics
type Stats struct {
	Connected        bool   `json:"connected"`
	Sessions         uint64 `json:"sessions"`
	Rejected         uint64 `json:"rejected"`
	MessagesReceived uint64 `json:"messages_received"`
	MessagesSent     uint64 `json:"messages_sent"`
	FramesReceived   uint64 `json:"frames_received"`
	FramesDropped    uint64 `json:"frames_dropped"`
}

// GetStats returns hub statistics
func (h *Hub) GetStats() Stats {
	return Stats{
		Connected:        h.Connected(),
		Sessions:         h.sessions.Load(),
		Rejected:         h.rejected.Load(),
		MessagesReceived: h.messagesReceived.Load(),
		MessagesSent:     h.messagesSent.Load(),
		FramesReceived:   h.framesReceived.Load(),
		FramesDropped:    h.framesDropped.Load(),
	}
}

// RegisterAPIRoutes registers API routes for robot management
func (h *Hub) RegisterAPIRoutes(api fiber.Router) {
	robot := api.Group("/robot")

	robot.Get("/", func(c *fiber.Ctx) error {
		info, ok := h.Active()
		if !ok {
			return c.JSON(fiber.Map{"connected": false})
		}
		return c.JSON(fiber.Map{"connected": true, "robot": info})
	})

	robot.Get("/stats", func(c *fiber.Ctx) error {
		return c.JSON(h.GetStats())
	})

	// Operator stop, outside the decision loop.
	robot.Post("/stop", func(c *fiber.Ctx) error {
		err := h.Send(c.UserContext(), action.StopDecision(action.SourceSafety, "OPERATOR_STOP"))
		if errors.Is(err, ErrRobotNotConnected) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": err.Error()})
		}
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
		}
		return c.JSON(fiber.Map{"status": "sent"})
	})
}
