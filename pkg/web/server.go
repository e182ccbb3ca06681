// Package web serves the operator dashboard: a read-only JSON API over
// engine state and a live decision feed.
package web

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/websocket/v2"

	"github.com/teslashibe/go-swarm/internal/log"
	"github.com/teslashibe/go-swarm/pkg/engine"
	"github.com/teslashibe/go-swarm/pkg/hub"
	"github.com/teslashibe/go-swarm/pkg/protocol"
)

// statsEvery is how many published cycles pass between stats broadcasts.
const statsEvery = 10

// Server is the web dashboard server
type Server struct {
	app  *fiber.App
	api  fiber.Router
	addr string

	state     engine.Status
	published uint64
	stateMu   sync.RWMutex

	decisions *hub.Hub
	logger    *slog.Logger
}

// NewServer creates a dashboard listening on addr. Files under staticDir,
// if set, are served at /.
func NewServer(addr, staticDir string) *Server {
	s := &Server{
		addr:      addr,
		decisions: hub.New("decisions"),
		logger:    log.Component("web"),
	}

	app := fiber.New(fiber.Config{
		AppName:               "swarm dashboard",
		DisableStartupMessage: true,
	})
	app.Use(cors.New())
	if staticDir != "" {
		app.Static("/", staticDir)
	}

	api := app.Group("/api")
	api.Get("/status", s.handleStatus)
	api.Get("/stats", s.handleStats)
	api.Get("/weights", s.handleWeights)
	api.Get("/learned", s.handleLearned)
	api.Get("/decision", s.handleDecision)

	app.Use("/ws/decisions", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws/decisions", websocket.New(s.handleDecisionsWS))

	s.app = app
	s.api = api
	return s
}

// App returns the underlying fiber app so other components can mount
// routes on the same listener.
func (s *Server) App() *fiber.App {
	return s.app
}

// API returns the /api route group.
func (s *Server) API() fiber.Router {
	return s.api
}

// Run serves until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	hubCtx, stopHub := context.WithCancel(ctx)
	defer stopHub()
	go s.decisions.Run(hubCtx)

	errc := make(chan error, 1)
	go func() {
		s.logger.Info("dashboard listening", "addr", s.addr)
		errc <- s.app.Listen(s.addr)
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.app.ShutdownWithContext(shutdownCtx); err != nil && !errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return nil
}

// Publish stores st for the API and pushes the decision to live clients.
// Called once per cycle by the control loop.
func (s *Server) Publish(st engine.Status) {
	s.stateMu.Lock()
	s.state = st
	s.published++
	n := s.published
	s.stateMu.Unlock()

	if st.Decision != nil && st.Frame != nil {
		if msg, err := protocol.NewDecisionMessage(*st.Decision, *st.Frame); err == nil {
			s.decisions.BroadcastMessage(msg)
		}
	}
	if n%statsEvery == 0 {
		if msg, err := protocol.NewStatsMessage(st.Stats); err == nil {
			s.decisions.BroadcastMessage(msg)
		}
	}
}

// Clients returns the number of live feed subscribers.
func (s *Server) Clients() int {
	return s.decisions.ClientCount()
}

func (s *Server) snapshot() engine.Status {
	s.stateMu.RLock()
	defer s.stateMu.RUnlock()
	return s.state
}
