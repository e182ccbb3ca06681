package web

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"

	"github.com/teslashibe/go-swarm/pkg/hub"
)

func (s *Server) handleStatus(c *fiber.Ctx) error {
	return c.JSON(s.snapshot())
}

func (s *Server) handleStats(c *fiber.Ctx) error {
	return c.JSON(s.snapshot().Stats)
}

func (s *Server) handleWeights(c *fiber.Ctx) error {
	w := s.snapshot().Weights
	if w == nil {
		w = map[string]float64{}
	}
	return c.JSON(w)
}

// handleLearned lists learned concepts, strongest first. ?limit=N caps the
// list.
func (s *Server) handleLearned(c *fiber.Ctx) error {
	learned := s.snapshot().Learned
	if limit := c.QueryInt("limit", 0); limit > 0 && limit < len(learned) {
		learned = learned[:limit]
	}
	return c.JSON(fiber.Map{
		"count":    len(learned),
		"concepts": learned,
	})
}

func (s *Server) handleDecision(c *fiber.Ctx) error {
	st := s.snapshot()
	if st.Decision == nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "no decision yet"})
	}
	return c.JSON(fiber.Map{
		"decision": st.Decision,
		"frame":    st.Frame,
	})
}

func (s *Server) handleDecisionsWS(c *websocket.Conn) {
	client, ok := hub.NewClient(s.decisions, c)
	if !ok {
		return
	}
	client.Run()
}
