package web

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"

	"voiceloop/pkg/hub"
	"voiceloop/pkg/recognition"
)

// handleStatus returns the current subsystem snapshot.
func (s *Server) handleStatus(c *fiber.Ctx) error {
	return c.JSON(s.buildStatus())
}

func (s *Server) handleToggleTTS(c *fiber.Ctx) error {
	on := s.coord.TTS().Toggle()
	s.PushStatus()
	return c.JSON(fiber.Map{"enabled": on})
}

func (s *Server) handleToggleSound(c *fiber.Ctx) error {
	// A toggle click is itself the user gesture autoplay policy wants.
	s.coord.Sound().NotifyUserGesture()
	on := s.coord.Sound().Toggle()
	s.PushStatus()
	return c.JSON(fiber.Map{"enabled": on})
}

func (s *Server) handleToggleMic(c *fiber.Ctx) error {
	s.coord.Recognition().Toggle()
	s.PushStatus()
	return c.JSON(fiber.Map{"listening": s.coord.Recognition().Recognizing()})
}

func (s *Server) handleToggleHandsFree(c *fiber.Ctx) error {
	loop := s.coord.HandsFree()
	loop.SetEnabled(!loop.Enabled())
	s.PushStatus()
	return c.JSON(fiber.Map{"enabled": loop.Enabled()})
}

// handleGesture records a user interaction for the autoplay gate.
func (s *Server) handleGesture(c *fiber.Ctx) error {
	s.coord.Sound().NotifyUserGesture()
	return c.SendStatus(fiber.StatusNoContent)
}

// AddonRequest is the request body for addon availability updates.
type AddonRequest struct {
	Active bool `json:"active"`
}

func (s *Server) handleAddon(c *fiber.Ctx) error {
	var req AddonRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}
	s.coord.UpdateAddonState(req.Active)
	s.PushStatus()
	return c.SendStatus(fiber.StatusNoContent)
}

// InterruptRequest is the request body for interruption notices.
type InterruptRequest struct {
	Source string `json:"source"` // document, input, manual
}

func (s *Server) handleInterrupt(c *fiber.Ctx) error {
	var req InterruptRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}
	s.coord.Recognition().NotifyInterruption(interruptSource(req.Source))
	s.PushStatus()
	return c.SendStatus(fiber.StatusNoContent)
}

func interruptSource(name string) recognition.InterruptSource {
	switch name {
	case "input":
		return recognition.InterruptInputField
	case "manual":
		return recognition.InterruptManualStop
	default:
		return recognition.InterruptDocument
	}
}

// handleStatusWS serves live status, control, and toast broadcasts.
func (s *Server) handleStatusWS(c *websocket.Conn) {
	client := hub.NewClient(s.statusHub, c)
	// Fresh dashboards need the full picture immediately.
	s.PushStatus()
	s.coord.RefreshControls()
	client.Run()
}

// handleBridgeWS attaches a browser speech bridge.
func (s *Server) handleBridgeWS(c *websocket.Conn) {
	client := hub.NewClient(s.bridge.Hub(), c)
	s.PushStatus()
	client.Run()
}
