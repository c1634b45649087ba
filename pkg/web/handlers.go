package web

import (
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/teslashibe/go-qrfinder/internal/log"
	"github.com/teslashibe/go-qrfinder/pkg/hub"
)

// handleIndex serves the embedded dashboard page
func (s *Server) handleIndex(c *fiber.Ctx) error {
	c.Type("html")
	return c.Send(indexHTML)
}

// handleHealth reports liveness
func (s *Server) handleHealth(c *fiber.Ctx) error {
	st := s.Snapshot()
	return c.JSON(fiber.Map{
		"status":  "ok",
		"session": st.SessionID,
		"uptime":  time.Since(st.Started).Round(time.Second).String(),
	})
}

// handleStatus returns the loop's current state
func (s *Server) handleStatus(c *fiber.Ctx) error {
	return c.JSON(s.Snapshot())
}

// handleConfig returns the finder thresholds in use
func (s *Server) handleConfig(c *fiber.Ctx) error {
	return c.JSON(s.config)
}

// handleMetrics exposes counters in Prometheus text format
func (s *Server) handleMetrics(c *fiber.Ctx) error {
	st := s.Snapshot()
	c.Type("txt")
	return c.SendString(fmt.Sprintf(`# HELP qrfinder_frames_total Frames processed
# TYPE qrfinder_frames_total counter
qrfinder_frames_total %d

# HELP qrfinder_detections_total Frames in which a pattern was located
# TYPE qrfinder_detections_total counter
qrfinder_detections_total %d

# HELP qrfinder_ws_clients Connected websocket clients
# TYPE qrfinder_ws_clients gauge
qrfinder_ws_clients{stream="frames"} %d
qrfinder_ws_clients{stream="detections"} %d

# HELP qrfinder_ws_dropped_total Messages shed to slow clients
# TYPE qrfinder_ws_dropped_total counter
qrfinder_ws_dropped_total %d
`, st.Frames, st.Detections,
		st.Clients[s.frameHub.Name()], st.Clients[s.eventHub.Name()],
		s.frameHub.Dropped()+s.eventHub.Dropped()))
}

// handleFramesWS streams annotated JPEG frames
func (s *Server) handleFramesWS(c *websocket.Conn) {
	hub.Serve(s.frameHub, c)
}

// handleDetectionsWS streams detection events, starting with the last one
func (s *Server) handleDetectionsWS(c *websocket.Conn) {
	var initial []hub.Message
	if ev := s.Snapshot().LastEvent; ev != nil {
		msg, err := hub.NewJSONMessage(ev)
		if err != nil {
			log.Warn("encode last event", "error", err)
		} else {
			initial = append(initial, msg)
		}
	}
	hub.Serve(s.eventHub, c, initial...)
}
