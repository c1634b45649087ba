// Package web serves a live dashboard for the finder loop
package web

import (
	"context"
	_ "embed"
	"errors"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/websocket/v2"
	"github.com/teslashibe/go-qrfinder/internal/log"
	"github.com/teslashibe/go-qrfinder/pkg/detection"
	"github.com/teslashibe/go-qrfinder/pkg/hub"
	"gocv.io/x/gocv"
)

//go:embed static/index.html
var indexHTML []byte

// Status is the dashboard's view of the running loop
type Status struct {
	SessionID  string           `json:"session_id"`
	Source     string           `json:"source"`
	Frames     int              `json:"frames"`
	Detections int              `json:"detections"`
	Last       detection.Result `json:"last"`
	LastEvent  *detection.Event `json:"last_event,omitempty"`
	Started    time.Time        `json:"started"`
	Clients    map[string]int   `json:"clients"`
}

// Server is the dashboard HTTP server
type Server struct {
	app    *fiber.App
	addr   string
	config detection.Config

	status   Status
	statusMu sync.RWMutex

	frameHub *hub.Hub
	eventHub *hub.Hub

	// Frame encoding quality for /ws/frames
	Quality int
}

// NewServer creates a dashboard listening on addr once Run is called
func NewServer(addr string, cfg detection.Config) *Server {
	s := &Server{
		addr:     addr,
		config:   cfg,
		frameHub: hub.New("frames"),
		eventHub: hub.New("detections"),
		Quality:  80,
		status:   Status{Started: time.Now()},
	}

	app := fiber.New(fiber.Config{
		AppName:               "qrfinder",
		DisableStartupMessage: true,
	})

	app.Use(recover.New())
	app.Use(cors.New())

	app.Get("/", s.handleIndex)

	api := app.Group("/api")
	api.Get("/health", s.handleHealth)
	api.Get("/status", s.handleStatus)
	api.Get("/config", s.handleConfig)
	app.Get("/metrics", s.handleMetrics)

	// WebSocket upgrade middleware
	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})

	app.Get("/ws/frames", websocket.New(s.handleFramesWS))
	app.Get("/ws/detections", websocket.New(s.handleDetectionsWS))

	s.app = app
	return s
}

// App exposes the fiber app, mainly for tests
func (s *Server) App() *fiber.App {
	return s.app
}

// Run starts the hubs and serves until ctx is cancelled
func (s *Server) Run(ctx context.Context) error {
	go s.frameHub.Run(ctx)
	go s.eventHub.Run(ctx)

	errc := make(chan error, 1)
	go func() {
		log.Info("dashboard listening", "addr", s.addr)
		errc <- s.app.Listen(s.addr)
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
		if err := s.app.ShutdownWithTimeout(5 * time.Second); err != nil {
			return err
		}
		if err := <-errc; err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	}
}

// Attach records which capture session the dashboard is reporting on
func (s *Server) Attach(sessionID, source string) {
	s.statusMu.Lock()
	defer s.statusMu.Unlock()
	s.status.SessionID = sessionID
	s.status.Source = source
}

// Record updates the status for one processed frame and broadcasts
// an event when the pattern was found.
func (s *Server) Record(frame int, res detection.Result) {
	s.statusMu.Lock()
	s.status.Frames = frame
	s.status.Last = res
	var ev *detection.Event
	if res.Detected {
		s.status.Detections++
		e := detection.NewEvent(s.status.SessionID, frame, res)
		s.status.LastEvent = &e
		ev = &e
	}
	s.statusMu.Unlock()

	if ev != nil {
		if err := s.eventHub.BroadcastJSON(ev); err != nil {
			log.Warn("encode detection event", "error", err)
		}
	}
}

// SendFrame JPEG-encodes frame for subscribers.
// Nothing is encoded while no one is watching.
func (s *Server) SendFrame(frame gocv.Mat) {
	if s.frameHub.ClientCount() == 0 || frame.Empty() {
		return
	}

	buf, err := gocv.IMEncodeWithParams(gocv.JPEGFileExt, frame, []int{int(gocv.IMWriteJpegQuality), s.Quality})
	if err != nil {
		log.Warn("encode frame", "error", err)
		return
	}
	data := append([]byte(nil), buf.GetBytes()...)
	buf.Close()

	s.frameHub.BroadcastBinary(data)
}

// Snapshot returns a copy of the current status
func (s *Server) Snapshot() Status {
	s.statusMu.RLock()
	st := s.status
	s.statusMu.RUnlock()

	st.Clients = map[string]int{
		s.frameHub.Name(): s.frameHub.ClientCount(),
		s.eventHub.Name(): s.eventHub.ClientCount(),
	}
	return st
}
