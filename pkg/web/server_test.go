package web

import (
	"encoding/json"
	"image"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/teslashibe/go-qrfinder/pkg/detection"
)

func newTestServer() *Server {
	s := NewServer(":0", detection.DefaultConfig())
	s.Attach("session-1", "device 0")
	return s
}

func get(t *testing.T, s *Server, path string) (*http.Response, []byte) {
	t.Helper()
	resp, err := s.App().Test(httptest.NewRequest(http.MethodGet, path, nil))
	if err != nil {
		t.Fatalf("GET %s: %v", path, err)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read %s: %v", path, err)
	}
	resp.Body.Close()
	return resp, body
}

func TestServer_Health(t *testing.T) {
	s := newTestServer()

	resp, body := get(t, s, "/api/health")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status: got %d, want 200", resp.StatusCode)
	}

	var got map[string]string
	if err := json.Unmarshal(body, &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got["status"] != "ok" || got["session"] != "session-1" {
		t.Errorf("health: got %v", got)
	}
}

func TestServer_RecordAndStatus(t *testing.T) {
	s := newTestServer()

	s.Record(1, detection.Result{Candidates: 1})
	s.Record(2, detection.Result{
		Detected:   true,
		Candidates: 3,
		Outer:      image.Rect(0, 0, 100, 100),
		Finders:    []image.Rectangle{image.Rect(0, 0, 10, 10), image.Rect(90, 0, 100, 10), image.Rect(0, 90, 10, 100)},
	})
	s.Record(3, detection.Result{Candidates: 2})

	_, body := get(t, s, "/api/status")

	var st Status
	if err := json.Unmarshal(body, &st); err != nil {
		t.Fatalf("decode: %v", err)
	}

	if st.Frames != 3 {
		t.Errorf("Frames: got %d, want 3", st.Frames)
	}
	if st.Detections != 1 {
		t.Errorf("Detections: got %d, want 1", st.Detections)
	}
	if st.Last.Detected || st.Last.Candidates != 2 {
		t.Errorf("Last: got %+v, want the frame 3 miss", st.Last)
	}
	if st.LastEvent == nil || st.LastEvent.Frame != 2 || st.LastEvent.SessionID != "session-1" {
		t.Errorf("LastEvent: got %+v, want frame 2 of session-1", st.LastEvent)
	}
	if st.Source != "device 0" {
		t.Errorf("Source: got %q", st.Source)
	}
}

func TestServer_Config(t *testing.T) {
	s := newTestServer()

	_, body := get(t, s, "/api/config")

	var cfg detection.Config
	if err := json.Unmarshal(body, &cfg); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if cfg != detection.DefaultConfig() {
		t.Errorf("config: got %+v, want defaults", cfg)
	}
}

func TestServer_Metrics(t *testing.T) {
	s := newTestServer()
	s.Record(1, detection.Result{Detected: true, Candidates: 3})

	_, body := get(t, s, "/metrics")
	text := string(body)

	for _, want := range []string{
		"qrfinder_frames_total 1",
		"qrfinder_detections_total 1",
		`qrfinder_ws_clients{stream="frames"} 0`,
	} {
		if !strings.Contains(text, want) {
			t.Errorf("metrics missing %q:\n%s", want, text)
		}
	}
}

func TestServer_Index(t *testing.T) {
	s := newTestServer()

	resp, body := get(t, s, "/")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status: got %d, want 200", resp.StatusCode)
	}
	if !strings.Contains(string(body), "QR Code Reader") {
		t.Error("index page should carry the window title")
	}
}

func TestServer_WebSocketRequiresUpgrade(t *testing.T) {
	s := newTestServer()

	resp, _ := get(t, s, "/ws/frames")
	if resp.StatusCode != http.StatusUpgradeRequired {
		t.Errorf("plain GET on /ws/frames: got %d, want 426", resp.StatusCode)
	}
}
