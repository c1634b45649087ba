package hub

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/gofiber/websocket/v2"
)

type written struct {
	kind int
	data []byte
}

// fakeConn records writes and blocks reads until closed
type fakeConn struct {
	mu     sync.Mutex
	writes []written
	closed chan struct{}
	once   sync.Once
}

func newFakeConn() *fakeConn {
	return &fakeConn{closed: make(chan struct{})}
}

func (f *fakeConn) SetReadLimit(int64)                        {}
func (f *fakeConn) SetReadDeadline(time.Time) error           { return nil }
func (f *fakeConn) SetWriteDeadline(time.Time) error          { return nil }
func (f *fakeConn) SetPongHandler(func(appData string) error) {}

func (f *fakeConn) ReadMessage() (int, []byte, error) {
	<-f.closed
	return 0, nil, errors.New("closed")
}

func (f *fakeConn) WriteMessage(kind int, data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.writes = append(f.writes, written{kind, data})
	return nil
}

func (f *fakeConn) Close() error {
	f.once.Do(func() { close(f.closed) })
	return nil
}

func (f *fakeConn) snapshot() []written {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]written(nil), f.writes...)
}

// eventually polls cond for up to a second
func eventually(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func TestHub_BroadcastReachesClient(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	h := New("test")
	go h.Run(ctx)
	eventually(t, "hub running", h.IsRunning)

	conn := newFakeConn()
	initial, err := NewJSONMessage(map[string]int{"frame": 0})
	if err != nil {
		t.Fatalf("NewJSONMessage: %v", err)
	}
	go Serve(h, conn, initial)
	eventually(t, "client registered", func() bool { return h.ClientCount() == 1 })

	if err := h.BroadcastJSON(map[string]bool{"detected": true}); err != nil {
		t.Fatalf("BroadcastJSON: %v", err)
	}
	h.BroadcastBinary([]byte{0xff, 0xd8})

	eventually(t, "three writes", func() bool { return len(conn.snapshot()) >= 3 })

	w := conn.snapshot()
	if string(w[0].data) != `{"frame":0}` || w[0].kind != websocket.TextMessage {
		t.Errorf("initial message: got %d %q", w[0].kind, w[0].data)
	}
	if string(w[1].data) != `{"detected":true}` {
		t.Errorf("json broadcast: got %q", w[1].data)
	}
	if w[2].kind != websocket.BinaryMessage || len(w[2].data) != 2 {
		t.Errorf("binary broadcast: got %d %v", w[2].kind, w[2].data)
	}

	conn.Close()
	eventually(t, "client unregistered", func() bool { return h.ClientCount() == 0 })
}

func TestHub_StopClosesClients(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	h := New("stop")
	go h.Run(ctx)

	conn := newFakeConn()
	done := make(chan struct{})
	go func() {
		Serve(h, conn)
		close(done)
	}()
	eventually(t, "client registered", func() bool { return h.ClientCount() == 1 })

	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("client did not exit after hub stopped")
	}
	if h.IsRunning() {
		t.Error("hub should report stopped")
	}
}

func TestHub_BroadcastNeverBlocks(t *testing.T) {
	h := New("idle") // Run is never started

	for i := 0; i < 200; i++ {
		h.BroadcastBinary([]byte{byte(i)})
	}

	if h.Dropped() == 0 {
		t.Error("expected messages to be dropped once the queue filled")
	}
}

func TestNewJSONMessage_Error(t *testing.T) {
	if _, err := NewJSONMessage(make(chan int)); err == nil {
		t.Error("NewJSONMessage: expected error for unencodable value")
	}
}
