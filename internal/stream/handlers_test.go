package stream

import (
	"context"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gorilla/websocket"
)

func passThrough(c *fiber.Ctx) error { return c.Next() }

func serve(t *testing.T, hub *Hub, authorize Authorize) string {
	t.Helper()
	app := fiber.New()
	RegisterRoutes(app.Group("/stream"), hub, passThrough, authorize)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen error: %v", err)
	}
	go func() {
		_ = app.Listener(ln)
	}()
	t.Cleanup(func() { _ = app.Shutdown() })
	return "ws://" + ln.Addr().String()
}

func waitForClient(t *testing.T, hub *Hub, sessionID string) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		hub.mu.RLock()
		n := len(hub.clients[sessionID])
		hub.mu.RUnlock()
		if n > 0 {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("client for %s never registered", sessionID)
}

func TestStreamHandlersUpgradeRequired(t *testing.T) {
	app := fiber.New()
	RegisterRoutes(app.Group("/stream"), NewHub(nil, nil), passThrough, nil)

	req := httptest.NewRequest(http.MethodGet, "/stream/ws/session-1", nil)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("request error: %v", err)
	}
	if resp.StatusCode != http.StatusUpgradeRequired {
		t.Fatalf("expected 426, got %d", resp.StatusCode)
	}
}

func TestStreamHandlersWebsocketPublish(t *testing.T) {
	hub := NewHub(nil, nil)
	base := serve(t, hub, nil)

	conn, _, err := websocket.DefaultDialer.Dial(base+"/stream/ws/session-1", nil)
	if err != nil {
		t.Fatalf("dial error: %v", err)
	}
	defer conn.Close()
	waitForClient(t, hub, "session-1")

	_ = hub.Publish(context.Background(), "session-1", []byte("hello"))
	_ = conn.SetReadDeadline(time.Now().Add(time.Second))
	_, msg, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read error: %v", err)
	}
	if string(msg) != "hello" {
		t.Fatalf("unexpected message %q", msg)
	}
}

func TestStreamHandlersForbidden(t *testing.T) {
	hub := NewHub(nil, nil)
	base := serve(t, hub, func(_ *fiber.Ctx, sessionID string) bool { return sessionID == "mine" })

	_, resp, err := websocket.DefaultDialer.Dial(base+"/stream/ws/theirs", nil)
	if err == nil {
		t.Fatalf("expected dial to be rejected")
	}
	if resp == nil || resp.StatusCode != http.StatusForbidden {
		t.Fatalf("expected 403 response")
	}
}

func TestStreamHandlersCloseUnregisters(t *testing.T) {
	hub := NewHub(nil, nil)
	base := serve(t, hub, nil)

	conn, _, err := websocket.DefaultDialer.Dial(base+"/stream/ws/session-3", nil)
	if err != nil {
		t.Fatalf("dial error: %v", err)
	}
	waitForClient(t, hub, "session-3")
	_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, "bye"))
	conn.Close()

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		hub.mu.RLock()
		n := len(hub.clients["session-3"])
		hub.mu.RUnlock()
		if n == 0 {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("client was not unregistered after close")
}
