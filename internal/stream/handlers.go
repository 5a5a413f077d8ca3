package stream

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
)

// Authorize reports whether the authenticated request may listen on
// sessionID.
type Authorize func(c *fiber.Ctx, sessionID string) bool

func RegisterRoutes(r fiber.Router, hub *Hub, authMiddleware fiber.Handler, authorize Authorize) {
	r.Get("/ws/:sessionID", authMiddleware, func(c *fiber.Ctx) error {
		if !websocket.IsWebSocketUpgrade(c) {
			return fiber.ErrUpgradeRequired
		}
		if authorize != nil && !authorize(c, c.Params("sessionID")) {
			return fiber.NewError(fiber.StatusForbidden, "session not allowed")
		}
		return c.Next()
	}, websocket.New(func(c *websocket.Conn) {
		client := hub.Register(c.Params("sessionID"))

		done := make(chan struct{})
		go func() {
			defer close(done)
			for msg := range client.Send {
				if err := c.WriteMessage(websocket.TextMessage, msg); err != nil {
					return
				}
			}
		}()

		// clients only listen; reads just detect the close
		for {
			if _, _, err := c.ReadMessage(); err != nil {
				break
			}
		}
		hub.Unregister(client)
		<-done
	}))
}
