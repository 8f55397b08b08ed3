package stream

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
)

// RegisterRoutes exposes one websocket endpoint per state category, e.g.
// /stream/ws/ride-1/safety. The subscriber receives the current value first.
func RegisterRoutes(r fiber.Router, hub *Hub) {
	r.Get("/ws/:rideID/:category", websocket.New(func(c *websocket.Conn) {
		var topic string
		switch c.Params("category") {
		case "session":
			topic = SessionTopic(c.Params("rideID"))
		case "safety":
			topic = SafetyTopic(c.Params("rideID"))
		case "escalation":
			topic = EscalationTopic(c.Params("rideID"))
		default:
			_ = c.Close()
			return
		}

		client := hub.Subscribe(topic)

		writerDone := make(chan struct{})
		go func() {
			defer close(writerDone)
			for {
				select {
				case msg := <-client.Send:
					if err := c.WriteMessage(websocket.TextMessage, msg); err != nil {
						return
					}
				case <-client.Done():
					return
				}
			}
		}()

		for {
			if _, _, err := c.ReadMessage(); err != nil {
				break
			}
		}
		hub.Unsubscribe(client)
		<-writerDone
	}))
}
