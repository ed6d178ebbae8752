package middleware

import (
	"github.com/gofiber/fiber/v2"
)

// HeaderNetworkStatus carries "online" or "offline" on every response.
const HeaderNetworkStatus = "X-Network-Status"

// OnlineReporter reports the current connectivity state.
type OnlineReporter interface {
	Online() bool
}

// NetworkStatus is a Fiber middleware exposing the connectivity state to handlers
// (c.Locals("online")) and to the client (X-Network-Status header).
func NetworkStatus(monitor OnlineReporter) fiber.Handler {
	return func(c *fiber.Ctx) error {
		online := monitor.Online()
		c.Locals("online", online)

		status := "online"
		if !online {
			status = "offline"
		}
		c.Set(HeaderNetworkStatus, status)

		return c.Next()
	}
}
