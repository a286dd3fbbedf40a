package middleware

import (
	"github.com/gofiber/fiber/v2"

	"tokostore/internal/models"
)

// HeaderGuestToken carries the guest cart credential.
const HeaderGuestToken = "X-Guest-Token"

// CartOwnerFrom resolves whose cart a request addresses: the authenticated
// user when there is one, else the guest token header, else nobody.
func CartOwnerFrom(c *fiber.Ctx) models.CartOwner {
	if caller := CallerFrom(c); caller.Authenticated() {
		return models.UserOwner(caller.UserID)
	}
	if token := c.Get(HeaderGuestToken); token != "" {
		return models.GuestOwner(token)
	}
	return models.CartOwner{}
}

// GuestTokenFrom returns the raw guest token header, if any.
func GuestTokenFrom(c *fiber.Ctx) string {
	return c.Get(HeaderGuestToken)
}
