package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/pocketbank/pocketbank/internal/auth"
)

// RegisterAuthRoutes wires authentication endpoints. Login keeps its legacy
// top-level path.
func RegisterAuthRoutes(r fiber.Router, h *auth.Handler, rateLimiter, jwtmw fiber.Handler) {
	if rateLimiter != nil {
		r.Post("/login", rateLimiter, h.Login)
	} else {
		r.Post("/login", h.Login)
	}
	group := r.Group("/auth")
	group.Post("/refresh", h.Refresh)
	group.Post("/logout", jwtmw, h.Logout)
}
