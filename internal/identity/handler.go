package identity

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gofiber/fiber/v2"
)

// Handler exposes identity endpoints.
type Handler struct {
	service *Service
	logger  *slog.Logger
}

// NewHandler constructs an identity HTTP handler.
func NewHandler(service *Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

type registerRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// Register handles user onboarding.
func (h *Handler) Register(c *fiber.Ctx) error {
	var req registerRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid request body")
	}
	user, err := h.service.Register(c.UserContext(), Credentials{Username: req.Username, Password: req.Password})
	switch {
	case errors.Is(err, ErrMissingCredentials), errors.Is(err, ErrUserExists):
		return fiber.NewError(http.StatusBadRequest, err.Error())
	case err != nil:
		h.logger.ErrorContext(c.UserContext(), "identity.register failed", slog.Any("error", err))
		return fiber.NewError(http.StatusInternalServerError, "database error")
	}
	h.logger.InfoContext(c.UserContext(), "identity.register completed",
		slog.String("user_id", user.ID),
		slog.String("username", user.Username),
	)
	return c.Status(http.StatusCreated).JSON(fiber.Map{
		"message": "User registered successfully.",
		"user_id": user.ID,
	})
}
