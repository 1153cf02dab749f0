package auth

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/pocketbank/pocketbank/internal/identity"
)

// Handler exposes auth endpoints for login/refresh/logout.
type Handler struct {
	svc    *Service
	logger *slog.Logger
}

// NewHandler builds the auth HTTP handler.
func NewHandler(svc *Service, logger *slog.Logger) *Handler {
	return &Handler{svc: svc, logger: logger}
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type loginResponse struct {
	Message      string `json:"message"`
	Token        string `json:"token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int64  `json:"expires_in"`
	UserID       string `json:"user_id"`
}

// Login validates credentials and returns a token pair.
func (h *Handler) Login(c *fiber.Ctx) error {
	var req loginRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid request body")
	}
	user, pair, err := h.svc.Login(c.UserContext(), identity.Credentials{Username: req.Username, Password: req.Password})
	switch {
	case errors.Is(err, identity.ErrMissingCredentials), errors.Is(err, identity.ErrInvalidCredentials):
		h.logger.InfoContext(c.UserContext(), "auth.login rejected", slog.String("username", req.Username))
		return fiber.NewError(http.StatusBadRequest, err.Error())
	case err != nil:
		h.logger.ErrorContext(c.UserContext(), "auth.login failed", slog.Any("error", err))
		return fiber.NewError(http.StatusInternalServerError, "database error")
	}
	h.logger.InfoContext(c.UserContext(), "auth.login completed", slog.String("user_id", user.ID))
	return c.Status(http.StatusOK).JSON(loginResponse{
		Message:      "Login successful",
		Token:        pair.AccessToken,
		RefreshToken: pair.RefreshToken,
		ExpiresIn:    pair.ExpiresIn,
		UserID:       user.ID,
	})
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

// Refresh issues a new access token using a valid refresh token.
func (h *Handler) Refresh(c *fiber.Ctx) error {
	var req refreshRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid request body")
	}
	token, exp, err := h.svc.Refresh(c.UserContext(), req.RefreshToken)
	switch {
	case errors.Is(err, ErrInvalidToken), errors.Is(err, ErrTokenRevoked):
		return fiber.NewError(http.StatusUnauthorized, err.Error())
	case err != nil:
		h.logger.ErrorContext(c.UserContext(), "auth.refresh failed", slog.Any("error", err))
		return fiber.NewError(http.StatusInternalServerError, "database error")
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{"token": token, "expires_in": exp})
}

// Logout invalidates the caller's existing tokens by bumping the token version.
func (h *Handler) Logout(c *fiber.Ctx) error {
	uid, _ := c.Locals("user_id").(string)
	if uid == "" {
		return fiber.NewError(http.StatusUnauthorized, "unauthorized")
	}
	if err := h.svc.Logout(c.UserContext(), uid); err != nil {
		h.logger.ErrorContext(c.UserContext(), "auth.logout failed", slog.String("user_id", uid), slog.Any("error", err))
		return fiber.NewError(http.StatusInternalServerError, "database error")
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{"message": "Logged out"})
}
