package routes

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/pocketbank/pocketbank/internal/banking"
	"github.com/pocketbank/pocketbank/internal/identity"
)

// RegisterMeRoute exposes the current user's profile and accounts.
func RegisterMeRoute(r fiber.Router, ids *identity.Service, accounts *banking.Service) {
	r.Get("/me", func(c *fiber.Ctx) error {
		uid, _ := c.Locals("user_id").(string)
		if uid == "" {
			return fiber.NewError(http.StatusUnauthorized, "unauthorized")
		}
		user, err := ids.Profile(c.UserContext(), uid)
		if err != nil {
			return fiber.NewError(http.StatusNotFound, "user not found")
		}
		owned, err := accounts.ListAccounts(c.UserContext(), uid)
		if err != nil {
			return fiber.NewError(http.StatusInternalServerError, banking.ErrPersistence.Error())
		}
		list := make([]fiber.Map, 0, len(owned))
		total := banking.SumBalances(owned)
		for _, a := range owned {
			list = append(list, fiber.Map{
				"account_number": a.Number,
				"balance":        a.Balance.StringFixed(2),
				"created_at":     a.CreatedAt,
			})
		}
		return c.Status(http.StatusOK).JSON(fiber.Map{
			"user": fiber.Map{
				"id":            user.ID,
				"username":      user.Username,
				"token_version": user.TokenVersion,
				"created_at":    user.CreatedAt,
			},
			"accounts":      list,
			"total_balance": total.StringFixed(2),
		})
	})
}
