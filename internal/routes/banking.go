package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/pocketbank/pocketbank/internal/banking"
)

// RegisterBankingRoutes wires account and money movement endpoints.
func RegisterBankingRoutes(r fiber.Router, h *banking.Handler) {
	r.Post("/account", h.CreateAccount)
	r.Get("/accounts", h.ListAccounts)
	r.Post("/account/deposit", h.Deposit)
	r.Post("/account/withdraw", h.Withdraw)
	r.Post("/account/transfer", h.Transfer)
	r.Get("/account/:accountNumber/transactions", h.ListTransactions)
}
