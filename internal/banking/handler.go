package banking

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gofiber/fiber/v2"
)

// retryAfterSeconds is advertised when an account stayed locked past the retries.
const retryAfterSeconds = 1

// Handler exposes account and money movement endpoints.
type Handler struct {
	service *Service
}

// NewHandler builds a banking HTTP handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// CreateAccount opens a new account for the authenticated user.
func (h *Handler) CreateAccount(c *fiber.Ctx) error {
	account, err := h.service.CreateAccount(c.UserContext(), callerID(c))
	if err != nil {
		return h.fail(c, err)
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{
		"message":       "Account created successfully",
		"accountNumber": account.Number,
	})
}

// ListAccounts returns the accounts owned by the authenticated user.
func (h *Handler) ListAccounts(c *fiber.Ctx) error {
	accounts, err := h.service.ListAccounts(c.UserContext(), callerID(c))
	if err != nil {
		return h.fail(c, err)
	}
	out := make([]AccountResponse, 0, len(accounts))
	for _, a := range accounts {
		out = append(out, toAccountResponse(a))
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{"accounts": out})
}

// Deposit credits an account owned by the caller.
func (h *Handler) Deposit(c *fiber.Ctx) error {
	var req MovementRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid request body")
	}
	balance, err := h.service.Deposit(c.UserContext(), MovementInput{
		AccountNumber: req.AccountNumber,
		Amount:        req.Amount,
		CallerID:      callerID(c),
	})
	if err != nil {
		return h.fail(c, err)
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{
		"message": "Deposit successful",
		"balance": balance.Amount.StringFixed(2),
	})
}

// Withdraw debits an account owned by the caller.
func (h *Handler) Withdraw(c *fiber.Ctx) error {
	var req MovementRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid request body")
	}
	balance, err := h.service.Withdraw(c.UserContext(), MovementInput{
		AccountNumber: req.AccountNumber,
		Amount:        req.Amount,
		CallerID:      callerID(c),
	})
	if err != nil {
		return h.fail(c, err)
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{
		"message": "Withdrawal successful",
		"balance": balance.Amount.StringFixed(2),
	})
}

// Transfer moves funds from an account owned by the caller to another account.
func (h *Handler) Transfer(c *fiber.Ctx) error {
	var req TransferRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid request body")
	}
	balance, err := h.service.Transfer(c.UserContext(), TransferInput{
		SourceAccountNumber: req.AccountNumber,
		TargetAccountNumber: req.TargetAccountNumber,
		Amount:              req.Amount,
		CallerID:            callerID(c),
	})
	if err != nil {
		return h.fail(c, err)
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{
		"message": "Transfer successful",
		"balance": balance.Amount.StringFixed(2),
	})
}

// ListTransactions returns the ledger of one account owned by the caller.
func (h *Handler) ListTransactions(c *fiber.Ctx) error {
	entries, err := h.service.ListTransactions(c.UserContext(), c.Params("accountNumber"), callerID(c))
	if err != nil {
		return h.fail(c, err)
	}
	out := make([]TransactionResponse, 0, len(entries))
	for _, e := range entries {
		out = append(out, toTransactionResponse(e))
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{"transactions": out})
}

// fail maps engine errors onto HTTP statuses. Persistence causes stay in the logs.
func (h *Handler) fail(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, ErrAccountNotFound):
		return fiber.NewError(http.StatusNotFound, ErrAccountNotFound.Error())
	case errors.Is(err, ErrAccessDenied):
		return fiber.NewError(http.StatusForbidden, ErrAccessDenied.Error())
	case errors.Is(err, ErrInvalidAmount),
		errors.Is(err, ErrInsufficientFundsOrUnauthorized),
		errors.Is(err, ErrTargetAccountNotFound),
		errors.Is(err, ErrSameAccount),
		errors.Is(err, ErrBalanceLimitExceeded):
		return fiber.NewError(http.StatusBadRequest, err.Error())
	case errors.Is(err, ErrTransientConflict):
		c.Set(fiber.HeaderRetryAfter, strconv.Itoa(retryAfterSeconds))
		return fiber.NewError(http.StatusServiceUnavailable, ErrTransientConflict.Error())
	default:
		return fiber.NewError(http.StatusInternalServerError, ErrPersistence.Error())
	}
}

func callerID(c *fiber.Ctx) string {
	uid, _ := c.Locals("user_id").(string)
	return uid
}
