// Package httpapi is the thin HTTP adapter over the ledger engine: request
// shaping, error mapping and nothing else. Business invariants live in the
// engine, which re-validates them regardless of what arrives here.
package httpapi

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"ledger-engine/internal/domain"
	"ledger-engine/internal/ledger"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const requestTimeout = 5 * time.Second

type Handlers struct {
	Engine     *ledger.Engine
	Statements *ledger.StatementGenerator
}

func NewHandlers(engine *ledger.Engine, statements *ledger.StatementGenerator) *Handlers {
	return &Handlers{Engine: engine, Statements: statements}
}

func statusForErr(err error) int {
	switch {
	case err == nil:
		return fiber.StatusOK
	case errors.Is(err, domain.ErrValidation):
		return fiber.StatusBadRequest
	case errors.Is(err, domain.ErrNotFound):
		return fiber.StatusNotFound
	case errors.Is(err, domain.ErrIdempotencyConflict),
		errors.Is(err, domain.ErrTransactionInFlight),
		errors.Is(err, domain.ErrDuplicateTransaction):
		return fiber.StatusConflict
	case errors.Is(err, domain.ErrInsufficientFunds),
		errors.Is(err, domain.ErrCurrencyMismatch),
		errors.Is(err, domain.ErrAccountNotActive),
		errors.Is(err, domain.ErrAccountNotEmpty),
		errors.Is(err, domain.ErrPendingTransactions):
		return fiber.StatusUnprocessableEntity
	case errors.Is(err, context.DeadlineExceeded):
		return fiber.StatusGatewayTimeout
	case errors.Is(err, context.Canceled):
		return fiber.StatusRequestTimeout
	default:
		return fiber.StatusInternalServerError
	}
}

func errJSON(c *fiber.Ctx, err error) error {
	code := statusForErr(err)
	msg := err.Error()
	if code >= 500 {
		// Don't leak internals on 5xx.
		slog.Error("request failed", "path", c.Path(), "error", err)
		msg = "internal error"
	}
	return c.Status(code).JSON(fiber.Map{"error": msg})
}

func (h *Handlers) Healthz(c *fiber.Ctx) error {
	return c.SendString("ok")
}

type openAccountRequest struct {
	UserID         string `json:"user_id"`
	Type           string `json:"type"`
	Currency       string `json:"currency"`
	OpeningBalance string `json:"opening_balance"`
}

func (h *Handlers) OpenAccount(c *fiber.Ctx) error {
	var req openAccountRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
	}

	userID, err := uuid.Parse(req.UserID)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid user id"})
	}
	opening := decimal.Zero
	if req.OpeningBalance != "" {
		if opening, err = decimal.NewFromString(req.OpeningBalance); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid opening balance"})
		}
	}

	ctx, cancel := context.WithTimeout(c.UserContext(), requestTimeout)
	defer cancel()

	acc, err := h.Engine.OpenAccount(ctx, ledger.OpenAccountParams{
		UserID:         userID,
		Type:           domain.AccountType(req.Type),
		Currency:       req.Currency,
		OpeningBalance: opening,
	})
	if err != nil {
		return errJSON(c, err)
	}

	slog.Info("account opened", "account_id", acc.ID, "number", acc.Number, "currency", acc.Currency)
	return c.Status(fiber.StatusCreated).JSON(acc)
}

func (h *Handlers) GetAccount(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid account id"})
	}

	ctx, cancel := context.WithTimeout(c.UserContext(), requestTimeout)
	defer cancel()

	acc, err := h.Engine.GetAccount(ctx, id)
	if err != nil {
		return errJSON(c, err)
	}
	return c.JSON(acc)
}

func (h *Handlers) CloseAccount(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid account id"})
	}

	ctx, cancel := context.WithTimeout(c.UserContext(), requestTimeout)
	defer cancel()

	acc, err := h.Engine.CloseAccount(ctx, id)
	if err != nil {
		return errJSON(c, err)
	}

	slog.Info("account closed", "account_id", acc.ID)
	return c.JSON(acc)
}

type transferRequest struct {
	TransactionNumber string `json:"transaction_number"`
	FromAccountID     string `json:"from_account_id"`
	ToAccountNumber   string `json:"to_account_number"`
	Amount            string `json:"amount"`
	Description       string `json:"description"`
}

func (h *Handlers) Transfer(c *fiber.Ctx) error {
	var req transferRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
	}

	fromID, err := uuid.Parse(req.FromAccountID)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid source account id"})
	}
	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid amount"})
	}

	ctx, cancel := context.WithTimeout(c.UserContext(), requestTimeout)
	defer cancel()

	rec, err := h.Engine.Transfer(ctx, ledger.TransferParams{
		Number:          req.TransactionNumber,
		FromAccountID:   fromID,
		ToAccountNumber: req.ToAccountNumber,
		Amount:          amount,
		Description:     req.Description,
	})
	if err != nil {
		return errJSON(c, err)
	}
	return writeOutcome(c, rec)
}

type depositRequest struct {
	TransactionNumber string `json:"transaction_number"`
	AccountNumber     string `json:"account_number"`
	Amount            string `json:"amount"`
	Description       string `json:"description"`
}

func (h *Handlers) Deposit(c *fiber.Ctx) error {
	var req depositRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
	}
	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid amount"})
	}

	ctx, cancel := context.WithTimeout(c.UserContext(), requestTimeout)
	defer cancel()

	rec, err := h.Engine.Deposit(ctx, ledger.DepositParams{
		Number:        req.TransactionNumber,
		AccountNumber: req.AccountNumber,
		Amount:        amount,
		Description:   req.Description,
	})
	if err != nil {
		return errJSON(c, err)
	}
	return writeOutcome(c, rec)
}

type withdrawRequest struct {
	TransactionNumber string `json:"transaction_number"`
	AccountID         string `json:"account_id"`
	Amount            string `json:"amount"`
	Description       string `json:"description"`
}

func (h *Handlers) Withdraw(c *fiber.Ctx) error {
	var req withdrawRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
	}
	accountID, err := uuid.Parse(req.AccountID)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid account id"})
	}
	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid amount"})
	}

	ctx, cancel := context.WithTimeout(c.UserContext(), requestTimeout)
	defer cancel()

	rec, err := h.Engine.Withdraw(ctx, ledger.WithdrawParams{
		Number:      req.TransactionNumber,
		AccountID:   accountID,
		Amount:      amount,
		Description: req.Description,
	})
	if err != nil {
		return errJSON(c, err)
	}
	return writeOutcome(c, rec)
}

// GET /v1/accounts/{id}/statement?start=2025-01-01&end=2025-01-31
func (h *Handlers) Statement(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid account id"})
	}
	start, err := parseDay(c.Query("start"), false)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid start date"})
	}
	end, err := parseDay(c.Query("end"), true)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid end date"})
	}

	ctx, cancel := context.WithTimeout(c.UserContext(), requestTimeout)
	defer cancel()

	st, err := h.Statements.Generate(ctx, id, start, end)
	if err != nil {
		return errJSON(c, err)
	}
	return c.JSON(st)
}

// writeOutcome maps a terminal transaction record to a response: 201 for a
// completed movement, 422 for a recorded failure or cancellation. The record
// is returned either way; the terminal state is the answer.
func writeOutcome(c *fiber.Ctx, rec domain.Transaction) error {
	if rec.Status == domain.TransactionStatusCompleted {
		return c.Status(fiber.StatusCreated).JSON(rec)
	}
	slog.Warn("transaction not completed",
		"tx_number", rec.Number, "status", rec.Status, "reason", rec.FailureReason)
	return c.Status(fiber.StatusUnprocessableEntity).JSON(rec)
}

// parseDay accepts a date (whole-day semantics) or a full RFC 3339 instant.
// Dates used as range ends extend to the last instant of that day.
func parseDay(s string, endOfDay bool) (time.Time, error) {
	if t, err := time.Parse(time.DateOnly, s); err == nil {
		if endOfDay {
			t = t.Add(24*time.Hour - time.Nanosecond)
		}
		return t, nil
	}
	return time.Parse(time.RFC3339, s)
}
