package httpapi

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
)

func Router(h *Handlers) *fiber.App {
	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
		AppName:               "ledger-engine",
	})
	app.Use(cors.New())

	app.Get("/healthz", h.Healthz)

	v1 := app.Group("/v1")
	v1.Post("/accounts", h.OpenAccount)
	v1.Get("/accounts/:id", h.GetAccount)
	v1.Post("/accounts/:id/close", h.CloseAccount)
	v1.Get("/accounts/:id/statement", h.Statement)
	v1.Post("/transfers", h.Transfer)
	v1.Post("/deposits", h.Deposit)
	v1.Post("/withdrawals", h.Withdraw)

	return app
}
