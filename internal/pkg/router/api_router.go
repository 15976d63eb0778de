package router

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"

	"github.com/quillsign/quillsign/app/controllers"
)

type ApiRouter struct {
}

func (h ApiRouter) InstallRouter(app *fiber.App) {
	// Provider callbacks authenticate by signature and must not share
	// the interactive limiter, so this route is registered ahead of the
	// /api group middleware.
	app.Post("/api/v1/webhooks/payment", controllers.HandlePaymentWebhook)

	api := app.Group("/api", limiter.New())
	api.Get("/", func(ctx *fiber.Ctx) error {
		return ctx.Status(fiber.StatusOK).JSON(fiber.Map{
			"message": "quillsign api",
		})
	})

	v1 := api.Group("/v1")

	contracts := v1.Group("/contracts")
	contracts.Post("/", controllers.HandleContractCreate)
	contracts.Get("/", controllers.HandleContractList)
	contracts.Get("/:id", controllers.HandleContractGet)
	contracts.Put("/:id", controllers.HandleContractUpdate)
	contracts.Post("/:id/send", controllers.HandleContractSend)
	contracts.Post("/:id/void", controllers.HandleContractVoid)
	contracts.Post("/:id/finalize", controllers.HandleContractFinalize)
}

func NewApiRouter() *ApiRouter {
	return &ApiRouter{}
}
