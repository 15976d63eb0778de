package router

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"

	"github.com/quillsign/quillsign/app/controllers"
)

type HttpRouter struct {
}

// InstallRouter registers the public, token-gated signing routes. A
// rate limiter sits in front so signing links cannot be brute forced.
func (h HttpRouter) InstallRouter(app *fiber.App) {
	sign := app.Group("/sign", limiter.New(limiter.Config{
		Max: 30,
	}))

	sign.Get("/payment/success", controllers.HandlePaymentSuccess)
	sign.Get("/payment/cancelled", controllers.HandlePaymentCancelled)

	sign.Get("/:token", controllers.HandleSignView)
	sign.Post("/:token", controllers.HandleSignSubmit)
	sign.Post("/:token/checkout", controllers.HandleSignCheckout)
}

func NewHttpRouter() *HttpRouter {
	return &HttpRouter{}
}
