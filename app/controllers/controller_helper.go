package controllers

import (
	"errors"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/quillsign/quillsign/internal/pkg/contractflow"
	"github.com/quillsign/quillsign/internal/pkg/finalize"
	"github.com/quillsign/quillsign/internal/pkg/payments"
	"github.com/quillsign/quillsign/internal/pkg/signing"
)

// Services holds the wired lifecycle services the handlers dispatch to.
type Services struct {
	Flow     *contractflow.Service
	Payments *payments.Service
	Finalize *finalize.Service
}

var (
	services     *Services
	servicesOnce sync.Once
	validate     = validator.New()
)

// InitControllers wires the handler package once at startup.
func InitControllers(s *Services) {
	servicesOnce.Do(func() {
		services = s
	})
}

func getServices() *Services {
	if services == nil {
		panic("Controllers not initialized. Call InitControllers first.")
	}
	return services
}

// respondError maps domain errors onto HTTP statuses. Signing-link
// failures stay distinguishable because the remedy differs: an invalid
// token is a dead end, an expired one can be re-issued by re-sending.
func respondError(c *fiber.Ctx, err error) error {
	status := fiber.StatusInternalServerError
	switch {
	case errors.Is(err, contractflow.ErrNotFound):
		status = fiber.StatusNotFound
	case errors.Is(err, signing.ErrTokenInvalid):
		status = fiber.StatusUnauthorized
	case errors.Is(err, signing.ErrTokenExpired):
		status = fiber.StatusGone
	case errors.Is(err, contractflow.ErrInvalidTransition),
		errors.Is(err, contractflow.ErrContractLocked),
		errors.Is(err, contractflow.ErrPreconditionFailed):
		status = fiber.StatusConflict
	case errors.Is(err, contractflow.ErrNothingToPay):
		status = fiber.StatusUnprocessableEntity
	case errors.Is(err, contractflow.ErrAmountMismatch):
		status = fiber.StatusBadRequest
	}
	return c.Status(status).JSON(fiber.Map{
		"error": err.Error(),
	})
}

func validationError(c *fiber.Ctx, err error) error {
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
		"error": err.Error(),
	})
}
