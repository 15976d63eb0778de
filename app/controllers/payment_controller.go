package controllers

import (
	"os"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"

	"github.com/quillsign/quillsign/internal/pkg/payments"
)

const webhookSignatureHeader = "X-Webhook-Signature"

// HandlePaymentWebhook receives checkout notifications from the payment
// provider. Verification runs over the raw body before any decoding;
// reconciliation itself is idempotent, so redelivered events are safe.
func HandlePaymentWebhook(c *fiber.Ctx) error {
	secret := os.Getenv("WEBHOOK_SIGNING_SECRET")
	if secret == "" {
		log.Error("[Webhook] WEBHOOK_SIGNING_SECRET is not configured")
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"error": "webhook endpoint not configured",
		})
	}

	body := c.Body()
	if !payments.VerifyWebhookSignature(body, c.Get(webhookSignatureHeader), secret, time.Now()) {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": "invalid webhook signature",
		})
	}

	notice, err := payments.ParseWebhook(body)
	if err != nil {
		// Malformed payloads will not get better on redelivery.
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	if err := getServices().Payments.ReconcileWebhook(c.Context(), notice); err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"received": true})
}
