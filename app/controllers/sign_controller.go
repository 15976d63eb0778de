package controllers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/quillsign/quillsign/app/models"
	"github.com/quillsign/quillsign/app/repository"
	"github.com/quillsign/quillsign/internal/pkg/contractflow"
)

// signViewResponse is what the public signing page renders from. The
// content hash is echoed back on submit so the service can verify the
// client signed exactly what was shown.
type signViewResponse struct {
	UUID         string      `json:"uuid"`
	Title        string      `json:"title"`
	Content      string      `json:"content"`
	ContentHash  string      `json:"content_hash"`
	FieldValues  models.JSON `json:"field_values"`
	DepositCents int64       `json:"deposit_cents"`
	TotalCents   int64       `json:"total_cents"`
	Status       string      `json:"status"`
}

// HandleSignView resolves a signing link without consuming the token.
func HandleSignView(c *fiber.Ctx) error {
	contract, err := getServices().Flow.Peek(c.Context(), c.Params("token"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(signViewResponse{
		UUID:         contract.UUID,
		Title:        contract.Title,
		Content:      contract.Content,
		ContentHash:  models.HashContent(contract.Content),
		FieldValues:  contract.FieldValues,
		DepositCents: contract.DepositCents,
		TotalCents:   contract.TotalCents,
		Status:       contract.Status,
	})
}

type signSubmitRequest struct {
	SignerName  string `json:"signer_name" validate:"required,min=2,max=255"`
	ImageKey    string `json:"image_key" validate:"omitempty,max=512"`
	ContentHash string `json:"content_hash" validate:"required"`
}

// HandleSignSubmit records the client signature and moves the contract
// to signed.
func HandleSignSubmit(c *fiber.Ctx) error {
	var req signSubmitRequest
	if err := c.BodyParser(&req); err != nil {
		return validationError(c, err)
	}
	if err := validate.Struct(&req); err != nil {
		return validationError(c, err)
	}

	svc := getServices()
	contract, err := svc.Flow.Sign(c.Context(), c.Params("token"), contractflow.SignatureSubmission{
		SignerName:  req.SignerName,
		ImageKey:    req.ImageKey,
		ContentHash: req.ContentHash,
		IPAddress:   c.IP(),
		UserAgent:   c.Get("User-Agent"),
	})
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{
		"uuid":      contract.UUID,
		"status":    contract.Status,
		"signed_at": contract.SignedAt,
	})
}

type checkoutRequest struct {
	Kind string `json:"kind" validate:"required,oneof=deposit remaining_balance"`
}

// HandleSignCheckout starts a hosted checkout for the client behind a
// still-valid signing link.
func HandleSignCheckout(c *fiber.Ctx) error {
	var req checkoutRequest
	if err := c.BodyParser(&req); err != nil {
		return validationError(c, err)
	}
	if err := validate.Struct(&req); err != nil {
		return validationError(c, err)
	}

	svc := getServices()
	contract, err := svc.Flow.Peek(c.Context(), c.Params("token"))
	if err != nil {
		return respondError(c, err)
	}
	client, err := repository.GetGlobalRepositories().Party.GetClient(contract.ClientID)
	if err != nil {
		return respondError(c, err)
	}

	session, err := svc.Payments.CreateCheckout(c.Context(), contract.ID, client.Email, req.Kind)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{
		"session_id":   session.SessionID,
		"redirect_url": session.RedirectURL,
	})
}

// HandlePaymentSuccess is the checkout return page.
func HandlePaymentSuccess(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status":     "success",
		"session_id": c.Query("session_id"),
	})
}

// HandlePaymentCancelled is the checkout abort page.
func HandlePaymentCancelled(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status": "cancelled",
	})
}
