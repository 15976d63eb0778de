package controllers

import (
	"errors"
	"fmt"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"github.com/quillsign/quillsign/app/models"
	"github.com/quillsign/quillsign/app/repository"
	"github.com/quillsign/quillsign/internal/pkg/contractflow"
)

type createContractRequest struct {
	CompanyID    uint        `json:"company_id" validate:"required"`
	ContractorID uint        `json:"contractor_id" validate:"required"`
	ClientID     uint        `json:"client_id" validate:"required"`
	TemplateID   *uint       `json:"template_id"`
	Title        string      `json:"title" validate:"required,max=255"`
	Content      string      `json:"content" validate:"required"`
	FieldValues  models.JSON `json:"field_values"`
	DepositCents int64       `json:"deposit_cents" validate:"gte=0"`
	TotalCents   int64       `json:"total_cents" validate:"gte=0"`
}

// HandleContractCreate creates a new draft contract.
func HandleContractCreate(c *fiber.Ctx) error {
	var req createContractRequest
	if err := c.BodyParser(&req); err != nil {
		return validationError(c, err)
	}
	if err := validate.Struct(&req); err != nil {
		return validationError(c, err)
	}

	contract, err := getServices().Flow.Create(c.Context(), contractflow.CreateInput{
		CompanyID:    req.CompanyID,
		ContractorID: req.ContractorID,
		ClientID:     req.ClientID,
		TemplateID:   req.TemplateID,
		Title:        req.Title,
		Content:      req.Content,
		FieldValues:  req.FieldValues,
		DepositCents: req.DepositCents,
		TotalCents:   req.TotalCents,
	})
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(contract)
}

// HandleContractGet returns a contract with its payment ledger and
// audit trail.
func HandleContractGet(c *fiber.Ctx) error {
	id, err := contractID(c)
	if err != nil {
		return validationError(c, err)
	}
	repos := repository.GetGlobalRepositories()
	contract, err := repos.Contract.GetByID(id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return respondError(c, contractflow.ErrNotFound)
		}
		return respondError(c, err)
	}
	payments, err := repos.Payment.ListByContract(contract.ID)
	if err != nil {
		return respondError(c, err)
	}
	events, err := repos.Event.ListByContract(contract.ID, 100)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{
		"contract": contract,
		"payments": payments,
		"events":   events,
	})
}

// HandleContractList pages through a company's contracts.
func HandleContractList(c *fiber.Ctx) error {
	companyID := uint(c.QueryInt("company_id"))
	if companyID == 0 {
		return validationError(c, errors.New("company_id query parameter is required"))
	}
	page := c.QueryInt("page", 1)
	if page < 1 {
		page = 1
	}
	perPage := c.QueryInt("per_page", 25)
	if perPage < 1 || perPage > 100 {
		perPage = 25
	}

	repos := repository.GetGlobalRepositories()
	contracts, err := repos.Contract.ListByCompany(companyID, (page-1)*perPage, perPage)
	if err != nil {
		return respondError(c, err)
	}
	total, err := repos.Contract.CountByCompany(companyID)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{
		"contracts": contracts,
		"page":      page,
		"per_page":  perPage,
		"total":     total,
	})
}

type updateContractRequest struct {
	Title        *string      `json:"title" validate:"omitempty,max=255"`
	Content      *string      `json:"content"`
	FieldValues  *models.JSON `json:"field_values"`
	DepositCents *int64       `json:"deposit_cents" validate:"omitempty,gte=0"`
	TotalCents   *int64       `json:"total_cents" validate:"omitempty,gte=0"`
}

// HandleContractUpdate edits content fields while the contract is still
// unlocked.
func HandleContractUpdate(c *fiber.Ctx) error {
	id, err := contractID(c)
	if err != nil {
		return validationError(c, err)
	}
	var req updateContractRequest
	if err := c.BodyParser(&req); err != nil {
		return validationError(c, err)
	}
	if err := validate.Struct(&req); err != nil {
		return validationError(c, err)
	}

	err = getServices().Flow.UpdateContent(c.Context(), id, contractflow.UpdateContentInput{
		Title:        req.Title,
		Content:      req.Content,
		FieldValues:  req.FieldValues,
		DepositCents: req.DepositCents,
		TotalCents:   req.TotalCents,
	}, actorID(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"status": "updated"})
}

// HandleContractSend moves draft -> sent and mails the signing link.
func HandleContractSend(c *fiber.Ctx) error {
	id, err := contractID(c)
	if err != nil {
		return validationError(c, err)
	}
	if err := getServices().Flow.Send(c.Context(), id, actorID(c)); err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"status": models.ContractStatusSent})
}

// HandleContractVoid cancels a contract from any non-terminal state.
func HandleContractVoid(c *fiber.Ctx) error {
	id, err := contractID(c)
	if err != nil {
		return validationError(c, err)
	}
	if err := getServices().Flow.Void(c.Context(), id, actorID(c)); err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"status": models.ContractStatusCancelled})
}

type finalizeRequest struct {
	ReceiptReference string `json:"receipt_reference" validate:"omitempty,max=255"`
}

// HandleContractFinalize produces the final document and completes the
// contract. Safe to retry; a finished contract short-circuits.
func HandleContractFinalize(c *fiber.Ctx) error {
	id, err := contractID(c)
	if err != nil {
		return validationError(c, err)
	}
	var req finalizeRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return validationError(c, err)
		}
		if err := validate.Struct(&req); err != nil {
			return validationError(c, err)
		}
	}

	result, err := getServices().Finalize.Finalize(c.Context(), id, req.ReceiptReference)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{
		"status":         models.ContractStatusCompleted,
		"pdf_url":        result.PdfURL,
		"already_final":  result.ShortCircuit,
		"warnings":       result.Warnings,
		"notified_count": result.NotifiedCount,
	})
}

func contractID(c *fiber.Ctx) (uint, error) {
	id, err := c.ParamsInt("id")
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid contract id %q", c.Params("id"))
	}
	return uint(id), nil
}

// actorID identifies the contractor acting through the API. Header set
// by the fronting auth proxy.
func actorID(c *fiber.Ctx) string {
	if v := c.Get("X-Contractor-ID"); v != "" {
		return v
	}
	return "unknown"
}
