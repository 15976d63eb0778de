package finalize

import (
	"context"
	"errors"
	"fmt"
	"html/template"
	"time"

	"github.com/gofiber/fiber/v2/log"
	"gorm.io/gorm"

	"github.com/quillsign/quillsign/app/models"
	"github.com/quillsign/quillsign/app/repository"
	"github.com/quillsign/quillsign/internal/pkg/artifacts"
	"github.com/quillsign/quillsign/internal/pkg/audit"
	"github.com/quillsign/quillsign/internal/pkg/contractflow"
	"github.com/quillsign/quillsign/internal/pkg/documents"
	"github.com/quillsign/quillsign/internal/pkg/mail"
)

// Result reports what finalization did, including degraded steps that
// completed with warnings rather than failing the operation.
type Result struct {
	PdfURL        string
	ShortCircuit  bool
	Warnings      []string
	NotifiedCount int
}

// Service is the terminal pipeline: verify signature and payment, render
// the final document, persist it, complete the contract and notify both
// parties.
type Service struct {
	contracts  repository.ContractRepository
	payments   repository.PaymentRepository
	signatures repository.SignatureRepository
	parties    repository.PartyRepository
	settings   repository.SettingsRepository
	store      artifacts.Store
	storeCfg   *artifacts.Config
	auditor    *audit.Recorder
	mailer     mail.Sender
	now        func() time.Time
}

// Config wires the service dependencies.
type Config struct {
	Repos    *repository.Repositories
	Store    artifacts.Store
	StoreCfg *artifacts.Config
	Auditor  *audit.Recorder
	Mailer   mail.Sender
	Now      func() time.Time
}

// NewService creates the finalization service.
func NewService(cfg Config) *Service {
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &Service{
		contracts:  cfg.Repos.Contract,
		payments:   cfg.Repos.Payment,
		signatures: cfg.Repos.Signature,
		parties:    cfg.Repos.Party,
		settings:   cfg.Repos.Settings,
		store:      cfg.Store,
		storeCfg:   cfg.StoreCfg,
		auditor:    cfg.Auditor,
		mailer:     cfg.Mailer,
		now:        now,
	}
}

// Finalize runs the pipeline for one contract. Invoking it on an
// already-completed contract with an artifact short-circuits instead of
// re-uploading and re-notifying.
func (s *Service) Finalize(ctx context.Context, contractID uint, receiptReference string) (*Result, error) {
	contract, err := s.contracts.GetByID(contractID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("finalize contract %d: %w", contractID, contractflow.ErrNotFound)
		}
		return nil, fmt.Errorf("finalize contract %d: %w", contractID, err)
	}

	if contract.Status == models.ContractStatusCompleted && contract.PdfURL != "" {
		return &Result{PdfURL: contract.PdfURL, ShortCircuit: true}, nil
	}
	// Reconciliation takes a fully-paid contract straight to completed;
	// finalization then still owes it the artifact. Anything earlier than
	// paid is a hard precondition failure.
	if contract.Status != models.ContractStatusPaid && contract.Status != models.ContractStatusCompleted {
		return nil, fmt.Errorf("finalize contract %d: status is %s, want paid: %w",
			contractID, contract.Status, contractflow.ErrPreconditionFailed)
	}
	if contract.SignedAt == nil || contract.PaidAt == nil {
		return nil, fmt.Errorf("finalize contract %d: signedAt/paidAt missing: %w",
			contractID, contractflow.ErrPreconditionFailed)
	}

	client, err := s.parties.GetClient(contract.ClientID)
	if err != nil {
		return nil, fmt.Errorf("finalize contract %d: client: %w", contractID, err)
	}
	contractor, err := s.parties.GetContractor(contract.ContractorID)
	if err != nil {
		return nil, fmt.Errorf("finalize contract %d: contractor: %w", contractID, err)
	}

	signature, err := s.signatures.GetByContractAndSigner(contract.ID, models.SignerTypeClient)
	if err != nil {
		return nil, fmt.Errorf("finalize contract %d: signature: %w", contractID, contractflow.ErrPreconditionFailed)
	}

	// Tamper evidence: the signed hash must match the content as stored
	// now. A mismatch means post-signature mutation and is fatal.
	if signature.ContentHash != models.HashContent(contract.Content) {
		return nil, fmt.Errorf("finalize contract %d: stored content no longer matches signed hash %s",
			contractID, signature.ContentHash)
	}

	result := &Result{}
	signatureURL := s.migrateSignatureImage(ctx, contract, signature, result)

	completed, err := s.payments.SumCompletedCents(contract.ID)
	if err != nil {
		return nil, fmt.Errorf("finalize contract %d: ledger: %w", contractID, err)
	}

	completedAt := s.now()
	docBytes, err := documents.RenderFinalDocument(documents.FinalDocument{
		Title:            contract.Title,
		ContractUUID:     contract.UUID,
		ContractorName:   contractor.Name,
		BusinessName:     contractor.BusinessName,
		ClientName:       client.Name,
		Content:          template.HTML(contract.Content),
		TotalCents:       contract.TotalCents,
		DepositCents:     contract.DepositCents,
		RemainingCents:   contract.RemainingCents(completed),
		SignerName:       signature.SignerName,
		SignedAt:         signature.SignedAt,
		ContentHash:      signature.ContentHash,
		SignatureImage:   signatureURL,
		ReceiptReference: receiptReference,
		CompletedAt:      completedAt,
	})
	if err != nil {
		return nil, fmt.Errorf("finalize contract %d: %w", contractID, err)
	}

	key := artifacts.FinalDocumentKey(contract.UUID)
	pdfURL, err := s.store.Put(ctx, key, docBytes, "text/html; charset=utf-8")
	if err != nil {
		return nil, fmt.Errorf("finalize contract %d: artifact upload: %w", contractID, err)
	}

	stamps := repository.StatusStamps{PdfURL: pdfURL}
	if contract.CompletedAt == nil {
		stamps.CompletedAt = &completedAt
	}
	moved, err := s.contracts.UpdateStatusIf(contract.ID,
		[]string{models.ContractStatusPaid, models.ContractStatusCompleted},
		models.ContractStatusCompleted, stamps)
	if err != nil {
		return nil, fmt.Errorf("finalize contract %d: completion: %w", contractID, err)
	}
	if !moved {
		// A concurrent finalization won; its artifact is identical since
		// the path is deterministic. Treat as short-circuit.
		fresh, err := s.contracts.GetByID(contract.ID)
		if err == nil && fresh.PdfURL != "" {
			return &Result{PdfURL: fresh.PdfURL, ShortCircuit: true}, nil
		}
		return nil, fmt.Errorf("finalize contract %d: lost completion race: %w", contractID, contractflow.ErrPreconditionFailed)
	}

	s.auditor.Record(contract.ID, contract.CompanyID, models.EventFinalized, map[string]interface{}{
		"artifact_key": key,
	})
	if contract.Status == models.ContractStatusPaid {
		// Reconciliation already audited completion when it took the
		// contract to completed directly.
		s.auditor.Record(contract.ID, contract.CompanyID, models.EventCompleted, nil)
	}

	result.PdfURL = pdfURL
	s.notifyParties(contract, client, contractor, pdfURL, result)
	return result, nil
}

// migrateSignatureImage moves a transient signature upload to its
// permanent contract-scoped key. Best effort: failure is a warning, the
// pipeline continues with whatever key is stored.
func (s *Service) migrateSignatureImage(ctx context.Context, contract *models.Contract, signature *models.Signature, result *Result) string {
	if signature.ImageKey == "" {
		return ""
	}
	permanent := artifacts.SignatureImageKey(contract.UUID)
	if signature.ImageKey == permanent {
		return s.storeCfg.AccessURL(permanent)
	}

	if err := s.store.Copy(ctx, signature.ImageKey, permanent); err != nil {
		warn := fmt.Sprintf("signature image migration: %v", err)
		log.Warnf("[Finalize] contract %d: %s", contract.ID, warn)
		result.Warnings = append(result.Warnings, warn)
		return s.storeCfg.AccessURL(signature.ImageKey)
	}
	if err := s.signatures.UpdateImageKey(signature.ID, permanent); err != nil {
		warn := fmt.Sprintf("signature image key update: %v", err)
		log.Warnf("[Finalize] contract %d: %s", contract.ID, warn)
		result.Warnings = append(result.Warnings, warn)
	}
	if err := s.store.Delete(ctx, signature.ImageKey); err != nil {
		log.Warnf("[Finalize] contract %d: transient signature cleanup: %v", contract.ID, err)
	}
	return s.storeCfg.AccessURL(permanent)
}

// notifyParties mails the client unconditionally and the contractor per
// preference. Delivery failure never rolls back the completed contract.
func (s *Service) notifyParties(contract *models.Contract, client *models.Client, contractor *models.Contractor, pdfURL string, result *Result) {
	subject, body := mail.ContractCompletedBody(client.Name, contract.Title, pdfURL)
	if err := s.mailer.Send(client.Email, subject, body); err != nil {
		warn := fmt.Sprintf("client completion mail: %v", err)
		log.Warnf("[Finalize] contract %d: %s", contract.ID, warn)
		result.Warnings = append(result.Warnings, warn)
	} else {
		result.NotifiedCount++
	}

	prefs, err := s.settings.GetNotificationSettings(contract.ContractorID)
	if err != nil {
		log.Warnf("[Finalize] contract %d: prefs for contractor %d: %v", contract.ID, contract.ContractorID, err)
	}
	if prefs != nil && !prefs.WantsEvent("contractPaid") {
		return
	}
	subject, body = mail.ContractCompletedBody(contractor.Name, contract.Title, pdfURL)
	if err := s.mailer.Send(contractor.Email, subject, body); err != nil {
		warn := fmt.Sprintf("contractor completion mail: %v", err)
		log.Warnf("[Finalize] contract %d: %s", contract.ID, warn)
		result.Warnings = append(result.Warnings, warn)
	} else {
		result.NotifiedCount++
	}
}

