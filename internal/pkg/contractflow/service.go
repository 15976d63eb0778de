package contractflow

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2/log"
	"gorm.io/gorm"

	"github.com/quillsign/quillsign/app/models"
	"github.com/quillsign/quillsign/app/repository"
	"github.com/quillsign/quillsign/internal/pkg/audit"
	"github.com/quillsign/quillsign/internal/pkg/entitlements"
	"github.com/quillsign/quillsign/internal/pkg/mail"
	"github.com/quillsign/quillsign/internal/pkg/signing"
)

// Service enforces the contract state machine. All status and content
// mutations run through conditional updates in the repositories, so two
// racing invocations of the same transition cannot both win.
type Service struct {
	contracts  repository.ContractRepository
	payments   repository.PaymentRepository
	signatures repository.SignatureRepository
	parties    repository.PartyRepository
	settings   repository.SettingsRepository
	tokens     *signing.Manager
	auditor    *audit.Recorder
	mailer     mail.Sender
	baseURL    string
	now        func() time.Time
}

// Config wires the service dependencies.
type Config struct {
	Repos   *repository.Repositories
	Tokens  *signing.Manager
	Auditor *audit.Recorder
	Mailer  mail.Sender
	BaseURL string
	Now     func() time.Time
}

// NewService creates the state machine service.
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
		tokens:     cfg.Tokens,
		auditor:    cfg.Auditor,
		mailer:     cfg.Mailer,
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		now:        now,
	}
}

// CreateInput carries the fields of a new draft contract.
type CreateInput struct {
	CompanyID    uint
	ContractorID uint
	ClientID     uint
	TemplateID   *uint
	Title        string
	Content      string
	FieldValues  models.JSON
	DepositCents int64
	TotalCents   int64
}

// Create makes a new draft contract after checking the financial
// invariants and the company's monthly allowance.
func (s *Service) Create(ctx context.Context, in CreateInput) (*models.Contract, error) {
	_ = ctx
	contract := &models.Contract{
		CompanyID:    in.CompanyID,
		ContractorID: in.ContractorID,
		ClientID:     in.ClientID,
		TemplateID:   in.TemplateID,
		Status:       models.ContractStatusDraft,
		Title:        strings.TrimSpace(in.Title),
		Content:      in.Content,
		FieldValues:  in.FieldValues,
		DepositCents: in.DepositCents,
		TotalCents:   in.TotalCents,
	}
	if err := contract.ValidateAmounts(); err != nil {
		return nil, fmt.Errorf("create contract: %w", err)
	}

	company, err := s.parties.GetCompany(in.CompanyID)
	if err != nil {
		return nil, s.wrapLookup("create contract: company", err)
	}
	period := models.CurrentPeriod(s.now())
	usage, err := s.settings.GetUsage(in.CompanyID, period)
	if err != nil {
		return nil, fmt.Errorf("create contract: usage lookup: %w", err)
	}
	tier := entitlements.CompanyTier(company)
	if !entitlements.CanCreateContract(tier, usage.ContractsCreated) {
		return nil, fmt.Errorf("create contract: monthly allowance for tier %s reached", tier)
	}

	if err := s.contracts.Create(contract); err != nil {
		return nil, fmt.Errorf("create contract: %w", err)
	}
	if err := s.settings.IncrementContractUsage(in.CompanyID, period); err != nil {
		log.Warnf("[ContractFlow] usage increment for company %d: %v", in.CompanyID, err)
	}

	s.auditor.RecordAs(contract.ID, contract.CompanyID, models.EventCreated,
		models.ActorContractor, fmt.Sprintf("%d", in.ContractorID), nil)
	return contract, nil
}

// Send performs draft -> sent: validates the content guards, issues the
// signing token and emails the link to the client. The raw token never
// touches logs or the database.
func (s *Service) Send(ctx context.Context, contractID uint, actorID string) error {
	_ = ctx
	contract, err := s.contracts.GetByID(contractID)
	if err != nil {
		return s.wrapLookup(fmt.Sprintf("send contract %d", contractID), err)
	}

	if contract.Status != models.ContractStatusDraft {
		return fmt.Errorf("send contract %d from status %s: %w", contractID, contract.Status, ErrInvalidTransition)
	}
	if strings.TrimSpace(contract.Title) == "" || strings.TrimSpace(contract.Content) == "" {
		return fmt.Errorf("send contract %d: title and content are required: %w", contractID, ErrInvalidTransition)
	}
	if err := contract.ValidateAmounts(); err != nil {
		return fmt.Errorf("send contract %d: %w", contractID, err)
	}

	client, err := s.parties.GetClient(contract.ClientID)
	if err != nil {
		return s.wrapLookup(fmt.Sprintf("send contract %d: client", contractID), err)
	}
	contractor, err := s.parties.GetContractor(contract.ContractorID)
	if err != nil {
		return s.wrapLookup(fmt.Sprintf("send contract %d: contractor", contractID), err)
	}

	rawToken, expiresAt, err := s.tokens.Issue(contract.ID, s.now())
	if err != nil {
		return fmt.Errorf("send contract %d: %w", contractID, err)
	}

	moved, err := s.contracts.UpdateStatusIf(contract.ID,
		[]string{models.ContractStatusDraft}, models.ContractStatusSent, repository.StatusStamps{})
	if err != nil {
		return fmt.Errorf("send contract %d: %w", contractID, err)
	}
	if !moved {
		return fmt.Errorf("send contract %d: concurrent transition: %w", contractID, ErrInvalidTransition)
	}

	s.auditor.RecordAs(contract.ID, contract.CompanyID, models.EventSent,
		models.ActorContractor, actorID, map[string]interface{}{
			"token_expires_at": expiresAt.UTC().Format(time.RFC3339),
		})

	subject, body := mail.SigningRequestBody(client.Name, contractor.Name, contract.Title, signing.Link(s.baseURL, rawToken))
	if err := s.mailer.Send(client.Email, subject, body); err != nil {
		log.Warnf("[ContractFlow] signing mail for contract %d: %v", contract.ID, err)
	}
	return nil
}

// SignatureSubmission is what the signing page posts along with the
// token.
type SignatureSubmission struct {
	SignerName  string
	ImageKey    string
	ContentHash string
	IPAddress   string
	UserAgent   string
}

// Sign performs sent -> signed, gated by the signing token and a
// content-hash match between what the client saw and what is stored.
func (s *Service) Sign(ctx context.Context, rawToken string, sub SignatureSubmission) (*models.Contract, error) {
	_ = ctx
	contract, err := s.tokens.Validate(rawToken, s.now())
	if err != nil {
		return nil, fmt.Errorf("sign contract: %w", err)
	}

	if contract.Status != models.ContractStatusSent {
		return nil, fmt.Errorf("sign contract %d from status %s: %w", contract.ID, contract.Status, ErrInvalidTransition)
	}
	if strings.TrimSpace(sub.SignerName) == "" {
		return nil, fmt.Errorf("sign contract %d: signer name is required: %w", contract.ID, ErrInvalidTransition)
	}
	expectedHash := models.HashContent(contract.Content)
	if sub.ContentHash != expectedHash {
		return nil, fmt.Errorf("sign contract %d: submitted content hash does not match stored content: %w",
			contract.ID, ErrInvalidTransition)
	}

	signedAt := s.now()
	moved, err := s.contracts.UpdateStatusIf(contract.ID,
		[]string{models.ContractStatusSent}, models.ContractStatusSigned,
		repository.StatusStamps{SignedAt: &signedAt})
	if err != nil {
		return nil, fmt.Errorf("sign contract %d: %w", contract.ID, err)
	}
	if !moved {
		return nil, fmt.Errorf("sign contract %d: already signed: %w", contract.ID, ErrInvalidTransition)
	}

	signature := &models.Signature{
		ContractID:  contract.ID,
		CompanyID:   contract.CompanyID,
		SignerType:  models.SignerTypeClient,
		SignerName:  strings.TrimSpace(sub.SignerName),
		ImageKey:    sub.ImageKey,
		IPAddress:   sub.IPAddress,
		UserAgent:   sub.UserAgent,
		ContentHash: expectedHash,
		SignedAt:    signedAt,
	}
	if err := s.signatures.Create(signature); err != nil {
		// The transition already won; surface the error so the caller can
		// retry signature persistence rather than silently losing it.
		return nil, fmt.Errorf("sign contract %d: persist signature: %w", contract.ID, err)
	}

	contract.Status = models.ContractStatusSigned
	contract.SignedAt = &signedAt

	s.auditor.RecordAs(contract.ID, contract.CompanyID, models.EventSigned,
		models.ActorClient, signature.SignerName, map[string]interface{}{
			"content_hash": expectedHash,
		})

	s.notifyContractorSigned(contract, signature)
	return contract, nil
}

func (s *Service) notifyContractorSigned(contract *models.Contract, signature *models.Signature) {
	contractor, err := s.parties.GetContractor(contract.ContractorID)
	if err != nil {
		log.Warnf("[ContractFlow] signed notification, contractor %d: %v", contract.ContractorID, err)
		return
	}
	prefs, err := s.settings.GetNotificationSettings(contract.ContractorID)
	if err != nil {
		log.Warnf("[ContractFlow] signed notification, prefs for contractor %d: %v", contract.ContractorID, err)
	}
	if prefs != nil && !prefs.WantsEvent("contractSigned") {
		return
	}
	subject, body := mail.ContractSignedBody(contractor.Name, signature.SignerName, contract.Title)
	if err := s.mailer.Send(contractor.Email, subject, body); err != nil {
		log.Warnf("[ContractFlow] signed mail for contract %d: %v", contract.ID, err)
	}
}

// UpdateContentInput uses pointers so callers can change a subset of the
// lockable fields.
type UpdateContentInput struct {
	Title        *string
	Content      *string
	FieldValues  *models.JSON
	DepositCents *int64
	TotalCents   *int64
}

// UpdateContent mutates the lockable fields. The lock is enforced by the
// conditional update itself, not by a prior status read, so a signature
// landing between read and write still blocks the mutation.
func (s *Service) UpdateContent(ctx context.Context, contractID uint, in UpdateContentInput, actorID string) error {
	_ = ctx
	contract, err := s.contracts.GetByID(contractID)
	if err != nil {
		return s.wrapLookup(fmt.Sprintf("update contract %d", contractID), err)
	}

	deposit := contract.DepositCents
	total := contract.TotalCents
	if in.DepositCents != nil {
		deposit = *in.DepositCents
	}
	if in.TotalCents != nil {
		total = *in.TotalCents
	}
	check := models.Contract{DepositCents: deposit, TotalCents: total}
	if err := check.ValidateAmounts(); err != nil {
		return fmt.Errorf("update contract %d: %w", contractID, err)
	}

	moved, err := s.contracts.UpdateContentIfUnlocked(contractID, repository.ContentFields{
		Title:        in.Title,
		Content:      in.Content,
		FieldValues:  in.FieldValues,
		DepositCents: in.DepositCents,
		TotalCents:   in.TotalCents,
	})
	if err != nil {
		return fmt.Errorf("update contract %d: %w", contractID, err)
	}
	if !moved {
		// Disambiguate locked from vanished.
		if _, err := s.contracts.GetByID(contractID); err != nil {
			return s.wrapLookup(fmt.Sprintf("update contract %d", contractID), err)
		}
		return fmt.Errorf("update contract %d: %w", contractID, ErrContractLocked)
	}

	s.auditor.RecordAs(contractID, contract.CompanyID, models.EventContentUpdated,
		models.ActorContractor, actorID, nil)
	return nil
}

// Void cancels a contract from any non-terminal state and fails its
// pending payments.
func (s *Service) Void(ctx context.Context, contractID uint, actorID string) error {
	_ = ctx
	contract, err := s.contracts.GetByID(contractID)
	if err != nil {
		return s.wrapLookup(fmt.Sprintf("void contract %d", contractID), err)
	}

	moved, err := s.contracts.UpdateStatusIf(contractID, []string{
		models.ContractStatusDraft,
		models.ContractStatusSent,
		models.ContractStatusSigned,
		models.ContractStatusPaid,
	}, models.ContractStatusCancelled, repository.StatusStamps{})
	if err != nil {
		return fmt.Errorf("void contract %d: %w", contractID, err)
	}
	if !moved {
		return fmt.Errorf("void contract %d from status %s: %w", contractID, contract.Status, ErrInvalidTransition)
	}

	if failed, err := s.payments.FailPendingByContract(contractID); err != nil {
		log.Warnf("[ContractFlow] void contract %d: failing pending payments: %v", contractID, err)
	} else if failed > 0 {
		log.Infof("[ContractFlow] void contract %d: failed %d pending payments", contractID, failed)
	}

	s.auditor.RecordAs(contractID, contract.CompanyID, models.EventVoided,
		models.ActorContractor, actorID, nil)
	return nil
}

// Peek resolves a signing token without consuming it, for the read-only
// signing page.
func (s *Service) Peek(ctx context.Context, rawToken string) (*models.Contract, error) {
	_ = ctx
	return s.tokens.Peek(rawToken, s.now())
}

func (s *Service) wrapLookup(op string, err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("%s: %w", op, ErrNotFound)
	}
	return fmt.Errorf("%s: %w", op, err)
}
