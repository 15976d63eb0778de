package payments

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
	"github.com/quillsign/quillsign/internal/pkg/contractflow"
	"github.com/quillsign/quillsign/internal/pkg/mail"
)

// Service reconciles gateway checkout sessions and webhook deliveries
// with the contract and payment ledger. Every mutation is a conditional
// update, so duplicate or out-of-order deliveries converge on the same
// final state.
type Service struct {
	contracts repository.ContractRepository
	payments  repository.PaymentRepository
	parties   repository.PartyRepository
	settings  repository.SettingsRepository
	gateway   Gateway
	auditor   *audit.Recorder
	mailer    mail.Sender
	baseURL   string
	currency  string
	now       func() time.Time
}

// Config wires the service dependencies.
type Config struct {
	Repos    *repository.Repositories
	Gateway  Gateway
	Auditor  *audit.Recorder
	Mailer   mail.Sender
	BaseURL  string
	Currency string
	Now      func() time.Time
}

// NewService creates the payment reconciliation service.
func NewService(cfg Config) *Service {
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	currency := cfg.Currency
	if currency == "" {
		currency = "usd"
	}
	return &Service{
		contracts: cfg.Repos.Contract,
		payments:  cfg.Repos.Payment,
		parties:   cfg.Repos.Party,
		settings:  cfg.Repos.Settings,
		gateway:   cfg.Gateway,
		auditor:   cfg.Auditor,
		mailer:    cfg.Mailer,
		baseURL:   strings.TrimRight(cfg.BaseURL, "/"),
		currency:  currency,
		now:       now,
	}
}

// CreateCheckout opens a checkout session for a deposit or the remaining
// balance. The amount is always recomputed from the ledger; caller input
// never decides what gets charged.
func (s *Service) CreateCheckout(ctx context.Context, contractID uint, clientEmail, kind string) (*CheckoutSession, error) {
	contract, err := s.contracts.GetByID(contractID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("checkout for contract %d: %w", contractID, contractflow.ErrNotFound)
		}
		return nil, fmt.Errorf("checkout for contract %d: %w", contractID, err)
	}

	var amountCents int64
	switch kind {
	case models.PaymentKindDeposit:
		if contract.Status != models.ContractStatusSigned {
			return nil, fmt.Errorf("deposit checkout for contract %d in status %s: %w",
				contractID, contract.Status, contractflow.ErrInvalidTransition)
		}
		if contract.DepositCents <= 0 {
			return nil, fmt.Errorf("deposit checkout for contract %d: %w", contractID, contractflow.ErrNothingToPay)
		}
		amountCents = contract.DepositCents
	case models.PaymentKindRemainingBalance:
		if contract.Status != models.ContractStatusSigned && contract.Status != models.ContractStatusPaid {
			return nil, fmt.Errorf("balance checkout for contract %d in status %s: %w",
				contractID, contract.Status, contractflow.ErrInvalidTransition)
		}
		completed, err := s.payments.SumCompletedCents(contractID)
		if err != nil {
			return nil, fmt.Errorf("balance checkout for contract %d: ledger: %w", contractID, err)
		}
		amountCents = contract.RemainingCents(completed)
		if amountCents <= models.EpsilonCents {
			return nil, fmt.Errorf("balance checkout for contract %d: %w", contractID, contractflow.ErrNothingToPay)
		}
	default:
		return nil, fmt.Errorf("checkout for contract %d: unknown payment kind %q", contractID, kind)
	}

	session, err := s.gateway.CreateCheckoutSession(ctx, CheckoutParams{
		ContractID:  contract.ID,
		CompanyID:   contract.CompanyID,
		Kind:        kind,
		AmountCents: amountCents,
		Currency:    s.currency,
		ClientEmail: clientEmail,
		Description: fmt.Sprintf("%s payment for %q", kind, contract.Title),
		SuccessURL:  s.baseURL + "/sign/payment/success?session_id={CHECKOUT_SESSION_ID}",
		CancelURL:   s.baseURL + "/sign/payment/cancelled",
	})
	if err != nil {
		return nil, fmt.Errorf("checkout for contract %d: gateway: %w", contractID, err)
	}

	_, _, err = s.payments.CreateIfAbsent(&models.Payment{
		ContractID:  contract.ID,
		CompanyID:   contract.CompanyID,
		Kind:        kind,
		AmountCents: amountCents,
		Status:      models.PaymentStatusPending,
		SessionID:   session.SessionID,
	})
	if err != nil {
		return nil, fmt.Errorf("checkout for contract %d: ledger record: %w", contractID, err)
	}

	s.auditor.RecordAs(contract.ID, contract.CompanyID, models.EventPaymentInitiated,
		models.ActorClient, clientEmail, map[string]interface{}{
			"kind":         kind,
			"amount_cents": amountCents,
			"session_id":   session.SessionID,
		})
	return session, nil
}

// ReconcileWebhook applies one verified, normalized gateway notice to
// the ledger and the contract. Replaying the same notice any number of
// times yields exactly one completed payment row and one forward status
// transition.
func (s *Service) ReconcileWebhook(ctx context.Context, notice *WebhookNotice) error {
	_ = ctx

	// Duplicate delivery of an already-applied session is a success,
	// not an error.
	existing, err := s.payments.GetBySessionID(notice.SessionID)
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("reconcile session %s: ledger lookup: %w", notice.SessionID, err)
	}
	if existing != nil && existing.Status == models.PaymentStatusCompleted {
		log.Infof("[Payments] session %s already reconciled, skipping", notice.SessionID)
		return nil
	}

	// Contract identity comes from the session metadata the gateway
	// holds, not from anything the HTTP caller could forge around it.
	contract, err := s.contracts.GetByID(notice.ContractID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("reconcile session %s: contract %d: %w", notice.SessionID, notice.ContractID, contractflow.ErrNotFound)
		}
		return fmt.Errorf("reconcile session %s: contract %d: %w", notice.SessionID, notice.ContractID, err)
	}
	if contract.CompanyID != notice.CompanyID {
		return fmt.Errorf("reconcile session %s: company mismatch (contract %d belongs to %d, notice says %d): %w",
			notice.SessionID, contract.ID, contract.CompanyID, notice.CompanyID, contractflow.ErrNotFound)
	}

	expected, err := s.expectedAmount(contract, notice.Kind)
	if err != nil {
		return err
	}
	if diff := notice.AmountCents - expected; diff > models.EpsilonCents || diff < -models.EpsilonCents {
		return fmt.Errorf("reconcile session %s: expected %d cents, gateway reported %d: %w",
			notice.SessionID, expected, notice.AmountCents, contractflow.ErrAmountMismatch)
	}

	if !notice.Paid {
		log.Infof("[Payments] session %s not paid yet, no state change", notice.SessionID)
		return nil
	}

	// The webhook may beat checkout record creation; make sure the row
	// exists before the conditional completion flip.
	if existing == nil {
		if _, _, err := s.payments.CreateIfAbsent(&models.Payment{
			ContractID:  contract.ID,
			CompanyID:   contract.CompanyID,
			Kind:        notice.Kind,
			AmountCents: notice.AmountCents,
			Status:      models.PaymentStatusPending,
			SessionID:   notice.SessionID,
		}); err != nil {
			return fmt.Errorf("reconcile session %s: ledger record: %w", notice.SessionID, err)
		}
	}

	completedAt := s.now()
	flipped, err := s.payments.CompleteBySession(notice.SessionID, notice.AmountCents, completedAt)
	if err != nil {
		return fmt.Errorf("reconcile session %s: completion: %w", notice.SessionID, err)
	}
	if !flipped {
		// A concurrent delivery won the critical section.
		log.Infof("[Payments] session %s completed by concurrent delivery", notice.SessionID)
		return nil
	}

	s.auditor.RecordAs(contract.ID, contract.CompanyID, models.EventPaymentCompleted,
		models.ActorWebhook, notice.EventID, map[string]interface{}{
			"session_id":   notice.SessionID,
			"kind":         notice.Kind,
			"amount_cents": notice.AmountCents,
		})

	if err := s.advanceContract(contract, completedAt); err != nil {
		return err
	}

	s.notifyPaymentReceived(contract, notice.AmountCents)
	return nil
}

// expectedAmount recomputes what the gateway should have charged for
// this kind from the ledger.
func (s *Service) expectedAmount(contract *models.Contract, kind string) (int64, error) {
	if kind == models.PaymentKindDeposit {
		return contract.DepositCents, nil
	}
	completed, err := s.payments.SumCompletedCents(contract.ID)
	if err != nil {
		return 0, fmt.Errorf("reconcile contract %d: ledger: %w", contract.ID, err)
	}
	return contract.RemainingCents(completed), nil
}

// advanceContract moves the contract forward based on the recomputed
// ledger total: to completed when fully paid (directly from signed when
// one payment covers everything), otherwise to paid.
func (s *Service) advanceContract(contract *models.Contract, at time.Time) error {
	totalPaid, err := s.payments.SumCompletedCents(contract.ID)
	if err != nil {
		return fmt.Errorf("advance contract %d: ledger: %w", contract.ID, err)
	}

	fullyPaid := totalPaid >= contract.TotalCents-models.EpsilonCents

	if fullyPaid {
		stamps := repository.StatusStamps{CompletedAt: &at}
		if contract.PaidAt == nil {
			stamps.PaidAt = &at
		}
		moved, err := s.contracts.UpdateStatusIf(contract.ID,
			[]string{models.ContractStatusSigned, models.ContractStatusPaid},
			models.ContractStatusCompleted, stamps)
		if err != nil {
			return fmt.Errorf("advance contract %d to completed: %w", contract.ID, err)
		}
		if moved {
			s.auditor.Record(contract.ID, contract.CompanyID, models.EventPaid, map[string]interface{}{
				"total_paid_cents": totalPaid,
			})
			s.auditor.Record(contract.ID, contract.CompanyID, models.EventCompleted, nil)
		}
		return nil
	}

	moved, err := s.contracts.UpdateStatusIf(contract.ID,
		[]string{models.ContractStatusSigned},
		models.ContractStatusPaid, repository.StatusStamps{PaidAt: &at})
	if err != nil {
		return fmt.Errorf("advance contract %d to paid: %w", contract.ID, err)
	}
	if moved {
		s.auditor.Record(contract.ID, contract.CompanyID, models.EventPaid, map[string]interface{}{
			"total_paid_cents": totalPaid,
		})
	}
	return nil
}

func (s *Service) notifyPaymentReceived(contract *models.Contract, amountCents int64) {
	contractor, err := s.parties.GetContractor(contract.ContractorID)
	if err != nil {
		log.Warnf("[Payments] payment notification, contractor %d: %v", contract.ContractorID, err)
		return
	}
	prefs, err := s.settings.GetNotificationSettings(contract.ContractorID)
	if err != nil {
		log.Warnf("[Payments] payment notification, prefs for contractor %d: %v", contract.ContractorID, err)
	}
	if prefs != nil && !prefs.WantsEvent("paymentReceived") {
		return
	}
	subject, body := mail.PaymentReceivedBody(contractor.Name, contract.Title, amountCents)
	if err := s.mailer.Send(contractor.Email, subject, body); err != nil {
		log.Warnf("[Payments] payment mail for contract %d: %v", contract.ID, err)
	}
}
