package repository

import (
	"time"

	"github.com/quillsign/quillsign/app/models"
	"gorm.io/gorm"
)

// StatusStamps carries the lifecycle timestamps a conditional status
// update may set alongside the status column itself.
type StatusStamps struct {
	SignedAt    *time.Time
	PaidAt      *time.Time
	CompletedAt *time.Time
	PdfURL      string
}

// ContentFields is the set of contract fields that freeze once the
// contract has been signed. Nil pointers leave the column untouched.
type ContentFields struct {
	Title        *string
	Content      *string
	FieldValues  *models.JSON
	DepositCents *int64
	TotalCents   *int64
}

// ContractRepository defines the interface for contract-related database
// operations. Status and content mutations go through conditional
// updates so the store itself is the atomicity boundary.
type ContractRepository interface {
	Create(contract *models.Contract) error
	GetByID(id uint) (*models.Contract, error)
	GetByUUID(uuid string) (*models.Contract, error)
	GetBySigningTokenHash(hash string) (*models.Contract, error)
	// UpdateStatusIf moves the contract from one of the given statuses to
	// the target status, applying any stamps in the same UPDATE. It
	// reports whether a row actually moved.
	UpdateStatusIf(id uint, from []string, to string, stamps StatusStamps) (bool, error)
	// UpdateContentIfUnlocked applies content-field changes only while
	// the contract is still in draft or sent. Zero rows affected means
	// the contract is locked or missing.
	UpdateContentIfUnlocked(id uint, fields ContentFields) (bool, error)
	SetSigningToken(id uint, tokenHash string, expiresAt time.Time) error
	MarkSigningTokenUsed(id uint, usedAt time.Time) (bool, error)
	ListByCompany(companyID uint, offset, limit int) ([]models.Contract, error)
	CountByCompany(companyID uint) (int64, error)
}

// PaymentRepository defines the interface for the payment ledger.
type PaymentRepository interface {
	// CreateIfAbsent inserts the payment unless a row with the same
	// session id already exists; either way the stored row is returned.
	CreateIfAbsent(payment *models.Payment) (bool, *models.Payment, error)
	GetBySessionID(sessionID string) (*models.Payment, error)
	// CompleteBySession flips a not-yet-completed payment to completed.
	// Reports whether this call performed the flip, which makes duplicate
	// webhook deliveries observable as no-ops.
	CompleteBySession(sessionID string, amountCents int64, at time.Time) (bool, error)
	SumCompletedCents(contractID uint) (int64, error)
	ListByContract(contractID uint) ([]models.Payment, error)
	FailPendingByContract(contractID uint) (int64, error)
}

// SignatureRepository defines the interface for signature rows.
type SignatureRepository interface {
	Create(signature *models.Signature) error
	GetByContractAndSigner(contractID uint, signerType string) (*models.Signature, error)
	UpdateImageKey(id uint, imageKey string) error
}

// EventRepository is append-only; audit rows are never updated.
type EventRepository interface {
	Append(event *models.ContractEvent) error
	ListByContract(contractID uint, limit int) ([]models.ContractEvent, error)
}

// PartyRepository resolves the people and tenant around a contract.
type PartyRepository interface {
	GetCompany(id uint) (*models.Company, error)
	GetContractor(id uint) (*models.Contractor, error)
	GetClient(id uint) (*models.Client, error)
	GetTemplate(id uint) (*models.ContractTemplate, error)
}

// SettingsRepository covers notification preferences and usage counters.
// Both are narrow by design; the core never caches them.
type SettingsRepository interface {
	GetNotificationSettings(contractorID uint) (*models.NotificationSettings, error)
	GetUsage(companyID uint, period string) (*models.UsageCounter, error)
	IncrementContractUsage(companyID uint, period string) error
}

// Repositories holds all repository instances.
type Repositories struct {
	Contract  ContractRepository
	Payment   PaymentRepository
	Signature SignatureRepository
	Event     EventRepository
	Party     PartyRepository
	Settings  SettingsRepository
}

// NewRepositories creates a new instance of all repositories.
func NewRepositories(db *gorm.DB) *Repositories {
	return &Repositories{
		Contract:  NewContractRepository(db),
		Payment:   NewPaymentRepository(db),
		Signature: NewSignatureRepository(db),
		Event:     NewEventRepository(db),
		Party:     NewPartyRepository(db),
		Settings:  NewSettingsRepository(db),
	}
}
