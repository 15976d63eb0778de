package models

import (
	"crypto/sha256"
	"database/sql/driver"
	"encoding/hex"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	ContractStatusDraft     = "draft"
	ContractStatusSent      = "sent"
	ContractStatusSigned    = "signed"
	ContractStatusPaid      = "paid"
	ContractStatusCompleted = "completed"
	ContractStatusCancelled = "cancelled"
)

// EpsilonCents is the tolerance applied when comparing currency amounts.
// Amounts are stored as int64 minor units, so this only absorbs rounding
// on gateway-converted values.
const EpsilonCents int64 = 1

// JSON stores raw JSON documents in a text column.
type JSON json.RawMessage

// Value implements driver.Valuer.
func (j JSON) Value() (driver.Value, error) {
	if len(j) == 0 {
		return nil, nil
	}
	return string(j), nil
}

// Scan implements sql.Scanner.
func (j *JSON) Scan(value interface{}) error {
	if value == nil {
		*j = JSON("{}")
		return nil
	}
	var bytes []byte
	switch v := value.(type) {
	case []byte:
		bytes = v
	case string:
		bytes = []byte(v)
	default:
		return errors.New("invalid scan source")
	}
	*j = JSON(bytes)
	return nil
}

// MarshalJSON implements json.Marshaler.
func (j JSON) MarshalJSON() ([]byte, error) {
	if len(j) == 0 {
		return []byte("null"), nil
	}
	return j, nil
}

// UnmarshalJSON implements json.Unmarshaler.
func (j *JSON) UnmarshalJSON(data []byte) error {
	if j == nil {
		return errors.New("nil JSON receiver")
	}
	*j = JSON(data)
	return nil
}

// Contract is the aggregate root of the lifecycle engine. Content fields
// are mutable until the contract is signed; afterwards only status and
// lifecycle timestamps may advance.
type Contract struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	UUID         string    `gorm:"type:char(36);uniqueIndex" json:"uuid"`
	CompanyID    uint      `gorm:"not null;index" json:"company_id"`
	ContractorID uint      `gorm:"not null;index" json:"contractor_id"`
	ClientID     uint      `gorm:"not null;index" json:"client_id"`
	TemplateID   *uint     `gorm:"default:null" json:"template_id,omitempty"`
	Status       string    `gorm:"type:varchar(20);not null;default:'draft';index" json:"status"`

	Title       string `gorm:"type:varchar(255);not null;default:''" json:"title"`
	Content     string `gorm:"type:longtext" json:"content"`
	FieldValues JSON   `gorm:"type:longtext" json:"field_values"`

	DepositCents int64 `gorm:"not null;default:0" json:"deposit_cents"`
	TotalCents   int64 `gorm:"not null;default:0" json:"total_cents"`

	SignedAt    *time.Time `gorm:"type:timestamp;default:null" json:"signed_at,omitempty"`
	PaidAt      *time.Time `gorm:"type:timestamp;default:null" json:"paid_at,omitempty"`
	CompletedAt *time.Time `gorm:"type:timestamp;default:null" json:"completed_at,omitempty"`

	SigningTokenHash      string     `gorm:"type:char(64);default:'';index" json:"-"`
	SigningTokenExpiresAt *time.Time `gorm:"type:timestamp;default:null" json:"-"`
	SigningTokenUsedAt    *time.Time `gorm:"type:timestamp;default:null" json:"-"`

	PdfURL string `gorm:"type:varchar(512);default:''" json:"pdf_url,omitempty"`

	Payments   []Payment   `gorm:"foreignKey:ContractID" json:"payments,omitempty"`
	Signatures []Signature `gorm:"foreignKey:ContractID" json:"signatures,omitempty"`

	CreatedAt time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

// BeforeCreate assigns a public UUID when none is set.
func (c *Contract) BeforeCreate(tx *gorm.DB) error {
	if c.UUID == "" {
		c.UUID = uuid.New().String()
	}
	return nil
}

// IsLocked reports whether content fields are frozen.
func (c *Contract) IsLocked() bool {
	switch c.Status {
	case ContractStatusSigned, ContractStatusPaid, ContractStatusCompleted:
		return true
	}
	return false
}

// IsTerminal reports whether the contract can no longer advance.
func (c *Contract) IsTerminal() bool {
	return c.Status == ContractStatusCompleted || c.Status == ContractStatusCancelled
}

// RemainingCents returns the outstanding balance given the completed sum.
func (c *Contract) RemainingCents(completedCents int64) int64 {
	remaining := c.TotalCents - completedCents
	if remaining < 0 {
		return 0
	}
	return remaining
}

// ValidateAmounts checks the financial invariants on the aggregate.
func (c *Contract) ValidateAmounts() error {
	if c.TotalCents < 0 {
		return errors.New("total amount must not be negative")
	}
	if c.DepositCents < 0 || c.DepositCents > c.TotalCents {
		return errors.New("deposit must be between zero and the total amount")
	}
	return nil
}

// HashContent produces the tamper-evidence hash stored on a Signature
// and re-checked at finalization time.
func HashContent(content string) string {
	sum := sha256.Sum256([]byte(content))
	return "sha256:" + hex.EncodeToString(sum[:])
}
