package models

import "time"

const (
	PaymentStatusPending   = "pending"
	PaymentStatusCompleted = "completed"
	PaymentStatusFailed    = "failed"
)

const (
	PaymentKindDeposit          = "deposit"
	PaymentKindRemainingBalance = "remaining_balance"
)

// Payment is one row per payment attempt. SessionID is the gateway
// checkout-session identifier and doubles as the idempotency key for
// webhook reconciliation. Amounts are stored in minor units to avoid
// float drift in the ledger.
type Payment struct {
	ID          uint       `gorm:"primaryKey" json:"id"`
	ContractID  uint       `gorm:"not null;index" json:"contract_id"`
	CompanyID   uint       `gorm:"not null;index" json:"company_id"`
	Kind        string     `gorm:"type:varchar(20);not null;default:'deposit'" json:"kind"`
	AmountCents int64      `gorm:"not null" json:"amount_cents"`
	Status      string     `gorm:"type:varchar(20);not null;default:'pending';index" json:"status"`
	SessionID   string     `gorm:"type:varchar(191);not null;uniqueIndex" json:"session_id"`
	CompletedAt *time.Time `gorm:"type:timestamp;default:null" json:"completed_at,omitempty"`
	CreatedAt   time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}
