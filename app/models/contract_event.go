package models

import (
	"time"

	"gorm.io/gorm"
)

const (
	EventCreated          = "created"
	EventSent             = "sent"
	EventSigned           = "signed"
	EventPaymentInitiated = "payment_initiated"
	EventPaymentCompleted = "payment_completed"
	EventPaid             = "paid"
	EventFinalized        = "finalized"
	EventCompleted        = "completed"
	EventVoided           = "voided"
	EventContentUpdated   = "content_updated"
	EventStatusChanged    = "status_changed"
)

const (
	ActorContractor = "contractor"
	ActorClient     = "client"
	ActorSystem     = "system"
	ActorWebhook    = "webhook"
)

// ContractEvent is the append-only audit trail. Rows are written with a
// service identity and are never updated or deleted in normal operation.
type ContractEvent struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	ContractID uint      `gorm:"not null;index" json:"contract_id"`
	CompanyID  uint      `gorm:"not null;index" json:"company_id"`
	EventType  string    `gorm:"type:varchar(50);not null;index" json:"event_type"`
	ActorType  string    `gorm:"type:varchar(20);not null;default:'system'" json:"actor_type"`
	ActorID    string    `gorm:"type:varchar(100);default:''" json:"actor_id"`
	Metadata   JSON      `gorm:"type:longtext" json:"metadata,omitempty"`
	CreatedAt  time.Time `gorm:"autoCreateTime;index" json:"created_at"`
}

// AppendContractEvent inserts an audit row. Helper for call sites that
// only hold a DB handle.
func AppendContractEvent(db *gorm.DB, event *ContractEvent) error {
	return db.Create(event).Error
}
