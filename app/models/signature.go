package models

import "time"

const (
	SignerTypeClient     = "client"
	SignerTypeContractor = "contractor"
)

// Signature records one signing party's act on a contract, including a
// hash of the exact content that was presented. The hash is re-checked
// at finalization; a mismatch there is fatal, not retryable.
type Signature struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	ContractID uint      `gorm:"not null;index:idx_signatures_contract_signer,priority:1" json:"contract_id"`
	CompanyID  uint      `gorm:"not null;index" json:"company_id"`
	SignerType string    `gorm:"type:varchar(20);not null;index:idx_signatures_contract_signer,priority:2" json:"signer_type"`
	SignerName string    `gorm:"type:varchar(150);not null" json:"signer_name"`
	ImageKey   string    `gorm:"type:varchar(512);default:''" json:"image_key"`
	IPAddress  string    `gorm:"type:varchar(45);default:''" json:"-"`
	UserAgent  string    `gorm:"type:varchar(512);default:''" json:"-"`
	ContentHash string   `gorm:"type:varchar(80);not null" json:"content_hash"`
	SignedAt   time.Time `gorm:"not null" json:"signed_at"`
	CreatedAt  time.Time `gorm:"autoCreateTime" json:"created_at"`
}
