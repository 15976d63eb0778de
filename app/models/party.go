package models

import (
	"time"

	"gorm.io/gorm"
)

// Contractor is the account-holding party that authors and sends
// contracts. Authentication happens upstream of this service.
type Contractor struct {
	ID           uint           `gorm:"primaryKey" json:"id"`
	CompanyID    uint           `gorm:"not null;index" json:"company_id"`
	Name         string         `gorm:"type:varchar(150);not null" json:"name"`
	Email        string         `gorm:"type:varchar(200);not null;index" json:"email"`
	BusinessName string         `gorm:"type:varchar(200);default:''" json:"business_name"`
	CreatedAt    time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt    time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt    gorm.DeletedAt `gorm:"index" json:"-"`
}

// Client is the counterparty. Clients never hold credentials; a signing
// token is their only way into the system.
type Client struct {
	ID        uint           `gorm:"primaryKey" json:"id"`
	CompanyID uint           `gorm:"not null;index" json:"company_id"`
	Name      string         `gorm:"type:varchar(150);not null" json:"name"`
	Email     string         `gorm:"type:varchar(200);not null;index" json:"email"`
	CreatedAt time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

// ContractTemplate is the optional source a contract was created from.
// Template authoring is out of scope; the model exists for the foreign
// key and usage accounting.
type ContractTemplate struct {
	ID        uint           `gorm:"primaryKey" json:"id"`
	CompanyID uint           `gorm:"not null;index" json:"company_id"`
	Name      string         `gorm:"type:varchar(200);not null" json:"name"`
	Body      string         `gorm:"type:longtext" json:"body"`
	CreatedAt time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}
