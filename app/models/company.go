package models

import (
	"time"

	"gorm.io/gorm"
)

const (
	TierFree         = "free"
	TierProfessional = "professional"
	TierStudio       = "studio"
)

// Company is the tenant boundary. Every lifecycle row references a
// company for isolation; the tier only gates feature access.
type Company struct {
	ID               uint           `gorm:"primaryKey" json:"id"`
	Name             string         `gorm:"type:varchar(200);not null" json:"name"`
	SubscriptionTier string         `gorm:"type:varchar(30);not null;default:'free'" json:"subscription_tier"`
	CreatedAt        time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt        time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt        gorm.DeletedAt `gorm:"index" json:"-"`
}
