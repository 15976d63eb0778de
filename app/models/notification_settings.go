package models

import (
	"time"

	"gorm.io/gorm"
)

// NotificationSettings stores per-contractor email preferences. A
// missing record or key means "send" — the defaults below are all true
// except marketing.
type NotificationSettings struct {
	ID                  uint      `gorm:"primaryKey" json:"id"`
	ContractorID        uint      `gorm:"uniqueIndex" json:"contractor_id"`
	ContractSigned      bool      `gorm:"default:true" json:"contract_signed"`
	ContractPaid        bool      `gorm:"default:true" json:"contract_paid"`
	ContractSent        bool      `gorm:"default:true" json:"contract_sent"`
	PaymentReceived     bool      `gorm:"default:true" json:"payment_received"`
	InvoiceUpcoming     bool      `gorm:"default:true" json:"invoice_upcoming"`
	SubscriptionUpdates bool      `gorm:"default:true" json:"subscription_updates"`
	MarketingEmails     bool      `gorm:"default:false" json:"marketing_emails"`
	CreatedAt           time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt           time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// GetOrCreateNotificationSettings returns existing settings or creates
// the default row for a contractor.
func GetOrCreateNotificationSettings(db *gorm.DB, contractorID uint) (*NotificationSettings, error) {
	var ns NotificationSettings
	if err := db.Where("contractor_id = ?", contractorID).First(&ns).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			ns = NotificationSettings{
				ContractorID:        contractorID,
				ContractSigned:      true,
				ContractPaid:        true,
				ContractSent:        true,
				PaymentReceived:     true,
				InvoiceUpcoming:     true,
				SubscriptionUpdates: true,
			}
			if err := db.Create(&ns).Error; err != nil {
				return nil, err
			}
			return &ns, nil
		}
		return nil, err
	}
	return &ns, nil
}

// WantsEvent reports whether the contractor wants mail for an event key.
// Unknown keys default to send.
func (ns *NotificationSettings) WantsEvent(event string) bool {
	if ns == nil {
		return true
	}
	switch event {
	case "contractSigned":
		return ns.ContractSigned
	case "contractPaid":
		return ns.ContractPaid
	case "contractSent":
		return ns.ContractSent
	case "paymentReceived":
		return ns.PaymentReceived
	case "invoiceUpcoming":
		return ns.InvoiceUpcoming
	case "subscriptionUpdates":
		return ns.SubscriptionUpdates
	case "marketingEmails":
		return ns.MarketingEmails
	}
	return true
}
