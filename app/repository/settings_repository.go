package repository

import (
	"github.com/quillsign/quillsign/app/models"
	"gorm.io/gorm"
)

// settingsRepository implements the SettingsRepository interface
type settingsRepository struct {
	db *gorm.DB
}

// NewSettingsRepository creates a new settings repository instance
func NewSettingsRepository(db *gorm.DB) SettingsRepository {
	return &settingsRepository{db: db}
}

// GetNotificationSettings returns existing settings or creates defaults
func (r *settingsRepository) GetNotificationSettings(contractorID uint) (*models.NotificationSettings, error) {
	return models.GetOrCreateNotificationSettings(r.db, contractorID)
}

// GetUsage retrieves the usage counter for a company and period. A
// missing row reads as zero usage.
func (r *settingsRepository) GetUsage(companyID uint, period string) (*models.UsageCounter, error) {
	var counter models.UsageCounter
	err := r.db.Where("company_id = ? AND period = ?", companyID, period).First(&counter).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return &models.UsageCounter{CompanyID: companyID, Period: period}, nil
		}
		return nil, err
	}
	return &counter, nil
}

// IncrementContractUsage bumps the per-period counter server-side
func (r *settingsRepository) IncrementContractUsage(companyID uint, period string) error {
	return models.IncrementContractUsage(r.db, companyID, period)
}
