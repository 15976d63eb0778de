package repository

import (
	"time"

	"github.com/quillsign/quillsign/app/models"
	"gorm.io/gorm"
)

// contractRepository implements the ContractRepository interface
type contractRepository struct {
	db *gorm.DB
}

// NewContractRepository creates a new contract repository instance
func NewContractRepository(db *gorm.DB) ContractRepository {
	return &contractRepository{db: db}
}

// Create creates a new contract in the database
func (r *contractRepository) Create(contract *models.Contract) error {
	return r.db.Create(contract).Error
}

// GetByID retrieves a contract by its ID
func (r *contractRepository) GetByID(id uint) (*models.Contract, error) {
	var contract models.Contract
	if err := r.db.First(&contract, id).Error; err != nil {
		return nil, err
	}
	return &contract, nil
}

// GetByUUID retrieves a contract by its public UUID
func (r *contractRepository) GetByUUID(uuid string) (*models.Contract, error) {
	var contract models.Contract
	if err := r.db.Where("uuid = ?", uuid).First(&contract).Error; err != nil {
		return nil, err
	}
	return &contract, nil
}

// GetBySigningTokenHash retrieves a contract by the hash of its signing
// token. Raw tokens are never stored, so this is the only lookup path
// for unauthenticated clients.
func (r *contractRepository) GetBySigningTokenHash(hash string) (*models.Contract, error) {
	var contract models.Contract
	if err := r.db.Where("signing_token_hash = ? AND signing_token_hash <> ''", hash).
		First(&contract).Error; err != nil {
		return nil, err
	}
	return &contract, nil
}

// UpdateStatusIf performs the conditional status transition. The WHERE
// clause on the current status is the concurrency guard: of two racing
// callers only one sees RowsAffected > 0.
func (r *contractRepository) UpdateStatusIf(id uint, from []string, to string, stamps StatusStamps) (bool, error) {
	updates := map[string]interface{}{
		"status": to,
	}
	if stamps.SignedAt != nil {
		updates["signed_at"] = stamps.SignedAt
	}
	if stamps.PaidAt != nil {
		updates["paid_at"] = stamps.PaidAt
	}
	if stamps.CompletedAt != nil {
		updates["completed_at"] = stamps.CompletedAt
	}
	if stamps.PdfURL != "" {
		updates["pdf_url"] = stamps.PdfURL
	}

	tx := r.db.Model(&models.Contract{}).
		Where("id = ? AND status IN ?", id, from).
		Updates(updates)
	if tx.Error != nil {
		return false, tx.Error
	}
	return tx.RowsAffected > 0, nil
}

// UpdateContentIfUnlocked applies content changes inside a single UPDATE
// guarded on the unlocked statuses, preventing check-then-act races with
// the signing path.
func (r *contractRepository) UpdateContentIfUnlocked(id uint, fields ContentFields) (bool, error) {
	updates := map[string]interface{}{}
	if fields.Title != nil {
		updates["title"] = *fields.Title
	}
	if fields.Content != nil {
		updates["content"] = *fields.Content
	}
	if fields.FieldValues != nil {
		updates["field_values"] = *fields.FieldValues
	}
	if fields.DepositCents != nil {
		updates["deposit_cents"] = *fields.DepositCents
	}
	if fields.TotalCents != nil {
		updates["total_cents"] = *fields.TotalCents
	}
	if len(updates) == 0 {
		return true, nil
	}

	tx := r.db.Model(&models.Contract{}).
		Where("id = ? AND status IN ?", id, []string{models.ContractStatusDraft, models.ContractStatusSent}).
		Updates(updates)
	if tx.Error != nil {
		return false, tx.Error
	}
	return tx.RowsAffected > 0, nil
}

// SetSigningToken stores the token hash and expiry and clears any
// previous first-use marker.
func (r *contractRepository) SetSigningToken(id uint, tokenHash string, expiresAt time.Time) error {
	return r.db.Model(&models.Contract{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"signing_token_hash":       tokenHash,
			"signing_token_expires_at": expiresAt,
			"signing_token_used_at":    nil,
		}).Error
}

// MarkSigningTokenUsed stamps the first-use marker once. Subsequent
// calls are no-ops and report false.
func (r *contractRepository) MarkSigningTokenUsed(id uint, usedAt time.Time) (bool, error) {
	tx := r.db.Model(&models.Contract{}).
		Where("id = ? AND signing_token_used_at IS NULL", id).
		Update("signing_token_used_at", usedAt)
	if tx.Error != nil {
		return false, tx.Error
	}
	return tx.RowsAffected > 0, nil
}

// ListByCompany retrieves contracts of a company with pagination
func (r *contractRepository) ListByCompany(companyID uint, offset, limit int) ([]models.Contract, error) {
	var contracts []models.Contract
	err := r.db.Where("company_id = ?", companyID).
		Order("created_at DESC").Offset(offset).Limit(limit).Find(&contracts).Error
	return contracts, err
}

// CountByCompany counts contracts of a company
func (r *contractRepository) CountByCompany(companyID uint) (int64, error) {
	var count int64
	err := r.db.Model(&models.Contract{}).Where("company_id = ?", companyID).Count(&count).Error
	return count, err
}
