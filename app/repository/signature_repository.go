package repository

import (
	"github.com/quillsign/quillsign/app/models"
	"gorm.io/gorm"
)

// signatureRepository implements the SignatureRepository interface
type signatureRepository struct {
	db *gorm.DB
}

// NewSignatureRepository creates a new signature repository instance
func NewSignatureRepository(db *gorm.DB) SignatureRepository {
	return &signatureRepository{db: db}
}

// Create creates a new signature row
func (r *signatureRepository) Create(signature *models.Signature) error {
	return r.db.Create(signature).Error
}

// GetByContractAndSigner retrieves the signature for one signing party
func (r *signatureRepository) GetByContractAndSigner(contractID uint, signerType string) (*models.Signature, error) {
	var signature models.Signature
	err := r.db.Where("contract_id = ? AND signer_type = ?", contractID, signerType).
		First(&signature).Error
	if err != nil {
		return nil, err
	}
	return &signature, nil
}

// UpdateImageKey updates the stored object key after the signature image
// has been migrated to its permanent location
func (r *signatureRepository) UpdateImageKey(id uint, imageKey string) error {
	return r.db.Model(&models.Signature{}).Where("id = ?", id).
		Update("image_key", imageKey).Error
}
