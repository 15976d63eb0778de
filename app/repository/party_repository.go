package repository

import (
	"github.com/quillsign/quillsign/app/models"
	"gorm.io/gorm"
)

// partyRepository implements the PartyRepository interface
type partyRepository struct {
	db *gorm.DB
}

// NewPartyRepository creates a new party repository instance
func NewPartyRepository(db *gorm.DB) PartyRepository {
	return &partyRepository{db: db}
}

// GetCompany retrieves a company by ID
func (r *partyRepository) GetCompany(id uint) (*models.Company, error) {
	var company models.Company
	if err := r.db.First(&company, id).Error; err != nil {
		return nil, err
	}
	return &company, nil
}

// GetContractor retrieves a contractor by ID
func (r *partyRepository) GetContractor(id uint) (*models.Contractor, error) {
	var contractor models.Contractor
	if err := r.db.First(&contractor, id).Error; err != nil {
		return nil, err
	}
	return &contractor, nil
}

// GetClient retrieves a client by ID
func (r *partyRepository) GetClient(id uint) (*models.Client, error) {
	var client models.Client
	if err := r.db.First(&client, id).Error; err != nil {
		return nil, err
	}
	return &client, nil
}

// GetTemplate retrieves a contract template by ID
func (r *partyRepository) GetTemplate(id uint) (*models.ContractTemplate, error) {
	var template models.ContractTemplate
	if err := r.db.First(&template, id).Error; err != nil {
		return nil, err
	}
	return &template, nil
}
