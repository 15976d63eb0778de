package repository

import (
	"github.com/quillsign/quillsign/app/models"
	"gorm.io/gorm"
)

// eventRepository implements the EventRepository interface
type eventRepository struct {
	db *gorm.DB
}

// NewEventRepository creates a new event repository instance
func NewEventRepository(db *gorm.DB) EventRepository {
	return &eventRepository{db: db}
}

// Append inserts an audit row. There is deliberately no update or delete
// on this repository.
func (r *eventRepository) Append(event *models.ContractEvent) error {
	return r.db.Create(event).Error
}

// ListByContract retrieves the newest audit rows for a contract
func (r *eventRepository) ListByContract(contractID uint, limit int) ([]models.ContractEvent, error) {
	var events []models.ContractEvent
	q := r.db.Where("contract_id = ?", contractID).Order("created_at DESC, id DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	err := q.Find(&events).Error
	return events, err
}
