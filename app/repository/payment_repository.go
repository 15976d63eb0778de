package repository

import (
	"time"

	"github.com/quillsign/quillsign/app/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// paymentRepository implements the PaymentRepository interface
type paymentRepository struct {
	db *gorm.DB
}

// NewPaymentRepository creates a new payment repository instance
func NewPaymentRepository(db *gorm.DB) PaymentRepository {
	return &paymentRepository{db: db}
}

// CreateIfAbsent inserts the payment unless the session id is already
// known, then re-reads the stored row so the caller always sees what the
// ledger holds. Tolerates webhook delivery racing checkout creation.
func (r *paymentRepository) CreateIfAbsent(payment *models.Payment) (bool, *models.Payment, error) {
	tx := r.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{
			{Name: "session_id"},
		},
		DoNothing: true,
	}).Create(payment)
	if tx.Error != nil {
		return false, nil, tx.Error
	}

	created := tx.RowsAffected > 0
	var stored models.Payment
	if err := r.db.Where("session_id = ?", payment.SessionID).First(&stored).Error; err != nil {
		return false, nil, err
	}
	return created, &stored, nil
}

// GetBySessionID retrieves a payment by the gateway session identifier
func (r *paymentRepository) GetBySessionID(sessionID string) (*models.Payment, error) {
	var payment models.Payment
	if err := r.db.Where("session_id = ?", sessionID).First(&payment).Error; err != nil {
		return nil, err
	}
	return &payment, nil
}

// CompleteBySession is the reconciliation critical section: the
// conditional UPDATE ensures at most one webhook delivery performs the
// pending -> completed flip.
func (r *paymentRepository) CompleteBySession(sessionID string, amountCents int64, at time.Time) (bool, error) {
	tx := r.db.Model(&models.Payment{}).
		Where("session_id = ? AND status <> ?", sessionID, models.PaymentStatusCompleted).
		Updates(map[string]interface{}{
			"status":       models.PaymentStatusCompleted,
			"amount_cents": amountCents,
			"completed_at": at,
		})
	if tx.Error != nil {
		return false, tx.Error
	}
	return tx.RowsAffected > 0, nil
}

// SumCompletedCents recomputes the total paid from the ledger. The value
// is never cached.
func (r *paymentRepository) SumCompletedCents(contractID uint) (int64, error) {
	var total int64
	err := r.db.Model(&models.Payment{}).
		Where("contract_id = ? AND status = ?", contractID, models.PaymentStatusCompleted).
		Select("COALESCE(SUM(amount_cents), 0)").
		Scan(&total).Error
	return total, err
}

// ListByContract retrieves all payments of a contract
func (r *paymentRepository) ListByContract(contractID uint) ([]models.Payment, error) {
	var payments []models.Payment
	err := r.db.Where("contract_id = ?", contractID).Order("created_at ASC").Find(&payments).Error
	return payments, err
}

// FailPendingByContract marks all pending payments of a contract failed.
// Used by the void path.
func (r *paymentRepository) FailPendingByContract(contractID uint) (int64, error) {
	tx := r.db.Model(&models.Payment{}).
		Where("contract_id = ? AND status = ?", contractID, models.PaymentStatusPending).
		Update("status", models.PaymentStatusFailed)
	return tx.RowsAffected, tx.Error
}
