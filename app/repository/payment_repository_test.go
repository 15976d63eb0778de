package repository

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quillsign/quillsign/app/models"
)

func TestCreateIfAbsent(t *testing.T) {
	t.Parallel()
	db := newTestDB(t)
	repo := NewPaymentRepository(db)

	created, stored, err := repo.CreateIfAbsent(&models.Payment{
		ContractID:  1,
		CompanyID:   1,
		Kind:        models.PaymentKindDeposit,
		AmountCents: 2500,
		Status:      models.PaymentStatusPending,
		SessionID:   "cs_100",
	})
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, int64(2500), stored.AmountCents)

	// Same session again: no new row, the stored one comes back.
	created, stored, err = repo.CreateIfAbsent(&models.Payment{
		ContractID:  1,
		CompanyID:   1,
		Kind:        models.PaymentKindDeposit,
		AmountCents: 9999,
		Status:      models.PaymentStatusPending,
		SessionID:   "cs_100",
	})
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, int64(2500), stored.AmountCents)

	var count int64
	require.NoError(t, db.Model(&models.Payment{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestCompleteBySessionFlipsOnce(t *testing.T) {
	t.Parallel()
	db := newTestDB(t)
	repo := NewPaymentRepository(db)

	_, _, err := repo.CreateIfAbsent(&models.Payment{
		ContractID:  1,
		CompanyID:   1,
		Kind:        models.PaymentKindDeposit,
		AmountCents: 2500,
		Status:      models.PaymentStatusPending,
		SessionID:   "cs_200",
	})
	require.NoError(t, err)

	flipped, err := repo.CompleteBySession("cs_200", 2500, time.Now())
	require.NoError(t, err)
	assert.True(t, flipped)

	// The duplicate delivery observes that it did no work.
	flipped, err = repo.CompleteBySession("cs_200", 2500, time.Now())
	require.NoError(t, err)
	assert.False(t, flipped)

	payment, err := repo.GetBySessionID("cs_200")
	require.NoError(t, err)
	assert.Equal(t, models.PaymentStatusCompleted, payment.Status)
	require.NotNil(t, payment.CompletedAt)
}

func TestSumCompletedCents(t *testing.T) {
	t.Parallel()
	db := newTestDB(t)
	repo := NewPaymentRepository(db)

	seed := []models.Payment{
		{ContractID: 7, CompanyID: 1, Kind: models.PaymentKindDeposit, AmountCents: 2500, Status: models.PaymentStatusCompleted, SessionID: "cs_a"},
		{ContractID: 7, CompanyID: 1, Kind: models.PaymentKindRemainingBalance, AmountCents: 7500, Status: models.PaymentStatusCompleted, SessionID: "cs_b"},
		{ContractID: 7, CompanyID: 1, Kind: models.PaymentKindDeposit, AmountCents: 9999, Status: models.PaymentStatusPending, SessionID: "cs_c"},
		{ContractID: 8, CompanyID: 1, Kind: models.PaymentKindDeposit, AmountCents: 1111, Status: models.PaymentStatusCompleted, SessionID: "cs_d"},
	}
	for i := range seed {
		require.NoError(t, db.Create(&seed[i]).Error)
	}

	total, err := repo.SumCompletedCents(7)
	require.NoError(t, err)
	assert.Equal(t, int64(10000), total)

	// No completed rows reads as zero, not an error.
	total, err = repo.SumCompletedCents(99)
	require.NoError(t, err)
	assert.Equal(t, int64(0), total)
}

func TestFailPendingByContract(t *testing.T) {
	t.Parallel()
	db := newTestDB(t)
	repo := NewPaymentRepository(db)

	seed := []models.Payment{
		{ContractID: 3, CompanyID: 1, Kind: models.PaymentKindDeposit, AmountCents: 2500, Status: models.PaymentStatusPending, SessionID: "cs_p1"},
		{ContractID: 3, CompanyID: 1, Kind: models.PaymentKindRemainingBalance, AmountCents: 7500, Status: models.PaymentStatusPending, SessionID: "cs_p2"},
		{ContractID: 3, CompanyID: 1, Kind: models.PaymentKindDeposit, AmountCents: 2500, Status: models.PaymentStatusCompleted, SessionID: "cs_p3"},
	}
	for i := range seed {
		require.NoError(t, db.Create(&seed[i]).Error)
	}

	failed, err := repo.FailPendingByContract(3)
	require.NoError(t, err)
	assert.Equal(t, int64(2), failed)

	// Completed rows are untouched.
	payment, err := repo.GetBySessionID("cs_p3")
	require.NoError(t, err)
	assert.Equal(t, models.PaymentStatusCompleted, payment.Status)
}
