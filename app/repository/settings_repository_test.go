package repository

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIncrementContractUsage(t *testing.T) {
	t.Parallel()
	db := newTestDB(t)
	repo := NewSettingsRepository(db)

	// Missing row reads as zero usage.
	usage, err := repo.GetUsage(1, "2026-08")
	require.NoError(t, err)
	assert.Equal(t, int64(0), usage.ContractsCreated)

	require.NoError(t, repo.IncrementContractUsage(1, "2026-08"))
	require.NoError(t, repo.IncrementContractUsage(1, "2026-08"))

	usage, err = repo.GetUsage(1, "2026-08")
	require.NoError(t, err)
	assert.Equal(t, int64(2), usage.ContractsCreated)

	// Periods and companies count independently.
	require.NoError(t, repo.IncrementContractUsage(1, "2026-09"))
	require.NoError(t, repo.IncrementContractUsage(2, "2026-08"))

	usage, err = repo.GetUsage(1, "2026-09")
	require.NoError(t, err)
	assert.Equal(t, int64(1), usage.ContractsCreated)

	usage, err = repo.GetUsage(2, "2026-08")
	require.NoError(t, err)
	assert.Equal(t, int64(1), usage.ContractsCreated)
}

func TestGetNotificationSettingsDefaults(t *testing.T) {
	t.Parallel()
	db := newTestDB(t)
	repo := NewSettingsRepository(db)

	prefs, err := repo.GetNotificationSettings(42)
	require.NoError(t, err)
	assert.True(t, prefs.ContractSigned)
	assert.True(t, prefs.PaymentReceived)
	assert.False(t, prefs.MarketingEmails)
	assert.True(t, prefs.WantsEvent("someFutureEvent"))

	// Second read returns the persisted row, not a new one.
	again, err := repo.GetNotificationSettings(42)
	require.NoError(t, err)
	assert.Equal(t, prefs.ID, again.ID)
}
