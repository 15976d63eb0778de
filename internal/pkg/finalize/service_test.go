package finalize

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/quillsign/quillsign/app/models"
	"github.com/quillsign/quillsign/app/repository"
	"github.com/quillsign/quillsign/internal/pkg/artifacts"
	"github.com/quillsign/quillsign/internal/pkg/audit"
	"github.com/quillsign/quillsign/internal/pkg/contractflow"
)

type fakeStore struct {
	objects map[string][]byte
	copyErr error
	putErr  error
}

func newFakeStore() *fakeStore {
	return &fakeStore{objects: map[string][]byte{}}
}

func (s *fakeStore) Put(_ context.Context, key string, body []byte, _ string) (string, error) {
	if s.putErr != nil {
		return "", s.putErr
	}
	s.objects[key] = body
	return "https://cdn.example.com/" + key, nil
}

func (s *fakeStore) Copy(_ context.Context, srcKey, dstKey string) error {
	if s.copyErr != nil {
		return s.copyErr
	}
	body, ok := s.objects[srcKey]
	if !ok {
		return errors.New("no such object: " + srcKey)
	}
	s.objects[dstKey] = body
	return nil
}

func (s *fakeStore) Delete(_ context.Context, key string) error {
	delete(s.objects, key)
	return nil
}

type countingMailer struct {
	sent []string
	fail bool
}

func (m *countingMailer) Send(to, subject, body string) error {
	if m.fail {
		return errors.New("smtp unavailable")
	}
	m.sent = append(m.sent, to)
	return nil
}

type finEnv struct {
	db      *gorm.DB
	repos   *repository.Repositories
	store   *fakeStore
	mailer  *countingMailer
	service *Service
}

func newFinEnv(t *testing.T) *finEnv {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, db.AutoMigrate(
		&models.Company{},
		&models.Contractor{},
		&models.Client{},
		&models.Contract{},
		&models.Payment{},
		&models.Signature{},
		&models.ContractEvent{},
		&models.NotificationSettings{},
		&models.UsageCounter{},
	))

	require.NoError(t, db.Create(&models.Company{Name: "Acme Renovations"}).Error)
	require.NoError(t, db.Create(&models.Contractor{CompanyID: 1, Name: "Dana Smith", Email: "dana@acme.test", BusinessName: "Acme"}).Error)
	require.NoError(t, db.Create(&models.Client{CompanyID: 1, Name: "Pat Jones", Email: "pat@client.test"}).Error)

	repos := repository.NewRepositories(db)
	store := newFakeStore()
	mailer := &countingMailer{}
	service := NewService(Config{
		Repos:    repos,
		Store:    store,
		StoreCfg: &artifacts.Config{BucketName: "quillsign-test", PublicBaseURL: "https://cdn.example.com"},
		Auditor:  audit.NewRecorder(repos.Event),
		Mailer:   mailer,
	})
	return &finEnv{db: db, repos: repos, store: store, mailer: mailer, service: service}
}

// seedPaidContract creates a contract ready for finalization: paid, with
// a completed ledger and a client signature whose hash matches content.
func (e *finEnv) seedPaidContract(t *testing.T) *models.Contract {
	t.Helper()
	now := time.Now()
	content := "<p>Scope of work.</p>"
	contract := &models.Contract{
		CompanyID:    1,
		ContractorID: 1,
		ClientID:     1,
		Status:       models.ContractStatusPaid,
		Title:        "Kitchen remodel",
		Content:      content,
		DepositCents: 2500,
		TotalCents:   10000,
		SignedAt:     &now,
		PaidAt:       &now,
	}
	require.NoError(t, e.db.Create(contract).Error)

	require.NoError(t, e.db.Create(&models.Payment{
		ContractID:  contract.ID,
		CompanyID:   1,
		Kind:        models.PaymentKindRemainingBalance,
		AmountCents: 10000,
		Status:      models.PaymentStatusCompleted,
		SessionID:   "cs_fin_" + contract.UUID,
		CompletedAt: &now,
	}).Error)

	require.NoError(t, e.repos.Signature.Create(&models.Signature{
		ContractID:  contract.ID,
		CompanyID:   1,
		SignerType:  models.SignerTypeClient,
		SignerName:  "Pat Jones",
		ContentHash: models.HashContent(content),
		SignedAt:    now,
	}))
	return contract
}

func TestFinalize(t *testing.T) {
	t.Parallel()
	env := newFinEnv(t)
	contract := env.seedPaidContract(t)

	result, err := env.service.Finalize(context.Background(), contract.ID, "rcpt_123")
	require.NoError(t, err)
	assert.False(t, result.ShortCircuit)
	assert.NotEmpty(t, result.PdfURL)
	assert.Empty(t, result.Warnings)
	assert.Equal(t, 2, result.NotifiedCount)
	assert.Len(t, env.mailer.sent, 2)

	stored, err := env.repos.Contract.GetByID(contract.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ContractStatusCompleted, stored.Status)
	require.NotNil(t, stored.CompletedAt)
	assert.Equal(t, result.PdfURL, stored.PdfURL)

	doc, ok := env.store.objects[artifacts.FinalDocumentKey(contract.UUID)]
	require.True(t, ok, "final document not uploaded")
	assert.Contains(t, string(doc), "Kitchen remodel")
	assert.Contains(t, string(doc), "rcpt_123")
	assert.Contains(t, string(doc), models.HashContent(contract.Content))
}

func TestFinalizeIsIdempotent(t *testing.T) {
	t.Parallel()
	env := newFinEnv(t)
	contract := env.seedPaidContract(t)

	first, err := env.service.Finalize(context.Background(), contract.ID, "")
	require.NoError(t, err)

	second, err := env.service.Finalize(context.Background(), contract.ID, "")
	require.NoError(t, err)
	assert.True(t, second.ShortCircuit)
	assert.Equal(t, first.PdfURL, second.PdfURL)

	// No second round of mails.
	assert.Len(t, env.mailer.sent, 2)
}

func TestFinalizeRequiresPaidStatus(t *testing.T) {
	t.Parallel()
	env := newFinEnv(t)

	now := time.Now()
	contract := &models.Contract{
		CompanyID:    1,
		ContractorID: 1,
		ClientID:     1,
		Status:       models.ContractStatusSigned,
		Title:        "Too early",
		Content:      "<p>x</p>",
		TotalCents:   10000,
		SignedAt:     &now,
	}
	require.NoError(t, env.db.Create(contract).Error)

	_, err := env.service.Finalize(context.Background(), contract.ID, "")
	assert.ErrorIs(t, err, contractflow.ErrPreconditionFailed)

	_, err = env.service.Finalize(context.Background(), 999, "")
	assert.ErrorIs(t, err, contractflow.ErrNotFound)
}

func TestFinalizeRequiresSignature(t *testing.T) {
	t.Parallel()
	env := newFinEnv(t)
	contract := env.seedPaidContract(t)
	require.NoError(t, env.db.Where("contract_id = ?", contract.ID).Delete(&models.Signature{}).Error)

	_, err := env.service.Finalize(context.Background(), contract.ID, "")
	assert.ErrorIs(t, err, contractflow.ErrPreconditionFailed)
}

func TestFinalizeDetectsTamperedContent(t *testing.T) {
	t.Parallel()
	env := newFinEnv(t)
	contract := env.seedPaidContract(t)

	// Mutate stored content behind the state machine's back.
	require.NoError(t, env.db.Model(&models.Contract{}).Where("id = ?", contract.ID).
		Update("content", "<p>Altered after signing.</p>").Error)

	_, err := env.service.Finalize(context.Background(), contract.ID, "")
	require.Error(t, err)
	assert.NotErrorIs(t, err, contractflow.ErrPreconditionFailed)

	// Nothing was uploaded and the contract did not complete.
	assert.Empty(t, env.store.objects)
	stored, err := env.repos.Contract.GetByID(contract.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ContractStatusPaid, stored.Status)
}

func TestFinalizeBackfillsArtifactAfterDirectCompletion(t *testing.T) {
	t.Parallel()
	env := newFinEnv(t)
	contract := env.seedPaidContract(t)

	// Reconciliation can take a fully-paid contract straight to
	// completed; finalization still owes it the document.
	now := time.Now()
	require.NoError(t, env.db.Model(&models.Contract{}).Where("id = ?", contract.ID).
		Updates(map[string]interface{}{
			"status":       models.ContractStatusCompleted,
			"completed_at": now,
		}).Error)

	result, err := env.service.Finalize(context.Background(), contract.ID, "")
	require.NoError(t, err)
	assert.False(t, result.ShortCircuit)
	assert.NotEmpty(t, result.PdfURL)

	stored, err := env.repos.Contract.GetByID(contract.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ContractStatusCompleted, stored.Status)
	assert.Equal(t, result.PdfURL, stored.PdfURL)
}

func TestFinalizeMigratesSignatureImage(t *testing.T) {
	t.Parallel()
	env := newFinEnv(t)
	contract := env.seedPaidContract(t)

	signature, err := env.repos.Signature.GetByContractAndSigner(contract.ID, models.SignerTypeClient)
	require.NoError(t, err)
	require.NoError(t, env.repos.Signature.UpdateImageKey(signature.ID, "tmp/upload-abc.png"))
	env.store.objects["tmp/upload-abc.png"] = []byte("png-bytes")

	result, err := env.service.Finalize(context.Background(), contract.ID, "")
	require.NoError(t, err)
	assert.Empty(t, result.Warnings)

	permanent := artifacts.SignatureImageKey(contract.UUID)
	assert.Contains(t, env.store.objects, permanent)
	assert.NotContains(t, env.store.objects, "tmp/upload-abc.png")

	migrated, err := env.repos.Signature.GetByContractAndSigner(contract.ID, models.SignerTypeClient)
	require.NoError(t, err)
	assert.Equal(t, permanent, migrated.ImageKey)
}

func TestFinalizeImageMigrationFailureIsWarning(t *testing.T) {
	t.Parallel()
	env := newFinEnv(t)
	contract := env.seedPaidContract(t)

	signature, err := env.repos.Signature.GetByContractAndSigner(contract.ID, models.SignerTypeClient)
	require.NoError(t, err)
	require.NoError(t, env.repos.Signature.UpdateImageKey(signature.ID, "tmp/upload-gone.png"))
	env.store.copyErr = errors.New("storage flapping")

	result, err := env.service.Finalize(context.Background(), contract.ID, "")
	require.NoError(t, err)
	assert.NotEmpty(t, result.Warnings)
	assert.NotEmpty(t, result.PdfURL)

	stored, err := env.repos.Contract.GetByID(contract.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ContractStatusCompleted, stored.Status)
}

func TestFinalizeMailFailureDoesNotRollBack(t *testing.T) {
	t.Parallel()
	env := newFinEnv(t)
	contract := env.seedPaidContract(t)
	env.mailer.fail = true

	result, err := env.service.Finalize(context.Background(), contract.ID, "")
	require.NoError(t, err)
	assert.Equal(t, 0, result.NotifiedCount)
	assert.NotEmpty(t, result.Warnings)

	stored, err := env.repos.Contract.GetByID(contract.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ContractStatusCompleted, stored.Status)
}
