package contractflow

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/quillsign/quillsign/app/models"
	"github.com/quillsign/quillsign/app/repository"
	"github.com/quillsign/quillsign/internal/pkg/audit"
	"github.com/quillsign/quillsign/internal/pkg/signing"
)

type sentMail struct {
	To      string
	Subject string
	Body    string
}

type captureMailer struct {
	sent []sentMail
	fail bool
}

func (m *captureMailer) Send(to, subject, body string) error {
	if m.fail {
		return assert.AnError
	}
	m.sent = append(m.sent, sentMail{To: to, Subject: subject, Body: body})
	return nil
}

type testEnv struct {
	db      *gorm.DB
	repos   *repository.Repositories
	tokens  *signing.Manager
	mailer  *captureMailer
	service *Service
}

func newTestEnv(t *testing.T, tier string) *testEnv {
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
		&models.ContractTemplate{},
		&models.Contract{},
		&models.Payment{},
		&models.Signature{},
		&models.ContractEvent{},
		&models.NotificationSettings{},
		&models.UsageCounter{},
	))

	require.NoError(t, db.Create(&models.Company{Name: "Acme Renovations", SubscriptionTier: tier}).Error)
	require.NoError(t, db.Create(&models.Contractor{CompanyID: 1, Name: "Dana Smith", Email: "dana@acme.test"}).Error)
	require.NoError(t, db.Create(&models.Client{CompanyID: 1, Name: "Pat Jones", Email: "pat@client.test"}).Error)

	repos := repository.NewRepositories(db)
	tokens := signing.NewManager(repos.Contract, signing.Policy{TTL: time.Hour})
	mailer := &captureMailer{}

	service := NewService(Config{
		Repos:   repos,
		Tokens:  tokens,
		Auditor: audit.NewRecorder(repos.Event),
		Mailer:  mailer,
		BaseURL: "https://sign.example.com",
	})
	return &testEnv{db: db, repos: repos, tokens: tokens, mailer: mailer, service: service}
}

func (e *testEnv) createContract(t *testing.T) *models.Contract {
	t.Helper()
	contract, err := e.service.Create(context.Background(), CreateInput{
		CompanyID:    1,
		ContractorID: 1,
		ClientID:     1,
		Title:        "Kitchen remodel",
		Content:      "<p>Scope of work, payment terms.</p>",
		DepositCents: 2500,
		TotalCents:   10000,
	})
	require.NoError(t, err)
	return contract
}

func (e *testEnv) eventTypes(t *testing.T, contractID uint) []string {
	t.Helper()
	events, err := e.repos.Event.ListByContract(contractID, 100)
	require.NoError(t, err)
	types := make([]string, 0, len(events))
	for _, ev := range events {
		types = append(types, ev.EventType)
	}
	return types
}

func TestCreate(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t, models.TierFree)

	contract := env.createContract(t)
	assert.Equal(t, models.ContractStatusDraft, contract.Status)
	assert.NotEmpty(t, contract.UUID)

	assert.Contains(t, env.eventTypes(t, contract.ID), models.EventCreated)

	usage, err := env.repos.Settings.GetUsage(1, models.CurrentPeriod(time.Now()))
	require.NoError(t, err)
	assert.Equal(t, int64(1), usage.ContractsCreated)
}

func TestCreateRejectsBadAmounts(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t, models.TierFree)

	_, err := env.service.Create(context.Background(), CreateInput{
		CompanyID:    1,
		ContractorID: 1,
		ClientID:     1,
		Title:        "Bad deal",
		Content:      "<p>x</p>",
		DepositCents: 20000,
		TotalCents:   10000,
	})
	assert.Error(t, err)
}

func TestCreateEnforcesMonthlyAllowance(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t, models.TierFree)

	for i := 0; i < 3; i++ {
		env.createContract(t)
	}
	_, err := env.service.Create(context.Background(), CreateInput{
		CompanyID:    1,
		ContractorID: 1,
		ClientID:     1,
		Title:        "One too many",
		Content:      "<p>x</p>",
		TotalCents:   1000,
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "allowance")
}

func TestCreateStudioIsUnlimited(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t, models.TierStudio)

	for i := 0; i < 5; i++ {
		env.createContract(t)
	}
}

func TestSend(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t, models.TierFree)
	contract := env.createContract(t)

	require.NoError(t, env.service.Send(context.Background(), contract.ID, "1"))

	stored, err := env.repos.Contract.GetByID(contract.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ContractStatusSent, stored.Status)
	assert.NotEmpty(t, stored.SigningTokenHash)
	require.NotNil(t, stored.SigningTokenExpiresAt)

	require.Len(t, env.mailer.sent, 1)
	assert.Equal(t, "pat@client.test", env.mailer.sent[0].To)
	assert.Contains(t, env.mailer.sent[0].Body, "https://sign.example.com/sign/")
	// The stored hash never appears in the mail.
	assert.NotContains(t, env.mailer.sent[0].Body, stored.SigningTokenHash)

	assert.Contains(t, env.eventTypes(t, contract.ID), models.EventSent)
}

func TestSendRequiresDraft(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t, models.TierFree)
	contract := env.createContract(t)

	require.NoError(t, env.service.Send(context.Background(), contract.ID, "1"))
	err := env.service.Send(context.Background(), contract.ID, "1")
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestSendRequiresContent(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t, models.TierFree)

	contract := &models.Contract{
		CompanyID:    1,
		ContractorID: 1,
		ClientID:     1,
		Status:       models.ContractStatusDraft,
		Title:        "Untitled",
	}
	require.NoError(t, env.db.Create(contract).Error)

	err := env.service.Send(context.Background(), contract.ID, "1")
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestSendMissingContract(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t, models.TierFree)

	err := env.service.Send(context.Background(), 12345, "1")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSign(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t, models.TierFree)
	contract := env.createContract(t)
	require.NoError(t, env.service.Send(context.Background(), contract.ID, "1"))

	raw, _, err := env.tokens.Issue(contract.ID, time.Now())
	require.NoError(t, err)

	stored, err := env.repos.Contract.GetByID(contract.ID)
	require.NoError(t, err)

	signed, err := env.service.Sign(context.Background(), raw, SignatureSubmission{
		SignerName:  "Pat Jones",
		ContentHash: models.HashContent(stored.Content),
		IPAddress:   "203.0.113.9",
		UserAgent:   "test-agent",
	})
	require.NoError(t, err)
	assert.Equal(t, models.ContractStatusSigned, signed.Status)
	require.NotNil(t, signed.SignedAt)

	signature, err := env.repos.Signature.GetByContractAndSigner(contract.ID, models.SignerTypeClient)
	require.NoError(t, err)
	assert.Equal(t, "Pat Jones", signature.SignerName)
	assert.Equal(t, models.HashContent(stored.Content), signature.ContentHash)

	types := env.eventTypes(t, contract.ID)
	assert.Contains(t, types, models.EventSigned)

	// Contractor got the signed notification.
	var found bool
	for _, m := range env.mailer.sent {
		if m.To == "dana@acme.test" && strings.Contains(m.Subject, "signed") {
			found = true
		}
	}
	assert.True(t, found, "contractor notification missing")
}

func TestSignRejectsHashMismatch(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t, models.TierFree)
	contract := env.createContract(t)
	require.NoError(t, env.service.Send(context.Background(), contract.ID, "1"))

	raw, _, err := env.tokens.Issue(contract.ID, time.Now())
	require.NoError(t, err)

	_, err = env.service.Sign(context.Background(), raw, SignatureSubmission{
		SignerName:  "Pat Jones",
		ContentHash: models.HashContent("<p>Something else entirely.</p>"),
	})
	assert.ErrorIs(t, err, ErrInvalidTransition)

	stored, err := env.repos.Contract.GetByID(contract.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ContractStatusSent, stored.Status)
}

func TestSignExpiredToken(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t, models.TierFree)
	contract := env.createContract(t)
	require.NoError(t, env.service.Send(context.Background(), contract.ID, "1"))

	// Issue far enough in the past that the link is already dead.
	raw, _, err := env.tokens.Issue(contract.ID, time.Now().Add(-2*time.Hour))
	require.NoError(t, err)

	_, err = env.service.Sign(context.Background(), raw, SignatureSubmission{
		SignerName:  "Pat Jones",
		ContentHash: models.HashContent("<p>Scope of work, payment terms.</p>"),
	})
	assert.ErrorIs(t, err, signing.ErrTokenExpired)

	stored, err := env.repos.Contract.GetByID(contract.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ContractStatusSent, stored.Status)

	_, err = env.repos.Signature.GetByContractAndSigner(contract.ID, models.SignerTypeClient)
	assert.Error(t, err)
}

func TestUpdateContent(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t, models.TierFree)
	contract := env.createContract(t)

	title := "Kitchen and bath remodel"
	total := int64(20000)
	require.NoError(t, env.service.UpdateContent(context.Background(), contract.ID,
		UpdateContentInput{Title: &title, TotalCents: &total}, "1"))

	stored, err := env.repos.Contract.GetByID(contract.ID)
	require.NoError(t, err)
	assert.Equal(t, title, stored.Title)
	assert.Equal(t, total, stored.TotalCents)
	assert.Contains(t, env.eventTypes(t, contract.ID), models.EventContentUpdated)
}

func TestUpdateContentLockedAfterSigning(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t, models.TierFree)
	contract := env.createContract(t)
	require.NoError(t, env.service.Send(context.Background(), contract.ID, "1"))

	raw, _, err := env.tokens.Issue(contract.ID, time.Now())
	require.NoError(t, err)
	_, err = env.service.Sign(context.Background(), raw, SignatureSubmission{
		SignerName:  "Pat Jones",
		ContentHash: models.HashContent("<p>Scope of work, payment terms.</p>"),
	})
	require.NoError(t, err)

	title := "Sneaky edit"
	err = env.service.UpdateContent(context.Background(), contract.ID, UpdateContentInput{Title: &title}, "1")
	assert.ErrorIs(t, err, ErrContractLocked)

	stored, err := env.repos.Contract.GetByID(contract.ID)
	require.NoError(t, err)
	assert.Equal(t, "Kitchen remodel", stored.Title)
}

func TestUpdateContentMissingContract(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t, models.TierFree)

	title := "Ghost"
	err := env.service.UpdateContent(context.Background(), 999, UpdateContentInput{Title: &title}, "1")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestVoid(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t, models.TierFree)
	contract := env.createContract(t)
	require.NoError(t, env.service.Send(context.Background(), contract.ID, "1"))

	// A pending payment hangs off the contract when it gets voided.
	_, _, err := env.repos.Payment.CreateIfAbsent(&models.Payment{
		ContractID:  contract.ID,
		CompanyID:   1,
		Kind:        models.PaymentKindDeposit,
		AmountCents: 2500,
		Status:      models.PaymentStatusPending,
		SessionID:   "cs_void",
	})
	require.NoError(t, err)

	require.NoError(t, env.service.Void(context.Background(), contract.ID, "1"))

	stored, err := env.repos.Contract.GetByID(contract.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ContractStatusCancelled, stored.Status)

	payment, err := env.repos.Payment.GetBySessionID("cs_void")
	require.NoError(t, err)
	assert.Equal(t, models.PaymentStatusFailed, payment.Status)

	assert.Contains(t, env.eventTypes(t, contract.ID), models.EventVoided)
}

func TestVoidTerminalFails(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t, models.TierFree)
	contract := env.createContract(t)

	require.NoError(t, env.service.Void(context.Background(), contract.ID, "1"))
	err := env.service.Void(context.Background(), contract.ID, "1")
	assert.ErrorIs(t, err, ErrInvalidTransition)
}
