package signing

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/quillsign/quillsign/app/models"
	"github.com/quillsign/quillsign/app/repository"
	"github.com/quillsign/quillsign/internal/pkg/env"
	"gorm.io/gorm"
)

// Token errors are client-visible and deliberately distinguishable: an
// invalid link has no remedy, an expired one calls for a fresh link.
var (
	ErrTokenInvalid = errors.New("signing link is not valid")
	ErrTokenExpired = errors.New("signing link has expired, request a new one")
)

const tokenBytes = 32

// DefaultTTL is how long a signing link stays valid unless configured
// otherwise.
const DefaultTTL = 14 * 24 * time.Hour

// Policy controls token lifetime and reuse semantics. OneTime rejects
// any validation after the first successful one; the default allows the
// client to reopen the link until it expires.
type Policy struct {
	TTL     time.Duration
	OneTime bool
}

// PolicyFromEnv reads the signing policy from the environment.
func PolicyFromEnv() Policy {
	p := Policy{TTL: DefaultTTL}
	if raw := env.GetEnv("SIGNING_TOKEN_TTL_HOURS", ""); raw != "" {
		var hours int
		if _, err := fmt.Sscanf(raw, "%d", &hours); err == nil && hours > 0 {
			p.TTL = time.Duration(hours) * time.Hour
		}
	}
	p.OneTime = env.GetEnv("SIGNING_TOKEN_ONE_TIME", "false") == "true"
	return p
}

// Manager issues and validates the signing credential that substitutes
// for client authentication. Only a sha256 hash of the token is stored;
// the raw token is surfaced exactly once at issuance.
type Manager struct {
	contracts repository.ContractRepository
	policy    Policy
}

// NewManager creates a signing token manager.
func NewManager(contracts repository.ContractRepository, policy Policy) *Manager {
	return &Manager{contracts: contracts, policy: policy}
}

// Issue generates a fresh token for the contract, persists its hash and
// expiry, and returns the raw token for embedding in the emailed link.
func (m *Manager) Issue(contractID uint, now time.Time) (string, time.Time, error) {
	buf := make([]byte, tokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", time.Time{}, fmt.Errorf("signing token generation: %w", err)
	}
	raw := base64.RawURLEncoding.EncodeToString(buf)
	expiresAt := now.Add(m.policy.TTL)
	if err := m.contracts.SetSigningToken(contractID, HashToken(raw), expiresAt); err != nil {
		return "", time.Time{}, fmt.Errorf("signing token persist for contract %d: %w", contractID, err)
	}
	return raw, expiresAt, nil
}

// Peek resolves a raw token to its contract without consuming it. Used
// by the read-only signing page.
func (m *Manager) Peek(rawToken string, now time.Time) (*models.Contract, error) {
	return m.lookup(rawToken, now)
}

// Validate resolves a raw token and stamps the first-use marker. Under
// one-time policy a second validation fails with ErrTokenInvalid.
func (m *Manager) Validate(rawToken string, now time.Time) (*models.Contract, error) {
	contract, err := m.lookup(rawToken, now)
	if err != nil {
		return nil, err
	}

	first, err := m.contracts.MarkSigningTokenUsed(contract.ID, now)
	if err != nil {
		return nil, fmt.Errorf("signing token use marker for contract %d: %w", contract.ID, err)
	}
	if !first && m.policy.OneTime {
		return nil, ErrTokenInvalid
	}
	return contract, nil
}

func (m *Manager) lookup(rawToken string, now time.Time) (*models.Contract, error) {
	raw := strings.TrimSpace(rawToken)
	if raw == "" {
		return nil, ErrTokenInvalid
	}

	contract, err := m.contracts.GetBySigningTokenHash(HashToken(raw))
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, ErrTokenInvalid
		}
		return nil, fmt.Errorf("signing token lookup: %w", err)
	}
	if contract.SigningTokenExpiresAt == nil || now.After(*contract.SigningTokenExpiresAt) {
		return nil, ErrTokenExpired
	}
	return contract, nil
}

// HashToken returns the at-rest form of a raw signing token.
func HashToken(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}

// Link builds the client-facing signing URL. The raw token only ever
// travels over the notification channel, never through logs.
func Link(baseURL, rawToken string) string {
	return strings.TrimRight(baseURL, "/") + "/sign/" + rawToken
}
