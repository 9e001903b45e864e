package lifecycle

import (
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"nefrit/internal/platform/models"
	"nefrit/internal/platform/repositories"
)

const tokenPrefix = "NEFRIT-"

// Restarter is satisfied by the xray supervisor; lifecycle mutations push a
// refreshed client list to the engine through it.
type Restarter interface {
	Restart() error
}

type Stats struct {
	ActiveAccounts int64 `json:"active_accounts"`
	TotalAccounts  int64 `json:"total_accounts"`
	FreeKeys       int64 `json:"free_keys"`
	TotalKeys      int64 `json:"total_keys"`
}

// Service owns the access-key and account state machine: key minting,
// activation, revocation and expiry reconciliation.
type Service struct {
	db        *sql.DB
	keys      *repositories.KeyRepository
	accounts  *repositories.AccountRepository
	restarter Restarter
}

func NewService(db *sql.DB, keys *repositories.KeyRepository, accounts *repositories.AccountRepository, restarter Restarter) *Service {
	return &Service{db: db, keys: keys, accounts: accounts, restarter: restarter}
}

// CreateKey mints a fresh access key. days == 0 means unlimited.
func (s *Service) CreateKey(days int) (*models.AccessKey, error) {
	if days < 0 {
		return nil, ErrInvalidDuration
	}

	key := &models.AccessKey{
		Token: newToken(),
		Days:  days,
	}
	if err := s.keys.Create(key); err != nil {
		return nil, storageErr("create key", err)
	}

	log.Info().Int64("key_id", key.ID).Int("days", days).Msg("access key created")
	return key, nil
}

// Activate consumes a key for the given external identity and returns the
// account's subscription path.
//
// The call is idempotent per identity: if an account already exists for
// userID, its path is returned and the submitted key is left untouched,
// even though that key was never validated or consumed. This mirrors the
// long-standing "already subscribed" behavior and is intentionally not
// changed here.
func (s *Service) Activate(token string, userID int64, label string) (string, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return "", storageErr("begin activation", err)
	}
	defer tx.Rollback()

	key, err := s.keys.GetByTokenTx(tx, token)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", ErrKeyNotFound
		}
		return "", storageErr("lookup key", err)
	}
	if key.IsRevoked {
		return "", ErrKeyRevoked
	}
	if key.IsUsed {
		return "", ErrKeyAlreadyUsed
	}

	existing, err := s.accounts.GetByUserIDTx(tx, userID)
	if err == nil {
		return existing.Path, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return "", storageErr("lookup account", err)
	}

	now := time.Now().Unix()
	var expiresAt *int64
	if key.Days > 0 {
		val := now + int64(key.Days)*86400
		expiresAt = &val
	}

	acct := &models.Account{
		UserID:     userID,
		Label:      label,
		ClientUUID: uuid.New().String(),
		Path:       fmt.Sprintf("u%d", userID),
		KeyID:      key.ID,
		CreatedAt:  now,
		ExpiresAt:  expiresAt,
	}

	if err := s.accounts.CreateTx(tx, acct); err != nil {
		return "", storageErr("create account", err)
	}
	if err := s.keys.MarkUsedTx(tx, key.ID, userID, label, now, expiresAt); err != nil {
		return "", storageErr("mark key used", err)
	}
	if err := tx.Commit(); err != nil {
		return "", storageErr("commit activation", err)
	}

	log.Info().Int64("key_id", key.ID).Int64("user_id", userID).Str("path", acct.Path).Msg("key activated")

	if err := s.restarter.Restart(); err != nil {
		// The activation is committed; the engine picks the account up on
		// the next successful restart.
		log.Error().Err(err).Msg("engine restart after activation failed")
	}

	return acct.Path, nil
}

// Revoke terminally revokes a key and deactivates its linked account, if
// any. Revoking an already-revoked key succeeds without side effects.
func (s *Service) Revoke(keyID int64) error {
	key, err := s.keys.GetByID(keyID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrKeyNotFound
		}
		return storageErr("lookup key", err)
	}
	if key.IsRevoked {
		return nil
	}

	if err := s.keys.Revoke(keyID); err != nil {
		return storageErr("revoke key", err)
	}
	if err := s.accounts.DeactivateByKeyID(keyID); err != nil {
		return storageErr("deactivate account", err)
	}

	log.Info().Int64("key_id", keyID).Msg("key revoked")

	if err := s.restarter.Restart(); err != nil {
		log.Error().Err(err).Msg("engine restart after revocation failed")
	}
	return nil
}

// Sweep deactivates every account whose expiry has passed. It runs on the
// hourly schedule and lazily before any freshness-sensitive read, so a
// stale active flag is never observable from the outside.
func (s *Service) Sweep() (int64, error) {
	n, err := s.accounts.ExpireOlderThan(time.Now().Unix())
	if err != nil {
		return 0, storageErr("expiry sweep", err)
	}
	if n > 0 {
		log.Info().Int64("expired", n).Msg("accounts deactivated by expiry sweep")
	}
	return n, nil
}

// AccountByPath resolves a subscription path after reconciling expiries.
func (s *Service) AccountByPath(path string) (*models.Account, error) {
	if _, err := s.Sweep(); err != nil {
		return nil, err
	}

	acct, err := s.accounts.GetByPath(path)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrAccountNotFound
		}
		return nil, storageErr("lookup account", err)
	}
	return acct, nil
}

// AccountStatus resolves the account for an external identity after
// reconciling expiries.
func (s *Service) AccountStatus(userID int64) (*models.Account, error) {
	if _, err := s.Sweep(); err != nil {
		return nil, err
	}

	acct, err := s.accounts.GetByUserID(userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrAccountNotFound
		}
		return nil, storageErr("lookup account", err)
	}
	return acct, nil
}

func (s *Service) ListKeys(limit int) ([]*models.AccessKey, error) {
	keys, err := s.keys.List(limit)
	if err != nil {
		return nil, storageErr("list keys", err)
	}
	return keys, nil
}

func (s *Service) Stats() (*Stats, error) {
	if _, err := s.Sweep(); err != nil {
		return nil, err
	}

	var stats Stats
	var err error
	if stats.ActiveAccounts, err = s.accounts.CountActive(); err != nil {
		return nil, storageErr("count active accounts", err)
	}
	if stats.TotalAccounts, err = s.accounts.CountTotal(); err != nil {
		return nil, storageErr("count accounts", err)
	}
	if stats.FreeKeys, err = s.keys.CountFree(); err != nil {
		return nil, storageErr("count free keys", err)
	}
	if stats.TotalKeys, err = s.keys.CountTotal(); err != nil {
		return nil, storageErr("count keys", err)
	}
	return &stats, nil
}

func newToken() string {
	buf := make([]byte, 8)
	rand.Read(buf)
	return tokenPrefix + strings.ToUpper(hex.EncodeToString(buf))
}
