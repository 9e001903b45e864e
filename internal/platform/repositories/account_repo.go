package repositories

import (
	"database/sql"

	"nefrit/internal/platform/models"
)

type AccountRepository struct {
	db *sql.DB
}

func NewAccountRepository(db *sql.DB) *AccountRepository {
	return &AccountRepository{db: db}
}

// CreateTx inserts the account inside the activation transaction, paired
// with KeyRepository.MarkUsedTx so both commit or neither does.
func (r *AccountRepository) CreateTx(tx *sql.Tx, acct *models.Account) error {
	res, err := tx.Exec(
		`INSERT INTO accounts (user_id, label, client_uuid, path, key_id, created_at, expires_at, is_active)
		 VALUES (?, ?, ?, ?, ?, ?, ?, 1)`,
		acct.UserID, acct.Label, acct.ClientUUID, acct.Path, acct.KeyID, acct.CreatedAt, acct.ExpiresAt,
	)
	if err != nil {
		return err
	}

	acct.ID, err = res.LastInsertId()
	acct.IsActive = true
	return err
}

func (r *AccountRepository) GetByUserID(userID int64) (*models.Account, error) {
	row := r.db.QueryRow(selectAccount+` WHERE user_id = ?`, userID)
	return scanAccount(row)
}

func (r *AccountRepository) GetByUserIDTx(tx *sql.Tx, userID int64) (*models.Account, error) {
	row := tx.QueryRow(selectAccount+` WHERE user_id = ?`, userID)
	return scanAccount(row)
}

func (r *AccountRepository) GetByPath(path string) (*models.Account, error) {
	row := r.db.QueryRow(selectAccount+` WHERE path = ?`, path)
	return scanAccount(row)
}

func (r *AccountRepository) DeactivateByKeyID(keyID int64) error {
	_, err := r.db.Exec(`UPDATE accounts SET is_active = 0 WHERE key_id = ?`, keyID)
	return err
}

// ExpireOlderThan deactivates every active account whose expiry has passed.
// Accounts with NULL expires_at are unlimited and never touched.
func (r *AccountRepository) ExpireOlderThan(now int64) (int64, error) {
	res, err := r.db.Exec(
		`UPDATE accounts SET is_active = 0 WHERE expires_at IS NOT NULL AND expires_at <= ? AND is_active = 1`,
		now,
	)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// ListActive returns the accounts eligible for the engine client list.
// Eligibility is re-derived from expires_at rather than trusting the cached
// is_active flag alone.
func (r *AccountRepository) ListActive(now int64) ([]*models.Account, error) {
	rows, err := r.db.Query(
		selectAccount+` WHERE is_active = 1 AND (expires_at IS NULL OR expires_at > ?) ORDER BY id`,
		now,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var accounts []*models.Account
	for rows.Next() {
		acct, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		accounts = append(accounts, acct)
	}
	return accounts, rows.Err()
}

func (r *AccountRepository) CountActive() (int64, error) {
	var n int64
	err := r.db.QueryRow(`SELECT COUNT(*) FROM accounts WHERE is_active = 1`).Scan(&n)
	return n, err
}

func (r *AccountRepository) CountTotal() (int64, error) {
	var n int64
	err := r.db.QueryRow(`SELECT COUNT(*) FROM accounts`).Scan(&n)
	return n, err
}

const selectAccount = `SELECT id, user_id, label, client_uuid, path, key_id, created_at, expires_at, is_active FROM accounts`

func scanAccount(s interface {
	Scan(dest ...interface{}) error
}) (*models.Account, error) {
	var acct models.Account
	var expiresAt sql.NullInt64

	err := s.Scan(
		&acct.ID,
		&acct.UserID,
		&acct.Label,
		&acct.ClientUUID,
		&acct.Path,
		&acct.KeyID,
		&acct.CreatedAt,
		&expiresAt,
		&acct.IsActive,
	)
	if err != nil {
		return nil, err
	}

	if expiresAt.Valid {
		val := expiresAt.Int64
		acct.ExpiresAt = &val
	}

	return &acct, nil
}
