package repositories

import (
	"database/sql"
	"time"

	"nefrit/internal/platform/models"
)

type KeyRepository struct {
	db *sql.DB
}

func NewKeyRepository(db *sql.DB) *KeyRepository {
	return &KeyRepository{db: db}
}

func (r *KeyRepository) Create(key *models.AccessKey) error {
	key.CreatedAt = time.Now().Unix()

	res, err := r.db.Exec(
		`INSERT INTO keys (token, days, created_at) VALUES (?, ?, ?)`,
		key.Token, key.Days, key.CreatedAt,
	)
	if err != nil {
		return err
	}

	key.ID, err = res.LastInsertId()
	return err
}

func (r *KeyRepository) GetByID(id int64) (*models.AccessKey, error) {
	row := r.db.QueryRow(selectKey+` WHERE id = ?`, id)
	return scanKey(row)
}

// GetByTokenTx reads the key inside the activation transaction so the
// check-then-consume sequence observes a consistent state.
func (r *KeyRepository) GetByTokenTx(tx *sql.Tx, token string) (*models.AccessKey, error) {
	row := tx.QueryRow(selectKey+` WHERE token = ?`, token)
	return scanKey(row)
}

// MarkUsedTx flips the key to used as part of the activation transaction.
func (r *KeyRepository) MarkUsedTx(tx *sql.Tx, keyID, userID int64, label string, activatedAt int64, expiresAt *int64) error {
	_, err := tx.Exec(
		`UPDATE keys SET is_used = 1, used_by = ?, used_by_label = ?, activated_at = ?, expires_at = ? WHERE id = ?`,
		userID, label, activatedAt, expiresAt, keyID,
	)
	return err
}

func (r *KeyRepository) Revoke(id int64) error {
	_, err := r.db.Exec(`UPDATE keys SET is_revoked = 1 WHERE id = ?`, id)
	return err
}

func (r *KeyRepository) List(limit int) ([]*models.AccessKey, error) {
	rows, err := r.db.Query(selectKey+` ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var keys []*models.AccessKey
	for rows.Next() {
		key, err := scanKey(rows)
		if err != nil {
			return nil, err
		}
		keys = append(keys, key)
	}
	return keys, rows.Err()
}

func (r *KeyRepository) CountFree() (int64, error) {
	var n int64
	err := r.db.QueryRow(`SELECT COUNT(*) FROM keys WHERE is_used = 0 AND is_revoked = 0`).Scan(&n)
	return n, err
}

func (r *KeyRepository) CountTotal() (int64, error) {
	var n int64
	err := r.db.QueryRow(`SELECT COUNT(*) FROM keys`).Scan(&n)
	return n, err
}

const selectKey = `SELECT id, token, days, is_used, used_by, used_by_label, created_at, activated_at, expires_at, is_revoked FROM keys`

func scanKey(s interface {
	Scan(dest ...interface{}) error
}) (*models.AccessKey, error) {
	var key models.AccessKey
	var usedBy, activatedAt, expiresAt sql.NullInt64

	err := s.Scan(
		&key.ID,
		&key.Token,
		&key.Days,
		&key.IsUsed,
		&usedBy,
		&key.UsedByLabel,
		&key.CreatedAt,
		&activatedAt,
		&expiresAt,
		&key.IsRevoked,
	)
	if err != nil {
		return nil, err
	}

	if usedBy.Valid {
		val := usedBy.Int64
		key.UsedBy = &val
	}
	if activatedAt.Valid {
		val := activatedAt.Int64
		key.ActivatedAt = &val
	}
	if expiresAt.Valid {
		val := expiresAt.Int64
		key.ExpiresAt = &val
	}

	return &key, nil
}
