package models

// AccessKey is a single-use provisioning token minted by an administrator.
// Revocation is terminal: a revoked key is never reactivated, and the row is
// never deleted.
type AccessKey struct {
	ID          int64  `json:"id"`
	Token       string `json:"token"`
	Days        int    `json:"days"` // 0 = unlimited
	IsUsed      bool   `json:"is_used"`
	UsedBy      *int64 `json:"used_by,omitempty"`
	UsedByLabel string `json:"used_by_label,omitempty"`
	CreatedAt   int64  `json:"created_at"`
	ActivatedAt *int64 `json:"activated_at,omitempty"`
	ExpiresAt   *int64 `json:"expires_at,omitempty"`
	IsRevoked   bool   `json:"is_revoked"`
}

// Account is the durable record of a provisioned subscriber, one per
// external user identity. IsActive is a cached value reconciled by the
// expiry sweep; eligibility decisions re-derive it from ExpiresAt.
type Account struct {
	ID         int64  `json:"id"`
	UserID     int64  `json:"user_id"`
	Label      string `json:"label"`
	ClientUUID string `json:"client_uuid"`
	Path       string `json:"path"`
	KeyID      int64  `json:"key_id"`
	CreatedAt  int64  `json:"created_at"`
	ExpiresAt  *int64 `json:"expires_at,omitempty"`
	IsActive   bool   `json:"is_active"`
}

// Eligible reports whether the account should be served at the given unix
// time, ignoring the cached IsActive flag's staleness window.
func (a *Account) Eligible(now int64) bool {
	if !a.IsActive {
		return false
	}
	return a.ExpiresAt == nil || *a.ExpiresAt > now
}
