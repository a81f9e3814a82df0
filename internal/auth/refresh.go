package auth

import (
	"context"
	"crypto/subtle"
)

// RefreshTokenStore tracks the single refresh token value currently valid
// for an account. Saving is a blind overwrite: the moment a new value lands,
// the previous one is revoked even if its signature and expiry still hold.
type RefreshTokenStore struct {
	repo Repository
}

// NewRefreshTokenStore wraps the account repository.
func NewRefreshTokenStore(repo Repository) *RefreshTokenStore {
	return &RefreshTokenStore{repo: repo}
}

// Save unconditionally overwrites the account's stored refresh token.
// Last write wins; two concurrent refreshes with the same valid token may
// both pass IsCurrent and the later Save silently revokes the earlier pair.
func (s *RefreshTokenStore) Save(ctx context.Context, accountID, token string) error {
	account, err := s.repo.FindByID(ctx, accountID)
	if err != nil {
		return err
	}
	account.CurrentRefreshToken = token
	return s.repo.Save(ctx, account)
}

// IsCurrent reports whether token byte-equals the stored value and the
// account is active. The comparison is constant time.
func (s *RefreshTokenStore) IsCurrent(ctx context.Context, accountID, token string) bool {
	if token == "" {
		return false
	}
	account, err := s.repo.FindByID(ctx, accountID)
	if err != nil {
		return false
	}
	if !account.IsActive || account.CurrentRefreshToken == "" {
		return false
	}
	if len(account.CurrentRefreshToken) != len(token) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(account.CurrentRefreshToken), []byte(token)) == 1
}

// Clear empties the slot. Clearing an already-empty slot succeeds, which
// keeps logout idempotent.
func (s *RefreshTokenStore) Clear(ctx context.Context, accountID string) error {
	return s.Save(ctx, accountID, "")
}
