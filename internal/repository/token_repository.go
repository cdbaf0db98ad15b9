package repository

import (
	"context"
	"database/sql"
	"time"
)

// TokenRepo persists refresh tokens.  Only the SHA-256 hash of a token is
// ever stored; the raw value exists nowhere but the client.
type TokenRepo struct {
	db *sql.DB
}

// NewTokenRepo returns a new TokenRepo bound to the given database.
func NewTokenRepo(db *sql.DB) *TokenRepo { return &TokenRepo{db: db} }

// StoreRefresh inserts a refresh token hash for the user.
func (r *TokenRepo) StoreRefresh(ctx context.Context, userID uint64, tokenHash string, expiresAt time.Time) error {
	const q = `INSERT INTO mt_refresh_tokens (user_id, token_hash, expires_at) VALUES (?, ?, ?)`
	_, err := r.db.ExecContext(ctx, q, userID, tokenHash, expiresAt)
	return err
}

// ValidateRefresh returns the owning user id when the hash matches an
// unexpired, unrevoked token.  sql.ErrNoRows means the token is not usable.
func (r *TokenRepo) ValidateRefresh(ctx context.Context, tokenHash string) (uint64, error) {
	const q = `SELECT user_id FROM mt_refresh_tokens
	           WHERE token_hash = ? AND revoked_at IS NULL AND expires_at > NOW()`
	var userID uint64
	err := r.db.QueryRowContext(ctx, q, tokenHash).Scan(&userID)
	return userID, err
}

// RevokeByHash marks one token as revoked.  Revoking an unknown or already
// revoked hash is not an error.
func (r *TokenRepo) RevokeByHash(ctx context.Context, tokenHash string) error {
	const q = `UPDATE mt_refresh_tokens SET revoked_at = NOW()
	           WHERE token_hash = ? AND revoked_at IS NULL`
	_, err := r.db.ExecContext(ctx, q, tokenHash)
	return err
}

// RevokeAllForUser revokes every live token of the user, used on password
// change and account deletion.
func (r *TokenRepo) RevokeAllForUser(ctx context.Context, userID uint64) error {
	const q = `UPDATE mt_refresh_tokens SET revoked_at = NOW()
	           WHERE user_id = ? AND revoked_at IS NULL`
	_, err := r.db.ExecContext(ctx, q, userID)
	return err
}
