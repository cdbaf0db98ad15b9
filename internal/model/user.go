package model

import "time"

// UserRole is the static global role carried by every account.  It is
// stamped into the access token at login and re-read on refresh, so a role
// change takes effect the next time a token is issued.
type UserRole int

const (
	UserRoleAdmin       UserRole = 0 // full access to every group and admin surface
	UserRoleTestManager UserRole = 1 // may create test groups
	UserRoleGeneral     UserRole = 2 // access only through tag assignments
)

// ValidUserRole reports whether n maps to a defined UserRole value.
func ValidUserRole(n int) bool {
	return n >= int(UserRoleAdmin) && n <= int(UserRoleGeneral)
}

// User represents an application user record as stored in the `mt_users`
// table.  Each field corresponds to a column.  Handlers define separate
// response types with JSON tags; the password hash never leaves the
// repository layer except for credential verification.
//
// Fields:
//
//	ID           – primary key identifier of the user.
//	Email        – unique email address among non-deleted users.
//	PasswordHash – bcrypt hashed password.
//	UserRole     – global role (0 admin / 1 test manager / 2 general).
//	Department   – free-text department name.
//	Company      – free-text company name.
type User struct {
	ID           uint64    // mt_users.id
	Email        string    // mt_users.email
	PasswordHash string    // mt_users.password
	UserRole     UserRole  // mt_users.user_role
	Department   string    // mt_users.department
	Company      string    // mt_users.company
	CreatedAt    time.Time // mt_users.created_at
	UpdatedAt    time.Time // mt_users.updated_at
	IsDeleted    bool      // mt_users.is_deleted
}

// RefreshToken models an entry in the `mt_refresh_tokens` table.  Each
// refresh token belongs to a user.  The plain token is not stored; only
// its SHA-256 hash.
type RefreshToken struct {
	ID        uint64     // mt_refresh_tokens.id
	UserID    uint64     // mt_refresh_tokens.user_id
	TokenHash string     // mt_refresh_tokens.token_hash
	ExpiresAt time.Time  // mt_refresh_tokens.expires_at
	RevokedAt *time.Time // mt_refresh_tokens.revoked_at (nullable)
	CreatedAt time.Time  // mt_refresh_tokens.created_at
}
