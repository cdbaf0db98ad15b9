package repository

import (
	"context"
	"database/sql"
	"strings"

	"github.com/teststack/test-management-service/internal/database"
	"github.com/teststack/test-management-service/internal/model"
	"github.com/teststack/test-management-service/internal/utils"
)

// UserRepo provides CRUD operations for user accounts and their tag
// assignments.  All read paths exclude soft-deleted rows unless the method
// documents otherwise.  Passwords are stored bcrypt-hashed; the hash is
// exposed only through GetByEmail for credential verification.
type UserRepo struct {
	db *sql.DB
}

// NewUserRepo returns a new UserRepo bound to the given database.
func NewUserRepo(db *sql.DB) *UserRepo { return &UserRepo{db: db} }

// UserFilter narrows List results.  Empty fields are ignored.  Email and
// Department match as case-insensitive substrings; TagID matches users
// holding the given tag.
type UserFilter struct {
	Email      string
	Department string
	TagID      uint64
}

// GetByEmail returns the non-deleted user with the given email including
// the password hash.  sql.ErrNoRows is returned when no such user exists.
func (r *UserRepo) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	const q = `SELECT id, email, password, user_role, department, company, created_at, updated_at
	           FROM mt_users WHERE email = ? AND is_deleted = FALSE`
	var u model.User
	var role int
	err := r.db.QueryRowContext(ctx, q, email).Scan(
		&u.ID, &u.Email, &u.PasswordHash, &role, &u.Department, &u.Company,
		&u.CreatedAt, &u.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	u.UserRole = model.UserRole(role)
	return &u, nil
}

// GetByID returns the non-deleted user with the given id.  The password
// hash is not populated.
func (r *UserRepo) GetByID(ctx context.Context, id uint64) (*model.User, error) {
	const q = `SELECT id, email, user_role, department, company, created_at, updated_at
	           FROM mt_users WHERE id = ? AND is_deleted = FALSE`
	var u model.User
	var role int
	err := r.db.QueryRowContext(ctx, q, id).Scan(
		&u.ID, &u.Email, &role, &u.Department, &u.Company, &u.CreatedAt, &u.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	u.UserRole = model.UserRole(role)
	return &u, nil
}

// Create inserts a new user together with its tag assignments in one
// transaction.  Tags are resolved by name and created on first use.  It
// returns ErrEmailExists when a non-deleted user already holds the email.
func (r *UserRepo) Create(ctx context.Context, email, password string, role model.UserRole, department, company string, tagNames []string, bcryptCost int) (uint64, error) {
	var exists bool
	const dup = `SELECT EXISTS(SELECT 1 FROM mt_users WHERE email = ? AND is_deleted = FALSE)`
	if err := r.db.QueryRowContext(ctx, dup, email).Scan(&exists); err != nil {
		return 0, err
	}
	if exists {
		return 0, ErrEmailExists
	}

	hash, err := utils.HashPassword(password, bcryptCost)
	if err != nil {
		return 0, err
	}

	var uid uint64
	err = database.WithTx(ctx, r.db, func(tx *sql.Tx) error {
		const ins = `INSERT INTO mt_users (email, password, user_role, department, company)
		             VALUES (?, ?, ?, ?, ?)`
		res, err := tx.ExecContext(ctx, ins, email, hash, int(role), department, company)
		if err != nil {
			return err
		}
		id, err := res.LastInsertId()
		if err != nil {
			return err
		}
		uid = uint64(id)
		return replaceUserTagsTx(ctx, tx, uid, tagNames)
	})
	if err != nil {
		return 0, err
	}
	return uid, nil
}

// Update rewrites role, department and company for an existing user and
// replaces its tag set.  When newPassword is non-empty the stored
// credential is rehashed; otherwise it is left untouched.
func (r *UserRepo) Update(ctx context.Context, id uint64, role model.UserRole, department, company, newPassword string, tagNames []string, bcryptCost int) error {
	var hash string
	if strings.TrimSpace(newPassword) != "" {
		h, err := utils.HashPassword(newPassword, bcryptCost)
		if err != nil {
			return err
		}
		hash = h
	}
	return database.WithTx(ctx, r.db, func(tx *sql.Tx) error {
		if hash != "" {
			const q = `UPDATE mt_users SET user_role = ?, department = ?, company = ?, password = ?,
			           updated_at = CURRENT_TIMESTAMP WHERE id = ? AND is_deleted = FALSE`
			if _, err := tx.ExecContext(ctx, q, int(role), department, company, hash, id); err != nil {
				return err
			}
		} else {
			const q = `UPDATE mt_users SET user_role = ?, department = ?, company = ?,
			           updated_at = CURRENT_TIMESTAMP WHERE id = ? AND is_deleted = FALSE`
			if _, err := tx.ExecContext(ctx, q, int(role), department, company, id); err != nil {
				return err
			}
		}
		return replaceUserTagsTx(ctx, tx, id, tagNames)
	})
}

// SoftDelete flags the user row as deleted.  Tag assignments are left in
// place; every permission query joins through mt_users/mt_tags filters so
// a deleted user simply stops matching.
func (r *UserRepo) SoftDelete(ctx context.Context, id uint64) error {
	const q = `UPDATE mt_users SET is_deleted = TRUE, updated_at = CURRENT_TIMESTAMP WHERE id = ?`
	_, err := r.db.ExecContext(ctx, q, id)
	return err
}

// List returns non-deleted users matching the filter, newest first, each
// with its non-deleted tags populated.
func (r *UserRepo) List(ctx context.Context, f UserFilter) ([]UserWithTags, error) {
	q := `SELECT DISTINCT u.id, u.email, u.user_role, u.department, u.company, u.created_at, u.updated_at
	      FROM mt_users u
	      LEFT JOIN mt_user_tags ut ON u.id = ut.user_id AND ut.is_deleted = FALSE
	      WHERE u.is_deleted = FALSE`
	args := []interface{}{}
	if f.Email != "" {
		q += ` AND u.email LIKE ?`
		args = append(args, "%"+f.Email+"%")
	}
	if f.Department != "" {
		q += ` AND u.department LIKE ?`
		args = append(args, "%"+f.Department+"%")
	}
	if f.TagID != 0 {
		q += ` AND ut.tag_id = ?`
		args = append(args, f.TagID)
	}
	q += ` ORDER BY u.created_at DESC`

	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	users := make([]UserWithTags, 0)
	for rows.Next() {
		var u UserWithTags
		var role int
		if err := rows.Scan(&u.ID, &u.Email, &role, &u.Department, &u.Company, &u.CreatedAt, &u.UpdatedAt); err != nil {
			return nil, err
		}
		u.UserRole = model.UserRole(role)
		u.Tags = []TagRef{}
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for i := range users {
		tags, err := r.TagsForUser(ctx, users[i].ID)
		if err != nil {
			return nil, err
		}
		users[i].Tags = tags
	}
	return users, nil
}

// UserWithTags is the list/export projection of a user: the account fields
// without the password hash, plus the user's current tags.
type UserWithTags struct {
	ID         uint64         `json:"id"`
	Email      string         `json:"email"`
	UserRole   model.UserRole `json:"user_role"`
	Department string         `json:"department"`
	Company    string         `json:"company"`
	CreatedAt  sql.NullTime   `json:"created_at"`
	UpdatedAt  sql.NullTime   `json:"updated_at"`
	Tags       []TagRef       `json:"tags"`
}

// TagRef is a small id+name tag projection used in user responses.
type TagRef struct {
	ID   uint64 `json:"id"`
	Name string `json:"name"`
}

// TagsForUser returns the non-deleted tags currently assigned to a user,
// ordered by name.
func (r *UserRepo) TagsForUser(ctx context.Context, userID uint64) ([]TagRef, error) {
	const q = `SELECT t.id, t.name
	           FROM mt_tags t
	           JOIN mt_user_tags ut ON t.id = ut.tag_id
	           WHERE ut.user_id = ? AND ut.is_deleted = FALSE AND t.is_deleted = FALSE
	           ORDER BY t.name`
	rows, err := r.db.QueryContext(ctx, q, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	tags := make([]TagRef, 0)
	for rows.Next() {
		var t TagRef
		if err := rows.Scan(&t.ID, &t.Name); err != nil {
			return nil, err
		}
		tags = append(tags, t)
	}
	return tags, rows.Err()
}

// replaceUserTagsTx soft-deletes the user's current tag assignments and
// re-inserts the given tag names, creating tags on first use.  Duplicate
// (user, tag) pairs are revived in place rather than duplicated.
func replaceUserTagsTx(ctx context.Context, tx *sql.Tx, userID uint64, tagNames []string) error {
	const del = `UPDATE mt_user_tags SET is_deleted = TRUE, updated_at = CURRENT_TIMESTAMP WHERE user_id = ?`
	if _, err := tx.ExecContext(ctx, del, userID); err != nil {
		return err
	}
	for _, name := range tagNames {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		tagID, err := getOrCreateTagTx(ctx, tx, name)
		if err != nil {
			return err
		}
		const ins = `INSERT INTO mt_user_tags (user_id, tag_id, is_deleted)
		             VALUES (?, ?, FALSE)
		             ON DUPLICATE KEY UPDATE is_deleted = FALSE, updated_at = CURRENT_TIMESTAMP`
		if _, err := tx.ExecContext(ctx, ins, userID, tagID); err != nil {
			return err
		}
	}
	return nil
}

// getOrCreateTagTx resolves a tag id by name, inserting the tag when no
// non-deleted tag with that name exists yet.
func getOrCreateTagTx(ctx context.Context, tx *sql.Tx, name string) (uint64, error) {
	const sel = `SELECT id FROM mt_tags WHERE name = ? AND is_deleted = FALSE`
	var id uint64
	err := tx.QueryRowContext(ctx, sel, name).Scan(&id)
	if err == nil {
		return id, nil
	}
	if err != sql.ErrNoRows {
		return 0, err
	}
	const ins = `INSERT INTO mt_tags (name) VALUES (?)`
	res, err := tx.ExecContext(ctx, ins, name)
	if err != nil {
		return 0, err
	}
	last, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	return uint64(last), nil
}
