package repository

import (
	"context"
	"database/sql"

	"github.com/teststack/test-management-service/internal/model"
)

// TagRepo provides read access to tags and to the tag-mediated permission
// joins used by the access resolver.  Tag creation happens inside user
// writes (see user_repository.go) so it can share those transactions.
type TagRepo struct {
	db *sql.DB
}

// NewTagRepo returns a new TagRepo bound to the given database.
func NewTagRepo(db *sql.DB) *TagRepo { return &TagRepo{db: db} }

// List returns all non-deleted tags ordered by name.
func (r *TagRepo) List(ctx context.Context) ([]TagRef, error) {
	const q = `SELECT id, name FROM mt_tags WHERE is_deleted = FALSE ORDER BY name`
	rows, err := r.db.QueryContext(ctx, q)
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

// TestRolesFor returns every test role the user reaches on the group
// through tag assignments.  One entry per matching (user tag, group tag)
// pair; the caller decides what the role values mean.  Absence of rows is
// not an error.  A deleted group yields no roles even when its tag rows
// survive.
func (r *TagRepo) TestRolesFor(ctx context.Context, userID, groupID uint64) ([]model.TestRole, error) {
	const q = `SELECT tgt.test_role
	           FROM tt_test_group_tags tgt
	           JOIN tt_test_groups g ON g.id = tgt.test_group_id
	           JOIN mt_user_tags ut ON tgt.tag_id = ut.tag_id
	           JOIN mt_tags t ON t.id = tgt.tag_id
	           WHERE tgt.test_group_id = ? AND ut.user_id = ?
	             AND g.is_deleted = FALSE
	             AND ut.is_deleted = FALSE AND t.is_deleted = FALSE`
	rows, err := r.db.QueryContext(ctx, q, groupID, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	roles := make([]model.TestRole, 0)
	for rows.Next() {
		var n int
		if err := rows.Scan(&n); err != nil {
			return nil, err
		}
		roles = append(roles, model.TestRole(n))
	}
	return roles, rows.Err()
}

// GroupIDsForUser returns the distinct non-deleted test groups the user
// reaches through any tag assignment, regardless of role level.
func (r *TagRepo) GroupIDsForUser(ctx context.Context, userID uint64) ([]uint64, error) {
	const q = `SELECT DISTINCT tgt.test_group_id
	           FROM tt_test_group_tags tgt
	           JOIN mt_user_tags ut ON tgt.tag_id = ut.tag_id
	           JOIN mt_tags t ON t.id = tgt.tag_id
	           JOIN tt_test_groups tg ON tg.id = tgt.test_group_id
	           WHERE ut.user_id = ? AND ut.is_deleted = FALSE
	             AND t.is_deleted = FALSE AND tg.is_deleted = FALSE`
	rows, err := r.db.QueryContext(ctx, q, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	ids := make([]uint64, 0)
	for rows.Next() {
		var id uint64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
