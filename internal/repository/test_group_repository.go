package repository

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/teststack/test-management-service/internal/database"
	"github.com/teststack/test-management-service/internal/model"
)

// TestGroupRepo provides CRUD operations for test groups and their tag
// bindings.  Group-level writes are restricted to the creator (or an
// admin) by the access resolver before they reach this layer; the
// repository itself only enforces soft-delete visibility.
type TestGroupRepo struct {
	db *sql.DB
}

// NewTestGroupRepo returns a new TestGroupRepo bound to the given database.
func NewTestGroupRepo(db *sql.DB) *TestGroupRepo { return &TestGroupRepo{db: db} }

// GroupTagBinding is the (tag, role) pair attached to a group on create or
// update.
type GroupTagBinding struct {
	TagID    uint64         `json:"tag_id"`
	TestRole model.TestRole `json:"test_role"`
}

// GroupTagDetail is the joined projection of a group's tag bindings.
type GroupTagDetail struct {
	ID       uint64         `json:"id"`
	Name     string         `json:"name"`
	TestRole model.TestRole `json:"test_role"`
}

// CreatorOf returns the created_by value of the non-deleted group, or ""
// with no error when the group does not exist.  The empty string never
// matches a real user id, so callers can compare directly.
func (r *TestGroupRepo) CreatorOf(ctx context.Context, groupID uint64) (string, error) {
	const q = `SELECT created_by FROM tt_test_groups WHERE id = ? AND is_deleted = FALSE`
	var createdBy string
	err := r.db.QueryRowContext(ctx, q, groupID).Scan(&createdBy)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return createdBy, nil
}

// AllIDs returns the ids of all non-deleted groups.
func (r *TestGroupRepo) AllIDs(ctx context.Context) ([]uint64, error) {
	const q = `SELECT id FROM tt_test_groups WHERE is_deleted = FALSE`
	return r.scanIDs(ctx, q)
}

// IDsCreatedBy returns the ids of non-deleted groups created by the given
// principal id (stored as a string in created_by).
func (r *TestGroupRepo) IDsCreatedBy(ctx context.Context, creator string) ([]uint64, error) {
	const q = `SELECT id FROM tt_test_groups WHERE created_by = ? AND is_deleted = FALSE`
	return r.scanIDs(ctx, q, creator)
}

func (r *TestGroupRepo) scanIDs(ctx context.Context, q string, args ...interface{}) ([]uint64, error) {
	rows, err := r.db.QueryContext(ctx, q, args...)
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

// List returns the page of non-deleted groups among the accessible ids
// matching the filter, newest first, together with the total match count
// for pagination.  An empty id set short-circuits to an empty result.
func (r *TestGroupRepo) List(ctx context.Context, ids []uint64, f model.GroupFilter, page, limit int) ([]model.TestGroup, int, error) {
	if len(ids) == 0 {
		return []model.TestGroup{}, 0, nil
	}
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 10
	}

	placeholders := make([]string, len(ids))
	args := make([]interface{}, 0, len(ids)+6)
	for i, id := range ids {
		placeholders[i] = "?"
		args = append(args, id)
	}
	where := `id IN (` + strings.Join(placeholders, ",") + `) AND is_deleted = FALSE`
	for _, c := range []struct{ col, val string }{
		{"oem", f.OEM}, {"model", f.Model}, {"event", f.Event},
		{"variation", f.Variation}, {"destination", f.Destination},
	} {
		if c.val != "" {
			where += ` AND ` + c.col + ` LIKE ?`
			args = append(args, "%"+c.val+"%")
		}
	}

	var total int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM tt_test_groups WHERE `+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	q := `SELECT id, oem, model, event, variation, destination, specs,
	             test_startdate, test_enddate, ng_plan_count, created_by, updated_by,
	             created_at, updated_at
	      FROM tt_test_groups
	      WHERE ` + where + `
	      ORDER BY created_at DESC
	      LIMIT ? OFFSET ?`
	args = append(args, limit, (page-1)*limit)

	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	groups := make([]model.TestGroup, 0)
	for rows.Next() {
		g, err := scanGroup(rows)
		if err != nil {
			return nil, 0, err
		}
		groups = append(groups, *g)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return groups, total, nil
}

// GetByID returns the non-deleted group with the given id.  sql.ErrNoRows
// is returned when the group is absent or soft-deleted.
func (r *TestGroupRepo) GetByID(ctx context.Context, id uint64) (*model.TestGroup, error) {
	const q = `SELECT id, oem, model, event, variation, destination, specs,
	                  test_startdate, test_enddate, ng_plan_count, created_by, updated_by,
	                  created_at, updated_at
	           FROM tt_test_groups WHERE id = ? AND is_deleted = FALSE`
	return scanGroup(r.db.QueryRowContext(ctx, q, id))
}

// TagsForGroup returns the group's tag bindings joined with tag names,
// excluding soft-deleted tags.
func (r *TestGroupRepo) TagsForGroup(ctx context.Context, groupID uint64) ([]GroupTagDetail, error) {
	const q = `SELECT t.id, t.name, tgt.test_role
	           FROM tt_test_group_tags tgt
	           JOIN mt_tags t ON tgt.tag_id = t.id
	           WHERE tgt.test_group_id = ? AND t.is_deleted = FALSE`
	rows, err := r.db.QueryContext(ctx, q, groupID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	tags := make([]GroupTagDetail, 0)
	for rows.Next() {
		var d GroupTagDetail
		var role int
		if err := rows.Scan(&d.ID, &d.Name, &role); err != nil {
			return nil, err
		}
		d.TestRole = model.TestRole(role)
		tags = append(tags, d)
	}
	return tags, rows.Err()
}

// Create inserts a group and its tag bindings in one transaction and
// returns the new group id.
func (r *TestGroupRepo) Create(ctx context.Context, g *model.TestGroup, tags []GroupTagBinding) (uint64, error) {
	var id uint64
	err := database.WithTx(ctx, r.db, func(tx *sql.Tx) error {
		const ins = `INSERT INTO tt_test_groups
		             (oem, model, event, variation, destination, specs,
		              test_startdate, test_enddate, ng_plan_count, created_by, updated_by)
		             VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
		res, err := tx.ExecContext(ctx, ins,
			g.OEM, g.Model, g.Event, g.Variation, g.Destination, g.Specs,
			nullTime(g.TestStartDate), nullTime(g.TestEndDate), g.NGPlanCount,
			g.CreatedBy, g.CreatedBy,
		)
		if err != nil {
			return err
		}
		last, err := res.LastInsertId()
		if err != nil {
			return err
		}
		id = uint64(last)
		return insertGroupTagsTx(ctx, tx, id, tags)
	})
	if err != nil {
		return 0, err
	}
	return id, nil
}

// Update rewrites every group field and, when replaceTags is true,
// replaces the tag bindings, all in one transaction.  sql.ErrNoRows is
// returned when the group does not exist.
func (r *TestGroupRepo) Update(ctx context.Context, g *model.TestGroup, replaceTags bool, tags []GroupTagBinding) error {
	return database.WithTx(ctx, r.db, func(tx *sql.Tx) error {
		const upd = `UPDATE tt_test_groups
		             SET oem = ?, model = ?, event = ?, variation = ?, destination = ?,
		                 specs = ?, test_startdate = ?, test_enddate = ?, ng_plan_count = ?,
		                 updated_by = ?, updated_at = CURRENT_TIMESTAMP
		             WHERE id = ? AND is_deleted = FALSE`
		res, err := tx.ExecContext(ctx, upd,
			g.OEM, g.Model, g.Event, g.Variation, g.Destination, g.Specs,
			nullTime(g.TestStartDate), nullTime(g.TestEndDate), g.NGPlanCount,
			g.UpdatedBy, g.ID,
		)
		if err != nil {
			return err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if n == 0 {
			// Distinguish "no change" from "no row": re-check existence.
			var exists bool
			const chk = `SELECT EXISTS(SELECT 1 FROM tt_test_groups WHERE id = ? AND is_deleted = FALSE)`
			if err := tx.QueryRowContext(ctx, chk, g.ID).Scan(&exists); err != nil {
				return err
			}
			if !exists {
				return sql.ErrNoRows
			}
		}
		if !replaceTags {
			return nil
		}
		const del = `DELETE FROM tt_test_group_tags WHERE test_group_id = ?`
		if _, err := tx.ExecContext(ctx, del, g.ID); err != nil {
			return err
		}
		return insertGroupTagsTx(ctx, tx, g.ID, tags)
	})
}

// SoftDelete flags the group row as deleted.  Test cases and results under
// the group are left untouched; only the group's own flag is set.
func (r *TestGroupRepo) SoftDelete(ctx context.Context, id uint64, updatedBy string) error {
	const q = `UPDATE tt_test_groups
	           SET is_deleted = TRUE, updated_by = ?, updated_at = CURRENT_TIMESTAMP
	           WHERE id = ?`
	_, err := r.db.ExecContext(ctx, q, updatedBy, id)
	return err
}

func insertGroupTagsTx(ctx context.Context, tx *sql.Tx, groupID uint64, tags []GroupTagBinding) error {
	const ins = `INSERT INTO tt_test_group_tags (test_group_id, tag_id, test_role) VALUES (?, ?, ?)`
	for _, t := range tags {
		if _, err := tx.ExecContext(ctx, ins, groupID, t.TagID, int(t.TestRole)); err != nil {
			return err
		}
	}
	return nil
}

// scanGroup reads one group row from either *sql.Row or *sql.Rows.
func scanGroup(row interface{ Scan(...interface{}) error }) (*model.TestGroup, error) {
	var g model.TestGroup
	var start, end sql.NullTime
	err := row.Scan(
		&g.ID, &g.OEM, &g.Model, &g.Event, &g.Variation, &g.Destination, &g.Specs,
		&start, &end, &g.NGPlanCount, &g.CreatedBy, &g.UpdatedBy,
		&g.CreatedAt, &g.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if start.Valid {
		t := start.Time
		g.TestStartDate = &t
	}
	if end.Valid {
		t := end.Time
		g.TestEndDate = &t
	}
	return &g, nil
}

func nullTime(t *time.Time) interface{} {
	if t == nil {
		return nil
	}
	return *t
}
