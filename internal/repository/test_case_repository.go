package repository

import (
	"context"
	"database/sql"

	"github.com/teststack/test-management-service/internal/database"
	"github.com/teststack/test-management-service/internal/model"
)

// TestCaseRepo provides CRUD operations for test cases, their contents and
// their attached files.  A test case is identified by (test_group_id, tid);
// editing a case replaces its whole content set rather than patching rows.
type TestCaseRepo struct {
	db *sql.DB
}

// NewTestCaseRepo returns a new TestCaseRepo bound to the given database.
func NewTestCaseRepo(db *sql.DB) *TestCaseRepo { return &TestCaseRepo{db: db} }

// CaseWithChildren bundles a test case with its contents and files for
// list and detail responses.
type CaseWithChildren struct {
	model.TestCase
	Contents []model.TestContent  `json:"contents"`
	Files    []model.TestCaseFile `json:"files"`
}

// ListByGroup returns all non-deleted cases of the group ordered by tid,
// each with its non-deleted contents and files.
func (r *TestCaseRepo) ListByGroup(ctx context.Context, groupID uint64) ([]CaseWithChildren, error) {
	const q = `SELECT test_group_id, tid, first_layer, second_layer, third_layer, fourth_layer,
	                  purpose, request_id, check_items, test_procedure, created_at, updated_at
	           FROM tt_test_cases
	           WHERE test_group_id = ? AND is_deleted = FALSE
	           ORDER BY tid`
	rows, err := r.db.QueryContext(ctx, q, groupID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	cases := make([]CaseWithChildren, 0)
	for rows.Next() {
		var c CaseWithChildren
		if err := scanCase(rows, &c.TestCase); err != nil {
			return nil, err
		}
		cases = append(cases, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range cases {
		contents, err := r.ContentsForCase(ctx, groupID, cases[i].TID)
		if err != nil {
			return nil, err
		}
		files, err := r.FilesForCase(ctx, groupID, cases[i].TID)
		if err != nil {
			return nil, err
		}
		cases[i].Contents = contents
		cases[i].Files = files
	}
	return cases, nil
}

// Get returns the non-deleted case with its contents and files.
// sql.ErrNoRows is returned when the case is absent or soft-deleted.
func (r *TestCaseRepo) Get(ctx context.Context, groupID uint64, tid string) (*CaseWithChildren, error) {
	const q = `SELECT test_group_id, tid, first_layer, second_layer, third_layer, fourth_layer,
	                  purpose, request_id, check_items, test_procedure, created_at, updated_at
	           FROM tt_test_cases
	           WHERE test_group_id = ? AND tid = ? AND is_deleted = FALSE`
	var c CaseWithChildren
	if err := scanCase(r.db.QueryRowContext(ctx, q, groupID, tid), &c.TestCase); err != nil {
		return nil, err
	}
	contents, err := r.ContentsForCase(ctx, groupID, tid)
	if err != nil {
		return nil, err
	}
	files, err := r.FilesForCase(ctx, groupID, tid)
	if err != nil {
		return nil, err
	}
	c.Contents = contents
	c.Files = files
	return &c, nil
}

// Create inserts a case together with its contents in one transaction.
// ErrConflict is returned when a non-deleted case with the same tid
// already exists in the group.
func (r *TestCaseRepo) Create(ctx context.Context, tc *model.TestCase, contents []model.TestContent) error {
	return database.WithTx(ctx, r.db, func(tx *sql.Tx) error {
		var exists bool
		const chk = `SELECT EXISTS(SELECT 1 FROM tt_test_cases
		             WHERE test_group_id = ? AND tid = ? AND is_deleted = FALSE)`
		if err := tx.QueryRowContext(ctx, chk, tc.TestGroupID, tc.TID).Scan(&exists); err != nil {
			return err
		}
		if exists {
			return ErrConflict
		}
		const ins = `INSERT INTO tt_test_cases
		             (test_group_id, tid, first_layer, second_layer, third_layer, fourth_layer,
		              purpose, request_id, check_items, test_procedure)
		             VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
		if _, err := tx.ExecContext(ctx, ins,
			tc.TestGroupID, tc.TID, tc.FirstLayer, tc.SecondLayer, tc.ThirdLayer, tc.FourthLayer,
			tc.Purpose, tc.RequestID, tc.CheckItems, tc.TestProcedure,
		); err != nil {
			return err
		}
		return insertContentsTx(ctx, tx, tc.TestGroupID, tc.TID, contents)
	})
}

// Update rewrites the case metadata and replaces the whole content set
// (delete-all, insert-new) in one transaction.  Content numbering does not
// survive the edit unless the caller resubmits it.
func (r *TestCaseRepo) Update(ctx context.Context, tc *model.TestCase, contents []model.TestContent) error {
	return database.WithTx(ctx, r.db, func(tx *sql.Tx) error {
		const upd = `UPDATE tt_test_cases
		             SET first_layer = ?, second_layer = ?, third_layer = ?, fourth_layer = ?,
		                 purpose = ?, request_id = ?, check_items = ?, test_procedure = ?,
		                 updated_at = CURRENT_TIMESTAMP
		             WHERE test_group_id = ? AND tid = ? AND is_deleted = FALSE`
		if _, err := tx.ExecContext(ctx, upd,
			tc.FirstLayer, tc.SecondLayer, tc.ThirdLayer, tc.FourthLayer,
			tc.Purpose, tc.RequestID, tc.CheckItems, tc.TestProcedure,
			tc.TestGroupID, tc.TID,
		); err != nil {
			return err
		}
		const del = `DELETE FROM tt_test_contents WHERE test_group_id = ? AND tid = ?`
		if _, err := tx.ExecContext(ctx, del, tc.TestGroupID, tc.TID); err != nil {
			return err
		}
		return insertContentsTx(ctx, tx, tc.TestGroupID, tc.TID, contents)
	})
}

// UpsertWithContents writes a case regardless of whether it already
// exists, replacing its whole content set, in one transaction.  The batch
// importer uses this so re-importing a file converges instead of
// conflicting.
func (r *TestCaseRepo) UpsertWithContents(ctx context.Context, tc *model.TestCase, contents []model.TestContent) error {
	return database.WithTx(ctx, r.db, func(tx *sql.Tx) error {
		var exists bool
		const chk = `SELECT EXISTS(SELECT 1 FROM tt_test_cases
		             WHERE test_group_id = ? AND tid = ? AND is_deleted = FALSE)`
		if err := tx.QueryRowContext(ctx, chk, tc.TestGroupID, tc.TID).Scan(&exists); err != nil {
			return err
		}
		if exists {
			const upd = `UPDATE tt_test_cases
			             SET first_layer = ?, second_layer = ?, third_layer = ?, fourth_layer = ?,
			                 purpose = ?, request_id = ?, check_items = ?, test_procedure = ?,
			                 updated_at = CURRENT_TIMESTAMP
			             WHERE test_group_id = ? AND tid = ?`
			if _, err := tx.ExecContext(ctx, upd,
				tc.FirstLayer, tc.SecondLayer, tc.ThirdLayer, tc.FourthLayer,
				tc.Purpose, tc.RequestID, tc.CheckItems, tc.TestProcedure,
				tc.TestGroupID, tc.TID,
			); err != nil {
				return err
			}
			const del = `DELETE FROM tt_test_contents WHERE test_group_id = ? AND tid = ?`
			if _, err := tx.ExecContext(ctx, del, tc.TestGroupID, tc.TID); err != nil {
				return err
			}
		} else {
			const ins = `INSERT INTO tt_test_cases
			             (test_group_id, tid, first_layer, second_layer, third_layer, fourth_layer,
			              purpose, request_id, check_items, test_procedure)
			             VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
			if _, err := tx.ExecContext(ctx, ins,
				tc.TestGroupID, tc.TID, tc.FirstLayer, tc.SecondLayer, tc.ThirdLayer, tc.FourthLayer,
				tc.Purpose, tc.RequestID, tc.CheckItems, tc.TestProcedure,
			); err != nil {
				return err
			}
		}
		return insertContentsTx(ctx, tx, tc.TestGroupID, tc.TID, contents)
	})
}

// SoftDelete flags the case and cascades the flag to its contents and
// files in one transaction.
func (r *TestCaseRepo) SoftDelete(ctx context.Context, groupID uint64, tid string) error {
	return database.WithTx(ctx, r.db, func(tx *sql.Tx) error {
		for _, q := range []string{
			`UPDATE tt_test_cases SET is_deleted = TRUE, updated_at = CURRENT_TIMESTAMP
			 WHERE test_group_id = ? AND tid = ?`,
			`UPDATE tt_test_contents SET is_deleted = TRUE, updated_at = CURRENT_TIMESTAMP
			 WHERE test_group_id = ? AND tid = ?`,
			`UPDATE tt_test_case_files SET is_deleted = TRUE, updated_at = CURRENT_TIMESTAMP
			 WHERE test_group_id = ? AND tid = ?`,
		} {
			if _, err := tx.ExecContext(ctx, q, groupID, tid); err != nil {
				return err
			}
		}
		return nil
	})
}

// ContentsForCase returns the non-deleted contents of a case ordered by
// test_case_no.
func (r *TestCaseRepo) ContentsForCase(ctx context.Context, groupID uint64, tid string) ([]model.TestContent, error) {
	const q = `SELECT test_group_id, tid, test_case_no, test_case, expected_value, is_target
	           FROM tt_test_contents
	           WHERE test_group_id = ? AND tid = ? AND is_deleted = FALSE
	           ORDER BY test_case_no`
	return r.scanContents(ctx, q, groupID, tid)
}

// ContentsForGroup returns every non-deleted content of the group ordered
// by tid then test_case_no.  This is the denominator universe for reports.
func (r *TestCaseRepo) ContentsForGroup(ctx context.Context, groupID uint64) ([]model.TestContent, error) {
	const q = `SELECT test_group_id, tid, test_case_no, test_case, expected_value, is_target
	           FROM tt_test_contents
	           WHERE test_group_id = ? AND is_deleted = FALSE
	           ORDER BY tid, test_case_no`
	return r.scanContents(ctx, q, groupID)
}

func (r *TestCaseRepo) scanContents(ctx context.Context, q string, args ...interface{}) ([]model.TestContent, error) {
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	contents := make([]model.TestContent, 0)
	for rows.Next() {
		var c model.TestContent
		if err := rows.Scan(&c.TestGroupID, &c.TID, &c.TestCaseNo, &c.TestCase, &c.ExpectedValue, &c.IsTarget); err != nil {
			return nil, err
		}
		contents = append(contents, c)
	}
	return contents, rows.Err()
}

// FilesForCase returns the non-deleted files of a case ordered by type and
// number.
func (r *TestCaseRepo) FilesForCase(ctx context.Context, groupID uint64, tid string) ([]model.TestCaseFile, error) {
	const q = `SELECT test_group_id, tid, file_type, file_no, file_name, file_path, created_at
	           FROM tt_test_case_files
	           WHERE test_group_id = ? AND tid = ? AND is_deleted = FALSE
	           ORDER BY file_type, file_no`
	rows, err := r.db.QueryContext(ctx, q, groupID, tid)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	files := make([]model.TestCaseFile, 0)
	for rows.Next() {
		var f model.TestCaseFile
		var ftype int
		if err := rows.Scan(&f.TestGroupID, &f.TID, &ftype, &f.FileNo, &f.FileName, &f.FilePath, &f.CreatedAt); err != nil {
			return nil, err
		}
		f.FileType = model.FileType(ftype)
		files = append(files, f)
	}
	return files, rows.Err()
}

// AddFiles registers uploaded files for a case.  file_no continues from
// MAX(file_no) per (group, tid, file_type), computed inside the same
// transaction as the inserts so concurrent uploads cannot collide.  The
// assigned records are returned with their numbers filled in.
func (r *TestCaseRepo) AddFiles(ctx context.Context, groupID uint64, tid string, fileType model.FileType, files []model.TestCaseFile) ([]model.TestCaseFile, error) {
	out := make([]model.TestCaseFile, 0, len(files))
	err := database.WithTx(ctx, r.db, func(tx *sql.Tx) error {
		const maxQ = `SELECT COALESCE(MAX(file_no), 0)
		              FROM tt_test_case_files
		              WHERE test_group_id = ? AND tid = ? AND file_type = ?
		              FOR UPDATE`
		var fileNo int
		if err := tx.QueryRowContext(ctx, maxQ, groupID, tid, int(fileType)).Scan(&fileNo); err != nil {
			return err
		}
		const ins = `INSERT INTO tt_test_case_files
		             (test_group_id, tid, file_type, file_no, file_name, file_path)
		             VALUES (?, ?, ?, ?, ?, ?)`
		for _, f := range files {
			fileNo++
			if _, err := tx.ExecContext(ctx, ins, groupID, tid, int(fileType), fileNo, f.FileName, f.FilePath); err != nil {
				return err
			}
			f.TestGroupID = groupID
			f.TID = tid
			f.FileType = fileType
			f.FileNo = fileNo
			out = append(out, f)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// FilePath returns the storage key of a non-deleted file row.
func (r *TestCaseRepo) FilePath(ctx context.Context, groupID uint64, tid string, fileType model.FileType, fileNo int) (string, error) {
	const q = `SELECT file_path FROM tt_test_case_files
	           WHERE test_group_id = ? AND tid = ? AND file_type = ? AND file_no = ? AND is_deleted = FALSE`
	var path string
	err := r.db.QueryRowContext(ctx, q, groupID, tid, int(fileType), fileNo).Scan(&path)
	return path, err
}

// SoftDeleteFile flags one file row as deleted by its composite key.
func (r *TestCaseRepo) SoftDeleteFile(ctx context.Context, groupID uint64, tid string, fileType model.FileType, fileNo int) error {
	const q = `UPDATE tt_test_case_files SET is_deleted = TRUE, updated_at = CURRENT_TIMESTAMP
	           WHERE test_group_id = ? AND tid = ? AND file_type = ? AND file_no = ?`
	_, err := r.db.ExecContext(ctx, q, groupID, tid, int(fileType), fileNo)
	return err
}

func insertContentsTx(ctx context.Context, tx *sql.Tx, groupID uint64, tid string, contents []model.TestContent) error {
	const ins = `INSERT INTO tt_test_contents
	             (test_group_id, tid, test_case_no, test_case, expected_value, is_target)
	             VALUES (?, ?, ?, ?, ?, ?)`
	for _, c := range contents {
		if _, err := tx.ExecContext(ctx, ins, groupID, tid, c.TestCaseNo, c.TestCase, c.ExpectedValue, c.IsTarget); err != nil {
			return err
		}
	}
	return nil
}

// scanCase reads one case row from either *sql.Row or *sql.Rows.
func scanCase(row interface{ Scan(...interface{}) error }, tc *model.TestCase) error {
	return row.Scan(
		&tc.TestGroupID, &tc.TID, &tc.FirstLayer, &tc.SecondLayer, &tc.ThirdLayer, &tc.FourthLayer,
		&tc.Purpose, &tc.RequestID, &tc.CheckItems, &tc.TestProcedure, &tc.CreatedAt, &tc.UpdatedAt,
	)
}
