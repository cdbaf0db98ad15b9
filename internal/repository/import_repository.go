package repository

import (
	"context"
	"database/sql"

	"github.com/teststack/test-management-service/internal/model"
)

// ImportRepo persists batch import runs and their per-row errors.
type ImportRepo struct {
	db *sql.DB
}

// NewImportRepo returns a new ImportRepo bound to the given database.
func NewImportRepo(db *sql.DB) *ImportRepo { return &ImportRepo{db: db} }

// StartRun inserts an InProgress run record before the batch executes and
// returns its id.  The eager insert leaves a durable trace even when the
// process dies mid-batch.
func (r *ImportRepo) StartRun(ctx context.Context, fileName, executorName string, importType model.ImportType) (uint64, error) {
	const q = `INSERT INTO tt_import_results
	           (file_name, import_date, import_status, executor_name, import_type, count)
	           VALUES (?, NOW(), ?, ?, ?, 0)`
	res, err := r.db.ExecContext(ctx, q, fileName, int(model.ImportStatusInProgress), executorName, int(importType))
	if err != nil {
		return 0, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	return uint64(id), nil
}

// FinishRun finalizes a run with its terminal status and the number of
// rows actually persisted.
func (r *ImportRepo) FinishRun(ctx context.Context, runID uint64, status model.ImportStatus, count int) error {
	const q = `UPDATE tt_import_results
	           SET import_status = ?, count = ?, updated_at = CURRENT_TIMESTAMP
	           WHERE id = ?`
	_, err := r.db.ExecContext(ctx, q, int(status), count, runID)
	return err
}

// AddErrors attaches per-row failure details to a run.
func (r *ImportRepo) AddErrors(ctx context.Context, runID uint64, errs []model.ImportRunError) error {
	const q = `INSERT INTO tt_import_result_errors (import_result_id, error_details, error_row)
	           VALUES (?, ?, ?)`
	for _, e := range errs {
		if _, err := r.db.ExecContext(ctx, q, runID, e.ErrorDetails, e.ErrorRow); err != nil {
			return err
		}
	}
	return nil
}

// ListRuns returns the latest 100 runs, newest first.
func (r *ImportRepo) ListRuns(ctx context.Context) ([]model.ImportRun, error) {
	const q = `SELECT id, file_name, import_date, import_status, executor_name, import_type, count, created_at
	           FROM tt_import_results
	           ORDER BY import_date DESC, id DESC
	           LIMIT 100`
	rows, err := r.db.QueryContext(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	runs := make([]model.ImportRun, 0)
	for rows.Next() {
		var run model.ImportRun
		var status, itype int
		if err := rows.Scan(&run.ID, &run.FileName, &run.ImportDate, &status, &run.ExecutorName, &itype, &run.Count, &run.CreatedAt); err != nil {
			return nil, err
		}
		run.ImportStatus = model.ImportStatus(status)
		run.ImportType = model.ImportType(itype)
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// ErrorsForRun returns the failure details of one run ordered by source row.
func (r *ImportRepo) ErrorsForRun(ctx context.Context, runID uint64) ([]model.ImportRunError, error) {
	const q = `SELECT error_details, error_row, created_at
	           FROM tt_import_result_errors
	           WHERE import_result_id = ?
	           ORDER BY error_row, created_at`
	rows, err := r.db.QueryContext(ctx, q, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	errs := make([]model.ImportRunError, 0)
	for rows.Next() {
		var e model.ImportRunError
		if err := rows.Scan(&e.ErrorDetails, &e.ErrorRow, &e.CreatedAt); err != nil {
			return nil, err
		}
		errs = append(errs, e)
	}
	return errs, rows.Err()
}
