// Package importer ingests CSV batches of test cases and users.  Each run
// is recorded durably before the batch executes and finalized afterwards;
// individual bad rows are reported and skipped so one mistake never aborts
// the whole file.
package importer

import (
	"context"
	"fmt"

	"github.com/teststack/test-management-service/internal/model"
)

// CaseStore is the persistence seam for test case batches.
type CaseStore interface {
	UpsertWithContents(ctx context.Context, tc *model.TestCase, contents []model.TestContent) error
}

// UserStore is the persistence seam for user batches.
type UserStore interface {
	GetByEmail(ctx context.Context, email string) (*model.User, error)
	Create(ctx context.Context, email, password string, role model.UserRole, department, company string, tagNames []string, bcryptCost int) (uint64, error)
	Update(ctx context.Context, id uint64, role model.UserRole, department, company, newPassword string, tagNames []string, bcryptCost int) error
}

// RunStore records import runs and their per-row errors.
type RunStore interface {
	StartRun(ctx context.Context, fileName, executorName string, importType model.ImportType) (uint64, error)
	FinishRun(ctx context.Context, runID uint64, status model.ImportStatus, count int) error
	AddErrors(ctx context.Context, runID uint64, errs []model.ImportRunError) error
}

// RowError is one per-row failure in a batch.  Row is the 1-based CSV
// source row with the header counted as row 1, or -1 when the failure is
// keyed by a whole TID rather than a single row.
type RowError struct {
	Row     int    `json:"row"`
	Message string `json:"message"`
}

// Result summarizes one import run.  SuccessCount counts rows actually
// persisted, not rows attempted.
type Result struct {
	RunID        uint64     `json:"import_result_id"`
	SuccessCount int        `json:"success_count"`
	ErrorCount   int        `json:"error_count"`
	Errors       []RowError `json:"errors"`
}

// Importer runs CSV batches against the injected stores.
type Importer struct {
	cases      CaseStore
	users      UserStore
	runs       RunStore
	bcryptCost int
}

// New returns an Importer over the given stores.
func New(cases CaseStore, users UserStore, runs RunStore, bcryptCost int) *Importer {
	return &Importer{cases: cases, users: users, runs: runs, bcryptCost: bcryptCost}
}

// finalize writes the terminal run state and the collected errors.  Run
// bookkeeping failures are surfaced over the batch outcome because a run
// without a truthful record is worse than a rerun.
func (im *Importer) finalize(ctx context.Context, runID uint64, res *Result) error {
	res.RunID = runID
	res.ErrorCount = len(res.Errors)
	if len(res.Errors) > 0 {
		rows := make([]model.ImportRunError, 0, len(res.Errors))
		for _, e := range res.Errors {
			rows = append(rows, model.ImportRunError{ErrorDetails: e.Message, ErrorRow: e.Row})
		}
		if err := im.runs.AddErrors(ctx, runID, rows); err != nil {
			return fmt.Errorf("importer: record errors for run %d: %w", runID, err)
		}
	}
	status := model.ImportStatusCompleted
	if len(res.Errors) > 0 {
		status = model.ImportStatusError
	}
	if err := im.runs.FinishRun(ctx, runID, status, res.SuccessCount); err != nil {
		return fmt.Errorf("importer: finalize run %d: %w", runID, err)
	}
	return nil
}
