package repository

import (
	"context"
	"database/sql"

	"github.com/teststack/test-management-service/internal/database"
	"github.com/teststack/test-management-service/internal/model"
)

// TestResultRepo persists execution results.  The live state of each
// (group, tid, test_case_no) key sits in tt_test_results; immutable
// snapshots plus their evidence files sit in tt_test_results_history and
// tt_test_evidences, written only when a submission carries evidence.
type TestResultRepo struct {
	db *sql.DB
}

// NewTestResultRepo returns a new TestResultRepo bound to the given database.
func NewTestResultRepo(db *sql.DB) *TestResultRepo { return &TestResultRepo{db: db} }

// EvidenceFile names one evidence attachment accompanying a submission.
type EvidenceFile struct {
	Name string
	Path string
}

// Submit records one execution result.  The current row is locked with
// SELECT ... FOR UPDATE so the version read-then-write is atomic per key:
// version becomes existing+1, or 1 on first submission.  When evidence
// accompanies the submission a history snapshot is appended with
// history_count = MAX(history_count)+1 and the evidence rows are numbered
// 1..N within it, all in the same transaction.  The assigned version is
// returned.
func (r *TestResultRepo) Submit(ctx context.Context, res *model.TestResult, evidence []EvidenceFile) (int, error) {
	var version int
	err := database.WithTx(ctx, r.db, func(tx *sql.Tx) error {
		const lockQ = `SELECT version FROM tt_test_results
		               WHERE test_group_id = ? AND tid = ? AND test_case_no = ?
		               FOR UPDATE`
		var current int
		err := tx.QueryRowContext(ctx, lockQ, res.TestGroupID, res.TID, res.TestCaseNo).Scan(&current)
		switch {
		case err == sql.ErrNoRows:
			version = 1
			const ins = `INSERT INTO tt_test_results
			             (test_group_id, tid, test_case_no, result, judgment,
			              software_version, hardware_version, comparator_version,
			              execution_date, executor, note, version)
			             VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
			if _, err := tx.ExecContext(ctx, ins,
				res.TestGroupID, res.TID, res.TestCaseNo, res.Result, res.Judgment,
				res.SoftwareVersion, res.HardwareVersion, res.ComparatorVersion,
				nullStr(res.ExecutionDate), res.Executor, res.Note, version,
			); err != nil {
				return err
			}
		case err != nil:
			return err
		default:
			version = current + 1
			const upd = `UPDATE tt_test_results
			             SET result = ?, judgment = ?, software_version = ?, hardware_version = ?,
			                 comparator_version = ?, execution_date = ?, executor = ?, note = ?,
			                 version = ?, updated_at = CURRENT_TIMESTAMP
			             WHERE test_group_id = ? AND tid = ? AND test_case_no = ?`
			if _, err := tx.ExecContext(ctx, upd,
				res.Result, res.Judgment, res.SoftwareVersion, res.HardwareVersion,
				res.ComparatorVersion, nullStr(res.ExecutionDate), res.Executor, res.Note,
				version, res.TestGroupID, res.TID, res.TestCaseNo,
			); err != nil {
				return err
			}
		}

		if len(evidence) == 0 {
			return nil
		}

		const maxQ = `SELECT COALESCE(MAX(history_count), 0)
		              FROM tt_test_results_history
		              WHERE test_group_id = ? AND tid = ? AND test_case_no = ?`
		var historyCount int
		if err := tx.QueryRowContext(ctx, maxQ, res.TestGroupID, res.TID, res.TestCaseNo).Scan(&historyCount); err != nil {
			return err
		}
		historyCount++

		const insHist = `INSERT INTO tt_test_results_history
		                 (test_group_id, tid, test_case_no, history_count, result, judgment,
		                  software_version, hardware_version, comparator_version,
		                  execution_date, executor, note, version)
		                 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
		if _, err := tx.ExecContext(ctx, insHist,
			res.TestGroupID, res.TID, res.TestCaseNo, historyCount, res.Result, res.Judgment,
			res.SoftwareVersion, res.HardwareVersion, res.ComparatorVersion,
			nullStr(res.ExecutionDate), res.Executor, res.Note, version,
		); err != nil {
			return err
		}

		const insEv = `INSERT INTO tt_test_evidences
		               (test_group_id, tid, test_case_no, history_count, evidence_no,
		                evidence_name, evidence_path)
		               VALUES (?, ?, ?, ?, ?, ?, ?)`
		for i, ev := range evidence {
			if _, err := tx.ExecContext(ctx, insEv,
				res.TestGroupID, res.TID, res.TestCaseNo, historyCount, i+1, ev.Name, ev.Path,
			); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return version, nil
}

// ResultWithEvidence pairs a live result with the evidence files of its
// first history snapshot for list responses.
type ResultWithEvidence struct {
	model.TestResult
	Evidences []model.TestEvidence `json:"evidences"`
}

// ListForCase returns the live results of one case keyed by test_case_no,
// each with the evidence of its first history snapshot attached.
//
// TODO: the evidence lookup pins history_count = 1 to mirror the behavior
// the system shipped with; confirm with stakeholders whether the latest
// snapshot (MAX(history_count)) is the intended one and switch the query.
func (r *TestResultRepo) ListForCase(ctx context.Context, groupID uint64, tid string) ([]ResultWithEvidence, error) {
	const q = `SELECT test_group_id, tid, test_case_no, result, judgment,
	                  software_version, hardware_version, comparator_version,
	                  COALESCE(DATE_FORMAT(execution_date, '%Y-%m-%d'), ''),
	                  executor, note, version, updated_at
	           FROM tt_test_results
	           WHERE test_group_id = ? AND tid = ? AND is_deleted = FALSE
	           ORDER BY test_case_no`
	rows, err := r.db.QueryContext(ctx, q, groupID, tid)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	results := make([]ResultWithEvidence, 0)
	for rows.Next() {
		var res ResultWithEvidence
		if err := rows.Scan(
			&res.TestGroupID, &res.TID, &res.TestCaseNo, &res.Result, &res.Judgment,
			&res.SoftwareVersion, &res.HardwareVersion, &res.ComparatorVersion,
			&res.ExecutionDate, &res.Executor, &res.Note, &res.Version, &res.UpdatedAt,
		); err != nil {
			return nil, err
		}
		results = append(results, res)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range results {
		evs, err := r.evidencesFor(ctx, groupID, tid, results[i].TestCaseNo, 1)
		if err != nil {
			return nil, err
		}
		results[i].Evidences = evs
	}
	return results, nil
}

func (r *TestResultRepo) evidencesFor(ctx context.Context, groupID uint64, tid string, caseNo, historyCount int) ([]model.TestEvidence, error) {
	const q = `SELECT test_group_id, tid, test_case_no, history_count, evidence_no,
	                  evidence_name, evidence_path
	           FROM tt_test_evidences
	           WHERE test_group_id = ? AND tid = ? AND test_case_no = ? AND history_count = ?
	                 AND is_deleted = FALSE
	           ORDER BY evidence_no`
	rows, err := r.db.QueryContext(ctx, q, groupID, tid, caseNo, historyCount)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	evs := make([]model.TestEvidence, 0)
	for rows.Next() {
		var ev model.TestEvidence
		if err := rows.Scan(
			&ev.TestGroupID, &ev.TID, &ev.TestCaseNo, &ev.HistoryCount, &ev.EvidenceNo,
			&ev.EvidenceName, &ev.EvidencePath,
		); err != nil {
			return nil, err
		}
		evs = append(evs, ev)
	}
	return evs, rows.Err()
}

// EvidencePath returns the storage key of a non-deleted evidence row.
func (r *TestResultRepo) EvidencePath(ctx context.Context, groupID uint64, tid string, caseNo, historyCount, evidenceNo int) (string, error) {
	const q = `SELECT evidence_path FROM tt_test_evidences
	           WHERE test_group_id = ? AND tid = ? AND test_case_no = ?
	                 AND history_count = ? AND evidence_no = ? AND is_deleted = FALSE`
	var path string
	err := r.db.QueryRowContext(ctx, q, groupID, tid, caseNo, historyCount, evidenceNo).Scan(&path)
	return path, err
}

// SoftDeleteEvidence flags one evidence row as deleted by its composite key.
func (r *TestResultRepo) SoftDeleteEvidence(ctx context.Context, groupID uint64, tid string, caseNo, historyCount, evidenceNo int) error {
	const q = `UPDATE tt_test_evidences SET is_deleted = TRUE, updated_at = CURRENT_TIMESTAMP
	           WHERE test_group_id = ? AND tid = ? AND test_case_no = ?
	                 AND history_count = ? AND evidence_no = ?`
	_, err := r.db.ExecContext(ctx, q, groupID, tid, caseNo, historyCount, evidenceNo)
	return err
}

// ResultsForGroup returns every live result of the group ordered by tid and
// test_case_no.  Reports derive their numerators from this set.
func (r *TestResultRepo) ResultsForGroup(ctx context.Context, groupID uint64) ([]model.TestResult, error) {
	const q = `SELECT test_group_id, tid, test_case_no, result, judgment,
	                  software_version, hardware_version, comparator_version,
	                  COALESCE(DATE_FORMAT(execution_date, '%Y-%m-%d'), ''),
	                  executor, note, version, updated_at
	           FROM tt_test_results
	           WHERE test_group_id = ? AND is_deleted = FALSE
	           ORDER BY tid, test_case_no`
	rows, err := r.db.QueryContext(ctx, q, groupID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	results := make([]model.TestResult, 0)
	for rows.Next() {
		var res model.TestResult
		if err := rows.Scan(
			&res.TestGroupID, &res.TID, &res.TestCaseNo, &res.Result, &res.Judgment,
			&res.SoftwareVersion, &res.HardwareVersion, &res.ComparatorVersion,
			&res.ExecutionDate, &res.Executor, &res.Note, &res.Version, &res.UpdatedAt,
		); err != nil {
			return nil, err
		}
		results = append(results, res)
	}
	return results, rows.Err()
}

// nullStr maps an empty string to SQL NULL, used for the optional
// execution_date column.
func nullStr(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
