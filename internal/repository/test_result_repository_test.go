package repository

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teststack/test-management-service/internal/model"
)

func newResultRepoMock(t *testing.T) (*TestResultRepo, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewTestResultRepo(db), mock
}

func sampleResult() *model.TestResult {
	return &model.TestResult{
		TestGroupID:     1,
		TID:             "TID-001",
		TestCaseNo:      2,
		Result:          "as expected",
		Judgment:        model.JudgmentOK,
		SoftwareVersion: "1.2.0",
		ExecutionDate:   "2026-08-01",
		Executor:        "tester@example.com",
	}
}

func TestSubmitFirstResultStartsAtVersionOne(t *testing.T) {
	repo, mock := newResultRepoMock(t)
	res := sampleResult()

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT version FROM tt_test_results`).
		WithArgs(res.TestGroupID, res.TID, res.TestCaseNo).
		WillReturnRows(sqlmock.NewRows([]string{"version"}))
	mock.ExpectExec(`INSERT INTO tt_test_results \(`).
		WithArgs(res.TestGroupID, res.TID, res.TestCaseNo, res.Result, res.Judgment,
			res.SoftwareVersion, res.HardwareVersion, res.ComparatorVersion,
			res.ExecutionDate, res.Executor, res.Note, 1).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	version, err := repo.Submit(context.Background(), res, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, version)
	// No evidence means no history snapshot and no evidence rows.
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSubmitIncrementsVersionUnderLock(t *testing.T) {
	repo, mock := newResultRepoMock(t)
	res := sampleResult()

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT version FROM tt_test_results`).
		WithArgs(res.TestGroupID, res.TID, res.TestCaseNo).
		WillReturnRows(sqlmock.NewRows([]string{"version"}).AddRow(4))
	mock.ExpectExec(`UPDATE tt_test_results SET`).
		WithArgs(res.Result, res.Judgment, res.SoftwareVersion, res.HardwareVersion,
			res.ComparatorVersion, res.ExecutionDate, res.Executor, res.Note,
			5, res.TestGroupID, res.TID, res.TestCaseNo).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	version, err := repo.Submit(context.Background(), res, nil)
	require.NoError(t, err)
	assert.Equal(t, 5, version)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSubmitWithEvidenceAppendsNumberedSnapshot(t *testing.T) {
	repo, mock := newResultRepoMock(t)
	res := sampleResult()
	evidence := []EvidenceFile{
		{Name: "before.png", Path: "evidences/1/TID-001/2/before.png"},
		{Name: "after.png", Path: "evidences/1/TID-001/2/after.png"},
	}

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT version FROM tt_test_results`).
		WithArgs(res.TestGroupID, res.TID, res.TestCaseNo).
		WillReturnRows(sqlmock.NewRows([]string{"version"}).AddRow(1))
	mock.ExpectExec(`UPDATE tt_test_results SET`).
		WithArgs(res.Result, res.Judgment, res.SoftwareVersion, res.HardwareVersion,
			res.ComparatorVersion, res.ExecutionDate, res.Executor, res.Note,
			2, res.TestGroupID, res.TID, res.TestCaseNo).
		WillReturnResult(sqlmock.NewResult(0, 1))
	// Two earlier snapshots exist, so this one becomes number 3 and its
	// evidence rows are numbered from 1 again.
	mock.ExpectQuery(`SELECT COALESCE\(MAX\(history_count\), 0\)`).
		WithArgs(res.TestGroupID, res.TID, res.TestCaseNo).
		WillReturnRows(sqlmock.NewRows([]string{"max"}).AddRow(2))
	mock.ExpectExec(`INSERT INTO tt_test_results_history`).
		WithArgs(res.TestGroupID, res.TID, res.TestCaseNo, 3, res.Result, res.Judgment,
			res.SoftwareVersion, res.HardwareVersion, res.ComparatorVersion,
			res.ExecutionDate, res.Executor, res.Note, 2).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(`INSERT INTO tt_test_evidences`).
		WithArgs(res.TestGroupID, res.TID, res.TestCaseNo, 3, 1, "before.png", evidence[0].Path).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(`INSERT INTO tt_test_evidences`).
		WithArgs(res.TestGroupID, res.TID, res.TestCaseNo, 3, 2, "after.png", evidence[1].Path).
		WillReturnResult(sqlmock.NewResult(2, 1))
	mock.ExpectCommit()

	version, err := repo.Submit(context.Background(), res, evidence)
	require.NoError(t, err)
	assert.Equal(t, 2, version)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSubmitFirstEvidenceOpensHistoryAtOne(t *testing.T) {
	repo, mock := newResultRepoMock(t)
	res := sampleResult()
	evidence := []EvidenceFile{{Name: "proof.png", Path: "evidences/1/TID-001/2/proof.png"}}

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT version FROM tt_test_results`).
		WithArgs(res.TestGroupID, res.TID, res.TestCaseNo).
		WillReturnRows(sqlmock.NewRows([]string{"version"}))
	mock.ExpectExec(`INSERT INTO tt_test_results \(`).
		WithArgs(res.TestGroupID, res.TID, res.TestCaseNo, res.Result, res.Judgment,
			res.SoftwareVersion, res.HardwareVersion, res.ComparatorVersion,
			res.ExecutionDate, res.Executor, res.Note, 1).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectQuery(`SELECT COALESCE\(MAX\(history_count\), 0\)`).
		WithArgs(res.TestGroupID, res.TID, res.TestCaseNo).
		WillReturnRows(sqlmock.NewRows([]string{"max"}).AddRow(0))
	mock.ExpectExec(`INSERT INTO tt_test_results_history`).
		WithArgs(res.TestGroupID, res.TID, res.TestCaseNo, 1, res.Result, res.Judgment,
			res.SoftwareVersion, res.HardwareVersion, res.ComparatorVersion,
			res.ExecutionDate, res.Executor, res.Note, 1).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(`INSERT INTO tt_test_evidences`).
		WithArgs(res.TestGroupID, res.TID, res.TestCaseNo, 1, 1, "proof.png", evidence[0].Path).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	version, err := repo.Submit(context.Background(), res, evidence)
	require.NoError(t, err)
	assert.Equal(t, 1, version)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSubmitRollsBackOnEvidenceFailure(t *testing.T) {
	repo, mock := newResultRepoMock(t)
	res := sampleResult()
	evidence := []EvidenceFile{{Name: "proof.png", Path: "evidences/1/TID-001/2/proof.png"}}

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT version FROM tt_test_results`).
		WithArgs(res.TestGroupID, res.TID, res.TestCaseNo).
		WillReturnRows(sqlmock.NewRows([]string{"version"}).AddRow(1))
	mock.ExpectExec(`UPDATE tt_test_results SET`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(`SELECT COALESCE\(MAX\(history_count\), 0\)`).
		WillReturnError(assert.AnError)
	mock.ExpectRollback()

	_, err := repo.Submit(context.Background(), res, evidence)
	require.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
