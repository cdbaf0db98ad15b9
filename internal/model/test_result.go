package model

import "time"

// Judgment classifies the outcome of an executed test content.  The
// excluded value is the original system's literal marker for contents
// taken out of the re-test scope.
const (
	JudgmentOK       = "OK"
	JudgmentNG       = "NG"
	JudgmentExcluded = "再実施対象外"
)

// TestResult is the current execution state for one test content, keyed by
// (test_group_id, tid, test_case_no).  It is a current-state row, not an
// append log: each submission overwrites the fields in place and bumps
// Version.  Version starts at 1 and is strictly monotonic per key.
type TestResult struct {
	TestGroupID       uint64    `json:"test_group_id"`
	TID               string    `json:"tid"`
	TestCaseNo        int       `json:"test_case_no"`
	Result            string    `json:"result"`
	Judgment          string    `json:"judgment"`
	SoftwareVersion   string    `json:"software_version"`
	HardwareVersion   string    `json:"hardware_version"`
	ComparatorVersion string    `json:"comparator_version"`
	ExecutionDate     string    `json:"execution_date"` // YYYY-MM-DD, empty when unset
	Executor          string    `json:"executor"`
	Note              string    `json:"note"`
	Version           int       `json:"version"`
	UpdatedAt         time.Time `json:"updated_at"`
}

// TestResultHistory is an append-only snapshot of a result submission.  A
// history row is written only when evidence files accompany the
// submission; HistoryCount is MAX(history_count)+1 for the key at write
// time, computed in the same transaction as the result upsert.
type TestResultHistory struct {
	TestGroupID       uint64 `json:"test_group_id"`
	TID               string `json:"tid"`
	TestCaseNo        int    `json:"test_case_no"`
	HistoryCount      int    `json:"history_count"`
	Result            string `json:"result"`
	Judgment          string `json:"judgment"`
	SoftwareVersion   string `json:"software_version"`
	HardwareVersion   string `json:"hardware_version"`
	ComparatorVersion string `json:"comparator_version"`
	ExecutionDate     string `json:"execution_date"`
	Executor          string `json:"executor"`
	Note              string `json:"note"`
	Version           int    `json:"version"`
}

// TestEvidence is a file attached to one history snapshot, never to the
// live result row.  EvidenceNo is 1-based within the snapshot's batch.
type TestEvidence struct {
	TestGroupID  uint64 `json:"test_group_id"`
	TID          string `json:"tid"`
	TestCaseNo   int    `json:"test_case_no"`
	HistoryCount int    `json:"history_count"`
	EvidenceNo   int    `json:"evidence_no"`
	EvidenceName string `json:"evidence_name"`
	EvidencePath string `json:"evidence_path"` // storage key or URL
}
