package model

import "time"

// ImportStatus is the lifecycle state of one batch import run.  A run is
// inserted eagerly as InProgress before the batch executes and finalized
// afterwards, so the table gives a durable view even when the process
// crashes mid-batch (such a run stays InProgress forever).
type ImportStatus int

const (
	ImportStatusError      ImportStatus = 0
	ImportStatusInProgress ImportStatus = 1
	ImportStatusCompleted  ImportStatus = 3
)

// ImportType distinguishes what kind of rows a run ingested.
type ImportType int

const (
	ImportTypeTestCase ImportType = 0
	ImportTypeUser     ImportType = 1
)

// ImportRun is one durable record of a CSV ingestion attempt
// (tt_import_results row).  Count holds the number of rows actually
// persisted, not the number attempted.
type ImportRun struct {
	ID           uint64       `json:"id"`
	FileName     string       `json:"file_name"`
	ImportDate   time.Time    `json:"import_date"`
	ImportStatus ImportStatus `json:"import_status"`
	ExecutorName string       `json:"executor_name"`
	ImportType   ImportType   `json:"import_type"`
	Count        int          `json:"count"`
	CreatedAt    time.Time    `json:"created_at"`
}

// ImportRunError is one per-row failure detail attached to a run
// (tt_import_result_errors row).  ErrorRow is the 1-based CSV source row
// (header counts as row 1), or -1 when the failure is keyed by a group
// identity such as a whole TID rather than a single row.
type ImportRunError struct {
	ErrorDetails string    `json:"error_details"`
	ErrorRow     int       `json:"error_row"`
	CreatedAt    time.Time `json:"created_at"`
}
