// Package queue defines the domain events exchanged over RabbitMQ and the
// background consumer that turns them into an audit log.
package queue

// Queue names.  Durable queues on the default exchange; the routing key is
// the queue name.
const (
	ImportCompletedQueue = "import.completed"
	ResultRecordedQueue  = "result.recorded"
)

// ImportCompletedEvent is published after an import run is finalized.
type ImportCompletedEvent struct {
	ImportResultID uint64 `json:"import_result_id"`
	FileName       string `json:"file_name"`
	ImportType     int    `json:"import_type"`
	Status         int    `json:"status"`
	SuccessCount   int    `json:"success_count"`
	ErrorCount     int    `json:"error_count"`
	ExecutorName   string `json:"executor_name"`
	FinishedAt     string `json:"finished_at"`
}

// ResultRecordedEvent is published after a test result submission commits.
type ResultRecordedEvent struct {
	TestGroupID   uint64 `json:"test_group_id"`
	TID           string `json:"tid"`
	TestCaseNo    int    `json:"test_case_no"`
	Judgment      string `json:"judgment"`
	Version       int    `json:"version"`
	Executor      string `json:"executor"`
	EvidenceCount int    `json:"evidence_count"`
	RecordedAt    string `json:"recorded_at"`
}
