package model

import "time"

// TestCase is a named scenario under a test group, identified by
// (test_group_id, tid).  The four layer fields describe the position of
// the scenario in the function hierarchy.  A case owns an ordered set of
// TestContents and any number of attached files.
type TestCase struct {
	TestGroupID   uint64    // tt_test_cases.test_group_id
	TID           string    // tt_test_cases.tid
	FirstLayer    string    // tt_test_cases.first_layer
	SecondLayer   string    // tt_test_cases.second_layer
	ThirdLayer    string    // tt_test_cases.third_layer
	FourthLayer   string    // tt_test_cases.fourth_layer
	Purpose       string    // tt_test_cases.purpose
	RequestID     string    // tt_test_cases.request_id
	CheckItems    string    // tt_test_cases.check_items
	TestProcedure string    // tt_test_cases.test_procedure
	CreatedAt     time.Time // tt_test_cases.created_at
	UpdatedAt     time.Time // tt_test_cases.updated_at
	IsDeleted     bool      // tt_test_cases.is_deleted
}

// TestContent is one concrete check within a test case, addressed by
// test_case_no.  Updating a test case replaces the whole content set
// (delete-all, insert-new), so a content's number only survives an edit
// when the client resubmits it.
type TestContent struct {
	TestGroupID   uint64 `json:"test_group_id"`  // tt_test_contents.test_group_id
	TID           string `json:"tid"`            // tt_test_contents.tid
	TestCaseNo    int    `json:"test_case_no"`   // tt_test_contents.test_case_no
	TestCase      string `json:"test_case"`      // tt_test_contents.test_case
	ExpectedValue string `json:"expected_value"` // tt_test_contents.expected_value
	IsTarget      bool   `json:"is_target"`      // tt_test_contents.is_target
}

// FileType classifies an attached test case file.
type FileType int

const (
	FileTypeControlSpec FileType = 0
	FileTypeDataFlow    FileType = 1
)

// TestCaseFile records one uploaded attachment for a test case.  FileNo is
// sequential per (group, tid, file_type) and assigned transactionally as
// MAX(file_no)+1 so concurrent uploads to the same case never collide.
type TestCaseFile struct {
	TestGroupID uint64    `json:"test_group_id"` // tt_test_case_files.test_group_id
	TID         string    `json:"tid"`           // tt_test_case_files.tid
	FileType    FileType  `json:"file_type"`     // tt_test_case_files.file_type
	FileNo      int       `json:"file_no"`       // tt_test_case_files.file_no
	FileName    string    `json:"file_name"`     // tt_test_case_files.file_name
	FilePath    string    `json:"file_path"`     // tt_test_case_files.file_path (storage key)
	CreatedAt   time.Time `json:"created_at"`
	IsDeleted   bool      `json:"-"`
}
