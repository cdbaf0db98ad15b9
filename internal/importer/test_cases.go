package importer

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/teststack/test-management-service/internal/csvutil"
	"github.com/teststack/test-management-service/internal/model"
)

// requiredCaseColumns are the columns every test case row must fill.
var requiredCaseColumns = []string{"tid", "test_case_no"}

// caseBatch groups the CSV rows of one TID.  The first row supplies the
// case metadata; every row contributes one test content.
type caseBatch struct {
	tid  string
	rows []csvutil.Record
}

// ImportTestCases ingests a test case CSV into the group.  Rows sharing a
// TID form one batch written in one transaction, so a failing TID is
// recorded and skipped without touching the others.  An empty file is a
// hard error; the run record still captures it.
func (im *Importer) ImportTestCases(ctx context.Context, groupID uint64, fileName, executorName string, r io.Reader) (*Result, error) {
	runID, err := im.runs.StartRun(ctx, fileName, executorName, model.ImportTypeTestCase)
	if err != nil {
		return nil, fmt.Errorf("importer: start run: %w", err)
	}

	res := &Result{Errors: []RowError{}}
	_, records, err := csvutil.Parse(r)
	if err != nil {
		res.Errors = append(res.Errors, RowError{Row: -1, Message: err.Error()})
		if ferr := im.finalize(ctx, runID, res); ferr != nil {
			return nil, ferr
		}
		return res, err
	}

	valid, presenceErrs := filterRequired(records, requiredCaseColumns)
	res.Errors = append(res.Errors, presenceErrs...)

	for _, batch := range groupByTID(valid) {
		meta := caseMetaFromRow(groupID, batch.tid, batch.rows[0])
		contents, contentErrs := contentsFromRows(groupID, batch.tid, batch.rows)
		res.Errors = append(res.Errors, contentErrs...)

		if err := im.cases.UpsertWithContents(ctx, meta, contents); err != nil {
			res.Errors = append(res.Errors, RowError{
				Row:     -1,
				Message: fmt.Sprintf("TID %s: %v", batch.tid, err),
			})
			continue
		}
		res.SuccessCount += len(contents)
	}

	if err := im.finalize(ctx, runID, res); err != nil {
		return nil, err
	}
	return res, nil
}

// groupByTID buckets rows by their tid column preserving first-seen order.
func groupByTID(records []csvutil.Record) []caseBatch {
	index := make(map[string]int)
	batches := make([]caseBatch, 0)
	for _, rec := range records {
		tid := rec.Fields["tid"]
		i, ok := index[tid]
		if !ok {
			i = len(batches)
			index[tid] = i
			batches = append(batches, caseBatch{tid: tid})
		}
		batches[i].rows = append(batches[i].rows, rec)
	}
	return batches
}

// caseMetaFromRow builds the case metadata from the batch's first row.
func caseMetaFromRow(groupID uint64, tid string, rec csvutil.Record) *model.TestCase {
	return &model.TestCase{
		TestGroupID:   groupID,
		TID:           tid,
		FirstLayer:    rec.Fields["first_layer"],
		SecondLayer:   rec.Fields["second_layer"],
		ThirdLayer:    rec.Fields["third_layer"],
		FourthLayer:   rec.Fields["fourth_layer"],
		Purpose:       rec.Fields["purpose"],
		RequestID:     rec.Fields["request_id"],
		CheckItems:    rec.Fields["check_items"],
		TestProcedure: rec.Fields["test_procedure"],
	}
}

// contentsFromRows converts batch rows into test contents.  A row with a
// non-numeric test_case_no yields an error keyed to the TID (row -1) and
// contributes no content; the rest of the batch proceeds.
func contentsFromRows(groupID uint64, tid string, rows []csvutil.Record) ([]model.TestContent, []RowError) {
	contents := make([]model.TestContent, 0, len(rows))
	var errs []RowError
	for _, rec := range rows {
		no, err := strconv.Atoi(rec.Fields["test_case_no"])
		if err != nil {
			errs = append(errs, RowError{
				Row:     -1,
				Message: fmt.Sprintf("TID %s: test_case_no must be numeric", tid),
			})
			continue
		}
		contents = append(contents, model.TestContent{
			TestGroupID:   groupID,
			TID:           tid,
			TestCaseNo:    no,
			TestCase:      rec.Fields["test_case"],
			ExpectedValue: rec.Fields["expected_value"],
			IsTarget:      parseIsTarget(rec.Fields["is_target"]),
		})
	}
	return contents, errs
}

// parseIsTarget reads the is_target cell: empty defaults to true, anything
// else is true only when it spells TRUE.
func parseIsTarget(v string) bool {
	if v == "" {
		return true
	}
	return strings.EqualFold(v, "TRUE")
}

// filterRequired drops rows missing any required column, reporting each
// dropped row with its source row number and the full list of gaps.
func filterRequired(records []csvutil.Record, required []string) ([]csvutil.Record, []RowError) {
	valid := make([]csvutil.Record, 0, len(records))
	var errs []RowError
	for _, rec := range records {
		var missing []string
		for _, name := range required {
			if strings.TrimSpace(rec.Fields[name]) == "" {
				missing = append(missing, name)
			}
		}
		if len(missing) > 0 {
			errs = append(errs, RowError{
				Row:     rec.Row,
				Message: fmt.Sprintf("missing required fields: %s", strings.Join(missing, ", ")),
			})
			continue
		}
		valid = append(valid, rec)
	}
	return valid, errs
}
