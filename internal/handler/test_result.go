package handler

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/teststack/test-management-service/internal/model"
	"github.com/teststack/test-management-service/internal/queue"
	"github.com/teststack/test-management-service/internal/repository"
	"github.com/teststack/test-management-service/internal/service"
	"github.com/teststack/test-management-service/internal/storage"
)

type resultReq struct {
	Result            string   `json:"result"`
	Judgment          string   `json:"judgment"`
	SoftwareVersion   string   `json:"software_version"`
	HardwareVersion   string   `json:"hardware_version"`
	ComparatorVersion string   `json:"comparator_version"`
	ExecutionDate     string   `json:"execution_date"`
	Executor          string   `json:"executor"`
	Note              string   `json:"note"`
	EvidenceURLs      []string `json:"evidence_urls"`
}

func validJudgment(j string) bool {
	switch j {
	case "", model.JudgmentOK, model.JudgmentNG, model.JudgmentExcluded:
		return true
	}
	return false
}

// SubmitResult records an execution result for one test content, bumping
// its version and, when evidence URLs accompany the submission, appending
// a history snapshot with the evidence rows.  Requires Executor capability
// or better on the group.  A result.recorded event is published best
// effort after the commit.
func (h *GroupHandler) SubmitResult(c echo.Context) error {
	p, err := principal(c)
	if err != nil {
		return unauthorized(c)
	}
	groupID, err := pathUint(c, "groupId")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid group id"})
	}
	tid := c.Param("tid")
	caseNo, err := pathInt(c, "testCaseNo")
	if err != nil || caseNo <= 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid test case no"})
	}

	var req resultReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	if !validJudgment(req.Judgment) {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid judgment"})
	}
	if req.ExecutionDate != "" {
		if _, err := time.Parse("2006-01-02", req.ExecutionDate); err != nil {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "execution_date must be YYYY-MM-DD"})
		}
	}

	ctx, cancel := reqCtx(c)
	defer cancel()

	allowed, err := h.Access.CanExecuteTests(ctx, p, groupID)
	if err != nil {
		return writeErr(c, err)
	}
	if !allowed {
		return forbidden(c)
	}

	res := &model.TestResult{
		TestGroupID: groupID, TID: tid, TestCaseNo: caseNo,
		Result: req.Result, Judgment: req.Judgment,
		SoftwareVersion: req.SoftwareVersion, HardwareVersion: req.HardwareVersion,
		ComparatorVersion: req.ComparatorVersion, ExecutionDate: req.ExecutionDate,
		Executor: req.Executor, Note: req.Note,
	}
	// Evidence arrives as temp keys from the upload endpoint and gets
	// promoted to its production prefix before the rows are written; the
	// bucket lifecycle rule reclaims the temp copies.
	prefix := fmt.Sprintf("evidences/%d/%s/%d", groupID, tid, caseNo)
	evidence := make([]repository.EvidenceFile, 0, len(req.EvidenceURLs))
	for _, url := range req.EvidenceURLs {
		if strings.TrimSpace(url) == "" {
			continue
		}
		key := url
		if strings.HasPrefix(url, "temp/") {
			promoted, err := h.Store.Copy(ctx, url, prefix)
			if err != nil {
				return writeErr(c, err)
			}
			key = promoted
		}
		evidence = append(evidence, repository.EvidenceFile{
			Name: storage.FileNameOf(key),
			Path: key,
		})
	}

	version, err := h.Results.Submit(ctx, res, evidence)
	if err != nil {
		return writeErr(c, err)
	}

	// Failures here only cost an audit line, never the request.
	_ = service.PublishResultRecorded(ctx, queue.ResultRecordedEvent{
		TestGroupID: groupID, TID: tid, TestCaseNo: caseNo,
		Judgment: req.Judgment, Version: version, Executor: req.Executor,
		EvidenceCount: len(evidence),
		RecordedAt:    time.Now().UTC().Format(time.RFC3339),
	})

	return c.JSON(http.StatusOK, echo.Map{"message": "result recorded", "version": version})
}

// caseResultRow joins one test content with its current result, keyed by
// test_case_no.  Result is nil for contents that were never executed.
type caseResultRow struct {
	TestCaseNo    int                            `json:"test_case_no"`
	TestCase      string                         `json:"test_case"`
	ExpectedValue string                         `json:"expected_value"`
	IsTarget      bool                           `json:"is_target"`
	Result        *repository.ResultWithEvidence `json:"result"`
}

// ListResults returns every content of one case joined with its current
// result and evidence, ordered by test_case_no.
func (h *GroupHandler) ListResults(c echo.Context) error {
	p, err := principal(c)
	if err != nil {
		return unauthorized(c)
	}
	groupID, err := pathUint(c, "groupId")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid group id"})
	}
	tid := c.Param("tid")

	ctx, cancel := reqCtx(c)
	defer cancel()

	ok, err := h.Access.CanView(ctx, p, groupID)
	if err != nil {
		return writeErr(c, err)
	}
	if !ok {
		return forbidden(c)
	}

	contents, err := h.Cases.ContentsForCase(ctx, groupID, tid)
	if err != nil {
		return writeErr(c, err)
	}
	results, err := h.Results.ListForCase(ctx, groupID, tid)
	if err != nil {
		return writeErr(c, err)
	}
	byNo := make(map[int]*repository.ResultWithEvidence, len(results))
	for i := range results {
		byNo[results[i].TestCaseNo] = &results[i]
	}

	rows := make([]caseResultRow, 0, len(contents))
	for _, ct := range contents {
		rows = append(rows, caseResultRow{
			TestCaseNo:    ct.TestCaseNo,
			TestCase:      ct.TestCase,
			ExpectedValue: ct.ExpectedValue,
			IsTarget:      ct.IsTarget,
			Result:        byNo[ct.TestCaseNo],
		})
	}
	return c.JSON(http.StatusOK, echo.Map{"results": rows})
}

// DownloadEvidence redirects the client to a presigned URL for one
// evidence file.
func (h *GroupHandler) DownloadEvidence(c echo.Context) error {
	p, err := principal(c)
	if err != nil {
		return unauthorized(c)
	}
	groupID, err := pathUint(c, "groupId")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid group id"})
	}
	tid := c.Param("tid")
	caseNo, err1 := pathInt(c, "testCaseNo")
	historyCount, err2 := pathInt(c, "historyCount")
	evidenceNo, err3 := pathInt(c, "evidenceNo")
	if err1 != nil || err2 != nil || err3 != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid evidence key"})
	}

	ctx, cancel := reqCtx(c)
	defer cancel()

	ok, err := h.Access.CanView(ctx, p, groupID)
	if err != nil {
		return writeErr(c, err)
	}
	if !ok {
		return forbidden(c)
	}

	key, err := h.Results.EvidencePath(ctx, groupID, tid, caseNo, historyCount, evidenceNo)
	if err != nil {
		return writeErr(c, err)
	}
	url, err := h.Store.PresignGet(ctx, key, time.Hour)
	if err != nil {
		return writeErr(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"url": url})
}

// DeleteEvidence soft-deletes one evidence row.  Requires Executor
// capability or better.
func (h *GroupHandler) DeleteEvidence(c echo.Context) error {
	p, err := principal(c)
	if err != nil {
		return unauthorized(c)
	}
	groupID, err := pathUint(c, "groupId")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid group id"})
	}
	tid := c.Param("tid")
	caseNo, err1 := pathInt(c, "testCaseNo")
	historyCount, err2 := pathInt(c, "historyCount")
	evidenceNo, err3 := pathInt(c, "evidenceNo")
	if err1 != nil || err2 != nil || err3 != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid evidence key"})
	}

	ctx, cancel := reqCtx(c)
	defer cancel()

	allowed, err := h.Access.CanExecuteTests(ctx, p, groupID)
	if err != nil {
		return writeErr(c, err)
	}
	if !allowed {
		return forbidden(c)
	}

	key, err := h.Results.EvidencePath(ctx, groupID, tid, caseNo, historyCount, evidenceNo)
	if err != nil {
		return writeErr(c, err)
	}
	if err := h.Store.Delete(ctx, key); err != nil {
		return writeErr(c, err)
	}
	if err := h.Results.SoftDeleteEvidence(ctx, groupID, tid, caseNo, historyCount, evidenceNo); err != nil {
		return writeErr(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "deleted"})
}
