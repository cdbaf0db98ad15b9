package handler

import (
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/teststack/test-management-service/internal/model"
	"github.com/teststack/test-management-service/internal/repository"
)

// caseResp is the JSON shape of a test case with its children.
type caseResp struct {
	TestGroupID   uint64               `json:"test_group_id"`
	TID           string               `json:"tid"`
	FirstLayer    string               `json:"first_layer"`
	SecondLayer   string               `json:"second_layer"`
	ThirdLayer    string               `json:"third_layer"`
	FourthLayer   string               `json:"fourth_layer"`
	Purpose       string               `json:"purpose"`
	RequestID     string               `json:"request_id"`
	CheckItems    string               `json:"check_items"`
	TestProcedure string               `json:"test_procedure"`
	CreatedAt     time.Time            `json:"created_at"`
	UpdatedAt     time.Time            `json:"updated_at"`
	Contents      []model.TestContent  `json:"contents"`
	Files         []model.TestCaseFile `json:"files"`
}

func toCaseResp(cw *repository.CaseWithChildren) caseResp {
	return caseResp{
		TestGroupID: cw.TestGroupID, TID: cw.TID,
		FirstLayer: cw.FirstLayer, SecondLayer: cw.SecondLayer,
		ThirdLayer: cw.ThirdLayer, FourthLayer: cw.FourthLayer,
		Purpose: cw.Purpose, RequestID: cw.RequestID,
		CheckItems: cw.CheckItems, TestProcedure: cw.TestProcedure,
		CreatedAt: cw.CreatedAt, UpdatedAt: cw.UpdatedAt,
		Contents: cw.Contents, Files: cw.Files,
	}
}

type contentReq struct {
	TestCaseNo    int    `json:"test_case_no"`
	TestCase      string `json:"test_case"`
	ExpectedValue string `json:"expected_value"`
	IsTarget      *bool  `json:"is_target"`
}

type caseReq struct {
	TID           string       `json:"tid"`
	FirstLayer    string       `json:"first_layer"`
	SecondLayer   string       `json:"second_layer"`
	ThirdLayer    string       `json:"third_layer"`
	FourthLayer   string       `json:"fourth_layer"`
	Purpose       string       `json:"purpose"`
	RequestID     string       `json:"request_id"`
	CheckItems    string       `json:"check_items"`
	TestProcedure string       `json:"test_procedure"`
	Contents      []contentReq `json:"contents"`
}

func (r *caseReq) toModel(groupID uint64) (*model.TestCase, []model.TestContent, bool) {
	tid := strings.TrimSpace(r.TID)
	if tid == "" {
		return nil, nil, false
	}
	tc := &model.TestCase{
		TestGroupID: groupID, TID: tid,
		FirstLayer: r.FirstLayer, SecondLayer: r.SecondLayer,
		ThirdLayer: r.ThirdLayer, FourthLayer: r.FourthLayer,
		Purpose: r.Purpose, RequestID: r.RequestID,
		CheckItems: r.CheckItems, TestProcedure: r.TestProcedure,
	}
	contents := make([]model.TestContent, 0, len(r.Contents))
	for _, cr := range r.Contents {
		if cr.TestCaseNo <= 0 || strings.TrimSpace(cr.TestCase) == "" {
			return nil, nil, false
		}
		isTarget := true
		if cr.IsTarget != nil {
			isTarget = *cr.IsTarget
		}
		contents = append(contents, model.TestContent{
			TestGroupID: groupID, TID: tid, TestCaseNo: cr.TestCaseNo,
			TestCase: cr.TestCase, ExpectedValue: cr.ExpectedValue, IsTarget: isTarget,
		})
	}
	return tc, contents, true
}

// ListCases returns every case of the group with contents and files.
func (h *GroupHandler) ListCases(c echo.Context) error {
	p, err := principal(c)
	if err != nil {
		return unauthorized(c)
	}
	groupID, err := pathUint(c, "groupId")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid group id"})
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

	cases, err := h.Cases.ListByGroup(ctx, groupID)
	if err != nil {
		return writeErr(c, err)
	}
	items := make([]caseResp, 0, len(cases))
	for i := range cases {
		items = append(items, toCaseResp(&cases[i]))
	}
	return c.JSON(http.StatusOK, echo.Map{"test_cases": items})
}

// GetCase returns one case with contents and files.
func (h *GroupHandler) GetCase(c echo.Context) error {
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

	cw, err := h.Cases.Get(ctx, groupID, tid)
	if err != nil {
		return writeErr(c, err)
	}
	return c.JSON(http.StatusOK, toCaseResp(cw))
}

// CreateCase adds a case with its contents.  Requires Designer capability
// on the group; a duplicate tid is a conflict.
func (h *GroupHandler) CreateCase(c echo.Context) error {
	p, err := principal(c)
	if err != nil {
		return unauthorized(c)
	}
	groupID, err := pathUint(c, "groupId")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid group id"})
	}
	var req caseReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	if len(req.Contents) == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "at least one content is required"})
	}
	tc, contents, ok := req.toModel(groupID)
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "tid is required and every content needs a positive test_case_no and test_case text"})
	}

	ctx, cancel := reqCtx(c)
	defer cancel()

	allowed, err := h.Access.CanEditTestCases(ctx, p, groupID)
	if err != nil {
		return writeErr(c, err)
	}
	if !allowed {
		return forbidden(c)
	}

	if err := h.Cases.Create(ctx, tc, contents); err != nil {
		return writeErr(c, err)
	}
	return c.JSON(http.StatusCreated, echo.Map{"test_group_id": groupID, "tid": tc.TID})
}

// UpdateCase rewrites the case metadata and replaces its content set.
func (h *GroupHandler) UpdateCase(c echo.Context) error {
	p, err := principal(c)
	if err != nil {
		return unauthorized(c)
	}
	groupID, err := pathUint(c, "groupId")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid group id"})
	}
	tid := c.Param("tid")

	var req caseReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	req.TID = tid
	tc, contents, ok := req.toModel(groupID)
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "every content needs a positive test_case_no and test_case text"})
	}

	ctx, cancel := reqCtx(c)
	defer cancel()

	allowed, err := h.Access.CanEditTestCases(ctx, p, groupID)
	if err != nil {
		return writeErr(c, err)
	}
	if !allowed {
		return forbidden(c)
	}

	if _, err := h.Cases.Get(ctx, groupID, tid); err != nil {
		return writeErr(c, err)
	}
	if err := h.Cases.Update(ctx, tc, contents); err != nil {
		return writeErr(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "updated"})
}

// DeleteCase soft-deletes the case and cascades to contents and files.
func (h *GroupHandler) DeleteCase(c echo.Context) error {
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

	allowed, err := h.Access.CanEditTestCases(ctx, p, groupID)
	if err != nil {
		return writeErr(c, err)
	}
	if !allowed {
		return forbidden(c)
	}

	if _, err := h.Cases.Get(ctx, groupID, tid); err != nil {
		return writeErr(c, err)
	}
	if err := h.Cases.SoftDelete(ctx, groupID, tid); err != nil {
		return writeErr(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "deleted"})
}
