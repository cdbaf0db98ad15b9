package handler

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/teststack/test-management-service/internal/access"
	"github.com/teststack/test-management-service/internal/model"
	"github.com/teststack/test-management-service/internal/repository"
	"github.com/teststack/test-management-service/internal/storage"
)

// GroupHandler bundles dependencies for the test group, test case, result
// and report endpoints.
type GroupHandler struct {
	Groups  *repository.TestGroupRepo
	Cases   *repository.TestCaseRepo
	Results *repository.TestResultRepo
	Access  *access.Resolver
	Store   storage.Store
}

func NewGroupHandler(g *repository.TestGroupRepo, tc *repository.TestCaseRepo, tr *repository.TestResultRepo, a *access.Resolver, st storage.Store) *GroupHandler {
	return &GroupHandler{Groups: g, Cases: tc, Results: tr, Access: a, Store: st}
}

// groupResp is the JSON shape of a test group.
type groupResp struct {
	ID            uint64                      `json:"id"`
	OEM           string                      `json:"oem"`
	Model         string                      `json:"model"`
	Event         string                      `json:"event"`
	Variation     string                      `json:"variation"`
	Destination   string                      `json:"destination"`
	Specs         string                      `json:"specs"`
	TestStartDate *string                     `json:"test_startdate"`
	TestEndDate   *string                     `json:"test_enddate"`
	NGPlanCount   int                         `json:"ng_plan_count"`
	CreatedBy     string                      `json:"created_by"`
	UpdatedBy     string                      `json:"updated_by"`
	CreatedAt     time.Time                   `json:"created_at"`
	UpdatedAt     time.Time                   `json:"updated_at"`
	Tags          []repository.GroupTagDetail `json:"tags,omitempty"`
}

func toGroupResp(g *model.TestGroup, tags []repository.GroupTagDetail) groupResp {
	return groupResp{
		ID: g.ID, OEM: g.OEM, Model: g.Model, Event: g.Event,
		Variation: g.Variation, Destination: g.Destination, Specs: g.Specs,
		TestStartDate: fmtDate(g.TestStartDate), TestEndDate: fmtDate(g.TestEndDate),
		NGPlanCount: g.NGPlanCount, CreatedBy: g.CreatedBy, UpdatedBy: g.UpdatedBy,
		CreatedAt: g.CreatedAt, UpdatedAt: g.UpdatedAt, Tags: tags,
	}
}

func fmtDate(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.Format("2006-01-02")
	return &s
}

func parseDate(s string) (*time.Time, error) {
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

type groupTagReq struct {
	TagID    uint64 `json:"tag_id"`
	TestRole int    `json:"test_role"`
}

type groupReq struct {
	OEM           string        `json:"oem"`
	Model         string        `json:"model"`
	Event         string        `json:"event"`
	Variation     string        `json:"variation"`
	Destination   string        `json:"destination"`
	Specs         string        `json:"specs"`
	TestStartDate string        `json:"test_startdate"`
	TestEndDate   string        `json:"test_enddate"`
	NGPlanCount   int           `json:"ng_plan_count"`
	Tags          []groupTagReq `json:"tags"`
}

// updateGroupReq is groupReq with a nilable tags array: nil keeps the
// current assignments, an empty array clears them.
type updateGroupReq struct {
	OEM           string         `json:"oem"`
	Model         string         `json:"model"`
	Event         string         `json:"event"`
	Variation     string         `json:"variation"`
	Destination   string         `json:"destination"`
	Specs         string         `json:"specs"`
	TestStartDate string         `json:"test_startdate"`
	TestEndDate   string         `json:"test_enddate"`
	NGPlanCount   int            `json:"ng_plan_count"`
	Tags          *[]groupTagReq `json:"tags"`
}

func (r *groupReq) bindings() ([]repository.GroupTagBinding, bool) {
	out := make([]repository.GroupTagBinding, 0, len(r.Tags))
	for _, t := range r.Tags {
		role := model.TestRole(t.TestRole)
		if t.TagID == 0 || role < model.TestRoleDesigner || role > model.TestRoleViewer {
			return nil, false
		}
		out = append(out, repository.GroupTagBinding{TagID: t.TagID, TestRole: role})
	}
	return out, true
}

// ListGroups returns the groups the caller may see, paginated and
// optionally filtered by the identity columns.
func (h *GroupHandler) ListGroups(c echo.Context) error {
	p, err := principal(c)
	if err != nil {
		return unauthorized(c)
	}

	page, _ := strconv.Atoi(c.QueryParam("page"))
	if page < 1 {
		page = 1
	}
	limit, _ := strconv.Atoi(c.QueryParam("limit"))
	if limit < 1 || limit > 100 {
		limit = 20
	}
	filter := model.GroupFilter{
		OEM:         c.QueryParam("oem"),
		Model:       c.QueryParam("model"),
		Event:       c.QueryParam("event"),
		Variation:   c.QueryParam("variation"),
		Destination: c.QueryParam("destination"),
	}

	ctx, cancel := reqCtx(c)
	defer cancel()

	ids, err := h.Access.AccessibleGroups(ctx, p)
	if err != nil {
		return writeErr(c, err)
	}
	groups, total, err := h.Groups.List(ctx, ids, filter, page, limit)
	if err != nil {
		return writeErr(c, err)
	}

	items := make([]groupResp, 0, len(groups))
	for i := range groups {
		items = append(items, toGroupResp(&groups[i], nil))
	}
	return c.JSON(http.StatusOK, echo.Map{
		"test_groups": items,
		"total":       total,
		"page":        page,
		"limit":       limit,
	})
}

// GetGroup returns one group with its tag assignments.
func (h *GroupHandler) GetGroup(c echo.Context) error {
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

	g, err := h.Groups.GetByID(ctx, groupID)
	if err != nil {
		return writeErr(c, err)
	}
	tags, err := h.Groups.TagsForGroup(ctx, groupID)
	if err != nil {
		return writeErr(c, err)
	}
	return c.JSON(http.StatusOK, toGroupResp(g, tags))
}

// CreateGroup creates a group with its tag assignments.  Admins and test
// managers only; general users never create groups.
func (h *GroupHandler) CreateGroup(c echo.Context) error {
	p, err := principal(c)
	if err != nil {
		return unauthorized(c)
	}
	if p.Role != model.UserRoleAdmin && p.Role != model.UserRoleTestManager {
		return forbidden(c)
	}

	var req groupReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	if strings.TrimSpace(req.OEM) == "" || strings.TrimSpace(req.Model) == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "oem and model are required"})
	}
	start, err := parseDate(req.TestStartDate)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "test_startdate must be YYYY-MM-DD"})
	}
	end, err := parseDate(req.TestEndDate)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "test_enddate must be YYYY-MM-DD"})
	}
	tags, ok := req.bindings()
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "tags need a tag_id and a test_role of 1, 2 or 3"})
	}

	creator := strconv.FormatUint(p.ID, 10)
	g := &model.TestGroup{
		OEM: req.OEM, Model: req.Model, Event: req.Event,
		Variation: req.Variation, Destination: req.Destination, Specs: req.Specs,
		TestStartDate: start, TestEndDate: end, NGPlanCount: req.NGPlanCount,
		CreatedBy: creator, UpdatedBy: creator,
	}

	ctx, cancel := reqCtx(c)
	defer cancel()

	id, err := h.Groups.Create(ctx, g, tags)
	if err != nil {
		return writeErr(c, err)
	}
	g.ID = id
	return c.JSON(http.StatusCreated, toGroupResp(g, nil))
}

// UpdateGroup rewrites the group fields and, when a tags array is present,
// replaces the tag assignments.  Only admins and the creator may modify.
func (h *GroupHandler) UpdateGroup(c echo.Context) error {
	p, err := principal(c)
	if err != nil {
		return unauthorized(c)
	}
	groupID, err := pathUint(c, "groupId")
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid group id"})
	}

	var req updateGroupReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	start, err := parseDate(req.TestStartDate)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "test_startdate must be YYYY-MM-DD"})
	}
	end, err := parseDate(req.TestEndDate)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "test_enddate must be YYYY-MM-DD"})
	}
	var tags []repository.GroupTagBinding
	replaceTags := req.Tags != nil
	if replaceTags {
		probe := groupReq{Tags: *req.Tags}
		var ok bool
		if tags, ok = probe.bindings(); !ok {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "tags need a tag_id and a test_role of 1, 2 or 3"})
		}
	}

	ctx, cancel := reqCtx(c)
	defer cancel()

	ok, err := h.Access.CanModifyGroup(ctx, p, groupID)
	if err != nil {
		return writeErr(c, err)
	}
	if !ok {
		return forbidden(c)
	}

	g := &model.TestGroup{
		ID: groupID, OEM: req.OEM, Model: req.Model, Event: req.Event,
		Variation: req.Variation, Destination: req.Destination, Specs: req.Specs,
		TestStartDate: start, TestEndDate: end, NGPlanCount: req.NGPlanCount,
		UpdatedBy: strconv.FormatUint(p.ID, 10),
	}
	if err := h.Groups.Update(ctx, g, replaceTags, tags); err != nil {
		return writeErr(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "updated"})
}

// DeleteGroup soft-deletes the group record.  Cases and results under it
// are left untouched and become unreachable through the default filters.
func (h *GroupHandler) DeleteGroup(c echo.Context) error {
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

	ok, err := h.Access.CanModifyGroup(ctx, p, groupID)
	if err != nil {
		return writeErr(c, err)
	}
	if !ok {
		return forbidden(c)
	}
	if err := h.Groups.SoftDelete(ctx, groupID, strconv.FormatUint(p.ID, 10)); err != nil {
		return writeErr(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "deleted"})
}
