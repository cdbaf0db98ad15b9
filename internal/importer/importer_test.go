package importer

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teststack/test-management-service/internal/model"
)

type upsertCall struct {
	meta     *model.TestCase
	contents []model.TestContent
}

type fakeCaseStore struct {
	calls   []upsertCall
	failTID string
}

func (f *fakeCaseStore) UpsertWithContents(_ context.Context, tc *model.TestCase, contents []model.TestContent) error {
	if tc.TID == f.failTID {
		return errors.New("deadlock found when trying to get lock")
	}
	f.calls = append(f.calls, upsertCall{meta: tc, contents: contents})
	return nil
}

type createdUser struct {
	email    string
	password string
	role     model.UserRole
	tags     []string
}

type fakeUserStore struct {
	existing map[string]uint64
	created  []createdUser
	updated  []uint64
}

func (f *fakeUserStore) GetByEmail(_ context.Context, email string) (*model.User, error) {
	id, ok := f.existing[email]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &model.User{ID: id, Email: email}, nil
}

func (f *fakeUserStore) Create(_ context.Context, email, password string, role model.UserRole, _, _ string, tagNames []string, _ int) (uint64, error) {
	f.created = append(f.created, createdUser{email: email, password: password, role: role, tags: tagNames})
	return uint64(100 + len(f.created)), nil
}

func (f *fakeUserStore) Update(_ context.Context, id uint64, _ model.UserRole, _, _, _ string, _ []string, _ int) error {
	f.updated = append(f.updated, id)
	return nil
}

type fakeRunStore struct {
	nextID      uint64
	finishedAs  model.ImportStatus
	finishCount int
	errs        []model.ImportRunError
}

func (f *fakeRunStore) StartRun(_ context.Context, _, _ string, _ model.ImportType) (uint64, error) {
	f.nextID++
	return f.nextID, nil
}

func (f *fakeRunStore) FinishRun(_ context.Context, _ uint64, status model.ImportStatus, count int) error {
	f.finishedAs = status
	f.finishCount = count
	return nil
}

func (f *fakeRunStore) AddErrors(_ context.Context, _ uint64, errs []model.ImportRunError) error {
	f.errs = append(f.errs, errs...)
	return nil
}

func TestImportTestCasesGroupsRowsByTID(t *testing.T) {
	cases := &fakeCaseStore{}
	runs := &fakeRunStore{}
	im := New(cases, nil, runs, 10)

	csv := strings.Join([]string{
		"tid,first_layer,purpose,test_case_no,test_case,expected_value,is_target",
		"T-1,Power,startup,1,press ignition,lamp on,TRUE",
		"T-1,Power,startup,2,release ignition,lamp off,",
		"T-2,Brake,safety,1,pedal press,pressure rises,FALSE",
	}, "\n")

	res, err := im.ImportTestCases(context.Background(), 7, "cases.csv", "admin", strings.NewReader(csv))
	require.NoError(t, err)

	assert.Equal(t, 3, res.SuccessCount)
	assert.Empty(t, res.Errors)
	require.Len(t, cases.calls, 2)

	first := cases.calls[0]
	assert.Equal(t, "T-1", first.meta.TID)
	assert.Equal(t, uint64(7), first.meta.TestGroupID)
	assert.Equal(t, "Power", first.meta.FirstLayer)
	require.Len(t, first.contents, 2)
	assert.True(t, first.contents[0].IsTarget, "explicit TRUE")
	assert.True(t, first.contents[1].IsTarget, "empty defaults to true")

	second := cases.calls[1]
	require.Len(t, second.contents, 1)
	assert.False(t, second.contents[0].IsTarget)

	assert.Equal(t, model.ImportStatusCompleted, runs.finishedAs)
	assert.Equal(t, 3, runs.finishCount)
}

func TestImportTestCasesIsolatesFailingTID(t *testing.T) {
	cases := &fakeCaseStore{failTID: "T-2"}
	runs := &fakeRunStore{}
	im := New(cases, nil, runs, 10)

	csv := strings.Join([]string{
		"tid,test_case_no,test_case",
		"T-1,1,ok row",
		"T-2,1,doomed row",
		"T-3,1,ok row",
	}, "\n")

	res, err := im.ImportTestCases(context.Background(), 7, "cases.csv", "admin", strings.NewReader(csv))
	require.NoError(t, err)

	assert.Equal(t, 2, res.SuccessCount, "rows of the failing TID do not count")
	require.Len(t, res.Errors, 1)
	assert.Equal(t, -1, res.Errors[0].Row, "batch failures are keyed by TID, not row")
	assert.Contains(t, res.Errors[0].Message, "T-2")
	require.Len(t, cases.calls, 2)
	assert.Equal(t, "T-1", cases.calls[0].meta.TID)
	assert.Equal(t, "T-3", cases.calls[1].meta.TID)

	assert.Equal(t, model.ImportStatusError, runs.finishedAs)
	require.Len(t, runs.errs, 1)
	assert.Equal(t, -1, runs.errs[0].ErrorRow)
}

func TestImportTestCasesRowValidation(t *testing.T) {
	cases := &fakeCaseStore{}
	runs := &fakeRunStore{}
	im := New(cases, nil, runs, 10)

	csv := strings.Join([]string{
		"tid,test_case_no,test_case",
		",1,missing tid",
		"T-1,abc,bad number",
		"T-1,2,good row",
	}, "\n")

	res, err := im.ImportTestCases(context.Background(), 7, "cases.csv", "admin", strings.NewReader(csv))
	require.NoError(t, err)

	assert.Equal(t, 1, res.SuccessCount)
	require.Len(t, res.Errors, 2)
	assert.Equal(t, 2, res.Errors[0].Row, "presence failure names the source row, header counts as row 1")
	assert.Contains(t, res.Errors[0].Message, "tid")
	assert.Equal(t, -1, res.Errors[1].Row)
	assert.Contains(t, res.Errors[1].Message, "test_case_no")

	require.Len(t, cases.calls, 1)
	require.Len(t, cases.calls[0].contents, 1)
	assert.Equal(t, 2, cases.calls[0].contents[0].TestCaseNo)
}

func TestImportTestCasesEmptyFile(t *testing.T) {
	runs := &fakeRunStore{}
	im := New(&fakeCaseStore{}, nil, runs, 10)

	res, err := im.ImportTestCases(context.Background(), 7, "empty.csv", "admin", strings.NewReader(""))
	require.Error(t, err)
	require.NotNil(t, res)
	assert.Equal(t, model.ImportStatusError, runs.finishedAs, "the run record still captures the failure")
}

func TestImportUsersCreateAndUpdate(t *testing.T) {
	users := &fakeUserStore{existing: map[string]uint64{"old@example.com": 42}}
	runs := &fakeRunStore{}
	im := New(nil, users, runs, 10)

	csv := strings.Join([]string{
		"email,password,user_role,department,company,tags",
		"new@example.com,secret1,2,QA,Acme,\"team-a, team-b\"",
		"old@example.com,,1,QA,Acme,team-a",
	}, "\n")

	res, err := im.ImportUsers(context.Background(), "users.csv", "admin", strings.NewReader(csv))
	require.NoError(t, err)

	assert.Equal(t, 2, res.SuccessCount)
	assert.Empty(t, res.Errors)

	require.Len(t, users.created, 1)
	assert.Equal(t, "new@example.com", users.created[0].email)
	assert.Equal(t, model.UserRoleGeneral, users.created[0].role)
	assert.Equal(t, []string{"team-a", "team-b"}, users.created[0].tags)

	assert.Equal(t, []uint64{42}, users.updated, "existing user keeps their password when the cell is empty")
	assert.Equal(t, model.ImportStatusCompleted, runs.finishedAs)
}

func TestImportUsersRowValidation(t *testing.T) {
	users := &fakeUserStore{existing: map[string]uint64{}}
	runs := &fakeRunStore{}
	im := New(nil, users, runs, 10)

	csv := strings.Join([]string{
		"email,password,user_role,department,company,tags",
		"bad-email,secret,2,,,",
		"a@b.example,secret,7,,,",
		"nopass@example.com,,2,,,",
		"good@example.com,secret,0,,,",
	}, "\n")

	res, err := im.ImportUsers(context.Background(), "users.csv", "admin", strings.NewReader(csv))
	require.NoError(t, err)

	assert.Equal(t, 1, res.SuccessCount)
	require.Len(t, res.Errors, 3)
	assert.Equal(t, 2, res.Errors[0].Row)
	assert.Contains(t, res.Errors[0].Message, "email")
	assert.Equal(t, 3, res.Errors[1].Row)
	assert.Contains(t, res.Errors[1].Message, "user_role")
	assert.Equal(t, 4, res.Errors[2].Row)
	assert.Contains(t, res.Errors[2].Message, "password")

	require.Len(t, users.created, 1)
	assert.Equal(t, model.UserRoleAdmin, users.created[0].role)
	assert.Equal(t, model.ImportStatusError, runs.finishedAs)
	assert.Equal(t, 1, runs.finishCount)
}
