package access

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teststack/test-management-service/internal/model"
)

type fakeGroups struct {
	creators map[uint64]string
	all      []uint64
}

func (f *fakeGroups) CreatorOf(_ context.Context, id uint64) (string, error) {
	return f.creators[id], nil
}

func (f *fakeGroups) AllIDs(_ context.Context) ([]uint64, error) { return f.all, nil }

func (f *fakeGroups) IDsCreatedBy(_ context.Context, creator string) ([]uint64, error) {
	var out []uint64
	for _, id := range f.all {
		if f.creators[id] == creator {
			out = append(out, id)
		}
	}
	return out, nil
}

type fakeAssignments struct {
	// roles[userID][groupID] lists the user's assignment levels on the group.
	roles map[uint64]map[uint64][]model.TestRole
}

func (f *fakeAssignments) TestRolesFor(_ context.Context, userID, groupID uint64) ([]model.TestRole, error) {
	return f.roles[userID][groupID], nil
}

func (f *fakeAssignments) GroupIDsForUser(_ context.Context, userID uint64) ([]uint64, error) {
	var out []uint64
	for groupID, roles := range f.roles[userID] {
		if len(roles) > 0 {
			out = append(out, groupID)
		}
	}
	return out, nil
}

func newTestResolver() *Resolver {
	groups := &fakeGroups{
		creators: map[uint64]string{10: "2", 11: "3"},
		all:      []uint64{10, 11, 12},
	}
	assignments := &fakeAssignments{roles: map[uint64]map[uint64][]model.TestRole{
		3: {11: {model.TestRoleViewer}, 12: {model.TestRoleViewer}},
		4: {10: {model.TestRoleViewer}},
		5: {10: {model.TestRoleExecutor}},
		6: {10: {model.TestRoleDesigner}, 11: {model.TestRoleViewer}},
		7: {10: {model.TestRoleViewer, model.TestRoleExecutor}},
	}}
	return NewResolver(groups, assignments)
}

func TestCanViewRequiresAnyAssignment(t *testing.T) {
	r := newTestResolver()
	ctx := context.Background()

	ok, err := r.CanView(ctx, Principal{ID: 1, Role: model.UserRoleAdmin}, 10)
	require.NoError(t, err)
	assert.True(t, ok, "admin sees every group")

	ok, err = r.CanView(ctx, Principal{ID: 2, Role: model.UserRoleTestManager}, 10)
	require.NoError(t, err)
	assert.True(t, ok, "creator sees own group")

	ok, err = r.CanView(ctx, Principal{ID: 4, Role: model.UserRoleGeneral}, 10)
	require.NoError(t, err)
	assert.True(t, ok, "a viewer-level tag is enough to view")

	ok, err = r.CanView(ctx, Principal{ID: 4, Role: model.UserRoleGeneral}, 11)
	require.NoError(t, err)
	assert.False(t, ok, "no assignment on the group")
}

func TestCanModifyGroupIgnoresTags(t *testing.T) {
	r := newTestResolver()
	ctx := context.Background()

	ok, err := r.CanModifyGroup(ctx, Principal{ID: 2, Role: model.UserRoleTestManager}, 10)
	require.NoError(t, err)
	assert.True(t, ok)

	// Designer is the strongest tag level and still does not grant
	// modification of the group record.
	ok, err = r.CanModifyGroup(ctx, Principal{ID: 6, Role: model.UserRoleGeneral}, 10)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = r.CanModifyGroup(ctx, Principal{ID: 1, Role: model.UserRoleAdmin}, 10)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestRoleLevelsArePrivilegeOrdered(t *testing.T) {
	r := newTestResolver()
	ctx := context.Background()

	cases := []struct {
		name       string
		userID     uint64
		canEdit    bool
		canExecute bool
	}{
		{"viewer", 4, false, false},
		{"executor", 5, false, true},
		{"designer", 6, true, true},
		{"viewer plus executor", 7, false, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			p := Principal{ID: tc.userID, Role: model.UserRoleGeneral}
			ok, err := r.CanEditTestCases(ctx, p, 10)
			require.NoError(t, err)
			assert.Equal(t, tc.canEdit, ok)

			ok, err = r.CanExecuteTests(ctx, p, 10)
			require.NoError(t, err)
			assert.Equal(t, tc.canExecute, ok)
		})
	}
}

func TestCreatorStillNeedsRoleForCaseWork(t *testing.T) {
	r := newTestResolver()
	ctx := context.Background()

	// User 2 created group 10 but holds no tag on it.  Ownership grants
	// viewing and group modification, never case authoring or execution.
	p := Principal{ID: 2, Role: model.UserRoleTestManager}

	ok, err := r.CanView(ctx, p, 10)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = r.CanModifyGroup(ctx, p, 10)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = r.CanEditTestCases(ctx, p, 10)
	require.NoError(t, err)
	assert.False(t, ok, "creator without a Designer tag may not edit cases")

	ok, err = r.CanExecuteTests(ctx, p, 10)
	require.NoError(t, err)
	assert.False(t, ok, "creator without an Executor tag may not record results")

	// A Viewer tag on the creator's own group changes nothing either.
	p = Principal{ID: 3, Role: model.UserRoleTestManager}

	ok, err = r.CanEditTestCases(ctx, p, 11)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = r.CanExecuteTests(ctx, p, 11)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestAccessibleGroupsByGlobalRole(t *testing.T) {
	r := newTestResolver()
	ctx := context.Background()

	ids, err := r.AccessibleGroups(ctx, Principal{ID: 1, Role: model.UserRoleAdmin})
	require.NoError(t, err)
	assert.ElementsMatch(t, []uint64{10, 11, 12}, ids)

	// A test manager sees created groups and tagged groups, without
	// duplicates when the sets overlap.  User 3 created group 11 and is
	// also tagged on 11 and 12.
	ids, err = r.AccessibleGroups(ctx, Principal{ID: 3, Role: model.UserRoleTestManager})
	require.NoError(t, err)
	assert.ElementsMatch(t, []uint64{11, 12}, ids)

	ids, err = r.AccessibleGroups(ctx, Principal{ID: 4, Role: model.UserRoleGeneral})
	require.NoError(t, err)
	assert.ElementsMatch(t, []uint64{10}, ids)

	ids, err = r.AccessibleGroups(ctx, Principal{ID: 9, Role: model.UserRoleGeneral})
	require.NoError(t, err)
	assert.Empty(t, ids)
}
