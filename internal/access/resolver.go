// Package access derives what a user may do on a test group from the
// user's global role, group ownership and tag assignments.  The rules are
// evaluated on every request; nothing here is cached, so a tag or role
// change is visible immediately.
package access

import (
	"context"
	"strconv"

	"github.com/teststack/test-management-service/internal/model"
)

// GroupStore is the slice of group persistence the resolver needs.
type GroupStore interface {
	// CreatorOf returns the created_by value of a non-deleted group, or
	// "" when the group does not exist.
	CreatorOf(ctx context.Context, groupID uint64) (string, error)
	AllIDs(ctx context.Context) ([]uint64, error)
	IDsCreatedBy(ctx context.Context, creator string) ([]uint64, error)
}

// AssignmentStore resolves tag assignments between users and groups.
type AssignmentStore interface {
	// TestRolesFor returns every test role the user's tags grant on the
	// group.  Empty means no assignment.
	TestRolesFor(ctx context.Context, userID, groupID uint64) ([]model.TestRole, error)
	GroupIDsForUser(ctx context.Context, userID uint64) ([]uint64, error)
}

// Principal identifies the authenticated caller.
type Principal struct {
	ID   uint64
	Role model.UserRole
}

// Resolver answers access questions for principals against test groups.
type Resolver struct {
	groups      GroupStore
	assignments AssignmentStore
}

// NewResolver returns a Resolver over the given stores.
func NewResolver(groups GroupStore, assignments AssignmentStore) *Resolver {
	return &Resolver{groups: groups, assignments: assignments}
}

// isCreator reports whether p created the group.  created_by is stored as
// the string form of the user id.
func (r *Resolver) isCreator(ctx context.Context, p Principal, groupID uint64) (bool, error) {
	creator, err := r.groups.CreatorOf(ctx, groupID)
	if err != nil {
		return false, err
	}
	return creator != "" && creator == strconv.FormatUint(p.ID, 10), nil
}

// HasTestRole reports whether any of p's tag assignments on the group
// grants at least the required level.  Smaller role values carry more
// privilege, so the check is assignment <= required.
func (r *Resolver) HasTestRole(ctx context.Context, p Principal, groupID uint64, required model.TestRole) (bool, error) {
	roles, err := r.assignments.TestRolesFor(ctx, p.ID, groupID)
	if err != nil {
		return false, err
	}
	for _, role := range roles {
		if role <= required {
			return true, nil
		}
	}
	return false, nil
}

// CanView reports whether p may read the group.  Admins and the creator
// always may; anyone else needs at least one tag assignment on the group,
// at any level.
func (r *Resolver) CanView(ctx context.Context, p Principal, groupID uint64) (bool, error) {
	if p.Role == model.UserRoleAdmin {
		return true, nil
	}
	if ok, err := r.isCreator(ctx, p, groupID); err != nil || ok {
		return ok, err
	}
	roles, err := r.assignments.TestRolesFor(ctx, p.ID, groupID)
	if err != nil {
		return false, err
	}
	return len(roles) > 0, nil
}

// CanModifyGroup reports whether p may update or delete the group record
// itself.  Only admins and the creator may; tag assignments never grant
// this, regardless of level.
func (r *Resolver) CanModifyGroup(ctx context.Context, p Principal, groupID uint64) (bool, error) {
	if p.Role == model.UserRoleAdmin {
		return true, nil
	}
	return r.isCreator(ctx, p, groupID)
}

// CanEditTestCases reports whether p may author test cases and contents in
// the group.  Admins always may; everyone else, the creator included,
// needs a Designer level assignment.
func (r *Resolver) CanEditTestCases(ctx context.Context, p Principal, groupID uint64) (bool, error) {
	return r.canAtLevel(ctx, p, groupID, model.TestRoleDesigner)
}

// CanExecuteTests reports whether p may record results and evidence in the
// group.  Admins always may; everyone else, the creator included, needs an
// Executor level assignment or better.
func (r *Resolver) CanExecuteTests(ctx context.Context, p Principal, groupID uint64) (bool, error) {
	return r.canAtLevel(ctx, p, groupID, model.TestRoleExecutor)
}

func (r *Resolver) canAtLevel(ctx context.Context, p Principal, groupID uint64, required model.TestRole) (bool, error) {
	if p.Role == model.UserRoleAdmin {
		return true, nil
	}
	return r.HasTestRole(ctx, p, groupID, required)
}

// AccessibleGroups returns the group ids p may see at all.  Admins see
// every group, test managers see the union of groups they created and
// groups their tags reach, and general users see only tagged groups.
func (r *Resolver) AccessibleGroups(ctx context.Context, p Principal) ([]uint64, error) {
	switch p.Role {
	case model.UserRoleAdmin:
		return r.groups.AllIDs(ctx)
	case model.UserRoleTestManager:
		created, err := r.groups.IDsCreatedBy(ctx, strconv.FormatUint(p.ID, 10))
		if err != nil {
			return nil, err
		}
		tagged, err := r.assignments.GroupIDsForUser(ctx, p.ID)
		if err != nil {
			return nil, err
		}
		return mergeIDs(created, tagged), nil
	default:
		return r.assignments.GroupIDsForUser(ctx, p.ID)
	}
}

// mergeIDs unions two id slices preserving first-seen order.
func mergeIDs(a, b []uint64) []uint64 {
	seen := make(map[uint64]struct{}, len(a)+len(b))
	out := make([]uint64, 0, len(a)+len(b))
	for _, ids := range [][]uint64{a, b} {
		for _, id := range ids {
			if _, ok := seen[id]; ok {
				continue
			}
			seen[id] = struct{}{}
			out = append(out, id)
		}
	}
	return out
}
