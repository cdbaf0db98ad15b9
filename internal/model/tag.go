package model

import "time"

// Tag is the indirection that binds users to test groups.  A user holds
// tags (mt_user_tags); a test group grants a test role to tags
// (tt_test_group_tags).  A user's capability on a group is derived only
// from the intersection of the two.
type Tag struct {
	ID        uint64    // mt_tags.id
	Name      string    // mt_tags.name (unique among non-deleted tags)
	CreatedAt time.Time // mt_tags.created_at
	UpdatedAt time.Time // mt_tags.updated_at
	IsDeleted bool      // mt_tags.is_deleted
}

// TestRole is the per-group capability level a tag grants.  Numerically
// smaller values carry more privilege: Designer satisfies every check that
// Executor or Viewer would, Executor satisfies Viewer, and Viewer satisfies
// only itself.  The comparison is always assignment.TestRole <= required.
type TestRole int

const (
	TestRoleDesigner TestRole = 1 // author test cases and contents
	TestRoleExecutor TestRole = 2 // record test results and evidence
	TestRoleViewer   TestRole = 3 // read-only access
)

// GroupTagAssignment binds a tag to a test group at a given role level
// (tt_test_group_tags row).
type GroupTagAssignment struct {
	TestGroupID uint64   // tt_test_group_tags.test_group_id
	TagID       uint64   // tt_test_group_tags.tag_id
	TestRole    TestRole // tt_test_group_tags.test_role
}
