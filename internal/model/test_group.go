package model

import "time"

// TestGroup scopes one round of testing to an OEM/model/event/variation/
// destination combination (tt_test_groups row).  CreatedBy is stored as a
// string form of the creating user's id; only the creator or an admin may
// modify or delete the group record itself.
type TestGroup struct {
	ID            uint64     // tt_test_groups.id
	OEM           string     // tt_test_groups.oem
	Model         string     // tt_test_groups.model
	Event         string     // tt_test_groups.event
	Variation     string     // tt_test_groups.variation
	Destination   string     // tt_test_groups.destination
	Specs         string     // tt_test_groups.specs
	TestStartDate *time.Time // tt_test_groups.test_startdate (nullable)
	TestEndDate   *time.Time // tt_test_groups.test_enddate (nullable)
	NGPlanCount   int        // tt_test_groups.ng_plan_count
	CreatedBy     string     // tt_test_groups.created_by (user id as string)
	UpdatedBy     string     // tt_test_groups.updated_by
	CreatedAt     time.Time  // tt_test_groups.created_at
	UpdatedAt     time.Time  // tt_test_groups.updated_at
	IsDeleted     bool       // tt_test_groups.is_deleted
}

// GroupFilter carries the optional list filters for test groups.  Empty
// fields are ignored; non-empty fields match as case-insensitive substrings.
type GroupFilter struct {
	OEM         string
	Model       string
	Event       string
	Variation   string
	Destination string
}
