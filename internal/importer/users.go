package importer

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"

	"github.com/teststack/test-management-service/internal/csvutil"
	"github.com/teststack/test-management-service/internal/model"
)

// requiredUserColumns are the columns every user row must fill.  Password
// is deliberately absent: existing users may omit it to keep their current
// credential.
var requiredUserColumns = []string{"email", "user_role"}

var emailShape = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// ImportUsers ingests a user CSV.  Each row is one account, created or
// updated in its own transaction, so a failing row is recorded and skipped
// without touching the others.  The tags column carries comma-joined tag
// names; tags are created on first use and the row's set replaces the
// user's previous assignments.
func (im *Importer) ImportUsers(ctx context.Context, fileName, executorName string, r io.Reader) (*Result, error) {
	runID, err := im.runs.StartRun(ctx, fileName, executorName, model.ImportTypeUser)
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

	valid, presenceErrs := filterRequired(records, requiredUserColumns)
	res.Errors = append(res.Errors, presenceErrs...)

	for _, rec := range valid {
		if msg := im.importUserRow(ctx, rec); msg != "" {
			res.Errors = append(res.Errors, RowError{Row: rec.Row, Message: msg})
			continue
		}
		res.SuccessCount++
	}

	if err := im.finalize(ctx, runID, res); err != nil {
		return nil, err
	}
	return res, nil
}

// importUserRow processes one CSV row and returns an error message, or ""
// on success.
func (im *Importer) importUserRow(ctx context.Context, rec csvutil.Record) string {
	roleNum, err := strconv.Atoi(rec.Fields["user_role"])
	if err != nil || !model.ValidUserRole(roleNum) {
		return "user_role must be 0 (admin), 1 (test manager) or 2 (general)"
	}
	role := model.UserRole(roleNum)

	email := rec.Fields["email"]
	if !emailShape.MatchString(email) {
		return "invalid email address format"
	}

	password := rec.Fields["password"]
	department := rec.Fields["department"]
	company := rec.Fields["company"]
	tagNames := splitTags(rec.Fields["tags"])

	existing, err := im.users.GetByEmail(ctx, email)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		if strings.TrimSpace(password) == "" {
			return "password is required for new users"
		}
		if _, err := im.users.Create(ctx, email, password, role, department, company, tagNames, im.bcryptCost); err != nil {
			return err.Error()
		}
	case err != nil:
		return err.Error()
	default:
		if err := im.users.Update(ctx, existing.ID, role, department, company, password, tagNames, im.bcryptCost); err != nil {
			return err.Error()
		}
	}
	return ""
}

// splitTags splits a comma-joined tag cell into trimmed non-empty names.
func splitTags(cell string) []string {
	if strings.TrimSpace(cell) == "" {
		return nil
	}
	parts := strings.Split(cell, ",")
	names := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			names = append(names, p)
		}
	}
	return names
}
