package csvutil

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseKeysRowsByHeader(t *testing.T) {
	in := "tid,test_case,expected\nT-1, press button ,lamp on\nT-2,release,lamp off\n"
	header, records, err := Parse(strings.NewReader(in))
	require.NoError(t, err)

	assert.Equal(t, []string{"tid", "test_case", "expected"}, header)
	require.Len(t, records, 2)
	assert.Equal(t, 2, records[0].Row, "first data row is row 2, header counts as row 1")
	assert.Equal(t, "press button", records[0].Fields["test_case"], "cells are trimmed")
	assert.Equal(t, 3, records[1].Row)
	assert.Equal(t, "T-2", records[1].Fields["tid"])
}

func TestParseToleratesRaggedRows(t *testing.T) {
	in := "a,b,c\n1,2\n1,2,3,4\n"
	_, records, err := Parse(strings.NewReader(in))
	require.NoError(t, err)
	require.Len(t, records, 2)

	assert.Equal(t, "", records[0].Fields["c"], "short row leaves missing columns empty")
	assert.Equal(t, "3", records[1].Fields["c"], "long row keeps named columns, drops the rest")
}

func TestParseEmptyInput(t *testing.T) {
	_, _, err := Parse(strings.NewReader(""))
	assert.ErrorIs(t, err, ErrEmpty)
}

func TestParseHeaderOnly(t *testing.T) {
	header, records, err := Parse(strings.NewReader("tid,test_case\n"))
	require.NoError(t, err)
	assert.Equal(t, []string{"tid", "test_case"}, header)
	assert.Empty(t, records)
}

func TestValidateRequired(t *testing.T) {
	header := []string{"tid", "test_case", "expected"}

	assert.NoError(t, ValidateRequired(header, []string{"tid", "expected"}))

	err := ValidateRequired(header, []string{"tid", "judgment", "executor"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "judgment")
	assert.Contains(t, err.Error(), "executor")
}
