package report

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teststack/test-management-service/internal/model"
)

func content(tid string, no int) model.TestContent {
	return model.TestContent{TestGroupID: 1, TID: tid, TestCaseNo: no}
}

func result(tid string, no int, judgment string) model.TestResult {
	return model.TestResult{TestGroupID: 1, TID: tid, TestCaseNo: no, Judgment: judgment, Version: 1}
}

func TestBuildStatistics(t *testing.T) {
	group := &model.TestGroup{ID: 1, OEM: "acme", Model: "mk1"}
	cases := []model.TestCase{
		{TestGroupID: 1, TID: "T-1"},
		{TestGroupID: 1, TID: "T-2"},
	}
	// Ten contents, seven tested: 4 OK, 2 NG, 1 excluded.
	contents := make([]model.TestContent, 0, 10)
	for i := 1; i <= 5; i++ {
		contents = append(contents, content("T-1", i), content("T-2", i))
	}
	results := []model.TestResult{
		result("T-1", 1, model.JudgmentOK),
		result("T-1", 2, model.JudgmentOK),
		result("T-1", 3, model.JudgmentNG),
		result("T-1", 4, model.JudgmentExcluded),
		result("T-2", 1, model.JudgmentOK),
		result("T-2", 2, model.JudgmentOK),
		result("T-2", 3, model.JudgmentNG),
	}

	rep := Build(group, cases, contents, results)

	st := rep.Statistics
	assert.Equal(t, 2, st.TotalTestCases)
	assert.Equal(t, 10, st.TotalTestContents)
	assert.Equal(t, 7, st.TestedCount)
	assert.Equal(t, 3, st.UntestedCount)
	assert.Equal(t, 4, st.OKCount)
	assert.Equal(t, 2, st.NGCount)
	assert.Equal(t, 1, st.NotApplicableCount)
	assert.Equal(t, 40.0, st.PassRate, "4 OK of 10 contents")
	assert.Equal(t, 70.0, st.Progress, "7 tested of 10 contents")
}

func TestBuildRoundsToOneDecimal(t *testing.T) {
	group := &model.TestGroup{ID: 1}
	cases := []model.TestCase{{TestGroupID: 1, TID: "T-1"}}
	contents := []model.TestContent{content("T-1", 1), content("T-1", 2), content("T-1", 3)}
	results := []model.TestResult{result("T-1", 1, model.JudgmentOK)}

	rep := Build(group, cases, contents, results)

	// 1/3 is 33.333...%, rounded to 33.3.
	assert.Equal(t, 33.3, rep.Statistics.PassRate)
	assert.Equal(t, 33.3, rep.Statistics.Progress)
}

func TestBuildZeroContents(t *testing.T) {
	rep := Build(&model.TestGroup{ID: 1}, nil, nil, nil)

	assert.Equal(t, 0.0, rep.Statistics.PassRate)
	assert.Equal(t, 0.0, rep.Statistics.Progress)
	assert.Equal(t, 0, rep.Statistics.UntestedCount)
	assert.Empty(t, rep.TestCases)
}

func TestBuildGroupsByCase(t *testing.T) {
	group := &model.TestGroup{ID: 1}
	cases := []model.TestCase{
		{TestGroupID: 1, TID: "T-1"},
		{TestGroupID: 1, TID: "T-2"},
	}
	contents := []model.TestContent{content("T-1", 1), content("T-1", 2), content("T-2", 1)}
	results := []model.TestResult{result("T-1", 1, model.JudgmentOK)}

	rep := Build(group, cases, contents, results)

	require.Len(t, rep.TestCases, 2)
	assert.Len(t, rep.TestCases[0].Contents, 2)
	assert.Len(t, rep.TestCases[0].Results, 1)
	assert.Len(t, rep.TestCases[1].Contents, 1)
	assert.Empty(t, rep.TestCases[1].Results, "a case without results gets an empty slice, not nil")
}
