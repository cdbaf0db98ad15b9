// Package report aggregates the execution state of a test group into the
// statistics and per-case breakdown served by the report endpoint.  The
// math is pure; callers fetch the rows and pass them in.
package report

import (
	"math"

	"github.com/teststack/test-management-service/internal/model"
)

// Statistics summarize how far a group's testing has progressed.  Rates
// are percentages rounded to one decimal place, 0 when the group has no
// test contents.
type Statistics struct {
	TotalTestCases     int     `json:"totalTestCases"`
	TotalTestContents  int     `json:"totalTestContents"`
	TestedCount        int     `json:"testedCount"`
	UntestedCount      int     `json:"untestedCount"`
	OKCount            int     `json:"okCount"`
	NGCount            int     `json:"ngCount"`
	NotApplicableCount int     `json:"notApplicableCount"`
	PassRate           float64 `json:"passRate"`
	Progress           float64 `json:"progress"`
}

// CaseReport is one test case with its contents and current results.
type CaseReport struct {
	Case     model.TestCase      `json:"testCase"`
	Contents []model.TestContent `json:"contents"`
	Results  []model.TestResult  `json:"results"`
}

// Report is the full report payload for one group.
type Report struct {
	Group      *model.TestGroup `json:"testGroup"`
	Statistics Statistics       `json:"statistics"`
	TestCases  []CaseReport     `json:"testCases"`
}

// Build assembles a report from the group's rows.  The denominator for
// both rates is the total content count, so untested contents drag the
// pass rate down rather than being ignored.
func Build(group *model.TestGroup, cases []model.TestCase, contents []model.TestContent, results []model.TestResult) *Report {
	stats := Statistics{
		TotalTestCases:    len(cases),
		TotalTestContents: len(contents),
		TestedCount:       len(results),
		UntestedCount:     len(contents) - len(results),
	}
	for _, r := range results {
		switch r.Judgment {
		case model.JudgmentOK:
			stats.OKCount++
		case model.JudgmentNG:
			stats.NGCount++
		case model.JudgmentExcluded:
			stats.NotApplicableCount++
		}
	}
	stats.PassRate = rate(stats.OKCount, stats.TotalTestContents)
	stats.Progress = rate(stats.TestedCount, stats.TotalTestContents)

	contentsByTID := make(map[string][]model.TestContent)
	for _, c := range contents {
		contentsByTID[c.TID] = append(contentsByTID[c.TID], c)
	}
	resultsByTID := make(map[string][]model.TestResult)
	for _, r := range results {
		resultsByTID[r.TID] = append(resultsByTID[r.TID], r)
	}

	caseReports := make([]CaseReport, 0, len(cases))
	for _, tc := range cases {
		cr := CaseReport{Case: tc, Contents: contentsByTID[tc.TID], Results: resultsByTID[tc.TID]}
		if cr.Contents == nil {
			cr.Contents = []model.TestContent{}
		}
		if cr.Results == nil {
			cr.Results = []model.TestResult{}
		}
		caseReports = append(caseReports, cr)
	}

	return &Report{Group: group, Statistics: stats, TestCases: caseReports}
}

// rate returns n/total as a percentage rounded to one decimal, 0 when
// total is zero.
func rate(n, total int) float64 {
	if total == 0 {
		return 0
	}
	return math.Round(float64(n)/float64(total)*1000) / 10
}
