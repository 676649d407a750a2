package analytics

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func strPtr(s string) *string { return &s }

func userWithApps(id string, dept *string, active bool, apps ...AppUsage) UserAnalytics {
	u := UserAnalytics{UserID: id, Department: dept, IsActiveUser: active, CopilotApplicationUsage: apps}
	for _, a := range apps {
		u.TotalCopilotActions += a.ActionsCount
	}
	return u
}

func TestSummarize_Empty(t *testing.T) {
	report := Summarize(nil, 30, testNow)

	assert.Equal(t, 0, report.TotalUsers)
	assert.Equal(t, 0.0, report.AverageActionsPerUser)
	assert.Empty(t, report.MostUsedApplications)
	assert.Empty(t, report.DepartmentBreakdown)
	assert.Equal(t, testNow, report.ReportGeneratedAt)
	assert.Equal(t, testNow.AddDate(0, 0, -30), report.DateRange.StartDate)
	assert.Equal(t, 30, report.DateRange.Days)
}

func TestSummarize_Totals(t *testing.T) {
	users := []UserAnalytics{
		userWithApps("1", strPtr("Sales"), true,
			AppUsage{ApplicationName: "Word", ActionsCount: 40, IsActive: true},
			AppUsage{ApplicationName: "Excel", ActionsCount: 5}),
		userWithApps("2", nil, false,
			AppUsage{ApplicationName: "Word", ActionsCount: 0},
			AppUsage{ApplicationName: "Excel", ActionsCount: 0}),
		userWithApps("3", strPtr(""), true,
			AppUsage{ApplicationName: "Word", ActionsCount: 20, IsActive: true},
			AppUsage{ApplicationName: "Excel", ActionsCount: 45, IsActive: true}),
	}

	report := Summarize(users, 10, testNow)

	assert.Equal(t, 3, report.TotalUsers)
	assert.Equal(t, 2, report.ActiveUsers)
	assert.Equal(t, 1, report.InactiveUsers)
	assert.Equal(t, 110, report.TotalCopilotActions)
	assert.InDelta(t, 110.0/3, report.AverageActionsPerUser, 1e-9)

	require.Len(t, report.MostUsedApplications, 2)
	word, excel := report.MostUsedApplications[0], report.MostUsedApplications[1]
	assert.Equal(t, "Word", word.ApplicationName)
	assert.Equal(t, 60, word.TotalActions)
	assert.Equal(t, 2, word.UniqueUsers)
	assert.Equal(t, 30.0, word.AverageActionsPerUser)
	assert.InDelta(t, 66.666, word.AdoptionRate, 0.001)
	assert.Equal(t, "Excel", excel.ApplicationName)
	assert.Equal(t, 50, excel.TotalActions)
	assert.Equal(t, 1, excel.UniqueUsers)

	assert.Equal(t, 5.2, report.UsageTrends.WeekOverWeekGrowth)
	assert.Equal(t, 12.8, report.UsageTrends.MonthOverMonthGrowth)
	assert.Equal(t, TrendIncreasing, report.UsageTrends.TrendDirection)
	assert.Equal(t, "Wednesday", report.UsageTrends.PeakUsageDay)
	assert.Equal(t, 11.0, report.UsageTrends.AverageDailyActions)
}

func TestSummarize_UnknownDepartmentBucket(t *testing.T) {
	users := []UserAnalytics{
		userWithApps("1", nil, true, AppUsage{ActionsCount: 1}),
		userWithApps("2", strPtr(""), false),
		userWithApps("3", strPtr("Sales"), true, AppUsage{ActionsCount: 30}),
		userWithApps("4", strPtr("Sales"), false, AppUsage{ActionsCount: 10}),
		userWithApps("5", strPtr("Legal"), false),
	}

	report := Summarize(users, 30, testNow)

	byName := map[string]DepartmentUsageStats{}
	sum := 0
	for _, d := range report.DepartmentBreakdown {
		byName[d.DepartmentName] = d
		sum += d.TotalUsers
	}
	assert.Equal(t, report.TotalUsers, sum)
	require.Contains(t, byName, UnknownDepartment)
	assert.Equal(t, 2, byName[UnknownDepartment].TotalUsers)
	assert.Equal(t, 50.0, byName[UnknownDepartment].AdoptionRate)

	sales := byName["Sales"]
	assert.Equal(t, 40, sales.TotalActions)
	assert.Equal(t, 20.0, sales.AverageActionsPerUser)
	assert.Equal(t, 50.0, sales.AdoptionRate)

	assert.Equal(t, "Sales", report.DepartmentBreakdown[0].DepartmentName)
	assert.Equal(t, UnknownDepartment, report.DepartmentBreakdown[1].DepartmentName)
	assert.Equal(t, "Legal", report.DepartmentBreakdown[2].DepartmentName)
}

func TestUsageTrends_NonPositiveDays(t *testing.T) {
	assert.Equal(t, 0.0, usageTrends(100, 0).AverageDailyActions)
}
