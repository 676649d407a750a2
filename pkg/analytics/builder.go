package analytics

import (
	"math"
	"time"
)

const (
	// appActiveWindowDays is the per-application freshness window. It does
	// not follow the caller's activity window.
	appActiveWindowDays = 30

	recencyBaseActions = 50
)

// BuildUserAnalytics derives the analytics record of one reconciled user for
// the activity window days, as seen at now.
func BuildUserAnalytics(r ReconciledUsage, days int, now time.Time) UserAnalytics {
	ua := UserAnalytics{
		UserID:            r.UserID,
		UserDisplayName:   r.UserDisplayName,
		UserPrincipalName: r.UserPrincipalName,
		Department:        r.UserDepartment,
		LastActivityDate:  r.LastActivityDate,
	}

	if inactive := DaysSince(r.LastActivityDate, now); inactive != nil {
		ua.DaysInactive = inactive
		ua.IsActiveUser = *inactive <= days
	}

	dates := r.AppLastActivity()
	ua.CopilotApplicationUsage = make([]AppUsage, len(TrackedApps))
	for i, app := range TrackedApps {
		usage := AppUsage{
			ApplicationName:  app.Name,
			LastActivityDate: dates[i],
			DaysSinceLastUse: DaysSince(dates[i], now),
		}
		if usage.DaysSinceLastUse != nil {
			usage.ActionsCount = ActionsFromRecency(*usage.DaysSinceLastUse)
			usage.IsActive = *usage.DaysSinceLastUse <= appActiveWindowDays
		}
		ua.TotalCopilotActions += usage.ActionsCount
		ua.CopilotApplicationUsage[i] = usage
	}

	ua.UsageByTimeRange = SplitTimeRanges(ua.TotalCopilotActions, ua.IsActiveUser)
	ua.ProductivityMetrics = ProductivityFor(ua)
	return ua
}

// DaysSince returns the whole days elapsed from t to now, rounded down.
// A nil t yields nil.
func DaysSince(t *time.Time, now time.Time) *int {
	if t == nil {
		return nil
	}
	d := int(math.Floor(elapsedDays(*t, now)))
	return &d
}

// ActionsFromRecency estimates an application's action count from the days
// since it was last used: max(1, 50 - days).
func ActionsFromRecency(daysSinceLastUse int) int {
	actions := recencyBaseActions - daysSinceLastUse
	if actions < 1 {
		return 1
	}
	return actions
}

// SplitTimeRanges allocates total across the reporting windows with fixed
// ratios. Inactive users get an empty split.
func SplitTimeRanges(total int, active bool) TimeRangeUsage {
	if !active {
		return TimeRangeUsage{}
	}
	return TimeRangeUsage{
		Last7Days:     int(float64(total) * 0.3),
		Last30Days:    int(float64(total) * 0.7),
		Last90Days:    total,
		CurrentMonth:  int(float64(total) * 0.5),
		PreviousMonth: int(float64(total) * 0.3),
	}
}

// ProductivityFor scores a user from its totals, app usage and time ranges
func ProductivityFor(ua UserAnalytics) ProductivityMetrics {
	var engagement, diversity, consistency float64

	if ua.TotalCopilotActions > 0 {
		engagement = math.Min(100, float64(ua.TotalCopilotActions)/10*100)
	}

	if total := len(ua.CopilotApplicationUsage); total > 0 {
		active := 0
		for _, app := range ua.CopilotApplicationUsage {
			if app.IsActive {
				active++
			}
		}
		diversity = float64(active) / float64(total) * 100
	}

	if ua.IsActiveUser {
		consistency = math.Min(100, float64(ua.UsageByTimeRange.Last7Days*10))
	}

	return ProductivityMetrics{
		EngagementScore:  roundScore(engagement),
		DiversityScore:   roundScore(diversity),
		ConsistencyScore: roundScore(consistency),
		TrendDirection:   trendDirection(ua.UsageByTimeRange),
	}
}

func trendDirection(tr TimeRangeUsage) string {
	current := float64(tr.CurrentMonth)
	previous := float64(tr.PreviousMonth)
	switch {
	case current > previous*1.1:
		return TrendIncreasing
	case current < previous*0.9:
		return TrendDecreasing
	default:
		return TrendStable
	}
}

// roundScore rounds to one decimal, halves to even
func roundScore(v float64) float64 {
	return math.RoundToEven(v*10) / 10
}
