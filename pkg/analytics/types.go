package analytics

import "time"

// TrackedApp describes an application reported by the usage feed
type TrackedApp struct {
	// Name is the display name used in analytics output
	Name string
	// FeedField is the JSON field carrying the app's last activity date
	FeedField string
}

// TrackedApps lists the applications in the order they appear in analytics output
var TrackedApps = []TrackedApp{
	{Name: "Copilot Chat", FeedField: "copilotChatLastActivityDate"},
	{Name: "Microsoft Teams", FeedField: "microsoftTeamsCopilotLastActivityDate"},
	{Name: "Word", FeedField: "wordCopilotLastActivityDate"},
	{Name: "Excel", FeedField: "excelCopilotLastActivityDate"},
	{Name: "PowerPoint", FeedField: "powerPointCopilotLastActivityDate"},
	{Name: "Outlook", FeedField: "outlookCopilotLastActivityDate"},
	{Name: "OneNote", FeedField: "oneNoteCopilotLastActivityDate"},
	{Name: "Loop", FeedField: "loopCopilotLastActivityDate"},
}

// UsageRow is one normalized record from the usage feed
type UsageRow struct {
	UserDisplayName                       string     `json:"userDisplayName"`
	UserPrincipalName                     string     `json:"userPrincipalName"`
	UserDepartment                        *string    `json:"userDepartment,omitempty"`
	LastActivityDate                      *time.Time `json:"lastActivityDate,omitempty"`
	CopilotChatLastActivityDate           *time.Time `json:"copilotChatLastActivityDate,omitempty"`
	MicrosoftTeamsCopilotLastActivityDate *time.Time `json:"microsoftTeamsCopilotLastActivityDate,omitempty"`
	WordCopilotLastActivityDate           *time.Time `json:"wordCopilotLastActivityDate,omitempty"`
	ExcelCopilotLastActivityDate          *time.Time `json:"excelCopilotLastActivityDate,omitempty"`
	PowerPointCopilotLastActivityDate     *time.Time `json:"powerPointCopilotLastActivityDate,omitempty"`
	OutlookCopilotLastActivityDate        *time.Time `json:"outlookCopilotLastActivityDate,omitempty"`
	OneNoteCopilotLastActivityDate        *time.Time `json:"oneNoteCopilotLastActivityDate,omitempty"`
	LoopCopilotLastActivityDate           *time.Time `json:"loopCopilotLastActivityDate,omitempty"`
}

// AppLastActivity returns the per-app last activity dates in TrackedApps order
func (r *UsageRow) AppLastActivity() []*time.Time {
	fields := r.appFields()
	dates := make([]*time.Time, len(fields))
	for i, field := range fields {
		dates[i] = *field
	}
	return dates
}

// appFields returns pointers to the per-app dates in TrackedApps order
func (r *UsageRow) appFields() []**time.Time {
	return []**time.Time{
		&r.CopilotChatLastActivityDate,
		&r.MicrosoftTeamsCopilotLastActivityDate,
		&r.WordCopilotLastActivityDate,
		&r.ExcelCopilotLastActivityDate,
		&r.PowerPointCopilotLastActivityDate,
		&r.OutlookCopilotLastActivityDate,
		&r.OneNoteCopilotLastActivityDate,
		&r.LoopCopilotLastActivityDate,
	}
}

// LicensedUser is a directory user holding the tracked license
type LicensedUser struct {
	ID                string `json:"id"`
	UserPrincipalName string `json:"userPrincipalName"`
}

// ReconciledUsage is a feed row joined to its licensed directory user
type ReconciledUsage struct {
	UserID string `json:"userId"`
	UsageRow
}

// AppUsage is the derived usage of one tracked application
type AppUsage struct {
	ApplicationName  string     `json:"applicationName"`
	LastActivityDate *time.Time `json:"lastActivityDate,omitempty"`
	ActionsCount     int        `json:"actionsCount"`
	IsActive         bool       `json:"isActive"`
	DaysSinceLastUse *int       `json:"daysSinceLastUse,omitempty"`
}

// TimeRangeUsage splits a user's actions across reporting windows
type TimeRangeUsage struct {
	Last7Days     int `json:"last7Days"`
	Last30Days    int `json:"last30Days"`
	Last90Days    int `json:"last90Days"`
	CurrentMonth  int `json:"currentMonth"`
	PreviousMonth int `json:"previousMonth"`
}

// Trend directions
const (
	TrendIncreasing = "increasing"
	TrendDecreasing = "decreasing"
	TrendStable     = "stable"
)

// ProductivityMetrics holds 0-100 scores derived from a user's usage
type ProductivityMetrics struct {
	EngagementScore  float64 `json:"engagementScore"`
	DiversityScore   float64 `json:"diversityScore"`
	ConsistencyScore float64 `json:"consistencyScore"`
	TrendDirection   string  `json:"trendDirection"`
}

// UserAnalytics is the per-user analytics record
type UserAnalytics struct {
	UserID                  string              `json:"userId"`
	UserDisplayName         string              `json:"userDisplayName"`
	UserPrincipalName       string              `json:"userPrincipalName,omitempty"`
	Department              *string             `json:"department,omitempty"`
	TotalCopilotActions     int                 `json:"totalCopilotActions"`
	CopilotApplicationUsage []AppUsage          `json:"copilotApplicationUsage"`
	UsageByTimeRange        TimeRangeUsage      `json:"usageByTimeRange"`
	ProductivityMetrics     ProductivityMetrics `json:"productivityMetrics"`
	LastActivityDate        *time.Time          `json:"lastActivityDate,omitempty"`
	IsActiveUser            bool                `json:"isActiveUser"`
	DaysInactive            *int                `json:"daysInactive,omitempty"`
}

// DateRange is the reporting window of a summary
type DateRange struct {
	StartDate time.Time `json:"startDate"`
	EndDate   time.Time `json:"endDate"`
	Days      int       `json:"days"`
}

// ApplicationUsageStats aggregates one application across all users
type ApplicationUsageStats struct {
	ApplicationName       string  `json:"applicationName"`
	TotalActions          int     `json:"totalActions"`
	UniqueUsers           int     `json:"uniqueUsers"`
	AverageActionsPerUser float64 `json:"averageActionsPerUser"`
	AdoptionRate          float64 `json:"adoptionRate"`
}

// DepartmentUsageStats aggregates the users of one department
type DepartmentUsageStats struct {
	DepartmentName        string  `json:"departmentName"`
	TotalUsers            int     `json:"totalUsers"`
	ActiveUsers           int     `json:"activeUsers"`
	AdoptionRate          float64 `json:"adoptionRate"`
	TotalActions          int     `json:"totalActions"`
	AverageActionsPerUser float64 `json:"averageActionsPerUser"`
}

// UsageTrends holds organization-level trend figures.
// Growth and peak day are provisional until historical tracking exists.
type UsageTrends struct {
	WeekOverWeekGrowth   float64 `json:"weekOverWeekGrowth"`
	MonthOverMonthGrowth float64 `json:"monthOverMonthGrowth"`
	TrendDirection       string  `json:"trendDirection"`
	PeakUsageDay         string  `json:"peakUsageDay,omitempty"`
	AverageDailyActions  float64 `json:"averageDailyActions"`
}

// SummaryReport is the organization-wide usage summary
type SummaryReport struct {
	ReportGeneratedAt     time.Time               `json:"reportGeneratedAt"`
	DateRange             DateRange               `json:"dateRange"`
	TotalUsers            int                     `json:"totalUsers"`
	ActiveUsers           int                     `json:"activeUsers"`
	InactiveUsers         int                     `json:"inactiveUsers"`
	TotalCopilotActions   int                     `json:"totalCopilotActions"`
	AverageActionsPerUser float64                 `json:"averageActionsPerUser"`
	MostUsedApplications  []ApplicationUsageStats `json:"mostUsedApplications"`
	DepartmentBreakdown   []DepartmentUsageStats  `json:"departmentBreakdown"`
	UsageTrends           UsageTrends             `json:"usageTrends"`
}
