package analytics

import "time"

// Reconcile joins feed rows to licensed users by principal name.
// Rows without a licensed user are dropped; feed order is preserved and
// duplicate rows are not collapsed.
func Reconcile(rows []UsageRow, index *LicensedUserIndex) []ReconciledUsage {
	out := make([]ReconciledUsage, 0, len(rows))
	for _, row := range rows {
		user, ok := index.Lookup(row.UserPrincipalName)
		if !ok {
			continue
		}
		out = append(out, ReconciledUsage{
			UserID:   user.ID,
			UsageRow: row,
		})
	}
	return out
}

// FilterInactive keeps the rows with no recorded activity and the rows whose
// last activity is at least days old. A nil days returns rs unchanged.
func FilterInactive(rs []ReconciledUsage, days *int, now time.Time) []ReconciledUsage {
	if days == nil {
		return rs
	}
	threshold := float64(*days)
	out := make([]ReconciledUsage, 0, len(rs))
	for _, r := range rs {
		if r.LastActivityDate == nil || elapsedDays(*r.LastActivityDate, now) >= threshold {
			out = append(out, r)
		}
	}
	return out
}

// elapsedDays is the fractional number of days from t to now
func elapsedDays(t, now time.Time) float64 {
	return now.Sub(t).Hours() / 24
}
