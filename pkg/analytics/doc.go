// Package analytics computes Copilot usage analytics for licensed users.
//
// # Overview
//
// The package turns the directory's paginated usage-report feed into
// per-user analytics and organization-wide summaries. A query runs as a
// request-scoped pipeline:
//
//	FeedFetcher ──┐
//	              ├─> Reconcile ─> BuildUserAnalytics (per row) ─> Summarize
//	LicensedUsers ┘
//
// The licensed-user listing and the feed fetch run concurrently. Per-user
// analytics are built in parallel with a bounded worker count. Summaries are
// computed once every per-user record is materialized.
//
// # Heuristics
//
// The feed only reports a last-activity timestamp per application, so action
// counts, time-range buckets and trend figures are derived from recency:
//
//	actions      = max(1, 50 - daysSinceLastUse)   // 0 when never used
//	last7Days    = floor(total * 0.3)
//	last30Days   = floor(total * 0.7)
//	last90Days   = total
//	currentMonth = floor(total * 0.5)
//	previousMonth = floor(total * 0.3)
//
// Week/month growth and the peak usage day in UsageTrends are fixed values
// until a historical store exists.
//
// # Usage Example
//
//	svc := analytics.NewService(graph, fetcher, analytics.Config{
//		LicenseSKU:     cfg.Directory.LicenseSKU,
//		MaxConcurrency: 8,
//		FetchTimeout:   2 * time.Minute,
//	}, logger, metrics)
//
//	summary, err := svc.GetUsageSummary(ctx, 30)
//	if err != nil {
//		return err
//	}
//	fmt.Printf("%d of %d licensed users active\n", summary.Data.ActiveUsers, summary.Data.TotalUsers)
//	if summary.Partial {
//		log.Println("usage feed was truncated")
//	}
//
// # Related Packages
//
//   - pkg/directory: Graph client that lists licensed users and authenticates the feed
//   - pkg/snapshot: Scheduled summary snapshots
//   - pkg/api: HTTP endpoints over Service
package analytics
