// Package snapshot stores precomputed usage summaries in redis.
//
// The reporter computes the summary for each configured window on a cron
// schedule and saves it under seatlens:summary:{days} with a TTL. The API
// serves those snapshots read-only, so dashboards polling the latest numbers
// never trigger a full directory walk.
//
//	client, err := snapshot.Connect(ctx, cfg.Snapshot.RedisURL)
//	store := snapshot.NewStore(client, cfg.Snapshot.TTL, metrics)
//	pub := snapshot.NewPublisher(analyticsService, store, logger, metrics)
//	err = pub.PublishAll(ctx, []int{7, 30, 90})
package snapshot
