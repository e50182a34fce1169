// Package jobs runs the marketplace's time-based work on cron schedules.
//
// # Jobs
//
//   - auction_finalizer: ends auctions past ends_at and sends result emails
//   - subscription_expiry: marks lapsed buyer subscriptions expired
//   - view_flush: moves buffered listing views from Redis into SurrealDB
//   - token_cleanup: deletes expired refresh tokens
//
// # Scheduler
//
// Jobs are registered on a Scheduler, which wraps robfig/cron:
//
//	sched := jobs.NewScheduler(0)
//	if err := jobs.Register(sched, cfg.Jobs, jobs.Services{...}); err != nil {
//	    return err
//	}
//	sched.Start()
//	defer sched.Stop(ctx)
//
// A job never overlaps with itself. Each run is bounded by the scheduler
// timeout and recorded in the job metrics. Failures are logged and the job
// runs again on its next tick.
package jobs
