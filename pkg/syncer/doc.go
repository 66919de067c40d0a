// Package syncer keeps cached catalog snapshots warm.
//
// A cron schedule triggers runs; each run executes the configured jobs
// concurrently with a bounded errgroup. Every job is an independent
// aggregation made with Refresh set, so a successful run replaces the
// snapshot the API serves. Job failures are reported per job and never
// cancel sibling jobs.
package syncer
