// Package heartbeat drives all recurring work in the daemon.
//
// Components:
//   - Job: the contract every recurring task implements (Name, Interval, Run)
//   - Gater: optional extra gating for session-aware jobs
//   - Registry: registered jobs with per-job cadence bookkeeping
//   - Scheduler: the fixed-period driver loop
//
// Scheduling model: a single driver goroutine ticks at a fixed period. Each
// tick asks the Registry which jobs are due and runs them sequentially in
// registration order. A job is due when it has never run or when a full
// interval has elapsed since its last attempt; the Registry atomically claims
// due jobs so a job never has two in-flight executions. Bookkeeping advances
// exactly once per attempt whether the run succeeded, failed, panicked, or
// timed out, so a failing job retries only after its full interval.
//
// There is no queueing of missed ticks: a delayed scheduler simply finds the
// job due on its next tick. Cadence is "at least every interval", not
// "exactly every interval".
package heartbeat
