// Package scheduler runs the three periodic loops that move display and
// enrolment campaigns from schedules to terminals.
//
//   - Expander: turns due schedules into pending jobs, one per
//     (schedule, device) pair, with dedup rules that bound job creation.
//   - Dispatcher: delivers pending jobs to connected terminals and records
//     the outcome. An offline device is not a failure; its jobs wait.
//   - Requeuer: returns rested failed jobs to pending until the retry
//     budget is spent, after which they are dead-letters.
//
// The jobs table is the only coordination point between the loops. Each
// tick re-reads state from SQLite, so a job created mid-cycle is picked up
// by the very next dispatcher tick. Repository errors abort the current
// tick only; nothing here is fatal to the process.
//
// Tickers are driven through the Clock interface so tests advance time
// deterministically.
package scheduler
