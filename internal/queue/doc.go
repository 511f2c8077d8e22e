// Package queue implements the queue service: pool lifecycle, the
// submit/query/stats surface consumed by the API layer, and the
// per-type worker loops that claim tasks, invoke processors under a
// deadline, and record terminal outcomes.
//
// # Lifecycle
//
// Stopped -> Starting -> Running -> Stopping -> Stopped. Start spawns
// workersPerType workers for every registered task type plus two
// background loops: a lease reaper (requeues claims that expired
// without a terminal status) and a status sweeper (purges records past
// their TTL). Stop broadcasts cancellation and blocks until every
// worker has exited; it is idempotent.
//
// # Timeout policy
//
// A processor call runs under a context deadline. When the deadline
// fires the task is marked failed and the invocation goroutine is
// abandoned, not forcibly aborted: a processor that ignores its context
// may continue to run and produce side effects after the task is
// already recorded as failed. Callers must treat the deadline as a
// bound on status visibility, not on processor side effects.
package queue
