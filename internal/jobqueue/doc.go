// Package jobqueue submits jobs to the remote processing backend and waits
// for them to reach a terminal state.
//
// A Client enqueues typed Params on a named queue and blocks in Wait until
// the job completes or fails, forwarding progress labels to a status sink
// as they change. A failed job is reported through Job.State with a nil
// Result rather than as an error, so callers decide whether a missing result
// is fatal. The HTTP driver lives here; the AMQP driver is in the rabbitmq
// subpackage.
package jobqueue
