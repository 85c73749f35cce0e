// Package broadcast provides a single-producer, multi-consumer fan-out
// primitive with non-blocking delivery semantics.
//
// Each subscription owns a bounded queue. When a consumer cannot keep up the
// oldest queued value is discarded in favour of the newest, so a stalled
// consumer can never grow an unbounded backlog or stall the producer.
// Cancelling a subscription deregisters it; broadcasting with zero
// subscribers is a no-op.
package broadcast
