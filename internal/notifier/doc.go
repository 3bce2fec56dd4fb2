// Package notifier delivers user-facing notifications (reschedule notices,
// summary digests) to a Sink supplied by the view layer.
//
// Delivery is asynchronous: a bounded queue feeds a small worker pool that
// rate limits, retries with backoff and suppresses duplicates within a
// window. Stop drains the queue.
package notifier
