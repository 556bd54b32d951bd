// Package dispatch delivers notification events off the primary loop.
//
// The dispatcher owns a bounded queue drained by a single worker. Dispatch never
// blocks: when the queue is full the event is dropped and counted. The worker
// routes alarm events to the push notifier, escalations to the messaging
// notifier after a bounded location lookup, and resolved episodes to the
// journal. Every handled event is reported back as a Delivery when a results
// channel is configured.
package dispatch
