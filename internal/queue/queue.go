// Package queue abstracts the durable work-queue C7 requires: named
// queues, per-message ack/nack, and bounded prefetch. Two implementations
// are provided — an in-memory queue for tests and single-process runs, and
// a RabbitMQ-backed queue (internal/queue/amqp) for production.
package queue

import "context"

// Delivery is one message handed to a consumer. The consumer must call
// exactly one of Ack or Nack before returning.
type Delivery struct {
	Body []byte
	Ack  func() error
	Nack func(requeue bool) error
}

// Queue is a named, durable work queue with per-consumer prefetch.
type Queue interface {
	// Publish persists body onto the named queue. Delivery is at-least-once.
	Publish(ctx context.Context, queueName string, body []byte) error

	// Consume starts delivering messages from queueName to handler, honoring
	// prefetch in-flight messages at a time. It blocks until ctx is
	// cancelled or an unrecoverable connection error occurs.
	Consume(ctx context.Context, queueName string, prefetch int, handler func(Delivery)) error

	// Close releases the underlying connection.
	Close() error
}

// Well-known queue names, per spec.md §6.
const (
	ResultsQueue     = "jobs.results.analysis"
	ScanTriggerQueue = "jobs.scan.trigger"
	IngestQueue      = "jobs.ingest.delta"
)

// AnalysisQueueName returns the per-language analysis queue name for lang,
// e.g. "jobs.analysis.python".
func AnalysisQueueName(lang string) string {
	return "jobs.analysis." + lang
}
