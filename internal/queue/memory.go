package queue

import (
	"context"
	"sync"
)

// MemoryQueue is an in-process Queue implementation backed by buffered Go
// channels. It satisfies the same ack/nack contract as the AMQP
// implementation so consumers and tests never need to know which one they
// are talking to. Nacked-with-requeue messages are pushed back to the tail
// of the channel; nacked-without-requeue messages are dropped.
type MemoryQueue struct {
	mu      sync.Mutex
	closed  bool
	queues  map[string]chan []byte
	bufSize int
}

// NewMemoryQueue constructs an empty in-memory queue. bufSize bounds how
// many undelivered messages a single named queue holds before Publish
// blocks; 1024 is a sane default for tests.
func NewMemoryQueue(bufSize int) *MemoryQueue {
	if bufSize <= 0 {
		bufSize = 1024
	}
	return &MemoryQueue{queues: make(map[string]chan []byte), bufSize: bufSize}
}

func (q *MemoryQueue) queueFor(name string) chan []byte {
	q.mu.Lock()
	defer q.mu.Unlock()
	ch, ok := q.queues[name]
	if !ok {
		ch = make(chan []byte, q.bufSize)
		q.queues[name] = ch
	}
	return ch
}

func (q *MemoryQueue) Publish(ctx context.Context, queueName string, body []byte) error {
	ch := q.queueFor(queueName)
	select {
	case ch <- body:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (q *MemoryQueue) Consume(ctx context.Context, queueName string, prefetch int, handler func(Delivery)) error {
	if prefetch <= 0 {
		prefetch = 1
	}
	ch := q.queueFor(queueName)
	sem := make(chan struct{}, prefetch)

	for {
		select {
		case <-ctx.Done():
			return nil
		case body, ok := <-ch:
			if !ok {
				return nil
			}
			sem <- struct{}{}
			delivery := Delivery{
				Body: body,
				Ack: func() error {
					<-sem
					return nil
				},
				Nack: func(requeue bool) error {
					defer func() { <-sem }()
					if requeue {
						select {
						case ch <- body:
						default:
						}
					}
					return nil
				},
			}
			go handler(delivery)
		}
	}
}

func (q *MemoryQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.closed = true
	return nil
}

// Len returns the number of undelivered messages on a named queue. Test-only
// introspection hook.
func (q *MemoryQueue) Len(queueName string) int {
	return len(q.queueFor(queueName))
}
