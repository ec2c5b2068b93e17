package queue

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryQueue_PublishConsume(t *testing.T) {
	q := NewMemoryQueue(10)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	require.NoError(t, q.Publish(ctx, "q1", []byte("hello")))

	var mu sync.Mutex
	var got []byte
	done := make(chan struct{})

	go func() {
		_ = q.Consume(ctx, "q1", 1, func(d Delivery) {
			mu.Lock()
			got = d.Body
			mu.Unlock()
			_ = d.Ack()
			close(done)
		})
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for delivery")
	}

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []byte("hello"), got)
}

func TestMemoryQueue_NackRequeue(t *testing.T) {
	q := NewMemoryQueue(10)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	require.NoError(t, q.Publish(ctx, "q2", []byte("msg")))

	var attempts int
	var mu sync.Mutex
	done := make(chan struct{})

	go func() {
		_ = q.Consume(ctx, "q2", 1, func(d Delivery) {
			mu.Lock()
			attempts++
			n := attempts
			mu.Unlock()
			if n == 1 {
				_ = d.Nack(true)
				return
			}
			_ = d.Ack()
			close(done)
		})
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for redelivery")
	}

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 2, attempts)
}
