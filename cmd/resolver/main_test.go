package main

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"go.uber.org/zap"

	"codegraph/internal/messages"
	"codegraph/internal/queue"
	"codegraph/internal/resolver"
)

func analyzerResultBody(t *testing.T, filePath string) []byte {
	t.Helper()
	result := messages.AnalyzerResult{
		FilePath: filePath,
		Language: "python",
		Status:   messages.StatusOK,
		NodesUpserted: []messages.NodeStub{
			{GID: filePath + ":file", CanonicalID: filePath, Name: filePath, FilePath: filePath, Language: "python", Labels: []string{"File"}},
		},
	}
	body, err := json.Marshal(result)
	if err != nil {
		t.Fatalf("marshal fixture: %v", err)
	}
	return body
}

func TestBatcher_FlushesOnMaxBatch(t *testing.T) {
	q := queue.NewMemoryQueue(16)
	b := newBatcher(q, zap.NewNop(), resolver.New(), time.Hour, 2)

	ctx := context.Background()
	acked := 0
	for i := 0; i < 2; i++ {
		d := queue.Delivery{
			Body: analyzerResultBody(t, "a.py"),
			Ack:  func() error { acked++; return nil },
			Nack: func(bool) error { return nil },
		}
		b.add(ctx, d)
	}

	if acked != 2 {
		t.Fatalf("expected both deliveries acked after hitting maxBatch, got %d", acked)
	}
	if n := q.Len(queue.IngestQueue); n != 1 {
		t.Fatalf("expected exactly one published delta, got %d", n)
	}
}

func TestBatcher_FlushesOnTimer(t *testing.T) {
	q := queue.NewMemoryQueue(16)
	b := newBatcher(q, zap.NewNop(), resolver.New(), 20*time.Millisecond, 100)

	ctx := context.Background()
	ackCh := make(chan struct{}, 1)
	d := queue.Delivery{
		Body: analyzerResultBody(t, "b.py"),
		Ack:  func() error { ackCh <- struct{}{}; return nil },
		Nack: func(bool) error { return nil },
	}
	b.add(ctx, d)

	select {
	case <-ackCh:
	case <-time.After(time.Second):
		t.Fatal("expected timer-driven flush to ack the pending delivery")
	}
	if n := q.Len(queue.IngestQueue); n != 1 {
		t.Fatalf("expected exactly one published delta, got %d", n)
	}
}

func TestBatcher_MalformedMessageNackedWithoutRequeue(t *testing.T) {
	q := queue.NewMemoryQueue(16)
	b := newBatcher(q, zap.NewNop(), resolver.New(), time.Hour, 10)

	ctx := context.Background()
	var requeued *bool
	d := queue.Delivery{
		Body: []byte("not json"),
		Ack:  func() error { t.Fatal("ack should not be called for malformed message"); return nil },
		Nack: func(requeue bool) error { requeued = &requeue; return nil },
	}
	b.add(ctx, d)

	if requeued == nil {
		t.Fatal("expected Nack to be called")
	}
	if *requeued {
		t.Fatal("expected malformed message to be nacked without requeue")
	}
}
