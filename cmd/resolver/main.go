// Command resolver runs the orchestrator/resolver (C5): it consumes
// AnalyzerResult messages from the shared results queue, accumulates them
// into a short window so pass 3's cross-language heuristics see as many
// of a scan's nodes as possible at once, runs the four-pass resolution
// algorithm, and publishes the resulting GraphDelta to the ingestion
// queue. Grounded on
// original_source/api_gateway/orchestration_logic/resolution.py's
// batch-oriented resolve_cross_language_heuristics, which likewise
// operates over a pre-assembled set of final nodes rather than streaming
// one at a time.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"codegraph/internal/config"
	"codegraph/internal/logging"
	"codegraph/internal/messages"
	"codegraph/internal/queue"
	"codegraph/internal/queue/amqp"
	"codegraph/internal/resolver"
)

var verbose bool

// defaultMaxBatch bounds how many results accumulate before a flush fires
// early, so a burst from a full scan doesn't wait the entire window.
const defaultMaxBatch = 50

func main() {
	root := &cobra.Command{
		Use:   "resolver",
		Short: "Resolve analyzer results into graph deltas for ingestion",
		RunE:  run,
	}
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, args []string) error {
	log, err := logging.New("resolver", verbose)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(2)
	}
	defer log.Sync()

	cfg, err := config.LoadResolver()
	if err != nil {
		log.Sugar().Fatalf("configuration error: %v", err)
		os.Exit(2)
	}

	q, err := amqp.Connect(amqp.Config{
		Host: cfg.Broker.Host, Port: cfg.Broker.Port,
		User: cfg.Broker.User, Password: cfg.Broker.Password,
	})
	if err != nil {
		log.Sugar().Fatalf("failed to connect to broker: %v", err)
		os.Exit(2)
	}
	defer q.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	window := cfg.ResolutionInterval
	if window <= 0 {
		window = 2 * time.Second
	}
	b := newBatcher(q, log, resolver.New(), window, defaultMaxBatch)
	defer b.flush(context.Background())

	err = q.Consume(ctx, queue.ResultsQueue, defaultMaxBatch, func(d queue.Delivery) {
		b.add(ctx, d)
	})
	if err != nil {
		log.Error("resolver exited with error", zap.Error(err))
		return err
	}
	log.Info("resolver shut down cleanly")
	return nil
}

type pendingItem struct {
	result messages.AnalyzerResult
	d      queue.Delivery
}

// batcher accumulates AnalyzerResult deliveries and flushes them as one
// resolver.Resolve call, either when maxBatch items have queued or when
// window has elapsed since the first item in the current batch arrived,
// whichever comes first.
type batcher struct {
	mu       sync.Mutex
	pending  []pendingItem
	timer    *time.Timer
	q        queue.Queue
	log      *zap.Logger
	resolver *resolver.Resolver
	window   time.Duration
	maxBatch int
}

func newBatcher(q queue.Queue, log *zap.Logger, r *resolver.Resolver, window time.Duration, maxBatch int) *batcher {
	return &batcher{q: q, log: log, resolver: r, window: window, maxBatch: maxBatch}
}

func (b *batcher) add(ctx context.Context, d queue.Delivery) {
	var result messages.AnalyzerResult
	if err := json.Unmarshal(d.Body, &result); err != nil {
		b.log.Error("malformed analyzer result, dropping", zap.Error(err))
		_ = d.Nack(false)
		return
	}

	b.mu.Lock()
	b.pending = append(b.pending, pendingItem{result: result, d: d})
	shouldFlush := len(b.pending) >= b.maxBatch
	if len(b.pending) == 1 {
		b.timer = time.AfterFunc(b.window, func() { b.flush(ctx) })
	}
	b.mu.Unlock()

	if shouldFlush {
		b.flush(ctx)
	}
}

func (b *batcher) flush(ctx context.Context) {
	b.mu.Lock()
	items := b.pending
	b.pending = nil
	if b.timer != nil {
		b.timer.Stop()
		b.timer = nil
	}
	b.mu.Unlock()

	if len(items) == 0 {
		return
	}

	results := make([]messages.AnalyzerResult, len(items))
	for i, it := range items {
		results[i] = it.result
	}

	delta := b.resolver.Resolve(results)
	body, err := json.Marshal(delta)
	if err != nil {
		b.log.Error("failed to marshal graph delta, requeueing batch", zap.Error(err))
		nackAll(items, true)
		return
	}
	if err := b.q.Publish(ctx, queue.IngestQueue, body); err != nil {
		b.log.Error("failed to publish graph delta, requeueing batch", zap.Error(err))
		nackAll(items, true)
		return
	}

	b.log.Info("resolved batch",
		zap.Int("results", len(items)),
		zap.Int("nodes", len(delta.Nodes)),
		zap.Int("relationships", len(delta.Relationships)),
	)
	for _, it := range items {
		_ = it.d.Ack()
	}
}

func nackAll(items []pendingItem, requeue bool) {
	for _, it := range items {
		_ = it.d.Nack(requeue)
	}
}
