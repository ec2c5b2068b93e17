package ingest

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"codegraph/internal/graph"
)

// pendingBatchSize is RELATIONSHIP_BATCH_SIZE from spec.md §4.6.
const pendingBatchSize = 100

// Scheduler runs the periodic PendingRelationship drain on a fixed
// interval, matching spec.md §4.6's "max_instances = 1" requirement: a
// running flag skips a tick entirely rather than letting two drains
// overlap, since robfig/cron/v3 has no built-in single-instance guard.
type Scheduler struct {
	cron    *cron.Cron
	g       *graph.Client
	log     *zap.Logger
	running int32
}

// NewScheduler builds a scheduler; call Start with the drain interval.
func NewScheduler(g *graph.Client, log *zap.Logger) *Scheduler {
	return &Scheduler{
		cron: cron.New(cron.WithSeconds()),
		g:    g,
		log:  log.With(zap.String("component", "pending-drain")),
	}
}

// intervalSpec converts a duration into a "@every" cron spec, the idiom
// robfig/cron/v3 itself documents for fixed-interval jobs.
func intervalSpec(interval time.Duration) string {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	return "@every " + interval.String()
}

// Start schedules the drain job and begins running it in the background.
func (s *Scheduler) Start(ctx context.Context, interval time.Duration) error {
	_, err := s.cron.AddFunc(intervalSpec(interval), func() {
		s.drainOnce(ctx)
	})
	if err != nil {
		return err
	}
	s.cron.Start()
	go func() {
		<-ctx.Done()
		s.cron.Stop()
	}()
	return nil
}

// drainOnce runs ResolvePendings in batches of pendingBatchSize until a
// batch resolves fewer than a full batch, per spec.md §4.6 ("loop until a
// batch is short").
func (s *Scheduler) drainOnce(ctx context.Context) {
	if !atomic.CompareAndSwapInt32(&s.running, 0, 1) {
		s.log.Debug("drain already running, skipping this tick")
		return
	}
	defer atomic.StoreInt32(&s.running, 0)

	total := 0
	for {
		resolved, err := s.g.ResolvePendings(ctx, pendingBatchSize)
		if err != nil {
			s.log.Error("pending resolution pass failed", zap.Error(err))
			return
		}
		total += resolved
		if resolved < pendingBatchSize {
			break
		}
	}
	if total > 0 {
		s.log.Info("drained pending relationships", zap.Int("resolved", total))
	}
}
