// Package ingest is the ingestion worker (C6): it applies GraphDelta
// batches from the resolver to the graph store (internal/graph) and runs
// the periodic PendingRelationship drain, per spec.md §4.6. Grounded on
// original_source/services/ingestion_worker/main.py's consume-and-apply
// loop and robfig/cron/v3's scheduler (present across the retrieved
// pack's manifests, e.g. ternarybob-quaero, yungbote-neurobridge-backend)
// for the periodic resolution interval.
package ingest

import (
	"context"
	"encoding/json"

	"go.uber.org/zap"

	"codegraph/internal/graph"
	"codegraph/internal/messages"
	"codegraph/internal/queue"
)

// Worker consumes GraphDelta messages from the ingestion queue and
// applies them to the graph store.
type Worker struct {
	g   *graph.Client
	log *zap.Logger
}

// New constructs a Worker.
func New(g *graph.Client, log *zap.Logger) *Worker {
	return &Worker{g: g, log: log}
}

// HandleDelta parses and applies one GraphDelta message, per spec.md
// §4.6's "message processing" step. A malformed message is nacked
// without requeue; any failure applying the delta to the store is nacked
// with requeue so it can be retried once the transient condition clears.
func (w *Worker) HandleDelta(ctx context.Context, d queue.Delivery) {
	var delta messages.GraphDelta
	if err := json.Unmarshal(d.Body, &delta); err != nil {
		w.log.Error("malformed graph delta, dropping", zap.Error(err))
		_ = d.Nack(false)
		return
	}

	if err := w.g.ApplyDelta(ctx, delta); err != nil {
		w.log.Error("failed to apply graph delta", zap.Error(err))
		_ = d.Nack(true)
		return
	}

	w.log.Info("applied graph delta",
		zap.Int("nodes", len(delta.Nodes)),
		zap.Int("relationships", len(delta.Relationships)),
		zap.Int("nodes_deleted", len(delta.NodesDeleted)),
		zap.Int("relationships_deleted", len(delta.RelationshipsDeleted)),
	)
	_ = d.Ack()
}
