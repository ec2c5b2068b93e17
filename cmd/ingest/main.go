// Command ingest runs the ingestion worker (C6): it applies GraphDelta
// batches from the resolver to Neo4j and periodically drains pending
// relationships. Grounded on
// original_source/services/ingestion_worker/main.py's service loop.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"codegraph/internal/config"
	"codegraph/internal/graph"
	"codegraph/internal/ingest"
	"codegraph/internal/logging"
	"codegraph/internal/queue"
	"codegraph/internal/queue/amqp"
)

var verbose bool

func main() {
	root := &cobra.Command{
		Use:   "ingest",
		Short: "Apply resolved graph deltas to the graph store",
		RunE:  run,
	}
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, args []string) error {
	log, err := logging.New("ingest", verbose)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(2)
	}
	defer log.Sync()

	cfg, err := config.LoadIngest()
	if err != nil {
		log.Sugar().Fatalf("configuration error: %v", err)
		os.Exit(2)
	}

	g, err := graph.Connect(graph.Config{URI: cfg.Graph.URI, User: cfg.Graph.User, Password: cfg.Graph.Password})
	if err != nil {
		log.Sugar().Fatalf("failed to connect to graph store: %v", err)
		os.Exit(2)
	}
	defer g.Close(context.Background())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := g.EnsureIndexes(ctx); err != nil {
		log.Sugar().Fatalf("failed to ensure indexes: %v", err)
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

	scheduler := ingest.NewScheduler(g, log)
	if err := scheduler.Start(ctx, cfg.ResolutionInterval); err != nil {
		log.Sugar().Fatalf("failed to start pending-resolution scheduler: %v", err)
		os.Exit(2)
	}

	worker := ingest.New(g, log)

	err = q.Consume(ctx, queue.IngestQueue, cfg.Prefetch, func(d queue.Delivery) {
		worker.HandleDelta(ctx, d)
	})
	if err != nil {
		log.Error("ingestion worker exited with error", zap.Error(err))
		return err
	}
	log.Info("ingestion worker shut down cleanly")
	return nil
}
