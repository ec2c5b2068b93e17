// Command scanner runs the bulk scanner service (C3): it consumes the
// scan-trigger queue and, for each "full_scan" message, walks a root path
// and dispatches one analysis job per supported file. Grounded on
// original_source/services/scan_orchestrator.py's on_message/scan_and_dispatch.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"codegraph/internal/config"
	"codegraph/internal/graph"
	"codegraph/internal/logging"
	"codegraph/internal/messages"
	"codegraph/internal/queue"
	"codegraph/internal/queue/amqp"
	"codegraph/internal/scan"
)

var verbose bool

func main() {
	root := &cobra.Command{
		Use:   "scanner",
		Short: "Consume scan triggers and dispatch per-file analysis jobs",
		RunE:  run,
	}
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, args []string) error {
	log, err := logging.New("scanner", verbose)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(2)
	}
	defer log.Sync()

	cfg, err := config.LoadScanner()
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

	g, err := graph.Connect(graph.Config{URI: cfg.Graph.URI, User: cfg.Graph.User, Password: cfg.Graph.Password})
	if err != nil {
		log.Sugar().Fatalf("failed to connect to graph store: %v", err)
		os.Exit(2)
	}
	defer g.Close(context.Background())

	scanner := scan.New(q, log, cfg.IgnorePatterns, cfg.ExtensionMap, cfg.Workers, g)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err = q.Consume(ctx, queue.ScanTriggerQueue, 1, func(d queue.Delivery) {
		handleScanTrigger(ctx, scanner, log, d)
	})
	if err != nil {
		log.Error("scanner exited with error", zap.Error(err))
		return err
	}
	log.Info("scanner shut down cleanly")
	return nil
}

// handleScanTrigger parses and executes one ScanTrigger message, matching
// the permanent-vs-transient error split of spec.md §7: a malformed
// message is nacked without requeue, a scan failure is nacked with
// requeue so the trigger can be retried.
func handleScanTrigger(ctx context.Context, scanner *scan.Scanner, log *zap.Logger, d queue.Delivery) {
	var trigger messages.ScanTrigger
	if err := json.Unmarshal(d.Body, &trigger); err != nil {
		log.Error("malformed scan trigger, dropping", zap.Error(err))
		_ = d.Nack(false)
		return
	}

	if trigger.Action != "full_scan" {
		log.Warn("unknown scan trigger action", zap.String("action", trigger.Action))
		_ = d.Ack()
		return
	}
	if trigger.RootPath == "" {
		log.Warn("scan trigger missing root_path, skipping")
		_ = d.Ack()
		return
	}

	count, err := scanner.TriggerFullScan(ctx, trigger.RootPath, trigger.WipeExisting)
	if err != nil {
		log.Error("full scan failed", zap.String("root_path", trigger.RootPath), zap.Error(err))
		_ = d.Nack(true)
		return
	}
	log.Info("full scan complete", zap.String("root_path", trigger.RootPath), zap.Int("file_count", count))
	_ = d.Ack()
}
