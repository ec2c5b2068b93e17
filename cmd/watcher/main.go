// Command watcher runs the file watcher service (C2): it observes a
// directory tree and publishes AnalysisJob messages to the per-language
// queues. Flag/signal handling follows the cobra root-command style used
// by theRebelliousNerd-codenerd/cmd/nerd/main.go, scoped to this binary's
// single long-running command.
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
	"codegraph/internal/logging"
	"codegraph/internal/queue/amqp"
	"codegraph/internal/watcher"
)

var verbose bool

func main() {
	root := &cobra.Command{
		Use:   "watcher",
		Short: "Watch a source tree and publish per-file analysis jobs",
		RunE:  run,
	}
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, args []string) error {
	log, err := logging.New("watcher", verbose)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(2)
	}
	defer log.Sync()

	cfg, err := config.LoadWatcher()
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

	w, err := watcher.New(*cfg, q, log)
	if err != nil {
		log.Sugar().Fatalf("failed to start watcher: %v", err)
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := w.Run(ctx); err != nil {
		log.Error("watcher exited with error", zap.Error(err))
		return err
	}
	log.Info("watcher shut down cleanly")
	return nil
}
