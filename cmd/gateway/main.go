// Command gateway runs the out-of-scope HTTP gateway: a read/control
// surface over the graph store and the scan-trigger queue. Grounded on
// MuiGoku123432-goParser/internal/api/monitor_api.go's Serve pattern.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"codegraph/internal/config"
	"codegraph/internal/gateway"
	"codegraph/internal/graph"
	"codegraph/internal/logging"
	"codegraph/internal/queue/amqp"
)

var verbose bool

func main() {
	root := &cobra.Command{
		Use:   "gateway",
		Short: "Serve the read/control HTTP gateway over the graph store",
		RunE:  run,
	}
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, args []string) error {
	log, err := logging.New("gateway", verbose)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(2)
	}
	defer log.Sync()

	cfg, err := config.LoadGateway()
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

	q, err := amqp.Connect(amqp.Config{
		Host: cfg.Broker.Host, Port: cfg.Broker.Port,
		User: cfg.Broker.User, Password: cfg.Broker.Password,
	})
	if err != nil {
		log.Sugar().Fatalf("failed to connect to broker: %v", err)
		os.Exit(2)
	}
	defer q.Close()

	server := gateway.New(g, q, log, cfg.APIKey)
	httpServer := &http.Server{Addr: cfg.Addr, Handler: server}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		log.Sugar().Infof("gateway listening on %s", cfg.Addr)
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		log.Info("shutting down gateway")
		return httpServer.Shutdown(context.Background())
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			log.Sugar().Errorf("gateway exited with error: %v", err)
			return err
		}
	}
	return nil
}
