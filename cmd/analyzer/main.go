// Command analyzer runs one per-language analyzer worker (C4): it
// consumes its language's analysis queue, reads the file named in each
// job, hands it to the matching language analyzer, and publishes the
// resulting node/relationship stubs to the shared results queue.
// Grounded on original_source/python_analyzer_service's consume-analyze-
// publish loop and spec.md §4.4/§6.
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

	"codegraph/internal/analyzer"
	"codegraph/internal/analyzer/python"
	"codegraph/internal/analyzer/sql"
	"codegraph/internal/config"
	"codegraph/internal/logging"
	"codegraph/internal/messages"
	"codegraph/internal/queue"
	"codegraph/internal/queue/amqp"
)

var verbose bool

// languageAnalyzer is the shape every per-language analyzer in
// internal/analyzer/* implements (spec.md §4.4's analyzer contract).
type languageAnalyzer interface {
	Analyze(filePath string, content []byte, idCache *analyzer.IdentifierCache) messages.AnalyzerResult
}

func main() {
	root := &cobra.Command{
		Use:   "analyzer",
		Short: "Consume a per-language analysis queue and publish results",
		RunE:  run,
	}
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	root.PersistentFlags().String("language", "", "language this analyzer serves (defaults to ANALYZER_LANGUAGE)")

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, args []string) error {
	log, err := logging.New("analyzer", verbose)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(2)
	}
	defer log.Sync()

	defaultLang, _ := cmd.Flags().GetString("language")
	cfg, err := config.LoadAnalyzer(defaultLang)
	if err != nil {
		log.Sugar().Fatalf("configuration error: %v", err)
		os.Exit(2)
	}

	impl, err := resolveAnalyzer(cfg.Language)
	if err != nil {
		log.Sugar().Fatalf("unsupported language: %v", err)
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

	log = log.With(zap.String("language", cfg.Language))
	idCache := analyzer.NewIdentifierCache(0)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	queueName := queue.AnalysisQueueName(cfg.Language)
	err = q.Consume(ctx, queueName, cfg.Prefetch, func(d queue.Delivery) {
		handleJob(ctx, impl, cfg.Language, q, log, idCache, d)
	})
	if err != nil {
		log.Error("analyzer exited with error", zap.Error(err))
		return err
	}
	log.Info("analyzer shut down cleanly")
	return nil
}

// resolveAnalyzer maps a configured language name to its implementation.
// Only python and sql are wired so far (spec.md §4.4's analyzer registry
// is meant to grow with new languages without touching the other
// services).
func resolveAnalyzer(language string) (languageAnalyzer, error) {
	switch language {
	case python.Language:
		return python.New(), nil
	case sql.Language:
		return sql.New(), nil
	default:
		return nil, fmt.Errorf("no analyzer registered for language %q", language)
	}
}

// handleJob reads the job's file_path, analyzes it (or, for a DELETED
// event, produces the cascade-trigger result without touching the
// filesystem), and publishes the AnalyzerResult. A missing or unreadable
// file is a permanent failure: the job is nacked without requeue rather
// than retried forever, per spec.md §7's error taxonomy.
func handleJob(ctx context.Context, impl languageAnalyzer, language string, q queue.Queue, log *zap.Logger, idCache *analyzer.IdentifierCache, d queue.Delivery) {
	var job messages.AnalysisJob
	if err := json.Unmarshal(d.Body, &job); err != nil {
		log.Error("malformed analysis job, dropping", zap.Error(err))
		_ = d.Nack(false)
		return
	}

	var result messages.AnalyzerResult

	if job.EventType == messages.EventDeleted {
		deleted, err := deletedResult(language, job.FilePath, idCache)
		if err != nil {
			log.Error("failed to build deleted-file result", zap.String("file_path", job.FilePath), zap.Error(err))
			_ = d.Nack(true)
			return
		}
		result = deleted
	} else {
		content, err := os.ReadFile(job.FilePath)
		if err != nil {
			log.Error("cannot read file, dropping job", zap.String("file_path", job.FilePath), zap.Error(err))
			_ = d.Nack(false)
			return
		}
		result = impl.Analyze(job.FilePath, content, idCache)
	}

	body, err := json.Marshal(result)
	if err != nil {
		log.Error("failed to marshal analyzer result", zap.Error(err))
		_ = d.Nack(true)
		return
	}

	if err := q.Publish(ctx, queue.ResultsQueue, body); err != nil {
		log.Error("failed to publish analyzer result", zap.Error(err))
		_ = d.Nack(true)
		return
	}

	log.Info("analyzed file",
		zap.String("file_path", job.FilePath),
		zap.String("status", string(result.Status)),
		zap.Int("nodes", len(result.NodesUpserted)),
		zap.Int("relationships", len(result.RelationshipsUpserted)),
	)
	_ = d.Ack()
}

// deletedResult dispatches to the right analyzer package's AnalyzeDeleted.
// The file's canonical_id is the same whichever analyzer mints it; only the
// gid's language prefix differs. The indirection means adding a language
// never requires touching this file's DELETED handling.
func deletedResult(language, filePath string, idCache *analyzer.IdentifierCache) (messages.AnalyzerResult, error) {
	switch language {
	case python.Language:
		return python.AnalyzeDeleted(filePath, idCache)
	case sql.Language:
		return sql.AnalyzeDeleted(filePath, idCache)
	default:
		return messages.AnalyzerResult{}, fmt.Errorf("no analyzer registered for language %q", language)
	}
}
