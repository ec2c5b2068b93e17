// Package scan implements the bulk scanner / orchestrator (C3): on
// demand, it walks a root path and publishes one analysis job per
// supported file to the appropriate per-language queue. It is grounded on
// original_source/services/scan_orchestrator.py's scan_and_dispatch (walk
// + extension->queue map + uuid-tagged job) and on the teacher's
// filepath.Walk usage in cmd/codeparser/main.go, generalized to a bounded
// worker pool per spec.md §4.3 ("bounded parallelism, default 8").
package scan

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"codegraph/internal/messages"
	"codegraph/internal/queue"
)

// Publisher is the subset of queue.Queue the scanner depends on.
type Publisher interface {
	Publish(ctx context.Context, queueName string, body []byte) error
}

// SideTableWiper clears the pending-relationship mirror table spec.md
// §4.3's wipe_existing flag targets ("truncate any side tables ... used
// by analyzers"). internal/graph.Client satisfies this via
// WipeSideTables. nil is a valid Scanner field: a scanner wired without a
// wiper simply cannot honor wipe_existing and ignores it.
type SideTableWiper interface {
	WipeSideTables(ctx context.Context) error
}

// Scanner performs full-repository scans.
type Scanner struct {
	q              Publisher
	log            *zap.Logger
	ignorePatterns []string
	extensionMap   map[string]string
	workers        int
	wiper          SideTableWiper
}

// New constructs a Scanner. workers bounds how many files are dispatched
// concurrently; a value <= 0 defaults to 8. wiper may be nil, in which
// case a wipe_existing request is logged and otherwise ignored.
func New(q Publisher, log *zap.Logger, ignorePatterns []string, extensionMap map[string]string, workers int, wiper SideTableWiper) *Scanner {
	if workers <= 0 {
		workers = 8
	}
	return &Scanner{
		q:              q,
		log:            log,
		ignorePatterns: ignorePatterns,
		extensionMap:   extensionMap,
		workers:        workers,
		wiper:          wiper,
	}
}

// TriggerFullScan walks rootPath recursively, publishing a CREATED job for
// every file whose extension maps to a language queue. When wipeExisting
// is set, it first truncates the pending-relationship side table via the
// configured SideTableWiper, per spec.md §4.3's
// "TriggerFullScan(root_path, wipe_existing?)".
func (s *Scanner) TriggerFullScan(ctx context.Context, rootPath string, wipeExisting bool) (dispatched int, err error) {
	if _, statErr := os.Stat(rootPath); statErr != nil {
		return 0, fmt.Errorf("scan: root path does not exist: %w", statErr)
	}

	if wipeExisting {
		if s.wiper == nil {
			s.log.Warn("wipe_existing requested but no side-table wiper configured, skipping")
		} else if err := s.wiper.WipeSideTables(ctx); err != nil {
			return 0, fmt.Errorf("scan: wipe side tables: %w", err)
		}
	}

	paths := make(chan string)
	var wg sync.WaitGroup
	var mu sync.Mutex
	var count int
	var firstErr error

	for i := 0; i < s.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for path := range paths {
				if pubErr := s.dispatch(ctx, rootPath, path); pubErr != nil {
					mu.Lock()
					if firstErr == nil {
						firstErr = pubErr
					}
					mu.Unlock()
					s.log.Error("failed to dispatch scan job", zap.String("file_path", path), zap.Error(pubErr))
					continue
				}
				mu.Lock()
				count++
				mu.Unlock()
			}
		}()
	}

	walkErr := filepath.Walk(rootPath, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			if shouldSkipDir(path, s.ignorePatterns) {
				return filepath.SkipDir
			}
			return nil
		}
		if shouldSkipDir(path, s.ignorePatterns) {
			return nil
		}
		ext := strings.ToLower(filepath.Ext(path))
		if _, ok := s.extensionMap[ext]; !ok {
			s.log.Debug("no analyzer queue for extension", zap.String("file_path", path), zap.String("ext", ext))
			return nil
		}
		select {
		case paths <- path:
		case <-ctx.Done():
			return ctx.Err()
		}
		return nil
	})

	close(paths)
	wg.Wait()

	if walkErr != nil {
		return count, fmt.Errorf("scan: walk %s: %w", rootPath, walkErr)
	}
	if firstErr != nil {
		return count, firstErr
	}
	s.log.Info("full scan dispatched", zap.String("root_path", rootPath), zap.Int("file_count", count))
	return count, nil
}

func (s *Scanner) dispatch(ctx context.Context, rootPath, path string) error {
	relPath, err := filepath.Rel(rootPath, path)
	if err != nil {
		relPath = path
	}
	relPath = filepath.ToSlash(relPath)

	ext := strings.ToLower(filepath.Ext(path))
	lang := s.extensionMap[ext]

	job := messages.AnalysisJob{
		FilePath:  relPath,
		EventType: messages.EventCreated,
		ID:        uuid.NewString(),
	}
	body, err := jobToJSON(job)
	if err != nil {
		return fmt.Errorf("marshal job: %w", err)
	}
	return s.q.Publish(ctx, queue.AnalysisQueueName(lang), body)
}

func shouldSkipDir(path string, patterns []string) bool {
	base := filepath.Base(path)
	for _, p := range patterns {
		if base == p || strings.Contains(path, p) {
			return true
		}
	}
	return false
}
