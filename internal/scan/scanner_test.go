package scan

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"codegraph/internal/queue"
)

func writeTestTree(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "main.py"), []byte("x = 1\n"), 0644))
	require.NoError(t, os.MkdirAll(filepath.Join(root, "node_modules"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "node_modules", "skip.py"), []byte("x = 1\n"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "README.md"), []byte("hi\n"), 0644))
	return root
}

func TestTriggerFullScan_DispatchesSupportedFiles(t *testing.T) {
	root := writeTestTree(t)
	q := queue.NewMemoryQueue(16)
	log := zap.NewNop()

	s := New(q, log, []string{"node_modules", ".git"}, map[string]string{".py": "python"}, 2, nil)

	count, err := s.TriggerFullScan(context.Background(), root, false)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
	assert.Equal(t, 1, q.Len(queue.AnalysisQueueName("python")))
}

func TestTriggerFullScan_MissingRoot(t *testing.T) {
	q := queue.NewMemoryQueue(16)
	s := New(q, zap.NewNop(), nil, map[string]string{".py": "python"}, 2, nil)

	_, err := s.TriggerFullScan(context.Background(), "/no/such/path", false)
	assert.Error(t, err)
}

type fakeWiper struct {
	calls int
	err   error
}

func (f *fakeWiper) WipeSideTables(ctx context.Context) error {
	f.calls++
	return f.err
}

func TestTriggerFullScan_WipeExistingCallsWiper(t *testing.T) {
	root := writeTestTree(t)
	q := queue.NewMemoryQueue(16)
	wiper := &fakeWiper{}

	s := New(q, zap.NewNop(), []string{"node_modules", ".git"}, map[string]string{".py": "python"}, 2, wiper)

	_, err := s.TriggerFullScan(context.Background(), root, true)
	require.NoError(t, err)
	assert.Equal(t, 1, wiper.calls)
}

func TestTriggerFullScan_WithoutWipeSkipsWiper(t *testing.T) {
	root := writeTestTree(t)
	q := queue.NewMemoryQueue(16)
	wiper := &fakeWiper{}

	s := New(q, zap.NewNop(), []string{"node_modules", ".git"}, map[string]string{".py": "python"}, 2, wiper)

	_, err := s.TriggerFullScan(context.Background(), root, false)
	require.NoError(t, err)
	assert.Equal(t, 0, wiper.calls)
}
