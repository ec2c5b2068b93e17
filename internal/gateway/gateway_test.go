package gateway

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"go.uber.org/zap"

	"codegraph/internal/queue"
)

func newTestServer(t *testing.T) (*Server, *queue.MemoryQueue) {
	t.Helper()
	q := queue.NewMemoryQueue(16)
	return New(nil, q, zap.NewNop(), "secret-key"), q
}

func TestHandleStatus(t *testing.T) {
	s, _ := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/api/v1/status", nil)
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func TestHandleScanTrigger_RequiresAPIKey(t *testing.T) {
	s, _ := newTestServer(t)
	body, _ := json.Marshal(map[string]string{"action": "full_scan", "root_path": "/repo"})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/scan", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without API key, got %d", rec.Code)
	}
}

func TestHandleScanTrigger_PublishesToScanQueue(t *testing.T) {
	s, q := newTestServer(t)
	body, _ := json.Marshal(map[string]string{"action": "full_scan", "root_path": "/repo"})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/scan", bytes.NewReader(body))
	req.Header.Set("X-API-Key", "secret-key")
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if n := q.Len(queue.ScanTriggerQueue); n != 1 {
		t.Fatalf("expected one message on the scan-trigger queue, got %d", n)
	}
}

func TestHandleScanTrigger_RejectsMissingFields(t *testing.T) {
	s, _ := newTestServer(t)
	body, _ := json.Marshal(map[string]string{"action": "full_scan"})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/scan", bytes.NewReader(body))
	req.Header.Set("X-API-Key", "secret-key")
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for missing root_path, got %d", rec.Code)
	}
}

func TestHandleCypherProxy_RejectsDestructiveQueries(t *testing.T) {
	s, _ := newTestServer(t)
	cases := []string{
		`MATCH (n) DETACH DELETE n`,
		`MATCH (n) REMOVE n.prop`,
		`DROP INDEX foo`,
		`CALL apoc.periodic.iterate("", "", {})`,
		`LOAD CSV FROM "file:///x.csv" AS row RETURN row`,
	}
	for _, query := range cases {
		body, _ := json.Marshal(cypherRequest{Query: query})
		req := httptest.NewRequest(http.MethodPost, "/api/v1/query/cypher", bytes.NewReader(body))
		req.Header.Set("X-API-Key", "secret-key")
		rec := httptest.NewRecorder()
		s.ServeHTTP(rec, req)

		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected destructive query %q to be rejected, got %d", query, rec.Code)
		}
	}
}

func TestHandleIdentityParse_BadRequestOnMalformedID(t *testing.T) {
	s, _ := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/api/v1/identity/parse?id=", nil)
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for empty id, got %d", rec.Code)
	}
}
