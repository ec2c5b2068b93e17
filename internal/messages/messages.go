// Package messages defines the wire schemas that cross queue boundaries:
// job messages, scan triggers, and analyzer results (spec.md §6).
package messages

// EventType is the file-change classification carried on analysis jobs.
type EventType string

const (
	EventCreated  EventType = "CREATED"
	EventModified EventType = "MODIFIED"
	EventDeleted  EventType = "DELETED"
)

// AnalysisJob is published to a per-language analysis queue by the file
// watcher (C2) or the bulk scanner (C3).
type AnalysisJob struct {
	FilePath  string    `json:"file_path"`
	EventType EventType `json:"event_type"`
	ID        string    `json:"id,omitempty"`
}

// ScanTrigger is published to the scan-trigger queue to start a full-repo
// walk (C3).
type ScanTrigger struct {
	Action       string `json:"action"`
	RootPath     string `json:"root_path"`
	WipeExisting bool   `json:"wipe_existing,omitempty"`
}

// Status is the outcome of an analyzer run on one file.
type Status string

const (
	StatusOK    Status = "OK"
	StatusError Status = "ERROR"
)

// NodeStub is an analyzer-emitted record of a node prior to ingestion.
type NodeStub struct {
	GID         string            `json:"gid"`
	CanonicalID string            `json:"canonical_id"`
	Name        string            `json:"name"`
	FilePath    string            `json:"file_path"`
	Language    string            `json:"language"`
	Labels      []string          `json:"labels"`
	Properties  map[string]any    `json:"properties"`
}

// RelStub is an analyzer-emitted record of a relationship prior to
// ingestion. The target is a canonical_id, never a GID, because the target
// entity may not have been analyzed yet.
type RelStub struct {
	SourceGID         string         `json:"source_gid"`
	TargetCanonicalID string         `json:"target_canonical_id"`
	Type              string         `json:"type"`
	Properties        map[string]any `json:"properties"`
}

// RelDeleteSpec identifies a relationship (concrete or pending) to remove.
type RelDeleteSpec struct {
	SourceGID         string `json:"source_gid"`
	TargetCanonicalID string `json:"target_canonical_id"`
	Type              string `json:"type,omitempty"`
}

// GraphNode is a node after the resolver's (C5) pass 2 canonicalization:
// its final label set is fixed and it is ready for the ingestion worker's
// MERGE-on-gid upsert.
type GraphNode struct {
	GID         string         `json:"gid"`
	CanonicalID string         `json:"canonical_id"`
	Name        string         `json:"name"`
	FilePath    string         `json:"file_path"`
	Language    string         `json:"language"`
	Labels      []string       `json:"labels"`
	Properties  map[string]any `json:"properties"`
}

// GraphRelationship is a relationship after the resolver's (C5) pass 4
// type mapping, ready for the ingestion worker's MERGE-or-pend logic.
type GraphRelationship struct {
	SourceGID         string         `json:"source_gid"`
	TargetCanonicalID string         `json:"target_canonical_id"`
	Type              string         `json:"type"`
	Properties        map[string]any `json:"properties"`
}

// GraphDelta is the resolver's (C5) output, published to the ingestion
// queue for the ingestion worker (C6) to apply, per spec.md §4.5/§4.6.
type GraphDelta struct {
	Nodes                []GraphNode     `json:"nodes"`
	Relationships        []GraphRelationship `json:"relationships"`
	NodesDeleted         []string        `json:"nodes_deleted"`
	RelationshipsDeleted []RelDeleteSpec `json:"relationships_deleted"`
}

// AnalyzerResult is published by every language analyzer to the shared
// results queue (spec.md §4.4, §6). It is the authoritative description of
// everything a single file contributes to the graph at this point in time.
type AnalyzerResult struct {
	FilePath               string          `json:"file_path"`
	Language               string          `json:"language"`
	Status                 Status          `json:"status"`
	Error                  string          `json:"error,omitempty"`
	NodesUpserted          []NodeStub      `json:"nodes_upserted"`
	RelationshipsUpserted  []RelStub       `json:"relationships_upserted"`
	NodesDeleted           []string        `json:"nodes_deleted"`
	RelationshipsDeleted   []RelDeleteSpec `json:"relationships_deleted"`
}
