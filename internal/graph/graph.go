// Package graph implements the ingestion worker's (C6) store adapter: a
// Neo4j client that applies GraphDelta batches idempotently via batched
// UNWIND+MERGE, and materializes unresolved edges as PendingRelationship
// rows instead of dropping them, per spec.md §4.6. Session/transaction
// usage follows
// MuiGoku123432-goParser/internal/model/graph.go's ExecuteWrite pattern,
// generalized from that file's one-struct-per-node-type methods to a
// dynamic-label batch upsert driven by the resolver's NodeStub/RelStub
// contract.
package graph

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"codegraph/internal/messages"
)

// Client wraps a Bolt driver connection to the graph store.
type Client struct {
	driver neo4j.DriverWithContext
}

// Config holds the graph store connection parameters.
type Config struct {
	URI      string
	User     string
	Password string
}

// Connect dials the graph store.
func Connect(cfg Config) (*Client, error) {
	auth := neo4j.BasicAuth(cfg.User, cfg.Password, "")
	driver, err := neo4j.NewDriverWithContext(cfg.URI, auth, func(c *neo4j.Config) {
		c.MaxConnectionPoolSize = 50
		c.SocketConnectTimeout = 5 * time.Second
	})
	if err != nil {
		return nil, fmt.Errorf("graph: failed to create driver: %w", err)
	}
	return &Client{driver: driver}, nil
}

// Close releases the underlying driver.
func (c *Client) Close(ctx context.Context) error {
	return c.driver.Close(ctx)
}

func (c *Client) write(ctx context.Context, fn func(tx neo4j.ManagedTransaction) (any, error)) error {
	session := c.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeWrite})
	defer session.Close(ctx)
	_, err := session.ExecuteWrite(ctx, fn)
	return err
}

// EnsureIndexes creates the canonical_id indexes spec.md §4.6 requires,
// one per node label that carries a stable canonical_id. Safe to call on
// every startup.
func (c *Client) EnsureIndexes(ctx context.Context) error {
	labels := []string{
		"File", "Class", "Interface", "Enum", "Struct", "Function", "Method",
		"Variable", "Attribute", "Import", "Table", "Column", "ApiEndpoint",
		"HtmlElement", "ApiCall", "DatabaseQuery",
	}
	return c.write(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		for _, label := range labels {
			if !validLabel(label) {
				continue
			}
			stmt := fmt.Sprintf("CREATE INDEX IF NOT EXISTS FOR (n:`%s`) ON (n.canonical_id)", label)
			if _, err := tx.Run(ctx, stmt, nil); err != nil {
				return nil, fmt.Errorf("graph: failed to create index on %s: %w", label, err)
			}
		}
		stmt := "CREATE CONSTRAINT IF NOT EXISTS FOR (p:PendingRelationship) REQUIRE p.gid IS UNIQUE"
		_, err := tx.Run(ctx, stmt, nil)
		return nil, err
	})
}

// labelPattern restricts the characters UpsertNodes/EnsureIndexes will
// interpolate into a Cypher label. Node labels and relationship types
// both come from analyzer/resolver output, which in turn derives from
// source-code identifiers — untrusted in the sense that a crafted
// identifier could otherwise break out of the label position (Cypher has
// no parameterized label syntax). Validating against this pattern before
// any string-building closes that injection path per spec.md §9's
// ambiguity (b).
var labelPattern = func(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if !(r == '_' || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9')) {
			return false
		}
	}
	return true
}

func validLabel(s string) bool { return labelPattern(s) }

// groupKey produces a stable, order-independent key for a label set so
// nodes sharing the same labels (regardless of emission order) batch
// together.
func groupKey(labels []string) string {
	sorted := append([]string(nil), labels...)
	sort.Strings(sorted)
	return strings.Join(sorted, ":")
}

// UpsertNodes groups nodes by label set and issues one batched MERGE per
// group, matching on gid (spec.md §4.6's "Uniqueness is enforced by the
// gid being the MERGE key"). After each batch it opportunistically
// resolves any PendingRelationship rows whose target_canonical_id or
// source_gid the batch just satisfied.
func (c *Client) UpsertNodes(ctx context.Context, nodes []messages.GraphNode) error {
	groups := map[string][]messages.GraphNode{}
	labelsByGroup := map[string][]string{}
	for _, n := range nodes {
		valid := true
		for _, l := range n.Labels {
			if !validLabel(l) {
				valid = false
				break
			}
		}
		if !valid || len(n.Labels) == 0 {
			continue
		}
		key := groupKey(n.Labels)
		groups[key] = append(groups[key], n)
		labelsByGroup[key] = n.Labels
	}

	for key, group := range groups {
		labels := labelsByGroup[key]
		labelClause := "`" + strings.Join(labels, "`:`") + "`"

		rows := make([]map[string]any, 0, len(group))
		canonicalIDs := make([]string, 0, len(group))
		gids := make([]string, 0, len(group))
		for _, n := range group {
			rows = append(rows, map[string]any{
				"gid": n.GID, "canonical_id": n.CanonicalID, "name": n.Name,
				"file_path": n.FilePath, "language": n.Language,
				"properties": n.Properties,
			})
			canonicalIDs = append(canonicalIDs, n.CanonicalID)
			gids = append(gids, n.GID)
		}

		stmt := fmt.Sprintf(`
UNWIND $rows AS row
MERGE (n:%s {gid: row.gid})
SET n.canonical_id = row.canonical_id, n.name = row.name,
    n.file_path = row.file_path, n.language = row.language
SET n += row.properties
`, labelClause)

		if err := c.write(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
			_, err := tx.Run(ctx, stmt, map[string]any{"rows": rows})
			return nil, err
		}); err != nil {
			return fmt.Errorf("graph: upsert nodes (%s): %w", key, err)
		}

		if err := c.resolvePendingsForWrites(ctx, canonicalIDs, gids); err != nil {
			return fmt.Errorf("graph: opportunistic pending resolution: %w", err)
		}
	}
	return nil
}

// UpsertRelationships groups relationships by type and issues one batched
// MERGE-or-pend per group: rows whose source gid and target canonical_id
// both resolve get a concrete edge; anything else becomes a
// PendingRelationship, per spec.md §4.6.
func (c *Client) UpsertRelationships(ctx context.Context, rels []messages.GraphRelationship) error {
	groups := map[string][]messages.GraphRelationship{}
	for _, r := range rels {
		if !validLabel(r.Type) {
			continue
		}
		groups[r.Type] = append(groups[r.Type], r)
	}

	for relType, group := range groups {
		rows := make([]map[string]any, 0, len(group))
		for _, r := range group {
			rows = append(rows, map[string]any{
				"source_gid": r.SourceGID, "target_canonical_id": r.TargetCanonicalID,
				"properties": r.Properties,
			})
		}

		stmt := fmt.Sprintf(`
UNWIND $rows AS row
OPTIONAL MATCH (src {gid: row.source_gid})
OPTIONAL MATCH (tgt {canonical_id: row.target_canonical_id})
FOREACH (_ IN CASE WHEN src IS NOT NULL AND tgt IS NOT NULL THEN [1] ELSE [] END |
  MERGE (src)-[r:%s]->(tgt)
  SET r += row.properties
)
FOREACH (_ IN CASE WHEN src IS NULL OR tgt IS NULL THEN [1] ELSE [] END |
  MERGE (p:PendingRelationship {
    gid: row.source_gid + '|' + row.target_canonical_id + '|' + $relType
  })
  SET p.source_gid = row.source_gid, p.target_canonical_id = row.target_canonical_id,
      p.type = $relType, p.properties = row.properties
)
`, "`"+relType+"`")

		if err := c.write(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
			_, err := tx.Run(ctx, stmt, map[string]any{"rows": rows, "relType": relType})
			return nil, err
		}); err != nil {
			return fmt.Errorf("graph: upsert relationships (%s): %w", relType, err)
		}
	}
	return nil
}

// resolvePendingsForWrites handles the "opportunistic" half of pending
// resolution (spec.md §4.6): right after a node batch lands, look for
// PendingRelationship rows whose target_canonical_id is now satisfied
// (target case) or whose source_gid is among the nodes just written
// (source case), and promote them to real edges.
func (c *Client) resolvePendingsForWrites(ctx context.Context, canonicalIDs, gids []string) error {
	if len(canonicalIDs) == 0 && len(gids) == 0 {
		return nil
	}
	return c.write(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		_, err := tx.Run(ctx, `
UNWIND $canonicalIds AS cid
MATCH (p:PendingRelationship {target_canonical_id: cid})
MATCH (src {gid: p.source_gid})
MATCH (tgt {canonical_id: cid})
CALL apoc.create.relationship(src, p.type, p.properties, tgt) YIELD rel
DELETE p
`, map[string]any{"canonicalIds": canonicalIDs})
		if err != nil {
			return nil, err
		}
		_, err = tx.Run(ctx, `
UNWIND $gids AS g
MATCH (p:PendingRelationship {source_gid: g})
MATCH (src {gid: g})
MATCH (tgt {canonical_id: p.target_canonical_id})
CALL apoc.create.relationship(src, p.type, p.properties, tgt) YIELD rel
DELETE p
`, map[string]any{"gids": gids})
		return nil, err
	})
}

// ResolvePendings takes up to batchSize PendingRelationship rows, of any
// type, promotes every one whose endpoints now resolve, and returns the
// number resolved. The background scheduler (internal/ingest) calls this
// on a timer and loops until a pass resolves fewer than batchSize rows
// (spec.md §4.6's "loop until a batch is short").
func (c *Client) ResolvePendings(ctx context.Context, batchSize int) (int, error) {
	var resolved int64
	err := c.write(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		result, err := tx.Run(ctx, `
MATCH (p:PendingRelationship)
WITH p LIMIT $batchSize
MATCH (src {gid: p.source_gid})
MATCH (tgt {canonical_id: p.target_canonical_id})
CALL apoc.create.relationship(src, p.type, p.properties, tgt) YIELD rel
DELETE p
RETURN count(rel) AS resolved
`, map[string]any{"batchSize": batchSize})
		if err != nil {
			return nil, err
		}
		if result.Next(ctx) {
			if v, ok := result.Record().Get("resolved"); ok {
				if n, ok := v.(int64); ok {
					resolved = n
				}
			}
		}
		return nil, result.Err()
	})
	return int(resolved), err
}

// DeleteNodes removes each node whose gid or canonical_id is listed (the
// analyzers report a deleted file by canonical_id) along with its
// CONTAINS|DEFINES descendant closure, and any PendingRelationship
// referencing a node in that closure, per spec.md §4.6.
func (c *Client) DeleteNodes(ctx context.Context, gids []string) error {
	if len(gids) == 0 {
		return nil
	}
	return c.write(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		_, err := tx.Run(ctx, `
UNWIND $gids AS g
MATCH (root) WHERE root.gid = g OR root.canonical_id = g
OPTIONAL MATCH (root)-[:CONTAINS|DEFINES*0..]->(descendant)
WITH collect(DISTINCT root) + collect(DISTINCT descendant) AS closure
UNWIND closure AS n
WITH DISTINCT n
WHERE n IS NOT NULL
OPTIONAL MATCH (p:PendingRelationship)
WHERE p.source_gid = n.gid OR p.target_canonical_id = n.canonical_id
DETACH DELETE n, p
`, map[string]any{"gids": gids})
		return nil, err
	})
}

// DeleteRelationships removes each spec's concrete edge (if it exists)
// and its PendingRelationship counterpart.
func (c *Client) DeleteRelationships(ctx context.Context, specs []messages.RelDeleteSpec) error {
	for _, spec := range specs {
		if spec.Type != "" && !validLabel(spec.Type) {
			continue
		}
		if err := c.deleteOneRelationship(ctx, spec); err != nil {
			return err
		}
	}
	return nil
}

func (c *Client) deleteOneRelationship(ctx context.Context, spec messages.RelDeleteSpec) error {
	return c.write(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		if spec.Type != "" {
			stmt := fmt.Sprintf(`
MATCH (src {gid: $sourceGid})-[r:%s]->(tgt {canonical_id: $targetCanonicalId})
DELETE r
`, "`"+spec.Type+"`")
			if _, err := tx.Run(ctx, stmt, map[string]any{
				"sourceGid": spec.SourceGID, "targetCanonicalId": spec.TargetCanonicalID,
			}); err != nil {
				return nil, err
			}
		} else {
			if _, err := tx.Run(ctx, `
MATCH (src {gid: $sourceGid})-[r]->(tgt {canonical_id: $targetCanonicalId})
DELETE r
`, map[string]any{"sourceGid": spec.SourceGID, "targetCanonicalId": spec.TargetCanonicalID}); err != nil {
				return nil, err
			}
		}
		_, err := tx.Run(ctx, `
MATCH (p:PendingRelationship {source_gid: $sourceGid, target_canonical_id: $targetCanonicalId})
WHERE $type = '' OR p.type = $type
DELETE p
`, map[string]any{"sourceGid": spec.SourceGID, "targetCanonicalId": spec.TargetCanonicalID, "type": spec.Type})
		return nil, err
	})
}

// ApplyDelta performs one full message-processing cycle, per spec.md
// §4.6: upsert nodes, upsert relationships, delete requested nodes,
// delete requested relationships, then one opportunistic pending pass.
func (c *Client) ApplyDelta(ctx context.Context, delta messages.GraphDelta) error {
	if err := c.UpsertNodes(ctx, delta.Nodes); err != nil {
		return err
	}
	if err := c.UpsertRelationships(ctx, delta.Relationships); err != nil {
		return err
	}
	if err := c.DeleteNodes(ctx, delta.NodesDeleted); err != nil {
		return err
	}
	if err := c.DeleteRelationships(ctx, delta.RelationshipsDeleted); err != nil {
		return err
	}
	_, err := c.ResolvePendings(ctx, 100)
	return err
}

// WipeSideTables truncates the PendingRelationship mirror table that
// spec.md §4.3's wipe_existing flag targets ("truncate any side tables
// ... used by analyzers"), per SPEC_FULL.md's supplemented full-scan
// wipe feature. It never touches an analyzed File/Class/Function/... node
// — spec.md §4.3 is explicit that "the graph itself is not wiped here."
func (c *Client) WipeSideTables(ctx context.Context) error {
	return c.write(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		_, err := tx.Run(ctx, `MATCH (p:PendingRelationship) DETACH DELETE p`, nil)
		return nil, err
	})
}

// Query runs an arbitrary read-only Cypher statement and returns each
// record as a property map, keyed by return alias. Used by the gateway's
// query proxy (spec.md §7, "Destructive Cypher"); callers are responsible
// for rejecting destructive statements before they reach here, since
// Cypher has no read-only execution mode of its own.
func (c *Client) Query(ctx context.Context, cypher string, params map[string]any) ([]map[string]any, error) {
	session := c.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeRead})
	defer session.Close(ctx)

	result, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, cypher, params)
		if err != nil {
			return nil, err
		}
		var rows []map[string]any
		for res.Next(ctx) {
			record := res.Record()
			row := make(map[string]any, len(record.Keys))
			for _, key := range record.Keys {
				val, _ := record.Get(key)
				row[key] = val
			}
			rows = append(rows, row)
		}
		return rows, res.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("graph: query failed: %w", err)
	}
	rows, _ := result.([]map[string]any)
	return rows, nil
}
