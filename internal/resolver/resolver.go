// Package resolver implements the orchestrator/resolver (C5): it takes a
// batch of AnalyzerResult messages, possibly spanning several files and
// languages, and produces one GraphDelta ready for the ingestion worker
// (C6). The four-pass algorithm (collect, canonicalize, cross-language
// heuristics, relationship mapping) follows spec.md §4.5, grounded on
// original_source/api_gateway/orchestration_logic/resolution.py and
// defs.py. Unlike the original, nodes already carry a stable canonical_id
// and gid minted by the identity service at analysis time (internal/
// identity), so passes 1/2 here are lighter: there is no local_id
// namespace to translate, only labels to finalize and duplicates to fold.
package resolver

import (
	"strings"

	"codegraph/internal/messages"
)

// Resolver aggregates analyzer results into canonicalized graph deltas.
type Resolver struct{}

// New constructs a Resolver. It holds no state between Resolve calls; the
// orchestrator batches a window of results and calls Resolve once per
// batch.
func New() *Resolver {
	return &Resolver{}
}

// Resolve runs all four passes over results and returns the combined
// delta. A result with Status=ERROR contributes only its side effects
// (nodes/relationships deleted are still honored so a DELETED event isn't
// lost because its file also failed reanalysis); it contributes no nodes
// or relationships of its own.
func (r *Resolver) Resolve(results []messages.AnalyzerResult) messages.GraphDelta {
	nodesByGID, nodesByCanonical, relsBySource := collect(results)
	canonicalize(nodesByGID)

	definitions := buildDefinitionRegistry(nodesByGID)

	heuristicRels := crossLanguageHeuristics(nodesByCanonical)
	heuristicKeys := heuristicRelKeys(heuristicRels)

	mappedRels := mapRelationships(relsBySource, nodesByCanonical, definitions, heuristicKeys)

	delta := messages.GraphDelta{
		Relationships: append(heuristicRels, mappedRels...),
	}
	for _, n := range nodesByGID {
		delta.Nodes = append(delta.Nodes, *n)
	}
	for _, res := range results {
		delta.NodesDeleted = append(delta.NodesDeleted, res.NodesDeleted...)
		delta.RelationshipsDeleted = append(delta.RelationshipsDeleted, res.RelationshipsDeleted...)
	}
	return delta
}

// collect is pass 1: index incoming nodes by gid and by canonical_id, and
// relationships by their (already-resolved) source gid. A node seen twice
// (e.g. reanalysis after a MODIFIED event, or two analyzers independently
// minting the same canonical_id) keeps the first-seen definition, per
// spec.md §8 scenario 5's duplicate-canonical_id rule.
func collect(results []messages.AnalyzerResult) (map[string]*messages.GraphNode, map[string]*messages.GraphNode, map[string][]messages.RelStub) {
	nodesByGID := map[string]*messages.GraphNode{}
	nodesByCanonical := map[string]*messages.GraphNode{}
	relsBySource := map[string][]messages.RelStub{}

	for _, res := range results {
		if res.Status != messages.StatusOK {
			continue
		}
		for _, n := range res.NodesUpserted {
			if _, exists := nodesByGID[n.GID]; exists {
				continue
			}
			gn := &messages.GraphNode{
				GID: n.GID, CanonicalID: n.CanonicalID, Name: n.Name,
				FilePath: n.FilePath, Language: n.Language,
				Labels: append([]string(nil), n.Labels...), Properties: n.Properties,
			}
			nodesByGID[n.GID] = gn
			if _, exists := nodesByCanonical[n.CanonicalID]; !exists {
				nodesByCanonical[n.CanonicalID] = gn
			}
		}
		for _, rel := range res.RelationshipsUpserted {
			relsBySource[rel.SourceGID] = append(relsBySource[rel.SourceGID], rel)
		}
	}
	return nodesByGID, nodesByCanonical, relsBySource
}

// canonicalize is pass 2's label step: add a capitalized language label
// (e.g. "Python") to every node's label set alongside whatever the
// analyzer already assigned, matching
// helpers.py's get_final_node_labels. Analyzers in this module already
// emit the mapped primary label (Function, Class, ...) directly rather
// than an analyzer-local type name like "FunctionDefinition", so the
// FunctionDefinition->Function remapping table itself has no work left to
// do here; an analyzer that ever emits an unrecognized label still passes
// it through unchanged, matching the "Original_<type>" fallback's intent
// of never dropping information.
func canonicalize(nodesByGID map[string]*messages.GraphNode) {
	for _, n := range nodesByGID {
		if n.Language == "" {
			continue
		}
		langLabel := strings.ToUpper(n.Language[:1]) + n.Language[1:]
		if !containsLabel(n.Labels, langLabel) {
			n.Labels = append(n.Labels, langLabel)
		}
	}
}

func containsLabel(labels []string, want string) bool {
	for _, l := range labels {
		if l == want {
			return true
		}
	}
	return false
}

// buildDefinitionRegistry implements pass 2's definition registry:
// canonical_id -> node, restricted to labels spec.md §4.5 pass 2 names as
// definitions.
func buildDefinitionRegistry(nodesByGID map[string]*messages.GraphNode) map[string]*messages.GraphNode {
	defs := map[string]*messages.GraphNode{}
	for _, n := range nodesByGID {
		for _, l := range n.Labels {
			if definitionLabels[l] {
				defs[n.CanonicalID] = n
				break
			}
		}
	}
	return defs
}

// mapRelationships is pass 4: map every analyzer-emitted relationship's
// type via the fixed table (with a target-label override when the
// resolved target is an ApiEndpoint/Table/Column), suppressing any
// relationship whose (source, target, mapped type) duplicates one a pass
// 3 heuristic already produced.
func mapRelationships(relsBySource map[string][]messages.RelStub, nodesByCanonical map[string]*messages.GraphNode, definitions map[string]*messages.GraphNode, suppress map[string]bool) []messages.GraphRelationship {
	var out []messages.GraphRelationship
	for sourceGID, rels := range relsBySource {
		for _, rel := range rels {
			var targetLabels []string
			if target, ok := definitions[rel.TargetCanonicalID]; ok {
				targetLabels = target.Labels
			} else if target, ok := nodesByCanonical[rel.TargetCanonicalID]; ok {
				targetLabels = target.Labels
			}

			mappedType := mapRelationshipType(rel.Type, targetLabels)
			key := relKey(sourceGID, rel.TargetCanonicalID, mappedType)
			if suppress[key] {
				continue
			}
			out = append(out, messages.GraphRelationship{
				SourceGID:         sourceGID,
				TargetCanonicalID: rel.TargetCanonicalID,
				Type:              mappedType,
				Properties:        withOriginalRelationshipType(rel.Properties, rel.Type),
			})
		}
	}
	return out
}

// withOriginalRelationshipType copies rel's properties and records the
// pre-mapping type under original_relationship_type, per spec.md §3
// ("properties ... must include analyzer and original_relationship_type
// for provenance"), matching
// original_source/api_gateway/orchestration.py's equivalent mapping pass
// (rel_props["original_relationship_type"] = rel.relationship_type).
func withOriginalRelationshipType(properties map[string]any, originalType string) map[string]any {
	out := make(map[string]any, len(properties)+1)
	for k, v := range properties {
		out[k] = v
	}
	out["original_relationship_type"] = originalType
	return out
}

func relKey(sourceGID, targetCanonicalID, relType string) string {
	return sourceGID + "|" + targetCanonicalID + "|" + relType
}

func heuristicRelKeys(rels []messages.GraphRelationship) map[string]bool {
	out := make(map[string]bool, len(rels))
	for _, r := range rels {
		out[relKey(r.SourceGID, r.TargetCanonicalID, r.Type)] = true
	}
	return out
}
