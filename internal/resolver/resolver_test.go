package resolver

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"codegraph/internal/messages"
)

func findGraphRel(rels []messages.GraphRelationship, relType string) *messages.GraphRelationship {
	for i := range rels {
		if rels[i].Type == relType {
			return &rels[i]
		}
	}
	return nil
}

func TestResolve_MapsHintRelationshipTypes(t *testing.T) {
	results := []messages.AnalyzerResult{
		{
			FilePath: "main.py", Language: "python", Status: messages.StatusOK,
			NodesUpserted: []messages.NodeStub{
				{GID: "py:1", CanonicalID: "main.py::Function::main", Name: "main", Language: "python", Labels: []string{"Function"}},
			},
			RelationshipsUpserted: []messages.RelStub{
				{SourceGID: "py:1", TargetCanonicalID: "module.py::Function::helper(Any)", Type: "CALLS_HINT"},
			},
		},
	}

	r := New()
	delta := r.Resolve(results)

	rel := findGraphRel(delta.Relationships, "CALLS")
	require.NotNil(t, rel)
	assert.Equal(t, "module.py::Function::helper(Any)", rel.TargetCanonicalID)
	assert.Equal(t, "CALLS_HINT", rel.Properties["original_relationship_type"])
}

func TestResolve_CanonicalizeAddsLanguageLabel(t *testing.T) {
	results := []messages.AnalyzerResult{
		{
			FilePath: "main.py", Language: "python", Status: messages.StatusOK,
			NodesUpserted: []messages.NodeStub{
				{GID: "py:1", CanonicalID: "main.py::Function::main", Name: "main", Language: "python", Labels: []string{"Function"}},
			},
		},
	}
	r := New()
	delta := r.Resolve(results)
	require.Len(t, delta.Nodes, 1)
	assert.Contains(t, delta.Nodes[0].Labels, "Python")
	assert.Contains(t, delta.Nodes[0].Labels, "Function")
}

func TestResolve_ApiCallMatchesEndpointByURLPath(t *testing.T) {
	results := []messages.AnalyzerResult{
		{
			FilePath: "routes.py", Language: "python", Status: messages.StatusOK,
			NodesUpserted: []messages.NodeStub{
				{GID: "py:endpoint", CanonicalID: "routes.py::ApiEndpoint::/api/widgets", Name: "list_widgets", Language: "python",
					Labels: []string{"ApiEndpoint"}, Properties: map[string]any{"path": "/api/widgets"}},
			},
		},
		{
			FilePath: "client.py", Language: "python", Status: messages.StatusOK,
			NodesUpserted: []messages.NodeStub{
				{GID: "py:call", CanonicalID: "client.py::ApiCall::3:4", Name: "requests.get", Language: "python",
					Labels: []string{"ApiCall"}, Properties: map[string]any{"url": "https://svc/api/widgets/?x=1"}},
			},
			RelationshipsUpserted: []messages.RelStub{
				{SourceGID: "py:call", TargetCanonicalID: "client.py::ApiCall::3:4", Type: "FETCHES_HINT"},
			},
		},
	}

	r := New()
	delta := r.Resolve(results)

	rel := findGraphRel(delta.Relationships, "CALLS_API")
	require.NotNil(t, rel)
	assert.Equal(t, "routes.py::ApiEndpoint::/api/widgets", rel.TargetCanonicalID)
	assert.Equal(t, "url_path", rel.Properties["heuristic_match"])
}

func TestResolve_SqlQueryMatchesTableAndColumn(t *testing.T) {
	results := []messages.AnalyzerResult{
		{
			FilePath: "schema.sql", Language: "sql", Status: messages.StatusOK,
			NodesUpserted: []messages.NodeStub{
				{GID: "sql:users", CanonicalID: "schema.sql::Table::users", Name: "users", Language: "sql", Labels: []string{"Table"}},
				{GID: "sql:users.name", CanonicalID: "schema.sql::Table::users::Column::name", Name: "name", Language: "sql", Labels: []string{"Column"}},
			},
		},
		{
			FilePath: "repo.py", Language: "python", Status: messages.StatusOK,
			NodesUpserted: []messages.NodeStub{
				{GID: "py:query", CanonicalID: "repo.py::DatabaseQuery::5:4", Name: "cursor.execute", Language: "python",
					Labels: []string{"DatabaseQuery"}, Properties: map[string]any{"query": "SELECT name FROM users WHERE id = ?"}},
			},
		},
	}

	r := New()
	delta := r.Resolve(results)

	readsRel := findGraphRel(delta.Relationships, "READS_TABLE")
	require.NotNil(t, readsRel)
	assert.Equal(t, "schema.sql::Table::users", readsRel.TargetCanonicalID)

	colRel := findGraphRel(delta.Relationships, "USES_COLUMN")
	require.NotNil(t, colRel)
	assert.Equal(t, "schema.sql::Table::users::Column::name", colRel.TargetCanonicalID)
}

func TestResolve_PassesThroughDeletions(t *testing.T) {
	results := []messages.AnalyzerResult{
		{FilePath: "gone.py", Language: "python", Status: messages.StatusOK, NodesDeleted: []string{"gone.py::File::gone.py"}},
	}
	r := New()
	delta := r.Resolve(results)
	assert.Equal(t, []string{"gone.py::File::gone.py"}, delta.NodesDeleted)
}
