package python

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"codegraph/internal/analyzer"
	"codegraph/internal/messages"
)

func findRel(rels []messages.RelStub, relType string) *messages.RelStub {
	for i := range rels {
		if rels[i].Type == relType {
			return &rels[i]
		}
	}
	return nil
}

func TestAnalyze_ClassAndMethod(t *testing.T) {
	src := []byte(`
class Widget:
    def render(self):
        pass
`)
	a := New()
	cache := analyzer.NewIdentifierCache(32)
	result := a.Analyze("widget.py", src, cache)

	require.Equal(t, messages.StatusOK, result.Status)

	var names []string
	for _, n := range result.NodesUpserted {
		names = append(names, n.Name)
	}
	assert.Contains(t, names, "Widget")
	assert.Contains(t, names, "render")

	contains := 0
	for _, r := range result.RelationshipsUpserted {
		if r.Type == "CONTAINS" {
			contains++
		}
	}
	assert.GreaterOrEqual(t, contains, 2)
}

func TestAnalyze_ImportAndCall(t *testing.T) {
	src := []byte(`
from module import utility_function

def main():
    utility_function("x")
`)
	a := New()
	cache := analyzer.NewIdentifierCache(32)
	result := a.Analyze("main.py", src, cache)

	require.Equal(t, messages.StatusOK, result.Status)

	imp := findRel(result.RelationshipsUpserted, "IMPORTS")
	require.NotNil(t, imp)
	assert.Contains(t, imp.TargetCanonicalID, "utility_function")

	call := findRel(result.RelationshipsUpserted, "CALLS")
	require.NotNil(t, call)
	assert.Equal(t, "python::Function::utility_function", call.TargetCanonicalID)
}

func TestAnalyze_ManualHint(t *testing.T) {
	src := []byte(`
def main():
    # bmcp:call-target module.py::Function::helper(Any)
    pass
`)
	a := New()
	cache := analyzer.NewIdentifierCache(32)
	result := a.Analyze("main.py", src, cache)

	call := findRel(result.RelationshipsUpserted, "CALLS")
	require.NotNil(t, call)
	assert.Equal(t, true, call.Properties["manual_hint"])
	assert.Equal(t, "module.py::Function::helper(Any)", call.TargetCanonicalID)
}

func TestAnalyze_ApiCallEmitsHintNode(t *testing.T) {
	src := []byte(`
def fetch():
    requests.get("https://example.com/api/widgets")
`)
	a := New()
	cache := analyzer.NewIdentifierCache(32)
	result := a.Analyze("client.py", src, cache)

	require.Equal(t, messages.StatusOK, result.Status)

	hint := findRel(result.RelationshipsUpserted, "FETCHES_HINT")
	require.NotNil(t, hint)

	var apiCallNode *messages.NodeStub
	for i := range result.NodesUpserted {
		for _, l := range result.NodesUpserted[i].Labels {
			if l == "ApiCall" {
				apiCallNode = &result.NodesUpserted[i]
			}
		}
	}
	require.NotNil(t, apiCallNode)
	assert.Equal(t, apiCallNode.CanonicalID, hint.TargetCanonicalID)
	assert.Equal(t, "https://example.com/api/widgets", apiCallNode.Properties["url"])
}

func TestAnalyze_DatabaseQueryEmitsHintNode(t *testing.T) {
	src := []byte(`
def load():
    cursor.execute("SELECT id FROM widgets WHERE id = %s")
`)
	a := New()
	cache := analyzer.NewIdentifierCache(32)
	result := a.Analyze("repo.py", src, cache)

	require.Equal(t, messages.StatusOK, result.Status)

	hint := findRel(result.RelationshipsUpserted, "QUERIES_HINT")
	require.NotNil(t, hint)

	var queryNode *messages.NodeStub
	for i := range result.NodesUpserted {
		for _, l := range result.NodesUpserted[i].Labels {
			if l == "DatabaseQuery" {
				queryNode = &result.NodesUpserted[i]
			}
		}
	}
	require.NotNil(t, queryNode)
	assert.Equal(t, queryNode.CanonicalID, hint.TargetCanonicalID)
	assert.Contains(t, queryNode.Properties["query"], "SELECT id FROM widgets")
}

func TestAnalyze_RouteDecoratorEmitsApiEndpoint(t *testing.T) {
	src := []byte(`
@app.route("/api/widgets")
def list_widgets():
    pass
`)
	a := New()
	cache := analyzer.NewIdentifierCache(32)
	result := a.Analyze("routes.py", src, cache)

	require.Equal(t, messages.StatusOK, result.Status)

	var endpoint *messages.NodeStub
	for i := range result.NodesUpserted {
		for _, l := range result.NodesUpserted[i].Labels {
			if l == "ApiEndpoint" {
				endpoint = &result.NodesUpserted[i]
			}
		}
	}
	require.NotNil(t, endpoint)
	assert.Equal(t, "/api/widgets", endpoint.Properties["path"])
}

func TestAnalyze_SyntaxError(t *testing.T) {
	// tree-sitter is typically error-tolerant; this checks the ERROR-node
	// detection path rather than asserting every malformed input fails.
	src := []byte(`def main(:::`)
	a := New()
	cache := analyzer.NewIdentifierCache(32)
	result := a.Analyze("broken.py", src, cache)
	assert.Equal(t, messages.StatusError, result.Status)
}

func TestAnalyzeDeleted(t *testing.T) {
	cache := analyzer.NewIdentifierCache(32)
	result, err := AnalyzeDeleted("gone.py", cache)
	require.NoError(t, err)
	assert.Equal(t, messages.StatusOK, result.Status)
	assert.Len(t, result.NodesDeleted, 1)
}
