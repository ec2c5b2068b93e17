package analyzer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"codegraph/internal/identity"
)

func TestScopeStack_QualifiedName(t *testing.T) {
	fileIDs, err := identity.GenerateId(identity.Request{FilePath: "a.py", EntityType: identity.EntityFile, Name: "a.py"})
	require.NoError(t, err)

	s := NewScopeStack(Scope{CanonicalID: fileIDs.CanonicalID, Name: "a.py", EntityType: identity.EntityFile})
	assert.Equal(t, "", s.QualifiedName())

	s.Push(Scope{Name: "Widget", EntityType: identity.EntityClass})
	assert.Equal(t, "Widget", s.QualifiedName())

	s.Push(Scope{Name: "render", EntityType: identity.EntityMethod})
	assert.Equal(t, "Widget::render", s.QualifiedName())

	s.Pop()
	assert.Equal(t, "Widget", s.QualifiedName())
}

func TestIdentifierCache_Memoizes(t *testing.T) {
	c := NewIdentifierCache(8)
	req := identity.Request{FilePath: "a.py", EntityType: identity.EntityFunction, Name: "f"}

	first, err := c.Get(req)
	require.NoError(t, err)
	second, err := c.Get(req)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestParseManualHint(t *testing.T) {
	hint, ok := ParseManualHint("bmcp:call-target module.py::Function::utility_function(Any)")
	require.True(t, ok)
	assert.Equal(t, "call-target", hint.Kind)
	assert.Equal(t, "module.py::Function::utility_function(Any)", hint.Target)

	_, ok = ParseManualHint("just a regular comment")
	assert.False(t, ok)
}

func TestBuilder_Result(t *testing.T) {
	b := NewBuilder("a.py", "python")
	ids, err := identity.GenerateId(identity.Request{FilePath: "a.py", EntityType: identity.EntityFunction, Name: "f"})
	require.NoError(t, err)

	b.AddNode(ids, "f", []string{"Function"}, map[string]any{"start_line": 1})
	b.AddRelationship(ids.GID, "a.py::File::a.py", "CONTAINS", nil)

	result := b.Result()
	assert.Len(t, result.NodesUpserted, 1)
	assert.Len(t, result.RelationshipsUpserted, 1)
	assert.Equal(t, "OK", string(result.Status))
}
