package sql

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"codegraph/internal/analyzer"
	"codegraph/internal/messages"
)

func TestAnalyze_CreateTableWithColumns(t *testing.T) {
	src := []byte(`
CREATE TABLE widgets (
    id INTEGER PRIMARY KEY,
    name VARCHAR(255) NOT NULL,
    price DECIMAL(10,2),
    owner_id INTEGER,
    FOREIGN KEY (owner_id) REFERENCES users(id)
);
`)
	a := New()
	cache := analyzer.NewIdentifierCache(32)
	result := a.Analyze("schema.sql", src, cache)

	require.Equal(t, messages.StatusOK, result.Status)

	var tableNode *messages.NodeStub
	var columnNames []string
	for i := range result.NodesUpserted {
		n := &result.NodesUpserted[i]
		for _, l := range n.Labels {
			if l == "Table" {
				tableNode = n
			}
			if l == "Column" {
				columnNames = append(columnNames, n.Name)
			}
		}
	}
	require.NotNil(t, tableNode)
	assert.Equal(t, "widgets", tableNode.Name)
	assert.Contains(t, columnNames, "id")
	assert.Contains(t, columnNames, "name")
	assert.Contains(t, columnNames, "price")
	assert.Contains(t, columnNames, "owner_id")
	assert.NotContains(t, columnNames, "FOREIGN")
}

func TestAnalyze_MultipleTables(t *testing.T) {
	src := []byte(`
CREATE TABLE users (id INTEGER PRIMARY KEY, email VARCHAR(255));
CREATE TABLE orders (id INTEGER PRIMARY KEY, user_id INTEGER);
`)
	a := New()
	cache := analyzer.NewIdentifierCache(32)
	result := a.Analyze("schema.sql", src, cache)

	tables := 0
	for _, n := range result.NodesUpserted {
		for _, l := range n.Labels {
			if l == "Table" {
				tables++
			}
		}
	}
	assert.Equal(t, 2, tables)
}

func TestAnalyzeDeleted(t *testing.T) {
	cache := analyzer.NewIdentifierCache(32)
	result, err := AnalyzeDeleted("gone.sql", cache)
	require.NoError(t, err)
	assert.Equal(t, messages.StatusOK, result.Status)
	assert.Len(t, result.NodesDeleted, 1)
}
