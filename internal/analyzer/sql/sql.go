// Package sql is the SQL DDL analyzer (C4). spec.md's resolver (§4.5 pass
// 3) matches DatabaseQuery hint nodes against Table/Column definition
// nodes, but the distilled spec never says where those definitions come
// from. original_source/sql_analysis_service/main.py parsed .sql files
// with sqlparse to recover table names from SELECT/FROM statements; this
// analyzer instead parses CREATE TABLE statements directly, since those
// are the actual definition sites the resolver needs. A full SQL grammar
// (vitess, the parser embedded in go-mysql-server) is a database engine's
// worth of dependency for one DDL shape, and every repo in the pack that
// pulls it in does so transitively as part of an actual query engine —
// none exercises it as a standalone parser — so this analyzer is grounded
// on the corpus's regexp-based tokenizing idiom instead (see
// MuiGoku123432-goParser/internal/driver/treesitter_driver.go's use of
// simple textual heuristics alongside tree-sitter for cheap extraction).
package sql

import (
	"regexp"
	"strings"

	"codegraph/internal/analyzer"
	"codegraph/internal/identity"
	"codegraph/internal/messages"
)

// Language is the identity-service language hint this analyzer uses.
const Language = "sql"

// Analyzer extracts Table/Column definitions from CREATE TABLE statements.
type Analyzer struct{}

// New constructs a SQL Analyzer.
func New() *Analyzer {
	return &Analyzer{}
}

var (
	createTablePattern = regexp.MustCompile(`(?is)CREATE\s+TABLE\s+(?:IF\s+NOT\s+EXISTS\s+)?` +
		"`?\"?\\[?([A-Za-z_][A-Za-z0-9_.]*)`?\"?\\]?\\s*\\((.*?)\\)\\s*(?:;|$)")
	columnLinePattern = regexp.MustCompile(`(?i)^\s*` +
		"`?\"?\\[?([A-Za-z_][A-Za-z0-9_]*)`?\"?\\]?\\s+([A-Za-z][A-Za-z0-9_]*(?:\\([^)]*\\))?)")
	constraintKeywords = []string{"primary", "foreign", "unique", "check", "constraint", "key", "index"}
)

// Analyze scans content for CREATE TABLE statements and emits Table nodes
// with their own canonical_id, plus Column nodes CONTAINed by each table,
// per spec.md §4.4's node/relationship contract.
func (a *Analyzer) Analyze(filePath string, content []byte, idCache *analyzer.IdentifierCache) messages.AnalyzerResult {
	b := analyzer.NewBuilder(filePath, Language)

	fileIDs, err := idCache.Get(identity.Request{FilePath: filePath, EntityType: identity.EntityFile, Name: baseName(filePath)})
	if err != nil {
		return analyzer.ErrorResult(filePath, Language, err)
	}

	matches := createTablePattern.FindAllStringSubmatch(string(content), -1)
	for _, m := range matches {
		tableName, body := m[1], m[2]

		tableIDs, err := idCache.Get(identity.Request{
			FilePath:   filePath,
			EntityType: identity.EntityTable,
			Name:       tableName,
		})
		if err != nil {
			return analyzer.ErrorResult(filePath, Language, err)
		}

		b.AddNode(tableIDs, tableName, []string{"Table"}, map[string]any{"analyzer": Language})
		b.AddRelationship(fileIDs.GID, tableIDs.CanonicalID, "CONTAINS", map[string]any{"analyzer": Language})

		for _, col := range splitColumnDefs(body) {
			name, dtype, ok := parseColumnDef(col)
			if !ok {
				continue
			}
			colIDs, err := idCache.Get(identity.Request{
				FilePath:          filePath,
				EntityType:        identity.EntityColumn,
				Name:              name,
				ParentCanonicalID: tableIDs.CanonicalID,
			})
			if err != nil {
				return analyzer.ErrorResult(filePath, Language, err)
			}
			b.AddNode(colIDs, name, []string{"Column"}, map[string]any{
				"analyzer": Language, "data_type": dtype, "table": tableName,
			})
			b.AddRelationship(tableIDs.GID, colIDs.CanonicalID, "CONTAINS", map[string]any{"analyzer": Language})
		}
	}

	return b.Result()
}

// AnalyzeDeleted produces the cascade-trigger result for a removed .sql
// file, per spec.md §4.4 step 6.
func AnalyzeDeleted(filePath string, idCache *analyzer.IdentifierCache) (messages.AnalyzerResult, error) {
	ids, err := idCache.Get(identity.Request{FilePath: filePath, EntityType: identity.EntityFile, Name: baseName(filePath)})
	if err != nil {
		return messages.AnalyzerResult{}, err
	}
	return analyzer.DeletedResult(filePath, Language, ids.CanonicalID), nil
}

// splitColumnDefs breaks a CREATE TABLE body into its top-level
// comma-separated definitions, respecting nested parens (e.g.
// "DECIMAL(10,2)" or inline CHECK(...) clauses) so they aren't split
// mid-expression.
func splitColumnDefs(body string) []string {
	var defs []string
	depth := 0
	start := 0
	for i, r := range body {
		switch r {
		case '(':
			depth++
		case ')':
			depth--
		case ',':
			if depth == 0 {
				defs = append(defs, body[start:i])
				start = i + 1
			}
		}
	}
	defs = append(defs, body[start:])
	return defs
}

// parseColumnDef extracts a name/type pair from one column definition,
// skipping table-level constraint clauses (PRIMARY KEY(...), FOREIGN
// KEY(...), etc.) that share the same comma-separated list.
func parseColumnDef(def string) (name, dtype string, ok bool) {
	trimmed := strings.TrimSpace(def)
	lower := strings.ToLower(trimmed)
	for _, kw := range constraintKeywords {
		if strings.HasPrefix(lower, kw) {
			return "", "", false
		}
	}
	m := columnLinePattern.FindStringSubmatch(trimmed)
	if m == nil {
		return "", "", false
	}
	return m[1], strings.ToUpper(m[2]), true
}

func baseName(filePath string) string {
	if i := strings.LastIndexAny(filePath, `/\`); i >= 0 {
		return filePath[i+1:]
	}
	return filePath
}
