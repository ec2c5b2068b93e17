package resolver

import (
	"regexp"
	"strings"

	"codegraph/internal/messages"
)

// crossLanguageHeuristics is pass 3: match ApiCall nodes against
// ApiEndpoint nodes by normalized URL path, and DatabaseQuery nodes
// against Table/Column nodes by tokenizing their query text, per
// spec.md §4.5 pass 3 and
// original_source/api_gateway/orchestration_logic/resolution.py's
// resolve_cross_language_heuristics.
func crossLanguageHeuristics(nodesByCanonical map[string]*messages.GraphNode) []messages.GraphRelationship {
	var apiCallers, dbQueryNodes []*messages.GraphNode
	endpoints := map[string]string{}  // normalized path -> canonical_id
	tables := map[string]string{}     // table name -> canonical_id
	columns := map[string]string{}    // column name -> canonical_id

	for _, n := range nodesByCanonical {
		switch primaryLabel(n.Labels) {
		case "ApiCall":
			apiCallers = append(apiCallers, n)
		case "ApiEndpoint":
			if path, _ := n.Properties["path"].(string); path != "" {
				endpoints[normalizeAPIPath(path)] = n.CanonicalID
			}
		case "DatabaseQuery":
			dbQueryNodes = append(dbQueryNodes, n)
		case "Table":
			if name, _ := n.Properties["name"].(string); name != "" {
				tables[name] = n.CanonicalID
			} else {
				tables[n.Name] = n.CanonicalID
			}
		case "Column":
			if name, _ := n.Properties["name"].(string); name != "" {
				columns[name] = n.CanonicalID
			} else {
				columns[n.Name] = n.CanonicalID
			}
		}
	}

	var out []messages.GraphRelationship

	for _, caller := range apiCallers {
		url, _ := caller.Properties["url"].(string)
		if url == "" {
			url, _ = caller.Properties["path"].(string)
		}
		if url == "" {
			continue
		}
		target, ok := endpoints[normalizeAPIPath(url)]
		if !ok {
			continue
		}
		out = append(out, messages.GraphRelationship{
			SourceGID: caller.GID, TargetCanonicalID: target, Type: "CALLS_API",
			Properties: map[string]any{"heuristic_match": "url_path"},
		})
	}

	for _, queryNode := range dbQueryNodes {
		query, _ := queryNode.Properties["query"].(string)
		if query == "" {
			continue
		}
		parsed := parseSQLQuery(query)
		relType := queryWriteKind(query)

		for table := range parsed.tables {
			target, ok := tables[table]
			if !ok {
				continue
			}
			out = append(out, messages.GraphRelationship{
				SourceGID: queryNode.GID, TargetCanonicalID: target, Type: relType,
				Properties: map[string]any{"heuristic_match": "table_name_in_query"},
			})
		}
		for col := range parsed.columns {
			target, ok := columns[col]
			if !ok {
				continue
			}
			out = append(out, messages.GraphRelationship{
				SourceGID: queryNode.GID, TargetCanonicalID: target, Type: "USES_COLUMN",
				Properties: map[string]any{"heuristic_match": "column_name_in_query"},
			})
		}
	}

	return out
}

func primaryLabel(labels []string) string {
	if len(labels) == 0 {
		return ""
	}
	return labels[0]
}

// normalizeAPIPath strips scheme, host, query string, and leading/trailing
// slashes from a URL so "/api/widgets/", "https://svc/api/widgets?x=1",
// and "api/widgets" all compare equal, per spec.md §4.5 pass 3's "API call
// matching".
func normalizeAPIPath(url string) string {
	u := url
	if i := strings.Index(u, "://"); i >= 0 {
		u = u[i+3:]
		if j := strings.IndexByte(u, '/'); j >= 0 {
			u = u[j:]
		} else {
			u = "/"
		}
	}
	if i := strings.IndexByte(u, '?'); i >= 0 {
		u = u[:i]
	}
	return strings.Trim(u, "/")
}

// sqlTableRefPattern and sqlColumnRefPattern mirror
// original_source/api_gateway/orchestration_logic/helpers.py's
// parse_sql_query: a lightweight regex tokenizer, not a full SQL grammar,
// matching spec.md §4.5 pass 3's explicit description of the technique
// ("tokenize ... with a lightweight SQL tokenizer").
var (
	sqlTableRefPattern  = regexp.MustCompile(`(?i)\b(?:FROM|JOIN|UPDATE|INTO)\s+` + "`?([A-Za-z_][A-Za-z0-9_]*)`?")
	sqlColumnRefPattern = regexp.MustCompile(`(?i)\b(?:SELECT|WHERE|SET|ON)\s+` + "`?([A-Za-z_][A-Za-z0-9_]*)`?" + `|` + "`?([A-Za-z_][A-Za-z0-9_]*)`?" + `\s*=\s*`)
	sqlWriteVerbPattern = regexp.MustCompile(`(?i)\b(UPDATE|INSERT|DELETE)\b`)
	sqlSelectPattern    = regexp.MustCompile(`(?i)\bSELECT\b`)
)

// parsedSQL holds the table/column names a query touches.
type parsedSQL struct {
	tables  map[string]bool
	columns map[string]bool
}

// parseSQLQuery extracts candidate table and column identifiers from a raw
// SQL string using the same coarse regex approach as the original
// implementation's parse_sql_query.
func parseSQLQuery(query string) parsedSQL {
	out := parsedSQL{tables: map[string]bool{}, columns: map[string]bool{}}
	for _, m := range sqlTableRefPattern.FindAllStringSubmatch(query, -1) {
		out.tables[m[1]] = true
	}
	for _, m := range sqlColumnRefPattern.FindAllStringSubmatch(query, -1) {
		if m[1] != "" {
			out.columns[m[1]] = true
		}
		if m[2] != "" {
			out.columns[m[2]] = true
		}
	}
	return out
}

// queryWriteKind classifies a query as MODIFIES_TABLE or READS_TABLE,
// defaulting to QUERIES_TABLE when neither a write verb nor SELECT is
// present (spec.md §4.5 pass 3).
func queryWriteKind(query string) string {
	if sqlWriteVerbPattern.MatchString(query) {
		return "MODIFIES_TABLE"
	}
	if sqlSelectPattern.MatchString(query) {
		return "READS_TABLE"
	}
	return "QUERIES_TABLE"
}
