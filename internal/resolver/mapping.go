package resolver

import "strings"

// relationshipTypeMap is pass 4's fixed mapping table (spec.md §4.5 pass
// 4), grounded on original_source/api_gateway/orchestration_logic/defs.py's
// REL_TYPE_MAP: analyzer-local hint types collapse to their canonical
// counterpart, concrete types pass through unchanged.
var relationshipTypeMap = map[string]string{
	"CALLS":          "CALLS",
	"REFERENCES":     "REFERENCES",
	"DEFINES":        "DEFINES",
	"CONTAINS":       "CONTAINS",
	"IMPORTS":        "IMPORTS",
	"INHERITS_FROM":  "INHERITS_FROM",
	"IMPLEMENTS":     "IMPLEMENTS",
	"HAS_PARAMETER":  "HAS_PARAMETER",
	"RETURNS":        "RETURNS",
	"TYPE_ARGUMENT":  "TYPE_ARGUMENT",
	"USES_TYPE":      "USES_TYPE",

	"CALLS_HINT":         "CALLS",
	"FETCHES_HINT":       "CALLS_API",
	"QUERIES_HINT":       "QUERIES",
	"READS_HINT":         "READS",
	"WRITES_HINT":        "WRITES",
	"ACCESSES_HINT":      "ACCESSES",
	"USES_ENV_VAR_HINT":  "USES_ENVIRONMENT_VARIABLE",

	"CALLS_API":      "CALLS_API",
	"QUERIES_TABLE":  "QUERIES_TABLE",
	"USES_COLUMN":    "USES_COLUMN",
	"MODIFIES_TABLE": "MODIFIES_TABLE",
	"READS_TABLE":    "READS_TABLE",

	"RELATED_TO": "RELATED_TO",
}

// definitionLabels names the node labels pass 2 treats as "definitions" —
// the canonical_id of a node carrying one of these labels becomes a
// resolvable target in the definition registry (spec.md §4.5 pass 2).
var definitionLabels = map[string]bool{
	"Function": true, "Class": true, "Method": true, "Interface": true,
	"Enum": true, "Struct": true, "Table": true, "Column": true,
	"ApiEndpoint": true, "EnvironmentVariable": true, "File": true,
	"Module": true, "Variable": true,
}

// targetTypeOverride re-derives a relationship's canonical type from its
// resolved target's label when the analyzer-emitted type was a generic
// hint (a *_HINT type, or one the mapping table does not know), per spec.md §4.5 pass 4 ("CALLS_API when target node type is
// ApiEndpoint, QUERIES_TABLE when target is Table, USES_COLUMN when
// target is Column").
func targetTypeOverride(targetLabels []string) (string, bool) {
	for _, l := range targetLabels {
		switch l {
		case "ApiEndpoint":
			return "CALLS_API", true
		case "Table":
			return "QUERIES_TABLE", true
		case "Column":
			return "USES_COLUMN", true
		}
	}
	return "", false
}

// mapRelationshipType resolves relType to its canonical form, falling back
// to RELATED_TO for anything the table and target-type override don't
// recognize (spec.md §4.5 pass 4's fallback clause).
func mapRelationshipType(relType string, targetLabels []string) string {
	upper := strings.ToUpper(relType)
	mapped, known := relationshipTypeMap[upper]
	if !known || strings.HasSuffix(upper, "_HINT") {
		if override, ok := targetTypeOverride(targetLabels); ok {
			return override
		}
	}
	if known {
		return mapped
	}
	return "RELATED_TO"
}
