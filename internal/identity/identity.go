// Package identity mints stable, content-addressable identifiers for code
// entities (C1). Every analyzer calls into this package synchronously to
// obtain a (canonical_id, gid) pair before emitting a node or relationship
// stub; the resolver and ingestion worker never mint identifiers themselves.
package identity

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"path"
	"strings"
)

// EntityType enumerates the node kinds GenerateId knows how to shape a
// canonical_id for. Unrecognized tags are rejected with ErrInvalidArgument.
type EntityType string

const (
	EntityFile       EntityType = "File"
	EntityClass      EntityType = "Class"
	EntityInterface  EntityType = "Interface"
	EntityEnum       EntityType = "Enum"
	EntityStruct     EntityType = "Struct"
	EntityFunction   EntityType = "Function"
	EntityMethod     EntityType = "Method"
	EntityVariable   EntityType = "Variable"
	EntityAttribute  EntityType = "Attribute"
	EntityImport     EntityType = "Import"
	EntityTable      EntityType = "Table"
	EntityColumn     EntityType = "Column"
	EntityApiEndpoint EntityType = "ApiEndpoint"
	EntityHtmlElement EntityType = "HtmlElement"
)

var knownEntityTypes = map[EntityType]bool{
	EntityFile: true, EntityClass: true, EntityInterface: true, EntityEnum: true,
	EntityStruct: true, EntityFunction: true, EntityMethod: true, EntityVariable: true,
	EntityAttribute: true, EntityImport: true, EntityTable: true, EntityColumn: true,
	EntityApiEndpoint: true, EntityHtmlElement: true,
}

// anyParamType is substituted for a missing parameter type, per spec.md §4.1.
const anyParamType = "Any"

// InvalidArgumentError is returned by GenerateId/ParseId when required
// input is missing or malformed. Its string form matches the gRPC-style
// "INVALID_ARGUMENT" status the spec describes.
type InvalidArgumentError struct {
	Msg string
}

func (e *InvalidArgumentError) Error() string {
	return fmt.Sprintf("INVALID_ARGUMENT: %s", e.Msg)
}

func invalidArg(format string, args ...any) error {
	return &InvalidArgumentError{Msg: fmt.Sprintf(format, args...)}
}

// Request carries the inputs to GenerateId. ParentCanonicalID, ParamTypes,
// and LanguageHint are optional depending on EntityType.
type Request struct {
	FilePath          string
	EntityType        EntityType
	Name              string
	ParentCanonicalID string
	ParamTypes        []string
	LanguageHint      string
	// SourceModule is used only for EntityImport: the module/path the
	// name is imported from (e.g. "os" or "./utils").
	SourceModule string
}

// Identifiers is the (canonical_id, gid) pair minted for one entity.
type Identifiers struct {
	CanonicalID string
	GID         string
}

// NormalizePath replaces backslashes with forward slashes, strips a leading
// "./", and lower-cases the result. Applied to every file_path before any
// canonical_id is built from it.
func NormalizePath(filePath string) string {
	normalized := strings.ReplaceAll(filePath, "\\", "/")
	normalized = strings.TrimPrefix(normalized, "./")
	return strings.ToLower(normalized)
}

// LanguageFromPath derives a normalized language tag from a file extension
// when no explicit hint is supplied.
func LanguageFromPath(filePath string) string {
	ext := strings.ToLower(path.Ext(filePath))
	switch ext {
	case ".py", ".pyw":
		return "python"
	case ".ts", ".tsx":
		return "typescript"
	case ".js", ".jsx":
		return "javascript"
	case ".java":
		return "java"
	case ".sql":
		return "sql"
	case ".html", ".htm":
		return "html"
	case ".go":
		return "go"
	default:
		return "unknown"
	}
}

// GenerateId deterministically mints (canonical_id, gid) from the inputs
// per spec.md §4.1. The same inputs always return the same pair.
func GenerateId(req Request) (Identifiers, error) {
	if req.FilePath == "" {
		return Identifiers{}, invalidArg("file_path must not be empty")
	}
	if req.Name == "" {
		return Identifiers{}, invalidArg("name must not be empty")
	}
	if !knownEntityTypes[req.EntityType] {
		return Identifiers{}, invalidArg("unrecognized entity_type %q", req.EntityType)
	}

	normPath := NormalizePath(req.FilePath)
	lang := req.LanguageHint
	if lang == "" {
		lang = LanguageFromPath(normPath)
	}

	fileCanonical := fmt.Sprintf("%s::File::%s", normPath, path.Base(normPath))

	var canonical string
	switch req.EntityType {
	case EntityFile:
		canonical = fileCanonical

	case EntityClass, EntityInterface, EntityEnum, EntityStruct:
		parent := req.ParentCanonicalID
		if parent == "" {
			parent = fileCanonical
		}
		canonical = fmt.Sprintf("%s::%s::%s", parent, req.EntityType, req.Name)

	case EntityFunction:
		parent := req.ParentCanonicalID
		if parent == "" {
			parent = fileCanonical
		}
		canonical = fmt.Sprintf("%s::Function::%s(%s)", parent, req.Name, paramsSignature(req.ParamTypes))

	case EntityMethod:
		if req.ParentCanonicalID == "" {
			return Identifiers{}, invalidArg("method %q requires a parent class canonical_id", req.Name)
		}
		canonical = fmt.Sprintf("%s::Method::%s(%s)", req.ParentCanonicalID, req.Name, paramsSignature(req.ParamTypes))

	case EntityVariable, EntityAttribute:
		scope := req.ParentCanonicalID
		if scope == "" {
			scope = fileCanonical
		}
		canonical = fmt.Sprintf("%s::%s", scope, req.Name)

	case EntityImport:
		canonical = fmt.Sprintf("%s::IMPORT:%s@%s", fileCanonical, req.Name, req.SourceModule)

	case EntityTable:
		canonical = fmt.Sprintf("%s::Table::%s", fileCanonical, req.Name)

	case EntityColumn:
		if req.ParentCanonicalID == "" {
			return Identifiers{}, invalidArg("column %q requires a parent table canonical_id", req.Name)
		}
		canonical = fmt.Sprintf("%s::Column::%s", req.ParentCanonicalID, req.Name)

	case EntityApiEndpoint:
		canonical = fmt.Sprintf("%s::ApiEndpoint::%s", fileCanonical, req.Name)

	case EntityHtmlElement:
		parent := req.ParentCanonicalID
		if parent == "" {
			parent = fileCanonical
		}
		canonical = fmt.Sprintf("%s::HtmlElement::%s", parent, req.Name)
	}

	gid := fmt.Sprintf("%s:%s", lang, sha256Hex(canonical))
	return Identifiers{CanonicalID: canonical, GID: gid}, nil
}

func paramsSignature(paramTypes []string) string {
	if len(paramTypes) == 0 {
		return ""
	}
	resolved := make([]string, len(paramTypes))
	for i, p := range paramTypes {
		if p == "" {
			resolved[i] = anyParamType
		} else {
			resolved[i] = p
		}
	}
	return strings.Join(resolved, ",")
}

func sha256Hex(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}

// Parsed is the result of splitting a canonical_id or gid back into parts.
// For a gid, only Language is populated. For a canonical_id, FilePath,
// EntityType, Name, and (when present) ParentCanonicalID are populated.
type Parsed struct {
	Language          string
	FilePath          string
	EntityType        EntityType
	Name              string
	ParentCanonicalID string
}

// ParseId accepts either a canonical_id or a gid and recovers its
// components. It fails with an InvalidArgumentError on empty or malformed
// input.
func ParseId(id string) (Parsed, error) {
	if id == "" {
		return Parsed{}, invalidArg("id must not be empty")
	}

	if lang, hash, ok := splitGID(id); ok {
		if lang == "" || hash == "" {
			return Parsed{}, invalidArg("malformed gid %q", id)
		}
		return Parsed{Language: lang}, nil
	}

	return parseCanonicalID(id)
}

// splitGID recognizes the "<lang>:<64-hex-char-sha256>" shape.
func splitGID(id string) (lang, hash string, ok bool) {
	idx := strings.IndexByte(id, ':')
	if idx <= 0 || idx == len(id)-1 {
		return "", "", false
	}
	candidateHash := id[idx+1:]
	if len(candidateHash) != 64 || strings.Contains(candidateHash, "::") {
		return "", "", false
	}
	for _, r := range candidateHash {
		if !isHexDigit(r) {
			return "", "", false
		}
	}
	return id[:idx], candidateHash, true
}

func isHexDigit(r rune) bool {
	return (r >= '0' && r <= '9') || (r >= 'a' && r <= 'f') || (r >= 'A' && r <= 'F')
}

func parseCanonicalID(id string) (Parsed, error) {
	parts := strings.Split(id, "::")
	if len(parts) < 2 {
		return Parsed{}, invalidArg("malformed canonical_id %q: expected at least one '::' separator", id)
	}

	filePath := parts[0]

	// IMPORT has its own shape: <file_canonical>::IMPORT:<name>@<source>
	if last := parts[len(parts)-1]; strings.HasPrefix(last, "IMPORT:") {
		rest := strings.TrimPrefix(last, "IMPORT:")
		at := strings.LastIndexByte(rest, '@')
		if at < 0 {
			return Parsed{}, invalidArg("malformed import canonical_id %q", id)
		}
		return Parsed{
			FilePath:   filePath,
			EntityType: EntityImport,
			Name:       rest[:at],
		}, nil
	}

	if len(parts) == 3 && parts[1] == string(EntityFile) {
		return Parsed{FilePath: filePath, EntityType: EntityFile, Name: parts[2]}, nil
	}

	// General shape: <parent>::<Type>::<name-with-optional-signature>
	// parent is everything up to the second-to-last segment; walk from the
	// end so nested parents (Class::Method) are preserved in ParentCanonicalID.
	entityTypeRaw := parts[len(parts)-2]
	nameRaw := parts[len(parts)-1]

	if !isTaggedEntityType(entityTypeRaw) {
		// Variable/Attribute canonical_ids carry no type tag: <scope>::<name>.
		return Parsed{
			FilePath:          filePath,
			EntityType:        EntityVariable,
			Name:              nameRaw,
			ParentCanonicalID: strings.Join(parts[:len(parts)-1], "::"),
		}, nil
	}

	parent := strings.Join(parts[:len(parts)-2], "::")

	name := nameRaw
	if i := strings.IndexByte(nameRaw, '('); i >= 0 {
		name = nameRaw[:i]
	}

	return Parsed{
		FilePath:          filePath,
		EntityType:        EntityType(entityTypeRaw),
		Name:              name,
		ParentCanonicalID: parent,
	}, nil
}

func isTaggedEntityType(tag string) bool {
	switch EntityType(tag) {
	case EntityClass, EntityInterface, EntityEnum, EntityStruct, EntityFunction,
		EntityMethod, EntityTable, EntityColumn, EntityApiEndpoint, EntityHtmlElement:
		return true
	default:
		return false
	}
}
