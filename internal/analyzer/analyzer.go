// Package analyzer holds the pieces shared by every per-language analyzer
// (C4): the scope stack used to derive parent_canonical_id while walking
// a parse tree, a per-invocation identifier cache, and the manual-hint
// comment grammar. Each language gets its own subpackage (see
// internal/analyzer/python, internal/analyzer/sql) that builds an
// AnalyzerResult by driving these shared pieces over a language-specific
// parse tree, the way
// MuiGoku123432-goParser/internal/driver/treesitter_driver.go drives one
// walker per supported extension.
package analyzer

import (
	"fmt"
	"regexp"

	lru "github.com/hashicorp/golang-lru/v2"

	"codegraph/internal/identity"
	"codegraph/internal/messages"
)

// Scope is one level of the file → class → function/method stack
// maintained while walking a parse tree (spec.md §4.4 step 3).
type Scope struct {
	CanonicalID string
	GID         string
	Name        string
	EntityType  identity.EntityType
}

// ScopeStack tracks nested scopes during a single file's traversal.
type ScopeStack struct {
	frames []Scope
}

// NewScopeStack starts a stack rooted at the file's own scope.
func NewScopeStack(fileScope Scope) *ScopeStack {
	return &ScopeStack{frames: []Scope{fileScope}}
}

// Push enters a nested scope (e.g. a class or function body).
func (s *ScopeStack) Push(scope Scope) {
	s.frames = append(s.frames, scope)
}

// Pop exits the innermost scope. Popping the file-level frame is a no-op.
func (s *ScopeStack) Pop() {
	if len(s.frames) > 1 {
		s.frames = s.frames[:len(s.frames)-1]
	}
}

// Current returns the innermost scope.
func (s *ScopeStack) Current() Scope {
	return s.frames[len(s.frames)-1]
}

// QualifiedName joins the scope chain's names with "::", e.g.
// "ClassName::MethodName", matching spec.md §4.4's variable/attribute
// scoping rule.
func (s *ScopeStack) QualifiedName() string {
	if len(s.frames) <= 1 {
		return ""
	}
	out := s.frames[1].Name
	for _, f := range s.frames[2:] {
		out += "::" + f.Name
	}
	return out
}

// IdentifierCache memoizes identity.GenerateId calls within one analyzer
// invocation, matching spec.md §4.4 step 2 ("an in-memory LRU cache per
// analyzer invocation avoids duplicate calls for the same tuple").
// Grounded on the hashicorp/golang-lru/v2 usage in the
// maraichr-codegraph manifest.
type IdentifierCache struct {
	cache *lru.Cache[string, identity.Identifiers]
}

// NewIdentifierCache builds a cache holding up to size entries. A
// per-file traversal rarely touches more than a few hundred distinct
// entities, so 2048 is a generous default.
func NewIdentifierCache(size int) *IdentifierCache {
	if size <= 0 {
		size = 2048
	}
	c, _ := lru.New[string, identity.Identifiers](size)
	return &IdentifierCache{cache: c}
}

// Get mints (or returns a cached) identifier pair for req.
func (c *IdentifierCache) Get(req identity.Request) (identity.Identifiers, error) {
	key := cacheKey(req)
	if ids, ok := c.cache.Get(key); ok {
		return ids, nil
	}
	ids, err := identity.GenerateId(req)
	if err != nil {
		return identity.Identifiers{}, err
	}
	c.cache.Add(key, ids)
	return ids, nil
}

func cacheKey(req identity.Request) string {
	return fmt.Sprintf("%s|%s|%s|%s|%v|%s|%s",
		req.FilePath, req.EntityType, req.Name, req.ParentCanonicalID,
		req.ParamTypes, req.LanguageHint, req.SourceModule)
}

// manualHintPattern recognizes spec.md §4.4 step 5's manual hint comment
// grammar: "bmcp:call-target <ID>", "bmcp:imports <ID>",
// "bmcp:uses-type <ID>", regardless of the language's comment syntax
// (the caller strips the leading comment marker before matching).
var manualHintPattern = regexp.MustCompile(`^\s*bmcp:(call-target|imports|uses-type)\s+(\S+)\s*$`)

// ManualHint is a parsed manual hint comment.
type ManualHint struct {
	Kind   string // "call-target", "imports", "uses-type"
	Target string
}

// ParseManualHint matches commentBody (the comment text with its marker,
// e.g. "#" or "//", already stripped) against the manual hint grammar.
func ParseManualHint(commentBody string) (ManualHint, bool) {
	m := manualHintPattern.FindStringSubmatch(commentBody)
	if m == nil {
		return ManualHint{}, false
	}
	return ManualHint{Kind: m[1], Target: m[2]}, true
}

// Builder accumulates the node/relationship stubs an analyzer produces
// for one file, in the shape AnalyzerResult requires.
type Builder struct {
	FilePath string
	Language string

	nodes []messages.NodeStub
	rels  []messages.RelStub
}

// NewBuilder starts a result for one file.
func NewBuilder(filePath, language string) *Builder {
	return &Builder{FilePath: filePath, Language: language}
}

// AddNode appends a node stub.
func (b *Builder) AddNode(ids identity.Identifiers, name string, labels []string, properties map[string]any) {
	if properties == nil {
		properties = map[string]any{}
	}
	b.nodes = append(b.nodes, messages.NodeStub{
		GID:         ids.GID,
		CanonicalID: ids.CanonicalID,
		Name:        name,
		FilePath:    b.FilePath,
		Language:    b.Language,
		Labels:      labels,
		Properties:  properties,
	})
}

// AddRelationship appends a relationship stub whose target is identified
// by canonical_id (never a gid — ingestion resolves it).
func (b *Builder) AddRelationship(sourceGID, targetCanonicalID, relType string, properties map[string]any) {
	if properties == nil {
		properties = map[string]any{}
	}
	b.rels = append(b.rels, messages.RelStub{
		SourceGID:         sourceGID,
		TargetCanonicalID: targetCanonicalID,
		Type:              relType,
		Properties:        properties,
	})
}

// Result builds the final AnalyzerResult with status OK.
func (b *Builder) Result() messages.AnalyzerResult {
	return messages.AnalyzerResult{
		FilePath:              b.FilePath,
		Language:              b.Language,
		Status:                messages.StatusOK,
		NodesUpserted:         b.nodes,
		RelationshipsUpserted: b.rels,
	}
}

// ErrorResult builds a status=ERROR AnalyzerResult for a file that failed
// to parse, per spec.md §4.4 step 1.
func ErrorResult(filePath, language string, err error) messages.AnalyzerResult {
	return messages.AnalyzerResult{
		FilePath: filePath,
		Language: language,
		Status:   messages.StatusError,
		Error:    err.Error(),
	}
}

// DeletedResult builds the result for event_type=DELETED: an empty node
// list and the file's own canonical_id in nodes_deleted, per spec.md
// §4.4 step 6 (the ingestion worker performs the cascade).
func DeletedResult(filePath, language, fileCanonicalID string) messages.AnalyzerResult {
	return messages.AnalyzerResult{
		FilePath:     filePath,
		Language:     language,
		Status:       messages.StatusOK,
		NodesDeleted: []string{fileCanonicalID},
	}
}
