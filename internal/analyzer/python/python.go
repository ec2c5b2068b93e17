// Package python is the reference language analyzer (C4): it parses a
// single Python file with tree-sitter and emits node/relationship stubs
// per spec.md §4.4. The walker structure (recursive descent over named
// children, ChildByFieldName lookups) follows
// theRebelliousNerd-codenerd/internal/world/python_parser.go; call-target
// heuristics and the CALLS_API/QUERIES_DB pattern set are grounded on
// original_source/api_gateway/orchestration_logic/resolution.py and the
// language-analyzer contract in spec.md §4.4.
package python

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/python"

	"codegraph/internal/analyzer"
	"codegraph/internal/identity"
	"codegraph/internal/messages"
)

// Analyzer parses Python source with tree-sitter.
type Analyzer struct {
	parser *sitter.Parser
}

// New constructs a Python Analyzer.
func New() *Analyzer {
	parser := sitter.NewParser()
	parser.SetLanguage(python.GetLanguage())
	return &Analyzer{parser: parser}
}

// Language is the identity-service language hint this analyzer uses.
const Language = "python"

// apiCallPrefixes triggers an ApiCall node plus a FETCHES_HINT relationship
// when a call's qualified function name starts with one of these, per
// spec.md §4.4 step 4 ("e.g. requests.get").
var apiCallPrefixes = []string{"requests.get", "requests.post", "requests.put", "requests.delete", "requests.patch", "httpx.get", "httpx.post"}

// dbCallSuffixes triggers a DatabaseQuery node plus a QUERIES_HINT
// relationship when a call's qualified function name ends with one of
// these, per spec.md §4.4 step 4
// ("e.g. cursor.execute").
var dbCallSuffixes = []string{".execute", ".executemany"}

// apiRouteDecoratorPrefixes recognizes Flask/FastAPI-style route
// decorators, grounded on
// original_source/python_analyzer_service/visitor_helpers.py's
// API_CALL_PATTERNS (".*Flask\\.route", "FastAPI\\.(get|post|...)"). The
// original treats a route decorator as just another outgoing API call
// hint; this analyzer additionally materializes it as an ApiEndpoint
// definition node, since spec.md §4.5 pass 3's URL matching needs a real
// endpoint side to match against.
var apiRouteDecoratorPrefixes = []string{
	"app.route", "app.get", "app.post", "app.put", "app.delete", "app.patch",
	"router.get", "router.post", "router.put", "router.delete", "router.patch",
}

// Analyze handles a CREATED/MODIFIED job: parse content and produce the
// full AnalyzerResult for the file, per spec.md §4.4's job contract.
func (a *Analyzer) Analyze(filePath string, content []byte, idCache *analyzer.IdentifierCache) messages.AnalyzerResult {
	tree, err := a.parser.ParseCtx(context.Background(), nil, content)
	if err != nil {
		return analyzer.ErrorResult(filePath, Language, err)
	}
	defer tree.Close()

	root := tree.RootNode()
	if root.HasError() {
		return analyzer.ErrorResult(filePath, Language, fmt.Errorf("syntax error in %s", filePath))
	}

	w := &walker{
		filePath: filePath,
		content:  content,
		idCache:  idCache,
		builder:  analyzer.NewBuilder(filePath, Language),
	}

	fileIDs, err := idCache.Get(identity.Request{FilePath: filePath, EntityType: identity.EntityFile, Name: lastSegment(filePath), LanguageHint: Language})
	if err != nil {
		return analyzer.ErrorResult(filePath, Language, err)
	}
	w.builder.AddNode(fileIDs, lastSegment(filePath), []string{"File"}, map[string]any{
		"file_path": filePath,
	})

	scope := analyzer.NewScopeStack(analyzer.Scope{CanonicalID: fileIDs.CanonicalID, GID: fileIDs.GID, Name: filePath, EntityType: identity.EntityFile})
	w.fileGID = fileIDs.GID
	w.fileCanonical = fileIDs.CanonicalID
	w.walk(root, scope)

	return w.builder.Result()
}

// AnalyzeDeleted handles a DELETED job, per spec.md §4.4 step 6.
func AnalyzeDeleted(filePath string, idCache *analyzer.IdentifierCache) (messages.AnalyzerResult, error) {
	ids, err := idCache.Get(identity.Request{FilePath: filePath, EntityType: identity.EntityFile, Name: lastSegment(filePath), LanguageHint: Language})
	if err != nil {
		return messages.AnalyzerResult{}, err
	}
	return analyzer.DeletedResult(filePath, Language, ids.CanonicalID), nil
}

func lastSegment(filePath string) string {
	norm := identity.NormalizePath(filePath)
	if i := strings.LastIndexByte(norm, '/'); i >= 0 {
		return norm[i+1:]
	}
	return norm
}

// walker threads the scope stack and the shared builder/cache through a
// single recursive tree traversal.
type walker struct {
	filePath      string
	content       []byte
	idCache       *analyzer.IdentifierCache
	builder       *analyzer.Builder
	fileGID       string
	fileCanonical string
}

func (w *walker) text(n *sitter.Node) string {
	return string(w.content[n.StartByte():n.EndByte()])
}

func (w *walker) walk(node *sitter.Node, scope *analyzer.ScopeStack) {
	for i := 0; i < int(node.NamedChildCount()); i++ {
		child := node.NamedChild(i)
		switch child.Type() {
		case "class_definition":
			w.visitClass(child, scope)
		case "function_definition":
			w.visitFunction(child, scope)
		case "decorated_definition":
			w.visitDecorated(child, scope)
		case "import_statement":
			w.visitImportStatement(child, scope)
		case "import_from_statement":
			w.visitImportFrom(child, scope)
		case "call":
			w.visitCall(child, scope)
		case "assignment":
			w.visitAssignment(child, scope)
		case "comment":
			w.visitComment(child, scope)
		default:
			w.walk(child, scope)
		}
	}
}

func (w *walker) visitClass(node *sitter.Node, scope *analyzer.ScopeStack) {
	nameNode := node.ChildByFieldName("name")
	if nameNode == nil {
		return
	}
	name := w.text(nameNode)
	parent := scope.Current()

	ids, err := w.idCache.Get(identity.Request{
		FilePath: w.filePath, EntityType: identity.EntityClass, Name: name,
		ParentCanonicalID: parent.CanonicalID, LanguageHint: Language,
	})
	if err != nil {
		return
	}
	w.builder.AddNode(ids, name, []string{"Class"}, map[string]any{
		"start_line": int(node.StartPoint().Row) + 1,
		"end_line":   int(node.EndPoint().Row) + 1,
		"analyzer":   Language,
	})
	w.addContains(scope.Current().GID, ids)

	scope.Push(analyzer.Scope{CanonicalID: ids.CanonicalID, GID: ids.GID, Name: name, EntityType: identity.EntityClass})
	if body := node.ChildByFieldName("body"); body != nil {
		w.walk(body, scope)
	}
	scope.Pop()
}

func (w *walker) visitFunction(node *sitter.Node, scope *analyzer.ScopeStack) {
	nameNode := node.ChildByFieldName("name")
	if nameNode == nil {
		return
	}
	name := w.text(nameNode)
	parent := scope.Current()

	entityType := identity.EntityFunction
	if parent.EntityType == identity.EntityClass {
		entityType = identity.EntityMethod
	}

	paramTypes := extractParamTypes(node, w)

	ids, err := w.idCache.Get(identity.Request{
		FilePath: w.filePath, EntityType: entityType, Name: name,
		ParentCanonicalID: parent.CanonicalID, ParamTypes: paramTypes, LanguageHint: Language,
	})
	if err != nil {
		return
	}

	labels := []string{"Function"}
	if entityType == identity.EntityMethod {
		labels = []string{"Method"}
	}
	w.builder.AddNode(ids, name, labels, map[string]any{
		"start_line": int(node.StartPoint().Row) + 1,
		"end_line":   int(node.EndPoint().Row) + 1,
		"analyzer":   Language,
	})
	w.addContains(scope.Current().GID, ids)

	scope.Push(analyzer.Scope{CanonicalID: ids.CanonicalID, GID: ids.GID, Name: name, EntityType: entityType})
	w.emitUsesTypeFromParams(node, ids.GID)
	if body := node.ChildByFieldName("body"); body != nil {
		w.walk(body, scope)
	}
	scope.Pop()
}

func (w *walker) visitDecorated(node *sitter.Node, scope *analyzer.ScopeStack) {
	routePath, hasRoute := "", false
	for i := 0; i < int(node.NamedChildCount()); i++ {
		inner := node.NamedChild(i)
		if inner.Type() == "decorator" {
			if path, ok := w.routeDecoratorPath(inner); ok {
				routePath, hasRoute = path, true
			}
		}
	}

	for i := 0; i < int(node.NamedChildCount()); i++ {
		inner := node.NamedChild(i)
		switch inner.Type() {
		case "function_definition":
			if hasRoute {
				w.emitApiEndpoint(inner, routePath, scope)
			}
			w.visitFunction(inner, scope)
		case "class_definition":
			w.visitClass(inner, scope)
		}
	}
}

// routeDecoratorPath inspects a single "@decorator(...)" node for a
// Flask/FastAPI-style route registration and returns its first string
// argument (the route path) when found.
func (w *walker) routeDecoratorPath(dec *sitter.Node) (string, bool) {
	for i := 0; i < int(dec.NamedChildCount()); i++ {
		child := dec.NamedChild(i)
		if child.Type() != "call" {
			continue
		}
		fnNode := child.ChildByFieldName("function")
		if fnNode == nil {
			continue
		}
		if !matchesAnyPrefix(w.text(fnNode), apiRouteDecoratorPrefixes) {
			continue
		}
		args := child.ChildByFieldName("arguments")
		if args != nil && args.NamedChildCount() > 0 {
			return strings.Trim(w.text(args.NamedChild(0)), `"'`), true
		}
	}
	return "", false
}

// emitApiEndpoint materializes the ApiEndpoint definition node a route
// decorator declares, CONTAINed by the enclosing scope, per spec.md §4.5
// pass 3's reliance on real ApiEndpoint nodes to match ApiCall nodes
// against.
func (w *walker) emitApiEndpoint(fnNode *sitter.Node, path string, scope *analyzer.ScopeStack) {
	name := path
	if nameNode := fnNode.ChildByFieldName("name"); nameNode != nil {
		name = w.text(nameNode)
	}
	ids, err := w.idCache.Get(identity.Request{
		FilePath: w.filePath, EntityType: identity.EntityApiEndpoint, Name: path,
	})
	if err != nil {
		return
	}
	w.builder.AddNode(ids, name, []string{"ApiEndpoint"}, map[string]any{
		"path": path, "analyzer": Language,
	})
	w.addContains(scope.Current().GID, ids)
}

// visitImportStatement handles "import foo", "import foo as bar".
func (w *walker) visitImportStatement(node *sitter.Node, scope *analyzer.ScopeStack) {
	for i := 0; i < int(node.NamedChildCount()); i++ {
		child := node.NamedChild(i)
		module := w.text(child)
		alias := ""
		if child.Type() == "aliased_import" {
			nameNode := child.ChildByFieldName("name")
			aliasNode := child.ChildByFieldName("alias")
			if nameNode != nil {
				module = w.text(nameNode)
			}
			if aliasNode != nil {
				alias = w.text(aliasNode)
			}
		}
		w.emitImport(module, module, alias, 0)
	}
}

// visitImportFrom handles "from pkg import name [as alias], ...".
func (w *walker) visitImportFrom(node *sitter.Node, scope *analyzer.ScopeStack) {
	moduleNode := node.ChildByFieldName("module_name")
	if moduleNode == nil {
		return
	}
	module := w.text(moduleNode)
	level := 0
	for strings.HasPrefix(module, ".") {
		level++
		module = strings.TrimPrefix(module, ".")
	}

	for i := 0; i < int(node.NamedChildCount()); i++ {
		child := node.NamedChild(i)
		if child == moduleNode {
			continue
		}
		switch child.Type() {
		case "dotted_name", "identifier":
			name := w.text(child)
			w.emitImport(name, module, "", level)
		case "aliased_import":
			nameNode := child.ChildByFieldName("name")
			aliasNode := child.ChildByFieldName("alias")
			name := ""
			alias := ""
			if nameNode != nil {
				name = w.text(nameNode)
			}
			if aliasNode != nil {
				alias = w.text(aliasNode)
			}
			w.emitImport(name, module, alias, level)
		}
	}
}

func (w *walker) emitImport(name, sourceModule, alias string, level int) {
	ids, err := w.idCache.Get(identity.Request{
		FilePath: w.filePath, EntityType: identity.EntityImport, Name: name,
		SourceModule: sourceModule, LanguageHint: Language,
	})
	if err != nil {
		return
	}
	props := map[string]any{"imported_name": name, "level": level}
	if alias != "" {
		props["alias"] = alias
	}
	w.builder.AddRelationship(w.fileGID, ids.CanonicalID, "IMPORTS", props)
}

// emitApiCall materializes an ApiCall node for an outgoing HTTP call and
// links it to the enclosing scope with a provisional FETCHES_HINT
// relationship. The resolver's pass 3 (spec.md §4.5) matches this node's
// url property against declared ApiEndpoint nodes to produce the final
// CALLS_API edge; pass 4's mapping table turns the FETCHES_HINT itself
// into a CALLS_API edge from the enclosing scope to this ApiCall node. No
// External node is created.
func (w *walker) emitApiCall(node *sitter.Node, qualified string, scope *analyzer.ScopeStack) {
	url := ""
	if args := node.ChildByFieldName("arguments"); args != nil && args.NamedChildCount() > 0 {
		url = strings.Trim(w.text(args.NamedChild(0)), `"'`)
	}
	canonical := fmt.Sprintf("%s::ApiCall::%d:%d", w.fileCanonical, node.StartPoint().Row+1, node.StartPoint().Column)
	gid := fmt.Sprintf("%s:%s", Language, hashSite(canonical))
	w.builder.AddNode(identityPair(canonical, gid), qualified, []string{"ApiCall"}, map[string]any{
		"url": url, "call_expression": qualified, "analyzer": Language,
		"start_line": int(node.StartPoint().Row) + 1,
	})
	w.builder.AddRelationship(scope.Current().GID, canonical, "FETCHES_HINT", map[string]any{"analyzer": Language})
}

// emitDatabaseQuery materializes a DatabaseQuery node for a
// cursor.execute-style call, linked to the enclosing scope with a
// provisional QUERIES_HINT relationship. The resolver tokenizes the query
// property to find table/column matches (spec.md §4.5 pass 3).
func (w *walker) emitDatabaseQuery(node *sitter.Node, qualified string, scope *analyzer.ScopeStack) {
	query := ""
	if args := node.ChildByFieldName("arguments"); args != nil && args.NamedChildCount() > 0 {
		query = strings.Trim(w.text(args.NamedChild(0)), `"'`)
	}
	canonical := fmt.Sprintf("%s::DatabaseQuery::%d:%d", w.fileCanonical, node.StartPoint().Row+1, node.StartPoint().Column)
	gid := fmt.Sprintf("%s:%s", Language, hashSite(canonical))
	w.builder.AddNode(identityPair(canonical, gid), qualified, []string{"DatabaseQuery"}, map[string]any{
		"query": query, "call_expression": qualified, "analyzer": Language,
		"start_line": int(node.StartPoint().Row) + 1,
	})
	w.builder.AddRelationship(scope.Current().GID, canonical, "QUERIES_HINT", map[string]any{"analyzer": Language})
}

// visitCall classifies a call expression and emits either a direct CALLS
// edge to a heuristic target, or (for recognized HTTP/SQL call shapes) an
// ApiCall/DatabaseQuery node stub plus a provisional hint relationship for
// the resolver to reconcile, per spec.md §4.4 step 4 and §4.5 pass 3/4.
func (w *walker) visitCall(node *sitter.Node, scope *analyzer.ScopeStack) {
	fnNode := node.ChildByFieldName("function")
	if fnNode == nil {
		w.walk(node, scope)
		return
	}

	qualified := w.text(fnNode)
	current := scope.Current()
	if current.CanonicalID == "" {
		w.walk(node, scope)
		return
	}

	switch {
	case matchesAnyPrefix(qualified, apiCallPrefixes):
		w.emitApiCall(node, qualified, scope)
	case matchesAnySuffix(qualified, dbCallSuffixes):
		w.emitDatabaseQuery(node, qualified, scope)
	default:
		target := callTargetCanonical(qualified)
		w.builder.AddRelationship(scope.Current().GID, target, "CALLS", map[string]any{
			"analyzer": Language, "call_expression": qualified,
		})
	}

	// Recurse into arguments so nested calls are still discovered.
	if args := node.ChildByFieldName("arguments"); args != nil {
		w.walk(args, scope)
	}
}

// hashSite derives a gid suffix for a node kind that identity.GenerateId
// doesn't mint (ApiCall, DatabaseQuery aren't part of identity.EntityType),
// keyed on the call site's own canonical_id so it stays stable across
// re-analysis of an unchanged file.
func hashSite(canonical string) string {
	sum := sha256.Sum256([]byte(canonical))
	return hex.EncodeToString(sum[:])[:16]
}

// identityPair wraps a canonical_id/gid produced outside identity.GenerateId
// into the identity.Identifiers shape Builder.AddNode expects.
func identityPair(canonicalID, gid string) identity.Identifiers {
	return identity.Identifiers{CanonicalID: canonicalID, GID: gid}
}

// callTargetCanonical produces a best-guess target canonical_id for a
// call expression, per spec.md §4.4 step 4: a bare name resolves to
// "python::Function::<name>"; an attribute call "obj.attr()" resolves to
// "python::Object::<obj>::Method::<attr>". These are heuristic targets;
// the resolver (C5) reconciles them against real definitions or leaves
// them pending.
func callTargetCanonical(qualified string) string {
	if i := strings.LastIndexByte(qualified, '.'); i >= 0 {
		obj := qualified[:i]
		attr := qualified[i+1:]
		return fmt.Sprintf("python::Object::%s::Method::%s", obj, attr)
	}
	return fmt.Sprintf("python::Function::%s", qualified)
}

func matchesAnyPrefix(s string, prefixes []string) bool {
	for _, p := range prefixes {
		if strings.HasPrefix(s, p) {
			return true
		}
	}
	return false
}

func matchesAnySuffix(s string, suffixes []string) bool {
	for _, suf := range suffixes {
		if strings.HasSuffix(s, suf) {
			return true
		}
	}
	return false
}

// visitAssignment emits REFERENCES for simple name assignments and
// recurses into the right-hand side so calls inside it are still found.
func (w *walker) visitAssignment(node *sitter.Node, scope *analyzer.ScopeStack) {
	left := node.ChildByFieldName("left")
	right := node.ChildByFieldName("right")
	current := scope.Current()

	if left != nil && left.Type() == "identifier" && current.CanonicalID != "" {
		name := w.text(left)
		w.builder.AddRelationship(scope.Current().GID, name, "REFERENCES", map[string]any{
			"analyzer": Language, "kind": "assignment_target",
		})
	}

	if typeNode := node.ChildByFieldName("type"); typeNode != nil && current.CanonicalID != "" {
		annotation := w.text(typeNode)
		w.builder.AddRelationship(scope.Current().GID, fmt.Sprintf("%s::%s::%s", w.fileCanonical, identity.EntityClass, annotation), "USES_TYPE", map[string]any{
			"analyzer": Language, "kind": "annotation",
		})
	}

	if right != nil {
		w.walk(right, scope)
	}
}

// emitUsesTypeFromParams emits USES_TYPE relationships for annotated
// parameters, per spec.md §4.4 step 4.
func (w *walker) emitUsesTypeFromParams(fn *sitter.Node, fnGID string) {
	params := fn.ChildByFieldName("parameters")
	if params == nil {
		return
	}
	for i := 0; i < int(params.NamedChildCount()); i++ {
		p := params.NamedChild(i)
		if p.Type() != "typed_parameter" && p.Type() != "typed_default_parameter" {
			continue
		}
		typeNode := p.ChildByFieldName("type")
		if typeNode == nil {
			continue
		}
		annotation := w.text(typeNode)
		w.builder.AddRelationship(fnGID, fmt.Sprintf("%s::%s::%s", w.fileCanonical, identity.EntityClass, annotation), "USES_TYPE", map[string]any{
			"analyzer": Language, "kind": "parameter_annotation",
		})
	}
}

func extractParamTypes(fn *sitter.Node, w *walker) []string {
	params := fn.ChildByFieldName("parameters")
	if params == nil {
		return nil
	}
	var types []string
	for i := 0; i < int(params.NamedChildCount()); i++ {
		p := params.NamedChild(i)
		switch p.Type() {
		case "typed_parameter", "typed_default_parameter":
			if t := p.ChildByFieldName("type"); t != nil {
				types = append(types, w.text(t))
			} else {
				types = append(types, "")
			}
		default:
			types = append(types, "")
		}
	}
	return types
}

// visitComment recognizes spec.md §4.4 step 5's manual hint comments and
// emits synthetic relationships tagged manual_hint=true.
func (w *walker) visitComment(node *sitter.Node, scope *analyzer.ScopeStack) {
	text := strings.TrimPrefix(w.text(node), "#")
	hint, ok := analyzer.ParseManualHint(strings.TrimSpace(text))
	if !ok {
		return
	}
	current := scope.Current()
	if current.CanonicalID == "" {
		return
	}

	var relType string
	switch hint.Kind {
	case "call-target":
		relType = "CALLS"
	case "imports":
		relType = "IMPORTS"
	case "uses-type":
		relType = "USES_TYPE"
	default:
		return
	}
	w.builder.AddRelationship(scope.Current().GID, hint.Target, relType, map[string]any{
		"analyzer": Language, "manual_hint": true,
	})
}

func (w *walker) addContains(parentGID string, child identity.Identifiers) {
	w.builder.AddRelationship(parentGID, child.CanonicalID, "CONTAINS", map[string]any{"analyzer": Language})
}

