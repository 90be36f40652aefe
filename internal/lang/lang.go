// Package lang provides a language registry mapping file extensions to
// tree-sitter languages and the extractors that turn their syntax trees into
// surveyor nodes.
package lang

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
	"sync"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/phobologic/surveyor/internal/model"
)

var whitespaceRe = regexp.MustCompile(`\s+`)

// ExtractFunc converts a parsed syntax tree into a file node and its children.
// relPath is the slash-separated path relative to the project root.
type ExtractFunc func(root *sitter.Node, source []byte, relPath string) *model.ParsedFile

// Language holds tree-sitter configuration for a supported language.
type Language struct {
	Name       string
	Extensions []string
	lang       *sitter.Language

	// Typed reports whether the language has type annotations, which
	// decides whether missing annotations are worth reporting.
	Typed bool

	Extract ExtractFunc
}

// GetLanguage returns the tree-sitter Language pointer.
func (l *Language) GetLanguage() *sitter.Language {
	return l.lang
}

// NewParser creates a fresh tree-sitter parser for this language.
// Each goroutine must use its own parser (not thread-safe).
func (l *Language) NewParser() *sitter.Parser {
	p := sitter.NewParser()
	p.SetLanguage(l.lang)
	return p
}

// Languages maps language names to their configuration.
// Populated by init() functions in per-language files.
var Languages = map[string]*Language{}

// extensionMap is built lazily after all init() functions have run.
var extensionMap map[string]string
var extensionOnce sync.Once

func getExtensionMap() map[string]string {
	extensionOnce.Do(func() {
		extensionMap = make(map[string]string)
		for _, l := range Languages {
			for _, ext := range l.Extensions {
				extensionMap[ext] = l.Name
			}
		}
	})
	return extensionMap
}

// ForExtension returns the language name for a file extension, or "" if unsupported.
func ForExtension(ext string) string {
	return getExtensionMap()[strings.ToLower(ext)]
}

// Extensions returns every registered extension, sorted.
func Extensions() []string {
	m := getExtensionMap()
	exts := make([]string, 0, len(m))
	for ext := range m {
		exts = append(exts, ext)
	}
	sort.Strings(exts)
	return exts
}

// NodeText returns the source text of a tree-sitter node.
func NodeText(node *sitter.Node, source []byte) string {
	if node == nil {
		return ""
	}
	return string(source[node.StartByte():node.EndByte()])
}

// CollapseWhitespace replaces runs of whitespace with a single space and trims.
func CollapseWhitespace(s string) string {
	return strings.TrimSpace(whitespaceRe.ReplaceAllString(s, " "))
}

// FirstError returns the 1-based line of the first ERROR or missing node in
// the tree, or 0 if the tree is clean.
func FirstError(root *sitter.Node) int {
	if root == nil || !root.HasError() {
		return 0
	}
	var line int
	var visit func(n *sitter.Node) bool
	visit = func(n *sitter.Node) bool {
		if n.Type() == "ERROR" || n.IsMissing() {
			line = int(n.StartPoint().Row) + 1
			return true
		}
		if !n.HasError() {
			return false
		}
		for i := 0; i < int(n.ChildCount()); i++ {
			if c := n.Child(i); c != nil && visit(c) {
				return true
			}
		}
		return false
	}
	if !visit(root) {
		line = int(root.StartPoint().Row) + 1
	}
	return line
}

func line(n *sitter.Node) int {
	return int(n.StartPoint().Row) + 1
}

func endLine(n *sitter.Node) int {
	return int(n.EndPoint().Row) + 1
}

func column(n *sitter.Node) int {
	return int(n.StartPoint().Column) + 1
}

func countLines(source []byte) int {
	if len(source) == 0 {
		return 0
	}
	n := strings.Count(string(source), "\n")
	if source[len(source)-1] != '\n' {
		n++
	}
	return n
}

// builder accumulates the nodes of one file while an extractor walks it.
type builder struct {
	relPath string
	source  []byte
	parsed  *model.ParsedFile
	file    *model.FileNode
	seen    map[string]int

	// declared maps top-level names to the kind an export of them would have.
	declared map[string]model.ExportKind
	symbols  map[string]*model.Node
}

func newBuilder(language, relPath string, source []byte) *builder {
	lines := countLines(source)
	fileNode := &model.FileNode{
		Language:  language,
		LineCount: lines,
	}
	name := relPath
	if i := strings.LastIndex(relPath, "/"); i >= 0 {
		name = relPath[i+1:]
	}
	return &builder{
		relPath: relPath,
		source:  source,
		file:    fileNode,
		parsed: &model.ParsedFile{
			File: &model.Node{
				ID:       model.FileID(relPath),
				Type:     model.NodeFile,
				Name:     name,
				FilePath: relPath,
				Line:     1,
				EndLine:  max(lines, 1),
				File:     fileNode,
			},
		},
		seen:     make(map[string]int),
		declared: make(map[string]model.ExportKind),
		symbols:  make(map[string]*model.Node),
	}
}

// uniqueID suffixes repeated IDs with ~2, ~3... in encounter order.
func (b *builder) uniqueID(id string) string {
	b.seen[id]++
	if n := b.seen[id]; n > 1 {
		return fmt.Sprintf("%s~%d", id, n)
	}
	return id
}

func (b *builder) text(n *sitter.Node) string {
	return NodeText(n, b.source)
}

func (b *builder) addFunction(qualified string, decl *sitter.Node, fn *model.FunctionNode) *model.Node {
	l := line(decl)
	fn.ParentFileID = b.parsed.File.ID
	fn.Source = b.text(decl)
	if fn.Params == nil {
		fn.Params = []model.Param{}
	}
	node := &model.Node{
		ID:       b.uniqueID(model.FunctionID(b.relPath, qualified, l)),
		Type:     model.NodeFunction,
		Name:     qualified,
		FilePath: b.relPath,
		Line:     l,
		EndLine:  endLine(decl),
		Function: fn,
	}
	b.parsed.Functions = append(b.parsed.Functions, node)
	b.file.Functions = append(b.file.Functions, node.ID)
	if fn.ParentClassID == "" {
		b.symbols[qualified] = node
		b.declared[qualified] = model.ExportFunction
	}
	return node
}

func (b *builder) addClass(name string, decl *sitter.Node, cls *model.ClassNode) *model.Node {
	l := line(decl)
	cls.ParentFileID = b.parsed.File.ID
	if cls.Methods == nil {
		cls.Methods = []string{}
	}
	if cls.Properties == nil {
		cls.Properties = []model.Property{}
	}
	if cls.Implements == nil {
		cls.Implements = []string{}
	}
	node := &model.Node{
		ID:       b.uniqueID(model.ClassID(b.relPath, name, l)),
		Type:     model.NodeClass,
		Name:     name,
		FilePath: b.relPath,
		Line:     l,
		EndLine:  endLine(decl),
		Class:    cls,
	}
	b.parsed.Classes = append(b.parsed.Classes, node)
	b.file.Classes = append(b.file.Classes, node.ID)
	b.symbols[name] = node
	if cls.IsInterface {
		b.declared[name] = model.ExportInterface
	} else {
		b.declared[name] = model.ExportClass
	}
	return node
}

func (b *builder) declare(name string, kind model.ExportKind) {
	if name == "" {
		return
	}
	if _, ok := b.declared[name]; !ok {
		b.declared[name] = kind
	}
}

// finish resolves export kinds against local declarations, marks exported
// functions and classes, and fills empty slices.
func (b *builder) finish() *model.ParsedFile {
	for i := range b.file.Exports {
		exp := &b.file.Exports[i]
		if exp.Source != "" || exp.Local == "" {
			continue
		}
		if kind, ok := b.declared[exp.Local]; ok {
			exp.Kind = kind
		}
		if n, ok := b.symbols[exp.Local]; ok {
			switch {
			case n.Function != nil:
				n.Function.IsExported = true
			case n.Class != nil:
				n.Class.IsExported = true
			}
		}
	}
	if b.file.Imports == nil {
		b.file.Imports = []model.Import{}
	}
	if b.file.Exports == nil {
		b.file.Exports = []model.Export{}
	}
	if b.file.Functions == nil {
		b.file.Functions = []string{}
	}
	if b.file.Classes == nil {
		b.file.Classes = []string{}
	}
	if b.file.TopLevelReferences == nil {
		b.file.TopLevelReferences = []model.Reference{}
	}
	return b.parsed
}

// metrics describes which syntax nodes deepen nesting and which are decision
// points for a language.
type metrics struct {
	nesting  map[string]bool
	decision map[string]bool
	// flat reports nodes that continue an enclosing construct (else-if, elif)
	// rather than nesting inside it.
	flat func(n *sitter.Node) bool
	// boolean reports whether a binary node is a short-circuit operator.
	boolean func(n *sitter.Node, source []byte) bool
}

func set(items ...string) map[string]bool {
	m := make(map[string]bool, len(items))
	for _, s := range items {
		m[s] = true
	}
	return m
}

// measure returns the maximum block nesting depth and the cyclomatic
// complexity (decision points + 1) of a function body.
func (m *metrics) measure(body *sitter.Node, source []byte) (int, int) {
	if body == nil {
		return 0, 1
	}
	maxDepth, decisions := 0, 0
	var walk func(n *sitter.Node, depth int)
	walk = func(n *sitter.Node, depth int) {
		t := n.Type()
		if m.decision[t] || (m.boolean != nil && m.boolean(n, source)) {
			decisions++
		}
		if m.nesting[t] && !(m.flat != nil && m.flat(n)) {
			depth++
			if depth > maxDepth {
				maxDepth = depth
			}
		}
		for i := 0; i < int(n.NamedChildCount()); i++ {
			c := n.NamedChild(i)
			if c != nil {
				walk(c, depth)
			}
		}
	}
	walk(body, 0)
	return maxDepth, decisions + 1
}

// refCollector gathers references in source order.
type refCollector struct {
	refs []model.Reference
}

func (r *refCollector) add(name, object string, kind model.RefKind, n *sitter.Node) {
	if name == "" {
		return
	}
	r.refs = append(r.refs, model.Reference{
		Name:   name,
		Object: object,
		Kind:   kind,
		Line:   line(n),
		Column: column(n),
	})
}

func (r *refCollector) result() []model.Reference {
	if r.refs == nil {
		return []model.Reference{}
	}
	return r.refs
}

func strPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func unquote(s string) string {
	s = strings.TrimSpace(s)
	if len(s) >= 2 {
		switch s[0] {
		case '"', '\'', '`':
			if s[len(s)-1] == s[0] {
				return s[1 : len(s)-1]
			}
		}
	}
	return s
}
