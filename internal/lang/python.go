package lang

import (
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/python"

	"github.com/phobologic/surveyor/internal/model"
)

func init() {
	Languages["python"] = &Language{
		Name:       "python",
		Extensions: []string{".py"},
		lang:       python.GetLanguage(),
		Typed:      true,
		Extract:    extractPython,
	}
}

var pythonMetrics = &metrics{
	nesting: set("if_statement", "for_statement", "while_statement", "try_statement",
		"with_statement", "match_statement"),
	decision: set("if_statement", "elif_clause", "for_statement", "while_statement",
		"except_clause", "conditional_expression", "case_clause", "for_in_clause",
		"if_clause", "boolean_operator"),
}

type pyExtractor struct {
	*builder
	// order lists top-level names in declaration order; all is the explicit
	// __all__ surface when the module defines one.
	order []string
	all   []string
}

func extractPython(root *sitter.Node, source []byte, relPath string) *model.ParsedFile {
	x := &pyExtractor{builder: newBuilder("python", relPath, source)}
	top := &refCollector{}
	for i := 0; i < int(root.NamedChildCount()); i++ {
		if c := root.NamedChild(i); c != nil {
			x.statement(c, top)
		}
	}
	x.file.TopLevelReferences = top.result()
	x.exports()
	return x.finish()
}

func (x *pyExtractor) statement(n *sitter.Node, top *refCollector) {
	switch n.Type() {
	case "import_statement":
		x.importStatement(n)
	case "import_from_statement":
		x.importFrom(n)
	case "function_definition":
		x.function(n, n, nil)
	case "class_definition":
		x.class(n, n)
	case "decorated_definition":
		x.decorated(n, top)
	case "expression_statement":
		x.assignment(n, top)
	case "comment", "future_import_statement":
	default:
		x.collect(n, top)
	}
}

func (x *pyExtractor) decorated(n *sitter.Node, top *refCollector) {
	for i := 0; i < int(n.NamedChildCount()); i++ {
		if c := n.NamedChild(i); c.Type() == "decorator" {
			x.collect(c, top)
		}
	}
	def := n.ChildByFieldName("definition")
	if def == nil {
		return
	}
	switch def.Type() {
	case "function_definition":
		x.function(n, def, nil)
	case "class_definition":
		x.class(n, def)
	}
}

func (x *pyExtractor) importStatement(n *sitter.Node) {
	for i := 0; i < int(n.NamedChildCount()); i++ {
		c := n.NamedChild(i)
		var module, local string
		switch c.Type() {
		case "dotted_name":
			module = x.text(c)
			local = module
		case "aliased_import":
			module = x.text(c.ChildByFieldName("name"))
			local = x.text(c.ChildByFieldName("alias"))
		default:
			continue
		}
		x.file.Imports = append(x.file.Imports, model.Import{
			Source: modulePath("", module),
			Items:  []model.ImportItem{{Name: "*", Local: local}},
			Line:   line(n),
		})
	}
}

func (x *pyExtractor) importFrom(n *sitter.Node) {
	mod := n.ChildByFieldName("module_name")
	if mod == nil {
		return
	}
	var source string
	if mod.Type() == "relative_import" {
		var prefix, name string
		for i := 0; i < int(mod.NamedChildCount()); i++ {
			c := mod.NamedChild(i)
			switch c.Type() {
			case "import_prefix":
				prefix = x.text(c)
			case "dotted_name":
				name = x.text(c)
			}
		}
		source = modulePath(prefix, name)
	} else {
		source = modulePath("", x.text(mod))
	}

	imp := model.Import{Source: source, Items: []model.ImportItem{}, Line: line(n)}
	for i := 0; i < int(n.NamedChildCount()); i++ {
		c := n.NamedChild(i)
		if c.StartByte() == mod.StartByte() {
			continue
		}
		switch c.Type() {
		case "dotted_name":
			name := x.text(c)
			imp.Items = append(imp.Items, model.ImportItem{Name: name, Local: name})
		case "aliased_import":
			imp.Items = append(imp.Items, model.ImportItem{
				Name:  x.text(c.ChildByFieldName("name")),
				Local: x.text(c.ChildByFieldName("alias")),
			})
		case "wildcard_import":
			imp.Items = append(imp.Items, model.ImportItem{Name: "*"})
		}
	}
	x.file.Imports = append(x.file.Imports, imp)
}

// modulePath converts a Python module reference into a slash path:
// ("", "pkg.mod") is "pkg/mod", (".", "a") is "./a", ("..", "") is "..".
func modulePath(prefix, dotted string) string {
	path := strings.ReplaceAll(dotted, ".", "/")
	if prefix == "" {
		return path
	}
	var rel string
	if len(prefix) == 1 {
		rel = "."
	} else {
		rel = strings.TrimSuffix(strings.Repeat("../", len(prefix)-1), "/")
	}
	if path == "" {
		return rel
	}
	return rel + "/" + path
}

func (x *pyExtractor) assignment(n *sitter.Node, top *refCollector) {
	expr := n.NamedChild(0)
	if expr == nil || expr.Type() != "assignment" {
		x.collect(n, top)
		return
	}
	left := expr.ChildByFieldName("left")
	right := expr.ChildByFieldName("right")
	if left != nil && left.Type() == "identifier" {
		name := x.text(left)
		if name == "__all__" {
			x.all = x.stringList(right)
			return
		}
		x.declare(name, model.ExportVariable)
		x.order = append(x.order, name)
	}
	if t := expr.ChildByFieldName("type"); t != nil {
		x.collectType(t, top)
	}
	if right != nil {
		x.collect(right, top)
	}
}

func (x *pyExtractor) stringList(n *sitter.Node) []string {
	names := []string{}
	if n == nil {
		return names
	}
	for i := 0; i < int(n.NamedChildCount()); i++ {
		if c := n.NamedChild(i); c.Type() == "string" {
			names = append(names, unquote(x.text(c)))
		}
	}
	return names
}

// exports applies __all__ when present and public top-level names otherwise.
func (x *pyExtractor) exports() {
	names := x.all
	if names == nil {
		for _, name := range x.order {
			if !strings.HasPrefix(name, "_") {
				names = append(names, name)
			}
		}
	}
	seen := make(map[string]bool)
	for _, name := range names {
		if seen[name] {
			continue
		}
		seen[name] = true
		x.file.Exports = append(x.file.Exports, model.Export{
			Name:  name,
			Kind:  model.ExportVariable,
			Local: name,
			Line:  x.declLine(name),
		})
	}
}

func (x *pyExtractor) declLine(name string) int {
	if n, ok := x.symbols[name]; ok {
		return n.Line
	}
	return 0
}

// function extracts a def. decl is the decorated definition when present and
// carries the node's position and source.
func (x *pyExtractor) function(decl, def *sitter.Node, class *model.Node) *model.Node {
	name := x.text(def.ChildByFieldName("name"))
	fn := &model.FunctionNode{
		IsAsync: hasToken(def, "async"),
		Params:  x.params(def.ChildByFieldName("parameters"), class != nil),
	}
	refs := &refCollector{}
	if rt := def.ChildByFieldName("return_type"); rt != nil {
		fn.ReturnType = strPtr(CollapseWhitespace(x.text(rt)))
		x.collectType(rt, refs)
	}
	if ps := def.ChildByFieldName("parameters"); ps != nil {
		for i := 0; i < int(ps.NamedChildCount()); i++ {
			p := ps.NamedChild(i)
			if t := p.ChildByFieldName("type"); t != nil {
				x.collectType(t, refs)
			}
			if v := p.ChildByFieldName("value"); v != nil {
				x.collect(v, refs)
			}
		}
	}
	body := def.ChildByFieldName("body")
	fn.MaxNestingDepth, fn.Complexity = pythonMetrics.measure(body, x.source)
	x.collect(body, refs)
	fn.References = refs.result()

	qualified := name
	if class != nil {
		qualified = class.Name + "." + name
		fn.ParentClassID = class.ID
	}
	node := x.addFunction(qualified, decl, fn)
	if class != nil {
		class.Class.Methods = append(class.Class.Methods, node.ID)
		if name == "__init__" {
			x.instanceAttributes(body, class.Class)
		}
	} else {
		x.order = append(x.order, name)
	}
	return node
}

func (x *pyExtractor) params(ps *sitter.Node, method bool) []model.Param {
	params := []model.Param{}
	if ps == nil {
		return params
	}
	for i := 0; i < int(ps.NamedChildCount()); i++ {
		c := ps.NamedChild(i)
		var p model.Param
		switch c.Type() {
		case "identifier":
			p.Name = x.text(c)
		case "typed_parameter":
			for j := 0; j < int(c.NamedChildCount()); j++ {
				if id := c.NamedChild(j); id.Type() != "type" {
					p.Name = x.text(id)
					break
				}
			}
			p.Type = strPtr(CollapseWhitespace(x.text(c.ChildByFieldName("type"))))
		case "default_parameter", "typed_default_parameter":
			p.Name = x.text(c.ChildByFieldName("name"))
			p.IsOptional = true
			p.DefaultValue = strPtr(CollapseWhitespace(x.text(c.ChildByFieldName("value"))))
			if t := c.ChildByFieldName("type"); t != nil {
				p.Type = strPtr(CollapseWhitespace(x.text(t)))
			}
		case "list_splat_pattern", "dictionary_splat_pattern":
			p.Name = x.text(c)
			p.IsOptional = true
		default:
			continue
		}
		if method && len(params) == 0 && i == 0 && (p.Name == "self" || p.Name == "cls") {
			continue
		}
		params = append(params, p)
	}
	return params
}

func (x *pyExtractor) class(decl, def *sitter.Node) *model.Node {
	name := x.text(def.ChildByFieldName("name"))
	cls := &model.ClassNode{}
	if supers := def.ChildByFieldName("superclasses"); supers != nil {
		for i := 0; i < int(supers.NamedChildCount()); i++ {
			s := supers.NamedChild(i)
			if s.Type() != "identifier" && s.Type() != "attribute" {
				continue
			}
			base := x.text(s)
			if cls.Extends == nil {
				cls.Extends = strPtr(base)
			} else {
				cls.Implements = append(cls.Implements, base)
			}
		}
	}
	node := x.addClass(name, decl, cls)
	x.order = append(x.order, name)

	refs := &refCollector{}
	body := def.ChildByFieldName("body")
	if body != nil {
		for i := 0; i < int(body.NamedChildCount()); i++ {
			m := body.NamedChild(i)
			switch m.Type() {
			case "function_definition":
				x.function(m, m, node)
			case "decorated_definition":
				if d := m.ChildByFieldName("definition"); d != nil && d.Type() == "function_definition" {
					x.function(m, d, node)
				}
			case "expression_statement":
				x.classAttribute(m, cls, refs)
			default:
				x.collect(m, refs)
			}
		}
	}
	cls.References = refs.result()
	return node
}

func (x *pyExtractor) classAttribute(stmt *sitter.Node, cls *model.ClassNode, refs *refCollector) {
	expr := stmt.NamedChild(0)
	if expr == nil || expr.Type() != "assignment" {
		x.collect(stmt, refs)
		return
	}
	left := expr.ChildByFieldName("left")
	if left != nil && left.Type() == "identifier" {
		prop := model.Property{Name: x.text(left), Visibility: pyVisibility(x.text(left))}
		if t := expr.ChildByFieldName("type"); t != nil {
			prop.Type = strPtr(CollapseWhitespace(x.text(t)))
			prop.IsStatic = strings.HasPrefix(*prop.Type, "ClassVar")
			x.collectType(t, refs)
		}
		cls.Properties = append(cls.Properties, prop)
	}
	x.collect(expr.ChildByFieldName("right"), refs)
}

// instanceAttributes records `self.x = ...` assignments in __init__.
func (x *pyExtractor) instanceAttributes(body *sitter.Node, cls *model.ClassNode) {
	if body == nil {
		return
	}
	known := make(map[string]bool)
	for _, p := range cls.Properties {
		known[p.Name] = true
	}
	for i := 0; i < int(body.NamedChildCount()); i++ {
		stmt := body.NamedChild(i)
		if stmt.Type() != "expression_statement" {
			continue
		}
		expr := stmt.NamedChild(0)
		if expr == nil || expr.Type() != "assignment" {
			continue
		}
		left := expr.ChildByFieldName("left")
		if left == nil || left.Type() != "attribute" || x.text(left.ChildByFieldName("object")) != "self" {
			continue
		}
		name := x.text(left.ChildByFieldName("attribute"))
		if known[name] {
			continue
		}
		known[name] = true
		prop := model.Property{Name: name, Visibility: pyVisibility(name)}
		if t := expr.ChildByFieldName("type"); t != nil {
			prop.Type = strPtr(CollapseWhitespace(x.text(t)))
		}
		cls.Properties = append(cls.Properties, prop)
	}
}

func pyVisibility(name string) model.Visibility {
	switch {
	case strings.HasPrefix(name, "__") && !strings.HasSuffix(name, "__"):
		return model.Private
	case strings.HasPrefix(name, "_"):
		return model.Protected
	}
	return model.Public
}

func (x *pyExtractor) collect(n *sitter.Node, refs *refCollector) {
	if n == nil {
		return
	}
	switch n.Type() {
	case "call":
		fn := n.ChildByFieldName("function")
		switch {
		case fn == nil:
		case fn.Type() == "identifier":
			refs.add(x.text(fn), "", model.RefCall, fn)
		case fn.Type() == "attribute":
			obj := fn.ChildByFieldName("object")
			attr := fn.ChildByFieldName("attribute")
			object := ""
			if obj != nil && (obj.Type() == "identifier" || obj.Type() == "attribute") {
				object = x.text(obj)
			}
			refs.add(x.text(attr), object, model.RefCall, attr)
			if object != "self" && object != "cls" {
				x.collect(obj, refs)
			}
		default:
			x.collect(fn, refs)
		}
		x.collect(n.ChildByFieldName("arguments"), refs)
		return
	case "attribute":
		x.collect(n.ChildByFieldName("object"), refs)
		return
	case "keyword_argument":
		x.collect(n.ChildByFieldName("value"), refs)
		return
	case "type":
		x.collectType(n, refs)
		return
	case "identifier":
		if !pyBinding(n) {
			refs.add(x.text(n), "", model.RefValue, n)
		}
		return
	case "comment", "string", "integer", "float", "lambda_parameters":
		return
	}
	for i := 0; i < int(n.NamedChildCount()); i++ {
		x.collect(n.NamedChild(i), refs)
	}
}

// collectType records every identifier inside an annotation as a type use.
func (x *pyExtractor) collectType(n *sitter.Node, refs *refCollector) {
	if n == nil {
		return
	}
	switch n.Type() {
	case "identifier":
		refs.add(x.text(n), "", model.RefType, n)
		return
	case "attribute":
		refs.add(x.text(n.ChildByFieldName("attribute")), x.text(n.ChildByFieldName("object")), model.RefType, n)
		return
	case "string":
		return
	}
	for i := 0; i < int(n.NamedChildCount()); i++ {
		x.collectType(n.NamedChild(i), refs)
	}
}

func pyBinding(n *sitter.Node) bool {
	p := n.Parent()
	if p == nil {
		return false
	}
	field := ""
	switch p.Type() {
	case "assignment", "augmented_assignment", "for_statement", "for_in_clause":
		field = "left"
	case "default_parameter", "typed_default_parameter":
		field = "name"
	case "as_pattern_target", "parameters", "typed_parameter", "global_statement",
		"nonlocal_statement", "pattern_list", "tuple_pattern", "list_splat_pattern",
		"dictionary_splat_pattern", "aliased_import", "dotted_name":
		return true
	default:
		return false
	}
	f := p.ChildByFieldName(field)
	return f != nil && f.StartByte() == n.StartByte() && f.EndByte() == n.EndByte()
}
