package lang

import (
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/javascript"
	"github.com/smacker/go-tree-sitter/typescript/tsx"
	"github.com/smacker/go-tree-sitter/typescript/typescript"

	"github.com/phobologic/surveyor/internal/model"
)

func init() {
	Languages["typescript"] = &Language{
		Name:       "typescript",
		Extensions: []string{".ts", ".mts", ".cts"},
		lang:       typescript.GetLanguage(),
		Typed:      true,
		Extract:    extractECMAScript("typescript"),
	}
	Languages["tsx"] = &Language{
		Name:       "tsx",
		Extensions: []string{".tsx"},
		lang:       tsx.GetLanguage(),
		Typed:      true,
		Extract:    extractECMAScript("tsx"),
	}
	Languages["javascript"] = &Language{
		Name:       "javascript",
		Extensions: []string{".js", ".jsx", ".mjs", ".cjs"},
		lang:       javascript.GetLanguage(),
		Extract:    extractECMAScript("javascript"),
	}
}

var ecmaMetrics = &metrics{
	nesting: set("if_statement", "for_statement", "for_in_statement", "while_statement",
		"do_statement", "switch_statement", "try_statement"),
	decision: set("if_statement", "for_statement", "for_in_statement", "while_statement",
		"do_statement", "switch_case", "catch_clause", "ternary_expression"),
	flat: func(n *sitter.Node) bool {
		p := n.Parent()
		return n.Type() == "if_statement" && p != nil && p.Type() == "else_clause"
	},
	boolean: func(n *sitter.Node, source []byte) bool {
		if n.Type() != "binary_expression" {
			return false
		}
		switch NodeText(n.ChildByFieldName("operator"), source) {
		case "&&", "||", "??":
			return true
		}
		return false
	},
}

type ecmaExtractor struct {
	*builder
}

func extractECMAScript(language string) ExtractFunc {
	return func(root *sitter.Node, source []byte, relPath string) *model.ParsedFile {
		x := &ecmaExtractor{builder: newBuilder(language, relPath, source)}
		top := &refCollector{}
		for i := 0; i < int(root.NamedChildCount()); i++ {
			if c := root.NamedChild(i); c != nil {
				x.statement(c, top)
			}
		}
		x.file.TopLevelReferences = top.result()
		return x.finish()
	}
}

func (x *ecmaExtractor) statement(n *sitter.Node, top *refCollector) {
	switch n.Type() {
	case "import_statement":
		x.importStatement(n)
	case "export_statement":
		x.exportStatement(n, top)
	case "expression_statement":
		x.expressionStatement(n, top)
	case "comment":
	default:
		if x.declaration(n, top) == nil {
			x.collect(n, top)
		}
	}
}

func (x *ecmaExtractor) importStatement(n *sitter.Node) {
	imp := model.Import{
		Source: unquote(x.text(n.ChildByFieldName("source"))),
		Items:  []model.ImportItem{},
		Line:   line(n),
	}
	for i := 0; i < int(n.ChildCount()); i++ {
		c := n.Child(i)
		if c == nil {
			continue
		}
		switch c.Type() {
		case "type":
			if !c.IsNamed() {
				imp.IsTypeOnly = true
			}
		case "import_clause":
			imp.Items = x.importClause(c)
		case "import_require_clause":
			imp.Source = unquote(x.text(c.ChildByFieldName("source")))
			if id := c.NamedChild(0); id != nil && id.Type() == "identifier" {
				imp.Items = append(imp.Items, model.ImportItem{Name: "default", Local: x.text(id)})
			}
		}
	}
	x.file.Imports = append(x.file.Imports, imp)
}

func (x *ecmaExtractor) importClause(c *sitter.Node) []model.ImportItem {
	items := []model.ImportItem{}
	for i := 0; i < int(c.NamedChildCount()); i++ {
		ch := c.NamedChild(i)
		switch ch.Type() {
		case "identifier":
			items = append(items, model.ImportItem{Name: "default", Local: x.text(ch)})
		case "namespace_import":
			for j := 0; j < int(ch.NamedChildCount()); j++ {
				if id := ch.NamedChild(j); id.Type() == "identifier" {
					items = append(items, model.ImportItem{Name: "*", Local: x.text(id)})
				}
			}
		case "named_imports":
			for j := 0; j < int(ch.NamedChildCount()); j++ {
				sp := ch.NamedChild(j)
				if sp.Type() != "import_specifier" {
					continue
				}
				name := unquote(x.text(sp.ChildByFieldName("name")))
				local := name
				if alias := sp.ChildByFieldName("alias"); alias != nil {
					local = x.text(alias)
				}
				items = append(items, model.ImportItem{Name: name, Local: local})
			}
		}
	}
	return items
}

func (x *ecmaExtractor) exportStatement(n *sitter.Node, top *refCollector) {
	l := line(n)
	isDefault := hasToken(n, "default")

	if decl := n.ChildByFieldName("declaration"); decl != nil {
		for _, name := range x.declaration(decl, top) {
			exp := model.Export{Name: name, Kind: model.ExportVariable, Local: name, Line: l}
			if isDefault {
				exp.Name, exp.IsDefault = "default", true
			}
			x.file.Exports = append(x.file.Exports, exp)
		}
		return
	}
	if value := n.ChildByFieldName("value"); value != nil {
		x.exportDefault(value, n, top)
		return
	}

	source := unquote(x.text(n.ChildByFieldName("source")))
	for i := 0; i < int(n.NamedChildCount()); i++ {
		c := n.NamedChild(i)
		switch c.Type() {
		case "export_clause":
			for j := 0; j < int(c.NamedChildCount()); j++ {
				sp := c.NamedChild(j)
				if sp.Type() != "export_specifier" {
					continue
				}
				local := unquote(x.text(sp.ChildByFieldName("name")))
				name := local
				if alias := sp.ChildByFieldName("alias"); alias != nil {
					name = unquote(x.text(alias))
				}
				exp := model.Export{Name: name, Kind: model.ExportVariable, Local: local, Line: l}
				if source != "" {
					exp.Kind, exp.Source = model.ExportReexport, source
				}
				exp.IsDefault = name == "default"
				x.file.Exports = append(x.file.Exports, exp)
			}
			return
		case "namespace_export":
			name := ""
			for j := 0; j < int(c.NamedChildCount()); j++ {
				name = unquote(x.text(c.NamedChild(j)))
			}
			x.file.Exports = append(x.file.Exports, model.Export{
				Name: name, Kind: model.ExportReexport, Local: "*", Source: source, Line: l,
			})
			return
		}
	}
	if source != "" && hasToken(n, "*") {
		x.file.Exports = append(x.file.Exports, model.Export{
			Name: "*", Kind: model.ExportReexport, Source: source, Line: l,
		})
	}
}

// exportDefault handles `export default <expression>`. Anonymous functions
// and classes are named "default".
func (x *ecmaExtractor) exportDefault(value, stmt *sitter.Node, top *refCollector) {
	exp := model.Export{Name: "default", Kind: model.ExportVariable, IsDefault: true, Line: line(stmt)}
	switch value.Type() {
	case "identifier":
		exp.Local = x.text(value)
	case "function_expression", "function", "generator_function", "arrow_function":
		name := "default"
		if id := value.ChildByFieldName("name"); id != nil {
			name = x.text(id)
		}
		x.function(name, stmt, value, nil)
		exp.Local = name
	case "class":
		name := "default"
		if id := value.ChildByFieldName("name"); id != nil {
			name = x.text(id)
		}
		x.class(name, value)
		exp.Local = name
	default:
		x.collect(value, top)
	}
	x.file.Exports = append(x.file.Exports, exp)
}

// declaration extracts a declaration statement and returns the top-level
// names it binds. It returns nil for anything that is not a declaration.
func (x *ecmaExtractor) declaration(n *sitter.Node, top *refCollector) []string {
	nameOf := func() string { return x.text(n.ChildByFieldName("name")) }
	switch n.Type() {
	case "function_declaration", "generator_function_declaration":
		name := nameOf()
		x.function(name, n, n, nil)
		return []string{name}
	case "function_signature":
		name := nameOf()
		x.declare(name, model.ExportFunction)
		return []string{name}
	case "class_declaration", "abstract_class_declaration":
		name := nameOf()
		x.class(name, n)
		return []string{name}
	case "interface_declaration":
		return []string{x.interfaceDecl(n)}
	case "type_alias_declaration":
		name := nameOf()
		x.declare(name, model.ExportType)
		return []string{name}
	case "enum_declaration":
		name := nameOf()
		x.declare(name, model.ExportEnum)
		return []string{name}
	case "lexical_declaration", "variable_declaration":
		return x.variableDecl(n, top)
	}
	return nil
}

func (x *ecmaExtractor) variableDecl(n *sitter.Node, top *refCollector) []string {
	names := []string{}
	for i := 0; i < int(n.NamedChildCount()); i++ {
		d := n.NamedChild(i)
		if d.Type() != "variable_declarator" {
			continue
		}
		nameNode := d.ChildByFieldName("name")
		value := d.ChildByFieldName("value")

		if src, ok := x.requireSource(value); ok {
			x.file.Imports = append(x.file.Imports, model.Import{
				Source: src,
				Items:  x.requireItems(nameNode),
				Line:   line(d),
			})
			continue
		}

		if nameNode != nil && nameNode.Type() == "identifier" {
			name := x.text(nameNode)
			names = append(names, name)
			switch {
			case isFunctionValue(value):
				x.function(name, d, value, nil)
				continue
			case value != nil && value.Type() == "class":
				x.class(name, value)
				continue
			}
			x.declare(name, model.ExportVariable)
		} else if nameNode != nil {
			for _, name := range x.patternNames(nameNode) {
				names = append(names, name)
				x.declare(name, model.ExportVariable)
			}
		}
		if value != nil {
			x.collect(value, top)
		}
	}
	return names
}

func (x *ecmaExtractor) requireSource(value *sitter.Node) (string, bool) {
	if value == nil || value.Type() != "call_expression" {
		return "", false
	}
	if x.text(value.ChildByFieldName("function")) != "require" {
		return "", false
	}
	args := value.ChildByFieldName("arguments")
	if args == nil || args.NamedChildCount() == 0 {
		return "", false
	}
	arg := args.NamedChild(0)
	if arg.Type() != "string" {
		return "", false
	}
	return unquote(x.text(arg)), true
}

func (x *ecmaExtractor) requireItems(target *sitter.Node) []model.ImportItem {
	items := []model.ImportItem{}
	if target == nil {
		return items
	}
	switch target.Type() {
	case "identifier":
		items = append(items, model.ImportItem{Name: "default", Local: x.text(target)})
	case "object_pattern":
		for i := 0; i < int(target.NamedChildCount()); i++ {
			c := target.NamedChild(i)
			switch c.Type() {
			case "shorthand_property_identifier_pattern":
				name := x.text(c)
				items = append(items, model.ImportItem{Name: name, Local: name})
			case "pair_pattern":
				items = append(items, model.ImportItem{
					Name:  x.text(c.ChildByFieldName("key")),
					Local: x.text(c.ChildByFieldName("value")),
				})
			}
		}
	}
	return items
}

func (x *ecmaExtractor) patternNames(p *sitter.Node) []string {
	var names []string
	var walk func(n *sitter.Node)
	walk = func(n *sitter.Node) {
		switch n.Type() {
		case "identifier", "shorthand_property_identifier_pattern":
			names = append(names, x.text(n))
			return
		case "pair_pattern":
			if v := n.ChildByFieldName("value"); v != nil {
				walk(v)
			}
			return
		case "assignment_pattern":
			if l := n.ChildByFieldName("left"); l != nil {
				walk(l)
			}
			return
		}
		for i := 0; i < int(n.NamedChildCount()); i++ {
			walk(n.NamedChild(i))
		}
	}
	walk(p)
	return names
}

// expressionStatement recognises CommonJS export assignments and otherwise
// records the statement's references at file level.
func (x *ecmaExtractor) expressionStatement(n *sitter.Node, top *refCollector) {
	expr := n.NamedChild(0)
	if expr != nil && expr.Type() == "assignment_expression" {
		target := x.text(expr.ChildByFieldName("left"))
		right := expr.ChildByFieldName("right")
		switch {
		case target == "module.exports":
			x.commonJSDefault(right, n, top)
			return
		case strings.HasPrefix(target, "exports.") || strings.HasPrefix(target, "module.exports."):
			x.commonJSNamed(target[strings.LastIndex(target, ".")+1:], right, n, top)
			return
		}
	}
	x.collect(n, top)
}

func (x *ecmaExtractor) commonJSDefault(right, stmt *sitter.Node, top *refCollector) {
	if right == nil {
		return
	}
	l := line(stmt)
	switch right.Type() {
	case "object":
		for i := 0; i < int(right.NamedChildCount()); i++ {
			c := right.NamedChild(i)
			switch c.Type() {
			case "shorthand_property_identifier":
				name := x.text(c)
				x.file.Exports = append(x.file.Exports, model.Export{Name: name, Kind: model.ExportVariable, Local: name, Line: l})
			case "pair":
				key := unquote(x.text(c.ChildByFieldName("key")))
				x.commonJSNamed(key, c.ChildByFieldName("value"), c, top)
			default:
				x.collect(c, top)
			}
		}
	default:
		x.exportDefault(right, stmt, top)
	}
}

func (x *ecmaExtractor) commonJSNamed(name string, value, decl *sitter.Node, top *refCollector) {
	exp := model.Export{Name: name, Kind: model.ExportVariable, Line: line(decl)}
	switch {
	case value == nil:
	case isFunctionValue(value):
		x.function(name, decl, value, nil)
		exp.Local = name
	case value.Type() == "identifier":
		exp.Local = x.text(value)
	default:
		x.collect(value, top)
	}
	x.file.Exports = append(x.file.Exports, exp)
}

func (x *ecmaExtractor) function(name string, decl, fnNode *sitter.Node, class *model.Node) *model.Node {
	fn := &model.FunctionNode{
		IsAsync: hasToken(fnNode, "async"),
		Params:  x.params(fnNode),
	}
	if rt := fnNode.ChildByFieldName("return_type"); rt != nil {
		fn.ReturnType = strPtr(typeText(x.text(rt)))
	}
	qualified := name
	if class != nil {
		qualified = class.Name + "." + name
		fn.ParentClassID = class.ID
	}
	body := fnNode.ChildByFieldName("body")
	fn.MaxNestingDepth, fn.Complexity = ecmaMetrics.measure(body, x.source)

	refs := &refCollector{}
	if ps := fnNode.ChildByFieldName("parameters"); ps != nil {
		x.collectParamRefs(ps, refs)
	}
	x.collect(fnNode.ChildByFieldName("return_type"), refs)
	if body != nil {
		x.collect(body, refs)
	}
	fn.References = refs.result()

	node := x.addFunction(qualified, decl, fn)
	if class != nil {
		class.Class.Methods = append(class.Class.Methods, node.ID)
	}
	return node
}

func (x *ecmaExtractor) params(fnNode *sitter.Node) []model.Param {
	params := []model.Param{}
	ps := fnNode.ChildByFieldName("parameters")
	if ps == nil {
		if p := fnNode.ChildByFieldName("parameter"); p != nil {
			params = append(params, model.Param{Name: x.text(p)})
		}
		return params
	}
	for i := 0; i < int(ps.NamedChildCount()); i++ {
		c := ps.NamedChild(i)
		switch c.Type() {
		case "required_parameter", "optional_parameter":
			p := model.Param{
				Name:       x.text(c.ChildByFieldName("pattern")),
				IsOptional: c.Type() == "optional_parameter",
			}
			if t := c.ChildByFieldName("type"); t != nil {
				p.Type = strPtr(typeText(x.text(t)))
			}
			if v := c.ChildByFieldName("value"); v != nil {
				p.DefaultValue = strPtr(CollapseWhitespace(x.text(v)))
				p.IsOptional = true
			}
			params = append(params, p)
		case "assignment_pattern":
			params = append(params, model.Param{
				Name:         x.text(c.ChildByFieldName("left")),
				IsOptional:   true,
				DefaultValue: strPtr(CollapseWhitespace(x.text(c.ChildByFieldName("right")))),
			})
		case "identifier", "rest_pattern", "object_pattern", "array_pattern":
			params = append(params, model.Param{Name: CollapseWhitespace(x.text(c))})
		}
	}
	return params
}

// collectParamRefs records type annotations and default values of parameters.
func (x *ecmaExtractor) collectParamRefs(ps *sitter.Node, refs *refCollector) {
	for i := 0; i < int(ps.NamedChildCount()); i++ {
		c := ps.NamedChild(i)
		for _, field := range []string{"type", "value", "right"} {
			if f := c.ChildByFieldName(field); f != nil {
				x.collect(f, refs)
			}
		}
	}
}

func (x *ecmaExtractor) class(name string, decl *sitter.Node) *model.Node {
	cls := &model.ClassNode{}
	for i := 0; i < int(decl.NamedChildCount()); i++ {
		if c := decl.NamedChild(i); c.Type() == "class_heritage" {
			x.heritage(c, cls)
		}
	}
	node := x.addClass(name, decl, cls)
	refs := &refCollector{}
	if body := decl.ChildByFieldName("body"); body != nil {
		for i := 0; i < int(body.NamedChildCount()); i++ {
			x.member(body.NamedChild(i), node, refs)
		}
	}
	cls.References = refs.result()
	return node
}

func (x *ecmaExtractor) heritage(h *sitter.Node, cls *model.ClassNode) {
	for i := 0; i < int(h.NamedChildCount()); i++ {
		c := h.NamedChild(i)
		switch c.Type() {
		case "extends_clause":
			v := c.ChildByFieldName("value")
			if v == nil {
				v = c.NamedChild(0)
			}
			if v != nil {
				cls.Extends = strPtr(baseTypeName(x.text(v)))
			}
		case "implements_clause":
			for j := 0; j < int(c.NamedChildCount()); j++ {
				cls.Implements = append(cls.Implements, baseTypeName(x.text(c.NamedChild(j))))
			}
		default:
			if cls.Extends == nil {
				cls.Extends = strPtr(baseTypeName(x.text(c)))
			}
		}
	}
}

func (x *ecmaExtractor) member(m *sitter.Node, class *model.Node, refs *refCollector) {
	cls := class.Class
	switch m.Type() {
	case "method_definition":
		name := x.text(m.ChildByFieldName("name"))
		x.function(name, m, m, class)
		if name == "constructor" {
			cls.Properties = append(cls.Properties, x.parameterProperties(m)...)
		}
	case "public_field_definition", "field_definition":
		nameNode := m.ChildByFieldName("name")
		if nameNode == nil {
			nameNode = m.ChildByFieldName("property")
		}
		name := x.text(nameNode)
		prop := model.Property{
			Name:       name,
			Visibility: model.Public,
			IsStatic:   hasToken(m, "static"),
			IsReadonly: hasToken(m, "readonly"),
		}
		if v := visibilityOf(m, x.source); v != "" {
			prop.Visibility = v
		}
		if strings.HasPrefix(name, "#") {
			prop.Visibility = model.Private
		}
		if t := m.ChildByFieldName("type"); t != nil {
			prop.Type = strPtr(typeText(x.text(t)))
			x.collect(t, refs)
		}
		value := m.ChildByFieldName("value")
		switch {
		case isFunctionValue(value):
			x.function(name, m, value, class)
		case value != nil:
			x.collect(value, refs)
		}
		cls.Properties = append(cls.Properties, prop)
	case "comment", "method_signature", "abstract_method_signature", "index_signature":
	default:
		x.collect(m, refs)
	}
}

// parameterProperties returns the properties declared through constructor
// parameters such as `constructor(private readonly db: Db)`.
func (x *ecmaExtractor) parameterProperties(ctor *sitter.Node) []model.Property {
	var props []model.Property
	ps := ctor.ChildByFieldName("parameters")
	if ps == nil {
		return nil
	}
	for i := 0; i < int(ps.NamedChildCount()); i++ {
		c := ps.NamedChild(i)
		vis := visibilityOf(c, x.source)
		readonly := hasToken(c, "readonly")
		if vis == "" && !readonly {
			continue
		}
		if vis == "" {
			vis = model.Public
		}
		prop := model.Property{
			Name:       x.text(c.ChildByFieldName("pattern")),
			Visibility: vis,
			IsReadonly: readonly,
		}
		if t := c.ChildByFieldName("type"); t != nil {
			prop.Type = strPtr(typeText(x.text(t)))
		}
		props = append(props, prop)
	}
	return props
}

func (x *ecmaExtractor) interfaceDecl(n *sitter.Node) string {
	name := x.text(n.ChildByFieldName("name"))
	cls := &model.ClassNode{IsInterface: true}
	for i := 0; i < int(n.NamedChildCount()); i++ {
		c := n.NamedChild(i)
		if c.Type() != "extends_type_clause" && c.Type() != "extends_clause" {
			continue
		}
		for j := 0; j < int(c.NamedChildCount()); j++ {
			base := baseTypeName(x.text(c.NamedChild(j)))
			if cls.Extends == nil {
				cls.Extends = strPtr(base)
			} else {
				cls.Implements = append(cls.Implements, base)
			}
		}
	}
	node := x.addClass(name, n, cls)
	refs := &refCollector{}
	if body := n.ChildByFieldName("body"); body != nil {
		for i := 0; i < int(body.NamedChildCount()); i++ {
			m := body.NamedChild(i)
			if m.Type() == "property_signature" {
				prop := model.Property{
					Name:       x.text(m.ChildByFieldName("name")),
					Visibility: model.Public,
					IsReadonly: hasToken(m, "readonly"),
				}
				if t := m.ChildByFieldName("type"); t != nil {
					prop.Type = strPtr(typeText(x.text(t)))
				}
				cls.Properties = append(cls.Properties, prop)
			}
			x.collect(m, refs)
		}
	}
	node.Class.References = refs.result()
	return name
}

// collect walks n and records calls, constructions, value uses and type
// uses of identifiers.
func (x *ecmaExtractor) collect(n *sitter.Node, refs *refCollector) {
	if n == nil {
		return
	}
	switch n.Type() {
	case "call_expression":
		x.callee(n.ChildByFieldName("function"), model.RefCall, refs)
		x.collect(n.ChildByFieldName("arguments"), refs)
		return
	case "new_expression":
		x.callee(n.ChildByFieldName("constructor"), model.RefNew, refs)
		x.collect(n.ChildByFieldName("arguments"), refs)
		return
	case "identifier", "shorthand_property_identifier":
		if !isBinding(n) {
			refs.add(x.text(n), "", model.RefValue, n)
		}
		return
	case "type_identifier":
		refs.add(x.text(n), "", model.RefType, n)
		return
	case "nested_type_identifier":
		refs.add(x.text(n.ChildByFieldName("name")), x.text(n.ChildByFieldName("module")), model.RefType, n)
		return
	case "comment", "string", "regex", "number", "property_identifier":
		return
	}
	for i := 0; i < int(n.NamedChildCount()); i++ {
		x.collect(n.NamedChild(i), refs)
	}
}

func (x *ecmaExtractor) callee(fn *sitter.Node, kind model.RefKind, refs *refCollector) {
	if fn == nil {
		return
	}
	switch fn.Type() {
	case "identifier":
		refs.add(x.text(fn), "", kind, fn)
	case "member_expression":
		obj := fn.ChildByFieldName("object")
		prop := fn.ChildByFieldName("property")
		object := ""
		if obj != nil {
			switch obj.Type() {
			case "this", "identifier", "member_expression":
				object = x.text(obj)
			}
		}
		if prop != nil {
			refs.add(x.text(prop), object, kind, prop)
		}
		if obj != nil && obj.Type() != "this" {
			x.collect(obj, refs)
		}
	default:
		x.collect(fn, refs)
	}
}

// isBinding reports whether an identifier declares a name rather than using
// one.
func isBinding(n *sitter.Node) bool {
	p := n.Parent()
	if p == nil {
		return false
	}
	field := ""
	switch p.Type() {
	case "variable_declarator", "function_declaration", "generator_function_declaration",
		"function_expression", "function", "class_declaration", "class", "method_definition":
		field = "name"
	case "required_parameter", "optional_parameter":
		field = "pattern"
	case "assignment_pattern":
		field = "left"
	case "arrow_function", "catch_clause":
		field = "parameter"
	case "for_in_statement":
		field = "left"
	case "formal_parameters", "import_specifier", "namespace_import", "import_clause",
		"labeled_statement", "break_statement", "continue_statement", "rest_pattern",
		"array_pattern", "export_specifier":
		return true
	default:
		return false
	}
	f := p.ChildByFieldName(field)
	return f != nil && f.StartByte() == n.StartByte() && f.EndByte() == n.EndByte()
}

func isFunctionValue(n *sitter.Node) bool {
	if n == nil {
		return false
	}
	switch n.Type() {
	case "arrow_function", "function_expression", "function", "generator_function":
		return true
	}
	return false
}

// hasToken reports whether n has an anonymous child token with the given text.
func hasToken(n *sitter.Node, tok string) bool {
	for i := 0; i < int(n.ChildCount()); i++ {
		if c := n.Child(i); c != nil && !c.IsNamed() && c.Type() == tok {
			return true
		}
	}
	return false
}

func visibilityOf(n *sitter.Node, source []byte) model.Visibility {
	for i := 0; i < int(n.NamedChildCount()); i++ {
		if c := n.NamedChild(i); c.Type() == "accessibility_modifier" {
			return model.Visibility(NodeText(c, source))
		}
	}
	return ""
}

// typeText strips the leading colon of a type annotation.
func typeText(s string) string {
	s = CollapseWhitespace(s)
	s = strings.TrimPrefix(s, ":")
	return strings.TrimSpace(s)
}

// baseTypeName drops type arguments: "Repo<User>" becomes "Repo".
func baseTypeName(s string) string {
	s = CollapseWhitespace(s)
	if i := strings.Index(s, "<"); i >= 0 {
		s = s[:i]
	}
	return strings.TrimSpace(s)
}
