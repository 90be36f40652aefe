package graph

import (
	"path"
	"sort"
	"strings"

	"github.com/phobologic/surveyor/internal/model"
)

// probeExtensions are tried, in order, when an import specifier omits the
// file extension.
var probeExtensions = []string{".ts", ".tsx", ".mts", ".cts", ".js", ".jsx", ".mjs", ".cjs", ".py"}

// maxReexportDepth bounds export chains so re-export cycles terminate.
const maxReexportDepth = 16

type alias struct {
	prefix   string
	suffix   string
	wildcard bool
	targets  []string
}

func (a alias) match(specifier string) (string, bool) {
	if !a.wildcard {
		return "", specifier == a.prefix
	}
	if len(specifier) < len(a.prefix)+len(a.suffix) ||
		!strings.HasPrefix(specifier, a.prefix) || !strings.HasSuffix(specifier, a.suffix) {
		return "", false
	}
	return specifier[len(a.prefix) : len(specifier)-len(a.suffix)], true
}

// compileAliases turns tsconfig-style path patterns ("@/*" -> ["src/*"])
// into matchers, longest prefix first.
func compileAliases(m map[string][]string) []alias {
	out := make([]alias, 0, len(m))
	for pattern, targets := range m {
		a := alias{targets: targets}
		if i := strings.Index(pattern, "*"); i >= 0 {
			a.prefix, a.suffix, a.wildcard = pattern[:i], pattern[i+1:], true
		} else {
			a.prefix = pattern
		}
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool {
		if len(out[i].prefix) != len(out[j].prefix) {
			return len(out[i].prefix) > len(out[j].prefix)
		}
		return out[i].prefix < out[j].prefix
	})
	return out
}

// resolver maps import specifiers onto project files.
type resolver struct {
	files   map[string]*model.ParsedFile
	aliases []alias
}

// module resolves specifier as imported from the file at from. Relative
// specifiers are joined with the importing directory; anything else goes
// through the aliases and then the project root.
func (r *resolver) module(from, specifier string) (string, bool) {
	if specifier == "" {
		return "", false
	}
	if specifier == "." || strings.HasPrefix(specifier, "./") || strings.HasPrefix(specifier, "../") || specifier == ".." {
		return r.probe(path.Join(path.Dir(from), specifier))
	}
	for _, a := range r.aliases {
		rest, ok := a.match(specifier)
		if !ok {
			continue
		}
		for _, t := range a.targets {
			if p, ok := r.probe(strings.Replace(t, "*", rest, 1)); ok {
				return p, true
			}
		}
	}
	return r.probe(specifier)
}

func (r *resolver) probe(p string) (string, bool) {
	p = path.Clean(p)
	if p == ".." || strings.HasPrefix(p, "../") || strings.HasPrefix(p, "/") {
		return "", false
	}
	if _, ok := r.files[p]; ok {
		return p, true
	}
	base := p
	switch ext := path.Ext(p); ext {
	case ".js", ".jsx", ".mjs", ".cjs":
		base = strings.TrimSuffix(p, ext)
	}
	for _, ext := range probeExtensions {
		if _, ok := r.files[base+ext]; ok {
			return base + ext, true
		}
	}
	for _, ext := range probeExtensions {
		candidate := path.Join(p, "index"+ext)
		if _, ok := r.files[candidate]; ok {
			return candidate, true
		}
	}
	if candidate := path.Join(p, "__init__.py"); r.files[candidate] != nil {
		return candidate, true
	}
	return "", false
}

// binding is what a name in a file's scope refers to: a function or class
// node, or a whole module for namespace imports.
type binding struct {
	node   *model.Node
	module string
}

func (b binding) empty() bool {
	return b.node == nil && b.module == ""
}

// scope is the name table of one file.
type scope struct {
	file      *model.ParsedFile
	bindings  map[string]binding
	wildcards []string
}

func (b *builder) isPython(file string) bool {
	pf := b.files[file]
	return pf != nil && pf.File.File.Language == "python"
}

// export resolves name as exported by file, following re-export chains.
// The boolean is true when the name is exported at all, even when it is not
// backed by a function or class node.
func (b *builder) export(file, name string, depth int) (binding, bool) {
	pf := b.files[file]
	if pf == nil || depth > maxReexportDepth {
		return binding{}, false
	}
	b.markUsed(file, name)

	var stars []string
	for _, exp := range pf.File.File.Exports {
		if exp.Name == "*" {
			if exp.Source != "" {
				stars = append(stars, exp.Source)
			}
			continue
		}
		if exp.Name != name {
			continue
		}
		if exp.Source == "" {
			return binding{node: b.symbols[file][exp.Local]}, true
		}
		target, ok := b.res.module(file, exp.Source)
		if !ok {
			return binding{}, false
		}
		if exp.Local == "*" {
			return binding{module: target}, true
		}
		return b.export(target, exp.Local, depth+1)
	}
	// Python modules expose every top-level name, private or not.
	if b.isPython(file) {
		if n := b.symbols[file][name]; n != nil {
			return binding{node: n}, true
		}
	}
	for _, s := range stars {
		target, ok := b.res.module(file, s)
		if !ok {
			continue
		}
		if bd, ok := b.export(target, name, depth+1); ok {
			return bd, true
		}
	}
	return binding{}, false
}

func (b *builder) markUsed(file, name string) {
	if b.used[file] == nil {
		b.used[file] = make(map[string]bool)
	}
	b.used[file][name] = true
}

// buildScope binds the imports of pf and records an Import connection for
// every import or re-export whose source is a project file.
func (b *builder) buildScope(pf *model.ParsedFile) *scope {
	file := pf.File.FilePath
	sc := &scope{file: pf, bindings: make(map[string]binding)}

	for _, imp := range pf.File.File.Imports {
		target, ok := b.res.module(file, imp.Source)
		if ok {
			b.importEdge(pf, target, imp.Line)
		}
		for _, item := range imp.Items {
			switch {
			case item.Name == "*" && item.Local == "":
				if ok {
					sc.wildcards = append(sc.wildcards, target)
				}
			case item.Name == "*":
				if ok {
					sc.bindings[item.Local] = binding{module: target}
				}
			default:
				if ok {
					if bd, found := b.export(target, item.Name, 0); found && !bd.empty() {
						sc.bindings[item.Local] = bd
						continue
					}
				}
				// from pkg import module
				if b.isPython(file) {
					if sub, subOK := b.res.module(file, strings.TrimSuffix(imp.Source, "/")+"/"+item.Name); subOK {
						b.importEdge(pf, sub, imp.Line)
						sc.bindings[item.Local] = binding{module: sub}
					}
				}
			}
		}
	}
	for _, exp := range pf.File.File.Exports {
		if exp.Source == "" {
			continue
		}
		if target, ok := b.res.module(file, exp.Source); ok {
			b.importEdge(pf, target, exp.Line)
		}
	}
	return sc
}

func (b *builder) importEdge(pf *model.ParsedFile, target string, line int) {
	to := b.files[target]
	if to == nil {
		return
	}
	b.connect(model.ConnImport, pf.File.ID, to.File.ID, model.Location{
		FilePath: pf.File.FilePath,
		Line:     line,
		Column:   1,
	})
}

// lookup resolves a bare name: file-level declarations first, then import
// bindings, then wildcard imports.
func (b *builder) lookup(sc *scope, name string) binding {
	file := sc.file.File.FilePath
	if n := b.symbols[file][name]; n != nil {
		return binding{node: n}
	}
	if bd, ok := sc.bindings[name]; ok {
		return bd
	}
	for _, w := range sc.wildcards {
		if bd, ok := b.export(w, name, 0); ok && !bd.empty() {
			return bd
		}
	}
	return binding{}
}

// member resolves name accessed through object (ns.fn, Class.staticFn).
func (b *builder) member(sc *scope, object, name string) *model.Node {
	obj := b.lookup(sc, object)
	switch {
	case obj.module != "":
		bd, _ := b.export(obj.module, name, 0)
		return bd.node
	case obj.node != nil && obj.node.Class != nil:
		return b.method(obj.node, name, 0)
	}
	return nil
}

// method finds name on class or, failing that, on its ancestors.
func (b *builder) method(class *model.Node, name string, depth int) *model.Node {
	if class == nil || class.Class == nil || depth > maxReexportDepth {
		return nil
	}
	want := class.Name + "." + name
	for _, id := range class.Class.Methods {
		if n := b.nodes[id]; n != nil && n.Name == want {
			return n
		}
	}
	if class.Class.Extends == nil {
		return nil
	}
	sc := b.scopes[class.FilePath]
	if sc == nil {
		return nil
	}
	return b.method(b.typeName(sc, *class.Class.Extends), name, depth+1)
}

// typeName resolves heritage text such as "Base" or "models.Base" to a node.
func (b *builder) typeName(sc *scope, text string) *model.Node {
	text = strings.TrimSpace(text)
	if i := strings.IndexAny(text, "<[("); i >= 0 {
		text = text[:i]
	}
	if i := strings.LastIndex(text, "."); i > 0 {
		return b.member(sc, text[:i], text[i+1:])
	}
	return b.lookup(sc, text).node
}
