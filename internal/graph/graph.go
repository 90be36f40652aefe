// Package graph resolves parsed references into typed connections, detects
// cycles and computes file PageRank.
package graph

import (
	"fmt"
	"math"
	"sort"

	"github.com/phobologic/surveyor/internal/model"
)

// Options configures Build.
type Options struct {
	// Aliases maps import patterns to root-relative targets, in tsconfig
	// "paths" form: {"@/*": ["src/*"]}.
	Aliases map[string][]string
	// FunctionCycles enables cycle detection over FunctionCall edges in
	// addition to Import edges.
	FunctionCycles bool
}

// Cycle is one strongly connected component of size > 1.
type Cycle struct {
	Type    model.ConnectionType
	NodeIDs []string
}

// Graph is the node arena plus its connections, indexed both ways.
type Graph struct {
	Nodes       model.NodeMap
	Connections []*model.Connection
	Cycles      []Cycle

	outgoing map[string][]*model.Connection
	incoming map[string][]*model.Connection
	used     map[string]map[string]bool
}

// Outgoing returns the connections whose source is id.
func (g *Graph) Outgoing(id string) []*model.Connection { return g.outgoing[id] }

// Incoming returns the connections whose target is id.
func (g *Graph) Incoming(id string) []*model.Connection { return g.incoming[id] }

// ExportUsed reports whether the export name of the file at path is imported
// or re-exported anywhere in the project.
func (g *Graph) ExportUsed(path, name string) bool { return g.used[path][name] }

type edgeKey struct {
	typ      model.ConnectionType
	src, tgt string
}

type builder struct {
	nodes   model.NodeMap
	files   map[string]*model.ParsedFile
	symbols map[string]map[string]*model.Node
	scopes  map[string]*scope
	res     *resolver
	edges   map[edgeKey]*model.Connection
	used    map[string]map[string]bool
}

// Build assembles the node arena from files and resolves their references.
// Unresolvable references are dropped. Repeated references between the same
// pair of nodes increment the edge's call count instead of adding edges.
func Build(files []*model.ParsedFile, opts Options) *Graph {
	b := &builder{
		nodes:   make(model.NodeMap),
		files:   make(map[string]*model.ParsedFile, len(files)),
		symbols: make(map[string]map[string]*model.Node, len(files)),
		scopes:  make(map[string]*scope, len(files)),
		edges:   make(map[edgeKey]*model.Connection),
		used:    make(map[string]map[string]bool),
	}
	b.res = &resolver{files: b.files, aliases: compileAliases(opts.Aliases)}

	for _, pf := range files {
		if pf == nil || pf.File == nil {
			continue
		}
		path := pf.File.FilePath
		b.files[path] = pf
		syms := make(map[string]*model.Node)
		for _, n := range pf.Nodes() {
			b.nodes[n.ID] = n
			switch {
			case n.Class != nil:
				syms[n.Name] = n
			case n.Function != nil && n.Function.ParentClassID == "":
				syms[n.Name] = n
			}
		}
		b.symbols[path] = syms
	}

	paths := make([]string, 0, len(b.files))
	for p := range b.files {
		paths = append(paths, p)
	}
	sort.Strings(paths)

	for _, p := range paths {
		b.scopes[p] = b.buildScope(b.files[p])
	}
	for _, p := range paths {
		b.link(b.scopes[p])
	}

	g := &Graph{
		Nodes:       b.nodes,
		Connections: make([]*model.Connection, 0, len(b.edges)),
		outgoing:    make(map[string][]*model.Connection),
		incoming:    make(map[string][]*model.Connection),
		used:        b.used,
	}
	for _, c := range b.edges {
		g.Connections = append(g.Connections, c)
	}
	sort.Slice(g.Connections, func(i, j int) bool {
		return g.Connections[i].ID < g.Connections[j].ID
	})
	for _, c := range g.Connections {
		g.outgoing[c.SourceID] = append(g.outgoing[c.SourceID], c)
		g.incoming[c.TargetID] = append(g.incoming[c.TargetID], c)
	}

	g.Cycles = detectCycles(g.Connections, model.ConnImport)
	if opts.FunctionCycles {
		g.Cycles = append(g.Cycles, detectCycles(g.Connections, model.ConnFunctionCall)...)
	}
	Rank(g)
	return g
}

// link resolves the references of every node in a file.
func (b *builder) link(sc *scope) {
	pf := sc.file
	b.references(sc, pf.File, nil, pf.File.File.TopLevelReferences)
	for _, cls := range pf.Classes {
		b.heritage(sc, cls)
		b.references(sc, cls, cls, cls.Class.References)
	}
	for _, fn := range pf.Functions {
		var owner *model.Node
		if fn.Function.ParentClassID != "" {
			owner = b.nodes[fn.Function.ParentClassID]
		}
		b.references(sc, fn, owner, fn.Function.References)
	}
}

func (b *builder) heritage(sc *scope, cls *model.Node) {
	loc := model.Location{FilePath: cls.FilePath, Line: cls.Line, Column: 1}
	if ext := cls.Class.Extends; ext != nil {
		if base := b.typeName(sc, *ext); base != nil && base.Class != nil {
			b.connect(model.ConnInheritance, cls.ID, base.ID, loc)
		}
	}
	for _, impl := range cls.Class.Implements {
		if iface := b.typeName(sc, impl); iface != nil && iface.Class != nil {
			b.connect(model.ConnImplementation, cls.ID, iface.ID, loc)
		}
	}
}

func (b *builder) references(sc *scope, from, class *model.Node, refs []model.Reference) {
	for _, ref := range refs {
		var target *model.Node
		switch ref.Object {
		case "":
			target = b.lookup(sc, ref.Name).node
		case "this", "self", "cls":
			target = b.method(class, ref.Name, 0)
		default:
			target = b.member(sc, ref.Object, ref.Name)
		}
		if target == nil {
			continue
		}
		typ, ok := connectionType(ref.Kind, target)
		if !ok {
			continue
		}
		b.connect(typ, from.ID, target.ID, model.Location{
			FilePath: from.FilePath,
			Line:     ref.Line,
			Column:   ref.Column,
		})
	}
}

// connectionType maps a reference to the edge it produces. Functions are
// called or passed by value; classes are instantiated or used as types.
func connectionType(kind model.RefKind, target *model.Node) (model.ConnectionType, bool) {
	switch target.Type {
	case model.NodeFunction:
		if kind == model.RefType {
			return "", false
		}
		return model.ConnFunctionCall, true
	case model.NodeClass:
		if kind == model.RefCall || kind == model.RefNew {
			return model.ConnFunctionCall, true
		}
		return model.ConnTypeReference, true
	}
	return "", false
}

// connect adds or reinforces the edge src -> tgt. Self edges and edges to
// nodes outside the arena are dropped.
func (b *builder) connect(typ model.ConnectionType, src, tgt string, loc model.Location) {
	if src == tgt || b.nodes[src] == nil || b.nodes[tgt] == nil {
		return
	}
	key := edgeKey{typ, src, tgt}
	c := b.edges[key]
	if c == nil {
		c = &model.Connection{
			ID:       ConnectionID(typ, src, tgt),
			SourceID: src,
			TargetID: tgt,
			Type:     typ,
			Metadata: model.ConnectionMetadata{Locations: []model.Location{}},
		}
		b.edges[key] = c
	}
	c.Weight++
	c.Metadata.CallCount++
	c.Metadata.Locations = append(c.Metadata.Locations, loc)
}

// ConnectionID returns the deterministic ID of an edge.
func ConnectionID(typ model.ConnectionType, src, tgt string) string {
	return fmt.Sprintf("%s:%s->%s", typ, src, tgt)
}

// Rank applies PageRank over file dependencies and stores the score on each
// file node. Every connection contributes its weight to the edge between the
// files of its endpoints; intra-file edges are ignored.
func Rank(g *Graph) {
	nodes := make(map[string]struct{})
	for _, n := range g.Nodes {
		if n.Type == model.NodeFile {
			nodes[n.FilePath] = struct{}{}
		}
	}
	if len(nodes) == 0 {
		return
	}

	outEdges := make(map[string][]string)
	outDegree := make(map[string]int)
	for _, c := range g.Connections {
		src, tgt := g.Nodes[c.SourceID], g.Nodes[c.TargetID]
		if src == nil || tgt == nil || src.FilePath == tgt.FilePath {
			continue
		}
		for range c.Weight {
			outEdges[src.FilePath] = append(outEdges[src.FilePath], tgt.FilePath)
			outDegree[src.FilePath]++
		}
	}

	var ranks map[string]float64
	if len(outEdges) == 0 {
		ranks = make(map[string]float64, len(nodes))
		uniform := 1.0 / float64(len(nodes))
		for p := range nodes {
			ranks[p] = uniform
		}
	} else {
		ranks = pageRank(nodes, outEdges, outDegree, 0.85, 100, 1e-6)
	}

	for _, n := range g.Nodes {
		if n.Type == model.NodeFile {
			n.File.Rank = ranks[n.FilePath]
		}
	}
}

func pageRank(
	nodes map[string]struct{},
	outEdges map[string][]string,
	outDegree map[string]int,
	alpha float64,
	maxIter int,
	tol float64,
) map[string]float64 {
	n := len(nodes)
	if n == 0 {
		return nil
	}

	rank := make(map[string]float64, n)
	initial := 1.0 / float64(n)
	for node := range nodes {
		rank[node] = initial
	}

	teleport := (1.0 - alpha) / float64(n)

	for iter := 0; iter < maxIter; iter++ {
		newRank := make(map[string]float64, n)

		// Dangling nodes spread their rank evenly.
		var danglingSum float64
		for node := range nodes {
			if outDegree[node] == 0 {
				danglingSum += rank[node]
			}
		}
		danglingContrib := alpha * danglingSum / float64(n)

		for node := range nodes {
			newRank[node] = teleport + danglingContrib
		}

		for src, targets := range outEdges {
			contrib := alpha * rank[src] / float64(outDegree[src])
			for _, tgt := range targets {
				newRank[tgt] += contrib
			}
		}

		var diff float64
		for node := range nodes {
			diff += math.Abs(newRank[node] - rank[node])
		}
		rank = newRank
		if diff < tol {
			break
		}
	}

	return rank
}
