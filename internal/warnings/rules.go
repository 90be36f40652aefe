package warnings

import (
	"fmt"
	"strings"

	"github.com/phobologic/surveyor/internal/graph"
	"github.com/phobologic/surveyor/internal/lang"
	"github.com/phobologic/surveyor/internal/model"
)

type circularRule struct{}

func (circularRule) Category() model.WarningCategory { return model.CircularDependency }

func (circularRule) Check(in *Input) []*model.Warning {
	var out []*model.Warning
	for _, c := range in.Graph.Cycles {
		what := "files"
		if c.Type == model.ConnFunctionCall {
			what = "functions"
		}
		title := fmt.Sprintf("Circular dependency between %d %s", len(c.NodeIDs), what)
		out = append(out, newWarning(model.CircularDependency, model.LevelWarning, title,
			"These nodes depend on each other in a cycle: "+names(in.Graph, c.NodeIDs)+".",
			c.NodeIDs,
			&model.Suggestion{
				Summary:   "Break the cycle by extracting the shared code into a separate module.",
				Reasoning: "Cycles make initialization order fragile and prevent the members from being understood or tested in isolation.",
			}))
	}
	return out
}

type orphanRule struct {
	conventions bool
}

func (orphanRule) Category() model.WarningCategory { return model.OrphanedCode }

// Check flags unexported top-level functions and classes that nothing
// references.
func (r orphanRule) Check(in *Input) []*model.Warning {
	var out []*model.Warning
	for _, id := range in.Graph.Nodes.IDs() {
		n := in.Graph.Nodes[id]
		switch {
		case n.Function != nil:
			if n.Function.IsExported || n.Function.ParentClassID != "" {
				continue
			}
		case n.Class != nil:
			if n.Class.IsExported {
				continue
			}
		default:
			continue
		}
		if len(in.Graph.Incoming(id)) > 0 {
			continue
		}
		if r.conventions && isEntryPoint(n) {
			continue
		}
		kind := "Function"
		if n.Class != nil {
			kind = "Class"
		}
		out = append(out, newWarning(model.OrphanedCode, model.LevelWarning,
			fmt.Sprintf("%s %s is never used", kind, n.Name),
			fmt.Sprintf("%s is not exported and has no incoming references.", displayName(n)),
			[]string{id},
			&model.Suggestion{
				Summary:   fmt.Sprintf("Remove %s or wire it into the code that needs it.", n.Name),
				Reasoning: "Unreachable code still has to be read and maintained.",
			}))
	}
	return out
}

type largeFileRule struct {
	threshold int
}

func (largeFileRule) Category() model.WarningCategory { return model.LargeFile }

func (r largeFileRule) Check(in *Input) []*model.Warning {
	var out []*model.Warning
	for _, n := range in.Graph.Nodes.OfType(model.NodeFile) {
		size := n.EndLine - n.Line
		if size <= r.threshold {
			continue
		}
		out = append(out, newWarning(model.LargeFile, model.LevelInfo,
			fmt.Sprintf("%s has %d lines", n.FilePath, n.EndLine),
			fmt.Sprintf("File exceeds the %d line threshold.", r.threshold),
			[]string{n.ID},
			&model.Suggestion{
				Summary:   "Split the file along its responsibilities.",
				Reasoning: "Large files tend to mix concerns and attract merge conflicts.",
			}))
	}
	return out
}

type nestingRule struct {
	max int
}

func (nestingRule) Category() model.WarningCategory { return model.DeepNesting }

func (r nestingRule) Check(in *Input) []*model.Warning {
	var out []*model.Warning
	for _, n := range in.Graph.Nodes.OfType(model.NodeFunction) {
		depth := n.Function.MaxNestingDepth
		if depth <= r.max {
			continue
		}
		out = append(out, newWarning(model.DeepNesting, model.LevelWarning,
			fmt.Sprintf("%s nests %d levels deep", n.Name, depth),
			fmt.Sprintf("%s exceeds the maximum nesting depth of %d (complexity %d).", displayName(n), r.max, n.Function.Complexity),
			[]string{n.ID},
			&model.Suggestion{
				Summary:     "Use early returns or extract the inner blocks into helpers.",
				Reasoning:   "Each nesting level adds state the reader has to keep in mind.",
				CodeExample: "if (!ok) {\n  return;\n}\n// continue at the outer level",
			}))
	}
	return out
}

type missingTypesRule struct{}

func (missingTypesRule) Category() model.WarningCategory { return model.MissingTypes }

// Check reports functions in typed languages with unannotated parameters or
// return values. Constructors are not expected to declare a return type.
func (missingTypesRule) Check(in *Input) []*model.Warning {
	var out []*model.Warning
	for _, n := range in.Graph.Nodes.OfType(model.NodeFunction) {
		file := in.Graph.Nodes[n.Function.ParentFileID]
		if file == nil {
			continue
		}
		if l := lang.Languages[file.File.Language]; l == nil || !l.Typed {
			continue
		}
		var missing []string
		for _, p := range n.Function.Params {
			if p.Type == nil {
				missing = append(missing, p.Name)
			}
		}
		short := n.Name[strings.LastIndex(n.Name, ".")+1:]
		ctor := short == "constructor" || short == "__init__"
		noReturn := n.Function.ReturnType == nil && !ctor
		if len(missing) == 0 && !noReturn {
			continue
		}
		var parts []string
		if len(missing) > 0 {
			parts = append(parts, "parameters "+strings.Join(missing, ", "))
		}
		if noReturn {
			parts = append(parts, "return value")
		}
		out = append(out, newWarning(model.MissingTypes, model.LevelInfo,
			fmt.Sprintf("%s is missing type annotations", n.Name),
			fmt.Sprintf("%s has untyped %s.", displayName(n), strings.Join(parts, " and ")),
			[]string{n.ID},
			&model.Suggestion{
				Summary:   "Annotate the parameters and return type.",
				Reasoning: "Annotations document the contract and let the type checker catch misuse.",
			}))
	}
	return out
}

type unusedExportRule struct {
	conventions bool
}

func (unusedExportRule) Category() model.WarningCategory { return model.UnusedExport }

// Check flags exported functions and classes that no other file imports or
// references. Package entry files are skipped since they exist to export.
func (r unusedExportRule) Check(in *Input) []*model.Warning {
	g := in.Graph
	var out []*model.Warning
	for _, file := range g.Nodes.OfType(model.NodeFile) {
		if isPackageEntry(file.FilePath) || (r.conventions && isConventionFile(file.FilePath)) {
			continue
		}
		symbols := make(map[string]*model.Node)
		for _, id := range append(append([]string{}, file.File.Functions...), file.File.Classes...) {
			if n := g.Nodes[id]; n != nil {
				symbols[n.Name] = n
			}
		}
		flagged := make(map[string]bool)
		for _, exp := range file.File.Exports {
			if exp.Source != "" || exp.Name == "*" || g.ExportUsed(file.FilePath, exp.Name) {
				continue
			}
			n := symbols[exp.Local]
			if n == nil || flagged[n.ID] || usedElsewhere(g, n) {
				continue
			}
			if r.conventions && isEntryPoint(n) {
				continue
			}
			flagged[n.ID] = true
			out = append(out, newWarning(model.UnusedExport, model.LevelInfo,
				fmt.Sprintf("Export %s is never imported", exp.Name),
				fmt.Sprintf("%s is exported but no other file in the project uses it.", displayName(n)),
				[]string{n.ID},
				&model.Suggestion{
					Summary:   fmt.Sprintf("Drop the export of %s or remove it.", exp.Name),
					Reasoning: "A smaller public surface is easier to change safely.",
				}))
		}
	}
	return out
}

// usedElsewhere reports whether any node outside n's file references n.
func usedElsewhere(g *graph.Graph, n *model.Node) bool {
	for _, c := range g.Incoming(n.ID) {
		if src := g.Nodes[c.SourceID]; src != nil && src.FilePath != n.FilePath {
			return true
		}
	}
	return false
}
