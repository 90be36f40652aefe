// Package toon implements TOON (Token-Oriented Object Notation) encoding.
package toon

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/phobologic/surveyor/internal/model"
	"github.com/phobologic/surveyor/internal/ranking"
)

var (
	needsQuoting = regexp.MustCompile(`[,:"\\{}\[\]]`)
	looksNumeric = regexp.MustCompile(`^-?(?:0|[1-9]\d*)(?:\.\d+)?$`)
	keywords     = map[string]struct{}{
		"true":  {},
		"false": {},
		"null":  {},
	}
)

// Encode converts a ScanResult into TOON format. Files are listed by rank.
func Encode(res *model.ScanResult) string {
	var parts []string

	parts = append(parts, fmt.Sprintf("project: %s", Value(res.ProjectName)))
	parts = append(parts, fmt.Sprintf("root: %s", Value(res.ProjectPath)))
	parts = append(parts, fmt.Sprintf("status: %s", Value(string(res.Status))))
	parts = append(parts, fmt.Sprintf("health: %d", res.Stats.HealthScore))

	files := ranking.RankedFiles(res)
	var fileRows [][]string
	for _, f := range files {
		fileRows = append(fileRows, []string{
			f.FilePath,
			f.File.Language,
			strconv.Itoa(f.File.LineCount),
			fmt.Sprintf("%.4f", f.File.Rank),
		})
	}
	parts = append(parts, Tabular("files", []string{"path", "language", "lines", "rank"}, fileRows))

	var symbolRows [][]string
	for _, f := range files {
		for _, n := range symbolsOf(res.Nodes, f) {
			symbolRows = append(symbolRows, []string{
				f.FilePath,
				n.Name,
				symbolKind(n),
				strconv.Itoa(n.Line),
				Signature(n),
				behavioral(n),
			})
		}
	}
	parts = append(parts, Tabular("symbols", []string{"file", "name", "kind", "line", "signature", "summary"}, symbolRows))

	var connRows [][]string
	for _, c := range res.Connections {
		circular := ""
		if c.Metadata.IsCircular {
			circular = "cycle"
		}
		connRows = append(connRows, []string{
			Label(res.Nodes, c.SourceID),
			Label(res.Nodes, c.TargetID),
			string(c.Type),
			strconv.Itoa(c.Weight),
			circular,
		})
	}
	parts = append(parts, Tabular("connections", []string{"source", "target", "type", "weight", "circular"}, connRows))

	var warnRows [][]string
	for _, w := range res.Warnings {
		labels := make([]string, len(w.AffectedNodes))
		for i, id := range w.AffectedNodes {
			labels[i] = Label(res.Nodes, id)
		}
		warnRows = append(warnRows, []string{string(w.Level), string(w.Category), w.Title, strings.Join(labels, " ")})
	}
	parts = append(parts, Tabular("warnings", []string{"level", "category", "title", "nodes"}, warnRows))

	var clusterRows [][]string
	for _, c := range res.Clusters {
		clusterRows = append(clusterRows, []string{
			c.Name,
			string(c.Method),
			string(c.Health),
			strconv.Itoa(c.Stats.FileCount),
			strconv.Itoa(c.Stats.FunctionCount),
			strconv.Itoa(c.WarningCount),
		})
	}
	parts = append(parts, Tabular("clusters", []string{"name", "method", "health", "files", "functions", "warnings"}, clusterRows))

	if len(res.Errors) > 0 {
		var errRows [][]string
		for _, e := range res.Errors {
			line := ""
			if e.Line != nil {
				line = strconv.Itoa(*e.Line)
			}
			errRows = append(errRows, []string{e.FilePath, line, e.Message})
		}
		parts = append(parts, Tabular("errors", []string{"file", "line", "message"}, errRows))
	}

	return strings.Join(parts, "\n")
}

// symbolsOf returns the classes and functions (methods included) of a file
// ordered by line.
func symbolsOf(nodes model.NodeMap, file *model.Node) []*model.Node {
	var out []*model.Node
	for _, ids := range [][]string{file.File.Classes, file.File.Functions} {
		for _, id := range ids {
			if n := nodes[id]; n != nil {
				out = append(out, n)
			}
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Line != out[j].Line {
			return out[i].Line < out[j].Line
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func symbolKind(n *model.Node) string {
	switch {
	case n.Class != nil && n.Class.IsInterface:
		return "interface"
	case n.Class != nil:
		return "class"
	case n.Function != nil && n.Function.ParentClassID != "":
		return "method"
	}
	return "function"
}

func behavioral(n *model.Node) string {
	if n.Function == nil || n.Function.Behavioral == nil {
		return ""
	}
	return n.Function.Behavioral.Summary
}

// Signature renders a compact declaration: "name(a: T, b?) -> R" for
// functions and "class Name(Base)" for classes.
func Signature(n *model.Node) string {
	switch {
	case n.Function != nil:
		f := n.Function
		params := make([]string, len(f.Params))
		for i, p := range f.Params {
			s := p.Name
			if p.IsOptional {
				s += "?"
			}
			if p.Type != nil {
				s += ": " + *p.Type
			}
			params[i] = s
		}
		name := n.Name
		if i := strings.LastIndex(name, "."); i >= 0 {
			name = name[i+1:]
		}
		sig := name + "(" + strings.Join(params, ", ") + ")"
		if f.IsAsync {
			sig = "async " + sig
		}
		if f.ReturnType != nil {
			sig += " -> " + *f.ReturnType
		}
		return sig
	case n.Class != nil:
		kw := "class"
		if n.Class.IsInterface {
			kw = "interface"
		}
		var bases []string
		if n.Class.Extends != nil {
			bases = append(bases, *n.Class.Extends)
		}
		bases = append(bases, n.Class.Implements...)
		if len(bases) == 0 {
			return kw + " " + n.Name
		}
		return fmt.Sprintf("%s %s(%s)", kw, n.Name, strings.Join(bases, ", "))
	}
	return n.Name
}

// Label is the short display form of a node: the path for files and
// "path#name" for symbols. Unknown IDs are returned unchanged.
func Label(nodes model.NodeMap, id string) string {
	n := nodes[id]
	if n == nil {
		return id
	}
	if n.Type == model.NodeFile {
		return n.FilePath
	}
	return n.FilePath + "#" + n.Name
}

// Tabular renders a TOON table header followed by one indented row per entry.
func Tabular(name string, columns []string, rows [][]string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s[%d]{%s}:", name, len(rows), strings.Join(columns, ","))
	for _, row := range rows {
		encoded := make([]string, len(row))
		for i, cell := range row {
			encoded[i] = Value(cell)
		}
		fmt.Fprintf(&b, "\n  %s", strings.Join(encoded, ","))
	}
	return b.String()
}

// Value encodes a single scalar, quoting it when it would otherwise be
// ambiguous.
func Value(value string) string {
	if value == "" {
		return `""`
	}

	if value != strings.TrimSpace(value) {
		return quote(value)
	}

	if strings.ContainsAny(value, "\n\r\t") {
		return quote(value)
	}

	if _, ok := keywords[strings.ToLower(value)]; ok {
		return quote(value)
	}

	if looksNumeric.MatchString(value) {
		return value
	}

	if needsQuoting.MatchString(value) {
		return quote(value)
	}

	if strings.HasPrefix(value, "-") {
		return quote(value)
	}

	return value
}

func quote(value string) string {
	escaped := strings.ReplaceAll(value, `\`, `\\`)
	escaped = strings.ReplaceAll(escaped, `"`, `\"`)
	escaped = strings.ReplaceAll(escaped, "\n", `\n`)
	escaped = strings.ReplaceAll(escaped, "\r", `\r`)
	escaped = strings.ReplaceAll(escaped, "\t", `\t`)
	return `"` + escaped + `"`
}
