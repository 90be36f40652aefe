// Package ranking selects referentially intact subsets of a scan result.
package ranking

import (
	"sort"
	"strings"

	"github.com/phobologic/surveyor/internal/model"
)

// RankedFiles returns the file nodes of res ordered by descending rank, ties
// broken by path.
func RankedFiles(res *model.ScanResult) []*model.Node {
	files := res.Nodes.OfType(model.NodeFile)
	sort.SliceStable(files, func(i, j int) bool {
		ri, rj := files[i].File.Rank, files[j].File.Rank
		if ri != rj {
			return ri > rj
		}
		return files[i].FilePath < files[j].FilePath
	})
	return files
}

// SelectFiles returns a new ScanResult with only the top-ranked files and the
// functions and classes they contain. If maxFiles is <= 0 or covers every
// file, res is returned unchanged.
func SelectFiles(res *model.ScanResult, maxFiles int) *model.ScanResult {
	files := RankedFiles(res)
	if maxFiles <= 0 || maxFiles >= len(files) {
		return res
	}

	selected := make(map[string]struct{}, maxFiles)
	for _, f := range files[:maxFiles] {
		selected[f.FilePath] = struct{}{}
	}
	keep := make(map[string]bool)
	for id, n := range res.Nodes {
		if _, ok := selected[n.FilePath]; ok {
			keep[id] = true
		}
	}
	return subset(res, keep, false)
}

// FilterByFile returns a new ScanResult containing the files whose path
// contains substr (case-insensitive) with their functions and classes, every
// connection touching them, and the nodes at the other end of those
// connections.
func FilterByFile(res *model.ScanResult, substr string) *model.ScanResult {
	lower := strings.ToLower(substr)
	keep := make(map[string]bool)
	for id, n := range res.Nodes {
		if strings.Contains(strings.ToLower(n.FilePath), lower) {
			keep[id] = true
		}
	}
	return subset(res, keep, true)
}

// FilterBySymbol returns a new ScanResult containing the functions and
// classes whose name contains substr (case-insensitive), their direct
// callers and callees, and the files that define them.
func FilterBySymbol(res *model.ScanResult, substr string) *model.ScanResult {
	lower := strings.ToLower(substr)
	matched := make(map[string]bool)
	for id, n := range res.Nodes {
		if n.Type != model.NodeFile && strings.Contains(strings.ToLower(n.Name), lower) {
			matched[id] = true
		}
	}

	keep := make(map[string]bool, len(matched))
	for id := range matched {
		keep[id] = true
	}
	for _, c := range res.Connections {
		if c.Type == model.ConnImport {
			continue
		}
		if matched[c.SourceID] {
			keep[c.TargetID] = true
		}
		if matched[c.TargetID] {
			keep[c.SourceID] = true
		}
	}
	for id := range keep {
		if n := res.Nodes[id]; n != nil {
			keep[model.FileID(n.FilePath)] = true
		}
	}

	out := subset(res, keep, false)
	// Only edges involving a matched symbol are relevant.
	var conns []*model.Connection
	for _, c := range out.Connections {
		if matched[c.SourceID] || matched[c.TargetID] {
			conns = append(conns, c)
		}
	}
	out.Connections = conns
	return out
}

// subset copies res restricted to the kept node IDs. With expand, only
// connections touching a kept node survive, and the nodes at their far end
// are pulled in. Warnings and clusters are trimmed to kept nodes and dropped
// when nothing of them remains.
func subset(res *model.ScanResult, keep map[string]bool, expand bool) *model.ScanResult {
	var seed map[string]bool
	if expand {
		seed = make(map[string]bool, len(keep))
		for id := range keep {
			seed[id] = true
		}
		for _, c := range res.Connections {
			if seed[c.SourceID] || seed[c.TargetID] {
				keep[c.SourceID], keep[c.TargetID] = true, true
			}
		}
	}

	out := *res
	out.Nodes = make(model.NodeMap, len(keep))
	for id := range keep {
		if n, ok := res.Nodes[id]; ok {
			out.Nodes[id] = n
		}
	}

	out.Connections = nil
	for _, c := range res.Connections {
		if _, ok := out.Nodes[c.SourceID]; !ok {
			continue
		}
		if _, ok := out.Nodes[c.TargetID]; !ok {
			continue
		}
		if seed != nil && !seed[c.SourceID] && !seed[c.TargetID] {
			continue
		}
		out.Connections = append(out.Connections, c)
	}

	out.Warnings = nil
	for _, w := range res.Warnings {
		affected := present(out.Nodes, w.AffectedNodes)
		if len(affected) == 0 {
			continue
		}
		cp := *w
		cp.AffectedNodes = affected
		out.Warnings = append(out.Warnings, &cp)
	}

	out.Clusters = nil
	kept := make(map[string]bool)
	for _, c := range res.Clusters {
		ids := present(out.Nodes, c.NodeIDs)
		if len(ids) == 0 {
			continue
		}
		cp := *c
		cp.NodeIDs = ids
		out.Clusters = append(out.Clusters, &cp)
		kept[c.ID] = true
	}
	for _, c := range out.Clusters {
		var children []string
		for _, id := range c.ChildClusterIDs {
			if kept[id] {
				children = append(children, id)
			}
		}
		c.ChildClusterIDs = children
		if !kept[c.ParentClusterID] {
			c.ParentClusterID = ""
		}
	}
	return &out
}

func present(nodes model.NodeMap, ids []string) []string {
	var out []string
	for _, id := range ids {
		if _, ok := nodes[id]; ok {
			out = append(out, id)
		}
	}
	return out
}
