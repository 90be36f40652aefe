// Package cluster groups nodes by folder, heuristic category or manual
// patterns and scores the health of each group.
package cluster

import (
	"fmt"
	"path"
	"sort"
	"strings"

	ignore "github.com/sabhiram/go-gitignore"

	"github.com/phobologic/surveyor/internal/model"
)

// Manual is a user-defined cluster: files matching any of the
// gitignore-style patterns belong to it.
type Manual struct {
	Name     string   `mapstructure:"name"`
	Patterns []string `mapstructure:"patterns"`
}

// Options configures Build.
type Options struct {
	Method model.ClusterMethod `mapstructure:"method"`
	// WarningRatio and CriticalRatio are warning-per-node thresholds above
	// which a cluster is degraded or critical.
	WarningRatio  float64  `mapstructure:"warningRatio"`
	CriticalRatio float64  `mapstructure:"criticalRatio"`
	Manual        []Manual `mapstructure:"manual"`
}

// DefaultOptions clusters by folder with ratios 0.1 and 0.3.
func DefaultOptions() Options {
	return Options{
		Method:        model.ClusterFolder,
		WarningRatio:  0.1,
		CriticalRatio: 0.3,
	}
}

// Input is the finished scan content clusters are computed from.
type Input struct {
	Nodes       model.NodeMap
	Connections []*model.Connection
	Warnings    []*model.Warning
}

// Build groups in.Nodes according to opts.Method and fills in stats and
// health. Clusters are sorted by ID.
func Build(in Input, opts Options) ([]*model.Cluster, error) {
	def := DefaultOptions()
	if opts.WarningRatio <= 0 {
		opts.WarningRatio = def.WarningRatio
	}
	if opts.CriticalRatio <= 0 {
		opts.CriticalRatio = def.CriticalRatio
	}

	var clusters []*model.Cluster
	switch opts.Method {
	case model.ClusterFolder, "":
		clusters = byFolder(in.Nodes)
	case model.ClusterSmart:
		clusters = bySmartCategory(in.Nodes)
	case model.ClusterManual:
		clusters = byPatterns(in.Nodes, opts.Manual)
	default:
		return nil, fmt.Errorf("unknown cluster method %q", opts.Method)
	}

	for _, c := range clusters {
		sort.Strings(c.NodeIDs)
		sort.Strings(c.ChildClusterIDs)
		score(c, in, opts)
	}
	sort.Slice(clusters, func(i, j int) bool { return clusters[i].ID < clusters[j].ID })
	return clusters, nil
}

func newCluster(id, name string, method model.ClusterMethod) *model.Cluster {
	return &model.Cluster{
		ID:              id,
		Name:            name,
		Method:          method,
		NodeIDs:         []string{},
		ChildClusterIDs: []string{},
	}
}

// FolderID returns the ID of the folder cluster for dir ("." for the root).
func FolderID(dir string) string {
	return "cluster:folder:" + dir
}

// byFolder creates one cluster per directory, including every ancestor of a
// directory that holds files. A cluster contains all nodes below its
// directory.
func byFolder(nodes model.NodeMap) []*model.Cluster {
	folders := make(map[string]*model.Cluster)
	var ensure func(dir string) *model.Cluster
	ensure = func(dir string) *model.Cluster {
		if c, ok := folders[dir]; ok {
			return c
		}
		c := newCluster(FolderID(dir), dir, model.ClusterFolder)
		folders[dir] = c
		if dir != "." {
			parent := ensure(path.Dir(dir))
			c.ParentClusterID = parent.ID
			parent.ChildClusterIDs = append(parent.ChildClusterIDs, c.ID)
		}
		return c
	}

	for _, id := range nodes.IDs() {
		n := nodes[id]
		for dir := path.Dir(n.FilePath); ; dir = path.Dir(dir) {
			c := ensure(dir)
			c.NodeIDs = append(c.NodeIDs, id)
			if dir == "." {
				break
			}
		}
	}

	out := make([]*model.Cluster, 0, len(folders))
	for _, c := range folders {
		out = append(out, c)
	}
	return out
}

// byPatterns creates one cluster per manual definition. Files matching no
// definition are left unclustered.
func byPatterns(nodes model.NodeMap, defs []Manual) []*model.Cluster {
	var out []*model.Cluster
	for _, d := range defs {
		if d.Name == "" || len(d.Patterns) == 0 {
			continue
		}
		gi := ignore.CompileIgnoreLines(d.Patterns...)
		c := newCluster("cluster:manual:"+slug(d.Name), d.Name, model.ClusterManual)
		for _, id := range nodes.IDs() {
			if gi.MatchesPath(nodes[id].FilePath) {
				c.NodeIDs = append(c.NodeIDs, id)
			}
		}
		out = append(out, c)
	}
	return out
}

func slug(name string) string {
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(name) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
			dash = false
		} else if !dash && b.Len() > 0 {
			b.WriteByte('-')
			dash = true
		}
	}
	return strings.TrimSuffix(b.String(), "-")
}

// score fills stats, warning count and health for c.
func score(c *model.Cluster, in Input, opts Options) {
	members := make(map[string]bool, len(c.NodeIDs))
	for _, id := range c.NodeIDs {
		members[id] = true
		n := in.Nodes[id]
		if n == nil {
			continue
		}
		switch n.Type {
		case model.NodeFile:
			c.Stats.FileCount++
		case model.NodeFunction:
			c.Stats.FunctionCount++
		case model.NodeClass:
			c.Stats.ClassCount++
		}
	}

	for _, conn := range in.Connections {
		src, tgt := members[conn.SourceID], members[conn.TargetID]
		switch {
		case src && tgt:
			c.Stats.InternalConnectionCount++
		case src || tgt:
			c.Stats.ExternalConnectionCount++
		}
	}

	hasError := false
	for _, w := range in.Warnings {
		for _, id := range w.AffectedNodes {
			if members[id] {
				c.WarningCount++
				if w.Level == model.LevelError {
					hasError = true
				}
				break
			}
		}
	}
	c.Health = Health(c.WarningCount, len(c.NodeIDs), hasError, opts)
}

// Health derives the verdict from the warning-to-node ratio. Any
// error-level warning makes the cluster critical.
func Health(warnings, nodes int, hasError bool, opts Options) model.ClusterHealth {
	if hasError {
		return model.Critical
	}
	if warnings == 0 || nodes == 0 {
		return model.Healthy
	}
	ratio := float64(warnings) / float64(nodes)
	switch {
	case ratio > opts.CriticalRatio:
		return model.Critical
	case ratio > opts.WarningRatio:
		return model.Degraded
	}
	return model.Healthy
}
