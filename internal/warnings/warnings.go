// Package warnings runs code-quality rules over a resolved graph.
package warnings

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/zeebo/xxh3"

	"github.com/phobologic/surveyor/internal/graph"
	"github.com/phobologic/surveyor/internal/model"
)

// Options toggles the built-in rules and sets their thresholds.
type Options struct {
	CircularDependency bool `mapstructure:"circularDependency"`
	OrphanedCode       bool `mapstructure:"orphanedCode"`
	DuplicateCode      bool `mapstructure:"duplicateCode"`
	LargeFile          bool `mapstructure:"largeFile"`
	DeepNesting        bool `mapstructure:"deepNesting"`
	MissingTypes       bool `mapstructure:"missingTypes"`
	UnusedExport       bool `mapstructure:"unusedExport"`
	SecurityConcern    bool `mapstructure:"securityConcern"`

	// FrameworkConventions exempts entry points such as main functions,
	// tests and decorated handlers from OrphanedCode and UnusedExport.
	FrameworkConventions bool `mapstructure:"frameworkConventions"`

	LargeFileThreshold int            `mapstructure:"largeFileThreshold"`
	MaxNestingDepth    int            `mapstructure:"maxNestingDepth"`
	DuplicateThreshold float64        `mapstructure:"duplicateThreshold"`
	DuplicateMinTokens int            `mapstructure:"duplicateMinTokens"`
	ExtraSecurityRules []SecurityRule `mapstructure:"extraSecurityRules"`
}

// DefaultOptions enables every rule except MissingTypes.
func DefaultOptions() Options {
	return Options{
		CircularDependency:   true,
		OrphanedCode:         true,
		DuplicateCode:        true,
		LargeFile:            true,
		DeepNesting:          true,
		UnusedExport:         true,
		SecurityConcern:      true,
		FrameworkConventions: true,
		LargeFileThreshold:   500,
		MaxNestingDepth:      4,
		DuplicateThreshold:   0.85,
		DuplicateMinTokens:   30,
	}
}

// Input is what rules inspect.
type Input struct {
	Graph *graph.Graph
	// ReadFile returns the content of a project file by relative path. When
	// nil, content rules only see function sources.
	ReadFile func(relPath string) ([]byte, error)
}

// Rule inspects the finished graph and reports warnings. Rules must not
// mutate the graph.
type Rule interface {
	Category() model.WarningCategory
	Check(in *Input) []*model.Warning
}

// Detector evaluates a set of rules.
type Detector struct {
	rules []Rule
	now   func() time.Time
}

// New builds a Detector with the built-in rules enabled by opts. It fails
// only when an extra security rule does not compile.
func New(opts Options) (*Detector, error) {
	def := DefaultOptions()
	if opts.LargeFileThreshold <= 0 {
		opts.LargeFileThreshold = def.LargeFileThreshold
	}
	if opts.MaxNestingDepth <= 0 {
		opts.MaxNestingDepth = def.MaxNestingDepth
	}
	if opts.DuplicateThreshold <= 0 || opts.DuplicateThreshold > 1 {
		opts.DuplicateThreshold = def.DuplicateThreshold
	}
	if opts.DuplicateMinTokens <= 0 {
		opts.DuplicateMinTokens = def.DuplicateMinTokens
	}

	d := &Detector{now: time.Now}
	if opts.CircularDependency {
		d.Add(circularRule{})
	}
	if opts.OrphanedCode {
		d.Add(orphanRule{conventions: opts.FrameworkConventions})
	}
	if opts.DuplicateCode {
		d.Add(duplicateRule{threshold: opts.DuplicateThreshold, minTokens: opts.DuplicateMinTokens})
	}
	if opts.LargeFile {
		d.Add(largeFileRule{threshold: opts.LargeFileThreshold})
	}
	if opts.DeepNesting {
		d.Add(nestingRule{max: opts.MaxNestingDepth})
	}
	if opts.MissingTypes {
		d.Add(missingTypesRule{})
	}
	if opts.UnusedExport {
		d.Add(unusedExportRule{conventions: opts.FrameworkConventions})
	}
	if opts.SecurityConcern {
		rule, err := newSecurityRule(opts.ExtraSecurityRules)
		if err != nil {
			return nil, err
		}
		d.Add(rule)
	}
	return d, nil
}

// Add registers an additional rule.
func (d *Detector) Add(r Rule) {
	d.rules = append(d.rules, r)
}

// SetClock overrides the timestamp source for DetectedAt.
func (d *Detector) SetClock(now func() time.Time) {
	d.now = now
}

// Detect runs every rule and returns the warnings sorted by category, then
// first affected node, then title. Warnings referencing nodes outside the
// graph are dropped.
func (d *Detector) Detect(in *Input) []*model.Warning {
	at := d.now().UTC()
	seen := make(map[string]bool)
	var out []*model.Warning
	for _, r := range d.rules {
		for _, w := range r.Check(in) {
			if !resolves(in.Graph, w.AffectedNodes) {
				continue
			}
			if w.ID == "" {
				w.ID = WarningID(w.Category, w.Title, w.AffectedNodes)
			}
			if seen[w.ID] {
				continue
			}
			seen[w.ID] = true
			w.DetectedAt = at
			out = append(out, w)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Category != b.Category {
			return a.Category < b.Category
		}
		if a.AffectedNodes[0] != b.AffectedNodes[0] {
			return a.AffectedNodes[0] < b.AffectedNodes[0]
		}
		return a.Title < b.Title
	})
	return out
}

func resolves(g *graph.Graph, ids []string) bool {
	if len(ids) == 0 {
		return false
	}
	for _, id := range ids {
		if g.Nodes[id] == nil {
			return false
		}
	}
	return true
}

// WarningID derives a stable ID from the category, title and affected nodes.
func WarningID(category model.WarningCategory, title string, nodes []string) string {
	h := xxh3.New()
	_, _ = h.WriteString(string(category))
	_, _ = h.WriteString("\x00" + title)
	for _, id := range nodes {
		_, _ = h.WriteString("\x00" + id)
	}
	return fmt.Sprintf("warn:%016x", h.Sum64())
}

func newWarning(category model.WarningCategory, level model.WarningLevel, title, description string, nodes []string, s *model.Suggestion) *model.Warning {
	return &model.Warning{
		Category:      category,
		Level:         level,
		Title:         title,
		Description:   description,
		AffectedNodes: nodes,
		Suggestion:    s,
	}
}

// displayName is a node's name qualified with its file.
func displayName(n *model.Node) string {
	if n.Type == model.NodeFile {
		return n.FilePath
	}
	return n.FilePath + ":" + n.Name
}

func names(g *graph.Graph, ids []string) string {
	parts := make([]string, 0, len(ids))
	for _, id := range ids {
		if n := g.Nodes[id]; n != nil {
			parts = append(parts, displayName(n))
		}
	}
	return strings.Join(parts, ", ")
}

func plural(n int, word string) string {
	if n == 1 {
		return fmt.Sprintf("%d %s", n, word)
	}
	return fmt.Sprintf("%d %ss", n, word)
}
