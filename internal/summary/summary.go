// Package summary renders the tiered L0/L1/L2 text digests of a scan.
//
// Every function here is pure: the same ScanResult always yields the same
// strings, and L2 never exceeds Options.MaxL2Chars.
package summary

import (
	"fmt"
	"math"
	"path"
	"sort"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/phobologic/surveyor/internal/model"
	"github.com/phobologic/surveyor/internal/toon"
)

// Options bounds the generated text.
type Options struct {
	MaxL2Chars        int `mapstructure:"maxL2Chars"`
	MaxFolders        int `mapstructure:"maxFolders"`
	MaxFilesPerFolder int `mapstructure:"maxFilesPerFolder"`
	TopFolders        int `mapstructure:"topFolders"`
}

// DefaultOptions caps L2 at 8000 characters, 50 folders and 20 files per
// folder, and lists 10 folders in L1.
func DefaultOptions() Options {
	return Options{MaxL2Chars: 8000, MaxFolders: 50, MaxFilesPerFolder: 20, TopFolders: 10}
}

func (o Options) withDefaults() Options {
	def := DefaultOptions()
	if o.MaxL2Chars <= 0 {
		o.MaxL2Chars = def.MaxL2Chars
	}
	if o.MaxFolders <= 0 {
		o.MaxFolders = def.MaxFolders
	}
	if o.MaxFilesPerFolder <= 0 {
		o.MaxFilesPerFolder = def.MaxFilesPerFolder
	}
	if o.TopFolders <= 0 {
		o.TopFolders = def.TopFolders
	}
	return o
}

// TruncationMarker ends an L2 summary that hit its length cap.
const TruncationMarker = "\n[truncated]"

// Level weights used by HealthScore.
var levelWeight = map[model.WarningLevel]float64{
	model.LevelError:   3,
	model.LevelWarning: 1,
	model.LevelInfo:    0.25,
}

// HealthScore is 100/(1+d) rounded, where d is the severity-weighted warning
// count per file (error 3, warning 1, info 0.25). A project with no warnings
// scores 100.
func HealthScore(stats model.ScanStats) int {
	var weighted float64
	for level, n := range stats.WarningsByLevel {
		weighted += levelWeight[level] * float64(n)
	}
	files := max(stats.TotalFiles, 1)
	return int(math.Round(100 / (1 + weighted/float64(files))))
}

// Generate renders all three tiers.
func Generate(res *model.ScanResult, opts Options) model.Summaries {
	opts = opts.withDefaults()
	folders := inventory(res)
	return model.Summaries{
		L0: L0(res),
		L1: l1(res, folders, opts),
		L2: l2(res, folders, opts),
	}
}

// L0 is a single sentence: health, counts and the most frequent warning
// category.
func L0(res *model.ScanResult) string {
	s := res.Stats
	var b strings.Builder
	fmt.Fprintf(&b, "%s: health %d/100, %s, %s, %s",
		projectName(res), s.HealthScore,
		plural(s.TotalFiles, "file"), plural(s.TotalFunctions, "function"), plural(s.TotalWarnings, "warning"))
	if cat, n := topCategory(s.WarningsByCategory); n > 0 {
		fmt.Fprintf(&b, " (mostly %s)", strings.ReplaceAll(string(cat), "_", " "))
	}
	b.WriteString(".")
	return b.String()
}

func l1(res *model.ScanResult, folders []*folder, opts Options) string {
	s := res.Stats
	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n", projectName(res))
	fmt.Fprintf(&b, "Health: %d/100 (%s)\n", s.HealthScore, res.Status)
	fmt.Fprintf(&b, "Files: %d | Functions: %d | Classes: %d | Connections: %d | Clusters: %d\n",
		s.TotalFiles, s.TotalFunctions, s.TotalClasses, s.TotalConnections, s.TotalClusters)
	fmt.Fprintf(&b, "Circular dependencies: %d | Parse errors: %d | Analyzed functions: %d (%d pending)\n",
		s.CircularCount, s.ParseErrors, s.AnalyzedCount, s.PendingAnalysis)
	fmt.Fprintf(&b, "Warnings: %d (error %d, warning %d, info %d)\n", s.TotalWarnings,
		s.WarningsByLevel[model.LevelError], s.WarningsByLevel[model.LevelWarning], s.WarningsByLevel[model.LevelInfo])

	if cats := sortedCategories(s.WarningsByCategory); len(cats) > 0 {
		b.WriteString("\nWarnings by category:\n")
		for _, c := range cats {
			fmt.Fprintf(&b, "- %s: %d\n", c, s.WarningsByCategory[c])
		}
	}

	if len(folders) > 0 {
		b.WriteString("\nTop folders by file count:\n")
		for _, f := range folders[:min(len(folders), opts.TopFolders)] {
			fmt.Fprintf(&b, "- %s: %s, %s, %s\n", f.dir,
				plural(len(f.files), "file"), plural(f.functions, "function"), plural(f.warnings, "warning"))
		}
		if rest := len(folders) - opts.TopFolders; rest > 0 {
			fmt.Fprintf(&b, "- ... %s more\n", plural(rest, "folder"))
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

func l2(res *model.ScanResult, folders []*folder, opts Options) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s file inventory (%s in %s)\n",
		projectName(res), plural(res.Stats.TotalFiles, "file"), plural(len(folders), "folder"))

	for i, f := range folders {
		if i == opts.MaxFolders {
			fmt.Fprintf(&b, "\n... %s omitted\n", plural(len(folders)-i, "more folder"))
			break
		}
		shown := f.files[:min(len(f.files), opts.MaxFilesPerFolder)]
		rows := make([][]string, len(shown))
		for j, fe := range shown {
			rows[j] = []string{path.Base(fe.path), strconv.Itoa(fe.lines), strconv.Itoa(fe.functions), strconv.Itoa(fe.warnings)}
		}
		fmt.Fprintf(&b, "\n## %s\n%s\n", f.dir, toon.Tabular("files", []string{"name", "lines", "functions", "warnings"}, rows))
		if rest := len(f.files) - len(shown); rest > 0 {
			fmt.Fprintf(&b, "  ... %s more\n", plural(rest, "file"))
		}
	}
	return truncate(strings.TrimRight(b.String(), "\n"), opts.MaxL2Chars)
}

// truncate cuts s to at most limit bytes, ending at a line boundary and
// appending TruncationMarker when anything was removed.
func truncate(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	if limit <= len(TruncationMarker) {
		cut := limit
		for cut > 0 && !utf8.RuneStart(s[cut]) {
			cut--
		}
		return s[:cut]
	}
	cut := limit - len(TruncationMarker)
	if nl := strings.LastIndexByte(s[:cut], '\n'); nl > 0 {
		cut = nl
	} else {
		for cut > 0 && !utf8.RuneStart(s[cut]) {
			cut--
		}
	}
	return s[:cut] + TruncationMarker
}

type fileEntry struct {
	path      string
	rank      float64
	lines     int
	functions int
	warnings  int
}

type folder struct {
	dir       string
	files     []fileEntry
	functions int
	warnings  int
}

// inventory groups files by directory with per-file function and warning
// counts. Folders are ordered by file count, then name; files by rank, then
// path.
func inventory(res *model.ScanResult) []*folder {
	fileWarnings := make(map[string]int)
	for _, w := range res.Warnings {
		seen := make(map[string]bool)
		for _, id := range w.AffectedNodes {
			if n := res.Nodes[id]; n != nil && !seen[n.FilePath] {
				seen[n.FilePath] = true
				fileWarnings[n.FilePath]++
			}
		}
	}

	byDir := make(map[string]*folder)
	for _, n := range res.Nodes.OfType(model.NodeFile) {
		dir := path.Dir(n.FilePath)
		f := byDir[dir]
		if f == nil {
			f = &folder{dir: dir}
			byDir[dir] = f
		}
		fe := fileEntry{
			path:      n.FilePath,
			rank:      n.File.Rank,
			lines:     n.File.LineCount,
			functions: len(n.File.Functions),
			warnings:  fileWarnings[n.FilePath],
		}
		f.files = append(f.files, fe)
		f.functions += fe.functions
		f.warnings += fe.warnings
	}

	out := make([]*folder, 0, len(byDir))
	for _, f := range byDir {
		sort.Slice(f.files, func(i, j int) bool {
			if f.files[i].rank != f.files[j].rank {
				return f.files[i].rank > f.files[j].rank
			}
			return f.files[i].path < f.files[j].path
		})
		out = append(out, f)
	}
	sort.Slice(out, func(i, j int) bool {
		if len(out[i].files) != len(out[j].files) {
			return len(out[i].files) > len(out[j].files)
		}
		return out[i].dir < out[j].dir
	})
	return out
}

func projectName(res *model.ScanResult) string {
	if res.ProjectName != "" {
		return res.ProjectName
	}
	return "project"
}

func plural(n int, noun string) string {
	if n == 1 {
		return "1 " + noun
	}
	return strconv.Itoa(n) + " " + noun + "s"
}

// sortedCategories orders categories by count descending, then name.
func sortedCategories(counts map[model.WarningCategory]int) []model.WarningCategory {
	var cats []model.WarningCategory
	for c, n := range counts {
		if n > 0 {
			cats = append(cats, c)
		}
	}
	sort.Slice(cats, func(i, j int) bool {
		if counts[cats[i]] != counts[cats[j]] {
			return counts[cats[i]] > counts[cats[j]]
		}
		return cats[i] < cats[j]
	})
	return cats
}

func topCategory(counts map[model.WarningCategory]int) (model.WarningCategory, int) {
	cats := sortedCategories(counts)
	if len(cats) == 0 {
		return "", 0
	}
	return cats[0], counts[cats[0]]
}
