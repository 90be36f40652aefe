package warnings

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/zeebo/xxh3"

	"github.com/phobologic/surveyor/internal/model"
)

// shingleSize is the token n-gram length used for similarity.
const shingleSize = 3

var (
	blockComment = regexp.MustCompile(`(?s)/\*.*?\*/`)
	lineComment  = regexp.MustCompile(`(?m)(//|#).*$`)
	token        = regexp.MustCompile(`[A-Za-z_$][A-Za-z0-9_$]*|[0-9]+(?:\.[0-9]+)?|"(?:[^"\\]|\\.)*"|'(?:[^'\\]|\\.)*'|\S`)
)

// tokenize strips comments and splits source into tokens. The declaration
// line is dropped so renamed copies still compare equal.
func tokenize(source string) []string {
	if i := strings.IndexByte(source, '\n'); i >= 0 {
		source = source[i+1:]
	} else {
		return nil
	}
	source = blockComment.ReplaceAllString(source, " ")
	source = lineComment.ReplaceAllString(source, " ")
	return token.FindAllString(source, -1)
}

// shingles returns the set of hashed token n-grams.
func shingles(tokens []string) map[uint64]struct{} {
	set := make(map[uint64]struct{})
	for i := 0; i+shingleSize <= len(tokens); i++ {
		set[xxh3.HashString(strings.Join(tokens[i:i+shingleSize], "\x00"))] = struct{}{}
	}
	return set
}

// jaccard is |a ∩ b| / |a ∪ b|; it is symmetric by construction.
func jaccard(a, b map[uint64]struct{}) float64 {
	if len(a) > len(b) {
		a, b = b, a
	}
	inter := 0
	for h := range a {
		if _, ok := b[h]; ok {
			inter++
		}
	}
	union := len(a) + len(b) - inter
	if union == 0 {
		return 0
	}
	return float64(inter) / float64(union)
}

// Similarity is the shingle Jaccard similarity of two function sources.
func Similarity(a, b string) float64 {
	return jaccard(shingles(tokenize(a)), shingles(tokenize(b)))
}

type duplicateRule struct {
	threshold float64
	minTokens int
}

func (duplicateRule) Category() model.WarningCategory { return model.DuplicateCode }

// Check groups functions whose pairwise similarity reaches the threshold
// and reports one warning per group.
func (r duplicateRule) Check(in *Input) []*model.Warning {
	type candidate struct {
		id  string
		set map[uint64]struct{}
	}
	var cands []candidate
	for _, n := range in.Graph.Nodes.OfType(model.NodeFunction) {
		tokens := tokenize(n.Function.Source)
		if len(tokens) < r.minTokens {
			continue
		}
		cands = append(cands, candidate{id: n.ID, set: shingles(tokens)})
	}
	sort.SliceStable(cands, func(i, j int) bool {
		return len(cands[i].set) < len(cands[j].set)
	})

	parent := make([]int, len(cands))
	for i := range parent {
		parent[i] = i
	}
	var find func(int) int
	find = func(i int) int {
		if parent[i] != i {
			parent[i] = find(parent[i])
		}
		return parent[i]
	}
	best := make(map[int]float64)

	for i := range cands {
		for j := i + 1; j < len(cands); j++ {
			// Jaccard cannot exceed the ratio of the set sizes.
			if float64(len(cands[i].set)) < r.threshold*float64(len(cands[j].set)) {
				break
			}
			sim := jaccard(cands[i].set, cands[j].set)
			if sim < r.threshold {
				continue
			}
			a, b := find(i), find(j)
			if a != b {
				parent[b] = a
			}
			root := find(i)
			best[root] = max(best[root], best[a], best[b], sim)
		}
	}

	groups := make(map[int][]string)
	for i := range cands {
		root := find(i)
		groups[root] = append(groups[root], cands[i].id)
	}

	var out []*model.Warning
	for root, ids := range groups {
		if len(ids) < 2 {
			continue
		}
		sort.Strings(ids)
		out = append(out, newWarning(model.DuplicateCode, model.LevelWarning,
			fmt.Sprintf("%d functions are near duplicates", len(ids)),
			fmt.Sprintf("These functions are at least %.0f%% similar (best match %.0f%%): %s.",
				r.threshold*100, best[root]*100, names(in.Graph, ids)),
			ids,
			&model.Suggestion{
				Summary:   "Extract the shared logic into one function and call it from each site.",
				Reasoning: "Duplicated logic has to be fixed in every copy.",
			}))
	}
	return out
}
