// Package discover finds parseable source files in a project.
package discover

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"
	"time"

	ignore "github.com/sabhiram/go-gitignore"

	"github.com/phobologic/surveyor/internal/lang"
)

// FileEntry represents a discovered source file.
type FileEntry struct {
	Path     string // Slash-separated, relative to the project root
	Language string
}

// Options filters discovery. Extensions are matched case-insensitively and
// include the leading dot.
type Options struct {
	// IncludeExtensions restricts discovery to these extensions; empty means
	// every registered extension.
	IncludeExtensions []string
	ExcludeExtensions []string
	// ExcludeGlobs are gitignore-style patterns applied to relative paths.
	ExcludeGlobs []string
}

var skipDirs = map[string]struct{}{
	"__pycache__":   {},
	"node_modules":  {},
	".git":          {},
	".hg":           {},
	".svn":          {},
	"venv":          {},
	".venv":         {},
	"env":           {},
	"build":         {},
	"dist":          {},
	"coverage":      {},
	".next":         {},
	".nuxt":         {},
	".turbo":        {},
	".tox":          {},
	".mypy_cache":   {},
	".ruff_cache":   {},
	".pytest_cache": {},
	"egg-info":      {},
}

// Files discovers parseable source files under root, sorted by path.
// It fails only when root itself cannot be read.
func Files(root string, opts Options) ([]FileEntry, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%s: not a directory", root)
	}
	if _, err := os.ReadDir(root); err != nil {
		return nil, err
	}

	include := extSet(opts.IncludeExtensions)
	exclude := extSet(opts.ExcludeExtensions)
	var excludeGlobs *ignore.GitIgnore
	if len(opts.ExcludeGlobs) > 0 {
		excludeGlobs = ignore.CompileIgnoreLines(opts.ExcludeGlobs...)
	}

	gitFiles := gitLsFiles(root)
	var gi *ignore.GitIgnore
	if gitFiles == nil {
		gi = loadGitignore(root)
	}

	var results []FileEntry

	err = filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return nil // skip unreadable entries below root
		}

		name := d.Name()

		if d.IsDir() {
			if path == root {
				return nil
			}
			if _, skip := skipDirs[name]; skip || strings.HasPrefix(name, ".") || strings.HasSuffix(name, ".egg-info") {
				return filepath.SkipDir
			}
			return nil
		}

		if strings.HasPrefix(name, ".") {
			return nil
		}

		// Skip symlinks
		if d.Type()&os.ModeSymlink != 0 {
			return nil
		}

		rel, err := filepath.Rel(root, path)
		if err != nil {
			return nil
		}
		rel = filepath.ToSlash(rel)

		if gitFiles != nil {
			if _, ok := gitFiles[rel]; !ok {
				return nil
			}
		} else if gi != nil && gi.MatchesPath(rel) {
			return nil
		}
		if excludeGlobs != nil && excludeGlobs.MatchesPath(rel) {
			return nil
		}

		ext := strings.ToLower(filepath.Ext(name))
		if len(include) > 0 {
			if _, ok := include[ext]; !ok {
				return nil
			}
		}
		if _, ok := exclude[ext]; ok {
			return nil
		}
		langName := lang.ForExtension(ext)
		if langName == "" {
			return nil
		}

		results = append(results, FileEntry{Path: rel, Language: langName})
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(results, func(i, j int) bool {
		return results[i].Path < results[j].Path
	})

	return results, nil
}

func extSet(exts []string) map[string]struct{} {
	set := make(map[string]struct{}, len(exts))
	for _, e := range exts {
		e = strings.ToLower(strings.TrimSpace(e))
		if e == "" {
			continue
		}
		if !strings.HasPrefix(e, ".") {
			e = "." + e
		}
		set[e] = struct{}{}
	}
	return set
}

func gitLsFiles(root string) map[string]struct{} {
	gitDir := filepath.Join(root, ".git")
	info, err := os.Stat(gitDir)
	if err != nil || !info.IsDir() {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	cmd := exec.CommandContext(ctx, "git", "ls-files", "--cached", "--others", "--exclude-standard")
	cmd.Dir = root
	out, err := cmd.Output()
	if err != nil {
		return nil
	}

	files := make(map[string]struct{})
	for _, line := range strings.Split(strings.TrimRight(string(out), "\n"), "\n") {
		if line != "" {
			files[line] = struct{}{}
		}
	}
	return files
}

func loadGitignore(root string) *ignore.GitIgnore {
	path := filepath.Join(root, ".gitignore")
	gi, err := ignore.CompileIgnoreFile(path)
	if err != nil {
		return nil
	}
	return gi
}

var testDirs = map[string]struct{}{
	"test":      {},
	"tests":     {},
	"spec":      {},
	"__tests__": {},
	"__mocks__": {},
	"e2e":       {},
}

// IsTestFile reports whether a slash-separated relative path looks like a
// test file by directory or filename convention.
func IsTestFile(rel string) bool {
	rel = filepath.ToSlash(rel)
	parts := strings.Split(rel, "/")
	for _, dir := range parts[:len(parts)-1] {
		if _, ok := testDirs[dir]; ok {
			return true
		}
	}
	name := parts[len(parts)-1]
	stem := strings.TrimSuffix(name, filepath.Ext(name))
	switch {
	case strings.HasPrefix(name, "test_"):
		return true
	case strings.HasSuffix(stem, "_test"), strings.HasSuffix(stem, "_spec"):
		return true
	case strings.HasSuffix(stem, ".test"), strings.HasSuffix(stem, ".spec"):
		return true
	}
	return false
}
