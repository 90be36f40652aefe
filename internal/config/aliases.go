package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// AliasFiles are the module-resolution configs read for path aliases, in
// order. The first one present wins.
var AliasFiles = []string{"tsconfig.json", "jsconfig.json"}

// maxExtendsDepth bounds "extends" chains.
const maxExtendsDepth = 8

type tsconfig struct {
	Extends         string `json:"extends"`
	CompilerOptions struct {
		BaseURL *string             `json:"baseUrl"`
		Paths   map[string][]string `json:"paths"`
	} `json:"compilerOptions"`
}

// LoadAliases reads compilerOptions.paths and baseUrl from the project's
// tsconfig.json or jsconfig.json and returns them as root-relative alias
// targets. Relative "extends" chains are followed; the extending file wins.
// A project without either file has no aliases.
func LoadAliases(root string) (map[string][]string, error) {
	for _, name := range AliasFiles {
		p := filepath.Join(root, name)
		if _, err := os.Stat(p); err != nil {
			continue
		}
		baseURL, paths, err := readTSConfig(root, p, 0)
		if err != nil {
			return nil, err
		}
		return aliasTargets(baseURL, paths), nil
	}
	return map[string][]string{}, nil
}

// readTSConfig returns the effective root-relative baseUrl and paths of the
// config at file.
func readTSConfig(root, file string, depth int) (string, map[string][]string, error) {
	if depth > maxExtendsDepth {
		return "", nil, fmt.Errorf("%s: extends chain too deep", file)
	}
	data, err := os.ReadFile(file)
	if err != nil {
		return "", nil, err
	}
	var cfg tsconfig
	if err := json.Unmarshal(StripJSONC(data), &cfg); err != nil {
		return "", nil, fmt.Errorf("parsing %s: %w", file, err)
	}

	baseURL, paths := ".", map[string][]string(nil)
	if strings.HasPrefix(cfg.Extends, ".") {
		parent := filepath.Join(filepath.Dir(file), filepath.FromSlash(cfg.Extends))
		if filepath.Ext(parent) == "" {
			parent += ".json"
		}
		baseURL, paths, err = readTSConfig(root, parent, depth+1)
		if err != nil && !errors.Is(err, os.ErrNotExist) {
			return "", nil, err
		}
		if err != nil {
			baseURL, paths = ".", nil
		}
	}

	if cfg.CompilerOptions.BaseURL != nil {
		dir, err := filepath.Rel(root, filepath.Join(filepath.Dir(file), filepath.FromSlash(*cfg.CompilerOptions.BaseURL)))
		if err != nil {
			return "", nil, err
		}
		baseURL = filepath.ToSlash(dir)
	}
	if cfg.CompilerOptions.Paths != nil {
		paths = cfg.CompilerOptions.Paths
	}
	return baseURL, paths, nil
}

func aliasTargets(baseURL string, paths map[string][]string) map[string][]string {
	out := make(map[string][]string, len(paths)+1)
	for pattern, targets := range paths {
		joined := make([]string, 0, len(targets))
		for _, t := range targets {
			joined = append(joined, path.Join(baseURL, t))
		}
		out[pattern] = joined
	}
	if baseURL != "." {
		if _, ok := out["*"]; !ok {
			out["*"] = []string{path.Join(baseURL, "*")}
		}
	}
	return out
}

// StripJSONC removes // and /* */ comments and trailing commas so JSON with
// comments, as tsconfig allows, can be decoded by encoding/json. String
// literals are left untouched.
func StripJSONC(data []byte) []byte {
	out := make([]byte, 0, len(data))
	inString, escaped := false, false
	for i := 0; i < len(data); i++ {
		c := data[i]
		if inString {
			out = append(out, c)
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch {
		case c == '"':
			inString = true
			out = append(out, c)
		case c == '/' && i+1 < len(data) && data[i+1] == '/':
			for i < len(data) && data[i] != '\n' {
				i++
			}
			if i < len(data) {
				out = append(out, '\n')
			}
		case c == '/' && i+1 < len(data) && data[i+1] == '*':
			i += 2
			for i+1 < len(data) && !(data[i] == '*' && data[i+1] == '/') {
				i++
			}
			i++
		case c == ',':
			if j := nextSignificant(data, i+1); j < len(data) && (data[j] == '}' || data[j] == ']') {
				continue
			}
			out = append(out, c)
		default:
			out = append(out, c)
		}
	}
	return out
}

// nextSignificant returns the index of the first byte at or after i that is
// neither whitespace nor inside a comment.
func nextSignificant(data []byte, i int) int {
	for i < len(data) {
		switch {
		case data[i] == ' ' || data[i] == '\t' || data[i] == '\n' || data[i] == '\r':
			i++
		case data[i] == '/' && i+1 < len(data) && data[i+1] == '/':
			for i < len(data) && data[i] != '\n' {
				i++
			}
		case data[i] == '/' && i+1 < len(data) && data[i+1] == '*':
			i += 2
			for i+1 < len(data) && !(data[i] == '*' && data[i+1] == '/') {
				i++
			}
			i += 2
		default:
			return i
		}
	}
	return i
}
