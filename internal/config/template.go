package config

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// kv is one key of a template mapping.
type kv struct {
	key     string
	comment string
	value   any
}

// Template renders cfg as a commented surveyor.yaml. Keys use the same names
// Load reads.
func Template(cfg *Config) ([]byte, error) {
	aliases := make([]map[string]any, 0, len(cfg.Scan.PathAliases))
	for _, a := range cfg.Scan.PathAliases {
		aliases = append(aliases, map[string]any{"pattern": a.Pattern, "targets": a.Targets})
	}
	manual := make([]map[string]any, 0, len(cfg.Clusters.Manual))
	for _, m := range cfg.Clusters.Manual {
		manual = append(manual, map[string]any{"name": m.Name, "patterns": m.Patterns})
	}
	rules := make([]map[string]any, 0, len(cfg.Warnings.ExtraSecurityRules))
	for _, r := range cfg.Warnings.ExtraSecurityRules {
		rules = append(rules, map[string]any{"name": r.Name, "pattern": r.Pattern, "title": r.Title, "advice": r.Advice})
	}

	sections := []kv{
		{"scan", "File discovery and import resolution.", []kv{
			{"includeExtensions", "Empty means every supported extension.", nonNil(cfg.Scan.IncludeExtensions)},
			{"excludeExtensions", "", nonNil(cfg.Scan.ExcludeExtensions)},
			{"excludeGlobs", "gitignore-style patterns, relative to the project root.", nonNil(cfg.Scan.ExcludeGlobs)},
			{"maxFileSize", "Files larger than this many bytes are skipped.", cfg.Scan.MaxFileSize},
			{"workers", "Parser workers; 0 uses GOMAXPROCS.", cfg.Scan.Workers},
			{"pathAliases", "Defaults to compilerOptions.paths of tsconfig.json or jsconfig.json.", aliases},
			{"functionCycles", "Also report cycles between functions.", cfg.Scan.FunctionCycles},
		}},
		{"warnings", "", []kv{
			{"circularDependency", "", cfg.Warnings.CircularDependency},
			{"orphanedCode", "", cfg.Warnings.OrphanedCode},
			{"duplicateCode", "", cfg.Warnings.DuplicateCode},
			{"largeFile", "", cfg.Warnings.LargeFile},
			{"deepNesting", "", cfg.Warnings.DeepNesting},
			{"missingTypes", "", cfg.Warnings.MissingTypes},
			{"unusedExport", "", cfg.Warnings.UnusedExport},
			{"securityConcern", "", cfg.Warnings.SecurityConcern},
			{"frameworkConventions", "Exempt entry points and tests from orphan checks.", cfg.Warnings.FrameworkConventions},
			{"largeFileThreshold", "Lines.", cfg.Warnings.LargeFileThreshold},
			{"maxNestingDepth", "", cfg.Warnings.MaxNestingDepth},
			{"duplicateThreshold", "Token 3-shingle Jaccard similarity in (0, 1].", cfg.Warnings.DuplicateThreshold},
			{"duplicateMinTokens", "", cfg.Warnings.DuplicateMinTokens},
			{"extraSecurityRules", "Additional regex rules: name, pattern, title, advice.", rules},
		}},
		{"clusters", "", []kv{
			{"method", "folder, smart or manual.", string(cfg.Clusters.Method)},
			{"warningRatio", "", cfg.Clusters.WarningRatio},
			{"criticalRatio", "", cfg.Clusters.CriticalRatio},
			{"manual", "Used by the manual method: name plus gitignore-style patterns.", manual},
		}},
		{"analyzer", "Optional behavioral summaries from an OpenAI-compatible endpoint.", []kv{
			{"endpoint", "Empty uses the OpenAI API.", cfg.Analyzer.Endpoint},
			{"apiKey", "Prefer SURVEYOR_ANALYZER_APIKEY.", cfg.Analyzer.APIKey},
			{"model", "", cfg.Analyzer.Model},
			{"maxTokens", "", cfg.Analyzer.MaxTokens},
			{"temperature", "", cfg.Analyzer.Temperature},
			{"timeout", "", cfg.Analyzer.Timeout.String()},
			{"concurrency", "", cfg.Analyzer.Concurrency},
		}},
		{"summary", "", []kv{
			{"maxL2Chars", "", cfg.Summary.MaxL2Chars},
			{"maxFolders", "", cfg.Summary.MaxFolders},
			{"maxFilesPerFolder", "", cfg.Summary.MaxFilesPerFolder},
			{"topFolders", "", cfg.Summary.TopFolders},
		}},
		{"storage", "", []kv{
			{"path", "sqlite database, relative to the project root.", cfg.Storage.Path},
		}},
		{"artifacts", "S3-compatible bucket for uploaded scan results.", []kv{
			{"endpoint", "", cfg.Artifacts.Endpoint},
			{"region", "", cfg.Artifacts.Region},
			{"bucket", "", cfg.Artifacts.Bucket},
			{"accessKey", "", cfg.Artifacts.AccessKey},
			{"secretKey", "", cfg.Artifacts.SecretKey},
			{"useSSL", "", cfg.Artifacts.UseSSL},
			{"prefix", "", cfg.Artifacts.Prefix},
		}},
		{"logging", "", []kv{
			{"level", "debug, info, warn, error or silent.", cfg.Logging.Level},
		}},
	}

	root, err := mapping(sections)
	if err != nil {
		return nil, err
	}
	root.HeadComment = "surveyor configuration"

	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(&yaml.Node{Kind: yaml.DocumentNode, Content: []*yaml.Node{root}}); err != nil {
		return nil, err
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func mapping(pairs []kv) (*yaml.Node, error) {
	m := &yaml.Node{Kind: yaml.MappingNode}
	for _, p := range pairs {
		key := &yaml.Node{Kind: yaml.ScalarNode, Value: p.key, HeadComment: p.comment}
		var val *yaml.Node
		if nested, ok := p.value.([]kv); ok {
			n, err := mapping(nested)
			if err != nil {
				return nil, err
			}
			val = n
		} else {
			val = &yaml.Node{}
			if err := val.Encode(p.value); err != nil {
				return nil, fmt.Errorf("encoding %s: %w", p.key, err)
			}
		}
		m.Content = append(m.Content, key, val)
	}
	return m, nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

// WriteTemplate writes the default configuration to path. It refuses to
// overwrite an existing file unless force is set.
func WriteTemplate(path string, force bool) error {
	if !force {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("%s already exists", path)
		}
	}
	data, err := Template(Default())
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
