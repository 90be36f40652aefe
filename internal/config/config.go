// Package config loads surveyor settings from surveyor.yaml, the environment
// and the project's module-resolution config.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"

	"github.com/phobologic/surveyor/internal/artifact"
	"github.com/phobologic/surveyor/internal/behavior"
	"github.com/phobologic/surveyor/internal/cluster"
	"github.com/phobologic/surveyor/internal/discover"
	"github.com/phobologic/surveyor/internal/graph"
	"github.com/phobologic/surveyor/internal/model"
	"github.com/phobologic/surveyor/internal/scan"
	"github.com/phobologic/surveyor/internal/storage"
	"github.com/phobologic/surveyor/internal/summary"
	"github.com/phobologic/surveyor/internal/warnings"
)

// EnvPrefix prefixes environment overrides: SURVEYOR_ANALYZER_APIKEY sets
// analyzer.apiKey.
const EnvPrefix = "SURVEYOR"

// FileNames are the config files looked up in the project root, in order.
var FileNames = []string{"surveyor.yaml", ".surveyor.yaml"}

// Config is the full surveyor configuration.
type Config struct {
	Scan      ScanConfig       `mapstructure:"scan"`
	Warnings  warnings.Options `mapstructure:"warnings"`
	Clusters  cluster.Options  `mapstructure:"clusters"`
	Analyzer  behavior.Config  `mapstructure:"analyzer"`
	Summary   summary.Options  `mapstructure:"summary"`
	Storage   StorageConfig    `mapstructure:"storage"`
	Artifacts artifact.Config  `mapstructure:"artifacts"`
	Logging   LoggingConfig    `mapstructure:"logging"`

	// File is the config file that was read, empty when none was found.
	File string `mapstructure:"-"`
}

// ScanConfig controls discovery and linking.
type ScanConfig struct {
	IncludeExtensions []string `mapstructure:"includeExtensions"`
	ExcludeExtensions []string `mapstructure:"excludeExtensions"`
	ExcludeGlobs      []string `mapstructure:"excludeGlobs"`
	MaxFileSize       int64    `mapstructure:"maxFileSize"`
	Workers           int      `mapstructure:"workers"`
	// PathAliases is a list rather than a map so patterns keep their case.
	PathAliases    []Alias `mapstructure:"pathAliases"`
	FunctionCycles bool    `mapstructure:"functionCycles"`
}

// Alias maps an import pattern such as "@/*" to root-relative targets.
type Alias struct {
	Pattern string   `mapstructure:"pattern"`
	Targets []string `mapstructure:"targets"`
}

// StorageConfig locates the sqlite database.
type StorageConfig struct {
	Path string `mapstructure:"path"`
}

// LoggingConfig sets the default log level; CLI flags override it.
type LoggingConfig struct {
	Level string `mapstructure:"level"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Scan: ScanConfig{
			MaxFileSize: scan.DefaultOptions().MaxFileSize,
		},
		Warnings: warnings.DefaultOptions(),
		Clusters: cluster.DefaultOptions(),
		Analyzer: behavior.DefaultConfig(),
		Summary:  summary.DefaultOptions(),
		Storage:  StorageConfig{Path: storage.DefaultPath},
		Logging:  LoggingConfig{Level: "warn"},
	}
}

// Load reads the config for the project at root. explicitPath, when set,
// must exist; otherwise surveyor.yaml and .surveyor.yaml are tried in root
// and a missing file yields the defaults. Environment variables override
// both. The result is validated.
func Load(root, explicitPath string) (*Config, error) {
	v := viper.New()
	setDefaults(v, Default())
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	file := explicitPath
	if file == "" {
		for _, name := range FileNames {
			p := filepath.Join(root, name)
			if _, err := os.Stat(p); err == nil {
				file = p
				break
			}
		}
	}
	if file != "" {
		v.SetConfigFile(file)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading %s: %w", file, err)
		}
	}

	cfg := Default()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}
	cfg.File = file
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// setDefaults registers every scalar key so AutomaticEnv can override it.
func setDefaults(v *viper.Viper, d *Config) {
	defaults := map[string]any{
		"scan.maxFileSize":    d.Scan.MaxFileSize,
		"scan.workers":        d.Scan.Workers,
		"scan.functionCycles": d.Scan.FunctionCycles,

		"warnings.circularDependency":   d.Warnings.CircularDependency,
		"warnings.orphanedCode":         d.Warnings.OrphanedCode,
		"warnings.duplicateCode":        d.Warnings.DuplicateCode,
		"warnings.largeFile":            d.Warnings.LargeFile,
		"warnings.deepNesting":          d.Warnings.DeepNesting,
		"warnings.missingTypes":         d.Warnings.MissingTypes,
		"warnings.unusedExport":         d.Warnings.UnusedExport,
		"warnings.securityConcern":      d.Warnings.SecurityConcern,
		"warnings.frameworkConventions": d.Warnings.FrameworkConventions,
		"warnings.largeFileThreshold":   d.Warnings.LargeFileThreshold,
		"warnings.maxNestingDepth":      d.Warnings.MaxNestingDepth,
		"warnings.duplicateThreshold":   d.Warnings.DuplicateThreshold,
		"warnings.duplicateMinTokens":   d.Warnings.DuplicateMinTokens,

		"clusters.method":        string(d.Clusters.Method),
		"clusters.warningRatio":  d.Clusters.WarningRatio,
		"clusters.criticalRatio": d.Clusters.CriticalRatio,

		"analyzer.endpoint":    d.Analyzer.Endpoint,
		"analyzer.apiKey":      d.Analyzer.APIKey,
		"analyzer.model":       d.Analyzer.Model,
		"analyzer.maxTokens":   d.Analyzer.MaxTokens,
		"analyzer.temperature": d.Analyzer.Temperature,
		"analyzer.timeout":     d.Analyzer.Timeout,
		"analyzer.concurrency": d.Analyzer.Concurrency,

		"summary.maxL2Chars":        d.Summary.MaxL2Chars,
		"summary.maxFolders":        d.Summary.MaxFolders,
		"summary.maxFilesPerFolder": d.Summary.MaxFilesPerFolder,
		"summary.topFolders":        d.Summary.TopFolders,

		"storage.path": d.Storage.Path,

		"artifacts.endpoint":  d.Artifacts.Endpoint,
		"artifacts.region":    d.Artifacts.Region,
		"artifacts.bucket":    d.Artifacts.Bucket,
		"artifacts.accessKey": d.Artifacts.AccessKey,
		"artifacts.secretKey": d.Artifacts.SecretKey,
		"artifacts.useSSL":    d.Artifacts.UseSSL,
		"artifacts.prefix":    d.Artifacts.Prefix,

		"logging.level": d.Logging.Level,
	}
	for k, val := range defaults {
		v.SetDefault(k, val)
	}
}

// Validate reports the first invalid setting as a *ConfigError.
func (c *Config) Validate() error {
	switch {
	case c.Scan.MaxFileSize < 0:
		return &ConfigError{Field: "scan.maxFileSize", Message: "must not be negative"}
	case c.Scan.Workers < 0:
		return &ConfigError{Field: "scan.workers", Message: "must not be negative"}
	}
	for i, a := range c.Scan.PathAliases {
		if a.Pattern == "" || len(a.Targets) == 0 {
			return &ConfigError{Field: fmt.Sprintf("scan.pathAliases[%d]", i), Message: "needs a pattern and at least one target"}
		}
	}

	w := c.Warnings
	switch {
	case w.DuplicateThreshold <= 0 || w.DuplicateThreshold > 1:
		return &ConfigError{Field: "warnings.duplicateThreshold", Message: "must be in (0, 1]"}
	case w.LargeFileThreshold < 0:
		return &ConfigError{Field: "warnings.largeFileThreshold", Message: "must not be negative"}
	case w.MaxNestingDepth < 0:
		return &ConfigError{Field: "warnings.maxNestingDepth", Message: "must not be negative"}
	case w.DuplicateMinTokens < 0:
		return &ConfigError{Field: "warnings.duplicateMinTokens", Message: "must not be negative"}
	}
	for i, r := range w.ExtraSecurityRules {
		if r.Name == "" || r.Pattern == "" {
			return &ConfigError{Field: fmt.Sprintf("warnings.extraSecurityRules[%d]", i), Message: "needs a name and a pattern"}
		}
	}

	cl := c.Clusters
	switch cl.Method {
	case model.ClusterFolder, model.ClusterSmart:
	case model.ClusterManual:
		if len(cl.Manual) == 0 {
			return &ConfigError{Field: "clusters.manual", Message: "manual clustering needs at least one definition"}
		}
	default:
		return &ConfigError{Field: "clusters.method", Message: fmt.Sprintf("unknown method %q", cl.Method)}
	}
	for i, m := range cl.Manual {
		if m.Name == "" || len(m.Patterns) == 0 {
			return &ConfigError{Field: fmt.Sprintf("clusters.manual[%d]", i), Message: "needs a name and at least one pattern"}
		}
	}
	if cl.WarningRatio < 0 || cl.CriticalRatio < cl.WarningRatio {
		return &ConfigError{Field: "clusters.criticalRatio", Message: "ratios must satisfy 0 <= warningRatio <= criticalRatio"}
	}

	a := c.Analyzer
	switch {
	case a.MaxTokens < 0:
		return &ConfigError{Field: "analyzer.maxTokens", Message: "must not be negative"}
	case a.Temperature < 0 || a.Temperature > 2:
		return &ConfigError{Field: "analyzer.temperature", Message: "must be in [0, 2]"}
	case a.Timeout < 0:
		return &ConfigError{Field: "analyzer.timeout", Message: "must not be negative"}
	case a.Concurrency < 0:
		return &ConfigError{Field: "analyzer.concurrency", Message: "must not be negative"}
	}

	if c.Summary.MaxL2Chars < 0 || c.Summary.MaxFolders < 0 || c.Summary.MaxFilesPerFolder < 0 || c.Summary.TopFolders < 0 {
		return &ConfigError{Field: "summary", Message: "caps must not be negative"}
	}
	if c.Artifacts.Endpoint != "" && c.Artifacts.Bucket == "" {
		return &ConfigError{Field: "artifacts.bucket", Message: "required when an endpoint is set"}
	}
	if !validLevel(c.Logging.Level) {
		return &ConfigError{Field: "logging.level", Message: fmt.Sprintf("unknown level %q", c.Logging.Level)}
	}
	return nil
}

func validLevel(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "debug", "info", "warn", "warning", "error", "silent", "off":
		return true
	}
	return false
}

// AnalyzerEnabled reports whether behavioral analysis can reach an endpoint.
func (c *Config) AnalyzerEnabled() bool {
	return c.Analyzer.APIKey != "" || c.Analyzer.Endpoint != ""
}

// ScanOptions converts the config into scan options for the project at
// root. Explicit path aliases win; otherwise they are read from the
// project's tsconfig.json or jsconfig.json.
func (c *Config) ScanOptions(root string) (scan.Options, error) {
	aliases := make(map[string][]string, len(c.Scan.PathAliases))
	for _, a := range c.Scan.PathAliases {
		aliases[a.Pattern] = a.Targets
	}
	if len(aliases) == 0 {
		found, err := LoadAliases(root)
		if err != nil {
			return scan.Options{}, err
		}
		aliases = found
	}

	return scan.Options{
		Discover: discover.Options{
			IncludeExtensions: c.Scan.IncludeExtensions,
			ExcludeExtensions: c.Scan.ExcludeExtensions,
			ExcludeGlobs:      c.Scan.ExcludeGlobs,
		},
		Workers:     c.Scan.Workers,
		MaxFileSize: c.Scan.MaxFileSize,
		Graph:       graph.Options{Aliases: aliases, FunctionCycles: c.Scan.FunctionCycles},
		Warnings:    c.Warnings,
		Clusters:    c.Clusters,
		Summary:     c.Summary,
	}, nil
}

// ConfigError is a validation failure for one field.
type ConfigError struct {
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	return "config error in field '" + e.Field + "': " + e.Message
}

// IsConfigError reports whether err is or wraps a *ConfigError.
func IsConfigError(err error) bool {
	var ce *ConfigError
	return errors.As(err, &ce)
}
