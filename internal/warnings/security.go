package warnings

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/phobologic/surveyor/internal/model"
)

// SecurityRule is a pattern whose match in source is reported as a
// SecurityConcern.
type SecurityRule struct {
	Name    string `mapstructure:"name"`
	Pattern string `mapstructure:"pattern"`
	Title   string `mapstructure:"title"`
	Advice  string `mapstructure:"advice"`
}

// DefaultSecurityRules is the built-in pattern set: committed credentials
// plus dynamic code execution, shell execution, HTML injection, SQL built by
// string concatenation and unsafe deserialization.
var DefaultSecurityRules = []SecurityRule{
	{
		Name:    "private-key",
		Pattern: `-----BEGIN (?:RSA |EC |DSA |OPENSSH |PGP )?PRIVATE KEY`,
		Title:   "Private key material in source",
		Advice:  "Remove the key, rotate it and load it from a secrets manager.",
	},
	{
		Name:    "aws-access-key",
		Pattern: `\b(?:AKIA|ASIA)[0-9A-Z]{16}\b`,
		Title:   "AWS access key in source",
		Advice:  "Revoke the key and use IAM roles or environment configuration.",
	},
	{
		Name:    "provider-token",
		Pattern: `\b(?:gh[pousr]_[A-Za-z0-9_]{36,}|github_pat_[A-Za-z0-9_]{20,}|xox[baprs]-[A-Za-z0-9-]{10,}|sk_live_[0-9A-Za-z]{24,}|AIza[0-9A-Za-z_-]{35}|npm_[A-Za-z0-9]{36})`,
		Title:   "Access token in source",
		Advice:  "Revoke the token and inject it at runtime from CI or a secrets manager.",
	},
	{
		Name:    "hardcoded-credential",
		Pattern: `(?i)\b(?:api[_-]?key|client[_-]?secret|secret[_-]?key|password|passwd|auth[_-]?token|access[_-]?token)["']?\s*[:=]\s*["'][^"'\s]{8,}["']`,
		Title:   "Hard-coded credential",
		Advice:  "Read credentials from environment variables or a secrets manager.",
	},
	{
		Name:    "url-credentials",
		Pattern: `\b[a-z][a-z0-9+.-]*://[^\s/:@'"]+:[^\s/@'"]+@`,
		Title:   "Credentials embedded in URL",
		Advice:  "Strip credentials from URLs and pass them through configuration.",
	},
	{
		Name:    "dynamic-eval",
		Pattern: `(?m)(?:^|[^.\w])eval\s*\(|\bnew\s+Function\s*\(|\bexec\s*\(\s*compile\s*\(`,
		Title:   "Dynamic code evaluation",
		Advice:  "Avoid evaluating strings as code; parse the data or dispatch on a fixed table.",
	},
	{
		Name:    "shell-exec",
		Pattern: `\b(?:execSync|spawnSync)\s*\(|\bchild_process\b|\bos\.system\s*\(|\bos\.popen\s*\(|\bsubprocess\.\w+\([^)]*shell\s*=\s*True`,
		Title:   "Shell command execution",
		Advice:  "Pass arguments as a list without a shell and validate any user input.",
	},
	{
		Name:    "html-injection",
		Pattern: `\.(?:innerHTML|outerHTML)\s*=|\bdangerouslySetInnerHTML\b|\bdocument\.write\s*\(`,
		Title:   "Raw HTML injection",
		Advice:  "Render text with textContent or a templating layer that escapes output.",
	},
	{
		Name:    "sql-concatenation",
		Pattern: "(?i)[\"'`]\\s*(?:SELECT|INSERT|UPDATE|DELETE)\\b[^\"'`;]*[\"'`]\\s*\\+|`\\s*(?:SELECT|INSERT|UPDATE|DELETE)\\b[^`]*\\$\\{|\\bf[\"'](?:SELECT|INSERT|UPDATE|DELETE)\\b[^\"']*\\{",
		Title:   "SQL built from strings",
		Advice:  "Use parameterized queries instead of concatenating values into SQL.",
	},
	{
		Name:    "unsafe-deserialization",
		Pattern: `\bpickle\.loads?\s*\(|\bmarshal\.loads\s*\(|\byaml\.unsafe_load\s*\(|\byaml\.load\s*\([^)]*Loader\s*=\s*yaml\.Loader`,
		Title:   "Unsafe deserialization",
		Advice:  "Deserialize untrusted data with a safe loader or a schema-validated format.",
	},
}

type compiledRule struct {
	SecurityRule
	re *regexp.Regexp
}

type securityRule struct {
	rules []compiledRule
}

func newSecurityRule(extra []SecurityRule) (securityRule, error) {
	var r securityRule
	for _, sr := range append(append([]SecurityRule{}, DefaultSecurityRules...), extra...) {
		re, err := regexp.Compile(sr.Pattern)
		if err != nil {
			return securityRule{}, fmt.Errorf("security rule %q: %w", sr.Name, err)
		}
		if sr.Title == "" {
			sr.Title = "Security concern: " + sr.Name
		}
		r.rules = append(r.rules, compiledRule{SecurityRule: sr, re: re})
	}
	return r, nil
}

func (securityRule) Category() model.WarningCategory { return model.SecurityConcern }

type hit struct {
	rule  *compiledRule
	node  string
	lines map[int]bool
}

// Check scans file content when Input.ReadFile is set and function sources
// otherwise. Each match is attributed to the innermost function containing
// it, or to the file for top-level code.
func (r securityRule) Check(in *Input) []*model.Warning {
	hits := make(map[string]*hit)
	record := func(rule *compiledRule, node string, line int) {
		key := rule.Name + "\x00" + node
		h := hits[key]
		if h == nil {
			h = &hit{rule: rule, node: node, lines: make(map[int]bool)}
			hits[key] = h
		}
		h.lines[line] = true
	}

	for _, file := range in.Graph.Nodes.OfType(model.NodeFile) {
		var content []byte
		if in.ReadFile != nil {
			content, _ = in.ReadFile(file.FilePath)
		}
		if content != nil {
			r.scan(string(content), 1, func(rule *compiledRule, line int) {
				record(rule, innermost(in, file, line), line)
			})
			continue
		}
		for _, id := range file.File.Functions {
			fn := in.Graph.Nodes[id]
			if fn == nil {
				continue
			}
			r.scan(fn.Function.Source, fn.Line, func(rule *compiledRule, line int) {
				record(rule, innermost(in, file, line), line)
			})
		}
	}

	keys := make([]string, 0, len(hits))
	for k := range hits {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var out []*model.Warning
	for _, k := range keys {
		h := hits[k]
		n := in.Graph.Nodes[h.node]
		nums := make([]int, 0, len(h.lines))
		for l := range h.lines {
			nums = append(nums, l)
		}
		sort.Ints(nums)
		lines := make([]string, len(nums))
		for i, l := range nums {
			lines[i] = fmt.Sprint(l)
		}
		out = append(out, newWarning(model.SecurityConcern, model.LevelError, h.rule.Title,
			fmt.Sprintf("%s matches the %s pattern on line(s) %s.", displayName(n), h.rule.Name, strings.Join(lines, ", ")),
			[]string{h.node},
			&model.Suggestion{
				Summary:   h.rule.Advice,
				Reasoning: "Patterns like this are a common source of leaked credentials and injection flaws.",
			}))
	}
	return out
}

// scan reports every rule match in text; firstLine is the line number of
// the text's first line.
func (r securityRule) scan(text string, firstLine int, report func(*compiledRule, int)) {
	for i := range r.rules {
		rule := &r.rules[i]
		for _, loc := range rule.re.FindAllStringIndex(text, -1) {
			report(rule, firstLine+strings.Count(text[:loc[0]], "\n"))
		}
	}
}

// innermost returns the ID of the narrowest function in file spanning line,
// or the file's ID.
func innermost(in *Input, file *model.Node, line int) string {
	best := file
	for _, id := range file.File.Functions {
		fn := in.Graph.Nodes[id]
		if fn == nil || line < fn.Line || line > fn.EndLine {
			continue
		}
		if best == file || fn.EndLine-fn.Line < best.EndLine-best.Line {
			best = fn
		}
	}
	return best.ID
}
