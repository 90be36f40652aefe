// Package output renders scan results and status lines for the terminal.
//
// Styles come from a lipgloss renderer bound to the destination writer, so
// redirected output and NO_COLOR environments get plain text.
package output

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/phobologic/surveyor/internal/model"
	"github.com/phobologic/surveyor/internal/storage"
)

// Level selects which summary tiers Report prints.
type Level string

const (
	LevelL0  Level = "l0"
	LevelL1  Level = "l1"
	LevelL2  Level = "l2"
	LevelAll Level = "all"
)

// ParseLevel validates a --level flag value.
func ParseLevel(s string) (Level, error) {
	switch l := Level(strings.ToLower(s)); l {
	case LevelL0, LevelL1, LevelL2, LevelAll:
		return l, nil
	}
	return "", fmt.Errorf("unknown level %q (want l0, l1, l2 or all)", s)
}

// maxListedWarnings caps the warning list of a full report.
const maxListedWarnings = 20

// Printer writes styled lines to one writer. It is safe for concurrent use.
type Printer struct {
	mu sync.Mutex
	w  io.Writer

	title   lipgloss.Style
	success lipgloss.Style
	failure lipgloss.Style
	info    lipgloss.Style
	step    lipgloss.Style
	good    lipgloss.Style
	fair    lipgloss.Style
	poor    lipgloss.Style
}

// New creates a Printer for w.
func New(w io.Writer) *Printer {
	r := lipgloss.NewRenderer(w)
	return &Printer{
		w:       w,
		title:   r.NewStyle().Bold(true).Underline(true),
		success: r.NewStyle().Foreground(lipgloss.Color("green")).Bold(true),
		failure: r.NewStyle().Foreground(lipgloss.Color("red")).Bold(true),
		info:    r.NewStyle().Foreground(lipgloss.Color("cyan")),
		step:    r.NewStyle().Foreground(lipgloss.Color("240")),
		good:    r.NewStyle().Foreground(lipgloss.Color("2")),
		fair:    r.NewStyle().Foreground(lipgloss.Color("3")),
		poor:    r.NewStyle().Foreground(lipgloss.Color("1")).Bold(true),
	}
}

func (p *Printer) println(s string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintln(p.w, s)
}

// Success prints a completed operation.
func (p *Printer) Success(msg string) { p.println(p.success.Render("✓ " + msg)) }

// Error prints a failure that needs attention.
func (p *Printer) Error(msg string) { p.println(p.failure.Render("✗ " + msg)) }

// Info prints a status update.
func (p *Printer) Info(msg string) { p.println(p.info.Render(msg)) }

// Step prints an indented sub-item.
func (p *Printer) Step(msg string) { p.println(p.step.Render("   " + msg)) }

// Health renders a 0-100 score colored by band.
func (p *Printer) Health(score int) string {
	s := fmt.Sprintf("%d/100", score)
	switch {
	case score >= 80:
		return p.good.Render(s)
	case score >= 50:
		return p.fair.Render(s)
	default:
		return p.poor.Render(s)
	}
}

func (p *Printer) level(l model.WarningLevel) string {
	s := fmt.Sprintf("%-7s", l)
	switch l {
	case model.LevelError:
		return p.poor.Render(s)
	case model.LevelWarning:
		return p.fair.Render(s)
	default:
		return p.step.Render(s)
	}
}

// Report prints the summary tiers selected by level. LevelAll adds a
// headline and the most severe warnings.
func (p *Printer) Report(res *model.ScanResult, level Level) {
	if res.Summary == nil {
		p.Error(fmt.Sprintf("scan %s has no summary (status %s)", res.ID, res.Status))
		return
	}
	switch level {
	case LevelL0:
		p.println(res.Summary.L0)
	case LevelL1:
		p.println(res.Summary.L1)
	case LevelL2:
		p.println(res.Summary.L2)
	default:
		p.println(p.title.Render(res.ProjectName) + "  health " + p.Health(res.Stats.HealthScore))
		p.println(res.Summary.L0)
		p.println("")
		p.println(res.Summary.L1)
		p.warnings(res)
		p.println("")
		p.println(res.Summary.L2)
		p.errors(res)
	}
}

func (p *Printer) warnings(res *model.ScanResult) {
	if len(res.Warnings) == 0 {
		return
	}
	ws := append([]*model.Warning(nil), res.Warnings...)
	sort.SliceStable(ws, func(i, j int) bool { return severity(ws[i].Level) > severity(ws[j].Level) })

	p.println("")
	p.println(p.title.Render("Warnings"))
	for _, w := range ws[:min(len(ws), maxListedWarnings)] {
		p.println(p.level(w.Level) + " " + w.Title)
		if w.Suggestion != nil && w.Suggestion.Summary != "" {
			p.Step(w.Suggestion.Summary)
		}
	}
	if rest := len(ws) - maxListedWarnings; rest > 0 {
		p.Step(fmt.Sprintf("... %d more", rest))
	}
}

func (p *Printer) errors(res *model.ScanResult) {
	if len(res.Errors) == 0 {
		return
	}
	p.println("")
	p.println(p.title.Render("Errors"))
	for _, e := range res.Errors {
		loc := e.FilePath
		if e.Line != nil {
			loc = fmt.Sprintf("%s:%d", loc, *e.Line)
		}
		p.println(p.failure.Render("✗ ") + loc + ": " + e.Message)
	}
}

func severity(l model.WarningLevel) int {
	switch l {
	case model.LevelError:
		return 2
	case model.LevelWarning:
		return 1
	}
	return 0
}

// Scans prints stored scan records as a table, newest first.
func (p *Printer) Scans(records []storage.ScanRecord) {
	if len(records) == 0 {
		p.Info("no scans recorded")
		return
	}
	p.println(p.title.Render(fmt.Sprintf("%-36s  %-20s  %-9s  %6s  %5s  %8s", "ID", "CREATED", "STATUS", "HEALTH", "FILES", "WARNINGS")))
	for _, r := range records {
		p.println(fmt.Sprintf("%-36s  %-20s  %-9s  %6d  %5d  %8d",
			r.ID, r.CreatedAt.Local().Format(time.DateTime), r.Status, r.HealthScore, r.TotalFiles, r.TotalWarnings))
	}
}

// Progress prints one progress event. Per-file parse and analysis events
// are only printed when they carry an error or verbose is set.
func (p *Printer) Progress(ev model.ScanProgress, verbose bool) {
	switch {
	case ev.Error != "" && ev.Phase != model.PhaseFailed:
		target := ev.FilePath
		if ev.FunctionName != "" {
			target = ev.FunctionName
		}
		p.println(p.step.Render(fmt.Sprintf("[%s] %s: %s", ev.Phase, target, ev.Error)))
	case ev.Phase == model.PhaseParsing || ev.Phase == model.PhaseAnalyzing:
		if verbose {
			name := ev.FilePath
			if ev.FunctionName != "" {
				name = ev.FunctionName
			}
			suffix := ""
			if ev.FromCache {
				suffix = " (cached)"
			}
			p.println(p.step.Render(fmt.Sprintf("[%s %d/%d] %s%s", ev.Phase, ev.Current, ev.Total, name, suffix)))
		}
	case ev.Phase == model.PhaseFailed:
		p.Error("scan failed: " + ev.Error)
	case ev.Phase == model.PhaseComplete:
		p.Success(fmt.Sprintf("scanned %d files", ev.Total))
	default:
		p.Info(string(ev.Phase) + "...")
	}
}
