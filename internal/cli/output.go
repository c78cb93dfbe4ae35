package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/HendryAvila/dotbot/internal/health"
	"github.com/HendryAvila/dotbot/internal/history"
	"github.com/HendryAvila/dotbot/internal/issues"
	"github.com/HendryAvila/dotbot/internal/registry"
	"github.com/HendryAvila/dotbot/internal/solution"
	"github.com/HendryAvila/dotbot/internal/tools"
	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"
	"golang.org/x/term"
)

func writeJSON(w io.Writer, env *tools.Envelope) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(env)
}

// isTerminal reports whether w is an interactive terminal.
func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

type styles struct {
	ok, warn, fail, title, dim lipgloss.Style
}

func newStyles(color bool) styles {
	if !color {
		plain := lipgloss.NewStyle()
		return styles{plain, plain, plain, plain, plain}
	}
	return styles{
		ok:    lipgloss.NewStyle().Foreground(lipgloss.Color("green")).Bold(true),
		warn:  lipgloss.NewStyle().Foreground(lipgloss.Color("yellow")).Bold(true),
		fail:  lipgloss.NewStyle().Foreground(lipgloss.Color("red")).Bold(true),
		title: lipgloss.NewStyle().Bold(true),
		dim:   lipgloss.NewStyle().Foreground(lipgloss.Color("240")),
	}
}

// printer renders envelopes as text.
type printer struct {
	w       io.Writer
	st      styles
	verbose bool
}

func newPrinter(w io.Writer, verbose bool) *printer {
	return &printer{w: w, st: newStyles(isTerminal(w)), verbose: verbose}
}

func (p *printer) line(format string, args ...any) {
	fmt.Fprintf(p.w, format+"\n", args...)
}

// mark renders a status word in its color.
func (p *printer) mark(status string) string {
	switch status {
	case tools.StatusOK, string(issues.StatusPass):
		return p.st.ok.Render(strings.ToUpper(status))
	case tools.StatusWarning:
		return p.st.warn.Render("WARN")
	default:
		return p.st.fail.Render(strings.ToUpper(status))
	}
}

func (p *printer) envelope(env *tools.Envelope) error {
	p.line("%s %s", p.mark(env.Status), env.Summary)

	switch d := env.Data.(type) {
	case *solution.Structure:
		p.structure(d)
	case *solution.MergedProject:
		p.project(d)
	case *registry.Entry:
		p.entry(d)
	case tools.FrontmatterData:
		p.frontmatter(d)
	case tools.ReferencesData:
		p.references(d)
	case tools.HealthData:
		p.health(d.Result)
		if d.RunID != "" {
			p.line("%s", p.st.dim.Render("recorded as "+d.RunID))
		}
	case []history.Run:
		p.runs(d)
	}

	p.issues("Errors", env.Errors, p.st.fail)
	p.issues("Warnings", env.Warnings, p.st.warn)
	if p.verbose {
		p.line("%s", p.st.dim.Render(fmt.Sprintf("%s v%s via %s in %dms",
			env.Operation, env.Version, env.Audit.Source, env.Audit.DurationMs)))
	}
	return nil
}

func (p *printer) structure(st *solution.Structure) {
	if len(st.Projects) == 0 {
		return
	}
	p.line("")
	width := 0
	for _, m := range st.Projects {
		width = max(width, len(m.Name))
	}
	for _, m := range st.Projects {
		reg := ""
		if m.Registered {
			reg = p.st.ok.Render("registered")
		}
		p.line("  %-*s  %-12s  %-10s  %s  %s", width, m.Name, m.Type, m.Alias, p.st.dim.Render(m.Path), reg)
	}

	types := make([]string, 0, len(st.CountsByType))
	for t, n := range st.CountsByType {
		types = append(types, fmt.Sprintf("%s %d", t, n))
	}
	sort.Strings(types)
	p.line("")
	p.line("%s", p.st.dim.Render(strings.Join(types, ", ")))
}

func (p *printer) project(m *solution.MergedProject) {
	p.line("")
	p.line("  %s %s", p.st.title.Render("name:   "), m.Name)
	p.line("  %s %s", p.st.title.Render("type:   "), m.Type)
	p.line("  %s %s", p.st.title.Render("path:   "), m.Path)
	p.line("  %s %s (%s)", p.st.title.Render("alias:  "), m.Alias, m.AliasSource)
	p.line("  %s %s", p.st.title.Render("summary:"), m.Summary)
	if len(m.Tags) > 0 {
		p.line("  %s %s", p.st.title.Render("tags:   "), strings.Join(m.Tags, ", "))
	}
	if m.Owner != "" {
		p.line("  %s %s", p.st.title.Render("owner:  "), m.Owner)
	}
	if m.RegisteredAt != nil {
		p.line("  %s %s", p.st.title.Render("since:  "), humanize.Time(*m.RegisteredAt))
	}
}

func (p *printer) entry(e *registry.Entry) {
	if len(e.Tags) > 0 {
		p.line("  tags: %s", strings.Join(e.Tags, ", "))
	}
}

func (p *printer) frontmatter(d tools.FrontmatterData) {
	if !d.HasFrontMatter {
		return
	}
	p.line("")
	for _, k := range d.Keys {
		p.line("  %s %v", p.st.title.Render(k+":"), d.Fields[k])
	}
	for _, v := range d.Violations {
		p.line("  %s line %d: %s", p.st.fail.Render("!"), v.Line, v.Message)
	}
}

func (p *printer) references(d tools.ReferencesData) {
	if len(d.Edges) == 0 {
		return
	}
	p.line("")
	for _, e := range d.Edges {
		p.line("  %s -> %s %s", e.Source, e.Target, p.st.dim.Render(string(e.Kind)))
	}
	for _, c := range d.Cycles {
		p.line("  %s %s", p.st.fail.Render("cycle"), strings.Join(c, " -> "))
	}
}

func (p *printer) health(res *health.Result) {
	if res == nil {
		return
	}
	for _, c := range res.Categories {
		p.line("")
		p.line("%s %s", p.mark(string(c.Status)), p.st.title.Render(c.Name))
		for _, ch := range c.Checks {
			if ch.Status == issues.StatusPass && !p.verbose {
				continue
			}
			p.line("  %-24s %s", ch.Name, ch.Message)
		}
	}
}

func (p *printer) runs(runs []history.Run) {
	if len(runs) == 0 {
		return
	}
	p.line("")
	for _, r := range runs {
		p.line("  %s  %-13s  %s  %s, %s  %s",
			p.st.dim.Render(r.ID[:min(8, len(r.ID))]),
			r.Level,
			p.mark(string(r.Status)),
			humanize.Comma(int64(r.Errors))+" errors",
			humanize.Comma(int64(r.Warnings))+" warnings",
			p.st.dim.Render(humanize.Time(r.CreatedAt)))
	}
}

func (p *printer) issues(title string, list []issues.Issue, style lipgloss.Style) {
	if len(list) == 0 {
		return
	}
	p.line("")
	p.line("%s", style.Render(fmt.Sprintf("%s (%d)", title, len(list))))
	for _, is := range list {
		where := ""
		if is.Path != "" {
			where = " " + p.st.dim.Render(is.Path)
		}
		p.line("  [%s] %s%s", is.Code, is.Message, where)
		if p.verbose && is.Recommendation != "" {
			p.line("    %s", p.st.dim.Render("→ "+is.Recommendation))
		}
	}
}
