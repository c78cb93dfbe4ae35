// Package health runs the tiered health check over a managed repository.
//
// Three levels, each a strict superset of the previous:
//
//	basic          structure, state
//	standard       + artifacts, product, projects
//	comprehensive  + frontmatter, dependencies, tests, vcs
//
// A lower level never runs a higher level's checks. Every category rolls
// its checks up into one status; the overall status is the worst category.
package health

import (
	"context"
	"fmt"
	"strings"

	"github.com/HendryAvila/dotbot/internal/artifacts"
	"github.com/HendryAvila/dotbot/internal/config"
	"github.com/HendryAvila/dotbot/internal/issues"
	"github.com/HendryAvila/dotbot/internal/solution"
)

// Level selects which tier of checks runs.
type Level string

const (
	LevelBasic         Level = "basic"
	LevelStandard      Level = "standard"
	LevelComprehensive Level = "comprehensive"
)

// Levels lists the tiers in order.
var Levels = []Level{LevelBasic, LevelStandard, LevelComprehensive}

func (l Level) rank() int {
	for i, x := range Levels {
		if x == l {
			return i
		}
	}
	return -1
}

// Includes reports whether running at l also runs the checks of other.
func (l Level) Includes(other Level) bool { return l.rank() >= other.rank() }

// ParseLevel validates a level name. An empty name selects standard.
func ParseLevel(s string) (Level, error) {
	if strings.TrimSpace(s) == "" {
		return LevelStandard, nil
	}
	l := Level(strings.ToLower(strings.TrimSpace(s)))
	if l.rank() < 0 {
		return "", fmt.Errorf("unknown level %q (want basic, standard or comprehensive)", s)
	}
	return l, nil
}

// Check is one named probe inside a category.
type Check struct {
	Name    string         `json:"name"`
	Status  issues.Status  `json:"status"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

// Category is a named group of checks.
type Category struct {
	Name   string        `json:"name"`
	Status issues.Status `json:"status"`
	Checks []Check       `json:"checks"`
}

// Result is the output of one health run. It is never persisted by this
// package.
type Result struct {
	Level      Level          `json:"level"`
	Status     issues.Status  `json:"status"`
	RepoRoot   string         `json:"repoRoot"`
	Categories []Category     `json:"categories"`
	Issues     []issues.Issue `json:"issues"`
	Report     issues.Report  `json:"-"`
}

// Counts returns the number of errors and warnings.
func (r *Result) Counts() (errs, warns int) {
	return len(r.Report.Errors), len(r.Report.Warnings)
}

// Checker runs health checks for one repository.
type Checker struct {
	cfg      config.Config
	solution *solution.Service
}

// NewChecker creates a Checker. svc may be nil, in which case a solution
// service over the default registry file is used.
func NewChecker(cfg config.Config, svc *solution.Service) *Checker {
	if svc == nil {
		svc = solution.NewService(cfg, nil)
	}
	return &Checker{cfg: cfg, solution: svc}
}

// run holds per-invocation state shared across categories.
type run struct {
	ctx      context.Context
	cfg      config.Config
	solution *solution.Service
	loader   *artifacts.Loader
	paths    []string
	projects *solution.Structure
	// projectReport is the discovery report behind projects.
	projectReport issues.Report
	result        *Result
}

// Run executes every category of level in order.
func (c *Checker) Run(ctx context.Context, level Level) (*Result, error) {
	if level.rank() < 0 {
		return nil, fmt.Errorf("unknown level %q", level)
	}
	loader, err := artifacts.NewLoader(c.cfg)
	if err != nil {
		return nil, err
	}
	r := &run{
		ctx:      ctx,
		cfg:      c.cfg,
		solution: c.solution,
		loader:   loader,
		result: &Result{
			Level:      level,
			RepoRoot:   c.cfg.RepoRoot,
			Categories: []Category{},
		},
	}

	managed, err := r.structure()
	if err != nil {
		return nil, err
	}
	if managed {
		for _, step := range steps {
			if !level.Includes(step.level) {
				continue
			}
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			if err := step.fn(r); err != nil {
				return nil, fmt.Errorf("%s check: %w", step.name, err)
			}
		}
	}

	res := r.result
	res.Report.Sort()
	res.Issues = res.Report.All()
	statuses := make([]issues.Status, 0, len(res.Categories))
	for _, cat := range res.Categories {
		statuses = append(statuses, cat.Status)
	}
	res.Status = issues.Worst(statuses...)
	return res, nil
}

type step struct {
	name  string
	level Level
	fn    func(*run) error
}

// steps run after structure, in category order.
var steps = []step{
	{"state", LevelBasic, (*run).state},
	{"artifacts", LevelStandard, (*run).artifactCounts},
	{"product", LevelStandard, (*run).product},
	{"projects", LevelStandard, (*run).projectDiscovery},
	{"frontmatter", LevelComprehensive, (*run).frontmatter},
	{"dependencies", LevelComprehensive, (*run).dependencies},
	{"tests", LevelComprehensive, (*run).tests},
	{"vcs", LevelComprehensive, (*run).vcs},
}

// category accumulates checks and issues for one named group.
type category struct {
	r   *run
	cat Category
}

func (r *run) begin(name string) *category {
	return &category{r: r, cat: Category{Name: name, Status: issues.StatusPass, Checks: []Check{}}}
}

// pass records a passing check.
func (c *category) pass(name, format string, args ...any) *Check {
	c.cat.Checks = append(c.cat.Checks, Check{Name: name, Status: issues.StatusPass, Message: fmt.Sprintf(format, args...)})
	return &c.cat.Checks[len(c.cat.Checks)-1]
}

// fail records a failing check and files its issue.
func (c *category) fail(name string, is issues.Issue) *Check {
	is = is.In(c.cat.Name)
	c.r.result.Report.Add(is)
	c.cat.Checks = append(c.cat.Checks, Check{Name: name, Status: issues.StatusOf(is.Severity), Message: is.Message})
	return &c.cat.Checks[len(c.cat.Checks)-1]
}

// file adds issues found by a sub-component, each as its own check.
func (c *category) file(name string, found []issues.Issue) {
	for _, is := range found {
		c.fail(name, is)
	}
}

func (c *category) end() {
	statuses := make([]issues.Status, 0, len(c.cat.Checks))
	for _, ch := range c.cat.Checks {
		statuses = append(statuses, ch.Status)
	}
	c.cat.Status = issues.Worst(statuses...)
	c.r.result.Categories = append(c.r.result.Categories, c.cat)
}
