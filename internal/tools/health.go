package tools

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/HendryAvila/dotbot/internal/config"
	"github.com/HendryAvila/dotbot/internal/health"
	"github.com/HendryAvila/dotbot/internal/history"
	"github.com/HendryAvila/dotbot/internal/issues"
	"github.com/HendryAvila/dotbot/internal/metrics"
	"github.com/mark3labs/mcp-go/mcp"
)

// Operation names.
const (
	OpHealthCheck   = "health.check"
	OpHealthHistory = "health.history"
)

var errNoHistory = errors.New("history is not configured")

// HistoryOpener opens the run recorder on demand. The database is only
// touched when a caller asks to record or list runs.
type HistoryOpener func() (history.Recorder, error)

// OpenHistory returns an opener over the SQLite store in cfg.DataDir.
func OpenHistory(cfg config.Config) HistoryOpener {
	return func() (history.Recorder, error) {
		return history.Open(cfg.DataDir)
	}
}

// --- health_check ---

// HealthCheckParams are the inputs of health.check.
type HealthCheckParams struct {
	Level  string
	Record bool
}

// HealthData is the payload of health.check.
type HealthData struct {
	*health.Result
	RunID string `json:"runId,omitempty"`
}

// HealthCheckTool handles the health_check MCP tool.
type HealthCheckTool struct {
	checker *health.Checker
	history HistoryOpener // nil disables recording
	resp    *Responder
	metrics *metrics.Metrics
}

// NewHealthCheckTool creates a HealthCheckTool. hist and m may be nil.
func NewHealthCheckTool(checker *health.Checker, hist HistoryOpener, resp *Responder, m *metrics.Metrics) *HealthCheckTool {
	return &HealthCheckTool{checker: checker, history: hist, resp: resp, metrics: m}
}

// Definition returns the MCP tool definition for registration.
func (t *HealthCheckTool) Definition() mcp.Tool {
	levels := make([]string, len(health.Levels))
	for i, l := range health.Levels {
		levels[i] = string(l)
	}
	return mcp.NewTool("health_check",
		mcp.WithDescription(
			"Run the repository health check. 'basic' checks the .bot tree and state "+
				"file; 'standard' adds artifact counts, product documents and project "+
				"discovery; 'comprehensive' adds front-matter validation, dependency "+
				"graph analysis (cycles, broken references, orphans), a test-project "+
				"ratio and a version-control check.",
		),
		mcp.WithString("level",
			mcp.Description("Check tier. Default: standard."),
			mcp.Enum(levels...),
		),
		mcp.WithBoolean("record",
			mcp.Description("Store a summary of this run in the local history database. Default: false."),
		),
	)
}

// Handle processes the health_check tool call.
func (t *HealthCheckTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	env, err := t.Run(ctx, HealthCheckParams{
		Level:  req.GetString("level", ""),
		Record: boolArg(req, "record", false),
	})
	if err != nil {
		return nil, err
	}
	return toResult(env)
}

// Run executes the check and optionally records it.
func (t *HealthCheckTool) Run(ctx context.Context, p HealthCheckParams) (*Envelope, error) {
	c := t.resp.start(OpHealthCheck)
	level, err := health.ParseLevel(p.Level)
	if err != nil {
		return t.resp.invalid(c, "level", "%v", err), nil
	}

	res, err := t.checker.Run(ctx, level)
	if err != nil {
		return nil, fmt.Errorf("running %s health check: %w", level, err)
	}
	t.metrics.ObserveHealthRun(string(res.Level), string(res.Status))

	data := HealthData{Result: res}
	report := res.Report
	if p.Record {
		id, err := t.record(ctx, res, timeNow().Sub(c.started))
		if err != nil {
			log.Printf("WARNING: recording health run: %v", err)
			report.Add(issues.Warnf(issues.CheckFailed, "the run could not be recorded: %v", err).
				In("history").
				Recommend("Check that the data directory is writable."))
		}
		data.RunID = id
	}

	errs, warns := res.Counts()
	summary := fmt.Sprintf("Health check (%s): %s across %d categories, %s, %s.",
		level, res.Status, len(res.Categories), plural(errs, "error", "errors"), plural(warns, "warning", "warnings"))
	return t.resp.finish(c, summary, data, report), nil
}

func (t *HealthCheckTool) record(ctx context.Context, res *health.Result, took time.Duration) (string, error) {
	if t.history == nil {
		return "", errNoHistory
	}
	rec, err := t.history()
	if err != nil {
		return "", err
	}
	defer rec.Close()
	run, err := rec.Record(ctx, res, took)
	if err != nil {
		return "", err
	}
	return run.ID, nil
}

// --- health_history ---

// HealthHistoryTool handles the health_history MCP tool.
type HealthHistoryTool struct {
	cfg     config.Config
	history HistoryOpener
	resp    *Responder
}

// NewHealthHistoryTool creates a HealthHistoryTool.
func NewHealthHistoryTool(cfg config.Config, hist HistoryOpener, resp *Responder) *HealthHistoryTool {
	return &HealthHistoryTool{cfg: cfg, history: hist, resp: resp}
}

// Definition returns the MCP tool definition for registration.
func (t *HealthHistoryTool) Definition() mcp.Tool {
	return mcp.NewTool("health_history",
		mcp.WithDescription("List recorded health-check runs for this repository, newest first."),
		mcp.WithNumber("limit",
			mcp.Description(fmt.Sprintf("Maximum runs to return. Default: %d.", history.DefaultLimit)),
		),
	)
}

// Handle processes the health_history tool call.
func (t *HealthHistoryTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	env, err := t.Run(ctx, intArg(req, "limit", history.DefaultLimit))
	if err != nil {
		return nil, err
	}
	return toResult(env)
}

// Run lists recorded runs.
func (t *HealthHistoryTool) Run(ctx context.Context, limit int) (*Envelope, error) {
	c := t.resp.start(OpHealthHistory)
	if limit < 0 {
		return t.resp.invalid(c, "limit", "'limit' must be positive, got %d", limit), nil
	}
	if t.history == nil {
		return nil, errNoHistory
	}
	rec, err := t.history()
	if err != nil {
		return nil, fmt.Errorf("opening history: %w", err)
	}
	defer rec.Close()

	runs, err := rec.List(ctx, t.cfg.RepoRoot, limit)
	if err != nil {
		return nil, fmt.Errorf("listing history: %w", err)
	}
	summary := fmt.Sprintf("%s recorded.", plural(len(runs), "run", "runs"))
	return t.resp.finish(c, summary, runs, issues.Report{}), nil
}
