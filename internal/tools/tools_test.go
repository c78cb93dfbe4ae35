package tools

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/HendryAvila/dotbot/internal/config"
	"github.com/HendryAvila/dotbot/internal/health"
	"github.com/HendryAvila/dotbot/internal/issues"
	"github.com/HendryAvila/dotbot/internal/metrics"
	"github.com/HendryAvila/dotbot/internal/solution"
	"github.com/mark3labs/mcp-go/mcp"
)

// --- Test helpers ---

// decoded mirrors Envelope with the payload left raw.
type decoded struct {
	Schema    string          `json:"schema"`
	Operation string          `json:"operation"`
	Version   string          `json:"version"`
	Status    string          `json:"status"`
	Summary   string          `json:"summary"`
	Data      json.RawMessage `json:"data"`
	Errors    []issues.Issue  `json:"errors"`
	Warnings  []issues.Issue  `json:"warnings"`
	Audit     Audit           `json:"audit"`
}

func writeFile(t *testing.T, root, rel, content string) {
	t.Helper()
	p := filepath.Join(root, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		t.Fatalf("mkdir %s: %v", rel, err)
	}
	if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", rel, err)
	}
}

// setupRepo creates a managed repository with one web service.
func setupRepo(t *testing.T) config.Config {
	t.Helper()
	root := t.TempDir()
	if err := os.MkdirAll(filepath.Join(root, ".bot"), 0o755); err != nil {
		t.Fatalf("setup: mkdir .bot: %v", err)
	}
	writeFile(t, root, "src/Orders.Api/Orders.Api.csproj", `<Project Sdk="Microsoft.NET.Sdk.Web"></Project>`)
	cfg := config.Default(root)
	cfg.DataDir = filepath.Join(t.TempDir(), "data")
	return cfg
}

func newRequest(args map[string]interface{}) mcp.CallToolRequest {
	req := mcp.CallToolRequest{}
	req.Params.Arguments = args
	return req
}

// isErrorResult checks if the result is a tool error.
func isErrorResult(result *mcp.CallToolResult) bool {
	return result != nil && result.IsError
}

// getResultText extracts the text content from a CallToolResult.
func getResultText(result *mcp.CallToolResult) string {
	if result == nil || len(result.Content) == 0 {
		return ""
	}
	for _, c := range result.Content {
		if tc, ok := c.(mcp.TextContent); ok {
			return tc.Text
		}
	}
	return ""
}

// decode returns a decoder for a Handle call's two results, so calls
// read decode(t)(tool.Handle(ctx, req)).
func decode(t *testing.T) func(*mcp.CallToolResult, error) decoded {
	return func(result *mcp.CallToolResult, err error) decoded {
		t.Helper()
		if err != nil {
			t.Fatalf("Handle failed: %v", err)
		}
		if isErrorResult(result) {
			t.Fatalf("expected an envelope, got tool error: %s", getResultText(result))
		}
		var env decoded
		if err := json.Unmarshal([]byte(getResultText(result)), &env); err != nil {
			t.Fatalf("decoding envelope: %v\n%s", err, getResultText(result))
		}
		if env.Schema != Schema {
			t.Errorf("schema = %q, want %q", env.Schema, Schema)
		}
		return env
	}
}

func hasCode(list []issues.Issue, code issues.Code) bool {
	return issues.Count(list, code) > 0
}

// --- Envelope ---

func TestEnvelope_AuditAndStatus(t *testing.T) {
	start := time.Date(2026, 5, 4, 10, 0, 0, 0, time.UTC)
	calls := 0
	timeNow = func() time.Time {
		calls++
		return start.Add(time.Duration(calls-1) * 250 * time.Millisecond)
	}
	defer func() { timeNow = time.Now }()

	m := metrics.New()
	r := NewResponder("test", m)
	c := r.start("demo.op")

	var report issues.Report
	report.Add(issues.Warnf(issues.OrphanArtifact, "w"))
	env := r.finish(c, "Done.", map[string]int{"n": 1}, report)

	if env.Status != StatusWarning {
		t.Errorf("status = %s, want warning", env.Status)
	}
	if env.Audit.Timestamp != "2026-05-04T10:00:00Z" {
		t.Errorf("timestamp = %s", env.Audit.Timestamp)
	}
	if env.Audit.DurationMs != 250 {
		t.Errorf("durationMs = %d, want 250", env.Audit.DurationMs)
	}
	if env.Audit.Source != "test" || env.Operation != "demo.op" || env.Version != OperationVersion {
		t.Errorf("unexpected envelope header: %+v", env)
	}
	if env.Errors == nil {
		t.Error("errors should be an empty list, not nil")
	}
}

func TestStatusFor(t *testing.T) {
	var r issues.Report
	if got := StatusFor(r); got != StatusOK {
		t.Errorf("empty report = %s, want ok", got)
	}
	r.Add(issues.Warnf(issues.NoProjects, "w"))
	if got := StatusFor(r); got != StatusWarning {
		t.Errorf("warning report = %s, want warning", got)
	}
	r.Add(issues.Errorf(issues.DotbotNotFound, "e"))
	if got := StatusFor(r); got != StatusError {
		t.Errorf("error report = %s, want error", got)
	}
}

// --- solution tools ---

func TestStructureTool_SingleWebService(t *testing.T) {
	cfg := setupRepo(t)
	tool := NewStructureTool(solution.NewService(cfg, nil), NewResponder("test", nil), nil)

	env := decode(t)(tool.Handle(context.Background(), newRequest(nil)))
	if env.Status != StatusOK {
		t.Fatalf("status = %s, errors=%v warnings=%v", env.Status, env.Errors, env.Warnings)
	}

	var st solution.Structure
	if err := json.Unmarshal(env.Data, &st); err != nil {
		t.Fatalf("decoding data: %v", err)
	}
	if len(st.Projects) != 1 {
		t.Fatalf("projects = %d, want 1", len(st.Projects))
	}
	if st.Projects[0].Alias != "be" {
		t.Errorf("alias = %q, want be", st.Projects[0].Alias)
	}
	if !strings.Contains(env.Summary, "1 project") {
		t.Errorf("summary = %q", env.Summary)
	}
}

func TestProjectTool_MissingName(t *testing.T) {
	cfg := setupRepo(t)
	tool := NewProjectTool(solution.NewService(cfg, nil), NewResponder("test", nil))

	env := decode(t)(tool.Handle(context.Background(), newRequest(map[string]interface{}{})))
	if env.Status != StatusError || !hasCode(env.Errors, issues.InvalidParameter) {
		t.Errorf("expected INVALID_PARAMETER error, got %+v", env.Errors)
	}
}

func TestRegisterTool_AliasThenLookup(t *testing.T) {
	cfg := setupRepo(t)
	svc := solution.NewService(cfg, nil)
	resp := NewResponder("test", nil)

	env := decode(t)(NewRegisterTool(svc, resp).Handle(context.Background(), newRequest(map[string]interface{}{
		"project": "Orders.Api",
		"alias":   "api",
		"tags":    "orders, backend,,orders",
		"owner":   "team-a",
	})))
	if env.Status != StatusOK {
		t.Fatalf("register status = %s: %+v", env.Status, env.Errors)
	}

	env = decode(t)(NewProjectTool(svc, resp).Handle(context.Background(), newRequest(map[string]interface{}{
		"name": "API",
	})))
	var p solution.MergedProject
	if err := json.Unmarshal(env.Data, &p); err != nil {
		t.Fatalf("decoding project: %v", err)
	}
	if p.Name != "Orders.Api" || p.Alias != "api" || p.AliasSource != solution.AliasFromRegistry {
		t.Errorf("unexpected merged project: %+v", p)
	}
	if strings.Join(p.Tags, ",") != "orders,backend" {
		t.Errorf("tags = %v, want [orders backend]", p.Tags)
	}
}

func TestRegisterTool_ConflictIsError(t *testing.T) {
	cfg := setupRepo(t)
	writeFile(t, cfg.RepoRoot, "src/Billing/Billing.csproj", `<Project Sdk="Microsoft.NET.Sdk"></Project>`)
	svc := solution.NewService(cfg, nil)
	tool := NewRegisterTool(svc, NewResponder("test", nil))

	decode(t)(tool.Handle(context.Background(), newRequest(map[string]interface{}{"project": "Orders.Api", "alias": "api"})))
	env := decode(t)(tool.Handle(context.Background(), newRequest(map[string]interface{}{"project": "Billing", "alias": "API"})))

	if env.Status != StatusError || !hasCode(env.Errors, issues.AliasConflict) {
		t.Errorf("expected ALIAS_CONFLICT error, got %+v", env.Errors)
	}
	if string(env.Data) != "null" {
		t.Errorf("data = %s, want null", env.Data)
	}
}

func TestRegisterTool_PartialUpdate(t *testing.T) {
	cfg := setupRepo(t)
	svc := solution.NewService(cfg, nil)
	tool := NewRegisterTool(svc, NewResponder("test", nil))

	decode(t)(tool.Handle(context.Background(), newRequest(map[string]interface{}{
		"project": "Orders.Api", "alias": "api", "summary": "Orders API", "owner": "team-a",
	})))
	env := decode(t)(tool.Handle(context.Background(), newRequest(map[string]interface{}{
		"project": "orders.api", "owner": "team-b", "clear": []interface{}{"summary"},
	})))
	if env.Status != StatusOK {
		t.Fatalf("status = %s: %+v", env.Status, env.Errors)
	}
	var e struct {
		ProjectName string `json:"projectName"`
		Alias       string `json:"alias"`
		Summary     string `json:"summary"`
		Owner       string `json:"owner"`
	}
	if err := json.Unmarshal(env.Data, &e); err != nil {
		t.Fatalf("decoding entry: %v", err)
	}
	if e.ProjectName != "Orders.Api" || e.Alias != "api" || e.Summary != "" || e.Owner != "team-b" {
		t.Errorf("entry = %+v, want Orders.Api/api/\"\"/team-b", e)
	}
}

func TestRegisterTool_UnknownClearField(t *testing.T) {
	cfg := setupRepo(t)
	tool := NewRegisterTool(solution.NewService(cfg, nil), NewResponder("test", nil))

	env := decode(t)(tool.Handle(context.Background(), newRequest(map[string]interface{}{
		"project": "Orders.Api", "clear": "name",
	})))
	if !hasCode(env.Errors, issues.InvalidParameter) {
		t.Errorf("expected INVALID_PARAMETER, got %+v", env.Errors)
	}
}

func TestRegisterTool_MissingProject(t *testing.T) {
	cfg := setupRepo(t)
	tool := NewRegisterTool(solution.NewService(cfg, nil), NewResponder("test", nil))

	env := decode(t)(tool.Handle(context.Background(), newRequest(map[string]interface{}{"alias": "x"})))
	if !hasCode(env.Errors, issues.InvalidParameter) {
		t.Errorf("expected INVALID_PARAMETER, got %+v", env.Errors)
	}
	if _, err := os.Stat(cfg.RegistryPath()); !os.IsNotExist(err) {
		t.Error("registry must not be written for an invalid request")
	}
}

func TestUnregisterTool(t *testing.T) {
	cfg := setupRepo(t)
	svc := solution.NewService(cfg, nil)
	resp := NewResponder("test", nil)

	env := decode(t)(NewUnregisterTool(svc, resp).Handle(context.Background(), newRequest(map[string]interface{}{"project": "Orders.Api"})))
	if !hasCode(env.Errors, issues.ProjectNotFound) {
		t.Errorf("expected PROJECT_NOT_FOUND, got %+v", env.Errors)
	}

	decode(t)(NewRegisterTool(svc, resp).Handle(context.Background(), newRequest(map[string]interface{}{"project": "Orders.Api"})))
	env = decode(t)(NewUnregisterTool(svc, resp).Handle(context.Background(), newRequest(map[string]interface{}{"project": "orders.api"})))
	if env.Status != StatusOK {
		t.Errorf("unregister status = %s: %+v", env.Status, env.Errors)
	}
}

func TestTagsArg(t *testing.T) {
	if got := tagsArg([]interface{}{"a", "b"}); strings.Join(got, ",") != "a,b" {
		t.Errorf("array tags = %v", got)
	}
	if got := tagsArg("a, b"); len(got) != 2 {
		t.Errorf("string tags = %v", got)
	}
	if got := tagsArg(nil); len(got) != 0 {
		t.Errorf("nil tags = %v", got)
	}
}

// --- artifact tools ---

func TestFrontmatterTool_ParsesFields(t *testing.T) {
	cfg := setupRepo(t)
	writeFile(t, cfg.RepoRoot, ".bot/workflows/build.md",
		"---\ntype: workflow\nid: build\nversion: 1.2.0\ndependencies:\n  - file: .bot/agents/dev.md\n  - file: .bot/standards/style.md\n---\nBody\n")
	tool := NewFrontmatterTool(cfg, NewResponder("test", nil))

	env := decode(t)(tool.Handle(context.Background(), newRequest(map[string]interface{}{"path": `.bot\workflows\build.md`})))
	if env.Status != StatusOK {
		t.Fatalf("status = %s: %+v %+v", env.Status, env.Errors, env.Warnings)
	}

	var data FrontmatterData
	if err := json.Unmarshal(env.Data, &data); err != nil {
		t.Fatalf("decoding data: %v", err)
	}
	if !data.HasFrontMatter || data.Path != ".bot/workflows/build.md" {
		t.Errorf("unexpected data: %+v", data)
	}
	if strings.Join(data.Keys, ",") != "type,id,version,dependencies" {
		t.Errorf("keys = %v", data.Keys)
	}
	if len(data.Dependencies) != 2 {
		t.Errorf("dependencies = %v", data.Dependencies)
	}
}

func TestFrontmatterTool_InvalidPaths(t *testing.T) {
	cfg := setupRepo(t)
	tool := NewFrontmatterTool(cfg, NewResponder("test", nil))

	for _, path := range []string{"", "../outside.md", ".bot/missing.md"} {
		env := decode(t)(tool.Handle(context.Background(), newRequest(map[string]interface{}{"path": path})))
		if !hasCode(env.Errors, issues.InvalidParameter) {
			t.Errorf("path %q: expected INVALID_PARAMETER, got %+v", path, env.Errors)
		}
	}
}

func TestFrontmatterTool_SchemaErrors(t *testing.T) {
	cfg := setupRepo(t)
	writeFile(t, cfg.RepoRoot, ".bot/agents/dev.md", "---\ntype: agent\nid: dev\n---\n")
	tool := NewFrontmatterTool(cfg, NewResponder("test", nil))

	env := decode(t)(tool.Handle(context.Background(), newRequest(map[string]interface{}{"path": ".bot/agents/dev.md"})))
	if env.Status != StatusError || !hasCode(env.Errors, issues.FrontmatterInvalid) {
		t.Errorf("expected FRONTMATTER_INVALID for the missing name key, got %+v", env.Errors)
	}
}

func TestReferencesTool_BrokenAndCycle(t *testing.T) {
	cfg := setupRepo(t)
	writeFile(t, cfg.RepoRoot, ".bot/commands/a.md", "Uses @.bot/agents/b.md and @.bot/agents/gone.md\n")
	writeFile(t, cfg.RepoRoot, ".bot/agents/b.md", "Back to @.bot/commands/a.md\n")
	tool := NewReferencesTool(cfg, NewResponder("test", nil))

	env := decode(t)(tool.Handle(context.Background(), newRequest(map[string]interface{}{"path": ".bot/commands/a.md"})))
	if got := issues.Count(env.Errors, issues.BrokenFileReference); got != 1 {
		t.Errorf("broken references = %d, want 1", got)
	}
	if got := issues.Count(env.Errors, issues.CircularDependency); got != 1 {
		t.Errorf("cycles = %d, want 1", got)
	}

	var data ReferencesData
	if err := json.Unmarshal(env.Data, &data); err != nil {
		t.Fatalf("decoding data: %v", err)
	}
	if len(data.Nodes) != 2 || len(data.Edges) != 3 {
		t.Errorf("nodes=%v edges=%v", data.Nodes, data.Edges)
	}
}

// --- health tools ---

func healthTools(cfg config.Config, m *metrics.Metrics) (*HealthCheckTool, *HealthHistoryTool) {
	resp := NewResponder("test", m)
	checker := health.NewChecker(cfg, nil)
	hist := OpenHistory(cfg)
	return NewHealthCheckTool(checker, hist, resp, m), NewHealthHistoryTool(cfg, hist, resp)
}

func TestHealthCheckTool_InvalidLevel(t *testing.T) {
	check, _ := healthTools(setupRepo(t), nil)

	env := decode(t)(check.Handle(context.Background(), newRequest(map[string]interface{}{"level": "extreme"})))
	if !hasCode(env.Errors, issues.InvalidParameter) {
		t.Errorf("expected INVALID_PARAMETER, got %+v", env.Errors)
	}
}

func TestHealthCheckTool_NotManaged(t *testing.T) {
	cfg := config.Default(t.TempDir())
	check, _ := healthTools(cfg, nil)

	env := decode(t)(check.Handle(context.Background(), newRequest(map[string]interface{}{"level": "comprehensive"})))
	if env.Status != StatusError || len(env.Errors) != 1 || env.Errors[0].Code != issues.DotbotNotFound {
		t.Errorf("expected a single DOTBOT_NOT_FOUND, got %+v", env.Errors)
	}
}

func TestHealthCheckTool_RecordAndHistory(t *testing.T) {
	cfg := setupRepo(t)
	check, hist := healthTools(cfg, metrics.New())

	env := decode(t)(check.Handle(context.Background(), newRequest(map[string]interface{}{"level": "basic"})))
	var data struct {
		Level string `json:"level"`
		RunID string `json:"runId"`
	}
	if err := json.Unmarshal(env.Data, &data); err != nil {
		t.Fatalf("decoding data: %v", err)
	}
	if data.Level != "basic" || data.RunID != "" {
		t.Errorf("unrecorded run: %+v", data)
	}
	if _, err := os.Stat(cfg.DataDir); !os.IsNotExist(err) {
		t.Error("data dir must not be created unless recording is requested")
	}

	env = decode(t)(hist.Handle(context.Background(), newRequest(nil)))
	if string(env.Data) != "[]" {
		t.Errorf("history before any recorded run = %s, want []", env.Data)
	}

	env = decode(t)(check.Handle(context.Background(), newRequest(map[string]interface{}{"level": "basic", "record": true})))
	if err := json.Unmarshal(env.Data, &data); err != nil {
		t.Fatalf("decoding data: %v", err)
	}
	if data.RunID == "" {
		t.Fatal("recorded run should carry a runId")
	}

	env = decode(t)(hist.Handle(context.Background(), newRequest(map[string]interface{}{"limit": float64(5)})))
	var runs []struct {
		ID    string `json:"id"`
		Level string `json:"level"`
	}
	if err := json.Unmarshal(env.Data, &runs); err != nil {
		t.Fatalf("decoding runs: %v", err)
	}
	if len(runs) != 1 || runs[0].ID != data.RunID {
		t.Errorf("runs = %+v, want the recorded run %s", runs, data.RunID)
	}
}

func TestArgHelpers(t *testing.T) {
	req := newRequest(map[string]interface{}{"n": float64(3), "s": "7", "b": true, "bs": "true", "bad": "x"})
	if got := intArg(req, "n", 1); got != 3 {
		t.Errorf("intArg(n) = %d", got)
	}
	if got := intArg(req, "s", 1); got != 7 {
		t.Errorf("intArg(s) = %d", got)
	}
	if got := intArg(req, "bad", 1); got != 1 {
		t.Errorf("intArg(bad) = %d", got)
	}
	if !boolArg(req, "b", false) || !boolArg(req, "bs", false) {
		t.Error("boolArg should accept bool and string true")
	}
	if boolArg(req, "missing", false) {
		t.Error("boolArg(missing) should default")
	}
}
