package cli

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

type envelope struct {
	Status    string          `json:"status"`
	Operation string          `json:"operation"`
	Summary   string          `json:"summary"`
	Data      json.RawMessage `json:"data"`
	Errors    []struct {
		Code string `json:"code"`
	} `json:"errors"`
	Audit struct {
		Source string `json:"source"`
	} `json:"audit"`
}

func writeFile(t *testing.T, root, rel, content string) {
	t.Helper()
	path := filepath.Join(root, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

// managedRepo creates a repository with a .bot tree and one npm project.
func managedRepo(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	if err := os.MkdirAll(filepath.Join(root, ".bot"), 0o755); err != nil {
		t.Fatal(err)
	}
	writeFile(t, root, "web/package.json", `{"name":"web","dependencies":{"react":"^18"}}`)
	return root
}

// execute runs the CLI with args and returns stdout and the error.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func decodeOut(t *testing.T, out string) envelope {
	t.Helper()
	var env envelope
	if err := json.Unmarshal([]byte(out), &env); err != nil {
		t.Fatalf("decoding envelope: %v\n%s", err, out)
	}
	return env
}

func TestVersion(t *testing.T) {
	out, err := execute(t, "version")
	if err != nil {
		t.Fatalf("version: %v", err)
	}
	if !strings.HasPrefix(out, "dotbot v") {
		t.Errorf("output = %q", out)
	}
}

func TestProjects_JSON(t *testing.T) {
	root := managedRepo(t)
	out, err := execute(t, "projects", "--json", "--root", root)
	if err != nil {
		t.Fatalf("projects: %v\n%s", err, out)
	}
	env := decodeOut(t, out)
	if env.Operation != "solution.structure" {
		t.Errorf("operation = %s", env.Operation)
	}
	if env.Audit.Source != Source {
		t.Errorf("source = %s, want %s", env.Audit.Source, Source)
	}
	var data struct {
		Total int `json:"total"`
	}
	if err := json.Unmarshal(env.Data, &data); err != nil {
		t.Fatal(err)
	}
	if data.Total != 1 {
		t.Errorf("total = %d, want 1", data.Total)
	}
}

func TestProjects_Text(t *testing.T) {
	root := managedRepo(t)
	out, err := execute(t, "projects", "--root", root)
	if err != nil {
		t.Fatalf("projects: %v\n%s", err, out)
	}
	if !strings.Contains(out, "Found 1 project") || !strings.Contains(out, "web") {
		t.Errorf("unexpected output:\n%s", out)
	}
}

func TestRegisterThenProject(t *testing.T) {
	root := managedRepo(t)
	out, err := execute(t, "register", "web", "--root", root, "--alias", "portal", "--tags", "ui,customer")
	if err != nil {
		t.Fatalf("register: %v\n%s", err, out)
	}
	if !strings.Contains(out, `alias "portal"`) {
		t.Errorf("register output:\n%s", out)
	}

	out, err = execute(t, "project", "PORTAL", "--json", "--root", root)
	if err != nil {
		t.Fatalf("project: %v\n%s", err, out)
	}
	var p struct {
		Name       string   `json:"name"`
		Registered bool     `json:"registered"`
		Tags       []string `json:"tags"`
	}
	if err := json.Unmarshal(decodeOut(t, out).Data, &p); err != nil {
		t.Fatal(err)
	}
	if p.Name != "web" || !p.Registered || len(p.Tags) != 2 {
		t.Errorf("project = %+v", p)
	}

	out, err = execute(t, "unregister", "web", "--root", root)
	if err != nil {
		t.Fatalf("unregister: %v\n%s", err, out)
	}
}

func TestRegister_FlagsLeftOutKeepStoredValues(t *testing.T) {
	root := managedRepo(t)
	if out, err := execute(t, "register", "web", "--root", root, "--alias", "portal", "--owner", "frontend"); err != nil {
		t.Fatalf("register: %v\n%s", err, out)
	}

	out, err := execute(t, "register", "WEB", "--json", "--root", root, "--summary", "Customer portal", "--clear", "owner")
	if err != nil {
		t.Fatalf("register: %v\n%s", err, out)
	}
	var e struct {
		ProjectName string `json:"projectName"`
		Alias       string `json:"alias"`
		Summary     string `json:"summary"`
		Owner       string `json:"owner"`
	}
	if err := json.Unmarshal(decodeOut(t, out).Data, &e); err != nil {
		t.Fatal(err)
	}
	if e.ProjectName != "web" || e.Alias != "portal" || e.Summary != "Customer portal" || e.Owner != "" {
		t.Errorf("entry = %+v", e)
	}
}

func TestHealth_NotManaged(t *testing.T) {
	root := t.TempDir()
	out, err := execute(t, "health", "--json", "--root", root)
	if !errors.Is(err, ErrStatus) {
		t.Fatalf("err = %v, want ErrStatus", err)
	}
	env := decodeOut(t, out)
	if env.Status != "error" || len(env.Errors) == 0 || env.Errors[0].Code != "DOTBOT_NOT_FOUND" {
		t.Errorf("envelope = %+v", env)
	}
}

func TestHealth_InvalidLevel(t *testing.T) {
	out, err := execute(t, "health", "--root", managedRepo(t), "--level", "extreme")
	if !errors.Is(err, ErrStatus) {
		t.Fatalf("err = %v, want ErrStatus", err)
	}
	if !strings.Contains(out, "INVALID_PARAMETER") {
		t.Errorf("output:\n%s", out)
	}
}

func TestHealthRecordAndHistory(t *testing.T) {
	root := managedRepo(t)
	data := filepath.Join(t.TempDir(), "data")

	// The fixture lacks the standard .bot directories, so the run reports errors.
	if _, err := execute(t, "health", "--root", root, "--data-dir", data, "--level", "basic", "--record"); err != nil && !errors.Is(err, ErrStatus) {
		t.Fatalf("health: %v", err)
	}

	out, err := execute(t, "history", "--json", "--root", root, "--data-dir", data)
	if err != nil {
		t.Fatalf("history: %v\n%s", err, out)
	}
	var runs []struct {
		Level string `json:"level"`
	}
	if err := json.Unmarshal(decodeOut(t, out).Data, &runs); err != nil {
		t.Fatal(err)
	}
	if len(runs) != 1 || runs[0].Level != "basic" {
		t.Errorf("runs = %+v", runs)
	}
}

func TestFrontmatter_Text(t *testing.T) {
	root := managedRepo(t)
	writeFile(t, root, ".bot/workflows/build.md", "---\nname: build\ntype: workflow\n---\n# Build\n")

	out, err := execute(t, "frontmatter", ".bot/workflows/build.md", "--root", root)
	if err != nil && !errors.Is(err, ErrStatus) {
		t.Fatalf("frontmatter: %v", err)
	}
	if !strings.Contains(out, "name:") || !strings.Contains(out, "build") {
		t.Errorf("output:\n%s", out)
	}
}
