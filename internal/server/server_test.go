package server

import (
	"context"
	"io"
	"net"
	"net/http"
	"testing"
	"time"

	"github.com/HendryAvila/dotbot/internal/config"
	"github.com/HendryAvila/dotbot/internal/metrics"
	"github.com/HendryAvila/dotbot/internal/tools"
)

func TestRegistrations_CoverEveryOperation(t *testing.T) {
	ts := tools.NewToolset(config.Default(t.TempDir()), Source, nil)
	regs := registrations(ts)

	want := map[string]string{
		tools.OpSolutionStructure:   "solution_structure",
		tools.OpSolutionProject:     "solution_project",
		tools.OpSolutionRegister:    "solution_register",
		tools.OpSolutionUnregister:  "solution_unregister",
		tools.OpArtifactFrontmatter: "artifact_frontmatter",
		tools.OpArtifactReferences:  "artifact_references",
		tools.OpHealthCheck:         "health_check",
		tools.OpHealthHistory:       "health_history",
	}
	if len(regs) != len(want) {
		t.Fatalf("registrations = %d, want %d", len(regs), len(want))
	}
	for _, r := range regs {
		name, ok := want[r.operation]
		if !ok {
			t.Errorf("unexpected operation %s", r.operation)
			continue
		}
		if r.tool.Name != name {
			t.Errorf("%s registered as %s, want %s", r.operation, r.tool.Name, name)
		}
		if r.handler == nil {
			t.Errorf("%s has no handler", r.operation)
		}
	}
}

func TestNew(t *testing.T) {
	if s := New(config.Default(t.TempDir()), metrics.New()); s == nil {
		t.Fatal("New returned nil")
	}
}

func TestServeMetrics(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	addr := ln.Addr().String()
	ln.Close()

	m := metrics.New()
	m.ObserveHealthRun("basic", "pass")

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- ServeMetrics(ctx, addr, m) }()

	var body []byte
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		resp, err := http.Get("http://" + addr + "/metrics")
		if err != nil {
			time.Sleep(20 * time.Millisecond)
			continue
		}
		body, _ = io.ReadAll(resp.Body)
		resp.Body.Close()
		break
	}
	if len(body) == 0 {
		t.Fatal("metrics endpoint never answered")
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("ServeMetrics: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("ServeMetrics did not stop")
	}
}
