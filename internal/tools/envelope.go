// Package tools implements the MCP tool handlers for dotbot operations.
//
// Each tool is a struct that receives its dependencies through its
// constructor (DIP) and exposes:
//   - Definition, the mcp.Tool registered with the server
//   - Handle, the mcp-go handler
//   - Run, the transport-free operation the CLI calls directly
//
// Every operation answers with the same Envelope. Expected conditions
// (missing registry, malformed front-matter, unknown project) are issues
// inside the envelope; only unexpected failures surface as Go errors.
package tools

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/HendryAvila/dotbot/internal/issues"
	"github.com/HendryAvila/dotbot/internal/metrics"
	"github.com/mark3labs/mcp-go/mcp"
)

// Schema identifies the envelope format.
const Schema = "dotbot.response/v1"

// OperationVersion is the payload version shared by every operation.
const OperationVersion = "1.0.0"

// Envelope statuses, most severe first.
const (
	StatusError   = "error"
	StatusWarning = "warning"
	StatusOK      = "ok"
)

// timeNow is a package-level var for test injection.
var timeNow = time.Now

// Audit records when and how an operation ran.
type Audit struct {
	Timestamp  string `json:"timestamp"`
	DurationMs int64  `json:"durationMs"`
	Source     string `json:"source"`
}

// Envelope is the uniform response of every operation.
type Envelope struct {
	Schema    string         `json:"schema"`
	Operation string         `json:"operation"`
	Version   string         `json:"version"`
	Status    string         `json:"status"`
	Summary   string         `json:"summary"`
	Data      any            `json:"data"`
	Errors    []issues.Issue `json:"errors"`
	Warnings  []issues.Issue `json:"warnings"`
	Audit     Audit          `json:"audit"`
}

// StatusFor rolls a report up to an envelope status.
func StatusFor(r issues.Report) string {
	switch r.Status() {
	case issues.StatusError:
		return StatusError
	case issues.StatusWarning:
		return StatusWarning
	default:
		return StatusOK
	}
}

// Responder builds envelopes and records operation metrics.
type Responder struct {
	source  string
	metrics *metrics.Metrics // nil disables metrics
}

// NewResponder creates a Responder. source names the caller surface in
// the audit block ("mcp", "cli").
func NewResponder(source string, m *metrics.Metrics) *Responder {
	return &Responder{source: source, metrics: m}
}

// call tracks one in-flight operation.
type call struct {
	op      string
	started time.Time
}

func (r *Responder) start(op string) call {
	return call{op: op, started: timeNow()}
}

// finish seals the envelope for c.
func (r *Responder) finish(c call, summary string, data any, report issues.Report) *Envelope {
	report.Sort()
	env := &Envelope{
		Schema:    Schema,
		Operation: c.op,
		Version:   OperationVersion,
		Status:    StatusFor(report),
		Summary:   summary,
		Data:      data,
		Errors:    nonNil(report.Errors),
		Warnings:  nonNil(report.Warnings),
	}
	took := timeNow().Sub(c.started)
	env.Audit = Audit{
		Timestamp:  c.started.UTC().Format(time.RFC3339),
		DurationMs: took.Milliseconds(),
		Source:     r.source,
	}

	r.metrics.ObserveOperation(c.op, env.Status, took)
	for _, is := range report.All() {
		r.metrics.ObserveFinding(string(is.Code), string(is.Severity))
	}
	return env
}

// invalid answers a request with a missing or malformed parameter.
func (r *Responder) invalid(c call, param, format string, args ...any) *Envelope {
	var report issues.Report
	report.Add(issues.Errorf(issues.InvalidParameter, format, args...).
		With("parameter", param))
	return r.finish(c, fmt.Sprintf("Invalid parameter %q.", param), nil, report)
}

// toResult serializes env as the tool's text content.
func toResult(env *Envelope) (*mcp.CallToolResult, error) {
	data, err := json.MarshalIndent(env, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encoding %s response: %w", env.Operation, err)
	}
	return mcp.NewToolResultText(string(data)), nil
}

func nonNil(list []issues.Issue) []issues.Issue {
	if list == nil {
		return []issues.Issue{}
	}
	return list
}

func plural(n int, one, many string) string {
	if n == 1 {
		return fmt.Sprintf("%d %s", n, one)
	}
	return fmt.Sprintf("%d %s", n, many)
}
