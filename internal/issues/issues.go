// Package issues defines the structured findings every dotbot operation
// returns instead of raising faults for expected conditions.
//
// An operation produces a Report: zero or more errors and zero or more
// warnings, each an Issue with a stable Code. Callers (the MCP tools, the
// CLI) roll a Report up into a single Status.
package issues

import (
	"fmt"
	"sort"
)

// Code identifies a class of finding. Codes are part of the wire contract.
type Code string

const (
	DotbotNotFound      Code = "DOTBOT_NOT_FOUND"
	RegistryParseError  Code = "REGISTRY_PARSE_ERROR"
	AliasConflict       Code = "ALIAS_CONFLICT"
	ProjectNotFound     Code = "PROJECT_NOT_FOUND"
	FrontmatterMissing  Code = "FRONTMATTER_MISSING"
	FrontmatterInvalid  Code = "FRONTMATTER_INVALID"
	BrokenFileReference Code = "BROKEN_FILE_REFERENCE"
	CircularDependency  Code = "CIRCULAR_DEPENDENCY"
	TechStackMissing    Code = "TECH_STACK_MISSING"
	StandardsNotFound   Code = "STANDARDS_NOT_FOUND"
	InvalidParameter    Code = "INVALID_PARAMETER"

	// Supplemental codes for findings that have no dedicated code above.
	ManifestSkipped    Code = "MANIFEST_SKIPPED"
	OrphanArtifact     Code = "ORPHAN_ARTIFACT"
	DirectoryMissing   Code = "DIRECTORY_MISSING"
	StateMissing       Code = "STATE_MISSING"
	StateInvalid       Code = "STATE_INVALID"
	CountBelowExpected Code = "COUNT_BELOW_EXPECTED"
	ProductDocMissing  Code = "PRODUCT_DOC_MISSING"
	NoProjects         Code = "NO_PROJECTS"
	TestCoverageLow    Code = "TEST_COVERAGE_LOW"
	VCSMissing         Code = "VCS_MISSING"
	CheckFailed        Code = "CHECK_FAILED"
)

// Severity classifies an issue. Ordering matters: error > warning > info.
type Severity string

const (
	SeverityInfo    Severity = "info"
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
)

func (s Severity) rank() int {
	switch s {
	case SeverityError:
		return 2
	case SeverityWarning:
		return 1
	default:
		return 0
	}
}

// Status is the rolled-up outcome of a check, a category, or an operation.
type Status string

const (
	StatusPass    Status = "pass"
	StatusWarning Status = "warning"
	StatusError   Status = "error"
)

func (s Status) rank() int {
	switch s {
	case StatusError:
		return 2
	case StatusWarning:
		return 1
	default:
		return 0
	}
}

// Worst returns the most severe of the given statuses (pass when empty).
func Worst(statuses ...Status) Status {
	worst := StatusPass
	for _, s := range statuses {
		if s.rank() > worst.rank() {
			worst = s
		}
	}
	return worst
}

// StatusOf maps a severity to the status it implies.
func StatusOf(sev Severity) Status {
	switch sev {
	case SeverityError:
		return StatusError
	case SeverityWarning:
		return StatusWarning
	default:
		return StatusPass
	}
}

// Issue is a single structured finding.
type Issue struct {
	Code           Code           `json:"code"`
	Severity       Severity       `json:"severity"`
	Category       string         `json:"category,omitempty"`
	Message        string         `json:"message"`
	Path           string         `json:"path,omitempty"`
	Details        map[string]any `json:"details,omitempty"`
	Recommendation string         `json:"recommendation,omitempty"`
}

// New builds an issue with a formatted message.
func New(code Code, sev Severity, format string, args ...any) Issue {
	return Issue{Code: code, Severity: sev, Message: fmt.Sprintf(format, args...)}
}

// Errorf is shorthand for an error-severity issue.
func Errorf(code Code, format string, args ...any) Issue {
	return New(code, SeverityError, format, args...)
}

// Warnf is shorthand for a warning-severity issue.
func Warnf(code Code, format string, args ...any) Issue {
	return New(code, SeverityWarning, format, args...)
}

// At returns a copy of the issue with Path set.
func (i Issue) At(path string) Issue {
	i.Path = path
	return i
}

// With returns a copy of the issue with a detail key added.
func (i Issue) With(key string, value any) Issue {
	d := make(map[string]any, len(i.Details)+1)
	for k, v := range i.Details {
		d[k] = v
	}
	d[key] = value
	i.Details = d
	return i
}

// Recommend returns a copy of the issue with a recommendation attached.
func (i Issue) Recommend(text string) Issue {
	i.Recommendation = text
	return i
}

// Recommendf is Recommend with a formatted recommendation.
func (i Issue) Recommendf(format string, args ...any) Issue {
	return i.Recommend(fmt.Sprintf(format, args...))
}

// In returns a copy of the issue tagged with a category.
func (i Issue) In(category string) Issue {
	i.Category = category
	return i
}

// Report collects the errors and warnings of one operation.
// The zero value is ready to use.
type Report struct {
	Errors   []Issue `json:"errors"`
	Warnings []Issue `json:"warnings"`
}

// Add files an issue under Errors or Warnings according to its severity.
// Info-level issues are filed as warnings.
func (r *Report) Add(is ...Issue) {
	for _, i := range is {
		if i.Severity == SeverityError {
			r.Errors = append(r.Errors, i)
			continue
		}
		r.Warnings = append(r.Warnings, i)
	}
}

// Merge appends all issues from other.
func (r *Report) Merge(other Report) {
	r.Errors = append(r.Errors, other.Errors...)
	r.Warnings = append(r.Warnings, other.Warnings...)
}

// HasErrors reports whether any error was recorded.
func (r *Report) HasErrors() bool { return len(r.Errors) > 0 }

// Status returns error > warning > pass for the report.
func (r *Report) Status() Status {
	if len(r.Errors) > 0 {
		return StatusError
	}
	if len(r.Warnings) > 0 {
		return StatusWarning
	}
	return StatusPass
}

// Sort orders both lists by category, then path, then code, then message.
func (r *Report) Sort() {
	Sort(r.Errors)
	Sort(r.Warnings)
}

// All returns errors followed by warnings.
func (r *Report) All() []Issue {
	out := make([]Issue, 0, len(r.Errors)+len(r.Warnings))
	out = append(out, r.Errors...)
	return append(out, r.Warnings...)
}

// Sort orders issues deterministically: category, path, code, message.
// Parallel producers collect unordered and sort once at the end.
func Sort(list []Issue) {
	sort.SliceStable(list, func(a, b int) bool {
		x, y := list[a], list[b]
		if x.Category != y.Category {
			return x.Category < y.Category
		}
		if x.Path != y.Path {
			return x.Path < y.Path
		}
		if x.Code != y.Code {
			return x.Code < y.Code
		}
		return x.Message < y.Message
	})
}

// Count returns how many issues in list carry the given code.
func Count(list []Issue, code Code) int {
	n := 0
	for _, i := range list {
		if i.Code == code {
			n++
		}
	}
	return n
}

// Filter returns the issues in list carrying the given code.
func Filter(list []Issue, code Code) []Issue {
	var out []Issue
	for _, i := range list {
		if i.Code == code {
			out = append(out, i)
		}
	}
	return out
}
