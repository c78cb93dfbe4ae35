package artifacts

import (
	"regexp"
	"strings"

	"github.com/HendryAvila/dotbot/internal/frontmatter"
	"github.com/spf13/cast"
)

// RefKind tells where a reference was declared.
type RefKind string

const (
	RefInline     RefKind = "inline"
	RefDependency RefKind = "dependency"
)

// Reference is one outgoing file reference of an artifact.
type Reference struct {
	Raw    string  `json:"raw"`    // literal text as written
	Target string  `json:"target"` // resolved repository-relative path
	Kind   RefKind `json:"kind"`
}

// inlineRefRe matches "@path.md" at line start, after whitespace, or after
// an opening bracket or quote, so e-mail addresses never match.
var inlineRefRe = regexp.MustCompile("(?m)(?:^|[\\s(\\[\"'`])@([A-Za-z0-9_.\\-/\\\\]+\\.md)\\b")

// InlineReferences returns the @-references in body, de-duplicated in
// first-seen order.
func InlineReferences(body string) []string {
	var out []string
	seen := map[string]bool{}
	for _, m := range inlineRefRe.FindAllStringSubmatch(body, -1) {
		if !seen[m[1]] {
			seen[m[1]] = true
			out = append(out, m[1])
		}
	}
	return out
}

// DeclaredDependencies returns the "dependencies" entries of a document:
// "- file: path" items or bare strings.
func DeclaredDependencies(doc *frontmatter.Document) []string {
	if doc == nil {
		return nil
	}
	return fileList(doc.Get("dependencies"))
}

// DeclaredUsedBy returns the "used_by" backlinks of a document.
func DeclaredUsedBy(doc *frontmatter.Document) []string {
	if doc == nil {
		return nil
	}
	return fileList(doc.Get("used_by"))
}

func fileList(v any) []string {
	var items []any
	switch t := v.(type) {
	case nil:
		return nil
	case []any:
		items = t
	default:
		items = []any{t}
	}

	var out []string
	for _, item := range items {
		if m, err := cast.ToStringMapE(item); err == nil {
			if f := strings.TrimSpace(cast.ToString(m["file"])); f != "" {
				out = append(out, f)
			}
			continue
		}
		if s, err := cast.ToStringE(item); err == nil && strings.TrimSpace(s) != "" {
			out = append(out, strings.TrimSpace(s))
		}
	}
	return out
}

// mergeReferences combines declared dependencies and inline references
// into one list keyed by resolved target, first-seen order, declared
// dependencies first.
func mergeReferences(deps, inline []string) []Reference {
	var out []Reference
	seen := map[string]bool{}
	add := func(raw string, kind RefKind) {
		target := ResolvePath(raw)
		if target == "" || seen[target] {
			return
		}
		seen[target] = true
		out = append(out, Reference{Raw: raw, Target: target, Kind: kind})
	}
	for _, d := range deps {
		add(d, RefDependency)
	}
	for _, r := range inline {
		add(r, RefInline)
	}
	return out
}
