package artifacts

import (
	"strings"

	"github.com/HendryAvila/dotbot/internal/issues"
	"github.com/Masterminds/semver/v3"
	"github.com/spf13/cast"
)

const schemaCategory = "frontmatter"

// requiredKeys lists the keys each artifact type must declare.
var requiredKeys = map[Type][]string{
	TypeWorkflow:   {"type", "id", "version"},
	TypeAgent:      {"type", "id", "name"},
	TypeStandard:   {"type", "id"},
	TypeCommand:    {"type", "id", "description"},
	TypeProductDoc: {},
}

// listKeys must hold lists when present.
var listKeys = []string{"dependencies", "used_by"}

// ValidateSchema checks an artifact's front-matter against the schema of
// its type. Missing blocks and grammar violations are warnings; missing
// keys and wrong shapes are errors.
func ValidateSchema(a *Artifact) []issues.Issue {
	var out []issues.Issue
	if a.TooLarge {
		return nil
	}

	doc := a.Document
	if doc == nil {
		if a.DirType == TypeProductDoc || a.DirType == "" {
			return nil
		}
		return append(out, issues.Warnf(issues.FrontmatterMissing,
			"%s has no front-matter block", a.Path).
			At(a.Path).
			In(schemaCategory).
			Recommendf("Add a front-matter block declaring %s.", strings.Join(requiredKeys[a.DirType], ", ")))
	}

	for _, v := range doc.Violations {
		out = append(out, issues.Warnf(issues.FrontmatterInvalid,
			"%s line %d: %s", a.Path, v.Line, v.Message).
			At(a.Path).
			In(schemaCategory).
			With("line", v.Line))
	}

	declared := strings.TrimSpace(cast.ToString(doc.Get("type")))
	switch {
	case declared == "":
	case !Type(declared).Valid():
		out = append(out, invalid(a, "unknown type %q", declared).
			With("key", "type").
			Recommend("Use one of workflow, agent, standard, command, product-doc."))
	case a.DirType != "" && Type(declared) != a.DirType:
		out = append(out, invalid(a, "declares type %q but lives in a %s directory", declared, a.DirType).
			With("key", "type").
			With("expected", string(a.DirType)))
	}

	for _, key := range requiredKeys[a.DeclaredType] {
		if blank(doc.Get(key)) {
			out = append(out, invalid(a, "missing required key %q for %s", key, a.DeclaredType).
				With("key", key))
		}
	}

	if v := doc.Get("version"); !blank(v) {
		s, err := cast.ToStringE(v)
		if err != nil {
			out = append(out, invalid(a, "version must be a scalar").With("key", "version"))
		} else if _, err := semver.NewVersion(s); err != nil {
			out = append(out, invalid(a, "version %q is not a semantic version", s).
				With("key", "version").
				Recommend("Use MAJOR.MINOR.PATCH, e.g. 1.0.0."))
		}
	}

	for _, key := range listKeys {
		if !doc.Has(key) || doc.Get(key) == nil {
			continue
		}
		if _, ok := doc.Get(key).([]any); !ok {
			out = append(out, invalid(a, "%s must be a list", key).With("key", key))
		}
	}
	return out
}

func invalid(a *Artifact, format string, args ...any) issues.Issue {
	return issues.Errorf(issues.FrontmatterInvalid, "%s: "+format, append([]any{a.Path}, args...)...).
		At(a.Path).
		In(schemaCategory)
}

func blank(v any) bool {
	if v == nil {
		return true
	}
	s, err := cast.ToStringE(v)
	return err == nil && strings.TrimSpace(s) == ""
}
