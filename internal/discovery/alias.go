package discovery

import (
	"sort"
	"strings"
	"unicode"
)

// collisionHints are name tokens that disambiguate role aliases when more
// than one frontend (or web-service) project exists. Checked in order.
var collisionHints = []string{
	"admin", "mobile", "portal", "dashboard", "public", "client",
	"api", "worker", "gateway", "auth", "identity", "web",
}

// testSuffixes are stripped from a test project's name to find the
// project it tests. Longer suffixes first.
var testSuffixes = []string{
	".integrationtests", ".unittests", ".tests", ".test", ".specs",
	"-tests", "-test", "_tests", "_test",
}

// specialAliases maps a name token to a fixed abbreviation.
var specialAliases = []struct {
	token string
	alias string
}{
	{"infrastructure", "infra"},
	{"infra", "infra"},
	{"functions", "fn"},
	{"function", "fn"},
	{"migrations", "db"},
	{"contracts", "contracts"},
	{"gateway", "gw"},
	{"identity", "id"},
	{"shared", "shared"},
	{"common", "common"},
	{"domain", "domain"},
	{"worker", "worker"},
	{"cli", "cli"},
}

// fallbackAliasLen is how many characters of the name the fallback keeps.
const fallbackAliasLen = 4

// InferAlias derives a short identifier for p. It is a pure, total
// function of (p, all): the same project list always yields the same
// aliases, which lets the merge engine detect registry/inferred alias
// collisions without false positives.
func InferAlias(p DiscoveredProject, all []DiscoveredProject) string {
	switch p.Type {
	case TypeFrontendApp:
		return roleAlias("fe", p, all)
	case TypeWebService:
		return roleAlias("be", p, all)
	case TypeTest:
		return testAlias(p, all)
	}
	return nameAlias(p.Name)
}

// InferAliases computes the inferred alias of every project, keyed by name.
func InferAliases(all []DiscoveredProject) map[string]string {
	out := make(map[string]string, len(all))
	for _, p := range all {
		out[p.Name] = InferAlias(p, all)
	}
	return out
}

func roleAlias(base string, p DiscoveredProject, all []DiscoveredProject) string {
	same := 0
	for _, other := range all {
		if other.Type == p.Type {
			same++
		}
	}
	if same < 2 {
		return base
	}
	if hint := nameHint(p.Name); hint != "" {
		return base + "-" + hint
	}
	return base
}

func nameHint(name string) string {
	tokens := tokenize(name)
	for _, h := range collisionHints {
		for _, t := range tokens {
			if t == h {
				return h
			}
		}
	}
	return ""
}

func testAlias(p DiscoveredProject, all []DiscoveredProject) string {
	if target, ok := TargetOfTest(p, all); ok {
		return InferAlias(target, all) + "-test"
	}
	return "test"
}

// TargetOfTest finds the non-test project a test project exercises: its
// name with the test suffix stripped must equal, or share a prefix with,
// the target's name. The longest candidate wins; ties break by name.
func TargetOfTest(p DiscoveredProject, all []DiscoveredProject) (DiscoveredProject, bool) {
	base := strings.ToLower(p.Name)
	for _, suffix := range testSuffixes {
		if strings.HasSuffix(base, suffix) {
			base = strings.TrimSuffix(base, suffix)
			break
		}
	}
	if base == "" {
		return DiscoveredProject{}, false
	}

	var candidates []DiscoveredProject
	for _, other := range all {
		if other.Type == TypeTest || other.Name == p.Name {
			continue
		}
		lower := strings.ToLower(other.Name)
		if lower == base {
			return other, true
		}
		if strings.HasPrefix(base, lower) || strings.HasPrefix(lower, base) {
			candidates = append(candidates, other)
		}
	}
	if len(candidates) == 0 {
		return DiscoveredProject{}, false
	}
	sort.Slice(candidates, func(i, j int) bool {
		if len(candidates[i].Name) != len(candidates[j].Name) {
			return len(candidates[i].Name) > len(candidates[j].Name)
		}
		return candidates[i].Name < candidates[j].Name
	})
	return candidates[0], true
}

func nameAlias(name string) string {
	tokens := tokenize(name)
	for _, sa := range specialAliases {
		for _, t := range tokens {
			if t == sa.token {
				return sa.alias
			}
		}
	}

	segment := name
	if i := strings.LastIndexAny(segment, "./\\"); i >= 0 && i < len(segment)-1 {
		segment = segment[i+1:]
	}
	var b strings.Builder
	for _, r := range strings.ToLower(segment) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	alias := b.String()
	if alias == "" {
		return "proj"
	}
	if r := []rune(alias); len(r) > fallbackAliasLen {
		alias = string(r[:fallbackAliasLen])
	}
	return alias
}

// tokenize splits a project name into lower-case words on punctuation and
// camelCase boundaries: "Contoso.AdminPortal" → [contoso admin portal].
func tokenize(name string) []string {
	var tokens []string
	var cur []rune
	flush := func() {
		if len(cur) > 0 {
			tokens = append(tokens, strings.ToLower(string(cur)))
			cur = cur[:0]
		}
	}
	runes := []rune(name)
	for i, r := range runes {
		switch {
		case !unicode.IsLetter(r) && !unicode.IsDigit(r):
			flush()
		case unicode.IsUpper(r) && i > 0 && unicode.IsLower(runes[i-1]):
			flush()
			cur = append(cur, r)
		default:
			cur = append(cur, r)
		}
	}
	flush()
	return tokens
}
