// Package frontmatter parses the constrained metadata block at the head of
// a managed artifact.
//
// Supported grammar (everything else is a Violation, never a failure):
//
//	---                      opening delimiter, must start at byte 0
//	# comment                comments and blank lines are ignored
//	key: value               scalars: quoted or plain strings, true/false,
//	                         integers, decimals, null/~
//	key: [a, b]              flow list of scalars
//	key:                     block list; items are scalars or one-level maps
//	  - file: a.md
//	    reason: setup
//	key:                     one-level nested map
//	  sub: value
//	---                      closing delimiter (--- or ...)
//
// A top-level version value is always a string, so "version: 1.10" keeps
// both digits of its minor part.
//
// Anchors and aliases, block scalars (| and >), nested flow collections,
// tabs in indentation and nesting deeper than two levels are reported as
// violations and skipped or kept as raw strings.
package frontmatter

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Violation is one grammar problem, located by 1-based file line.
type Violation struct {
	Line    int    `json:"line"`
	Message string `json:"message"`
}

// Document is a parsed front-matter block.
type Document struct {
	Fields     map[string]any `json:"fields"`
	Keys       []string       `json:"keys"` // declaration order
	Violations []Violation    `json:"violations"`
	Body       string         `json:"-"`
	BodyLine   int            `json:"-"` // 1-based line where Body starts
}

// Has reports whether key was declared.
func (d *Document) Has(key string) bool {
	_, ok := d.Fields[key]
	return ok
}

// Get returns the value of key, or nil.
func (d *Document) Get(key string) any { return d.Fields[key] }

const (
	openDelim   = "---"
	closeDelim  = "---"
	closeDelim2 = "..."
)

// Split separates the block lines from the body. ok is false when the
// content does not open with a delimiter at byte 0 or never closes it.
func Split(content []byte) (block []string, body string, bodyLine int, ok bool) {
	text := strings.ReplaceAll(string(content), "\r\n", "\n")
	if !strings.HasPrefix(text, openDelim) {
		return nil, "", 0, false
	}
	lines := strings.Split(text, "\n")
	if strings.TrimRight(lines[0], " \t") != openDelim {
		return nil, "", 0, false
	}
	for i := 1; i < len(lines); i++ {
		l := strings.TrimRight(lines[i], " \t")
		if l == closeDelim || l == closeDelim2 {
			return lines[1:i], strings.Join(lines[i+1:], "\n"), i + 2, true
		}
	}
	return nil, "", 0, false
}

// Parse extracts and parses the front-matter block of content. It returns
// nil when there is no well-formed delimiter pair; it never panics.
func Parse(content []byte) *Document {
	block, body, bodyLine, ok := Split(content)
	if !ok {
		return nil
	}
	p := &parser{lines: block, doc: &Document{
		Fields:     make(map[string]any),
		Keys:       []string{},
		Violations: []Violation{},
		Body:       body,
		BodyLine:   bodyLine,
	}}
	p.parseTop()
	return p.doc
}

// --- line-oriented parser ---

type parser struct {
	lines []string
	pos   int
	doc   *Document
}

type line struct {
	num    int // 1-based file line
	indent int
	text   string // trimmed content
	tab    bool
}

var keyRe = regexp.MustCompile(`^([A-Za-z0-9_][A-Za-z0-9_.-]*)\s*:(?:\s+(.*))?$`)

func (p *parser) violate(num int, format string, args ...any) {
	p.doc.Violations = append(p.doc.Violations, Violation{Line: num, Message: fmt.Sprintf(format, args...)})
}

// peek returns the next meaningful line without consuming it.
func (p *parser) peek() (line, bool) {
	for i := p.pos; i < len(p.lines); i++ {
		l := describe(p.lines[i], i)
		if l.text == "" || strings.HasPrefix(l.text, "#") {
			continue
		}
		return l, true
	}
	return line{}, false
}

// next consumes and returns the next meaningful line.
func (p *parser) next() (line, bool) {
	for p.pos < len(p.lines) {
		l := describe(p.lines[p.pos], p.pos)
		p.pos++
		if l.text == "" || strings.HasPrefix(l.text, "#") {
			continue
		}
		return l, true
	}
	return line{}, false
}

func describe(raw string, idx int) line {
	l := line{num: idx + 2} // block starts on file line 2
	for i, r := range raw {
		if r == ' ' {
			continue
		}
		if r == '\t' {
			l.tab = true
			continue
		}
		l.indent = i
		l.text = strings.TrimSpace(raw[i:])
		return l
	}
	return l
}

func (p *parser) set(key string, value any, num int) {
	if _, dup := p.doc.Fields[key]; dup {
		p.violate(num, "duplicate key %q; the later value wins", key)
	} else {
		p.doc.Keys = append(p.doc.Keys, key)
	}
	p.doc.Fields[key] = value
}

func (p *parser) parseTop() {
	for {
		l, ok := p.next()
		if !ok {
			return
		}
		if l.tab {
			p.violate(l.num, "tab characters are not allowed in indentation")
			continue
		}
		if l.indent > 0 {
			p.violate(l.num, "unexpected indentation")
			continue
		}
		if isItem(l.text) {
			p.violate(l.num, "list item without a key")
			continue
		}
		key, value, ok := splitKey(l.text)
		if !ok {
			p.violate(l.num, "expected \"key: value\", got %q", l.text)
			continue
		}
		if value != "" {
			v := p.value(value, l)
			if textKeys[key] {
				v = text(v, value)
			}
			p.set(key, v, l.num)
			continue
		}

		child, ok := p.peek()
		switch {
		case ok && isItem(child.text) && child.indent >= l.indent:
			p.set(key, p.parseList(child.indent), l.num)
		case ok && child.indent > l.indent:
			p.set(key, p.parseMap(child.indent), l.num)
		default:
			p.set(key, nil, l.num)
		}
	}
}

// parseList consumes a block list whose dash column is indent.
func (p *parser) parseList(indent int) []any {
	items := []any{}
	var current map[string]any // non-nil while filling a map item
	fieldIndent := -1

	for {
		l, ok := p.peek()
		if !ok || l.indent < indent || (l.indent == indent && !isItem(l.text)) {
			return items
		}
		p.next()
		if l.tab {
			p.violate(l.num, "tab characters are not allowed in indentation")
			continue
		}

		if l.indent == indent {
			current, fieldIndent = nil, -1
			text := strings.TrimSpace(strings.TrimPrefix(l.text, "-"))
			if text == "" {
				items = append(items, nil)
				continue
			}
			if key, value, ok := splitKey(text); ok && !isQuoted(text) {
				current = map[string]any{}
				fieldIndent = l.indent + (len(l.text) - len(text))
				first := l
				first.indent = fieldIndent
				p.mapField(current, key, value, first)
				items = append(items, current)
				continue
			}
			items = append(items, p.itemValue(text, l))
			continue
		}

		// Deeper than the dash: a continuation field of a map item.
		if current == nil {
			p.violate(l.num, "unexpected indentation inside list")
			continue
		}
		if l.indent != fieldIndent {
			p.violate(l.num, "inconsistent indentation in list item")
			continue
		}
		key, value, ok := splitKey(l.text)
		if !ok {
			p.violate(l.num, "expected \"key: value\" inside list item, got %q", l.text)
			continue
		}
		p.mapField(current, key, value, l)
	}
}

// parseMap consumes a one-level nested map whose keys sit at indent.
func (p *parser) parseMap(indent int) map[string]any {
	m := map[string]any{}
	for {
		l, ok := p.peek()
		if !ok || l.indent < indent {
			return m
		}
		p.next()
		if l.tab {
			p.violate(l.num, "tab characters are not allowed in indentation")
			continue
		}
		if l.indent > indent {
			p.violate(l.num, "unexpected indentation in nested map")
			continue
		}
		if isItem(l.text) {
			p.violate(l.num, "list items are not allowed at this depth")
			continue
		}
		key, value, ok := splitKey(l.text)
		if !ok {
			p.violate(l.num, "expected \"key: value\", got %q", l.text)
			continue
		}
		p.mapField(m, key, value, l)
	}
}

// mapField stores a scalar field of a second-level map; l.indent is the
// key's column. An empty value followed by deeper lines would be a third
// level: those lines are skipped.
func (p *parser) mapField(m map[string]any, key, value string, l line) {
	if _, dup := m[key]; dup {
		p.violate(l.num, "duplicate key %q; the later value wins", key)
	}
	if value != "" {
		m[key] = p.itemValue(value, l)
		return
	}
	m[key] = nil
	if child, ok := p.peek(); ok && child.indent > l.indent {
		p.violate(child.num, "nesting deeper than two levels is not supported (key %q)", key)
		p.skipDeeper(l.indent)
	}
}

// itemValue parses a value at the second level, where flow lists would be
// a third level of nesting.
func (p *parser) itemValue(raw string, l line) any {
	raw = stripComment(raw)
	if strings.HasPrefix(raw, "[") || strings.HasPrefix(raw, "{") {
		p.violate(l.num, "nested flow collections are not supported")
		return raw
	}
	return p.value(raw, l)
}

// value parses a top-level value: a scalar or a flow list of scalars.
func (p *parser) value(raw string, l line) any {
	raw = stripComment(raw)
	switch {
	case raw == "":
		return nil
	case strings.HasPrefix(raw, "&") || strings.HasPrefix(raw, "*"):
		p.violate(l.num, "anchors and aliases are not supported")
		return raw
	case raw == "|" || raw == ">" || strings.HasPrefix(raw, "|-") || strings.HasPrefix(raw, ">-") ||
		strings.HasPrefix(raw, "|+") || strings.HasPrefix(raw, ">+"):
		p.violate(l.num, "block scalars are not supported")
		p.skipDeeper(l.indent)
		return nil
	case strings.HasPrefix(raw, "{"):
		p.violate(l.num, "flow mappings are not supported")
		return raw
	case strings.HasPrefix(raw, "["):
		return p.flowList(raw, l)
	}
	return scalar(raw)
}

func (p *parser) flowList(raw string, l line) any {
	if !strings.HasSuffix(raw, "]") {
		p.violate(l.num, "unterminated flow list")
		return raw
	}
	inner := strings.TrimSpace(raw[1 : len(raw)-1])
	items := []any{}
	if inner == "" {
		return items
	}
	for _, part := range splitFlow(inner) {
		part = strings.TrimSpace(part)
		if strings.HasPrefix(part, "[") || strings.HasPrefix(part, "{") {
			p.violate(l.num, "nested flow collections are not supported")
			return raw
		}
		items = append(items, scalar(part))
	}
	return items
}

func (p *parser) skipDeeper(indent int) {
	for {
		l, ok := p.peek()
		if !ok || l.indent <= indent {
			return
		}
		p.next()
	}
}

// --- scalar helpers ---

// textKeys hold identifiers that look numeric but must keep their written
// form: "version: 1.10" is the string "1.10", not the float 1.1.
var textKeys = map[string]bool{"version": true}

// text returns the written form of a plain numeric or boolean scalar.
func text(v any, raw string) any {
	switch v.(type) {
	case int64, float64, bool:
		return strings.TrimSpace(stripComment(raw))
	}
	return v
}

var floatRe = regexp.MustCompile(`^[-+]?(\d+\.\d*|\.\d+)([eE][-+]?\d+)?$`)

func scalar(raw string) any {
	s := strings.TrimSpace(raw)
	if len(s) >= 2 {
		switch {
		case s[0] == '"' && s[len(s)-1] == '"':
			if u, err := strconv.Unquote(s); err == nil {
				return u
			}
			return s[1 : len(s)-1]
		case s[0] == '\'' && s[len(s)-1] == '\'':
			return strings.ReplaceAll(s[1:len(s)-1], "''", "'")
		}
	}
	switch strings.ToLower(s) {
	case "true":
		return true
	case "false":
		return false
	case "null", "~":
		return nil
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return n
	}
	if floatRe.MatchString(s) {
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return f
		}
	}
	return s
}

func splitKey(text string) (key, value string, ok bool) {
	m := keyRe.FindStringSubmatch(text)
	if m == nil {
		return "", "", false
	}
	return m[1], strings.TrimSpace(m[2]), true
}

func isItem(text string) bool {
	return text == "-" || strings.HasPrefix(text, "- ")
}

func isQuoted(text string) bool {
	return strings.HasPrefix(text, `"`) || strings.HasPrefix(text, "'")
}

// stripComment removes a trailing " # comment" outside quotes.
func stripComment(s string) string {
	var quote rune
	for i, r := range s {
		switch {
		case quote != 0:
			if r == quote {
				quote = 0
			}
		case r == '"' || r == '\'':
			quote = r
		case r == '#' && (i == 0 || s[i-1] == ' ' || s[i-1] == '\t'):
			return strings.TrimSpace(s[:i])
		}
	}
	return strings.TrimSpace(s)
}

// splitFlow splits a flow list body on commas outside quotes and brackets.
func splitFlow(s string) []string {
	var parts []string
	var quote rune
	depth, start := 0, 0
	for i, r := range s {
		switch {
		case quote != 0:
			if r == quote {
				quote = 0
			}
		case r == '"' || r == '\'':
			quote = r
		case r == '[' || r == '{':
			depth++
		case r == ']' || r == '}':
			depth--
		case r == ',' && depth == 0:
			parts = append(parts, s[start:i])
			start = i + 1
		}
	}
	return append(parts, s[start:])
}
