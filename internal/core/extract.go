package core

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/valter-silva-au/lmay/pkg/models"
)

var (
	// blockKeyPattern matches "key: rest" with a plain or quoted key.
	blockKeyPattern = regexp.MustCompile(`^("(?:[^"\\]|\\.)*"|'(?:[^']|'')*'|[^\s"'#:{}\[\],&*!|>-][^:#]*?|-[^\s:#][^:#]*?)\s*:(?:\s+(.*))?$`)
	blockScalar     = regexp.MustCompile(`^[|>][-+0-9]*$`)
	propertyPattern = regexp.MustCompile(`^(?:[!&][^\s]*\s+)+`)
)

// blockKey is an open mapping key and the column it starts at.
type blockKey struct {
	col int
	key string
}

// ExtractReferences scans raw document text line by line for the path
// references CollectReferences would return from the parsed document. It
// does not build a YAML tree: block mappings are followed by indentation,
// flow collections are tokenized once their brackets balance, and block
// scalar bodies are skipped. Multi-line plain scalars and aliases are not
// resolved.
func ExtractReferences(raw []byte) []models.Reference {
	var (
		refs        []models.Reference
		stack       []blockKey
		blockIndent = -1
		flow        strings.Builder
		flowPath    []string
		flowDepth   int
	)

	emit := func(keys []string, value string) {
		if kind, ok := referenceKindAt(keys); ok {
			if v, ok := scalarValue(value); ok {
				refs = append(refs, models.Reference{Kind: kind, Raw: v})
			}
		}
	}

	for _, line := range strings.Split(string(raw), "\n") {
		line = strings.TrimRight(line, "\r")

		if flowDepth > 0 {
			part := stripFlowComment(line)
			flow.WriteString(" ")
			flow.WriteString(part)
			if flowDepth += bracketBalance(part); flowDepth <= 0 {
				for _, p := range flowPairs(flow.String(), flowPath) {
					emit(p.keys, p.value)
				}
				flowDepth = 0
			}
			continue
		}

		trimmed := strings.TrimSpace(line)
		indent := len(line) - len(strings.TrimLeft(line, " "))

		if blockIndent >= 0 {
			if trimmed == "" || indent > blockIndent {
				continue
			}
			blockIndent = -1
		}
		if trimmed == "" || strings.HasPrefix(trimmed, "#") || trimmed == "---" || trimmed == "..." {
			continue
		}

		// Sequence markers open an item whose keys start after the dash.
		col, rest := indent, trimmed
		for rest == "-" || strings.HasPrefix(rest, "- ") {
			for len(stack) > 0 && stack[len(stack)-1].col >= col+1 {
				stack = stack[:len(stack)-1]
			}
			after := strings.TrimLeft(rest[1:], " ")
			col += len(rest) - len(after)
			rest = after
		}
		if rest == "" {
			continue
		}

		for len(stack) > 0 && stack[len(stack)-1].col >= col {
			stack = stack[:len(stack)-1]
		}
		parent := stackKeys(stack)

		if rest[0] == '{' || rest[0] == '[' {
			// A flow collection as a sequence item.
			flow.Reset()
			flowPath = parent
			if flowDepth = startFlow(&flow, rest); flowDepth <= 0 {
				for _, p := range flowPairs(flow.String(), flowPath) {
					emit(p.keys, p.value)
				}
				flowDepth = 0
			}
			continue
		}

		m := blockKeyPattern.FindStringSubmatch(rest)
		if m == nil {
			continue
		}
		key := unquoteKey(m[1])
		value := stripComment(m[2])
		keys := append(append([]string(nil), parent...), key)
		stack = append(stack, blockKey{col: col, key: key})

		switch {
		case value == "":
		case blockScalar.MatchString(value):
			blockIndent = col
		case value[0] == '{' || value[0] == '[':
			flow.Reset()
			flowPath = keys
			if flowDepth = startFlow(&flow, strings.TrimSpace(stripFlowComment(m[2]))); flowDepth <= 0 {
				for _, p := range flowPairs(flow.String(), flowPath) {
					emit(p.keys, p.value)
				}
				flowDepth = 0
			}
		default:
			emit(keys, value)
		}
	}
	return refs
}

// referenceKindAt maps a key path to the reference it denotes, matching
// where CollectReferences looks. Sequence positions are not part of the
// path.
func referenceKindAt(keys []string) (models.ReferenceKind, bool) {
	switch len(keys) {
	case 2:
		if keys[0] == "hierarchy" && keys[1] == "parent" {
			return models.RefParent, true
		}
	case 3:
		switch {
		case keys[0] == "structure" && keys[2] == "path":
			return models.RefStructurePath, true
		case keys[0] == "structure" && keys[2] == "lmay_file":
			return models.RefLmayFileLink, true
		case keys[0] == "architecture" && keys[1] == "entry_points" && keys[2] == "path":
			return models.RefEntryPoint, true
		case keys[0] == "dependencies" && keys[1] == "internal" && keys[2] == "path":
			return models.RefInternalDependency, true
		}
	}
	return "", false
}

func stackKeys(stack []blockKey) []string {
	keys := make([]string, len(stack))
	for i, k := range stack {
		keys[i] = k.key
	}
	return keys
}

func unquoteKey(k string) string {
	if v, ok := scalarValue(k); ok {
		return v
	}
	return strings.TrimSpace(k)
}

func startFlow(b *strings.Builder, text string) int {
	part := stripFlowComment(text)
	b.WriteString(part)
	return bracketBalance(part)
}

// bracketBalance counts opening minus closing flow brackets outside quotes.
func bracketBalance(s string) int {
	depth := 0
	var quote byte
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case quote != 0:
			if c == '\\' && quote == '"' {
				i++
			} else if c == quote {
				quote = 0
			}
		case opensQuote(s, i):
			quote = c
		case c == '{' || c == '[':
			depth++
		case c == '}' || c == ']':
			depth--
		}
	}
	return depth
}

// stripFlowComment drops a trailing comment outside quotes.
func stripFlowComment(s string) string {
	var quote byte
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case quote != 0:
			if c == '\\' && quote == '"' {
				i++
			} else if c == quote {
				quote = 0
			}
		case opensQuote(s, i):
			quote = c
		case c == '#' && (i == 0 || s[i-1] == ' ' || s[i-1] == '\t'):
			return s[:i]
		}
	}
	return s
}

// opensQuote reports whether s[i] starts a quoted scalar. Quotes inside
// plain scalars are literal.
func opensQuote(s string, i int) bool {
	if s[i] != '"' && s[i] != '\'' {
		return false
	}
	return i == 0 || strings.IndexByte(" \t[{,", s[i-1]) >= 0
}

type flowPair struct {
	keys  []string
	value string
}

type flowFrame struct {
	mapping bool
	path    []string
	key     string
	inValue bool
}

// flowPairs tokenizes a flow collection and returns every scalar value
// held by a mapping key, with its full key path below base.
func flowPairs(s string, base []string) []flowPair {
	var (
		pairs []flowPair
		stack []*flowFrame
	)
	childPath := func() []string {
		if len(stack) == 0 {
			return base
		}
		top := stack[len(stack)-1]
		if top.mapping && top.inValue {
			return append(append([]string(nil), top.path...), top.key)
		}
		return top.path
	}

	for i := 0; i < len(s); {
		c := s[i]
		switch {
		case c == ' ' || c == '\t':
			i++
		case c == '{' || c == '[':
			stack = append(stack, &flowFrame{mapping: c == '{', path: childPath()})
			i++
		case c == '}' || c == ']':
			if len(stack) > 0 {
				stack = stack[:len(stack)-1]
			}
			i++
		case c == ',':
			if len(stack) > 0 {
				top := stack[len(stack)-1]
				top.key, top.inValue = "", false
			}
			i++
		case c == ':':
			if len(stack) > 0 {
				stack[len(stack)-1].inValue = true
			}
			i++
		default:
			tok, n := flowScalar(s[i:])
			if n == 0 {
				i++
				continue
			}
			i += n
			if len(stack) == 0 || !stack[len(stack)-1].mapping {
				continue
			}
			top := stack[len(stack)-1]
			if !top.inValue {
				top.key = unquoteKey(tok)
				continue
			}
			pairs = append(pairs, flowPair{
				keys:  append(append([]string(nil), top.path...), top.key),
				value: tok,
			})
		}
	}
	return pairs
}

// flowScalar reads one quoted or plain scalar and returns it with the
// number of bytes consumed.
func flowScalar(s string) (string, int) {
	if s[0] == '"' || s[0] == '\'' {
		q := s[0]
		for i := 1; i < len(s); i++ {
			if q == '"' && s[i] == '\\' {
				i++
				continue
			}
			if s[i] == q {
				if q == '\'' && i+1 < len(s) && s[i+1] == '\'' {
					i++
					continue
				}
				return s[:i+1], i + 1
			}
		}
		return s, len(s)
	}
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case ',', '{', '}', '[', ']':
			return strings.TrimSpace(s[:i]), i
		case ':':
			if i+1 == len(s) || strings.ContainsRune(" \t,{}[]", rune(s[i+1])) {
				return strings.TrimSpace(s[:i]), i
			}
		}
	}
	return strings.TrimSpace(s), len(s)
}

func stripComment(v string) string {
	return strings.TrimSpace(stripFlowComment(strings.TrimSpace(v)))
}

// scalarValue unquotes a plain or quoted scalar, rejecting empty and null
// values. Leading tags and anchors are dropped; aliases are rejected.
func scalarValue(v string) (string, bool) {
	v = strings.TrimSpace(v)
	v = propertyPattern.ReplaceAllString(v, "")
	switch {
	case strings.HasPrefix(v, "*"):
		return "", false
	case strings.HasPrefix(v, `"`):
		end := strings.LastIndex(v, `"`)
		if end <= 0 {
			return "", false
		}
		s, err := strconv.Unquote(v[:end+1])
		if err != nil {
			return "", false
		}
		v = s
	case strings.HasPrefix(v, `'`):
		end := strings.LastIndex(v, `'`)
		if end <= 0 {
			return "", false
		}
		v = strings.ReplaceAll(v[1:end], "''", "'")
	default:
		if v == "~" || v == "null" || v == "Null" || v == "NULL" {
			return "", false
		}
	}
	if v == "" {
		return "", false
	}
	return v, true
}
