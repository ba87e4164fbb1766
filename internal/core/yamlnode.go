package core

import (
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// deref follows YAML aliases.
func deref(n *yaml.Node) *yaml.Node {
	for n != nil && n.Kind == yaml.AliasNode {
		n = n.Alias
	}
	return n
}

// mappingValue returns the key and value nodes for key in mapping n.
func mappingValue(n *yaml.Node, key string) (*yaml.Node, *yaml.Node) {
	n = deref(n)
	if n == nil || n.Kind != yaml.MappingNode {
		return nil, nil
	}
	for i := 0; i+1 < len(n.Content); i += 2 {
		if n.Content[i].Value == key {
			return n.Content[i], deref(n.Content[i+1])
		}
	}
	return nil, nil
}

// pointerAtLine returns the JSON pointer of the first value that starts
// on line and carries tag, or "" when none does. An empty tag matches any
// value. Aliases are not followed.
func pointerAtLine(root *yaml.Node, line int, tag string) string {
	matches := func(n *yaml.Node) bool {
		return n.Line == line && (tag == "" || n.ShortTag() == tag)
	}
	var walk func(n *yaml.Node, ptr string) (string, bool)
	walk = func(n *yaml.Node, ptr string) (string, bool) {
		if n == nil {
			return "", false
		}
		switch n.Kind {
		case yaml.MappingNode:
			for i := 0; i+1 < len(n.Content); i += 2 {
				k, v := n.Content[i], n.Content[i+1]
				child := ptr + pointer(k.Value)
				if matches(v) {
					return child, true
				}
				if p, ok := walk(v, child); ok {
					return p, true
				}
			}
		case yaml.SequenceNode:
			for i, item := range n.Content {
				child := ptr + pointer(strconv.Itoa(i))
				if matches(item) {
					return child, true
				}
				if p, ok := walk(item, child); ok {
					return p, true
				}
			}
		}
		return "", false
	}
	p, _ := walk(deref(root), "")
	return p
}

func isNull(n *yaml.Node) bool {
	n = deref(n)
	return n == nil || (n.Kind == yaml.ScalarNode && n.ShortTag() == "!!null")
}

func isString(n *yaml.Node) bool {
	n = deref(n)
	return n != nil && n.Kind == yaml.ScalarNode && n.ShortTag() == "!!str"
}

func isInt(n *yaml.Node) bool {
	n = deref(n)
	return n != nil && n.Kind == yaml.ScalarNode && n.ShortTag() == "!!int"
}

// nodeTypeName describes n for type mismatch messages.
func nodeTypeName(n *yaml.Node) string {
	n = deref(n)
	if n == nil {
		return "nothing"
	}
	switch n.Kind {
	case yaml.MappingNode:
		return "mapping"
	case yaml.SequenceNode:
		return "list"
	case yaml.ScalarNode:
		switch n.ShortTag() {
		case "!!str":
			return "string"
		case "!!int":
			return "integer"
		case "!!float":
			return "number"
		case "!!bool":
			return "boolean"
		case "!!null":
			return "null"
		}
	}
	return "value"
}

// pointer builds a JSON pointer from path segments.
func pointer(segments ...string) string {
	var b strings.Builder
	for _, s := range segments {
		b.WriteByte('/')
		s = strings.ReplaceAll(s, "~", "~0")
		b.WriteString(strings.ReplaceAll(s, "/", "~1"))
	}
	return b.String()
}

// locate returns the position of the node addressed by JSON pointer ptr,
// falling back to the deepest node found along the way.
func locate(root *yaml.Node, ptr string) (int, int) {
	cur := deref(root)
	if cur == nil {
		return 0, 0
	}
	line, col := cur.Line, cur.Column
	if ptr == "" {
		return line, col
	}
	for _, seg := range strings.Split(strings.TrimPrefix(ptr, "/"), "/") {
		seg = strings.ReplaceAll(strings.ReplaceAll(seg, "~1", "/"), "~0", "~")
		var next *yaml.Node
		switch cur.Kind {
		case yaml.MappingNode:
			_, next = mappingValue(cur, seg)
		case yaml.SequenceNode:
			if i, err := strconv.Atoi(seg); err == nil && i >= 0 && i < len(cur.Content) {
				next = deref(cur.Content[i])
			}
		}
		if next == nil {
			break
		}
		cur = next
		line, col = cur.Line, cur.Column
	}
	return line, col
}
