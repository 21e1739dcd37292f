package sexp

import (
	"fmt"
	"strconv"
	"strings"
)

// Node navigation helpers

// Name returns the first value of the node, which by convention is the
// command or key name. Example: Name((sim_step 100)) returns "sim_step".
func (n *Node) Name() string {
	if n == nil || len(n.Values) == 0 {
		return ""
	}
	return n.Values[0]
}

// Child returns the first child whose name matches key.
func (n *Node) Child(key string) (*Node, bool) {
	if n == nil {
		return nil, false
	}
	for _, c := range n.Children {
		if c.Name() == key {
			return c, true
		}
	}
	return nil, false
}

// ChildrenNamed returns all children whose name matches key.
func (n *Node) ChildrenNamed(key string) []*Node {
	var results []*Node
	if n == nil {
		return results
	}
	for _, c := range n.Children {
		if c.Name() == key {
			results = append(results, c)
		}
	}
	return results
}

// Typed value extraction helpers

// Value returns the token at the given index.
// Index 0 is the name, 1 is the first argument, etc.
func (n *Node) Value(index int) (string, error) {
	if n == nil {
		return "", fmt.Errorf("nil node")
	}
	if index < 0 || index >= len(n.Values) {
		return "", fmt.Errorf("index %d out of bounds (length %d)", index, len(n.Values))
	}
	return n.Values[index], nil
}

// Float extracts a float64 value at the given index.
func (n *Node) Float(index int) (float64, error) {
	str, err := n.Value(index)
	if err != nil {
		return 0, err
	}

	val, err := strconv.ParseFloat(str, 64)
	if err != nil {
		return 0, fmt.Errorf("failed to parse float %q: %w", str, err)
	}

	return val, nil
}

// Int extracts an int value at the given index. Hexadecimal values with a
// 0x prefix are accepted since agent state flags are written that way.
func (n *Node) Int(index int) (int, error) {
	str, err := n.Value(index)
	if err != nil {
		return 0, err
	}

	val, err := strconv.ParseInt(str, 0, 64)
	if err != nil {
		return 0, fmt.Errorf("failed to parse int %q: %w", str, err)
	}

	return int(val), nil
}

// Unquote strips a single pair of surrounding double quotes.
func Unquote(s string) string {
	if len(s) >= 2 && strings.HasPrefix(s, `"`) && strings.HasSuffix(s, `"`) {
		return s[1 : len(s)-1]
	}
	return s
}
