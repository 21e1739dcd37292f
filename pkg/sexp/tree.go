// Package sexp provides the symbolic expression tokenizer shared by the
// soccer log parsers. Simulation logs encode commands as parenthesized,
// space-delimited expressions such as (show 12 ((b) 0 0 0 0) ...).
package sexp

import (
	"errors"
	"fmt"
	"strings"
)

// ErrMalformedTree is returned when parentheses are unbalanced or the input
// does not consist of exactly one top-level node.
var ErrMalformedTree = errors.New("malformed tree")

// Node is one parenthesized group. Values holds the bare tokens of the group
// in order; Children holds the nested groups in order.
//
// Example: (l 1 (v h 90) 0.5) yields Values [l 1 0.5] and one child with
// Values [v h 90].
type Node struct {
	Values   []string
	Children []*Node
}

// MaxDepth is the deepest nesting Parse accepts.
const MaxDepth = 256

// Parse tokenizes a single parenthesized expression into a tree.
// Whitespace around the expression is ignored. Parse has no shared state and
// is safe for concurrent use.
func Parse(s string) (*Node, error) {
	start := skipSpace(s, 0)
	if start >= len(s) {
		return nil, fmt.Errorf("%w: empty input", ErrMalformedTree)
	}
	if s[start] != '(' {
		return nil, fmt.Errorf("%w: expected '(' at offset %d, got %q", ErrMalformedTree, start, s[start])
	}

	root, end, err := scan(s, start)
	if err != nil {
		return nil, err
	}

	if rest := skipSpace(s, end); rest < len(s) {
		return nil, fmt.Errorf("%w: unexpected content after top-level node at offset %d", ErrMalformedTree, rest)
	}

	return root, nil
}

// scan builds the node opened at s[pos] and returns it with the index just
// past its closing paren. Open nodes are kept on an explicit stack.
func scan(s string, pos int) (*Node, int, error) {
	root := &Node{}
	stack := []*Node{root}
	tokenStart := -1

	closeToken := func(i int) {
		if tokenStart >= 0 {
			top := stack[len(stack)-1]
			top.Values = append(top.Values, s[tokenStart:i])
			tokenStart = -1
		}
	}

	for i := pos + 1; i < len(s); i++ {
		switch s[i] {
		case '(':
			closeToken(i)
			if len(stack) >= MaxDepth {
				return nil, 0, fmt.Errorf("%w: nesting deeper than %d at offset %d", ErrMalformedTree, MaxDepth, i)
			}
			child := &Node{}
			top := stack[len(stack)-1]
			top.Children = append(top.Children, child)
			stack = append(stack, child)

		case ')':
			closeToken(i)
			stack = stack[:len(stack)-1]
			if len(stack) == 0 {
				return root, i + 1, nil
			}

		case ' ', '\t', '\r', '\n':
			closeToken(i)

		default:
			if tokenStart < 0 {
				tokenStart = i
			}
		}
	}

	return nil, 0, fmt.Errorf("%w: unexpected end of input, missing ')'", ErrMalformedTree)
}

func skipSpace(s string, i int) int {
	for i < len(s) && (s[i] == ' ' || s[i] == '\t' || s[i] == '\r' || s[i] == '\n') {
		i++
	}
	return i
}

// String re-serializes the node. Values are written before children, so the
// result is canonical rather than byte-identical to the input.
func (n *Node) String() string {
	var b strings.Builder
	n.write(&b)
	return b.String()
}

func (n *Node) write(b *strings.Builder) {
	b.WriteByte('(')
	for i, v := range n.Values {
		if i > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(v)
	}
	for i, c := range n.Children {
		if i > 0 || len(n.Values) > 0 {
			b.WriteByte(' ')
		}
		c.write(b)
	}
	b.WriteByte(')')
}
