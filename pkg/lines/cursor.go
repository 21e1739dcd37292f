// Package lines turns a growing text buffer into a restartable sequence of
// lines. A Cursor keeps its own scan offset so a parser can be invoked again
// with more data without re-reading lines it has already consumed.
package lines

import (
	"fmt"
	"strings"
)

// Extent declares how much of a resource a buffer represents.
type Extent uint8

const (
	// Complete means all data has been supplied. A trailing line without a
	// terminator is still a valid line.
	Complete Extent = iota
	// Partial means the buffer is a prefix of the resource that will be
	// replaced by a longer prefix later. A trailing unterminated line is not
	// yet available.
	Partial
	// Incremental means the buffer is a continuation to be appended after
	// the unconsumed remainder of the previous buffer.
	Incremental
)

var extentNames = map[Extent]string{
	Complete:    "Complete",
	Partial:     "Partial",
	Incremental: "Incremental",
}

func (e Extent) String() string {
	if name, ok := extentNames[e]; ok {
		return name
	}
	return fmt.Sprintf("Extent(%d)", e)
}

// Cursor yields complete lines from a buffer.
type Cursor struct {
	data   string
	pos    int
	extent Extent
	lineNo int
}

// New creates a cursor over data.
func New(data string, extent Extent) *Cursor {
	return &Cursor{data: data, extent: extent}
}

// Extent reports the extent of the current buffer.
func (c *Cursor) Extent() Extent {
	return c.extent
}

// LineNumber reports the 1-based number of the line most recently returned
// by Next, counted across updates.
func (c *Cursor) LineNumber() int {
	return c.lineNo
}

// Remaining returns the number of unconsumed bytes in the buffer.
func (c *Cursor) Remaining() int {
	return len(c.data) - c.pos
}

// HasNext reports whether Next would return a line.
func (c *Cursor) HasNext() bool {
	if c.pos >= len(c.data) {
		return false
	}
	if c.extent == Complete {
		return true
	}
	return strings.IndexByte(c.data[c.pos:], '\n') >= 0
}

// Next returns the next complete line without its terminator. The second
// result is false when no further complete line is available for the
// current extent.
func (c *Cursor) Next() (string, bool) {
	if c.pos >= len(c.data) {
		return "", false
	}

	rest := c.data[c.pos:]
	idx := strings.IndexByte(rest, '\n')

	var line string
	switch {
	case idx >= 0:
		line = rest[:idx]
		c.pos += idx + 1
	case c.extent == Complete:
		line = rest
		c.pos = len(c.data)
	default:
		return "", false
	}

	c.lineNo++
	return strings.TrimSuffix(line, "\r"), true
}

// Update supplies a new buffer and reports whether the cursor had already
// exhausted its previous buffer.
//
// Complete and Partial buffers replace the previous buffer and keep the scan
// offset; they must extend what was previously supplied. Incremental buffers
// are appended after the unconsumed remainder. A Complete buffer following an
// Incremental one is treated as the final increment.
func (c *Cursor) Update(data string, extent Extent) bool {
	exhausted := !c.HasNext()

	if extent == Incremental || (extent == Complete && c.extent == Incremental) {
		c.data = c.data[c.pos:] + data
		c.pos = 0
	} else {
		c.data = data
		if c.pos > len(c.data) {
			c.pos = len(c.data)
		}
	}
	c.extent = extent

	return exhausted
}

// Dispose releases the buffer and resets the scan position. It is safe to
// call more than once.
func (c *Cursor) Dispose() {
	c.data = ""
	c.pos = 0
	c.lineNo = 0
}
