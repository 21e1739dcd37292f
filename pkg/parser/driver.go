package parser

import (
	"fmt"
	"log"
	"strings"

	"github.com/OpenTraceLab/OpenTraceSoccer/pkg/gamelog"
	"github.com/OpenTraceLab/OpenTraceSoccer/pkg/lines"
)

// State is the progress of a Driver through its input.
type State uint8

const (
	StateUnstarted State = iota
	StateHeaderParsed
	StateBodyStreaming
	StateExhausted
)

var stateNames = map[State]string{
	StateUnstarted:     "Unstarted",
	StateHeaderParsed:  "HeaderParsed",
	StateBodyStreaming: "BodyStreaming",
	StateExhausted:     "Exhausted",
}

func (s State) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return fmt.Sprintf("State(%d)", s)
}

// Handler implements the format specific part of a parser.
type Handler interface {
	// Header interprets the first non-empty line and creates the log. When
	// body is true the same line is also handed to Line.
	Header(line string, lineNo int) (l *gamelog.Log, body bool, err error)
	// Line handles one non-empty, trimmed body line and reports whether it
	// was a data record counting toward the batch cap. Problems with
	// individual lines are logged by the handler, not returned.
	Line(line string, lineNo int) bool
	// Finish is called once when the complete input has been consumed.
	Finish()
}

// Driver runs a Handler over a line cursor and implements Parser.
type Driver struct {
	handler   Handler
	batchSize int
	logger    *log.Logger

	cursor   *lines.Cursor
	log      *gamelog.Log
	state    State
	pending  bool
	disposed bool
	err      error
}

// NewDriver creates a driver for h.
func NewDriver(h Handler, opts Options) *Driver {
	return &Driver{
		handler:   h,
		batchSize: opts.BatchSize,
		logger:    opts.Logger,
	}
}

// State reports the driver's progress.
func (d *Driver) State() State {
	return d.state
}

// Log returns the log being built, or nil before the header was read.
func (d *Driver) Log() *gamelog.Log {
	return d.log
}

// Parse supplies data and processes up to one batch of records.
func (d *Driver) Parse(data string, extent lines.Extent) (Result, error) {
	if d.disposed {
		return Result{}, nil
	}
	if d.err != nil {
		return Result{}, d.err
	}
	if d.state == StateExhausted {
		return Result{}, nil
	}

	if d.cursor == nil {
		d.cursor = lines.New(data, extent)
	} else {
		exhausted := d.cursor.Update(data, extent)
		if !exhausted && d.pending {
			// A pass is still in progress; it picks up the new data on Resume.
			return Result{Pending: true}, nil
		}
	}

	return d.run()
}

// Resume continues a pending pass.
func (d *Driver) Resume() (Result, error) {
	if d.disposed || !d.pending {
		return Result{}, nil
	}
	return d.run()
}

// Dispose abandons the parse. The cursor's buffer is released unless
// keepCursor is set. It is safe to call at any point, including while a
// pass is pending, and more than once.
func (d *Driver) Dispose(keepCursor bool) {
	d.disposed = true
	d.pending = false
	if d.cursor != nil && !keepCursor {
		d.cursor.Dispose()
		d.cursor = nil
	}
}

func (d *Driver) run() (Result, error) {
	var res Result
	d.pending = false

	if d.state == StateUnstarted {
		ok, err := d.parseHeader()
		if err != nil {
			d.fail(err)
			return res, err
		}
		if !ok {
			if d.cursor.Extent() == lines.Complete {
				err := gamelog.NewParseError(0, gamelog.ErrCorruptLog, "missing header")
				d.fail(err)
				return res, err
			}
			return res, nil
		}
		res.NewLog = true
	}

	d.state = StateBodyStreaming
	before := len(d.log.States)

	records := 0
	for records < d.batchSize {
		line, ok := d.cursor.Next()
		if !ok {
			break
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if d.handler.Line(line, d.cursor.LineNumber()) {
			records++
		}
	}

	if d.cursor.HasNext() {
		d.pending = true
		res.Pending = true
	} else if d.cursor.Extent() == lines.Complete {
		return res, d.finish()
	}

	if len(d.log.States) != before {
		d.log.OnStatesUpdated()
	}
	return res, nil
}

// parseHeader consumes lines up to the first non-empty one and hands it to
// the handler. It reports false when no complete line is available yet.
func (d *Driver) parseHeader() (bool, error) {
	for {
		line, ok := d.cursor.Next()
		if !ok {
			return false, nil
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		lineNo := d.cursor.LineNumber()
		l, body, err := d.handler.Header(line, lineNo)
		if err != nil {
			return false, err
		}
		d.log = l
		d.state = StateHeaderParsed
		if body {
			d.handler.Line(line, lineNo)
		}
		return true, nil
	}
}

func (d *Driver) finish() error {
	d.handler.Finish()
	d.state = StateExhausted
	d.log.Finalize()

	if len(d.log.States) == 0 {
		err := gamelog.NewParseError(0, gamelog.ErrEmptyLog, "no snapshots in %s log", d.log.Format)
		d.err = err
		return err
	}
	d.logger.Printf("finished %s log: %d snapshots, %.1fs", d.log.Format, len(d.log.States), d.log.Duration)
	return nil
}

func (d *Driver) fail(err error) {
	d.err = err
	d.state = StateExhausted
	d.pending = false
}
