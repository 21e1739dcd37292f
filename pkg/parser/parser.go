// Package parser defines the contract shared by the soccer log format
// parsers and the resumable driver that implements it.
//
// A parser is fed raw text together with an Extent. It may be invoked again
// with more text at any time; already consumed lines are never processed
// twice. To keep a large log from blocking the caller, at most BatchSize data
// records are processed per invocation. When more input is ready the result
// is Pending and the caller continues the same pass with Resume.
package parser

import (
	"io"
	"log"
	"os"

	"github.com/OpenTraceLab/OpenTraceSoccer/pkg/gamelog"
	"github.com/OpenTraceLab/OpenTraceSoccer/pkg/lines"
)

// DefaultBatchSize is the number of data records processed per invocation.
const DefaultBatchSize = 100

// Result describes the outcome of one Parse or Resume call.
type Result struct {
	// NewLog is true on the call that created the Log.
	NewLog bool
	// Pending is true when the batch cap was reached with input left over.
	// Call Resume to continue.
	Pending bool
}

// Parser is implemented by all format parsers.
type Parser interface {
	// Parse supplies raw text and processes up to one batch of records.
	Parse(data string, extent lines.Extent) (Result, error)
	// Resume continues a pending pass without supplying new text.
	Resume() (Result, error)
	// Log returns the log being built, or nil before the header was read.
	Log() *gamelog.Log
	// Dispose abandons the parse. Later calls are no-ops.
	Dispose(keepCursor bool)
}

// Options configure a parser.
type Options struct {
	BatchSize int
	Logger    *log.Logger
}

// Option mutates Options.
type Option func(*Options)

// WithBatchSize sets the number of data records processed per invocation.
// Values below 1 select DefaultBatchSize.
func WithBatchSize(n int) Option {
	return func(o *Options) {
		o.BatchSize = n
	}
}

// WithLogger sets the logger used for recoverable problems.
func WithLogger(l *log.Logger) Option {
	return func(o *Options) {
		o.Logger = l
	}
}

// NewOptions applies opts over the defaults.
func NewOptions(opts ...Option) Options {
	o := Options{BatchSize: DefaultBatchSize}
	for _, opt := range opts {
		opt(&o)
	}
	if o.BatchSize < 1 {
		o.BatchSize = DefaultBatchSize
	}
	if o.Logger == nil {
		o.Logger = log.New(os.Stderr, "parser: ", log.LstdFlags)
	}
	return o
}

// DiscardLogger returns a logger that drops all output.
func DiscardLogger() *log.Logger {
	return log.New(io.Discard, "", 0)
}

// Drain parses data and resumes until the pass is no longer pending.
func Drain(p Parser, data string, extent lines.Extent) (Result, error) {
	res, err := p.Parse(data, extent)
	newLog := res.NewLog
	for err == nil && res.Pending {
		res, err = p.Resume()
		newLog = newLog || res.NewLog
	}
	res.NewLog = newLog
	return res, err
}
