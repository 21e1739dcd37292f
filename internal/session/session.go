// Package session runs the host loop that connects a transport source, a
// log parser and a playback engine: chunks are parsed as they arrive, pending
// parse batches are resumed once per tick and the engine is ticked at a fixed
// rate. Each tick is published to subscribers.
package session

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/OpenTraceLab/OpenTraceSoccer/internal/config"
	"github.com/OpenTraceLab/OpenTraceSoccer/pkg/formats"
	"github.com/OpenTraceLab/OpenTraceSoccer/pkg/gamelog"
	"github.com/OpenTraceLab/OpenTraceSoccer/pkg/lines"
	"github.com/OpenTraceLab/OpenTraceSoccer/pkg/parser"
	"github.com/OpenTraceLab/OpenTraceSoccer/pkg/playback"
	"github.com/OpenTraceLab/OpenTraceSoccer/pkg/transport"
)

// Tick is the engine state published after every host loop tick.
type Tick struct {
	State         playback.State
	PlayTime      float64
	Index         int
	Frame         playback.Frame
	PassedGoals   int
	UpcomingGoals int
}

// Options configure a Session.
type Options struct {
	Config     *config.Config
	Logger     *log.Logger
	Registerer prometheus.Registerer
	// ExitAtEnd stops Run once playback reaches the end of a fully loaded log.
	ExitAtEnd bool
	// ParserLogger receives per-line parser diagnostics. Nil discards them.
	ParserLogger *log.Logger
}

// Session plays one log.
type Session struct {
	ID uuid.UUID

	cfg       *config.Config
	logger    *log.Logger
	metrics   *Metrics
	exitAtEnd bool
	src       transport.Source

	mu       sync.Mutex
	parser   parser.Parser
	engine   *playback.Engine
	pending  bool
	parseErr error

	subMu sync.Mutex
	subs  map[uuid.UUID]chan Tick
}

// New creates a session for the log at location, a file path or URL.
func New(location string, opts Options) (*Session, error) {
	cfg := opts.Config
	if cfg == nil {
		cfg = config.Default()
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.New(os.Stderr, "session: ", log.LstdFlags)
	}
	parserLogger := opts.ParserLogger
	if parserLogger == nil {
		parserLogger = parser.DiscardLogger()
	}

	src := transport.ForLocation(location, cfg.Transport.HTTPTimeout)
	p, err := formats.ForName(src.Name(),
		parser.WithBatchSize(cfg.Parser.BatchSize),
		parser.WithLogger(parserLogger),
	)
	if err != nil {
		return nil, err
	}

	engine, err := playback.New(&playback.Config{
		StalenessThreshold: cfg.Playback.StalenessThreshold,
		AutoPlay:           cfg.Playback.AutoPlay,
		Speed:              cfg.Playback.Speed,
	})
	if err != nil {
		return nil, fmt.Errorf("session: %w", err)
	}

	s := &Session{
		ID:        uuid.New(),
		cfg:       cfg,
		logger:    logger,
		metrics:   NewMetrics(opts.Registerer),
		exitAtEnd: opts.ExitAtEnd,
		src:       src,
		parser:    p,
		engine:    engine,
		subs:      make(map[uuid.UUID]chan Tick),
	}
	engine.OnStateChange(func(c playback.StateChange) {
		s.metrics.PlaybackState.Set(float64(c.New))
		s.logger.Printf("playback %s -> %s", c.Old, c.New)
	})
	return s, nil
}

// Location returns the file path or URL being played.
func (s *Session) Location() string {
	return s.src.Name()
}

// Run streams the log and ticks the engine until ctx is done, a fatal error
// occurs or, with ExitAtEnd, playback ends. Transport failures are returned
// as *transport.Error, parse failures as *gamelog.ParseError.
func (s *Session) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	defer s.dispose()

	chunks := make(chan transport.Chunk, 4)
	streamDone := make(chan error, 1)
	go func() {
		opts := transport.Options{
			ChunkSize:       s.cfg.Transport.ChunkSize,
			ChunksPerSecond: s.cfg.Transport.ChunksPerSecond,
		}
		streamDone <- transport.Stream(ctx, s.src, opts, func(c transport.Chunk) error {
			select {
			case chunks <- c:
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		})
	}()

	ticker := time.NewTicker(time.Duration(float64(time.Second) / s.cfg.Playback.TickRate))
	defer ticker.Stop()
	last := time.Now()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case c := <-chunks:
			if err := s.feed(c); err != nil {
				return err
			}

		case err := <-streamDone:
			streamDone = nil
			if err != nil && !errors.Is(err, context.Canceled) {
				s.metrics.TransportErrors.Inc()
				s.logger.Printf("transport failed: %v", err)
				return err
			}

		case now := <-ticker.C:
			dt := now.Sub(last).Seconds()
			last = now
			if err := s.tick(dt); err != nil {
				return err
			}
			if s.exitAtEnd && s.State() == playback.StateEnd {
				return nil
			}
		}
	}
}

// feed hands one chunk to the parser.
func (s *Session) feed(c transport.Chunk) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.metrics.Chunks.Inc()
	s.metrics.Bytes.Add(float64(len(c.Data)))

	extent := lines.Incremental
	if c.Last {
		extent = lines.Complete
	}
	res, err := s.parser.Parse(c.Data, extent)
	return s.handleResult(res, err)
}

// tick resumes a pending parse, advances the engine and publishes the tick.
func (s *Session) tick(dt float64) error {
	start := time.Now()
	defer func() {
		s.metrics.TickDuration.Observe(time.Since(start).Seconds())
	}()

	s.mu.Lock()
	if s.pending {
		res, err := s.parser.Resume()
		if err := s.handleResult(res, err); err != nil {
			s.mu.Unlock()
			return err
		}
	}
	frame := s.engine.Update(dt)
	t := Tick{
		State:         s.engine.State(),
		PlayTime:      s.engine.PlayTime(),
		Index:         s.engine.PlayIndex(),
		Frame:         frame,
		PassedGoals:   s.engine.PassedGoals(),
		UpcomingGoals: s.engine.UpcomingGoals(),
	}
	s.mu.Unlock()

	s.metrics.Ticks.Inc()
	s.publish(t)
	return nil
}

// handleResult applies a parser result. Callers hold mu.
func (s *Session) handleResult(res parser.Result, err error) error {
	s.pending = res.Pending

	if res.NewLog {
		l := s.parser.Log()
		l.SetOnChange(func(reason gamelog.ChangeReason) {
			if reason == gamelog.ChangeStates {
				s.metrics.Snapshots.Set(float64(len(l.States)))
				s.engine.HandleLogUpdate()
			}
		})
		s.engine.SetLog(l)
		s.metrics.Snapshots.Set(float64(len(l.States)))
		s.logger.Printf("loading %s log from %s", l.Format, s.src.Name())
	}

	if err != nil {
		s.parseErr = err
		s.metrics.ParseErrors.Inc()
		s.logger.Printf("parse failed: %v", err)
		return err
	}

	if l := s.parser.Log(); l != nil && l.FullyLoaded {
		s.metrics.Snapshots.Set(float64(len(l.States)))
		s.engine.HandleLogUpdate()
	}
	return nil
}

func (s *Session) dispose() {
	s.mu.Lock()
	s.parser.Dispose(false)
	s.pending = false
	s.mu.Unlock()

	s.subMu.Lock()
	for id, ch := range s.subs {
		close(ch)
		delete(s.subs, id)
	}
	s.subMu.Unlock()
}

// Subscribe registers a tick subscriber. Ticks are dropped for subscribers
// that fall behind. The returned function unsubscribes.
func (s *Session) Subscribe() (uuid.UUID, <-chan Tick, func()) {
	id := uuid.New()
	ch := make(chan Tick, 8)

	s.subMu.Lock()
	s.subs[id] = ch
	s.subMu.Unlock()

	return id, ch, func() {
		s.subMu.Lock()
		defer s.subMu.Unlock()
		if c, ok := s.subs[id]; ok {
			close(c)
			delete(s.subs, id)
		}
	}
}

func (s *Session) publish(t Tick) {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	for _, ch := range s.subs {
		select {
		case ch <- t:
		default:
			// Subscriber is behind, skip.
		}
	}
}

// State returns the playback state.
func (s *Session) State() playback.State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.engine.State()
}

// Err returns the fatal parse error, if any.
func (s *Session) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.parseErr
}

// Summary describes the current log. The second result is false before the
// log header was read.
func (s *Session) Summary() (Summary, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	l := s.parser.Log()
	if l == nil {
		return Summary{}, false
	}
	return Summarize(l), true
}
