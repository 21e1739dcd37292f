package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/OpenTraceLab/OpenTraceSoccer/internal/config"
	"github.com/OpenTraceLab/OpenTraceSoccer/pkg/formats"
	"github.com/OpenTraceLab/OpenTraceSoccer/pkg/gamelog"
	"github.com/OpenTraceLab/OpenTraceSoccer/pkg/playback"
	"github.com/OpenTraceLab/OpenTraceSoccer/pkg/transport"
)

// replayLog renders a 3D replay log with n snapshots and a goal at snapshot
// goalAt.
func replayLog(n, goalAt int) string {
	var b strings.Builder
	b.WriteString("RPL 3D 1\nT Alpha Beta\n")
	for i := 0; i < n; i++ {
		score := ""
		if i == goalAt {
			score = "s 1 0 "
		}
		fmt.Fprintf(&b, "%g m PlayOn %sb 0 0 0 0 0 0 1 l1 %d 0 0 0 0 0 1 0 1 11 11\n", float64(i)*0.04, score, i)
	}
	return b.String()
}

func writeLog(t *testing.T, name, data string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(p, []byte(data), 0o644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}
	return p
}

func testConfig() *config.Config {
	cfg := config.Default()
	cfg.Playback.AutoPlay = true
	cfg.Playback.Speed = 16
	cfg.Playback.TickRate = 1000
	cfg.Transport.ChunkSize = 97
	cfg.Parser.BatchSize = 3
	return cfg
}

func newTestSession(t *testing.T, location string, exitAtEnd bool) (*Session, *prometheus.Registry) {
	t.Helper()
	reg := prometheus.NewRegistry()
	s, err := New(location, Options{
		Config:     testConfig(),
		Logger:     log.New(io.Discard, "", 0),
		Registerer: reg,
		ExitAtEnd:  exitAtEnd,
	})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	return s, reg
}

func TestRunToEnd(t *testing.T) {
	path := writeLog(t, "match.replay", replayLog(25, 10))
	s, _ := newTestSession(t, path, true)
	_, ticks, unsubscribe := s.Subscribe()
	defer unsubscribe()

	// Run closes subscriber channels on exit.
	received := make(chan []Tick, 1)
	go func() {
		var all []Tick
		for tick := range ticks {
			all = append(all, tick)
		}
		received <- all
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := s.Run(ctx); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if s.State() != playback.StateEnd {
		t.Errorf("State() = %v, want End", s.State())
	}
	sum, ok := s.Summary()
	if !ok {
		t.Fatal("Summary() not available")
	}
	if sum.Snapshots != 25 || !sum.FullyLoaded || sum.Teams != [2]string{"Alpha", "Beta"} {
		t.Errorf("summary = %+v", sum)
	}
	if len(sum.Goals) != 1 || sum.Goals[0].Left != 1 {
		t.Errorf("goals = %+v", sum.Goals)
	}

	all := <-received
	if len(all) == 0 {
		t.Fatal("no ticks received")
	}
	framed := false
	for _, tick := range all {
		if tick.Frame.Current != nil {
			framed = true
			break
		}
	}
	if !framed {
		t.Errorf("no tick carried a frame")
	}

	if got := testutil.ToFloat64(s.metrics.Snapshots); got != 25 {
		t.Errorf("snapshots gauge = %v, want 25", got)
	}
	if got := testutil.ToFloat64(s.metrics.Chunks); got < 2 {
		t.Errorf("chunks = %v, want several", got)
	}
	if got := testutil.ToFloat64(s.metrics.PlaybackState); got != float64(playback.StateEnd) {
		t.Errorf("playback state gauge = %v", got)
	}
}

func TestRunEmptyLog(t *testing.T) {
	path := writeLog(t, "empty.rcg", "ULG5\n(show 0 (b) 0 0 0 0)\n")
	s, _ := newTestSession(t, path, true)

	err := s.Run(context.Background())
	if !errors.Is(err, gamelog.ErrEmptyLog) {
		t.Fatalf("Run error = %v, want ErrEmptyLog", err)
	}
	if transport.IsTransportError(err) {
		t.Errorf("parse error reported as transport error")
	}
	if !errors.Is(s.Err(), gamelog.ErrEmptyLog) {
		t.Errorf("Err() = %v", s.Err())
	}
	if got := testutil.ToFloat64(s.metrics.ParseErrors); got != 1 {
		t.Errorf("parse errors = %v, want 1", got)
	}
}

func TestRunMissingFile(t *testing.T) {
	s, _ := newTestSession(t, filepath.Join(t.TempDir(), "gone.rcg"), true)
	err := s.Run(context.Background())
	if !transport.IsTransportError(err) {
		t.Fatalf("Run error = %v, want transport error", err)
	}
	if got := testutil.ToFloat64(s.metrics.TransportErrors); got != 1 {
		t.Errorf("transport errors = %v, want 1", got)
	}
	if s.Err() != nil {
		t.Errorf("transport failure recorded as parse error: %v", s.Err())
	}
}

func TestRunCancel(t *testing.T) {
	path := writeLog(t, "match.replay", replayLog(5, -1))
	s, _ := newTestSession(t, path, false)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if err := s.Run(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Run error = %v, want deadline exceeded", err)
	}
}

func TestUnknownFormat(t *testing.T) {
	_, err := New("match.txt", Options{Registerer: prometheus.NewRegistry()})
	if !errors.Is(err, formats.ErrUnknownFormat) {
		t.Errorf("New error = %v, want ErrUnknownFormat", err)
	}
}

func TestControl(t *testing.T) {
	s, _ := newTestSession(t, "match.replay", false)

	if err := s.Control(Command{Action: ActionPlay}); !errors.Is(err, ErrNoLog) {
		t.Fatalf("Control before load = %v, want ErrNoLog", err)
	}

	if err := s.feed(transport.Chunk{Data: replayLog(500, 300), Last: true}); err != nil {
		t.Fatalf("feed failed: %v", err)
	}
	for s.pending {
		if err := s.tick(0); err != nil {
			t.Fatalf("tick failed: %v", err)
		}
	}
	if !s.parser.Log().FullyLoaded {
		t.Fatal("log not fully loaded")
	}

	steps := []struct {
		cmd   Command
		state playback.State
		time  float64
	}{
		{Command{Action: ActionPause}, playback.StatePause, 0},
		{Command{Action: ActionSeek, Value: 4}, playback.StatePause, 4},
		{Command{Action: ActionStep}, playback.StatePause, 4.04},
		{Command{Action: ActionBack}, playback.StatePause, 4},
		{Command{Action: ActionNextGoal}, playback.StatePause, 12 - playback.GoalWindow},
		{Command{Action: ActionJump, Value: 10}, playback.StatePause, 0.4},
		{Command{Action: ActionSeek, Value: 100}, playback.StateEnd, 19.96},
		{Command{Action: ActionPlay}, playback.StatePlay, 0},
		{Command{Action: ActionToggle}, playback.StatePause, 0},
		{Command{Action: "PLAY"}, playback.StatePlay, 0},
		{Command{Action: ActionRestart}, playback.StatePlay, 0},
	}
	for i, st := range steps {
		if err := s.Control(st.cmd); err != nil {
			t.Fatalf("step %d %+v: %v", i, st.cmd, err)
		}
		e := s.engine
		if e.State() != st.state || e.PlayTime()-st.time > 1e-3 || st.time-e.PlayTime() > 1e-3 {
			t.Errorf("step %d %+v: state %v time %v; want %v %v", i, st.cmd, e.State(), e.PlayTime(), st.state, st.time)
		}
	}

	if err := s.Control(Command{Action: ActionSpeed, Value: 2}); err != nil || s.engine.PlaySpeed() != 2 {
		t.Errorf("speed: %v, %v", err, s.engine.PlaySpeed())
	}
	if err := s.Control(Command{Action: ActionSpeed, Value: -1}); err == nil {
		t.Errorf("negative speed accepted")
	}
	if err := s.Control(Command{Action: "rewind"}); err == nil {
		t.Errorf("unknown action accepted")
	}
}

func TestSummarize(t *testing.T) {
	s, _ := newTestSession(t, "match.replay", false)
	if _, ok := s.Summary(); ok {
		t.Errorf("Summary() available before header")
	}
	if err := s.feed(transport.Chunk{Data: replayLog(5, 2), Last: true}); err != nil {
		t.Fatalf("feed failed: %v", err)
	}
	sum, ok := s.Summary()
	if !ok {
		t.Fatal("Summary() not available")
	}
	if sum.Format != "Replay" || sum.Type != "3D" || sum.Version != 1 {
		t.Errorf("summary = %+v", sum)
	}
	if len(sum.PlayModes) != 1 || sum.PlayModes[0].PlayMode != "PlayOn" {
		t.Errorf("play modes = %+v", sum.PlayModes)
	}
	if len(sum.Goals) != 1 || sum.Goals[0].Time-0.08 > 1e-9 {
		t.Errorf("goals = %+v", sum.Goals)
	}
}
