package ulg

import (
	"bytes"
	"errors"
	"fmt"
	"log"
	"math"
	"strings"
	"testing"

	"github.com/OpenTraceLab/OpenTraceSoccer/pkg/gamelog"
	"github.com/OpenTraceLab/OpenTraceSoccer/pkg/lines"
	"github.com/OpenTraceLab/OpenTraceSoccer/pkg/parser"
)

func agent(side string, num, typ int, x, y float64) string {
	return fmt.Sprintf("((%s %d) %d 0x1 %g %g 0 0 90 10 (v h 180) (s 8000 1 1) (c 1 2 3 4 5 6 7 8 9 10 11))", side, num, typ, x, y)
}

func show(cycle int, extra string) string {
	return fmt.Sprintf("(show %d %s((b) 1 2 0 0) %s %s)", cycle, extra, agent("l", 1, 0, -10, 0), agent("r", 1, 1, 10, 0))
}

// sampleLog builds a small ULG log with n show lines, a goal at cycle 3 and
// a play mode change at cycle 2.
func sampleLog(n int) string {
	var b strings.Builder
	b.WriteString("ULG5\n")
	b.WriteString("(server_param (sim_step 100) (goal_width 14.02))\n")
	b.WriteString("(player_param (player_types 18))\n")
	b.WriteString("(player_type (id 0) (player_speed_max 1.05))\n")
	b.WriteString("(player_type (id 1) (player_speed_max 1.2))\n")
	b.WriteString("(playmode 0 before_kick_off)\n")
	b.WriteString("(team 0 HELIOS WrightEagle 0 0)\n")
	for i := 1; i <= n; i++ {
		switch i {
		case 2:
			b.WriteString(fmt.Sprintf("(playmode %d play_on)\n", i))
		case 3:
			b.WriteString(fmt.Sprintf("(team %d HELIOS WrightEagle 1 0)\n", i))
		}
		b.WriteString(show(i, ""))
		b.WriteString("\n")
		b.WriteString(fmt.Sprintf("(msg %d 1 \"(team_graphic_l (0 0) \"xpm\")\")\n", i))
	}
	return b.String()
}

func newQuiet(opts ...parser.Option) *Parser {
	return New(append([]parser.Option{parser.WithLogger(parser.DiscardLogger())}, opts...)...)
}

func TestParseMinimal(t *testing.T) {
	p := newQuiet()
	res, err := parser.Drain(p, "UV1\n(show 0 (b) 0 0 0 0)\n", lines.Complete)
	if !res.NewLog {
		t.Errorf("NewLog = false, want true")
	}
	if !errors.Is(err, gamelog.ErrEmptyLog) {
		t.Fatalf("error = %v, want ErrEmptyLog", err)
	}
	var pe *gamelog.ParseError
	if !errors.As(err, &pe) {
		t.Fatalf("error %T is not a *ParseError", err)
	}

	l := p.Log()
	if l == nil {
		t.Fatal("Log() = nil after header")
	}
	if len(l.States) != 0 {
		t.Errorf("len(States) = %d, want 0", len(l.States))
	}
	if l.Version != 1 {
		t.Errorf("Version = %d, want 1", l.Version)
	}
	if !l.FullyLoaded {
		t.Errorf("FullyLoaded = false after complete parse")
	}
}

func TestParseHeader(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr error
		version int
	}{
		{"ulg5", "ULG5\n", nil, 5},
		{"ulg4", "ULG4\r\n", nil, 4},
		{"leading blank lines", "\n\nULG3\n", nil, 3},
		{"not ulg", "RPL 2D 1\n", gamelog.ErrCorruptLog, 0},
		{"garbage", "(show 1)\n", gamelog.ErrCorruptLog, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := newQuiet()
			_, err := p.Parse(tt.input, lines.Partial)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("error = %v, want %v", err, tt.wantErr)
				}
				if p.Log() != nil {
					t.Errorf("Log() != nil after header error")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if p.Log().Version != tt.version {
				t.Errorf("Version = %d, want %d", p.Log().Version, tt.version)
			}
		})
	}
}

func TestParseMissingHeader(t *testing.T) {
	p := newQuiet()
	_, err := p.Parse("\n\n", lines.Complete)
	if !errors.Is(err, gamelog.ErrCorruptLog) {
		t.Fatalf("error = %v, want ErrCorruptLog", err)
	}
}

func TestParseSample(t *testing.T) {
	p := newQuiet()
	if _, err := parser.Drain(p, sampleLog(5), lines.Complete); err != nil {
		t.Fatalf("Drain failed: %v", err)
	}
	l := p.Log()

	if l.Format != gamelog.FormatULG || l.Type != gamelog.Type2D {
		t.Errorf("format/type = %v/%v, want ULG/2D", l.Format, l.Type)
	}
	if math.Abs(l.Step-0.1) > 1e-9 {
		t.Errorf("Step = %v, want 0.1", l.Step)
	}
	if len(l.States) != 5 {
		t.Fatalf("len(States) = %d, want 5", len(l.States))
	}
	if l.Teams[gamelog.Left].Name != "HELIOS" || l.Teams[gamelog.Right].Name != "WrightEagle" {
		t.Errorf("teams = %q/%q", l.Teams[gamelog.Left].Name, l.Teams[gamelog.Right].Name)
	}
	if got, _ := l.PlayerParams.GetInt("player_types"); got != 18 {
		t.Errorf("player_types = %d, want 18", got)
	}
	if len(l.PlayerTypes) != 2 {
		t.Errorf("len(PlayerTypes) = %d, want 2", len(l.PlayerTypes))
	}

	for i, s := range l.States {
		want := float64(i) * 0.1
		if math.Abs(s.Time-want) > 1e-9 {
			t.Errorf("States[%d].Time = %v, want %v", i, s.Time, want)
		}
		if math.Abs(s.GameTime-float64(i+1)*0.1) > 1e-9 {
			t.Errorf("States[%d].GameTime = %v, want %v", i, s.GameTime, float64(i+1)*0.1)
		}
		if i > 0 && s.Time <= l.States[i-1].Time {
			t.Errorf("States[%d].Time not increasing", i)
		}
	}

	first := l.States[0]
	if first.Ball.Position != [3]float64{1, 2, BallHeight} {
		t.Errorf("ball = %v", first.Ball.Position)
	}
	a := first.Agent(gamelog.Left, 1)
	if a == nil {
		t.Fatal("left 1 missing")
	}
	if a.Position[0] != -10 || a.Flags != 1 {
		t.Errorf("left 1 = %+v", a)
	}
	if len(a.Joints) != 1 || math.Abs(a.Joints[0]-10*math.Pi/180) > 1e-9 {
		t.Errorf("neck joint = %v", a.Joints)
	}
	if len(a.Data) != 14 {
		t.Errorf("len(Data) = %d, want 14 (3 stamina + 11 counters)", len(a.Data))
	}

	// Play mode changes between show 1 and show 2.
	if first.GameState.PlayMode != "before_kick_off" {
		t.Errorf("States[0] mode = %q", first.GameState.PlayMode)
	}
	if l.States[1].GameState.PlayMode != "play_on" {
		t.Errorf("States[1] mode = %q", l.States[1].GameState.PlayMode)
	}
	if len(l.GameStates) != 2 {
		t.Errorf("len(GameStates) = %d, want 2", len(l.GameStates))
	}

	// The goal is announced before show 3.
	if l.States[1].Score.Left != 0 || l.States[2].Score.Left != 1 {
		t.Errorf("scores = %v, %v", l.States[1].Score, l.States[2].Score)
	}
	if l.GoalCount() != 1 {
		t.Errorf("GoalCount() = %d, want 1", l.GoalCount())
	}
	if math.Abs(l.Scores[1].Time-l.States[2].Time) > 1e-9 {
		t.Errorf("goal time = %v, want %v", l.Scores[1].Time, l.States[2].Time)
	}
}

func TestParseSharesSegments(t *testing.T) {
	p := newQuiet()
	if _, err := parser.Drain(p, sampleLog(6), lines.Complete); err != nil {
		t.Fatalf("Drain failed: %v", err)
	}
	s := p.Log().States
	if s[3].GameState != s[4].GameState || s[3].Score != s[4].Score {
		t.Errorf("unchanged segments are not shared")
	}
}

// snapshotKey renders the parts of a log compared by the determinism tests.
func snapshotKey(l *gamelog.Log) string {
	var b strings.Builder
	for _, s := range l.States {
		fmt.Fprintf(&b, "%.3f %.3f %s %s %v", s.Time, s.GameTime, s.GameState.PlayMode, s.Score, s.Ball.Position)
		for side := range s.Agents {
			for _, a := range s.Agents[side] {
				if a != nil {
					fmt.Fprintf(&b, " %v %d", a.Position, a.ModelIndex)
				}
			}
		}
		b.WriteByte('\n')
	}
	return b.String()
}

func TestParseChunkedDeterminism(t *testing.T) {
	data := sampleLog(40)

	ref := newQuiet()
	if _, err := parser.Drain(ref, data, lines.Complete); err != nil {
		t.Fatalf("reference parse failed: %v", err)
	}
	want := snapshotKey(ref.Log())

	for _, chunk := range []int{1, 7, 64, 333} {
		t.Run(fmt.Sprintf("partial/%d", chunk), func(t *testing.T) {
			p := newQuiet()
			for end := chunk; end < len(data); end += chunk {
				if _, err := parser.Drain(p, data[:end], lines.Partial); err != nil {
					t.Fatalf("Drain(%d) failed: %v", end, err)
				}
			}
			if _, err := parser.Drain(p, data, lines.Complete); err != nil {
				t.Fatalf("final Drain failed: %v", err)
			}
			if got := snapshotKey(p.Log()); got != want {
				t.Errorf("chunked result differs from single pass")
			}
		})

		t.Run(fmt.Sprintf("incremental/%d", chunk), func(t *testing.T) {
			p := newQuiet()
			start := 0
			for ; start+chunk < len(data); start += chunk {
				if _, err := parser.Drain(p, data[start:start+chunk], lines.Incremental); err != nil {
					t.Fatalf("Drain(%d) failed: %v", start, err)
				}
			}
			if _, err := parser.Drain(p, data[start:], lines.Complete); err != nil {
				t.Fatalf("final Drain failed: %v", err)
			}
			if got := snapshotKey(p.Log()); got != want {
				t.Errorf("incremental result differs from single pass")
			}
		})
	}

	for _, batch := range []int{1, 3, 1000} {
		t.Run(fmt.Sprintf("batch/%d", batch), func(t *testing.T) {
			p := newQuiet(parser.WithBatchSize(batch))
			if _, err := parser.Drain(p, data, lines.Complete); err != nil {
				t.Fatalf("Drain failed: %v", err)
			}
			if got := snapshotKey(p.Log()); got != want {
				t.Errorf("batch size %d changes the result", batch)
			}
		})
	}
}

func TestParseBatchCap(t *testing.T) {
	p := newQuiet(parser.WithBatchSize(10))
	res, err := p.Parse(sampleLog(25), lines.Complete)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if !res.Pending || !res.NewLog {
		t.Fatalf("first result = %+v, want pending new log", res)
	}
	// Ten shows were read; the tenth is still held by the accumulator.
	if got := len(p.Log().States); got != 9 {
		t.Errorf("after first batch len(States) = %d, want 9", got)
	}
	if p.State() != parser.StateBodyStreaming {
		t.Errorf("State() = %v, want BodyStreaming", p.State())
	}

	// New data while pending is deferred to Resume.
	res, err = p.Parse(sampleLog(25), lines.Complete)
	if err != nil || !res.Pending {
		t.Fatalf("Parse while pending = %+v, %v", res, err)
	}

	calls := 0
	for res.Pending {
		calls++
		if res, err = p.Resume(); err != nil {
			t.Fatalf("Resume failed: %v", err)
		}
	}
	if calls != 2 {
		t.Errorf("Resume calls = %d, want 2", calls)
	}
	if got := len(p.Log().States); got != 25 {
		t.Errorf("len(States) = %d, want 25", got)
	}
	if p.State() != parser.StateExhausted || !p.Log().FullyLoaded {
		t.Errorf("parser not finished: %v", p.State())
	}
}

func TestParseDisposeWhilePending(t *testing.T) {
	p := newQuiet(parser.WithBatchSize(2))
	res, err := p.Parse(sampleLog(10), lines.Complete)
	if err != nil || !res.Pending {
		t.Fatalf("Parse = %+v, %v", res, err)
	}
	n := len(p.Log().States)

	p.Dispose(false)
	p.Dispose(false)

	if res, err := p.Resume(); err != nil || res.Pending {
		t.Errorf("Resume after Dispose = %+v, %v", res, err)
	}
	if res, err := p.Parse(sampleLog(10), lines.Complete); err != nil || res.Pending {
		t.Errorf("Parse after Dispose = %+v, %v", res, err)
	}
	if got := len(p.Log().States); got != n {
		t.Errorf("states changed after Dispose: %d -> %d", n, got)
	}
}

func TestParseSkipsBadLines(t *testing.T) {
	var buf bytes.Buffer
	logger := log.New(&buf, "", 0)

	data := "ULG5\n" +
		"(frobnicate 1 2)\n" +
		show(1, "") + "\n" +
		"(show 2 ((b) oops))\n" +
		"garbage line\n" +
		"(draw 2 (circle 0 0 1))\n" +
		"(show 2 " + strings.Repeat("(", 100000) + "\n" +
		show(3, "") + "\n"

	p := New(parser.WithLogger(logger))
	if _, err := parser.Drain(p, data, lines.Complete); err != nil {
		t.Fatalf("Drain failed: %v", err)
	}
	if got := len(p.Log().States); got != 2 {
		t.Errorf("len(States) = %d, want 2", got)
	}
	out := buf.String()
	for _, want := range []string{`unknown command "frobnicate"`, `unknown command "garbage"`, "ball", "nesting deeper than"} {
		if !strings.Contains(out, want) {
			t.Errorf("log output missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "draw") {
		t.Errorf("draw lines should be skipped silently:\n%s", out)
	}
}

func TestShowVariants(t *testing.T) {
	data := "ULG5\n" +
		"(player_type (id 3) (player_speed_max 1.1))\n" +
		// Type present, then omitted: the stored type is reused.
		"(show 1 ((b) 0 0 0 0) ((l 1) 3 0x1 0 0 0 0 0 0 (v h 90) (s 8000 1 1)))\n" +
		"(show 2 ((b) 0 0 0 0) ((l 1) 0x1 1 0 0 0 0 0 (v h 90) (s 8000 1 1)))\n" +
		// Pointing arm, no type: nine values.
		"(show 3 ((b) 0 0 0 0) ((l 1) 0x1 2 0 0 0 0 0 5 5 (v h 90)))\n" +
		// Disabled player next to an active one.
		"(show 4 ((b) 0 0 0 0) ((l 1) 3 0 9 9 0 0 0 0) ((r 2) 4 0x1 1 1 0 0 0 0))\n" +
		// pm and tm elements.
		"(show 5 (pm 3) (tm A B 2 1) ((b) 0 0 0 0) ((r 2) 4 0x1 1 1 0 0 0 0))\n"

	p := newQuiet()
	if _, err := parser.Drain(p, data, lines.Complete); err != nil {
		t.Fatalf("Drain failed: %v", err)
	}
	l := p.Log()
	if len(l.States) != 5 {
		t.Fatalf("len(States) = %d, want 5", len(l.States))
	}

	desc := l.Teams[gamelog.Left].FindAgent(1)
	if desc == nil || len(desc.PlayerTypes) != 1 {
		t.Fatalf("left 1 description = %+v", desc)
	}
	if desc.PlayerTypes[0] != l.PlayerTypes[3] {
		t.Errorf("left 1 does not reference player type 3")
	}
	if x := l.States[1].Agent(gamelog.Left, 1).Position[0]; x != 1 {
		t.Errorf("show 2 x = %v, want 1", x)
	}
	if x := l.States[2].Agent(gamelog.Left, 1).Position[0]; x != 2 {
		t.Errorf("show 3 x = %v, want 2", x)
	}

	if l.States[3].Agent(gamelog.Left, 1) != nil {
		t.Errorf("disabled player present in show 4")
	}
	if l.States[3].Agent(gamelog.Right, 2) == nil {
		t.Errorf("right 2 missing in show 4")
	}
	// Type 4 was never declared and gets a placeholder.
	if _, ok := l.PlayerTypes[4]; !ok {
		t.Errorf("placeholder for player type 4 missing")
	}

	last := l.States[4]
	if last.GameState.PlayMode != "play_on" {
		t.Errorf("pm mode = %q, want play_on", last.GameState.PlayMode)
	}
	if last.Score.Left != 2 || last.Score.Right != 1 {
		t.Errorf("tm score = %v, want 2:1", last.Score)
	}
	if l.Teams[gamelog.Left].Name != "A" || l.Teams[gamelog.Right].Name != "B" {
		t.Errorf("tm teams = %q/%q", l.Teams[gamelog.Left].Name, l.Teams[gamelog.Right].Name)
	}
}

func TestSimStepAfterFirstShow(t *testing.T) {
	data := "ULG5\n" +
		show(1, "") + "\n" +
		show(2, "") + "\n" +
		"(server_param (sim_step 50))\n" +
		show(3, "") + "\n"

	p := newQuiet()
	if _, err := parser.Drain(p, data, lines.Complete); err != nil {
		t.Fatalf("Drain failed: %v", err)
	}
	l := p.Log()
	if math.Abs(l.Step-DefaultStep) > 1e-9 {
		t.Errorf("Step = %v, want %v", l.Step, DefaultStep)
	}
	if got, _ := l.Environment.GetNumber("sim_step"); got != 50 {
		t.Errorf("sim_step = %v, want 50", got)
	}
}

func TestChangeNotifications(t *testing.T) {
	p := newQuiet(parser.WithBatchSize(5))
	res, err := p.Parse("ULG5\n", lines.Partial)
	if err != nil || !res.NewLog {
		t.Fatalf("Parse header = %+v, %v", res, err)
	}

	var reasons []gamelog.ChangeReason
	p.Log().SetOnChange(func(r gamelog.ChangeReason) {
		reasons = append(reasons, r)
	})

	if _, err := parser.Drain(p, sampleLog(12), lines.Complete); err != nil {
		t.Fatalf("Drain failed: %v", err)
	}

	var teams, states int
	for _, r := range reasons {
		if r == gamelog.ChangeTeams {
			teams++
		} else {
			states++
		}
	}
	if teams != 1 {
		t.Errorf("team notifications = %d, want 1", teams)
	}
	if states < 3 {
		t.Errorf("state notifications = %d, want at least 3", states)
	}

	// The hook is detached after finalization.
	n := len(reasons)
	p.Log().OnTeamsUpdated()
	if len(reasons) != n {
		t.Errorf("hook still attached after finalize")
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		line   string
		cmd    Command
		prefix string
	}{
		{"(show 1 ((b) 0 0 0 0))", CmdShow, "show"},
		{"(server_param (sim_step 100))", CmdServerParam, "server_param"},
		{"(playmode 1 play_on)", CmdPlayMode, "playmode"},
		{"(msg 1 1 \"x\")", CmdMsg, "msg"},
		{"(showx 1)", CmdUnknown, "showx"},
		{"(team(", CmdTeam, "team"},
		{"foo bar", CmdUnknown, "foo"},
	}
	for _, tt := range tests {
		cmd, prefix := Classify(tt.line)
		if cmd != tt.cmd || prefix != tt.prefix {
			t.Errorf("Classify(%q) = %v, %q; want %v, %q", tt.line, cmd, prefix, tt.cmd, tt.prefix)
		}
	}

	if CmdShow.String() != "show" || CmdUnknown.String() != "unknown" {
		t.Errorf("String() = %q, %q", CmdShow, CmdUnknown)
	}
}

func TestPlayModeName(t *testing.T) {
	tests := []struct {
		idx  int
		want string
		ok   bool
	}{
		{0, "", false},
		{1, "before_kick_off", true},
		{3, "play_on", true},
		{14, "goal_l", true},
		{len(playModes), "", false},
	}
	for _, tt := range tests {
		got, ok := PlayModeName(tt.idx)
		if got != tt.want || ok != tt.ok {
			t.Errorf("PlayModeName(%d) = %q, %v; want %q, %v", tt.idx, got, ok, tt.want, tt.ok)
		}
	}
}
