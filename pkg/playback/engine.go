// Package playback implements the playback state machine that scrubs, steps
// and interpolates through a gamelog.Log while it may still be loading.
//
// The engine performs no I/O and never blocks. A host calls Update once per
// render tick and HandleLogUpdate whenever the parser appended snapshots.
package playback

import (
	"fmt"
	"math"

	"github.com/OpenTraceLab/OpenTraceSoccer/pkg/gamelog"
)

// State is the playback state.
type State uint8

const (
	StateEmpty State = iota
	StatePause
	StatePlay
	StateWaiting
	StateEnd
)

var stateNames = map[State]string{
	StateEmpty:   "Empty",
	StatePause:   "Pause",
	StatePlay:    "Play",
	StateWaiting: "Waiting",
	StateEnd:     "End",
}

func (s State) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return fmt.Sprintf("State(%d)", s)
}

// ParseState maps a state name back to its State.
func ParseState(name string) (State, bool) {
	for s, n := range stateNames {
		if n == name {
			return s, true
		}
	}
	return StateEmpty, false
}

// Navigation constants in log time units (seconds).
const (
	StepDistance = 2
	GoalWindow   = 6
	// JumpEpsilon places a jump just after the target snapshot's timestamp.
	JumpEpsilon = 1e-6
	// EndEpsilon places play time just past the end of the log.
	EndEpsilon = 1e-6
)

// StateChange is passed to state listeners.
type StateChange struct {
	Old State
	New State
}

// Frame is the snapshot pair to render and the interpolation factor
// between them, in [0, 1].
type Frame struct {
	Current *gamelog.Snapshot
	Next    *gamelog.Snapshot
	T       float64
}

// Engine is the playback state machine. It is not safe for concurrent use;
// the host serializes all calls.
type Engine struct {
	cfg Config

	log       *gamelog.Log
	state     State
	playTime  float64 // Relative to log.StartTime
	playIndex int

	passedGoals   int
	upcomingGoals int

	stateListeners []func(StateChange)
	timeListeners  []func(float64)
}

// New creates an engine in StateEmpty. A nil cfg selects DefaultConfig.
func New(cfg *Config) (*Engine, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	c := *cfg
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &Engine{cfg: c}, nil
}

// OnStateChange registers a listener for state transitions.
func (e *Engine) OnStateChange(fn func(StateChange)) {
	e.stateListeners = append(e.stateListeners, fn)
}

// OnTimeChange registers a listener for accepted play time changes.
func (e *Engine) OnTimeChange(fn func(float64)) {
	e.timeListeners = append(e.timeListeners, fn)
}

// SetLog attaches l and rewinds to its start. The engine pauses, or plays
// when AutoPlay is set.
func (e *Engine) SetLog(l *gamelog.Log) {
	if l == nil {
		e.ClearLog()
		return
	}
	e.log = l
	e.playTime = 0
	e.playIndex = 0
	e.updateGoalCounts()

	if e.cfg.AutoPlay {
		e.setState(StatePlay)
	} else {
		e.setState(StatePause)
	}
	e.notifyTime()
}

// ClearLog detaches the log and returns to StateEmpty.
func (e *Engine) ClearLog() {
	e.log = nil
	e.playTime = 0
	e.playIndex = 0
	e.passedGoals, e.upcomingGoals = 0, 0
	e.setState(StateEmpty)
}

// Log returns the attached log, or nil.
func (e *Engine) Log() *gamelog.Log {
	return e.log
}

// State reports the current state.
func (e *Engine) State() State {
	return e.state
}

// PlayTime returns the play time relative to the log start.
func (e *Engine) PlayTime() float64 {
	return e.playTime
}

// PlayIndex returns the index of the current snapshot.
func (e *Engine) PlayIndex() int {
	return e.playIndex
}

// PlaySpeed returns the play speed factor.
func (e *Engine) PlaySpeed() float64 {
	return e.cfg.Speed
}

// SetPlaySpeed changes the play speed factor, clamped to [MinSpeed, MaxSpeed].
func (e *Engine) SetPlaySpeed(speed float64) {
	e.cfg.Speed = math.Max(MinSpeed, math.Min(MaxSpeed, speed))
}

// PassedGoals returns the number of goals before the current play time.
func (e *Engine) PassedGoals() int {
	return e.passedGoals
}

// UpcomingGoals returns the number of goals after the current play time.
func (e *Engine) UpcomingGoals() int {
	return e.upcomingGoals
}

// CurrentSnapshot returns the snapshot at the play index, or nil.
func (e *Engine) CurrentSnapshot() *gamelog.Snapshot {
	if e.log == nil {
		return nil
	}
	return e.log.StateAt(e.playIndex)
}

// SetPlayTime moves play time to t, relative to the log start.
//
// Negative times clamp to 0 and pause. Times past the end clamp just past
// the duration and end playback, or wait for data while the log is still
// loading. An interior time leaves End for Pause and Waiting for Play.
func (e *Engine) SetPlayTime(t float64) {
	if e.state == StateEmpty {
		return
	}

	switch {
	case t < 0:
		t = 0
		e.setState(StatePause)
	case t > e.log.Duration:
		t = e.log.Duration + EndEpsilon
		if e.log.FullyLoaded {
			e.setState(StateEnd)
		} else {
			e.setState(StateWaiting)
		}
	case e.state == StateEnd:
		e.setState(StatePause)
	case e.state == StateWaiting:
		e.setState(StatePlay)
	}

	if t == e.playTime {
		return
	}
	e.playTime = t
	e.playIndex = e.log.IndexForTime(t)
	e.updateGoalCounts()
	e.notifyTime()
}

// PlayPause toggles between playing and pausing. From End it restarts at
// the beginning.
func (e *Engine) PlayPause() {
	switch e.state {
	case StatePlay, StateWaiting:
		e.setState(StatePause)
	case StatePause:
		e.setState(StatePlay)
	case StateEnd:
		if e.playTime != 0 {
			e.playTime = 0
			e.playIndex = 0
			e.updateGoalCounts()
			e.notifyTime()
		}
		e.setState(StatePlay)
	}
}

// Step moves one snapshot while paused or ended, and StepDistance seconds
// otherwise.
func (e *Engine) Step(backwards bool) {
	switch e.state {
	case StateEmpty:
		return
	case StatePause, StateEnd:
		if backwards {
			e.Jump(e.playIndex - 1)
		} else {
			e.Jump(e.playIndex + 1)
		}
	default:
		if backwards {
			e.SetPlayTime(e.playTime - StepDistance)
		} else {
			e.SetPlayTime(e.playTime + StepDistance)
		}
	}
}

// Jump moves to the snapshot at idx. Negative indices rewind to the start;
// indices past the end move beyond the duration.
func (e *Engine) Jump(idx int) {
	if e.state == StateEmpty {
		return
	}
	switch {
	case idx < 0:
		e.SetPlayTime(0)
	case idx >= len(e.log.States):
		e.SetPlayTime(e.log.Duration + 1)
	default:
		e.SetPlayTime(e.log.States[idx].Time - e.log.StartTime + JumpEpsilon)
	}
}

// JumpGoal moves GoalWindow seconds ahead of the previous or next goal. The
// search starts GoalWindow seconds after the current time, so a goal that
// has just been replayed counts as previous. It reports whether a goal was
// found.
func (e *Engine) JumpGoal(previous bool) bool {
	if e.state == StateEmpty {
		return false
	}
	ref := e.log.StartTime + e.playTime + GoalWindow
	scores := e.log.Scores

	if previous {
		for i := len(scores) - 1; i >= 1; i-- {
			if scores[i].Time < ref {
				e.SetPlayTime(scores[i].Time - GoalWindow - e.log.StartTime)
				return true
			}
		}
		return false
	}

	for i := 1; i < len(scores); i++ {
		if scores[i].Time > ref {
			e.SetPlayTime(scores[i].Time - GoalWindow - e.log.StartTime)
			return true
		}
	}
	return false
}

// HandleLogUpdate is called after snapshots were appended to the log.
func (e *Engine) HandleLogUpdate() {
	if e.state == StateEmpty {
		return
	}
	e.playIndex = e.log.IndexForTime(e.playTime)
	e.updateGoalCounts()
	if e.state == StateWaiting {
		e.setState(StatePlay)
	}
}

// Update advances play time by deltaT seconds of wall time while playing
// and returns the frame to render.
func (e *Engine) Update(deltaT float64) Frame {
	if e.state == StateEmpty {
		return Frame{}
	}
	if e.state == StatePlay && deltaT > 0 && deltaT < e.cfg.StalenessThreshold {
		e.SetPlayTime(e.playTime + deltaT*e.cfg.Speed)
	}
	return e.Frame()
}

// Frame returns the snapshot pair at the current play time.
func (e *Engine) Frame() Frame {
	if e.log == nil || len(e.log.States) == 0 {
		return Frame{}
	}
	states := e.log.States
	idx := e.playIndex
	if idx >= len(states) {
		idx = len(states) - 1
	}

	cur := states[idx]
	if idx+1 >= len(states) {
		return Frame{Current: cur, Next: cur, T: 0}
	}

	t := (e.log.StartTime + e.playTime - cur.Time) * e.log.Frequency
	return Frame{
		Current: cur,
		Next:    states[idx+1],
		T:       math.Max(0, math.Min(1, t)),
	}
}

func (e *Engine) updateGoalCounts() {
	if e.log == nil || len(e.log.Scores) == 0 {
		e.passedGoals, e.upcomingGoals = 0, 0
		return
	}
	idx := e.log.ScoreIndexAt(e.log.StartTime + e.playTime)
	e.passedGoals = idx
	e.upcomingGoals = len(e.log.Scores) - 1 - idx
}

func (e *Engine) setState(s State) {
	if s == e.state {
		return
	}
	change := StateChange{Old: e.state, New: s}
	e.state = s
	for _, fn := range e.stateListeners {
		fn(change)
	}
}

func (e *Engine) notifyTime() {
	for _, fn := range e.timeListeners {
		fn(e.playTime)
	}
}
