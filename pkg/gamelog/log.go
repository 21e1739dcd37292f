package gamelog

import (
	"fmt"
	"math"
)

// indexTolerance is how close t*Frequency must be to a whole number to count
// as landing exactly on that snapshot.
const indexTolerance = 1e-9

// ChangeReason tells a change listener what part of the Log was mutated.
type ChangeReason uint8

const (
	ChangeTeams ChangeReason = iota
	ChangeStates
)

func (r ChangeReason) String() string {
	if r == ChangeTeams {
		return "Teams"
	}
	return "States"
}

// Log is one parsed match. It is mutated only by its owning parser while
// loading and is immutable once Finalize has been called.
type Log struct {
	Format  Format
	Type    Type
	Version int

	Step      float64 // Simulation step in seconds
	Frequency float64 // Snapshots per second, 1/Step

	Environment  *ParameterMap
	PlayerParams *ParameterMap
	PlayerTypes  map[int]*ParameterMap // Keyed by player type id

	Teams [2]*TeamDescription // Indexed by Side

	States     []*Snapshot
	GameStates []*GameState // Distinct play mode segments in order
	Scores     []*Score     // Distinct score segments in order

	FullyLoaded bool
	StartTime   float64
	EndTime     float64
	Duration    float64

	onChange func(ChangeReason)
}

// New creates an empty log with default team descriptions.
func New(format Format, typ Type, step float64) *Log {
	l := &Log{
		Format:       format,
		Type:         typ,
		Environment:  NewParameterMap(),
		PlayerParams: NewParameterMap(),
		PlayerTypes:  make(map[int]*ParameterMap),
		Teams: [2]*TeamDescription{
			NewTeamDescription("Left", "", Left),
			NewTeamDescription("Right", "", Right),
		},
	}
	l.SetStep(step)
	return l
}

// SetStep sets the simulation step and derives the update frequency.
// Non-positive steps are ignored.
func (l *Log) SetStep(step float64) {
	if l.FullyLoaded || step <= 0 {
		return
	}
	l.Step = step
	l.Frequency = 1 / step
}

// SetOnChange installs the change notification hook.
func (l *Log) SetOnChange(fn func(ChangeReason)) {
	if l.FullyLoaded {
		return
	}
	l.onChange = fn
}

// Append adds snapshots to the end of the sequence. Each snapshot must be
// strictly later than the previous one.
func (l *Log) Append(snaps ...*Snapshot) error {
	if l.FullyLoaded {
		return fmt.Errorf("log is finalized")
	}
	for _, s := range snaps {
		if n := len(l.States); n > 0 && s.Time <= l.States[n-1].Time {
			return fmt.Errorf("snapshot time %v not after %v", s.Time, l.States[n-1].Time)
		}
		l.States = append(l.States, s)
	}
	return nil
}

// StateAt returns the snapshot at index i, or nil when out of range.
func (l *Log) StateAt(i int) *Snapshot {
	if i < 0 || i >= len(l.States) {
		return nil
	}
	return l.States[i]
}

// IndexForTime maps a play time relative to StartTime to a snapshot index.
//
// The mapping assumes snapshots are spaced uniformly at Frequency. It is an
// approximation for logs whose snapshot rate drifts.
func (l *Log) IndexForTime(t float64) int {
	n := len(l.States)
	if n == 0 || l.Frequency <= 0 {
		return 0
	}
	if t >= l.Duration {
		return n - 1
	}
	x := t * l.Frequency
	if r := math.Round(x); math.Abs(x-r) < indexTolerance {
		x = r
	}
	idx := int(math.Floor(x))
	if idx < 0 {
		return 0
	}
	if idx > n-1 {
		return n - 1
	}
	return idx
}

// OnStatesUpdated recomputes the time range and the segment lists after
// snapshots were appended, then notifies the change hook.
func (l *Log) OnStatesUpdated() {
	l.rebuild()
	l.notify(ChangeStates)
}

// OnTeamsUpdated notifies the change hook about a team description change.
func (l *Log) OnTeamsUpdated() {
	l.notify(ChangeTeams)
}

func (l *Log) rebuild() {
	l.GameStates = l.GameStates[:0]
	l.Scores = l.Scores[:0]

	if len(l.States) == 0 {
		l.StartTime, l.EndTime, l.Duration = 0, 0, 0
		return
	}

	l.StartTime = l.States[0].Time
	l.EndTime = l.States[len(l.States)-1].Time
	l.Duration = l.EndTime - l.StartTime

	var prevState *GameState
	var prevScore *Score
	for i, s := range l.States {
		if i == 0 || s.GameState != prevState {
			l.GameStates = append(l.GameStates, s.GameState)
			prevState = s.GameState
		}
		if i == 0 || s.Score != prevScore {
			l.Scores = append(l.Scores, s.Score)
			prevScore = s.Score
		}
	}
}

func (l *Log) notify(reason ChangeReason) {
	if l.onChange != nil {
		l.onChange(reason)
	}
}

// Finalize marks the log as fully loaded, performs a last update and
// detaches the change hook.
func (l *Log) Finalize() {
	if l.FullyLoaded {
		return
	}
	l.FullyLoaded = true
	l.OnStatesUpdated()
	l.onChange = nil
}

// GoalCount returns the number of score changes after the initial score.
func (l *Log) GoalCount() int {
	if len(l.Scores) <= 1 {
		return 0
	}
	return len(l.Scores) - 1
}

// ScoreIndexAt returns the index of the score segment active at the given
// global time.
func (l *Log) ScoreIndexAt(globalTime float64) int {
	idx := 0
	for i, s := range l.Scores {
		if s != nil && s.Time <= globalTime {
			idx = i
		}
	}
	return idx
}
