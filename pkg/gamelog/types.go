// Package gamelog holds the in-memory model of a parsed soccer match: the
// time-ordered snapshot sequence, its derived play mode and score segments,
// team descriptions, parameter tables and the partial state used while a log
// is being streamed in.
package gamelog

import "fmt"

// Side identifies a team.
type Side uint8

const (
	Left Side = iota
	Right
	Neutral
)

var sideNames = map[Side]string{
	Left:    "left",
	Right:   "right",
	Neutral: "neutral",
}

func (s Side) String() string {
	if name, ok := sideNames[s]; ok {
		return name
	}
	return fmt.Sprintf("Side(%d)", s)
}

// SideFromLetter maps the l/r team markers used on the wire.
func SideFromLetter(letter string) (Side, bool) {
	switch letter {
	case "l", "L":
		return Left, true
	case "r", "R":
		return Right, true
	}
	return Neutral, false
}

// Type distinguishes 2D and 3D simulation logs.
type Type uint8

const (
	Type2D Type = iota
	Type3D
)

func (t Type) String() string {
	if t == Type3D {
		return "3D"
	}
	return "2D"
}

// Format identifies the textual log format a Log was parsed from.
type Format uint8

const (
	FormatReplay Format = iota
	FormatULG
)

func (f Format) String() string {
	if f == FormatULG {
		return "ULG"
	}
	return "Replay"
}

// GameState is one play mode value. Snapshots share GameState pointers while
// the play mode is unchanged, so segments compare by identity.
type GameState struct {
	Time     float64 // Global time the play mode became active
	PlayMode string
}

// Score is one score value, shared by identity like GameState.
type Score struct {
	Time              float64 // Global time the score became active
	Left              int
	Right             int
	LeftPenaltyScore  int
	LeftPenaltyMiss   int
	RightPenaltyScore int
	RightPenaltyMiss  int
}

// sameValues reports whether two scores carry identical numbers.
func (s *Score) sameValues(o *Score) bool {
	if s == nil || o == nil {
		return s == o
	}
	return s.Left == o.Left && s.Right == o.Right &&
		s.LeftPenaltyScore == o.LeftPenaltyScore && s.LeftPenaltyMiss == o.LeftPenaltyMiss &&
		s.RightPenaltyScore == o.RightPenaltyScore && s.RightPenaltyMiss == o.RightPenaltyMiss
}

func (s *Score) String() string {
	if s == nil {
		return "-"
	}
	return fmt.Sprintf("%d:%d", s.Left, s.Right)
}

// Snapshot is one timestamped world state. Snapshots are never modified
// after they have been appended to a Log.
type Snapshot struct {
	Time      float64 // Global time, strictly increasing within a Log
	GameTime  float64 // Match clock as reported by the simulator
	GameState *GameState
	Score     *Score
	Ball      ObjectRecord
	// Agents is indexed by Side (Left, Right); each slice is indexed by
	// player number - 1 and may contain nil holes.
	Agents [2][]*AgentRecord
}

// Agent returns the record for the given player, or nil.
func (s *Snapshot) Agent(side Side, number int) *AgentRecord {
	if side > Right || number < 1 || number > len(s.Agents[side]) {
		return nil
	}
	return s.Agents[side][number-1]
}

// AgentCount returns the number of agent records present in the snapshot.
func (s *Snapshot) AgentCount() int {
	count := 0
	for _, team := range s.Agents {
		for _, a := range team {
			if a != nil {
				count++
			}
		}
	}
	return count
}
