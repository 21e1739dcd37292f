package gamelog

// PartialState accumulates the pieces of the next snapshot while a log is
// streamed in. Parsers set fields as commands arrive and call AppendTo at
// record boundaries.
type PartialState struct {
	Time      float64 // Global time of the snapshot being assembled
	Step      float64 // Time advance per appended snapshot
	GameTime  float64
	GameState *GameState
	Score     *Score
	Ball      ObjectRecord
	Agents    [2][]*AgentRecord
}

// NewPartialState creates an accumulator starting at time zero with an
// initial score of 0:0 and an unknown play mode.
func NewPartialState(step float64) *PartialState {
	return &PartialState{
		Step:      step,
		GameState: &GameState{PlayMode: "unknown"},
		Score:     &Score{},
	}
}

// SetGameTime sets the match clock of the snapshot being assembled.
func (p *PartialState) SetGameTime(t float64) {
	p.GameTime = t
}

// SetPlayMode switches the play mode. A new GameState is only created when
// the mode actually changes.
func (p *PartialState) SetPlayMode(mode string) {
	if p.GameState != nil && p.GameState.PlayMode == mode {
		return
	}
	p.GameState = &GameState{Time: p.Time, PlayMode: mode}
}

// SetScore switches the score. A new Score is only created when any value
// actually changes.
func (p *PartialState) SetScore(s Score) {
	if p.Score.sameValues(&s) {
		return
	}
	s.Time = p.Time
	p.Score = &s
}

// SetBall sets the ball record.
func (p *PartialState) SetBall(ball ObjectRecord) {
	p.Ball = ball
}

// SetAgent stores the record for a player. Numbers outside 1..64 are ignored.
func (p *PartialState) SetAgent(side Side, number int, rec *AgentRecord) {
	if side > Right || number < 1 || number > 64 {
		return
	}
	team := p.Agents[side]
	for len(team) < number {
		team = append(team, nil)
	}
	team[number-1] = rec
	p.Agents[side] = team
}

// HasAgents reports whether at least one agent record is present.
func (p *PartialState) HasAgents() bool {
	for _, team := range p.Agents {
		for _, a := range team {
			if a != nil {
				return true
			}
		}
	}
	return false
}

// AppendTo flushes the accumulated state into states. Without any agent
// record nothing is appended and time does not advance. Otherwise exactly one
// snapshot is appended, time advances by one step and both team arrays are
// cleared.
func (p *PartialState) AppendTo(states []*Snapshot) ([]*Snapshot, bool) {
	if !p.HasAgents() {
		return states, false
	}

	snap := &Snapshot{
		Time:      p.Time,
		GameTime:  p.GameTime,
		GameState: p.GameState,
		Score:     p.Score,
		Ball:      p.Ball,
		Agents:    p.Agents,
	}
	states = append(states, snap)

	p.Time += p.Step
	p.Agents = [2][]*AgentRecord{}

	return states, true
}
