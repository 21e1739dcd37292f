package session

import (
	"errors"
	"fmt"
	"strings"

	"github.com/OpenTraceLab/OpenTraceSoccer/pkg/playback"
)

// Command is a playback control request from a viewer or the CLI.
type Command struct {
	Action string  `json:"action"`
	Value  float64 `json:"value,omitempty"`
}

// Control actions.
const (
	ActionPlay     = "play"
	ActionPause    = "pause"
	ActionToggle   = "toggle"
	ActionStep     = "step"
	ActionBack     = "back"
	ActionSeek     = "seek"  // Value: play time in seconds
	ActionJump     = "jump"  // Value: snapshot index
	ActionSpeed    = "speed" // Value: speed factor
	ActionRestart  = "restart"
	ActionNextGoal = "next-goal"
	ActionPrevGoal = "prev-goal"
)

// ErrNoLog is returned for commands issued before a log is loaded.
var ErrNoLog = errors.New("no log loaded")

// Control applies cmd to the playback engine.
func (s *Session) Control(cmd Command) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e := s.engine
	if e.State() == playback.StateEmpty {
		return ErrNoLog
	}

	switch strings.ToLower(cmd.Action) {
	case ActionPlay:
		if e.State() == playback.StatePause || e.State() == playback.StateEnd {
			e.PlayPause()
		}
	case ActionPause:
		if e.State() == playback.StatePlay || e.State() == playback.StateWaiting {
			e.PlayPause()
		}
	case ActionToggle:
		e.PlayPause()
	case ActionStep:
		e.Step(false)
	case ActionBack:
		e.Step(true)
	case ActionSeek:
		e.SetPlayTime(cmd.Value)
	case ActionJump:
		e.Jump(int(cmd.Value))
	case ActionNextGoal:
		e.JumpGoal(false)
	case ActionPrevGoal:
		e.JumpGoal(true)
	case ActionSpeed:
		if cmd.Value <= 0 {
			return fmt.Errorf("invalid speed %v", cmd.Value)
		}
		e.SetPlaySpeed(cmd.Value)
	case ActionRestart:
		e.SetPlayTime(0)
	default:
		return fmt.Errorf("unknown action %q", cmd.Action)
	}
	return nil
}
