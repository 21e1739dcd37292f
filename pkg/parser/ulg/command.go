package ulg

import (
	"fmt"
	"strings"
)

// Command is the kind of a ULG body line.
type Command uint8

const (
	CmdUnknown Command = iota
	CmdServerParam
	CmdPlayerParam
	CmdPlayerType
	CmdTeam
	CmdPlayMode
	CmdMsg
	CmdDraw
	CmdShow
)

var commandNames = map[Command]string{
	CmdServerParam: "server_param",
	CmdPlayerParam: "player_param",
	CmdPlayerType:  "player_type",
	CmdTeam:        "team",
	CmdPlayMode:    "playmode",
	CmdMsg:         "msg",
	CmdDraw:        "draw",
	CmdShow:        "show",
}

var commandsByName = func() map[string]Command {
	m := make(map[string]Command, len(commandNames))
	for cmd, name := range commandNames {
		m[name] = cmd
	}
	return m
}()

func (c Command) String() string {
	if name, ok := commandNames[c]; ok {
		return name
	}
	if c == CmdUnknown {
		return "unknown"
	}
	return fmt.Sprintf("Command(%d)", c)
}

// Classify returns the command of a body line together with its raw prefix.
// Lines that do not start with a known "(name" prefix are CmdUnknown; the
// prefix is still returned for diagnostics.
func Classify(line string) (Command, string) {
	if !strings.HasPrefix(line, "(") {
		return CmdUnknown, firstField(line)
	}
	name := line[1:]
	if end := strings.IndexAny(name, " \t()"); end >= 0 {
		name = name[:end]
	}
	if cmd, ok := commandsByName[name]; ok {
		return cmd, name
	}
	return CmdUnknown, name
}

func firstField(s string) string {
	if f := strings.Fields(s); len(f) > 0 {
		return f[0]
	}
	return ""
}

// playModes lists the rcssserver play modes in wire index order, used by the
// (pm n) element of show lines.
var playModes = []string{
	"",
	"before_kick_off",
	"time_over",
	"play_on",
	"kick_off_l",
	"kick_off_r",
	"kick_in_l",
	"kick_in_r",
	"free_kick_l",
	"free_kick_r",
	"corner_kick_l",
	"corner_kick_r",
	"goal_kick_l",
	"goal_kick_r",
	"goal_l",
	"goal_r",
	"drop_ball",
	"offside_l",
	"offside_r",
	"penalty_kick_l",
	"penalty_kick_r",
	"first_half_over",
	"pause",
	"human_judge",
	"foul_charge_l",
	"foul_charge_r",
	"foul_push_l",
	"foul_push_r",
	"foul_multiple_attack_l",
	"foul_multiple_attack_r",
	"foul_ballout_l",
	"foul_ballout_r",
	"back_pass_l",
	"back_pass_r",
	"free_kick_fault_l",
	"free_kick_fault_r",
	"catch_fault_l",
	"catch_fault_r",
	"indirect_free_kick_l",
	"indirect_free_kick_r",
	"penalty_setup_l",
	"penalty_setup_r",
	"penalty_ready_l",
	"penalty_ready_r",
	"penalty_taken_l",
	"penalty_taken_r",
	"penalty_miss_l",
	"penalty_miss_r",
	"penalty_score_l",
	"penalty_score_r",
	"illegal_defense_l",
	"illegal_defense_r",
}

// PlayModeName maps a wire play mode index to its name.
func PlayModeName(idx int) (string, bool) {
	if idx <= 0 || idx >= len(playModes) {
		return "", false
	}
	return playModes[idx], true
}
