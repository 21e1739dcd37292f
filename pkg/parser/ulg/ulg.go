// Package ulg parses 2D soccer server logs in the ULG text format (.rcg).
//
// The first line is the ULG<version> header. Every following line is one
// parenthesized command:
//
//	(server_param (sim_step 100) ...)
//	(player_type (id 0) (player_speed_max 1.05) ...)
//	(team 0 HELIOS WrightEagle 0 0)
//	(playmode 0 before_kick_off)
//	(show 1 ((b) 0 0 0 0) ((l 1) 0 0x1 -49 0 0 0 0 0 (v h 180) (s 8000 1 1) (c 0 0 0 0 0 0 0 0 0 0 0)) ...)
//
// show lines are folded into a PartialState and flushed into the log at the
// next record boundary.
package ulg

import (
	"fmt"
	"log"
	"math"
	"strconv"
	"strings"

	"github.com/OpenTraceLab/OpenTraceSoccer/pkg/gamelog"
	"github.com/OpenTraceLab/OpenTraceSoccer/pkg/parser"
	"github.com/OpenTraceLab/OpenTraceSoccer/pkg/sexp"
)

const (
	// DefaultStep is the simulation step used until server_param says otherwise.
	DefaultStep = 0.1
	// BallHeight is the height assigned to the ball; 2D logs carry none.
	BallHeight = 0.2
)

// Parser parses ULG logs.
type Parser struct {
	*parser.Driver
}

// New creates a ULG parser.
func New(opts ...parser.Option) *Parser {
	o := parser.NewOptions(opts...)
	h := &handler{logger: o.Logger}
	return &Parser{Driver: parser.NewDriver(h, o)}
}

// handler owns the log, the accumulator and the per-team type storage while
// a ULG log is parsed.
type handler struct {
	logger *log.Logger
	log    *gamelog.Log
	state  *gamelog.PartialState

	// lastType holds the most recently assigned player type id per team,
	// indexed by player number - 1. It serves show records that omit the type.
	lastType [2][]int
}

func (h *handler) Header(line string, lineNo int) (*gamelog.Log, bool, error) {
	if line[0] != 'U' {
		return nil, false, gamelog.NewParseError(lineNo, gamelog.ErrCorruptLog, "missing ULG header, got %q", truncate(line))
	}

	version := 0
	digits := strings.TrimLeft(line, "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz")
	if digits != "" {
		v, err := strconv.Atoi(strings.TrimSpace(digits))
		if err != nil {
			h.logger.Printf("line %d: ignoring invalid ULG version %q", lineNo, digits)
		}
		version = v
	}

	h.log = gamelog.New(gamelog.FormatULG, gamelog.Type2D, DefaultStep)
	h.log.Version = version
	h.state = gamelog.NewPartialState(DefaultStep)
	return h.log, false, nil
}

func (h *handler) Line(line string, lineNo int) (record bool) {
	cmd, prefix := Classify(line)

	defer func() {
		if r := recover(); r != nil {
			h.logger.Printf("line %d: %s: recovered: %v", lineNo, cmd, r)
		}
	}()

	switch cmd {
	case CmdMsg, CmdDraw:
		// Not part of the world state.
		return false
	case CmdUnknown:
		h.logger.Printf("line %d: skipping unknown command %q", lineNo, prefix)
		return false
	case CmdShow:
		record = true
	}

	node, err := sexp.Parse(line)
	if err != nil {
		h.logger.Printf("line %d: %s: %v", lineNo, cmd, err)
		return record
	}

	switch cmd {
	case CmdServerParam:
		err = h.serverParam(node)
	case CmdPlayerParam:
		h.log.PlayerParams = gamelog.ParameterMapFromNode(node)
	case CmdPlayerType:
		err = h.playerType(node)
	case CmdTeam:
		err = h.team(node)
	case CmdPlayMode:
		err = h.playMode(node)
	case CmdShow:
		err = h.show(node)
	}

	if err != nil {
		h.logger.Printf("line %d: %s: %v", lineNo, cmd, err)
	}
	return record
}

func (h *handler) Finish() {
	h.flush()
}

// flush appends the accumulated show record to the log if it holds agents.
func (h *handler) flush() {
	h.log.States, _ = h.state.AppendTo(h.log.States)
}

func (h *handler) serverParam(n *sexp.Node) error {
	h.log.Environment = gamelog.ParameterMapFromNode(n)

	ms, ok := h.log.Environment.GetNumber(gamelog.ParamSimStep)
	if !ok || ms <= 0 {
		return nil
	}
	if len(h.log.States) > 0 {
		return fmt.Errorf("%s change after first show ignored", gamelog.ParamSimStep)
	}
	step := ms / 1000
	h.log.SetStep(step)
	h.state.Step = step
	return nil
}

func (h *handler) playerType(n *sexp.Node) error {
	pm := gamelog.ParameterMapFromNode(n)
	id, ok := pm.GetInt(gamelog.ParamID)
	if !ok {
		return fmt.Errorf("player type without id")
	}

	// Keep the identity of a placeholder created by an earlier show record.
	if existing, ok := h.log.PlayerTypes[id]; ok {
		for _, k := range pm.Keys() {
			v, _ := pm.Get(k)
			existing.Set(k, v)
		}
		return nil
	}
	h.log.PlayerTypes[id] = pm
	return nil
}

func (h *handler) lookupPlayerType(id int) *gamelog.ParameterMap {
	pt, ok := h.log.PlayerTypes[id]
	if !ok {
		pt = gamelog.NewParameterMap()
		pt.Set(gamelog.ParamID, id)
		h.log.PlayerTypes[id] = pt
	}
	return pt
}

// team handles (team <time> <left> <right> <lscore> <rscore> [<lpen> <lmiss> <rpen> <rmiss>]).
func (h *handler) team(n *sexp.Node) error {
	if len(n.Values) < 6 {
		return fmt.Errorf("expected at least 5 arguments, got %d", len(n.Values)-1)
	}
	h.flush()

	h.setTeamNames(sexp.Unquote(n.Values[2]), sexp.Unquote(n.Values[3]))

	var nums [6]int
	count := 2
	if len(n.Values) >= 10 {
		count = 6
	}
	for i := 0; i < count; i++ {
		v, err := n.Int(4 + i)
		if err != nil {
			return err
		}
		nums[i] = v
	}

	h.state.SetScore(gamelog.Score{
		Left:              nums[0],
		Right:             nums[1],
		LeftPenaltyScore:  nums[2],
		LeftPenaltyMiss:   nums[3],
		RightPenaltyScore: nums[4],
		RightPenaltyMiss:  nums[5],
	})
	return nil
}

func (h *handler) setTeamNames(left, right string) {
	l, r := h.log.Teams[gamelog.Left], h.log.Teams[gamelog.Right]
	changed := false
	if left != "" && left != "null" && l.Name != left {
		l.Name = left
		changed = true
	}
	if right != "" && right != "null" && r.Name != right {
		r.Name = right
		changed = true
	}
	if changed {
		h.log.OnTeamsUpdated()
	}
}

// playMode handles (playmode <time> <mode>).
func (h *handler) playMode(n *sexp.Node) error {
	mode, err := n.Value(2)
	if err != nil {
		return err
	}
	h.flush()
	h.state.SetPlayMode(mode)
	return nil
}

// show handles (show <cycle> [(pm n)] [(tm ...)] ((b) ...) ((l 1) ...) ...).
func (h *handler) show(n *sexp.Node) error {
	cycle, err := n.Float(1)
	if err != nil {
		return err
	}

	h.flush()
	h.state.SetGameTime(cycle * h.state.Step)

	for _, c := range n.Children {
		switch c.Name() {
		case "pm":
			idx, err := c.Int(1)
			if err != nil {
				return fmt.Errorf("pm: %w", err)
			}
			if mode, ok := PlayModeName(idx); ok {
				h.state.SetPlayMode(mode)
			}
			continue
		case "tm":
			if err := h.showTeams(c); err != nil {
				return fmt.Errorf("tm: %w", err)
			}
			continue
		}

		if len(c.Children) == 0 {
			continue
		}
		id := c.Children[0]
		if id.Name() == "b" {
			if err := h.showBall(c); err != nil {
				return fmt.Errorf("ball: %w", err)
			}
			continue
		}
		if side, ok := gamelog.SideFromLetter(id.Name()); ok {
			if err := h.showAgent(side, c); err != nil {
				return fmt.Errorf("agent %s: %w", id, err)
			}
		}
	}
	return nil
}

// showTeams handles (tm <left> <right> <lscore> <rscore> [...]) inside show.
func (h *handler) showTeams(c *sexp.Node) error {
	if len(c.Values) < 5 {
		return fmt.Errorf("expected at least 4 arguments")
	}
	h.setTeamNames(sexp.Unquote(c.Values[1]), sexp.Unquote(c.Values[2]))
	left, err := c.Int(3)
	if err != nil {
		return err
	}
	right, err := c.Int(4)
	if err != nil {
		return err
	}
	s := *h.state.Score
	s.Left, s.Right = left, right
	h.state.SetScore(s)
	return nil
}

// showBall handles ((b) x y vx vy).
func (h *handler) showBall(c *sexp.Node) error {
	x, err := c.Float(0)
	if err != nil {
		return err
	}
	y, err := c.Float(1)
	if err != nil {
		return err
	}
	h.state.SetBall(gamelog.ObjectRecord{
		Position:    [3]float64{x, y, BallHeight},
		Orientation: gamelog.IdentityOrientation,
	})
	return nil
}

// showAgent handles ((l 1) [type] state x y vx vy body neck [px py] (v ..) (s ..) [(f ..)] (c ..)).
// The type is present when the number of bare values is even.
func (h *handler) showAgent(side gamelog.Side, c *sexp.Node) error {
	number, err := c.Children[0].Int(1)
	if err != nil {
		return err
	}
	if number < 1 || number > 64 {
		return fmt.Errorf("invalid player number %d", number)
	}

	v := c.Values
	if len(v) < 7 {
		return fmt.Errorf("expected at least 7 values, got %d", len(v))
	}

	typeID := -1
	if len(v)%2 == 0 {
		t, err := c.Int(0)
		if err != nil {
			return err
		}
		typeID = t
		v = v[1:]
	} else {
		typeID = h.storedType(side, number)
	}

	flags, err := strconv.ParseUint(v[0], 0, 32)
	if err != nil {
		return fmt.Errorf("state: %w", err)
	}
	if flags == 0 {
		// Disabled players are not on the field.
		return nil
	}

	var nums [6]float64
	for i := range nums {
		f, err := strconv.ParseFloat(v[1+i], 64)
		if err != nil {
			return err
		}
		nums[i] = f
	}
	x, y, body, neck := nums[0], nums[1], nums[4], nums[5]

	rec := &gamelog.AgentRecord{
		ObjectRecord: gamelog.ObjectRecord{
			Position:    [3]float64{x, y, 0},
			Orientation: gamelog.YawOrientation(body),
		},
		Flags:  uint32(flags),
		Joints: []float64{neck * math.Pi / 180},
	}

	// Stamina values followed by the command counters.
	for _, key := range []string{"s", "c"} {
		if d, ok := c.Child(key); ok {
			for i := 1; i < len(d.Values); i++ {
				if f, err := d.Float(i); err == nil {
					rec.Data = append(rec.Data, f)
				}
			}
		}
	}

	if typeID >= 0 {
		h.storeType(side, number, typeID)
		desc := h.log.Teams[side].Agent(number)
		rec.ModelIndex = desc.UsePlayerType(h.lookupPlayerType(typeID))
	}

	h.state.SetAgent(side, number, rec)
	return nil
}

func (h *handler) storedType(side gamelog.Side, number int) int {
	types := h.lastType[side]
	if number > len(types) {
		return -1
	}
	return types[number-1]
}

func (h *handler) storeType(side gamelog.Side, number, typeID int) {
	types := h.lastType[side]
	for len(types) < number {
		types = append(types, -1)
	}
	types[number-1] = typeID
	h.lastType[side] = types
}

func truncate(s string) string {
	if len(s) > 40 {
		return s[:40] + "..."
	}
	return s
}
