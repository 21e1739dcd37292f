// Package replay parses the Replay log format.
//
// A replay file starts with a header line
//
//	RPL <2D|3D> <version>
//
// followed by one line per record. Parameter and team lines may appear
// anywhere in the body:
//
//	E (sim_step 0.04) (field_length 30)    environment parameters
//	P (key value) ...                      player parameters
//	Y <id> (key value) ...                 player type
//	T <left> <right> [<lcolor> <rcolor>]   team names
//
// Every other line is a state record:
//
//	<gameTime> [m <playMode>] [s <left> <right>] b <ball> {<l|r><number> <agent>}
//
// where <ball> is a flat object buffer and <agent> a flat agent buffer as
// defined by gamelog. Omitted play mode or score fields keep the previous
// values.
//
// Two legacy layouts without the RPL header are accepted: a file whose first
// line is already a state record (3D, default team names) and a file whose
// first line is a team line (2D).
package replay

import (
	"fmt"
	"log"
	"strconv"
	"strings"

	"github.com/OpenTraceLab/OpenTraceSoccer/pkg/gamelog"
	"github.com/OpenTraceLab/OpenTraceSoccer/pkg/parser"
	"github.com/OpenTraceLab/OpenTraceSoccer/pkg/sexp"
)

// Header marker and default simulation steps.
const (
	Marker = "RPL"

	DefaultStep2D = 0.1
	DefaultStep3D = 0.04
)

// Parser parses replay logs.
type Parser struct {
	*parser.Driver
}

// New creates a replay parser.
func New(opts ...parser.Option) *Parser {
	o := parser.NewOptions(opts...)
	h := &handler{logger: o.Logger}
	return &Parser{Driver: parser.NewDriver(h, o)}
}

// handler holds the replay specific parse state.
type handler struct {
	logger *log.Logger
	log    *gamelog.Log

	gameState *gamelog.GameState
	score     *gamelog.Score
	buf       []float64 // Reused agent buffer
}

func (h *handler) Header(line string, lineNo int) (*gamelog.Log, bool, error) {
	switch {
	case strings.HasPrefix(line, Marker):
		hdr, err := parseHeaderLine(line)
		if err != nil {
			return nil, false, gamelog.NewParseError(lineNo, gamelog.ErrMalformedHeader, "%v", err)
		}
		typ, step := gamelog.Type2D, DefaultStep2D
		if strings.EqualFold(hdr.Dim, "3D") {
			typ, step = gamelog.Type3D, DefaultStep3D
		}
		h.start(typ, step, hdr.Version)
		return h.log, false, nil

	case line[0] >= '0' && line[0] <= '9':
		h.start(gamelog.Type3D, DefaultStep3D, 0)
		return h.log, true, nil

	case line[0] == 'T':
		h.start(gamelog.Type2D, DefaultStep2D, 0)
		if err := h.applyTeams(line); err != nil {
			return nil, false, gamelog.NewParseError(lineNo, gamelog.ErrMalformedHeader, "%v", err)
		}
		return h.log, false, nil
	}

	return nil, false, gamelog.NewParseError(lineNo, gamelog.ErrCorruptLog, "unrecognized replay header %q", truncate(line))
}

func (h *handler) start(typ gamelog.Type, step float64, version int) {
	h.log = gamelog.New(gamelog.FormatReplay, typ, step)
	h.log.Version = version
	h.gameState = &gamelog.GameState{PlayMode: "unknown"}
	h.score = &gamelog.Score{}
}

func (h *handler) Line(line string, lineNo int) bool {
	var err error
	record := false

	switch line[0] {
	case 'E':
		err = h.applyEnvironment(line[1:])
	case 'P':
		err = h.applyParams(h.log.PlayerParams, line[1:])
	case 'Y':
		err = h.applyPlayerType(line[1:])
	case 'T':
		err = h.applyTeams(line)
	default:
		if isNumberStart(line[0]) {
			record = true
			err = h.applyState(line)
		} else {
			err = fmt.Errorf("unknown record %q", truncate(line))
		}
	}

	if err != nil {
		h.logger.Printf("line %d: skipping: %v", lineNo, err)
	}
	return record
}

func (h *handler) Finish() {}

func (h *handler) applyEnvironment(rest string) error {
	if err := h.applyParams(h.log.Environment, rest); err != nil {
		return err
	}
	step, ok := h.log.Environment.GetNumber(gamelog.ParamSimStep)
	if !ok {
		return nil
	}
	if len(h.log.States) > 0 {
		return fmt.Errorf("%s change after first record ignored", gamelog.ParamSimStep)
	}
	h.log.SetStep(step)
	return nil
}

func (h *handler) applyParams(dst *gamelog.ParameterMap, rest string) error {
	n, err := sexp.Parse("(" + rest + ")")
	if err != nil {
		return err
	}
	src := gamelog.ParameterMapFromNode(n)
	for _, k := range src.Keys() {
		v, _ := src.Get(k)
		dst.Set(k, v)
	}
	return nil
}

func (h *handler) applyPlayerType(rest string) error {
	n, err := sexp.Parse("(" + rest + ")")
	if err != nil {
		return err
	}
	id, err := n.Int(0)
	if err != nil {
		return fmt.Errorf("player type id: %w", err)
	}
	pt := h.playerType(id)
	src := gamelog.ParameterMapFromNode(n)
	for _, k := range src.Keys() {
		v, _ := src.Get(k)
		pt.Set(k, v)
	}
	return nil
}

// playerType returns the table for id, creating an empty one on first use.
func (h *handler) playerType(id int) *gamelog.ParameterMap {
	pt, ok := h.log.PlayerTypes[id]
	if !ok {
		pt = gamelog.NewParameterMap()
		pt.Set(gamelog.ParamID, id)
		h.log.PlayerTypes[id] = pt
	}
	return pt
}

func (h *handler) applyTeams(line string) error {
	tl, err := parseTeamLine(line)
	if err != nil {
		return err
	}
	left, right := h.log.Teams[gamelog.Left], h.log.Teams[gamelog.Right]
	left.Name, right.Name = tl.Left, tl.Right
	if tl.LeftColor != "" {
		left.Color, right.Color = tl.LeftColor, tl.RightColor
	}
	h.log.OnTeamsUpdated()
	return nil
}

// applyState parses one state record and appends it as a snapshot.
func (h *handler) applyState(line string) error {
	tokens := strings.Fields(line)
	r := tokenReader{tokens: tokens}

	gameTime, err := r.float()
	if err != nil {
		return fmt.Errorf("game time: %w", err)
	}

	snapTime := float64(len(h.log.States)) * h.log.Step
	gameState, score := h.gameState, h.score

	if r.peek() == "m" {
		r.next()
		mode, ok := r.next()
		if !ok {
			return fmt.Errorf("missing play mode")
		}
		if mode != gameState.PlayMode {
			gameState = &gamelog.GameState{Time: snapTime, PlayMode: mode}
		}
	}

	if r.peek() == "s" {
		r.next()
		left, err1 := r.int()
		right, err2 := r.int()
		if err1 != nil || err2 != nil {
			return fmt.Errorf("invalid score")
		}
		if left != score.Left || right != score.Right {
			score = &gamelog.Score{Time: snapTime, Left: left, Right: right}
		}
	}

	if tok, _ := r.next(); tok != "b" {
		return fmt.Errorf("expected ball record, got %q", tok)
	}
	h.buf, err = r.floats(h.buf[:0], gamelog.ObjectBufferSize)
	if err != nil {
		return fmt.Errorf("ball: %w", err)
	}
	ball, err := gamelog.UnmarshalObjectRecord(h.buf)
	if err != nil {
		return err
	}

	snap := &gamelog.Snapshot{
		Time:      snapTime,
		GameTime:  gameTime,
		GameState: gameState,
		Score:     score,
		Ball:      ball,
	}

	type placed struct {
		side   gamelog.Side
		number int
		rec    *gamelog.AgentRecord
	}
	var agents []placed
	for !r.done() {
		id, _ := r.next()
		side, number, err := parseAgentID(id)
		if err != nil {
			return err
		}
		rec, err := h.readAgent(&r)
		if err != nil {
			return fmt.Errorf("agent %s: %w", id, err)
		}

		team := snap.Agents[side]
		for len(team) < number {
			team = append(team, nil)
		}
		team[number-1] = rec
		snap.Agents[side] = team
		agents = append(agents, placed{side, number, rec})
	}

	if err := h.log.Append(snap); err != nil {
		return err
	}
	// Team descriptions only learn about agents of accepted snapshots.
	for _, a := range agents {
		desc := h.log.Teams[a.side].Agent(a.number)
		a.rec.ModelIndex = desc.UsePlayerType(h.playerType(a.rec.ModelIndex))
	}
	h.gameState, h.score = gameState, score
	return nil
}

func (h *handler) readAgent(r *tokenReader) (*gamelog.AgentRecord, error) {
	var err error
	h.buf, err = r.floats(h.buf[:0], gamelog.AgentHeaderSize)
	if err != nil {
		return nil, err
	}
	end := int(h.buf[gamelog.AgentHeaderSize-1])
	if extra := end - gamelog.AgentHeaderSize; extra > 0 {
		h.buf, err = r.floats(h.buf, extra)
		if err != nil {
			return nil, err
		}
	}
	rec, _, err := gamelog.UnmarshalAgentRecord(h.buf)
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

func parseAgentID(id string) (gamelog.Side, int, error) {
	if len(id) < 2 {
		return 0, 0, fmt.Errorf("invalid agent id %q", id)
	}
	side, ok := gamelog.SideFromLetter(id[:1])
	if !ok {
		return 0, 0, fmt.Errorf("invalid agent side in %q", id)
	}
	number, err := strconv.Atoi(id[1:])
	if err != nil || number < 1 || number > 64 {
		return 0, 0, fmt.Errorf("invalid agent number in %q", id)
	}
	return side, number, nil
}

func isNumberStart(c byte) bool {
	return (c >= '0' && c <= '9') || c == '-' || c == '+' || c == '.'
}

func truncate(s string) string {
	if len(s) > 40 {
		return s[:40] + "..."
	}
	return s
}

// tokenReader walks the whitespace separated tokens of a state record.
type tokenReader struct {
	tokens []string
	pos    int
}

func (r *tokenReader) done() bool {
	return r.pos >= len(r.tokens)
}

func (r *tokenReader) peek() string {
	if r.done() {
		return ""
	}
	return r.tokens[r.pos]
}

func (r *tokenReader) next() (string, bool) {
	if r.done() {
		return "", false
	}
	tok := r.tokens[r.pos]
	r.pos++
	return tok, true
}

func (r *tokenReader) float() (float64, error) {
	tok, ok := r.next()
	if !ok {
		return 0, fmt.Errorf("unexpected end of record")
	}
	return strconv.ParseFloat(tok, 64)
}

func (r *tokenReader) int() (int, error) {
	tok, ok := r.next()
	if !ok {
		return 0, fmt.Errorf("unexpected end of record")
	}
	return strconv.Atoi(tok)
}

// floats appends n parsed values to dst.
func (r *tokenReader) floats(dst []float64, n int) ([]float64, error) {
	for i := 0; i < n; i++ {
		v, err := r.float()
		if err != nil {
			return dst, err
		}
		dst = append(dst, v)
	}
	return dst, nil
}
