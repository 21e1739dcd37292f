package server

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	"github.com/OpenTraceLab/OpenTraceSoccer/internal/session"
	"github.com/OpenTraceLab/OpenTraceSoccer/pkg/gamelog"
)

const writeTimeout = 5 * time.Second

// Message types sent to viewers.
const (
	MessageLog   = "log"
	MessageFrame = "frame"
)

// Message is one websocket message to a viewer.
type Message struct {
	Type   string           `json:"type"`
	Viewer string           `json:"viewer,omitempty"`
	Log    *session.Summary `json:"log,omitempty"`
	Frame  *FrameMessage    `json:"frame,omitempty"`
}

// FrameMessage is the engine state after one tick. Viewers interpolate
// between Current and Next with factor T.
type FrameMessage struct {
	State         string           `json:"state"`
	PlayTime      float64          `json:"playTime"`
	Index         int              `json:"index"`
	T             float64          `json:"t"`
	PassedGoals   int              `json:"passedGoals"`
	UpcomingGoals int              `json:"upcomingGoals"`
	Current       *SnapshotMessage `json:"current,omitempty"`
	Next          *SnapshotMessage `json:"next,omitempty"`
}

// SnapshotMessage carries a snapshot with ball and agents as packed buffers
// in the record buffer layout. Missing agents are null.
type SnapshotMessage struct {
	Time     float64        `json:"time"`
	GameTime float64        `json:"gameTime"`
	PlayMode string         `json:"playMode"`
	Score    [2]int         `json:"score"`
	Ball     []float64      `json:"ball"`
	Agents   [2][][]float64 `json:"agents"`
}

func newFrameMessage(t session.Tick) *FrameMessage {
	m := &FrameMessage{
		State:         t.State.String(),
		PlayTime:      t.PlayTime,
		Index:         t.Index,
		T:             t.Frame.T,
		PassedGoals:   t.PassedGoals,
		UpcomingGoals: t.UpcomingGoals,
		Current:       newSnapshotMessage(t.Frame.Current),
	}
	if t.Frame.Next != t.Frame.Current {
		m.Next = newSnapshotMessage(t.Frame.Next)
	}
	return m
}

func newSnapshotMessage(s *gamelog.Snapshot) *SnapshotMessage {
	if s == nil {
		return nil
	}
	m := &SnapshotMessage{
		Time:     s.Time,
		GameTime: s.GameTime,
		Ball:     s.Ball.AppendBuffer(make([]float64, 0, gamelog.ObjectBufferSize)),
	}
	if s.GameState != nil {
		m.PlayMode = s.GameState.PlayMode
	}
	if s.Score != nil {
		m.Score = [2]int{s.Score.Left, s.Score.Right}
	}
	for side, team := range s.Agents {
		buffers := make([][]float64, len(team))
		for i, a := range team {
			if a != nil {
				buffers[i] = a.AppendBuffer(make([]float64, 0, a.BufferSize()))
			}
		}
		m.Agents[side] = buffers
	}
	return m
}

// handleWebSocket streams frames to one viewer and applies the commands it
// sends back.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Printf("websocket upgrade error: %v", err)
		return
	}
	defer conn.Close()

	viewer := uuid.New()
	_, ticks, unsubscribe := s.session.Subscribe()
	defer unsubscribe()

	s.viewers.Inc()
	defer s.viewers.Dec()
	s.logger.Printf("viewer %s connected from %s", viewer, r.RemoteAddr)

	done := make(chan struct{})
	go s.readCommands(conn, viewer, done)

	hello := Message{Type: MessageLog, Viewer: viewer.String()}
	if sum, ok := s.session.Summary(); ok {
		hello.Log = &sum
	}
	if err := s.write(conn, hello); err != nil {
		return
	}

	limiter := rate.NewLimiter(rate.Limit(s.cfg.FrameRate), 1)
	lastState := ""
	loaded := hello.Log != nil
	for {
		select {
		case <-done:
			s.logger.Printf("viewer %s disconnected", viewer)
			return
		case tick, ok := <-ticks:
			if !ok {
				_ = conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, "session ended"),
					time.Now().Add(writeTimeout))
				return
			}

			if !loaded {
				if sum, ok := s.session.Summary(); ok {
					loaded = true
					if err := s.write(conn, Message{Type: MessageLog, Log: &sum}); err != nil {
						return
					}
				}
			}

			// State changes always go out, other frames at the frame rate.
			state := tick.State.String()
			if !limiter.Allow() && state == lastState {
				continue
			}
			lastState = state
			if err := s.write(conn, Message{Type: MessageFrame, Frame: newFrameMessage(tick)}); err != nil {
				return
			}
		}
	}
}

func (s *Server) readCommands(conn *websocket.Conn, viewer uuid.UUID, done chan<- struct{}) {
	defer close(done)
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		var cmd session.Command
		if err := json.Unmarshal(data, &cmd); err != nil {
			s.logger.Printf("viewer %s: invalid command: %v", viewer, err)
			continue
		}
		if err := s.session.Control(cmd); err != nil {
			s.logger.Printf("viewer %s: %s: %v", viewer, cmd.Action, err)
		}
	}
}

func (s *Server) write(conn *websocket.Conn, m Message) error {
	_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return conn.WriteJSON(m)
}
