package session

import "github.com/OpenTraceLab/OpenTraceSoccer/pkg/gamelog"

// Segment is one play mode segment.
type Segment struct {
	Time     float64 `json:"time"`
	PlayMode string  `json:"playMode"`
}

// Goal is one score change.
type Goal struct {
	Time  float64 `json:"time"`
	Left  int     `json:"left"`
	Right int     `json:"right"`
}

// Summary describes a log for the CLI and the /log endpoint.
type Summary struct {
	Format      string    `json:"format"`
	Type        string    `json:"type"`
	Version     int       `json:"version"`
	Teams       [2]string `json:"teams"`
	Frequency   float64   `json:"frequency"`
	Snapshots   int       `json:"snapshots"`
	StartTime   float64   `json:"startTime"`
	Duration    float64   `json:"duration"`
	FullyLoaded bool      `json:"fullyLoaded"`
	PlayerTypes int       `json:"playerTypes"`
	PlayModes   []Segment `json:"playModes"`
	Goals       []Goal    `json:"goals"`
}

// Summarize describes l. Times are global log times.
func Summarize(l *gamelog.Log) Summary {
	s := Summary{
		Format:      l.Format.String(),
		Type:        l.Type.String(),
		Version:     l.Version,
		Teams:       [2]string{l.Teams[gamelog.Left].Name, l.Teams[gamelog.Right].Name},
		Frequency:   l.Frequency,
		Snapshots:   len(l.States),
		StartTime:   l.StartTime,
		Duration:    l.Duration,
		FullyLoaded: l.FullyLoaded,
		PlayerTypes: len(l.PlayerTypes),
		PlayModes:   make([]Segment, 0, len(l.GameStates)),
		Goals:       make([]Goal, 0, l.GoalCount()),
	}
	for _, gs := range l.GameStates {
		s.PlayModes = append(s.PlayModes, Segment{Time: gs.Time, PlayMode: gs.PlayMode})
	}
	for i, sc := range l.Scores {
		if i == 0 {
			continue
		}
		s.Goals = append(s.Goals, Goal{Time: sc.Time, Left: sc.Left, Right: sc.Right})
	}
	return s
}
