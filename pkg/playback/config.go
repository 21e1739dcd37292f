package playback

import "fmt"

// Config controls the playback engine.
type Config struct {
	// Ticks with a larger delta (seconds) do not advance play time, so a
	// stalled host does not fast forward on resume (default: 0.5).
	StalenessThreshold float64
	// Start playing as soon as a log is attached (default: false).
	AutoPlay bool
	// Play speed factor (default: 1).
	Speed float64
}

// Speed limits accepted by SetPlaySpeed.
const (
	MinSpeed = 0.05
	MaxSpeed = 16
)

// DefaultConfig returns the engine defaults.
func DefaultConfig() *Config {
	return &Config{
		StalenessThreshold: 0.5,
		AutoPlay:           false,
		Speed:              1,
	}
}

// Validate fills in zero values and rejects out of range settings.
func (c *Config) Validate() error {
	if c.StalenessThreshold == 0 {
		c.StalenessThreshold = 0.5
	}
	if c.StalenessThreshold < 0 {
		return fmt.Errorf("staleness threshold must be positive, got %v", c.StalenessThreshold)
	}

	if c.Speed == 0 {
		c.Speed = 1
	}
	if c.Speed < MinSpeed || c.Speed > MaxSpeed {
		return fmt.Errorf("speed %v outside [%v, %v]", c.Speed, MinSpeed, MaxSpeed)
	}
	return nil
}
