// Package dedup decides whether a recognized song is a new detection and
// how long the monitor waits before sampling again.
package dedup

import (
	"time"
)

// Outcome of a Match.
type Outcome int

const (
	Accepted Outcome = iota
	Suppressed
)

func (o Outcome) String() string {
	if o == Accepted {
		return "accepted"
	}
	return "suppressed"
}

// Settings are the tunables of the controller.
type Settings struct {
	Base         time.Duration
	Increment    time.Duration
	SameSongMax  time.Duration
	Max          time.Duration
	Window       time.Duration
	EmptyCeiling int
	Key          KeyOptions
}

// State is the controller's memory between iterations.
type State struct {
	LastKey      string
	LastAccepted time.Time
	Interval     time.Duration
	Empties      int
}

// Decision is the result of Match.
type Decision struct {
	Outcome  Outcome
	Key      string
	Interval time.Duration
}

// EmptyOutcome is the result of Empty.
type EmptyOutcome struct {
	Interval time.Duration
	Empties  int
	// Notice is set once each time the empty counter reaches the ceiling.
	Notice bool
}

// Controller is the dedup and interval state machine. It is owned by a
// single goroutine.
type Controller struct {
	cfg   Settings
	state State
}

// New returns a controller at its initial state with the interval at base.
func New(cfg Settings) *Controller {
	cfg.EmptyCeiling = max(cfg.EmptyCeiling, 1)
	if cfg.Key.TitleWords == 0 && cfg.Key.ArtistWords == 0 {
		cfg.Key = LooseKey
	}
	return &Controller{cfg: cfg, state: State{Interval: cfg.Base}}
}

// State returns a copy of the current state.
func (c *Controller) State() State {
	return c.state
}

// Interval is the wait before the next sample.
func (c *Controller) Interval() time.Duration {
	return c.state.Interval
}

// Match records an identification seen at now.
func (c *Controller) Match(title, artist string, now time.Time) Decision {
	key := NormalizeKey(title, artist, c.cfg.Key)
	c.state.Empties = 0

	sameSong := c.state.LastKey != "" && key == c.state.LastKey
	if sameSong && now.Sub(c.state.LastAccepted) <= c.cfg.Window {
		c.state.Interval = min(c.state.Interval+c.cfg.Increment, c.cfg.SameSongMax)
		return Decision{Outcome: Suppressed, Key: key, Interval: c.state.Interval}
	}

	c.state.LastKey = key
	c.state.LastAccepted = now
	c.state.Interval = c.cfg.Base
	return Decision{Outcome: Accepted, Key: key, Interval: c.state.Interval}
}

// Empty records a sample that produced no identification.
func (c *Controller) Empty() EmptyOutcome {
	c.state.Empties++
	c.state.Interval = min(c.cfg.Base*time.Duration(c.state.Empties), c.cfg.Max)

	out := EmptyOutcome{Interval: c.state.Interval, Empties: c.state.Empties}
	if c.state.Empties >= c.cfg.EmptyCeiling {
		out.Notice = true
		c.state.Empties = 0
	}
	return out
}
