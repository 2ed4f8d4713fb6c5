// Package device tracks device mode (normal, deep sleep) from decoded events
// and keeps bounded console log shown next to the plot.
package device

import (
	"strings"

	"github.com/juju/errors"
	"github.com/temoto/linescope/helpers/ring"
	"github.com/temoto/linescope/protocol"
)

type Mode uint8

const (
	ModeNormal Mode = iota
	ModeDeepSleep
)

func (m Mode) String() string {
	switch m {
	case ModeNormal:
		return "normal"
	case ModeDeepSleep:
		return "deep_sleep"
	}
	return "invalid"
}

func (m Mode) MarshalText() ([]byte, error) { return []byte(m.String()), nil }

func (m *Mode) UnmarshalText(b []byte) error {
	switch string(b) {
	case "normal":
		*m = ModeNormal
	case "deep_sleep":
		*m = ModeDeepSleep
	default:
		return errors.NotValidf("device mode=%q", string(b))
	}
	return nil
}

const (
	DefaultSleepEnter  = "entering deep sleep"
	DefaultSleepWake   = "waking up"
	DefaultLogCapacity = 15
	RebootMarker       = "[REBOOT detected]"
)

type Config struct {
	LogCapacity int
	// Case-insensitive substrings of log text.
	SleepEnter string
	SleepWake  string
}

// Action tells event owner what to do besides forwarding event.
type Action struct {
	// Reset series buffer, device restarted.
	Reset bool
	// Drop event, it was consumed or suppressed.
	Drop bool
}

// Tracker is not safe for concurrent use, owner serializes calls.
type Tracker struct {
	mode       Mode
	alert      bool
	lines      *ring.Ring[string]
	malformed  uint64
	sleepEnter string
	sleepWake  string
}

func NewTracker(c Config) (*Tracker, error) {
	if c.LogCapacity == 0 {
		c.LogCapacity = DefaultLogCapacity
	}
	if c.LogCapacity < 1 {
		return nil, errors.NotValidf("log capacity=%d", c.LogCapacity)
	}
	if c.SleepEnter == "" {
		c.SleepEnter = DefaultSleepEnter
	}
	if c.SleepWake == "" {
		c.SleepWake = DefaultSleepWake
	}
	return &Tracker{
		lines:      ring.New[string](c.LogCapacity),
		sleepEnter: strings.ToLower(c.SleepEnter),
		sleepWake:  strings.ToLower(c.SleepWake),
	}, nil
}

// Apply updates mode and log. Returned event is reclassified when log text
// is a sleep transition, otherwise the input event unchanged.
func (t *Tracker) Apply(e protocol.Event) (protocol.Event, Action) {
	switch e.Kind {
	case protocol.KindReboot:
		t.mode = ModeNormal
		t.alert = false
		t.lines.Clear()
		t.lines.Push(RebootMarker)
		return e, Action{Reset: true}

	case protocol.KindLog:
		return t.applyLog(e)

	case protocol.KindSleep:
		t.transition(e.Entering, e.Text)
		return e, Action{}

	case protocol.KindMalformed:
		t.malformed++
		return e, Action{Drop: true}

	case protocol.KindNone:
		return e, Action{Drop: true}
	}
	return e, Action{}
}

func (t *Tracker) applyLog(e protocol.Event) (protocol.Event, Action) {
	lower := strings.ToLower(e.Text)
	switch {
	case strings.Contains(lower, t.sleepEnter):
		sleep := protocol.Event{Kind: protocol.KindSleep, Entering: true, Level: e.Level, Text: e.Text}
		t.transition(true, e.Text)
		return sleep, Action{}

	case strings.Contains(lower, t.sleepWake):
		wake := protocol.Event{Kind: protocol.KindSleep, Entering: false, Level: e.Level, Text: e.Text}
		t.transition(false, e.Text)
		return wake, Action{}

	case t.mode == ModeDeepSleep:
		return e, Action{Drop: true}
	}
	t.lines.Push(e.Text)
	return e, Action{}
}

// Both directions replace log content with the transition message.
func (t *Tracker) transition(entering bool, text string) {
	if entering {
		t.mode = ModeDeepSleep
	} else {
		t.mode = ModeNormal
	}
	t.alert = entering
	t.lines.Clear()
	if text != "" {
		t.lines.Push(text)
	}
}

func (t *Tracker) Mode() Mode { return t.mode }

// Alert is true while log shows the deep sleep message, consumer draws it highlighted.
func (t *Tracker) Alert() bool { return t.alert }

// Lines returns a copy, oldest first.
func (t *Tracker) Lines() []string { return t.lines.Slice() }

func (t *Tracker) Malformed() uint64 { return t.malformed }
