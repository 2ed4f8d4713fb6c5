package device

import (
	"testing"

	"github.com/juju/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/temoto/linescope/protocol"
)

func info(text string) protocol.Event {
	return protocol.Event{Kind: protocol.KindLog, Level: protocol.LevelInfo, Text: text}
}

func newTracker(t testing.TB, c Config) *Tracker {
	tr, err := NewTracker(c)
	require.NoError(t, err)
	return tr
}

func TestDeepSleepSuppression(t *testing.T) {
	t.Parallel()

	tr := newTracker(t, Config{})
	input := []string{"normal msg 1", "Entering deep sleep", "normal msg 2", "Waking up from deep sleep", "normal msg 3"}
	modes := []Mode{ModeNormal, ModeDeepSleep, ModeDeepSleep, ModeNormal, ModeNormal}
	for i, text := range input {
		tr.Apply(info(text))
		assert.Equal(t, modes[i], tr.Mode(), "after=%q", text)
	}
	assert.Equal(t, []string{"Waking up from deep sleep", "normal msg 3"}, tr.Lines())
	assert.NotContains(t, tr.Lines(), "normal msg 2")
	assert.False(t, tr.Alert())
}

func TestSleepReclassify(t *testing.T) {
	t.Parallel()

	tr := newTracker(t, Config{})
	tr.Apply(info("a"))
	e, a := tr.Apply(info("Entering deep sleep"))
	assert.Equal(t, protocol.KindSleep, e.Kind)
	assert.True(t, e.Entering)
	assert.Equal(t, Action{}, a)
	assert.Equal(t, []string{"Entering deep sleep"}, tr.Lines())
	assert.True(t, tr.Alert())

	e, a = tr.Apply(info("dropped while asleep"))
	assert.Equal(t, protocol.KindLog, e.Kind)
	assert.True(t, a.Drop)

	// repeated enter keeps deep sleep and replaces message
	tr.Apply(info("ENTERING DEEP SLEEP again"))
	assert.Equal(t, ModeDeepSleep, tr.Mode())
	assert.Equal(t, []string{"ENTERING DEEP SLEEP again"}, tr.Lines())

	e, _ = tr.Apply(info("waking up"))
	assert.Equal(t, protocol.KindSleep, e.Kind)
	assert.False(t, e.Entering)
	assert.Equal(t, ModeNormal, tr.Mode())
}

func TestReboot(t *testing.T) {
	t.Parallel()

	tr := newTracker(t, Config{})
	tr.Apply(info("one"))
	tr.Apply(info("Entering deep sleep"))
	_, a := tr.Apply(protocol.Event{Kind: protocol.KindReboot})
	assert.True(t, a.Reset)
	assert.Equal(t, ModeNormal, tr.Mode())
	assert.False(t, tr.Alert())
	assert.Equal(t, []string{RebootMarker}, tr.Lines())
}

func TestLogCapacity(t *testing.T) {
	t.Parallel()

	tr := newTracker(t, Config{LogCapacity: 2})
	for _, s := range []string{"1", "2", "3"} {
		tr.Apply(info(s))
	}
	assert.Equal(t, []string{"2", "3"}, tr.Lines())

	_, err := NewTracker(Config{LogCapacity: -1})
	assert.True(t, errors.IsNotValid(err))
}

func TestMalformedCounted(t *testing.T) {
	t.Parallel()

	tr := newTracker(t, Config{})
	bad := protocol.Event{Kind: protocol.KindMalformed, Raw: "x", Err: errors.NotValidf("x")}
	_, a := tr.Apply(bad)
	assert.True(t, a.Drop)
	tr.Apply(bad)
	assert.Equal(t, uint64(2), tr.Malformed())
	assert.Equal(t, ModeNormal, tr.Mode())
	assert.Empty(t, tr.Lines())

	_, a = tr.Apply(protocol.Event{Kind: protocol.KindNone})
	assert.True(t, a.Drop)
	assert.Equal(t, uint64(2), tr.Malformed())
}

func TestPassThrough(t *testing.T) {
	t.Parallel()

	tr := newTracker(t, Config{})
	tr.Apply(info("Entering deep sleep"))
	s := protocol.Event{Kind: protocol.KindSample, Time: 1, Stamped: true, Value: 2}
	e, a := tr.Apply(s)
	assert.Equal(t, s, e)
	assert.Equal(t, Action{}, a)
	assert.Equal(t, ModeDeepSleep, tr.Mode())
}

func TestCustomPatterns(t *testing.T) {
	t.Parallel()

	tr := newTracker(t, Config{SleepEnter: "Going Dark", SleepWake: "back online"})
	tr.Apply(info("going dark for 4s"))
	assert.Equal(t, ModeDeepSleep, tr.Mode())
	tr.Apply(info("Entering deep sleep"))
	assert.Equal(t, []string{"going dark for 4s"}, tr.Lines())
	tr.Apply(info("BACK ONLINE"))
	assert.Equal(t, ModeNormal, tr.Mode())
	assert.Equal(t, "deep_sleep", ModeDeepSleep.String())
}

func TestModeText(t *testing.T) {
	t.Parallel()

	for _, mode := range []Mode{ModeNormal, ModeDeepSleep} {
		b, err := mode.MarshalText()
		require.NoError(t, err)
		var decoded Mode
		require.NoError(t, decoded.UnmarshalText(b))
		assert.Equal(t, mode, decoded)
	}
	var m Mode
	assert.Error(t, m.UnmarshalText([]byte("awake")))
	assert.Equal(t, "invalid", Mode(7).String())
}
