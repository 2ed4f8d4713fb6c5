package source

import (
	"context"
	"expvar"
	"io"
	"io/ioutil"
	"strings"
	"testing"
	"time"

	"github.com/juju/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tarm/serial"
	"github.com/temoto/linescope/log2"
	"github.com/temoto/linescope/monitor"
	"github.com/temoto/linescope/series"
)

func TestSerialReopen(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	var configs []serial.Config
	open := func(c *serial.Config) (io.ReadCloser, error) {
		configs = append(configs, *c)
		switch len(configs) {
		case 1:
			return nil, errors.New("no such device")
		case 2:
			return ioutil.NopCloser(strings.NewReader("[INFO] boot\r\n#TS:1\t#SAMPLE:1\n")), nil
		}
		cancel()
		return nil, errors.New("gone")
	}
	bytes := new(expvar.Int)
	rec := &recorder{}
	s := NewSerial(SerialConfig{
		Device:    "/dev/test",
		Baud:      115200,
		ReopenMin: time.Millisecond,
		ReopenMax: 2 * time.Millisecond,
		Bytes:     bytes,
	}, log2.NewTest(t, log2.LDebug), open)
	require.True(t, s.LastRead().IsZero())
	require.NoError(t, s.Run(ctx, rec))

	require.Len(t, configs, 3)
	assert.Equal(t, "/dev/test", configs[0].Name)
	assert.Equal(t, 115200, configs[0].Baud)
	assert.Equal(t, DefaultReadTimeout, configs[0].ReadTimeout)
	assert.Equal(t, 1, s.opens)
	assert.Equal(t, []string{"[INFO] boot", "#TS:1\t#SAMPLE:1"}, rec.Lines())
	assert.Equal(t, int64(29), bytes.Value())
	assert.False(t, s.LastRead().IsZero())
}

func TestSerialCancelled(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	s := NewSerial(SerialConfig{Device: "/dev/null"}, nil, func(*serial.Config) (io.ReadCloser, error) {
		t.Error("open after cancel")
		return nil, errors.New("unexpected")
	})
	assert.NoError(t, s.Run(ctx, &recorder{}))
}

func TestSerialIntoMonitor(t *testing.T) {
	t.Parallel()

	m, err := monitor.New(monitor.Config{Series: series.Duration(0.15)}, log2.NewTest(t, log2.LDebug), nil)
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	input := "ESP-ROM:esp32s3\nrst:0x1\n[INFO] ready\n#TS:0\t#SAMPLE:1.0\n#TS:100000\t#SAMPLE:2.0\n#TS:200000\t#SAMPLE:3.0\n"
	opened := false
	s := NewSerial(SerialConfig{Device: "/dev/test", ReopenMin: time.Millisecond, ReopenMax: time.Millisecond}, nil,
		func(*serial.Config) (io.ReadCloser, error) {
			if opened {
				cancel()
				return nil, errors.New("gone")
			}
			opened = true
			return ioutil.NopCloser(strings.NewReader(input)), nil
		})
	require.NoError(t, s.Run(ctx, m))

	snap := m.Snapshot()
	assert.Equal(t, []series.Point{{Time: 0.1, Value: 2}, {Time: 0.2, Value: 3}}, snap.Points)
	assert.InDelta(t, 10.0, snap.Rate, 1e-9)
	assert.Equal(t, []string{"[REBOOT detected]", "ready"}, snap.Log)
	assert.Equal(t, uint64(0), snap.Malformed)
}
