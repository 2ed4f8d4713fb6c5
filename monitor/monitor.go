// Package monitor is the telemetry engine: decoder, device tracker and
// series buffer folded together behind one lock, plus immutable snapshots.
//
// One writer feeds lines in arrival order, each line is processed to
// completion under the lock. Snapshot may be called from any goroutine at
// any cadence, it never observes half-applied line.
package monitor

import (
	"sync"

	"github.com/juju/errors"
	"github.com/temoto/linescope/device"
	"github.com/temoto/linescope/helpers/ring"
	"github.com/temoto/linescope/log2"
	"github.com/temoto/linescope/protocol"
	"github.com/temoto/linescope/series"
)

const (
	DefaultSamplingHz       = 50
	DefaultComponentHistory = 8
)

type Config struct {
	Series series.Bound
	// Feed selects which events become series points: KindSample (default) or KindAggregate.
	Feed             protocol.Kind
	LogCapacity      int
	BinCount         int
	SleepEnter       string
	SleepWake        string
	RebootPrefix     string
	ComponentHistory int
	// Spacing of unstamped points until device reports #SAMPLING_FREQ.
	DefaultSamplingHz float64
}

type Component struct {
	Frequency float64 `json:"frequency"`
	Magnitude float64 `json:"magnitude"`
}

type Monitor struct {
	mu      sync.Mutex
	log     *log2.Log
	config  Config
	decoder protocol.Decoder
	tracker *device.Tracker
	series  *series.Buffer
	metrics *Metrics

	aggregate    float64
	hasAggregate bool
	samplingHz   float64
	components   *ring.Ring[Component]
	spectrum     []float64
}

// New validates config. log and metrics may be nil.
func New(c Config, log *log2.Log, metrics *Metrics) (*Monitor, error) {
	switch c.Feed {
	case protocol.KindNone:
		c.Feed = protocol.KindSample
	case protocol.KindSample, protocol.KindAggregate:
	default:
		return nil, errors.NotValidf("monitor feed=%s", c.Feed)
	}
	if c.DefaultSamplingHz == 0 {
		c.DefaultSamplingHz = DefaultSamplingHz
	}
	if c.DefaultSamplingHz < 0 {
		return nil, errors.NotValidf("monitor default sampling hz=%g", c.DefaultSamplingHz)
	}
	if c.ComponentHistory == 0 {
		c.ComponentHistory = DefaultComponentHistory
	}
	if c.ComponentHistory < 0 {
		return nil, errors.NotValidf("monitor component history=%d", c.ComponentHistory)
	}
	if c.BinCount < 0 {
		return nil, errors.NotValidf("monitor bin count=%d", c.BinCount)
	}

	buf, err := series.New(c.Series)
	if err != nil {
		return nil, errors.Annotate(err, "monitor")
	}
	tracker, err := device.NewTracker(device.Config{
		LogCapacity: c.LogCapacity,
		SleepEnter:  c.SleepEnter,
		SleepWake:   c.SleepWake,
	})
	if err != nil {
		return nil, errors.Annotate(err, "monitor")
	}
	decoder := protocol.NewDecoder(c.BinCount)
	if c.RebootPrefix != "" {
		decoder.RebootPrefix = c.RebootPrefix
	}
	self := &Monitor{
		log:        log,
		config:     c,
		decoder:    decoder,
		tracker:    tracker,
		series:     buf,
		metrics:    metrics,
		components: ring.New[Component](c.ComponentHistory),
	}
	self.log.Debugf("monitor series=%s feed=%s log=%d bins=%d", c.Series, c.Feed, c.LogCapacity, c.BinCount)
	return self, nil
}

// FeedLine decodes and applies one text line, returns event after device tracker.
func (self *Monitor) FeedLine(line string) protocol.Event {
	e := self.decoder.Decode(line)
	return self.Apply(e)
}

// FeedPayload is FeedLine for MQTT message payload.
func (self *Monitor) FeedPayload(payload []byte) protocol.Event {
	e := self.decoder.DecodePayload(payload)
	return self.Apply(e)
}

func (self *Monitor) Apply(e protocol.Event) protocol.Event {
	self.mu.Lock()
	defer self.mu.Unlock()
	return self.apply(e)
}

func (self *Monitor) apply(e protocol.Event) protocol.Event {
	self.metrics.line(e.Kind)
	if e.Kind == protocol.KindMalformed {
		self.log.Debugf("monitor malformed line=%q err=%v", e.Raw, e.Err)
	}

	modeBefore := self.tracker.Mode()
	e, action := self.tracker.Apply(e)
	if mode := self.tracker.Mode(); mode != modeBefore {
		self.log.Infof("device mode=%s", mode)
		self.metrics.mode(mode)
	}
	if action.Reset {
		self.log.Infof("device reboot, series reset points=%d", self.series.Len())
		self.series.Reset()
		self.metrics.reset(ResetReboot)
		self.metrics.buffer(0, 0)
	}
	if action.Drop {
		return e
	}

	switch e.Kind {
	case protocol.KindSample:
		if self.config.Feed == protocol.KindSample {
			self.appendPoint(e)
		}

	case protocol.KindAggregate:
		self.aggregate, self.hasAggregate = e.Value, true
		if self.config.Feed == protocol.KindAggregate {
			self.appendPoint(e)
		}

	case protocol.KindSamplingFreq:
		self.log.Infof("device sampling frequency=%.2f Hz", e.Value)
		self.samplingHz = e.Value

	case protocol.KindComponent:
		self.components.Push(Component{Frequency: e.Frequency, Magnitude: e.Magnitude})

	case protocol.KindSpectrum:
		self.spectrum = append(self.spectrum[:0], e.Bins...)
	}
	return e
}

func (self *Monitor) appendPoint(e protocol.Event) {
	t := e.Time
	if !e.Stamped {
		t = self.nextUnstampedTime()
	}
	if self.series.Append(series.Point{Time: t, Value: e.Value}) {
		self.log.Debugf("monitor timestamp went back t=%.6f, series reset", t)
		self.metrics.reset(ResetMonotonicity)
	}
	rate, _ := self.series.Rate()
	self.metrics.buffer(self.series.Len(), rate)
}

// Unstamped points are spaced by last reported sampling frequency.
func (self *Monitor) nextUnstampedTime() float64 {
	latest, ok := self.series.Latest()
	if !ok {
		return 0
	}
	hz := self.samplingHz
	if hz <= 0 {
		hz = self.config.DefaultSamplingHz
	}
	return latest.Time + 1/hz
}

// LastSampleTime is device timestamp of the most recent point, for staleness checks.
func (self *Monitor) LastSampleTime() (float64, bool) {
	self.mu.Lock()
	defer self.mu.Unlock()
	p, ok := self.series.Latest()
	return p.Time, ok
}

// Malformed counts lines that failed to decode.
func (self *Monitor) Malformed() uint64 {
	self.mu.Lock()
	defer self.mu.Unlock()
	return self.tracker.Malformed()
}

func (self *Monitor) Config() Config { return self.config }
