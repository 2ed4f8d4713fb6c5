// Package config reads linescope HCL configuration.
// Later sources and includes overwrite fields set by earlier ones.
package config

import (
	"path/filepath"
	"time"

	"github.com/hashicorp/hcl"
	"github.com/juju/errors"
	"github.com/temoto/linescope/helpers"
	"github.com/temoto/linescope/log2"
	"github.com/temoto/linescope/monitor"
	"github.com/temoto/linescope/protocol"
	"github.com/temoto/linescope/series"
)

const (
	DefaultWindowSec      = 4.0
	DefaultSerialDevice   = "/dev/ttyUSB0"
	DefaultSerialBaud     = 115200
	DefaultMqttBroker     = "tcp://localhost:1883"
	DefaultMqttTopic      = "iot/aggregate"
	DefaultMqttClientId   = "linescope"
	DefaultRenderInterval = 200 * time.Millisecond
)

type Config struct {
	// includeSeen contains absolute paths to prevent include loops
	includeSeen map[string]struct{}
	// only used for Unmarshal, do not access
	XXX_Include []Source `hcl:"include"`

	Series struct {
		Capacity        int     `hcl:"capacity"`
		WindowSec       float64 `hcl:"window_sec"`
		InitialCapacity int     `hcl:"initial_capacity"`
	} `hcl:"series"`
	Log struct {
		Capacity int `hcl:"capacity"`
	} `hcl:"log"`
	Device struct {
		SleepEnter   string `hcl:"sleep_enter"`
		SleepWake    string `hcl:"sleep_wake"`
		RebootPrefix string `hcl:"reboot_prefix"`
	} `hcl:"device"`
	Spectrum struct {
		Bins int `hcl:"bins"`
	} `hcl:"spectrum"`
	Sampling struct {
		DefaultHz        float64 `hcl:"default_hz"`
		ComponentHistory int     `hcl:"component_history"`
	} `hcl:"sampling"`
	Source struct {
		Serial   SerialConfig `hcl:"serial"`
		Mqtt     MqttConfig   `hcl:"mqtt"`
		StaleSec int          `hcl:"stale_sec"`
	} `hcl:"source"`
	HTTP struct {
		Listen string `hcl:"listen"`
	} `hcl:"http"`
	Render struct {
		Disable    bool `hcl:"disable"`
		IntervalMs int  `hcl:"interval_ms"`
	} `hcl:"render"`
	LogDebug bool `hcl:"log_debug"`
}

type SerialConfig struct {
	Device        string `hcl:"device"`
	Baud          int    `hcl:"baud"`
	ReadTimeoutMs int    `hcl:"read_timeout_ms"`
	ReopenMaxSec  int    `hcl:"reopen_max_sec"`
}

type MqttConfig struct {
	Broker            string `hcl:"broker"`
	Topic             string `hcl:"topic"`
	ClientId          string `hcl:"client_id"`
	Username          string `hcl:"username"`
	Password          string `hcl:"password"` // secret
	KeepaliveSec      int    `hcl:"keepalive_sec"`
	NetworkTimeoutSec int    `hcl:"network_timeout_sec"`
	LogDebug          bool   `hcl:"log_debug"`
}

type Source struct {
	Name     string `hcl:"name,key"`
	Optional bool   `hcl:"optional"`
}

func (c *Config) read(log *log2.Log, fs FullReader, source Source, errs *[]error) {
	norm := fs.Normalize(source.Name)
	if _, ok := c.includeSeen[norm]; ok {
		*errs = append(*errs, errors.Errorf("config duplicate source=%s", source.Name))
		return
	}
	log.Debugf("config reading source='%s' path=%s", source.Name, norm)
	c.includeSeen[source.Name] = struct{}{}
	c.includeSeen[norm] = struct{}{}

	bs, err := fs.ReadAll(norm)
	if bs == nil && err == nil {
		if !source.Optional {
			err = errors.NotFoundf("config required name=%s path=%s", source.Name, norm)
			*errs = append(*errs, err)
		}
		return
	}
	if err != nil {
		*errs = append(*errs, errors.Annotatef(err, "config source=%s", source.Name))
		return
	}

	err = hcl.Unmarshal(bs, c)
	if err != nil {
		err = errors.Annotatef(err, "config unmarshal source=%s", source.Name)
		*errs = append(*errs, err)
		return
	}

	var includes []Source
	includes, c.XXX_Include = c.XXX_Include, nil
	for _, include := range includes {
		includeNorm := fs.Normalize(include.Name)
		if _, ok := c.includeSeen[includeNorm]; ok {
			err = errors.Errorf("config include loop: from=%s include=%s", source.Name, include.Name)
			*errs = append(*errs, err)
			continue
		}
		c.read(log, fs, include, errs)
	}
}

func Read(log *log2.Log, fs FullReader, names ...string) (*Config, error) {
	sources := make([]Source, len(names))
	for i, name := range names {
		sources[i] = Source{Name: name}
	}
	return ReadSources(log, fs, sources...)
}

// ReadSources is Read with optional top level sources.
// Relative includes of OsFullReader resolve against directory of first source.
func ReadSources(log *log2.Log, fs FullReader, sources ...Source) (*Config, error) {
	if len(sources) == 0 {
		return nil, errors.NotValidf("config read without names")
	}

	if osfs, ok := fs.(*OsFullReader); ok {
		dir, name := filepath.Split(sources[0].Name)
		osfs.SetBase(dir)
		sources = append([]Source{{Name: name, Optional: sources[0].Optional}}, sources[1:]...)
	}
	c := &Config{
		includeSeen: make(map[string]struct{}),
	}
	errs := make([]error, 0, 8)
	for _, source := range sources {
		c.read(log, fs, source, &errs)
	}
	return c, helpers.FoldErrors(errs)
}

func MustRead(log *log2.Log, fs FullReader, names ...string) *Config {
	c, err := Read(log, fs, names...)
	if err != nil {
		log.Fatal(errors.ErrorStack(err))
	}
	return c
}

// Bound chooses count or window policy, window of DefaultWindowSec when neither is set.
func (c *Config) Bound() series.Bound {
	b := series.Bound{Count: c.Series.Capacity, Window: c.Series.WindowSec, Initial: c.Series.InitialCapacity}
	if b.Count == 0 && b.Window == 0 {
		b.Window = DefaultWindowSec
	}
	return b
}

// MonitorConfig maps to monitor.Config and validates it.
// feed is KindSample for serial input, KindAggregate for MQTT.
func (c *Config) MonitorConfig(feed protocol.Kind) (monitor.Config, error) {
	mc := monitor.Config{
		Series:            c.Bound(),
		Feed:              feed,
		LogCapacity:       c.Log.Capacity,
		BinCount:          c.Spectrum.Bins,
		SleepEnter:        c.Device.SleepEnter,
		SleepWake:         c.Device.SleepWake,
		RebootPrefix:      c.Device.RebootPrefix,
		ComponentHistory:  c.Sampling.ComponentHistory,
		DefaultSamplingHz: c.Sampling.DefaultHz,
	}
	errs := make([]error, 0, 4)
	if err := mc.Series.Validate(); err != nil {
		errs = append(errs, errors.Annotate(err, "config"))
	}
	if mc.LogCapacity < 0 {
		errs = append(errs, errors.NotValidf("config log capacity=%d", mc.LogCapacity))
	}
	if mc.BinCount < 0 {
		errs = append(errs, errors.NotValidf("config spectrum bins=%d", mc.BinCount))
	}
	if mc.DefaultSamplingHz < 0 {
		errs = append(errs, errors.NotValidf("config sampling default_hz=%g", mc.DefaultSamplingHz))
	}
	return mc, helpers.FoldErrors(errs)
}

func (c *Config) SerialDevice() string {
	if c.Source.Serial.Device == "" {
		return DefaultSerialDevice
	}
	return c.Source.Serial.Device
}

func (c *Config) SerialBaud() int {
	if c.Source.Serial.Baud == 0 {
		return DefaultSerialBaud
	}
	return c.Source.Serial.Baud
}

func (c *Config) MqttBroker() string {
	if c.Source.Mqtt.Broker == "" {
		return DefaultMqttBroker
	}
	return c.Source.Mqtt.Broker
}

func (c *Config) MqttTopic() string {
	if c.Source.Mqtt.Topic == "" {
		return DefaultMqttTopic
	}
	return c.Source.Mqtt.Topic
}

func (c *Config) MqttClientId() string {
	if c.Source.Mqtt.ClientId == "" {
		return DefaultMqttClientId
	}
	return c.Source.Mqtt.ClientId
}

// StaleTimeout is zero when watchdog is disabled.
func (c *Config) StaleTimeout() time.Duration {
	return helpers.IntSecondDefault(c.Source.StaleSec, 0)
}

func (c *Config) RenderInterval() time.Duration {
	return helpers.IntMillisecondDefault(c.Render.IntervalMs, DefaultRenderInterval)
}
