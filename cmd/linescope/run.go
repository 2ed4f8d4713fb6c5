package main

import (
	"context"
	"expvar"
	"fmt"
	"os"
	"time"

	"github.com/coreos/go-systemd/daemon"
	"github.com/juju/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/temoto/alive/v2"
	"github.com/temoto/linescope/cmd/linescope/subcmd"
	"github.com/temoto/linescope/config"
	"github.com/temoto/linescope/helpers"
	"github.com/temoto/linescope/helpers/atomic_clock"
	"github.com/temoto/linescope/internal/httpapi"
	"github.com/temoto/linescope/internal/render"
	"github.com/temoto/linescope/log2"
	"github.com/temoto/linescope/monitor"
	"github.com/temoto/linescope/protocol"
	"github.com/temoto/linescope/source"
)

const aliveContextKey = "run/alive"

var serialBytes = expvar.NewInt("linescope_serial_bytes")

func getAlive(ctx context.Context) *alive.Alive {
	v := ctx.Value(aliveContextKey)
	if a, ok := v.(*alive.Alive); ok {
		return a
	}
	panic(fmt.Sprintf("context['%s'] expected type *alive.Alive", aliveContextKey))
}

// pipeline is monitor plus its consumers shared by serial and mqtt modes.
type pipeline struct {
	alive    *alive.Alive
	config   *config.Config
	log      *log2.Log
	monitor  *monitor.Monitor
	registry *prometheus.Registry
	err      helpers.AtomicError
}

func newPipeline(ctx context.Context, cfg *config.Config, feed protocol.Kind) (*pipeline, error) {
	log := log2.ContextValueLogger(ctx)
	mc, err := cfg.MonitorConfig(feed)
	if err != nil {
		return nil, err
	}
	reg := prometheus.NewRegistry()
	m, err := monitor.New(mc, log, monitor.NewMetrics(reg))
	if err != nil {
		return nil, err
	}
	return &pipeline{
		alive:    getAlive(ctx),
		config:   cfg,
		log:      log,
		monitor:  m,
		registry: reg,
	}, nil
}

// spawn runs f as alive subtask, any task end stops the whole program.
func (self *pipeline) spawn(ctx context.Context, tag string, f func(context.Context) error) {
	if !self.alive.Add(1) {
		return
	}
	go func() {
		defer self.alive.Done()
		if err := f(ctx); err != nil {
			self.err.StoreOnce(errors.Annotate(err, tag))
		}
		self.alive.Stop()
	}()
}

// serve starts watchdog, HTTP and renderer around the source and blocks until stop.
// last is the source arrival clock.
func (self *pipeline) serve(ctx context.Context, last *atomic_clock.Clock, run func(context.Context) error) error {
	var watchdog *source.Watchdog
	if timeout := self.config.StaleTimeout(); timeout > 0 {
		watchdog = source.NewWatchdog(timeout, last, self.log)
		self.spawn(ctx, "watchdog", func(ctx context.Context) error {
			watchdog.Run(ctx)
			return nil
		})
	}
	if listen := self.config.HTTP.Listen; listen != "" {
		api := httpapi.New(self.monitor, self.registry, self.log)
		self.spawn(ctx, "http", func(ctx context.Context) error { return api.Run(ctx, listen) })
	}
	if !self.config.Render.Disable {
		r := render.New(os.Stdout, render.Options{Interval: self.config.RenderInterval()})
		var stale func() bool
		if watchdog != nil {
			stale = watchdog.Stale
		}
		self.spawn(ctx, "render", func(ctx context.Context) error {
			return r.Run(ctx, self.monitor.Snapshot, stale)
		})
	}
	self.spawn(ctx, "source", run)

	subcmd.SdNotify(self.log, daemon.SdNotifyReady)
	self.log.Debugf("running")
	self.alive.Wait()
	self.log.Infof("stopped points=%d malformed=%d", len(self.monitor.Snapshot().Points), self.monitor.Malformed())
	err, _ := self.err.Load()
	return err
}

func serialMain(ctx context.Context, cfg *config.Config) error {
	p, err := newPipeline(ctx, cfg, protocol.KindSample)
	if err != nil {
		return errors.Annotate(err, "serial")
	}
	sc := cfg.Source.Serial
	s := source.NewSerial(source.SerialConfig{
		Device:      cfg.SerialDevice(),
		Baud:        cfg.SerialBaud(),
		ReadTimeout: time.Duration(sc.ReadTimeoutMs) * time.Millisecond,
		ReopenMax:   time.Duration(sc.ReopenMaxSec) * time.Second,
		Bytes:       serialBytes,
	}, p.log, nil)
	return p.serve(ctx, s.LastRead(), func(ctx context.Context) error { return s.Run(ctx, p.monitor) })
}

func mqttMain(ctx context.Context, cfg *config.Config) error {
	p, err := newPipeline(ctx, cfg, protocol.KindAggregate)
	if err != nil {
		return errors.Annotate(err, "mqtt")
	}
	mc := cfg.Source.Mqtt
	m := source.NewMQTT(source.MqttConfig{
		Broker:         cfg.MqttBroker(),
		Topic:          cfg.MqttTopic(),
		ClientId:       cfg.MqttClientId(),
		Username:       mc.Username,
		Password:       mc.Password,
		Keepalive:      time.Duration(mc.KeepaliveSec) * time.Second,
		NetworkTimeout: time.Duration(mc.NetworkTimeoutSec) * time.Second,
		LogDebug:       mc.LogDebug,
	}, p.log, nil)
	return p.serve(ctx, m.LastMessage(), func(ctx context.Context) error { return m.Run(ctx, p.monitor) })
}
