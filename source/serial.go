package source

import (
	"context"
	"expvar"
	"io"
	"time"

	"github.com/juju/errors"
	"github.com/tarm/serial"
	"github.com/temoto/linescope/helpers"
	"github.com/temoto/linescope/helpers/atomic_clock"
	"github.com/temoto/linescope/log2"
)

const (
	DefaultReadTimeout = 1 * time.Second
	DefaultReopenMin   = 200 * time.Millisecond
	DefaultReopenMax   = 5 * time.Second
)

type SerialConfig struct {
	Device      string
	Baud        int
	ReadTimeout time.Duration
	ReopenMin   time.Duration
	ReopenMax   time.Duration
	// Bytes counts received bytes, optional.
	Bytes *expvar.Int
}

type PortOpener func(*serial.Config) (io.ReadCloser, error)

func OpenPort(c *serial.Config) (io.ReadCloser, error) {
	p, err := serial.OpenPort(c)
	if err != nil {
		return nil, err
	}
	return p, nil
}

// Serial reads lines from UART and reopens port after errors until ctx is done.
type Serial struct {
	config  SerialConfig
	log     *log2.Log
	open    PortOpener
	backoff helpers.Backoff
	stat    helpers.StatReader
	opens   int
}

// open may be nil, defaults to OpenPort.
func NewSerial(c SerialConfig, log *log2.Log, open PortOpener) *Serial {
	if c.ReadTimeout == 0 {
		c.ReadTimeout = DefaultReadTimeout
	}
	if c.ReopenMin == 0 {
		c.ReopenMin = DefaultReopenMin
	}
	if c.ReopenMax == 0 {
		c.ReopenMax = DefaultReopenMax
	}
	if open == nil {
		open = OpenPort
	}
	self := &Serial{
		config: c,
		log:    log,
		open:   open,
		backoff: helpers.Backoff{
			Min: c.ReopenMin,
			Max: c.ReopenMax,
			K:   2,
		},
	}
	self.stat.V = c.Bytes
	return self
}

// LastRead is stamped on every non-empty read from port.
func (self *Serial) LastRead() *atomic_clock.Clock { return &self.stat.Last }

func (self *Serial) Run(ctx context.Context, sink LineSink) error {
	sc := &serial.Config{
		Name:        self.config.Device,
		Baud:        self.config.Baud,
		ReadTimeout: self.config.ReadTimeout,
	}
	first := true
	for ctx.Err() == nil {
		if !first {
			delay := self.backoff.Next()
			self.log.Debugf("serial reopen device=%s in %v", sc.Name, delay)
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(delay):
			}
		}
		first = false

		port, err := self.open(sc)
		if err != nil {
			self.backoff.Failure()
			self.log.Errorf("serial open device=%s err=%v", sc.Name, err)
			continue
		}
		self.opens++
		self.backoff.Reset()
		self.log.Infof("serial connected device=%s baud=%d", sc.Name, sc.Baud)

		self.stat.R = port
		err = ReadLines(ctx, timeoutReader{ctx: ctx, r: &self.stat, timeout: sc.ReadTimeout}, sink)
		if cerr := port.Close(); cerr != nil {
			self.log.Debugf("serial close device=%s err=%v", sc.Name, cerr)
		}
		if ctx.Err() != nil {
			break
		}
		if err == nil {
			err = errors.Errorf("device=%s end of stream", sc.Name)
		}
		self.log.Errorf("serial read err=%v", err)
	}
	return nil
}
