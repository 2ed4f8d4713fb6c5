package source

import (
	"context"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/juju/errors"
	"github.com/temoto/linescope/helpers/atomic_clock"
	"github.com/temoto/linescope/log2"
)

const (
	defaultNetworkTimeout = 5 * time.Second
	defaultKeepalive      = 60 * time.Second
)

type MqttConfig struct {
	Broker         string
	Topic          string
	ClientId       string
	Username       string
	Password       string // secret
	Keepalive      time.Duration
	NetworkTimeout time.Duration
	LogDebug       bool
}

type NewClientFunc func(*mqtt.ClientOptions) mqtt.Client

// MQTT subscribes to aggregate topic and feeds payloads to sink.
type MQTT struct {
	config    MqttConfig
	log       *log2.Log
	newClient NewClientFunc
	m         mqtt.Client
	mopt      *mqtt.ClientOptions
	sink      PayloadSink
	last      atomic_clock.Clock
	retry     time.Duration
}

// newClient may be nil, defaults to mqtt.NewClient.
func NewMQTT(c MqttConfig, log *log2.Log, newClient NewClientFunc) *MQTT {
	if newClient == nil {
		newClient = mqtt.NewClient
	}
	return &MQTT{config: c, log: log, newClient: newClient, retry: 1 * time.Second}
}

// LastMessage is stamped on every received message.
func (self *MQTT) LastMessage() *atomic_clock.Clock { return &self.last }

// Run blocks until ctx is done. paho reconnects on its own after first connect.
func (self *MQTT) Run(ctx context.Context, sink PayloadSink) error {
	self.sink = sink
	mqttLog := self.log.Clone(log2.LDebug)
	mqttLog.SetPrefix("mqtt: ")
	mqtt.CRITICAL = mqttLog
	mqtt.ERROR = mqttLog
	mqtt.WARN = mqttLog
	if self.config.LogDebug {
		mqtt.DEBUG = mqttLog
	}

	networkTimeout := self.config.NetworkTimeout
	if networkTimeout == 0 {
		networkTimeout = defaultNetworkTimeout
	}
	if networkTimeout < 1*time.Second {
		networkTimeout = 1 * time.Second
	}
	connectTimeout := networkTimeout * 3
	keepalive := self.config.Keepalive
	if keepalive == 0 {
		keepalive = defaultKeepalive
	}

	defaultHandler := func(_ mqtt.Client, msg mqtt.Message) {
		self.log.Errorf("unexpected mqtt message topic=%s", msg.Topic())
	}
	// SetOrderMatters(true) keeps handler calls sequential in arrival order
	self.mopt = mqtt.NewClientOptions().
		AddBroker(self.config.Broker).
		SetAutoReconnect(true).
		SetCleanSession(false).
		SetClientID(self.config.ClientId).
		SetConnectTimeout(connectTimeout).
		SetDefaultPublishHandler(defaultHandler).
		SetKeepAlive(keepalive).
		SetMaxReconnectInterval(connectTimeout).
		SetOrderMatters(true).
		SetPingTimeout(networkTimeout).
		SetWriteTimeout(networkTimeout).
		SetConnectionLostHandler(func(_ mqtt.Client, err error) {
			self.log.Errorf("mqtt connection lost err=%v", err)
		})
	if self.config.Username != "" {
		self.mopt.SetUsername(self.config.Username).SetPassword(self.config.Password)
	}
	self.m = self.newClient(self.mopt)

	if !self.online(ctx) {
		return nil
	}
	self.log.Infof("mqtt subscribed broker=%s topic=%s", self.config.Broker, self.config.Topic)
	<-ctx.Done()
	self.m.Disconnect(uint(networkTimeout / time.Millisecond))
	return nil
}

// online returns false when ctx is done before connect and subscribe succeed.
func (self *MQTT) online(ctx context.Context) bool {
	for {
		if ctx.Err() != nil {
			return false
		}
		if self.tokenWait(self.m.Connect(), "connect") == nil {
			break
		}
		if !sleepCtx(ctx, self.retry) {
			return false
		}
	}
	for {
		if ctx.Err() != nil {
			self.m.Disconnect(0)
			return false
		}
		t := self.m.Subscribe(self.config.Topic, 0, self.onMessage)
		if self.tokenWait(t, "subscribe:"+self.config.Topic) == nil {
			return true
		}
		if !sleepCtx(ctx, self.retry) {
			self.m.Disconnect(0)
			return false
		}
	}
}

func (self *MQTT) onMessage(_ mqtt.Client, msg mqtt.Message) {
	self.last.SetNow()
	e := self.sink.FeedPayload(msg.Payload())
	if e.Err != nil {
		self.log.Debugf("mqtt topic=%s payload=%q err=%v", msg.Topic(), msg.Payload(), e.Err)
	}
	msg.Ack()
}

func (self *MQTT) tokenWait(t mqtt.Token, tag string) error {
	if !t.Wait() {
		err := errors.Errorf("%s timeout", tag)
		self.log.Errorf("mqtt %s", err.Error())
		return err
	}
	if err := t.Error(); err != nil {
		err = errors.Annotate(err, tag)
		self.log.Errorf("mqtt %s", err.Error())
		return err
	}
	return nil
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	select {
	case <-ctx.Done():
		return false
	case <-time.After(d):
		return true
	}
}
