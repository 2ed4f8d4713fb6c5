package source

import (
	"sync"
	"testing"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/juju/errors"
)

type mqttMock struct {
	sync.Mutex
	Opt          *mqtt.ClientOptions
	subs         []mockSub
	connectErrs  []error
	connects     int
	disconnected bool
}
type mockSub struct {
	Pattern string
	Qos     byte
	Handler mqtt.MessageHandler
}

func newMqttMock(connectErrs ...error) *mqttMock {
	return &mqttMock{
		subs:        make([]mockSub, 0, 4),
		connectErrs: connectErrs,
	}
}

func (self *mqttMock) newClient(opt *mqtt.ClientOptions) mqtt.Client {
	self.Lock()
	self.Opt = opt
	self.Unlock()
	return self
}

func (self *mqttMock) waitSubscribed(t testing.TB, topic string) {
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		self.Lock()
		for _, sub := range self.subs {
			if sub.Pattern == topic {
				self.Unlock()
				return
			}
		}
		self.Unlock()
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("not subscribed topic=%s", topic)
}

func (self *mqttMock) TestPublish(t testing.TB, topic string, payload []byte) {
	self.Lock()
	subs := append([]mockSub(nil), self.subs...)
	self.Unlock()
	for _, sub := range subs {
		if topic == sub.Pattern {
			sub.Handler(self, mockMsg{T: topic, P: payload})
			return
		}
	}
	t.Errorf("not subscribed for topic=%s", topic)
}

func (self *mqttMock) Disconnect(uint) {
	self.Lock()
	self.disconnected = true
	self.Unlock()
}
func (self *mqttMock) IsConnected() bool      { return true }
func (self *mqttMock) IsConnectionOpen() bool { return true }

func (self *mqttMock) Connect() mqtt.Token {
	self.Lock()
	defer self.Unlock()
	self.connects++
	if len(self.connectErrs) > 0 {
		err := self.connectErrs[0]
		self.connectErrs = self.connectErrs[1:]
		return mockToken{err}
	}
	return mockToken{nil}
}

func (self *mqttMock) Publish(topic string, qos byte, retain bool, payload interface{}) mqtt.Token {
	panic("not implemented")
}

func (self *mqttMock) Subscribe(pattern string, qos byte, handler mqtt.MessageHandler) mqtt.Token {
	self.Lock()
	self.subs = append(self.subs, mockSub{pattern, qos, handler})
	self.Unlock()
	return mockToken{nil}
}

func (self *mqttMock) AddRoute(string, mqtt.MessageHandler) { panic("not implemented") }

func (self *mqttMock) OptionsReader() mqtt.ClientOptionsReader {
	panic("not implemented")
}

func (self *mqttMock) SubscribeMultiple(map[string]byte, mqtt.MessageHandler) mqtt.Token {
	panic("not implemented")
}
func (self *mqttMock) Unsubscribe(...string) mqtt.Token { panic("not implemented") }

type mockToken struct{ error }

func (tok mockToken) Error() error { return tok.error }
func (tok mockToken) Wait() bool   { return !errors.IsTimeout(tok.error) }
func (tok mockToken) WaitTimeout(time.Duration) bool {
	return !errors.IsTimeout(tok.error)
}

type mockMsg struct {
	T string
	P []byte
}

func (msg mockMsg) Ack()              {}
func (msg mockMsg) Duplicate() bool   { return false }
func (msg mockMsg) MessageID() uint16 { return 0 }
func (msg mockMsg) Payload() []byte   { return msg.P }
func (msg mockMsg) Qos() byte         { return 0 }
func (msg mockMsg) Retained() bool    { return false }
func (msg mockMsg) Topic() string     { return msg.T }
