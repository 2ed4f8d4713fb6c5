package protocol

import (
	"bytes"
	"strings"
	"unicode/utf8"
)

const (
	DefaultRebootPrefix      = "ESP-ROM:"
	DefaultComponentSentinel = "Component"
)

// DefaultBootChatter are ROM and bootloader line prefixes printed after reset.
// Such lines are ignored silently instead of counted as malformed.
var DefaultBootChatter = []string{"ESP-", "load:", "rst:", "entry ", "mode:", "configsip:", "clk_drv:", "ets "}

// Decoder holds grammar options only, zero value is ready to use with defaults.
// Decode does not modify Decoder, so one value may be shared between goroutines.
type Decoder struct {
	// BinCount > 0 enables spectrum rows with exactly this many fields.
	BinCount          int
	RebootPrefix      string
	ComponentSentinel string
	BootChatter       []string
}

func NewDecoder(binCount int) Decoder {
	return Decoder{
		BinCount:          binCount,
		RebootPrefix:      DefaultRebootPrefix,
		ComponentSentinel: DefaultComponentSentinel,
		BootChatter:       DefaultBootChatter,
	}
}

// Decode never fails, problems are reported as KindMalformed event.
func (d *Decoder) Decode(line string) Event {
	line = strings.TrimRight(line, "\r\n")
	if !utf8.ValidString(line) {
		line = strings.ToValidUTF8(line, "")
	}
	if strings.TrimSpace(line) == "" {
		return Event{Kind: KindNone}
	}
	for i := range grammar {
		r := &grammar[i]
		if r.match(d, line) {
			return r.parse(d, line)
		}
	}
	if d.isBootChatter(line) {
		return Event{Kind: KindNone, Raw: line}
	}
	return malformed(line, errUnrecognized(line))
}

// DecodePayload accepts structured JSON aggregate message or any text line.
func (d *Decoder) DecodePayload(payload []byte) Event {
	payload = bytes.TrimSpace(payload)
	if len(payload) > 0 && payload[0] == '{' {
		return parseJSON(d, string(payload))
	}
	return d.Decode(string(payload))
}

func (d *Decoder) rebootPrefix() string {
	if d.RebootPrefix == "" {
		return DefaultRebootPrefix
	}
	return d.RebootPrefix
}

func (d *Decoder) componentSentinel() string {
	if d.ComponentSentinel == "" {
		return DefaultComponentSentinel
	}
	return d.ComponentSentinel
}

func (d *Decoder) isBootChatter(line string) bool {
	chatter := d.BootChatter
	if chatter == nil {
		chatter = DefaultBootChatter
	}
	for _, prefix := range chatter {
		if strings.HasPrefix(line, prefix) {
			return true
		}
	}
	return false
}

func malformed(line string, err error) Event {
	return Event{Kind: KindMalformed, Raw: line, Err: err}
}
