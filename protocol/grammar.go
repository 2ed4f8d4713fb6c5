package protocol

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"

	"github.com/juju/errors"
)

const (
	prefixStamped      = "#TS:"
	prefixSample       = "#SAMPLE:"
	prefixSamplingFreq = "#SAMPLING_FREQ:"
	prefixAggregate    = "#AGGREGATE:"
	prefixComponent    = "#COMPONENT:"
	keySample          = "#SAMPLE"
	keyAggregate       = "#AGGREGATE"
)

var logLevels = []struct {
	prefix string
	level  Level
}{
	{"[INFO]", LevelInfo},
	{"[WARNING]", LevelWarning},
	{"[DEBUG]", LevelDebug},
	{"[ERROR]", LevelError},
}

type rule struct {
	name  string
	match func(d *Decoder, line string) bool
	parse func(d *Decoder, line string) Event
}

// Order matters, first matching rule wins.
var grammar = []rule{
	{"reboot", func(d *Decoder, line string) bool { return strings.HasPrefix(line, d.rebootPrefix()) }, parseReboot},
	{"log", func(_ *Decoder, line string) bool { return line[0] == '[' }, parseLog},
	{"stamped", hasPrefix(prefixStamped), parseStamped},
	{"sample", hasPrefix(prefixSample), parseSample},
	{"sampling_freq", hasPrefix(prefixSamplingFreq), parseSamplingFreq},
	{"aggregate", hasPrefix(prefixAggregate), parseAggregate},
	{"json", hasPrefix("{"), parseJSON},
	{"component", hasPrefix(prefixComponent), parseComponent},
	{"spectrum", func(_ *Decoder, line string) bool { return strings.IndexByte(line, '\t') >= 0 }, parseSpectrum},
}

func hasPrefix(prefix string) func(*Decoder, string) bool {
	return func(_ *Decoder, line string) bool { return strings.HasPrefix(line, prefix) }
}

func parseReboot(_ *Decoder, line string) Event { return Event{Kind: KindReboot, Raw: line} }

func parseLog(d *Decoder, line string) Event {
	for _, l := range logLevels {
		if strings.HasPrefix(line, l.prefix) {
			text := strings.TrimSpace(line[len(l.prefix):])
			if strings.HasPrefix(text, d.componentSentinel()) {
				return Event{Kind: KindNone, Raw: line}
			}
			return Event{Kind: KindLog, Level: l.level, Text: text}
		}
	}
	if d.isBootChatter(line) {
		return Event{Kind: KindNone, Raw: line}
	}
	return malformed(line, errUnrecognized(line))
}

// "#TS:<us>\t#SAMPLE:<float>" or "#TS:<us>\t#AGGREGATE:<float>"
func parseStamped(_ *Decoder, line string) Event {
	head, rest, ok := strings.Cut(line, "\t")
	if !ok {
		return malformed(line, errors.NotValidf("stamped line without tab"))
	}
	tsText := strings.TrimSpace(head[len(prefixStamped):])
	us, err := strconv.ParseUint(tsText, 10, 64)
	if err != nil {
		return malformed(line, errors.NotValidf("timestamp=%q", tsText))
	}
	key, valueText, ok := strings.Cut(strings.TrimSpace(rest), ":")
	if !ok {
		return malformed(line, errors.NotValidf("stamped payload=%q", rest))
	}
	var kind Kind
	switch key {
	case keySample:
		kind = KindSample
	case keyAggregate:
		kind = KindAggregate
	default:
		return malformed(line, errors.NotSupportedf("stamped key=%s", key))
	}
	v, err := parseValue(valueText)
	if err != nil {
		return malformed(line, errors.Annotate(err, strings.ToLower(key[1:])))
	}
	return Event{Kind: kind, Time: MicrosToSeconds(us), Stamped: true, Value: v}
}

func parseSample(_ *Decoder, line string) Event {
	v, err := parseValue(line[len(prefixSample):])
	if err != nil {
		return malformed(line, errors.Annotate(err, "sample"))
	}
	return Event{Kind: KindSample, Value: v}
}

func parseSamplingFreq(_ *Decoder, line string) Event {
	hz, err := parseValue(line[len(prefixSamplingFreq):])
	if err != nil {
		return malformed(line, errors.Annotate(err, "sampling frequency"))
	}
	if hz <= 0 {
		return malformed(line, errors.NotValidf("sampling frequency=%g", hz))
	}
	return Event{Kind: KindSamplingFreq, Value: hz}
}

func parseAggregate(_ *Decoder, line string) Event {
	v, err := parseValue(line[len(prefixAggregate):])
	if err != nil {
		return malformed(line, errors.Annotate(err, "aggregate"))
	}
	return Event{Kind: KindAggregate, Value: v}
}

// {"average": 1.2345, "timeStamp": 1500000}
// Same structure is published to MQTT by the device.
func parseJSON(_ *Decoder, line string) Event {
	var msg struct {
		Average   *float64    `json:"average"`
		TimeStamp json.Number `json:"timeStamp"`
	}
	if err := json.Unmarshal([]byte(line), &msg); err != nil {
		return malformed(line, errors.NewNotValid(err, "json payload"))
	}
	if msg.Average == nil {
		return malformed(line, errors.NotValidf("json payload without average"))
	}
	e := Event{Kind: KindAggregate, Value: *msg.Average}
	if msg.TimeStamp != "" {
		us, err := strconv.ParseUint(msg.TimeStamp.String(), 10, 64)
		if err != nil {
			f, ferr := msg.TimeStamp.Float64()
			if ferr != nil || f < 0 || f >= math.MaxUint64 || math.IsInf(f, 0) {
				return malformed(line, errors.NotValidf("timeStamp=%s", msg.TimeStamp))
			}
			us = uint64(f)
		}
		e.Time, e.Stamped = MicrosToSeconds(us), true
	}
	return e
}

// "#COMPONENT:\t<freq>\t<magnitude>", short form "#COMPONENT:<freq>\t<magnitude>"
func parseComponent(_ *Decoder, line string) Event {
	fields := strings.Split(line, "\t")
	var freqText, magText string
	switch {
	case len(fields) == 3:
		freqText, magText = fields[1], fields[2]
	case len(fields) == 2 && strings.TrimSpace(fields[0][len(prefixComponent):]) != "":
		freqText, magText = fields[0][len(prefixComponent):], fields[1]
	default:
		return malformed(line, errors.NotValidf("component fields=%d", len(fields)))
	}
	freq, err := parseValue(freqText)
	if err != nil {
		return malformed(line, errors.Annotate(err, "component frequency"))
	}
	mag, err := parseValue(magText)
	if err != nil {
		return malformed(line, errors.Annotate(err, "component magnitude"))
	}
	return Event{Kind: KindComponent, Frequency: freq, Magnitude: mag}
}

func parseSpectrum(d *Decoder, line string) Event {
	fields := strings.Split(line, "\t")
	bins := make([]float64, len(fields))
	for i, f := range fields {
		v, err := parseValue(f)
		if err != nil {
			if d.isBootChatter(line) {
				return Event{Kind: KindNone, Raw: line}
			}
			return malformed(line, errors.Annotatef(err, "spectrum field=%d", i))
		}
		bins[i] = v
	}
	if d.BinCount <= 0 {
		return malformed(line, errors.NotSupportedf("spectrum row (bins not configured)"))
	}
	if len(bins) != d.BinCount {
		return malformed(line, errors.NotValidf("spectrum fields=%d expected=%d", len(bins), d.BinCount))
	}
	return Event{Kind: KindSpectrum, Bins: bins}
}

func parseValue(s string) (float64, error) {
	s = strings.TrimSpace(s)
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, errors.NotValidf("value=%q", s)
	}
	return v, nil
}

func errUnrecognized(line string) error {
	const maxShow = 32
	show := line
	if len(show) > maxShow {
		show = show[:maxShow] + "..."
	}
	return errors.NotSupportedf("unrecognized line=%q", show)
}
