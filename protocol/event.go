// Package protocol decodes device telemetry lines and MQTT payloads into events.
//
// Line grammar (newline already stripped):
//
//	ESP-ROM:...                    reboot banner
//	[INFO] text                    also [WARNING] [DEBUG] [ERROR]
//	#TS:<us>\t#SAMPLE:<float>      stamped sample, also "#SAMPLE:\t<float>"
//	#TS:<us>\t#AGGREGATE:<float>   stamped aggregate
//	#SAMPLE:<float>                unstamped sample
//	#SAMPLING_FREQ:<float>
//	#AGGREGATE:<float>
//	#COMPONENT:\t<freq>\t<magnitude>
//	{"average":<float>,"timeStamp":<us>}
//	<float>\t<float>\t...          spectrum row of configured bin count
//
// Decoding is pure: same input and Decoder produce equal Event.
package protocol

import (
	"fmt"
)

type Kind uint8

const (
	// KindNone is a line intentionally ignored: blank, boot chatter, component log.
	KindNone Kind = iota
	KindSample
	KindAggregate
	KindSamplingFreq
	KindComponent
	KindLog
	KindReboot
	// KindSleep is never produced by Decoder, device tracker reclassifies logs into it.
	KindSleep
	KindSpectrum
	KindMalformed
)

var kindNames = [...]string{
	KindNone:         "none",
	KindSample:       "sample",
	KindAggregate:    "aggregate",
	KindSamplingFreq: "sampling_freq",
	KindComponent:    "component",
	KindLog:          "log",
	KindReboot:       "reboot",
	KindSleep:        "sleep",
	KindSpectrum:     "spectrum",
	KindMalformed:    "malformed",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("Kind(%d)", k)
}

type Level uint8

const (
	LevelInfo Level = iota
	LevelWarning
	LevelDebug
	LevelError
)

func (l Level) String() string {
	switch l {
	case LevelInfo:
		return "INFO"
	case LevelWarning:
		return "WARNING"
	case LevelDebug:
		return "DEBUG"
	case LevelError:
		return "ERROR"
	}
	return fmt.Sprintf("Level(%d)", l)
}

// Event is a tagged union, fields meaningful per Kind:
//   - Sample: Time (seconds, if Stamped), Value
//   - Aggregate: Value, Time if Stamped
//   - SamplingFreq: Value in Hz
//   - Component: Frequency, Magnitude
//   - Log: Level, Text
//   - Sleep: Entering, Text
//   - Spectrum: Bins
//   - Malformed: Raw, Err
type Event struct {
	Kind      Kind
	Time      float64
	Stamped   bool
	Value     float64
	Frequency float64
	Magnitude float64
	Level     Level
	Text      string
	Entering  bool
	Bins      []float64
	Raw       string
	Err       error
}

func (e Event) String() string {
	switch e.Kind {
	case KindSample:
		if e.Stamped {
			return fmt.Sprintf("sample t=%.6f v=%g", e.Time, e.Value)
		}
		return fmt.Sprintf("sample v=%g", e.Value)
	case KindAggregate:
		return fmt.Sprintf("aggregate v=%g", e.Value)
	case KindSamplingFreq:
		return fmt.Sprintf("sampling_freq hz=%g", e.Value)
	case KindComponent:
		return fmt.Sprintf("component f=%g m=%g", e.Frequency, e.Magnitude)
	case KindLog:
		return fmt.Sprintf("log [%s] %s", e.Level, e.Text)
	case KindSleep:
		return fmt.Sprintf("sleep entering=%t", e.Entering)
	case KindSpectrum:
		return fmt.Sprintf("spectrum bins=%d", len(e.Bins))
	case KindMalformed:
		return fmt.Sprintf("malformed err=%v", e.Err)
	}
	return e.Kind.String()
}

// MicrosToSeconds converts device timestamp.
func MicrosToSeconds(us uint64) float64 { return float64(us) / 1e6 }
