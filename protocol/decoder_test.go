package protocol

import (
	"fmt"
	"testing"

	"github.com/juju/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/temoto/linescope/helpers"
)

func TestDecode(t *testing.T) {
	t.Parallel()

	type Case struct {
		name   string
		input  string
		expect Event
		// only for malformed
		expectErr string
		notValid  bool
	}
	cases := []Case{
		{"blank", "", Event{Kind: KindNone}, "", false},
		{"blank-cr", " \r", Event{Kind: KindNone}, "", false},
		{"reboot", "ESP-ROM:esp32s3-20210327", Event{Kind: KindReboot, Raw: "ESP-ROM:esp32s3-20210327"}, "", false},
		{"boot-chatter-rst", "rst:0x1 (POWERON),boot:0x8 (SPI_FAST_FLASH_BOOT)", Event{Kind: KindNone, Raw: "rst:0x1 (POWERON),boot:0x8 (SPI_FAST_FLASH_BOOT)"}, "", false},
		{"boot-chatter-load", "load:0x3fce3808,len:0x44c", Event{Kind: KindNone, Raw: "load:0x3fce3808,len:0x44c"}, "", false},
		{"info", "[INFO] Entering deep sleep", Event{Kind: KindLog, Level: LevelInfo, Text: "Entering deep sleep"}, "", false},
		{"warning", "[WARNING] sampleQueueAggregate full: dropped oldest sample", Event{Kind: KindLog, Level: LevelWarning, Text: "sampleQueueAggregate full: dropped oldest sample"}, "", false},
		{"debug", "[DEBUG] Recalculated nSamples = 12 (f=50.0 Hz)", Event{Kind: KindLog, Level: LevelDebug, Text: "Recalculated nSamples = 12 (f=50.0 Hz)"}, "", false},
		{"error", "[ERROR] Timeout sending to sampleQueueFFT", Event{Kind: KindLog, Level: LevelError, Text: "Timeout sending to sampleQueueFFT"}, "", false},
		{"info-component-suppressed", "[INFO] Component:\t5.00\t17.20", Event{Kind: KindNone, Raw: "[INFO] Component:\t5.00\t17.20"}, "", false},
		{"info-component-list-kept", "[INFO]  - Component 1: 5.00 Hz @ 17.20 amplitude", Event{Kind: KindLog, Level: LevelInfo, Text: "- Component 1: 5.00 Hz @ 17.20 amplitude"}, "", false},
		{"stamped-sample", "#TS:100000\t#SAMPLE:2.0", Event{Kind: KindSample, Time: 0.1, Stamped: true, Value: 2}, "", false},
		{"stamped-sample-firmware", "#TS:1500000\t#SAMPLE:\t-3.2500000000", Event{Kind: KindSample, Time: 1.5, Stamped: true, Value: -3.25}, "", false},
		{"stamped-aggregate", "#TS:250000\t#AGGREGATE:\t0.5", Event{Kind: KindAggregate, Time: 0.25, Stamped: true, Value: 0.5}, "", false},
		{"stamped-bad-ts", "#TS:abc\t#SAMPLE:1.0", Event{}, `timestamp="abc" not valid`, true},
		{"stamped-negative-ts", "#TS:-5\t#SAMPLE:1.0", Event{}, `timestamp="-5" not valid`, true},
		{"stamped-bad-value", "#TS:10\t#SAMPLE:x1", Event{}, `sample: value="x1" not valid`, true},
		{"stamped-no-tab", "#TS:10 #SAMPLE:1", Event{}, "stamped line without tab not valid", true},
		{"stamped-unknown-key", "#TS:10\t#FOO:1", Event{}, "stamped key=#FOO not supported", false},
		{"sample-unstamped", "#SAMPLE:\t4.5", Event{Kind: KindSample, Value: 4.5}, "", false},
		{"sample-nan", "#SAMPLE:NaN", Event{}, `sample: value="NaN" not valid`, true},
		{"sampling-freq", "#SAMPLING_FREQ:42.5", Event{Kind: KindSamplingFreq, Value: 42.5}, "", false},
		{"sampling-freq-bad", "#SAMPLING_FREQ:fast", Event{}, `sampling frequency: value="fast" not valid`, true},
		{"sampling-freq-zero", "#SAMPLING_FREQ:0", Event{}, "sampling frequency=0 not valid", true},
		{"aggregate", "#AGGREGATE:\t1.25", Event{Kind: KindAggregate, Value: 1.25}, "", false},
		{"aggregate-bad", "#AGGREGATE:", Event{}, `aggregate: value="" not valid`, true},
		{"json", `{"average": 0.1234, "timeStamp": 2000000}`, Event{Kind: KindAggregate, Value: 0.1234, Time: 2, Stamped: true}, "", false},
		{"json-no-ts", `{"average": 3}`, Event{Kind: KindAggregate, Value: 3}, "", false},
		{"json-no-average", `{"timeStamp": 1}`, Event{}, "json payload without average not valid", true},
		{"component", "#COMPONENT:\t12.50\t17.00", Event{Kind: KindComponent, Frequency: 12.5, Magnitude: 17}, "", false},
		{"component-short", "#COMPONENT:12.5\t17", Event{Kind: KindComponent, Frequency: 12.5, Magnitude: 17}, "", false},
		{"component-fields", "#COMPONENT:\t1\t2\t3", Event{}, "component fields=4 not valid", true},
		{"component-bad", "#COMPONENT:\tx\t2", Event{}, `component frequency: value="x" not valid`, true},
		{"spectrum-disabled", "1\t2\t3", Event{}, "spectrum row (bins not configured) not supported", false},
		{"tab-garbage", "hello\tworld", Event{}, `spectrum field=0: value="hello" not valid`, true},
		{"unrecognized", "[MQTT] Published: {}", Event{}, `unrecognized line="[MQTT] Published: {}" not supported`, false},
		{"unrecognized-plain", "Creating random signal.", Event{}, `unrecognized line="Creating random signal." not supported`, false},
	}
	helpers.RandUnix().Shuffle(len(cases), func(i int, j int) { cases[i], cases[j] = cases[j], cases[i] })
	d := NewDecoder(0)
	for _, c := range cases {
		c := c
		t.Run(c.name, func(t *testing.T) {
			t.Parallel()
			e := d.Decode(c.input)
			if c.expectErr == "" {
				assert.Equal(t, c.expect, e)
				return
			}
			require.Equal(t, KindMalformed, e.Kind, "event=%s", e)
			assert.Equal(t, c.input, e.Raw)
			require.Error(t, e.Err)
			assert.Equal(t, c.expectErr, e.Err.Error())
			assert.Equal(t, c.notValid, errors.IsNotValid(errors.Cause(e.Err)), "err=%v", e.Err)
			if !c.notValid {
				assert.True(t, errors.IsNotSupported(errors.Cause(e.Err)), "err=%v", e.Err)
			}
		})
	}
}

func TestDecodeSampleMicroseconds(t *testing.T) {
	t.Parallel()

	rnd := helpers.RandUnix()
	d := NewDecoder(0)
	for i := 0; i < 200; i++ {
		us := uint64(rnd.Int63n(1 << 40))
		v := rnd.NormFloat64() * 20
		line := fmt.Sprintf("#TS:%d\t#SAMPLE:%v", us, v)
		e := d.Decode(line)
		require.Equal(t, KindSample, e.Kind, "line=%q event=%s", line, e)
		assert.Equal(t, float64(us)/1e6, e.Time)
		assert.Equal(t, v, e.Value)
		assert.True(t, e.Stamped)
	}
}

func TestDecodePure(t *testing.T) {
	t.Parallel()

	d := NewDecoder(4)
	lines := []string{
		"#TS:0\t#SAMPLE:1.0",
		"#TS:zz\t#SAMPLE:1.0",
		"1\t2\t3\t4",
		"1\t2\t3",
		"[INFO] waking up",
		"garbage",
	}
	for _, line := range lines {
		assert.Equal(t, d.Decode(line), d.Decode(line), "line=%q", line)
	}
}

func TestDecodeNeverPanics(t *testing.T) {
	t.Parallel()

	d := NewDecoder(3)
	rnd := helpers.RandUnix()
	alphabet := []byte("#TS:SAMPLE_FREQAGGREGATECOMPONENT[]{}\"\t 0123456789.-e\xff")
	for i := 0; i < 2000; i++ {
		b := make([]byte, rnd.Intn(40))
		for j := range b {
			b[j] = alphabet[rnd.Intn(len(alphabet))]
		}
		assert.NotPanics(t, func() {
			e := d.Decode(string(b))
			if e.Kind == KindMalformed {
				assert.Error(t, e.Err)
			}
			_ = d.DecodePayload(b)
		})
	}
}

func TestDecodeSpectrum(t *testing.T) {
	t.Parallel()

	d := NewDecoder(4)
	e := d.Decode("0.5\t1\t2.25\t0")
	require.Equal(t, KindSpectrum, e.Kind)
	assert.Equal(t, []float64{0.5, 1, 2.25, 0}, e.Bins)

	e = d.Decode("0.5\t1")
	require.Equal(t, KindMalformed, e.Kind)
	assert.EqualError(t, e.Err, "spectrum fields=2 expected=4 not valid")

	e = d.Decode("ESP-IDF v5\tboot")
	assert.Equal(t, KindNone, e.Kind)
}

func TestDecodePayload(t *testing.T) {
	t.Parallel()

	d := NewDecoder(0)
	e := d.DecodePayload([]byte(" {\"average\": 1.5000, \"timeStamp\": 18446744073709551615}\n"))
	require.Equal(t, KindAggregate, e.Kind)
	assert.True(t, e.Stamped)
	assert.Equal(t, 1.5, e.Value)

	e = d.DecodePayload([]byte(`{"average": 2, "timeStamp": 1.5e6}`))
	require.Equal(t, KindAggregate, e.Kind)
	assert.Equal(t, 1.5, e.Time)

	e = d.DecodePayload([]byte(`{"average": 2, "timeStamp": -1}`))
	assert.Equal(t, KindMalformed, e.Kind)

	e = d.DecodePayload([]byte(`{"average": 1, "timeStamp": 1e30}`))
	require.Equal(t, KindMalformed, e.Kind)
	assert.True(t, errors.IsNotValid(errors.Cause(e.Err)))

	e = d.DecodePayload([]byte(`{"average": "x"`))
	require.Equal(t, KindMalformed, e.Kind)
	assert.True(t, errors.IsNotValid(errors.Cause(e.Err)))

	e = d.DecodePayload([]byte("#AGGREGATE:7"))
	assert.Equal(t, Event{Kind: KindAggregate, Value: 7}, e)
}

func TestDecoderCustomSentinels(t *testing.T) {
	t.Parallel()

	d := Decoder{RebootPrefix: "BOOT>", ComponentSentinel: "peak", BootChatter: []string{"rom "}}
	assert.Equal(t, KindReboot, d.Decode("BOOT> v2").Kind)
	assert.Equal(t, KindNone, d.Decode("[DEBUG] peak 5Hz").Kind)
	assert.Equal(t, KindLog, d.Decode("[DEBUG] Component 5Hz").Kind)
	assert.Equal(t, KindNone, d.Decode("rom boot").Kind)
	assert.Equal(t, KindMalformed, d.Decode("ESP-ROM:esp32").Kind)
}

func TestKindString(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "sample", KindSample.String())
	assert.Equal(t, "malformed", KindMalformed.String())
	assert.Equal(t, "Kind(200)", Kind(200).String())
	assert.Equal(t, "WARNING", LevelWarning.String())
}
