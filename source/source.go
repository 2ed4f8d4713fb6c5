// Package source delivers device lines to the monitor.
// Serial reads text lines from a UART, MQTT receives JSON payloads.
// Each source calls its sink from one goroutine in arrival order.
package source

import (
	"bufio"
	"context"
	"io"
	"strings"
	"time"

	"github.com/juju/errors"
	"github.com/temoto/linescope/protocol"
)

const maxLineLength = 64 << 10

// *monitor.Monitor implements both sinks.
type LineSink interface {
	FeedLine(line string) protocol.Event
}
type PayloadSink interface {
	FeedPayload(payload []byte) protocol.Event
}

// ReadLines feeds sink until r returns EOF or error, or ctx is done.
// Trailing line without newline is delivered too. Returns nil on EOF.
// Line longer than maxLineLength is dropped, reading continues with next line.
func ReadLines(ctx context.Context, r io.Reader, sink LineSink) error {
	br := bufio.NewReaderSize(r, 4096)
	line := make([]byte, 0, 4096)
	skip := false
	for {
		chunk, err := br.ReadSlice('\n')
		if err == bufio.ErrBufferFull {
			if !skip {
				line = append(line, chunk...)
				if len(line) > maxLineLength+2 {
					skip, line = true, line[:0]
				}
			}
			continue
		}
		if err != nil && err != io.EOF {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}
			return errors.Trace(err)
		}
		if !skip {
			line = append(line, chunk...)
		}
		if len(line) > 0 || (err == nil && !skip) {
			text := strings.TrimRight(string(line), "\r\n")
			if len(text) <= maxLineLength {
				if ctxErr := ctx.Err(); ctxErr != nil {
					return ctxErr
				}
				sink.FeedLine(text)
			}
		}
		if err == io.EOF {
			return nil
		}
		skip, line = false, line[:0]
	}
}

// timeoutReader hides empty reads caused by port read timeout, so scanner
// keeps waiting for data and ctx is checked between reads.
// Empty read that returned much sooner than timeout means device is gone.
type timeoutReader struct {
	ctx     context.Context
	r       io.Reader
	timeout time.Duration
}

func (self timeoutReader) Read(b []byte) (int, error) {
	for {
		if err := self.ctx.Err(); err != nil {
			return 0, err
		}
		start := time.Now()
		n, err := self.r.Read(b)
		if n > 0 || self.timeout == 0 {
			return n, err
		}
		if err != nil && err != io.EOF {
			return 0, err
		}
		if time.Since(start) < self.timeout/2 {
			return 0, io.EOF
		}
	}
}
