// Package render draws monitor snapshots as text frames on a terminal.
package render

import (
	"context"
	"fmt"
	"io"
	"math"
	"os"
	"strings"
	"time"

	"github.com/juju/errors"
	"github.com/temoto/linescope/helpers"
	"github.com/temoto/linescope/monitor"
	"github.com/temoto/linescope/series"
	"golang.org/x/term"
)

const (
	colorRed    = "\033[0;31m"
	colorYellow = "\033[1;33m"
	colorBold   = "\033[1m"
	colorDim    = "\033[2m"
	colorReset  = "\033[0m"

	defaultWidth  = 80
	defaultHeight = 24
	minPlotHeight = 5
	labelWidth    = 10

	defaultInterval = 200 * time.Millisecond
)

var sparkLevels = []rune("▁▂▃▄▅▆▇█")

type Options struct {
	Title    string
	Interval time.Duration
	// ANSI enables cursor control and colors, default on terminal.
	ANSI bool
	// Zero means terminal size, or 80x24 when output is not a terminal.
	Width  int
	Height int
}

type Renderer struct {
	w    io.Writer
	fd   int
	opts Options
}

func New(w io.Writer, opts Options) *Renderer {
	self := &Renderer{w: w, fd: -1, opts: opts}
	if f, ok := w.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		self.fd = int(f.Fd())
		self.opts.ANSI = true
	}
	if self.opts.Title == "" {
		self.opts.Title = "linescope"
	}
	if self.opts.Interval <= 0 {
		self.opts.Interval = defaultInterval
	}
	return self
}

func (self *Renderer) size() (int, int) {
	w, h := self.opts.Width, self.opts.Height
	if self.fd >= 0 && (w == 0 || h == 0) {
		if tw, th, err := term.GetSize(self.fd); err == nil {
			if w == 0 {
				w = tw
			}
			if h == 0 {
				h = th
			}
		}
	}
	if w <= labelWidth+2 {
		w = defaultWidth
	}
	if h <= 0 {
		h = defaultHeight
	}
	return w, h
}

// Run draws a frame every Interval until ctx is done or output fails.
// stale may be nil.
func (self *Renderer) Run(ctx context.Context, snapshot func() monitor.Snapshot, stale func() bool) error {
	if self.opts.ANSI {
		fmt.Fprint(self.w, "\033[?25l\033[2J")
		defer fmt.Fprint(self.w, "\033[?25h\n")
	}
	tick := time.NewTicker(self.opts.Interval)
	defer tick.Stop()
	for ctx.Err() == nil {
		isStale := stale != nil && stale()
		if err := helpers.WriteAll(self.w, []byte(self.Frame(snapshot(), isStale))); err != nil {
			return errors.Annotate(err, "render write")
		}
		select {
		case <-ctx.Done():
			return nil
		case <-tick.C:
		}
	}
	return nil
}

// Frame is pure function of snapshot and terminal size.
func (self *Renderer) Frame(s monitor.Snapshot, stale bool) string {
	width, height := self.size()
	var sb strings.Builder
	if self.opts.ANSI {
		sb.WriteString("\033[H")
	}

	self.header(&sb, &s)
	if stale {
		self.colored(&sb, colorYellow, "No data received")
		sb.WriteString(self.eol())
	}

	// title, status and log title lines
	fixed := 3 + len(s.Log)
	if stale {
		fixed++
	}
	if len(s.Spectrum) != 0 {
		fixed++
	}
	if len(s.Components) != 0 {
		fixed++
	}
	plotHeight := height - fixed
	if plotHeight < minPlotHeight {
		plotHeight = minPlotHeight
	}
	for _, row := range plotRows(s.Points, width-labelWidth, plotHeight) {
		sb.WriteString(row)
		sb.WriteString(self.eol())
	}

	if len(s.Spectrum) != 0 {
		sb.WriteString("Spectrum  ")
		sb.WriteString(sparkline(s.Spectrum, width-labelWidth))
		sb.WriteString(self.eol())
	}
	if len(s.Components) != 0 {
		sb.WriteString("Components:")
		for _, c := range s.Components {
			fmt.Fprintf(&sb, " %.2f Hz (%.2f)", c.Frequency, c.Magnitude)
		}
		sb.WriteString(self.eol())
	}

	sb.WriteString("Log:")
	sb.WriteString(self.eol())
	for _, line := range s.Log {
		if len(line) > width {
			line = line[:width]
		}
		if s.Alert {
			self.colored(&sb, colorRed, line)
		} else {
			sb.WriteString(line)
		}
		sb.WriteString(self.eol())
	}
	if self.opts.ANSI {
		sb.WriteString("\033[J")
	}
	return sb.String()
}

func (self *Renderer) header(sb *strings.Builder, s *monitor.Snapshot) {
	title := fmt.Sprintf("%s  mode=%s  points=%d", self.opts.Title, s.Mode, len(s.Points))
	self.colored(sb, colorBold, title)
	sb.WriteString(self.eol())

	if s.HasRate {
		fmt.Fprintf(sb, "Rate: %.2f Hz", s.Rate)
	} else {
		sb.WriteString("Rate: --")
	}
	if s.HasInterval {
		fmt.Fprintf(sb, "  Avg Δt: %.1f ms", float64(s.MeanInterval)/float64(time.Millisecond))
	} else {
		sb.WriteString("  Avg Δt: --")
	}
	if s.HasAggregate {
		fmt.Fprintf(sb, "  Average: %.4f", s.Aggregate)
	} else {
		sb.WriteString("  Average: --")
	}
	if s.SamplingHz > 0 {
		fmt.Fprintf(sb, "  Fs: %.2f Hz", s.SamplingHz)
	}
	if s.Malformed > 0 {
		fmt.Fprintf(sb, "  malformed=%d", s.Malformed)
	}
	sb.WriteString(self.eol())
}

func (self *Renderer) colored(sb *strings.Builder, color, s string) {
	if !self.opts.ANSI {
		sb.WriteString(s)
		return
	}
	sb.WriteString(color)
	sb.WriteString(s)
	sb.WriteString(colorReset)
}

// eol clears rest of previous frame's longer line.
func (self *Renderer) eol() string {
	if self.opts.ANSI {
		return "\033[K\n"
	}
	return "\n"
}

// YLimits are symmetric around zero and never empty.
func YLimits(points []series.Point) float64 {
	lim := 0.0
	for _, p := range points {
		lim = math.Max(lim, math.Abs(p.Value))
	}
	if lim == 0 {
		return 1
	}
	return lim
}

// plotRows draws points scaled to [first, last] time on x and symmetric limits on y.
// Each row is prefixed with value axis label.
func plotRows(points []series.Point, width, height int) []string {
	grid := plotGrid(points, width, height)
	lim := YLimits(points)
	rows := make([]string, height)
	for i, line := range grid {
		label := ""
		switch i {
		case 0:
			label = fmt.Sprintf("%8.3f", lim)
		case height / 2:
			label = fmt.Sprintf("%8.3f", 0.0)
		case height - 1:
			label = fmt.Sprintf("%8.3f", -lim)
		}
		rows[i] = fmt.Sprintf("%8s |%s", label, line)
	}
	if len(points) == 0 && height > 0 {
		rows[height/2] = fmt.Sprintf("%8s |%s", "", centered("(no data)", width))
	}
	return rows
}

func plotGrid(points []series.Point, width, height int) []string {
	if width < 1 || height < 1 {
		return nil
	}
	grid := make([][]rune, height)
	zero := height / 2
	for i := range grid {
		fill := ' '
		if i == zero {
			fill = '-'
		}
		grid[i] = []rune(strings.Repeat(string(fill), width))
	}
	if len(points) != 0 {
		lim := YLimits(points)
		t0, t1 := points[0].Time, points[len(points)-1].Time
		span := t1 - t0
		for _, p := range points {
			col := width - 1
			if span > 0 {
				col = int(math.Round((p.Time - t0) / span * float64(width-1)))
			}
			row := int(math.Round((lim - p.Value) / (2 * lim) * float64(height-1)))
			grid[row][col] = '*'
		}
	}
	out := make([]string, height)
	for i, r := range grid {
		out[i] = string(r)
	}
	return out
}

// sparkline scales bins to max and squeezes them into width by taking maximum per cell.
func sparkline(bins []float64, width int) string {
	if len(bins) == 0 || width < 1 {
		return ""
	}
	cells := len(bins)
	if cells > width {
		cells = width
	}
	values := make([]float64, cells)
	for i, v := range bins {
		c := i * cells / len(bins)
		values[c] = math.Max(values[c], math.Abs(v))
	}
	max := 0.0
	for _, v := range values {
		max = math.Max(max, v)
	}
	out := make([]rune, cells)
	for i, v := range values {
		level := 0
		if max > 0 {
			level = int(math.Round(v / max * float64(len(sparkLevels)-1)))
		}
		out[i] = sparkLevels[level]
	}
	return string(out)
}

func centered(s string, width int) string {
	if len(s) >= width {
		return s[:width]
	}
	pad := (width - len(s)) / 2
	return strings.Repeat(" ", pad) + s + strings.Repeat(" ", width-pad-len(s))
}
