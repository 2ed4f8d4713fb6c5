package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/c-bata/go-prompt"
	"github.com/juju/errors"
	"github.com/temoto/linescope/config"
	"github.com/temoto/linescope/helpers/cli"
	"github.com/temoto/linescope/log2"
	"github.com/temoto/linescope/monitor"
	"github.com/temoto/linescope/protocol"
)

var consoleSuggest = []prompt.Suggest{
	{Text: "#TS:", Description: "timestamped #SAMPLE or #AGGREGATE"},
	{Text: "#SAMPLE:", Description: "unstamped sample"},
	{Text: "#AGGREGATE:", Description: "window average"},
	{Text: "#SAMPLING_FREQ:", Description: "device sampling frequency, Hz"},
	{Text: "#COMPONENT:", Description: "frequency and magnitude"},
	{Text: "[INFO] ", Description: "device log line"},
	{Text: "[INFO] Entering deep sleep", Description: "sleep transition"},
	{Text: "ESP-ROM:", Description: "reboot"},
	{Text: `{"average": 0, "timeStamp": 0}`, Description: "MQTT payload"},
}

func consoleMain(ctx context.Context, cfg *config.Config) error {
	log := log2.ContextValueLogger(ctx)
	mc, err := cfg.MonitorConfig(protocol.KindSample)
	if err != nil {
		return errors.Annotate(err, "console")
	}
	m, err := monitor.New(mc, log, nil)
	if err != nil {
		return errors.Annotate(err, "console")
	}
	exec := func(line string) { consoleExec(os.Stdout, m, line) }
	complete := func(d prompt.Document) []prompt.Suggest {
		return prompt.FilterHasPrefix(consoleSuggest, d.TextBeforeCursor(), true)
	}
	return cli.MainLoop("linescope", os.Stdin, exec, complete)
}

// Decoder accepts JSON payload lines too.
func consoleExec(w io.Writer, m *monitor.Monitor, line string) {
	e := m.FeedLine(line)
	fmt.Fprintf(w, "%s\n%s\n", e.String(), summary(m.Snapshot()))
}

func summary(s monitor.Snapshot) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "mode=%s points=%d", s.Mode, len(s.Points))
	if p, ok := s.Latest(); ok {
		fmt.Fprintf(&sb, " latest=%.6f:%g", p.Time, p.Value)
	}
	if s.HasRate {
		fmt.Fprintf(&sb, " rate=%.2fHz", s.Rate)
	}
	if s.HasAggregate {
		fmt.Fprintf(&sb, " average=%.4f", s.Aggregate)
	}
	fmt.Fprintf(&sb, " log=%d malformed=%d epoch=%d", len(s.Log), s.Malformed, s.Epoch)
	return sb.String()
}
