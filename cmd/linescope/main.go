package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/coreos/go-systemd/daemon"
	"github.com/juju/errors"
	"github.com/temoto/alive/v2"
	"github.com/temoto/linescope/cmd/linescope/subcmd"
	"github.com/temoto/linescope/config"
	"github.com/temoto/linescope/log2"
)

const defaultConfigPath = "linescope.hcl"

var modules = []subcmd.Mod{
	{Name: "serial", Usage: "read device console from serial port", Main: serialMain},
	{Name: "mqtt", Usage: "subscribe to aggregate topic", Main: mqttMain},
	{Name: "console", Usage: "feed typed or piped lines", Main: consoleMain},
}

func main() {
	flagConfig := flag.String("config", defaultConfigPath, "HCL config file, default is optional")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "usage: linescope [-config %s] <%s>\n", defaultConfigPath, subcmd.Names(modules))
		for _, m := range modules {
			fmt.Fprintf(flag.CommandLine.Output(), "  %-8s %s\n", m.Name, m.Usage)
		}
		flag.PrintDefaults()
	}
	flag.Parse()

	log := log2.NewStderr(log2.LInfo)
	if subcmd.SdNotify(log, "start") {
		// under systemd, journal adds timestamps
		log.SetFlags(log2.LServiceFlags)
	} else {
		log.SetFlags(log2.LInteractiveFlags)
	}

	mod, err := subcmd.Parse(flag.Arg(0), modules)
	if err != nil {
		flag.Usage()
		log.Fatal(err)
	}

	explicitConfig := false
	flag.Visit(func(f *flag.Flag) { explicitConfig = explicitConfig || f.Name == "config" })
	fs, err := config.NewOsFullReader(".")
	if err != nil {
		log.Fatal(errors.ErrorStack(err))
	}
	cfg, err := config.ReadSources(log, fs, config.Source{Name: *flagConfig, Optional: !explicitConfig})
	if err != nil {
		log.Fatal(errors.ErrorStack(err))
	}
	if cfg.LogDebug {
		log.SetLevel(log2.LDebug)
	}

	a := alive.NewAlive()
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigs
		log.Infof("signal=%v stopping", sig)
		subcmd.SdNotify(log, daemon.SdNotifyStopping)
		a.Stop()
	}()

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		<-a.StopChan()
		cancel()
	}()
	ctx = log2.ContextWith(ctx, log)
	ctx = context.WithValue(ctx, aliveContextKey, a)

	err = mod.Main(ctx, cfg)
	a.Stop()
	a.Wait()
	if err != nil {
		log.Fatal(errors.ErrorStack(err))
	}
}
