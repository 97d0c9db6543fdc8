package main

import (
	"flag"
	"os"
	"path/filepath"

	"github.com/juju/errors"
	console_cmd "github.com/windevs/sensornode/cmd/sensornode/console"
	node_cmd "github.com/windevs/sensornode/cmd/sensornode/node"
	"github.com/windevs/sensornode/cmd/sensornode/subcmd"
	"github.com/windevs/sensornode/internal/state"
	"github.com/windevs/sensornode/log2"
)

var modules = []subcmd.Mod{
	node_cmd.Mod,
	console_cmd.Mod,
}

// set by build script
var BuildVersion string = "unknown"

func main() {
	flagConfig := flag.String("config", "sensornode.hcl", "")
	flagLogDebug := flag.Bool("log-debug", false, "")
	flag.Parse()

	command := flag.Arg(0)
	if command == "" {
		command = "node"
	}
	mod, err := subcmd.Parse(command, modules)
	if err != nil {
		flag.Usage()
		os.Exit(1)
	}

	level := log2.LInfo
	if *flagLogDebug {
		level = log2.LDebug
	}
	log := log2.NewStderr(log2.Level(level))
	if subcmd.SdNotify("start") {
		// under systemd journal logging, remove timestamp
		log.SetFlags(log2.LServiceFlags)
	} else {
		log.SetFlags(log2.LInteractiveFlags)
	}
	log.Infof("sensornode command=%s", command)

	ctx, g := state.NewContext(log)
	g.BuildVersion = BuildVersion

	fs := state.NewOsFullReader()
	dir, name := filepath.Split(*flagConfig)
	fs.SetBase(dir)
	config := state.MustReadConfig(log, fs, name)

	if err := mod.Main(ctx, config); err != nil {
		g.Fatal(errors.Annotatef(err, "command=%s", command))
	}
	if g.RestartRequested() {
		// systemd Restart= policy brings the process back with the new
		// persisted configuration
		log.Infof("exit for restart")
	}
}
