package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/tickbridge/tickbridge/command"
	"github.com/tickbridge/tickbridge/host"
	"github.com/tickbridge/tickbridge/internal/logging"
	"github.com/tickbridge/tickbridge/internal/stage"
	"github.com/tickbridge/tickbridge/protocol"
	"github.com/tickbridge/tickbridge/runner"
)

// report is the JSON document scriptcheck prints for one dry run.
type report struct {
	World       string            `json:"world"`
	Controller  string            `json:"controller"`
	Script      string            `json:"script"`
	ScriptID    string            `json:"script_id"`
	Duration    string            `json:"duration"`
	Diagnostics []string          `json:"diagnostics"`
	Stderr      string            `json:"stderr,omitempty"`
	Commands    []command.Command `json:"commands"`
}

func main() {
	worldPath := flag.String("world", "world.toml", "world file the script runs against")
	scriptPath := flag.String("script", "", "path to the script to check")
	controller := flag.String("controller", "", "controller whose view the script sees (default: first in world)")
	nodePath := flag.String("node", "", "runtime binary override")
	sdkRoot := flag.String("sdk", "", "bundled runtime tree root")
	timeout := flag.Duration("timeout", 5*time.Second, "invocation timeout")
	logLevel := flag.String("log-level", "", "log level override (trace|debug|info|warn|error)")
	flag.Parse()

	if *logLevel != "" {
		os.Setenv(logging.EnvLogLevel, *logLevel)
	}
	logging.ConfigureRuntime()

	if *scriptPath == "" {
		log.Fatal().Msg("script path required (-script)")
	}

	world, err := stage.Load(*worldPath)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load world file")
	}

	source, err := os.ReadFile(*scriptPath)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to read script")
	}

	name := *controller
	if name == "" {
		names := world.ControllerNames()
		if len(names) == 0 {
			log.Fatal().Str("world", *worldPath).Msg("world defines no controllers")
		}
		name = names[0]
	}
	if _, known := world.Controller(name); !known {
		log.Fatal().Str("controller", name).Msg("controller not defined in world")
	}

	inv, err := runner.NewEphemeral(runner.Config{
		NodePath: *nodePath,
		SDKRoot:  *sdkRoot,
		Timeout:  *timeout,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to build invoker")
	}
	defer inv.Close()

	start := time.Now()
	res, err := inv.Invoke(context.Background(), runner.Call{
		Script:  string(source),
		Context: host.BuildSnapshot(world, name, world.Input()),
	})
	if err != nil {
		log.Fatal().Err(err).Str("script", *scriptPath).Msg("script check failed")
	}

	out := report{
		World:       *worldPath,
		Controller:  name,
		Script:      *scriptPath,
		ScriptID:    protocol.ScriptID(string(source)),
		Duration:    time.Since(start).Round(time.Microsecond).String(),
		Diagnostics: splitLines(res.Diagnostics),
		Stderr:      strings.TrimSpace(res.Stderr),
		Commands:    res.Commands,
	}
	if out.Commands == nil {
		out.Commands = []command.Command{}
	}

	body, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		log.Fatal().Err(err).Msg("failed to encode report")
	}
	fmt.Println(string(body))
}

func splitLines(s string) []string {
	s = strings.TrimRight(s, "\n")
	if s == "" {
		return nil
	}
	return strings.Split(s, "\n")
}
