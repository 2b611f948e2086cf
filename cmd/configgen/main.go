package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/tickbridge/tickbridge/internal/stage"
	"github.com/tickbridge/tickbridge/scriptstore"
)

func main() {
	kind := flag.String("kind", "bridge", "template kind: bridge|world|scripts")
	output := flag.String("output", "", "output path for the template (defaults per kind)")
	validate := flag.Bool("validate", false, "validate an existing file instead of writing")
	input := flag.String("input", "", "path for validation (defaults to per-kind output path)")
	force := flag.Bool("force", false, "overwrite an existing file")
	flag.Parse()

	if *validate {
		path := *input
		if path == "" {
			path = defaultPath(*kind)
		}
		switch *kind {
		case "bridge":
			if err := validateBridgeFile(path); err != nil {
				log.Fatal(err)
			}
		case "world":
			world, err := stage.Load(path)
			if err != nil {
				log.Fatal(err)
			}
			log.Printf("world has scenes %v and controllers %v",
				world.SceneNames(), world.ControllerNames())
		case "scripts":
			store, err := scriptstore.Open(path)
			if err != nil {
				log.Fatal(err)
			}
			defer store.Close()
			log.Printf("scripts: %v", store.Names())
		default:
			log.Fatalf("unknown kind: %s", *kind)
		}
		log.Printf("Validated %s at %s", *kind, path)
		return
	}

	body, err := Template(*kind)
	if err != nil {
		log.Fatal(err)
	}
	target := *output
	if target == "" {
		target = defaultPath(*kind)
	}
	file := targetFile(*kind, target)

	mode := os.FileMode(0o600)
	if *kind == "scripts" {
		mode = 0o644
	}
	if err := writeTemplate(file, body, mode, *force); err != nil {
		log.Fatal(err)
	}
	log.Printf("Wrote %s template to %s", *kind, file)
}

// bridgeFile mirrors the keys bridgectl reads. The daemon stays the
// authority on semantics at boot; this check adds what it skips, flagging
// keys the daemon would silently ignore.
type bridgeFile struct {
	ID           string   `toml:"id"`
	World        string   `toml:"world"`
	Scripts      string   `toml:"scripts"`
	Mode         string   `toml:"mode"`
	TickRate     float64  `toml:"tick_rate"`
	AdminAddr    string   `toml:"admin_addr"`
	CorsOrigins  []string `toml:"cors_origins"`
	NodePath     string   `toml:"node_path"`
	SDKRoot      string   `toml:"sdk_root"`
	Timeout      string   `toml:"timeout"`
	WatchScripts bool     `toml:"watch_scripts"`
}

func validateBridgeFile(path string) error {
	var raw bridgeFile
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return err
	}
	if extra := meta.Undecoded(); len(extra) > 0 {
		names := make([]string, 0, len(extra))
		for _, key := range extra {
			names = append(names, key.String())
		}
		return fmt.Errorf("unknown keys: %s", strings.Join(names, ", "))
	}
	if meta.IsDefined("mode") {
		switch strings.TrimSpace(raw.Mode) {
		case "worker", "ephemeral":
		default:
			return fmt.Errorf("unknown mode %q (want worker or ephemeral)", raw.Mode)
		}
	}
	if raw.TickRate < 0 {
		return fmt.Errorf("tick_rate cannot be negative")
	}
	if meta.IsDefined("timeout") {
		if _, err := time.ParseDuration(strings.TrimSpace(raw.Timeout)); err != nil {
			return fmt.Errorf("parse timeout: %w", err)
		}
	}
	return nil
}
