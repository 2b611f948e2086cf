package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

// serviceConfig is the resolved bridgectl runtime configuration.
type serviceConfig struct {
	ID           string
	WorldPath    string
	ScriptsDir   string
	Mode         string
	TickRate     float64
	AdminAddr    string
	CorsOrigins  []string
	NodePath     string
	SDKRoot      string
	Timeout      time.Duration
	WatchScripts bool
}

const (
	modeWorker    = "worker"
	modeEphemeral = "ephemeral"
)

func defaultServiceConfig() serviceConfig {
	return serviceConfig{
		ID:         "bridge.local",
		WorldPath:  "world.toml",
		ScriptsDir: "scripts",
		Mode:       modeWorker,
		Timeout:    5 * time.Second,
	}
}

type fileConfig struct {
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

func loadServiceConfig(path string) (serviceConfig, error) {
	cfg := defaultServiceConfig()

	var raw fileConfig
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return serviceConfig{}, fmt.Errorf("load bridge config: %w", err)
	}

	if meta.IsDefined("id") {
		if id := strings.TrimSpace(raw.ID); id != "" {
			cfg.ID = id
		}
	}
	if meta.IsDefined("world") {
		cfg.WorldPath = strings.TrimSpace(raw.World)
	}
	if meta.IsDefined("scripts") {
		cfg.ScriptsDir = strings.TrimSpace(raw.Scripts)
	}
	if meta.IsDefined("mode") {
		cfg.Mode = strings.TrimSpace(raw.Mode)
	}
	if meta.IsDefined("tick_rate") {
		cfg.TickRate = raw.TickRate
	}
	if meta.IsDefined("admin_addr") {
		cfg.AdminAddr = strings.TrimSpace(raw.AdminAddr)
	}
	if meta.IsDefined("cors_origins") {
		cfg.CorsOrigins = normalizeOrigins(raw.CorsOrigins)
	}
	if meta.IsDefined("node_path") {
		cfg.NodePath = strings.TrimSpace(raw.NodePath)
	}
	if meta.IsDefined("sdk_root") {
		cfg.SDKRoot = strings.TrimSpace(raw.SDKRoot)
	}
	if meta.IsDefined("timeout") {
		d, err := time.ParseDuration(strings.TrimSpace(raw.Timeout))
		if err != nil {
			return serviceConfig{}, fmt.Errorf("parse timeout: %w", err)
		}
		cfg.Timeout = d
	}
	if meta.IsDefined("watch_scripts") {
		cfg.WatchScripts = raw.WatchScripts
	}

	if err := validateServiceConfig(cfg); err != nil {
		return serviceConfig{}, err
	}
	return cfg, nil
}

func validateServiceConfig(cfg serviceConfig) error {
	switch cfg.Mode {
	case modeWorker, modeEphemeral:
	default:
		return fmt.Errorf("unknown mode %q (want %s or %s)", cfg.Mode, modeWorker, modeEphemeral)
	}
	if cfg.WorldPath == "" {
		return fmt.Errorf("world file path required")
	}
	if cfg.ScriptsDir == "" {
		return fmt.Errorf("scripts directory required")
	}
	if cfg.TickRate < 0 {
		return fmt.Errorf("tick_rate cannot be negative")
	}
	return nil
}

func normalizeOrigins(in []string) []string {
	out := make([]string, 0, len(in))
	for _, origin := range in {
		if v := strings.TrimSpace(origin); v != "" {
			out = append(out, v)
		}
	}
	return out
}
