package main

import (
	"flag"
	"os"

	"github.com/rs/zerolog/log"

	"github.com/tickbridge/tickbridge/internal/logging"
)

func main() {
	configPath := flag.String("config", "", "path to bridge config TOML")
	logLevel := flag.String("log-level", "", "log level override (trace|debug|info|warn|error)")
	flag.Parse()

	if *logLevel != "" {
		os.Setenv(logging.EnvLogLevel, *logLevel)
	}
	logging.ConfigureRuntime()

	cfg := defaultServiceConfig()
	if *configPath != "" {
		loaded, err := loadServiceConfig(*configPath)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to load bridge config")
		}
		cfg = loaded
		log.Info().Str("path", *configPath).Msg("loaded bridge config")
	}

	if err := newService(cfg).Run(); err != nil {
		log.Fatal().Err(err).Msg("bridge stopped")
	}
}
