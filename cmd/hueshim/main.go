package main

import (
	"flag"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/dokzlo13/hueshim/internal/app"
	"github.com/dokzlo13/hueshim/internal/config"
)

func main() {
	// Support both -c and --config for config path
	var configPath string
	flag.StringVar(&configPath, "config", "config.yaml", "Path to configuration file")
	flag.StringVar(&configPath, "c", "config.yaml", "Path to configuration file (shorthand)")
	dataDir := flag.String("data", "", "Directory to store bridge data")
	hassURL := flag.String("url", "", "Home Assistant URL")
	hassToken := flag.String("token", "", "Home Assistant long-lived access token")
	httpPort := flag.Int("http-port", 0, "HTTP listen port")
	httpsPort := flag.Int("https-port", 0, "HTTPS listen port")
	useDefaultPorts := flag.Bool("use-default-ports-for-discovery", false,
		"Advertise ports 80/443 regardless of bound ports (reverse proxy setups)")
	verbose := flag.Bool("verbose", false, "Enable debug logging")
	flag.Parse()

	// Load configuration
	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	// Flags override the config file
	if *dataDir != "" {
		cfg.Bridge.DataDir = *dataDir
	}
	if *hassURL != "" {
		cfg.Hass.URL = *hassURL
	}
	if *hassToken != "" {
		cfg.Hass.Token = *hassToken
	}
	if *httpPort != 0 {
		cfg.Bridge.HTTPPort = *httpPort
	}
	if *httpsPort != 0 {
		cfg.Bridge.HTTPSPort = *httpsPort
	}
	if *useDefaultPorts {
		cfg.Bridge.UseDefaultPorts = true
	}
	if *verbose {
		cfg.Log.Level = "debug"
	}

	// Setup logging
	setupLogging(cfg.Log.GetLevel(), cfg.Log.JSON, cfg.Log.Colors)

	log.Info().Str("config", configPath).Msg("Starting hueshim")

	if err := os.MkdirAll(cfg.Bridge.DataDir, 0o755); err != nil {
		log.Fatal().Err(err).Str("dir", cfg.Bridge.DataDir).Msg("Failed to create data directory")
	}

	// Create application
	application, err := app.New(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create application")
	}

	// Create context that cancels on shutdown signal
	ctx := app.SignalContext()

	// Start the application
	if err := application.Start(ctx); err != nil {
		log.Fatal().Err(err).Msg("Failed to start application")
	}

	// Wait for shutdown
	application.Wait()

	// Graceful shutdown
	if err := application.Stop(); err != nil {
		log.Error().Err(err).Msg("Error during shutdown")
	}
}

func setupLogging(level string, useJSON bool, colors bool) {
	// ISO 8601 format with timezone
	zerolog.TimeFieldFormat = time.RFC3339

	if useJSON {
		// JSON output for production
		log.Logger = zerolog.New(os.Stderr).With().Timestamp().Logger()
	} else {
		// Text output (with optional colors)
		log.Logger = log.Output(zerolog.ConsoleWriter{
			Out:        os.Stderr,
			TimeFormat: "2006-01-02T15:04:05.000Z07:00",
			NoColor:    !colors,
		})
	}

	switch level {
	case "debug":
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	case "info":
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	case "warn":
		zerolog.SetGlobalLevel(zerolog.WarnLevel)
	case "error":
		zerolog.SetGlobalLevel(zerolog.ErrorLevel)
	default:
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}
}
