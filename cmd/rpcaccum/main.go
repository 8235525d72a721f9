package main

import (
	"context"
	"encoding/json"
	"flag"
	"os"
	"time"

	"github.com/rs/zerolog"

	"rpcaccum/internal/accum"
	"rpcaccum/internal/config"
	"rpcaccum/internal/host"
	"rpcaccum/internal/jshost"
	"rpcaccum/internal/wirehost"
)

func main() {
	configPath := flag.String("config", "config.json", "path to config file")
	flag.Parse()

	cfg, err := config.LoadWithDefaults(*configPath)
	if err != nil {
		log := zerolog.New(os.Stderr).With().Timestamp().Logger()
		log.Fatal().Err(err).Msg("failed to load config")
	}

	logger := setupLogger(cfg.LogLevel)
	logger.Info().
		Str("config", *configPath).
		Str("hostUrl", cfg.HostURL).
		Msg("starting rpcaccum demo")

	conn, cleanup, err := connect(cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to host")
	}
	defer cleanup()

	ctx := context.Background()
	result, err := accum.Invoke(ctx, conn, demo,
		accum.WithLogger(logger),
		accum.WithSettleInterval(time.Duration(cfg.SettleIntervalMs)*time.Millisecond),
	)
	if err != nil {
		logger.Fatal().Err(err).Msg("invocation failed")
	}

	out, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to render result")
	}
	os.Stdout.Write(append(out, '\n'))
}

// demo issues a handful of calls: the first three are recorded in one tick
// and coalesce into a single round-trip; the final call depends on an
// awaited result and lands in a second round-trip.
func demo(h *accum.Helper) (interface{}, error) {
	greeting := h.Call("concat", "hello, ", "accumulated world")
	length, err := h.Call("strlen", "hello").Await(context.Background())
	if err != nil {
		return nil, err
	}

	return map[string]interface{}{
		"greeting": greeting,
		"length":   length,
		"index":    h.Call("stridx", "accumulate", "late"),
		"channel":  h.ChannelID(),
	}, nil
}

// connect builds the host connection: a WebSocket client when a host URL is
// configured, the in-process JavaScript host otherwise.
func connect(cfg *config.Config, logger zerolog.Logger) (host.Conn, func(), error) {
	if cfg.HostURL != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		client, err := wirehost.Dial(ctx, cfg.HostURL, logger)
		if err != nil {
			return nil, nil, err
		}
		return client, client.Close, nil
	}

	local, err := jshost.New(logger, cfg.ProgramCacheSize)
	if err != nil {
		return nil, nil, err
	}
	if err := local.LoadPlugins(cfg.PluginsDir); err != nil {
		return nil, nil, err
	}
	return local, func() {}, nil
}

// setupLogger configures the zerolog logger.
func setupLogger(level string) zerolog.Logger {
	var logLevel zerolog.Level
	switch level {
	case "debug":
		logLevel = zerolog.DebugLevel
	case "info":
		logLevel = zerolog.InfoLevel
	case "warn":
		logLevel = zerolog.WarnLevel
	case "error":
		logLevel = zerolog.ErrorLevel
	default:
		logLevel = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(logLevel)

	output := zerolog.ConsoleWriter{
		Out:        os.Stderr,
		TimeFormat: time.RFC3339,
	}
	return zerolog.New(output).With().Timestamp().Logger()
}
