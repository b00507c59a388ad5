package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/roman-kulish/radio-telescope/cmd/telescope/app"
	"github.com/roman-kulish/radio-telescope/internal/sdr"
)

func main() {
	var logLevel slog.LevelVar
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: &logLevel}))

	var configPath, gainSpec string
	var useMock bool
	flag.StringVar(&configPath, "c", "", "Path to the configuration file")
	flag.BoolVar(&useMock, "mock", false, "Use the synthetic receiver instead of an RTL-SDR dongle")
	flag.StringVar(&gainSpec, "gain", "", "Receiver gain in dB, or 'auto' to search for the optimal gain")
	flag.Parse()

	if configPath == "" {
		logger.Error("no configuration file provided")
		os.Exit(1)
	}

	config, err := app.LoadConfig(configPath)
	if err != nil {
		logger.Error(fmt.Sprintf("failed to load configuration file: %s", err.Error()), slog.String("path", configPath))
		os.Exit(1)
	}

	if useMock {
		config.Device.Type = app.DeviceMock
	}
	if gainSpec != "" {
		if config.Calibration.Gain, err = sdr.ParseGain(gainSpec); err != nil {
			logger.Error(err.Error())
			os.Exit(1)
		}
	}

	if err = config.Validate(); err != nil {
		logger.Error(fmt.Sprintf("invalid configuration: %s", err.Error()), slog.String("path", configPath))
		os.Exit(1)
	}

	_ = logLevel.UnmarshalText([]byte(config.Settings.LogLevel))

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err = app.Run(ctx, config, logger); err != nil {
		logger.Error(err.Error())

		cancel()
		os.Exit(1)
	}
}
