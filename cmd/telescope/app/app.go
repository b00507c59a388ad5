package app

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
)

// Run prepares the telescope, waits for the operator to connect the antenna and
// records one normalized observation.
func Run(ctx context.Context, config *Config, logger *slog.Logger) error {
	return run(ctx, config, logger, os.Stdin)
}

func run(ctx context.Context, config *Config, logger *slog.Logger, input io.Reader) error {
	factory, err := config.Device.Factory()
	if err != nil {
		return err
	}

	logger = logger.With(
		slog.String("session", uuid.NewString()),
		slog.String("device", config.Device.Type),
	)
	logger.Info("starting observing session",
		slog.String("sampleRate", humanize.SIWithDigits(config.Device.SampleRate, 3, "S/s")),
		slog.String("centerFrequency", humanize.SIWithDigits(config.Device.CenterFrequency, 6, "Hz")),
		slog.String("gain", config.Calibration.Gain.String()),
		slog.Int("fftSize", config.Spectrum.FFTSize),
		slog.String("numSamples", humanize.Comma(int64(config.Spectrum.NumSamples))),
	)

	session := NewSession(factory, config.Calibration.Gain,
		WithCalibration(config.Calibration.Config),
		WithRecording(config.Spectrum),
		WithStatus(func(msg string) {
			logger.Info(msg)
		}),
	)

	logger.Info("prepare the telescope: terminate the receiver input or point the antenna at an empty patch of sky")
	if err = session.Prepare(ctx); err != nil {
		return fmt.Errorf("preparing telescope: %w", err)
	}

	gain, _ := session.Gain()
	logger.Info("telescope prepared", slog.Float64("gain", gain))

	if config.Observation.Wait {
		logger.Info("remove the RF termination, connect the antenna and press Enter to observe")
		if err = waitForOperator(ctx, input); err != nil {
			return err
		}
	}

	observation, err := session.Observe(ctx)
	if err != nil {
		return fmt.Errorf("observing: %w", err)
	}

	frequency, offset, velocity := observation.Peak()
	logger.Info("observation peak",
		slog.String("frequency", humanize.SIWithDigits(frequency, 6, "Hz")),
		slog.String("offset", humanize.SIWithDigits(offset, 3, "Hz")),
		slog.String("radialVelocity", humanize.SIWithDigits(velocity, 2, "m/s")),
		slog.Int("bins", observation.Normalized.Len()),
	)

	return nil
}

// waitForOperator blocks until a line is read from input or ctx is cancelled.
// A closed input counts as confirmation.
func waitForOperator(ctx context.Context, input io.Reader) error {
	done := make(chan error, 1)
	go func() {
		_, err := bufio.NewReader(input).ReadString('\n')
		done <- err
	}()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case err := <-done:
		if err != nil && !errors.Is(err, io.EOF) {
			return fmt.Errorf("waiting for operator: %w", err)
		}
		return nil
	}
}
