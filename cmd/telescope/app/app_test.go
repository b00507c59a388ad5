package app

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockConfig(t *testing.T) *Config {
	t.Helper()

	seed := uint64(1420)
	config := NewConfig()
	config.Device.Type = DeviceMock
	config.Device.Mock.Seed = &seed
	config.Spectrum = testRecording
	require.NoError(t, config.Validate())

	return config
}

func TestRun_Mock(t *testing.T) {
	var out bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&out, nil))

	err := run(context.Background(), newMockConfig(t), logger, strings.NewReader("\n"))
	require.NoError(t, err)

	log := out.String()
	assert.Contains(t, log, "telescope prepared")
	assert.Contains(t, log, "observation peak")
	assert.Contains(t, log, "session=")
	assert.Contains(t, log, "device=mock")
}

func TestRun_NoWait(t *testing.T) {
	config := newMockConfig(t)
	config.Observation.Wait = false

	var out bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&out, nil))

	// the reader would fail the run if it were consumed
	require.NoError(t, run(context.Background(), config, logger, failingReader{}))
	assert.Contains(t, out.String(), "observation peak")
}

func TestWaitForOperator(t *testing.T) {
	require.NoError(t, waitForOperator(context.Background(), strings.NewReader("\n")))
	require.NoError(t, waitForOperator(context.Background(), strings.NewReader("")), "closed input confirms")
	assert.Error(t, waitForOperator(context.Background(), failingReader{}))

	reader, writer := io.Pipe()
	defer writer.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	assert.ErrorIs(t, waitForOperator(ctx, reader), context.DeadlineExceeded)
}

func TestRun_UnknownDevice(t *testing.T) {
	config := NewConfig()
	config.Device.Type = "hackrf"

	err := run(context.Background(), config, slog.New(slog.NewTextHandler(io.Discard, nil)), strings.NewReader(""))
	assert.Error(t, err)
}

// failingReader is a reader that always fails
type failingReader struct{}

func (failingReader) Read([]byte) (int, error) {
	return 0, io.ErrUnexpectedEOF
}
