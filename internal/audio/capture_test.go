package audio

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

// syntheticStrategy is a deterministic in-process capture source: it writes a
// fixed payload through the real WAV writer on Start and finalizes on Stop.
type syntheticStrategy struct {
	path    string
	payload []byte

	mu      sync.Mutex
	writer  *Writer
	stopped bool
}

func (s *syntheticStrategy) Describe() string { return "synthetic" }

func (s *syntheticStrategy) Start(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.writer = CreateWriter(s.path, nil).Negotiate(16000)
	return s.writer.Append(s.payload)
}

func (s *syntheticStrategy) Stop() CaptureEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return CaptureEvent{Path: s.path}
	}
	s.stopped = true
	total, _ := s.writer.Finalize()
	return CaptureEvent{Path: s.path, SampleRate: 16000, Bytes: total, Device: "synthetic"}
}

func syntheticFactory(payload []byte, record *[]*syntheticStrategy) StrategyFactory {
	return func(_ context.Context, _ string, destPath string, _ *slog.Logger) (Strategy, error) {
		s := &syntheticStrategy{path: destPath, payload: payload}
		*record = append(*record, s)
		return s, nil
	}
}

func TestRecorderStartStopEmitsOneEvent(t *testing.T) {
	dir := t.TempDir()
	var created []*syntheticStrategy
	var events []CaptureEvent

	rec := NewRecorder(RecorderOptions{
		Dir:        dir,
		OnFinished: func(ev CaptureEvent) { events = append(events, ev) },
		Factory:    syntheticFactory(make([]byte, 320), &created),
	})

	require.NoError(t, rec.Start(context.Background()))
	require.True(t, rec.Active())

	ev, ok := rec.Stop()
	require.True(t, ok)
	require.False(t, rec.Active())
	require.Equal(t, int64(320), ev.Bytes)
	require.Len(t, events, 1)
	require.Equal(t, ev.Path, events[0].Path)

	raw, err := os.ReadFile(ev.Path)
	require.NoError(t, err)
	require.Len(t, raw, 320+wavHeaderSize)
}

func TestRecorderStopWhileIdleIsNoop(t *testing.T) {
	var created []*syntheticStrategy
	rec := NewRecorder(RecorderOptions{
		Dir:     t.TempDir(),
		Factory: syntheticFactory(nil, &created),
	})

	_, ok := rec.Stop()
	require.False(t, ok)
	require.Empty(t, created)
}

func TestRecorderRestartFinalizesAbandonedSession(t *testing.T) {
	dir := t.TempDir()
	var created []*syntheticStrategy
	var events []CaptureEvent

	rec := NewRecorder(RecorderOptions{
		Dir:        dir,
		OnFinished: func(ev CaptureEvent) { events = append(events, ev) },
		Factory:    syntheticFactory(make([]byte, 640), &created),
	})

	require.NoError(t, rec.Start(context.Background()))
	require.NoError(t, rec.Start(context.Background()))
	require.Len(t, created, 2)

	// The first session was finalized when the second started, but it is
	// abandoned: no capture event may fire for it.
	require.True(t, created[0].stopped)
	require.Empty(t, events)

	ev, ok := rec.Stop()
	require.True(t, ok)
	require.Len(t, events, 1)
	require.Equal(t, created[1].path, ev.Path)

	// Both files exist and carry finalized headers.
	for _, s := range created {
		raw, err := os.ReadFile(s.path)
		require.NoError(t, err)
		require.Len(t, raw, 640+wavHeaderSize)
		require.Equal(t, "RIFF", string(raw[0:4]))
	}
}

func TestRecorderCreatesStagingDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "staging")
	var created []*syntheticStrategy

	rec := NewRecorder(RecorderOptions{
		Dir:     dir,
		Factory: syntheticFactory(nil, &created),
	})
	require.NoError(t, rec.Start(context.Background()))

	info, err := os.Stat(dir)
	require.NoError(t, err)
	require.True(t, info.IsDir())
	rec.Stop()
}

func TestMatchDeviceFromList(t *testing.T) {
	devices := []Device{
		{ID: "alsa_input.usb-mic", Description: "USB Microphone", Available: true},
		{ID: "alsa_input.internal", Description: "Built-in Audio", Available: true},
		{ID: "alsa_input.dock", Description: "Dock Jack", Available: false},
	}

	dev, ok, err := matchDeviceFromList(devices, "usb")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "alsa_input.usb-mic", dev.ID)

	_, ok, err = matchDeviceFromList(devices, "nonexistent")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestMatchDeviceFromListSkipsUnavailableDevices(t *testing.T) {
	devices := []Device{
		{ID: "alsa_input.dock", Description: "Dock Jack", Available: false},
		{ID: "alsa_input.dock-2", Description: "Dock Jack Rear", Available: true},
	}

	// An unplugged match degrades to no-match so capture can fall back to
	// the default source.
	_, ok, err := matchDeviceFromList(devices[:1], "dock")
	require.NoError(t, err)
	require.False(t, ok)

	// A later available device with the same term still wins.
	dev, ok, err := matchDeviceFromList(devices, "dock")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "alsa_input.dock-2", dev.ID)
}
