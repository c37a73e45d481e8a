package audio

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jfreymuth/pulse"
	pulseproto "github.com/jfreymuth/pulse/proto"
)

const (
	// 20ms fragments keep per-callback work small relative to delivery cadence.
	fragmentBytesNamed   = 1280 // 16kHz mono float32 -> 20ms is 1280 bytes
	fragmentBytesDefault = 3840 // 48kHz stereo s16 -> 20ms is 3840 bytes

	namedSampleRate = 16000
)

// CaptureEvent is emitted exactly once per finished capture session, after
// the WAV writer has been finalized.
type CaptureEvent struct {
	Path       string
	SampleRate int
	Bytes      int64
	Device     string
	StartedAt  time.Time
	FinishedAt time.Time
}

// Strategy is one way of obtaining audio frames from hardware. A strategy
// owns its device lifecycle and its WAV writer; Stop tears both down and
// reports the finalized capture.
type Strategy interface {
	Start(ctx context.Context) error
	Stop() CaptureEvent
	Describe() string
}

// StrategyFactory builds a strategy for one capture session targeting destPath.
type StrategyFactory func(ctx context.Context, preferred, destPath string, logger *slog.Logger) (Strategy, error)

// RecorderOptions configures a Recorder.
type RecorderOptions struct {
	// Dir is the staging directory for capture files before the pipeline
	// relocates them into a session directory.
	Dir string
	// Preferred is the user's device preference; empty or "default" selects
	// the default-device strategy.
	Preferred string
	Logger    *slog.Logger
	// OnFinished receives the capture event for each stopped session.
	OnFinished func(CaptureEvent)
	// Factory overrides strategy construction; nil selects the Pulse
	// strategies. Tests inject synthetic strategies here.
	Factory StrategyFactory
}

// Recorder owns at most one active capture session at a time.
type Recorder struct {
	dir        string
	preferred  string
	logger     *slog.Logger
	onFinished func(CaptureEvent)
	factory    StrategyFactory

	mu     sync.Mutex
	active Strategy
}

// NewRecorder constructs a recorder; no hardware is touched until Start.
func NewRecorder(opts RecorderOptions) *Recorder {
	factory := opts.Factory
	if factory == nil {
		factory = newPulseStrategy
	}
	return &Recorder{
		dir:        opts.Dir,
		preferred:  opts.Preferred,
		logger:     opts.Logger,
		onFinished: opts.OnFinished,
		factory:    factory,
	}
}

// Active reports whether a capture session is currently running.
func (r *Recorder) Active() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.active != nil
}

// Start begins a new capture session. Starting while a session is active
// first fully stops and finalizes the previous session; its abandoned file
// does not produce a capture event.
func (r *Recorder) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.active != nil {
		abandoned := r.active.Stop()
		r.active = nil
		if r.logger != nil {
			r.logger.Warn("capture restarted; previous session abandoned", "path", abandoned.Path)
		}
	}

	if err := os.MkdirAll(r.dir, 0o700); err != nil {
		return fmt.Errorf("create capture dir %q: %w", r.dir, err)
	}
	path := filepath.Join(r.dir, fmt.Sprintf("capture-%s-%s.wav",
		time.Now().Format("20060102-150405"), uuid.NewString()[:8]))

	strategy, err := r.factory(ctx, r.preferred, path, r.logger)
	if err != nil {
		return err
	}
	if err := strategy.Start(ctx); err != nil {
		named, ok := strategy.(*namedStrategy)
		if !ok {
			return err
		}
		if r.logger != nil {
			r.logger.Warn("named device capture failed; falling back to default source",
				"device", named.device.ID, "error", err.Error())
		}
		fallback := &defaultStrategy{path: path, logger: r.logger}
		if err := fallback.Start(ctx); err != nil {
			return err
		}
		strategy = fallback
	}

	if r.logger != nil {
		r.logger.Info("capture started", "strategy", strategy.Describe(), "path", path)
	}
	r.active = strategy
	return nil
}

// Stop tears down the active session, finalizes its writer, and emits
// exactly one capture event. Stopping while idle is a no-op.
func (r *Recorder) Stop() (CaptureEvent, bool) {
	r.mu.Lock()
	strategy := r.active
	r.active = nil
	r.mu.Unlock()

	if strategy == nil {
		return CaptureEvent{}, false
	}

	event := strategy.Stop()
	if r.logger != nil {
		r.logger.Info("capture finished",
			"path", event.Path,
			"bytes", event.Bytes,
			"sample_rate", event.SampleRate,
			"device", event.Device,
		)
	}
	if r.onFinished != nil {
		r.onFinished(event)
	}
	return event, true
}

// newPulseStrategy selects the named-device strategy when the preference
// matches a live device, falling back to the default-device strategy.
func newPulseStrategy(ctx context.Context, preferred, destPath string, logger *slog.Logger) (Strategy, error) {
	device, matched, err := MatchDevice(ctx, preferred)
	if err != nil {
		return nil, err
	}
	if matched {
		return &namedStrategy{device: device, path: destPath, logger: logger}, nil
	}
	term := strings.TrimSpace(strings.ToLower(preferred))
	if term != "" && term != "default" && logger != nil {
		logger.Warn("preferred audio input not available; using default source", "device", preferred)
	}
	return &defaultStrategy{path: destPath, logger: logger}, nil
}

// writerFunc adapts a function to io.Writer for pulse.NewWriter.
type writerFunc func([]byte) (int, error)

func (f writerFunc) Write(b []byte) (int, error) {
	return f(b)
}

// defaultStrategy taps the system default source at its negotiated native
// rate. The sample rate is only known once the record stream exists, so the
// WAV format negotiation is deferred until then.
type defaultStrategy struct {
	path   string
	logger *slog.Logger

	client *pulse.Client
	stream *pulse.RecordStream

	mu        sync.Mutex
	writer    *Writer
	stopped   bool
	startedAt time.Time
}

func (s *defaultStrategy) Describe() string { return "default-device" }

func (s *defaultStrategy) Start(ctx context.Context) error {
	client, err := pulse.NewClient(
		pulse.ClientApplicationName("koememo"),
		pulse.ClientApplicationIconName("audio-input-microphone"),
	)
	if err != nil {
		return fmt.Errorf("connect pulse server: %w", err)
	}

	source, err := client.DefaultSource()
	if err != nil {
		client.Close()
		return fmt.Errorf("resolve default source: %w", err)
	}

	pending := CreateWriter(s.path, s.logger)
	stream, err := client.NewRecord(
		pulse.NewWriter(writerFunc(s.onPCM), pulseproto.FormatInt16LE),
		pulse.RecordSource(source),
		pulse.RecordStereo,
		pulse.RecordBufferFragmentSize(fragmentBytesDefault),
		pulse.RecordMediaName("koememo capture"),
	)
	if err != nil {
		pending.Abort()
		client.Close()
		return fmt.Errorf("create pulse record stream: %w", err)
	}

	s.mu.Lock()
	s.writer = pending.Negotiate(stream.SampleRate())
	s.startedAt = time.Now()
	s.mu.Unlock()

	s.client = client
	s.stream = stream
	stream.Start()
	return nil
}

// onPCM runs in the pulse delivery context; it must stay quick and never
// block on the rest of the pipeline.
func (s *defaultStrategy) onPCM(buffer []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped {
		return 0, io.EOF
	}
	if s.writer == nil || len(buffer) == 0 {
		return len(buffer), nil
	}
	_ = s.writer.Append(EncodeInt16(BytesToInt16(buffer), 2))
	return len(buffer), nil
}

func (s *defaultStrategy) Stop() CaptureEvent {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return CaptureEvent{Path: s.path}
	}
	s.stopped = true
	writer := s.writer
	startedAt := s.startedAt
	s.mu.Unlock()

	if s.stream != nil {
		s.stream.Stop()
		s.stream.Close()
	}
	if s.client != nil {
		s.client.Close()
	}

	event := CaptureEvent{
		Path:       s.path,
		Device:     "default source",
		StartedAt:  startedAt,
		FinishedAt: time.Now(),
	}
	if writer != nil {
		total, err := writer.Finalize()
		if err != nil && s.logger != nil {
			s.logger.Warn("finalize capture failed", "path", s.path, "error", err.Error())
		}
		event.Bytes = total
		event.SampleRate = writer.SampleRate()
	}
	return event
}

// namedStrategy opens an explicit capture connection to the requested device
// with a forced format (float32, mono, 16kHz) so no per-buffer negotiation
// is needed.
type namedStrategy struct {
	device Device
	path   string
	logger *slog.Logger

	client *pulse.Client
	stream *pulse.RecordStream

	mu        sync.Mutex
	writer    *Writer
	stopped   bool
	startedAt time.Time
}

func (s *namedStrategy) Describe() string { return "named-device" }

func (s *namedStrategy) Start(ctx context.Context) error {
	client, err := pulse.NewClient(
		pulse.ClientApplicationName("koememo"),
		pulse.ClientApplicationIconName("audio-input-microphone"),
	)
	if err != nil {
		return fmt.Errorf("connect pulse server: %w", err)
	}

	source, err := client.SourceByID(s.device.ID)
	if err != nil {
		client.Close()
		return fmt.Errorf("resolve source %q: %w", s.device.ID, err)
	}

	pending := CreateWriter(s.path, s.logger)
	stream, err := client.NewRecord(
		pulse.NewWriter(writerFunc(s.onPCM), pulseproto.FormatFloat32LE),
		pulse.RecordSource(source),
		pulse.RecordMono,
		pulse.RecordSampleRate(namedSampleRate),
		pulse.RecordBufferFragmentSize(fragmentBytesNamed),
		pulse.RecordMediaName("koememo capture"),
	)
	if err != nil {
		pending.Abort()
		client.Close()
		return fmt.Errorf("create pulse record stream for %q: %w", s.device.ID, err)
	}

	s.mu.Lock()
	s.writer = pending.Negotiate(namedSampleRate)
	s.startedAt = time.Now()
	s.mu.Unlock()

	s.client = client
	s.stream = stream
	stream.Start()
	return nil
}

func (s *namedStrategy) onPCM(buffer []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped {
		return 0, io.EOF
	}
	if s.writer == nil || len(buffer) == 0 {
		return len(buffer), nil
	}
	_ = s.writer.Append(EncodeFloat32(BytesToFloat32(buffer), 1))
	return len(buffer), nil
}

func (s *namedStrategy) Stop() CaptureEvent {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return CaptureEvent{Path: s.path}
	}
	s.stopped = true
	writer := s.writer
	startedAt := s.startedAt
	s.mu.Unlock()

	if s.stream != nil {
		s.stream.Stop()
		s.stream.Close()
	}
	if s.client != nil {
		s.client.Close()
	}

	event := CaptureEvent{
		Path:       s.path,
		Device:     DescribeDevice(s.device),
		StartedAt:  startedAt,
		FinishedAt: time.Now(),
	}
	if writer != nil {
		total, err := writer.Finalize()
		if err != nil && s.logger != nil {
			s.logger.Warn("finalize capture failed", "path", s.path, "error", err.Error())
		}
		event.Bytes = total
		event.SampleRate = writer.SampleRate()
	}
	return event
}
