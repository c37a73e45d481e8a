package app

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/koememo/koememo/internal/audio"
	"github.com/koememo/koememo/internal/config"
	"github.com/koememo/koememo/internal/fsm"
	"github.com/koememo/koememo/internal/ipc"
	"github.com/koememo/koememo/internal/pipeline"
	"github.com/koememo/koememo/internal/session"
)

type stubTranscriber struct {
	text string
	err  error
}

func (s stubTranscriber) Transcribe(context.Context, string) (string, error) {
	return s.text, s.err
}

func (s stubTranscriber) Language() string { return "en" }

type stubSummarizer struct {
	text string
	err  error
}

func (s stubSummarizer) Summarize(context.Context, string, string) (string, error) {
	return s.text, s.err
}

type recordingCommitter struct {
	mu    sync.Mutex
	texts []string
}

func (r *recordingCommitter) Commit(_ context.Context, text string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.texts = append(r.texts, text)
	return nil
}

func (r *recordingCommitter) committed() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.texts...)
}

type recordingNotifier struct {
	mu     sync.Mutex
	phases []fsm.State
	hides  int
}

func (n *recordingNotifier) Apply(_ context.Context, phase fsm.State, _ string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.phases = append(n.phases, phase)
}

func (n *recordingNotifier) Hide(context.Context) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.hides++
}

// stubStrategy stands in for a Pulse capture source: Start writes a WAV-sized
// payload at the destination, Stop reports it as the finished capture.
type stubStrategy struct {
	path    string
	payload []byte
}

func (s *stubStrategy) Describe() string { return "stub" }

func (s *stubStrategy) Start(context.Context) error {
	return os.WriteFile(s.path, s.payload, 0o600)
}

func (s *stubStrategy) Stop() audio.CaptureEvent {
	return audio.CaptureEvent{
		Path:       s.path,
		SampleRate: 16000,
		Bytes:      int64(len(s.payload)),
		Device:     "stub-device",
		StartedAt:  time.Now().Add(-time.Second),
		FinishedAt: time.Now(),
	}
}

func stubFactory(payload []byte) audio.StrategyFactory {
	return func(_ context.Context, _, destPath string, _ *slog.Logger) (audio.Strategy, error) {
		return &stubStrategy{path: destPath, payload: payload}, nil
	}
}

func newControllerForTest(t *testing.T, transcriber pipeline.Transcriber, summarizer pipeline.Summarizer) (*Controller, *recordingNotifier, *recordingCommitter) {
	t.Helper()

	cfg := config.Default()
	cfg.Session.Root = t.TempDir()
	cfg.Session.DoneHoldMS = 5
	cfg.Indicator.Enable = false

	logger := slog.New(slog.NewJSONHandler(&bytes.Buffer{}, nil))
	store := session.NewStore(cfg.Session.Root, logger)
	orch := pipeline.NewOrchestrator(cfg, store, transcriber, summarizer, logger)

	notifier := &recordingNotifier{}
	committer := &recordingCommitter{}
	controller := NewController(cfg, orch, notifier, committer, logger)
	controller.recorder = audio.NewRecorder(audio.RecorderOptions{
		Dir:     filepath.Join(cfg.Session.Root, ".staging"),
		Logger:  logger,
		Factory: stubFactory(make([]byte, 1024)),
	})
	return controller, notifier, committer
}

func waitForState(t *testing.T, c *Controller, want fsm.State) {
	t.Helper()
	require.Eventually(t, func() bool {
		return c.State() == want
	}, 2*time.Second, 5*time.Millisecond)
}

func TestControllerRunsFullSession(t *testing.T) {
	controller, notifier, committer := newControllerForTest(t,
		stubTranscriber{text: "hello from the microphone"},
		stubSummarizer{text: "one-line summary"},
	)

	resultCh := make(chan Result, 1)
	go func() { resultCh <- controller.Run(context.Background()) }()
	waitForState(t, controller, fsm.StateRecording)

	resp := controller.Handle(context.Background(), ipc.Request{Command: "stop"})
	require.True(t, resp.OK)
	require.Equal(t, "processing", resp.Message)
	require.Equal(t, string(fsm.StateTranscribing), resp.State)

	var result Result
	select {
	case result = <-resultCh:
	case <-time.After(5 * time.Second):
		t.Fatal("controller did not finish")
	}

	require.NoError(t, result.Err)
	require.False(t, result.Cancelled)
	require.Equal(t, fsm.StateIdle, result.State)
	require.Equal(t, "stub-device", result.AudioDevice)
	require.Equal(t, int64(1024), result.BytesCaptured)
	require.Equal(t, "hello from the microphone.", result.Transcript)
	require.Equal(t, "one-line summary", result.Summary)

	require.Equal(t, []string{"one-line summary"}, committer.committed())

	notifier.mu.Lock()
	phases := append([]fsm.State(nil), notifier.phases...)
	notifier.mu.Unlock()
	require.Contains(t, phases, fsm.StateRecording)
	require.Contains(t, phases, fsm.StateTranscribing)
	require.Contains(t, phases, fsm.StateSummarizing)
	require.Contains(t, phases, fsm.StateDone)
}

func TestControllerCancelDiscardsCapture(t *testing.T) {
	controller, _, committer := newControllerForTest(t,
		stubTranscriber{err: fmt.Errorf("must not be called")},
		stubSummarizer{err: fmt.Errorf("must not be called")},
	)

	resultCh := make(chan Result, 1)
	go func() { resultCh <- controller.Run(context.Background()) }()
	waitForState(t, controller, fsm.StateRecording)

	resp := controller.Handle(context.Background(), ipc.Request{Command: "cancel"})
	require.True(t, resp.OK)
	require.Equal(t, "cancelled", resp.Message)

	var result Result
	select {
	case result = <-resultCh:
	case <-time.After(2 * time.Second):
		t.Fatal("controller did not finish after cancel")
	}

	require.True(t, result.Cancelled)
	require.NoError(t, result.Err)
	require.Empty(t, committer.committed())

	staging := filepath.Join(controller.cfg.Session.Root, ".staging")
	entries, err := os.ReadDir(staging)
	require.NoError(t, err)
	require.Empty(t, entries, "cancelled capture file must be discarded")
}

func TestControllerCancelWithNothingRecording(t *testing.T) {
	controller, _, _ := newControllerForTest(t, stubTranscriber{}, stubSummarizer{})

	resp := controller.Handle(context.Background(), ipc.Request{Command: "cancel"})
	require.True(t, resp.OK)
	require.Equal(t, "nothing to cancel", resp.Message)
}

func TestControllerSecondStopReportsAlreadyProcessing(t *testing.T) {
	controller, _, _ := newControllerForTest(t,
		stubTranscriber{text: "text"},
		stubSummarizer{text: "summary"},
	)

	resultCh := make(chan Result, 1)
	go func() { resultCh <- controller.Run(context.Background()) }()
	waitForState(t, controller, fsm.StateRecording)

	first := controller.Handle(context.Background(), ipc.Request{Command: "stop"})
	require.Equal(t, "processing", first.Message)

	second := controller.Handle(context.Background(), ipc.Request{Command: "toggle"})
	require.True(t, second.OK)
	require.Equal(t, "already processing", second.Message)

	select {
	case <-resultCh:
	case <-time.After(5 * time.Second):
		t.Fatal("controller did not finish")
	}
}

func TestControllerStatusReflectsState(t *testing.T) {
	controller, _, _ := newControllerForTest(t, stubTranscriber{}, stubSummarizer{})

	resp := controller.Handle(context.Background(), ipc.Request{Command: "status"})
	require.True(t, resp.OK)
	require.Equal(t, string(fsm.StateIdle), resp.State)
}

func TestControllerRejectsUnknownCommand(t *testing.T) {
	controller, _, _ := newControllerForTest(t, stubTranscriber{}, stubSummarizer{})

	resp := controller.Handle(context.Background(), ipc.Request{Command: "reboot"})
	require.False(t, resp.OK)
	require.Contains(t, resp.Error, "reboot")
}

func TestControllerImportRequiresPath(t *testing.T) {
	controller, _, _ := newControllerForTest(t, stubTranscriber{}, stubSummarizer{})

	resp := controller.Handle(context.Background(), ipc.Request{Command: "import"})
	require.False(t, resp.OK)
	require.Contains(t, resp.Error, "path")
}

func TestControllerImportRunsPipeline(t *testing.T) {
	controller, _, _ := newControllerForTest(t,
		stubTranscriber{text: "imported text"},
		stubSummarizer{text: "imported summary"},
	)

	audioPath := filepath.Join(t.TempDir(), "meeting.wav")
	require.NoError(t, os.WriteFile(audioPath, make([]byte, 512), 0o600))

	resp := controller.Handle(context.Background(), ipc.Request{Command: "import", Path: audioPath})
	require.True(t, resp.OK)
	require.Equal(t, "importing", resp.Message)

	controller.orch.Wait()
	require.Empty(t, controller.orch.LastError())
	require.Equal(t, "imported summary", controller.orch.LastSummary())
}
