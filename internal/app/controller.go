package app

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/koememo/koememo/internal/audio"
	"github.com/koememo/koememo/internal/config"
	"github.com/koememo/koememo/internal/fsm"
	"github.com/koememo/koememo/internal/ipc"
	"github.com/koememo/koememo/internal/pipeline"
)

// Notifier renders phase changes for the user. Implemented by the desktop
// indicator; nil-safe via noopNotifier.
type Notifier interface {
	Apply(ctx context.Context, phase fsm.State, errText string)
	Hide(ctx context.Context)
}

// Committer applies transcript side effects once a job completes.
type Committer interface {
	Commit(ctx context.Context, transcript string) error
}

type noopNotifier struct{}

func (noopNotifier) Apply(context.Context, fsm.State, string) {}
func (noopNotifier) Hide(context.Context)                     {}

// Result summarizes one resident-instance run.
type Result struct {
	State         fsm.State
	Cancelled     bool
	StartedAt     time.Time
	FinishedAt    time.Time
	AudioDevice   string
	BytesCaptured int64
	Transcript    string
	Summary       string
	Err           error
}

// Controller owns one recording session: it drives the recorder, answers
// IPC commands, and follows the pipeline through to completion.
type Controller struct {
	cfg       config.Config
	logger    *slog.Logger
	recorder  *audio.Recorder
	orch      *pipeline.Orchestrator
	notifier  Notifier
	committer Committer

	mu              sync.Mutex
	state           fsm.State
	pipelineStarted bool
	capture         audio.CaptureEvent

	quitCh chan struct{}
}

// NewController wires a session controller. The recorder stages captures
// under the session root so a same-filesystem rename into the session dir
// is the common case.
func NewController(cfg config.Config, orch *pipeline.Orchestrator, notifier Notifier, committer Committer, logger *slog.Logger) *Controller {
	if notifier == nil {
		notifier = noopNotifier{}
	}
	c := &Controller{
		cfg:       cfg,
		logger:    logger,
		orch:      orch,
		notifier:  notifier,
		committer: committer,
		state:     fsm.StateIdle,
		quitCh:    make(chan struct{}),
	}
	c.recorder = audio.NewRecorder(audio.RecorderOptions{
		Dir:       filepath.Join(cfg.Session.Root, ".staging"),
		Preferred: cfg.Audio.Input,
		Logger:    logger,
	})
	return c
}

// State reports the currently observable phase.
func (c *Controller) State() fsm.State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Controller) setState(s fsm.State) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
}

// Run starts recording and blocks until the pipeline settles, the session
// is cancelled, or the context ends.
func (c *Controller) Run(ctx context.Context) Result {
	result := Result{StartedAt: time.Now()}

	statuses, unsubscribe := c.orch.Subscribe()
	defer unsubscribe()

	if err := c.recorder.Start(ctx); err != nil {
		c.notifier.Apply(ctx, fsm.StateError, err.Error())
		result.State = fsm.StateError
		result.Err = err
		result.FinishedAt = time.Now()
		return result
	}
	c.setState(fsm.StateRecording)
	c.orch.RecordingStarted()

	for {
		select {
		case <-ctx.Done():
			c.abortRecording()
			c.notifier.Hide(context.Background())
			result.State = c.State()
			result.Err = ctx.Err()
			result.FinishedAt = time.Now()
			return result

		case <-c.quitCh:
			c.notifier.Hide(context.Background())
			result.State = fsm.StateIdle
			result.Cancelled = true
			result.FinishedAt = time.Now()
			return result

		case status := <-statuses:
			c.setState(status.Phase)
			c.notifier.Apply(ctx, status.Phase, status.Err)

			if status.Phase == fsm.StateDone {
				if err := c.commitResult(ctx); err != nil {
					c.logger.Warn("clipboard commit failed", "error", err.Error())
				}
			}

			if status.Phase == fsm.StateIdle && c.pipelineRunning() {
				c.orch.Wait()
				c.mu.Lock()
				capture := c.capture
				c.mu.Unlock()

				result.State = fsm.StateIdle
				result.AudioDevice = capture.Device
				result.BytesCaptured = capture.Bytes
				result.Transcript = c.orch.LastTranscript()
				result.Summary = c.orch.LastSummary()
				if msg := c.orch.LastError(); msg != "" {
					result.Err = fmt.Errorf("%s", msg)
				}
				result.FinishedAt = time.Now()
				return result
			}
		}
	}
}

func (c *Controller) pipelineRunning() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pipelineStarted
}

// commitResult publishes the newest document to the clipboard: the summary
// when one was produced, otherwise the processed transcript.
func (c *Controller) commitResult(ctx context.Context) error {
	if c.committer == nil {
		return nil
	}
	text := c.orch.LastSummary()
	if strings.TrimSpace(text) == "" {
		text = c.orch.LastTranscript()
	}
	if strings.TrimSpace(text) == "" {
		return nil
	}
	return c.committer.Commit(ctx, text)
}

// Handle implements ipc.Handler for the resident instance.
func (c *Controller) Handle(ctx context.Context, req ipc.Request) ipc.Response {
	switch req.Command {
	case "toggle", "stop":
		return c.handleStop(ctx)
	case "cancel":
		return c.handleCancel()
	case "status":
		return ipc.Response{OK: true, State: string(c.State())}
	case "import":
		return c.handleImport(ctx, req.Path)
	default:
		return ipc.Response{OK: false, Error: fmt.Sprintf("unknown command %q", req.Command)}
	}
}

func (c *Controller) handleStop(ctx context.Context) ipc.Response {
	event, stopped := c.recorder.Stop()
	if !stopped {
		return ipc.Response{OK: true, State: string(c.State()), Message: "already processing"}
	}

	c.mu.Lock()
	c.capture = event
	c.pipelineStarted = true
	c.mu.Unlock()

	c.orch.ProcessCapture(context.WithoutCancel(ctx), event)
	return ipc.Response{OK: true, State: string(fsm.StateTranscribing), Message: "processing"}
}

func (c *Controller) handleCancel() ipc.Response {
	event, stopped := c.recorder.Stop()
	if !stopped {
		if c.pipelineRunning() {
			// in-flight work is not unwound
			return ipc.Response{OK: true, State: string(c.State()), Message: "pipeline already running"}
		}
		return ipc.Response{OK: true, State: string(fsm.StateIdle), Message: "nothing to cancel"}
	}

	if err := os.Remove(event.Path); err != nil && !os.IsNotExist(err) {
		c.logger.Warn("discard cancelled capture failed", "path", event.Path, "error", err.Error())
	}

	c.orch.RecordingAborted("cancelled by user")
	close(c.quitCh)

	return ipc.Response{OK: true, State: string(fsm.StateIdle), Message: "cancelled"}
}

func (c *Controller) handleImport(ctx context.Context, path string) ipc.Response {
	if strings.TrimSpace(path) == "" {
		return ipc.Response{OK: false, Error: "import requires a path"}
	}

	c.mu.Lock()
	c.pipelineStarted = true
	c.mu.Unlock()

	c.orch.ImportFile(context.WithoutCancel(ctx), path)
	return ipc.Response{OK: true, State: string(fsm.StateTranscribing), Message: "importing"}
}

// abortRecording tears down an in-progress capture without running the
// pipeline, discarding the staged file.
func (c *Controller) abortRecording() {
	event, stopped := c.recorder.Stop()
	if !stopped {
		return
	}
	if err := os.Remove(event.Path); err != nil && !os.IsNotExist(err) {
		c.logger.Warn("discard aborted capture failed", "path", event.Path, "error", err.Error())
	}
	c.orch.RecordingAborted("process shutdown")
}
