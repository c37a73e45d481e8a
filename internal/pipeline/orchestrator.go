// Package pipeline drives a finished capture through transcription, text
// repair, summarization, and persistence, publishing phase changes to
// observers along the way.
package pipeline

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/koememo/koememo/internal/audio"
	"github.com/koememo/koememo/internal/config"
	"github.com/koememo/koememo/internal/fsm"
	"github.com/koememo/koememo/internal/session"
	"github.com/koememo/koememo/internal/textproc"
)

const (
	// observerBuffer bounds each subscriber's pending status queue. Slow
	// observers lose updates rather than stalling the pipeline.
	observerBuffer = 16

	// minAudioBytes is the WAV header size; a file at or under it holds no
	// samples and is rejected before any service call.
	minAudioBytes = 44
)

// Transcriber converts a WAV file into raw transcript text.
type Transcriber interface {
	Transcribe(ctx context.Context, path string) (string, error)
	Language() string
}

// Summarizer condenses a transcript under the given instructions.
type Summarizer interface {
	Summarize(ctx context.Context, instructions, transcript string) (string, error)
}

// Status is one observable pipeline update.
type Status struct {
	Phase      fsm.State
	JobID      string
	SessionDir string
	Err        string
}

// Result carries the artifacts of one completed job.
type Result struct {
	JobID      string
	SessionDir string
	AudioPath  string
	Transcript string
	Summary    string
}

// Orchestrator runs pipeline jobs and fans status out to observers.
type Orchestrator struct {
	cfg         config.Config
	logger      *slog.Logger
	store       *session.Store
	transcriber Transcriber
	summarizer  Summarizer

	mu             sync.Mutex
	observers      map[int]chan Status
	nextObserverID int
	active         int
	lastTranscript string
	lastSummary    string
	lastErr        string

	wg sync.WaitGroup
}

// NewOrchestrator wires the pipeline against resolved config and the two
// external service clients. A nil logger is replaced with a discard logger.
func NewOrchestrator(cfg config.Config, store *session.Store, transcriber Transcriber, summarizer Summarizer, logger *slog.Logger) *Orchestrator {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Orchestrator{
		cfg:         cfg,
		logger:      logger,
		store:       store,
		transcriber: transcriber,
		summarizer:  summarizer,
		observers:   make(map[int]chan Status),
	}
}

// Subscribe registers a status observer. The returned cancel func must be
// called to release the observer's channel.
func (o *Orchestrator) Subscribe() (<-chan Status, func()) {
	o.mu.Lock()
	defer o.mu.Unlock()

	id := o.nextObserverID
	o.nextObserverID++
	ch := make(chan Status, observerBuffer)
	o.observers[id] = ch

	cancel := func() {
		o.mu.Lock()
		defer o.mu.Unlock()
		if existing, ok := o.observers[id]; ok {
			delete(o.observers, id)
			close(existing)
		}
	}
	return ch, cancel
}

// publish fans a status out to every observer. Sends happen under the same
// lock that guards registration, so a concurrent cancel cannot close a
// channel mid-send; a full observer queue drops the status instead of
// blocking.
func (o *Orchestrator) publish(status Status) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if status.Err != "" {
		o.lastErr = status.Err
	}
	for _, ch := range o.observers {
		select {
		case ch <- status:
		default:
			o.logger.Warn("observer queue full, status dropped", "phase", string(status.Phase))
		}
	}
}

// RecordingStarted publishes the recording phase on behalf of the recorder.
func (o *Orchestrator) RecordingStarted() {
	o.publish(Status{Phase: fsm.StateRecording})
}

// RecordingAborted returns the visible phase to idle without running a job,
// used when a capture ends with nothing worth processing.
func (o *Orchestrator) RecordingAborted(reason string) {
	o.logger.Info("recording aborted", "reason", reason)
	o.publish(Status{Phase: fsm.StateIdle})
}

// ProcessCapture starts an async job for a finished recording. The stop
// event has already been accepted, so the job begins in the recording phase
// and advances through stop.
func (o *Orchestrator) ProcessCapture(ctx context.Context, event audio.CaptureEvent) string {
	return o.startJob(ctx, event.Path, fsm.StateRecording, fsm.EventStop)
}

// ImportFile starts an async job for an existing audio file, skipping the
// capture phases entirely.
func (o *Orchestrator) ImportFile(ctx context.Context, path string) string {
	return o.startJob(ctx, path, fsm.StateIdle, fsm.EventTranscribe)
}

func (o *Orchestrator) startJob(ctx context.Context, audioPath string, from fsm.State, entry fsm.Event) string {
	jobID := uuid.NewString()

	o.mu.Lock()
	o.active++
	o.mu.Unlock()

	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		o.run(ctx, jobID, audioPath, from, entry)

		o.mu.Lock()
		o.active--
		o.mu.Unlock()
	}()

	return jobID
}

// Cancel acknowledges a cancel request. Work already handed to the external
// services is not unwound; the job simply runs to completion.
func (o *Orchestrator) Cancel(jobID string) {
	o.logger.Info("cancel acknowledged, job continues", "job", jobID)
}

// Wait blocks until all in-flight jobs have finished.
func (o *Orchestrator) Wait() {
	o.wg.Wait()
}

// Active reports the number of in-flight jobs.
func (o *Orchestrator) Active() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.active
}

// LastTranscript returns the most recent processed transcript.
func (o *Orchestrator) LastTranscript() string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.lastTranscript
}

// LastSummary returns the most recent summary.
func (o *Orchestrator) LastSummary() string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.lastSummary
}

// LastError returns the most recent job failure message, empty when the
// last job succeeded.
func (o *Orchestrator) LastError() string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.lastErr
}

func (o *Orchestrator) run(ctx context.Context, jobID, audioPath string, state fsm.State, entry fsm.Event) {
	logger := o.logger.With("job", jobID)

	fail := func(err error) {
		logger.Error("pipeline job failed", "error", err.Error())
		next, _ := fsm.Transition(state, fsm.EventFail)
		o.publish(Status{Phase: next, JobID: jobID, Err: err.Error()})
		o.settle(next, jobID)
	}

	advance := func(event fsm.Event) error {
		next, err := fsm.Transition(state, event)
		if err != nil {
			return err
		}
		state = next
		return nil
	}

	if err := advance(entry); err != nil {
		fail(err)
		return
	}

	result, err := o.execute(ctx, logger, jobID, audioPath, advance)
	if err != nil {
		fail(err)
		return
	}

	o.mu.Lock()
	o.lastTranscript = result.Transcript
	o.lastSummary = result.Summary
	o.lastErr = ""
	o.mu.Unlock()

	o.publish(Status{Phase: state, JobID: jobID, SessionDir: result.SessionDir})
	logger.Info("pipeline job complete", "session", result.SessionDir)
	o.settle(state, jobID)
}

func (o *Orchestrator) execute(ctx context.Context, logger *slog.Logger, jobID, audioPath string, advance func(fsm.Event) error) (Result, error) {
	info, err := os.Stat(audioPath)
	if err != nil {
		return Result{}, fmt.Errorf("stat audio %q: %w", audioPath, err)
	}
	if info.Size() <= minAudioBytes {
		return Result{}, fmt.Errorf("audio %q holds no samples (%d bytes)", audioPath, info.Size())
	}

	dir, err := o.store.CreateDir(time.Now())
	if err != nil {
		return Result{}, err
	}

	var placed string
	if o.cfg.Debug.KeepStagedAudio {
		placed, err = o.store.CopyAudio(audioPath, dir)
	} else {
		placed, err = o.store.PlaceAudio(audioPath, dir)
	}
	if err != nil {
		return Result{}, err
	}

	o.publish(Status{Phase: fsm.StateTranscribing, JobID: jobID})

	raw, err := o.transcriber.Transcribe(ctx, placed)
	if err != nil {
		return Result{}, err
	}
	transcript := textproc.Process(raw, o.transcriber.Language())

	if err := o.store.WriteTranscript(dir, transcript); err != nil {
		logger.Warn("transcript write failed, continuing", "error", err.Error())
	}

	if err := advance(fsm.EventTranscribed); err != nil {
		return Result{}, err
	}
	o.publish(Status{Phase: fsm.StateSummarizing, JobID: jobID})

	summary, err := o.summarizer.Summarize(ctx, o.cfg.Instructions(), transcript)
	if err != nil {
		return Result{}, err
	}
	if err := o.store.WriteSummary(dir, summary); err != nil {
		logger.Warn("summary write failed, continuing", "error", err.Error())
	}

	if err := advance(fsm.EventSummarized); err != nil {
		return Result{}, err
	}

	return Result{
		JobID:      jobID,
		SessionDir: dir,
		AudioPath:  placed,
		Transcript: transcript,
		Summary:    summary,
	}, nil
}

// settle holds the terminal phase briefly so observers can render it, then
// resets to idle.
func (o *Orchestrator) settle(state fsm.State, jobID string) {
	hold := time.Duration(o.cfg.Session.DoneHoldMS) * time.Millisecond
	if hold > 0 {
		time.Sleep(hold)
	}

	next, err := fsm.Transition(state, fsm.EventReset)
	if err != nil {
		return
	}
	o.publish(Status{Phase: next, JobID: jobID})
}
