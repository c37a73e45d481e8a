// Package indicator surfaces pipeline phase changes as desktop
// notifications and audio cues.
package indicator

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/koememo/koememo/internal/config"
	"github.com/koememo/koememo/internal/fsm"
)

// Notifier renders one replaceable desktop notification that tracks the
// current pipeline phase.
type Notifier struct {
	cfg      config.IndicatorConfig
	logger   *slog.Logger
	messages messages

	mu             sync.Mutex
	notificationID uint32
	soundMu        sync.Mutex
}

// NewNotifier creates a phase notifier from config.
func NewNotifier(cfg config.IndicatorConfig, logger *slog.Logger) *Notifier {
	return &Notifier{
		cfg:      cfg,
		logger:   logger,
		messages: indicatorMessagesFromEnv(),
	}
}

// Apply renders the notification for one observed phase.
func (n *Notifier) Apply(ctx context.Context, phase fsm.State, errText string) {
	switch phase {
	case fsm.StateRecording:
		n.playCue(cueStart)
		n.show(ctx, n.messages.recording, 300000)
	case fsm.StateTranscribing:
		n.playCue(cueStop)
		n.show(ctx, n.messages.transcribing, 300000)
	case fsm.StateSummarizing:
		n.show(ctx, n.messages.summarizing, 300000)
	case fsm.StateDone:
		n.playCue(cueComplete)
		n.show(ctx, n.messages.done, 2000)
	case fsm.StateError:
		n.playCue(cueCancel)
		n.showError(ctx, errText)
	case fsm.StateIdle:
		n.Hide(ctx)
	}
}

func (n *Notifier) show(ctx context.Context, text string, timeoutMS int) {
	if !n.cfg.Enable {
		return
	}
	n.run(ctx, func(ctx context.Context) error {
		return n.notify(ctx, timeoutMS, text)
	})
}

func (n *Notifier) showError(ctx context.Context, text string) {
	if !n.cfg.Enable {
		return
	}
	if text == "" {
		text = n.messages.errorText
	}
	timeout := n.cfg.ErrorTimeoutMS
	if timeout <= 0 {
		timeout = 1200
	}
	n.run(ctx, func(ctx context.Context) error {
		return n.notify(ctx, timeout, text)
	})
}

// Hide dismisses the active notification.
func (n *Notifier) Hide(ctx context.Context) {
	if !n.cfg.Enable {
		return
	}
	n.run(ctx, n.dismiss)
}

// notify sends a replaceable desktop notification and stores its ID.
func (n *Notifier) notify(ctx context.Context, timeoutMS int, text string) error {
	n.mu.Lock()
	replaceID := n.notificationID
	n.mu.Unlock()

	appName := strings.TrimSpace(n.cfg.AppName)
	if appName == "" {
		appName = "koememo"
	}

	id, err := desktopNotify(ctx, appName, replaceID, text, timeoutMS)
	if err != nil {
		return err
	}

	n.mu.Lock()
	n.notificationID = id
	n.mu.Unlock()
	return nil
}

// dismiss closes the current notification ID when present.
func (n *Notifier) dismiss(ctx context.Context) error {
	n.mu.Lock()
	id := n.notificationID
	n.notificationID = 0
	n.mu.Unlock()

	if id == 0 {
		return nil
	}
	return desktopDismiss(ctx, id)
}

// run executes an indicator operation with a bounded timeout.
func (n *Notifier) run(ctx context.Context, fn func(context.Context) error) {
	runCtx, cancel := context.WithTimeout(ctx, 400*time.Millisecond)
	defer cancel()
	if err := fn(runCtx); err != nil {
		n.log("indicator dispatch failed", err)
	}
}

// playCue serializes cue playback and emits audio asynchronously.
func (n *Notifier) playCue(kind cueKind) {
	if !n.cfg.Sound {
		return
	}
	go func() {
		n.soundMu.Lock()
		defer n.soundMu.Unlock()
		if err := emitCue(kind); err != nil {
			n.log("indicator audio cue failed", err)
		}
	}()
}

func (n *Notifier) log(message string, err error) {
	if n.logger == nil || err == nil {
		return
	}
	n.logger.Debug(message, "error", err.Error())
}
