// Package app wires configuration, logging, IPC, and the dictation
// pipeline behind the CLI commands.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"syscall"
	"time"

	"github.com/koememo/koememo/internal/audio"
	"github.com/koememo/koememo/internal/cli"
	"github.com/koememo/koememo/internal/config"
	"github.com/koememo/koememo/internal/doctor"
	"github.com/koememo/koememo/internal/indicator"
	"github.com/koememo/koememo/internal/ipc"
	"github.com/koememo/koememo/internal/logging"
	"github.com/koememo/koememo/internal/output"
	"github.com/koememo/koememo/internal/pipeline"
	"github.com/koememo/koememo/internal/session"
	"github.com/koememo/koememo/internal/summarize"
	"github.com/koememo/koememo/internal/transcribe"
	"github.com/koememo/koememo/internal/version"
)

type Runner struct {
	Stdout io.Writer
	Stderr io.Writer
	Logger *slog.Logger
}

func Execute(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	r := Runner{Stdout: stdout, Stderr: stderr}
	return r.Execute(ctx, args)
}

func (r Runner) Execute(ctx context.Context, args []string) int {
	parsed, err := cli.Parse(args)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n\n", err)
		fmt.Fprint(r.Stderr, cli.HelpText("koememo"))
		return 2
	}

	if parsed.ShowHelp {
		fmt.Fprint(r.Stdout, cli.HelpText("koememo"))
		return 0
	}

	if parsed.Command == cli.CommandVersion {
		fmt.Fprintln(r.Stdout, version.String())
		return 0
	}

	logRuntime, err := logging.New()
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: setup logging: %v\n", err)
		return 1
	}
	defer func() { _ = logRuntime.Close() }()

	logger := r.Logger
	if logger == nil {
		logger = logRuntime.Logger
	}

	cfgLoaded, err := config.Load(parsed.ConfigPath)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		logger.Error("load config failed", "error", err.Error())
		return 1
	}
	for _, w := range cfgLoaded.Warnings {
		msg := w.Message
		if w.Line > 0 {
			msg = fmt.Sprintf("line %d: %s", w.Line, w.Message)
		}
		fmt.Fprintf(r.Stderr, "warning: %s\n", msg)
		logger.Warn("config warning", "line", w.Line, "message", w.Message)
	}

	logger.Info("command start",
		"command", parsed.Command,
		"config", cfgLoaded.Path,
		"log", logRuntime.Path,
	)

	switch parsed.Command {
	case cli.CommandDoctor:
		report := doctor.Run(cfgLoaded)
		fmt.Fprintln(r.Stdout, report.String())
		if report.OK() {
			return 0
		}
		return 1
	case cli.CommandDevices:
		return r.commandDevices(ctx)
	case cli.CommandStatus:
		return r.commandStatus(ctx)
	case cli.CommandStop:
		return r.forwardOrFail(ctx, ipc.Request{Command: "stop"})
	case cli.CommandCancel:
		return r.forwardOrFail(ctx, ipc.Request{Command: "cancel"})
	case cli.CommandPurge:
		return r.commandPurge(cfgLoaded.Config, logger)
	case cli.CommandImport:
		return r.commandImport(ctx, cfgLoaded.Config, logger, parsed.ImportPath)
	case cli.CommandToggle:
		return r.commandToggle(ctx, cfgLoaded.Config, logger)
	default:
		fmt.Fprintf(r.Stderr, "error: unsupported command %q\n", parsed.Command)
		return 2
	}
}

func (r Runner) commandDevices(ctx context.Context) int {
	devices, err := audio.ListDevices(ctx)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}
	if len(devices) == 0 {
		fmt.Fprintln(r.Stdout, "no audio devices found")
		return 1
	}

	for _, device := range devices {
		defaultMark := " "
		if device.Default {
			defaultMark = "*"
		}
		availability := "yes"
		if !device.Available {
			availability = "no"
		}
		muted := "no"
		if device.Muted {
			muted = "yes"
		}
		fmt.Fprintf(
			r.Stdout,
			"%s id=%s | description=%q | state=%s | available=%s | muted=%s\n",
			defaultMark,
			device.ID,
			device.Description,
			device.State,
			availability,
			muted,
		)
	}

	return 0
}

func (r Runner) commandStatus(ctx context.Context) int {
	socketPath, err := ipc.RuntimeSocketPath()
	if err != nil {
		fmt.Fprintln(r.Stdout, "idle")
		return 0
	}

	resp, handled, err := tryForward(ctx, socketPath, ipc.Request{Command: "status"})
	if handled {
		if err != nil {
			fmt.Fprintf(r.Stderr, "error: %v\n", err)
			return 1
		}
		if resp.State == "" {
			resp.State = "idle"
		}
		fmt.Fprintln(r.Stdout, resp.State)
		return 0
	}

	fmt.Fprintln(r.Stdout, "idle")
	return 0
}

func (r Runner) commandPurge(cfg config.Config, logger *slog.Logger) int {
	store := session.NewStore(cfg.Session.Root, logger)
	deleted := store.PurgeAudio()
	fmt.Fprintf(r.Stdout, "deleted %d audio file(s)\n", deleted)
	return 0
}

func (r Runner) forwardOrFail(ctx context.Context, req ipc.Request) int {
	socketPath, err := ipc.RuntimeSocketPath()
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}

	resp, handled, err := tryForward(ctx, socketPath, req)
	if !handled {
		fmt.Fprintf(r.Stderr, "error: no active koememo instance\n")
		return 1
	}
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}
	if resp.Message != "" {
		fmt.Fprintln(r.Stdout, resp.Message)
	}
	return 0
}

// commandImport forwards to a running instance when one exists, otherwise
// runs the pipeline in-process against the given file.
func (r Runner) commandImport(ctx context.Context, cfg config.Config, logger *slog.Logger, path string) int {
	if socketPath, err := ipc.RuntimeSocketPath(); err == nil {
		resp, handled, fwdErr := tryForward(ctx, socketPath, ipc.Request{Command: "import", Path: path})
		if handled {
			if fwdErr != nil {
				fmt.Fprintf(r.Stderr, "error: %v\n", fwdErr)
				return 1
			}
			if resp.Message != "" {
				fmt.Fprintln(r.Stdout, resp.Message)
			}
			return 0
		}
	}

	orch := buildOrchestrator(cfg, logger)
	orch.ImportFile(ctx, path)
	orch.Wait()

	if msg := orch.LastError(); msg != "" {
		fmt.Fprintf(r.Stderr, "error: %s\n", msg)
		return 1
	}
	if summary := strings.TrimSpace(orch.LastSummary()); summary != "" {
		fmt.Fprintln(r.Stdout, summary)
	}
	return 0
}

func (r Runner) commandToggle(ctx context.Context, cfg config.Config, logger *slog.Logger) int {
	socketPath, err := ipc.RuntimeSocketPath()
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}

	resp, handled, err := tryForward(ctx, socketPath, ipc.Request{Command: "toggle"})
	if handled {
		if err != nil {
			fmt.Fprintf(r.Stderr, "error: %v\n", err)
			return 1
		}
		if resp.Message != "" {
			fmt.Fprintln(r.Stdout, resp.Message)
		}
		return 0
	}

	listener, err := ipc.Acquire(ctx, socketPath, 180*time.Millisecond, 8, nil)
	if err != nil {
		if errors.Is(err, ipc.ErrAlreadyRunning) {
			resp, _, forwardErr := tryForward(ctx, socketPath, ipc.Request{Command: "toggle"})
			if forwardErr != nil {
				fmt.Fprintf(r.Stderr, "error: %v\n", forwardErr)
				return 1
			}
			if resp.Message != "" {
				fmt.Fprintln(r.Stdout, resp.Message)
			}
			return 0
		}
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}
	defer func() {
		_ = listener.Close()
		_ = os.Remove(socketPath)
	}()

	orch := buildOrchestrator(cfg, logger)
	notifier := indicator.NewNotifier(cfg.Indicator, logger)
	committer := output.NewCommitter(cfg, logger)
	controller := NewController(cfg, orch, notifier, committer, logger)

	serverCtx, serverCancel := context.WithCancel(ctx)
	defer serverCancel()

	serverErrCh := make(chan error, 1)
	go func() {
		serverErrCh <- ipc.Serve(serverCtx, listener, controller)
	}()

	result := controller.Run(ctx)
	serverCancel()
	if serverErr := <-serverErrCh; serverErr != nil {
		fmt.Fprintf(r.Stderr, "error: ipc server failed: %v\n", serverErr)
		return 1
	}

	if cfg.Session.PurgeAudioOnQuit {
		store := session.NewStore(cfg.Session.Root, logger)
		deleted := store.PurgeAudio()
		logger.Info("audio purged on quit", "deleted", deleted)
	}

	logSessionResult(logger, result)

	if result.Cancelled {
		fmt.Fprintln(r.Stdout, "cancelled")
		return 0
	}
	if result.Err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", result.Err)
		return 1
	}
	if out := strings.TrimSpace(result.Summary); out != "" {
		fmt.Fprintln(r.Stdout, out)
	} else if out := strings.TrimSpace(result.Transcript); out != "" {
		fmt.Fprintln(r.Stdout, out)
	}

	return 0
}

func buildOrchestrator(cfg config.Config, logger *slog.Logger) *pipeline.Orchestrator {
	store := session.NewStore(cfg.Session.Root, logger)
	transcriber := transcribe.NewClient(cfg.Transcriber, logger)
	summarizer := summarize.NewClient(cfg.Summarizer, logger)

	// best-effort model warm-up
	go func() {
		warmCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := transcriber.Warmup(warmCtx); err != nil {
			logger.Warn("transcriber warmup failed", "error", err.Error())
		}
	}()

	return pipeline.NewOrchestrator(cfg, store, transcriber, summarizer, logger)
}

func logSessionResult(logger *slog.Logger, result Result) {
	if logger == nil {
		return
	}
	fields := []any{
		"state", string(result.State),
		"cancelled", result.Cancelled,
		"started_at", result.StartedAt.Format(time.RFC3339Nano),
		"finished_at", result.FinishedAt.Format(time.RFC3339Nano),
		"duration_ms", result.FinishedAt.Sub(result.StartedAt).Milliseconds(),
		"audio_device", result.AudioDevice,
		"bytes_captured", result.BytesCaptured,
		"transcript_length", len(result.Transcript),
		"summary_length", len(result.Summary),
	}

	if result.Err != nil {
		logger.Error("session failed", append(fields, "error", result.Err.Error())...)
		return
	}
	logger.Info("session complete", fields...)
}

func tryForward(ctx context.Context, socketPath string, req ipc.Request) (ipc.Response, bool, error) {
	resp, err := ipc.Send(ctx, socketPath, req, 220*time.Millisecond)
	if err == nil {
		if resp.OK {
			return resp, true, nil
		}
		return resp, true, errors.New(resp.Error)
	}

	if isSocketMissing(err) {
		return ipc.Response{}, false, nil
	}
	if isConnectionRefused(err) {
		return ipc.Response{}, false, nil
	}

	return ipc.Response{}, true, fmt.Errorf("forward command %q: %w", req.Command, err)
}

func isSocketMissing(err error) bool {
	if err == nil {
		return false
	}
	return errors.Is(err, os.ErrNotExist) ||
		strings.Contains(err.Error(), "no such file or directory")
}

func isConnectionRefused(err error) bool {
	if err == nil {
		return false
	}
	return errors.Is(err, syscall.ECONNREFUSED)
}
