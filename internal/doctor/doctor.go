// Package doctor runs readiness diagnostics for config, tools, audio
// capture, and the external transcription and summarization services.
package doctor

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/koememo/koememo/internal/audio"
	"github.com/koememo/koememo/internal/config"
)

// Check is one doctor assertion result.
type Check struct {
	Name    string
	Pass    bool
	Message string
}

// Report is the full doctor output contract.
type Report struct {
	Checks []Check
}

// OK returns true when all checks pass.
func (r Report) OK() bool {
	for _, check := range r.Checks {
		if !check.Pass {
			return false
		}
	}
	return true
}

// String renders the report as user-facing text output.
func (r Report) String() string {
	var b strings.Builder
	for _, check := range r.Checks {
		status := "OK"
		if !check.Pass {
			status = "FAIL"
		}
		b.WriteString(fmt.Sprintf("[%s] %s: %s\n", status, check.Name, check.Message))
	}
	return strings.TrimSuffix(b.String(), "\n")
}

// Run executes environment/config/runtime checks for a loaded config.
func Run(cfg config.Loaded) Report {
	checks := []Check{}

	checks = append(checks, Check{
		Name:    "config",
		Pass:    true,
		Message: fmt.Sprintf("loaded %q", cfg.Path),
	})

	checks = append(checks, checkCommand(cfg.Config.Clipboard.Argv, "clipboard_cmd"))

	if cfg.Config.Indicator.Enable {
		checks = append(checks, checkBinary("busctl", "desktop notifications use busctl"))
	}

	checks = append(checks, checkAudioDevice(cfg.Config))
	checks = append(checks, checkTranscriber(cfg.Config))
	checks = append(checks, checkSummarizerCredential(cfg.Config))
	checks = append(checks, checkSessionRoot(cfg.Config))

	return Report{Checks: checks}
}

// checkCommand validates that argv contains a runnable command.
func checkCommand(argv []string, name string) Check {
	if len(argv) == 0 {
		return Check{Name: name, Pass: false, Message: "command is empty"}
	}
	return checkBinary(argv[0], fmt.Sprintf("%s command is available", name))
}

// checkBinary validates that a binary exists in PATH.
func checkBinary(bin string, okMsg string) Check {
	path, err := exec.LookPath(bin)
	if err != nil {
		return Check{Name: bin, Pass: false, Message: fmt.Sprintf("binary not found in PATH: %s", bin)}
	}
	return Check{Name: bin, Pass: true, Message: fmt.Sprintf("found at %s (%s)", path, okMsg)}
}

// checkAudioDevice resolves the configured input against live sources.
func checkAudioDevice(cfg config.Config) Check {
	term := strings.TrimSpace(cfg.Audio.Input)
	if term == "" || strings.EqualFold(term, "default") {
		return Check{Name: "audio.device", Pass: true, Message: "using system default source"}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	device, matched, err := audio.MatchDevice(ctx, term)
	if err != nil {
		return Check{Name: "audio.device", Pass: false, Message: err.Error()}
	}
	if !matched {
		return Check{Name: "audio.device", Pass: false, Message: fmt.Sprintf("no source matches %q, capture will fall back to the default", term)}
	}
	return Check{Name: "audio.device", Pass: true, Message: fmt.Sprintf("matched %s", audio.DescribeDevice(device))}
}

// checkTranscriber probes the transcription service health endpoint.
func checkTranscriber(cfg config.Config) Check {
	base := strings.TrimSpace(cfg.Transcriber.Endpoint)
	if base == "" {
		return Check{Name: "transcriber.health", Pass: false, Message: "transcriber.endpoint is empty"}
	}

	url := strings.TrimRight(base, "/") + cfg.Transcriber.HealthPath
	client := http.Client{Timeout: 2 * time.Second}
	resp, err := client.Get(url)
	if err != nil {
		return Check{Name: "transcriber.health", Pass: false, Message: fmt.Sprintf("request failed: %v", err)}
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, io.LimitReader(resp.Body, 256))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return Check{Name: "transcriber.health", Pass: false, Message: fmt.Sprintf("HTTP %d from %s", resp.StatusCode, url)}
	}
	return Check{Name: "transcriber.health", Pass: true, Message: fmt.Sprintf("healthy at %s", url)}
}

// checkSummarizerCredential confirms the configured API key env is set
// without revealing its value.
func checkSummarizerCredential(cfg config.Config) Check {
	envName := strings.TrimSpace(cfg.Summarizer.APIKeyEnv)
	if envName == "" {
		return Check{Name: "summarizer.credential", Pass: true, Message: "no credential required"}
	}
	if strings.TrimSpace(os.Getenv(envName)) == "" {
		return Check{Name: "summarizer.credential", Pass: false, Message: fmt.Sprintf("%s is not set", envName)}
	}
	return Check{Name: "summarizer.credential", Pass: true, Message: fmt.Sprintf("%s is set", envName)}
}

// checkSessionRoot verifies the session root exists or can be created, and
// is writable.
func checkSessionRoot(cfg config.Config) Check {
	root := strings.TrimSpace(cfg.Session.Root)
	if root == "" {
		return Check{Name: "session.root", Pass: false, Message: "session.root is empty"}
	}
	if err := os.MkdirAll(root, 0o700); err != nil {
		return Check{Name: "session.root", Pass: false, Message: fmt.Sprintf("create %q: %v", root, err)}
	}

	probe := filepath.Join(root, ".doctor-probe")
	if err := os.WriteFile(probe, []byte("ok"), 0o600); err != nil {
		return Check{Name: "session.root", Pass: false, Message: fmt.Sprintf("%q is not writable: %v", root, err)}
	}
	_ = os.Remove(probe)
	return Check{Name: "session.root", Pass: true, Message: fmt.Sprintf("writable at %q", root)}
}
