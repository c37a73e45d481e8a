package config

import (
	"fmt"
	"strings"
)

// Validate enforces config invariants and returns non-fatal warnings.
func Validate(cfg Config) ([]Warning, error) {
	warnings := make([]Warning, 0)

	if strings.TrimSpace(cfg.Transcriber.Endpoint) == "" {
		return nil, fmt.Errorf("transcriber.endpoint must not be empty")
	}
	if !strings.HasPrefix(cfg.Transcriber.Endpoint, "http://") && !strings.HasPrefix(cfg.Transcriber.Endpoint, "https://") {
		return nil, fmt.Errorf("transcriber.endpoint must be an http(s) URL")
	}
	if strings.TrimSpace(cfg.Transcriber.HealthPath) != "" && !strings.HasPrefix(cfg.Transcriber.HealthPath, "/") {
		return nil, fmt.Errorf("transcriber.health_path must start with '/'")
	}
	if strings.TrimSpace(cfg.Transcriber.Language) == "" {
		return nil, fmt.Errorf("transcriber.language must not be empty")
	}
	if cfg.Transcriber.TimeoutSeconds <= 0 {
		return nil, fmt.Errorf("transcriber.timeout_seconds must be > 0")
	}

	if strings.TrimSpace(cfg.Summarizer.Endpoint) == "" {
		return nil, fmt.Errorf("summarizer.endpoint must not be empty")
	}
	if cfg.Summarizer.TimeoutSeconds <= 0 {
		return nil, fmt.Errorf("summarizer.timeout_seconds must be > 0")
	}
	if strings.TrimSpace(cfg.Summarizer.Profile) == "" {
		return nil, fmt.Errorf("summarizer.profile must not be empty")
	}
	if _, ok := cfg.Summarizer.Profiles[cfg.Summarizer.Profile]; !ok {
		return nil, fmt.Errorf("summarizer.profile %q has no matching entry in summarizer.profiles", cfg.Summarizer.Profile)
	}
	for name, instructions := range cfg.Summarizer.Profiles {
		if strings.TrimSpace(name) == "" {
			return nil, fmt.Errorf("summarizer.profiles contains an empty profile name")
		}
		if strings.TrimSpace(instructions) == "" {
			warnings = append(warnings, Warning{
				Message: fmt.Sprintf("summarizer profile %q has empty instructions", name),
			})
		}
	}

	if strings.TrimSpace(cfg.Session.Root) == "" {
		return nil, fmt.Errorf("session.root must not be empty")
	}
	if cfg.Session.DoneHoldMS < 0 {
		return nil, fmt.Errorf("session.done_hold_ms must be >= 0")
	}

	if cfg.Indicator.Enable && strings.TrimSpace(cfg.Indicator.AppName) == "" {
		return nil, fmt.Errorf("indicator.app_name must not be empty when indicator.enable=true")
	}
	if cfg.Indicator.ErrorTimeoutMS < 0 {
		return nil, fmt.Errorf("indicator.error_timeout_ms must be >= 0")
	}

	if len(cfg.Clipboard.Argv) == 0 {
		return nil, fmt.Errorf("clipboard_cmd must not be empty")
	}

	return warnings, nil
}
