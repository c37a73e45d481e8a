package config

import (
	"fmt"
	"strconv"
	"strings"
)

const legacyFormatWarning = "legacy key=value config format is deprecated; migrate to JSONC (see README)"

// Parse reads a config document and overlays it on base. Documents that
// begin with '{' are parsed as JSONC; anything else is treated as the
// legacy key=value format.
func Parse(content string, base Config) (Config, []Warning, error) {
	trimmed := strings.TrimSpace(content)
	if trimmed == "" {
		warnings, err := Validate(base)
		if err != nil {
			return Config{}, nil, err
		}
		return base, warnings, nil
	}
	if strings.HasPrefix(trimmed, "{") {
		return parseJSONC(content, base)
	}
	return parseLegacy(content, base)
}

func parseLegacy(content string, base Config) (Config, []Warning, error) {
	cfg := base
	warnings := []Warning{{Line: 0, Message: legacyFormatWarning}}

	lines := strings.Split(content, "\n")
	for i, raw := range lines {
		lineNo := i + 1
		line := strings.TrimSpace(raw)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		key, value, found := strings.Cut(line, "=")
		if !found {
			return Config{}, nil, fmt.Errorf("line %d: expected key=value, got %q", lineNo, line)
		}
		key = strings.TrimSpace(key)
		value = strings.TrimSpace(value)

		if err := applyLegacyKey(&cfg, key, value); err != nil {
			return Config{}, nil, fmt.Errorf("line %d: %w", lineNo, err)
		}
	}

	validatedWarnings, err := Validate(cfg)
	if err != nil {
		return Config{}, nil, err
	}
	warnings = append(warnings, validatedWarnings...)
	return cfg, warnings, nil
}

func applyLegacyKey(cfg *Config, key, value string) error {
	switch key {
	case "audio.input":
		cfg.Audio.Input = value
	case "transcriber.endpoint":
		cfg.Transcriber.Endpoint = value
	case "transcriber.health_path":
		cfg.Transcriber.HealthPath = value
	case "transcriber.language":
		cfg.Transcriber.Language = value
	case "transcriber.timeout_seconds":
		return setLegacyInt(&cfg.Transcriber.TimeoutSeconds, key, value)
	case "summarizer.endpoint":
		cfg.Summarizer.Endpoint = value
	case "summarizer.model":
		cfg.Summarizer.Model = value
	case "summarizer.api_key_env":
		cfg.Summarizer.APIKeyEnv = value
	case "summarizer.profile":
		cfg.Summarizer.Profile = value
	case "summarizer.timeout_seconds":
		return setLegacyInt(&cfg.Summarizer.TimeoutSeconds, key, value)
	case "session.root":
		cfg.Session.Root = value
	case "session.purge_audio_on_quit":
		return setLegacyBool(&cfg.Session.PurgeAudioOnQuit, key, value)
	case "session.done_hold_ms":
		return setLegacyInt(&cfg.Session.DoneHoldMS, key, value)
	case "indicator.enable":
		return setLegacyBool(&cfg.Indicator.Enable, key, value)
	case "indicator.app_name":
		cfg.Indicator.AppName = value
	case "indicator.error_timeout_ms":
		return setLegacyInt(&cfg.Indicator.ErrorTimeoutMS, key, value)
	case "indicator.sound":
		return setLegacyBool(&cfg.Indicator.Sound, key, value)
	case "clipboard_cmd":
		argv, err := parseArgv(value)
		if err != nil {
			return fmt.Errorf("invalid clipboard_cmd: %w", err)
		}
		cfg.Clipboard = CommandConfig{Raw: value, Argv: argv}
	case "debug.keep_staged_audio":
		return setLegacyBool(&cfg.Debug.KeepStagedAudio, key, value)
	default:
		return fmt.Errorf("unknown key %q", key)
	}
	return nil
}

func setLegacyInt(dst *int, key, value string) error {
	n, err := strconv.Atoi(value)
	if err != nil {
		return fmt.Errorf("%s: expected integer, got %q", key, value)
	}
	*dst = n
	return nil
}

func setLegacyBool(dst *bool, key, value string) error {
	b, err := strconv.ParseBool(value)
	if err != nil {
		return fmt.Errorf("%s: expected boolean, got %q", key, value)
	}
	*dst = b
	return nil
}
