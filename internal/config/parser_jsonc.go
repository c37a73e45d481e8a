package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
)

type jsoncConfig struct {
	Audio       *jsoncAudio       `json:"audio"`
	Transcriber *jsoncTranscriber `json:"transcriber"`
	Summarizer  *jsoncSummarizer  `json:"summarizer"`
	Session     *jsoncSession     `json:"session"`
	Indicator   *jsoncIndicator   `json:"indicator"`

	ClipboardCmd *string     `json:"clipboard_cmd"`
	Debug        *jsoncDebug `json:"debug"`
}

type jsoncAudio struct {
	Input *string `json:"input"`
}

type jsoncTranscriber struct {
	Endpoint       *string `json:"endpoint"`
	HealthPath     *string `json:"health_path"`
	Language       *string `json:"language"`
	TimeoutSeconds *int    `json:"timeout_seconds"`
}

type jsoncSummarizer struct {
	Endpoint       *string           `json:"endpoint"`
	Model          *string           `json:"model"`
	APIKeyEnv      *string           `json:"api_key_env"`
	Profile        *string           `json:"profile"`
	Profiles       map[string]string `json:"profiles"`
	TimeoutSeconds *int              `json:"timeout_seconds"`
}

type jsoncSession struct {
	Root             *string `json:"root"`
	PurgeAudioOnQuit *bool   `json:"purge_audio_on_quit"`
	DoneHoldMS       *int    `json:"done_hold_ms"`
}

type jsoncIndicator struct {
	Enable         *bool   `json:"enable"`
	AppName        *string `json:"app_name"`
	ErrorTimeoutMS *int    `json:"error_timeout_ms"`
	Sound          *bool   `json:"sound"`
}

type jsoncDebug struct {
	KeepStagedAudio *bool `json:"keep_staged_audio"`
}

func parseJSONC(content string, base Config) (Config, []Warning, error) {
	normalized, err := normalizeJSONC(content)
	if err != nil {
		return Config{}, nil, err
	}

	decoder := json.NewDecoder(strings.NewReader(normalized))
	decoder.DisallowUnknownFields()

	var payload jsoncConfig
	if err := decoder.Decode(&payload); err != nil {
		return Config{}, nil, wrapJSONDecodeError(normalized, err)
	}
	if err := ensureSingleJSONValue(decoder); err != nil {
		return Config{}, nil, wrapJSONDecodeError(normalized, err)
	}

	cfg := base
	warnings, err := payload.applyTo(&cfg)
	if err != nil {
		return Config{}, nil, err
	}

	validatedWarnings, err := Validate(cfg)
	if err != nil {
		return Config{}, nil, err
	}
	warnings = append(warnings, validatedWarnings...)
	return cfg, warnings, nil
}

func (payload jsoncConfig) applyTo(cfg *Config) ([]Warning, error) {
	warnings := make([]Warning, 0)

	if payload.Audio != nil && payload.Audio.Input != nil {
		cfg.Audio.Input = strings.TrimSpace(*payload.Audio.Input)
	}

	if payload.Transcriber != nil {
		if payload.Transcriber.Endpoint != nil {
			cfg.Transcriber.Endpoint = strings.TrimSpace(*payload.Transcriber.Endpoint)
		}
		if payload.Transcriber.HealthPath != nil {
			cfg.Transcriber.HealthPath = strings.TrimSpace(*payload.Transcriber.HealthPath)
		}
		if payload.Transcriber.Language != nil {
			cfg.Transcriber.Language = strings.TrimSpace(*payload.Transcriber.Language)
		}
		if payload.Transcriber.TimeoutSeconds != nil {
			cfg.Transcriber.TimeoutSeconds = *payload.Transcriber.TimeoutSeconds
		}
	}

	if payload.Summarizer != nil {
		if payload.Summarizer.Endpoint != nil {
			cfg.Summarizer.Endpoint = strings.TrimSpace(*payload.Summarizer.Endpoint)
		}
		if payload.Summarizer.Model != nil {
			cfg.Summarizer.Model = strings.TrimSpace(*payload.Summarizer.Model)
		}
		if payload.Summarizer.APIKeyEnv != nil {
			cfg.Summarizer.APIKeyEnv = strings.TrimSpace(*payload.Summarizer.APIKeyEnv)
		}
		if payload.Summarizer.Profile != nil {
			cfg.Summarizer.Profile = strings.TrimSpace(*payload.Summarizer.Profile)
		}
		if payload.Summarizer.Profiles != nil {
			if cfg.Summarizer.Profiles == nil {
				cfg.Summarizer.Profiles = make(map[string]string)
			}
			for name, instructions := range payload.Summarizer.Profiles {
				trimmedName := strings.TrimSpace(name)
				if trimmedName == "" {
					return nil, fmt.Errorf("summarizer.profiles contains an empty profile name")
				}
				cfg.Summarizer.Profiles[trimmedName] = instructions
			}
		}
		if payload.Summarizer.TimeoutSeconds != nil {
			cfg.Summarizer.TimeoutSeconds = *payload.Summarizer.TimeoutSeconds
		}
	}

	if payload.Session != nil {
		if payload.Session.Root != nil {
			cfg.Session.Root = strings.TrimSpace(*payload.Session.Root)
		}
		if payload.Session.PurgeAudioOnQuit != nil {
			cfg.Session.PurgeAudioOnQuit = *payload.Session.PurgeAudioOnQuit
		}
		if payload.Session.DoneHoldMS != nil {
			cfg.Session.DoneHoldMS = *payload.Session.DoneHoldMS
		}
	}

	if payload.Indicator != nil {
		if payload.Indicator.Enable != nil {
			cfg.Indicator.Enable = *payload.Indicator.Enable
		}
		if payload.Indicator.AppName != nil {
			cfg.Indicator.AppName = strings.TrimSpace(*payload.Indicator.AppName)
		}
		if payload.Indicator.ErrorTimeoutMS != nil {
			cfg.Indicator.ErrorTimeoutMS = *payload.Indicator.ErrorTimeoutMS
		}
		if payload.Indicator.Sound != nil {
			cfg.Indicator.Sound = *payload.Indicator.Sound
		}
	}

	if payload.ClipboardCmd != nil {
		raw := *payload.ClipboardCmd
		argv, err := parseArgv(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid clipboard_cmd: %w", err)
		}
		cfg.Clipboard = CommandConfig{Raw: raw, Argv: argv}
	}

	if payload.Debug != nil && payload.Debug.KeepStagedAudio != nil {
		cfg.Debug.KeepStagedAudio = *payload.Debug.KeepStagedAudio
	}

	return warnings, nil
}

func normalizeJSONC(content string) (string, error) {
	withoutComments, err := stripJSONCComments(content)
	if err != nil {
		return "", err
	}
	return stripJSONCTrailingCommas(withoutComments), nil
}

func stripJSONCComments(content string) (string, error) {
	var out strings.Builder
	out.Grow(len(content))

	inString := false
	escape := false
	lineComment := false
	blockComment := false

	for i := 0; i < len(content); i++ {
		ch := content[i]

		if lineComment {
			if ch == '\n' || ch == '\r' {
				lineComment = false
				out.WriteByte(ch)
				continue
			}
			out.WriteByte(' ')
			continue
		}

		if blockComment {
			if ch == '*' && i+1 < len(content) && content[i+1] == '/' {
				blockComment = false
				out.WriteString("  ")
				i++
				continue
			}
			if ch == '\n' || ch == '\r' || ch == '\t' {
				out.WriteByte(ch)
			} else {
				out.WriteByte(' ')
			}
			continue
		}

		if inString {
			out.WriteByte(ch)
			if escape {
				escape = false
				continue
			}
			if ch == '\\' {
				escape = true
				continue
			}
			if ch == '"' {
				inString = false
			}
			continue
		}

		if ch == '"' {
			inString = true
			out.WriteByte(ch)
			continue
		}

		if ch == '/' && i+1 < len(content) {
			next := content[i+1]
			if next == '/' {
				lineComment = true
				out.WriteString("  ")
				i++
				continue
			}
			if next == '*' {
				blockComment = true
				out.WriteString("  ")
				i++
				continue
			}
		}

		out.WriteByte(ch)
	}

	if blockComment {
		return "", fmt.Errorf("unterminated block comment in JSONC")
	}

	return out.String(), nil
}

func stripJSONCTrailingCommas(content string) string {
	var out strings.Builder
	out.Grow(len(content))

	inString := false
	escape := false

	for i := 0; i < len(content); i++ {
		ch := content[i]

		if inString {
			out.WriteByte(ch)
			if escape {
				escape = false
				continue
			}
			if ch == '\\' {
				escape = true
				continue
			}
			if ch == '"' {
				inString = false
			}
			continue
		}

		if ch == '"' {
			inString = true
			out.WriteByte(ch)
			continue
		}

		if ch == ',' {
			j := i + 1
			for j < len(content) && isJSONWhitespace(content[j]) {
				j++
			}
			if j < len(content) && (content[j] == '}' || content[j] == ']') {
				continue
			}
		}

		out.WriteByte(ch)
	}

	return out.String()
}

func isJSONWhitespace(ch byte) bool {
	switch ch {
	case ' ', '\n', '\r', '\t':
		return true
	default:
		return false
	}
}

func ensureSingleJSONValue(decoder *json.Decoder) error {
	var extra struct{}
	err := decoder.Decode(&extra)
	if errors.Is(err, io.EOF) {
		return nil
	}
	if err == nil {
		return fmt.Errorf("multiple JSON values are not allowed")
	}
	return err
}

func wrapJSONDecodeError(content string, err error) error {
	var syntaxErr *json.SyntaxError
	if errors.As(err, &syntaxErr) {
		line, col := offsetToLineCol(content, syntaxErr.Offset)
		return fmt.Errorf("line %d column %d: %w", line, col, err)
	}

	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) {
		line, col := offsetToLineCol(content, typeErr.Offset)
		return fmt.Errorf("line %d column %d: %w", line, col, err)
	}

	return err
}

func offsetToLineCol(content string, offset int64) (int, int) {
	if offset <= 0 {
		return 1, 1
	}

	limit := int(offset)
	if limit > len(content) {
		limit = len(content)
	}

	line := 1
	col := 1
	for i := 0; i < limit-1; i++ {
		if content[i] == '\n' {
			line++
			col = 1
			continue
		}
		col++
	}
	return line, col
}
