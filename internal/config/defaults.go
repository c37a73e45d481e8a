package config

import (
	"os"
	"path/filepath"
	"strings"
)

// Default returns the canonical runtime configuration used when no file is present.
func Default() Config {
	clipboard := "wl-copy --trim-newline"

	return Config{
		Audio: AudioConfig{Input: "default"},
		Transcriber: TranscriberConfig{
			Endpoint:       "http://127.0.0.1:9000",
			HealthPath:     "/health",
			Language:       "ja",
			TimeoutSeconds: 120,
		},
		Summarizer: SummarizerConfig{
			Endpoint:  "https://api.openai.com/v1/chat/completions",
			Model:     "gpt-4o-mini",
			APIKeyEnv: "OPENAI_API_KEY",
			Profile:   "general",
			Profiles: map[string]string{
				"general": "Summarize the dictation below into a short title line followed by concise bullet points. Keep the speaker's language.",
				"minutes": "Produce meeting minutes from the dictation below: decisions, action items with owners, and open questions.",
			},
			TimeoutSeconds: 120,
		},
		Session: SessionConfig{
			Root:             defaultSessionRoot(),
			PurgeAudioOnQuit: false,
			DoneHoldMS:       1500,
		},
		Indicator: IndicatorConfig{
			Enable:         true,
			AppName:        "koememo",
			ErrorTimeoutMS: 1600,
			Sound:          true,
		},
		Clipboard: CommandConfig{Raw: clipboard, Argv: mustParseArgv(clipboard)},
		Debug:     DebugConfig{},
	}
}

// defaultSessionRoot places sessions under the XDG data dir, falling back to
// a relative directory only when no home can be resolved.
func defaultSessionRoot() string {
	if xdg := strings.TrimSpace(os.Getenv("XDG_DATA_HOME")); xdg != "" {
		return filepath.Join(xdg, "koememo", "sessions")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "koememo-sessions"
	}
	return filepath.Join(home, ".local", "share", "koememo", "sessions")
}
