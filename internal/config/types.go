// Package config resolves, parses, validates, and defaults koememo configuration.
package config

// Config is the fully materialized runtime configuration used by koememo.
type Config struct {
	Audio       AudioConfig
	Transcriber TranscriberConfig
	Summarizer  SummarizerConfig
	Session     SessionConfig
	Indicator   IndicatorConfig
	Clipboard   CommandConfig
	Debug       DebugConfig
}

// AudioConfig controls input-source selection for the capture backend.
type AudioConfig struct {
	// Input is the preferred device identifier; empty or "default" taps the
	// system default source.
	Input string
}

// TranscriberConfig points at the external speech-to-text service.
type TranscriberConfig struct {
	Endpoint       string
	HealthPath     string
	Language       string
	TimeoutSeconds int
}

// SummarizerConfig points at the external summarization service and selects
// the active instruction profile.
type SummarizerConfig struct {
	Endpoint       string
	Model          string
	APIKeyEnv      string
	Profile        string
	Profiles       map[string]string
	TimeoutSeconds int
}

// SessionConfig controls the on-disk session layout and shutdown behavior.
type SessionConfig struct {
	Root             string
	PurgeAudioOnQuit bool
	DoneHoldMS       int
}

// IndicatorConfig controls desktop notification and audio cue behavior.
type IndicatorConfig struct {
	Enable         bool
	AppName        string
	ErrorTimeoutMS int
	Sound          bool
}

// CommandConfig stores a raw command string and its parsed argv form.
type CommandConfig struct {
	Raw  string
	Argv []string
}

// DebugConfig controls optional debug artifact behavior.
type DebugConfig struct {
	// KeepStagedAudio copies captures into the session dir instead of
	// moving them, leaving the staged original behind for inspection.
	KeepStagedAudio bool
}

// Warning is a non-fatal parse/validation message.
type Warning struct {
	Line    int
	Message string
}

// Instructions resolves the active summarization profile's instruction text.
func (c Config) Instructions() string {
	return c.Summarizer.Profiles[c.Summarizer.Profile]
}
