package doctor

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/koememo/koememo/internal/config"
)

func TestReportOKAndString(t *testing.T) {
	report := Report{Checks: []Check{
		{Name: "one", Pass: true, Message: "fine"},
		{Name: "two", Pass: false, Message: "broken"},
	}}

	require.False(t, report.OK())
	text := report.String()
	require.Contains(t, text, "[OK] one: fine")
	require.Contains(t, text, "[FAIL] two: broken")

	report.Checks[1].Pass = true
	require.True(t, report.OK())
}

func TestCheckCommand(t *testing.T) {
	check := checkCommand(nil, "clipboard_cmd")
	require.False(t, check.Pass)
	require.Contains(t, check.Message, "empty")

	check = checkCommand([]string{"sh", "-c", "true"}, "clipboard_cmd")
	require.True(t, check.Pass)

	check = checkCommand([]string{"definitely-not-a-binary-xyz"}, "clipboard_cmd")
	require.False(t, check.Pass)
	require.Contains(t, check.Message, "not found in PATH")
}

func TestCheckAudioDeviceDefaultInputPassesWithoutServer(t *testing.T) {
	cfg := config.Default()
	cfg.Audio.Input = ""
	require.True(t, checkAudioDevice(cfg).Pass)

	cfg.Audio.Input = "default"
	require.True(t, checkAudioDevice(cfg).Pass)
}

func TestCheckTranscriber(t *testing.T) {
	healthy := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/health", r.URL.Path)
		w.WriteHeader(http.StatusOK)
	}))
	defer healthy.Close()

	cfg := config.Default()
	cfg.Transcriber.Endpoint = healthy.URL
	check := checkTranscriber(cfg)
	require.True(t, check.Pass)
	require.Contains(t, check.Message, "healthy")

	failing := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer failing.Close()

	cfg.Transcriber.Endpoint = failing.URL
	check = checkTranscriber(cfg)
	require.False(t, check.Pass)
	require.Contains(t, check.Message, "503")

	cfg.Transcriber.Endpoint = ""
	require.False(t, checkTranscriber(cfg).Pass)
}

func TestCheckSummarizerCredential(t *testing.T) {
	cfg := config.Default()
	cfg.Summarizer.APIKeyEnv = "DOCTOR_TEST_KEY"

	t.Setenv("DOCTOR_TEST_KEY", "")
	check := checkSummarizerCredential(cfg)
	require.False(t, check.Pass)
	require.Contains(t, check.Message, "DOCTOR_TEST_KEY")

	t.Setenv("DOCTOR_TEST_KEY", "sk-x")
	require.True(t, checkSummarizerCredential(cfg).Pass)

	cfg.Summarizer.APIKeyEnv = ""
	require.True(t, checkSummarizerCredential(cfg).Pass)
}

func TestCheckSessionRoot(t *testing.T) {
	cfg := config.Default()
	cfg.Session.Root = filepath.Join(t.TempDir(), "sessions")
	check := checkSessionRoot(cfg)
	require.True(t, check.Pass)

	info, err := os.Stat(cfg.Session.Root)
	require.NoError(t, err)
	require.True(t, info.IsDir())

	cfg.Session.Root = ""
	require.False(t, checkSessionRoot(cfg).Pass)
}
