package session

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestCreateDirUsesTimestampName(t *testing.T) {
	root := t.TempDir()
	store := NewStore(root, nil)

	startedAt := time.Date(2026, 3, 14, 9, 26, 53, 0, time.Local)
	dir, err := store.CreateDir(startedAt)
	require.NoError(t, err)
	require.Equal(t, filepath.Join(root, "20260314-092653"), dir)

	info, err := os.Stat(dir)
	require.NoError(t, err)
	require.True(t, info.IsDir())

	// A second recording in the same second gets its own dir.
	again, err := store.CreateDir(startedAt)
	require.NoError(t, err)
	require.Equal(t, filepath.Join(root, "20260314-092653-2"), again)
}

func TestPlaceAudioMovesIntoSessionDir(t *testing.T) {
	root := t.TempDir()
	store := NewStore(root, nil)

	staged := filepath.Join(t.TempDir(), "capture-1.wav")
	require.NoError(t, os.WriteFile(staged, []byte("RIFFdata"), 0o600))

	dir, err := store.CreateDir(time.Now())
	require.NoError(t, err)

	dest, err := store.PlaceAudio(staged, dir)
	require.NoError(t, err)
	require.Equal(t, filepath.Join(dir, "capture-1.wav"), dest)

	moved, err := os.ReadFile(dest)
	require.NoError(t, err)
	require.Equal(t, []byte("RIFFdata"), moved)

	_, err = os.Stat(staged)
	require.True(t, os.IsNotExist(err), "staged file must be gone after move")
}

func TestPlaceAudioAlreadyInPlace(t *testing.T) {
	root := t.TempDir()
	store := NewStore(root, nil)

	dir, err := store.CreateDir(time.Now())
	require.NoError(t, err)
	path := filepath.Join(dir, "take.wav")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o600))

	dest, err := store.PlaceAudio(path, dir)
	require.NoError(t, err)
	require.Equal(t, path, dest)
}

func TestWriteArtifacts(t *testing.T) {
	store := NewStore(t.TempDir(), nil)
	dir, err := store.CreateDir(time.Now())
	require.NoError(t, err)

	require.NoError(t, store.WriteTranscript(dir, "a transcript"))
	require.NoError(t, store.WriteSummary(dir, "a summary"))

	transcript, err := os.ReadFile(filepath.Join(dir, "transcript.txt"))
	require.NoError(t, err)
	require.Equal(t, "a transcript", string(transcript))

	summary, err := os.ReadFile(filepath.Join(dir, "summary.txt"))
	require.NoError(t, err)
	require.Equal(t, "a summary", string(summary))
}

func TestPurgeAudioDeletesOnlyAudioFiles(t *testing.T) {
	root := t.TempDir()
	store := NewStore(root, nil)

	dir, err := store.CreateDir(time.Now())
	require.NoError(t, err)

	files := map[string]bool{ // path -> should survive
		filepath.Join(dir, "take.wav"):       false,
		filepath.Join(dir, "take.M4A"):       false,
		filepath.Join(dir, "extra.mp3"):      false,
		filepath.Join(dir, "transcript.txt"): true,
		filepath.Join(dir, "summary.txt"):    true,
		filepath.Join(dir, "notes.md"):       true,
	}
	for path := range files {
		require.NoError(t, os.WriteFile(path, []byte("x"), 0o600))
	}

	deleted := store.PurgeAudio()
	require.Equal(t, 3, deleted)

	for path, survives := range files {
		_, err := os.Stat(path)
		if survives {
			require.NoError(t, err, "%s should survive", path)
		} else {
			require.True(t, os.IsNotExist(err), "%s should be deleted", path)
		}
	}
}

func TestPurgeAudioMissingRootIsQuiet(t *testing.T) {
	store := NewStore(filepath.Join(t.TempDir(), "nope"), nil)
	require.Zero(t, store.PurgeAudio())
}
