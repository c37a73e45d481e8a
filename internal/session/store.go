// Package session owns the on-disk session layout: dated per-recording
// directories, artifact persistence, and the shutdown purge hook.
package session

import (
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"
)

const dirTimestampLayout = "20060102-150405"

// audioExtensions is the fixed set of file extensions the purge hook is
// allowed to delete. Everything else under the session root survives.
var audioExtensions = map[string]bool{
	".wav":  true,
	".m4a":  true,
	".mp3":  true,
	".aac":  true,
	".aiff": true,
	".aif":  true,
	".caf":  true,
}

// Store resolves and manages directories under one session root.
type Store struct {
	root   string
	logger *slog.Logger
}

// NewStore constructs a store for the given root. The root itself is created
// lazily by the first stage that needs it.
func NewStore(root string, logger *slog.Logger) *Store {
	return &Store{root: root, logger: logger}
}

// Root returns the session root path.
func (s *Store) Root() string {
	return s.root
}

// CreateDir creates (if needed) and returns a dated session directory for a
// recording that started at the given time.
func (s *Store) CreateDir(startedAt time.Time) (string, error) {
	if startedAt.IsZero() {
		startedAt = time.Now()
	}
	if err := os.MkdirAll(s.root, 0o700); err != nil {
		return "", fmt.Errorf("create session root %q: %w", s.root, err)
	}

	base := filepath.Join(s.root, startedAt.Format(dirTimestampLayout))
	dir := base
	for attempt := 2; ; attempt++ {
		err := os.Mkdir(dir, 0o700)
		if err == nil {
			return dir, nil
		}
		if !os.IsExist(err) {
			return "", fmt.Errorf("create session dir %q: %w", dir, err)
		}
		// same-second start, disambiguate
		dir = fmt.Sprintf("%s-%d", base, attempt)
	}
}

// PlaceAudio relocates an audio file into dir, trying rename first and
// falling back to copy+remove when the rename crosses filesystems or is
// otherwise refused. It returns the file's new path.
func (s *Store) PlaceAudio(audioPath, dir string) (string, error) {
	dest := filepath.Join(dir, filepath.Base(audioPath))
	if dest == audioPath {
		return dest, nil
	}

	if err := os.Rename(audioPath, dest); err == nil {
		return dest, nil
	}

	if err := copyFile(audioPath, dest); err != nil {
		return "", fmt.Errorf("relocate audio %q: %w", audioPath, err)
	}
	if err := os.Remove(audioPath); err != nil && s.logger != nil {
		s.logger.Warn("remove staged audio after copy failed", "path", audioPath, "error", err.Error())
	}
	return dest, nil
}

// CopyAudio copies an audio file into dir, leaving the original in place.
// It returns the copy's path.
func (s *Store) CopyAudio(audioPath, dir string) (string, error) {
	dest := filepath.Join(dir, filepath.Base(audioPath))
	if dest == audioPath {
		return dest, nil
	}
	if err := copyFile(audioPath, dest); err != nil {
		return "", fmt.Errorf("copy audio %q: %w", audioPath, err)
	}
	return dest, nil
}

// WriteTranscript persists the processed transcript under dir.
func (s *Store) WriteTranscript(dir, text string) error {
	return writeArtifact(filepath.Join(dir, "transcript.txt"), text)
}

// WriteSummary persists the summary under dir.
func (s *Store) WriteSummary(dir, text string) error {
	return writeArtifact(filepath.Join(dir, "summary.txt"), text)
}

// PurgeAudio walks the session root and deletes audio files only, leaving
// transcripts, summaries, and anything else untouched. Individual failures
// are logged and skipped; the scan never aborts. It returns the number of
// files deleted.
func (s *Store) PurgeAudio() int {
	deleted := 0
	err := filepath.WalkDir(s.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			s.logWarn("purge scan error", path, err)
			return nil
		}
		if d.IsDir() {
			return nil
		}
		if !audioExtensions[strings.ToLower(filepath.Ext(path))] {
			return nil
		}
		if err := os.Remove(path); err != nil {
			s.logWarn("purge delete failed", path, err)
			return nil
		}
		deleted++
		return nil
	})
	if err != nil && !os.IsNotExist(err) {
		s.logWarn("purge walk failed", s.root, err)
	}
	return deleted
}

func (s *Store) logWarn(msg, path string, err error) {
	if s.logger == nil {
		return
	}
	s.logger.Warn(msg, "path", path, "error", err.Error())
}

// writeArtifact writes UTF-8 text, creating parent directories as needed.
func writeArtifact(path, text string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("create artifact dir for %q: %w", path, err)
	}
	if err := os.WriteFile(path, []byte(text), 0o600); err != nil {
		return fmt.Errorf("write artifact %q: %w", path, err)
	}
	return nil
}

// copyFile copies src to dst preserving content only.
func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
	if err != nil {
		return err
	}

	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		return err
	}
	return out.Close()
}
