package audio

import (
	"encoding/binary"
	"errors"
	"fmt"
	"log/slog"
	"os"
)

const (
	wavHeaderSize = 44
	wavChannels   = 1
	wavBits       = 16
)

var (
	// ErrWriterFinalized reports payload writes after Finalize. This is a
	// caller bug, not a recoverable condition.
	ErrWriterFinalized = errors.New("wav writer already finalized")
	// ErrRateNegotiated reports a second sample-rate negotiation attempt.
	ErrRateNegotiated = errors.New("wav sample rate already negotiated")
)

// PendingWriter owns a freshly created WAV file whose sample rate is not yet
// known. The file on disk holds a 44-byte zero placeholder until Negotiate
// fixes the format; no payload can be written before that.
type PendingWriter struct {
	path   string
	file   *os.File
	logger *slog.Logger
}

// CreateWriter creates path with a zeroed placeholder header. An open or
// write failure is logged and degrades the writer into a no-op sink; the
// resulting near-empty file is detected downstream as a capture failure.
func CreateWriter(path string, logger *slog.Logger) *PendingWriter {
	p := &PendingWriter{path: path, logger: logger}

	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
	if err != nil {
		p.logWarn("open wav file failed", err)
		return p
	}
	if _, err := file.Write(make([]byte, wavHeaderSize)); err != nil {
		p.logWarn("write wav placeholder failed", err)
		_ = file.Close()
		return p
	}
	p.file = file
	return p
}

// Negotiate fixes the sample rate exactly once and yields the append-capable
// writer. The pending writer must not be reused afterwards.
func (p *PendingWriter) Negotiate(sampleRate int) *Writer {
	w := &Writer{path: p.path, file: p.file, logger: p.logger, sampleRate: sampleRate}
	p.file = nil
	return w
}

// Abort closes the placeholder file without recording any payload. The
// leftover 44-byte file reads as an empty capture downstream.
func (p *PendingWriter) Abort() {
	if p.file == nil {
		return
	}
	_ = p.file.Close()
	p.file = nil
}

// Path returns the target file path.
func (p *PendingWriter) Path() string {
	return p.path
}

func (p *PendingWriter) logWarn(msg string, err error) {
	if p.logger == nil {
		return
	}
	p.logger.Warn(msg, "path", p.path, "error", err.Error())
}

// Writer appends encoded mono 16-bit PCM payload to one WAV file and
// finalizes the header once the total size is known. A Writer serves a
// single producer; it is not safe for concurrent Append calls.
type Writer struct {
	path       string
	file       *os.File
	logger     *slog.Logger
	sampleRate int
	payload    int64
	finalized  bool
	dropLogged bool
}

// Append writes payload bytes after the placeholder header. Appends on a
// degraded (open-failed) writer are dropped so the audio callback never
// stalls; appends after Finalize return ErrWriterFinalized and leave the
// file untouched.
func (w *Writer) Append(b []byte) error {
	if w.finalized {
		return ErrWriterFinalized
	}
	if w.file == nil || len(b) == 0 {
		return nil
	}
	n, err := w.file.Write(b)
	w.payload += int64(n)
	if err != nil {
		if !w.dropLogged {
			w.dropLogged = true
			if w.logger != nil {
				w.logger.Warn("wav append failed; dropping further payload", "path", w.path, "error", err.Error())
			}
		}
		_ = w.file.Close()
		w.file = nil
	}
	return nil
}

// Finalize rewrites bytes 0-43 with a header reflecting the accumulated
// payload and closes the file. It returns the total payload byte count and
// is safe to call more than once.
func (w *Writer) Finalize() (int64, error) {
	if w.finalized {
		return w.payload, nil
	}
	w.finalized = true

	if w.file == nil {
		return w.payload, nil
	}
	defer func() {
		_ = w.file.Close()
		w.file = nil
	}()

	header := EncodeHeader(w.sampleRate, w.payload)
	if _, err := w.file.WriteAt(header, 0); err != nil {
		return w.payload, fmt.Errorf("finalize wav header %q: %w", w.path, err)
	}
	return w.payload, nil
}

// Payload returns the payload bytes accepted so far.
func (w *Writer) Payload() int64 {
	return w.payload
}

// SampleRate returns the negotiated sample rate.
func (w *Writer) SampleRate() int {
	return w.sampleRate
}

// Path returns the target file path.
func (w *Writer) Path() string {
	return w.path
}

// EncodeHeader renders the 44-byte PCM WAV header for a mono 16-bit payload
// of the given byte length.
func EncodeHeader(sampleRate int, payloadBytes int64) []byte {
	byteRate := sampleRate * wavChannels * (wavBits / 8)
	blockAlign := wavChannels * (wavBits / 8)

	header := make([]byte, wavHeaderSize)
	copy(header[0:4], []byte("RIFF"))
	binary.LittleEndian.PutUint32(header[4:8], uint32(36+payloadBytes))
	copy(header[8:12], []byte("WAVE"))
	copy(header[12:16], []byte("fmt "))
	binary.LittleEndian.PutUint32(header[16:20], 16)
	binary.LittleEndian.PutUint16(header[20:22], 1) // PCM
	binary.LittleEndian.PutUint16(header[22:24], wavChannels)
	binary.LittleEndian.PutUint32(header[24:28], uint32(sampleRate))
	binary.LittleEndian.PutUint32(header[28:32], uint32(byteRate))
	binary.LittleEndian.PutUint16(header[32:34], uint16(blockAlign))
	binary.LittleEndian.PutUint16(header[34:36], wavBits)
	copy(header[36:40], []byte("data"))
	binary.LittleEndian.PutUint32(header[40:44], uint32(payloadBytes))
	return header
}
