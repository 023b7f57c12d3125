package replay

import (
	"bufio"
	"encoding/base64"
	"encoding/json"
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/pitwall/lt-relay/internal/clock"
)

// Recorder tees live frames into a capture file the Player can play back.
type Recorder struct {
	mu  sync.Mutex
	f   *os.File
	w   *bufio.Writer
	log zerolog.Logger

	frames int64
}

// NewRecorder opens (or creates) the capture file for appending.
func NewRecorder(path string, log zerolog.Logger) (*Recorder, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, err
	}
	r := &Recorder{
		f:   f,
		w:   bufio.NewWriter(f),
		log: log.With().Str("component", "recorder").Logger(),
	}
	r.log.Info().Str("path", path).Msg("capture recording started")
	return r, nil
}

// RecordText appends one text frame.
func (r *Recorder) RecordText(frame string, at time.Time) {
	r.write(entry{Timestamp: clock.FormatISO(at), Type: "text", Data: frame})
}

// RecordBinary appends one binary frame, base64-encoded.
func (r *Recorder) RecordBinary(data []byte, at time.Time) {
	r.write(entry{Timestamp: clock.FormatISO(at), Type: "binary", Data: base64.StdEncoding.EncodeToString(data)})
}

func (r *Recorder) write(e entry) {
	line, err := json.Marshal(e)
	if err != nil {
		r.log.Error().Err(err).Msg("capture entry marshal failed")
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.w == nil {
		return
	}
	if _, err := r.w.Write(append(line, '\n')); err != nil {
		r.log.Error().Err(err).Msg("capture write failed")
		return
	}
	r.frames++
}

// Close flushes and closes the capture file.
func (r *Recorder) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.w == nil {
		return nil
	}
	flushErr := r.w.Flush()
	closeErr := r.f.Close()
	r.w = nil
	r.log.Info().Int64("frames", r.frames).Msg("capture recording closed")
	if flushErr != nil {
		return flushErr
	}
	return closeErr
}
