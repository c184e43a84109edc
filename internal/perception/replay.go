package perception

import (
	"encoding/json"
	"fmt"
	"os"
)

// Replay logs hold one JSON-encoded DetectionBatch per line, in arrival
// order. They are the offline interchange format between the simulator,
// live capture, and the replay scorer.

// LogWriter appends detection batches to a replay log.
type LogWriter struct {
	f   *os.File
	enc *json.Encoder
}

// CreateLog creates (or truncates) a replay log at path.
func CreateLog(path string) (*LogWriter, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create replay log: %w", err)
	}
	return &LogWriter{f: f, enc: json.NewEncoder(f)}, nil
}

// Append writes one batch as a single line.
func (w *LogWriter) Append(batch DetectionBatch) error {
	if err := w.enc.Encode(batch); err != nil {
		return fmt.Errorf("append batch: %w", err)
	}
	return nil
}

// Close flushes and closes the log file.
func (w *LogWriter) Close() error {
	return w.f.Close()
}

// LogReader streams detection batches back out of a replay log. It
// implements BatchSource; Next returns io.EOF when the log is
// exhausted.
type LogReader struct {
	f   *os.File
	dec *json.Decoder
}

// OpenLog opens a replay log for reading.
func OpenLog(path string) (*LogReader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open replay log: %w", err)
	}
	return &LogReader{f: f, dec: json.NewDecoder(f)}, nil
}

// Next returns the next batch in the log.
func (r *LogReader) Next() (DetectionBatch, error) {
	var batch DetectionBatch
	if err := r.dec.Decode(&batch); err != nil {
		return DetectionBatch{}, err
	}
	return batch, nil
}

// Close closes the log file.
func (r *LogReader) Close() error {
	return r.f.Close()
}
