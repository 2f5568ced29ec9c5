package sink

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"cosmoscan/internal/models"
)

// JSONLines writes one JSON object per block record to a writer. FlushEvery
// bounds how many records may sit in the buffer before a forced flush.
type JSONLines struct {
	w          *bufio.Writer
	closer     io.Closer // nil for stdout
	enc        *json.Encoder
	flushEvery int
	pending    int
}

// NewStdout writes NDJSON to standard output.
func NewStdout(flushEvery int) *JSONLines {
	return newJSONLines(os.Stdout, nil, flushEvery)
}

// NewFile writes NDJSON to path, truncating any existing file.
func NewFile(path string, flushEvery int) (*JSONLines, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("open sink file %s: %w", path, err)
	}
	return newJSONLines(f, f, flushEvery), nil
}

func newJSONLines(w io.Writer, closer io.Closer, flushEvery int) *JSONLines {
	bw := bufio.NewWriterSize(w, 1<<20)
	if flushEvery <= 0 {
		flushEvery = 100
	}
	return &JSONLines{
		w:          bw,
		closer:     closer,
		enc:        json.NewEncoder(bw),
		flushEvery: flushEvery,
	}
}

func (s *JSONLines) Write(_ context.Context, rec *models.BlockRecord) error {
	if err := s.enc.Encode(rec); err != nil {
		return fmt.Errorf("encode block %d: %w", rec.Meta.Height, err)
	}
	s.pending++
	if s.pending >= s.flushEvery {
		return s.flush()
	}
	return nil
}

func (s *JSONLines) Flush(context.Context) error { return s.flush() }

func (s *JSONLines) flush() error {
	s.pending = 0
	return s.w.Flush()
}

func (s *JSONLines) Close(context.Context) error {
	if err := s.flush(); err != nil {
		return err
	}
	if s.closer != nil {
		return s.closer.Close()
	}
	return nil
}
