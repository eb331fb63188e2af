package ledger

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"sync"
)

// JSONLStream is a single append-only JSON-lines file. Every governance
// stream named in spec.md §3/§6 (execution ledger, approval audit log,
// signals, feedback) is one of these: the file is the source of truth,
// and anything queryable is a rebuildable index over it.
//
// Concurrent writers are expected to serialize through filesystem append
// atomicity for lines under PIPE_BUF (spec.md §7); the in-process mutex
// here only protects against two goroutines in the same process
// interleaving writes.
type JSONLStream struct {
	path string
	mu   sync.Mutex
}

// NewJSONLStream returns a stream for the JSONL file at path. The file is
// not touched here; Append creates it if absent.
func NewJSONLStream(path string) *JSONLStream {
	return &JSONLStream{path: path}
}

// Append marshals v to a single JSON line and appends it to the stream.
func (s *JSONLStream) Append(v any) error {
	line, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("ledger: marshal record: %w", err)
	}
	line = append(line, '\n')

	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := os.OpenFile(s.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("ledger: open %s: %w", s.path, err)
	}
	defer func() { _ = f.Close() }()

	if _, err := f.Write(line); err != nil {
		return fmt.Errorf("ledger: write %s: %w", s.path, err)
	}
	return nil
}

// ReadJSONL decodes every line of the file at path into T, skipping blank
// lines. A missing file is treated as an empty stream, not an error.
func ReadJSONL[T any](path string) ([]T, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("ledger: open %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	var out []T
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var v T
		if err := json.Unmarshal(line, &v); err != nil {
			return nil, fmt.Errorf("ledger: decode %s: %w", path, err)
		}
		out = append(out, v)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("ledger: scan %s: %w", path, err)
	}
	return out, nil
}
