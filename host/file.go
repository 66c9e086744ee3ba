package host

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"
	"time"
)

// FileHost reads the inputs from disk and writes selections as JSON lines.
type FileHost struct {
	LogFile      string
	ManifestFile string

	mu  sync.Mutex
	out io.Writer
}

// Selection is one line written by FileHost.
type Selection struct {
	Time time.Time `json:"time"`
	IDs  []int64   `json:"ids"`
}

// NewFileHost creates a host over the given files. A nil out discards
// selections.
func NewFileHost(logFile, manifestFile string, out io.Writer) *FileHost {
	if out == nil {
		out = io.Discard
	}
	return &FileHost{LogFile: logFile, ManifestFile: manifestFile, out: out}
}

func (h *FileHost) RawLog(ctx context.Context) (string, error) {
	return readFile(ctx, h.LogFile)
}

func (h *FileHost) VariableManifest(ctx context.Context) (string, error) {
	return readFile(ctx, h.ManifestFile)
}

func readFile(ctx context.Context, path string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("reading %s: %w", path, err)
	}
	return string(data), nil
}

func (h *FileHost) NotifySelection(id int64) error {
	return h.NotifySelectionMany([]int64{id})
}

func (h *FileHost) NotifySelectionMany(ids []int64) error {
	if ids == nil {
		ids = []int64{}
	}
	line, err := json.Marshal(Selection{Time: time.Now().UTC(), IDs: ids})
	if err != nil {
		return err
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, err := h.out.Write(append(line, '\n')); err != nil {
		return fmt.Errorf("writing selection: %w", err)
	}
	return nil
}

// OpenSelectionFile opens path for appending selections. An empty path
// returns stdout.
func OpenSelectionFile(path string) (io.WriteCloser, error) {
	if path == "" {
		return nopCloser{os.Stdout}, nil
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("opening selection file: %w", err)
	}
	return f, nil
}

type nopCloser struct{ io.Writer }

func (nopCloser) Close() error { return nil }
