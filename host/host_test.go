package host

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFetchSynchronousDelivery(t *testing.T) {
	text, err := Fetch(context.Background(), func(deliver Deliver) {
		deliver("id,parentId\n", nil)
	})
	require.NoError(t, err)
	assert.Equal(t, "id,parentId\n", text)
}

func TestFetchAsynchronousDelivery(t *testing.T) {
	text, err := Fetch(context.Background(), func(deliver Deliver) {
		go func() {
			time.Sleep(10 * time.Millisecond)
			deliver("x;b", nil)
			deliver("ignored", nil)
		}()
	})
	require.NoError(t, err)
	assert.Equal(t, "x;b", text)
}

func TestFetchError(t *testing.T) {
	boom := errors.New("boom")
	_, err := Fetch(context.Background(), func(deliver Deliver) {
		deliver("", boom)
	})
	assert.ErrorIs(t, err, boom)
}

func TestFetchContextCancel(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := Fetch(ctx, func(Deliver) {})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestCallbackSource(t *testing.T) {
	src := &CallbackSource{
		Log:      func(d Deliver) { d("log", nil) },
		Manifest: func(d Deliver) { go d("manifest", nil) },
	}
	log, err := src.RawLog(context.Background())
	require.NoError(t, err)
	manifest, err := src.VariableManifest(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "log", log)
	assert.Equal(t, "manifest", manifest)

	_, err = (&CallbackSource{}).RawLog(context.Background())
	assert.ErrorIs(t, err, ErrNotDelivered)
}

func TestStaticSource(t *testing.T) {
	src := StaticSource{Log: "a", Manifest: "b"}
	log, err := src.RawLog(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "a", log)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = src.VariableManifest(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestFileHost(t *testing.T) {
	dir := t.TempDir()
	logFile := filepath.Join(dir, "search.csv")
	manifest := filepath.Join(dir, "vars.txt")
	require.NoError(t, os.WriteFile(logFile, []byte("id\n0\n"), 0o644))
	require.NoError(t, os.WriteFile(manifest, []byte("x;"), 0o644))

	var buf bytes.Buffer
	h := NewFileHost(logFile, manifest, &buf)

	log, err := h.RawLog(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "id\n0\n", log)
	m, err := h.VariableManifest(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "x;", m)

	require.NoError(t, h.NotifySelection(1004))
	require.NoError(t, h.NotifySelectionMany([]int64{1, 2, 3}))
	require.NoError(t, h.NotifySelectionMany(nil))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 3)
	var sel Selection
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &sel))
	assert.Equal(t, []int64{1004}, sel.IDs)
	require.NoError(t, json.Unmarshal([]byte(lines[1]), &sel))
	assert.Equal(t, []int64{1, 2, 3}, sel.IDs)
	assert.Contains(t, lines[2], `"ids":[]`)
}

func TestFileHostMissingFile(t *testing.T) {
	h := NewFileHost(filepath.Join(t.TempDir(), "missing.csv"), "", nil)
	_, err := h.RawLog(context.Background())
	assert.Error(t, err)
	assert.NoError(t, h.NotifySelection(1))
}

func TestOpenSelectionFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sel.jsonl")
	w, err := OpenSelectionFile(path)
	require.NoError(t, err)
	h := NewFileHost("", "", w)
	require.NoError(t, h.NotifySelection(7))
	require.NoError(t, w.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"ids":[7]`)

	stdout, err := OpenSelectionFile("")
	require.NoError(t, err)
	assert.NoError(t, stdout.Close())
}

func TestWatcherDebouncesWrites(t *testing.T) {
	dir := t.TempDir()
	watched := filepath.Join(dir, "search.csv")
	other := filepath.Join(dir, "other.txt")
	require.NoError(t, os.WriteFile(watched, []byte("id\n"), 0o644))

	w, err := NewWatcher([]string{watched}, 50*time.Millisecond, nil)
	require.NoError(t, err)
	defer w.Stop()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go w.Run(ctx)

	require.NoError(t, os.WriteFile(other, []byte("x"), 0o644))
	for i := 0; i < 5; i++ {
		require.NoError(t, os.WriteFile(watched, []byte("id\n0\n"), 0o644))
	}

	select {
	case batch := <-w.Changes():
		abs, _ := filepath.Abs(watched)
		assert.Equal(t, []string{abs}, batch)
	case <-time.After(5 * time.Second):
		t.Fatal("no change notification")
	}

	w.Stop()
	w.Stop()
}

func TestWatcherMissingDirectory(t *testing.T) {
	_, err := NewWatcher([]string{filepath.Join(t.TempDir(), "nope", "search.csv")}, 0, nil)
	assert.Error(t, err)
}
