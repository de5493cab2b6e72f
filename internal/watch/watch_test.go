package watch

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestWatcherBatchesSettledChanges(t *testing.T) {
	defer goleak.VerifyNone(t)

	dir := t.TempDir()
	batches := make(chan []string, 4)
	w, err := New([]string{dir}, nil, func(_ context.Context, paths []string) {
		batches <- paths
	}, zerolog.Nop())
	require.NoError(t, err)
	w.SetDebounce(100 * time.Millisecond)
	require.NoError(t, w.Start(context.Background()))
	defer w.Stop()

	deck := filepath.Join(dir, "deck.yaml")
	tmpl := filepath.Join(dir, "earnings.yaml.tmpl")
	require.NoError(t, os.WriteFile(deck, []byte("id: A"), 0644))
	require.NoError(t, os.WriteFile(deck, []byte("id: B"), 0644))
	require.NoError(t, os.WriteFile(tmpl, []byte("id: C"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0644))

	select {
	case got := <-batches:
		assert.Equal(t, []string{deck, tmpl}, got)
	case <-time.After(5 * time.Second):
		t.Fatal("no change batch delivered")
	}

	stats := w.Stats()
	assert.Equal(t, 1, stats.Batches)
	assert.GreaterOrEqual(t, stats.Events, 2)
}

func TestWatcherZeroDebounce(t *testing.T) {
	defer goleak.VerifyNone(t)

	dir := t.TempDir()
	batches := make(chan []string, 16)
	w, err := New([]string{dir}, nil, func(_ context.Context, paths []string) {
		batches <- paths
	}, zerolog.Nop())
	require.NoError(t, err)
	w.SetDebounce(0)
	require.NoError(t, w.Start(context.Background()))
	defer w.Stop()

	deck := filepath.Join(dir, "deck.yaml")
	require.NoError(t, os.WriteFile(deck, []byte("id: A"), 0644))

	select {
	case got := <-batches:
		assert.Equal(t, []string{deck}, got)
	case <-time.After(5 * time.Second):
		t.Fatal("no change batch delivered")
	}
}

func TestWatcherNegativeDebounce(t *testing.T) {
	defer goleak.VerifyNone(t)

	w, err := New([]string{t.TempDir()}, nil, nil, zerolog.Nop())
	require.NoError(t, err)
	w.SetDebounce(-time.Second)
	require.NoError(t, w.Start(context.Background()))
	time.Sleep(20 * time.Millisecond)
	w.Stop()
}

func TestWatcherStopIsIdempotent(t *testing.T) {
	defer goleak.VerifyNone(t)

	w, err := New([]string{t.TempDir(), filepath.Join(t.TempDir(), "missing")}, nil, nil, zerolog.Nop())
	require.NoError(t, err)
	require.NoError(t, w.Start(context.Background()))
	require.NoError(t, w.Start(context.Background()))
	w.Stop()
	w.Stop()
}

func TestWatcherStopsWithContext(t *testing.T) {
	defer goleak.VerifyNone(t)

	w, err := New([]string{t.TempDir()}, nil, nil, zerolog.Nop())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, w.Start(ctx))
	cancel()
	w.Stop()
}

func TestStopWithoutStart(t *testing.T) {
	defer goleak.VerifyNone(t)

	w, err := New(nil, nil, nil, zerolog.Nop())
	require.NoError(t, err)
	w.Stop()
}
