package scanner

import (
	"context"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/flowindex/pkg/observability"
)

func TestWatcher_DebouncesChanges(t *testing.T) {
	dir := t.TempDir()
	logger := observability.NewLogger(observability.ErrorLevel, io.Discard)

	var (
		mu      sync.Mutex
		batches [][]string
	)
	onChange := func(ctx context.Context, changed []string) {
		mu.Lock()
		defer mu.Unlock()
		batches = append(batches, changed)
	}

	w, err := NewWatcher(dir, New(".json"), 100*time.Millisecond, onChange, logger)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = w.Run(ctx)
	}()
	defer func() {
		cancel()
		<-done
	}()

	writeFile(t, dir, "a.json", `{}`)
	writeFile(t, dir, "b.json", `{}`)
	writeFile(t, dir, "ignored.txt", "x")

	seen := func() map[string]bool {
		mu.Lock()
		defer mu.Unlock()
		names := map[string]bool{}
		for _, batch := range batches {
			for _, name := range batch {
				names[name] = true
			}
		}
		return names
	}

	require.Eventually(t, func() bool {
		names := seen()
		return names["a.json"] && names["b.json"]
	}, 5*time.Second, 20*time.Millisecond)
	assert.False(t, seen()["ignored.txt"])
}

func TestNewWatcher_MissingDirectory(t *testing.T) {
	logger := observability.NewLogger(observability.ErrorLevel, io.Discard)
	_, err := NewWatcher(t.TempDir()+"/missing", New(".json"), time.Second, func(context.Context, []string) {}, logger)
	assert.Error(t, err)
}
