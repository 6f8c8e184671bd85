package indexer

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/flowindex/pkg/observability"
)

func TestNewScheduler_InvalidSpec(t *testing.T) {
	env := setupTestEnv(t, true)
	logger := observability.NewLogger(observability.DebugLevel, &bytes.Buffer{})

	_, err := NewScheduler(context.Background(), env.idx, "every tuesday", logger)
	assert.Error(t, err)
}

func TestScheduler_StartStop(t *testing.T) {
	env := setupTestEnv(t, true)
	logger := observability.NewLogger(observability.DebugLevel, &bytes.Buffer{})

	s, err := NewScheduler(context.Background(), env.idx, "@every 1h", logger)
	require.NoError(t, err)

	s.Start()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	assert.NoError(t, s.Stop(ctx))
}

func TestScheduler_TriggersRuns(t *testing.T) {
	env := setupTestEnv(t, true)
	env.seed(t)
	logger := observability.NewLogger(observability.DebugLevel, &bytes.Buffer{})

	s, err := NewScheduler(context.Background(), env.idx, "@every 1s", logger)
	require.NoError(t, err)
	s.Start()

	assert.Eventually(t, func() bool {
		return env.idx.LastSummary() != nil
	}, 5*time.Second, 50*time.Millisecond)

	require.NoError(t, s.Stop(context.Background()))
	assert.Eventually(t, func() bool { return !env.idx.Running() }, 5*time.Second, 10*time.Millisecond)
}
