package claim_test

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.trai.ch/cairn/internal/adapters/claim"
)

const testHash = "0123456789abcdef0123456789abcdef"

func TestTable_AcquireRelease(t *testing.T) {
	table := claim.NewTable(t.TempDir())

	release, err := table.Acquire(context.Background(), testHash)
	require.NoError(t, err)
	release()

	// Reacquire after release succeeds immediately.
	release, err = table.Acquire(context.Background(), testHash)
	require.NoError(t, err)
	release()
}

func TestTable_MutualExclusion(t *testing.T) {
	table := claim.NewTable(t.TempDir())

	release, err := table.Acquire(context.Background(), testHash)
	require.NoError(t, err)

	var mu sync.Mutex
	events := []string{}
	done := make(chan struct{})
	go func() {
		defer close(done)
		r, err := table.Acquire(context.Background(), testHash)
		assert.NoError(t, err)
		mu.Lock()
		events = append(events, "second-acquired")
		mu.Unlock()
		r()
	}()

	time.Sleep(250 * time.Millisecond)
	mu.Lock()
	events = append(events, "first-released")
	mu.Unlock()
	release()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("second acquire never completed")
	}
	assert.Equal(t, []string{"first-released", "second-acquired"}, events)
}

func TestTable_AcquireHonorsContext(t *testing.T) {
	table := claim.NewTable(t.TempDir())

	release, err := table.Acquire(context.Background(), testHash)
	require.NoError(t, err)
	defer release()

	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()

	_, err = table.Acquire(ctx, testHash)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestTable_RejectsMalformedHash(t *testing.T) {
	table := claim.NewTable(t.TempDir())

	_, err := table.Acquire(context.Background(), strings.Repeat("z", 7))
	require.Error(t, err)
}
