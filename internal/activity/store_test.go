package activity

import (
	"context"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "activity.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestSessionLifecycle(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	session, err := store.BeginSession(ctx, "open the settings app")
	require.NoError(t, err)
	require.NotEmpty(t, session.ID)
	assert.Equal(t, "running", session.Status)

	require.NoError(t, store.FinishSession(ctx, session.ID, "completed"))

	loaded, err := store.GetSession(ctx, session.ID)
	require.NoError(t, err)
	assert.Equal(t, "completed", loaded.Status)
	require.NotNil(t, loaded.CompletedAt)
	assert.Equal(t, "open the settings app", loaded.Instruction)
}

func TestFinishSession_Unknown(t *testing.T) {
	store := openTestStore(t)

	err := store.FinishSession(context.Background(), "no-such-session", "failed")
	require.Error(t, err)
}

func TestAppendStep_SequencesPerSession(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	session, err := store.BeginSession(ctx, "tap around")
	require.NoError(t, err)
	other, err := store.BeginSession(ctx, "another run")
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		step := &Step{SessionID: session.ID, Action: "tap", Cell: 10 + i, X: 45, Y: 45, Success: true}
		require.NoError(t, store.AppendStep(ctx, step))
		assert.Equal(t, i+1, step.Seq)
		assert.Positive(t, step.ID)
	}

	// The second session sequences independently.
	step := &Step{SessionID: other.ID, Action: "key", Detail: "home"}
	require.NoError(t, store.AppendStep(ctx, step))
	assert.Equal(t, 1, step.Seq)

	steps, err := store.Steps(ctx, session.ID)
	require.NoError(t, err)
	require.Len(t, steps, 3)
	assert.Equal(t, []int{10, 11, 12}, []int{steps[0].Cell, steps[1].Cell, steps[2].Cell})
}

func TestAppendStep_ConcurrentAppendsKeepSequenceUnique(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	session, err := store.BeginSession(ctx, "parallel writers")
	require.NoError(t, err)

	const writers = 8
	errs := make(chan error, writers)
	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(cell int) {
			defer wg.Done()
			errs <- store.AppendStep(ctx, &Step{SessionID: session.ID, Action: "tap", Cell: cell})
		}(i + 1)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	steps, err := store.Steps(ctx, session.ID)
	require.NoError(t, err)
	require.Len(t, steps, writers)

	seen := make(map[int]bool)
	for _, step := range steps {
		assert.False(t, seen[step.Seq], "seq %d assigned twice", step.Seq)
		seen[step.Seq] = true
		assert.GreaterOrEqual(t, step.Seq, 1)
		assert.LessOrEqual(t, step.Seq, writers)
	}
}

func TestListSessions_NewestFirst(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	_, err := store.BeginSession(ctx, "first")
	require.NoError(t, err)
	second, err := store.BeginSession(ctx, "second")
	require.NoError(t, err)

	sessions, err := store.ListSessions(ctx, 10)
	require.NoError(t, err)
	require.Len(t, sessions, 2)
	assert.Equal(t, second.ID, sessions[0].ID)
}
