package inmem

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/martinemde/orchestra"
)

func seedExecution(id orchestra.ExecutionID) (orchestra.Execution, orchestra.Conversation) {
	return orchestra.Execution{
			ID:            id,
			Task:          "count files",
			Status:        orchestra.StatusCreated,
			MaxIterations: 10,
		}, orchestra.Conversation{
			orchestra.NewUserTaskTurn("count files"),
		}
}

func TestCreateAndLoad(t *testing.T) {
	s := New()
	ctx := context.Background()
	exec, turns := seedExecution("x-1")

	require.NoError(t, s.Create(ctx, exec, turns))

	loaded, loadedTurns, err := s.Load(ctx, "x-1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), loaded.Version)
	assert.Equal(t, orchestra.StatusCreated, loaded.Status)
	require.Len(t, loadedTurns, 1)
	assert.Equal(t, orchestra.TurnUserTask, loadedTurns[0].Kind)
}

func TestCreateDuplicate(t *testing.T) {
	s := New()
	ctx := context.Background()
	exec, turns := seedExecution("x-1")

	require.NoError(t, s.Create(ctx, exec, turns))
	err := s.Create(ctx, exec, turns)
	assert.ErrorIs(t, err, orchestra.ErrExecutionExists)
}

func TestLoadUnknown(t *testing.T) {
	s := New()
	_, _, err := s.Load(context.Background(), "ghost")
	assert.ErrorIs(t, err, orchestra.ErrExecutionNotFound)
}

func TestCompareAndSwapBumpsVersion(t *testing.T) {
	s := New()
	ctx := context.Background()
	exec, turns := seedExecution("x-1")
	require.NoError(t, s.Create(ctx, exec, turns))

	exec.Status = orchestra.StatusPlanning
	require.NoError(t, s.CompareAndSwap(ctx, "x-1", 1, exec, turns))

	loaded, _, err := s.Load(ctx, "x-1")
	require.NoError(t, err)
	assert.Equal(t, int64(2), loaded.Version)
	assert.Equal(t, orchestra.StatusPlanning, loaded.Status)
}

func TestCompareAndSwapStaleVersion(t *testing.T) {
	s := New()
	ctx := context.Background()
	exec, turns := seedExecution("x-1")
	require.NoError(t, s.Create(ctx, exec, turns))

	exec.Status = orchestra.StatusPlanning
	require.NoError(t, s.CompareAndSwap(ctx, "x-1", 1, exec, turns))

	// Writer holding the old version must fail, and the winning write
	// must survive untouched.
	stale := exec
	stale.Status = orchestra.StatusFailed
	err := s.CompareAndSwap(ctx, "x-1", 1, stale, turns)
	assert.ErrorIs(t, err, orchestra.ErrVersionConflict)

	loaded, _, err := s.Load(ctx, "x-1")
	require.NoError(t, err)
	assert.Equal(t, orchestra.StatusPlanning, loaded.Status)
	assert.Equal(t, int64(2), loaded.Version)
}

func TestCompareAndSwapUnknownID(t *testing.T) {
	s := New()
	exec, turns := seedExecution("ghost")
	err := s.CompareAndSwap(context.Background(), "ghost", 1, exec, turns)
	assert.ErrorIs(t, err, orchestra.ErrExecutionNotFound)
}

func TestLoadReturnsIsolatedCopy(t *testing.T) {
	s := New()
	ctx := context.Background()
	exec, turns := seedExecution("x-1")
	turns = append(turns, orchestra.NewModelTurn("", []orchestra.ToolCall{
		{ID: "call_1", Name: "grep", Arguments: map[string]any{"pattern": "ERROR"}, Status: orchestra.CallPending},
	}))
	require.NoError(t, s.Create(ctx, exec, turns))

	_, loadedTurns, err := s.Load(ctx, "x-1")
	require.NoError(t, err)
	loadedTurns[1].Model.ToolCalls[0].Arguments["pattern"] = "tampered"

	_, again, err := s.Load(ctx, "x-1")
	require.NoError(t, err)
	assert.Equal(t, "ERROR", again[1].Model.ToolCalls[0].Arguments["pattern"])
}
