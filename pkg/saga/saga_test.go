package saga_test

import (
	"context"
	"errors"
	"testing"

	"github.com/retailops/refunds/pkg/saga"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSaga_AllStepsSucceed(t *testing.T) {
	var executed []string

	s := saga.New("test-saga").
		AddStep(saga.Step{
			Name: "step1",
			Run:  func(ctx context.Context) error { executed = append(executed, "step1"); return nil },
		}).
		AddStep(saga.Step{
			Name: "step2",
			Run:  func(ctx context.Context) error { executed = append(executed, "step2"); return nil },
		}).
		AddStep(saga.Step{
			Name: "step3",
			Run:  func(ctx context.Context) error { executed = append(executed, "step3"); return nil },
		})

	completed, err := s.Execute(context.Background(), 0)
	require.NoError(t, err)
	assert.Equal(t, 3, completed)
	assert.Equal(t, []string{"step1", "step2", "step3"}, executed)
}

func TestSaga_StepFails_LaterStepsNeverRun(t *testing.T) {
	var executed []string

	s := saga.New("test-saga").
		AddStep(saga.Step{
			Name: "step1",
			Run:  func(ctx context.Context) error { executed = append(executed, "step1"); return nil },
		}).
		AddStep(saga.Step{
			Name: "step2",
			Run:  func(ctx context.Context) error { return errors.New("step2 blew up") },
		}).
		AddStep(saga.Step{
			Name: "step3",
			Run:  func(ctx context.Context) error { executed = append(executed, "step3"); return nil },
		})

	completed, err := s.Execute(context.Background(), 0)
	require.Error(t, err)
	assert.Equal(t, 1, completed)
	assert.Equal(t, []string{"step1"}, executed)

	var stepErr *saga.StepError
	require.ErrorAs(t, err, &stepErr)
	assert.Equal(t, "step2", stepErr.Step)
	assert.Equal(t, 2, stepErr.Index)
	assert.Contains(t, err.Error(), "step2 blew up")
}

func TestSaga_CursorHookFiresAfterEachStep(t *testing.T) {
	var cursors []int

	s := saga.New("test-saga").
		AddStep(saga.Step{Name: "a", Run: func(ctx context.Context) error { return nil }}).
		AddStep(saga.Step{Name: "b", Run: func(ctx context.Context) error { return nil }}).
		OnStepCompleted(func(ctx context.Context, index int, name string) error {
			cursors = append(cursors, index)
			return nil
		})

	completed, err := s.Execute(context.Background(), 0)
	require.NoError(t, err)
	assert.Equal(t, 2, completed)
	assert.Equal(t, []int{1, 2}, cursors)
}

func TestSaga_ResumeSkipsCommittedSteps(t *testing.T) {
	var executed []string

	s := saga.New("test-saga").
		AddStep(saga.Step{Name: "a", Run: func(ctx context.Context) error { executed = append(executed, "a"); return nil }}).
		AddStep(saga.Step{Name: "b", Run: func(ctx context.Context) error { executed = append(executed, "b"); return nil }}).
		AddStep(saga.Step{Name: "c", Run: func(ctx context.Context) error { executed = append(executed, "c"); return nil }})

	// First two steps committed by an earlier attempt.
	completed, err := s.Execute(context.Background(), 2)
	require.NoError(t, err)
	assert.Equal(t, 3, completed)
	assert.Equal(t, []string{"c"}, executed)
}

func TestSaga_CursorHookError_StopsSaga(t *testing.T) {
	s := saga.New("test-saga").
		AddStep(saga.Step{Name: "a", Run: func(ctx context.Context) error { return nil }}).
		AddStep(saga.Step{Name: "b", Run: func(ctx context.Context) error { return nil }}).
		OnStepCompleted(func(ctx context.Context, index int, name string) error {
			if index == 1 {
				return errors.New("db gone")
			}
			return nil
		})

	completed, err := s.Execute(context.Background(), 0)
	require.Error(t, err)
	// The step ran but its completion was never recorded, so the count
	// must not include it.
	assert.Equal(t, 0, completed)

	var stepErr *saga.StepError
	require.ErrorAs(t, err, &stepErr)
	assert.Equal(t, "a", stepErr.Step)
	assert.Contains(t, err.Error(), "persist completion cursor")
}

// journalTx mimics a transaction over an append-only journal: entries
// written inside a failed boundary are discarded.
type journalTx struct {
	entries []string
}

func (j *journalTx) within(ctx context.Context, fn func(ctx context.Context) error) error {
	snapshot := len(j.entries)
	if err := fn(ctx); err != nil {
		j.entries = j.entries[:snapshot]
		return err
	}
	return nil
}

func TestSaga_InTransaction_StepAndCursorCommitTogether(t *testing.T) {
	journal := &journalTx{}
	var cursor int
	failOnce := true

	s := saga.New("test-saga").
		AddStep(saga.Step{Name: "a", Run: func(ctx context.Context) error { journal.entries = append(journal.entries, "a"); return nil }}).
		AddStep(saga.Step{Name: "b", Run: func(ctx context.Context) error { journal.entries = append(journal.entries, "b"); return nil }}).
		InTransaction(journal.within).
		OnStepCompleted(func(ctx context.Context, index int, name string) error {
			if name == "b" && failOnce {
				failOnce = false
				return errors.New("cursor write lost connection")
			}
			cursor = index
			return nil
		})

	completed, err := s.Execute(context.Background(), 0)
	require.Error(t, err)
	assert.Equal(t, 1, completed)
	assert.Equal(t, 1, cursor)
	// Step b's write rolled back together with its failed cursor record.
	assert.Equal(t, []string{"a"}, journal.entries)

	// Resuming from the recorded cursor re-runs b exactly once, never twice.
	completed, err = s.Execute(context.Background(), cursor)
	require.NoError(t, err)
	assert.Equal(t, 2, completed)
	assert.Equal(t, []string{"a", "b"}, journal.entries)
}

func TestSaga_InTransaction_StepFailureRollsBackBoundary(t *testing.T) {
	journal := &journalTx{}

	s := saga.New("test-saga").
		AddStep(saga.Step{Name: "a", Run: func(ctx context.Context) error { journal.entries = append(journal.entries, "a"); return nil }}).
		AddStep(saga.Step{
			Name: "b",
			Run: func(ctx context.Context) error {
				journal.entries = append(journal.entries, "b")
				return errors.New("b blew up")
			},
		}).
		InTransaction(journal.within)

	completed, err := s.Execute(context.Background(), 0)
	require.Error(t, err)
	assert.Equal(t, 1, completed)
	assert.Equal(t, []string{"a"}, journal.entries)

	var stepErr *saga.StepError
	require.ErrorAs(t, err, &stepErr)
	assert.Equal(t, "b", stepErr.Step)
	assert.Equal(t, 2, stepErr.Index)
}

func TestSaga_NoSteps(t *testing.T) {
	completed, err := saga.New("empty").Execute(context.Background(), 0)
	assert.NoError(t, err)
	assert.Equal(t, 0, completed)
}

func TestSaga_StartAfterBeyondEnd(t *testing.T) {
	s := saga.New("test-saga").
		AddStep(saga.Step{Name: "a", Run: func(ctx context.Context) error { return errors.New("should not run") }})

	completed, err := s.Execute(context.Background(), 5)
	assert.NoError(t, err)
	assert.Equal(t, 1, completed)
}

func TestSaga_StepNames(t *testing.T) {
	s := saga.New("test-saga").
		AddStep(saga.Step{Name: "a", Run: func(ctx context.Context) error { return nil }}).
		AddStep(saga.Step{Name: "b", Run: func(ctx context.Context) error { return nil }})

	assert.Equal(t, []string{"a", "b"}, s.StepNames())
}
