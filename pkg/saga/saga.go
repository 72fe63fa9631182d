package saga

import (
	"context"
	"fmt"
)

// Step is a single independently-committed step in a saga.
type Step struct {
	Name string
	Run  func(ctx context.Context) error
}

// StepError reports the step at which a saga stopped. Steps committed before
// the failing one stay committed; callers decide how to reconcile.
type StepError struct {
	Saga  string
	Step  string
	Index int // 1-based position of the failed step
	Err   error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("saga %s: step %d (%s) failed: %v", e.Saga, e.Index, e.Step, e.Err)
}

func (e *StepError) Unwrap() error {
	return e.Err
}

// Saga runs a sequence of independently-committed steps without rollback.
// Instead of compensation it tracks a completion cursor: after each step the
// optional onCompleted hook fires (typically persisting the cursor), and a
// later Execute call can skip steps that already committed.
type Saga struct {
	name        string
	steps       []Step
	boundary    func(ctx context.Context, fn func(ctx context.Context) error) error
	onCompleted func(ctx context.Context, index int, name string) error
}

// New creates a new saga with the given name.
func New(name string) *Saga {
	return &Saga{name: name}
}

// AddStep appends a step to the saga.
func (s *Saga) AddStep(step Step) *Saga {
	s.steps = append(s.steps, step)
	return s
}

// OnStepCompleted registers a hook invoked after each step runs. The hook
// receives the 1-based index of the completed step. A hook error stops the
// saga as if the step itself had failed.
func (s *Saga) OnStepCompleted(fn func(ctx context.Context, index int, name string) error) *Saga {
	s.onCompleted = fn
	return s
}

// InTransaction runs each step together with its completion hook inside the
// given boundary, typically a database transaction. A step's writes and its
// cursor record then commit or roll back as one unit, so a later resume can
// trust the cursor: every step at or below it committed, nothing above it did.
func (s *Saga) InTransaction(boundary func(ctx context.Context, fn func(ctx context.Context) error) error) *Saga {
	s.boundary = boundary
	return s
}

// Execute runs the steps in order, skipping the first startAfter steps
// (those committed by an earlier attempt). It returns the number of steps
// whose completion is recorded, including skipped ones. On failure the
// returned error is a *StepError; completed steps are never undone.
func (s *Saga) Execute(ctx context.Context, startAfter int) (completed int, err error) {
	if startAfter < 0 {
		startAfter = 0
	}
	completed = startAfter
	if completed > len(s.steps) {
		completed = len(s.steps)
	}

	for i := completed; i < len(s.steps); i++ {
		step := s.steps[i]
		index := i + 1

		run := func(ctx context.Context) error {
			if err := step.Run(ctx); err != nil {
				return err
			}
			if s.onCompleted != nil {
				if err := s.onCompleted(ctx, index, step.Name); err != nil {
					return fmt.Errorf("persist completion cursor: %w", err)
				}
			}
			return nil
		}

		var stepErr error
		if s.boundary != nil {
			stepErr = s.boundary(ctx, run)
		} else {
			stepErr = run(ctx)
		}
		if stepErr != nil {
			return completed, &StepError{Saga: s.name, Step: step.Name, Index: index, Err: stepErr}
		}
		completed = index
	}

	return completed, nil
}

// StepNames returns the step names in execution order.
func (s *Saga) StepNames() []string {
	names := make([]string, len(s.steps))
	for i, step := range s.steps {
		names[i] = step.Name
	}
	return names
}
