// Package task runs external CLI invocations and hands back a future per
// execution.
package task

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pentops/log.go/log"
)

// Task is a single invocation of an external command.
type Task struct {
	Label   string
	Command string
	Args    []string

	// Dir is the working directory, empty for the current one.
	Dir string

	// Env entries are NAME=value, value may reference $VARS.
	Env []string
}

func (t Task) String() string {
	return strings.Join(append([]string{t.Command}, t.Args...), " ")
}

type Runner interface {
	Start(ctx context.Context, t Task) (*Execution, error)
}

// RunnerFunc runs tasks in process, the function result completes the
// execution.
type RunnerFunc func(ctx context.Context, t Task) Result

func (fn RunnerFunc) Start(ctx context.Context, t Task) (*Execution, error) {
	execution := newExecution(t)
	go func() {
		execution.complete(fn(ctx, t))
	}()
	return execution, nil
}

type Result struct {
	ExitCode int
	Duration time.Duration

	// Err is set when the process could not be run or waited on, as opposed
	// to running and exiting non-zero.
	Err error
}

// Execution is the handle of one started task. It completes exactly once.
type Execution struct {
	ID   uuid.UUID
	Task Task

	done   chan struct{}
	once   sync.Once
	result Result
}

func newExecution(t Task) *Execution {
	return &Execution{
		ID:   uuid.New(),
		Task: t,
		done: make(chan struct{}),
	}
}

func (e *Execution) complete(res Result) {
	e.once.Do(func() {
		e.result = res
		close(e.done)
	})
}

// Done is closed when the process has terminated.
func (e *Execution) Done() <-chan struct{} {
	return e.done
}

// Wait blocks until the execution ends or ctx is done. Cancelling ctx does
// not stop the process, the runner's start context controls that.
func (e *Execution) Wait(ctx context.Context) (Result, error) {
	select {
	case <-e.done:
		return e.result, nil
	case <-ctx.Done():
		return Result{}, ctx.Err()
	}
}

type ExitError struct {
	Task     Task
	ExitCode int
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("%s exited with code %d", e.Task.Label, e.ExitCode)
}

// Run starts t and waits for it to finish, a non-zero exit is an *ExitError.
func Run(ctx context.Context, runner Runner, t Task) error {
	ctx = log.WithField(ctx, "task", t.Label)
	log.WithField(ctx, "command", t.String()).Info("Running task")

	execution, err := runner.Start(ctx, t)
	if err != nil {
		return fmt.Errorf("starting %s: %w", t.Label, err)
	}

	res, err := execution.Wait(ctx)
	if err != nil {
		return err
	}

	log.WithFields(ctx, map[string]interface{}{
		"execution": execution.ID.String(),
		"exitCode":  res.ExitCode,
		"duration":  res.Duration.String(),
	}).Info("Task ended")

	if res.Err != nil {
		return fmt.Errorf("running %s: %w", t.Label, res.Err)
	}
	if res.ExitCode != 0 {
		return &ExitError{Task: t, ExitCode: res.ExitCode}
	}
	return nil
}
