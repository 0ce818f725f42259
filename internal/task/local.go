package task

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/pentops/log.go/log"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

// LocalRunner runs tasks as child processes of this one.
type LocalRunner struct {
	// Vars are substituted into Task.Env values.
	Vars map[string]string

	// Output receives the combined process output. When nil each line is
	// logged against the task.
	Output io.Writer

	Tracer trace.Tracer
}

func NewLocalRunner() *LocalRunner {
	return &LocalRunner{
		Vars:   map[string]string{},
		Tracer: noop.NewTracerProvider().Tracer("camelkit/task"),
	}
}

func (lr *LocalRunner) Start(ctx context.Context, t Task) (*Execution, error) {
	envVars, err := mapEnvVars(t.Env, lr.Vars)
	if err != nil {
		return nil, err
	}

	path, err := exec.LookPath(t.Command)
	if err != nil {
		return nil, fmt.Errorf("command %q not found: %w", t.Command, err)
	}

	cmd := exec.CommandContext(ctx, path, t.Args...)
	cmd.Dir = t.Dir
	cmd.Env = append(os.Environ(), envVars...)

	var lines *lineWriter
	out := lr.Output
	if out == nil {
		lines = &lineWriter{
			writeLine: func(line string) {
				log.WithField(ctx, "task", t.Label).Info(line)
			},
		}
		out = lines
	}
	cmd.Stdout = out
	cmd.Stderr = out

	tracer := lr.Tracer
	if tracer == nil {
		tracer = noop.NewTracerProvider().Tracer("camelkit/task")
	}
	_, span := tracer.Start(ctx, t.Label)

	start := time.Now()
	if err := cmd.Start(); err != nil {
		span.RecordError(err)
		span.End()
		return nil, fmt.Errorf("running command %q: %w", t.Command, err)
	}

	execution := newExecution(t)
	go func() {
		defer span.End()
		res := Result{}
		err := cmd.Wait()
		res.Duration = time.Since(start)
		if lines != nil {
			lines.flush()
		}
		if err != nil {
			exitErr := &exec.ExitError{}
			if errors.As(err, &exitErr) {
				res.ExitCode = exitErr.ExitCode()
			} else {
				res.ExitCode = -1
				res.Err = err
			}
			span.RecordError(err)
		}
		execution.complete(res)
	}()

	return execution, nil
}

func mapEnvVars(spec []string, vars map[string]string) ([]string, error) {
	env := make([]string, len(spec))
	for idx, src := range spec {

		parts := strings.SplitN(src, "=", 2)
		if len(parts) == 1 {
			env[idx] = fmt.Sprintf("%s=%s", src, os.Getenv(src))
			continue
		}
		if parts[0] == "" {
			return nil, fmt.Errorf("invalid env var: %s", src)
		}
		val := os.Expand(parts[1], func(key string) string {
			if v, ok := vars[key]; ok {
				return v
			}
			return os.Getenv(key)
		})

		env[idx] = fmt.Sprintf("%s=%s", parts[0], val)
	}
	return env, nil
}

type lineWriter struct {
	buf       []byte
	writeLine func(string)
}

func (w *lineWriter) Write(p []byte) (n int, err error) {
	for _, b := range p {
		if b == '\n' {
			w.writeLine(string(w.buf))
			w.buf = w.buf[:0]
		} else {
			w.buf = append(w.buf, b)
		}
	}
	return len(p), nil
}

func (w *lineWriter) flush() {
	if len(w.buf) > 0 {
		w.writeLine(string(w.buf))
	}
	w.buf = []byte{}
}
