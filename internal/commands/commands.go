// Package commands implements the user facing actions: each one collects its
// missing inputs, runs Camel JBang tasks in order and opens the result.
package commands

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/pentops/camelkit/internal/dsl"
	"github.com/pentops/camelkit/internal/jbang"
	"github.com/pentops/camelkit/internal/prompt"
	"github.com/pentops/camelkit/internal/task"
	"github.com/pentops/camelkit/internal/workspace"
	"github.com/pentops/log.go/log"
)

// Env is everything a command needs. Root is the workspace folder the CLI
// runs in and which new route files are created in.
type Env struct {
	Root     string
	CLI      *jbang.CLI
	Runner   task.Runner
	Prompter prompt.Prompter
	Opener   workspace.Opener

	// PathsEqual defaults to workspace.PathsEqual.
	PathsEqual func(a, b string) bool
}

func (env *Env) pathsEqual(a, b string) bool {
	if env.PathsEqual != nil {
		return env.PathsEqual(a, b)
	}
	return workspace.PathsEqual(a, b)
}

func (env *Env) run(ctx context.Context, t task.Task) error {
	return task.Run(ctx, env.Runner, t)
}

// runAndOpen runs the tasks in order and opens path when all succeeded.
func (env *Env) runAndOpen(ctx context.Context, path string, tasks ...task.Task) error {
	for _, t := range tasks {
		if err := env.run(ctx, t); err != nil {
			return err
		}
	}
	return env.Opener.Open(ctx, path)
}

// abs resolves a user supplied path against the workspace root.
func (env *Env) abs(path string) string {
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(env.Root, path)
}

// finish turns a dismissed prompt into a quiet return.
func finish(ctx context.Context, err error) error {
	if errors.Is(err, prompt.ErrCanceled) {
		log.Info(ctx, "Canceled")
		return nil
	}
	return err
}

const fileNamePrompt = "Please provide a name for the new file (without extension)."

// askName returns the base name of a new file. suffix is appended before
// validation, for names the CLI derives from the given one.
func (env *Env) askName(ctx context.Context, desc dsl.Descriptor, name, suffix string) (string, error) {
	validate := func(value string) string {
		return desc.ValidateFileName(value+suffix, env.Root)
	}

	if name != "" {
		if reason := validate(name); reason != "" {
			return "", fmt.Errorf("file name %q: %s", name, reason)
		}
		return name, nil
	}

	return env.Prompter.Input(ctx, prompt.Input{
		Title:       fileNamePrompt,
		Description: fmt.Sprintf("A %s file is created in %s", desc, env.Root),
		Placeholder: desc.PlaceHolder,
		Validate:    validate,
	})
}

// askSelect returns value when it is one of the options, otherwise prompts.
func (env *Env) askSelect(ctx context.Context, sel prompt.Select, value string) (string, error) {
	if value == "" {
		return env.Prompter.Select(ctx, sel)
	}
	for _, opt := range sel.Options {
		if opt.Value == value {
			return value, nil
		}
	}
	return "", fmt.Errorf("%q is not one of the choices for %q", value, sel.Title)
}
