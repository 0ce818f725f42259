package commands

import (
	"context"
	"fmt"

	"github.com/pentops/camelkit/internal/gav"
	"github.com/pentops/camelkit/internal/jbang"
	"github.com/pentops/camelkit/internal/prompt"
	"github.com/pentops/camelkit/internal/workspace"
	"github.com/pentops/log.go/log"
)

type ProjectOptions struct {
	// Runtime accepts the springboot spelling as well.
	Runtime jbang.Runtime
	GAV     string

	// Dir is the folder the project is exported to.
	Dir string

	// Yes skips the confirmation for folders other than the workspace root.
	Yes bool
}

// Project exports a Maven project for the runtime and adds editor tasks
// for building, running and debugging it.
func (env *Env) Project(ctx context.Context, opts ProjectOptions) error {
	runtimeName, err := jbang.ParseRuntime(string(opts.Runtime))
	if err != nil {
		return err
	}
	ctx = log.WithField(ctx, "runtime", string(runtimeName))

	name := opts.GAV
	if name == "" {
		name, err = env.Prompter.Input(ctx, prompt.Input{
			Title:       "Please provide repository coordinate",
			Placeholder: gav.Default,
			Value:       gav.Default,
			Validate:    gav.Validate,
		})
		if err != nil {
			return finish(ctx, err)
		}
	}
	coordinate, err := gav.Parse(name)
	if err != nil {
		return fmt.Errorf("GAV %q: %w", name, err)
	}

	dir := opts.Dir
	if dir == "" {
		paths, err := env.Prompter.Path(ctx, prompt.Path{
			Title: "Select a folder to create the project in. ESC to cancel the project creation",
			Kind:  prompt.PathFolder,
			Dir:   env.Root,
		})
		if err != nil || len(paths) == 0 || paths[0] == "" {
			env.Prompter.Notify(ctx, prompt.LevelError, "Camel project creation canceled or invalid folder selection")
			return finish(ctx, prompt.ErrCanceled)
		}
		dir = paths[0]
	}
	dir = env.abs(dir)

	if !opts.Yes && !env.pathsEqual(env.Root, dir) {
		ok, err := env.Prompter.Confirm(ctx, prompt.Confirm{
			Title:       fmt.Sprintf("Files in the folder: %s WILL BE DELETED before project creation, continue?", dir),
			Affirmative: "Continue",
			Negative:    "Cancel",
		})
		if err == nil && !ok {
			err = prompt.ErrCanceled
		}
		if err != nil {
			env.Prompter.Notify(ctx, prompt.LevelInfo, "Camel project creation canceled")
			return finish(ctx, err)
		}
	}

	exportTask, warning := env.CLI.Export(jbang.ExportOptions{
		Runtime:    runtimeName,
		GAV:        coordinate,
		Dir:        dir,
		WorkDir:    env.Root,
		PathsEqual: env.pathsEqual,
	})
	if warning != "" {
		env.Prompter.Notify(ctx, prompt.LevelWarning, warning)
	}

	if err := env.run(ctx, exportTask); err != nil {
		return err
	}

	if err := workspace.InstallEditorFiles(ctx, dir, string(runtimeName)); err != nil {
		return err
	}

	return env.Opener.Open(ctx, dir)
}
