package commands

import (
	"context"
	"fmt"
	"path/filepath"
	"slices"
	"strings"

	"github.com/pentops/camelkit/internal/dsl"
	"github.com/pentops/camelkit/internal/prompt"
	"github.com/pentops/log.go/log"
)

type TransformFileOptions struct {
	Format dsl.Format
	Source string

	// Output is a file name, created next to Source.
	Output string
}

// TransformFile converts one route file, the result is written next to it.
func (env *Env) TransformFile(ctx context.Context, opts TransformFileOptions) error {
	ctx = log.WithField(ctx, "format", string(opts.Format))

	source := opts.Source
	if source == "" {
		paths, err := env.Prompter.Path(ctx, prompt.Path{
			Title: "Select the Camel Route to transform",
			Kind:  prompt.PathFile,
			Dir:   env.Root,
		})
		if err != nil {
			return finish(ctx, err)
		}
		if len(paths) == 0 || paths[0] == "" {
			return finish(ctx, prompt.ErrCanceled)
		}
		source = paths[0]
	}
	source = env.abs(source)
	desc, err := routeFile(source)
	if err != nil {
		return err
	}
	ctx = log.WithField(ctx, "dsl", desc.String())

	output := opts.Output
	defaultName := TransformedName(source, opts.Format)
	if output != "" {
		if reason := dsl.ValidateOutputFileName(output); reason != "" {
			return fmt.Errorf("output %q: %s", output, reason)
		}
	} else {
		output, err = env.Prompter.Input(ctx, prompt.Input{
			Title:       "Please provide a name for the new transformed Camel Route.",
			Placeholder: defaultName,
			Value:       defaultName,
			Validate:    dsl.ValidateOutputFileName,
		})
		if err != nil {
			return finish(ctx, err)
		}
	}

	outputPath := filepath.Join(filepath.Dir(source), output)
	return env.runAndOpen(ctx, outputPath, env.CLI.Transform(env.Root, []string{source}, opts.Format, outputPath))
}

// TransformedName is the default output name for source: its name with the
// last extension replaced by the format.
func TransformedName(source string, format dsl.Format) string {
	base := filepath.Base(source)
	base = strings.TrimSuffix(base, filepath.Ext(base))
	return fmt.Sprintf("%s.%s", base, format)
}

type TransformFolderOptions struct {
	Format dsl.Format
	Source string
	Dest   string
}

// TransformFolder converts every route found in a folder.
func (env *Env) TransformFolder(ctx context.Context, opts TransformFolderOptions) error {
	ctx = log.WithField(ctx, "format", string(opts.Format))

	source, err := env.askFolder(ctx, opts.Source, "Select a folder to run the transform command in")
	if err != nil {
		return finish(ctx, err)
	}
	dest, err := env.askFolder(ctx, opts.Dest, "Select a folder to output the transformed routes")
	if err != nil {
		return finish(ctx, err)
	}

	return env.run(ctx, env.CLI.Transform(env.Root, []string{source}, opts.Format, dest))
}

type TransformFilesOptions struct {
	Format  dsl.Format
	Sources []string
	Dest    string
}

// TransformFiles converts several route files into one destination folder.
func (env *Env) TransformFiles(ctx context.Context, opts TransformFilesOptions) error {
	ctx = log.WithField(ctx, "format", string(opts.Format))

	sources := slices.Clone(opts.Sources)
	if len(sources) == 0 {
		var err error
		sources, err = env.Prompter.Path(ctx, prompt.Path{
			Title: "Select files to be transformed",
			Kind:  prompt.PathFiles,
			Dir:   env.Root,
		})
		if err != nil {
			return finish(ctx, err)
		}
		if len(sources) == 0 {
			return finish(ctx, prompt.ErrCanceled)
		}
	}
	for idx, source := range sources {
		sources[idx] = env.abs(source)
		if _, err := routeFile(sources[idx]); err != nil {
			return err
		}
	}

	dest, err := env.askFolder(ctx, opts.Dest, "Select a folder to output the transformed routes")
	if err != nil {
		return finish(ctx, err)
	}

	return env.run(ctx, env.CLI.Transform(env.Root, sources, opts.Format, dest))
}

// routeFile rejects transform sources that are not route files.
func routeFile(source string) (dsl.Descriptor, error) {
	desc, ok := dsl.Detect(source)
	if !ok {
		return dsl.Descriptor{}, fmt.Errorf("%s is not a Camel route file, expected yaml, xml or java", source)
	}
	return desc, nil
}

func (env *Env) askFolder(ctx context.Context, value, title string) (string, error) {
	if value != "" {
		return env.abs(value), nil
	}
	paths, err := env.Prompter.Path(ctx, prompt.Path{
		Title: title,
		Kind:  prompt.PathFolder,
		Dir:   env.Root,
	})
	if err != nil {
		return "", err
	}
	if len(paths) == 0 || paths[0] == "" {
		return "", prompt.ErrCanceled
	}
	return env.abs(paths[0]), nil
}
