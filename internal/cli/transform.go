package cli

import (
	"context"
	"strings"

	"github.com/pentops/camelkit/internal/commands"
	"github.com/pentops/camelkit/internal/dsl"
	"github.com/pentops/runner/commander"
)

func transformSet() *commander.CommandSet {
	transformGroup := commander.NewCommandSet()
	transformGroup.Add("file", commander.NewCommand(runTransformFile))
	transformGroup.Add("folder", commander.NewCommand(runTransformFolder))
	transformGroup.Add("files", commander.NewCommand(runTransformFiles))
	return transformGroup
}

type TransformConfig struct {
	WorkspaceConfig
	Format string `flag:"format" default:"yaml" description:"Output DSL, yaml or xml"`
}

func runTransformFile(ctx context.Context, cfg struct {
	TransformConfig
	Source string `flag:"source" default:"" description:"Route file to transform, prompted when empty"`
	Output string `flag:"output" default:"" description:"Name of the transformed file, created next to the source"`
}) error {
	format, err := dsl.ParseFormat(cfg.Format)
	if err != nil {
		return err
	}
	env, closeEnv, err := cfg.Env(ctx)
	if err != nil {
		return err
	}
	defer closeEnv()
	return env.TransformFile(ctx, commands.TransformFileOptions{
		Format: format,
		Source: cfg.Source,
		Output: cfg.Output,
	})
}

func runTransformFolder(ctx context.Context, cfg struct {
	TransformConfig
	Source string `flag:"source" default:"" description:"Folder containing the routes, prompted when empty"`
	Dest   string `flag:"dest" default:"" description:"Folder for the transformed routes, prompted when empty"`
}) error {
	format, err := dsl.ParseFormat(cfg.Format)
	if err != nil {
		return err
	}
	env, closeEnv, err := cfg.Env(ctx)
	if err != nil {
		return err
	}
	defer closeEnv()
	return env.TransformFolder(ctx, commands.TransformFolderOptions{
		Format: format,
		Source: cfg.Source,
		Dest:   cfg.Dest,
	})
}

func runTransformFiles(ctx context.Context, cfg struct {
	TransformConfig
	Files string `flag:"files" default:"" description:"Comma separated route files, prompted when empty"`
	Dest  string `flag:"dest" default:"" description:"Folder for the transformed routes, prompted when empty"`
}) error {
	format, err := dsl.ParseFormat(cfg.Format)
	if err != nil {
		return err
	}
	env, closeEnv, err := cfg.Env(ctx)
	if err != nil {
		return err
	}
	defer closeEnv()
	return env.TransformFiles(ctx, commands.TransformFilesOptions{
		Format:  format,
		Sources: splitList(cfg.Files),
		Dest:    cfg.Dest,
	})
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
