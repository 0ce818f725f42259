package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime/debug"

	"github.com/pentops/camelkit/internal/commands"
	"github.com/pentops/camelkit/internal/config"
	"github.com/pentops/camelkit/internal/jbang"
	"github.com/pentops/camelkit/internal/prompt"
	"github.com/pentops/camelkit/internal/task"
	"github.com/pentops/camelkit/internal/workspace"
	"github.com/pentops/runner/commander"
)

var Commit = func() string {
	if info, ok := debug.ReadBuildInfo(); ok {
		for _, setting := range info.Settings {
			if setting.Key == "vcs.revision" {
				return setting.Value
			}
		}
	}
	return "dev"
}()

var Version = ""

func CommandSet() *commander.CommandSet {

	cmdGroup := commander.NewCommandSet()
	cmdGroup.Add("version", commander.NewCommand(runVersion))

	cmdGroup.Add("route", routeSet())
	cmdGroup.Add("project", projectSet())
	cmdGroup.Add("transform", transformSet())
	cmdGroup.Add("new", commander.NewCommand(runNewFile))

	cmdGroup.Add("lsp", commander.NewCommand(runLSP))
	cmdGroup.Add("doctor", commander.NewCommand(runDoctor))
	cmdGroup.Add("config", commander.NewCommand(runConfig))

	return cmdGroup
}

func runVersion(ctx context.Context, cfg struct{}) error {
	fmt.Printf("camelkit version %v (%v)\n", Version, Commit)
	return nil
}

type WorkspaceConfig struct {
	Dir    string `flag:"dir" default:"." description:"Workspace folder, new routes are created here and the CLI runs here"`
	Config string `flag:"config" env:"CAMELKIT_CONFIG" default:"" description:"Settings file, defaults to .camelkit.yaml in the workspace"`
	DryRun bool   `flag:"dry-run" default:"false" description:"Print the Camel JBang invocations instead of running them"`
}

func (cfg WorkspaceConfig) Root() (string, error) {
	return filepath.Abs(cfg.Dir)
}

func (cfg WorkspaceConfig) SettingsPath() (string, error) {
	root, err := cfg.Root()
	if err != nil {
		return "", err
	}
	return config.Path(root, cfg.Config), nil
}

func (cfg WorkspaceConfig) Settings() (*config.Settings, error) {
	path, err := cfg.SettingsPath()
	if err != nil {
		return nil, err
	}
	return config.Load(path)
}

// Env builds the command environment. The returned close func releases the
// runner.
func (cfg WorkspaceConfig) Env(ctx context.Context) (*commands.Env, func(), error) {
	root, err := cfg.Root()
	if err != nil {
		return nil, nil, err
	}
	settings, err := cfg.Settings()
	if err != nil {
		return nil, nil, err
	}

	runner, closeRunner, err := cfg.runner(root, settings)
	if err != nil {
		return nil, nil, err
	}

	env := &commands.Env{
		Root:     root,
		CLI:      jbang.New(settings),
		Runner:   runner,
		Prompter: prompt.NewTerminal(),
		Opener:   workspace.NewOpener(os.Stdout),
	}
	return env, closeRunner, nil
}

func (cfg WorkspaceConfig) runner(root string, settings *config.Settings) (task.Runner, func(), error) {
	vars := map[string]string{
		"WORKSPACE":     root,
		"CAMEL_VERSION": settings.Camel.JBangVersion,
	}

	if cfg.DryRun {
		return task.RunnerFunc(func(ctx context.Context, t task.Task) task.Result {
			fmt.Fprintf(os.Stdout, "(cd %s && %s)\n", t.Dir, t.String())
			return task.Result{}
		}), func() {}, nil
	}

	switch settings.Runner.Mode {
	case "docker":
		runner, err := task.NewDockerRunner(settings.Runner.Docker)
		if err != nil {
			return nil, nil, fmt.Errorf("docker runner: %w", err)
		}
		for k, v := range vars {
			runner.Vars[k] = v
		}
		return runner, func() { runner.Close() }, nil

	default:
		runner := task.NewLocalRunner()
		for k, v := range vars {
			runner.Vars[k] = v
		}
		return runner, func() {}, nil
	}
}
