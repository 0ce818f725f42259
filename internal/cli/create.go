package cli

import (
	"context"

	"github.com/pentops/camelkit/internal/commands"
	"github.com/pentops/camelkit/internal/dsl"
	"github.com/pentops/camelkit/internal/jbang"
	"github.com/pentops/runner/commander"
)

func routeSet() *commander.CommandSet {
	routeGroup := commander.NewCommandSet()
	routeGroup.Add("yaml", routeCommand(dsl.Yaml))
	routeGroup.Add("java", routeCommand(dsl.Java))
	routeGroup.Add("xml", routeCommand(dsl.Xml))
	routeGroup.Add("openapi", commander.NewCommand(runRouteFromOpenAPI))
	routeGroup.Add("kamelet", commander.NewCommand(runKamelet))
	routeGroup.Add("pipe", commander.NewCommand(runPipe))
	return routeGroup
}

type RouteConfig struct {
	WorkspaceConfig
	Name string `flag:"name" default:"" description:"File name without extension, prompted when empty"`
}

func routeCommand(desc dsl.Descriptor) *commander.Command[RouteConfig] {
	return commander.NewCommand(func(ctx context.Context, cfg RouteConfig) error {
		env, closeEnv, err := cfg.Env(ctx)
		if err != nil {
			return err
		}
		defer closeEnv()
		return env.Route(ctx, commands.RouteOptions{
			DSL:  desc,
			Name: cfg.Name,
		})
	})
}

func runRouteFromOpenAPI(ctx context.Context, cfg struct {
	RouteConfig
	Spec string `flag:"spec" default:"" description:"OpenAPI document (yaml or json), prompted when empty"`
}) error {
	env, closeEnv, err := cfg.Env(ctx)
	if err != nil {
		return err
	}
	defer closeEnv()
	return env.RouteFromOpenAPI(ctx, commands.OpenAPIOptions{
		Name: cfg.Name,
		Spec: cfg.Spec,
	})
}

func runKamelet(ctx context.Context, cfg struct {
	RouteConfig
	Type string `flag:"type" default:"" description:"source, sink or action, prompted when empty"`
}) error {
	env, closeEnv, err := cfg.Env(ctx)
	if err != nil {
		return err
	}
	defer closeEnv()
	return env.Kamelet(ctx, commands.KameletOptions{
		Type: cfg.Type,
		Name: cfg.Name,
	})
}

func runPipe(ctx context.Context, cfg struct {
	RouteConfig
	Source string `flag:"source" default:"timer-source" description:"Source Kamelet"`
	Sink   string `flag:"sink" default:"log-sink" description:"Sink Kamelet"`
}) error {
	env, closeEnv, err := cfg.Env(ctx)
	if err != nil {
		return err
	}
	defer closeEnv()
	return env.Pipe(ctx, commands.PipeOptions{
		Name:   cfg.Name,
		Source: cfg.Source,
		Sink:   cfg.Sink,
	})
}

func runNewFile(ctx context.Context, cfg struct {
	WorkspaceConfig
	Type string `flag:"type" default:"" description:"yaml, java, xml, openapi, kamelet or pipe, prompted when empty"`
}) error {
	env, closeEnv, err := cfg.Env(ctx)
	if err != nil {
		return err
	}
	defer closeEnv()
	return env.NewFile(ctx, cfg.Type)
}

func projectSet() *commander.CommandSet {
	projectGroup := commander.NewCommandSet()
	projectGroup.Add(string(jbang.RuntimeQuarkus), projectCommand(jbang.RuntimeQuarkus))
	projectGroup.Add(string(jbang.RuntimeSpringBoot), projectCommand(jbang.RuntimeSpringBoot))
	return projectGroup
}

type ProjectConfig struct {
	WorkspaceConfig
	GAV    string `flag:"gav" default:"" description:"groupId:artifactId:version, prompted when empty"`
	Output string `flag:"output" default:"" description:"Folder to export the project to, prompted when empty"`
	Yes    bool   `flag:"yes" default:"false" description:"Do not ask before exporting to a folder other than the workspace"`
}

func projectCommand(runtime jbang.Runtime) *commander.Command[ProjectConfig] {
	return commander.NewCommand(func(ctx context.Context, cfg ProjectConfig) error {
		env, closeEnv, err := cfg.Env(ctx)
		if err != nil {
			return err
		}
		defer closeEnv()
		return env.Project(ctx, commands.ProjectOptions{
			Runtime: runtime,
			GAV:     cfg.GAV,
			Dir:     cfg.Output,
			Yes:     cfg.Yes,
		})
	})
}
