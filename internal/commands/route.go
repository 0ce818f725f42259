package commands

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/pentops/camelkit/internal/dsl"
	"github.com/pentops/camelkit/internal/prompt"
	"github.com/pentops/log.go/log"
)

type RouteOptions struct {
	DSL  dsl.Descriptor
	Name string
}

// Route creates an empty route in the chosen DSL.
func (env *Env) Route(ctx context.Context, opts RouteOptions) error {
	ctx = log.WithField(ctx, "dsl", opts.DSL.String())
	name, err := env.askName(ctx, opts.DSL, opts.Name, "")
	if err != nil {
		return finish(ctx, err)
	}

	fileName := opts.DSL.FileName(name)
	return env.runAndOpen(ctx, filepath.Join(env.Root, fileName), env.CLI.Init(env.Root, fileName))
}

type OpenAPIOptions struct {
	Name string

	// Spec is the OpenAPI document, yaml or json.
	Spec string
}

var OpenAPIExtensions = []string{".yaml", ".yml", ".json"}

// RouteFromOpenAPI generates a YAML route exposing the operations of an
// OpenAPI document.
func (env *Env) RouteFromOpenAPI(ctx context.Context, opts OpenAPIOptions) error {
	name, err := env.askName(ctx, dsl.Yaml, opts.Name, "")
	if err != nil {
		return finish(ctx, err)
	}
	fileName := dsl.Yaml.FileName(name)

	spec := opts.Spec
	if spec == "" {
		paths, err := env.Prompter.Path(ctx, prompt.Path{
			Title:      "Select an OpenAPI file",
			Kind:       prompt.PathFile,
			Dir:        env.Root,
			Extensions: OpenAPIExtensions,
		})
		if err != nil {
			return finish(ctx, err)
		}
		if len(paths) == 0 || paths[0] == "" {
			return finish(ctx, prompt.ErrCanceled)
		}
		spec = paths[0]
	}
	spec = env.abs(spec)

	if env.CLI.NeedsGeneratePlugin() {
		if err := env.run(ctx, env.CLI.PluginAdd(env.Root, "generate")); err != nil {
			return err
		}
	}

	return env.runAndOpen(ctx, filepath.Join(env.Root, fileName), env.CLI.GenerateRest(env.Root, spec, fileName))
}

var KameletTypes = []prompt.Option{{
	Label:       "source",
	Description: "A route that produces data. You use a source Kamelet to retrieve data from a component.",
	Value:       "source",
}, {
	Label:       "sink",
	Description: "A route that consumes data. You use a sink Kamelet to send data to a component.",
	Value:       "sink",
}, {
	Label:       "action",
	Description: "A route that performs an action on data. You can use an action Kamelet to manipulate data when it passes from a source Kamelet to a sink Kamelet.",
	Value:       "action",
}}

type KameletOptions struct {
	Type string
	Name string
}

// Kamelet creates <name>-<type>.kamelet.yaml.
func (env *Env) Kamelet(ctx context.Context, opts KameletOptions) error {
	kameletType, err := env.askSelect(ctx, prompt.Select{
		Title:   "Please select a Kamelet type.",
		Options: KameletTypes,
	}, opts.Type)
	if err != nil {
		return finish(ctx, err)
	}

	suffix := "-" + kameletType
	name, err := env.askName(ctx, dsl.Kamelet, opts.Name, suffix)
	if err != nil {
		return finish(ctx, err)
	}

	fileName := dsl.Kamelet.FileName(name + suffix)
	return env.runAndOpen(ctx, filepath.Join(env.Root, fileName), env.CLI.Init(env.Root, fileName))
}

const (
	DefaultPipeSource = "timer-source"
	DefaultPipeSink   = "log-sink"
)

type PipeOptions struct {
	Name   string
	Source string
	Sink   string
}

// Pipe creates <name>-pipe.yaml binding a source Kamelet to a sink.
func (env *Env) Pipe(ctx context.Context, opts PipeOptions) error {
	name, err := env.askName(ctx, dsl.Pipe, opts.Name, "-pipe")
	if err != nil {
		return finish(ctx, err)
	}

	if opts.Source == "" {
		opts.Source = DefaultPipeSource
	}
	if opts.Sink == "" {
		opts.Sink = DefaultPipeSink
	}

	fileName := dsl.Pipe.FileName(name + "-pipe")
	return env.runAndOpen(ctx, filepath.Join(env.Root, fileName), env.CLI.Bind(env.Root, fileName, opts.Source, opts.Sink))
}

const (
	FileTypeYaml    = "yaml"
	FileTypeJava    = "java"
	FileTypeXml     = "xml"
	FileTypeOpenAPI = "openapi"
	FileTypeKamelet = "kamelet"
	FileTypePipe    = "pipe"
)

var FileTypes = []prompt.Option{
	{Label: "YAML DSL", Description: "Camel Route using YAML DSL", Value: FileTypeYaml},
	{Label: "Java DSL", Description: "Camel Route using Java DSL", Value: FileTypeJava},
	{Label: "XML DSL", Description: "Camel Route using XML DSL", Value: FileTypeXml},
	{Label: "YAML DSL from OpenAPI", Description: "Camel Route from OpenAPI using YAML DSL", Value: FileTypeOpenAPI},
	{Label: "Kamelet", Description: "Kamelet using YAML DSL", Value: FileTypeKamelet},
	{Label: "Pipe", Description: "Pipe binding a source to a sink using YAML DSL", Value: FileTypePipe},
}

// NewFile asks which kind of file to create and runs the matching command.
func (env *Env) NewFile(ctx context.Context, fileType string) error {
	fileType, err := env.askSelect(ctx, prompt.Select{
		Title:       "New Camel File...",
		Description: "Please select a Camel File type.",
		Options:     FileTypes,
	}, fileType)
	if err != nil {
		return finish(ctx, err)
	}

	switch fileType {
	case FileTypeYaml, FileTypeJava, FileTypeXml:
		desc, err := dsl.Lookup(fileType)
		if err != nil {
			return err
		}
		return env.Route(ctx, RouteOptions{DSL: desc})
	case FileTypeOpenAPI:
		return env.RouteFromOpenAPI(ctx, OpenAPIOptions{})
	case FileTypeKamelet:
		return env.Kamelet(ctx, KameletOptions{})
	case FileTypePipe:
		return env.Pipe(ctx, PipeOptions{})
	default:
		return fmt.Errorf("unknown file type %q", fileType)
	}
}
