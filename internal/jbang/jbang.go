// Package jbang builds the Camel JBang CLI invocations used by the commands.
package jbang

import (
	"fmt"
	"runtime"
	"strings"

	"github.com/pentops/camelkit/internal/config"
	"github.com/pentops/camelkit/internal/dsl"
	"github.com/pentops/camelkit/internal/gav"
	"github.com/pentops/camelkit/internal/task"
	"github.com/pentops/camelkit/internal/version"
)

const (
	CamelApp = "camel@apache/camel"

	// GeneratePluginSince is the first CLI version which ships the generate
	// command as a plugin.
	GeneratePluginSince = "4.8"

	// BrokenMavenWrapperVersion fails to generate the maven wrapper on
	// Windows.
	BrokenMavenWrapperVersion = "4.8.0"
)

const (
	LabelInit         = "Init Camel Route file with JBang"
	LabelBind         = "Create Camel Pipe with JBang"
	LabelExport       = "Create Camel project with JBang"
	LabelGenerateRest = "Generate Camel Route from OpenAPI with JBang"
	LabelPluginAdd    = "Add Camel JBang plugin"
	LabelTransform    = "Transform Camel Routes with JBang"
)

type Runtime string

const (
	RuntimeQuarkus    Runtime = "quarkus"
	RuntimeSpringBoot Runtime = "spring-boot"
)

func ParseRuntime(s string) (Runtime, error) {
	switch Runtime(strings.ToLower(s)) {
	case RuntimeQuarkus:
		return RuntimeQuarkus, nil
	case RuntimeSpringBoot, "springboot":
		return RuntimeSpringBoot, nil
	default:
		return "", fmt.Errorf("unknown runtime %q, expected quarkus or spring-boot", s)
	}
}

// CLI builds tasks for one pinned Camel JBang version.
type CLI struct {
	Command string
	Version string

	// GOOS of the machine the CLI runs on.
	GOOS string

	// Env is passed through to every task.
	Env []string
}

func New(settings *config.Settings) *CLI {
	return &CLI{
		Command: settings.Runner.Command,
		Version: settings.Camel.JBangVersion,
		GOOS:    runtime.GOOS,
		Env:     settings.Runner.Env,
	}
}

func (c *CLI) task(label, dir string, args ...string) task.Task {
	return task.Task{
		Label:   label,
		Command: c.Command,
		Args:    append(c.prefix(), args...),
		Dir:     dir,
		Env:     c.Env,
	}
}

func (c *CLI) prefix() []string {
	return []string{
		fmt.Sprintf("-Dcamel.jbang.version=%s", c.Version),
		CamelApp,
	}
}

// Init creates a route file from the CLI template for its extension.
func (c *CLI) Init(dir, file string) task.Task {
	return c.task(LabelInit, dir, "init", file)
}

// Bind creates a pipe file binding source to sink.
func (c *CLI) Bind(dir, file, source, sink string) task.Task {
	return c.task(LabelBind, dir, "bind", "--source", source, "--sink", sink, file)
}

type ExportOptions struct {
	Runtime Runtime
	GAV     gav.Coordinate

	// Dir is where the project is exported, WorkDir the directory the
	// CLI runs in.
	Dir     string
	WorkDir string

	// PathsEqual compares Dir and WorkDir.
	PathsEqual func(a, b string) bool
}

// Export builds the project export task. The returned warning is non-empty
// when the invocation was adjusted for a known CLI defect.
func (c *CLI) Export(opts ExportOptions) (task.Task, string) {
	dir := opts.Dir
	equal := opts.PathsEqual
	if equal == nil {
		equal = func(a, b string) bool { return a == b }
	}
	if opts.WorkDir != "" && equal(opts.Dir, opts.WorkDir) {
		dir = "."
	}

	args := []string{
		"export",
		fmt.Sprintf("--runtime=%s", opts.Runtime),
		fmt.Sprintf("--gav=%s", opts.GAV.String()),
		fmt.Sprintf("--directory=%s", dir),
	}

	warning := ""
	if c.brokenMavenWrapper() {
		args = append(args, "--maven-wrapper=false")
		warning = fmt.Sprintf("Camel JBang %s cannot generate the Maven wrapper on Windows, the project is exported without it.", c.Version)
	}
	return c.task(LabelExport, opts.WorkDir, args...), warning
}

func (c *CLI) brokenMavenWrapper() bool {
	return c.GOOS == "windows" && c.Version == BrokenMavenWrapperVersion
}

// NeedsGeneratePlugin is true when generate rest is only available after
// installing the generate plugin.
func (c *CLI) NeedsGeneratePlugin() bool {
	return version.IsNewerOrEqual(GeneratePluginSince, c.Version)
}

func (c *CLI) PluginAdd(dir, name string) task.Task {
	return c.task(LabelPluginAdd, dir, "plugin", "add", name)
}

// GenerateRest writes a YAML route for the OpenAPI document at input.
func (c *CLI) GenerateRest(dir, input, output string) task.Task {
	return c.task(LabelGenerateRest, dir,
		"generate", "rest",
		fmt.Sprintf("--input=%s", input),
		fmt.Sprintf("--output=%s", output),
		"--routes",
	)
}

// Transform converts the routes in sources, files or folders, into format.
func (c *CLI) Transform(dir string, sources []string, format dsl.Format, output string) task.Task {
	args := append([]string{"transform", "route"}, sources...)
	args = append(args,
		fmt.Sprintf("--format=%s", format),
		fmt.Sprintf("--output=%s", output),
	)
	return c.task(LabelTransform, dir, args...)
}
