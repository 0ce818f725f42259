package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"runtime"

	"github.com/pentops/camelkit/internal/jbang"
	"github.com/pentops/camelkit/internal/requirements"
)

func runDoctor(ctx context.Context, cfg struct {
	WorkspaceConfig
}) error {
	settingsPath, err := cfg.SettingsPath()
	if err != nil {
		return err
	}

	var failed []error
	check := func(name string, err error, detail string) {
		if err != nil {
			fmt.Printf("FAIL %-10s %s\n", name, err)
			failed = append(failed, fmt.Errorf("%s: %w", name, err))
			return
		}
		fmt.Printf("ok   %-10s %s\n", name, detail)
	}

	settings, err := cfg.Settings()
	check("settings", err, settingsPath)
	if err != nil {
		return errors.Join(failed...)
	}

	java, err := requirements.NewResolver(settingsPath).Resolve(ctx, settings.Camel.JavaHome)
	if err != nil {
		check("java", err, "")
		reportRequirement(err)
	} else {
		check("java", nil, fmt.Sprintf("%d at %s (%s)", java.Version, java.Home, java.Source))
	}

	switch settings.Runner.Mode {
	case "docker":
		check("runner", nil, "docker "+settings.Runner.Docker.Image)
	default:
		path, err := exec.LookPath(settings.Runner.Command)
		check("runner", err, path)
	}

	cli := jbang.New(settings)
	detail := "Camel JBang " + cli.Version
	if cli.NeedsGeneratePlugin() {
		detail += ", OpenAPI generation installs the generate plugin"
	}
	if cli.GOOS == "windows" && cli.Version == jbang.BrokenMavenWrapperVersion {
		detail += ", projects are exported without the Maven wrapper"
	}
	check("camel", nil, detail)

	jar := settings.Camel.LanguageServer.Jar
	if jar == "" {
		fmt.Printf("--   %-10s %s\n", "lsp", "no language server jar configured")
	} else {
		_, err := os.Stat(jar)
		check("lsp", err, jar)
	}

	if len(failed) > 0 {
		return errors.Join(failed...)
	}
	fmt.Printf("camelkit %s on %s/%s\n", Version, runtime.GOOS, runtime.GOARCH)
	return nil
}

func runConfig(ctx context.Context, cfg struct {
	WorkspaceConfig
}) error {
	settings, err := cfg.Settings()
	if err != nil {
		return err
	}
	data, err := settings.Marshal()
	if err != nil {
		return err
	}
	_, err = os.Stdout.Write(data)
	return err
}
