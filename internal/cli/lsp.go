package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"runtime"

	"github.com/pentops/camelkit/internal/lsclient"
	"github.com/pentops/camelkit/internal/requirements"
	"github.com/pentops/log.go/log"
)

func runLSP(ctx context.Context, cfg struct {
	WorkspaceConfig
	Jar string `flag:"jar" default:"" description:"Camel language server jar, overrides camel.languageServer.jar"`
}) error {
	root, err := cfg.Root()
	if err != nil {
		return err
	}
	settingsPath, err := cfg.SettingsPath()
	if err != nil {
		return err
	}
	settings, err := cfg.Settings()
	if err != nil {
		return err
	}

	jar := cfg.Jar
	if jar == "" {
		jar = settings.Camel.LanguageServer.Jar
	}
	if jar == "" {
		return fmt.Errorf("no language server jar, set camel.languageServer.jar in %s or pass --jar", settingsPath)
	}

	java, err := requirements.NewResolver(settingsPath).Resolve(ctx, settings.Camel.JavaHome)
	if err != nil {
		reportRequirement(err)
		return err
	}

	vmArgs := requirements.ParseVMArgs(settings.Camel.LanguageServer.VMArgs)
	if agent, ok := requirements.JavaAgent(vmArgs); ok {
		log.WithField(ctx, "javaagent", agent).Info("Language server runs with a Java agent")
	}

	launch := lsclient.JavaCommand{
		Java:   java.Executable(runtime.GOOS),
		VMArgs: vmArgs,
		Jar:    jar,
		Dir:    root,
	}.Launcher()

	supervisor := lsclient.New(launch, root, settings)
	supervisor.ClientVersion = Version

	return lsclient.NewBridge(supervisor, settingsPath).Run(ctx, lsclient.StdIO())
}

// reportRequirement prints the remediation of a requirement error.
func reportRequirement(err error) {
	reqErr := &requirements.Error{}
	if !errors.As(err, &reqErr) || reqErr.Label == "" {
		return
	}
	fmt.Fprintf(os.Stderr, "%s\n  %s: %s\n", reqErr.Message, reqErr.Label, reqErr.Action)
}
