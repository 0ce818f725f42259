// Package workspace holds the file system side of the commands: path
// comparison, editor resources for exported projects and opening results.
package workspace

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/pentops/log.go/log"
)

// PathsEqual compares cleaned paths, ignoring case on Windows and macOS.
func PathsEqual(a, b string) bool {
	return pathsEqual(runtime.GOOS, a, b)
}

func pathsEqual(goos, a, b string) bool {
	a = filepath.Clean(a)
	b = filepath.Clean(b)
	if goos == "windows" || goos == "darwin" {
		return strings.EqualFold(a, b)
	}
	return a == b
}

//go:embed resources
var resources embed.FS

// EditorFiles lists the files installed into .vscode for a runtime.
var EditorFiles = []string{"tasks.json", "launch.json"}

// InstallEditorFiles copies the editor configuration for the runtime (quarkus
// or spring-boot) into dir/.vscode. Existing files are left untouched.
func InstallEditorFiles(ctx context.Context, dir, runtimeName string) error {
	target := filepath.Join(dir, ".vscode")
	if err := os.MkdirAll(target, 0o755); err != nil {
		return err
	}

	for _, name := range EditorFiles {
		data, err := resources.ReadFile(path.Join("resources", runtimeName, name))
		if err != nil {
			return fmt.Errorf("no %s for runtime %s: %w", name, runtimeName, err)
		}

		dest := filepath.Join(target, name)
		err = writeNew(dest, data)
		if errors.Is(err, fs.ErrExist) {
			log.WithField(ctx, "file", dest).Debug("keeping existing editor file")
			continue
		}
		if err != nil {
			return err
		}
		log.WithField(ctx, "file", dest).Info("Installed editor file")
	}
	return nil
}

func writeNew(dest string, data []byte) error {
	f, err := os.OpenFile(dest, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return err
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
