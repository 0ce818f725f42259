package workspace

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"

	"github.com/pentops/log.go/log"
)

// Opener shows a created document or project to the user.
type Opener interface {
	Open(ctx context.Context, path string) error
}

// PrintOpener writes the path for the user or a calling script.
type PrintOpener struct {
	Out io.Writer
}

func (po PrintOpener) Open(ctx context.Context, path string) error {
	log.WithField(ctx, "path", path).Debug("open")
	_, err := fmt.Fprintln(po.Out, path)
	return err
}

// EditorOpener runs the configured editor command with the path appended.
type EditorOpener struct {
	Command []string
}

// NewOpener picks $VISUAL or $EDITOR when set, otherwise prints the path.
func NewOpener(out io.Writer) Opener {
	for _, env := range []string{"VISUAL", "EDITOR"} {
		if cmd := strings.Fields(os.Getenv(env)); len(cmd) > 0 {
			return EditorOpener{Command: cmd}
		}
	}
	return PrintOpener{Out: out}
}

func (eo EditorOpener) Open(ctx context.Context, path string) error {
	args := append(eo.Command[1:len(eo.Command):len(eo.Command)], path)
	cmd := exec.CommandContext(ctx, eo.Command[0], args...)
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	log.WithField(ctx, "editor", eo.Command[0]).Info("Opening " + path)
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("opening %s: %w", path, err)
	}
	return nil
}

// RecordingOpener remembers opened paths.
type RecordingOpener struct {
	Opened []string
}

func (ro *RecordingOpener) Open(_ context.Context, path string) error {
	ro.Opened = append(ro.Opened, path)
	return nil
}
