package lsclient

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"

	"github.com/pentops/log.go/log"
)

// Process is a started language server: a JSON-RPC stream plus the handles
// needed to await or end the process.
type Process struct {
	Conn io.ReadWriteCloser
	Wait func() error
	Kill func() error
}

// Launcher starts the language server process.
type Launcher func(ctx context.Context) (*Process, error)

type JavaCommand struct {
	Java   string
	VMArgs []string
	Jar    string

	// Dir is the working directory of the server.
	Dir string
}

func (jc JavaCommand) Args() []string {
	args := append([]string{}, jc.VMArgs...)
	return append(args, "-jar", jc.Jar)
}

// Launcher runs java [vmargs] -jar <jar> with the protocol on stdio. Stderr
// lines are logged.
func (jc JavaCommand) Launcher() Launcher {
	return func(ctx context.Context) (*Process, error) {
		if _, err := os.Stat(jc.Jar); err != nil {
			return nil, fmt.Errorf("language server jar: %w", err)
		}

		// The process outlives ctx, Stop ends it.
		cmd := exec.Command(jc.Java, jc.Args()...)
		cmd.Dir = jc.Dir

		stdin, err := cmd.StdinPipe()
		if err != nil {
			return nil, fmt.Errorf("stdin pipe: %w", err)
		}
		// cmd.Wait leaves these read ends open.
		stdout, stdoutW, err := os.Pipe()
		if err != nil {
			return nil, fmt.Errorf("stdout pipe: %w", err)
		}
		stderr, stderrW, err := os.Pipe()
		if err != nil {
			closeAll(stdout, stdoutW)
			return nil, fmt.Errorf("stderr pipe: %w", err)
		}
		cmd.Stdout = stdoutW
		cmd.Stderr = stderrW

		log.WithFields(ctx, map[string]interface{}{
			"java": jc.Java,
			"args": jc.Args(),
		}).Info("Starting language server")

		err = cmd.Start()
		closeAll(stdoutW, stderrW)
		if err != nil {
			closeAll(stdout, stderr)
			return nil, fmt.Errorf("start language server: %w", err)
		}

		stderrDone := logLines(ctx, stderr)

		return &Process{
			Conn: &stdioConn{r: stdout, w: stdin},
			Wait: waitAfter(stderrDone, cmd.Wait),
			Kill: func() error {
				return cmd.Process.Kill()
			},
		}, nil
	}
}

// logLines logs each line of r at debug level and closes r at EOF. The
// returned channel is closed once r is drained.
func logLines(ctx context.Context, r io.ReadCloser) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		defer close(done)
		defer r.Close()
		scanner := bufio.NewScanner(r)
		for scanner.Scan() {
			log.WithField(ctx, "stream", "stderr").Debug(scanner.Text())
		}
	}()
	return done
}

// waitAfter calls wait once done is closed.
func waitAfter(done <-chan struct{}, wait func() error) func() error {
	return func() error {
		<-done
		return wait()
	}
}

func closeAll(files ...*os.File) {
	for _, f := range files {
		f.Close()
	}
}

type stdioConn struct {
	r io.ReadCloser
	w io.WriteCloser
}

func (c *stdioConn) Read(p []byte) (int, error) {
	return c.r.Read(p)
}

func (c *stdioConn) Write(p []byte) (int, error) {
	return c.w.Write(p)
}

func (c *stdioConn) Close() error {
	if err := c.w.Close(); err != nil {
		return err
	}
	return c.r.Close()
}

// StdIO is the editor side of the bridge. os.Stdout is pointed at stderr
// afterwards, the protocol owns the real stdout.
func StdIO() io.ReadWriteCloser {
	out := os.Stdout
	os.Stdout = os.Stderr
	return &stdioConn{r: os.Stdin, w: out}
}
