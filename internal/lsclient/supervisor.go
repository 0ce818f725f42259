// Package lsclient supervises the Camel language server process and relays
// editor traffic to it.
package lsclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/pentops/camelkit/internal/config"
	"github.com/pentops/log.go/log"
	"github.com/tidwall/gjson"
	"go.lsp.dev/jsonrpc2"
	"go.lsp.dev/protocol"
	"go.lsp.dev/uri"
)

type State int

const (
	StateNotStarted State = iota
	StateStarting
	StateRunning
	StateFailed
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateNotStarted:
		return "not started"
	case StateStarting:
		return "starting"
	case StateRunning:
		return "running"
	case StateFailed:
		return "failed"
	case StateStopped:
		return "stopped"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

var (
	ErrAlreadyStarted = errors.New("language server already started")
	ErrNotRunning     = errors.New("language server not running")
)

const (
	ClientName = "camelkit"

	DefaultGracePeriod = 5 * time.Second
)

// Supervisor owns one language server process. It is single use: a stopped
// or failed server is not restarted.
type Supervisor struct {
	launch  Launcher
	rootDir string

	ClientVersion string
	GracePeriod   time.Duration

	lock         sync.Mutex
	state        State
	initializing bool
	stopping     bool
	settings     *config.Settings
	handler      jsonrpc2.Handler
	conn         jsonrpc2.Conn
	proc         *Process
	exited       chan struct{}
	exitErr      error
}

func New(launch Launcher, rootDir string, settings *config.Settings) *Supervisor {
	return &Supervisor{
		launch:      launch,
		rootDir:     rootDir,
		settings:    settings,
		GracePeriod: DefaultGracePeriod,
		state:       StateNotStarted,
		exited:      make(chan struct{}),
	}
}

func (s *Supervisor) State() State {
	s.lock.Lock()
	defer s.lock.Unlock()
	return s.state
}

// Exited is closed once the server process has ended.
func (s *Supervisor) Exited() <-chan struct{} {
	return s.exited
}

// ExitErr is the process wait error, valid after Exited is closed.
func (s *Supervisor) ExitErr() error {
	s.lock.Lock()
	defer s.lock.Unlock()
	return s.exitErr
}

// SetHandler replaces the handler for messages sent by the server. It must
// be called before Start.
func (s *Supervisor) SetHandler(handler jsonrpc2.Handler) {
	s.lock.Lock()
	defer s.lock.Unlock()
	s.handler = handler
}

func (s *Supervisor) Settings() *config.Settings {
	s.lock.Lock()
	defer s.lock.Unlock()
	return s.settings
}

func (s *Supervisor) setState(ctx context.Context, state State) {
	log.WithFields(ctx, map[string]interface{}{
		"from": s.state.String(),
		"to":   state.String(),
	}).Debug("Language server state")
	s.state = state
}

// Start launches the process and connects to it.
func (s *Supervisor) Start(ctx context.Context) error {
	s.lock.Lock()
	defer s.lock.Unlock()

	if s.state != StateNotStarted {
		return ErrAlreadyStarted
	}
	s.setState(ctx, StateStarting)

	proc, err := s.launch(ctx)
	if err != nil {
		s.setState(ctx, StateFailed)
		return fmt.Errorf("launching language server: %w", err)
	}

	conn := jsonrpc2.NewConn(jsonrpc2.NewStream(proc.Conn))
	s.proc = proc
	s.conn = conn

	runCtx := context.WithoutCancel(ctx)
	conn.Go(runCtx, s.handle)
	go s.watchProcess(runCtx, proc, conn)
	return nil
}

func (s *Supervisor) watchProcess(ctx context.Context, proc *Process, conn jsonrpc2.Conn) {
	err := proc.Wait()

	s.lock.Lock()
	s.exitErr = err
	if !s.stopping && (s.state == StateStarting || s.state == StateRunning) {
		log.WithField(ctx, "exitErr", fmt.Sprint(err)).Error("Language server stopped unexpectedly")
		s.setState(ctx, StateFailed)
	}
	close(s.exited)
	s.lock.Unlock()

	if err := conn.Close(); err != nil {
		log.WithError(ctx, err).Debug("closing language server connection")
	}
}

func (s *Supervisor) handle(ctx context.Context, reply jsonrpc2.Replier, req jsonrpc2.Request) error {
	s.lock.Lock()
	handler := s.handler
	s.lock.Unlock()
	if handler == nil {
		handler = s.defaultHandler
	}
	return handler(ctx, reply, req)
}

// Initialize performs the initialize request. params may be nil, in which
// case they are built from the supervisor root. The forwarded settings are
// set as initializationOptions unless params already carry them.
func (s *Supervisor) Initialize(ctx context.Context, params json.RawMessage) (json.RawMessage, error) {
	s.lock.Lock()
	if s.state != StateStarting || s.initializing {
		state := s.state
		s.lock.Unlock()
		return nil, fmt.Errorf("cannot initialize a language server which is %s", state)
	}
	s.initializing = true
	conn := s.conn
	settings := s.settings
	s.lock.Unlock()

	params, err := s.initializeParams(params, settings)
	if err != nil {
		s.finishInitialize(ctx, err)
		return nil, err
	}

	var result json.RawMessage
	if _, err := conn.Call(ctx, protocol.MethodInitialize, params, &result); err != nil {
		err = fmt.Errorf("initialize: %w", err)
		s.finishInitialize(ctx, err)
		return nil, err
	}

	log.WithFields(ctx, map[string]interface{}{
		"server":  gjson.GetBytes(result, "serverInfo.name").String(),
		"version": gjson.GetBytes(result, "serverInfo.version").String(),
	}).Info("Language server initialized")

	if err := s.finishInitialize(ctx, nil); err != nil {
		return nil, err
	}
	return result, nil
}

func (s *Supervisor) finishInitialize(ctx context.Context, err error) error {
	s.lock.Lock()
	defer s.lock.Unlock()
	s.initializing = false
	if s.state != StateStarting {
		// the process ended during the handshake
		return ErrNotRunning
	}
	if err != nil {
		log.WithError(ctx, err).Error("Language server failed to initialize")
		s.setState(ctx, StateFailed)
		return err
	}
	s.setState(ctx, StateRunning)
	return nil
}

func (s *Supervisor) initializeParams(raw json.RawMessage, settings *config.Settings) (json.RawMessage, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || string(raw) == "null" {
		return json.Marshal(&protocol.InitializeParams{
			ProcessID: int32(os.Getpid()),
			ClientInfo: &protocol.ClientInfo{
				Name:    ClientName,
				Version: s.ClientVersion,
			},
			RootURI:               protocol.DocumentURI(uri.File(s.rootDir)),
			InitializationOptions: settings.Forwarded(),
		})
	}

	if opts := gjson.GetBytes(raw, "initializationOptions"); opts.Exists() && opts.Type != gjson.Null {
		return raw, nil
	}

	fields := map[string]json.RawMessage{}
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, fmt.Errorf("initialize params: %w", err)
	}
	opts, err := json.Marshal(settings.Forwarded())
	if err != nil {
		return nil, err
	}
	fields["initializationOptions"] = opts
	return json.Marshal(fields)
}

// Handshake initializes the server as its own client and pushes the current
// settings.
func (s *Supervisor) Handshake(ctx context.Context) error {
	if _, err := s.Initialize(ctx, nil); err != nil {
		return err
	}
	if err := s.Notify(ctx, protocol.MethodInitialized, &protocol.InitializedParams{}); err != nil {
		return err
	}
	return s.DidChangeConfiguration(ctx, s.Settings())
}

func (s *Supervisor) running() (jsonrpc2.Conn, error) {
	s.lock.Lock()
	defer s.lock.Unlock()
	if s.state != StateRunning || s.stopping {
		return nil, ErrNotRunning
	}
	return s.conn, nil
}

func (s *Supervisor) Call(ctx context.Context, method string, params, result interface{}) error {
	conn, err := s.running()
	if err != nil {
		return err
	}
	_, err = conn.Call(ctx, method, params, result)
	return err
}

func (s *Supervisor) Notify(ctx context.Context, method string, params interface{}) error {
	conn, err := s.running()
	if err != nil {
		return err
	}
	return conn.Notify(ctx, method, params)
}

// DidChangeConfiguration stores settings and sends them to the server.
func (s *Supervisor) DidChangeConfiguration(ctx context.Context, settings *config.Settings) error {
	s.lock.Lock()
	s.settings = settings
	s.lock.Unlock()

	return s.Notify(ctx, protocol.MethodWorkspaceDidChangeConfiguration, &protocol.DidChangeConfigurationParams{
		Settings: settings.Forwarded(),
	})
}

// Stop asks a running server to shut down and exit, then waits for the
// process, killing it after the grace period.
func (s *Supervisor) Stop(ctx context.Context) error {
	s.lock.Lock()
	switch {
	case s.state == StateNotStarted:
		s.setState(ctx, StateStopped)
		s.lock.Unlock()
		return nil
	case s.state == StateStopped:
		s.lock.Unlock()
		return nil
	case s.stopping:
		s.lock.Unlock()
		<-s.exited
		return nil
	case s.proc == nil:
		// launch failed
		s.setState(ctx, StateStopped)
		s.lock.Unlock()
		return nil
	}
	s.stopping = true
	wasRunning := s.state == StateRunning
	conn, proc := s.conn, s.proc
	s.lock.Unlock()

	if wasRunning {
		shutdownCtx, cancel := context.WithTimeout(ctx, s.GracePeriod)
		if _, err := conn.Call(shutdownCtx, protocol.MethodShutdown, nil, nil); err != nil {
			log.WithError(ctx, err).Warn("Language server shutdown request failed")
		}
		cancel()
		if err := conn.Notify(ctx, protocol.MethodExit, nil); err != nil {
			log.WithError(ctx, err).Debug("exit notification")
		}
	} else if err := conn.Close(); err != nil {
		log.WithError(ctx, err).Debug("closing language server connection")
	}

	grace := time.NewTimer(s.GracePeriod)
	defer grace.Stop()
	select {
	case <-s.exited:
	case <-grace.C:
		log.Warn(ctx, "Language server did not exit, killing")
		if err := proc.Kill(); err != nil {
			log.WithError(ctx, err).Error("killing language server")
		}
		<-s.exited
	case <-ctx.Done():
		if err := proc.Kill(); err != nil {
			log.WithError(ctx, err).Error("killing language server")
		}
		<-s.exited
	}

	s.lock.Lock()
	s.setState(ctx, StateStopped)
	s.lock.Unlock()
	log.Info(ctx, "Language server stopped")
	return nil
}

// defaultHandler answers the server when no editor is attached.
func (s *Supervisor) defaultHandler(ctx context.Context, reply jsonrpc2.Replier, req jsonrpc2.Request) error {
	switch req.Method() {
	case protocol.MethodWindowLogMessage, protocol.MethodWindowShowMessage:
		msg := gjson.GetBytes(req.Params(), "message").String()
		log.WithField(ctx, "method", req.Method()).Info(msg)
		return nil

	case protocol.MethodWorkspaceConfiguration:
		return reply(ctx, s.configurationItems(req.Params()), nil)

	case protocol.MethodClientRegisterCapability, protocol.MethodClientUnregisterCapability, methodWorkDoneProgressCreate:
		return reply(ctx, nil, nil)
	}

	if _, ok := req.(*jsonrpc2.Call); ok {
		return jsonrpc2.MethodNotFoundHandler(ctx, reply, req)
	}
	log.WithField(ctx, "method", req.Method()).Debug("Ignoring notification from language server")
	return nil
}

const methodWorkDoneProgressCreate = "window/workDoneProgress/create"

// configurationItems answers workspace/configuration from the settings, one
// entry per requested section.
func (s *Supervisor) configurationItems(params json.RawMessage) []interface{} {
	forwarded := s.Settings().Forwarded()
	items := gjson.GetBytes(params, "items").Array()
	out := make([]interface{}, len(items))
	for idx, item := range items {
		section := item.Get("section").String()
		if section == "" {
			out[idx] = forwarded
			continue
		}
		out[idx] = forwarded[section]
	}
	return out
}
