package lsclient

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"os"
	"os/exec"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/pentops/camelkit/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/tidwall/gjson"
	"go.lsp.dev/jsonrpc2"
	"go.lsp.dev/protocol"
)

// fakeServer speaks just enough of the protocol to stand in for the Camel
// language server.
type fakeServer struct {
	failInit bool

	lock     sync.Mutex
	received []fakeMessage

	conn   jsonrpc2.Conn
	exited chan struct{}
	once   sync.Once
}

type fakeMessage struct {
	method string
	params json.RawMessage
}

func newFakeServer() *fakeServer {
	return &fakeServer{
		exited: make(chan struct{}),
	}
}

func (fs *fakeServer) launcher() Launcher {
	return func(ctx context.Context) (*Process, error) {
		client, server := net.Pipe()
		fs.conn = jsonrpc2.NewConn(jsonrpc2.NewStream(server))
		fs.conn.Go(context.Background(), fs.handle)
		return &Process{
			Conn: client,
			Wait: func() error {
				<-fs.exited
				return nil
			},
			Kill: func() error {
				fs.exit()
				return nil
			},
		}, nil
	}
}

func (fs *fakeServer) exit() {
	fs.once.Do(func() {
		close(fs.exited)
		fs.conn.Close()
	})
}

func (fs *fakeServer) record(method string, params json.RawMessage) {
	fs.lock.Lock()
	defer fs.lock.Unlock()
	fs.received = append(fs.received, fakeMessage{method: method, params: params})
}

func (fs *fakeServer) messages(method string) []json.RawMessage {
	fs.lock.Lock()
	defer fs.lock.Unlock()
	out := []json.RawMessage{}
	for _, msg := range fs.received {
		if msg.method == method {
			out = append(out, msg.params)
		}
	}
	return out
}

func (fs *fakeServer) handle(ctx context.Context, reply jsonrpc2.Replier, req jsonrpc2.Request) error {
	fs.record(req.Method(), req.Params())

	switch req.Method() {
	case protocol.MethodInitialize:
		if fs.failInit {
			return reply(ctx, nil, errors.New("catalog not found"))
		}
		return reply(ctx, map[string]interface{}{
			"capabilities": map[string]interface{}{},
			"serverInfo": map[string]interface{}{
				"name":    "fake-camel-ls",
				"version": "1.0",
			},
		}, nil)

	case protocol.MethodInitialized:
		go func() {
			if err := fs.conn.Notify(ctx, protocol.MethodWindowLogMessage, map[string]interface{}{
				"type":    3,
				"message": "catalog loaded",
			}); err != nil {
				return
			}
		}()
		return nil

	case protocol.MethodShutdown:
		return reply(ctx, nil, nil)

	case protocol.MethodExit:
		go fs.exit()
		return nil

	case protocol.MethodTextDocumentHover:
		return reply(ctx, map[string]interface{}{
			"contents": "camel",
		}, nil)
	}

	if _, ok := req.(*jsonrpc2.Call); ok {
		return jsonrpc2.MethodNotFoundHandler(ctx, reply, req)
	}
	return nil
}

func testSettings() *config.Settings {
	settings := config.Default()
	settings.Camel.CatalogVersion = "4.8.0"
	return settings
}

func newTestSupervisor(fs *fakeServer) *Supervisor {
	sup := New(fs.launcher(), "/ws", testSettings())
	sup.GracePeriod = 500 * time.Millisecond
	return sup
}

func eventually(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	assert.Eventually(t, cond, 5*time.Second, 10*time.Millisecond, msg)
}

func TestSupervisorLifecycle(t *testing.T) {
	ctx := context.Background()
	fs := newFakeServer()
	sup := newTestSupervisor(fs)

	assert.Equal(t, StateNotStarted, sup.State())
	assert.ErrorIs(t, sup.Notify(ctx, "any", nil), ErrNotRunning)

	if err := sup.Start(ctx); err != nil {
		t.Fatal(err.Error())
	}
	assert.Equal(t, StateStarting, sup.State())
	assert.ErrorIs(t, sup.Start(ctx), ErrAlreadyStarted)

	if err := sup.Handshake(ctx); err != nil {
		t.Fatal(err.Error())
	}
	assert.Equal(t, StateRunning, sup.State())

	initParams := fs.messages(protocol.MethodInitialize)
	if assert.Len(t, initParams, 1) {
		assert.Equal(t, "4.8.0", gjson.GetBytes(initParams[0], "initializationOptions.camel.Camel catalog version").String())
		assert.Equal(t, ClientName, gjson.GetBytes(initParams[0], "clientInfo.name").String())
		assert.Equal(t, "file:///ws", gjson.GetBytes(initParams[0], "rootUri").String())
	}

	eventually(t, func() bool {
		return len(fs.messages(protocol.MethodWorkspaceDidChangeConfiguration)) == 1
	}, "initial settings")

	changed := testSettings()
	changed.Camel.CatalogVersion = "4.9.0"
	if err := sup.DidChangeConfiguration(ctx, changed); err != nil {
		t.Fatal(err.Error())
	}
	eventually(t, func() bool {
		configs := fs.messages(protocol.MethodWorkspaceDidChangeConfiguration)
		return len(configs) == 2 &&
			gjson.GetBytes(configs[1], "settings.camel.Camel catalog version").String() == "4.9.0"
	}, "changed settings")

	if err := sup.Stop(ctx); err != nil {
		t.Fatal(err.Error())
	}
	assert.Equal(t, StateStopped, sup.State())
	assert.Len(t, fs.messages(protocol.MethodShutdown), 1)
	eventually(t, func() bool {
		return len(fs.messages(protocol.MethodExit)) == 1
	}, "exit notification")

	select {
	case <-sup.Exited():
	default:
		t.Fatal("process still running after Stop")
	}

	assert.ErrorIs(t, sup.Notify(ctx, "any", nil), ErrNotRunning)
	assert.NoError(t, sup.Stop(ctx))
}

func TestSupervisorInitializeFailure(t *testing.T) {
	ctx := context.Background()
	fs := newFakeServer()
	fs.failInit = true
	sup := newTestSupervisor(fs)

	if err := sup.Start(ctx); err != nil {
		t.Fatal(err.Error())
	}
	_, err := sup.Initialize(ctx, nil)
	assert.Error(t, err)
	assert.Equal(t, StateFailed, sup.State())

	// no automatic restart
	assert.ErrorIs(t, sup.Start(ctx), ErrAlreadyStarted)

	assert.NoError(t, sup.Stop(ctx))
	assert.Equal(t, StateStopped, sup.State())
}

func TestSupervisorUnexpectedExit(t *testing.T) {
	ctx := context.Background()
	fs := newFakeServer()
	sup := newTestSupervisor(fs)

	if err := sup.Start(ctx); err != nil {
		t.Fatal(err.Error())
	}
	if err := sup.Handshake(ctx); err != nil {
		t.Fatal(err.Error())
	}

	fs.exit()
	eventually(t, func() bool {
		return sup.State() == StateFailed
	}, "failed after exit")

	assert.NoError(t, sup.Stop(ctx))
	assert.Equal(t, StateStopped, sup.State())
}

func TestSupervisorLaunchError(t *testing.T) {
	sup := New(func(context.Context) (*Process, error) {
		return nil, os.ErrNotExist
	}, "/ws", testSettings())

	err := sup.Start(context.Background())
	assert.ErrorIs(t, err, os.ErrNotExist)
	assert.Equal(t, StateFailed, sup.State())

	assert.NoError(t, sup.Stop(context.Background()))
	assert.Equal(t, StateStopped, sup.State())
}

func TestInitializeParams(t *testing.T) {
	sup := New(nil, "/ws", testSettings())
	settings := testSettings()

	for _, tc := range []struct {
		name        string
		in          string
		wantVersion string
	}{{
		name:        "injected",
		in:          `{"processId": 12, "rootUri": "file:///project"}`,
		wantVersion: "4.8.0",
	}, {
		name:        "null options",
		in:          `{"processId": 12, "initializationOptions": null}`,
		wantVersion: "4.8.0",
	}, {
		name:        "editor options kept",
		in:          `{"processId": 12, "initializationOptions": {"camel": {"Camel catalog version": "3.20.0"}}}`,
		wantVersion: "3.20.0",
	}} {
		t.Run(tc.name, func(t *testing.T) {
			out, err := sup.initializeParams(json.RawMessage(tc.in), settings)
			if err != nil {
				t.Fatal(err.Error())
			}
			assert.Equal(t, int64(12), gjson.GetBytes(out, "processId").Int())
			assert.Equal(t, tc.wantVersion, gjson.GetBytes(out, "initializationOptions.camel.Camel catalog version").String())
		})
	}

	_, err := sup.initializeParams(json.RawMessage(`[1, 2]`), settings)
	assert.Error(t, err)
}

func TestConfigurationItems(t *testing.T) {
	sup := New(nil, "/ws", testSettings())
	items := sup.configurationItems(json.RawMessage(`{"items": [{"section": "camel"}, {"section": "xml"}]}`))
	if !assert.Len(t, items, 2) {
		return
	}
	camel, ok := items[0].(map[string]interface{})
	if assert.True(t, ok) {
		assert.Equal(t, "4.8.0", camel["Camel catalog version"])
	}
	assert.Nil(t, items[1])
}

func TestSelector(t *testing.T) {
	for _, tc := range []struct {
		languageID string
		path       string
		want       bool
	}{
		{"yaml", "file:///ws/route.camel.yaml", true},
		{"", "file:///ws/route.camel.yaml", true},
		{"plaintext", "file:///ws/my.kamelet.yaml", true},
		{"java", "file:///ws/Route.java", true},
		{"markdown", "file:///ws/README.md", false},
		{"", "", false},
	} {
		assert.Equal(t, tc.want, DefaultSelector.Matches(tc.languageID, tc.path), "%s %s", tc.languageID, tc.path)
	}
}

type fakeEditor struct {
	lock     sync.Mutex
	messages []string
}

func (fe *fakeEditor) handle(ctx context.Context, reply jsonrpc2.Replier, req jsonrpc2.Request) error {
	fe.lock.Lock()
	fe.messages = append(fe.messages, gjson.GetBytes(req.Params(), "message").String())
	fe.lock.Unlock()
	return reply(ctx, nil, nil)
}

func (fe *fakeEditor) received(msg string) bool {
	fe.lock.Lock()
	defer fe.lock.Unlock()
	for _, m := range fe.messages {
		if m == msg {
			return true
		}
	}
	return false
}

func TestBridge(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	dir := t.TempDir()
	settingsPath := filepath.Join(dir, config.FileName)

	fs := newFakeServer()
	sup := newTestSupervisor(fs)
	bridge := NewBridge(sup, settingsPath)

	editorSide, bridgeSide := net.Pipe()
	runDone := make(chan error, 1)
	go func() {
		runDone <- bridge.Run(ctx, bridgeSide)
	}()

	fe := &fakeEditor{}
	editor := jsonrpc2.NewConn(jsonrpc2.NewStream(editorSide))
	editor.Go(ctx, fe.handle)

	var initResult json.RawMessage
	if _, err := editor.Call(ctx, protocol.MethodInitialize, map[string]interface{}{
		"processId":    1,
		"rootUri":      "file:///ws",
		"capabilities": map[string]interface{}{},
	}, &initResult); err != nil {
		t.Fatal(err.Error())
	}
	assert.Equal(t, "fake-camel-ls", gjson.GetBytes(initResult, "serverInfo.name").String())
	assert.Equal(t, StateRunning, sup.State())

	initParams := fs.messages(protocol.MethodInitialize)
	if assert.Len(t, initParams, 1) {
		assert.Equal(t, "4.8.0", gjson.GetBytes(initParams[0], "initializationOptions.camel.Camel catalog version").String())
	}

	if err := editor.Notify(ctx, protocol.MethodInitialized, map[string]interface{}{}); err != nil {
		t.Fatal(err.Error())
	}
	eventually(t, func() bool {
		return len(fs.messages(protocol.MethodWorkspaceDidChangeConfiguration)) == 1
	}, "settings after initialized")
	eventually(t, func() bool {
		return fe.received("catalog loaded")
	}, "server notification forwarded to the editor")

	for _, doc := range []map[string]interface{}{{
		"uri":        "file:///ws/route.camel.yaml",
		"languageId": "yaml",
	}, {
		"uri":        "file:///ws/README.md",
		"languageId": "markdown",
	}} {
		if err := editor.Notify(ctx, protocol.MethodTextDocumentDidOpen, map[string]interface{}{
			"textDocument": doc,
		}); err != nil {
			t.Fatal(err.Error())
		}
	}
	if err := editor.Notify(ctx, protocol.MethodTextDocumentDidChange, map[string]interface{}{
		"textDocument": map[string]interface{}{"uri": "file:///ws/README.md"},
	}); err != nil {
		t.Fatal(err.Error())
	}

	var hover json.RawMessage
	if _, err := editor.Call(ctx, protocol.MethodTextDocumentHover, map[string]interface{}{
		"textDocument": map[string]interface{}{"uri": "file:///ws/route.camel.yaml"},
	}, &hover); err != nil {
		t.Fatal(err.Error())
	}
	assert.Equal(t, "camel", gjson.GetBytes(hover, "contents").String())

	opened := fs.messages(protocol.MethodTextDocumentDidOpen)
	if assert.Len(t, opened, 1) {
		assert.Equal(t, "file:///ws/route.camel.yaml", gjson.GetBytes(opened[0], "textDocument.uri").String())
	}
	assert.Empty(t, fs.messages(protocol.MethodTextDocumentDidChange))

	assert.Eventually(t, func() bool {
		content := "camel:\n  catalogVersion: 4.9.0\n"
		if err := os.WriteFile(settingsPath, []byte(content), 0o644); err != nil {
			return false
		}
		for _, cfg := range fs.messages(protocol.MethodWorkspaceDidChangeConfiguration) {
			if gjson.GetBytes(cfg, "settings.camel.Camel catalog version").String() == "4.9.0" {
				return true
			}
		}
		return false
	}, 5*time.Second, 500*time.Millisecond, "settings file change pushed")

	if _, err := editor.Call(ctx, protocol.MethodShutdown, nil, nil); err != nil {
		t.Fatal(err.Error())
	}
	assert.Equal(t, StateStopped, sup.State())
	assert.Len(t, fs.messages(protocol.MethodShutdown), 1)

	if err := editor.Notify(ctx, protocol.MethodExit, nil); err != nil {
		t.Fatal(err.Error())
	}

	select {
	case err := <-runDone:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("bridge did not return after exit")
	}
}

func TestBridgeServerExit(t *testing.T) {
	ctx := context.Background()

	fs := newFakeServer()
	sup := newTestSupervisor(fs)
	bridge := NewBridge(sup, "")

	editorSide, bridgeSide := net.Pipe()
	runDone := make(chan error, 1)
	go func() {
		runDone <- bridge.Run(ctx, bridgeSide)
	}()

	editor := jsonrpc2.NewConn(jsonrpc2.NewStream(editorSide))
	editor.Go(ctx, jsonrpc2.MethodNotFoundHandler)

	if _, err := editor.Call(ctx, protocol.MethodInitialize, map[string]interface{}{}, nil); err != nil {
		t.Fatal(err.Error())
	}

	fs.exit()

	select {
	case err := <-runDone:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("bridge did not return after server exit")
	}
	assert.Equal(t, StateStopped, sup.State())

	select {
	case <-editor.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("editor connection not closed")
	}
}

func TestWaitAfterDrainsStderr(t *testing.T) {
	r, w := io.Pipe()
	done := logLines(context.Background(), r)

	drained := make(chan bool, 1)
	wait := waitAfter(done, func() error {
		select {
		case <-done:
			drained <- true
		default:
			drained <- false
		}
		return nil
	})

	waitErr := make(chan error, 1)
	go func() {
		waitErr <- wait()
	}()

	if _, err := w.Write([]byte("starting camel language server\n")); err != nil {
		t.Fatal(err.Error())
	}
	select {
	case <-waitErr:
		t.Fatal("wait returned while stderr was still open")
	case <-time.After(50 * time.Millisecond):
	}

	w.Close()
	assert.NoError(t, <-waitErr)
	assert.True(t, <-drained)
}

func TestJavaCommandOutputAfterWait(t *testing.T) {
	shell, err := exec.LookPath("sh")
	if err != nil {
		t.Skip("no shell available")
	}
	jar := filepath.Join(t.TempDir(), "server.jar")
	if err := os.WriteFile(jar, []byte{}, 0o644); err != nil {
		t.Fatal(err.Error())
	}

	// sh -c <script> -jar <jar> runs script with -jar and the jar as $0 and $1.
	launch := JavaCommand{
		Java:   shell,
		VMArgs: []string{"-c", "echo booting >&2; printf 'Content-Length: 2\\r\\n\\r\\n{}'"},
		Jar:    jar,
	}.Launcher()

	proc, err := launch(context.Background())
	if err != nil {
		t.Fatal(err.Error())
	}
	assert.NoError(t, proc.Wait())

	data, err := io.ReadAll(proc.Conn)
	assert.NoError(t, err)
	assert.Equal(t, "Content-Length: 2\r\n\r\n{}", string(data))
	assert.NoError(t, proc.Conn.Close())
}
