package lsclient

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"sync"
	"sync/atomic"

	"github.com/pentops/camelkit/internal/config"
	"github.com/pentops/log.go/log"
	"github.com/tidwall/gjson"
	"go.lsp.dev/jsonrpc2"
	"go.lsp.dev/protocol"
	"golang.org/x/sync/errgroup"
)

const methodCancelRequest = "$/cancelRequest"

// Bridge relays one editor connection to a supervised server.
type Bridge struct {
	Supervisor *Supervisor
	Selector   Selector

	// SettingsPath, when set, is watched and changes are pushed to the
	// server.
	SettingsPath string

	shuttingDown atomic.Bool

	openLock sync.Mutex
	open     map[string]bool
}

func NewBridge(supervisor *Supervisor, settingsPath string) *Bridge {
	return &Bridge{
		Supervisor:   supervisor,
		Selector:     DefaultSelector,
		SettingsPath: settingsPath,
		open:         map[string]bool{},
	}
}

// Run starts the server and relays messages until the editor disconnects or
// the server exits. The server is stopped on return.
func (b *Bridge) Run(ctx context.Context, editor io.ReadWriteCloser) error {
	editorConn := jsonrpc2.NewConn(jsonrpc2.NewStream(editor))
	b.Supervisor.SetHandler(forwardTo(editorConn))

	if err := b.Supervisor.Start(ctx); err != nil {
		editorConn.Close()
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	editorConn.Go(ctx, b.editorHandler(editorConn))

	eg, ctx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		defer cancel()
		select {
		case <-editorConn.Done():
			log.Info(ctx, "Editor disconnected")
		case <-ctx.Done():
		}
		return nil
	})

	eg.Go(func() error {
		defer cancel()
		select {
		case <-b.Supervisor.Exited():
			if b.shuttingDown.Load() {
				// the editor follows shutdown with exit
				<-ctx.Done()
				return nil
			}
			log.Warn(ctx, "Language server exited, closing editor connection")
			if err := editorConn.Close(); err != nil {
				log.WithError(ctx, err).Debug("closing editor connection")
			}
		case <-ctx.Done():
		}
		return nil
	})

	if b.SettingsPath != "" {
		eg.Go(func() error {
			return config.Watch(ctx, b.SettingsPath, func(ctx context.Context, settings *config.Settings) {
				if err := b.Supervisor.DidChangeConfiguration(ctx, settings); err != nil {
					log.WithError(ctx, err).Warn("Settings not sent to the language server")
				}
			})
		})
	}

	err := eg.Wait()

	if stopErr := b.Supervisor.Stop(context.WithoutCancel(ctx)); stopErr != nil && err == nil {
		err = stopErr
	}
	if closeErr := editorConn.Close(); closeErr != nil {
		log.WithError(ctx, closeErr).Debug("closing editor connection")
	}
	return err
}

func (b *Bridge) editorHandler(editorConn jsonrpc2.Conn) jsonrpc2.Handler {
	return func(ctx context.Context, reply jsonrpc2.Replier, req jsonrpc2.Request) error {
		method := req.Method()
		ctx = log.WithField(ctx, "method", method)

		switch method {
		case protocol.MethodInitialize:
			go func() {
				result, err := b.Supervisor.Initialize(ctx, req.Params())
				if err := reply(ctx, result, err); err != nil {
					log.WithError(ctx, err).Error("replying to initialize")
				}
			}()
			return nil

		case protocol.MethodInitialized:
			if err := b.Supervisor.Notify(ctx, method, req.Params()); err != nil {
				log.WithError(ctx, err).Warn("forwarding initialized")
				return nil
			}
			if err := b.Supervisor.DidChangeConfiguration(ctx, b.Supervisor.Settings()); err != nil {
				log.WithError(ctx, err).Warn("sending settings")
			}
			return nil

		case protocol.MethodShutdown:
			b.shuttingDown.Store(true)
			go func() {
				err := b.Supervisor.Stop(ctx)
				if err := reply(ctx, nil, err); err != nil {
					log.WithError(ctx, err).Debug("replying to shutdown")
				}
			}()
			return nil

		case protocol.MethodExit:
			go func() {
				// let the read loop return before closing
				if err := editorConn.Close(); err != nil {
					log.WithError(ctx, err).Debug("closing editor connection")
				}
			}()
			return nil

		case methodCancelRequest:
			// request ids differ on the two connections
			return nil
		}

		if !b.selected(method, req.Params()) {
			log.Debug(ctx, "document not selected")
			return reply(ctx, nil, nil)
		}

		if _, ok := req.(*jsonrpc2.Call); ok {
			go func() {
				var result json.RawMessage
				err := b.Supervisor.Call(ctx, method, req.Params(), &result)
				if err := reply(ctx, result, err); err != nil {
					log.WithError(ctx, err).Debug("replying to editor")
				}
			}()
			return nil
		}

		if err := b.Supervisor.Notify(ctx, method, req.Params()); err != nil {
			if errors.Is(err, ErrNotRunning) {
				log.Debug(ctx, "dropping notification, server not running")
				return nil
			}
			log.WithError(ctx, err).Warn("forwarding notification")
		}
		return nil
	}
}

// selected tracks document synchronization, only documents opened through
// the selector are synchronized.
func (b *Bridge) selected(method string, params json.RawMessage) bool {
	docURI := gjson.GetBytes(params, "textDocument.uri").String()

	b.openLock.Lock()
	defer b.openLock.Unlock()

	switch method {
	case protocol.MethodTextDocumentDidOpen:
		languageID := gjson.GetBytes(params, "textDocument.languageId").String()
		if !b.Selector.Matches(languageID, docURI) {
			return false
		}
		b.open[docURI] = true
		return true

	case protocol.MethodTextDocumentDidChange, protocol.MethodTextDocumentDidSave, protocol.MethodTextDocumentWillSave:
		return b.open[docURI]

	case protocol.MethodTextDocumentDidClose:
		if !b.open[docURI] {
			return false
		}
		delete(b.open, docURI)
		return true
	}
	return true
}

// forwardTo relays messages from the server to the editor.
func forwardTo(editorConn jsonrpc2.Conn) jsonrpc2.Handler {
	return func(ctx context.Context, reply jsonrpc2.Replier, req jsonrpc2.Request) error {
		if _, ok := req.(*jsonrpc2.Call); ok {
			go func() {
				var result json.RawMessage
				_, err := editorConn.Call(ctx, req.Method(), req.Params(), &result)
				if err := reply(ctx, result, err); err != nil {
					log.WithError(ctx, err).Debug("replying to language server")
				}
			}()
			return nil
		}
		if err := editorConn.Notify(ctx, req.Method(), req.Params()); err != nil {
			log.WithError(ctx, err).Debug("forwarding to editor")
		}
		return nil
	}
}
