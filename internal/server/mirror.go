package server

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/binder/internal/shared"
)

// MirrorOpts configures a [Mirror].
type MirrorOpts struct {
	Docs   Documents
	Token  string
	Logger *log.Logger
}

// Mirror wires the hub and the document endpoint behind logging and bearer auth.
type Mirror struct {
	hub    *Hub
	router *BasicRouter
	logger *log.Logger
}

// NewMirror creates a Mirror serving /ws and GET /collections/{id}/data.
func NewMirror(opts MirrorOpts) *Mirror {
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}

	hub := NewHub(opts.Docs, opts.Logger)
	router := NewBasicRouter()
	router.Use(RequestLogger(opts.Logger), BearerAuth(opts.Token))
	router.Handler(hub)
	router.Handle(http.MethodGet, "/collections/{id}/data", NewDocumentHandler(opts.Docs))

	return &Mirror{hub: hub, router: router, logger: opts.Logger}
}

// Hub returns the mirror's websocket hub.
func (m *Mirror) Hub() *Hub { return m.hub }

// ServeHTTP implements [http.Handler].
func (m *Mirror) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	m.router.ServeHTTP(w, r)
}

// Serve listens on addr until ctx ends, then shuts down gracefully.
func (m *Mirror) Serve(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	return m.ServeListener(ctx, ln)
}

// ServeListener serves on ln until ctx ends.
func (m *Mirror) ServeListener(ctx context.Context, ln net.Listener) error {
	httpServer := &http.Server{
		Handler:           m,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErrors := make(chan error, 1)
	go func() {
		m.logger.Info("mirror listening", "addr", ln.Addr().String())
		if err := httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErrors <- err
		}
		close(serverErrors)
	}()

	select {
	case err := <-serverErrors:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		m.logger.Warn("error shutting down server", "error", err)
	}
	m.logger.Info("mirror stopped", "peers", m.hub.Peers())
	m.hub.CloseAll()
	return nil
}
