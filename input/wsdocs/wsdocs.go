// Package wsdocs provides a WebSocket server source for receiving
// documents from remote producers. Each text frame carries one wire-format
// document. Frames from all connections are serialized into the node graph
// through a single mutex, preserving the engine's single-threaded
// propagation model.
package wsdocs

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/c360/docstreams/document"
	"github.com/c360/docstreams/errors"
	"github.com/c360/docstreams/node"
)

// Config holds configuration for a Source.
type Config struct {
	// Addr is the listen address, such as ":8080".
	Addr string `json:"addr"`

	// Path is the HTTP path accepting WebSocket upgrades. Defaults to
	// "/documents".
	Path string `json:"path,omitempty"`

	// ReadLimit bounds the size of a single frame in bytes. Zero means
	// 1 MiB.
	ReadLimit int64 `json:"read_limit,omitempty"`
}

// Source is a WebSocket server that feeds received documents into the node
// graph.
type Source struct {
	node.Emitter

	cfg      Config
	upgrader websocket.Upgrader
	server   *http.Server

	emitMu sync.Mutex // serializes propagation across connections

	mu      sync.Mutex
	clients map[*websocket.Conn]struct{}
	started bool

	logger *slog.Logger
}

var _ node.Producer = (*Source)(nil)

// Option configures a Source.
type Option func(*Source)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Source) { s.logger = logger }
}

// New creates an unstarted Source.
func New(name string, cfg Config, opts ...Option) (*Source, error) {
	if cfg.Addr == "" {
		return nil, errors.WrapInvalid(
			fmt.Errorf("%w: empty listen address", errors.ErrMissingConfig),
			"Source", "New", "config validation")
	}
	if cfg.Path == "" {
		cfg.Path = "/documents"
	}
	if cfg.ReadLimit == 0 {
		cfg.ReadLimit = 1 << 20
	}

	s := &Source{
		Emitter: node.NewEmitter(name),
		cfg:     cfg,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
		},
		clients: make(map[*websocket.Conn]struct{}),
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Start begins listening. It returns once the server is running; serve
// errors after startup are logged.
func (s *Source) Start() error {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return errors.WrapInvalid(errors.ErrAlreadyStarted, "Source", "Start", "lifecycle check")
	}
	s.started = true

	mux := http.NewServeMux()
	mux.HandleFunc(s.cfg.Path, s.handleUpgrade)
	s.server = &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.mu.Unlock()

	go func() {
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Error("WebSocket server failed", "component", s.Name(), "error", err)
		}
	}()

	s.logger.Info("WebSocket document source started",
		"component", s.Name(), "addr", s.cfg.Addr, "path", s.cfg.Path)
	return nil
}

// Stop shuts the server down and closes every client connection.
func (s *Source) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return nil
	}
	s.started = false
	server := s.server
	for conn := range s.clients {
		_ = conn.Close()
	}
	s.clients = make(map[*websocket.Conn]struct{})
	s.mu.Unlock()

	if err := server.Shutdown(ctx); err != nil {
		return errors.WrapTransient(err, "Source", "Stop", "server shutdown")
	}
	return nil
}

func (s *Source) handleUpgrade(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("WebSocket upgrade failed",
			"component", s.Name(), "remote", r.RemoteAddr, "error", err)
		return
	}
	conn.SetReadLimit(s.cfg.ReadLimit)

	s.mu.Lock()
	s.clients[conn] = struct{}{}
	s.mu.Unlock()
	s.logger.Info("WebSocket client connected",
		"component", s.Name(), "remote", conn.RemoteAddr().String())

	go s.readLoop(conn)
}

func (s *Source) readLoop(conn *websocket.Conn) {
	defer func() {
		s.mu.Lock()
		delete(s.clients, conn)
		s.mu.Unlock()
		_ = conn.Close()
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.logger.Warn("WebSocket read failed",
					"component", s.Name(), "remote", conn.RemoteAddr().String(), "error", err)
			}
			return
		}

		var doc document.Document
		if err := json.Unmarshal(data, &doc); err != nil {
			s.logger.Error("document decode failed",
				"component", s.Name(), "remote", conn.RemoteAddr().String(), "error", err)
			continue
		}

		s.emitMu.Lock()
		err = s.Emit(doc)
		s.emitMu.Unlock()
		if err != nil {
			s.logger.Error("document propagation failed",
				"component", s.Name(), "kind", doc.Kind(), "uid", doc.UID(),
				"fatal", errors.IsFatal(err), "error", err)
		}
	}
}
