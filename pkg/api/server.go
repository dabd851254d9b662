package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/muster-live/muster/pkg/api/handlers"
	"github.com/muster-live/muster/pkg/codes"
	"github.com/muster-live/muster/pkg/log"
	"github.com/muster-live/muster/pkg/rooms"
)

type APIServer struct {
	server *http.Server
	tls    *TLSConfig
}

type TLSConfig struct {
	CertFile string
	KeyFile  string
}

type NewAPIServerOptions struct {
	Port        int
	TLS         *TLSConfig
	Registry    *rooms.Registry
	CodeLength  int
	WSReadLimit int64
}

// NewAPIServer creates the front-door http.Server. It is pure routing:
// it maps a room code to its coordinator and translates requests into
// coordinator operations. The code pattern in the route rejects
// unroutable codes with a 404 before any coordinator is touched.
func NewAPIServer(opts NewAPIServerOptions) *APIServer {
	router := mux.NewRouter()
	router.HandleFunc("/rooms", handlers.HandleCreateRoom(opts.Registry, opts.CodeLength)).Methods(http.MethodPost)

	room := router.PathPrefix(fmt.Sprintf("/rooms/{code:%s}", codes.RoutePattern)).Subrouter()
	room.HandleFunc("/state", handlers.HandleGetState(opts.Registry)).Methods(http.MethodGet)
	room.HandleFunc("/join", handlers.HandleJoin(opts.Registry)).Methods(http.MethodPost)
	room.HandleFunc("/leave", handlers.HandleLeave(opts.Registry)).Methods(http.MethodPost)
	room.HandleFunc("/loc", handlers.HandleLocation(opts.Registry)).Methods(http.MethodPost)
	room.HandleFunc("/ability", handlers.HandleAbility(opts.Registry)).Methods(http.MethodPost)
	room.HandleFunc("/status", handlers.HandleStatus(opts.Registry)).Methods(http.MethodPost)
	room.HandleFunc("/settings", handlers.HandleGetSettings(opts.Registry)).Methods(http.MethodGet)
	room.HandleFunc("/settings", handlers.HandleSetSettings(opts.Registry)).Methods(http.MethodPost)
	room.HandleFunc("/ws", handlers.HandleWebSocket(opts.Registry, opts.WSReadLimit)).Methods(http.MethodGet)

	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", opts.Port),
		Handler: router,
	}
	return &APIServer{
		server: server,
		tls:    opts.TLS,
	}
}

// Router returns the route table, mainly for tests.
func (s *APIServer) Router() http.Handler {
	return s.server.Handler
}

// Start starts the APIServer
func (s *APIServer) Start() {
	var listenAndServe func() error
	if s.tls != nil {
		log.Info("API server listening on %s with TLS", s.server.Addr)
		listenAndServe = func() error {
			return s.server.ListenAndServeTLS(s.tls.CertFile, s.tls.KeyFile)
		}
	} else {
		log.Info("API server listening on %s", s.server.Addr)
		listenAndServe = s.server.ListenAndServe
	}
	if err := listenAndServe(); err != nil {
		if errors.Is(err, http.ErrServerClosed) {
			log.Info("API server closed")
			return
		}
		log.Error("API server error: %v", err)
	}
}

// Stop stops the APIServer
func (s *APIServer) Stop(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}
