package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"PlaySync/config"
	"PlaySync/core/auth"
	"PlaySync/core/media"
	"PlaySync/core/playlist"
	"PlaySync/logger"
	"PlaySync/storage"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Server HTTP 服务: management API, media files and the event channel.
type Server struct {
	gate      *auth.Gate
	library   *media.Library
	engine    *playlist.Engine
	store     storage.Store
	subs      *playlist.Subscribers
	commands  playlist.MessageHandler
	maxUpload int64
	upgrader  websocket.Upgrader

	// ctx bounds websocket read loops; cancelled on shutdown
	ctx context.Context
}

// Options collects what the server needs from the rest of the process.
type Options struct {
	Gate        *auth.Gate
	Library     *media.Library
	Engine      *playlist.Engine
	Store       storage.Store
	Subscribers *playlist.Subscribers
	Commands    playlist.MessageHandler
	MaxUploadMB int64
}

// New 创建服务器
func New(ctx context.Context, opts Options) *Server {
	maxUpload := opts.MaxUploadMB
	if maxUpload <= 0 {
		maxUpload = 512
	}
	return &Server{
		gate:      opts.Gate,
		library:   opts.Library,
		engine:    opts.Engine,
		store:     opts.Store,
		subs:      opts.Subscribers,
		commands:  opts.Commands,
		maxUpload: maxUpload << 20,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		ctx: ctx,
	}
}

// Router builds the route table. Fixed paths come before the catch-all
// playlist routes.
func (s *Server) Router() *mux.Router {
	router := mux.NewRouter()
	router.Use(corsMiddleware, accessLogMiddleware)

	router.HandleFunc("/health", s.HealthHandler).Methods(http.MethodGet)
	router.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)
	router.HandleFunc("/ws", s.WebSocketHandler)
	router.PathPrefix(storage.PublicPrefix).Handler(http.StripPrefix(storage.PublicPrefix, NewMediaFileHandler(s.store))).
		Methods(http.MethodGet, http.MethodHead)

	router.HandleFunc("/add-user", s.RequireSystem(s.AddUserHandler)).Methods(http.MethodPost)
	router.HandleFunc("/remove-user", s.RequireSystem(s.RemoveUserHandler)).Methods(http.MethodPost)
	router.HandleFunc("/upload", s.RequireAdmin(s.UploadHandler)).Methods(http.MethodPost)
	router.HandleFunc("/{id}", s.RequireAdmin(s.DeleteMediaHandler)).Methods(http.MethodDelete)
	router.HandleFunc("/{playListId}", s.ListPlaylistHandler).Methods(http.MethodGet)

	// preflight for every route
	router.Methods(http.MethodOptions).HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	return router
}

// Listen serves handler on the HTTP port, and on the TLS port when enabled,
// until ctx is done. Shutdown waits up to 5 seconds for open requests.
func Listen(ctx context.Context, cfg *config.Config, handler http.Handler) error {
	servers := []*http.Server{{
		Addr:              fmt.Sprintf(":%d", cfg.ServerPort),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}}
	if cfg.UseHTTPS {
		servers = append(servers, &http.Server{
			Addr:              fmt.Sprintf(":%d", cfg.HTTPSPort),
			Handler:           handler,
			ReadHeaderTimeout: 10 * time.Second,
			IdleTimeout:       120 * time.Second,
		})
	}

	errCh := make(chan error, len(servers))
	for i, srv := range servers {
		tls := i == 1
		go func(srv *http.Server) {
			var err error
			if tls {
				logger.Info("HTTPS server starting", logger.String("addr", srv.Addr))
				err = srv.ListenAndServeTLS(cfg.HTTPSCertFile, cfg.HTTPSKeyFile)
			} else {
				logger.Info("HTTP server starting", logger.String("addr", srv.Addr))
				err = srv.ListenAndServe()
			}
			if err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- fmt.Errorf("listen %s: %w", srv.Addr, err)
				return
			}
			errCh <- nil
		}(srv)
	}

	var runErr error
	select {
	case <-ctx.Done():
	case runErr = <-errCh:
	}

	logger.Info("Shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	for _, srv := range servers {
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("server forced to shutdown", logger.String("addr", srv.Addr), logger.ErrorField(err))
		}
	}
	logger.Info("Server stopped")
	return runErr
}
