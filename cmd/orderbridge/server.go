package main

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"orderbridge/internal/constants"
	"orderbridge/internal/database"
	apperrors "orderbridge/internal/errors"
	"orderbridge/internal/features"
	"orderbridge/internal/httputil"
	mediarouter "orderbridge/internal/media"
	"orderbridge/internal/metrics"
	"orderbridge/internal/middleware"
	"orderbridge/internal/models"
	"orderbridge/internal/realtime"
	"orderbridge/internal/service"
	"orderbridge/internal/tracing"
	"orderbridge/pkg/media"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
)

// Dependencies are the components the HTTP handlers call into
type Dependencies struct {
	Database   *database.Database
	Store      *media.Store
	Fetcher    *media.Fetcher
	Hosts      *media.HostAllowList
	Uploads    mediarouter.Router
	Permanence *service.PermanenceService
	Forwarding *service.ForwardingService
	Messages   *service.MessageService
	Orders     *service.OrderService
	Hub        *realtime.Hub
	Registry   *metrics.Registry
	ClientIP   *httputil.ClientIPResolver
	Features   *features.FlagManager
}

type Server struct {
	router    *mux.Router
	logger    *logrus.Logger
	errLogger *apperrors.Logger
	cfg       models.Config
	deps      Dependencies
	verbose   bool
	server    *http.Server
}

func NewServer(cfg models.Config, deps Dependencies, logger *logrus.Logger, verbose bool) *Server {
	if deps.Registry == nil {
		deps.Registry = metrics.GetRegistry()
	}
	if deps.Features == nil {
		deps.Features = features.NewFlagManager()
	}
	if deps.Uploads == nil {
		deps.Uploads = mediarouter.NewRouter(cfg.Media)
	}

	s := &Server{
		router:    mux.NewRouter(),
		logger:    logger,
		errLogger: apperrors.WrapLogger(logger),
		cfg:       cfg,
		deps:      deps,
		verbose:   verbose,
	}

	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.router.Use(middleware.Observability(s.deps.Registry, s.deps.ClientIP, s.logger))
	if s.verbose {
		s.router.Use(verboseContext)
		s.router.Use(middleware.DetailedLogging(s.logger, middleware.DefaultDetailedLoggingConfig()))
	}

	s.router.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.writeError(w, r, apperrors.New(apperrors.ErrCodeNotFound, "route not found").WithUserMessage("Resource not found"))
	})
	s.router.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		err := apperrors.New(apperrors.ErrCodeValidationFailed, "method not allowed").WithUserMessage("Method not allowed")
		writeJSON(w, http.StatusMethodNotAllowed, apperrors.ToHTTPResponse(err, tracing.GetRequestID(r.Context())))
	})

	// Health and metrics
	s.router.HandleFunc("/health", s.handleHealth()).Methods(http.MethodGet)
	s.router.HandleFunc("/metrics", s.handleMetrics()).Methods(http.MethodGet)
	s.router.HandleFunc("/features", s.handleFeatures()).Methods(http.MethodGet)

	// Media pipeline
	s.router.HandleFunc("/api/proxy-fb-media", s.handleProxyMedia()).Methods(http.MethodGet)
	s.router.HandleFunc("/api/media/upload", s.requireFeature(features.FlagDirectUpload, s.handleUpload())).Methods(http.MethodPost)
	s.router.HandleFunc("/api/media/permanent", s.handlePermanentMedia()).Methods(http.MethodPost)
	s.router.HandleFunc(constants.MediaRoutePrefix+"{filename}", s.handleServeMedia()).Methods(http.MethodGet, http.MethodHead)

	api := s.router.PathPrefix("/api").Subrouter()
	api.NotFoundHandler = s.router.NotFoundHandler

	// Orders and their conversations
	api.HandleFunc("/orders", s.handleCreateOrder()).Methods(http.MethodPost)
	api.HandleFunc("/orders", s.handleListOrders()).Methods(http.MethodGet)
	api.HandleFunc("/orders/{id}", s.handleGetOrder()).Methods(http.MethodGet)
	api.HandleFunc("/orders/{id}", s.handleUpdateOrderStatus()).Methods(http.MethodPatch)
	api.HandleFunc("/orders/{id}", s.handleDeleteOrder()).Methods(http.MethodDelete)
	api.HandleFunc("/orders/{id}/messages", s.handleListMessages()).Methods(http.MethodGet)
	api.HandleFunc("/orders/{id}/messages", s.handleCreateMessage()).Methods(http.MethodPost)
	api.HandleFunc("/orders/{id}/messages/ws", s.requireFeature(features.FlagRealtimeFeed, s.handleMessageFeed())).Methods(http.MethodGet)

	// Messages
	api.HandleFunc("/messages/{id}", s.handleGetMessage()).Methods(http.MethodGet)
	api.HandleFunc("/messages/{id}/forward", s.handleForwardMessage()).Methods(http.MethodPost)

	// People
	api.HandleFunc("/clients", s.handleCreateClient()).Methods(http.MethodPost)
	api.HandleFunc("/clients", s.handleListClients()).Methods(http.MethodGet)
	api.HandleFunc("/clients/{id}", s.handleGetClient()).Methods(http.MethodGet)
	api.HandleFunc("/clients/{id}", s.handleDeleteClient()).Methods(http.MethodDelete)
	api.HandleFunc("/workers", s.handleCreateWorker()).Methods(http.MethodPost)
	api.HandleFunc("/workers", s.handleListWorkers()).Methods(http.MethodGet)
	api.HandleFunc("/workers/{id}", s.handleGetWorker()).Methods(http.MethodGet)
	api.HandleFunc("/workers/{id}", s.handleDeleteWorker()).Methods(http.MethodDelete)
	api.HandleFunc("/employees", s.handleCreateEmployee()).Methods(http.MethodPost)
	api.HandleFunc("/employees", s.handleListEmployees()).Methods(http.MethodGet)
	api.HandleFunc("/employees/{id}", s.handleGetEmployee()).Methods(http.MethodGet)
	api.HandleFunc("/employees/{id}", s.handleDeleteEmployee()).Methods(http.MethodDelete)
}

// requireFeature answers 404 while the named feature is switched off
func (s *Server) requireFeature(flag string, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !s.deps.Features.IsEnabled(flag) {
			s.writeError(w, r, apperrors.New(apperrors.ErrCodeNotFound, "feature disabled").
				WithContext("feature", flag).
				WithUserMessage("Resource not found"))
			return
		}
		next(w, r)
	}
}

// handleFeatures lists the feature flags with their current values
func (s *Server) handleFeatures() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, s.deps.Features.ListFlags())
	}
}

// verboseContext marks request contexts so services log unmasked details
func verboseContext(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		next.ServeHTTP(w, r.WithContext(service.WithVerboseLogging(r.Context(), true)))
	})
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) Start() error {
	port := s.cfg.Server.Port
	if port == "" {
		port = fmt.Sprintf("%d", constants.DefaultServerPort)
	}

	s.server = s.newHTTPServer(fmt.Sprintf(":%s", port))

	s.logger.Infof("Starting server on port %s", port)
	return s.server.ListenAndServe()
}

// newHTTPServer bounds header reads only. Bodies are capped by size, so a
// slow uplink can still finish a maximum-size upload.
func (s *Server) newHTTPServer(addr string) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: time.Duration(s.cfg.Server.ReadTimeoutSec) * time.Second,
		WriteTimeout:      time.Duration(s.cfg.Server.WriteTimeoutSec) * time.Second,
		IdleTimeout:       time.Duration(s.cfg.Server.IdleTimeoutSec) * time.Second,
	}
}

func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

func (s *Server) handleHealth() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		if err := s.deps.Database.Ping(ctx); err != nil {
			s.writeError(w, r, apperrors.NewDatabaseError("ping", err))
			return
		}

		writeJSON(w, http.StatusOK, map[string]interface{}{
			"status":   "ok",
			"database": "ok",
			"version":  Version,
		})
	}
}
