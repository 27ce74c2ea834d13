// Package api exposes the segment property calculator over HTTP.
package api

import (
	"context"
	"fmt"
	"net/http"
	"sync"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/chrissnell/electrotonic/internal/log"
	"github.com/chrissnell/electrotonic/internal/store"
	"github.com/chrissnell/electrotonic/pkg/config"
	"github.com/chrissnell/electrotonic/pkg/responseformat"
)

// maxBodyBytes bounds the size of an uploaded skeleton.
const maxBodyBytes = 64 << 20

// Server represents the REST server
type Server struct {
	ctx        context.Context
	wg         *sync.WaitGroup
	cfg        *config.ConfigData
	restConfig config.RESTServerData
	store      store.Store
	formatter  *responseformat.Formatter
	logger     *zap.SugaredLogger
	Server     http.Server
}

// NewServer creates a REST server. st may be nil, in which case the run
// endpoints answer 503 and save requests are refused.
func NewServer(ctx context.Context, wg *sync.WaitGroup, cfg *config.ConfigData, st store.Store, logger *zap.SugaredLogger) (*Server, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}

	s := &Server{
		ctx:        ctx,
		wg:         wg,
		cfg:        cfg,
		restConfig: cfg.REST,
		store:      st,
		formatter:  responseformat.NewFormatter(),
		logger:     logger,
	}

	s.Server.Addr = fmt.Sprintf("%v:%v", s.restConfig.ListenAddr, s.restConfig.Port)
	s.Server.Handler = s.Router()

	return s, nil
}

// Router returns the HTTP handler with every endpoint registered.
func (s *Server) Router() http.Handler {
	router := mux.NewRouter()
	router.Use(log.HTTPMiddleware(s.logger))

	router.HandleFunc("/healthz", s.Health).Methods(http.MethodGet)

	v1 := router.PathPrefix("/v1").Subrouter()
	v1.HandleFunc("/segments", s.ComputeSegments).Methods(http.MethodPost)
	v1.HandleFunc("/runs", s.ListRuns).Methods(http.MethodGet)
	v1.HandleFunc("/runs/{id}", s.GetRun).Methods(http.MethodGet)

	return router
}

// Start starts the REST server
func (s *Server) Start() error {
	s.logger.Infof("starting REST server on %s", s.Server.Addr)
	s.wg.Add(1)

	go func() {
		defer s.wg.Done()

		var err error
		if s.restConfig.Cert != "" && s.restConfig.Key != "" {
			err = s.Server.ListenAndServeTLS(s.restConfig.Cert, s.restConfig.Key)
		} else {
			err = s.Server.ListenAndServe()
		}
		if err != http.ErrServerClosed {
			s.logger.Errorf("REST server error: %v", err)
		}
	}()

	go func() {
		<-s.ctx.Done()
		s.logger.Info("shutting down the REST server...")
		s.Server.Shutdown(context.Background())
	}()

	return nil
}
