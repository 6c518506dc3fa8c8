package httpserver

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/samber/do"
	"github.com/sirupsen/logrus"
)

type Server struct {
	Router *gin.Engine
	Logger logrus.FieldLogger

	server http.Server
	err    error
}

// NewServer creates a Server with the shared middleware stack. Callers
// add their routes on Router before Run.
func NewServer(injector *do.Injector, component string, port int) (*Server, error) {
	logger, err := do.Invoke[logrus.FieldLogger](injector)
	if err != nil {
		return nil, err
	}

	logger = logger.WithField("component", component)

	defer logger.Info("Server created.")

	router := gin.New()

	router.Use(JSONRecovery(logger))
	router.Use(LoggingMiddleware(logger))
	router.Use(JSONErrorHandler(logger))

	return &Server{
		Router: router,
		Logger: logger,
		server: http.Server{
			Addr:              fmt.Sprintf("0.0.0.0:%d", port),
			ReadHeaderTimeout: ReadHeaderTimeout,
			Handler:           router,
		},
	}, nil
}

func (s *Server) HealthCheck() error {
	s.Logger.Debug("Server health check.")

	return s.err
}

func (s *Server) Shutdown() error {
	s.Logger.Debug("Server shutting down...")
	defer s.Logger.Debug("Server shot down.")

	return s.server.Shutdown(context.Background())
}

// Run starts the HTTP server.
func (s *Server) Run() error {
	s.Logger.Info("Starting server at: ", s.server.Addr)

	err := s.server.ListenAndServe()
	if !errors.Is(err, http.ErrServerClosed) {
		s.err = err
	}

	return err
}
