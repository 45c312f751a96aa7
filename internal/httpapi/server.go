// Package httpapi exposes the service over HTTP with gin.
package httpapi

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/DreamCats/vecserve/internal/apperr"
	"github.com/DreamCats/vecserve/internal/service"
)

// HealthMessage is the body served on GET /.
const HealthMessage = "Vector server is running."

const maxBodyBytes = 1 << 20

// Facade is the subset of the service the HTTP layer calls.
type Facade interface {
	Authorize(token string) error
	Embed(ctx context.Context, text string) ([]float32, error)
	Ingest(ctx context.Context, text, collection string) (service.IngestResult, error)
	Query(ctx context.Context, text, collection string, limit int) ([]string, error)
}

type Server struct {
	svc    Facade
	logger *slog.Logger
	router *gin.Engine
}

type textRequest struct {
	Text string `json:"text"`
}

type ingestRequest struct {
	Text       string `json:"text"`
	Collection string `json:"collection"`
}

type queryRequest struct {
	Text       string `json:"text"`
	Collection string `json:"collection"`
	Limit      int    `json:"limit"`
}

type errorBody struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

func New(svc Facade, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{svc: svc, logger: logger}

	router := gin.New()
	router.Use(gin.Recovery(), s.logRequests())
	router.GET("/", s.health)

	gated := router.Group("/", s.requireToken())
	gated.POST("/embed", s.embed)
	gated.POST("/push", s.ingest)
	gated.POST("/ingest", s.ingest)
	gated.POST("/search", s.query)
	gated.POST("/query", s.query)

	s.router = router
	return s
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// ListenAndServe serves on addr until ctx is cancelled, then drains
// in-flight requests for at most shutdownTimeout.
func (s *Server) ListenAndServe(ctx context.Context, addr string, shutdownTimeout time.Duration) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("http server listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	s.logger.Info("http server shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return nil
}

func (s *Server) health(c *gin.Context) {
	c.String(http.StatusOK, HealthMessage)
}

// requireToken rejects the request before the body is read when the
// bearer token does not match.
func (s *Server) requireToken() gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := s.svc.Authorize(bearerToken(c.GetHeader("Authorization"))); err != nil {
			s.fail(c, err)
			return
		}
		c.Next()
	}
}

func bearerToken(header string) string {
	const prefix = "Bearer "
	if len(header) < len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return ""
	}
	return strings.TrimSpace(header[len(prefix):])
}

func (s *Server) embed(c *gin.Context) {
	var req textRequest
	if !s.bind(c, &req) {
		return
	}
	vector, err := s.svc.Embed(c.Request.Context(), req.Text)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"vector": vector})
}

func (s *Server) ingest(c *gin.Context) {
	var req ingestRequest
	if !s.bind(c, &req) {
		return
	}
	res, err := s.svc.Ingest(c.Request.Context(), req.Text, req.Collection)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (s *Server) query(c *gin.Context) {
	var req queryRequest
	if !s.bind(c, &req) {
		return
	}
	texts, err := s.svc.Query(c.Request.Context(), req.Text, req.Collection, req.Limit)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, texts)
}

func (s *Server) bind(c *gin.Context, dst any) bool {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBodyBytes)
	if err := c.ShouldBindJSON(dst); err != nil {
		s.fail(c, apperr.Wrap(apperr.KindValidation, "decode request", err, "invalid JSON body"))
		return false
	}
	return true
}

func (s *Server) fail(c *gin.Context, err error) {
	kind := apperr.KindOf(err)
	status := StatusFor(kind)
	message := err.Error()
	if kind == apperr.KindInternal {
		message = "internal error"
	}
	if status >= http.StatusInternalServerError {
		apperr.Log(s.logger, "request failed", err, "path", c.Request.URL.Path)
	}
	c.AbortWithStatusJSON(status, gin.H{"error": errorBody{Kind: string(kind), Message: message}})
}

// StatusFor maps an error kind to its HTTP status.
func StatusFor(kind apperr.Kind) int {
	switch kind {
	case apperr.KindAuth:
		return http.StatusUnauthorized
	case apperr.KindValidation:
		return http.StatusBadRequest
	case apperr.KindCollectionNotFound:
		return http.StatusNotFound
	case apperr.KindEncoding:
		return http.StatusUnprocessableEntity
	case apperr.KindStoreUnavailable:
		return http.StatusServiceUnavailable
	case apperr.KindProvision, apperr.KindWrite:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) logRequests() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.logger.Info("http request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"latency", time.Since(start),
		)
	}
}
