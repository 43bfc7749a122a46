package viz

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"sync"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/roach88/contagion/internal/config"
	"github.com/roach88/contagion/internal/engine"
	"github.com/roach88/contagion/internal/harness"
)

// MaxStepsPerRequest bounds the ticks one POST /api/step may run.
const MaxStepsPerRequest = 10000

// Server serves one model.
type Server struct {
	mu     sync.Mutex
	params config.Params
	model  *engine.Model

	echo   *echo.Echo
	hub    *hub
	logger *slog.Logger
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the server and model logger.
// Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) {
		s.logger = l
	}
}

// NewServer builds the model from p and registers the routes.
func NewServer(p config.Params, opts ...Option) (*Server, error) {
	s := &Server{
		params: p,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}

	m, err := s.build()
	if err != nil {
		return nil, err
	}
	s.model = m
	s.hub = newHub(s.logger)

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())
	s.echo = e
	s.RegisterRoutes(e)

	return s, nil
}

// RegisterRoutes registers the API on e.
func (s *Server) RegisterRoutes(e *echo.Echo) {
	e.GET("/health", s.Health)
	e.GET("/api/params", s.GetParams)
	e.GET("/api/network", s.GetNetwork)
	e.POST("/api/step", s.PostStep)
	e.POST("/api/reset", s.PostReset)
	e.GET("/ws", s.Stream)
}

// Handler exposes the server as an http.Handler.
func (s *Server) Handler() http.Handler { return s.echo }

// Start listens on addr until Shutdown.
func (s *Server) Start(addr string) error {
	s.logger.Info("viz server listening", "addr", addr)
	if err := s.echo.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops the listener and disconnects stream clients.
func (s *Server) Shutdown(ctx context.Context) error {
	s.hub.close()
	return s.echo.Shutdown(ctx)
}

func (s *Server) build() (*engine.Model, error) {
	return harness.NewModel(s.params, nil, engine.WithLogger(s.logger))
}

// View returns the current projection.
func (s *Server) View() View {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Portray(s.model.Network())
}

// Step advances the model by n ticks and publishes the result.
func (s *Server) Step(n int) (View, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := 0; i < n; i++ {
		if err := s.model.Step(); err != nil {
			return Portray(s.model.Network()), err
		}
	}
	v := Portray(s.model.Network())
	s.hub.publish(v)
	return v, nil
}

// Reset rebuilds the model from the parameters and publishes it.
func (s *Server) Reset() (View, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, err := s.build()
	if err != nil {
		return View{}, err
	}
	s.model = m
	v := Portray(m.Network())
	s.hub.publish(v)
	s.logger.Info("model reset")
	return v, nil
}

// Health returns health status.
func (s *Server) Health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "healthy"})
}

// GetParams returns the parameters the model is built from.
func (s *Server) GetParams(c echo.Context) error {
	return c.JSON(http.StatusOK, s.params)
}

// GetNetwork returns the current projection.
func (s *Server) GetNetwork(c echo.Context) error {
	return c.JSON(http.StatusOK, s.View())
}

// PostStep advances the model. Query parameter n (default 1) sets the
// number of ticks.
func (s *Server) PostStep(c echo.Context) error {
	n := 1
	if raw := c.QueryParam("n"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 || parsed > MaxStepsPerRequest {
			return c.JSON(http.StatusBadRequest, errorBody("INVALID_STEPS",
				fmt.Sprintf("n must be an integer in [1, %d]", MaxStepsPerRequest)))
		}
		n = parsed
	}

	v, err := s.Step(n)
	if err != nil {
		var rerr *engine.RuntimeError
		if errors.As(err, &rerr) {
			return c.JSON(http.StatusConflict, errorBody(rerr.Code, rerr.Error()))
		}
		return c.JSON(http.StatusInternalServerError, errorBody("INTERNAL", err.Error()))
	}
	return c.JSON(http.StatusOK, v)
}

// PostReset rebuilds the model.
func (s *Server) PostReset(c echo.Context) error {
	v, err := s.Reset()
	if err != nil {
		return c.JSON(http.StatusBadRequest, errorBody(engine.ErrCodeConfiguration, err.Error()))
	}
	return c.JSON(http.StatusOK, v)
}

// Stream upgrades to a WebSocket that receives every new view.
func (s *Server) Stream(c echo.Context) error {
	if err := s.hub.serve(c.Response(), c.Request(), s.View()); err != nil {
		s.logger.Warn("websocket upgrade failed", "error", err)
	}
	return nil
}

func errorBody(code engine.RuntimeErrorCode, message string) map[string]string {
	return map[string]string{"code": string(code), "message": message}
}
