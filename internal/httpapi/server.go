// Package httpapi assembles the Echo application: the websocket route, the
// per-user file endpoint and the observability routes.
package httpapi

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"concierge/internal/clientfs"
	"concierge/internal/registry"
	"concierge/internal/ws"
)

// Server is the Echo application.
type Server struct {
	echo     *echo.Echo
	registry *registry.Registry
	files    *clientfs.Store
}

// New constructs an Echo app serving the hub and the file endpoint. files
// may be nil to disable /fs.
func New(reg *registry.Registry, files *clientfs.Store, wsCfg ws.Config) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(middleware.Recover())

	s := &Server{echo: e, registry: reg, files: files}
	s.registerRoutes(wsCfg)
	return s
}

// Echo exposes the underlying Echo instance for tests.
func (s *Server) Echo() *echo.Echo {
	return s.echo
}

func (s *Server) registerRoutes(wsCfg ws.Config) {
	s.echo.GET("/health", s.handleHealth)
	s.echo.GET("/api/state", s.handleState)
	s.echo.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	if s.files != nil {
		bodyLimit := middleware.BodyLimit("2M")
		s.echo.GET("/fs/:name/*", s.handleFileGet)
		s.echo.PUT("/fs/:name/*", s.handleFilePut, bodyLimit)
		s.echo.POST("/fs/:name/*", s.handleFilePut, bodyLimit) // Multipart upload alias.
		s.echo.DELETE("/fs/:name/*", s.handleFileDelete)
	}

	ws.NewHandler(s.registry, wsCfg).Register(s.echo)
}

// Run starts Echo and blocks until ctx cancellation or startup failure.
func (s *Server) Run(ctx context.Context, addr string) error {
	errCh := make(chan error, 1)
	go func() {
		err := s.echo.Start(addr)
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.echo.Shutdown(shutCtx)
		return nil
	}
}

type healthResponse struct {
	Status  string `json:"status"`
	Clients int    `json:"clients"`
}

func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, healthResponse{
		Status:  "ok",
		Clients: s.registry.ClientCount(),
	})
}

type stateResponse struct {
	Clients []clientEntry `json:"clients"`
	Groups  []string      `json:"groups"`
}

type clientEntry struct {
	UUID string `json:"uuid"`
	Name string `json:"name"`
}

func (s *Server) handleState(c echo.Context) error {
	infos := s.registry.Clients()
	clients := make([]clientEntry, 0, len(infos))
	for _, info := range infos {
		clients = append(clients, clientEntry{UUID: info.UUID.String(), Name: info.Name})
	}
	groups := s.registry.Groups()
	if groups == nil {
		groups = []string{}
	}
	return c.JSON(http.StatusOK, stateResponse{Clients: clients, Groups: groups})
}
