// Package server serves the tables over HTTP: Prometheus metrics plus a JSON
// view of each table.
package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/gysosin/system_stats/internal/collectors"
	"github.com/gysosin/system_stats/internal/exporter"
	"github.com/gysosin/system_stats/internal/tuple"
)

const shutdownTimeout = 10 * time.Second

type columnView struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

type tableView struct {
	Name    string       `json:"name"`
	Columns []columnView `json:"columns"`
}

type rowsView struct {
	Table   string      `json:"table"`
	Columns []string    `json:"columns"`
	Rows    []tuple.Row `json:"rows"`
}

// Server is the HTTP surface.
type Server struct {
	addr   string
	echo   *echo.Echo
	tables []collectors.Table
	log    zerolog.Logger
}

// New builds a server listening on addr (":9182" form).
func New(addr string, tables []collectors.Table, log zerolog.Logger) *Server {
	s := &Server{
		addr:   addr,
		echo:   echo.New(),
		tables: tables,
		log:    log,
	}
	s.setupRoutes()
	return s
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.echo
}

func (s *Server) setupRoutes() {
	s.echo.HideBanner = true
	s.echo.HidePort = true

	s.echo.Use(middleware.Recover())
	s.echo.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogURI:     true,
		LogStatus:  true,
		LogMethod:  true,
		LogLatency: true,
		LogValuesFunc: func(_ echo.Context, v middleware.RequestLoggerValues) error {
			s.log.Debug().
				Str("method", v.Method).
				Str("uri", v.URI).
				Int("status", v.Status).
				Dur("latency", v.Latency).
				Msg("request")
			return nil
		},
	}))

	registry := prometheus.NewRegistry()
	registry.MustRegister(exporter.NewCollector(s.tables))

	s.echo.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(registry, promhttp.HandlerOpts{})))
	s.echo.GET("/healthz", s.healthz)
	s.echo.GET("/tables", s.listTables)
	s.echo.GET("/tables/:name", s.readTable)
}

func (s *Server) healthz(c echo.Context) error {
	return c.String(http.StatusOK, "ok")
}

func (s *Server) listTables(c echo.Context) error {
	out := make([]tableView, 0, len(s.tables))
	for _, t := range s.tables {
		desc := t.Desc()
		view := tableView{Name: desc.Name}
		for _, col := range desc.Columns {
			view.Columns = append(view.Columns, columnView{Name: col.Name, Type: col.Type.String()})
		}
		out = append(out, view)
	}
	return c.JSON(http.StatusOK, out)
}

func (s *Server) readTable(c echo.Context) error {
	t, err := collectors.Lookup(s.tables, c.Param("name"))
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	}

	store := collectors.Collect(c.Request().Context(), t)
	rows := store.Rows()
	if rows == nil {
		rows = []tuple.Row{}
	}
	return c.JSON(http.StatusOK, rowsView{
		Table:   t.Desc().Name,
		Columns: t.Desc().Names(),
		Rows:    rows,
	})
}

// Start listens until Shutdown is called.
func (s *Server) Start() error {
	s.log.Info().Str("addr", s.addr).Msg("Starting HTTP server")
	if err := s.echo.Start(s.addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops the listener, waiting for in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info().Msg("Shutting down HTTP server")
	return s.echo.Shutdown(ctx)
}
