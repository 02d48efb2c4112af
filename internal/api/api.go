// Package api serves the read-only inventory HTTP API.
package api

import (
	"context"
	"crypto/subtle"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/tallycam/tallycam-go/internal/conf"
	"github.com/tallycam/tallycam-go/internal/inventory"
)

// Server exposes the inventory over HTTP. All endpoints are read-only;
// mutation stays with the CLI and the scanning pipeline.
type Server struct {
	echo     *echo.Echo
	settings conf.APISettings
	inv      *inventory.Store
}

// New assembles the server and its routes.
func New(settings conf.APISettings, inv *inventory.Store) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	s := &Server{echo: e, settings: settings, inv: inv}

	e.Use(middleware.Recover())
	if settings.Key != "" {
		e.Use(middleware.KeyAuthWithConfig(middleware.KeyAuthConfig{
			KeyLookup:  "header:" + echo.HeaderAuthorization,
			AuthScheme: "Bearer",
			Validator: func(key string, _ echo.Context) (bool, error) {
				return subtle.ConstantTimeCompare([]byte(key), []byte(settings.Key)) == 1, nil
			},
		}))
	}

	v1 := e.Group("/api/v1")
	v1.GET("/inventory", s.listInventory)
	v1.GET("/inventory/search", s.searchInventory)
	v1.GET("/inventory/summary", s.summary)
	v1.GET("/inventory/:id", s.getItem)
	v1.Static("/photos", inv.PhotoDir())

	return s
}

// Start serves until Shutdown or a listener error.
func (s *Server) Start() error {
	logger.Info("inventory API listening", "addr", s.settings.Listen)
	return s.echo.Start(s.settings.Listen)
}

// Shutdown stops the server gracefully.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

// Handler exposes the underlying handler, used by tests.
func (s *Server) Handler() http.Handler {
	return s.echo
}

func (s *Server) listInventory(c echo.Context) error {
	items := s.inv.List(inventory.Filter{
		Room:     c.QueryParam("room"),
		Category: c.QueryParam("category"),
	})
	return c.JSON(http.StatusOK, map[string]any{
		"items": items,
		"count": len(items),
	})
}

func (s *Server) searchInventory(c echo.Context) error {
	q := c.QueryParam("q")
	if q == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "missing query parameter q")
	}
	items := s.inv.Search(q)
	return c.JSON(http.StatusOK, map[string]any{
		"items": items,
		"count": len(items),
		"query": q,
	})
}

func (s *Server) summary(c echo.Context) error {
	return c.JSON(http.StatusOK, s.inv.Summarize())
}

func (s *Server) getItem(c echo.Context) error {
	item, err := s.inv.Get(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "inventory item not found")
	}
	return c.JSON(http.StatusOK, item)
}
