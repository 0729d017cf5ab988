// Package api exposes HTTP control of the laser. The server is the sole
// owner of the laser handle; a mutex serializes every call so that HTTP
// concurrency cannot interleave command/response pairs on the bus.
package api

import (
	"errors"
	"net/http"
	"strconv"
	"sync"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/photonics-data/femtoctl/internal/db"
	"github.com/photonics-data/femtoctl/lasers"
)

// Status is the laser state reported by GET /api/status and published over
// MQTT after mutations.
type Status struct {
	ControlOn  bool `json:"control_on"`
	EmissionOn bool `json:"emission_on"`
}

// Option configures a Server.
type Option func(*Server)

// WithStore attaches the transcript store backing GET /api/exchanges.
func WithStore(store *db.DB, sessionID string) Option {
	return func(s *Server) {
		s.store = store
		s.sessionID = sessionID
	}
}

// WithNotify registers a hook fired with the laser status after every
// successful mutation.
func WithNotify(notify func(Status)) Option {
	return func(s *Server) {
		s.notify = notify
	}
}

// Server serves the control API for a single laser.
type Server struct {
	laser     lasers.Laser
	laserMu   sync.Mutex
	store     *db.DB
	sessionID string
	notify    func(Status)
}

func NewServer(laser lasers.Laser, opts ...Option) *Server {
	s := &Server{laser: laser}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Echo builds the echo instance with all routes attached.
func (s *Server) Echo() *echo.Echo {
	e := echo.New()
	e.HideBanner = true

	e.Use(middleware.Logger())
	e.Use(middleware.Recover())

	e.GET("/api/status", s.handleStatus)
	e.POST("/api/emission", s.handleEmission)
	e.POST("/api/control", s.handleControl)
	e.GET("/api/exchanges", s.handleExchanges)

	return e
}

func (s *Server) status() (Status, error) {
	control, err := s.laser.IsControlOn()
	if err != nil {
		return Status{}, err
	}
	emission, err := s.laser.IsOn()
	if err != nil {
		return Status{}, err
	}
	return Status{ControlOn: control, EmissionOn: emission}, nil
}

func (s *Server) handleStatus(c echo.Context) error {
	s.laserMu.Lock()
	status, err := s.status()
	s.laserMu.Unlock()
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
	return c.JSON(http.StatusOK, status)
}

type switchRequest struct {
	On bool `json:"on"`
}

func (s *Server) handleEmission(c echo.Context) error {
	return s.mutate(c, func() error {
		req := new(switchRequest)
		if err := c.Bind(req); err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "body must be {\"on\": bool}")
		}
		if req.On {
			return s.laser.TurnOn()
		}
		return s.laser.TurnOff()
	})
}

func (s *Server) handleControl(c echo.Context) error {
	return s.mutate(c, func() error {
		req := new(switchRequest)
		if err := c.Bind(req); err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "body must be {\"on\": bool}")
		}
		return s.laser.SetControl(req.On)
	})
}

// mutate runs one mutating laser call under the handle mutex and maps its
// outcome: 204 on success, 502 with the firmware's message on a device
// error, 500 on a transport failure.
func (s *Server) mutate(c echo.Context, op func() error) error {
	s.laserMu.Lock()
	err := op()
	var status Status
	var statusErr error
	if err == nil && s.notify != nil {
		status, statusErr = s.status()
	}
	s.laserMu.Unlock()

	if err != nil {
		var httpErr *echo.HTTPError
		if errors.As(err, &httpErr) {
			return httpErr
		}
		var deviceErr *lasers.DeviceError
		if errors.As(err, &deviceErr) {
			return c.JSON(http.StatusBadGateway, map[string]string{"device_error": deviceErr.Message})
		}
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}

	if s.notify != nil && statusErr == nil {
		s.notify(status)
	}
	return c.NoContent(http.StatusNoContent)
}

func (s *Server) handleExchanges(c echo.Context) error {
	if s.store == nil {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "transcript store not configured"})
	}

	limit := 0
	if raw := c.QueryParam("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			return echo.NewHTTPError(http.StatusBadRequest, "limit must be a non-negative integer")
		}
		limit = parsed
	}

	exchanges, err := s.store.Exchanges(s.sessionID, limit)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
	if exchanges == nil {
		exchanges = []db.Exchange{}
	}
	return c.JSON(http.StatusOK, exchanges)
}
