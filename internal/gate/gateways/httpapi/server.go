// Package httpapi exposes the integration hooks and admin operations over HTTP.
package httpapi

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"net"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"golang.org/x/net/netutil"

	logpkg "github.com/haukened/tempmail-gate/internal/gate/common/log"
	"github.com/haukened/tempmail-gate/internal/gate/domain"
	"github.com/haukened/tempmail-gate/internal/gate/services/site"
)

// Tenants resolves site IDs to their services.
type Tenants interface {
	Get(id string) (*site.Tenant, error)
	Sites() []domain.Site
}

// Config configures a Server.
type Config struct {
	Port     int
	MaxConns int
	// APIToken, when set, is required as a bearer token on every /sites route.
	APIToken string
}

// Server is the echo application.
type Server struct {
	cfg     Config
	echo    *echo.Echo
	tenants Tenants
	logger  logpkg.Logger
}

type customValidator struct {
	validator *validator.Validate
}

func (cv *customValidator) Validate(i interface{}) error {
	if err := cv.validator.Struct(i); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return nil
}

// New builds the server and registers every route.
func New(cfg Config, tenants Tenants, logger logpkg.Logger) *Server {
	if logger == nil {
		logger = logpkg.NewNoopLogger()
	}
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = &customValidator{validator: validator.New()}

	s := &Server{cfg: cfg, echo: e, tenants: tenants, logger: logger}

	e.Use(middleware.Recover())
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod:   true,
		LogURI:      true,
		LogStatus:   true,
		LogLatency:  true,
		LogRemoteIP: true,
		LogError:    true,
		LogValuesFunc: func(_ echo.Context, v middleware.RequestLoggerValues) error {
			fields := map[string]any{
				"method":  v.Method,
				"uri":     v.URI,
				"status":  v.Status,
				"latency": v.Latency.String(),
				"ip":      v.RemoteIP,
			}
			if v.Error != nil {
				fields["error"] = v.Error.Error()
			}
			logger.Debug(fields, "http request")
			return nil
		},
	}))

	s.routes()
	return s
}

func (s *Server) routes() {
	e := s.echo
	e.GET("/healthz", s.healthz)

	root := e.Group("/sites")
	if s.cfg.APIToken != "" {
		root.Use(middleware.KeyAuthWithConfig(middleware.KeyAuthConfig{
			Validator: func(key string, _ echo.Context) (bool, error) {
				return subtle.ConstantTimeCompare([]byte(key), []byte(s.cfg.APIToken)) == 1, nil
			},
		}))
	}
	root.GET("", s.listSites)

	g := root.Group("/:site", s.tenantMiddleware)
	g.POST("/check", s.check)
	g.POST("/integrations/:integration", s.handleIntegration)

	g.GET("/blocklist", s.getBlocklist)
	g.GET("/blocklist/combined", s.getCombined)
	g.POST("/blocklist", s.addBlocklist)
	g.DELETE("/blocklist/:domain", s.removeBlocklist)

	g.GET("/whitelist", s.getWhitelist)
	g.POST("/whitelist", s.addWhitelist)
	g.DELETE("/whitelist/:domain", s.removeWhitelist)

	g.POST("/refresh", s.refresh)
	g.GET("/log", s.recentLog)
	g.GET("/stats", s.stats)

	g.GET("/settings", s.exportSettings)
	g.POST("/settings", s.importSettings)
	g.POST("/settings/reset", s.resetSettings)
	g.PUT("/settings/:key", s.updateSetting)
}

// Handler returns the HTTP handler; used by tests.
func (s *Server) Handler() http.Handler { return s.echo }

// Start listens on the configured port and blocks until the server stops.
// Open connections are capped at MaxConns when it is positive.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", fmt.Sprintf(":%d", s.cfg.Port))
	if err != nil {
		return fmt.Errorf("listen: %w", err)
	}
	if s.cfg.MaxConns > 0 {
		ln = netutil.LimitListener(ln, s.cfg.MaxConns)
	}
	s.echo.Listener = ln
	s.logger.Info(map[string]any{"addr": ln.Addr().String(), "max_conns": s.cfg.MaxConns}, "http api listening")
	if err := s.echo.Start(""); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting requests and waits for in-flight ones.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

const tenantKey = "tenant"

func (s *Server) tenantMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		t, err := s.tenants.Get(c.Param("site"))
		if err != nil {
			return echo.NewHTTPError(http.StatusNotFound, err.Error())
		}
		c.Set(tenantKey, t)
		return next(c)
	}
}

func tenantOf(c echo.Context) *site.Tenant {
	return c.Get(tenantKey).(*site.Tenant)
}

// httpError maps service errors onto HTTP statuses.
func httpError(err error) error {
	switch {
	case errors.Is(err, domain.ErrUnknownSite), errors.Is(err, domain.ErrUnknownIntegration):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case errors.Is(err, domain.ErrMalformedImport):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrFetchFailed):
		return echo.NewHTTPError(http.StatusBadGateway, err.Error())
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
}
