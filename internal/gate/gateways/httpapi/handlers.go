package httpapi

import (
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/haukened/tempmail-gate/internal/gate/common/utils"
	"github.com/haukened/tempmail-gate/internal/gate/domain"
	"github.com/haukened/tempmail-gate/internal/gate/repos/attemptlog"
	"github.com/haukened/tempmail-gate/internal/gate/services/settings"
)

const (
	defaultLogLimit = 20
	maxImportBytes  = 1 << 20
)

type checkRequest struct {
	Email string `json:"email" validate:"required"`
}

type checkResponse struct {
	Email       string `json:"email"`
	Domain      string `json:"domain"`
	Apex        string `json:"apex"`
	Blocked     bool   `json:"blocked"`
	Whitelisted bool   `json:"whitelisted"`
	Source      string `json:"source"`
}

type domainRequest struct {
	Domain string `json:"domain" validate:"required,fqdn"`
}

type listResponse struct {
	Domains []string `json:"domains"`
}

func (s *Server) healthz(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) listSites(c echo.Context) error {
	return c.JSON(http.StatusOK, s.tenants.Sites())
}

func bindValid(c echo.Context, v any) error {
	if err := c.Bind(v); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.Validate(v)
}

func (s *Server) check(c echo.Context) error {
	req := new(checkRequest)
	if err := bindValid(c, req); err != nil {
		return err
	}
	d := tenantOf(c).Engine.Check(c.Request().Context(), req.Email)
	return c.JSON(http.StatusOK, checkResponse{
		Email:       req.Email,
		Domain:      d.Domain,
		Apex:        utils.ApexDomain(d.Domain),
		Blocked:     d.Blocked,
		Whitelisted: d.Whitelisted,
		Source:      d.Source.String(),
	})
}

func (s *Server) handleIntegration(c echo.Context) error {
	sub := new(domain.Submission)
	if err := c.Bind(sub); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if sub.ClientIP == "" {
		sub.ClientIP = attemptlog.ClientIP(c.Request().Header, c.Request().RemoteAddr)
	}
	out, err := tenantOf(c).Integrations.Handle(c.Request().Context(), c.Param("integration"), *sub)
	if err != nil {
		return httpError(err)
	}
	status := http.StatusOK
	if !out.Allowed {
		status = http.StatusUnprocessableEntity
	}
	return c.JSON(status, out)
}

func (s *Server) getBlocklist(c echo.Context) error {
	names, err := tenantOf(c).Lists.AdminBlocklist(c.Request().Context())
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, listResponse{Domains: names})
}

func (s *Server) getCombined(c echo.Context) error {
	names, err := tenantOf(c).Lists.Combined(c.Request().Context())
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, listResponse{Domains: names})
}

func (s *Server) addBlocklist(c echo.Context) error {
	req := new(domainRequest)
	if err := bindValid(c, req); err != nil {
		return err
	}
	if utils.IsPublicSuffix(req.Domain) {
		return echo.NewHTTPError(http.StatusBadRequest, "refusing to block a public suffix")
	}
	if err := tenantOf(c).Lists.AddToBlocklist(c.Request().Context(), req.Domain); err != nil {
		return httpError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (s *Server) removeBlocklist(c echo.Context) error {
	if err := tenantOf(c).Lists.RemoveFromBlocklist(c.Request().Context(), c.Param("domain")); err != nil {
		return httpError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (s *Server) getWhitelist(c echo.Context) error {
	names, err := tenantOf(c).Lists.Whitelist(c.Request().Context())
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, listResponse{Domains: names})
}

func (s *Server) addWhitelist(c echo.Context) error {
	req := new(domainRequest)
	if err := bindValid(c, req); err != nil {
		return err
	}
	if err := tenantOf(c).Lists.AddToWhitelist(c.Request().Context(), req.Domain); err != nil {
		return httpError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (s *Server) removeWhitelist(c echo.Context) error {
	if err := tenantOf(c).Lists.RemoveFromWhitelist(c.Request().Context(), c.Param("domain")); err != nil {
		return httpError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (s *Server) refresh(c echo.Context) error {
	res, err := tenantOf(c).Refresh.FetchRemoteList(c.Request().Context())
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, res)
}

func (s *Server) recentLog(c echo.Context) error {
	limit := defaultLogLimit
	if q := c.QueryParam("limit"); q != "" {
		n, err := strconv.Atoi(q)
		if err != nil || n < 0 {
			return echo.NewHTTPError(http.StatusBadRequest, "limit must be a non-negative integer")
		}
		limit = n
	}
	entries, err := tenantOf(c).Log.ListRecent(c.Request().Context(), limit)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, entries)
}

func (s *Server) stats(c echo.Context) error {
	st, err := tenantOf(c).Stats(c.Request().Context())
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, st)
}

func (s *Server) exportSettings(c echo.Context) error {
	rec, err := tenantOf(c).Settings.Export(c.Request().Context())
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, rec)
}

func readBody(c echo.Context) ([]byte, error) {
	body, err := io.ReadAll(http.MaxBytesReader(c.Response(), c.Request().Body, maxImportBytes))
	if err != nil {
		return nil, echo.NewHTTPError(http.StatusRequestEntityTooLarge, err.Error())
	}
	return body, nil
}

func (s *Server) importSettings(c echo.Context) error {
	body, err := readBody(c)
	if err != nil {
		return err
	}
	applied, err := tenantOf(c).Settings.Import(c.Request().Context(), body)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, map[string][]string{"applied": applied})
}

func (s *Server) resetSettings(c echo.Context) error {
	if err := tenantOf(c).Settings.Reset(c.Request().Context()); err != nil {
		return httpError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (s *Server) updateSetting(c echo.Context) error {
	body, err := readBody(c)
	if err != nil {
		return err
	}
	err = tenantOf(c).Settings.Update(c.Request().Context(), c.Param("key"), body)
	switch {
	case errors.Is(err, settings.ErrUnknownKey):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case errors.Is(err, settings.ErrInvalidValue):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	case err != nil:
		return httpError(err)
	}
	return c.NoContent(http.StatusNoContent)
}
