package server

import (
	"errors"
	"io"
	"net/http"

	"github.com/kcmvp/retail/api"
	"github.com/labstack/echo/v4"
	"github.com/samber/lo"
)

// NewEcho mounts the API on an echo instance.
func NewEcho(h *Handler) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}
		code := http.StatusInternalServerError
		var he *echo.HTTPError
		if errors.As(err, &he) {
			code = he.Code
		}
		_ = c.JSON(code, api.Fail[any](http.StatusText(code)))
	}
	g := e.Group(Prefix)
	for _, ep := range h.endpoints() {
		g.Add(ep.method, ep.path, func(c echo.Context) error {
			path := lo.SliceToMap(c.ParamNames(), func(name string) (string, string) { return name, c.Param(name) })
			body, err := io.ReadAll(c.Request().Body)
			if err != nil {
				return c.JSON(http.StatusBadRequest, api.Fail[any](err.Error()))
			}
			rep := h.serve(c.Request().Context(), ep, path, c.QueryParams(), body)
			c.Response().Header().Set(api.VersionHeader, api.Version)
			return c.JSON(rep.status, rep.body)
		})
	}
	return e
}
