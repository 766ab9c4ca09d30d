package server

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gofiber/fiber/v3"
	"github.com/kcmvp/retail/api"
	"github.com/samber/lo"
)

// NewFiber mounts the API on a fiber app.
func NewFiber(h *Handler) *fiber.App {
	app := fiber.New(fiber.Config{
		// ids from path parameters end up in the store
		Immutable: true,
		ErrorHandler: func(c fiber.Ctx, err error) error {
			code := fiber.StatusInternalServerError
			var fe *fiber.Error
			if errors.As(err, &fe) {
				code = fe.Code
			}
			return c.Status(code).JSON(api.Fail[any](http.StatusText(code)))
		},
	})
	g := app.Group(Prefix)
	for _, ep := range h.endpoints() {
		handler := func(c fiber.Ctx) error {
			path := lo.SliceToMap(c.Route().Params, func(name string) (string, string) { return name, c.Params(name) })
			query := lo.MapValues(c.Queries(), func(v string, _ string) []string { return []string{v} })
			rep := h.serve(c, ep, path, query, c.Body())
			c.Set(api.VersionHeader, api.Version)
			return c.Status(rep.status).JSON(rep.body)
		}
		switch ep.method {
		case http.MethodGet:
			g.Get(ep.path, handler)
		case http.MethodPost:
			g.Post(ep.path, handler)
		case http.MethodPut:
			g.Put(ep.path, handler)
		case http.MethodPatch:
			g.Patch(ep.path, handler)
		case http.MethodDelete:
			g.Delete(ep.path, handler)
		default:
			panic(fmt.Sprintf("server: unsupported method %s", ep.method))
		}
	}
	return app
}
