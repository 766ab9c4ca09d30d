package server

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/kcmvp/retail/api"
	"github.com/samber/lo"
)

// NewGin mounts the API on a gin engine.
func NewGin(h *Handler) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	g := r.Group(Prefix)
	for _, ep := range h.endpoints() {
		g.Handle(ep.method, ep.path, func(c *gin.Context) {
			path := lo.Associate(c.Params, func(p gin.Param) (string, string) { return p.Key, p.Value })
			body, err := io.ReadAll(c.Request.Body)
			if err != nil {
				c.AbortWithStatusJSON(http.StatusBadRequest, api.Fail[any](err.Error()))
				return
			}
			rep := h.serve(c.Request.Context(), ep, path, c.Request.URL.Query(), body)
			c.Header(api.VersionHeader, api.Version)
			c.JSON(rep.status, rep.body)
		})
	}
	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, api.Fail[any](http.StatusText(http.StatusNotFound)))
	})
	return r
}
