package server

import (
	"github.com/saiset-co/sai-social/types"
)

// RouteGroup registers routes under a shared path prefix.
type RouteGroup struct {
	router *Router
	prefix string
}

func (g *RouteGroup) Route(method, path string, handler types.FastHTTPHandler) {
	g.router.Add(method, g.prefix+path, handler)
}

func (g *RouteGroup) GET(path string, handler types.FastHTTPHandler) {
	g.Route("GET", path, handler)
}

func (g *RouteGroup) POST(path string, handler types.FastHTTPHandler) {
	g.Route("POST", path, handler)
}

func (g *RouteGroup) PUT(path string, handler types.FastHTTPHandler) {
	g.Route("PUT", path, handler)
}

func (g *RouteGroup) DELETE(path string, handler types.FastHTTPHandler) {
	g.Route("DELETE", path, handler)
}

func (g *RouteGroup) Group(prefix string) *RouteGroup {
	return &RouteGroup{router: g.router, prefix: g.prefix + prefix}
}
