package server

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/valyala/fasthttp"

	"github.com/saiset-co/sai-social/config"
	"github.com/saiset-co/sai-social/logger"
	"github.com/saiset-co/sai-social/metrics"
	"github.com/saiset-co/sai-social/types"
)

func serve(router *Router, method, uri string) *fasthttp.RequestCtx {
	ctx := &fasthttp.RequestCtx{}
	ctx.Request.Header.SetMethod(method)
	ctx.Request.SetRequestURI(uri)
	router.Handler()(ctx)
	return ctx
}

func TestRouterStaticAndParamRoutes(t *testing.T) {
	router := NewRouter()

	router.GET("/api/cache/stats", func(ctx *fasthttp.RequestCtx) {
		ctx.SetBodyString("stats")
	})
	router.POST("/api/cache/cleanup/{type}", func(ctx *fasthttp.RequestCtx) {
		ctx.SetBodyString("cleanup:" + Param(ctx, "type"))
	})
	router.GET("/api/users/{userId}/profile", func(ctx *fasthttp.RequestCtx) {
		ctx.SetBodyString("profile:" + Param(ctx, "userId"))
	})

	ctx := serve(router, "GET", "/api/cache/stats/")
	assert.Equal(t, fasthttp.StatusOK, ctx.Response.StatusCode())
	assert.Equal(t, "stats", string(ctx.Response.Body()))

	ctx = serve(router, "POST", "/api/cache/cleanup/feed")
	assert.Equal(t, "cleanup:feed", string(ctx.Response.Body()))

	ctx = serve(router, "GET", "/api/users/u-1/profile?x=1")
	assert.Equal(t, "profile:u-1", string(ctx.Response.Body()))
}

func TestRouterStaticSegmentWinsOverParam(t *testing.T) {
	router := NewRouter()

	router.GET("/api/posts/{postId}", func(ctx *fasthttp.RequestCtx) {
		ctx.SetBodyString("post")
	})
	router.GET("/api/posts/latest", func(ctx *fasthttp.RequestCtx) {
		ctx.SetBodyString("latest")
	})

	assert.Equal(t, "latest", string(serve(router, "GET", "/api/posts/latest").Response.Body()))
	assert.Equal(t, "post", string(serve(router, "GET", "/api/posts/p-9").Response.Body()))
}

func TestRouterNotFoundAndMethodNotAllowed(t *testing.T) {
	router := NewRouter()
	noop := func(ctx *fasthttp.RequestCtx) {}

	router.GET("/api/cache/stats", noop)
	router.POST("/api/posts/{postId}/comments", noop)

	assert.Equal(t, fasthttp.StatusNotFound, serve(router, "GET", "/api/nothing").Response.StatusCode())
	assert.Equal(t, fasthttp.StatusMethodNotAllowed, serve(router, "POST", "/api/cache/stats").Response.StatusCode())
	assert.Equal(t, fasthttp.StatusMethodNotAllowed, serve(router, "GET", "/api/posts/p-1/comments").Response.StatusCode())
	assert.Equal(t, fasthttp.StatusMethodNotAllowed, serve(router, "TRACE", "/api/cache/stats").Response.StatusCode())
}

func TestRouterGroupPrefixesRoutes(t *testing.T) {
	router := NewRouter()
	api := router.Group("/api/")

	api.Group("/cache").GET("/health", func(ctx *fasthttp.RequestCtx) {
		ctx.SetBodyString("ok")
	})

	assert.Equal(t, "ok", string(serve(router, "GET", "/api/cache/health").Response.Body()))
}

func TestRecoveryMiddlewareAnswersWithError(t *testing.T) {
	router := NewRouter(
		NewRecoveryMiddleware(logger.NewNop(), metrics.NewNoop(), true),
		NewLoggingMiddleware(logger.NewNop(), metrics.NewNoop()),
	)

	router.GET("/boom", func(ctx *fasthttp.RequestCtx) {
		panic("boom")
	})

	ctx := serve(router, "GET", "/boom")

	assert.Equal(t, fasthttp.StatusInternalServerError, ctx.Response.StatusCode())
	assert.Contains(t, string(ctx.Response.Body()), "An unexpected error occurred")
}

func TestLoggingMiddlewareCountsRequests(t *testing.T) {
	cfg := &types.MetricsConfig{Enabled: true, Namespace: "test", Path: "/metrics"}
	prom := metrics.NewPrometheusMetrics(logger.NewNop(), cfg)

	router := NewRouter(NewLoggingMiddleware(logger.NewNop(), prom))
	router.GET("/ping", func(ctx *fasthttp.RequestCtx) {})

	serve(router, "GET", "/ping")
	serve(router, "GET", "/ping")
	serve(router, "GET", "/missing")

	ok := prom.Counter("http_requests_total", map[string]string{"method": "GET", "status": "200"})
	missing := prom.Counter("http_requests_total", map[string]string{"method": "GET", "status": "404"})

	assert.Equal(t, float64(2), ok.Get())
	assert.Equal(t, float64(1), missing.Get())
}

func TestServerStopWhenNotRunning(t *testing.T) {
	cfg := config.NewLoader().Defaults()
	manager, err := config.NewStaticManager(cfg)
	require.NoError(t, err)

	srv := NewHTTPServer(manager, logger.NewNop(), NewRouter())

	assert.False(t, srv.IsRunning())
	assert.ErrorIs(t, srv.Stop(), types.ErrServerNotRunning)
	assert.Empty(t, srv.Addr())
}

func corsRouter(origins ...string) *Router {
	router := NewRouter(NewCORSMiddleware(&types.CORSConfig{
		Enabled:        true,
		AllowedOrigins: origins,
		AllowedMethods: []string{"GET", "POST"},
		AllowedHeaders: []string{"Content-Type", "X-User-ID"},
		MaxAge:         600,
	}, logger.NewNop()))

	router.GET("/api/posts", func(ctx *fasthttp.RequestCtx) {
		ctx.SetBodyString("posts")
	})

	return router
}

func serveFrom(router *Router, method, uri, origin string) *fasthttp.RequestCtx {
	ctx := &fasthttp.RequestCtx{}
	ctx.Request.Header.SetMethod(method)
	ctx.Request.SetRequestURI(uri)
	ctx.Request.Header.Set("Origin", origin)
	router.Handler()(ctx)
	return ctx
}

func TestCORSAllowsConfiguredOrigins(t *testing.T) {
	router := corsRouter("https://app.example.org", "*.example.com")

	ctx := serveFrom(router, "GET", "/api/posts", "https://app.example.org")
	assert.Equal(t, "posts", string(ctx.Response.Body()))
	assert.Equal(t, "https://app.example.org", string(ctx.Response.Header.Peek("Access-Control-Allow-Origin")))

	ctx = serveFrom(router, "GET", "/api/posts", "https://api.example.com")
	assert.Equal(t, fasthttp.StatusOK, ctx.Response.StatusCode())

	ctx = serveFrom(router, "GET", "/api/posts", "https://evil.test")
	assert.Equal(t, fasthttp.StatusForbidden, ctx.Response.StatusCode())
}

func TestCORSPreflight(t *testing.T) {
	router := corsRouter("*")

	ctx := serveFrom(router, "OPTIONS", "/api/posts", "https://anywhere.test")

	assert.Equal(t, fasthttp.StatusNoContent, ctx.Response.StatusCode())
	assert.Equal(t, "*", string(ctx.Response.Header.Peek("Access-Control-Allow-Origin")))
	assert.Equal(t, "GET, POST", string(ctx.Response.Header.Peek("Access-Control-Allow-Methods")))
	assert.Equal(t, "600", string(ctx.Response.Header.Peek("Access-Control-Max-Age")))
}
