package service

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/valyala/fasthttp"

	"github.com/saiset-co/sai-social/config"
	"github.com/saiset-co/sai-social/types"
	"github.com/saiset-co/sai-social/utils"
)

type envelope[T any] struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	Data    T      `json:"data"`
}

func newTestService(t *testing.T, mutate ...func(*types.ServiceConfig)) *Service {
	t.Helper()

	cfg := config.NewLoader().Defaults()
	cfg.Logger.Level = "error"
	for _, fn := range mutate {
		fn(cfg)
	}

	manager, err := config.NewStaticManager(cfg)
	require.NoError(t, err)

	s, err := NewServiceWithConfig(context.Background(), manager)
	require.NoError(t, err)

	t.Cleanup(func() {
		if s.db.IsRunning() {
			_ = s.db.Stop()
		}
	})

	return s
}

func (s *Service) do(method, uri, userID string, body string) *fasthttp.RequestCtx {
	ctx := &fasthttp.RequestCtx{}
	ctx.Request.Header.SetMethod(method)
	ctx.Request.SetRequestURI(uri)
	if userID != "" {
		ctx.Request.Header.Set(userHeader, userID)
	}
	if body != "" {
		ctx.Request.SetBodyString(body)
		ctx.Request.Header.SetContentType("application/json")
	}

	s.router.Handler()(ctx)
	return ctx
}

func decodeBody[T any](t *testing.T, ctx *fasthttp.RequestCtx) T {
	t.Helper()

	var out T
	require.NoError(t, utils.Unmarshal(ctx.Response.Body(), &out))
	return out
}

func createUser(t *testing.T, s *Service, email, name string) string {
	t.Helper()

	ctx := s.do("POST", "/api/users", "", `{"email":"`+email+`","name":"`+name+`"}`)
	require.Equal(t, fasthttp.StatusCreated, ctx.Response.StatusCode(), string(ctx.Response.Body()))

	created := decodeBody[createdResponse](t, ctx)
	require.NotEmpty(t, created.ID)
	return created.ID
}

func TestCacheCleanupEndpoint(t *testing.T) {
	s := newTestService(t)

	ctx := s.do("POST", "/api/cache/cleanup/feed", "", "")
	require.Equal(t, fasthttp.StatusOK, ctx.Response.StatusCode())

	body := decodeBody[envelope[any]](t, ctx)
	assert.Equal(t, "success", body.Status)
	assert.Equal(t, "Cache cleanup initiated for type: feed", body.Message)

	ctx = s.do("POST", "/api/cache/cleanup/everything", "", "")
	assert.Equal(t, fasthttp.StatusBadRequest, ctx.Response.StatusCode())
	assert.Equal(t, "error", decodeBody[envelope[any]](t, ctx).Status)
}

func TestCacheStatsAndHealthEndpoints(t *testing.T) {
	s := newTestService(t)
	owner := createUser(t, s, "ann@example.com", "Ann")

	s.do("GET", "/api/users/"+owner+"/profile", "", "")
	s.do("GET", "/api/users/"+owner+"/profile", "", "")

	stats := decodeBody[envelope[types.Statistics]](t, s.do("GET", "/api/cache/stats", "", ""))
	assert.Equal(t, "success", stats.Status)
	assert.Len(t, stats.Data.CacheDetails, len(types.ContainerNames))
	assert.Equal(t, uint64(1), stats.Data.CacheDetails[types.ProfileContainer].Hits)
	assert.Equal(t, uint64(1), stats.Data.CacheDetails[types.ProfileContainer].Misses)

	health := decodeBody[envelope[types.CacheHealth]](t, s.do("GET", "/api/cache/health", "", ""))
	assert.Equal(t, "success", health.Status)
	assert.NotEmpty(t, health.Data.HitRate)

	export := decodeBody[types.MetricsExport](t, s.do("GET", "/api/cache/export", "", ""))
	assert.Equal(t, health.Data.TotalKeys, export.Health.TotalKeys)
}

func TestPostsFlow(t *testing.T) {
	s := newTestService(t)
	owner := createUser(t, s, "bob@example.com", "Bob")

	ctx := s.do("POST", "/api/posts", owner, `{"content":"hello"}`)
	require.Equal(t, fasthttp.StatusCreated, ctx.Response.StatusCode(), string(ctx.Response.Body()))
	post := decodeBody[types.Post](t, ctx)

	first := decodeBody[types.PostsPage](t, s.do("GET", "/api/posts", owner, ""))
	require.Len(t, first.Data, 1)
	assert.False(t, first.Cached)
	assert.Equal(t, "Bob", first.Data[0].Author.Name)

	second := decodeBody[types.PostsPage](t, s.do("GET", "/api/posts?page=1&limit=10", owner, ""))
	assert.True(t, second.Cached)

	ctx = s.do("POST", "/api/posts/"+post.ID+"/comments", owner, `{"content":"first"}`)
	require.Equal(t, fasthttp.StatusCreated, ctx.Response.StatusCode())

	third := decodeBody[types.PostsPage](t, s.do("GET", "/api/posts", owner, ""))
	assert.False(t, third.Cached)
	assert.Equal(t, 1, third.Data[0].Comments)

	ctx = s.do("POST", "/api/posts/"+post.ID+"/reactions", owner, `{"type":"like"}`)
	require.Equal(t, fasthttp.StatusOK, ctx.Response.StatusCode())
	metadata := decodeBody[envelope[types.PostMetadata]](t, ctx)
	assert.Equal(t, types.PostMetadata{Likes: 1, Comments: 1, Reactions: 1}, metadata.Data)

	assert.Equal(t, fasthttp.StatusForbidden, s.do("DELETE", "/api/posts/"+post.ID, "someone-else", "").Response.StatusCode())
	assert.Equal(t, fasthttp.StatusOK, s.do("DELETE", "/api/posts/"+post.ID, owner, "").Response.StatusCode())
	assert.Equal(t, fasthttp.StatusNotFound, s.do("POST", "/api/posts/"+post.ID+"/comments", owner, `{"content":"late"}`).Response.StatusCode())
}

func TestPostsRequestValidation(t *testing.T) {
	s := newTestService(t)
	owner := createUser(t, s, "cy@example.com", "Cy")

	assert.Equal(t, fasthttp.StatusUnauthorized, s.do("POST", "/api/posts", "", `{"content":"x"}`).Response.StatusCode())
	assert.Equal(t, fasthttp.StatusBadRequest, s.do("POST", "/api/posts", owner, `{"content":""}`).Response.StatusCode())
	assert.Equal(t, fasthttp.StatusBadRequest, s.do("POST", "/api/posts", owner, `not json`).Response.StatusCode())
	assert.Equal(t, fasthttp.StatusBadRequest, s.do("GET", "/api/posts?page=abc", owner, "").Response.StatusCode())
	assert.Equal(t, fasthttp.StatusBadRequest, s.do("POST", "/api/users", "", `{"email":"nope","name":"x"}`).Response.StatusCode())
}

func TestProfileEndpoints(t *testing.T) {
	s := newTestService(t)
	owner := createUser(t, s, "dee@example.com", "Dee")
	other := createUser(t, s, "eve@example.com", "Eve")

	ctx := s.do("GET", "/api/users/"+owner+"/profile", other, "")
	require.Equal(t, fasthttp.StatusOK, ctx.Response.StatusCode())
	assert.Equal(t, "MISS", string(ctx.Response.Header.Peek("X-Cache")))

	ctx = s.do("GET", "/api/users/"+owner+"/profile", other, "")
	assert.Equal(t, "HIT", string(ctx.Response.Header.Peek("X-Cache")))

	assert.Equal(t, fasthttp.StatusForbidden, s.do("PUT", "/api/users/"+owner+"/profile", other, `{"bio":"x"}`).Response.StatusCode())
	assert.Equal(t, fasthttp.StatusUnauthorized, s.do("PUT", "/api/users/"+owner+"/profile", "", `{"bio":"x"}`).Response.StatusCode())

	ctx = s.do("PUT", "/api/users/"+owner+"/profile", owner, `{"bio":"climber"}`)
	require.Equal(t, fasthttp.StatusOK, ctx.Response.StatusCode(), string(ctx.Response.Body()))
	assert.Equal(t, "climber", decodeBody[envelope[types.Profile]](t, ctx).Data.Bio)

	ctx = s.do("GET", "/api/users/"+owner+"/profile", other, "")
	assert.Equal(t, "climber", decodeBody[envelope[types.Profile]](t, ctx).Data.Bio)

	assert.Equal(t, fasthttp.StatusNotFound, s.do("GET", "/api/users/missing/profile", "", "").Response.StatusCode())
}

func TestMetricsRouteFollowsConfig(t *testing.T) {
	disabled := newTestService(t)
	assert.Equal(t, fasthttp.StatusNotFound, disabled.do("GET", "/metrics", "", "").Response.StatusCode())

	enabled := newTestService(t, func(cfg *types.ServiceConfig) {
		cfg.Metrics.Enabled = true
		cfg.Metrics.GoMetrics = false
	})

	enabled.do("POST", "/api/cache/cleanup/user", "", "")

	ctx := enabled.do("GET", "/metrics", "", "")
	require.Equal(t, fasthttp.StatusOK, ctx.Response.StatusCode())
	assert.Contains(t, string(ctx.Response.Body()), "sai_social_http_requests_total")
}

func TestServiceLifecycle(t *testing.T) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := listener.Addr().(*net.TCPAddr).Port
	require.NoError(t, listener.Close())

	s := newTestService(t, func(cfg *types.ServiceConfig) {
		cfg.Server.HTTP.Host = "127.0.0.1"
		cfg.Server.HTTP.Port = port
	})

	errCh := make(chan error, 1)
	go func() {
		errCh <- s.Start()
	}()

	require.Eventually(t, s.IsRunning, 5*time.Second, 10*time.Millisecond)
	assert.True(t, s.server.IsRunning())
	assert.True(t, s.monitor.IsRunning())
	assert.Len(t, s.cron.Jobs(), 2)

	require.NoError(t, s.Stop())

	select {
	case err := <-errCh:
		require.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("service did not stop")
	}

	assert.False(t, s.IsRunning())
	assert.False(t, s.db.IsRunning())
	assert.ErrorIs(t, s.Stop(), types.ErrServiceIsNotRunning)
}

func TestRequestContextFollowsWriteTimeout(t *testing.T) {
	s := newTestService(t, func(cfg *types.ServiceConfig) {
		cfg.Server.HTTP.WriteTimeout = 7
	})

	rctx, cancel := s.requestContext()
	defer cancel()

	deadline, ok := rctx.Deadline()
	require.True(t, ok)
	assert.WithinDuration(t, time.Now().Add(7*time.Second), deadline, time.Second)

	s.cancel()
	assert.ErrorIs(t, rctx.Err(), context.Canceled)
}

func TestRequestsAfterShutdownAnswerUnavailable(t *testing.T) {
	s := newTestService(t)
	owner := createUser(t, s, "fay@example.com", "Fay")

	s.cancel()

	assert.Equal(t, fasthttp.StatusServiceUnavailable, s.do("GET", "/api/posts", owner, "").Response.StatusCode())
	assert.Equal(t, fasthttp.StatusServiceUnavailable, s.do("POST", "/api/posts", owner, `{"content":"late"}`).Response.StatusCode())
}

func TestListPostsFarPastLastPage(t *testing.T) {
	s := newTestService(t)
	owner := createUser(t, s, "gil@example.com", "Gil")
	s.do("POST", "/api/posts", owner, `{"content":"only"}`)

	ctx := s.do("GET", "/api/posts?page=9223372036854775807&limit=10", owner, "")
	require.Equal(t, fasthttp.StatusOK, ctx.Response.StatusCode())

	page := decodeBody[types.PostsPage](t, ctx)
	assert.Empty(t, page.Data)
	assert.False(t, page.Pagination.HasNext)
	assert.Equal(t, 1, page.Pagination.TotalPages)
}
