package server

import (
	"bytes"
	"strconv"
	"strings"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/saiset-co/sai-social/types"
	"github.com/saiset-co/sai-social/utils"
)

var (
	trueBytes        = []byte("true")
	asteriskBytes    = []byte("*")
	optionsBytes     = []byte("OPTIONS")
	varyOriginStr    = []byte("Origin")
	varyPreflightStr = []byte("Origin, Access-Control-Request-Method, Access-Control-Request-Headers")
)

type CORSMiddleware struct {
	logger            types.Logger
	allowsAll         bool
	allowedOrigins    map[string]bool
	wildcardDomains   []string
	allowedMethodsStr []byte
	allowedHeadersStr []byte
	exposedHeadersStr []byte
	maxAgeStr         []byte
	allowCredentials  bool
}

// NewCORSMiddleware precompiles the origin rules. `*.example.com` entries
// match any subdomain of example.com.
func NewCORSMiddleware(config *types.CORSConfig, logger types.Logger) *CORSMiddleware {
	c := &CORSMiddleware{
		logger:            logger,
		allowsAll:         len(config.AllowedOrigins) == 1 && config.AllowedOrigins[0] == "*",
		allowedOrigins:    make(map[string]bool, len(config.AllowedOrigins)),
		allowedMethodsStr: []byte(strings.Join(config.AllowedMethods, ", ")),
		allowedHeadersStr: []byte(strings.Join(config.AllowedHeaders, ", ")),
		exposedHeadersStr: []byte(strings.Join(config.ExposedHeaders, ", ")),
		maxAgeStr:         []byte(strconv.Itoa(config.MaxAge)),
		allowCredentials:  config.AllowCredentials,
	}

	if !c.allowsAll {
		for _, origin := range config.AllowedOrigins {
			if strings.HasPrefix(origin, "*.") {
				c.wildcardDomains = append(c.wildcardDomains, strings.TrimPrefix(origin, "*."))
			} else {
				c.allowedOrigins[origin] = true
			}
		}
	}

	return c
}

func (c *CORSMiddleware) Name() string { return "cors" }

func (c *CORSMiddleware) Handle(ctx *fasthttp.RequestCtx, next types.FastHTTPHandler) {
	origin := ctx.Request.Header.Peek("Origin")
	if len(origin) == 0 {
		next(ctx)
		return
	}

	if !c.isOriginAllowed(origin) {
		c.logger.Warn("CORS request blocked",
			zap.ByteString("origin", origin),
			zap.ByteString("method", ctx.Method()),
			zap.ByteString("path", ctx.Path()))

		utils.WriteMessage(ctx, fasthttp.StatusForbidden, "error", "Origin not allowed")
		return
	}

	if bytes.Equal(ctx.Method(), optionsBytes) {
		c.writePreflight(ctx, origin)
		return
	}

	c.setAllowOrigin(ctx, origin)

	if len(c.exposedHeadersStr) > 0 {
		ctx.Response.Header.SetBytesV("Access-Control-Expose-Headers", c.exposedHeadersStr)
	}

	ctx.Response.Header.AddBytesV("Vary", varyOriginStr)
	next(ctx)
}

func (c *CORSMiddleware) isOriginAllowed(origin []byte) bool {
	if c.allowsAll {
		return true
	}

	originStr := string(origin)
	if c.allowedOrigins[originStr] {
		return true
	}

	host := originStr
	if i := strings.Index(host, "://"); i >= 0 {
		host = host[i+3:]
	}

	for _, domain := range c.wildcardDomains {
		if strings.HasSuffix(host, "."+domain) {
			return true
		}
	}

	return false
}

func (c *CORSMiddleware) setAllowOrigin(ctx *fasthttp.RequestCtx, origin []byte) {
	if c.allowsAll && !c.allowCredentials {
		ctx.Response.Header.SetBytesV("Access-Control-Allow-Origin", asteriskBytes)
	} else {
		ctx.Response.Header.SetBytesV("Access-Control-Allow-Origin", origin)
	}

	if c.allowCredentials {
		ctx.Response.Header.SetBytesV("Access-Control-Allow-Credentials", trueBytes)
	}
}

func (c *CORSMiddleware) writePreflight(ctx *fasthttp.RequestCtx, origin []byte) {
	ctx.SetStatusCode(fasthttp.StatusNoContent)
	c.setAllowOrigin(ctx, origin)

	ctx.Response.Header.SetBytesV("Access-Control-Allow-Methods", c.allowedMethodsStr)
	ctx.Response.Header.SetBytesV("Access-Control-Allow-Headers", c.allowedHeadersStr)
	ctx.Response.Header.SetBytesV("Access-Control-Max-Age", c.maxAgeStr)
	ctx.Response.Header.SetBytesV("Vary", varyPreflightStr)
	ctx.SetBody(nil)
}
