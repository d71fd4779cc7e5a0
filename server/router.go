package server

import (
	"strings"
	"sync"

	"github.com/valyala/fasthttp"

	"github.com/saiset-co/sai-social/types"
	"github.com/saiset-co/sai-social/utils"
)

var _ types.HTTPRouter = (*Router)(nil)

var methodIndex = map[string]uint8{
	"GET":     0,
	"POST":    1,
	"PUT":     2,
	"DELETE":  3,
	"PATCH":   4,
	"HEAD":    5,
	"OPTIONS": 6,
}

const (
	flagIsLeaf    uint8 = 1 << 0
	flagHasParam  uint8 = 1 << 1
	flagHasStatic uint8 = 1 << 2
)

type Middleware interface {
	Name() string
	Handle(ctx *fasthttp.RequestCtx, next types.FastHTTPHandler)
}

type routeNode struct {
	staticChildren map[string]*routeNode
	paramChild     *routeNode
	paramName      string
	methodMask     uint8
	handlers       [7]types.FastHTTPHandler
	flags          uint8
}

// Router matches static paths by map lookup and `{name}` segments through a
// trie. Matched parameters are stored as request user values.
type Router struct {
	root         *routeNode
	staticRoutes map[string]types.FastHTTPHandler
	staticPaths  map[string]uint8
	middlewares  []Middleware
	mu           sync.RWMutex
}

func NewRouter(middlewares ...Middleware) *Router {
	return &Router{
		root:         newRouteNode(),
		staticRoutes: make(map[string]types.FastHTTPHandler),
		staticPaths:  make(map[string]uint8),
		middlewares:  middlewares,
	}
}

func newRouteNode() *routeNode {
	return &routeNode{staticChildren: make(map[string]*routeNode)}
}

func (r *Router) Use(middlewares ...Middleware) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.middlewares = append(r.middlewares, middlewares...)
}

// Add ignores unsupported methods and nil handlers.
func (r *Router) Add(method, path string, handler types.FastHTTPHandler) {
	methodIdx, exists := methodIndex[method]
	if !exists || handler == nil {
		return
	}

	path = normalizePath(path)

	r.mu.Lock()
	defer r.mu.Unlock()

	if !strings.Contains(path, "{") {
		r.staticRoutes[method+":"+path] = handler
		r.staticPaths[path] |= 1 << methodIdx
		return
	}

	r.addToTrie(methodIdx, path, handler)
}

func (r *Router) GET(path string, handler types.FastHTTPHandler) {
	r.Add("GET", path, handler)
}

func (r *Router) POST(path string, handler types.FastHTTPHandler) {
	r.Add("POST", path, handler)
}

func (r *Router) PUT(path string, handler types.FastHTTPHandler) {
	r.Add("PUT", path, handler)
}

func (r *Router) DELETE(path string, handler types.FastHTTPHandler) {
	r.Add("DELETE", path, handler)
}

func (r *Router) Group(prefix string) *RouteGroup {
	return &RouteGroup{router: r, prefix: strings.TrimRight(prefix, "/")}
}

func (r *Router) Handler() fasthttp.RequestHandler {
	return func(ctx *fasthttp.RequestCtx) {
		r.mu.RLock()
		middlewares := r.middlewares
		r.mu.RUnlock()

		final := r.dispatch
		for i := len(middlewares) - 1; i >= 0; i-- {
			mw, next := middlewares[i], final
			final = func(ctx *fasthttp.RequestCtx) {
				mw.Handle(ctx, next)
			}
		}

		final(ctx)
	}
}

func (r *Router) dispatch(ctx *fasthttp.RequestCtx) {
	method := utils.BytesToString(ctx.Method())
	path := normalizePath(string(ctx.Path()))

	methodIdx, exists := methodIndex[method]
	if !exists {
		utils.WriteMessage(ctx, fasthttp.StatusMethodNotAllowed, "error", "Method not allowed")
		return
	}

	r.mu.RLock()
	handler := r.staticRoutes[method+":"+path]
	staticMask := r.staticPaths[path]
	var params map[string]string
	var mask uint8
	if handler == nil {
		handler, params, mask = r.findInTrie(path, methodIdx)
	}
	r.mu.RUnlock()

	if handler == nil {
		if staticMask != 0 || mask != 0 {
			utils.WriteMessage(ctx, fasthttp.StatusMethodNotAllowed, "error", "Method not allowed")
			return
		}
		utils.WriteMessage(ctx, fasthttp.StatusNotFound, "error", "Not found")
		return
	}

	for name, value := range params {
		ctx.SetUserValue(name, value)
	}

	handler(ctx)
}

// Param returns a path parameter captured by the router.
func Param(ctx *fasthttp.RequestCtx, name string) string {
	value, _ := ctx.UserValue(name).(string)
	return value
}

func (r *Router) addToTrie(methodIdx uint8, path string, handler types.FastHTTPHandler) {
	node := r.root
	segments := parsePath(path)

	for i, segment := range segments {
		if len(segment) > 2 && segment[0] == '{' && segment[len(segment)-1] == '}' {
			if node.paramChild == nil {
				node.paramChild = newRouteNode()
				node.paramChild.paramName = segment[1 : len(segment)-1]
				node.flags |= flagHasParam
			}
			node = node.paramChild
		} else {
			child, exists := node.staticChildren[segment]
			if !exists {
				child = newRouteNode()
				node.staticChildren[segment] = child
				node.flags |= flagHasStatic
			}
			node = child
		}

		if i == len(segments)-1 {
			node.flags |= flagIsLeaf
		}
	}

	node.handlers[methodIdx] = handler
	node.methodMask |= 1 << methodIdx
}

// findInTrie returns the handler for the method, the captured params and
// the method mask of the matched leaf, so callers can tell 404 from 405.
func (r *Router) findInTrie(path string, methodIdx uint8) (types.FastHTTPHandler, map[string]string, uint8) {
	params := make(map[string]string, 2)
	node := r.findInNode(r.root, parsePath(path), 0, params)
	if node == nil {
		return nil, nil, 0
	}

	if node.methodMask&(1<<methodIdx) == 0 {
		return nil, nil, node.methodMask
	}

	return node.handlers[methodIdx], params, node.methodMask
}

func (r *Router) findInNode(node *routeNode, segments []string, index int, params map[string]string) *routeNode {
	if index >= len(segments) {
		if node.flags&flagIsLeaf != 0 {
			return node
		}
		return nil
	}

	segment := segments[index]

	if node.flags&flagHasStatic != 0 {
		if child, exists := node.staticChildren[segment]; exists {
			if found := r.findInNode(child, segments, index+1, params); found != nil {
				return found
			}
		}
	}

	if node.flags&flagHasParam != 0 && node.paramChild != nil {
		params[node.paramChild.paramName] = segment
		if found := r.findInNode(node.paramChild, segments, index+1, params); found != nil {
			return found
		}
		delete(params, node.paramChild.paramName)
	}

	return nil
}

func parsePath(path string) []string {
	trimmed := strings.Trim(path, "/")
	if trimmed == "" {
		return nil
	}
	return strings.Split(trimmed, "/")
}

func normalizePath(path string) string {
	if path == "" {
		return "/"
	}
	if path[0] != '/' {
		path = "/" + path
	}
	if len(path) > 1 {
		path = strings.TrimRight(path, "/")
	}
	return path
}
