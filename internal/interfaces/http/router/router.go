package router

import (
	"github.com/gin-gonic/gin"
)

// Route is a single method/path binding inside a Group
type Route struct {
	Method   string
	Path     string
	Handlers []gin.HandlerFunc
}

// Group is a set of routes sharing a path prefix and middleware. Nested
// groups inherit the parent's middleware; their own middleware does not leak
// upward.
type Group struct {
	Name       string
	Prefix     string
	Middleware []gin.HandlerFunc
	Routes     []Route
	Groups     []Group
}

// Mount registers the group and its nested groups under rg
func (g Group) Mount(rg *gin.RouterGroup) {
	group := rg.Group(g.Prefix, compact(g.Middleware...)...)
	for _, route := range g.Routes {
		group.Handle(route.Method, route.Path, route.Handlers...)
	}
	for _, child := range g.Groups {
		child.Mount(group)
	}
}

// Router mounts groups under a versioned /api prefix
type Router struct {
	engine     *gin.Engine
	apiVersion string
	groups     []Group
}

// RouterOption configures a Router
type RouterOption func(*Router)

// WithAPIVersion changes the version segment of the /api prefix (default v1)
func WithAPIVersion(version string) RouterOption {
	return func(r *Router) { r.apiVersion = version }
}

// NewRouter creates a Router for engine
func NewRouter(engine *gin.Engine, opts ...RouterOption) *Router {
	r := &Router{engine: engine, apiVersion: "v1"}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Mount registers groups under /api/<version> and remembers them for Groups
func (r *Router) Mount(groups ...Group) *Router {
	api := r.engine.Group("/api/" + r.apiVersion)
	for _, g := range groups {
		g.Mount(api)
	}
	r.groups = append(r.groups, groups...)
	return r
}

// Groups returns the mounted top-level groups
func (r *Router) Groups() []Group {
	return r.groups
}

func compact(handlers ...gin.HandlerFunc) []gin.HandlerFunc {
	out := make([]gin.HandlerFunc, 0, len(handlers))
	for _, h := range handlers {
		if h != nil {
			out = append(out, h)
		}
	}
	return out
}
