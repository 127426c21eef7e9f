package server

import (
	"net/http"
	"slices"
	"strings"
)

// BasicRouter is a simple HTTP router implementing the [Router] interface.
//
// Paths are matched by [http.ServeMux]; each path keeps its own method table so
// one path can serve several methods and report them in the Allow header.
type BasicRouter struct {
	mux         *http.ServeMux
	middlewares []Middleware
	paths       map[string]map[string]http.Handler
}

// NewBasicRouter creates a new [BasicRouter] instance.
func NewBasicRouter() *BasicRouter {
	return &BasicRouter{
		mux:         http.NewServeMux(),
		middlewares: []Middleware{},
		paths:       map[string]map[string]http.Handler{},
	}
}

// Use adds [Middleware] to the [Router] instance's middleware stack, applied in the order it's added.
//
// Middleware must be added before routes; handlers are wrapped at registration.
func (r *BasicRouter) Use(middleware ...Middleware) {
	r.middlewares = append(r.middlewares, middleware...)
}

// Handle registers handler for method on path, wrapped with the registered middleware.
func (r *BasicRouter) Handle(method, path string, handler http.Handler) {
	method = strings.ToUpper(method)

	methods, ok := r.paths[path]
	if !ok {
		methods = map[string]http.Handler{}
		r.paths[path] = methods
		r.mux.Handle(path, r.Apply(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			if h, ok := methods[req.Method]; ok {
				h.ServeHTTP(w, req)
				return
			}
			w.Header().Set("Allow", strings.Join(sortedKeys(methods), ", "))
			writeFailure(w, http.StatusMethodNotAllowed, "Method not allowed")
		})))
	}
	methods[method] = handler
}

// Handler registers a custom Handler implementation for every path in [Handler.Routes], any method.
func (r *BasicRouter) Handler(handler Handler) {
	wrapped := r.Apply(handler)
	for _, route := range handler.Routes() {
		r.mux.Handle(route, wrapped)
	}
}

// NotFound registers handler for every path no other route matches.
func (r *BasicRouter) NotFound(handler http.Handler) {
	r.mux.Handle("/", r.Apply(handler))
}

// Routes lists the method routes as "METHOD path", sorted by path.
func (r *BasicRouter) Routes() []string {
	routes := []string{}
	for _, path := range sortedKeys(r.paths) {
		for _, method := range sortedKeys(r.paths[path]) {
			routes = append(routes, method+" "+path)
		}
	}
	return routes
}

// ServeHTTP implements [http.Handler] for the entire router.
func (r *BasicRouter) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.mux.ServeHTTP(w, req)
}

// Apply wraps a handler with all registered middleware, first added outermost.
func (r *BasicRouter) Apply(handler http.Handler) http.Handler {
	wrapped := handler
	for _, mw := range slices.Backward(r.middlewares) {
		wrapped = mw(wrapped)
	}
	return wrapped
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
