package server

import (
	"net/http"
	"strings"
)

// MethodRouter maps HTTP methods to their handlers for routes that serve
// more than one method, such as /chat (POST submit, GET list)
type MethodRouter map[string]http.HandlerFunc

// RouteByMethod dispatches on the request method. Unmatched methods get
// a 405 carrying an Allow header listing what the route supports.
func RouteByMethod(w http.ResponseWriter, r *http.Request, routes MethodRouter) {
	handler, ok := routes[r.Method]
	if !ok {
		allowed := make([]string, 0, len(routes))
		for method := range routes {
			allowed = append(allowed, method)
		}
		w.Header().Set("Allow", strings.Join(allowed, ", "))
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	handler(w, r)
}
