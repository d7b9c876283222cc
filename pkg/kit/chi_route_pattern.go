package kit

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// ChiRoutePatternOrPath labels a request by its matched chi pattern
// (e.g. /products/{id}) so metrics do not explode per id.
func ChiRoutePatternOrPath(r *http.Request) string {
	rc := chi.RouteContext(r.Context())
	if rc == nil {
		return r.URL.Path
	}
	if rp := rc.RoutePattern(); rp != "" {
		return rp
	}
	return r.URL.Path
}
