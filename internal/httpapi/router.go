package httpapi

import (
	"net/http"

	"github.com/satring/gateway/internal/ratelimit"
)

// NewRouter builds the AccessPolicyRouter: every external operation bound to
// its gate per the table. The stdlib ServeMux (Go 1.22+) resolves
// "/services/bulk" against the more specific literal before the
// "/services/{slug}" wildcard regardless of registration order, so "bulk" is
// never mistaken for a slug.
func NewRouter(d *Deps) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /services", d.handleList)
	mux.HandleFunc("GET /services/bulk", d.handleBulkExport)
	mux.HandleFunc("GET /services/{slug}", d.handleGet)
	mux.HandleFunc("GET /services/{slug}/ratings", d.handleListRatings)
	mux.HandleFunc("GET /services/{slug}/reputation", d.handleReputation)
	mux.HandleFunc("GET /search", d.handleSearch)
	mux.HandleFunc("GET /analytics", d.handleAnalytics)
	mux.HandleFunc("GET /payment-status/{hash}", d.withRateLimit(ratelimit.PaymentStatus, d.handlePaymentStatus))

	mux.HandleFunc("POST /services", d.withRateLimit(ratelimit.Submit, d.handleCreate))
	mux.HandleFunc("POST /services/{slug}/ratings", d.withRateLimit(ratelimit.Review, d.handleCreateRating))
	mux.HandleFunc("POST /services/{slug}/recover/generate", d.withRateLimit(ratelimit.Recover, d.handleRecoverGenerate))
	mux.HandleFunc("POST /services/{slug}/recover/verify", d.withRateLimit(ratelimit.Recover, d.handleRecoverVerify))

	mux.HandleFunc("PATCH /services/{slug}", d.withRateLimit(ratelimit.Edit, d.handleEdit))
	mux.HandleFunc("DELETE /services/{slug}", d.withRateLimit(ratelimit.Delete, d.handleDelete))

	return d.withCSRF(mux)
}

// withCSRF enforces the Origin-host-equality check ahead of every request.
func (d *Deps) withCSRF(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := d.csrfCheck(r); err != nil {
			writeError(w, err)
			return
		}
		next.ServeHTTP(w, r)
	})
}
