package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/satring/gateway/internal/listing"
	"github.com/satring/gateway/internal/ratelimit"
	"github.com/satring/gateway/internal/recovery"
	"github.com/satring/gateway/internal/store"
)

type pageResponse struct {
	Items    interface{} `json:"items"`
	Total    int         `json:"total"`
	Page     int         `json:"page"`
	PageSize int         `json:"page_size"`
}

func parsePage(r *http.Request) (page, pageSize int) {
	page, _ = strconv.Atoi(r.URL.Query().Get("page"))
	pageSize, _ = strconv.Atoi(r.URL.Query().Get("page_size"))
	return page, pageSize
}

// handleList serves GET /services.
func (d *Deps) handleList(w http.ResponseWriter, r *http.Request) {
	page, pageSize := parsePage(r)
	items, total, err := d.Listings.List(r.Context(), r.URL.Query().Get("category"), page, pageSize)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, errorBody{Detail: "internal error"})
		return
	}
	writeJSON(w, http.StatusOK, pageResponse{Items: items, Total: total, Page: page, PageSize: pageSize})
}

// handleSearch serves GET /search.
func (d *Deps) handleSearch(w http.ResponseWriter, r *http.Request) {
	if !d.Limiter.AllowSearch(sourceIP(r)) {
		writeError(w, errRateLimited)
		return
	}
	allowed, err := d.Limiter.Allow(r.Context(), ratelimit.SearchAPI, sourceIP(r))
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, errorBody{Detail: "internal error"})
		return
	}
	if !allowed {
		writeError(w, errRateLimited)
		return
	}

	page, pageSize := parsePage(r)
	items, total, err := d.Listings.Search(r.Context(), r.URL.Query().Get("q"), page, pageSize)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, errorBody{Detail: "internal error"})
		return
	}
	writeJSON(w, http.StatusOK, pageResponse{Items: items, Total: total, Page: page, PageSize: pageSize})
}

// handleGet serves GET /services/{slug}.
func (d *Deps) handleGet(w http.ResponseWriter, r *http.Request) {
	l, err := d.Listings.Get(r.Context(), r.PathValue("slug"))
	if err != nil {
		writeListingNotFoundAware(w, err)
		return
	}
	writeJSON(w, http.StatusOK, l)
}

// handleListRatings serves GET /services/{slug}/ratings.
func (d *Deps) handleListRatings(w http.ResponseWriter, r *http.Request) {
	ratings, err := d.Listings.ListRatings(r.Context(), r.PathValue("slug"))
	if err != nil {
		writeListingNotFoundAware(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ratings)
}

// handleCreate serves POST /services, priced at AUTH_SUBMIT_PRICE_SATS.
func (d *Deps) handleCreate(w http.ResponseWriter, r *http.Request) {
	if !d.requirePayment(w, r, d.Prices.Submit, "list a service") {
		return
	}

	var in listing.CreateListingInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, errBadInput("malformed request body"))
		return
	}

	l, token, err := d.Listings.Create(r.Context(), in)
	if err != nil {
		writeCreateErr(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, struct {
		*store.Listing
		EditToken string `json:"edit_token,omitempty"`
	}{Listing: l, EditToken: token})
}

// handleCreateRating serves POST /services/{slug}/ratings, priced at
// AUTH_REVIEW_PRICE_SATS.
func (d *Deps) handleCreateRating(w http.ResponseWriter, r *http.Request) {
	if !d.requirePayment(w, r, d.Prices.Review, "rate a service") {
		return
	}

	var in listing.CreateRatingInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, errBadInput("malformed request body"))
		return
	}

	rating, err := d.Listings.CreateRating(r.Context(), r.PathValue("slug"), in)
	if err != nil {
		writeCreateErr(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, rating)
}

// handleBulkExport serves GET /services/bulk, priced at AUTH_BULK_PRICE_SATS.
func (d *Deps) handleBulkExport(w http.ResponseWriter, r *http.Request) {
	if !d.requirePayment(w, r, d.Prices.Bulk, "bulk export") {
		return
	}
	items, err := d.Listings.BulkExport(r.Context())
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, errorBody{Detail: "internal error"})
		return
	}
	writeJSON(w, http.StatusOK, items)
}

// handleAnalytics serves GET /analytics, priced at AUTH_PRICE_SATS.
func (d *Deps) handleAnalytics(w http.ResponseWriter, r *http.Request) {
	if !d.requirePayment(w, r, d.Prices.Base, "view analytics") {
		return
	}
	result, err := d.Listings.Analytics(r.Context())
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, errorBody{Detail: "internal error"})
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// handleReputation serves GET /services/{slug}/reputation, priced at
// AUTH_PRICE_SATS.
func (d *Deps) handleReputation(w http.ResponseWriter, r *http.Request) {
	if !d.requirePayment(w, r, d.Prices.Base, "view reputation") {
		return
	}
	result, err := d.Listings.Reputation(r.Context(), r.PathValue("slug"))
	if err != nil {
		writeListingNotFoundAware(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// handleEdit serves PATCH /services/{slug}, gated on X-Edit-Token.
func (d *Deps) handleEdit(w http.ResponseWriter, r *http.Request) {
	var in listing.EditInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, errBadInput("malformed request body"))
		return
	}

	l, err := d.Listings.Edit(r.Context(), r.PathValue("slug"), r.Header.Get("X-Edit-Token"), in)
	if err != nil {
		writeEditErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, l)
}

// handleDelete serves DELETE /services/{slug}, gated on X-Edit-Token.
func (d *Deps) handleDelete(w http.ResponseWriter, r *http.Request) {
	err := d.Listings.Delete(r.Context(), r.PathValue("slug"), r.Header.Get("X-Edit-Token"))
	if err != nil {
		writeEditErr(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleRecoverGenerate serves POST /services/{slug}/recover/generate.
func (d *Deps) handleRecoverGenerate(w http.ResponseWriter, r *http.Request) {
	result, err := d.Listings.IssueRecovery(r.Context(), r.PathValue("slug"))
	if err != nil {
		writeListingNotFoundAware(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// handleRecoverVerify serves POST /services/{slug}/recover/verify.
func (d *Deps) handleRecoverVerify(w http.ResponseWriter, r *http.Request) {
	result, err := d.Listings.VerifyRecovery(r.Context(), r.PathValue("slug"))
	if err != nil {
		target := r.PathValue("slug")
		if errors.Is(err, recovery.ErrUnreachable) {
			if l, gerr := d.Listings.Get(r.Context(), target); gerr == nil {
				target = l.URL
			}
		}
		writeRecoveryErr(w, target, err)
		return
	}
	writeJSON(w, http.StatusOK, struct {
		NewToken string `json:"new_token"`
		Affected int    `json:"affected_count"`
	}{NewToken: result.NewTokenPlaintext, Affected: len(result.Affected)})
}

// handlePaymentStatus serves GET /payment-status/{hash}.
func (d *Deps) handlePaymentStatus(w http.ResponseWriter, r *http.Request) {
	paid := d.Payments.IsPaid(r.Context(), r.PathValue("hash"))
	writeJSON(w, http.StatusOK, struct {
		Paid bool `json:"paid"`
	}{Paid: paid})
}

func writeListingNotFoundAware(w http.ResponseWriter, err error) {
	if errors.Is(err, listing.ErrListingNotFound) {
		writeError(w, errServiceNotFound)
		return
	}
	writeJSON(w, http.StatusInternalServerError, errorBody{Detail: "internal error"})
}

func writeCreateErr(w http.ResponseWriter, err error) {
	if errors.Is(err, listing.ErrListingNotFound) {
		writeError(w, errServiceNotFound)
		return
	}
	if errors.Is(err, listing.ErrBadInput) {
		writeError(w, errBadInput(err.Error()))
		return
	}
	writeJSON(w, http.StatusInternalServerError, errorBody{Detail: "internal error"})
}

func writeEditErr(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, listing.ErrListingNotFound):
		writeError(w, errServiceNotFound)
	case errors.Is(err, listing.ErrInvalidEditToken):
		writeError(w, errInvalidEditToken)
	case errors.Is(err, listing.ErrBadInput):
		writeError(w, errBadInput(err.Error()))
	default:
		writeJSON(w, http.StatusInternalServerError, errorBody{Detail: "internal error"})
	}
}

func writeRecoveryErr(w http.ResponseWriter, url string, err error) {
	switch {
	case errors.Is(err, listing.ErrListingNotFound):
		writeError(w, errServiceNotFound)
	case errors.Is(err, recovery.ErrNoActiveChallenge):
		writeError(w, errNoActiveChallenge)
	case errors.Is(err, recovery.ErrChallengeMismatch):
		writeError(w, errChallengeMismatch)
	case errors.Is(err, recovery.ErrUnreachableOrPrivate):
		writeError(w, errPrivateOrReserved)
	case errors.Is(err, recovery.ErrUnreachable):
		writeError(w, errUnreachable(url))
	default:
		writeJSON(w, http.StatusInternalServerError, errorBody{Detail: "internal error"})
	}
}
