// Package httpapi wires the AccessPolicyRouter: the per-operation table
// binding each external operation to {free, L402-priced, edit-token
// required}, and dispatches to the gates below it.
package httpapi

import (
	"github.com/satring/gateway/internal/l402guard"
	"github.com/satring/gateway/internal/listing"
	"github.com/satring/gateway/internal/payments"
	"github.com/satring/gateway/internal/ratelimit"
	"github.com/satring/gateway/internal/store"
)

// Prices groups the per-operation L402 amounts read from configuration.
type Prices struct {
	Base   int64 // AUTH_PRICE_SATS: analytics, reputation
	Submit int64 // AUTH_SUBMIT_PRICE_SATS: create listing
	Review int64 // AUTH_REVIEW_PRICE_SATS: create rating
	Bulk   int64 // AUTH_BULK_PRICE_SATS: bulk export
}

// Deps are the router's wired dependencies.
type Deps struct {
	Listings   *listing.Service
	Guard      *l402guard.Guard
	Limiter    *ratelimit.Limiter
	Payments   *payments.Client
	Ledger     *store.PaymentLedger
	Prices     Prices
	BaseHost   string // host component of BASE_URL, for the CSRF check
}
