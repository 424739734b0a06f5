// Package l402guard implements the request-side L402 policy: decide
// whether an incoming request satisfies the paywall, or issue a fresh
// challenge.
package l402guard

import (
	"context"
	"fmt"
	"strings"

	"github.com/satring/gateway/internal/macaroon"
	"github.com/satring/gateway/internal/payments"
	"github.com/satring/gateway/internal/store"
)

// Decision is the guard's verdict on an incoming request.
type Decision int

const (
	Authorized Decision = iota
	Challenge
	Rejected
)

// Result carries everything the HTTP boundary needs to respond.
type Result struct {
	Decision       Decision
	MacaroonB64    string
	PaymentRequest string
	// RejectReason is one of "Invalid L402 token format" or
	// "Invalid L402 credentials", matching §7's error taxonomy.
	RejectReason string
}

const testModeKey = "test-mode"

// Guard is the L402Guard: parameterized by the process root key and backed
// by a PaymentsClient and a PaymentConsumptionLedger.
type Guard struct {
	rootKey string
	clients *payments.Client
	ledger  *store.PaymentLedger
}

func New(rootKey string, clients *payments.Client, ledger *store.PaymentLedger) *Guard {
	return &Guard{rootKey: rootKey, clients: clients, ledger: ledger}
}

// IsTestMode reports whether the gateway's root key disables all L402
// gates. Startup logs a warning when this is true (§9).
func (g *Guard) IsTestMode() bool {
	return g.rootKey == testModeKey
}

// Check evaluates authHeader against a priced operation (amountSats, memo).
// A non-nil error means a challenge could not be minted (the payments
// backend failed or the macaroon could not be built) or the ledger could
// not record the payment; the caller should surface a 5xx.
func (g *Guard) Check(ctx context.Context, authHeader string, amountSats int64, memo string) (Result, error) {
	if g.IsTestMode() {
		return Result{Decision: Authorized}, nil
	}

	if authHeader == "" {
		return g.challenge(ctx, amountSats, memo)
	}

	macaroonB64, preimageHex, ok := parseAuthHeader(authHeader)
	if !ok {
		return Result{Decision: Rejected, RejectReason: "Invalid L402 token format"}, nil
	}

	if !macaroon.Verify([]byte(g.rootKey), macaroonB64, preimageHex) {
		return Result{Decision: Rejected, RejectReason: "Invalid L402 credentials"}, nil
	}

	paymentHash, ok := macaroon.PaymentHash(macaroonB64)
	if !ok {
		return Result{Decision: Rejected, RejectReason: "Invalid L402 credentials"}, nil
	}

	admitted, err := g.ledger.Admit(ctx, paymentHash)
	if err != nil {
		return Result{}, fmt.Errorf("admit payment: %w", err)
	}
	if !admitted {
		return Result{Decision: Rejected, RejectReason: "Invalid L402 credentials"}, nil
	}

	return Result{Decision: Authorized}, nil
}

func (g *Guard) challenge(ctx context.Context, amountSats int64, memo string) (Result, error) {
	inv, err := g.clients.CreateInvoice(ctx, amountSats, memo)
	if err != nil {
		return Result{}, err
	}

	macB64, err := macaroon.Mint([]byte(g.rootKey), inv.PaymentHash)
	if err != nil {
		return Result{}, fmt.Errorf("mint macaroon: %w", err)
	}

	return Result{
		Decision:       Challenge,
		MacaroonB64:    macB64,
		PaymentRequest: inv.PaymentRequest,
	}, nil
}

// parseAuthHeader accepts "L402 <mac>:<preimage>" or "LSAT <mac>:<preimage>".
func parseAuthHeader(header string) (macaroonB64, preimageHex string, ok bool) {
	rest, found := strings.CutPrefix(header, "L402 ")
	if !found {
		rest, found = strings.CutPrefix(header, "LSAT ")
	}
	if !found {
		return "", "", false
	}

	idx := strings.LastIndex(rest, ":")
	if idx < 0 {
		return "", "", false
	}

	return rest[:idx], rest[idx+1:], true
}
