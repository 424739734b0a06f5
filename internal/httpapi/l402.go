package httpapi

import (
	"fmt"
	"net/http"

	"github.com/satring/gateway/internal/l402guard"
)

// requirePayment runs the L402 gate for a priced operation. It writes the
// 402 challenge or 401 rejection itself and returns false when the caller
// must stop; true means the operation may proceed.
func (d *Deps) requirePayment(w http.ResponseWriter, r *http.Request, amountSats int64, memo string) bool {
	result, err := d.Guard.Check(r.Context(), r.Header.Get("Authorization"), amountSats, memo)
	if err != nil {
		writeJSON(w, http.StatusBadGateway, errorBody{Detail: "Payment Required"})
		return false
	}

	switch result.Decision {
	case l402guard.Authorized:
		return true
	case l402guard.Challenge:
		w.Header().Set("WWW-Authenticate", fmt.Sprintf(`L402 macaroon="%s", invoice="%s"`, result.MacaroonB64, result.PaymentRequest))
		writeJSON(w, http.StatusPaymentRequired, errorBody{Detail: "Payment Required"})
		return false
	default:
		writeJSON(w, http.StatusUnauthorized, errorBody{Detail: result.RejectReason})
		return false
	}
}
