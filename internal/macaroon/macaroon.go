// Package macaroon mints and verifies the single-caveat L402 macaroons that
// bind a request's credentials to a Lightning payment_hash.
package macaroon

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"strings"

	"gopkg.in/macaroon.v2"
)

const location = "satring"

const caveatPrefix = "payment_hash = "

// Mint builds a macaroon identified by paymentHash, carrying exactly one
// first-party caveat of the form "payment_hash = <hex>", signed under
// rootKey, and returns it base64-encoded.
func Mint(rootKey []byte, paymentHash string) (string, error) {
	mac, err := macaroon.New([]byte(rootKey), []byte(paymentHash), location, macaroon.LatestVersion)
	if err != nil {
		return "", fmt.Errorf("mint macaroon: %w", err)
	}

	caveat := caveatPrefix + paymentHash
	if err := mac.AddFirstPartyCaveat([]byte(caveat)); err != nil {
		return "", fmt.Errorf("add caveat: %w", err)
	}

	raw, err := mac.MarshalBinary()
	if err != nil {
		return "", fmt.Errorf("marshal macaroon: %w", err)
	}

	return base64.StdEncoding.EncodeToString(raw), nil
}

// Verify checks that macaroonB64 carries a single payment_hash caveat,
// that its signature checks out under rootKey, and that preimageHex hashes
// to that caveat's payment_hash. It performs no I/O.
func Verify(rootKey []byte, macaroonB64, preimageHex string) bool {
	raw, err := base64.StdEncoding.DecodeString(macaroonB64)
	if err != nil {
		return false
	}

	mac := &macaroon.Macaroon{}
	if err := mac.UnmarshalBinary(raw); err != nil {
		return false
	}

	paymentHash, ok := paymentHashCaveat(mac)
	if !ok {
		return false
	}

	preimage, err := hex.DecodeString(preimageHex)
	if err != nil {
		return false
	}
	want, err := hex.DecodeString(paymentHash)
	if err != nil {
		return false
	}
	got := sha256.Sum256(preimage)
	if len(want) != len(got) || subtle.ConstantTimeCompare(got[:], want) != 1 {
		return false
	}

	rawCaveats, err := mac.VerifySignature([]byte(rootKey), nil)
	if err != nil {
		return false
	}
	if len(rawCaveats) != 1 || string(rawCaveats[0]) != caveatPrefix+paymentHash {
		return false
	}

	return true
}

// PaymentHash decodes macaroonB64 and extracts its payment_hash caveat, for
// callers that only need the identifier (e.g. the ledger admission step)
// after Verify has already returned true. It does not check the signature.
func PaymentHash(macaroonB64 string) (string, bool) {
	raw, err := base64.StdEncoding.DecodeString(macaroonB64)
	if err != nil {
		return "", false
	}
	mac := &macaroon.Macaroon{}
	if err := mac.UnmarshalBinary(raw); err != nil {
		return "", false
	}
	return paymentHashCaveat(mac)
}

func paymentHashCaveat(mac *macaroon.Macaroon) (string, bool) {
	var found string
	count := 0
	for _, cav := range mac.Caveats() {
		id := string(cav.Id)
		if strings.HasPrefix(id, caveatPrefix) {
			found = strings.TrimPrefix(id, caveatPrefix)
			count++
		}
	}
	if count != 1 {
		return "", false
	}
	return found, true
}
