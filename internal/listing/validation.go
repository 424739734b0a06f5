package listing

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// Field length limits mirrored from the original directory's input
// validation. Exceeding any of these is a BadInput (422) error.
const (
	MaxName         = 200
	MaxURL          = 2000
	MaxDescription  = 4000
	MaxOwnerName    = 200
	MaxOwnerContact = 200
	MaxLogoURL      = 2000
	MaxReviewerName = 200
	MaxComment      = 2000
)

// ErrBadInput wraps field-level validation failures.
var ErrBadInput = errors.New("bad input")

func validateLength(field, value string, max int) error {
	if len(value) > max {
		return fmt.Errorf("%w: %s exceeds maximum length of %d characters", ErrBadInput, field, max)
	}
	return nil
}

// validateURLScheme rejects any URL whose scheme is not http or https,
// defending the read-side HTML/JSON boundary against stored javascript:/
// data: URIs.
func validateURLScheme(field, raw string) error {
	if raw == "" {
		return nil
	}
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("%w: %s is not a valid URL", ErrBadInput, field)
	}
	scheme := strings.ToLower(u.Scheme)
	if scheme != "http" && scheme != "https" {
		return fmt.Errorf("%w: %s must use http or https", ErrBadInput, field)
	}
	if u.Hostname() == "" {
		return fmt.Errorf("%w: %s must include a hostname", ErrBadInput, field)
	}
	return nil
}
