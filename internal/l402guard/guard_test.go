package l402guard

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseAuthHeader_L402Scheme(t *testing.T) {
	mac, preimage, ok := parseAuthHeader("L402 bWFjYXJvb24=:deadbeef")
	assert.True(t, ok)
	assert.Equal(t, "bWFjYXJvb24=", mac)
	assert.Equal(t, "deadbeef", preimage)
}

func TestParseAuthHeader_LSATScheme(t *testing.T) {
	mac, preimage, ok := parseAuthHeader("LSAT bWFjYXJvb24=:deadbeef")
	assert.True(t, ok)
	assert.Equal(t, "bWFjYXJvb24=", mac)
	assert.Equal(t, "deadbeef", preimage)
}

func TestParseAuthHeader_MissingColonFails(t *testing.T) {
	_, _, ok := parseAuthHeader("L402 onlyonepart")
	assert.False(t, ok)
}

func TestParseAuthHeader_UnknownSchemeFails(t *testing.T) {
	_, _, ok := parseAuthHeader("Bearer something:else")
	assert.False(t, ok)
}

func TestParseAuthHeader_MacaroonContainingColonUsesLastColon(t *testing.T) {
	// base64 payloads never contain ':', but the split must still favor the
	// last colon so an accidental one in transport doesn't truncate the
	// preimage.
	mac, preimage, ok := parseAuthHeader("L402 part-a:part-b:deadbeef")
	assert.True(t, ok)
	assert.Equal(t, "part-a:part-b", mac)
	assert.Equal(t, "deadbeef", preimage)
}

func TestIsTestMode(t *testing.T) {
	g := New("test-mode", nil, nil)
	assert.True(t, g.IsTestMode())

	g2 := New("a-real-secret", nil, nil)
	assert.False(t, g2.IsTestMode())
}
