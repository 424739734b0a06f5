package listing

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateLength_WithinLimitPasses(t *testing.T) {
	assert.NoError(t, validateLength("name", "hello", MaxName))
}

func TestValidateLength_ExceedsLimitFails(t *testing.T) {
	err := validateLength("name", strings.Repeat("a", MaxName+1), MaxName)
	if assert.Error(t, err) {
		assert.ErrorIs(t, err, ErrBadInput)
		assert.Contains(t, err.Error(), "name")
	}
}

func TestValidateURLScheme_EmptyAllowed(t *testing.T) {
	assert.NoError(t, validateURLScheme("logo_url", ""))
}

func TestValidateURLScheme_HTTPAndHTTPSAllowed(t *testing.T) {
	assert.NoError(t, validateURLScheme("url", "http://example.com/mcp"))
	assert.NoError(t, validateURLScheme("url", "https://example.com/mcp"))
}

func TestValidateURLScheme_RejectsJavascriptURI(t *testing.T) {
	err := validateURLScheme("logo_url", "javascript:alert(1)")
	if assert.Error(t, err) {
		assert.ErrorIs(t, err, ErrBadInput)
	}
}

func TestValidateURLScheme_RejectsDataURI(t *testing.T) {
	err := validateURLScheme("logo_url", "data:text/html,<script>alert(1)</script>")
	assert.Error(t, err)
}

func TestValidateURLScheme_RejectsMissingHostname(t *testing.T) {
	err := validateURLScheme("url", "https:///path")
	assert.Error(t, err)
}
