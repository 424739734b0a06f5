package queue

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProbeListingMessage_ToJSON(t *testing.T) {
	msg := &ProbeListingMessage{
		ListingID: "550e8400-e29b-41d4-a716-446655440000",
		URL:       "https://example.com/mcp",
	}

	data, err := msg.ToJSON()
	require.NoError(t, err)
	assert.NotEmpty(t, data)

	var result map[string]interface{}
	err = json.Unmarshal(data, &result)
	require.NoError(t, err)
	assert.Equal(t, "550e8400-e29b-41d4-a716-446655440000", result["listing_id"])
	assert.Equal(t, "https://example.com/mcp", result["url"])
}

func TestFromJSONProbeListing_Success(t *testing.T) {
	jsonData := []byte(`{
		"listing_id": "550e8400-e29b-41d4-a716-446655440000",
		"url": "https://example.com/mcp"
	}`)

	msg, err := FromJSONProbeListing(jsonData)
	require.NoError(t, err)
	assert.Equal(t, "550e8400-e29b-41d4-a716-446655440000", msg.ListingID)
	assert.Equal(t, "https://example.com/mcp", msg.URL)
}

func TestFromJSONProbeListing_InvalidJSON(t *testing.T) {
	msg, err := FromJSONProbeListing([]byte(`invalid json`))
	assert.Error(t, err)
	assert.Nil(t, msg)
	assert.Contains(t, err.Error(), "failed to unmarshal")
}

func TestFromJSONProbeListing_ValidationErrors(t *testing.T) {
	tests := []struct {
		name        string
		jsonData    string
		expectError string
	}{
		{
			name:        "missing listing_id",
			jsonData:    `{"url": "https://example.com"}`,
			expectError: "listing_id is required",
		},
		{
			name:        "missing url",
			jsonData:    `{"listing_id": "123"}`,
			expectError: "url is required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg, err := FromJSONProbeListing([]byte(tt.jsonData))
			assert.Error(t, err)
			assert.Nil(t, msg)
			assert.Contains(t, err.Error(), tt.expectError)
		})
	}
}

func TestProbeListingMessage_RoundTrip(t *testing.T) {
	original := &ProbeListingMessage{
		ListingID: "550e8400-e29b-41d4-a716-446655440000",
		URL:       "https://example.com/mcp",
	}

	data, err := original.ToJSON()
	require.NoError(t, err)

	msg, err := FromJSONProbeListing(data)
	require.NoError(t, err)

	assert.Equal(t, original.ListingID, msg.ListingID)
	assert.Equal(t, original.URL, msg.URL)
}

func TestProbeListingMessage_Validate(t *testing.T) {
	tests := []struct {
		name        string
		msg         *ProbeListingMessage
		expectError bool
		errorText   string
	}{
		{
			name:        "valid message",
			msg:         &ProbeListingMessage{ListingID: "123", URL: "https://example.com"},
			expectError: false,
		},
		{
			name:        "empty listing_id",
			msg:         &ProbeListingMessage{ListingID: "", URL: "https://example.com"},
			expectError: true,
			errorText:   "listing_id is required",
		},
		{
			name:        "empty url",
			msg:         &ProbeListingMessage{ListingID: "123", URL: ""},
			expectError: true,
			errorText:   "url is required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.msg.Validate()
			if tt.expectError {
				assert.Error(t, err)
				assert.Contains(t, err.Error(), tt.errorText)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
