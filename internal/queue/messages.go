package queue

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ProbeListingMessage asks the prober worker to check a listing's health
// sooner than its next periodic sweep, published right after the listing
// is created or edited.
type ProbeListingMessage struct {
	ListingID string `json:"listing_id"`
	URL       string `json:"url"`
}

// ToJSON serializes the ProbeListingMessage to JSON bytes.
func (m *ProbeListingMessage) ToJSON() ([]byte, error) {
	data, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal probe listing message: %w", err)
	}
	return data, nil
}

// FromJSONProbeListing deserializes JSON bytes into a ProbeListingMessage
// and validates it.
func FromJSONProbeListing(data []byte) (*ProbeListingMessage, error) {
	msg := &ProbeListingMessage{}
	if err := json.Unmarshal(data, msg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal probe listing message: %w", err)
	}

	if err := msg.Validate(); err != nil {
		return nil, err
	}

	return msg, nil
}

// Validate checks if the ProbeListingMessage has all required fields.
func (m *ProbeListingMessage) Validate() error {
	if m.ListingID == "" {
		return errors.New("listing_id is required")
	}
	if m.URL == "" {
		return errors.New("url is required")
	}
	return nil
}
