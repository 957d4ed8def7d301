package shopify

import (
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"
)

// StatePayload is the opaque bag carried through the OAuth round trip via the
// state parameter. The remote platform echoes it back verbatim; its integrity
// is covered by the callback HMAC over the full query string, not by its own
// signature.
type StatePayload struct {
	Nonce        string          `json:"nonce"`
	ExperienceID string          `json:"experienceId,omitempty"`
	ReturnURL    string          `json:"returnUrl,omitempty"`
	Creator      json.RawMessage `json:"creator,omitempty"`
}

// CreateState serializes the payload with a fresh 16-byte nonce into a
// base64url token. The nonce is written back into the payload so callers can
// record it for single-use tracking. Two calls with the same payload produce
// different tokens.
func CreateState(payload *StatePayload) (string, error) {
	nonce := make([]byte, 16)
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("failed to generate state nonce: %w", err)
	}
	payload.Nonce = hex.EncodeToString(nonce)

	data, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("failed to encode state: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(data), nil
}

// DecodeState parses a state token back into its payload. A token that does
// not decode is a hard error; callers must reject the callback rather than
// fall back to an empty state.
func DecodeState(token string) (*StatePayload, error) {
	data, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		// Tolerate padded tokens from older installs.
		data, err = base64.URLEncoding.DecodeString(token)
		if err != nil {
			return nil, fmt.Errorf("invalid state encoding: %w", err)
		}
	}

	var payload StatePayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, fmt.Errorf("invalid state payload: %w", err)
	}
	return &payload, nil
}
