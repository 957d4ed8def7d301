package shopify

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"net/url"
	"sort"
	"strings"
)

// Sign computes an HMAC-SHA256 signature over data.
func Sign(secret string, data []byte) []byte {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(data)
	return mac.Sum(nil)
}

// ConstantTimeEqual compares two byte slices in time independent of their
// content. A length mismatch is not an error, it is simply "not equal".
func ConstantTimeEqual(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	return subtle.ConstantTimeCompare(a, b) == 1
}

// VerifyCallbackHMAC checks the hmac parameter Shopify appends to the OAuth
// callback query. The message is every other parameter, sorted by key and
// re-encoded as k=v pairs joined with &; the signature is the hex digest.
func VerifyCallbackHMAC(secret string, query url.Values) bool {
	provided := query.Get("hmac")
	if provided == "" {
		return false
	}

	keys := make([]string, 0, len(query))
	for k := range query {
		if k == "hmac" {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	pairs := make([]string, 0, len(keys))
	for _, k := range keys {
		for _, v := range query[k] {
			pairs = append(pairs, k+"="+v)
		}
	}
	message := strings.Join(pairs, "&")

	digest := hex.EncodeToString(Sign(secret, []byte(message)))
	return ConstantTimeEqual([]byte(provided), []byte(digest))
}

// VerifyWebhookHMAC checks the X-Shopify-Hmac-SHA256 header against the raw,
// unparsed request body. The signature covers the exact bytes on the wire, so
// callers must not re-serialize the payload first. A missing header is
// invalid.
func VerifyWebhookHMAC(secret string, body []byte, header string) bool {
	if header == "" {
		return false
	}
	digest := base64.StdEncoding.EncodeToString(Sign(secret, body))
	return ConstantTimeEqual([]byte(header), []byte(digest))
}
