package shopify

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"net/url"
	"testing"
)

const testSecret = "shpss_test_secret"

func signedQuery(t *testing.T, secret string, params map[string]string) url.Values {
	t.Helper()
	q := url.Values{}
	for k, v := range params {
		q.Set(k, v)
	}

	// Build the expected message independently of the implementation: the
	// documented canonical form is sorted keys joined as k=v&...
	message := ""
	for _, k := range []string{"code", "shop", "state", "timestamp"} {
		if q.Get(k) == "" {
			continue
		}
		if message != "" {
			message += "&"
		}
		message += k + "=" + q.Get(k)
	}

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(message))
	q.Set("hmac", hex.EncodeToString(mac.Sum(nil)))
	return q
}

func TestVerifyCallbackHMAC(t *testing.T) {
	params := map[string]string{
		"code":      "abc123",
		"shop":      "sock-drawer.myshopify.com",
		"state":     "xyz",
		"timestamp": "1700000000",
	}

	q := signedQuery(t, testSecret, params)
	if !VerifyCallbackHMAC(testSecret, q) {
		t.Fatal("expected valid hmac to verify")
	}
}

func TestVerifyCallbackHMACOrderIndependent(t *testing.T) {
	// The same parameters signed once must verify no matter how the incoming
	// query was ordered; url.Values is a map so we exercise this by parsing a
	// reordered raw query.
	q := signedQuery(t, testSecret, map[string]string{
		"code":      "abc123",
		"shop":      "sock-drawer.myshopify.com",
		"state":     "xyz",
		"timestamp": "1700000000",
	})
	raw := "timestamp=" + q.Get("timestamp") + "&state=" + q.Get("state") +
		"&shop=" + q.Get("shop") + "&hmac=" + q.Get("hmac") + "&code=" + q.Get("code")
	reordered, err := url.ParseQuery(raw)
	if err != nil {
		t.Fatal(err)
	}
	if !VerifyCallbackHMAC(testSecret, reordered) {
		t.Fatal("expected reordered query to verify")
	}
}

func TestVerifyCallbackHMACRejectsMutation(t *testing.T) {
	q := signedQuery(t, testSecret, map[string]string{
		"code":      "abc123",
		"shop":      "sock-drawer.myshopify.com",
		"state":     "xyz",
		"timestamp": "1700000000",
	})

	mutated := url.Values{}
	for k, v := range q {
		mutated[k] = append([]string(nil), v...)
	}
	mutated.Set("shop", "evil.myshopify.com")
	if VerifyCallbackHMAC(testSecret, mutated) {
		t.Fatal("expected mutated parameter to fail verification")
	}
}

func TestVerifyCallbackHMACRejectsWrongSecret(t *testing.T) {
	q := signedQuery(t, testSecret, map[string]string{
		"code": "abc123",
		"shop": "sock-drawer.myshopify.com",
	})
	if VerifyCallbackHMAC("other-secret", q) {
		t.Fatal("expected wrong secret to fail verification")
	}
}

func TestVerifyCallbackHMACMissingHMAC(t *testing.T) {
	q := url.Values{}
	q.Set("shop", "sock-drawer.myshopify.com")
	if VerifyCallbackHMAC(testSecret, q) {
		t.Fatal("expected missing hmac to fail verification")
	}
}

func TestVerifyWebhookHMAC(t *testing.T) {
	body := []byte(`{"domain":"sock-drawer.myshopify.com"}`)
	header := base64.StdEncoding.EncodeToString(Sign(testSecret, body))

	if !VerifyWebhookHMAC(testSecret, body, header) {
		t.Fatal("expected valid webhook hmac to verify")
	}
	if VerifyWebhookHMAC(testSecret, body, "") {
		t.Fatal("expected missing header to fail verification")
	}
	if VerifyWebhookHMAC(testSecret, append(body, ' '), header) {
		t.Fatal("expected altered body to fail verification")
	}
	if VerifyWebhookHMAC("other-secret", body, header) {
		t.Fatal("expected wrong secret to fail verification")
	}
}

func TestConstantTimeEqual(t *testing.T) {
	if !ConstantTimeEqual([]byte("abc"), []byte("abc")) {
		t.Fatal("expected equal slices to match")
	}
	if ConstantTimeEqual([]byte("abc"), []byte("abd")) {
		t.Fatal("expected different slices not to match")
	}
	if ConstantTimeEqual([]byte("abc"), []byte("abcd")) {
		t.Fatal("expected length mismatch not to match")
	}
	if !ConstantTimeEqual(nil, []byte{}) {
		t.Fatal("expected nil and empty to match")
	}
}
