package shopify

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// InstallClaims are the claims of an install authorization token: the host
// session subject, the experience the install targets and a unix-seconds
// expiry. The token proves the install redirect was requested by an
// authenticated host session, so the install endpoint cannot be tricked into
// binding an arbitrary shop to an arbitrary experience.
type InstallClaims struct {
	Sub          string `json:"sub"`
	ExperienceID string `json:"experienceId"`
	Exp          int64  `json:"exp"`
}

// SignInstallToken mints a payload.signature token. The signature is an
// HMAC-SHA256 over the base64url payload segment string, keyed with the
// dedicated install signing secret (not the OAuth secret).
func SignInstallToken(secret string, claims InstallClaims) (string, error) {
	data, err := json.Marshal(claims)
	if err != nil {
		return "", fmt.Errorf("failed to encode install claims: %w", err)
	}
	payload := base64.RawURLEncoding.EncodeToString(data)
	sig := base64.RawURLEncoding.EncodeToString(Sign(secret, []byte(payload)))
	return payload + "." + sig, nil
}

// VerifyInstallToken checks a token's structure, signature, target experience
// and expiry. Every failure mode yields the same (nil, false) result; no
// partially trusted claims escape.
func VerifyInstallToken(secret, token, expectedExperienceID string) (*InstallClaims, bool) {
	parts := strings.Split(token, ".")
	if len(parts) != 2 {
		return nil, false
	}
	payload, sig := parts[0], parts[1]

	expected := base64.RawURLEncoding.EncodeToString(Sign(secret, []byte(payload)))
	if !ConstantTimeEqual([]byte(sig), []byte(expected)) {
		return nil, false
	}

	data, err := base64.RawURLEncoding.DecodeString(payload)
	if err != nil {
		return nil, false
	}
	var claims InstallClaims
	if err := json.Unmarshal(data, &claims); err != nil {
		return nil, false
	}

	if claims.ExperienceID != expectedExperienceID {
		return nil, false
	}
	if claims.Exp == 0 || time.Now().UnixMilli() >= claims.Exp*1000 {
		return nil, false
	}
	return &claims, true
}
