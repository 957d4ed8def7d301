package shopify

import (
	"strings"
	"testing"
	"time"
)

const installSecret = "install-signing-secret"

func futureClaims(experienceID string) InstallClaims {
	return InstallClaims{
		Sub:          "user-1",
		ExperienceID: experienceID,
		Exp:          time.Now().Add(time.Hour).Unix(),
	}
}

func TestInstallTokenRoundTrip(t *testing.T) {
	token, err := SignInstallToken(installSecret, futureClaims("exp-9"))
	if err != nil {
		t.Fatal(err)
	}

	claims, ok := VerifyInstallToken(installSecret, token, "exp-9")
	if !ok {
		t.Fatal("expected token to verify")
	}
	if claims.Sub != "user-1" || claims.ExperienceID != "exp-9" {
		t.Fatalf("unexpected claims %+v", claims)
	}
}

func TestInstallTokenRejections(t *testing.T) {
	valid, err := SignInstallToken(installSecret, futureClaims("exp-9"))
	if err != nil {
		t.Fatal(err)
	}

	expired, err := SignInstallToken(installSecret, InstallClaims{
		Sub:          "user-1",
		ExperienceID: "exp-9",
		Exp:          time.Now().Add(-time.Minute).Unix(),
	})
	if err != nil {
		t.Fatal(err)
	}

	noExpiry, err := SignInstallToken(installSecret, InstallClaims{
		Sub:          "user-1",
		ExperienceID: "exp-9",
	})
	if err != nil {
		t.Fatal(err)
	}

	parts := strings.SplitN(valid, ".", 2)
	flipped := flipBit(parts[0]) + "." + parts[1]

	cases := []struct {
		name       string
		token      string
		experience string
	}{
		{"wrong experience", valid, "exp-other"},
		{"expired", expired, "exp-9"},
		{"zero expiry", noExpiry, "exp-9"},
		{"payload bit flip", flipped, "exp-9"},
		{"tampered signature", parts[0] + "." + flipBit(parts[1]), "exp-9"},
		{"structure", "only-one-segment", "exp-9"},
		{"too many segments", valid + ".extra", "exp-9"},
		{"empty", "", "exp-9"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			claims, ok := VerifyInstallToken(installSecret, tc.token, tc.experience)
			if ok {
				t.Fatal("expected verification to fail")
			}
			if claims != nil {
				t.Fatal("expected nil claims on failure")
			}
		})
	}
}

func TestInstallTokenWrongSecret(t *testing.T) {
	token, err := SignInstallToken(installSecret, futureClaims("exp-9"))
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := VerifyInstallToken("other-secret", token, "exp-9"); ok {
		t.Fatal("expected wrong secret to fail")
	}
}

// flipBit flips the low bit of the first byte of a base64url segment in a way
// that keeps it valid base64url.
func flipBit(segment string) string {
	if segment == "" {
		return "A"
	}
	b := []byte(segment)
	if b[0] == 'A' {
		b[0] = 'B'
	} else {
		b[0] = 'A'
	}
	return string(b)
}
