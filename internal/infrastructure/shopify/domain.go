package shopify

import (
	"fmt"
	"net/url"
	"strings"

	"shoplink-shopify-layer/internal/domain"

	goshopify "github.com/bold-commerce/go-shopify/v4"
)

// CanonicalShopDomain normalizes a user-supplied shop value to its canonical
// lowercase hostname. It accepts bare hosts and full URLs, and rejects
// anything that does not end with the platform suffix before any network
// call is made.
func CanonicalShopDomain(raw string) (string, error) {
	shop := strings.ToLower(strings.TrimSpace(raw))
	if shop == "" {
		return "", fmt.Errorf("empty shop domain")
	}

	if !strings.Contains(shop, "://") {
		shop = "https://" + shop
	}
	u, err := url.Parse(shop)
	if err != nil || u.Hostname() == "" {
		return "", fmt.Errorf("invalid shop domain %q", raw)
	}
	host := u.Hostname()

	if !strings.HasSuffix(host, domain.ShopSuffix) {
		return "", fmt.Errorf("invalid shop domain %q: must end with %s", host, domain.ShopSuffix)
	}
	return host, nil
}

// DefaultShopName derives a human-readable display name from the domain's
// subdomain segment, e.g. "sock-drawer.myshopify.com" -> "Sock Drawer".
func DefaultShopName(shopDomain string) string {
	short := goshopify.ShopShortName(shopDomain)
	words := strings.FieldsFunc(short, func(r rune) bool {
		return r == '-' || r == '_'
	})
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}
