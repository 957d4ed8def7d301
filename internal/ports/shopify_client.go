package ports

import "context"

// Product is the flattened catalog entry served to the embedding UI.
type Product struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	Handle    string `json:"handle"`
	ImageURL  string `json:"imageUrl,omitempty"`
	Price     string `json:"price,omitempty"`
	VariantID string `json:"variantId,omitempty"`
}

// ShopInfo is the shop metadata block proxied from the remote platform.
type ShopInfo struct {
	ID              string `json:"id"`
	Name            string `json:"name"`
	Email           string `json:"email"`
	MyshopifyDomain string `json:"myshopifyDomain"`
	CurrencyCode    string `json:"currencyCode"`
	IANATimezone    string `json:"ianaTimezone"`
	PlanDisplayName string `json:"planDisplayName,omitempty"`
	PrimaryDomain   string `json:"primaryDomain,omitempty"`
}

// CartLine is one requested line in a storefront cart.
type CartLine struct {
	VariantID string `json:"variantId"`
	Quantity  int    `json:"quantity"`
}

// Cart is a created storefront cart with its hosted checkout URL.
type Cart struct {
	CartID      string `json:"cartId"`
	CheckoutURL string `json:"checkoutUrl"`
}

// DraftOrder identifies an order created through the admin API.
type DraftOrder struct {
	OrderID   string `json:"orderId"`
	OrderName string `json:"orderName"`
}

// ShopifyAdmin is the capability surface this layer consumes from the remote
// commerce platform. Implementations run admin/storefront GraphQL against a
// specific shop; the OAuth token exchange goes to the platform's non-GraphQL
// token endpoint.
type ShopifyAdmin interface {
	// BuildAuthorizeURL constructs the platform's OAuth authorize URL for a
	// shop. redirectURI must be the exact callback URL registered for the app.
	BuildAuthorizeURL(shop string, scopes []string, redirectURI, state string) string

	// ExchangeToken trades an authorization code for an admin access token.
	ExchangeToken(ctx context.Context, shop, code string) (string, error)

	// CreateStorefrontAccessToken provisions a storefront-scoped token using
	// an existing admin token.
	CreateStorefrontAccessToken(ctx context.Context, shop, adminToken string) (string, error)

	// RegisterAppUninstalledWebhook subscribes the deprovisioning webhook.
	// A duplicate subscription is reported as success.
	RegisterAppUninstalledWebhook(ctx context.Context, shop, adminToken, callbackURL string) error

	// FetchProducts lists catalog products through the admin API.
	FetchProducts(ctx context.Context, shop, adminToken string, first int) ([]Product, error)

	// FetchShopInfo retrieves shop metadata through the admin API.
	FetchShopInfo(ctx context.Context, shop, adminToken string) (*ShopInfo, error)

	// CartCreate creates a storefront cart and returns its checkout URL.
	CartCreate(ctx context.Context, shop, storefrontToken string, lines []CartLine) (*Cart, error)

	// CreateDraftOrder creates an admin draft order for a single variant.
	CreateDraftOrder(ctx context.Context, shop, adminToken, variantID string, quantity int, email string) (*DraftOrder, error)

	// CompleteDraftOrder completes a previously created draft order.
	CompleteDraftOrder(ctx context.Context, shop, adminToken, draftOrderID string) (*DraftOrder, error)
}
