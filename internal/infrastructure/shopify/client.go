package shopify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"shoplink-shopify-layer/internal/ports"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const apiVersion = "2024-07"

// duplicateWebhookPhrase is the userError Shopify returns when the
// subscription already exists; it must be treated as success so a reinstall
// can re-run webhook registration safely.
const duplicateWebhookPhrase = "address for this topic has already been taken"

// Client talks to Shopify's OAuth token endpoint and admin/storefront GraphQL
// APIs for a given shop. It implements ports.ShopifyAdmin.
type Client struct {
	apiKey     string
	apiSecret  string
	httpClient *http.Client
	baseURL    func(shop string) string
	logger     zerolog.Logger
}

var _ ports.ShopifyAdmin = (*Client)(nil)

// NewClient creates a Shopify client with a bounded-timeout HTTP client.
func NewClient(apiKey, apiSecret string, logger zerolog.Logger) *Client {
	return NewClientWithOptions(apiKey, apiSecret, logger, &http.Client{Timeout: 10 * time.Second}, nil)
}

// NewClientWithOptions creates a client with an explicit HTTP client and an
// optional base URL resolver. The resolver exists so tests can point every
// shop at a local server; when nil, requests go to https://{shop}.
func NewClientWithOptions(apiKey, apiSecret string, logger zerolog.Logger, httpClient *http.Client, baseURL func(shop string) string) *Client {
	if baseURL == nil {
		baseURL = func(shop string) string { return "https://" + shop }
	}
	return &Client{
		apiKey:     apiKey,
		apiSecret:  apiSecret,
		httpClient: httpClient,
		baseURL:    baseURL,
		logger:     logger,
	}
}

// BuildAuthorizeURL constructs the remote platform's authorize URL. The
// redirect URI must be the exact callback URL Shopify will call back to.
func (c *Client) BuildAuthorizeURL(shop string, scopes []string, redirectURI, state string) string {
	return fmt.Sprintf(
		"https://%s/admin/oauth/authorize?client_id=%s&scope=%s&redirect_uri=%s&state=%s",
		shop,
		c.apiKey,
		url.QueryEscape(strings.Join(scopes, ",")),
		url.QueryEscape(redirectURI),
		url.QueryEscape(state),
	)
}

// ExchangeToken trades an authorization code for an admin access token via
// the direct token endpoint. A non-2xx response is a hard failure; there is
// no retry here — a reinstall is the retry mechanism.
func (c *Client) ExchangeToken(ctx context.Context, shop, code string) (string, error) {
	body, err := json.Marshal(map[string]string{
		"client_id":     c.apiKey,
		"client_secret": c.apiSecret,
		"code":          code,
	})
	if err != nil {
		return "", fmt.Errorf("failed to encode token request: %w", err)
	}

	endpoint := c.baseURL(shop) + "/admin/oauth/access_token"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to create token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("token exchange failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		text, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("token exchange failed: status %d: %s", resp.StatusCode, strings.TrimSpace(string(text)))
	}

	var tokenResponse struct {
		AccessToken string `json:"access_token"`
		Scope       string `json:"scope"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&tokenResponse); err != nil {
		return "", fmt.Errorf("failed to decode token response: %w", err)
	}
	if tokenResponse.AccessToken == "" {
		return "", fmt.Errorf("token exchange returned empty access token")
	}
	return tokenResponse.AccessToken, nil
}

type graphQLError struct {
	Message string `json:"message"`
}

type graphQLResponse struct {
	Data   json.RawMessage `json:"data"`
	Errors []graphQLError  `json:"errors"`
}

type userError struct {
	Message string   `json:"message"`
	Field   []string `json:"field"`
}

func joinGraphQLErrors(errs []graphQLError) string {
	msgs := make([]string, len(errs))
	for i, e := range errs {
		msgs[i] = e.Message
	}
	return strings.Join(msgs, "; ")
}

func joinUserErrors(errs []userError) string {
	msgs := make([]string, len(errs))
	for i, e := range errs {
		msgs[i] = e.Message
	}
	return strings.Join(msgs, ", ")
}

// adminGraphQL posts a query to the shop's admin GraphQL endpoint and decodes
// the data payload into out.
func (c *Client) adminGraphQL(ctx context.Context, shop, adminToken, query string, variables map[string]any, out any) error {
	endpoint := fmt.Sprintf("%s/admin/api/%s/graphql.json", c.baseURL(shop), apiVersion)
	return c.postGraphQL(ctx, endpoint, "X-Shopify-Access-Token", adminToken, query, variables, out)
}

// storefrontGraphQL posts a query to the shop's storefront GraphQL endpoint.
func (c *Client) storefrontGraphQL(ctx context.Context, shop, storefrontToken, query string, variables map[string]any, out any) error {
	endpoint := fmt.Sprintf("%s/api/%s/graphql.json", c.baseURL(shop), apiVersion)
	return c.postGraphQL(ctx, endpoint, "X-Shopify-Storefront-Access-Token", storefrontToken, query, variables, out)
}

func (c *Client) postGraphQL(ctx context.Context, endpoint, tokenHeader, token, query string, variables map[string]any, out any) error {
	body, err := json.Marshal(map[string]any{"query": query, "variables": variables})
	if err != nil {
		return fmt.Errorf("failed to encode graphql request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create graphql request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(tokenHeader, token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("graphql request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		text, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("graphql HTTP %d: %s", resp.StatusCode, strings.TrimSpace(string(text)))
	}

	var envelope graphQLResponse
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return fmt.Errorf("failed to decode graphql response: %w", err)
	}
	if len(envelope.Errors) > 0 {
		return fmt.Errorf("graphql errors: %s", joinGraphQLErrors(envelope.Errors))
	}
	if out != nil {
		if err := json.Unmarshal(envelope.Data, out); err != nil {
			return fmt.Errorf("failed to decode graphql data: %w", err)
		}
	}
	return nil
}

// CreateStorefrontAccessToken provisions a storefront-scoped token. The title
// carries a UUID so repeated installs create distinguishable tokens.
func (c *Client) CreateStorefrontAccessToken(ctx context.Context, shop, adminToken string) (string, error) {
	const mutation = `
		mutation CreateSfToken($input: StorefrontAccessTokenInput!) {
			storefrontAccessTokenCreate(input: $input) {
				storefrontAccessToken { accessToken title }
				userErrors { message field }
			}
		}`

	var data struct {
		StorefrontAccessTokenCreate struct {
			StorefrontAccessToken *struct {
				AccessToken string `json:"accessToken"`
				Title       string `json:"title"`
			} `json:"storefrontAccessToken"`
			UserErrors []userError `json:"userErrors"`
		} `json:"storefrontAccessTokenCreate"`
	}

	title := "shoplink-" + uuid.NewString()
	err := c.adminGraphQL(ctx, shop, adminToken, mutation, map[string]any{
		"input": map[string]any{"title": title},
	}, &data)
	if err != nil {
		return "", err
	}

	payload := data.StorefrontAccessTokenCreate
	if len(payload.UserErrors) > 0 {
		return "", fmt.Errorf("storefrontAccessTokenCreate error: %s", joinUserErrors(payload.UserErrors))
	}
	if payload.StorefrontAccessToken == nil || payload.StorefrontAccessToken.AccessToken == "" {
		return "", fmt.Errorf("storefrontAccessTokenCreate returned no token")
	}
	return payload.StorefrontAccessToken.AccessToken, nil
}

// RegisterAppUninstalledWebhook subscribes the APP_UNINSTALLED webhook at the
// given callback URL. A duplicate subscription is success, not an error, so
// registration can be re-run on every install.
func (c *Client) RegisterAppUninstalledWebhook(ctx context.Context, shop, adminToken, callbackURL string) error {
	const mutation = `
		mutation RegisterWebhook($topic: WebhookSubscriptionTopic!, $sub: WebhookSubscriptionInput!) {
			webhookSubscriptionCreate(topic: $topic, webhookSubscription: $sub) {
				webhookSubscription { id }
				userErrors { message field }
			}
		}`

	var data struct {
		WebhookSubscriptionCreate struct {
			WebhookSubscription *struct {
				ID string `json:"id"`
			} `json:"webhookSubscription"`
			UserErrors []userError `json:"userErrors"`
		} `json:"webhookSubscriptionCreate"`
	}

	err := c.adminGraphQL(ctx, shop, adminToken, mutation, map[string]any{
		"topic": "APP_UNINSTALLED",
		"sub":   map[string]any{"callbackUrl": callbackURL, "format": "JSON"},
	}, &data)
	if err != nil {
		return err
	}

	payload := data.WebhookSubscriptionCreate
	if len(payload.UserErrors) > 0 {
		for _, ue := range payload.UserErrors {
			if strings.Contains(strings.ToLower(ue.Message), duplicateWebhookPhrase) {
				c.logger.Debug().Str("shop", shop).Msg("uninstall webhook already registered")
				return nil
			}
		}
		return fmt.Errorf("webhookSubscriptionCreate error: %s", joinUserErrors(payload.UserErrors))
	}
	return nil
}

// FetchProducts lists products through the admin API, flattened to the shape
// the embedding UI consumes.
func (c *Client) FetchProducts(ctx context.Context, shop, adminToken string, first int) ([]ports.Product, error) {
	const query = `
		query Products($first: Int!) {
			products(first: $first, sortKey: TITLE) {
				nodes {
					id
					title
					handle
					featuredImage { url }
					variants(first: 1) { nodes { id price } }
				}
			}
		}`

	var data struct {
		Products struct {
			Nodes []struct {
				ID            string `json:"id"`
				Title         string `json:"title"`
				Handle        string `json:"handle"`
				FeaturedImage *struct {
					URL string `json:"url"`
				} `json:"featuredImage"`
				Variants struct {
					Nodes []struct {
						ID    string `json:"id"`
						Price string `json:"price"`
					} `json:"nodes"`
				} `json:"variants"`
			} `json:"nodes"`
		} `json:"products"`
	}

	if err := c.adminGraphQL(ctx, shop, adminToken, query, map[string]any{"first": first}, &data); err != nil {
		return nil, err
	}

	products := make([]ports.Product, 0, len(data.Products.Nodes))
	for _, n := range data.Products.Nodes {
		p := ports.Product{ID: n.ID, Title: n.Title, Handle: n.Handle}
		if n.FeaturedImage != nil {
			p.ImageURL = n.FeaturedImage.URL
		}
		if len(n.Variants.Nodes) > 0 {
			p.VariantID = n.Variants.Nodes[0].ID
			p.Price = n.Variants.Nodes[0].Price
		}
		products = append(products, p)
	}
	return products, nil
}

// FetchShopInfo retrieves shop metadata through the admin API.
func (c *Client) FetchShopInfo(ctx context.Context, shop, adminToken string) (*ports.ShopInfo, error) {
	const query = `
		query ShopInfo {
			shop {
				id
				name
				email
				myshopifyDomain
				currencyCode
				ianaTimezone
				plan { displayName }
				primaryDomain { host }
			}
		}`

	var data struct {
		Shop struct {
			ID              string `json:"id"`
			Name            string `json:"name"`
			Email           string `json:"email"`
			MyshopifyDomain string `json:"myshopifyDomain"`
			CurrencyCode    string `json:"currencyCode"`
			IanaTimezone    string `json:"ianaTimezone"`
			Plan            *struct {
				DisplayName string `json:"displayName"`
			} `json:"plan"`
			PrimaryDomain *struct {
				Host string `json:"host"`
			} `json:"primaryDomain"`
		} `json:"shop"`
	}

	if err := c.adminGraphQL(ctx, shop, adminToken, query, nil, &data); err != nil {
		return nil, err
	}

	info := &ports.ShopInfo{
		ID:              data.Shop.ID,
		Name:            data.Shop.Name,
		Email:           data.Shop.Email,
		MyshopifyDomain: data.Shop.MyshopifyDomain,
		CurrencyCode:    data.Shop.CurrencyCode,
		IANATimezone:    data.Shop.IanaTimezone,
	}
	if data.Shop.Plan != nil {
		info.PlanDisplayName = data.Shop.Plan.DisplayName
	}
	if data.Shop.PrimaryDomain != nil {
		info.PrimaryDomain = data.Shop.PrimaryDomain.Host
	}
	return info, nil
}

// CartCreate creates a storefront cart for the given lines and returns its
// checkout URL.
func (c *Client) CartCreate(ctx context.Context, shop, storefrontToken string, lines []ports.CartLine) (*ports.Cart, error) {
	const mutation = `
		mutation CartCreate($input: CartInput) {
			cartCreate(input: $input) {
				cart { id checkoutUrl }
				userErrors { message field }
			}
		}`

	gqlLines := make([]map[string]any, len(lines))
	for i, l := range lines {
		qty := l.Quantity
		if qty <= 0 {
			qty = 1
		}
		gqlLines[i] = map[string]any{"merchandiseId": l.VariantID, "quantity": qty}
	}

	var data struct {
		CartCreate struct {
			Cart *struct {
				ID          string `json:"id"`
				CheckoutURL string `json:"checkoutUrl"`
			} `json:"cart"`
			UserErrors []userError `json:"userErrors"`
		} `json:"cartCreate"`
	}

	err := c.storefrontGraphQL(ctx, shop, storefrontToken, mutation, map[string]any{
		"input": map[string]any{"lines": gqlLines},
	}, &data)
	if err != nil {
		return nil, err
	}

	payload := data.CartCreate
	if len(payload.UserErrors) > 0 {
		return nil, fmt.Errorf("cartCreate error: %s", joinUserErrors(payload.UserErrors))
	}
	if payload.Cart == nil || payload.Cart.ID == "" || payload.Cart.CheckoutURL == "" {
		return nil, fmt.Errorf("cartCreate returned no cart")
	}
	return &ports.Cart{CartID: payload.Cart.ID, CheckoutURL: payload.Cart.CheckoutURL}, nil
}

// CreateDraftOrder creates an admin draft order for a single variant.
func (c *Client) CreateDraftOrder(ctx context.Context, shop, adminToken, variantID string, quantity int, email string) (*ports.DraftOrder, error) {
	const mutation = `
		mutation DraftOrderCreate($input: DraftOrderInput!) {
			draftOrderCreate(input: $input) {
				draftOrder { id name }
				userErrors { field message }
			}
		}`

	input := map[string]any{
		"lineItems": []map[string]any{{"variantId": variantID, "quantity": quantity}},
	}
	if email != "" {
		input["email"] = email
	}

	var data struct {
		DraftOrderCreate struct {
			DraftOrder *struct {
				ID   string `json:"id"`
				Name string `json:"name"`
			} `json:"draftOrder"`
			UserErrors []userError `json:"userErrors"`
		} `json:"draftOrderCreate"`
	}

	if err := c.adminGraphQL(ctx, shop, adminToken, mutation, map[string]any{"input": input}, &data); err != nil {
		return nil, err
	}

	payload := data.DraftOrderCreate
	if len(payload.UserErrors) > 0 {
		return nil, fmt.Errorf("draftOrderCreate error: %s", joinUserErrors(payload.UserErrors))
	}
	if payload.DraftOrder == nil {
		return nil, fmt.Errorf("draftOrderCreate returned no draft order")
	}
	return &ports.DraftOrder{OrderID: payload.DraftOrder.ID, OrderName: payload.DraftOrder.Name}, nil
}

// CompleteDraftOrder completes a draft order, producing the final order.
func (c *Client) CompleteDraftOrder(ctx context.Context, shop, adminToken, draftOrderID string) (*ports.DraftOrder, error) {
	const mutation = `
		mutation DraftOrderComplete($id: ID!) {
			draftOrderComplete(id: $id) {
				draftOrder { order { id name } }
				userErrors { field message }
			}
		}`

	var data struct {
		DraftOrderComplete struct {
			DraftOrder *struct {
				Order *struct {
					ID   string `json:"id"`
					Name string `json:"name"`
				} `json:"order"`
			} `json:"draftOrder"`
			UserErrors []userError `json:"userErrors"`
		} `json:"draftOrderComplete"`
	}

	if err := c.adminGraphQL(ctx, shop, adminToken, mutation, map[string]any{"id": draftOrderID}, &data); err != nil {
		return nil, err
	}

	payload := data.DraftOrderComplete
	if len(payload.UserErrors) > 0 {
		return nil, fmt.Errorf("draftOrderComplete error: %s", joinUserErrors(payload.UserErrors))
	}
	if payload.DraftOrder == nil || payload.DraftOrder.Order == nil {
		return nil, fmt.Errorf("draftOrderComplete returned no order")
	}
	return &ports.DraftOrder{OrderID: payload.DraftOrder.Order.ID, OrderName: payload.DraftOrder.Order.Name}, nil
}
