package application

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"

	"shoplink-shopify-layer/internal/domain"
	"shoplink-shopify-layer/internal/infrastructure/shopify"
	"shoplink-shopify-layer/internal/ports"

	"github.com/rs/zerolog"
)

// Sentinel errors for the OAuth surface. The HTTP adapter maps them to status
// codes; everything else is a 500.
var (
	ErrMissingParams       = errors.New("missing required parameters")
	ErrInvalidInstallToken = errors.New("invalid install authorization")
	ErrInvalidShopDomain   = errors.New("invalid shop domain")
	ErrInvalidHMAC         = errors.New("hmac verification failed")
	ErrInvalidState        = errors.New("invalid state parameter")
	ErrStateReplayed       = errors.New("state already used")
)

// OAuthConfig carries the secrets and endpoints the OAuth flow needs.
type OAuthConfig struct {
	APISecret            string
	InstallSigningSecret string
	Scopes               []string
	// AppBaseURL is the externally reachable origin of this service, used to
	// derive the OAuth callback and webhook callback URLs.
	AppBaseURL string
	// SkipInstallAuth disables install-token verification for local
	// development against a dev store.
	SkipInstallAuth bool
}

// OAuthService orchestrates the install/callback state machine and the
// uninstall webhook. It owns no HTTP concerns; the api adapter translates its
// sentinel errors.
type OAuthService struct {
	store  ports.ShopStore
	admin  ports.ShopifyAdmin
	states ports.StateTracker
	cfg    OAuthConfig
	logger zerolog.Logger
}

// NewOAuthService creates the OAuth orchestrator. states may be nil, in which
// case state nonces are not tracked and replay of a valid state is accepted.
func NewOAuthService(store ports.ShopStore, admin ports.ShopifyAdmin, states ports.StateTracker, cfg OAuthConfig, logger zerolog.Logger) *OAuthService {
	return &OAuthService{
		store:  store,
		admin:  admin,
		states: states,
		cfg:    cfg,
		logger: logger,
	}
}

// InstallInput is the validated-from-query input of the install redirect.
// Origin is the scheme://host the current request arrived on; the OAuth
// callback URL is derived from it so the flow works behind any hostname the
// service is reachable at.
type InstallInput struct {
	Shop         string
	ExperienceID string
	InstallToken string
	ReturnURL    string
	Origin       string
	Creator      json.RawMessage
}

// baseURL picks the request origin when present, falling back to the
// configured external base URL.
func (s *OAuthService) baseURL(origin string) string {
	if origin != "" {
		return origin
	}
	return s.cfg.AppBaseURL
}

// BeginInstall validates an install request and returns the authorize URL the
// merchant's browser should be redirected to. The caller is only trusted after
// the install token proves the redirect came from an authenticated host
// session for the target experience.
func (s *OAuthService) BeginInstall(ctx context.Context, in InstallInput) (string, error) {
	if in.Shop == "" || in.ExperienceID == "" {
		return "", ErrMissingParams
	}

	if !s.cfg.SkipInstallAuth {
		if _, ok := shopify.VerifyInstallToken(s.cfg.InstallSigningSecret, in.InstallToken, in.ExperienceID); !ok {
			s.logger.Warn().Str("experienceId", in.ExperienceID).Msg("install authorization rejected")
			return "", ErrInvalidInstallToken
		}
	}

	shop, err := shopify.CanonicalShopDomain(in.Shop)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidShopDomain, err)
	}

	payload := shopify.StatePayload{
		ExperienceID: in.ExperienceID,
		ReturnURL:    in.ReturnURL,
		Creator:      in.Creator,
	}
	state, err := shopify.CreateState(&payload)
	if err != nil {
		return "", fmt.Errorf("failed to create state: %w", err)
	}

	if s.states != nil {
		if err := s.states.Save(ctx, payload.Nonce); err != nil {
			return "", fmt.Errorf("failed to record state nonce: %w", err)
		}
	}

	callbackURL := s.baseURL(in.Origin) + "/auth/shopify/callback"
	authorizeURL := s.admin.BuildAuthorizeURL(shop, s.cfg.Scopes, callbackURL, state)

	s.logger.Info().Str("shop", shop).Str("experienceId", in.ExperienceID).Msg("install redirect issued")
	return authorizeURL, nil
}

// CallbackOutcome is the result of a completed OAuth callback. ReturnURL is
// where the browser should land next; when empty the caller renders a
// structured success response instead.
type CallbackOutcome struct {
	Shop         string
	ShopName     string
	ExperienceID string
	ReturnURL    string
}

// CompleteCallback runs the full callback sequence against the raw query
// parameters Shopify redirected with. origin is the scheme://host of the
// current request and seeds the webhook callback URL.
//
// Ordering matters: the admin token is persisted immediately after the
// exchange, before storefront-token creation, webhook registration and
// experience binding. Those later steps can fail without stranding the
// credential; a reinstall or retry picks up from a connected shop.
func (s *OAuthService) CompleteCallback(ctx context.Context, origin string, query url.Values) (*CallbackOutcome, error) {
	shopParam := query.Get("shop")
	code := query.Get("code")
	state := query.Get("state")
	if shopParam == "" || code == "" || state == "" || query.Get("hmac") == "" {
		return nil, ErrMissingParams
	}

	if !shopify.VerifyCallbackHMAC(s.cfg.APISecret, query) {
		s.logger.Warn().Str("shop", shopParam).Msg("callback hmac verification failed")
		return nil, ErrInvalidHMAC
	}

	shop, err := shopify.CanonicalShopDomain(shopParam)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidShopDomain, err)
	}

	adminToken, err := s.admin.ExchangeToken(ctx, shop, code)
	if err != nil {
		return nil, fmt.Errorf("token exchange failed: %w", err)
	}

	// Durable checkpoint: the credential is saved before anything that can
	// still fail. The display name is only defaulted for shops we have never
	// seen, so a rename survives reinstalls.
	credential := &domain.ShopCredential{ShopDomain: shop, AdminAccessToken: adminToken}
	existing, err := s.store.GetShop(ctx, shop)
	if err != nil {
		return nil, fmt.Errorf("failed to look up shop: %w", err)
	}
	if existing == nil || existing.Name == "" {
		credential.Name = shopify.DefaultShopName(shop)
	}
	if err := s.store.SaveShop(ctx, credential); err != nil {
		return nil, fmt.Errorf("failed to save credentials: %w", err)
	}

	s.provisionExtras(ctx, origin, shop, adminToken)

	statePayload, err := shopify.DecodeState(state)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidState, err)
	}

	if s.states != nil && statePayload.Nonce != "" {
		ok, err := s.states.Consume(ctx, statePayload.Nonce)
		if err != nil {
			return nil, fmt.Errorf("failed to consume state nonce: %w", err)
		}
		if !ok {
			s.logger.Warn().Str("shop", shop).Msg("state nonce replay rejected")
			return nil, ErrStateReplayed
		}
	}

	if statePayload.ExperienceID != "" {
		if err := s.store.SaveExperienceMapping(ctx, statePayload.ExperienceID, shop, statePayload.Creator); err != nil {
			return nil, fmt.Errorf("failed to bind experience: %w", err)
		}
	}

	saved, err := s.store.GetShop(ctx, shop)
	if err != nil {
		return nil, fmt.Errorf("failed to reload shop: %w", err)
	}

	s.logger.Info().Str("shop", shop).Str("experienceId", statePayload.ExperienceID).Msg("install completed")
	outcome := &CallbackOutcome{
		Shop:         shop,
		ExperienceID: statePayload.ExperienceID,
		ReturnURL:    statePayload.ReturnURL,
	}
	if saved != nil {
		outcome.ShopName = saved.Name
	}
	return outcome, nil
}

// provisionExtras runs the best-effort post-exchange steps. Failures are
// logged, never fatal: the admin credential already exists and both steps are
// retried on the next install.
func (s *OAuthService) provisionExtras(ctx context.Context, origin, shop, adminToken string) {
	storefrontToken, err := s.admin.CreateStorefrontAccessToken(ctx, shop, adminToken)
	if err != nil {
		s.logger.Warn().Err(err).Str("shop", shop).Msg("storefront token creation failed")
	} else {
		update := &domain.ShopCredential{
			ShopDomain:            shop,
			AdminAccessToken:      adminToken,
			StorefrontAccessToken: storefrontToken,
		}
		if err := s.store.SaveShop(ctx, update); err != nil {
			s.logger.Warn().Err(err).Str("shop", shop).Msg("failed to save storefront token")
		}
	}

	webhookURL := s.baseURL(origin) + "/webhooks/shopify/app_uninstalled"
	if err := s.admin.RegisterAppUninstalledWebhook(ctx, shop, adminToken, webhookURL); err != nil {
		s.logger.Warn().Err(err).Str("shop", shop).Msg("uninstall webhook registration failed")
	}
}

// VerifyWebhook checks an inbound webhook delivery's HMAC over the raw body.
func (s *OAuthService) VerifyWebhook(body []byte, hmacHeader string) bool {
	return shopify.VerifyWebhookHMAC(s.cfg.APISecret, body, hmacHeader)
}

// HandleUninstall deprovisions a shop reported by the APP_UNINSTALLED webhook.
// The credential row is soft-deleted rather than removed so experience
// bindings survive an uninstall/reinstall cycle. Unknown shops are a no-op;
// Shopify retries deliveries and the handler must stay idempotent.
func (s *OAuthService) HandleUninstall(ctx context.Context, shopDomain string) error {
	shop, err := shopify.CanonicalShopDomain(shopDomain)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidShopDomain, err)
	}
	if err := s.store.SoftDeleteShopByDomain(ctx, shop); err != nil {
		return fmt.Errorf("failed to deprovision shop: %w", err)
	}
	s.logger.Info().Str("shop", shop).Msg("shop deprovisioned after uninstall")
	return nil
}
