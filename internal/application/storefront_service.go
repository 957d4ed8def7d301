package application

import (
	"context"
	"errors"
	"fmt"

	"shoplink-shopify-layer/internal/domain"
	"shoplink-shopify-layer/internal/ports"

	"github.com/rs/zerolog"
)

var (
	// ErrNotConnected means no visible shop is bound to the experience.
	ErrNotConnected = errors.New("no shop connected for this experience")
	// ErrNoStorefrontToken means the shop is connected but the best-effort
	// storefront token was never provisioned.
	ErrNoStorefrontToken = errors.New("shop has no storefront access token")
	// ErrHostUnavailable means an operation needs the embedding host and no
	// host service is configured.
	ErrHostUnavailable = errors.New("embedding host service not configured")
	// ErrAccessDenied means the host rejected the user for this experience.
	ErrAccessDenied = errors.New("access denied")
)

// StorefrontService is the experience-scoped surface the embedding UI talks
// to. Every operation resolves the experience to its shop first; a missing or
// soft-deleted shop is ErrNotConnected.
type StorefrontService struct {
	store  ports.ShopStore
	admin  ports.ShopifyAdmin
	host   ports.HostService
	logger zerolog.Logger
}

// NewStorefrontService creates the storefront surface. host may be nil when
// the deployment has no embedding-host integration; checkout then fails with
// ErrHostUnavailable.
func NewStorefrontService(store ports.ShopStore, admin ports.ShopifyAdmin, host ports.HostService, logger zerolog.Logger) *StorefrontService {
	return &StorefrontService{
		store:  store,
		admin:  admin,
		host:   host,
		logger: logger,
	}
}

func (s *StorefrontService) resolveShop(ctx context.Context, experienceID string) (*domain.ShopCredential, error) {
	if experienceID == "" {
		return nil, ErrMissingParams
	}
	shop, err := s.store.GetShopByExperience(ctx, experienceID)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve experience: %w", err)
	}
	if shop == nil {
		return nil, ErrNotConnected
	}
	return shop, nil
}

// ShopDetails is the connection status payload served to the embedding UI.
type ShopDetails struct {
	Connected  bool            `json:"connected"`
	ShopDomain string          `json:"shopDomain,omitempty"`
	Name       string          `json:"name,omitempty"`
	Info       *ports.ShopInfo `json:"info,omitempty"`
}

// Shop reports whether the experience has a connected shop and, when it does,
// the live shop metadata. A metadata fetch failure downgrades to the stored
// fields rather than failing the whole call.
func (s *StorefrontService) Shop(ctx context.Context, experienceID string) (*ShopDetails, error) {
	shop, err := s.resolveShop(ctx, experienceID)
	if errors.Is(err, ErrNotConnected) {
		return &ShopDetails{Connected: false}, nil
	}
	if err != nil {
		return nil, err
	}

	details := &ShopDetails{Connected: true, ShopDomain: shop.ShopDomain, Name: shop.Name}
	info, err := s.admin.FetchShopInfo(ctx, shop.ShopDomain, shop.AdminAccessToken)
	if err != nil {
		s.logger.Warn().Err(err).Str("shop", shop.ShopDomain).Msg("shop info fetch failed")
		return details, nil
	}
	details.Info = info
	return details, nil
}

// Products lists catalog products for the experience's shop.
func (s *StorefrontService) Products(ctx context.Context, experienceID string, first int) ([]ports.Product, error) {
	shop, err := s.resolveShop(ctx, experienceID)
	if err != nil {
		return nil, err
	}
	if first <= 0 || first > 250 {
		first = 50
	}
	return s.admin.FetchProducts(ctx, shop.ShopDomain, shop.AdminAccessToken, first)
}

// CartCreate creates a storefront cart and returns its hosted checkout URL.
func (s *StorefrontService) CartCreate(ctx context.Context, experienceID string, lines []ports.CartLine) (*ports.Cart, error) {
	shop, err := s.resolveShop(ctx, experienceID)
	if err != nil {
		return nil, err
	}
	if shop.StorefrontAccessToken == "" {
		return nil, ErrNoStorefrontToken
	}
	if len(lines) == 0 {
		return nil, ErrMissingParams
	}
	return s.admin.CartCreate(ctx, shop.ShopDomain, shop.StorefrontAccessToken, lines)
}

// CheckoutInput describes an in-experience purchase: the host charges the
// user, then the order is placed on the shop through the admin API.
type CheckoutInput struct {
	ExperienceID string
	VariantID    string
	Quantity     int
	UserToken    string
	AmountCents  int64
	Currency     string
	Description  string
}

// CheckoutResult reports either a completed order or a charge that needs
// further user action on the host side.
type CheckoutResult struct {
	Status        ports.ChargeStatus `json:"status"`
	Order         *ports.DraftOrder  `json:"order,omitempty"`
	InAppPurchase map[string]any     `json:"inAppPurchase,omitempty"`
}

// Checkout charges the user through the embedding host and, on success,
// creates and completes a draft order on the shop. The charge happens before
// the order: a failed order after a successful charge is logged for manual
// follow-up rather than auto-refunded.
func (s *StorefrontService) Checkout(ctx context.Context, in CheckoutInput) (*CheckoutResult, error) {
	if s.host == nil {
		return nil, ErrHostUnavailable
	}
	if in.VariantID == "" || in.UserToken == "" {
		return nil, ErrMissingParams
	}
	shop, err := s.resolveShop(ctx, in.ExperienceID)
	if err != nil {
		return nil, err
	}

	user, err := s.host.VerifyUserToken(ctx, in.UserToken)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrAccessDenied, err)
	}
	access, err := s.host.CheckAccess(ctx, user.ID, in.ExperienceID)
	if err != nil {
		return nil, fmt.Errorf("failed to check access: %w", err)
	}
	if access == ports.AccessNone {
		return nil, ErrAccessDenied
	}

	charge, err := s.host.ChargeUser(ctx, ports.ChargeInput{
		UserID:      user.ID,
		AmountCents: in.AmountCents,
		Currency:    in.Currency,
		Description: in.Description,
		Metadata: map[string]string{
			"experienceId": in.ExperienceID,
			"variantId":    in.VariantID,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("charge failed: %w", err)
	}
	if charge.Status == ports.ChargeNeedsAction {
		return &CheckoutResult{Status: charge.Status, InAppPurchase: charge.InAppPurchase}, nil
	}

	quantity := in.Quantity
	if quantity <= 0 {
		quantity = 1
	}
	draft, err := s.admin.CreateDraftOrder(ctx, shop.ShopDomain, shop.AdminAccessToken, in.VariantID, quantity, user.Email)
	if err != nil {
		s.logger.Error().Err(err).Str("shop", shop.ShopDomain).Str("userId", user.ID).Msg("draft order creation failed after successful charge")
		return nil, fmt.Errorf("failed to create order: %w", err)
	}
	order, err := s.admin.CompleteDraftOrder(ctx, shop.ShopDomain, shop.AdminAccessToken, draft.OrderID)
	if err != nil {
		s.logger.Error().Err(err).Str("shop", shop.ShopDomain).Str("draftOrderId", draft.OrderID).Msg("draft order completion failed after successful charge")
		return nil, fmt.Errorf("failed to complete order: %w", err)
	}

	s.logger.Info().Str("shop", shop.ShopDomain).Str("orderId", order.OrderID).Msg("checkout completed")
	return &CheckoutResult{Status: ports.ChargeSucceeded, Order: order}, nil
}

// Disconnect unbinds the experience and removes the shop when no other
// experience still references it.
func (s *StorefrontService) Disconnect(ctx context.Context, experienceID string) (*domain.StoreResult, error) {
	if experienceID == "" {
		return nil, ErrMissingParams
	}
	return s.store.DisconnectShop(ctx, experienceID)
}

// CloseStore soft-deletes the experience's shop.
func (s *StorefrontService) CloseStore(ctx context.Context, experienceID string) (*domain.StoreResult, error) {
	if experienceID == "" {
		return nil, ErrMissingParams
	}
	return s.store.SoftDeleteShop(ctx, experienceID)
}

// UpdateName renames the experience's shop.
func (s *StorefrontService) UpdateName(ctx context.Context, experienceID, name string) (*domain.StoreResult, error) {
	if experienceID == "" || name == "" {
		return nil, ErrMissingParams
	}
	return s.store.UpdateShopName(ctx, experienceID, name)
}
