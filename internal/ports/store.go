package ports

import (
	"context"
	"encoding/json"

	"shoplink-shopify-layer/internal/domain"
)

// ShopStore defines the interface for shop credential and experience binding
// persistence. Lookup methods return (nil, nil) when no visible record exists;
// soft-deleted shops are excluded from every lookup.
type ShopStore interface {
	// SaveShop upserts a credential by domain. It merges fields, refreshes
	// updated_at and clears any prior soft-delete marker.
	SaveShop(ctx context.Context, shop *domain.ShopCredential) error

	// GetShop retrieves a shop by domain, excluding soft-deleted rows.
	GetShop(ctx context.Context, shopDomain string) (*domain.ShopCredential, error)

	// SaveExperienceMapping binds an experience to a shop. It fails if the
	// shop does not exist or is soft-deleted.
	SaveExperienceMapping(ctx context.Context, experienceID, shopDomain string, creator json.RawMessage) error

	// GetShopByExperience resolves a binding to its shop, excluding
	// soft-deleted shops even when the binding row still exists.
	GetShopByExperience(ctx context.Context, experienceID string) (*domain.ShopCredential, error)

	// SoftDeleteShop marks the shop bound to an experience as deleted.
	SoftDeleteShop(ctx context.Context, experienceID string) (*domain.StoreResult, error)

	// SoftDeleteShopByDomain marks a shop as deleted by its domain. Used by
	// the deprovisioning webhook, which only knows the shop domain.
	SoftDeleteShopByDomain(ctx context.Context, shopDomain string) error

	// DisconnectShop hard-deletes the binding and removes the shop row
	// entirely when no other binding references it.
	DisconnectShop(ctx context.Context, experienceID string) (*domain.StoreResult, error)

	// UpdateShopName renames the shop bound to an experience.
	UpdateShopName(ctx context.Context, experienceID, name string) (*domain.StoreResult, error)

	Close(ctx context.Context) error
}
