package domain

import (
	"encoding/json"
	"time"
)

// ShopSuffix is the fixed suffix every canonical shop domain must carry.
const ShopSuffix = ".myshopify.com"

// ShopCredential is the stored credential set for a connected shop.
// AdminAccessToken is the long-lived admin credential obtained through OAuth;
// StorefrontAccessToken is provisioned lazily after the admin token exists and
// may stay empty. Creator is opaque installer metadata and is never validated.
type ShopCredential struct {
	ShopDomain            string          `json:"shop_domain" bson:"shop_domain"`
	AdminAccessToken      string          `json:"admin_access_token" bson:"admin_access_token"`
	StorefrontAccessToken string          `json:"storefront_access_token,omitempty" bson:"storefront_access_token,omitempty"`
	Name                  string          `json:"name,omitempty" bson:"name,omitempty"`
	Creator               json.RawMessage `json:"creator,omitempty" bson:"creator,omitempty"`
	CreatedAt             time.Time       `json:"created_at" bson:"created_at"`
	UpdatedAt             time.Time       `json:"updated_at" bson:"updated_at"`
	DeletedAt             *time.Time      `json:"deleted_at,omitempty" bson:"deleted_at,omitempty"`
}

// Deleted reports whether the shop has been soft-deleted. Soft-deleted shops
// are invisible to lookups but are revived on the next successful install.
func (s *ShopCredential) Deleted() bool {
	return s.DeletedAt != nil
}

// ExperienceBinding maps an embedding-host experience to a connected shop.
// An experience points at exactly one shop; a shop may serve many experiences.
type ExperienceBinding struct {
	ExperienceID string          `json:"experience_id" bson:"experience_id"`
	ShopDomain   string          `json:"shop_domain" bson:"shop_domain"`
	Creator      json.RawMessage `json:"creator,omitempty" bson:"creator,omitempty"`
	CreatedAt    time.Time       `json:"created_at" bson:"created_at"`
}

// StoreResult is the operator-facing outcome of a store command. Callers
// surface Message directly, so it must be descriptive rather than an error
// chain.
type StoreResult struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Name    string `json:"name,omitempty"`
}

// WebhookEvent is a verified inbound webhook delivery.
type WebhookEvent struct {
	Topic   string
	Shop    string
	Payload []byte
}
