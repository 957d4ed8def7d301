package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"shoplink-shopify-layer/internal/domain"
	"shoplink-shopify-layer/internal/ports"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Compile-time check that MongoStore satisfies ports.ShopStore.
var _ ports.ShopStore = (*MongoStore)(nil)

// MongoStore implements ShopStore on MongoDB with the same visibility rules
// as the SQLite store: lookups filter on a null deleted_at, upserts clear it.
type MongoStore struct {
	client      *mongo.Client
	shops       *mongo.Collection
	experiences *mongo.Collection
}

type mongoShopDoc struct {
	ShopDomain            string     `bson:"shop_domain"`
	AdminAccessToken      string     `bson:"admin_access_token"`
	StorefrontAccessToken string     `bson:"storefront_access_token,omitempty"`
	Name                  string     `bson:"name,omitempty"`
	Creator               string     `bson:"creator,omitempty"`
	CreatedAt             time.Time  `bson:"created_at"`
	UpdatedAt             time.Time  `bson:"updated_at"`
	DeletedAt             *time.Time `bson:"deleted_at,omitempty"`
}

type mongoExperienceDoc struct {
	ExperienceID string    `bson:"experience_id"`
	ShopDomain   string    `bson:"shop_domain"`
	Creator      string    `bson:"creator,omitempty"`
	CreatedAt    time.Time `bson:"created_at"`
}

func (d *mongoShopDoc) toDomain() *domain.ShopCredential {
	shop := &domain.ShopCredential{
		ShopDomain:            d.ShopDomain,
		AdminAccessToken:      d.AdminAccessToken,
		StorefrontAccessToken: d.StorefrontAccessToken,
		Name:                  d.Name,
		CreatedAt:             d.CreatedAt,
		UpdatedAt:             d.UpdatedAt,
		DeletedAt:             d.DeletedAt,
	}
	if d.Creator != "" {
		shop.Creator = json.RawMessage(d.Creator)
	}
	return shop
}

// NewMongoStore creates a MongoDB-backed store using the given database.
func NewMongoStore(ctx context.Context, client *mongo.Client, dbName string) (*MongoStore, error) {
	db := client.Database(dbName)
	store := &MongoStore{
		client:      client,
		shops:       db.Collection("shops"),
		experiences: db.Collection("experiences"),
	}

	_, err := store.experiences.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "experience_id", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create experience index: %w", err)
	}
	return store, nil
}

func notDeleted(filter bson.M) bson.M {
	filter["deleted_at"] = bson.M{"$eq": nil}
	return filter
}

// SaveShop upserts by domain, refreshing updated_at and clearing deleted_at.
// Empty optional fields leave the stored values untouched.
func (m *MongoStore) SaveShop(ctx context.Context, shop *domain.ShopCredential) error {
	now := time.Now().UTC()
	set := bson.M{
		"shop_domain":        shop.ShopDomain,
		"admin_access_token": shop.AdminAccessToken,
		"updated_at":         now,
		"deleted_at":         nil,
	}
	if shop.StorefrontAccessToken != "" {
		set["storefront_access_token"] = shop.StorefrontAccessToken
	}
	if shop.Name != "" {
		set["name"] = shop.Name
	}
	if len(shop.Creator) > 0 {
		set["creator"] = string(shop.Creator)
	}

	opts := options.Update().SetUpsert(true)
	update := bson.M{
		"$set":         set,
		"$setOnInsert": bson.M{"created_at": now},
	}
	if _, err := m.shops.UpdateOne(ctx, bson.M{"shop_domain": shop.ShopDomain}, update, opts); err != nil {
		return fmt.Errorf("failed to save shop: %w", err)
	}
	return nil
}

// GetShop retrieves a shop by domain, excluding soft-deleted documents.
func (m *MongoStore) GetShop(ctx context.Context, shopDomain string) (*domain.ShopCredential, error) {
	var doc mongoShopDoc
	err := m.shops.FindOne(ctx, notDeleted(bson.M{"shop_domain": shopDomain})).Decode(&doc)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get shop: %w", err)
	}
	return doc.toDomain(), nil
}

// SaveExperienceMapping binds an experience to a visible shop, upserting on
// experience_id.
func (m *MongoStore) SaveExperienceMapping(ctx context.Context, experienceID, shopDomain string, creator json.RawMessage) error {
	count, err := m.shops.CountDocuments(ctx, notDeleted(bson.M{"shop_domain": shopDomain}))
	if err != nil {
		return fmt.Errorf("failed to look up shop: %w", err)
	}
	if count == 0 {
		return fmt.Errorf("shop %s not found", shopDomain)
	}

	set := bson.M{"shop_domain": shopDomain}
	if len(creator) > 0 {
		set["creator"] = string(creator)
	}
	opts := options.Update().SetUpsert(true)
	update := bson.M{
		"$set":         set,
		"$setOnInsert": bson.M{"experience_id": experienceID, "created_at": time.Now().UTC()},
	}
	if _, err := m.experiences.UpdateOne(ctx, bson.M{"experience_id": experienceID}, update, opts); err != nil {
		return fmt.Errorf("failed to save experience mapping: %w", err)
	}
	return nil
}

func (m *MongoStore) resolveShopDomain(ctx context.Context, experienceID string) (string, error) {
	var binding mongoExperienceDoc
	err := m.experiences.FindOne(ctx, bson.M{"experience_id": experienceID}).Decode(&binding)
	if err == mongo.ErrNoDocuments {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to resolve experience: %w", err)
	}
	return binding.ShopDomain, nil
}

// GetShopByExperience resolves a binding to its shop; a binding whose shop is
// soft-deleted resolves to absent.
func (m *MongoStore) GetShopByExperience(ctx context.Context, experienceID string) (*domain.ShopCredential, error) {
	shopDomain, err := m.resolveShopDomain(ctx, experienceID)
	if err != nil || shopDomain == "" {
		return nil, err
	}
	return m.GetShop(ctx, shopDomain)
}

// SoftDeleteShop closes the shop bound to an experience.
func (m *MongoStore) SoftDeleteShop(ctx context.Context, experienceID string) (*domain.StoreResult, error) {
	shop, err := m.GetShopByExperience(ctx, experienceID)
	if err != nil {
		return nil, err
	}
	if shop == nil {
		return &domain.StoreResult{Success: false, Message: "Shop not found or already closed"}, nil
	}
	if err := m.SoftDeleteShopByDomain(ctx, shop.ShopDomain); err != nil {
		return nil, err
	}
	return &domain.StoreResult{Success: true, Message: fmt.Sprintf("Shop %s has been closed", shop.ShopDomain)}, nil
}

// SoftDeleteShopByDomain closes a shop by domain; absent or already-closed
// shops are a no-op.
func (m *MongoStore) SoftDeleteShopByDomain(ctx context.Context, shopDomain string) error {
	now := time.Now().UTC()
	_, err := m.shops.UpdateOne(ctx,
		notDeleted(bson.M{"shop_domain": shopDomain}),
		bson.M{"$set": bson.M{"deleted_at": now, "updated_at": now}},
	)
	if err != nil {
		return fmt.Errorf("failed to close shop: %w", err)
	}
	return nil
}

// DisconnectShop removes the binding and reference-counts the shop away when
// nothing else points at it.
func (m *MongoStore) DisconnectShop(ctx context.Context, experienceID string) (*domain.StoreResult, error) {
	var binding mongoExperienceDoc
	err := m.experiences.FindOneAndDelete(ctx, bson.M{"experience_id": experienceID}).Decode(&binding)
	if err == mongo.ErrNoDocuments {
		return &domain.StoreResult{Success: false, Message: fmt.Sprintf("No shop found for experience %s", experienceID)}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to delete experience mapping: %w", err)
	}

	remaining, err := m.experiences.CountDocuments(ctx, bson.M{"shop_domain": binding.ShopDomain})
	if err != nil {
		return nil, fmt.Errorf("failed to count remaining bindings: %w", err)
	}
	if remaining == 0 {
		if _, err := m.shops.DeleteOne(ctx, bson.M{"shop_domain": binding.ShopDomain}); err != nil {
			return nil, fmt.Errorf("failed to delete shop: %w", err)
		}
	}
	return &domain.StoreResult{Success: true, Message: fmt.Sprintf("Disconnected shop %s", binding.ShopDomain)}, nil
}

// UpdateShopName renames the shop bound to an experience.
func (m *MongoStore) UpdateShopName(ctx context.Context, experienceID, name string) (*domain.StoreResult, error) {
	shop, err := m.GetShopByExperience(ctx, experienceID)
	if err != nil {
		return nil, err
	}
	if shop == nil {
		return &domain.StoreResult{Success: false, Message: "Shop not found"}, nil
	}

	_, err = m.shops.UpdateOne(ctx,
		bson.M{"shop_domain": shop.ShopDomain},
		bson.M{"$set": bson.M{"name": name, "updated_at": time.Now().UTC()}},
	)
	if err != nil {
		return nil, fmt.Errorf("failed to update shop name: %w", err)
	}
	return &domain.StoreResult{
		Success: true,
		Message: fmt.Sprintf("Shop %s renamed", shop.ShopDomain),
		Name:    name,
	}, nil
}

// Close disconnects the underlying client.
func (m *MongoStore) Close(ctx context.Context) error {
	return m.client.Disconnect(ctx)
}
