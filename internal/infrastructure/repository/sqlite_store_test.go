package repository

import (
	"context"
	"encoding/json"
	"testing"

	"shoplink-shopify-layer/internal/domain"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store, err := NewSQLiteStore(context.Background(), ":memory:")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { store.Close(context.Background()) })
	return store
}

func mustSaveShop(t *testing.T, store *SQLiteStore, shop *domain.ShopCredential) {
	t.Helper()
	if err := store.SaveShop(context.Background(), shop); err != nil {
		t.Fatal(err)
	}
}

func TestSaveShopUpsertMerge(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	mustSaveShop(t, store, &domain.ShopCredential{
		ShopDomain:            "a.myshopify.com",
		AdminAccessToken:      "admin-1",
		StorefrontAccessToken: "sf-1",
		Name:                  "Shop A",
	})

	// A second save with empty optional fields must not clobber them.
	mustSaveShop(t, store, &domain.ShopCredential{
		ShopDomain:       "a.myshopify.com",
		AdminAccessToken: "admin-2",
	})

	shop, err := store.GetShop(ctx, "a.myshopify.com")
	if err != nil {
		t.Fatal(err)
	}
	if shop == nil {
		t.Fatal("expected shop")
	}
	if shop.AdminAccessToken != "admin-2" {
		t.Fatalf("admin token not updated: %q", shop.AdminAccessToken)
	}
	if shop.StorefrontAccessToken != "sf-1" {
		t.Fatalf("storefront token clobbered: %q", shop.StorefrontAccessToken)
	}
	if shop.Name != "Shop A" {
		t.Fatalf("name clobbered: %q", shop.Name)
	}
	if !shop.UpdatedAt.After(shop.CreatedAt) && !shop.UpdatedAt.Equal(shop.CreatedAt) {
		t.Fatal("updated_at not refreshed")
	}
}

func TestGetShopAbsentIsNilNil(t *testing.T) {
	store := newTestStore(t)
	shop, err := store.GetShop(context.Background(), "nope.myshopify.com")
	if err != nil {
		t.Fatal(err)
	}
	if shop != nil {
		t.Fatalf("expected nil for absent shop, got %+v", shop)
	}
}

func TestSoftDeleteVisibilityAndRevival(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	mustSaveShop(t, store, &domain.ShopCredential{
		ShopDomain:       "a.myshopify.com",
		AdminAccessToken: "admin-1",
		Name:             "Shop A",
	})
	if err := store.SaveExperienceMapping(ctx, "exp-1", "a.myshopify.com", nil); err != nil {
		t.Fatal(err)
	}

	if err := store.SoftDeleteShopByDomain(ctx, "a.myshopify.com"); err != nil {
		t.Fatal(err)
	}

	// Invisible to both lookups.
	if shop, _ := store.GetShop(ctx, "a.myshopify.com"); shop != nil {
		t.Fatal("soft-deleted shop visible via GetShop")
	}
	if shop, _ := store.GetShopByExperience(ctx, "exp-1"); shop != nil {
		t.Fatal("soft-deleted shop visible via GetShopByExperience")
	}

	// White-box: the row is still there with deleted_at set.
	var deletedAt string
	err := store.db.QueryRowContext(ctx,
		`SELECT deleted_at FROM shops WHERE shop_domain = ?`, "a.myshopify.com",
	).Scan(&deletedAt)
	if err != nil {
		t.Fatal(err)
	}
	if deletedAt == "" {
		t.Fatal("expected deleted_at to be set")
	}

	// Redelivery of the deprovisioning event is a no-op.
	if err := store.SoftDeleteShopByDomain(ctx, "a.myshopify.com"); err != nil {
		t.Fatal(err)
	}

	// A reinstall revives the row and the old binding works again.
	mustSaveShop(t, store, &domain.ShopCredential{
		ShopDomain:       "a.myshopify.com",
		AdminAccessToken: "admin-2",
	})
	shop, err := store.GetShopByExperience(ctx, "exp-1")
	if err != nil {
		t.Fatal(err)
	}
	if shop == nil {
		t.Fatal("expected revived shop via old binding")
	}
	if shop.AdminAccessToken != "admin-2" {
		t.Fatalf("unexpected token %q", shop.AdminAccessToken)
	}
	if shop.Name != "Shop A" {
		t.Fatalf("expected name to survive revival, got %q", shop.Name)
	}
}

func TestSaveExperienceMappingRequiresVisibleShop(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	if err := store.SaveExperienceMapping(ctx, "exp-1", "missing.myshopify.com", nil); err == nil {
		t.Fatal("expected binding to absent shop to fail")
	}

	mustSaveShop(t, store, &domain.ShopCredential{ShopDomain: "a.myshopify.com", AdminAccessToken: "tok"})
	if err := store.SoftDeleteShopByDomain(ctx, "a.myshopify.com"); err != nil {
		t.Fatal(err)
	}
	if err := store.SaveExperienceMapping(ctx, "exp-1", "a.myshopify.com", nil); err == nil {
		t.Fatal("expected binding to soft-deleted shop to fail")
	}
}

func TestSaveExperienceMappingRebind(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	mustSaveShop(t, store, &domain.ShopCredential{ShopDomain: "a.myshopify.com", AdminAccessToken: "tok-a"})
	mustSaveShop(t, store, &domain.ShopCredential{ShopDomain: "b.myshopify.com", AdminAccessToken: "tok-b"})

	creator := json.RawMessage(`{"userId":"u-1"}`)
	if err := store.SaveExperienceMapping(ctx, "exp-1", "a.myshopify.com", creator); err != nil {
		t.Fatal(err)
	}
	if err := store.SaveExperienceMapping(ctx, "exp-1", "b.myshopify.com", nil); err != nil {
		t.Fatal(err)
	}

	shop, err := store.GetShopByExperience(ctx, "exp-1")
	if err != nil {
		t.Fatal(err)
	}
	if shop == nil || shop.ShopDomain != "b.myshopify.com" {
		t.Fatalf("expected rebind to b.myshopify.com, got %+v", shop)
	}
}

func TestDisconnectReferenceCounting(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	mustSaveShop(t, store, &domain.ShopCredential{ShopDomain: "a.myshopify.com", AdminAccessToken: "tok"})
	if err := store.SaveExperienceMapping(ctx, "exp-1", "a.myshopify.com", nil); err != nil {
		t.Fatal(err)
	}
	if err := store.SaveExperienceMapping(ctx, "exp-2", "a.myshopify.com", nil); err != nil {
		t.Fatal(err)
	}

	// First disconnect: shop survives, other binding still resolves.
	result, err := store.DisconnectShop(ctx, "exp-1")
	if err != nil {
		t.Fatal(err)
	}
	if !result.Success {
		t.Fatalf("expected success: %+v", result)
	}
	if shop, _ := store.GetShop(ctx, "a.myshopify.com"); shop == nil {
		t.Fatal("shop removed while still referenced")
	}
	if shop, _ := store.GetShopByExperience(ctx, "exp-2"); shop == nil {
		t.Fatal("surviving binding no longer resolves")
	}

	// Last disconnect removes the shop row entirely.
	result, err = store.DisconnectShop(ctx, "exp-2")
	if err != nil {
		t.Fatal(err)
	}
	if !result.Success {
		t.Fatalf("expected success: %+v", result)
	}
	if shop, _ := store.GetShop(ctx, "a.myshopify.com"); shop != nil {
		t.Fatal("shop should be removed after last disconnect")
	}

	var rows int
	if err := store.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM shops`).Scan(&rows); err != nil {
		t.Fatal(err)
	}
	if rows != 0 {
		t.Fatalf("expected no shop rows, found %d", rows)
	}

	// Disconnecting an unknown experience reports failure without error.
	result, err = store.DisconnectShop(ctx, "exp-unknown")
	if err != nil {
		t.Fatal(err)
	}
	if result.Success {
		t.Fatal("expected failure for unknown experience")
	}
}

func TestSoftDeleteShopByExperience(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	mustSaveShop(t, store, &domain.ShopCredential{ShopDomain: "a.myshopify.com", AdminAccessToken: "tok"})
	if err := store.SaveExperienceMapping(ctx, "exp-1", "a.myshopify.com", nil); err != nil {
		t.Fatal(err)
	}

	result, err := store.SoftDeleteShop(ctx, "exp-1")
	if err != nil {
		t.Fatal(err)
	}
	if !result.Success {
		t.Fatalf("expected success: %+v", result)
	}

	// Second close: already gone.
	result, err = store.SoftDeleteShop(ctx, "exp-1")
	if err != nil {
		t.Fatal(err)
	}
	if result.Success {
		t.Fatal("expected failure once shop already closed")
	}
}

func TestUpdateShopName(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	mustSaveShop(t, store, &domain.ShopCredential{ShopDomain: "a.myshopify.com", AdminAccessToken: "tok", Name: "Old"})
	if err := store.SaveExperienceMapping(ctx, "exp-1", "a.myshopify.com", nil); err != nil {
		t.Fatal(err)
	}

	result, err := store.UpdateShopName(ctx, "exp-1", "New Name")
	if err != nil {
		t.Fatal(err)
	}
	if !result.Success || result.Name != "New Name" {
		t.Fatalf("unexpected result %+v", result)
	}

	shop, err := store.GetShop(ctx, "a.myshopify.com")
	if err != nil {
		t.Fatal(err)
	}
	if shop.Name != "New Name" {
		t.Fatalf("name not persisted: %q", shop.Name)
	}

	result, err = store.UpdateShopName(ctx, "exp-unknown", "X")
	if err != nil {
		t.Fatal(err)
	}
	if result.Success {
		t.Fatal("expected failure for unknown experience")
	}
}
