package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"shoplink-shopify-layer/internal/domain"
	"shoplink-shopify-layer/internal/ports"

	_ "modernc.org/sqlite"
)

// Compile-time check that SQLiteStore satisfies ports.ShopStore.
var _ ports.ShopStore = (*SQLiteStore)(nil)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS shops (
	shop_domain TEXT PRIMARY KEY,
	admin_access_token TEXT NOT NULL,
	storefront_access_token TEXT,
	name TEXT,
	creator TEXT,
	created_at TEXT NOT NULL,
	updated_at TEXT NOT NULL,
	deleted_at TEXT
);

CREATE TABLE IF NOT EXISTS experiences (
	experience_id TEXT PRIMARY KEY,
	shop_domain TEXT NOT NULL REFERENCES shops(shop_domain) ON DELETE CASCADE,
	creator TEXT,
	created_at TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_experiences_shop_domain ON experiences(shop_domain);
`

// SQLiteStore is the relational ShopStore implementation. Upserts are atomic
// at the row level, which is the only ordering guarantee concurrent installs
// for the same domain rely on.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (or creates) the database at path and ensures the
// schema exists. Use ":memory:" for an ephemeral store.
func NewSQLiteStore(ctx context.Context, path string) (*SQLiteStore, error) {
	dsn := path
	if path != ":memory:" {
		dsn += "?_journal_mode=WAL&_busy_timeout=5000"
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}
	if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}
	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) time.Time {
	t, _ := time.Parse(time.RFC3339Nano, s)
	return t
}

// SaveShop upserts by domain. Empty optional fields do not clobber existing
// values, updated_at is always refreshed and any soft-delete marker is
// cleared so a reinstall revives the row.
func (s *SQLiteStore) SaveShop(ctx context.Context, shop *domain.ShopCredential) error {
	now := formatTime(time.Now())
	var creator any
	if len(shop.Creator) > 0 {
		creator = string(shop.Creator)
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO shops (shop_domain, admin_access_token, storefront_access_token, name, creator, created_at, updated_at, deleted_at)
		VALUES (?, ?, NULLIF(?, ''), NULLIF(?, ''), ?, ?, ?, NULL)
		ON CONFLICT(shop_domain) DO UPDATE SET
			admin_access_token = excluded.admin_access_token,
			storefront_access_token = COALESCE(excluded.storefront_access_token, shops.storefront_access_token),
			name = COALESCE(excluded.name, shops.name),
			creator = COALESCE(excluded.creator, shops.creator),
			updated_at = excluded.updated_at,
			deleted_at = NULL`,
		shop.ShopDomain, shop.AdminAccessToken, shop.StorefrontAccessToken, shop.Name, creator, now, now,
	)
	if err != nil {
		return fmt.Errorf("failed to save shop: %w", err)
	}
	return nil
}

const shopColumns = `shop_domain, admin_access_token, COALESCE(storefront_access_token, ''), COALESCE(name, ''), creator, created_at, updated_at, deleted_at`

func scanShop(row *sql.Row) (*domain.ShopCredential, error) {
	var shop domain.ShopCredential
	var creator, deletedAt sql.NullString
	var createdAt, updatedAt string

	err := row.Scan(
		&shop.ShopDomain, &shop.AdminAccessToken, &shop.StorefrontAccessToken,
		&shop.Name, &creator, &createdAt, &updatedAt, &deletedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan shop: %w", err)
	}

	if creator.Valid {
		shop.Creator = json.RawMessage(creator.String)
	}
	shop.CreatedAt = parseTime(createdAt)
	shop.UpdatedAt = parseTime(updatedAt)
	if deletedAt.Valid {
		t := parseTime(deletedAt.String)
		shop.DeletedAt = &t
	}
	return &shop, nil
}

// GetShop retrieves a shop by domain, excluding soft-deleted rows.
func (s *SQLiteStore) GetShop(ctx context.Context, shopDomain string) (*domain.ShopCredential, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+shopColumns+` FROM shops
		WHERE shop_domain = ? AND deleted_at IS NULL`, shopDomain)
	return scanShop(row)
}

// SaveExperienceMapping binds an experience to a visible shop. The binding is
// upserted on experience_id, so re-binding an experience to a new shop
// replaces the old binding.
func (s *SQLiteStore) SaveExperienceMapping(ctx context.Context, experienceID, shopDomain string, creator json.RawMessage) error {
	var exists int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM shops WHERE shop_domain = ? AND deleted_at IS NULL`, shopDomain,
	).Scan(&exists)
	if err != nil {
		return fmt.Errorf("failed to look up shop: %w", err)
	}
	if exists == 0 {
		return fmt.Errorf("shop %s not found", shopDomain)
	}

	var creatorVal any
	if len(creator) > 0 {
		creatorVal = string(creator)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO experiences (experience_id, shop_domain, creator, created_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(experience_id) DO UPDATE SET
			shop_domain = excluded.shop_domain,
			creator = COALESCE(excluded.creator, experiences.creator)`,
		experienceID, shopDomain, creatorVal, formatTime(time.Now()),
	)
	if err != nil {
		return fmt.Errorf("failed to save experience mapping: %w", err)
	}
	return nil
}

// GetShopByExperience resolves a binding to its shop. A binding whose shop was
// soft-deleted resolves to absent, not to an error.
func (s *SQLiteStore) GetShopByExperience(ctx context.Context, experienceID string) (*domain.ShopCredential, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT s.shop_domain, s.admin_access_token, COALESCE(s.storefront_access_token, ''), COALESCE(s.name, ''), s.creator, s.created_at, s.updated_at, s.deleted_at
		FROM shops s
		JOIN experiences e ON s.shop_domain = e.shop_domain
		WHERE e.experience_id = ? AND s.deleted_at IS NULL`, experienceID)
	return scanShop(row)
}

// SoftDeleteShop closes the shop bound to an experience. The row stays in
// place so a reinstall for the same domain can revive it.
func (s *SQLiteStore) SoftDeleteShop(ctx context.Context, experienceID string) (*domain.StoreResult, error) {
	var shopDomain string
	err := s.db.QueryRowContext(ctx, `
		SELECT s.shop_domain
		FROM shops s
		JOIN experiences e ON s.shop_domain = e.shop_domain
		WHERE e.experience_id = ? AND s.deleted_at IS NULL`, experienceID,
	).Scan(&shopDomain)
	if err == sql.ErrNoRows {
		return &domain.StoreResult{Success: false, Message: "Shop not found or already closed"}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to resolve shop: %w", err)
	}

	now := formatTime(time.Now())
	if _, err := s.db.ExecContext(ctx, `
		UPDATE shops SET deleted_at = ?, updated_at = ? WHERE shop_domain = ?`,
		now, now, shopDomain,
	); err != nil {
		return nil, fmt.Errorf("failed to close shop: %w", err)
	}
	return &domain.StoreResult{Success: true, Message: fmt.Sprintf("Shop %s has been closed", shopDomain)}, nil
}

// SoftDeleteShopByDomain closes a shop by domain. A shop that is absent or
// already closed is a no-op, which keeps webhook redelivery idempotent.
func (s *SQLiteStore) SoftDeleteShopByDomain(ctx context.Context, shopDomain string) error {
	now := formatTime(time.Now())
	_, err := s.db.ExecContext(ctx, `
		UPDATE shops SET deleted_at = ?, updated_at = ? WHERE shop_domain = ? AND deleted_at IS NULL`,
		now, now, shopDomain,
	)
	if err != nil {
		return fmt.Errorf("failed to close shop: %w", err)
	}
	return nil
}

// DisconnectShop hard-deletes the binding and, when no other experience still
// references the shop, removes the shop row entirely. This is removal, not
// closure; it is a different policy from soft-delete.
func (s *SQLiteStore) DisconnectShop(ctx context.Context, experienceID string) (*domain.StoreResult, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	var shopDomain string
	err = tx.QueryRowContext(ctx, `
		DELETE FROM experiences WHERE experience_id = ? RETURNING shop_domain`, experienceID,
	).Scan(&shopDomain)
	if err == sql.ErrNoRows {
		return &domain.StoreResult{Success: false, Message: fmt.Sprintf("No shop found for experience %s", experienceID)}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to delete experience mapping: %w", err)
	}

	var remaining int
	if err := tx.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM experiences WHERE shop_domain = ?`, shopDomain,
	).Scan(&remaining); err != nil {
		return nil, fmt.Errorf("failed to count remaining bindings: %w", err)
	}
	if remaining == 0 {
		if _, err := tx.ExecContext(ctx, `DELETE FROM shops WHERE shop_domain = ?`, shopDomain); err != nil {
			return nil, fmt.Errorf("failed to delete shop: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}
	return &domain.StoreResult{Success: true, Message: fmt.Sprintf("Disconnected shop %s", shopDomain)}, nil
}

// UpdateShopName renames the shop bound to an experience.
func (s *SQLiteStore) UpdateShopName(ctx context.Context, experienceID, name string) (*domain.StoreResult, error) {
	var shopDomain string
	err := s.db.QueryRowContext(ctx, `
		SELECT s.shop_domain
		FROM shops s
		JOIN experiences e ON s.shop_domain = e.shop_domain
		WHERE e.experience_id = ? AND s.deleted_at IS NULL`, experienceID,
	).Scan(&shopDomain)
	if err == sql.ErrNoRows {
		return &domain.StoreResult{Success: false, Message: "Shop not found"}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to resolve shop: %w", err)
	}

	if _, err := s.db.ExecContext(ctx, `
		UPDATE shops SET name = ?, updated_at = ? WHERE shop_domain = ?`,
		name, formatTime(time.Now()), shopDomain,
	); err != nil {
		return nil, fmt.Errorf("failed to update shop name: %w", err)
	}
	return &domain.StoreResult{
		Success: true,
		Message: fmt.Sprintf("Shop %s renamed", shopDomain),
		Name:    name,
	}, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close(context.Context) error {
	return s.db.Close()
}
