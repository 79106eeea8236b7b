package migrate_test

import (
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"testing/fstest"

	"github.com/angelmondragon/tirestore-backend/pkg/migrate"
)

func readMigration(t *testing.T, pattern string) string {
	t.Helper()
	matches, err := filepath.Glob(filepath.Join("migrations", pattern))
	if err != nil {
		t.Fatalf("glob migrations: %v", err)
	}
	if len(matches) == 0 {
		t.Fatalf("no migration file matches %s", pattern)
	}
	data, err := os.ReadFile(matches[0])
	if err != nil {
		t.Fatalf("read migration file: %v", err)
	}
	return string(data)
}

func TestMigrationsContainSchemas(t *testing.T) {
	cases := []struct {
		pattern string
		checks  []string
	}{
		{
			pattern: "*_create_enums.sql",
			checks: []string{
				"CREATE TYPE user_role AS ENUM ('customer', 'admin')",
				"CREATE TYPE tire_season AS ENUM",
				"'pending_payment'",
				"'payment_review'",
				"CREATE TYPE review_status AS ENUM ('pending', 'approved', 'hidden')",
				"DROP TYPE IF EXISTS order_status",
			},
		},
		{
			pattern: "*_create_products.sql",
			checks: []string{
				"CREATE TABLE IF NOT EXISTS products",
				"CHECK (stock >= 0)",
				"CREATE UNIQUE INDEX IF NOT EXISTS idx_products_sku",
				"CREATE INDEX IF NOT EXISTS idx_products_size",
			},
		},
		{
			pattern: "*_create_cart_items.sql",
			checks: []string{
				"CREATE UNIQUE INDEX IF NOT EXISTS idx_cart_items_user_product ON cart_items (user_id, product_id)",
				"FOREIGN KEY (product_id) REFERENCES products(id) ON DELETE CASCADE",
				"CHECK (quantity > 0)",
			},
		},
		{
			pattern: "*_create_orders.sql",
			checks: []string{
				"CREATE TABLE IF NOT EXISTS orders",
				"CREATE TABLE IF NOT EXISTS order_items",
				"CREATE TABLE IF NOT EXISTS payment_slips",
				"CREATE UNIQUE INDEX IF NOT EXISTS idx_orders_order_number",
				"CREATE INDEX IF NOT EXISTS idx_orders_status_expires",
				"DROP TABLE IF EXISTS payment_slips",
			},
		},
		{
			pattern: "*_create_reviews.sql",
			checks: []string{
				"CHECK (rating BETWEEN 1 AND 5)",
				"CREATE UNIQUE INDEX IF NOT EXISTS idx_reviews_user_product",
			},
		},
		{
			pattern: "*_create_site_settings.sql",
			checks: []string{
				"CREATE TABLE IF NOT EXISTS site_settings",
				"DROP TABLE IF EXISTS site_settings",
			},
		},
	}

	for _, tc := range cases {
		t.Run(tc.pattern, func(t *testing.T) {
			content := readMigration(t, tc.pattern)
			for _, sub := range tc.checks {
				if !strings.Contains(content, sub) {
					t.Errorf("missing expected statement %q", sub)
				}
			}
		})
	}
}

func TestValidateDirAcceptsShippedMigrations(t *testing.T) {
	if err := migrate.ValidateDir("migrations"); err != nil {
		t.Fatalf("ValidateDir returned error: %v", err)
	}
}

func TestValidateDirRejectsBadFilename(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "create-things.sql"), []byte("-- +goose Up\n-- +goose Down\n"), 0o644); err != nil {
		t.Fatalf("write file: %v", err)
	}
	if err := migrate.ValidateDir(dir); err == nil {
		t.Fatal("expected invalid filename error")
	}
}

func TestValidateDirRejectsMissingDown(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "20260101000000_only_up.sql"), []byte("-- +goose Up\nSELECT 1;\n"), 0o644); err != nil {
		t.Fatalf("write file: %v", err)
	}
	if err := migrate.ValidateDir(dir); err == nil {
		t.Fatal("expected missing down section error")
	}
}

func TestCreateSQLMigrationSanitizesName(t *testing.T) {
	dir := t.TempDir()
	path, err := migrate.CreateSQLMigration(dir, "Add Tire Tags!")
	if err != nil {
		t.Fatalf("CreateSQLMigration returned error: %v", err)
	}
	if !strings.HasSuffix(path, "_add_tire_tags.sql") {
		t.Fatalf("unexpected path %q", path)
	}
	if err := migrate.ValidateDir(dir); err != nil {
		t.Fatalf("created migration fails validation: %v", err)
	}
}

func TestEmbeddedMigrationsValidate(t *testing.T) {
	if err := migrate.Validate(migrate.Embedded()); err != nil {
		t.Fatalf("embedded migrations fail validation: %v", err)
	}
}

func TestSourceFallsBackToEmbedded(t *testing.T) {
	entries, err := fs.ReadDir(migrate.Source(""), ".")
	if err != nil {
		t.Fatalf("read embedded source: %v", err)
	}
	if len(entries) < 7 {
		t.Fatalf("expected shipped migrations, got %d entries", len(entries))
	}
}

func TestValidateRejectsUnbalancedStatements(t *testing.T) {
	fsys := fstest.MapFS{
		"20260101000000_broken.sql": &fstest.MapFile{Data: []byte("-- +goose Up\n-- +goose StatementBegin\nSELECT 1;\n-- +goose Down\nSELECT 1;\n")},
	}
	if err := migrate.Validate(fsys); err == nil {
		t.Fatal("expected unbalanced statement error")
	}
}

func TestValidateRejectsDuplicateVersion(t *testing.T) {
	body := []byte("-- +goose Up\nSELECT 1;\n-- +goose Down\nSELECT 1;\n")
	fsys := fstest.MapFS{
		"20260101000000_first.sql":  &fstest.MapFile{Data: body},
		"20260101000000_second.sql": &fstest.MapFile{Data: body},
	}
	if err := migrate.Validate(fsys); err == nil {
		t.Fatal("expected duplicate version error")
	}
}

func TestNewRequiresDB(t *testing.T) {
	if _, err := migrate.New(nil, migrate.Embedded()); err == nil {
		t.Fatal("expected error without db")
	}
}
