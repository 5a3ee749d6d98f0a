package migrate_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/seramic/shop-backend/pkg/migrate"
)

func readMigration(t *testing.T, suffix string) string {
	t.Helper()
	matches, err := filepath.Glob(filepath.Join("migrations", "*_"+suffix+".sql"))
	if err != nil {
		t.Fatalf("glob migrations: %v", err)
	}
	if len(matches) != 1 {
		t.Fatalf("expected one %s migration, found %d", suffix, len(matches))
	}
	data, err := os.ReadFile(matches[0])
	if err != nil {
		t.Fatalf("read migration file: %v", err)
	}
	return string(data)
}

func TestMigrationsDirIsValid(t *testing.T) {
	if err := migrate.ValidateDir("migrations"); err != nil {
		t.Fatalf("ValidateDir: %v", err)
	}
}

func TestMigrationsContainConstraints(t *testing.T) {
	cases := map[string][]string{
		"create_users": {
			"CREATE UNIQUE INDEX IF NOT EXISTS ux_users_email ON users (lower(email))",
			"CHECK (login_attempts >= 0)",
			"DROP TABLE IF EXISTS users",
		},
		"create_products": {
			"CREATE UNIQUE INDEX IF NOT EXISTS ux_products_slug",
			"CHECK (stock >= 0)",
			"CHECK (discount_price IS NULL OR discount_price < price)",
		},
		"create_orders": {
			"CREATE UNIQUE INDEX IF NOT EXISTS ux_orders_order_number",
			"version integer NOT NULL DEFAULT 1",
			"CHECK (discount_amount >= 0)",
		},
		"create_reviews": {
			"CHECK (rating BETWEEN 1 AND 5)",
			"ux_reviews_product_user",
		},
		"create_account_collections": {
			"CHECK (quantity >= 1)",
			"ux_addresses_user_default_type",
			"ux_wishlist_items_user_product",
		},
		"create_outbox_events": {
			"WHERE published_at IS NULL",
		},
	}

	for suffix, checks := range cases {
		content := readMigration(t, suffix)
		for _, sub := range checks {
			if !strings.Contains(content, sub) {
				t.Errorf("%s: missing expected statement %q", suffix, sub)
			}
		}
	}
}

func TestCreateSQLMigration(t *testing.T) {
	dir := t.TempDir()
	path, err := migrate.CreateSQLMigration(dir, "Add Gift Notes!")
	if err != nil {
		t.Fatalf("CreateSQLMigration: %v", err)
	}
	if !strings.HasSuffix(path, "_add_gift_notes.sql") {
		t.Fatalf("unexpected path %s", path)
	}
	if err := migrate.ValidateDir(dir); err != nil {
		t.Fatalf("generated migration should validate: %v", err)
	}
}

func TestValidateDirRejects(t *testing.T) {
	tests := map[string]map[string]string{
		"bad name": {"add_things.sql": "-- +goose Up\n-- +goose Down\n"},
		"duplicate version": {
			"20260101090000_a.sql": "-- +goose Up\n-- +goose Down\n",
			"20260101090000_b.sql": "-- +goose Up\n-- +goose Down\n",
		},
		"missing down":   {"20260101090000_a.sql": "-- +goose Up\nSELECT 1;\n"},
		"down before up": {"20260101090000_a.sql": "-- +goose Down\n-- +goose Up\n"},
	}
	for name, files := range tests {
		t.Run(name, func(t *testing.T) {
			dir := t.TempDir()
			for file, body := range files {
				if err := os.WriteFile(filepath.Join(dir, file), []byte(body), 0o644); err != nil {
					t.Fatal(err)
				}
			}
			if err := migrate.ValidateDir(dir); err == nil {
				t.Fatal("expected validation error")
			}
		})
	}
}

func TestParseVersion(t *testing.T) {
	v, err := migrate.ParseVersion("20260101090500")
	if err != nil || v != 20260101090500 {
		t.Fatalf("ParseVersion = %d, %v", v, err)
	}
	for _, bad := range []string{"", "2026", "20261301090500", "2026010109050x"} {
		if _, err := migrate.ParseVersion(bad); err == nil {
			t.Errorf("expected %q to be rejected", bad)
		}
	}
}

func TestNewRequiresDB(t *testing.T) {
	if _, err := migrate.New(nil, ""); err == nil {
		t.Fatal("expected error without a database")
	}
}
