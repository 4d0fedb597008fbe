package migration

import (
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func TestAutoMigrateCreatesSchema(t *testing.T) {
	conn, err := gorm.Open(sqlite.Open("file:"+uuid.NewString()+"?mode=memory&cache=shared"), &gorm.Config{})
	require.NoError(t, err)

	require.NoError(t, Migrate(conn, "sqlite"))
	// Idempotent on restart.
	require.NoError(t, Migrate(conn, "sqlite"))

	for _, table := range []string{
		"profiles", "companies", "company_members", "invitations", "vendors",
		"purchase_requests", "approvals", "purchase_orders", "invoices",
		"payments", "payment_events", "audit_logs",
	} {
		assert.True(t, conn.Migrator().HasTable(table), table)
	}
	assert.True(t, conn.Migrator().HasIndex("payments", "ux_payments_invoice_success"))
	assert.True(t, conn.Migrator().HasIndex("company_members", "ux_company_members_active_profile"))
	assert.True(t, conn.Migrator().HasIndex("purchase_orders", "ux_purchase_orders_purchase_request"))
}

func TestEmbeddedMigrationsPresent(t *testing.T) {
	entries, err := embeddedMigrations.ReadDir(migrationsDir)
	require.NoError(t, err)
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	assert.Contains(t, names, "000001_init.up.sql")
	assert.Contains(t, names, "000001_init.down.sql")
}

func TestMigrateRequiresHandle(t *testing.T) {
	assert.Error(t, Migrate(nil, "sqlite"))
	assert.Error(t, RunMigrations(nil))
}
