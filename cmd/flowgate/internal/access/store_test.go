package access_test

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/migrate"

	"github.com/flowtrack/flowgate/cmd/flowgate/internal/access"
	"github.com/flowtrack/flowgate/cmd/flowgate/internal/db/bunx"
	"github.com/flowtrack/flowgate/cmd/flowgate/internal/migrations"
)

func migratedDB(t *testing.T) *bun.DB {
	t.Helper()
	ctx := context.Background()

	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	db, err := bunx.Open(ctx, fmt.Sprintf("file:%s?mode=memory&cache=shared", name), bunx.Options{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = bunx.Close(db) })

	migrator := migrate.NewMigrator(db, migrations.Migrations)
	require.NoError(t, migrator.Init(ctx))
	_, err = migrator.Migrate(ctx)
	require.NoError(t, err)
	return db
}

func TestPolicyLoadsSeededRules(t *testing.T) {
	db := migratedDB(t)

	p, err := access.NewPolicy(db)
	require.NoError(t, err)

	ok, err := p.Permits(context.Background(), "owner", "/settings/team")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = p.Permits(context.Background(), "viewer", "/settings/team")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestPolicyChangesPersist(t *testing.T) {
	db := migratedDB(t)
	ctx := context.Background()

	p, err := access.NewPolicy(db)
	require.NoError(t, err)
	require.NoError(t, p.Grant("viewer", "/reports/*"))
	_, err = p.Revoke("owner", "/billing")
	require.NoError(t, err)

	reloaded, err := access.NewPolicy(db)
	require.NoError(t, err)

	ok, err := reloaded.Permits(ctx, "viewer", "/reports/q3")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = reloaded.Permits(ctx, "owner", "/billing")
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = reloaded.Permits(ctx, "owner", "/billing/invoices")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestMigrationsRollBack(t *testing.T) {
	db := migratedDB(t)
	ctx := context.Background()

	migrator := migrate.NewMigrator(db, migrations.Migrations)
	_, err := migrator.Rollback(ctx)
	require.NoError(t, err)

	_, err = access.NewPolicy(db)
	assert.Error(t, err, "table should be gone after rollback")
}
