package migrations

import (
	"context"
	"fmt"

	"github.com/uptrace/bun"

	"github.com/flowtrack/flowgate/cmd/flowgate/internal/access/bunadapter"
)

func init() {
	Migrations.MustRegister(up_20251020000001, down_20251020000001)
}

func up_20251020000001(ctx context.Context, db *bun.DB) error {
	fmt.Print(" [up] creating page_access_rules table...")

	if _, err := db.NewCreateTable().
		Model((*bunadapter.PageRule)(nil)).
		IfNotExists().
		Exec(ctx); err != nil {
		return fmt.Errorf("failed to create page_access_rules table: %w", err)
	}

	if _, err := db.NewCreateIndex().
		Model((*bunadapter.PageRule)(nil)).
		Index("idx_page_access_rules_v1").
		Column("v1").
		IfNotExists().
		Exec(ctx); err != nil {
		return fmt.Errorf("failed to create page_access_rules index: %w", err)
	}

	fmt.Println(" OK")
	return nil
}

func down_20251020000001(ctx context.Context, db *bun.DB) error {
	fmt.Print(" [down] dropping page_access_rules table...")

	if _, err := db.NewDropTable().
		Model((*bunadapter.PageRule)(nil)).
		IfExists().
		Exec(ctx); err != nil {
		return fmt.Errorf("failed to drop page_access_rules table: %w", err)
	}

	fmt.Println(" OK")
	return nil
}
