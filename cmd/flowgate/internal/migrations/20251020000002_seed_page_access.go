package migrations

import (
	"context"
	"fmt"

	"github.com/uptrace/bun"

	"github.com/flowtrack/flowgate/cmd/flowgate/internal/access"
	"github.com/flowtrack/flowgate/cmd/flowgate/internal/access/bunadapter"
)

func init() {
	Migrations.MustRegister(up_20251020000002, down_20251020000002)
}

func seedRows() []*bunadapter.PageRule {
	rows := make([]*bunadapter.PageRule, 0, len(access.DefaultInheritance)+len(access.DefaultGrants))
	for _, in := range access.DefaultInheritance {
		rows = append(rows, bunadapter.NewPageRule("g", []string{in.Role, in.Parent}))
	}
	for _, g := range access.DefaultGrants {
		rows = append(rows, bunadapter.NewPageRule("p", []string{g.Role, g.Page, access.ActionView}))
	}
	return rows
}

// up_20251020000002 seeds the default role chain and page rules
func up_20251020000002(ctx context.Context, db *bun.DB) error {
	fmt.Print(" [up] seeding default page access rules...")

	for _, row := range seedRows() {
		if _, err := db.NewInsert().
			Model(row).
			On("CONFLICT DO NOTHING"). // Idempotent
			Exec(ctx); err != nil {
			return fmt.Errorf("failed to seed rule %s: %w", row, err)
		}
	}

	fmt.Println(" OK")
	return nil
}

func down_20251020000002(ctx context.Context, db *bun.DB) error {
	fmt.Print(" [down] removing default page access rules...")

	for _, row := range seedRows() {
		if _, err := db.NewDelete().
			Model((*bunadapter.PageRule)(nil)).
			Where("ptype = ?", row.Ptype).
			Where("v0 = ?", row.V0).
			Where("v1 = ?", row.V1).
			Where("v2 = ?", row.V2).
			Exec(ctx); err != nil {
			return fmt.Errorf("failed to remove rule %s: %w", row, err)
		}
	}

	fmt.Println(" OK")
	return nil
}
