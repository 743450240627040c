package cmdutil

import (
	"context"
	"fmt"

	"github.com/uptrace/bun"

	"github.com/flowtrack/flowgate/cmd/flowgate/internal/access"
	"github.com/flowtrack/flowgate/cmd/flowgate/internal/config"
	"github.com/flowtrack/flowgate/cmd/flowgate/internal/db/bunx"
)

// AccessBundle pairs the page policy with the connection backing it.
type AccessBundle struct {
	Policy *access.Policy
	DB     *bun.DB
}

// Close releases the underlying database connection.
func (b *AccessBundle) Close() {
	if b == nil || b.DB == nil {
		return
	}
	_ = bunx.Close(b.DB)
}

// OpenAccess connects to the database and loads the page policy from it.
// Migrations must have been applied.
func OpenAccess(ctx context.Context, cfg *config.Config) (*AccessBundle, error) {
	db, err := bunx.Open(ctx, cfg.DatabaseURL, bunx.Options{})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	policy, err := access.NewPolicy(db)
	if err != nil {
		_ = bunx.Close(db)
		return nil, fmt.Errorf("failed to load page access policy: %w", err)
	}
	return &AccessBundle{Policy: policy, DB: db}, nil
}
