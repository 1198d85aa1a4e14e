package menu

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/kapu/pizzabot-go/internal/domain"
	"go.uber.org/zap"
)

// Repository loads the orderable catalog from PostgreSQL. The table is small
// and read once at startup; the bot never mutates it.
type Repository struct {
	db     *sql.DB
	logger *zap.Logger
}

func NewRepository(db *sql.DB, logger *zap.Logger) *Repository {
	return &Repository{
		db:     db,
		logger: logger,
	}
}

// EnsureSchema creates the menu table when missing and seeds it with the
// compiled-in menu so a fresh database serves the same catalog.
func (r *Repository) EnsureSchema(ctx context.Context) error {
	const schema = `
		CREATE TABLE IF NOT EXISTS menu_items (
			id SERIAL PRIMARY KEY,
			name TEXT NOT NULL UNIQUE,
			position INT NOT NULL DEFAULT 0
		)`
	if _, err := r.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to create menu_items table: %w", err)
	}

	var count int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM menu_items`).Scan(&count); err != nil {
		return fmt.Errorf("failed to count menu items: %w", err)
	}
	if count > 0 {
		return nil
	}

	for i, name := range domain.DefaultMenu() {
		_, err := r.db.ExecContext(ctx,
			`INSERT INTO menu_items (name, position) VALUES ($1, $2) ON CONFLICT (name) DO NOTHING`,
			name, i,
		)
		if err != nil {
			return fmt.Errorf("failed to seed menu item %q: %w", name, err)
		}
	}

	r.logger.Info("Seeded default menu", zap.Int("items", len(domain.DefaultMenu())))
	return nil
}

// LoadCatalog reads the menu in display order and builds the catalog. When
// the table is empty or unreadable the compiled-in menu is used instead, so
// the ordering flow never starts without a catalog.
func (r *Repository) LoadCatalog(ctx context.Context) *domain.Catalog {
	rows, err := r.db.QueryContext(ctx,
		`SELECT name FROM menu_items ORDER BY position, id`)
	if err != nil {
		r.logger.Warn("Menu query failed, using built-in menu", zap.Error(err))
		return domain.NewCatalog(domain.DefaultMenu())
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			r.logger.Warn("Menu row scan failed", zap.Error(err))
			continue
		}
		names = append(names, name)
	}
	if err := rows.Err(); err != nil {
		r.logger.Warn("Menu iteration failed", zap.Error(err))
	}

	if len(names) == 0 {
		r.logger.Warn("Menu table empty, using built-in menu")
		return domain.NewCatalog(domain.DefaultMenu())
	}

	r.logger.Info("Catalog loaded", zap.Int("items", len(names)))
	return domain.NewCatalog(names)
}
