package orders

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/kapu/pizzabot-go/internal/constants"
	"github.com/kapu/pizzabot-go/internal/domain"
	"github.com/kapu/pizzabot-go/pkg/errors"
	"go.uber.org/zap"
)

// Repository persists finalized orders. Persist is the single commit point
// of the ordering flow: until it returns nil the order does not exist.
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

func (r *Repository) EnsureSchema(ctx context.Context) error {
	const schema = `
		CREATE TABLE IF NOT EXISTS orders (
			id SERIAL PRIMARY KEY,
			conversation_id TEXT NOT NULL,
			sender TEXT NOT NULL,
			product TEXT NOT NULL,
			item_type TEXT NOT NULL,
			quantity INT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`
	if _, err := r.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to create orders table: %w", err)
	}
	return nil
}

// Persist writes one finalized order. Failures are wrapped as sink errors so
// the dialogue layer can distinguish them from parse faults.
func (r *Repository) Persist(ctx context.Context, msgCtx *domain.MessageContext, order *domain.Order) error {
	ctx, cancel := context.WithTimeout(ctx, constants.APIConfig.SinkTimeout)
	defer cancel()

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO orders (conversation_id, sender, product, item_type, quantity)
		 VALUES ($1, $2, $3, $4, $5)`,
		msgCtx.Conversation, msgCtx.Sender, order.Product, order.ItemType, order.Quantity,
	)
	if err != nil {
		r.logger.Error("Order persist failed",
			zap.String("conversation", msgCtx.Conversation),
			zap.String("item_type", order.ItemType),
			zap.Error(err),
		)
		return errors.NewSinkError("failed to persist order", "insert", err)
	}

	r.logger.Info("Order persisted",
		zap.String("conversation", msgCtx.Conversation),
		zap.String("item_type", order.ItemType),
		zap.Int("quantity", order.Quantity),
	)
	return nil
}

// RecentOrders returns the latest orders for one conversation, newest first.
func (r *Repository) RecentOrders(ctx context.Context, conversation string, limit int) ([]domain.Order, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT product, item_type, quantity FROM orders
		 WHERE conversation_id = $1 ORDER BY created_at DESC LIMIT $2`,
		conversation, limit,
	)
	if err != nil {
		return nil, errors.NewSinkError("failed to query orders", "select", err)
	}
	defer rows.Close()

	var out []domain.Order
	for rows.Next() {
		var o domain.Order
		if err := rows.Scan(&o.Product, &o.ItemType, &o.Quantity); err != nil {
			return nil, errors.NewSinkError("failed to scan order", "select", err)
		}
		out = append(out, o)
	}
	return out, rows.Err()
}
