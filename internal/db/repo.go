package db

import (
	"context"
	"time"

	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/jackc/pgx/v5"

	"notifier/internal/config"
	"notifier/internal/models"
)

// An OrderRepo is a repository pattern implementation for reading paid orders
type OrderRepo struct {
	db *DB
}

// NewOrderRepo creates a new instance of OrderRepo with specified configuration
func NewOrderRepo(ctx context.Context, cfg *config.Config) (*OrderRepo, error) {
	db, err := NewDBWithConfig(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return &OrderRepo{db}, nil
}

// NewOrderRepoWithDB creates a new instance of OrderRepo over an existing pool
func NewOrderRepoWithDB(db *DB) *OrderRepo {
	return &OrderRepo{db}
}

// PaidOrdersSince returns paid orders whose updated_at is at or past the
// checkpoint, oldest first
func (o *OrderRepo) PaidOrdersSince(ctx context.Context, since time.Time) ([]models.PaidOrder, error) {
	query := `
		SELECT id, customer_id, customer_name, amount, delivery_type, payment_status, created_at, updated_at
		FROM orders
		WHERE payment_status = 'paid' AND updated_at >= $1
		ORDER BY updated_at ASC
	`

	rows, err := o.db.WithTx(
		ctx, func(tx pgx.Tx) (any, error) {
			var orders []models.PaidOrder
			err := pgxscan.Select(ctx, tx, &orders, query, since)
			if err != nil {
				return nil, err
			}
			return orders, nil
		},
	)

	if err != nil {
		return []models.PaidOrder{}, err
	}
	if rows == nil {
		return []models.PaidOrder{}, nil
	}
	return rows.([]models.PaidOrder), nil
}

// SavePaidOrder inserts one paid order row; used by the seeder tool
func (o *OrderRepo) SavePaidOrder(ctx context.Context, order *models.PaidOrder) error {
	query := `
		INSERT INTO orders (id, customer_id, customer_name, amount, delivery_type, payment_status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO NOTHING;
	`

	_, err := o.db.WithTx(
		ctx, func(tx pgx.Tx) (any, error) {
			_, err := tx.Exec(
				ctx, query, order.ID, order.CustomerID, order.CustomerName, order.Amount,
				order.DeliveryType, order.PaymentStatus, order.CreatedAt, order.UpdatedAt,
			)
			return nil, err
		},
	)
	return err
}

// A RevenueRepo is a repository pattern implementation for daily revenue aggregates
type RevenueRepo struct {
	db *DB
}

// NewRevenueRepo creates a new instance of RevenueRepo over an existing pool
func NewRevenueRepo(db *DB) *RevenueRepo {
	return &RevenueRepo{db}
}

// AddDailyRevenue increments the aggregate revenue figure for a calendar day
func (r *RevenueRepo) AddDailyRevenue(ctx context.Context, day time.Time, amount float64) error {
	query := `
		INSERT INTO revenue_daily (day, total)
		VALUES ($1, $2)
		ON CONFLICT (day) DO UPDATE SET total = revenue_daily.total + EXCLUDED.total;
	`

	_, err := r.db.WithTx(
		ctx, func(tx pgx.Tx) (any, error) {
			_, err := tx.Exec(ctx, query, day.UTC().Truncate(24*time.Hour), amount)
			return nil, err
		},
	)
	return err
}
