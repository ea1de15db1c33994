package interfaces

import (
	"context"
	"time"

	"notifier/internal/models"
)

type OrderRepository interface {
	PaidOrdersSince(ctx context.Context, since time.Time) ([]models.PaidOrder, error)
}

type RevenueRepository interface {
	AddDailyRevenue(ctx context.Context, day time.Time, amount float64) error
}
