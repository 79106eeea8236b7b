package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/angelmondragon/tirestore-backend/pkg/logger"
)

const orderExpiryJobName = "order_expiry"

type orderExpirer interface {
	ExpireIfDue(ctx context.Context, now time.Time) (int, error)
}

// OrderExpiryJob expires pending orders whose payment window has closed.
// Reads expire lazily too. This job keeps the back office current between reads.
type OrderExpiryJob struct {
	orders orderExpirer
	logg   *logger.Logger
	now    func() time.Time
}

func NewOrderExpiryJob(orders orderExpirer, logg *logger.Logger) (*OrderExpiryJob, error) {
	if orders == nil {
		return nil, fmt.Errorf("order service required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &OrderExpiryJob{
		orders: orders,
		logg:   logg,
		now:    func() time.Time { return time.Now().UTC() },
	}, nil
}

func (j *OrderExpiryJob) Name() string { return orderExpiryJobName }

func (j *OrderExpiryJob) Run(ctx context.Context) error {
	expired, err := j.orders.ExpireIfDue(ctx, j.now())
	if err != nil {
		return fmt.Errorf("expire pending orders: %w", err)
	}
	if expired > 0 {
		j.logg.Info(j.logg.WithField(ctx, "expired", expired), "orders.expired_by_schedule")
	}
	return nil
}
