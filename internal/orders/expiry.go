package orders

import (
	"context"
	"time"

	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/angelmondragon/tirestore-backend/pkg/db/models"
	"github.com/angelmondragon/tirestore-backend/pkg/enums"
	"github.com/angelmondragon/tirestore-backend/pkg/pubsub"
)

// ExpireIfDue expires every pending order whose payment window closed at or
// before now and restores its stock. It returns how many orders it expired.
func (s *service) ExpireIfDue(ctx context.Context, now time.Time) (int, error) {
	return s.expire(ctx, ExpiryScope{}, now)
}

// sweep runs lazy expiration ahead of a read. A failed sweep never blocks the read.
func (s *service) sweep(ctx context.Context, scope ExpiryScope) {
	if _, err := s.expire(ctx, scope, s.now()); err != nil && s.logg != nil {
		s.logg.Warn(s.logg.WithField(ctx, "error", err.Error()), "lazy order expiration failed")
	}
}

func (s *service) expire(ctx context.Context, scope ExpiryScope, now time.Time) (int, error) {
	due, err := s.repo.FindDuePending(ctx, scope, now)
	if err != nil {
		return 0, err
	}

	var (
		errs    error
		expired []models.Order
	)
	for _, order := range due {
		moved := false
		err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
			repo := s.repo.WithTx(tx)
			ok, err := repo.TransitionStatus(ctx, order.ID, enums.OrderStatusPendingPayment, enums.OrderStatusExpired, map[string]any{
				"expired_at": now,
			})
			if err != nil || !ok {
				return err
			}
			if err := repo.RestoreStock(ctx, order.Items); err != nil {
				return err
			}
			moved = true
			return nil
		})
		if err != nil {
			errs = multierr.Append(errs, err)
			continue
		}
		if moved {
			order.Status = enums.OrderStatusExpired
			expired = append(expired, order)
		}
	}

	s.metrics.AddExpired(len(expired))
	for _, order := range expired {
		s.metrics.IncTransition(order.Status.String())
		s.publish(ctx, pubsub.EventOrderStatusChanged, order)
	}
	return len(expired), errs
}
