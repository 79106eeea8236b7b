package cart

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/tirestore-backend/pkg/db/models"
)

// Owner identifies whose cart is addressed: an account or an anonymous session.
type Owner struct {
	UserID    uuid.UUID
	SessionID string
}

// ForUser builds an account owner.
func ForUser(id uuid.UUID) Owner { return Owner{UserID: id} }

// ForSession builds an anonymous owner.
func ForSession(id string) Owner { return Owner{SessionID: id} }

// IsAccount reports whether the cart is stored against a user.
func (o Owner) IsAccount() bool { return o.UserID != uuid.Nil }

func (o Owner) valid() bool { return o.IsAccount() || o.SessionID != "" }

// StoredLine is a persisted cart line, before product details are joined in.
type StoredLine struct {
	ProductID uuid.UUID       `json:"product_id"`
	Brand     string          `json:"brand"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Quantity  int             `json:"quantity"`
	AddedAt   time.Time       `json:"added_at"`
}

// LineStore persists the lines of one kind of cart.
type LineStore interface {
	Lines(ctx context.Context, owner Owner) ([]StoredLine, error)
	Put(ctx context.Context, owner Owner, line StoredLine) error
	Remove(ctx context.Context, owner Owner, productID uuid.UUID) error
	Clear(ctx context.Context, owner Owner) error
}

type productReader interface {
	FindActiveByID(ctx context.Context, id uuid.UUID) (*models.Product, error)
	FindByIDs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]models.Product, error)
}
