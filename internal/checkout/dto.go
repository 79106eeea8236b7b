package checkout

import (
	"github.com/angelmondragon/tirestore-backend/internal/orders"
	"github.com/angelmondragon/tirestore-backend/internal/pricing"
	"github.com/angelmondragon/tirestore-backend/internal/settings"
)

// CheckoutInput captures the shipping details collected at checkout.
type CheckoutInput struct {
	ShippingName    string  `json:"shipping_name" validate:"required,max=120"`
	ShippingPhone   string  `json:"shipping_phone" validate:"required,max=32"`
	ShippingAddress string  `json:"shipping_address" validate:"required,max=500"`
	Notes           *string `json:"notes,omitempty" validate:"omitempty,max=1000"`
}

// Result is the placed order plus what the customer needs to pay for it.
type Result struct {
	Order               orders.OrderDTO               `json:"order"`
	Breakdown           pricing.Breakdown             `json:"breakdown"`
	PaymentInstructions *settings.PaymentInstructions `json:"payment_instructions,omitempty"`
}
