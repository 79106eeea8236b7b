package controllers

import (
	"net/http"

	"github.com/angelmondragon/tirestore-backend/api/responses"
	"github.com/angelmondragon/tirestore-backend/api/validators"
	"github.com/angelmondragon/tirestore-backend/internal/checkout"
	"github.com/angelmondragon/tirestore-backend/pkg/logger"
)

// Checkout converts the signed-in customer's cart into a pending-payment order.
func Checkout(svc checkout.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, serviceUnavailable("checkout"))
			return
		}
		userID, err := requireUser(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var body checkout.CheckoutInput
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.Execute(r.Context(), userID, body)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, result)
	}
}
