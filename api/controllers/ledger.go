package controllers

import (
	"net/http"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/angelmondragon/tirestore-backend/api/responses"
	"github.com/angelmondragon/tirestore-backend/api/validators"
	"github.com/angelmondragon/tirestore-backend/internal/ledger"
	"github.com/angelmondragon/tirestore-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/tirestore-backend/pkg/errors"
	"github.com/angelmondragon/tirestore-backend/pkg/logger"
)

func AdminLedgerList(svc ledger.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, serviceUnavailable("ledger"))
			return
		}
		filter, err := parseLedgerFilter(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		entries, err := svc.List(r.Context(), filter)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{"entries": entries})
	}
}

func AdminLedgerSummary(svc ledger.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, serviceUnavailable("ledger"))
			return
		}
		filter, err := parseLedgerFilter(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		summary, err := svc.Summary(r.Context(), filter)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, summary)
	}
}

type ledgerRecordRequest struct {
	Date        string          `json:"date,omitempty"`
	Type        string          `json:"type" validate:"required,oneof=income expense"`
	Category    string          `json:"category" validate:"required,max=80"`
	Amount      decimal.Decimal `json:"amount"`
	Description string          `json:"description" validate:"max=500"`
	OrderNumber string          `json:"order_number,omitempty" validate:"omitempty,max=32"`
}

// AdminLedgerRecord appends a manual income or expense row.
func AdminLedgerRecord(svc ledger.Service, profiles profileReader, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, serviceUnavailable("ledger"))
			return
		}
		var body ledgerRecordRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		entryType, err := enums.ParseLedgerEntryType(body.Type)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid type"))
			return
		}
		actor, err := adminActor(r, profiles)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		input := ledger.RecordInput{
			Type:        entryType,
			Category:    body.Category,
			Amount:      body.Amount,
			Description: body.Description,
			OrderNumber: body.OrderNumber,
			RecordedBy:  actor.Email,
		}
		if raw := strings.TrimSpace(body.Date); raw != "" {
			date, err := time.Parse(time.DateOnly, raw)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "date must be YYYY-MM-DD").WithDetails(map[string]any{"field": "date"}))
				return
			}
			input.Date = &date
		}

		entry, err := svc.Record(r.Context(), input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, entry)
	}
}

func parseLedgerFilter(r *http.Request) (ledger.Filter, error) {
	var filter ledger.Filter
	var err error
	if filter.From, err = validators.ParseOptionalQueryDate(r, "from"); err != nil {
		return ledger.Filter{}, err
	}
	if filter.To, err = validators.ParseOptionalQueryDate(r, "to"); err != nil {
		return ledger.Filter{}, err
	}
	if raw := strings.TrimSpace(r.URL.Query().Get("type")); raw != "" {
		entryType, err := enums.ParseLedgerEntryType(raw)
		if err != nil {
			return ledger.Filter{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid type").WithDetails(map[string]any{"field": "type"})
		}
		filter.Type = &entryType
	}
	return filter, nil
}
