package pricing

import (
	"strings"

	"github.com/google/uuid"

	pkgerrors "github.com/angelmondragon/tirestore-backend/pkg/errors"
)

// ValidateLine rejects lines the pricing functions must never see. A zero
// quantity is treated as invalid input, not as an absent line.
func ValidateLine(line CartLine) error {
	problems := lineProblems(line)
	if len(problems) == 0 {
		return nil
	}
	return pkgerrors.New(pkgerrors.CodeValidation, "invalid cart line").WithDetails(problems)
}

// ValidateLines checks every line and that product ids are unique.
func ValidateLines(lines []CartLine) error {
	seen := make(map[uuid.UUID]struct{}, len(lines))
	details := map[string]map[string]string{}
	for _, line := range lines {
		problems := lineProblems(line)
		if _, dup := seen[line.ProductID]; dup && line.ProductID != uuid.Nil {
			problems["product_id"] = "duplicate line"
		}
		seen[line.ProductID] = struct{}{}
		if len(problems) > 0 {
			details[line.ProductID.String()] = problems
		}
	}
	if len(details) == 0 {
		return nil
	}
	return pkgerrors.New(pkgerrors.CodeValidation, "invalid cart lines").WithDetails(details)
}

func lineProblems(line CartLine) map[string]string {
	problems := map[string]string{}
	if line.ProductID == uuid.Nil {
		problems["product_id"] = "required"
	}
	if strings.TrimSpace(line.Brand) == "" {
		problems["brand"] = "required"
	}
	if line.UnitPrice.IsNegative() {
		problems["unit_price"] = "must not be negative"
	}
	if line.Quantity < 1 {
		problems["quantity"] = "must be at least 1"
	}
	return problems
}
