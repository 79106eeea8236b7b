package orders

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// NewOrderNumber builds a human-facing order number such as TS260118-4F9A1C.
func NewOrderNumber(now time.Time) string {
	suffix := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:6])
	return "TS" + now.UTC().Format("060102") + "-" + suffix
}
