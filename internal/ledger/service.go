package ledger

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/tirestore-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/tirestore-backend/pkg/errors"
)

// CategoryOrderPayment labels income recorded from paid orders.
const CategoryOrderPayment = "order_payment"

// Service records and reports ledger entries.
type Service interface {
	Record(ctx context.Context, input RecordInput) (*Entry, error)
	RecordOrderIncome(ctx context.Context, input OrderIncomeInput) error
	List(ctx context.Context, filter Filter) ([]Entry, error)
	Summary(ctx context.Context, filter Filter) (*Summary, error)
}

// RecordInput is a manual back-office entry.
type RecordInput struct {
	Date        *time.Time
	Type        enums.LedgerEntryType
	Category    string
	Amount      decimal.Decimal
	Description string
	OrderNumber string
	RecordedBy  string
}

// OrderIncomeInput describes a paid order.
type OrderIncomeInput struct {
	OrderNumber string
	Amount      decimal.Decimal
	PaidAt      time.Time
	RecordedBy  string
}

// Filter bounds List and Summary. Zero values are open ends.
type Filter struct {
	From *time.Time
	To   *time.Time
	Type *enums.LedgerEntryType
}

// MonthTotal aggregates one calendar month.
type MonthTotal struct {
	Month   string          `json:"month"`
	Income  decimal.Decimal `json:"income"`
	Expense decimal.Decimal `json:"expense"`
	Net     decimal.Decimal `json:"net"`
}

// Summary aggregates the filtered entries.
type Summary struct {
	Income  decimal.Decimal `json:"income"`
	Expense decimal.Decimal `json:"expense"`
	Net     decimal.Decimal `json:"net"`
	Count   int             `json:"count"`
	Months  []MonthTotal    `json:"months"`
}

type service struct {
	repo Repository
	now  func() time.Time
}

// NewService wires a ledger service with the provided repository.
func NewService(repo Repository) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("ledger repository required")
	}
	return &service{repo: repo, now: time.Now}, nil
}

func (s *service) Record(ctx context.Context, input RecordInput) (*Entry, error) {
	problems := map[string]string{}
	if !input.Type.IsValid() {
		problems["type"] = "must be income or expense"
	}
	if !input.Amount.IsPositive() {
		problems["amount"] = "must be greater than zero"
	}
	if strings.TrimSpace(input.Category) == "" {
		problems["category"] = "required"
	}
	if len(problems) > 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid ledger entry").WithDetails(problems)
	}

	date := s.now().UTC()
	if input.Date != nil {
		date = input.Date.UTC()
	}
	entry := Entry{
		ID:          uuid.NewString(),
		Date:        date,
		Type:        input.Type,
		Category:    strings.TrimSpace(input.Category),
		Amount:      input.Amount.Round(2),
		Description: strings.TrimSpace(input.Description),
		OrderNumber: strings.TrimSpace(input.OrderNumber),
		RecordedBy:  input.RecordedBy,
	}
	if err := s.repo.Append(ctx, entry); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "append ledger entry")
	}
	return &entry, nil
}

// RecordOrderIncome appends an income row unless one exists for the order.
func (s *service) RecordOrderIncome(ctx context.Context, input OrderIncomeInput) error {
	if strings.TrimSpace(input.OrderNumber) == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "order number is required")
	}
	entries, err := s.repo.List(ctx)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "read ledger")
	}
	for _, entry := range entries {
		if entry.Type == enums.LedgerEntryTypeIncome && entry.OrderNumber == input.OrderNumber {
			return nil
		}
	}
	paidAt := input.PaidAt
	_, err = s.Record(ctx, RecordInput{
		Date:        &paidAt,
		Type:        enums.LedgerEntryTypeIncome,
		Category:    CategoryOrderPayment,
		Amount:      input.Amount,
		Description: "Payment for order " + input.OrderNumber,
		OrderNumber: input.OrderNumber,
		RecordedBy:  input.RecordedBy,
	})
	return err
}

func (s *service) List(ctx context.Context, filter Filter) ([]Entry, error) {
	entries, err := s.repo.List(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "read ledger")
	}
	out := make([]Entry, 0, len(entries))
	for _, entry := range entries {
		if filter.matches(entry) {
			out = append(out, entry)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out, nil
}

func (s *service) Summary(ctx context.Context, filter Filter) (*Summary, error) {
	entries, err := s.List(ctx, filter)
	if err != nil {
		return nil, err
	}
	return summarize(entries), nil
}

func summarize(entries []Entry) *Summary {
	summary := &Summary{Income: decimal.Zero, Expense: decimal.Zero, Months: []MonthTotal{}}
	months := map[string]*MonthTotal{}
	for _, entry := range entries {
		key := entry.Date.Format("2006-01")
		month, ok := months[key]
		if !ok {
			month = &MonthTotal{Month: key, Income: decimal.Zero, Expense: decimal.Zero}
			months[key] = month
		}
		switch entry.Type {
		case enums.LedgerEntryTypeIncome:
			summary.Income = summary.Income.Add(entry.Amount)
			month.Income = month.Income.Add(entry.Amount)
		case enums.LedgerEntryTypeExpense:
			summary.Expense = summary.Expense.Add(entry.Amount)
			month.Expense = month.Expense.Add(entry.Amount)
		}
		summary.Count++
	}
	summary.Net = summary.Income.Sub(summary.Expense)
	for _, month := range months {
		month.Net = month.Income.Sub(month.Expense)
		summary.Months = append(summary.Months, *month)
	}
	sort.Slice(summary.Months, func(i, j int) bool { return summary.Months[i].Month < summary.Months[j].Month })
	return summary
}

func (f Filter) matches(e Entry) bool {
	if f.Type != nil && e.Type != *f.Type {
		return false
	}
	day := e.Date.Truncate(24 * time.Hour)
	if f.From != nil && day.Before(f.From.UTC().Truncate(24*time.Hour)) {
		return false
	}
	if f.To != nil && day.After(f.To.UTC().Truncate(24*time.Hour)) {
		return false
	}
	return true
}

type disabledService struct{}

// NewDisabledService is used when the ledger feature flag is off. Order income
// is silently dropped and manual entries are refused.
func NewDisabledService() Service {
	return disabledService{}
}

func (disabledService) Record(context.Context, RecordInput) (*Entry, error) {
	return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "ledger is disabled")
}

func (disabledService) RecordOrderIncome(context.Context, OrderIncomeInput) error {
	return nil
}

func (disabledService) List(context.Context, Filter) ([]Entry, error) {
	return []Entry{}, nil
}

func (disabledService) Summary(context.Context, Filter) (*Summary, error) {
	return summarize(nil), nil
}
