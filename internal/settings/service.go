package settings

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/angelmondragon/tirestore-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/tirestore-backend/pkg/errors"
	"github.com/angelmondragon/tirestore-backend/pkg/logger"
	"github.com/angelmondragon/tirestore-backend/pkg/redis"
)

const (
	KeyStoreName         = "store_name"
	KeyContactPhone      = "contact_phone"
	KeyContactLineID     = "contact_line_id"
	KeyBankName          = "bank_name"
	KeyBankAccountName   = "bank_account_name"
	KeyBankAccountNumber = "bank_account_number"
	KeyAnnouncement      = "announcement"
	KeyShippingNote      = "shipping_note"

	cacheName = "site_settings"
	// CacheTTL bounds how stale a public settings read can be.
	CacheTTL = 5 * time.Minute
	// MaxValueLength caps a single setting value.
	MaxValueLength = 2000
)

var knownKeys = map[string]struct{}{
	KeyStoreName:         {},
	KeyContactPhone:      {},
	KeyContactLineID:     {},
	KeyBankName:          {},
	KeyBankAccountName:   {},
	KeyBankAccountNumber: {},
	KeyAnnouncement:      {},
	KeyShippingNote:      {},
}

// KnownKeys lists the editable settings in a stable order.
func KnownKeys() []string {
	keys := make([]string, 0, len(knownKeys))
	for key := range knownKeys {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

// PaymentInstructions tells the customer where to transfer money.
type PaymentInstructions struct {
	BankName          string `json:"bank_name"`
	BankAccountName   string `json:"bank_account_name"`
	BankAccountNumber string `json:"bank_account_number"`
	ContactPhone      string `json:"contact_phone,omitempty"`
	ContactLineID     string `json:"contact_line_id,omitempty"`
}

// Service reads and edits site settings.
type Service interface {
	GetAll(ctx context.Context) (map[string]string, error)
	Update(ctx context.Context, values map[string]string) (map[string]string, error)
	PaymentInstructions(ctx context.Context) (*PaymentInstructions, error)
}

type settingsStore interface {
	All(ctx context.Context) ([]models.SiteSetting, error)
	Upsert(ctx context.Context, values map[string]string) error
}

type cacheStore interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	Del(ctx context.Context, keys ...string) error
	CacheKey(name string) string
}

type service struct {
	repo  settingsStore
	cache cacheStore
	logg  *logger.Logger
}

// NewService builds a settings service. A nil cache reads straight from the repository.
func NewService(repo settingsStore, cache cacheStore, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("settings repository required")
	}
	return &service{repo: repo, cache: cache, logg: logg}, nil
}

// GetAll returns every known key, empty when unset. Cache failures fall back to the database.
func (s *service) GetAll(ctx context.Context) (map[string]string, error) {
	if cached, ok := s.readCache(ctx); ok {
		return cached, nil
	}

	rows, err := s.repo.All(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load settings")
	}
	values := make(map[string]string, len(knownKeys))
	for key := range knownKeys {
		values[key] = ""
	}
	for _, row := range rows {
		if _, ok := knownKeys[row.Key]; ok {
			values[row.Key] = row.Value
		}
	}
	s.writeCache(ctx, values)
	return values, nil
}

func (s *service) Update(ctx context.Context, values map[string]string) (map[string]string, error) {
	if len(values) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "no settings provided")
	}
	problems := map[string]string{}
	cleaned := make(map[string]string, len(values))
	for key, value := range values {
		if _, ok := knownKeys[key]; !ok {
			problems[key] = "unknown setting"
			continue
		}
		value = strings.TrimSpace(value)
		if len(value) > MaxValueLength {
			problems[key] = fmt.Sprintf("must be at most %d characters", MaxValueLength)
			continue
		}
		cleaned[key] = value
	}
	if len(problems) > 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid settings").WithDetails(problems)
	}

	if err := s.repo.Upsert(ctx, cleaned); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "save settings")
	}
	s.invalidate(ctx)
	return s.GetAll(ctx)
}

func (s *service) PaymentInstructions(ctx context.Context) (*PaymentInstructions, error) {
	values, err := s.GetAll(ctx)
	if err != nil {
		return nil, err
	}
	return &PaymentInstructions{
		BankName:          values[KeyBankName],
		BankAccountName:   values[KeyBankAccountName],
		BankAccountNumber: values[KeyBankAccountNumber],
		ContactPhone:      values[KeyContactPhone],
		ContactLineID:     values[KeyContactLineID],
	}, nil
}

func (s *service) readCache(ctx context.Context) (map[string]string, bool) {
	if s.cache == nil {
		return nil, false
	}
	raw, err := s.cache.Get(ctx, s.cache.CacheKey(cacheName))
	if err != nil {
		if !redis.IsNil(err) {
			s.warn(ctx, "settings cache read failed", err)
		}
		return nil, false
	}
	var values map[string]string
	if err := json.Unmarshal([]byte(raw), &values); err != nil {
		s.warn(ctx, "settings cache decode failed", err)
		return nil, false
	}
	return values, true
}

func (s *service) writeCache(ctx context.Context, values map[string]string) {
	if s.cache == nil {
		return
	}
	payload, err := json.Marshal(values)
	if err != nil {
		return
	}
	if err := s.cache.Set(ctx, s.cache.CacheKey(cacheName), string(payload), CacheTTL); err != nil {
		s.warn(ctx, "settings cache write failed", err)
	}
}

func (s *service) invalidate(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Del(ctx, s.cache.CacheKey(cacheName)); err != nil {
		s.warn(ctx, "settings cache invalidation failed", err)
	}
}

func (s *service) warn(ctx context.Context, msg string, err error) {
	if s.logg == nil {
		return
	}
	s.logg.Warn(s.logg.WithField(ctx, "error", err.Error()), msg)
}
