package service

import (
	"context"
	"encoding/json"
	"sort"
	"strings"
	"time"

	"gorm.io/datatypes"

	"tradesense/internal/models"
	"tradesense/internal/repository"
)

const switchPrefix = "feature."

const (
	FeatureTrading      = "feature.trading"
	FeatureWithdrawals  = "feature.withdrawals"
	FeatureRegistration = "feature.registration"
	FeatureEvaluateCron = "feature.evaluate_cron"
	FeatureMarketWarm   = "feature.market_warm"
)

func DefaultFeatureSwitches() map[string]bool {
	return map[string]bool{
		FeatureTrading:      true,
		FeatureWithdrawals:  true,
		FeatureRegistration: true,
		FeatureEvaluateCron: true,
		FeatureMarketWarm:   true,
	}
}

type Switch struct {
	Name        string    `json:"name"`
	Key         string    `json:"key"`
	Enabled     bool      `json:"enabled"`
	Description string    `json:"description"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// SystemSettingsService reads and flips the feature switches stored in system_settings.
// Lookups fail open to the caller's fallback so a settings outage never blocks trading.
type SystemSettingsService struct {
	Repo repository.SettingsRepository
}

// EnsureDefaultSwitches creates missing switches with their default value. Existing
// rows are never overwritten.
func (s *SystemSettingsService) EnsureDefaultSwitches(ctx context.Context) error {
	if s == nil || s.Repo == nil {
		return nil
	}
	now := time.Now().UTC()
	for key, enabled := range DefaultFeatureSwitches() {
		existing, err := s.Repo.GetSystemSettingByKey(ctx, key)
		if err != nil {
			return err
		}
		if existing != nil {
			continue
		}
		raw, _ := json.Marshal(enabled)
		item := &models.SystemSetting{
			Key:         key,
			Value:       datatypes.JSON(raw),
			Description: "feature switch",
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		if err := s.Repo.UpsertSystemSetting(ctx, item); err != nil {
			return err
		}
	}
	return nil
}

func (s *SystemSettingsService) IsEnabled(ctx context.Context, key string, fallback bool) bool {
	if s == nil || s.Repo == nil {
		return fallback
	}
	key = strings.TrimSpace(key)
	if key == "" {
		return fallback
	}
	item, err := s.Repo.GetSystemSettingByKey(ctx, key)
	if err != nil || item == nil || len(item.Value) == 0 {
		return fallback
	}
	var enabled bool
	if err := json.Unmarshal(item.Value, &enabled); err != nil {
		return fallback
	}
	return enabled
}

// SetEnabled flips a known switch. Unknown names are rejected so typos do not create
// dead rows.
func (s *SystemSettingsService) SetEnabled(ctx context.Context, name string, enabled bool) (Switch, error) {
	key := SwitchKey(name)
	if _, ok := DefaultFeatureSwitches()[key]; !ok {
		return Switch{}, notFound("Unknown switch")
	}
	raw, _ := json.Marshal(enabled)
	now := time.Now().UTC()
	item := &models.SystemSetting{
		Key:         key,
		Value:       datatypes.JSON(raw),
		Description: "feature switch",
		UpdatedAt:   now,
	}
	if err := s.Repo.UpsertSystemSetting(ctx, item); err != nil {
		return Switch{}, err
	}
	return Switch{
		Name:        strings.TrimPrefix(key, switchPrefix),
		Key:         key,
		Enabled:     enabled,
		Description: item.Description,
		UpdatedAt:   now,
	}, nil
}

// Switches lists every known switch, filling unset ones with their default.
func (s *SystemSettingsService) Switches(ctx context.Context) ([]Switch, error) {
	prefix := switchPrefix
	items, err := s.Repo.ListSystemSettings(ctx, repository.ListSystemSettingsParams{Prefix: &prefix, Limit: 200})
	if err != nil {
		return nil, err
	}
	stored := make(map[string]models.SystemSetting, len(items))
	for _, it := range items {
		stored[it.Key] = it
	}
	defaults := DefaultFeatureSwitches()
	out := make([]Switch, 0, len(defaults))
	for _, key := range sortedKeys(defaults) {
		sw := Switch{Name: strings.TrimPrefix(key, switchPrefix), Key: key, Enabled: defaults[key]}
		if it, ok := stored[key]; ok {
			_ = json.Unmarshal(it.Value, &sw.Enabled)
			sw.Description = it.Description
			sw.UpdatedAt = it.UpdatedAt
		}
		out = append(out, sw)
	}
	return out, nil
}

// SwitchKey accepts either the short name ("trading") or the full key.
func SwitchKey(name string) string {
	name = strings.ToLower(strings.TrimSpace(name))
	if strings.HasPrefix(name, switchPrefix) {
		return name
	}
	return switchPrefix + name
}

func sortedKeys(m map[string]bool) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
