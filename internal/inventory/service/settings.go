package service

import (
	"context"
	"math"
	"strconv"

	"github.com/stockflow/stockflow-backend/internal/inventory/repository"
	"github.com/stockflow/stockflow-backend/pkg/errors"
)

// SettingsService manages tunable inventory settings
type SettingsService struct {
	settings SettingStore
}

// NewSettingsService creates a new settings service
func NewSettingsService(settings SettingStore) *SettingsService {
	return &SettingsService{settings: settings}
}

// AlertMargin returns the stored low-stock margin percentage, 0 when unset.
func (s *SettingsService) AlertMargin(ctx context.Context) (float64, error) {
	raw, ok, err := s.settings.Get(ctx, repository.SettingAlertMargin)
	if err != nil || !ok {
		return 0, err
	}
	margin, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, errors.Internal("stored alert margin is not a number: " + raw)
	}
	return margin, nil
}

// SetAlertMargin stores the low-stock margin percentage
func (s *SettingsService) SetAlertMargin(ctx context.Context, margin float64) error {
	if err := validateMargin(margin); err != nil {
		return err
	}
	return s.settings.Set(ctx, repository.SettingAlertMargin, strconv.FormatFloat(margin, 'f', -1, 64))
}

func validateMargin(margin float64) error {
	if margin < 0 || math.IsNaN(margin) || math.IsInf(margin, 0) {
		return errors.Validation(map[string]string{"margin": "must be a number greater than or equal to 0"})
	}
	return nil
}
