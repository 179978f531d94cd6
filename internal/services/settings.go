package services

import (
	"context"
	"errors"
	"time"

	"github.com/aarondl/null/v8"
	"go.uber.org/zap"

	"ticket-bot/internal/entities"
	"ticket-bot/internal/repositories"
	apperrors "ticket-bot/pkg/errors"
)

// DayCapacity - действующие на дату лимит заявок и число бригад.
type DayCapacity struct {
	Limit    int
	Brigades int
	// true, если значения отличаются от настроек по умолчанию.
	Overridden bool
}

type SettingsServiceInterface interface {
	GetCapacityForDate(ctx context.Context, date time.Time) (DayCapacity, error)
	GetAppSettings(ctx context.Context) (*entities.AppSettings, error)
	UpdateDefaultLimit(ctx context.Context, limit int) error
	UpdateDefaultBrigades(ctx context.Context, count int) error
	SetOverrideRange(ctx context.Context, start, end time.Time, limit int, brigades *int) (int, error)
	DeleteOverrideRange(ctx context.Context, start, end time.Time) (int64, error)
}

type SettingsService struct {
	settingsRepository repositories.SettingsRepositoryInterface
	logger             *zap.Logger
}

func NewSettingsService(
	settingsRepository repositories.SettingsRepositoryInterface,
	logger *zap.Logger,
) SettingsServiceInterface {
	return &SettingsService{
		settingsRepository: settingsRepository,
		logger:             logger,
	}
}

// GetCapacityForDate возвращает фактический лимит заявок и количество бригад
// на дату: переопределение, если оно есть, иначе значения по умолчанию.
// Переопределение без указанного числа бригад наследует бригады из настроек.
func (s *SettingsService) GetCapacityForDate(ctx context.Context, date time.Time) (DayCapacity, error) {
	settings, err := s.settingsRepository.GetAppSettings(ctx)
	if err != nil {
		return DayCapacity{}, err
	}

	capacity := DayCapacity{
		Limit:    settings.DefaultDailyLimit,
		Brigades: settings.DefaultBrigadesCount,
	}

	override, err := s.settingsRepository.FindOverrideForDate(ctx, date)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return capacity, nil
		}
		return DayCapacity{}, err
	}

	capacity.Limit = override.DailyLimit
	capacity.Overridden = true
	if override.BrigadesCount.Valid {
		capacity.Brigades = int(override.BrigadesCount.Int)
	}
	return capacity, nil
}

func (s *SettingsService) GetAppSettings(ctx context.Context) (*entities.AppSettings, error) {
	return s.settingsRepository.GetAppSettings(ctx)
}

func (s *SettingsService) UpdateDefaultLimit(ctx context.Context, limit int) error {
	if limit < 0 {
		return apperrors.NewInvalidInputError("лимит не может быть отрицательным")
	}
	return s.settingsRepository.UpdateDefaultLimit(ctx, limit)
}

func (s *SettingsService) UpdateDefaultBrigades(ctx context.Context, count int) error {
	if count <= 0 {
		return apperrors.NewInvalidInputError("количество бригад должно быть положительным числом")
	}
	return s.settingsRepository.UpdateDefaultBrigades(ctx, count)
}

// SetOverrideRange устанавливает переопределение на каждый день диапазона
// включительно. Возвращает количество затронутых дней.
func (s *SettingsService) SetOverrideRange(ctx context.Context, start, end time.Time, limit int, brigades *int) (int, error) {
	if limit < 0 {
		return 0, apperrors.NewInvalidInputError("лимит не может быть отрицательным")
	}
	if brigades != nil && *brigades <= 0 {
		return 0, apperrors.NewInvalidInputError("количество бригад должно быть положительным числом")
	}
	if start.After(end) {
		return 0, apperrors.NewInvalidInputError("начальная дата не может быть позже конечной")
	}

	var overrides []entities.DailyLimitOverride
	for date := start; !date.After(end); date = date.AddDate(0, 0, 1) {
		override := entities.DailyLimitOverride{
			LimitDate:  date,
			DailyLimit: limit,
		}
		if brigades != nil {
			override.BrigadesCount = null.IntFrom(*brigades)
		}
		overrides = append(overrides, override)
	}

	if err := s.settingsRepository.UpsertOverrides(ctx, overrides); err != nil {
		return 0, err
	}

	s.logger.Info("установлены переопределения лимитов",
		zap.Time("start", start), zap.Time("end", end),
		zap.Int("limit", limit), zap.Int("days", len(overrides)))
	return len(overrides), nil
}

func (s *SettingsService) DeleteOverrideRange(ctx context.Context, start, end time.Time) (int64, error) {
	if start.After(end) {
		return 0, apperrors.NewInvalidInputError("начальная дата не может быть позже конечной")
	}
	return s.settingsRepository.DeleteOverridesForRange(ctx, start, end)
}
