package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"ticket-bot/internal/entities"
	apperrors "ticket-bot/pkg/errors"
)

const (
	settingsTable = "app_settings"
	overrideTable = "daily_limit_overrides"
)

var overrideColumns = []string{
	"id", "limit_date", "daily_limit", "brigades_count", "created_at", "updated_at",
}

type SettingsRepositoryInterface interface {
	GetAppSettings(ctx context.Context) (*entities.AppSettings, error)
	UpdateDefaultLimit(ctx context.Context, limit int) error
	UpdateDefaultBrigades(ctx context.Context, count int) error

	FindOverrideForDate(ctx context.Context, date time.Time) (*entities.DailyLimitOverride, error)
	GetOverridesForRange(ctx context.Context, start, end time.Time) ([]entities.DailyLimitOverride, error)
	UpsertOverrides(ctx context.Context, overrides []entities.DailyLimitOverride) error
	DeleteOverridesForRange(ctx context.Context, start, end time.Time) (int64, error)
}

type SettingsRepository struct {
	storage *pgxpool.Pool
	logger  *zap.Logger
}

func NewSettingsRepository(storage *pgxpool.Pool, logger *zap.Logger) SettingsRepositoryInterface {
	return &SettingsRepository{storage: storage, logger: logger}
}

// GetAppSettings читает единственную строку настроек; при пустой таблице
// создает строку со значениями по умолчанию.
func (r *SettingsRepository) GetAppSettings(ctx context.Context) (*entities.AppSettings, error) {
	psql := sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

	query, args, err := psql.Select(
		"id", "default_daily_limit", "default_brigades_count", "created_at", "updated_at",
	).
		From(settingsTable).
		OrderBy("id").
		Limit(1).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("ошибка сборки запроса: %w", err)
	}

	var s entities.AppSettings
	err = r.storage.QueryRow(ctx, query, args...).Scan(
		&s.ID, &s.DefaultDailyLimit, &s.DefaultBrigadesCount, &s.CreatedAt, &s.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		r.logger.Warn("настройки приложения не найдены, создаются значения по умолчанию")
		return r.createDefaultSettings(ctx)
	}
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения app_settings: %w", err)
	}
	return &s, nil
}

func (r *SettingsRepository) createDefaultSettings(ctx context.Context) (*entities.AppSettings, error) {
	psql := sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

	query, args, err := psql.Insert(settingsTable).
		Columns("default_daily_limit", "default_brigades_count").
		Values(10, 2).
		Suffix("RETURNING id, default_daily_limit, default_brigades_count, created_at, updated_at").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("ошибка сборки запроса: %w", err)
	}

	var s entities.AppSettings
	err = r.storage.QueryRow(ctx, query, args...).Scan(
		&s.ID, &s.DefaultDailyLimit, &s.DefaultBrigadesCount, &s.CreatedAt, &s.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("ошибка создания app_settings: %w", err)
	}
	return &s, nil
}

func (r *SettingsRepository) UpdateDefaultLimit(ctx context.Context, limit int) error {
	return r.updateSettingsColumn(ctx, "default_daily_limit", limit)
}

func (r *SettingsRepository) UpdateDefaultBrigades(ctx context.Context, count int) error {
	return r.updateSettingsColumn(ctx, "default_brigades_count", count)
}

func (r *SettingsRepository) updateSettingsColumn(ctx context.Context, column string, value int) error {
	settings, err := r.GetAppSettings(ctx)
	if err != nil {
		return err
	}

	psql := sq.StatementBuilder.PlaceholderFormat(sq.Dollar)
	query, args, err := psql.Update(settingsTable).
		Set(column, value).
		Set("updated_at", sq.Expr("now()")).
		Where(sq.Eq{"id": settings.ID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("ошибка сборки запроса: %w", err)
	}

	if _, err := r.storage.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("ошибка обновления app_settings: %w", err)
	}
	r.logger.Info("настройки обновлены", zap.String("column", column), zap.Int("value", value))
	return nil
}

func scanOverride(row pgx.Row) (*entities.DailyLimitOverride, error) {
	var o entities.DailyLimitOverride
	err := row.Scan(
		&o.ID, &o.LimitDate, &o.DailyLimit, &o.BrigadesCount, &o.CreatedAt, &o.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperrors.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("ошибка сканирования daily_limit_override: %w", err)
	}
	return &o, nil
}

func (r *SettingsRepository) FindOverrideForDate(ctx context.Context, date time.Time) (*entities.DailyLimitOverride, error) {
	psql := sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

	query, args, err := psql.Select(overrideColumns...).
		From(overrideTable).
		Where(sq.Eq{"limit_date": date}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("ошибка сборки запроса: %w", err)
	}

	return scanOverride(r.storage.QueryRow(ctx, query, args...))
}

func (r *SettingsRepository) GetOverridesForRange(ctx context.Context, start, end time.Time) ([]entities.DailyLimitOverride, error) {
	psql := sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

	query, args, err := psql.Select(overrideColumns...).
		From(overrideTable).
		Where(sq.GtOrEq{"limit_date": start}).
		Where(sq.LtOrEq{"limit_date": end}).
		OrderBy("limit_date").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("ошибка сборки запроса: %w", err)
	}

	rows, err := r.storage.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	overrides := make([]entities.DailyLimitOverride, 0)
	for rows.Next() {
		override, err := scanOverride(rows)
		if err != nil {
			return nil, err
		}
		overrides = append(overrides, *override)
	}
	return overrides, rows.Err()
}

// UpsertOverrides создает или обновляет переопределения в одной транзакции:
// диапазон дат применяется либо целиком, либо никак. Дата в таблице
// уникальна, поэтому используется ON CONFLICT.
func (r *SettingsRepository) UpsertOverrides(ctx context.Context, overrides []entities.DailyLimitOverride) error {
	if len(overrides) == 0 {
		return nil
	}
	psql := sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

	return WithTx(ctx, r.storage, func(tx pgx.Tx) error {
		for _, override := range overrides {
			query, args, err := psql.Insert(overrideTable).
				Columns("limit_date", "daily_limit", "brigades_count").
				Values(override.LimitDate, override.DailyLimit, override.BrigadesCount).
				Suffix("ON CONFLICT (limit_date) DO UPDATE SET " +
					"daily_limit = EXCLUDED.daily_limit, " +
					"brigades_count = EXCLUDED.brigades_count, " +
					"updated_at = now()").
				ToSql()
			if err != nil {
				return fmt.Errorf("ошибка сборки запроса: %w", err)
			}
			if _, err := tx.Exec(ctx, query, args...); err != nil {
				return fmt.Errorf("ошибка сохранения переопределения на %s: %w",
					override.LimitDate.Format("2006-01-02"), err)
			}
		}
		return nil
	})
}

func (r *SettingsRepository) DeleteOverridesForRange(ctx context.Context, start, end time.Time) (int64, error) {
	psql := sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

	query, args, err := psql.Delete(overrideTable).
		Where(sq.GtOrEq{"limit_date": start}).
		Where(sq.LtOrEq{"limit_date": end}).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("ошибка сборки запроса: %w", err)
	}

	tag, err := r.storage.Exec(ctx, query, args...)
	if err != nil {
		return 0, err
	}

	deleted := tag.RowsAffected()
	r.logger.Info("переопределения лимитов удалены",
		zap.Time("start", start), zap.Time("end", end), zap.Int64("deleted", deleted))
	return deleted, nil
}
