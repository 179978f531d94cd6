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

const mapRequestTable = "map_requests"

var mapRequestColumns = []string{
	"id", "request_token", "user_telegram_id", "deals_data_json", "expires_at",
	"created_at", "updated_at",
}

type MapRequestRepositoryInterface interface {
	CreateMapRequest(ctx context.Context, request entities.MapRequest) (*entities.MapRequest, error)
	FindValidByToken(ctx context.Context, token string, now time.Time) (*entities.MapRequest, error)
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

type MapRequestRepository struct {
	storage *pgxpool.Pool
	logger  *zap.Logger
}

func NewMapRequestRepository(storage *pgxpool.Pool, logger *zap.Logger) MapRequestRepositoryInterface {
	return &MapRequestRepository{storage: storage, logger: logger}
}

func scanMapRequest(row pgx.Row) (*entities.MapRequest, error) {
	var m entities.MapRequest
	err := row.Scan(
		&m.ID, &m.RequestToken, &m.UserTelegramID, &m.DealsDataJSON, &m.ExpiresAt,
		&m.CreatedAt, &m.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperrors.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("ошибка сканирования map_request: %w", err)
	}
	return &m, nil
}

func (r *MapRequestRepository) CreateMapRequest(ctx context.Context, request entities.MapRequest) (*entities.MapRequest, error) {
	psql := sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

	query, args, err := psql.Insert(mapRequestTable).
		Columns("request_token", "user_telegram_id", "deals_data_json", "expires_at").
		Values(request.RequestToken, request.UserTelegramID, request.DealsDataJSON, request.ExpiresAt).
		Suffix("RETURNING " + joinColumns(mapRequestColumns)).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("ошибка сборки запроса: %w", err)
	}

	created, err := scanMapRequest(r.storage.QueryRow(ctx, query, args...))
	if err != nil {
		return nil, err
	}

	r.logger.Info("создан запрос на карту",
		zap.Int64("user_telegram_id", created.UserTelegramID),
		zap.Time("expires_at", created.ExpiresAt))
	return created, nil
}

// FindValidByToken возвращает запись только если срок ее действия не истек.
// Просроченный или неизвестный токен неразличимы для вызывающего.
func (r *MapRequestRepository) FindValidByToken(ctx context.Context, token string, now time.Time) (*entities.MapRequest, error) {
	psql := sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

	query, args, err := psql.Select(mapRequestColumns...).
		From(mapRequestTable).
		Where(sq.Eq{"request_token": token}).
		Where(sq.Gt{"expires_at": now}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("ошибка сборки запроса: %w", err)
	}

	return scanMapRequest(r.storage.QueryRow(ctx, query, args...))
}

func (r *MapRequestRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	psql := sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

	query, args, err := psql.Delete(mapRequestTable).
		Where(sq.LtOrEq{"expires_at": now}).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("ошибка сборки запроса: %w", err)
	}

	tag, err := r.storage.Exec(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
