package repositories

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"ticket-bot/internal/entities"
	apperrors "ticket-bot/pkg/errors"
)

const userTable = "bot_users"

var userColumns = []string{
	"id", "telegram_id", "username", "megaplan_user_id", "permissions",
	"created_at", "updated_at",
}

type UserRepositoryInterface interface {
	FindByTelegramID(ctx context.Context, telegramID int64) (*entities.User, error)
	GetUsers(ctx context.Context, limit, offset uint64) ([]entities.User, error)
	CreateUser(ctx context.Context, user entities.User) (*entities.User, error)
	DeleteByTelegramID(ctx context.Context, telegramID int64) error
}

type UserRepository struct {
	storage *pgxpool.Pool
	logger  *zap.Logger
}

func NewUserRepository(storage *pgxpool.Pool, logger *zap.Logger) UserRepositoryInterface {
	return &UserRepository{storage: storage, logger: logger}
}

func scanUser(row pgx.Row) (*entities.User, error) {
	var u entities.User
	var permissionsRaw []byte

	err := row.Scan(
		&u.ID, &u.TelegramID, &u.Username, &u.MegaplanUserID, &permissionsRaw,
		&u.CreatedAt, &u.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperrors.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("ошибка сканирования bot_user: %w", err)
	}

	if len(permissionsRaw) > 0 {
		if err := json.Unmarshal(permissionsRaw, &u.Permissions); err != nil {
			return nil, fmt.Errorf("ошибка разбора permissions: %w", err)
		}
	}
	return &u, nil
}

func (r *UserRepository) FindByTelegramID(ctx context.Context, telegramID int64) (*entities.User, error) {
	psql := sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

	query, args, err := psql.Select(userColumns...).
		From(userTable).
		Where(sq.Eq{"telegram_id": telegramID}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("ошибка сборки запроса: %w", err)
	}

	return scanUser(r.storage.QueryRow(ctx, query, args...))
}

func (r *UserRepository) GetUsers(ctx context.Context, limit, offset uint64) ([]entities.User, error) {
	psql := sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

	query, args, err := psql.Select(userColumns...).
		From(userTable).
		OrderBy("id").
		Limit(limit).
		Offset(offset).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("ошибка сборки запроса: %w", err)
	}

	rows, err := r.storage.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	users := make([]entities.User, 0)
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, *user)
	}
	return users, rows.Err()
}

func (r *UserRepository) CreateUser(ctx context.Context, user entities.User) (*entities.User, error) {
	psql := sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

	permissionsRaw, err := json.Marshal(user.Permissions)
	if err != nil {
		return nil, fmt.Errorf("ошибка сериализации permissions: %w", err)
	}

	query, args, err := psql.Insert(userTable).
		Columns("telegram_id", "username", "megaplan_user_id", "permissions").
		Values(user.TelegramID, user.Username, user.MegaplanUserID, permissionsRaw).
		Suffix("RETURNING " + joinColumns(userColumns)).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("ошибка сборки запроса: %w", err)
	}

	created, err := scanUser(r.storage.QueryRow(ctx, query, args...))
	if err != nil {
		return nil, err
	}

	r.logger.Info("пользователь создан",
		zap.Uint64("id", created.ID),
		zap.Int64("telegram_id", created.TelegramID))
	return created, nil
}

func (r *UserRepository) DeleteByTelegramID(ctx context.Context, telegramID int64) error {
	psql := sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

	query, args, err := psql.Delete(userTable).
		Where(sq.Eq{"telegram_id": telegramID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("ошибка сборки запроса: %w", err)
	}

	tag, err := r.storage.Exec(ctx, query, args...)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}

	r.logger.Info("пользователь удален", zap.Int64("telegram_id", telegramID))
	return nil
}
