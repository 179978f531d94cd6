package services

import (
	"context"

	"github.com/aarondl/null/v8"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"ticket-bot/internal/dto"
	"ticket-bot/internal/entities"
	"ticket-bot/internal/repositories"
	"ticket-bot/pkg/constants"
	apperrors "ticket-bot/pkg/errors"
)

// Наборы разрешений предустановленных ролей.
var (
	UserRolePermissions = []string{
		constants.PermissionCreateTickets.String(),
		constants.PermissionViewTickets.String(),
	}
	ManagerRolePermissions = append(append([]string{}, UserRolePermissions...),
		constants.PermissionSetVisitLimits.String(),
		constants.PermissionAddFilesFromVisit.String(),
	)
	AdminRolePermissions = append(append([]string{}, ManagerRolePermissions...),
		constants.PermissionManageUsers.String(),
	)
)

type UserServiceInterface interface {
	FindByTelegramID(ctx context.Context, telegramID int64) (*entities.User, error)
	GetUsers(ctx context.Context, limit, offset uint64) ([]dto.BotUserDTO, error)
	CreateUser(ctx context.Context, actor *entities.User, payload dto.CreateBotUserDTO) (*dto.BotUserDTO, error)
	DeleteUser(ctx context.Context, actor *entities.User, telegramID int64) error
}

type UserService struct {
	userRepository repositories.UserRepositoryInterface
	validate       *validator.Validate
	logger         *zap.Logger
}

func NewUserService(userRepository repositories.UserRepositoryInterface, logger *zap.Logger) UserServiceInterface {
	return &UserService{
		userRepository: userRepository,
		validate:       validator.New(),
		logger:         logger,
	}
}

func (s *UserService) FindByTelegramID(ctx context.Context, telegramID int64) (*entities.User, error) {
	return s.userRepository.FindByTelegramID(ctx, telegramID)
}

func (s *UserService) GetUsers(ctx context.Context, limit, offset uint64) ([]dto.BotUserDTO, error) {
	users, err := s.userRepository.GetUsers(ctx, limit, offset)
	if err != nil {
		return nil, err
	}

	result := make([]dto.BotUserDTO, 0, len(users))
	for _, user := range users {
		result = append(result, toBotUserDTO(user))
	}
	return result, nil
}

// CreateUser создает пользователя бота. Требует от вызывающего разрешения
// на управление пользователями.
func (s *UserService) CreateUser(ctx context.Context, actor *entities.User, payload dto.CreateBotUserDTO) (*dto.BotUserDTO, error) {
	if actor == nil || !actor.HasPermission(constants.PermissionManageUsers) {
		return nil, apperrors.ErrForbidden
	}
	if err := s.validate.Struct(&payload); err != nil {
		return nil, apperrors.NewInvalidInputError("некорректные данные пользователя: " + err.Error())
	}
	for _, permission := range payload.Permissions {
		if !constants.IsKnownPermission(permission) {
			return nil, apperrors.NewInvalidInputError("неизвестное разрешение: " + permission)
		}
	}

	user := entities.User{
		TelegramID:  payload.TelegramID,
		Permissions: payload.Permissions,
	}
	if payload.Username != "" {
		user.Username = null.StringFrom(payload.Username)
	}
	if payload.MegaplanUserID != 0 {
		user.MegaplanUserID = null.Int64From(payload.MegaplanUserID)
	}

	created, err := s.userRepository.CreateUser(ctx, user)
	if err != nil {
		return nil, err
	}

	s.logger.Info("администратор создал пользователя",
		zap.Int64("actor_telegram_id", actor.TelegramID),
		zap.Int64("telegram_id", created.TelegramID))
	result := toBotUserDTO(*created)
	return &result, nil
}

func (s *UserService) DeleteUser(ctx context.Context, actor *entities.User, telegramID int64) error {
	if actor == nil || !actor.HasPermission(constants.PermissionManageUsers) {
		return apperrors.ErrForbidden
	}
	return s.userRepository.DeleteByTelegramID(ctx, telegramID)
}

func toBotUserDTO(user entities.User) dto.BotUserDTO {
	result := dto.BotUserDTO{
		ID:          user.ID,
		TelegramID:  user.TelegramID,
		Permissions: user.Permissions,
	}
	if user.Username.Valid {
		result.Username = user.Username.String
	}
	if user.MegaplanUserID.Valid {
		result.MegaplanUserID = user.MegaplanUserID.Int64
	}
	return result
}
