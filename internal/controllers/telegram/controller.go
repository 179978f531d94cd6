// internal/controllers/telegram/controller.go
package telegram

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"ticket-bot/internal/dto"
	"ticket-bot/internal/entities"
	"ticket-bot/internal/repositories"
	"ticket-bot/internal/services"
	"ticket-bot/pkg/config"
	"ticket-bot/pkg/telegram"
)

const (
	botStateKey     = "tg_user_state:%d"
	stateExpiration = 30 * time.Minute
	updateTimeout   = 45 * time.Second
	retryDelay      = 3 * time.Second

	// Bot API не отдает файлы больше 20 МБ; с запасом режем на 25 МБ,
	// чтобы сообщение об ошибке увидел пользователь, а не лог.
	maxAttachmentSize = 25 * 1024 * 1024

	// Горизонт быстрого выбора даты в клавиатурах.
	quickPickDays = 7
)

type BotController struct {
	tgService        telegram.ServiceInterface
	userService      services.UserServiceInterface
	ticketService    services.TicketServiceInterface
	mapService       services.MapServiceInterface
	settingsService  services.SettingsServiceInterface
	cadastralService services.CadastralServiceInterface
	cacheRepo        repositories.CacheRepositoryInterface
	cfg              config.TelegramConfig
	zone             *time.Location
	logger           *zap.Logger
}

func NewBotController(
	tgService telegram.ServiceInterface,
	userService services.UserServiceInterface,
	ticketService services.TicketServiceInterface,
	mapService services.MapServiceInterface,
	settingsService services.SettingsServiceInterface,
	cadastralService services.CadastralServiceInterface,
	cacheRepo repositories.CacheRepositoryInterface,
	cfg config.TelegramConfig,
	zone *time.Location,
	logger *zap.Logger,
) *BotController {
	return &BotController{
		tgService:        tgService,
		userService:      userService,
		ticketService:    ticketService,
		mapService:       mapService,
		settingsService:  settingsService,
		cadastralService: cadastralService,
		cacheRepo:        cacheRepo,
		cfg:              cfg,
		zone:             zone,
		logger:           logger,
	}
}

// Run крутит long-poll цикл получения обновлений до отмены контекста.
// Ошибка одного запроса не роняет цикл: после паузы опрос продолжается.
func (c *BotController) Run(ctx context.Context) error {
	c.logger.Info("бот запущен, начинаем long-poll опрос")

	var offset int64
	for {
		updates, err := c.tgService.GetUpdates(ctx, offset, c.cfg.PollTimeout)
		if err != nil {
			if ctx.Err() != nil {
				c.logger.Info("бот остановлен")
				return ctx.Err()
			}
			c.logger.Error("ошибка получения обновлений", zap.Error(err))
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(retryDelay):
			}
			continue
		}

		for _, update := range updates {
			if update.UpdateID >= offset {
				offset = update.UpdateID + 1
			}
			c.handleUpdate(ctx, update)
		}
	}
}

func (c *BotController) handleUpdate(ctx context.Context, update telegram.Update) {
	defer c.recoverPanic("handleUpdate")

	updateCtx, cancel := context.WithTimeout(ctx, updateTimeout)
	defer cancel()

	switch {
	case update.CallbackQuery != nil:
		_ = c.tgService.AnswerCallbackQuery(updateCtx, update.CallbackQuery.ID, "")
		if err := c.handleCallbackQuery(updateCtx, update.CallbackQuery); err != nil {
			c.logger.Error("ошибка обработки callback", zap.Error(err))
		}
	case update.Message != nil:
		if err := c.handleMessage(updateCtx, update.Message); err != nil {
			c.logger.Error("ошибка обработки сообщения", zap.Error(err))
		}
	}
}

func (c *BotController) handleMessage(ctx context.Context, msg *telegram.Message) error {
	chatID := msg.Chat.ID

	user, err := c.resolveUser(ctx, chatID)
	if err != nil {
		return c.tgService.SendMessage(ctx, chatID,
			"⛔ У вас нет доступа к боту.\nОбратитесь к администратору, чтобы вас добавили.")
	}

	if file, ok := extractAttachment(msg); ok {
		return c.handleIncomingFile(ctx, chatID, file)
	}

	text := strings.TrimSpace(msg.Text)
	if text == "" {
		return nil
	}

	if strings.HasPrefix(text, "/") {
		return c.handleCommand(ctx, chatID, user, text)
	}

	state, err := c.getState(ctx, chatID)
	if err == nil && state != nil {
		return c.handleStateInput(ctx, chatID, user, text, state)
	}
	return c.handleMenuButton(ctx, chatID, user, text)
}

// resolveUser находит пользователя бота по чату. Администратор из конфига
// работает даже без записи в базе: иначе некому создать первого пользователя.
func (c *BotController) resolveUser(ctx context.Context, chatID int64) (*entities.User, error) {
	user, err := c.userService.FindByTelegramID(ctx, chatID)
	if err == nil {
		return user, nil
	}
	if c.cfg.AdminID != 0 && chatID == c.cfg.AdminID {
		return &entities.User{
			TelegramID:  chatID,
			Permissions: services.AdminRolePermissions,
		}, nil
	}
	return nil, err
}

// extractAttachment достает файл из сообщения: документ, видео или самое
// крупное фото.
func extractAttachment(msg *telegram.Message) (dto.AttachedFileDTO, bool) {
	switch {
	case msg.Document != nil:
		name := msg.Document.FileName
		if name == "" {
			name = "document"
		}
		if msg.Document.FileSize > maxAttachmentSize {
			return dto.AttachedFileDTO{FileName: name}, true
		}
		return dto.AttachedFileDTO{FileID: msg.Document.FileID, FileName: name}, true
	case msg.Video != nil:
		name := msg.Video.FileName
		if name == "" {
			name = "video.mp4"
		}
		if msg.Video.FileSize > maxAttachmentSize {
			return dto.AttachedFileDTO{FileName: name}, true
		}
		return dto.AttachedFileDTO{FileID: msg.Video.FileID, FileName: name}, true
	case len(msg.Photo) > 0:
		best := msg.Photo[0]
		for _, size := range msg.Photo[1:] {
			if size.FileSize > best.FileSize {
				best = size
			}
		}
		name := fmt.Sprintf("photo_%d.jpg", msg.MessageID)
		return dto.AttachedFileDTO{FileID: best.FileID, FileName: name}, true
	}
	return dto.AttachedFileDTO{}, false
}

// --- СОСТОЯНИЕ ДИАЛОГА ---

func (c *BotController) getState(ctx context.Context, chatID int64) (*dto.BotState, error) {
	raw, err := c.cacheRepo.Get(ctx, fmt.Sprintf(botStateKey, chatID))
	if err != nil || raw == "" {
		return nil, errors.New("состояние диалога отсутствует")
	}
	return dto.BotStateFromJSON(raw)
}

func (c *BotController) setState(ctx context.Context, chatID int64, state *dto.BotState) error {
	raw, err := state.ToJSON()
	if err != nil {
		c.logger.Error("ошибка сериализации состояния диалога", zap.Error(err))
		return err
	}
	return c.cacheRepo.Set(ctx, fmt.Sprintf(botStateKey, chatID), raw, stateExpiration)
}

func (c *BotController) clearState(ctx context.Context, chatID int64) {
	_ = c.cacheRepo.Del(ctx, fmt.Sprintf(botStateKey, chatID))
}

// --- СЛУЖЕБНЫЕ ФУНКЦИИ ---

func (c *BotController) recoverPanic(funcName string) {
	if r := recover(); r != nil {
		c.logger.Error("PANIC в обработчике обновления",
			zap.String("function", funcName),
			zap.Any("panic", r),
			zap.Stack("stacktrace"))
	}
}

func (c *BotController) sendInternalError(ctx context.Context, chatID int64) error {
	return c.tgService.SendMessageEx(ctx, chatID,
		"❌ Внутренняя ошибка. Попробуйте позже.")
}

func (c *BotController) sendStaleStateError(ctx context.Context, chatID int64) error {
	return c.tgService.SendMessageEx(ctx, chatID,
		"⚠️ Кнопка устарела. Начните заново через меню.")
}

// today возвращает начало текущего дня в рабочей таймзоне.
func (c *BotController) today() time.Time {
	now := time.Now().In(c.zone)
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, c.zone)
}
