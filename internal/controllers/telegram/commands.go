// internal/controllers/telegram/commands.go
package telegram

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"ticket-bot/internal/dto"
	"ticket-bot/internal/entities"
	"ticket-bot/pkg/constants"
	"ticket-bot/pkg/telegram"
)

// Кнопки главного меню.
const (
	menuNewTicket  = "📝 Новая заявка"
	menuViewDay    = "📅 Заявки на день"
	menuVisitFiles = "📷 Файлы с выезда"
	menuAdmin      = "⚙️ Администрирование"
)

// ==================== КОМАНДЫ ====================

func (c *BotController) handleCommand(ctx context.Context, chatID int64, user *entities.User, text string) error {
	switch {
	case strings.HasPrefix(text, "/start"):
		c.clearState(ctx, chatID)
		return c.handleStartCommand(ctx, chatID, user)
	case strings.HasPrefix(text, "/cancel"):
		c.clearState(ctx, chatID)
		return c.tgService.SendMessageEx(ctx, chatID, "Действие отменено.",
			telegram.WithReplyKeyboard(c.mainMenuKeyboard(user)))
	case strings.HasPrefix(text, "/help"):
		return c.handleHelpCommand(ctx, chatID)
	default:
		return c.tgService.SendMessageEx(ctx, chatID,
			"❓ Неизвестная команда. Используйте /help.")
	}
}

// handleStartCommand приветствует и показывает загруженность ближайших дней
// вместе с главным меню.
func (c *BotController) handleStartCommand(ctx context.Context, chatID int64, user *entities.User) error {
	var b strings.Builder
	b.WriteString("👋 Здравствуйте! Это бот заявок на выезд.\n\n")

	start := c.today()
	stats, err := c.ticketService.GetDayStats(ctx, start, start.AddDate(0, 0, 1))
	if err != nil {
		c.logger.Warn("не удалось получить загруженность дней", zap.Error(err))
	} else {
		b.WriteString("Загруженность:\n")
		labels := []string{"Сегодня", "Завтра"}
		for i, day := range stats {
			if i >= len(labels) {
				break
			}
			b.WriteString(fmt.Sprintf("%s %s: %d из %d\n",
				dayLoadEmoji(day), labels[i], day.TicketsCount, day.Limit))
		}
		b.WriteString("\n")
	}
	b.WriteString("Выберите действие в меню ниже.")

	return c.tgService.SendMessageEx(ctx, chatID, b.String(),
		telegram.WithReplyKeyboard(c.mainMenuKeyboard(user)))
}

func (c *BotController) handleHelpCommand(ctx context.Context, chatID int64) error {
	helpText := "📖 Справка\n\n" +
		"/start - главное меню и загруженность дней\n" +
		"/cancel - прервать текущее действие\n\n" +
		menuNewTicket + " - создать заявку на выезд\n" +
		menuViewDay + " - список выездов на дату с картой\n" +
		menuVisitFiles + " - прикрепить фото и документы с выезда\n" +
		menuAdmin + " - пользователи и лимиты (для администраторов)"
	return c.tgService.SendMessageEx(ctx, chatID, helpText)
}

// ==================== ГЛАВНОЕ МЕНЮ ====================

func (c *BotController) handleMenuButton(ctx context.Context, chatID int64, user *entities.User, text string) error {
	switch text {
	case menuNewTicket:
		if !user.HasPermission(constants.PermissionCreateTickets) {
			return c.sendNoPermission(ctx, chatID)
		}
		return c.startTicketFlow(ctx, chatID)
	case menuViewDay:
		if !user.HasPermission(constants.PermissionViewTickets) {
			return c.sendNoPermission(ctx, chatID)
		}
		return c.startViewFlow(ctx, chatID)
	case menuVisitFiles:
		if !user.HasPermission(constants.PermissionAddFilesFromVisit) {
			return c.sendNoPermission(ctx, chatID)
		}
		return c.startVisitFilesFlow(ctx, chatID)
	case menuAdmin:
		if !user.HasPermission(constants.PermissionManageUsers) &&
			!user.HasPermission(constants.PermissionSetVisitLimits) {
			return c.sendNoPermission(ctx, chatID)
		}
		return c.sendAdminMenu(ctx, chatID, user)
	default:
		return c.tgService.SendMessageEx(ctx, chatID,
			"Не понял. Выберите действие в меню или используйте /help.",
			telegram.WithReplyKeyboard(c.mainMenuKeyboard(user)))
	}
}

func (c *BotController) sendNoPermission(ctx context.Context, chatID int64) error {
	return c.tgService.SendMessageEx(ctx, chatID, "⛔ У вас нет прав на это действие.")
}

// ==================== ВВОД ПО СОСТОЯНИЮ ====================

func (c *BotController) handleStateInput(ctx context.Context, chatID int64, user *entities.User, text string, state *dto.BotState) error {
	switch state.Mode {
	case dto.BotModeTicketDate:
		return c.handleTicketDateInput(ctx, chatID, user, text, state)
	case dto.BotModeTicketTime:
		return c.handleTicketTimeInput(ctx, chatID, text, state)
	case dto.BotModeTicketDescription:
		return c.handleTicketDescriptionInput(ctx, chatID, text, state)
	case dto.BotModeTicketFiles:
		if strings.EqualFold(text, "готово") {
			return c.finishFileCollection(ctx, chatID, user, state)
		}
		return c.tgService.SendMessageEx(ctx, chatID,
			"Пришлите файлы (фото, документы) или нажмите «Готово».")
	case dto.BotModeVisitFiles:
		if strings.EqualFold(text, "готово") {
			return c.finishFileCollection(ctx, chatID, user, state)
		}
		// Текст в режиме файлов с выезда - это результат выезда.
		state.Description = text
		if err := c.setState(ctx, chatID, state); err != nil {
			return c.sendInternalError(ctx, chatID)
		}
		return c.tgService.SendMessageEx(ctx, chatID, "📝 Результат выезда записан.")
	case dto.BotModeViewDate:
		return c.handleViewDateInput(ctx, chatID, text)
	case dto.BotModeAdminCreateUser:
		return c.handleAdminCreateUserInput(ctx, chatID, user, text)
	case dto.BotModeAdminDeleteUser:
		return c.handleAdminDeleteUserInput(ctx, chatID, user, text)
	case dto.BotModeAdminSetLimit:
		return c.handleAdminSetLimitInput(ctx, chatID, user, text)
	case dto.BotModeAdminDefaultLimit:
		return c.handleAdminDefaultLimitInput(ctx, chatID, user, text)
	case dto.BotModeAdminDefaultBrigades:
		return c.handleAdminDefaultBrigadesInput(ctx, chatID, user, text)
	default:
		c.clearState(ctx, chatID)
		return c.handleMenuButton(ctx, chatID, user, text)
	}
}

func (c *BotController) handleTicketDateInput(ctx context.Context, chatID int64, user *entities.User, text string, state *dto.BotState) error {
	date, err := parseUserDate(text, c.today())
	if err != nil {
		return c.tgService.SendMessageEx(ctx, chatID,
			"Не удалось разобрать дату. Примеры: 25.12.2026, 25.12 или 25.")
	}
	if date.Before(c.today()) {
		return c.tgService.SendMessageEx(ctx, chatID,
			"⛔ Дата уже прошла. Укажите сегодняшнюю или будущую дату.")
	}
	return c.proceedWithTicketDate(ctx, chatID, user, date, state, false)
}

func (c *BotController) handleTicketTimeInput(ctx context.Context, chatID int64, text string, state *dto.BotState) error {
	parsed, err := time.Parse("15:04", strings.TrimSpace(text))
	if err != nil {
		return c.tgService.SendMessageEx(ctx, chatID,
			"Не удалось разобрать время. Формат: ЧЧ:ММ, например 14:30.")
	}
	return c.setTicketTime(ctx, chatID, state, parsed.Format("15:04"))
}

func (c *BotController) handleTicketDescriptionInput(ctx context.Context, chatID int64, text string, state *dto.BotState) error {
	state.Description = text
	state.Mode = dto.BotModeTicketFiles
	if err := c.setState(ctx, chatID, state); err != nil {
		return c.sendInternalError(ctx, chatID)
	}
	return c.tgService.SendMessageEx(ctx, chatID,
		"📎 Пришлите файлы к заявке (фото, документы).\nКогда закончите, нажмите «Готово».",
		telegram.WithReplyKeyboard([][]telegram.ReplyKeyboardButton{{{Text: "Готово"}}}))
}

func (c *BotController) handleViewDateInput(ctx context.Context, chatID int64, text string) error {
	date, err := parseUserDate(text, c.today())
	if err != nil {
		return c.tgService.SendMessageEx(ctx, chatID,
			"Не удалось разобрать дату. Примеры: 25.12.2026, 25.12 или 25.")
	}
	c.clearState(ctx, chatID)
	return c.sendDayTickets(ctx, chatID, date)
}

// ==================== ПРИЕМ ФАЙЛОВ ====================

// handleIncomingFile добавляет присланный файл в черновик. Файл с пустым
// FileID означает превышение лимита размера.
func (c *BotController) handleIncomingFile(ctx context.Context, chatID int64, file dto.AttachedFileDTO) error {
	state, err := c.getState(ctx, chatID)
	if err != nil || (state.Mode != dto.BotModeTicketFiles && state.Mode != dto.BotModeVisitFiles) {
		return c.tgService.SendMessageEx(ctx, chatID,
			"Сейчас бот не ждет файлов. Начните с меню.")
	}

	if file.FileID == "" {
		return c.tgService.SendMessageEx(ctx, chatID,
			fmt.Sprintf("⚠️ Файл «%s» больше 25 МБ и не будет прикреплен.", file.FileName))
	}

	state.Files = append(state.Files, file)
	if err := c.setState(ctx, chatID, state); err != nil {
		return c.sendInternalError(ctx, chatID)
	}
	return c.tgService.SendMessageEx(ctx, chatID,
		fmt.Sprintf("✅ Файл «%s» добавлен (всего: %d). Пришлите еще или нажмите «Готово».",
			file.FileName, len(state.Files)))
}

// finishFileCollection завершает сбор файлов: для заявки показывает
// подтверждение, для файлов с выезда сразу прикрепляет.
func (c *BotController) finishFileCollection(ctx context.Context, chatID int64, user *entities.User, state *dto.BotState) error {
	if state.Mode == dto.BotModeVisitFiles {
		return c.attachVisitFiles(ctx, chatID, user, state)
	}
	return c.sendTicketConfirmation(ctx, chatID, user, state)
}

// ==================== АДМИНСКИЙ ВВОД ====================

// handleAdminCreateUserInput разбирает анкету нового пользователя:
// четыре строки - Telegram ID, ID сотрудника в CRM, имя, роль.
func (c *BotController) handleAdminCreateUserInput(ctx context.Context, chatID int64, user *entities.User, text string) error {
	lines := strings.Split(strings.TrimSpace(text), "\n")
	if len(lines) != 4 {
		return c.tgService.SendMessageEx(ctx, chatID,
			"Нужно четыре строки:\nTelegram ID\nID сотрудника CRM\nИмя\nРоль (USER / MANAGER / ADMIN)")
	}

	telegramID, err := strconv.ParseInt(strings.TrimSpace(lines[0]), 10, 64)
	if err != nil {
		return c.tgService.SendMessageEx(ctx, chatID, "Первая строка должна быть числом - Telegram ID.")
	}
	megaplanID, err := strconv.ParseInt(strings.TrimSpace(lines[1]), 10, 64)
	if err != nil {
		return c.tgService.SendMessageEx(ctx, chatID, "Вторая строка должна быть числом - ID сотрудника CRM.")
	}
	name := strings.TrimSpace(lines[2])

	role := strings.ToUpper(strings.TrimSpace(lines[3]))
	permissions, ok := rolePermissionsByAlias(role)
	if !ok {
		return c.tgService.SendMessageEx(ctx, chatID, "Роль должна быть одной из: USER, MANAGER, ADMIN.")
	}

	created, err := c.userService.CreateUser(ctx, user, dto.CreateBotUserDTO{
		TelegramID:     telegramID,
		MegaplanUserID: megaplanID,
		Username:       name,
		Permissions:    permissions,
	})
	if err != nil {
		c.logger.Error("ошибка создания пользователя", zap.Error(err))
		return c.tgService.SendMessageEx(ctx, chatID, "❌ Не удалось создать пользователя: "+err.Error())
	}

	c.clearState(ctx, chatID)
	return c.tgService.SendMessageEx(ctx, chatID,
		fmt.Sprintf("✅ Пользователь «%s» (Telegram ID %d) создан с ролью %s.",
			created.Username, created.TelegramID, role))
}

func (c *BotController) handleAdminDeleteUserInput(ctx context.Context, chatID int64, user *entities.User, text string) error {
	telegramID, err := strconv.ParseInt(strings.TrimSpace(text), 10, 64)
	if err != nil {
		return c.tgService.SendMessageEx(ctx, chatID, "Пришлите числовой Telegram ID пользователя.")
	}
	if err := c.userService.DeleteUser(ctx, user, telegramID); err != nil {
		return c.tgService.SendMessageEx(ctx, chatID, "❌ Не удалось удалить: "+err.Error())
	}
	c.clearState(ctx, chatID)
	return c.tgService.SendMessageEx(ctx, chatID,
		fmt.Sprintf("✅ Пользователь %d удален.", telegramID))
}

// handleAdminSetLimitInput разбирает настройку лимита на даты:
// "ДД.ММ.ГГГГ[-ДД.ММ.ГГГГ] лимит [бригады]" либо "ДД.ММ.ГГГГ[-ДД.ММ.ГГГГ] сброс".
func (c *BotController) handleAdminSetLimitInput(ctx context.Context, chatID int64, user *entities.User, text string) error {
	if !user.HasPermission(constants.PermissionSetVisitLimits) {
		return c.sendNoPermission(ctx, chatID)
	}

	fields := strings.Fields(strings.TrimSpace(text))
	if len(fields) < 2 {
		return c.tgService.SendMessageEx(ctx, chatID,
			"Формат: ДД.ММ.ГГГГ[-ДД.ММ.ГГГГ] <лимит> [бригады]\nили: ДД.ММ.ГГГГ[-ДД.ММ.ГГГГ] сброс")
	}

	start, end, err := parseDateRange(fields[0], c.today())
	if err != nil {
		return c.tgService.SendMessageEx(ctx, chatID, "Не удалось разобрать даты: "+err.Error())
	}

	if strings.EqualFold(fields[1], "сброс") {
		deleted, err := c.settingsService.DeleteOverrideRange(ctx, start, end)
		if err != nil {
			return c.tgService.SendMessageEx(ctx, chatID, "❌ Не удалось сбросить лимиты: "+err.Error())
		}
		c.clearState(ctx, chatID)
		return c.tgService.SendMessageEx(ctx, chatID,
			fmt.Sprintf("✅ Сброшено переопределений: %d.", deleted))
	}

	limit, err := strconv.Atoi(fields[1])
	if err != nil || limit < 0 {
		return c.tgService.SendMessageEx(ctx, chatID, "Лимит должен быть неотрицательным числом.")
	}

	var brigades *int
	if len(fields) >= 3 {
		value, err := strconv.Atoi(fields[2])
		if err != nil || value <= 0 {
			return c.tgService.SendMessageEx(ctx, chatID, "Число бригад должно быть положительным.")
		}
		brigades = &value
	}

	days, err := c.settingsService.SetOverrideRange(ctx, start, end, limit, brigades)
	if err != nil {
		return c.tgService.SendMessageEx(ctx, chatID, "❌ Не удалось установить лимит: "+err.Error())
	}
	c.clearState(ctx, chatID)
	return c.tgService.SendMessageEx(ctx, chatID,
		fmt.Sprintf("✅ Лимит %d установлен на %d дн.", limit, days))
}

func (c *BotController) handleAdminDefaultLimitInput(ctx context.Context, chatID int64, user *entities.User, text string) error {
	if !user.HasPermission(constants.PermissionSetVisitLimits) {
		return c.sendNoPermission(ctx, chatID)
	}
	limit, err := strconv.Atoi(strings.TrimSpace(text))
	if err != nil || limit < 0 {
		return c.tgService.SendMessageEx(ctx, chatID, "Пришлите неотрицательное число.")
	}
	if err := c.settingsService.UpdateDefaultLimit(ctx, limit); err != nil {
		return c.tgService.SendMessageEx(ctx, chatID, "❌ Не удалось обновить лимит: "+err.Error())
	}
	c.clearState(ctx, chatID)
	return c.tgService.SendMessageEx(ctx, chatID,
		fmt.Sprintf("✅ Лимит по умолчанию теперь %d.", limit))
}

func (c *BotController) handleAdminDefaultBrigadesInput(ctx context.Context, chatID int64, user *entities.User, text string) error {
	if !user.HasPermission(constants.PermissionSetVisitLimits) {
		return c.sendNoPermission(ctx, chatID)
	}
	count, err := strconv.Atoi(strings.TrimSpace(text))
	if err != nil || count <= 0 {
		return c.tgService.SendMessageEx(ctx, chatID, "Пришлите положительное число бригад.")
	}
	if err := c.settingsService.UpdateDefaultBrigades(ctx, count); err != nil {
		return c.tgService.SendMessageEx(ctx, chatID, "❌ Не удалось обновить число бригад: "+err.Error())
	}
	c.clearState(ctx, chatID)
	return c.tgService.SendMessageEx(ctx, chatID,
		fmt.Sprintf("✅ Бригад по умолчанию теперь %d.", count))
}

// ==================== РАЗБОР ДАТ ====================

// parseUserDate понимает "25.12.2026", "25.12" и "25". Краткие формы
// относятся к ближайшей подходящей дате не раньше today.
func parseUserDate(text string, today time.Time) (time.Time, error) {
	text = strings.TrimSpace(text)
	zone := today.Location()

	if date, err := time.ParseInLocation("02.01.2006", text, zone); err == nil {
		return date, nil
	}

	if date, err := time.ParseInLocation("02.01", text, zone); err == nil {
		result := time.Date(today.Year(), date.Month(), date.Day(), 0, 0, 0, 0, zone)
		if result.Before(today) {
			result = result.AddDate(1, 0, 0)
		}
		return result, nil
	}

	if day, err := strconv.Atoi(text); err == nil && day >= 1 && day <= 31 {
		result := time.Date(today.Year(), today.Month(), day, 0, 0, 0, 0, zone)
		if result.Before(today) {
			result = time.Date(today.Year(), today.Month()+1, day, 0, 0, 0, 0, zone)
		}
		// 31-е число короткого месяца перетекает в следующий.
		if result.Day() != day {
			return time.Time{}, fmt.Errorf("в месяце нет числа %d", day)
		}
		return result, nil
	}

	return time.Time{}, fmt.Errorf("неизвестный формат даты: %q", text)
}

// parseDateRange разбирает "ДД.ММ.ГГГГ" или "ДД.ММ.ГГГГ-ДД.ММ.ГГГГ".
func parseDateRange(text string, today time.Time) (time.Time, time.Time, error) {
	parts := strings.SplitN(text, "-", 2)

	start, err := parseUserDate(parts[0], today)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	if len(parts) == 1 {
		return start, start, nil
	}

	end, err := parseUserDate(parts[1], today)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	if end.Before(start) {
		return time.Time{}, time.Time{}, fmt.Errorf("конец периода раньше начала")
	}
	return start, end, nil
}
