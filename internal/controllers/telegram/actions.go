// internal/controllers/telegram/actions.go
package telegram

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"ticket-bot/internal/dto"
	"ticket-bot/internal/entities"
	"ticket-bot/internal/integrations/megaplan"
	"ticket-bot/pkg/constants"
	"ticket-bot/pkg/telegram"
)

// callbackPayload - данные inline-кнопки. Telegram ограничивает callback_data
// 64 байтами, поэтому поля короткие и необязательные.
type callbackPayload struct {
	Action string `json:"action"`
	Date   string `json:"date,omitempty"` // 2006-01-02
	Time   string `json:"time,omitempty"` // 15:04
	DealID string `json:"deal_id,omitempty"`
}

func (p callbackPayload) encode() string {
	raw, _ := json.Marshal(p)
	return string(raw)
}

func (c *BotController) handleCallbackQuery(ctx context.Context, query *telegram.CallbackQuery) error {
	if query.Message == nil || query.From == nil {
		return nil
	}
	chatID := query.Message.Chat.ID

	user, err := c.resolveUser(ctx, query.From.ID)
	if err != nil {
		return c.tgService.SendMessageEx(ctx, chatID, "⛔ У вас нет доступа к боту.")
	}

	var payload callbackPayload
	if err := json.Unmarshal([]byte(query.Data), &payload); err != nil {
		c.logger.Warn("некорректный callback", zap.String("data", query.Data))
		return nil
	}

	messageID := query.Message.MessageID
	switch payload.Action {
	case "ticket_date":
		return c.handleTicketDateCallback(ctx, chatID, user, messageID, payload.Date, false)
	case "ticket_force":
		return c.handleTicketDateCallback(ctx, chatID, user, messageID, payload.Date, true)
	case "ticket_custom_date":
		return c.promptTextInput(ctx, chatID, messageID, dto.BotModeTicketDate,
			"Введите дату выезда: 25.12.2026, 25.12 или 25.")
	case "ticket_novisit":
		return c.startTicketDescription(ctx, chatID, messageID, &dto.BotState{})
	case "ticket_time":
		state, err := c.getState(ctx, chatID)
		if err != nil {
			return c.sendStaleStateError(ctx, chatID)
		}
		state.MessageID = messageID
		return c.setTicketTime(ctx, chatID, state, payload.Time)
	case "ticket_custom_time":
		return c.promptTextInput(ctx, chatID, messageID, dto.BotModeTicketTime,
			"Введите время выезда в формате ЧЧ:ММ, например 14:30.")
	case "ticket_confirm":
		return c.createTicket(ctx, chatID, user)
	case "ticket_cancel":
		c.clearState(ctx, chatID)
		return c.tgService.EditOrSendMessage(ctx, chatID, messageID, "🚫 Создание заявки отменено.")
	case "view_date":
		return c.handleViewDateCallback(ctx, chatID, payload.Date)
	case "view_custom_date":
		return c.promptTextInput(ctx, chatID, messageID, dto.BotModeViewDate,
			"Введите дату: 25.12.2026, 25.12 или 25.")
	case "vf_date":
		return c.handleVisitFilesDateCallback(ctx, chatID, messageID, payload.Date)
	case "vf_deal":
		return c.handleVisitFilesDealCallback(ctx, chatID, payload.DealID)
	case "admin_add_user":
		return c.handleAdminAddUserCallback(ctx, chatID, user, messageID)
	case "admin_list_users":
		return c.handleAdminListUsersCallback(ctx, chatID, user, messageID)
	case "admin_del_user":
		if !user.HasPermission(constants.PermissionManageUsers) {
			return c.sendNoPermission(ctx, chatID)
		}
		return c.promptTextInput(ctx, chatID, messageID, dto.BotModeAdminDeleteUser,
			"Пришлите Telegram ID пользователя, которого нужно удалить.")
	case "admin_set_limit":
		if !user.HasPermission(constants.PermissionSetVisitLimits) {
			return c.sendNoPermission(ctx, chatID)
		}
		return c.promptTextInput(ctx, chatID, messageID, dto.BotModeAdminSetLimit,
			"Формат: ДД.ММ.ГГГГ[-ДД.ММ.ГГГГ] <лимит> [бригады]\nили: ДД.ММ.ГГГГ[-ДД.ММ.ГГГГ] сброс")
	case "admin_default_limit":
		if !user.HasPermission(constants.PermissionSetVisitLimits) {
			return c.sendNoPermission(ctx, chatID)
		}
		return c.promptTextInput(ctx, chatID, messageID, dto.BotModeAdminDefaultLimit,
			"Пришлите новый лимит заявок в день по умолчанию.")
	case "admin_default_brigades":
		if !user.HasPermission(constants.PermissionSetVisitLimits) {
			return c.sendNoPermission(ctx, chatID)
		}
		return c.promptTextInput(ctx, chatID, messageID, dto.BotModeAdminDefaultBrigades,
			"Пришлите новое число бригад по умолчанию.")
	default:
		c.logger.Warn("неизвестное действие callback", zap.String("action", payload.Action))
		return nil
	}
}

// promptTextInput переводит диалог в режим ожидания текста.
func (c *BotController) promptTextInput(ctx context.Context, chatID int64, messageID int, mode, prompt string) error {
	state, err := c.getState(ctx, chatID)
	if err != nil {
		state = &dto.BotState{}
	}
	state.Mode = mode
	state.MessageID = messageID
	if err := c.setState(ctx, chatID, state); err != nil {
		return c.sendInternalError(ctx, chatID)
	}
	return c.tgService.EditOrSendMessage(ctx, chatID, messageID, prompt)
}

// ==================== СОЗДАНИЕ ЗАЯВКИ ====================

// startTicketFlow показывает выбор даты выезда с загруженностью ближайших дней.
func (c *BotController) startTicketFlow(ctx context.Context, chatID int64) error {
	c.clearState(ctx, chatID)

	start := c.today()
	stats, err := c.ticketService.GetDayStats(ctx, start, start.AddDate(0, 0, quickPickDays-1))
	if err != nil {
		c.logger.Error("не удалось получить загруженность дней", zap.Error(err))
		return c.sendInternalError(ctx, chatID)
	}

	keyboard := dayPickKeyboard(stats, "ticket_date")
	keyboard = append(keyboard,
		[]telegram.InlineKeyboardButton{
			{Text: "📆 Другая дата", CallbackData: callbackPayload{Action: "ticket_custom_date"}.encode()},
		},
		[]telegram.InlineKeyboardButton{
			{Text: "🚫 Без выезда", CallbackData: callbackPayload{Action: "ticket_novisit"}.encode()},
		},
	)

	return c.tgService.SendMessageEx(ctx, chatID,
		"📅 Выберите дату выезда:", telegram.WithKeyboard(keyboard))
}

func (c *BotController) handleTicketDateCallback(ctx context.Context, chatID int64, user *entities.User, messageID int, rawDate string, force bool) error {
	date, err := time.ParseInLocation("2006-01-02", rawDate, c.zone)
	if err != nil {
		return c.sendStaleStateError(ctx, chatID)
	}
	state := &dto.BotState{MessageID: messageID}
	return c.proceedWithTicketDate(ctx, chatID, user, date, state, force)
}

// proceedWithTicketDate проверяет лимит на выбранную дату и либо предлагает
// время, либо предупреждает о переполнении. Обойти лимит может только
// пользователь с правом управления лимитами.
func (c *BotController) proceedWithTicketDate(ctx context.Context, chatID int64, user *entities.User, date time.Time, state *dto.BotState, force bool) error {
	stats, err := c.ticketService.GetDayStats(ctx, date, date)
	if err != nil {
		c.logger.Error("не удалось проверить лимит дня", zap.Error(err))
		return c.sendInternalError(ctx, chatID)
	}

	day := stats[0]
	if day.LimitReached() && !force {
		text := fmt.Sprintf("⛔ На %s уже %d заявок при лимите %d.",
			date.Format("02.01.2006"), day.TicketsCount, day.Limit)
		if !user.HasPermission(constants.PermissionSetVisitLimits) {
			return c.tgService.EditOrSendMessage(ctx, chatID, state.MessageID,
				text+"\nВыберите другую дату.")
		}
		keyboard := [][]telegram.InlineKeyboardButton{{
			{
				Text:         "❗ Все равно создать",
				CallbackData: callbackPayload{Action: "ticket_force", Date: date.Format("2006-01-02")}.encode(),
			},
			{Text: "❌ Отмена", CallbackData: callbackPayload{Action: "ticket_cancel"}.encode()},
		}}
		return c.tgService.EditOrSendMessage(ctx, chatID, state.MessageID,
			text, telegram.WithKeyboard(keyboard))
	}

	state.VisitDate = date.Format("2006-01-02")
	state.Mode = dto.BotModeTicketTime
	if err := c.setState(ctx, chatID, state); err != nil {
		return c.sendInternalError(ctx, chatID)
	}

	text := fmt.Sprintf("🕒 Дата: %s. Выберите время выезда:", date.Format("02.01.2006"))
	if len(day.OccupiedSlots) > 0 {
		text += "\nЗанято: " + strings.Join(day.OccupiedSlots, ", ")
	}
	return c.tgService.EditOrSendMessage(ctx, chatID, state.MessageID,
		text, telegram.WithKeyboard(timePickKeyboard()))
}

// setTicketTime фиксирует время выезда и переходит к описанию. Если на это
// время уже занято бригад больше, чем есть, пользователь получает
// предупреждение, но заявка не блокируется.
func (c *BotController) setTicketTime(ctx context.Context, chatID int64, state *dto.BotState, visitTime string) error {
	if state.VisitDate == "" {
		return c.sendStaleStateError(ctx, chatID)
	}
	state.VisitTime = visitTime

	if visitTime != "00:00" {
		date, err := time.ParseInLocation("2006-01-02", state.VisitDate, c.zone)
		if err == nil {
			if warning := c.slotConflictWarning(ctx, date, visitTime); warning != "" {
				_ = c.tgService.SendMessageEx(ctx, chatID, warning)
			}
		}
	}

	return c.startTicketDescription(ctx, chatID, state.MessageID, state)
}

// slotConflictWarning сообщает о нехватке бригад на конкретное время.
func (c *BotController) slotConflictWarning(ctx context.Context, date time.Time, visitTime string) string {
	stats, err := c.ticketService.GetDayStats(ctx, date, date)
	if err != nil {
		return ""
	}
	taken := 0
	for _, slot := range stats[0].OccupiedSlots {
		if slot == visitTime {
			taken++
		}
	}
	if taken >= stats[0].BrigadesCount {
		return fmt.Sprintf("⚠️ На %s уже запланировано %d выездов при %d бригадах.",
			visitTime, taken, stats[0].BrigadesCount)
	}
	return ""
}

func (c *BotController) startTicketDescription(ctx context.Context, chatID int64, messageID int, state *dto.BotState) error {
	state.Mode = dto.BotModeTicketDescription
	state.MessageID = messageID
	if err := c.setState(ctx, chatID, state); err != nil {
		return c.sendInternalError(ctx, chatID)
	}
	return c.tgService.EditOrSendMessage(ctx, chatID, messageID,
		"✏️ Опишите заявку.\nПервая строка станет названием, кадастровые номера из текста подтянутся на карту.")
}

// sendTicketConfirmation показывает итог черновика перед созданием.
func (c *BotController) sendTicketConfirmation(ctx context.Context, chatID int64, user *entities.User, state *dto.BotState) error {
	var b strings.Builder
	b.WriteString("📋 Проверьте заявку:\n\n")
	if state.VisitDate != "" {
		date, _ := time.ParseInLocation("2006-01-02", state.VisitDate, c.zone)
		b.WriteString("Дата: " + date.Format("02.01.2006") + "\n")
		if state.VisitTime == "00:00" {
			b.WriteString("Время: весь день\n")
		} else {
			b.WriteString("Время: " + state.VisitTime + "\n")
		}
	} else {
		b.WriteString("Без выезда\n")
	}
	b.WriteString("Описание: " + state.Description + "\n")
	b.WriteString(fmt.Sprintf("Файлов: %d\n", len(state.Files)))

	numbers := c.cadastralService.ExtractNumbers(state.Description)
	if len(numbers) > 0 {
		b.WriteString("Кадастровые номера: " + strings.Join(numbers, ", ") + "\n")
	}

	keyboard := [][]telegram.InlineKeyboardButton{{
		{Text: "✅ Создать", CallbackData: callbackPayload{Action: "ticket_confirm"}.encode()},
		{Text: "❌ Отмена", CallbackData: callbackPayload{Action: "ticket_cancel"}.encode()},
	}}
	return c.tgService.SendMessageEx(ctx, chatID, b.String(),
		telegram.WithKeyboard(keyboard), telegram.WithoutLinkPreview())
}

func (c *BotController) createTicket(ctx context.Context, chatID int64, user *entities.User) error {
	state, err := c.getState(ctx, chatID)
	if err != nil {
		return c.sendStaleStateError(ctx, chatID)
	}

	ticket := dto.CreateTicketDTO{
		Description:   state.Description,
		AttachedFiles: state.Files,
	}
	if state.VisitDate != "" {
		date, err := time.ParseInLocation("2006-01-02", state.VisitDate, c.zone)
		if err != nil {
			return c.sendStaleStateError(ctx, chatID)
		}
		ticket.VisitDate = &date
		ticket.VisitTime = state.VisitTime
	}

	created, err := c.ticketService.CreateTicket(ctx, user, ticket)
	if err != nil {
		c.logger.Error("ошибка создания заявки", zap.Error(err))
		return c.tgService.SendMessageEx(ctx, chatID, "❌ Не удалось создать заявку: "+err.Error())
	}

	c.clearState(ctx, chatID)
	text := fmt.Sprintf("✅ Заявка создана!\n%s", created.DealURL)
	if len(state.Files) > 0 {
		text += fmt.Sprintf("\nПрикреплено файлов: %d из %d.", created.AttachedCount, len(state.Files))
	}
	return c.tgService.SendMessageEx(ctx, chatID, text,
		telegram.WithoutLinkPreview(),
		telegram.WithReplyKeyboard(c.mainMenuKeyboard(user)))
}

// ==================== ПРОСМОТР ВЫЕЗДОВ ====================

func (c *BotController) startViewFlow(ctx context.Context, chatID int64) error {
	c.clearState(ctx, chatID)

	start := c.today()
	stats, err := c.ticketService.GetDayStats(ctx, start, start.AddDate(0, 0, quickPickDays-1))
	if err != nil {
		c.logger.Error("не удалось получить загруженность дней", zap.Error(err))
		return c.sendInternalError(ctx, chatID)
	}

	keyboard := dayPickKeyboard(stats, "view_date")
	keyboard = append(keyboard, []telegram.InlineKeyboardButton{
		{Text: "📆 Другая дата", CallbackData: callbackPayload{Action: "view_custom_date"}.encode()},
	})
	return c.tgService.SendMessageEx(ctx, chatID,
		"📅 Выезды на какой день показать?", telegram.WithKeyboard(keyboard))
}

func (c *BotController) handleViewDateCallback(ctx context.Context, chatID int64, rawDate string) error {
	date, err := time.ParseInLocation("2006-01-02", rawDate, c.zone)
	if err != nil {
		return c.sendStaleStateError(ctx, chatID)
	}
	return c.sendDayTickets(ctx, chatID, date)
}

// sendDayTickets присылает список выездов дня: время, название, исполнители,
// адрес и 2ГИС-ссылки по кадастровым номерам, плюс кнопку с веб-картой.
func (c *BotController) sendDayTickets(ctx context.Context, chatID int64, date time.Time) error {
	deals, err := c.ticketService.GetDealsForRange(ctx, date, date)
	if err != nil {
		c.logger.Error("не удалось получить выезды дня", zap.Error(err))
		return c.sendInternalError(ctx, chatID)
	}

	if len(deals) == 0 {
		return c.tgService.SendMessageEx(ctx, chatID,
			fmt.Sprintf("На %s выездов нет.", date.Format("02.01.2006")))
	}

	var b strings.Builder
	b.WriteString(fmt.Sprintf("🚗 Выезды на %s (%d):\n", date.Format("02.01.2006"), len(deals)))
	for _, deal := range deals {
		b.WriteString("\n" + c.formatDealLine(ctx, deal))
	}

	var options []telegram.MessageOption
	options = append(options, telegram.WithoutLinkPreview())

	link, err := c.mapService.CreateMapLink(ctx, chatID, deals)
	if err != nil {
		c.logger.Error("не удалось создать ссылку на карту", zap.Error(err))
	} else if link != nil {
		options = append(options, telegram.WithKeyboard([][]telegram.InlineKeyboardButton{{
			{Text: "🗺 Открыть карту", URL: link.URL},
		}}))
	}

	return c.tgService.SendMessageEx(ctx, chatID, b.String(), options...)
}

func (c *BotController) formatDealLine(ctx context.Context, deal megaplan.Deal) string {
	var b strings.Builder
	b.WriteString("• " + dealTimeLabel(deal, c.zone) + " - " + deal.Name + "\n")
	b.WriteString("  " + deal.ID + ": " + c.ticketDealURL(deal.ID) + "\n")

	executors := make([]string, 0, len(deal.Executors))
	for _, executor := range deal.Executors {
		if executor.Name != "" {
			executors = append(executors, executor.Name)
		}
	}
	if len(executors) > 0 {
		b.WriteString("  Исполнители: " + strings.Join(executors, ", ") + "\n")
	}
	if deal.Address != "" {
		b.WriteString("  Адрес: " + deal.Address + "\n")
	}

	objects := c.cadastralService.GetObjectsForText(ctx, deal.Name+"\n"+deal.Description)
	for _, object := range objects {
		point := object.Centroid
		if point == nil {
			point = object.Point
		}
		if point == nil {
			continue
		}
		b.WriteString(fmt.Sprintf("  📍 %s: https://2gis.ru/geo/%f,%f\n",
			object.CadastralNumber, point[0], point[1]))
	}
	return b.String()
}

// ==================== ФАЙЛЫ С ВЫЕЗДА ====================

func (c *BotController) startVisitFilesFlow(ctx context.Context, chatID int64) error {
	c.clearState(ctx, chatID)

	start := c.today()
	stats, err := c.ticketService.GetDayStats(ctx, start.AddDate(0, 0, -1), start.AddDate(0, 0, 1))
	if err != nil {
		c.logger.Error("не удалось получить загруженность дней", zap.Error(err))
		return c.sendInternalError(ctx, chatID)
	}

	keyboard := dayPickKeyboard(stats, "vf_date")
	return c.tgService.SendMessageEx(ctx, chatID,
		"📷 За какой день выезд?", telegram.WithKeyboard(keyboard))
}

func (c *BotController) handleVisitFilesDateCallback(ctx context.Context, chatID int64, messageID int, rawDate string) error {
	date, err := time.ParseInLocation("2006-01-02", rawDate, c.zone)
	if err != nil {
		return c.sendStaleStateError(ctx, chatID)
	}

	deals, err := c.ticketService.GetDealsForRange(ctx, date, date)
	if err != nil {
		c.logger.Error("не удалось получить выезды дня", zap.Error(err))
		return c.sendInternalError(ctx, chatID)
	}
	if len(deals) == 0 {
		return c.tgService.EditOrSendMessage(ctx, chatID, messageID,
			fmt.Sprintf("На %s выездов нет.", date.Format("02.01.2006")))
	}

	keyboard := make([][]telegram.InlineKeyboardButton, 0, len(deals))
	for _, deal := range deals {
		label := dealTimeLabel(deal, c.zone) + " " + truncate(deal.Name, 40)
		keyboard = append(keyboard, []telegram.InlineKeyboardButton{{
			Text:         label,
			CallbackData: callbackPayload{Action: "vf_deal", DealID: deal.ID}.encode(),
		}})
	}
	return c.tgService.EditOrSendMessage(ctx, chatID, messageID,
		"Выберите заявку:", telegram.WithKeyboard(keyboard))
}

func (c *BotController) handleVisitFilesDealCallback(ctx context.Context, chatID int64, dealID string) error {
	if dealID == "" {
		return c.sendStaleStateError(ctx, chatID)
	}
	state := &dto.BotState{Mode: dto.BotModeVisitFiles, DealID: dealID}
	if err := c.setState(ctx, chatID, state); err != nil {
		return c.sendInternalError(ctx, chatID)
	}
	return c.tgService.SendMessageEx(ctx, chatID,
		"📎 Пришлите фото и документы с выезда.\n"+
			"Текстовое сообщение будет записано как результат выезда.\n"+
			"Когда закончите, нажмите «Готово».",
		telegram.WithReplyKeyboard([][]telegram.ReplyKeyboardButton{{{Text: "Готово"}}}))
}

func (c *BotController) attachVisitFiles(ctx context.Context, chatID int64, user *entities.User, state *dto.BotState) error {
	if len(state.Files) == 0 && state.Description == "" {
		c.clearState(ctx, chatID)
		return c.tgService.SendMessageEx(ctx, chatID, "Файлов и результата не было, записывать нечего.",
			telegram.WithReplyKeyboard(c.mainMenuKeyboard(user)))
	}

	var lines []string
	if len(state.Files) > 0 {
		attached, err := c.ticketService.AttachVisitFiles(ctx, state.DealID, state.Files)
		if err != nil {
			c.logger.Error("ошибка прикрепления файлов с выезда", zap.Error(err))
			return c.tgService.SendMessageEx(ctx, chatID, "❌ Не удалось прикрепить файлы: "+err.Error())
		}
		lines = append(lines, fmt.Sprintf("✅ Прикреплено файлов: %d из %d.", attached, len(state.Files)))
	}

	if state.Description != "" {
		if err := c.ticketService.SetVisitResult(ctx, state.DealID, state.Description); err != nil {
			c.logger.Error("ошибка записи результата выезда", zap.Error(err))
			lines = append(lines, "⚠️ Не удалось записать результат выезда.")
		} else {
			lines = append(lines, "📝 Результат выезда сохранен.")
		}
	}

	c.clearState(ctx, chatID)
	lines = append(lines, c.ticketDealURL(state.DealID))
	return c.tgService.SendMessageEx(ctx, chatID,
		strings.Join(lines, "\n"),
		telegram.WithoutLinkPreview(),
		telegram.WithReplyKeyboard(c.mainMenuKeyboard(user)))
}

// ==================== АДМИНИСТРИРОВАНИЕ ====================

func (c *BotController) sendAdminMenu(ctx context.Context, chatID int64, user *entities.User) error {
	c.clearState(ctx, chatID)

	var keyboard [][]telegram.InlineKeyboardButton
	if user.HasPermission(constants.PermissionManageUsers) {
		keyboard = append(keyboard,
			[]telegram.InlineKeyboardButton{
				{Text: "👤 Добавить пользователя", CallbackData: callbackPayload{Action: "admin_add_user"}.encode()},
			},
			[]telegram.InlineKeyboardButton{
				{Text: "📋 Список пользователей", CallbackData: callbackPayload{Action: "admin_list_users"}.encode()},
				{Text: "🗑 Удалить", CallbackData: callbackPayload{Action: "admin_del_user"}.encode()},
			},
		)
	}
	if user.HasPermission(constants.PermissionSetVisitLimits) {
		keyboard = append(keyboard,
			[]telegram.InlineKeyboardButton{
				{Text: "📊 Лимит на даты", CallbackData: callbackPayload{Action: "admin_set_limit"}.encode()},
				{Text: "🔢 Лимит по умолчанию", CallbackData: callbackPayload{Action: "admin_default_limit"}.encode()},
			},
			[]telegram.InlineKeyboardButton{
				{Text: "👷 Бригады по умолчанию", CallbackData: callbackPayload{Action: "admin_default_brigades"}.encode()},
			},
		)
	}
	text := "⚙️ Администрирование:"
	if settings, err := c.settingsService.GetAppSettings(ctx); err == nil {
		text = fmt.Sprintf("⚙️ Администрирование\nЛимит в день: %d, бригад: %d.",
			settings.DefaultDailyLimit, settings.DefaultBrigadesCount)
	}
	return c.tgService.SendMessageEx(ctx, chatID, text, telegram.WithKeyboard(keyboard))
}

func (c *BotController) handleAdminAddUserCallback(ctx context.Context, chatID int64, user *entities.User, messageID int) error {
	if !user.HasPermission(constants.PermissionManageUsers) {
		return c.sendNoPermission(ctx, chatID)
	}
	return c.promptTextInput(ctx, chatID, messageID, dto.BotModeAdminCreateUser,
		"Пришлите данные нового пользователя, четыре строки:\n"+
			"Telegram ID\nID сотрудника CRM\nИмя\nРоль (USER / MANAGER / ADMIN)")
}

func (c *BotController) handleAdminListUsersCallback(ctx context.Context, chatID int64, user *entities.User, messageID int) error {
	if !user.HasPermission(constants.PermissionManageUsers) {
		return c.sendNoPermission(ctx, chatID)
	}

	users, err := c.userService.GetUsers(ctx, 100, 0)
	if err != nil {
		c.logger.Error("не удалось получить список пользователей", zap.Error(err))
		return c.sendInternalError(ctx, chatID)
	}
	if len(users) == 0 {
		return c.tgService.EditOrSendMessage(ctx, chatID, messageID, "Пользователей пока нет.")
	}

	var b strings.Builder
	b.WriteString(fmt.Sprintf("👥 Пользователи (%d):\n", len(users)))
	for _, item := range users {
		b.WriteString(fmt.Sprintf("\n• %s\n  Telegram: %d, CRM: %d\n  Права: %s\n",
			item.Username, item.TelegramID, item.MegaplanUserID,
			strings.Join(item.Permissions, ", ")))
	}
	return c.tgService.EditOrSendMessage(ctx, chatID, messageID, b.String())
}

// ticketDealURL строит ссылку на карточку сделки для сообщений бота.
func (c *BotController) ticketDealURL(dealID string) string {
	return c.ticketService.DealURL(dealID)
}
