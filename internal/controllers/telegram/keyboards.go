// internal/controllers/telegram/keyboards.go
package telegram

import (
	"fmt"
	"time"

	"ticket-bot/internal/dto"
	"ticket-bot/internal/entities"
	"ticket-bot/internal/integrations/megaplan"
	"ticket-bot/internal/services"
	"ticket-bot/pkg/constants"
	"ticket-bot/pkg/telegram"
)

// mainMenuKeyboard собирает главное меню под права пользователя.
func (c *BotController) mainMenuKeyboard(user *entities.User) [][]telegram.ReplyKeyboardButton {
	var rows [][]telegram.ReplyKeyboardButton

	var firstRow []telegram.ReplyKeyboardButton
	if user.HasPermission(constants.PermissionCreateTickets) {
		firstRow = append(firstRow, telegram.ReplyKeyboardButton{Text: menuNewTicket})
	}
	if user.HasPermission(constants.PermissionViewTickets) {
		firstRow = append(firstRow, telegram.ReplyKeyboardButton{Text: menuViewDay})
	}
	if len(firstRow) > 0 {
		rows = append(rows, firstRow)
	}

	var secondRow []telegram.ReplyKeyboardButton
	if user.HasPermission(constants.PermissionAddFilesFromVisit) {
		secondRow = append(secondRow, telegram.ReplyKeyboardButton{Text: menuVisitFiles})
	}
	if user.HasPermission(constants.PermissionManageUsers) ||
		user.HasPermission(constants.PermissionSetVisitLimits) {
		secondRow = append(secondRow, telegram.ReplyKeyboardButton{Text: menuAdmin})
	}
	if len(secondRow) > 0 {
		rows = append(rows, secondRow)
	}
	return rows
}

// dayPickKeyboard строит кнопки выбора дня с индикатором загруженности,
// по две в ряд. Дата уходит в callback в формате 2006-01-02.
func dayPickKeyboard(stats []dto.DayStatsDTO, action string) [][]telegram.InlineKeyboardButton {
	var keyboard [][]telegram.InlineKeyboardButton
	var row []telegram.InlineKeyboardButton
	for _, day := range stats {
		label := fmt.Sprintf("%s %s (%d/%d)",
			dayLoadEmoji(day), day.Date.Format("02.01"), day.TicketsCount, day.Limit)
		row = append(row, telegram.InlineKeyboardButton{
			Text:         label,
			CallbackData: callbackPayload{Action: action, Date: day.Date.Format("2006-01-02")}.encode(),
		})
		if len(row) == 2 {
			keyboard = append(keyboard, row)
			row = nil
		}
	}
	if len(row) > 0 {
		keyboard = append(keyboard, row)
	}
	return keyboard
}

// timePickKeyboard - типовые слоты времени выезда плюс "весь день".
func timePickKeyboard() [][]telegram.InlineKeyboardButton {
	slots := []string{"09:00", "10:00", "11:00", "12:00", "14:00", "15:00", "16:00", "17:00"}

	var keyboard [][]telegram.InlineKeyboardButton
	var row []telegram.InlineKeyboardButton
	for _, slot := range slots {
		row = append(row, telegram.InlineKeyboardButton{
			Text:         slot,
			CallbackData: callbackPayload{Action: "ticket_time", Time: slot}.encode(),
		})
		if len(row) == 4 {
			keyboard = append(keyboard, row)
			row = nil
		}
	}
	if len(row) > 0 {
		keyboard = append(keyboard, row)
	}

	keyboard = append(keyboard, []telegram.InlineKeyboardButton{
		{Text: "🌅 Весь день", CallbackData: callbackPayload{Action: "ticket_time", Time: "00:00"}.encode()},
		{Text: "🕐 Другое время", CallbackData: callbackPayload{Action: "ticket_custom_time"}.encode()},
	})
	return keyboard
}

// dayLoadEmoji - индикатор загруженности дня: свободно, почти заполнен, лимит.
func dayLoadEmoji(day dto.DayStatsDTO) string {
	switch {
	case day.LimitReached():
		return "⛔"
	case day.Limit > 0 && day.TicketsCount*2 >= day.Limit:
		return "⚠️"
	default:
		return "✅"
	}
}

// dealTimeLabel - время выезда для списков: ЧЧ:ММ, "весь день" или прочерк.
func dealTimeLabel(deal megaplan.Deal, zone *time.Location) string {
	if deal.VisitDateTime == nil {
		return "--:--"
	}
	local := deal.VisitDateTime.In(zone)
	if local.Hour() == 0 && local.Minute() == 0 {
		return "весь день"
	}
	return local.Format("15:04")
}

// rolePermissionsByAlias переводит короткое имя роли в набор разрешений.
func rolePermissionsByAlias(role string) ([]string, bool) {
	switch role {
	case "USER":
		return services.UserRolePermissions, true
	case "MANAGER":
		return services.ManagerRolePermissions, true
	case "ADMIN":
		return services.AdminRolePermissions, true
	default:
		return nil, false
	}
}

func truncate(text string, limit int) string {
	runes := []rune(text)
	if len(runes) <= limit {
		return text
	}
	return string(runes[:limit-1]) + "…"
}
