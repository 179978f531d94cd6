package dto

// CreateBotUserDTO - данные для создания пользователя бота администратором.
type CreateBotUserDTO struct {
	TelegramID     int64    `json:"telegram_id" validate:"required"`
	MegaplanUserID int64    `json:"megaplan_user_id" validate:"omitempty,gt=0"`
	Username       string   `json:"username" validate:"omitempty,max=255"`
	Permissions    []string `json:"permissions" validate:"required,min=1,dive,required"`
}

// BotUserDTO - представление пользователя для списков и ответов.
type BotUserDTO struct {
	ID             uint64   `json:"id"`
	TelegramID     int64    `json:"telegram_id"`
	Username       string   `json:"username,omitempty"`
	MegaplanUserID int64    `json:"megaplan_user_id,omitempty"`
	Permissions    []string `json:"permissions"`
}
