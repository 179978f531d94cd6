package entities

import (
	"time"

	"ticket-bot/pkg/types"
)

// MapRequest - временный запрос на отображение сделок на карте. Бот создает
// запись с одноразовым токеном и ссылкой отдает ее пользователю; веб-бэкенд
// отдает данные по токену до истечения срока.
type MapRequest struct {
	ID             uint64    `json:"id" db:"id"`
	RequestToken   string    `json:"request_token" db:"request_token"`
	UserTelegramID int64     `json:"user_telegram_id" db:"user_telegram_id"`
	DealsDataJSON  string    `json:"deals_data_json" db:"deals_data_json"`
	ExpiresAt      time.Time `json:"expires_at" db:"expires_at"`

	types.BaseEntity
}

// IsExpired сообщает, истек ли срок действия токена на момент now.
func (m *MapRequest) IsExpired(now time.Time) bool {
	return now.After(m.ExpiresAt)
}
