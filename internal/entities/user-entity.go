// Файл: internal/entities/user_entity.go
package entities

import (
	"github.com/aarondl/null/v8"

	"ticket-bot/pkg/constants"
	"ticket-bot/pkg/types"
)

// User - пользователь бота. Доступ к функциям определяется списком
// гранулярных разрешений, а не ролями.
type User struct {
	ID             uint64      `json:"id" db:"id"`
	TelegramID     int64       `json:"telegram_id" db:"telegram_id"`
	Username       null.String `json:"username,omitempty" db:"username"`
	MegaplanUserID null.Int64  `json:"megaplan_user_id,omitempty" db:"megaplan_user_id"`

	Permissions []string `json:"permissions" db:"permissions"`

	types.BaseEntity
}

// HasPermission проверяет, есть ли у пользователя указанное разрешение.
func (u *User) HasPermission(permission constants.Permission) bool {
	for _, p := range u.Permissions {
		if p == permission.String() {
			return true
		}
	}
	return false
}
