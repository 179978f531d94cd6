package entities

import (
	"time"

	"github.com/aarondl/null/v8"

	"ticket-bot/pkg/types"
)

// AppSettings - общие настройки приложения. В таблице предполагается одна
// строка; читается первая.
type AppSettings struct {
	ID                   uint64 `json:"id" db:"id"`
	DefaultDailyLimit    int    `json:"default_daily_limit" db:"default_daily_limit"`
	DefaultBrigadesCount int    `json:"default_brigades_count" db:"default_brigades_count"`

	types.BaseEntity
}

// DailyLimitOverride - исключение из общих настроек на конкретную дату.
// Количество бригад опционально: при NULL действует значение по умолчанию.
type DailyLimitOverride struct {
	ID            uint64    `json:"id" db:"id"`
	LimitDate     time.Time `json:"limit_date" db:"limit_date"`
	DailyLimit    int       `json:"daily_limit" db:"daily_limit"`
	BrigadesCount null.Int  `json:"brigades_count,omitempty" db:"brigades_count"`

	types.BaseEntity
}
