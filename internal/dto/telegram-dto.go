package dto

import (
	"encoding/json"
	"fmt"
)

// Режимы диалога с ботом. Состояние живет в Redis и описывает, какой ввод
// бот ждет от пользователя следующим сообщением.
const (
	BotModeTicketDate           = "ticket_date"
	BotModeTicketTime           = "ticket_time"
	BotModeTicketDescription    = "ticket_description"
	BotModeTicketFiles          = "ticket_files"
	BotModeViewDate             = "view_date"
	BotModeVisitFiles           = "visit_files"
	BotModeAdminCreateUser      = "admin_create_user"
	BotModeAdminDeleteUser      = "admin_delete_user"
	BotModeAdminSetLimit        = "admin_set_limit"
	BotModeAdminDefaultLimit    = "admin_default_limit"
	BotModeAdminDefaultBrigades = "admin_default_brigades"
)

// BotState - состояние диалога одного чата. Черновик заявки накапливается
// по шагам: дата, время, описание, файлы.
type BotState struct {
	Mode string `json:"mode"`
	// Сообщение с inline-клавиатурой, которое бот редактирует по ходу шага.
	MessageID int `json:"message_id,omitempty"`

	// Черновик заявки.
	VisitDate   string            `json:"visit_date,omitempty"` // 2006-01-02
	VisitTime   string            `json:"visit_time,omitempty"` // 15:04
	Description string            `json:"description,omitempty"`
	Files       []AttachedFileDTO `json:"files,omitempty"`

	// Сделка, к которой прикрепляются файлы с выезда.
	DealID string `json:"deal_id,omitempty"`
}

func (s *BotState) ToJSON() (string, error) {
	data, err := json.Marshal(s)
	if err != nil {
		return "", fmt.Errorf("ошибка сериализации состояния: %w", err)
	}
	return string(data), nil
}

func BotStateFromJSON(data string) (*BotState, error) {
	var state BotState
	if err := json.Unmarshal([]byte(data), &state); err != nil {
		return nil, fmt.Errorf("ошибка разбора состояния: %w", err)
	}
	return &state, nil
}
