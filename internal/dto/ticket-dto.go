package dto

import "time"

// AttachedFileDTO - файл, полученный от пользователя в Telegram.
type AttachedFileDTO struct {
	FileID   string `json:"file_id" validate:"required"`
	FileName string `json:"file_name" validate:"required"`
}

// CreateTicketDTO - данные формы создания заявки. Первая строка описания
// становится названием сделки. Дата и время отсутствуют у заявок без выезда.
type CreateTicketDTO struct {
	Description   string            `json:"description" validate:"required"`
	VisitDate     *time.Time        `json:"visit_date" validate:"omitempty"`
	VisitTime     string            `json:"visit_time" validate:"omitempty,len=5"`
	AttachedFiles []AttachedFileDTO `json:"attached_files" validate:"omitempty,dive"`
}

// HasVisit сообщает, запланирован ли по заявке выезд.
func (d CreateTicketDTO) HasVisit() bool {
	return d.VisitDate != nil && d.VisitTime != ""
}

// CreatedTicketDTO - результат создания заявки.
type CreatedTicketDTO struct {
	DealID        string `json:"deal_id"`
	DealURL       string `json:"deal_url"`
	AttachedCount int    `json:"attached_count"`
}

// DayStatsDTO - загруженность одного дня: число заявок и действующий лимит.
type DayStatsDTO struct {
	Date          time.Time `json:"date"`
	TicketsCount  int       `json:"tickets_count"`
	Limit         int       `json:"limit"`
	BrigadesCount int       `json:"brigades_count"`
	// Времена выездов, уже занятые в этот день, в формате ЧЧ:ММ.
	OccupiedSlots []string `json:"occupied_slots"`
}

// LimitReached сообщает, достигнут ли лимит заявок на день.
func (d DayStatsDTO) LimitReached() bool {
	return d.TicketsCount >= d.Limit
}
