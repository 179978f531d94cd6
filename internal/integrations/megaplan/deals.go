package megaplan

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"go.uber.org/zap"

	apperrors "ticket-bot/pkg/errors"
)

const dealEndpoint = "/api/v3/deal"

// dealFields - явный список запрашиваемых полей сделки.
var dealFields = []interface{}{
	"editableFields",
	"possibleActions",
	fieldAddress,
	fieldCadastralNumber,
	fieldVisitDateTime,
	fieldVisitResult,
	fieldExecutors,
	fieldVisitFiles,
	FieldVisitDocs,
	fieldTelegramUserIDs,
	FieldServiceData,
	map[string]interface{}{
		"contractor": []string{
			"avatar", "canSeeFull", "firstName", "lastName", "middleName",
			"name", "type", "contactInfo",
		},
	},
	"description",
	"isFavorite",
	"name",
	"nearTodo",
	"number",
	"price",
	"program",
	"state",
	"tags",
	"tagsCount",
	"unreadCommentsCount",
}

// dateOnlyValue - дата без времени в формате Мегаплана.
func dateOnlyValue(date time.Time) map[string]interface{} {
	return map[string]interface{}{
		"contentType": "DateOnly",
		"year":        date.Year(),
		// Мегаплан ожидает месяц 0-11
		"month": int(date.Month()) - 1,
		"day":   date.Day(),
	}
}

// buildDealSearchPayload собирает фильтр TradeFilter для поиска сделок.
func (p *Provider) buildDealSearchPayload(filter DealFilter) map[string]interface{} {
	limit := filter.Limit
	if limit <= 0 {
		limit = 25
	}

	payload := map[string]interface{}{
		"filter": map[string]interface{}{
			"contentType": "TradeFilter",
			"id":          nil,
			"program": map[string]interface{}{
				"id":          p.programID,
				"contentType": "Program",
			},
		},
		"limit":               limit,
		"onlyRequestedFields": true,
		"sortBy": []interface{}{
			map[string]interface{}{
				"contentType": "SortField",
				"fieldName":   fieldExecutors,
				"desc":        false,
			},
		},
		"fields": dealFields,
	}

	var terms []interface{}

	switch {
	case filter.VisitDateFrom != nil && filter.VisitDateTo != nil:
		// Для интервала тоже используется comparison "equals".
		terms = append(terms, map[string]interface{}{
			"contentType": "FilterTermDate",
			"field":       fieldVisitDateTime,
			"comparison":  "equals",
			"value": map[string]interface{}{
				"contentType": "IntervalDates",
				"from":        dateOnlyValue(*filter.VisitDateFrom),
				"to":          dateOnlyValue(*filter.VisitDateTo),
			},
		})
	case filter.VisitDate != nil:
		terms = append(terms, map[string]interface{}{
			"contentType": "FilterTermDate",
			"field":       fieldVisitDateTime,
			"comparison":  "equals",
			"value":       dateOnlyValue(*filter.VisitDate),
		})
	}

	if filter.ExecutorID != "" {
		terms = append(terms, map[string]interface{}{
			"contentType": "FilterTermRef",
			"field":       fieldExecutors,
			"comparison":  "equals",
			"value": []interface{}{
				map[string]interface{}{"id": filter.ExecutorID, "contentType": "Employee"},
			},
		})
	}

	// Сделки в отмененном статусе из выборки исключаются всегда.
	terms = append(terms, map[string]interface{}{
		"contentType": "FilterTermRef",
		"field":       "state",
		"comparison":  "not_equals",
		"value": []interface{}{
			map[string]interface{}{"id": cancelledStatusID, "contentType": "ProgramState"},
		},
	})

	payload["filter"].(map[string]interface{})["config"] = map[string]interface{}{
		"contentType": "FilterConfig",
		"termGroup": map[string]interface{}{
			"contentType": "FilterTermGroup",
			"join":        "and",
			"terms":       terms,
		},
	}

	return payload
}

// GetDeals получает список сделок с фильтрацией по дате выезда и исполнителю.
// JSON-фильтр сериализуется и URL-кодируется в строку запроса GET - так
// устроен поисковый эндпоинт Мегаплана. Валидация батча строгая: ошибка
// в любой сделке означает ошибку всей выборки, частичные результаты не
// возвращаются (ниже по потоку данные раскладываются по датам и должны
// быть полными). После разбора выполняется обогащение stub-записей
// исполнителей из кэша того же ответа.
func (p *Provider) GetDeals(ctx context.Context, filter DealFilter) ([]Deal, error) {
	payload, err := json.Marshal(p.buildDealSearchPayload(filter))
	if err != nil {
		return nil, fmt.Errorf("ошибка сериализации фильтра сделок: %w", err)
	}

	endpoint := dealEndpoint + "?" + url.QueryEscape(string(payload))
	data, err := p.request(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}

	var deals []Deal
	if err := json.Unmarshal(data, &deals); err != nil {
		return nil, fmt.Errorf("%w: список сделок не разобран: %v", apperrors.ErrUnexpectedResponse, err)
	}

	for i := range deals {
		if err := p.validate.Struct(&deals[i]); err != nil {
			return nil, fmt.Errorf("%w: сделка с индексом %d не прошла валидацию: %v",
				apperrors.ErrUnexpectedResponse, i, err)
		}
	}

	enrichExecutors(deals)

	p.logger.Debug("получены сделки из Мегаплана", zap.Int("count", len(deals)))
	return deals, nil
}

// CreateDeal создает новую сделку. Дата выезда приводится к локальной
// таймзоне пользователей и конвертируется в UTC перед отправкой: в CRM
// всегда уходит единое каноническое представление времени.
func (p *Provider) CreateDeal(ctx context.Context, draft DealDraft) (*Deal, error) {
	p.logger.Info("попытка создания сделки", zap.String("name", draft.Name))

	payload := map[string]interface{}{
		"contentType": "Deal",
		"program":     map[string]interface{}{"contentType": "Program", "id": p.programID},
	}

	if draft.Name != "" {
		payload["name"] = draft.Name
	}
	if draft.Description != "" {
		payload["description"] = draft.Description
	}
	if draft.ManagerID != 0 {
		payload["manager"] = map[string]interface{}{"contentType": "Employee", "id": draft.ManagerID}
	}
	if draft.VisitDateTime != nil {
		utcValue := draft.VisitDateTime.In(p.localZone).UTC()
		payload[fieldVisitDateTime] = map[string]string{
			"contentType": "DateTime",
			"value":       utcValue.Format(time.RFC3339),
		}
	}
	if draft.MegaplanUserID != 0 {
		// Поле служебной привязки - список, даже для одного пользователя.
		payload[fieldTelegramUserIDs] = []interface{}{
			map[string]interface{}{"contentType": "Employee", "id": strconv.FormatInt(draft.MegaplanUserID, 10)},
		}
	}
	if draft.Cadastral != "" {
		payload[fieldCadastralNumber] = draft.Cadastral
	}
	if draft.Address != "" {
		payload[fieldAddress] = draft.Address
	}

	data, err := p.request(ctx, http.MethodPost, dealEndpoint, payload)
	if err != nil {
		return nil, err
	}

	var created Deal
	if err := json.Unmarshal(data, &created); err != nil {
		return nil, fmt.Errorf("%w: созданная сделка не разобрана: %v", apperrors.ErrUnexpectedResponse, err)
	}
	if created.ID == "" {
		return nil, fmt.Errorf("%w: ответ на создание сделки без id", apperrors.ErrUnexpectedResponse)
	}

	p.logger.Info("сделка успешно создана",
		zap.String("id", created.ID),
		zap.String("number", created.Number))
	return &created, nil
}

// UpdateDeal частично обновляет сделку: в CRM уходят только переданные поля.
func (p *Provider) UpdateDeal(ctx context.Context, dealID string, fields map[string]interface{}) error {
	if dealID == "" {
		return apperrors.NewInvalidInputError("не указан id сделки для обновления")
	}

	payload := map[string]interface{}{
		"id":          dealID,
		"contentType": "Deal",
	}
	for name, value := range fields {
		payload[name] = value
	}

	_, err := p.request(ctx, http.MethodPost, dealEndpoint+"/"+dealID, payload)
	return err
}

// SetVisitResult записывает текстовый результат выезда в сделку.
func (p *Provider) SetVisitResult(ctx context.Context, dealID, result string) error {
	return p.UpdateDeal(ctx, dealID, map[string]interface{}{fieldVisitResult: result})
}

// getDeal запрашивает одну сделку с явным списком полей.
func (p *Provider) getDeal(ctx context.Context, dealID string, fields []interface{}) (*Deal, error) {
	query, err := json.Marshal(map[string]interface{}{"fields": fields, "onlyRequestedFields": true})
	if err != nil {
		return nil, fmt.Errorf("ошибка сериализации запроса сделки: %w", err)
	}

	endpoint := dealEndpoint + "/" + dealID + "?" + url.QueryEscape(string(query))
	data, err := p.request(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}

	var deal Deal
	if err := json.Unmarshal(data, &deal); err != nil {
		return nil, fmt.Errorf("%w: сделка %s не разобрана: %v", apperrors.ErrUnexpectedResponse, dealID, err)
	}
	return &deal, nil
}
