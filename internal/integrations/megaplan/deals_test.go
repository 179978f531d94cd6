package megaplan

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "ticket-bot/pkg/errors"
)

func writeEnvelope(w http.ResponseWriter, data string) {
	w.Header().Set("Content-Type", "application/json")
	fmt.Fprintf(w, `{"meta":{"status":200,"errors":[]},"data":%s}`, data)
}

func TestGetDeals_FilterPayload(t *testing.T) {
	var capturedQuery string
	mux := http.NewServeMux()
	var loginCount int64
	mux.Handle(authEndpoint, authHandler(&loginCount, 3600))
	mux.HandleFunc(dealEndpoint, func(w http.ResponseWriter, r *http.Request) {
		capturedQuery = r.URL.RawQuery
		writeEnvelope(w, `[]`)
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	p := newTestProvider(t, server.URL)

	visitDate := time.Date(2024, 5, 27, 0, 0, 0, 0, time.UTC)
	_, err := p.GetDeals(context.Background(), DealFilter{VisitDate: &visitDate, ExecutorID: "77"})
	require.NoError(t, err)

	decoded, err := url.QueryUnescape(capturedQuery)
	require.NoError(t, err)

	var payload struct {
		Filter struct {
			ContentType string `json:"contentType"`
			Program     struct {
				ID int64 `json:"id"`
			} `json:"program"`
			Config struct {
				TermGroup struct {
					Terms []map[string]interface{} `json:"terms"`
				} `json:"termGroup"`
			} `json:"config"`
		} `json:"filter"`
		Limit  int           `json:"limit"`
		Fields []interface{} `json:"fields"`
	}
	require.NoError(t, json.Unmarshal([]byte(decoded), &payload))

	assert.Equal(t, "TradeFilter", payload.Filter.ContentType)
	assert.EqualValues(t, 13, payload.Filter.Program.ID)
	assert.Equal(t, 25, payload.Limit, "лимит по умолчанию")
	assert.NotEmpty(t, payload.Fields)

	terms := payload.Filter.Config.TermGroup.Terms
	require.Len(t, terms, 3, "дата + исполнитель + исключение отмененного статуса")

	dateValue := terms[0]["value"].(map[string]interface{})
	assert.EqualValues(t, 2024, dateValue["year"])
	assert.EqualValues(t, 4, dateValue["month"], "месяц передается 0-базным: май = 4")
	assert.EqualValues(t, 27, dateValue["day"])

	stateTerm := terms[2]
	assert.Equal(t, "not_equals", stateTerm["comparison"])
	stateRefs := stateTerm["value"].([]interface{})
	ref := stateRefs[0].(map[string]interface{})
	assert.EqualValues(t, cancelledStatusID, ref["id"])
}

func TestGetDeals_EnrichesStubExecutors(t *testing.T) {
	mux := http.NewServeMux()
	var loginCount int64
	mux.Handle(authEndpoint, authHandler(&loginCount, 3600))
	mux.HandleFunc(dealEndpoint, func(w http.ResponseWriter, r *http.Request) {
		writeEnvelope(w, `[
			{
				"id": "100", "name": "Выезд на участок", "number": "5088-2025",
				"program": {"id": "13"}, "state": {"id": "10", "name": "В работе"},
				"Category1000076CustomFieldViezdIspolnitel": [{"id": "5", "name": "Иванов И.И.", "position": "Кадастровый инженер"}]
			},
			{
				"id": "101", "name": "Выезд на здание", "number": "5089-2025",
				"program": {"id": "13"}, "state": {"id": "10"},
				"Category1000076CustomFieldViezdIspolnitel": [{"id": "5"}]
			}
		]`)
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	p := newTestProvider(t, server.URL)

	deals, err := p.GetDeals(context.Background(), DealFilter{})
	require.NoError(t, err)
	require.Len(t, deals, 2)

	require.Len(t, deals[0].Executors, 1)
	require.Len(t, deals[1].Executors, 1)
	assert.Equal(t, "Иванов И.И.", deals[0].Executors[0].Name)
	assert.Equal(t, "Иванов И.И.", deals[1].Executors[0].Name,
		"stub-запись исполнителя должна быть заполнена из кэша ответа")
	assert.Equal(t, "Кадастровый инженер", deals[1].Executors[0].Position)
}

func TestGetDeals_BatchValidationFailsWhole(t *testing.T) {
	mux := http.NewServeMux()
	var loginCount int64
	mux.Handle(authEndpoint, authHandler(&loginCount, 3600))
	mux.HandleFunc(dealEndpoint, func(w http.ResponseWriter, r *http.Request) {
		// Вторая сделка без id: валидация всей выборки должна провалиться.
		writeEnvelope(w, `[
			{"id": "100", "name": "Нормальная сделка", "program": {"id": "13"}, "state": {"id": "10"}},
			{"name": "Сделка без id", "program": {"id": "13"}, "state": {"id": "10"}}
		]`)
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	p := newTestProvider(t, server.URL)

	deals, err := p.GetDeals(context.Background(), DealFilter{})
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrUnexpectedResponse)
	assert.Nil(t, deals, "частичные результаты не возвращаются")
}

func TestGetDeals_ParsesVisitDateTimeAndTelegramIDs(t *testing.T) {
	mux := http.NewServeMux()
	var loginCount int64
	mux.Handle(authEndpoint, authHandler(&loginCount, 3600))
	mux.HandleFunc(dealEndpoint, func(w http.ResponseWriter, r *http.Request) {
		writeEnvelope(w, `[
			{
				"id": "100", "name": "Выезд", "number": "1-2025",
				"program": {"id": "13"}, "state": {"id": "10"},
				"Category1000076CustomFieldViezdDataVremyaViezda": {"contentType": "DateTime", "value": "2024-05-27T08:30:00+00:00"},
				"Category1000076CustomFieldSluzhebniyTelegramuserid": [{"contentType": "Employee", "id": "123456"}]
			}
		]`)
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	p := newTestProvider(t, server.URL)

	deals, err := p.GetDeals(context.Background(), DealFilter{})
	require.NoError(t, err)
	require.Len(t, deals, 1)

	require.NotNil(t, deals[0].VisitDateTime)
	assert.Equal(t, time.Date(2024, 5, 27, 8, 30, 0, 0, time.UTC), deals[0].VisitDateTime.Time.UTC())
	assert.Equal(t, TelegramIDList{"123456"}, deals[0].TelegramUserIDs)
}

func TestCreateDeal_VisitTimeSentAsUTC(t *testing.T) {
	var capturedBody map[string]interface{}
	mux := http.NewServeMux()
	var loginCount int64
	mux.Handle(authEndpoint, authHandler(&loginCount, 3600))
	mux.HandleFunc(dealEndpoint, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&capturedBody))
		writeEnvelope(w, `{"id": "555", "name": "Новый выезд", "number": "5090-2025", "program": {"id": "13"}, "state": {"id": "1"}}`)
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	p := newTestProvider(t, server.URL)

	// 10:00 в локальной зоне пользователей (UTC+2) должно уйти как 08:00 UTC.
	visit := time.Date(2024, 5, 27, 10, 0, 0, 0, p.LocalZone())
	created, err := p.CreateDeal(context.Background(), DealDraft{
		Name:           "Новый выезд",
		VisitDateTime:  &visit,
		MegaplanUserID: 42,
		Cadastral:      "39:03:000000:4646",
	})
	require.NoError(t, err)
	assert.Equal(t, "555", created.ID)

	visitField := capturedBody[fieldVisitDateTime].(map[string]interface{})
	assert.Equal(t, "2024-05-27T08:00:00Z", visitField["value"])

	tgField := capturedBody[fieldTelegramUserIDs].([]interface{})
	ref := tgField[0].(map[string]interface{})
	assert.Equal(t, "42", ref["id"], "привязка передается списком даже для одного пользователя")

	assert.Equal(t, "39:03:000000:4646", capturedBody[fieldCadastralNumber])
}

func TestCreateDeal_ForeignZoneConvertedToUTC(t *testing.T) {
	var capturedBody map[string]interface{}
	mux := http.NewServeMux()
	var loginCount int64
	mux.Handle(authEndpoint, authHandler(&loginCount, 3600))
	mux.HandleFunc(dealEndpoint, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&capturedBody))
		writeEnvelope(w, `{"id": "556", "name": "x", "number": "1", "program": {"id": "13"}, "state": {"id": "1"}}`)
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	p := newTestProvider(t, server.URL)

	// Время с чужим смещением (+05:00) тоже приводится к единому UTC.
	visit := time.Date(2024, 5, 27, 13, 0, 0, 0, time.FixedZone("somewhere", 5*3600))
	_, err := p.CreateDeal(context.Background(), DealDraft{Name: "x", VisitDateTime: &visit})
	require.NoError(t, err)

	visitField := capturedBody[fieldVisitDateTime].(map[string]interface{})
	assert.Equal(t, "2024-05-27T08:00:00Z", visitField["value"])
}

func TestGetDeals_RangeFilterPayload(t *testing.T) {
	var capturedQuery string
	mux := http.NewServeMux()
	var loginCount int64
	mux.Handle(authEndpoint, authHandler(&loginCount, 3600))
	mux.HandleFunc(dealEndpoint, func(w http.ResponseWriter, r *http.Request) {
		capturedQuery = r.URL.RawQuery
		writeEnvelope(w, `[]`)
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	p := newTestProvider(t, server.URL)

	from := time.Date(2024, 5, 27, 0, 0, 0, 0, time.UTC)
	to := time.Date(2024, 6, 2, 0, 0, 0, 0, time.UTC)
	_, err := p.GetDeals(context.Background(), DealFilter{VisitDateFrom: &from, VisitDateTo: &to})
	require.NoError(t, err)

	decoded, err := url.QueryUnescape(capturedQuery)
	require.NoError(t, err)

	var payload struct {
		Filter struct {
			Config struct {
				TermGroup struct {
					Terms []map[string]interface{} `json:"terms"`
				} `json:"termGroup"`
			} `json:"config"`
		} `json:"filter"`
	}
	require.NoError(t, json.Unmarshal([]byte(decoded), &payload))

	var interval map[string]interface{}
	for _, term := range payload.Filter.Config.TermGroup.Terms {
		if term["contentType"] == "FilterTermDate" {
			interval = term
			break
		}
	}
	require.NotNil(t, interval, "ожидался термин фильтра по дате")
	assert.Equal(t, "equals", interval["comparison"])

	value := interval["value"].(map[string]interface{})
	assert.Equal(t, "IntervalDates", value["contentType"])

	fromValue := value["from"].(map[string]interface{})
	assert.EqualValues(t, 2024, fromValue["year"])
	assert.EqualValues(t, 4, fromValue["month"], "май в нумерации с нуля")
	assert.EqualValues(t, 27, fromValue["day"])

	toValue := value["to"].(map[string]interface{})
	assert.EqualValues(t, 5, toValue["month"])
	assert.EqualValues(t, 2, toValue["day"])
}
