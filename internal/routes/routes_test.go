// Файл: internal/routes/routes_test.go
package routes

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"ticket-bot/internal/dto"
	"ticket-bot/internal/integrations/megaplan"
	"ticket-bot/pkg/config"
	apperrors "ticket-bot/pkg/errors"
)

type stubMapService struct {
	data map[string][]dto.MapDealDTO
}

func (s *stubMapService) CreateMapLink(ctx context.Context, userTelegramID int64, deals []megaplan.Deal) (*dto.MapLinkDTO, error) {
	return nil, nil
}

func (s *stubMapService) GetMapData(ctx context.Context, token string) ([]dto.MapDealDTO, error) {
	deals, ok := s.data[token]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	return deals, nil
}

func (s *stubMapService) CleanupExpired(ctx context.Context) error { return nil }

func newTestServer(data map[string][]dto.MapDealDTO) *echo.Echo {
	e := echo.New()
	InitRouter(e, &stubMapService{data: data}, config.MapConfig{
		FrontendBaseURL: "http://localhost:5173",
	}, zap.NewNop())
	return e
}

func TestMapDataRoute(t *testing.T) {
	e := newTestServer(map[string][]dto.MapDealDTO{
		"valid-token": {
			{
				DealID:    "555",
				DealName:  "Замер участка",
				VisitTime: "14:30",
				Locations: []dto.MapLocationDTO{
					{CadastralNumber: "39:03:000000:4646", Coords: [2]float64{20.45, 54.71}},
				},
			},
		},
	})

	request := httptest.NewRequest(http.MethodGet, "/api/v1/map-data/valid-token", nil)
	recorder := httptest.NewRecorder()
	e.ServeHTTP(recorder, request)

	require.Equal(t, http.StatusOK, recorder.Code)

	var response struct {
		Status bool             `json:"status"`
		Body   []dto.MapDealDTO `json:"body"`
	}
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &response))
	assert.True(t, response.Status)
	require.Len(t, response.Body, 1)
	assert.Equal(t, "555", response.Body[0].DealID)
	assert.Equal(t, [2]float64{20.45, 54.71}, response.Body[0].Locations[0].Coords)
}

func TestMapDataRoute_UnknownToken(t *testing.T) {
	e := newTestServer(nil)

	request := httptest.NewRequest(http.MethodGet, "/api/v1/map-data/missing", nil)
	recorder := httptest.NewRecorder()
	e.ServeHTTP(recorder, request)

	assert.Equal(t, http.StatusNotFound, recorder.Code)
}

func TestHealthRoute(t *testing.T) {
	e := newTestServer(nil)

	request := httptest.NewRequest(http.MethodGet, "/health", nil)
	recorder := httptest.NewRecorder()
	e.ServeHTTP(recorder, request)

	assert.Equal(t, http.StatusOK, recorder.Code)
}
