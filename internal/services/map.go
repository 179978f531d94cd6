package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"ticket-bot/internal/dto"
	"ticket-bot/internal/entities"
	"ticket-bot/internal/integrations/megaplan"
	"ticket-bot/internal/integrations/nspd"
	"ticket-bot/internal/repositories"
)

type MapServiceInterface interface {
	CreateMapLink(ctx context.Context, userTelegramID int64, deals []megaplan.Deal) (*dto.MapLinkDTO, error)
	GetMapData(ctx context.Context, token string) ([]dto.MapDealDTO, error)
	CleanupExpired(ctx context.Context) error
}

// MapService готовит данные сделок для отображения на карте и выдает
// одноразовые ссылки на веб-карту. Координаты берутся из кадастровых
// номеров, найденных в названии и описании сделки.
type MapService struct {
	mapRequestRepository repositories.MapRequestRepositoryInterface
	cadastralService     CadastralServiceInterface
	crm                  CrmProviderInterface
	frontendBaseURL      string
	tokenTTL             time.Duration
	logger               *zap.Logger

	now func() time.Time
}

func NewMapService(
	mapRequestRepository repositories.MapRequestRepositoryInterface,
	cadastralService CadastralServiceInterface,
	crm CrmProviderInterface,
	frontendBaseURL string,
	tokenTTL time.Duration,
	logger *zap.Logger,
) *MapService {
	return &MapService{
		mapRequestRepository: mapRequestRepository,
		cadastralService:     cadastralService,
		crm:                  crm,
		frontendBaseURL:      strings.TrimRight(frontendBaseURL, "/"),
		tokenTTL:             tokenTTL,
		logger:               logger,
		now:                  time.Now,
	}
}

// CreateMapLink собирает данные сделок для карты, сохраняет их под новым
// токеном и возвращает ссылку. Если ни у одной сделки нет координат,
// возвращается nil без ошибки: ссылку в этом случае показывать нечем.
func (s *MapService) CreateMapLink(ctx context.Context, userTelegramID int64, deals []megaplan.Deal) (*dto.MapLinkDTO, error) {
	mapDeals := s.buildMapData(ctx, deals)
	if len(mapDeals) == 0 {
		return nil, nil
	}

	raw, err := json.Marshal(mapDeals)
	if err != nil {
		return nil, fmt.Errorf("ошибка сериализации данных карты: %w", err)
	}

	token := uuid.NewString()
	_, err = s.mapRequestRepository.CreateMapRequest(ctx, entities.MapRequest{
		RequestToken:   token,
		UserTelegramID: userTelegramID,
		DealsDataJSON:  string(raw),
		ExpiresAt:      s.now().Add(s.tokenTTL),
	})
	if err != nil {
		return nil, err
	}

	link := &dto.MapLinkDTO{
		Token: token,
		URL:   s.frontendBaseURL + "/map/" + token,
	}
	s.logger.Info("сгенерирована ссылка на карту",
		zap.Int64("user_telegram_id", userTelegramID),
		zap.Int("deals", len(mapDeals)))
	return link, nil
}

// GetMapData возвращает сохраненные данные карты по токену. Просроченный и
// неизвестный токены неразличимы.
func (s *MapService) GetMapData(ctx context.Context, token string) ([]dto.MapDealDTO, error) {
	request, err := s.mapRequestRepository.FindValidByToken(ctx, token, s.now())
	if err != nil {
		return nil, err
	}

	var deals []dto.MapDealDTO
	if err := json.Unmarshal([]byte(request.DealsDataJSON), &deals); err != nil {
		return nil, fmt.Errorf("поврежденные данные карты для записи %d: %w", request.ID, err)
	}
	return deals, nil
}

// CleanupExpired удаляет просроченные запросы на карту.
func (s *MapService) CleanupExpired(ctx context.Context) error {
	deleted, err := s.mapRequestRepository.DeleteExpired(ctx, s.now())
	if err != nil {
		return err
	}
	if deleted > 0 {
		s.logger.Info("удалены просроченные запросы на карту", zap.Int64("deleted", deleted))
	}
	return nil
}

func (s *MapService) buildMapData(ctx context.Context, deals []megaplan.Deal) []dto.MapDealDTO {
	zone := s.crm.LocalZone()
	mapDeals := make([]dto.MapDealDTO, 0, len(deals))

	for _, deal := range deals {
		combinedText := deal.Name + "\n" + deal.Description
		objects := s.cadastralService.GetObjectsForText(ctx, combinedText)

		locations := make([]dto.MapLocationDTO, 0, len(objects))
		for _, object := range objects {
			point, ok := objectCoords(object)
			if !ok {
				continue
			}
			locations = append(locations, dto.MapLocationDTO{
				CadastralNumber: object.CadastralNumber,
				Coords:          point,
			})
		}
		if len(locations) == 0 {
			continue
		}

		executors := make([]string, 0, len(deal.Executors))
		for _, executor := range deal.Executors {
			if executor.Name != "" {
				executors = append(executors, executor.Name)
			}
		}

		mapDeals = append(mapDeals, dto.MapDealDTO{
			DealID:    deal.ID,
			DealURL:   s.crm.DealURL(deal.ID),
			DealName:  deal.Name,
			VisitTime: formatVisitTime(deal.VisitDateTime, zone),
			Executors: executors,
			Locations: locations,
		})
	}
	return mapDeals
}

// objectCoords выбирает координаты объекта: центроид полигона, иначе точку.
func objectCoords(object nspd.CadastralObject) ([2]float64, bool) {
	if object.Centroid != nil {
		return [2]float64(*object.Centroid), true
	}
	if object.Point != nil {
		return [2]float64(*object.Point), true
	}
	return [2]float64{}, false
}

func formatVisitTime(visit *megaplan.DateTimeValue, zone *time.Location) string {
	if visit == nil {
		return "Без времени"
	}
	local := visit.In(zone)
	if local.Hour() == 0 && local.Minute() == 0 {
		return "Весь день"
	}
	return local.Format("15:04")
}
