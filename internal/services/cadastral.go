package services

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"sort"
	"time"

	"go.uber.org/zap"

	"ticket-bot/internal/integrations/nspd"
	"ticket-bot/internal/repositories"
	"ticket-bot/pkg/constants"
	"ticket-bot/pkg/geo"
)

// Формат кадастрового номера: АА:ВВ:CCCCCCC:КК (блок участка 6-7 цифр,
// номер объекта 1-5 цифр).
var cadastralNumberPattern = regexp.MustCompile(`\b\d{2}:\d{2}:\d{6,7}:\d{1,5}\b`)

// NspdProviderInterface - клиент геопортала, который умеет отдавать описание
// объекта по кадастровому номеру.
type NspdProviderInterface interface {
	GetObjectInfo(ctx context.Context, cadastralNumber string, order geo.Order) (*nspd.CadastralObject, error)
}

type CadastralServiceInterface interface {
	ExtractNumbers(text string) []string
	GetObjectsForText(ctx context.Context, text string) []nspd.CadastralObject
	GetObject(ctx context.Context, cadastralNumber string) (*nspd.CadastralObject, error)
}

// CadastralService извлекает кадастровые номера из произвольного текста и
// обогащает их данными геопортала. Ответы кешируются в Redis: геопортал
// нестабилен, а кадастровые характеристики меняются редко.
type CadastralService struct {
	nspdProvider NspdProviderInterface
	cache        repositories.CacheRepositoryInterface
	cacheTTL     time.Duration
	logger       *zap.Logger
}

func NewCadastralService(
	nspdProvider NspdProviderInterface,
	cache repositories.CacheRepositoryInterface,
	cacheTTL time.Duration,
	logger *zap.Logger,
) CadastralServiceInterface {
	return &CadastralService{
		nspdProvider: nspdProvider,
		cache:        cache,
		cacheTTL:     cacheTTL,
		logger:       logger,
	}
}

// ExtractNumbers возвращает уникальные кадастровые номера из текста в
// стабильном порядке.
func (s *CadastralService) ExtractNumbers(text string) []string {
	found := cadastralNumberPattern.FindAllString(text, -1)
	if len(found) == 0 {
		return nil
	}

	seen := make(map[string]struct{}, len(found))
	unique := make([]string, 0, len(found))
	for _, number := range found {
		if _, ok := seen[number]; ok {
			continue
		}
		seen[number] = struct{}{}
		unique = append(unique, number)
	}
	sort.Strings(unique)
	return unique
}

// GetObjectsForText извлекает номера из текста и запрашивает данные по
// каждому. Ошибки отдельных номеров не прерывают обработку остальных:
// возвращаются только успешно полученные объекты.
func (s *CadastralService) GetObjectsForText(ctx context.Context, text string) []nspd.CadastralObject {
	numbers := s.ExtractNumbers(text)
	if len(numbers) == 0 {
		return nil
	}

	s.logger.Info("найдены кадастровые номера для обработки", zap.Strings("numbers", numbers))

	objects := make([]nspd.CadastralObject, 0, len(numbers))
	for _, number := range numbers {
		object, err := s.GetObject(ctx, number)
		if err != nil {
			s.logger.Warn("не удалось получить данные по кадастровому номеру",
				zap.String("cadastral_number", number), zap.Error(err))
			continue
		}
		objects = append(objects, *object)
	}
	return objects
}

// GetObject возвращает описание объекта, используя Redis-кеш поверх
// геопортала. Ошибки кеша не фатальны: запрос уходит напрямую.
func (s *CadastralService) GetObject(ctx context.Context, cadastralNumber string) (*nspd.CadastralObject, error) {
	cacheKey := fmt.Sprintf(constants.CacheKeyNspdObject, cadastralNumber)

	if cached, err := s.cache.Get(ctx, cacheKey); err == nil && cached != "" {
		var object nspd.CadastralObject
		if err := json.Unmarshal([]byte(cached), &object); err == nil {
			return &object, nil
		}
		s.logger.Warn("поврежденная запись в кеше, будет перезаписана",
			zap.String("key", cacheKey))
	}

	object, err := s.nspdProvider.GetObjectInfo(ctx, cadastralNumber, geo.OrderLonLat)
	if err != nil {
		return nil, err
	}

	if raw, err := json.Marshal(object); err == nil {
		if err := s.cache.Set(ctx, cacheKey, string(raw), s.cacheTTL); err != nil {
			s.logger.Warn("не удалось сохранить объект в кеш", zap.Error(err))
		}
	}
	return object, nil
}
