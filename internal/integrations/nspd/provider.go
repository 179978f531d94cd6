package nspd

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"

	"go.uber.org/zap"

	"ticket-bot/pkg/breaker"
	"ticket-bot/pkg/config"
	apperrors "ticket-bot/pkg/errors"
	"ticket-bot/pkg/geo"
)

const (
	searchEndpoint   = "/api/geoportal/v2/search/geoportal"
	tabGroupEndpoint = "/api/geoportal/v1/tab-group-data"

	// Геопортал отклоняет запросы без браузерного User-Agent.
	userAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/110.0.0.0 Safari/537.36"
)

// Provider - клиент геопортала nspd.gov.ru. Возвращает структурированную
// информацию о кадастровых объектах по кадастровому номеру. Сервис
// неаутентифицированный и периодически нестабильный, поэтому все запросы
// защищены circuit breaker.
type Provider struct {
	httpClient *http.Client
	baseURL    string
	breaker    *breaker.Breaker
	logger     *zap.Logger
}

func New(cfg config.NspdConfig, brk *breaker.Breaker, logger *zap.Logger) (*Provider, error) {
	transport := &http.Transport{
		// У геопортала проблемная цепочка сертификатов.
		TLSClientConfig: &tls.Config{InsecureSkipVerify: true},
	}
	if cfg.Proxy != "" {
		// Формат: user:password@host:port
		proxyURL, err := url.Parse("http://" + cfg.Proxy)
		if err != nil {
			return nil, fmt.Errorf("неверный формат NSPD_PROXY: %w", err)
		}
		transport.Proxy = http.ProxyURL(proxyURL)
		logger.Info("для запросов к геопорталу используется прокси")
	}

	return &Provider{
		httpClient: &http.Client{Timeout: cfg.RequestTimeout, Transport: transport},
		baseURL:    cfg.BaseURL,
		breaker:    brk,
		logger:     logger.Named("nspd_provider"),
	}, nil
}

// Name - имя провайдера для логов и метрик.
func (p *Provider) Name() string {
	return "nspd"
}

// GetObjectInfo ищет кадастровый объект по номеру и возвращает его
// нормализованное описание: характеристики, геометрию в WGS 84 в заданном
// порядке координат, центроид для полигонов и связанные кадастровые номера.
//
// Возвращает apperrors.ErrCircuitOpen при разомкнутой цепи (без обращения к
// сети), apperrors.ErrObjectNotFound если объект не найден, либо ошибку
// сети/разбора. Сетевые и парсинговые сбои учитываются circuit breaker.
func (p *Provider) GetObjectInfo(ctx context.Context, cadastralNumber string, order geo.Order) (*CadastralObject, error) {
	if err := p.breaker.Allow(); err != nil {
		p.logger.Warn("поиск отклонен circuit breaker",
			zap.String("cadastral_number", cadastralNumber))
		return nil, err
	}

	p.logger.Debug("поиск кадастрового объекта", zap.String("cadastral_number", cadastralNumber))

	query := url.Values{}
	query.Set("thematicSearchId", "1")
	query.Set("query", cadastralNumber)

	var search searchResponse
	if err := p.getJSON(ctx, searchEndpoint+"?"+query.Encode(), &search); err != nil {
		p.breaker.Failure()
		p.logger.Error("ошибка поиска кадастрового объекта",
			zap.String("cadastral_number", cadastralNumber),
			zap.Error(err))
		return nil, err
	}
	p.breaker.Success()

	if len(search.Data.Features) == 0 {
		p.logger.Info("объект не найден", zap.String("cadastral_number", cadastralNumber))
		return nil, apperrors.ErrObjectNotFound
	}

	found := search.Data.Features[0]
	options := found.Properties.Options

	object := &CadastralObject{
		CadastralNumber: options.cadastralNumber(),
		CategoryName:    found.Properties.CategoryName,
		Address:         options.address(),
		AreaSqM:         options.area(),
		ExtensionM:      options.extension(),
	}
	if object.CadastralNumber == "" {
		object.CadastralNumber = cadastralNumber
	}

	if err := p.normalizeGeometry(object, found.Geometry, order); err != nil {
		// Неразбираемая геометрия - сбой данных, а не сети: объект
		// возвращается без нормализованных координат.
		p.logger.Warn("геометрия объекта не разобрана",
			zap.String("cadastral_number", cadastralNumber),
			zap.Error(err))
	}

	// Связанные объекты - best-effort: сбой этого запроса никогда не
	// проваливает основной поиск.
	if found.ID != 0 && found.Properties.Category != 0 {
		object.RelatedCadastralNumbers = p.getRelatedObjects(ctx, found.ID, found.Properties.Category)
	}

	return object, nil
}

// normalizeGeometry репроецирует геометрию объекта из EPSG:3857 в WGS 84.
// Типы кроме Point и Polygon пропускаются без преобразования: исходная
// геометрия сохраняется, нормализованные поля остаются пустыми.
func (p *Provider) normalizeGeometry(object *CadastralObject, geometry *featureGeometry, order geo.Order) error {
	if geometry == nil || len(geometry.Coordinates) == 0 {
		return nil
	}

	object.GeometryType = geometry.Type
	original, err := json.Marshal(geometry)
	if err == nil {
		object.OriginalGeometry = original
	}

	switch geometry.Type {
	case "Point":
		var raw [2]float64
		if err := json.Unmarshal(geometry.Coordinates, &raw); err != nil {
			return fmt.Errorf("координаты точки не разобраны: %w", err)
		}
		point := geo.ReorderPoint(geo.TransformPoint(raw[0], raw[1]), order)
		object.Point = &point
	case "Polygon":
		var raw [][][2]float64
		if err := json.Unmarshal(geometry.Coordinates, &raw); err != nil {
			return fmt.Errorf("координаты полигона не разобраны: %w", err)
		}
		rings := geo.TransformRings(raw)
		if centroid, ok := geo.Centroid(rings); ok {
			reordered := geo.ReorderPoint(centroid, order)
			object.Centroid = &reordered
		}
		object.Rings = geo.ReorderRings(rings, order)
	}

	return nil
}

// getRelatedObjects запрашивает кадастровые номера связанных объектов
// (например, зданий на участке). Любая ошибка проглатывается: результат
// просто остается пустым.
func (p *Provider) getRelatedObjects(ctx context.Context, geomID, categoryID int64) []string {
	query := url.Values{}
	query.Set("tabClass", "objectsList")
	query.Set("categoryId", strconv.FormatInt(categoryID, 10))
	query.Set("geomId", strconv.FormatInt(geomID, 10))

	var tab tabGroupResponse
	if err := p.getJSON(ctx, tabGroupEndpoint+"?"+query.Encode(), &tab); err != nil {
		p.logger.Warn("не удалось получить связанные объекты", zap.Error(err))
		return nil
	}

	var related []string
	for _, item := range tab.Object {
		related = append(related, item.Value...)
	}
	if len(related) > 0 {
		p.logger.Debug("найдены связанные объекты", zap.Strings("cadastral_numbers", related))
	}
	return related
}

func (p *Provider) getJSON(ctx context.Context, endpoint string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+endpoint, nil)
	if err != nil {
		return fmt.Errorf("ошибка создания запроса к геопорталу: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/json, text/plain, */*")
	req.Header.Set("Referer", p.baseURL+"/map")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("ошибка запроса к геопорталу: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return apperrors.NewApiError(resp.StatusCode, string(body))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: %v", apperrors.ErrUnexpectedResponse, err)
	}
	return nil
}
