package megaplan

import (
	"net/http"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"ticket-bot/pkg/breaker"
	"ticket-bot/pkg/config"
)

// Provider - фасад для работы с API Мегаплана.
// Создается один раз при старте приложения и передается зависимостям явно.
type Provider struct {
	httpClient *http.Client
	baseURL    string
	login      string
	password   string
	programID  int64
	logger     *zap.Logger
	breaker    *breaker.Breaker
	validate   *validator.Validate

	// Локальная таймзона пользователей для нормализации дат выезда.
	localZone *time.Location

	// Кэширование токена доступа
	token       string
	tokenExpiry time.Time
	tokenBuffer time.Duration
	tokenMutex  sync.RWMutex

	now func() time.Time
}

func New(cfg config.MegaplanConfig, brk *breaker.Breaker, logger *zap.Logger) *Provider {
	return &Provider{
		httpClient:  &http.Client{Timeout: cfg.RequestTimeout},
		baseURL:     cfg.BaseURL,
		login:       cfg.Login,
		password:    cfg.Password,
		programID:   cfg.ProgramID,
		logger:      logger.Named("megaplan_provider"),
		breaker:     brk,
		validate:    validator.New(),
		localZone:   time.FixedZone("user_local", int(cfg.LocalTZOffset.Seconds())),
		tokenBuffer: cfg.TokenBuffer,
		now:         time.Now,
	}
}

// Name - имя провайдера для логов и метрик.
func (p *Provider) Name() string {
	return "megaplan"
}

// LocalZone возвращает таймзону, в которой интерпретируется ввод пользователя
// (даты выезда без явного смещения).
func (p *Provider) LocalZone() *time.Location {
	return p.localZone
}

// DealURL - ссылка на карточку сделки в веб-интерфейсе CRM.
func (p *Provider) DealURL(dealID string) string {
	return p.baseURL + "/deals/" + dealID + "/card/"
}
