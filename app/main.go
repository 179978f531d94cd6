// Файл: main.go

package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"

	tgbot "ticket-bot/internal/controllers/telegram"
	"ticket-bot/internal/integrations/megaplan"
	"ticket-bot/internal/integrations/nspd"
	"ticket-bot/internal/repositories"
	"ticket-bot/internal/routes"
	"ticket-bot/internal/services"
	"ticket-bot/pkg/breaker"
	"ticket-bot/pkg/config"
	"ticket-bot/pkg/database/postgresql"
	applogger "ticket-bot/pkg/logger"
	"ticket-bot/pkg/telegram"
)

func main() {
	logger := applogger.NewLogger()
	defer logger.Sync()

	cfg := config.New()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// --- ХРАНИЛИЩА ---
	pool, err := postgresql.ConnectDB(ctx, cfg.Postgres)
	if err != nil {
		logger.Fatal("не удалось подключиться к PostgreSQL", zap.Error(err))
	}
	defer pool.Close()

	if err := postgresql.RunMigrations(pool); err != nil {
		logger.Fatal("не удалось применить миграции", zap.Error(err))
	}

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Address,
		Password: cfg.Redis.Password,
	})
	if err := redisClient.Ping(ctx).Err(); err != nil {
		logger.Fatal("не удалось подключиться к Redis", zap.Error(err))
	}
	defer redisClient.Close()

	// --- РЕПОЗИТОРИИ ---
	cacheRepo := repositories.NewRedisCacheRepository(redisClient)
	userRepo := repositories.NewUserRepository(pool, logger.Named("user-repo"))
	settingsRepo := repositories.NewSettingsRepository(pool, logger.Named("settings-repo"))
	mapRequestRepo := repositories.NewMapRequestRepository(pool, logger.Named("map-repo"))

	// --- ВНЕШНИЕ ИНТЕГРАЦИИ ---
	crmBreaker := breaker.New("megaplan", cfg.Breaker.FailureThreshold, cfg.Breaker.Cooldown, logger.Named("breaker"))
	crm := megaplan.New(cfg.Megaplan, crmBreaker, logger.Named("megaplan"))

	nspdBreaker := breaker.New("nspd", cfg.Breaker.FailureThreshold, cfg.Breaker.Cooldown, logger.Named("breaker"))
	geoportal, err := nspd.New(cfg.Nspd, nspdBreaker, logger.Named("nspd"))
	if err != nil {
		logger.Fatal("не удалось инициализировать клиент геопортала", zap.Error(err))
	}

	tgService := telegram.NewService(cfg.Telegram.BotToken)

	// --- СЕРВИСЫ ---
	userService := services.NewUserService(userRepo, logger.Named("user-service"))
	settingsService := services.NewSettingsService(settingsRepo, logger.Named("settings-service"))
	cadastralService := services.NewCadastralService(geoportal, cacheRepo, cfg.Nspd.CacheTTL, logger.Named("cadastral-service"))
	ticketService := services.NewTicketService(crm, settingsService, cadastralService, tgService, logger.Named("ticket-service"))
	mapService := services.NewMapService(mapRequestRepo, cadastralService, crm, cfg.Map.FrontendBaseURL, cfg.Map.TokenTTL, logger.Named("map-service"))

	// --- HTTP-СЕРВЕР КАРТЫ ---
	e := echo.New()
	e.HideBanner = true
	e.Use(echomiddleware.RecoverWithConfig(echomiddleware.RecoverConfig{
		DisableStackAll: true,
		LogErrorFunc: func(c echo.Context, err error, stack []byte) error {
			logger.Error("паника в HTTP-обработчике",
				zap.String("uri", c.Request().RequestURI),
				zap.Error(err),
				zap.String("stack", string(stack)))
			return err
		},
	}))
	routes.InitRouter(e, mapService, cfg.Map, logger.Named("http"))

	go func() {
		if err := e.Start(cfg.Map.ListenAddr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("HTTP-сервер карты остановился с ошибкой", zap.Error(err))
		}
	}()

	// Просроченные токены карты чистятся раз в час.
	go func() {
		ticker := time.NewTicker(time.Hour)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := mapService.CleanupExpired(ctx); err != nil {
					logger.Error("ошибка очистки запросов карты", zap.Error(err))
				}
			}
		}
	}()

	// --- БОТ ---
	bot := tgbot.NewBotController(
		tgService,
		userService,
		ticketService,
		mapService,
		settingsService,
		cadastralService,
		cacheRepo,
		cfg.Telegram,
		crm.LocalZone(),
		logger.Named("bot"),
	)

	if err := bot.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("бот завершился с ошибкой", zap.Error(err))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error("ошибка остановки HTTP-сервера", zap.Error(err))
	}
	logger.Info("приложение остановлено")
}
