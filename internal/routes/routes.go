package routes

import (
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"

	"ticket-bot/internal/controllers"
	"ticket-bot/internal/services"
	"ticket-bot/pkg/config"
)

// InitRouter настраивает HTTP-маршруты карты выездов. CORS открыт только для
// фронтенда карты: других потребителей у API нет.
func InitRouter(e *echo.Echo, mapService services.MapServiceInterface, cfg config.MapConfig, logger *zap.Logger) {
	logger.Info("InitRouter: регистрация маршрутов карты")

	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{cfg.FrontendBaseURL},
		AllowMethods: []string{echo.GET, echo.OPTIONS},
	}))

	mapController := controllers.NewMapController(mapService, logger)

	e.GET("/health", mapController.Health)

	api := e.Group("/api/v1")
	api.GET("/map-data/:token", mapController.GetMapData)
}
