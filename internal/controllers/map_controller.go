package controllers

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"ticket-bot/internal/services"
	"ticket-bot/pkg/api"
	apperrors "ticket-bot/pkg/errors"
)

// MapController отдает данные для веб-карты выездов. Доступ защищен только
// одноразовым токеном из ссылки бота: токен живет сутки и не угадывается.
type MapController struct {
	mapService services.MapServiceInterface
	logger     *zap.Logger
}

func NewMapController(mapService services.MapServiceInterface, logger *zap.Logger) *MapController {
	return &MapController{mapService: mapService, logger: logger}
}

func (c *MapController) GetMapData(ctx echo.Context) error {
	reqCtx := ctx.Request().Context()

	token := ctx.Param("token")
	if token == "" {
		return api.ErrorResponse(ctx, apperrors.ErrBadRequest)
	}

	deals, err := c.mapService.GetMapData(reqCtx, token)
	if err != nil {
		c.logger.Warn("данные карты не выданы",
			zap.String("token", token), zap.Error(err))
		return api.ErrorResponse(ctx, err)
	}

	return api.SuccessOne(ctx, http.StatusOK, "Данные карты получены", deals)
}

func (c *MapController) Health(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, map[string]string{"status": "ok"})
}
