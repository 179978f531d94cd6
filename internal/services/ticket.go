package services

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"ticket-bot/internal/dto"
	"ticket-bot/internal/entities"
	"ticket-bot/internal/integrations/megaplan"
	apperrors "ticket-bot/pkg/errors"
)

// CrmProviderInterface - операции CRM, нужные бизнес-слою.
type CrmProviderInterface interface {
	GetDeals(ctx context.Context, filter megaplan.DealFilter) ([]megaplan.Deal, error)
	CreateDeal(ctx context.Context, draft megaplan.DealDraft) (*megaplan.Deal, error)
	UpdateDeal(ctx context.Context, dealID string, fields map[string]interface{}) error
	SetVisitResult(ctx context.Context, dealID, result string) error
	UploadFile(ctx context.Context, fileName string, content []byte) (*megaplan.FileInfo, error)
	AttachMainFiles(ctx context.Context, dealID string, fileIDs []string) error
	AttachVisitDocs(ctx context.Context, dealID string, fileIDs []string) error
	DealURL(dealID string) string
	LocalZone() *time.Location
}

// FileDownloader - загрузка содержимого файла, полученного ботом.
type FileDownloader interface {
	DownloadFile(ctx context.Context, fileID string) ([]byte, error)
}

type TicketServiceInterface interface {
	GetDayStats(ctx context.Context, start, end time.Time) ([]dto.DayStatsDTO, error)
	GetDealsForRange(ctx context.Context, start, end time.Time) ([]megaplan.Deal, error)
	CreateTicket(ctx context.Context, user *entities.User, ticket dto.CreateTicketDTO) (*dto.CreatedTicketDTO, error)
	AttachVisitFiles(ctx context.Context, dealID string, files []dto.AttachedFileDTO) (int, error)
	SetVisitResult(ctx context.Context, dealID, result string) error
	DealURL(dealID string) string
}

// TicketService - создание заявок и статистика загруженности дней.
type TicketService struct {
	crm              CrmProviderInterface
	settingsService  SettingsServiceInterface
	cadastralService CadastralServiceInterface
	downloader       FileDownloader
	validate         *validator.Validate
	logger           *zap.Logger
}

func NewTicketService(
	crm CrmProviderInterface,
	settingsService SettingsServiceInterface,
	cadastralService CadastralServiceInterface,
	downloader FileDownloader,
	logger *zap.Logger,
) TicketServiceInterface {
	return &TicketService{
		crm:              crm,
		settingsService:  settingsService,
		cadastralService: cadastralService,
		downloader:       downloader,
		validate:         validator.New(),
		logger:           logger,
	}
}

func (s *TicketService) GetDealsForRange(ctx context.Context, start, end time.Time) ([]megaplan.Deal, error) {
	return s.crm.GetDeals(ctx, megaplan.DealFilter{
		VisitDateFrom: &start,
		VisitDateTo:   &end,
		Limit:         200,
	})
}

// GetDayStats собирает загруженность каждого дня диапазона: число заявок,
// занятые слоты времени и действующие лимиты. Сделки запрашиваются одним
// вызовом CRM и раскладываются по датам в локальной таймзоне.
func (s *TicketService) GetDayStats(ctx context.Context, start, end time.Time) ([]dto.DayStatsDTO, error) {
	deals, err := s.GetDealsForRange(ctx, start, end)
	if err != nil {
		return nil, err
	}

	zone := s.crm.LocalZone()
	countByDay := make(map[string]int)
	slotsByDay := make(map[string][]string)
	for _, deal := range deals {
		if deal.VisitDateTime == nil {
			continue
		}
		local := deal.VisitDateTime.In(zone)
		key := local.Format("2006-01-02")
		countByDay[key]++
		slotsByDay[key] = append(slotsByDay[key], local.Format("15:04"))
	}

	stats := make([]dto.DayStatsDTO, 0)
	for date := start; !date.After(end); date = date.AddDate(0, 0, 1) {
		capacity, err := s.settingsService.GetCapacityForDate(ctx, date)
		if err != nil {
			return nil, err
		}
		key := date.Format("2006-01-02")
		stats = append(stats, dto.DayStatsDTO{
			Date:          date,
			TicketsCount:  countByDay[key],
			Limit:         capacity.Limit,
			BrigadesCount: capacity.Brigades,
			OccupiedSlots: slotsByDay[key],
		})
	}
	return stats, nil
}

// CreateTicket создает сделку в CRM от имени пользователя: первая строка
// описания становится названием, прикрепленные в Telegram файлы выгружаются
// в CRM, после чего сделка дополняется кадастровыми данными из текста.
// Сбой загрузки отдельного файла или кадастрового обогащения не отменяет
// уже созданную заявку.
func (s *TicketService) CreateTicket(ctx context.Context, user *entities.User, ticket dto.CreateTicketDTO) (*dto.CreatedTicketDTO, error) {
	if err := s.validate.Struct(&ticket); err != nil {
		return nil, apperrors.NewInvalidInputError("некорректные данные заявки: " + err.Error())
	}
	if user == nil || !user.MegaplanUserID.Valid {
		return nil, apperrors.NewInvalidInputError("профиль пользователя не привязан к сотруднику CRM")
	}

	draft := megaplan.DealDraft{
		Name:           firstLine(ticket.Description),
		Description:    ticket.Description,
		MegaplanUserID: user.MegaplanUserID.Int64,
	}
	if ticket.HasVisit() {
		visitDateTime, err := combineVisitDateTime(*ticket.VisitDate, ticket.VisitTime, s.crm.LocalZone())
		if err != nil {
			return nil, err
		}
		draft.VisitDateTime = &visitDateTime
	}

	created, err := s.crm.CreateDeal(ctx, draft)
	if err != nil {
		return nil, err
	}

	attached := 0
	if len(ticket.AttachedFiles) > 0 {
		attached = s.uploadAndAttach(ctx, created.ID, ticket.AttachedFiles, s.crm.AttachMainFiles)
	}

	s.enrichServiceData(ctx, created.ID, ticket.Description)

	return &dto.CreatedTicketDTO{
		DealID:        created.ID,
		DealURL:       s.crm.DealURL(created.ID),
		AttachedCount: attached,
	}, nil
}

// AttachVisitFiles прикрепляет файлы с выезда (фото, акты) к полю
// "Документы и фото с выезда". Возвращает число успешно прикрепленных.
func (s *TicketService) AttachVisitFiles(ctx context.Context, dealID string, files []dto.AttachedFileDTO) (int, error) {
	if dealID == "" {
		return 0, apperrors.NewInvalidInputError("не указан id сделки")
	}
	if len(files) == 0 {
		return 0, nil
	}
	return s.uploadAndAttach(ctx, dealID, files, s.crm.AttachVisitDocs), nil
}

// SetVisitResult записывает текстовый результат выезда в сделку.
func (s *TicketService) SetVisitResult(ctx context.Context, dealID, result string) error {
	if dealID == "" {
		return apperrors.NewInvalidInputError("не указан id сделки")
	}
	if strings.TrimSpace(result) == "" {
		return apperrors.NewInvalidInputError("пустой результат выезда")
	}
	return s.crm.SetVisitResult(ctx, dealID, result)
}

// uploadAndAttach скачивает файлы из Telegram, выгружает их в CRM и
// прикрепляет к сделке переданной операцией. Сбой одного файла логируется
// и не мешает остальным.
func (s *TicketService) uploadAndAttach(
	ctx context.Context,
	dealID string,
	files []dto.AttachedFileDTO,
	attach func(ctx context.Context, dealID string, fileIDs []string) error,
) int {
	fileIDs := make([]string, 0, len(files))
	for _, file := range files {
		content, err := s.downloader.DownloadFile(ctx, file.FileID)
		if err != nil {
			s.logger.Error("не удалось скачать файл из Telegram",
				zap.String("deal_id", dealID),
				zap.String("file_name", file.FileName),
				zap.Error(err))
			continue
		}

		uploaded, err := s.crm.UploadFile(ctx, file.FileName, content)
		if err != nil {
			s.logger.Error("не удалось выгрузить файл в CRM",
				zap.String("deal_id", dealID),
				zap.String("file_name", file.FileName),
				zap.Error(err))
			continue
		}
		fileIDs = append(fileIDs, uploaded.ID)
	}

	if len(fileIDs) == 0 {
		return 0
	}
	if err := attach(ctx, dealID, fileIDs); err != nil {
		s.logger.Error("не удалось прикрепить файлы к сделке",
			zap.String("deal_id", dealID), zap.Error(err))
		return 0
	}
	return len(fileIDs)
}

// enrichServiceData дополняет сделку данными геопортала по кадастровым
// номерам из описания. Ошибки не всплывают: заявка уже создана.
func (s *TicketService) enrichServiceData(ctx context.Context, dealID, description string) {
	objects := s.cadastralService.GetObjectsForText(ctx, description)
	if len(objects) == 0 {
		return
	}

	raw, err := json.Marshal(objects)
	if err != nil {
		s.logger.Error("не удалось сериализовать кадастровые данные", zap.Error(err))
		return
	}

	if err := s.crm.UpdateDeal(ctx, dealID, map[string]interface{}{
		megaplan.FieldServiceData: string(raw),
	}); err != nil {
		s.logger.Error("не удалось записать кадастровые данные в сделку",
			zap.String("deal_id", dealID), zap.Error(err))
		return
	}
	s.logger.Info("сделка дополнена кадастровыми данными",
		zap.String("deal_id", dealID), zap.Int("objects", len(objects)))
}

// DealURL - ссылка на карточку сделки в веб-интерфейсе CRM.
func (s *TicketService) DealURL(dealID string) string {
	return s.crm.DealURL(dealID)
}

func firstLine(text string) string {
	line, _, _ := strings.Cut(text, "\n")
	return strings.TrimSpace(line)
}

// combineVisitDateTime собирает момент выезда из даты и времени ЧЧ:ММ в
// локальной таймзоне пользователей.
func combineVisitDateTime(date time.Time, timeOfDay string, zone *time.Location) (time.Time, error) {
	parsed, err := time.Parse("15:04", timeOfDay)
	if err != nil {
		return time.Time{}, apperrors.NewInvalidInputError("некорректное время выезда: " + timeOfDay)
	}
	return time.Date(
		date.Year(), date.Month(), date.Day(),
		parsed.Hour(), parsed.Minute(), 0, 0, zone,
	), nil
}
