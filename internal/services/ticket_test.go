package services

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/aarondl/null/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"ticket-bot/internal/dto"
	"ticket-bot/internal/entities"
	"ticket-bot/internal/integrations/megaplan"
	"ticket-bot/internal/integrations/nspd"
)

type fakeCrm struct {
	zone  *time.Location
	deals []megaplan.Deal

	createdDraft  *megaplan.DealDraft
	updates       map[string]map[string]interface{}
	uploadCounter int
	attachedMain  map[string][]string
	attachedVisit map[string][]string
	visitResults  map[string]string
}

func newFakeCrm(zone *time.Location) *fakeCrm {
	return &fakeCrm{
		zone:          zone,
		updates:       make(map[string]map[string]interface{}),
		attachedMain:  make(map[string][]string),
		attachedVisit: make(map[string][]string),
		visitResults:  make(map[string]string),
	}
}

func (f *fakeCrm) GetDeals(ctx context.Context, filter megaplan.DealFilter) ([]megaplan.Deal, error) {
	return f.deals, nil
}

func (f *fakeCrm) CreateDeal(ctx context.Context, draft megaplan.DealDraft) (*megaplan.Deal, error) {
	f.createdDraft = &draft
	return &megaplan.Deal{ID: "555", Name: draft.Name}, nil
}

func (f *fakeCrm) UpdateDeal(ctx context.Context, dealID string, fields map[string]interface{}) error {
	f.updates[dealID] = fields
	return nil
}

func (f *fakeCrm) SetVisitResult(ctx context.Context, dealID, result string) error {
	f.visitResults[dealID] = result
	return nil
}

func (f *fakeCrm) UploadFile(ctx context.Context, fileName string, content []byte) (*megaplan.FileInfo, error) {
	f.uploadCounter++
	return &megaplan.FileInfo{ID: "file-" + fileName, Name: fileName}, nil
}

func (f *fakeCrm) AttachMainFiles(ctx context.Context, dealID string, fileIDs []string) error {
	f.attachedMain[dealID] = append(f.attachedMain[dealID], fileIDs...)
	return nil
}

func (f *fakeCrm) AttachVisitDocs(ctx context.Context, dealID string, fileIDs []string) error {
	f.attachedVisit[dealID] = append(f.attachedVisit[dealID], fileIDs...)
	return nil
}

func (f *fakeCrm) DealURL(dealID string) string {
	return "https://crm.example.com/deals/" + dealID + "/card/"
}

func (f *fakeCrm) LocalZone() *time.Location {
	return f.zone
}

type fakeSettingsService struct {
	capacity DayCapacity
}

func (f *fakeSettingsService) GetCapacityForDate(ctx context.Context, date time.Time) (DayCapacity, error) {
	return f.capacity, nil
}

func (f *fakeSettingsService) GetAppSettings(ctx context.Context) (*entities.AppSettings, error) {
	return &entities.AppSettings{
		DefaultDailyLimit:    f.capacity.Limit,
		DefaultBrigadesCount: f.capacity.Brigades,
	}, nil
}

func (f *fakeSettingsService) UpdateDefaultLimit(ctx context.Context, limit int) error    { return nil }
func (f *fakeSettingsService) UpdateDefaultBrigades(ctx context.Context, count int) error { return nil }

func (f *fakeSettingsService) SetOverrideRange(ctx context.Context, start, end time.Time, limit int, brigades *int) (int, error) {
	return 0, nil
}

func (f *fakeSettingsService) DeleteOverrideRange(ctx context.Context, start, end time.Time) (int64, error) {
	return 0, nil
}

type fakeDownloader struct {
	failing map[string]bool
}

func (f *fakeDownloader) DownloadFile(ctx context.Context, fileID string) ([]byte, error) {
	if f.failing[fileID] {
		return nil, errors.New("файл недоступен")
	}
	return []byte("содержимое " + fileID), nil
}

func newTicketServiceForTest(crm *fakeCrm, provider *fakeNspdProvider, downloader *fakeDownloader) TicketServiceInterface {
	cadastral := NewCadastralService(provider, newMemoryCache(), time.Hour, zap.NewNop())
	settings := &fakeSettingsService{capacity: DayCapacity{Limit: 5, Brigades: 2}}
	return NewTicketService(crm, settings, cadastral, downloader, zap.NewNop())
}

func dealAt(id string, visit time.Time) megaplan.Deal {
	return megaplan.Deal{
		ID:            id,
		Name:          "Выезд " + id,
		VisitDateTime: &megaplan.DateTimeValue{Time: visit},
	}
}

func registeredUser() *entities.User {
	return &entities.User{
		TelegramID:     100500,
		MegaplanUserID: null.Int64From(77),
		Permissions:    AdminRolePermissions,
	}
}

func TestGetDayStats_BucketsByLocalDay(t *testing.T) {
	zone := time.FixedZone("local", 2*3600)
	crm := newFakeCrm(zone)
	// 22:30 UTC 1 июня - это уже 00:30 2 июня в локальной зоне.
	crm.deals = []megaplan.Deal{
		dealAt("1", time.Date(2026, 6, 1, 22, 30, 0, 0, time.UTC)),
		dealAt("2", time.Date(2026, 6, 2, 6, 0, 0, 0, time.UTC)),
		{ID: "3", Name: "Без времени"},
	}

	service := newTicketServiceForTest(crm, &fakeNspdProvider{}, &fakeDownloader{})

	start := time.Date(2026, 6, 1, 0, 0, 0, 0, zone)
	end := time.Date(2026, 6, 2, 0, 0, 0, 0, zone)
	stats, err := service.GetDayStats(context.Background(), start, end)
	require.NoError(t, err)
	require.Len(t, stats, 2)

	assert.Equal(t, 0, stats[0].TicketsCount)
	assert.Equal(t, 5, stats[0].Limit)
	assert.Equal(t, 2, stats[0].BrigadesCount)

	assert.Equal(t, 2, stats[1].TicketsCount)
	assert.Equal(t, []string{"00:30", "08:00"}, stats[1].OccupiedSlots)
}

func TestCreateTicket_FullFlow(t *testing.T) {
	const number = "39:03:000000:4646"
	zone := time.FixedZone("local", 2*3600)
	crm := newFakeCrm(zone)
	provider := &fakeNspdProvider{objects: map[string]*nspd.CadastralObject{
		number: sampleObject(number),
	}}
	service := newTicketServiceForTest(crm, provider, &fakeDownloader{})

	visitDate := time.Date(2026, 6, 5, 0, 0, 0, 0, zone)
	created, err := service.CreateTicket(context.Background(), registeredUser(), dto.CreateTicketDTO{
		Description: "Выезд на замер\nУчасток " + number,
		VisitDate:   &visitDate,
		VisitTime:   "14:30",
		AttachedFiles: []dto.AttachedFileDTO{
			{FileID: "tg-1", FileName: "план.pdf"},
		},
	})
	require.NoError(t, err)

	assert.Equal(t, "555", created.DealID)
	assert.Equal(t, "https://crm.example.com/deals/555/card/", created.DealURL)
	assert.Equal(t, 1, created.AttachedCount)

	require.NotNil(t, crm.createdDraft)
	assert.Equal(t, "Выезд на замер", crm.createdDraft.Name)
	assert.Equal(t, int64(77), crm.createdDraft.MegaplanUserID)
	require.NotNil(t, crm.createdDraft.VisitDateTime)
	assert.Equal(t, time.Date(2026, 6, 5, 14, 30, 0, 0, zone).UTC(),
		crm.createdDraft.VisitDateTime.UTC())

	assert.Equal(t, []string{"file-план.pdf"}, crm.attachedMain["555"])

	// Сделка дополнена кадастровыми данными из описания.
	fields, ok := crm.updates["555"]
	require.True(t, ok, "ожидалось обогащение сделки данными геопортала")
	raw, ok := fields[megaplan.FieldServiceData].(string)
	require.True(t, ok)
	var objects []nspd.CadastralObject
	require.NoError(t, json.Unmarshal([]byte(raw), &objects))
	require.Len(t, objects, 1)
	assert.Equal(t, number, objects[0].CadastralNumber)
}

func TestCreateTicket_RequiresCrmBinding(t *testing.T) {
	zone := time.UTC
	service := newTicketServiceForTest(newFakeCrm(zone), &fakeNspdProvider{}, &fakeDownloader{})

	user := &entities.User{TelegramID: 1, Permissions: UserRolePermissions}
	_, err := service.CreateTicket(context.Background(), user, dto.CreateTicketDTO{
		Description: "Заявка без привязки",
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "не привязан")
}

func TestCreateTicket_FileFailureDoesNotAbort(t *testing.T) {
	zone := time.UTC
	crm := newFakeCrm(zone)
	downloader := &fakeDownloader{failing: map[string]bool{"tg-broken": true}}
	service := newTicketServiceForTest(crm, &fakeNspdProvider{}, downloader)

	created, err := service.CreateTicket(context.Background(), registeredUser(), dto.CreateTicketDTO{
		Description: "Заявка с файлами",
		AttachedFiles: []dto.AttachedFileDTO{
			{FileID: "tg-broken", FileName: "битый.jpg"},
			{FileID: "tg-ok", FileName: "целый.jpg"},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, created.AttachedCount)
	assert.Equal(t, []string{"file-целый.jpg"}, crm.attachedMain["555"])
}

func TestAttachVisitFiles(t *testing.T) {
	crm := newFakeCrm(time.UTC)
	service := newTicketServiceForTest(crm, &fakeNspdProvider{}, &fakeDownloader{})

	attached, err := service.AttachVisitFiles(context.Background(), "777", []dto.AttachedFileDTO{
		{FileID: "tg-1", FileName: "акт.pdf"},
		{FileID: "tg-2", FileName: "фото.jpg"},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, attached)
	assert.Equal(t, []string{"file-акт.pdf", "file-фото.jpg"}, crm.attachedVisit["777"])
	assert.Empty(t, crm.attachedMain)
}

func TestAttachVisitFiles_RequiresDealID(t *testing.T) {
	service := newTicketServiceForTest(newFakeCrm(time.UTC), &fakeNspdProvider{}, &fakeDownloader{})
	_, err := service.AttachVisitFiles(context.Background(), "", nil)
	require.Error(t, err)
}

func TestSetVisitResult(t *testing.T) {
	crm := newFakeCrm(time.UTC)
	service := newTicketServiceForTest(crm, &fakeNspdProvider{}, &fakeDownloader{})

	require.NoError(t, service.SetVisitResult(context.Background(), "555", "Замер выполнен, клиент доволен"))
	assert.Equal(t, "Замер выполнен, клиент доволен", crm.visitResults["555"])

	require.Error(t, service.SetVisitResult(context.Background(), "", "текст"))
	require.Error(t, service.SetVisitResult(context.Background(), "555", "   "))
}
