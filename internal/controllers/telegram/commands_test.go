// internal/controllers/telegram/commands_test.go
package telegram

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ticket-bot/internal/dto"
	tgapi "ticket-bot/pkg/telegram"
)

func testToday() time.Time {
	zone := time.FixedZone("local", 2*3600)
	return time.Date(2026, 6, 15, 0, 0, 0, 0, zone)
}

func TestParseUserDate_FullFormat(t *testing.T) {
	today := testToday()

	date, err := parseUserDate("25.12.2026", today)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 12, 25, 0, 0, 0, 0, today.Location()), date)
}

func TestParseUserDate_DayAndMonth(t *testing.T) {
	today := testToday()

	// Будущая дата в текущем году.
	date, err := parseUserDate("20.07", today)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 7, 20, 0, 0, 0, 0, today.Location()), date)

	// Прошедшая в этом году дата уходит на следующий год.
	date, err = parseUserDate("01.02", today)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2027, 2, 1, 0, 0, 0, 0, today.Location()), date)
}

func TestParseUserDate_DayOnly(t *testing.T) {
	today := testToday()

	// 20-е еще впереди в текущем месяце.
	date, err := parseUserDate("20", today)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 6, 20, 0, 0, 0, 0, today.Location()), date)

	// 10-е уже прошло - следующий месяц.
	date, err = parseUserDate("10", today)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 7, 10, 0, 0, 0, 0, today.Location()), date)

	// Сегодняшний день остается сегодняшним.
	date, err = parseUserDate("15", today)
	require.NoError(t, err)
	assert.Equal(t, today, date)
}

func TestParseUserDate_Invalid(t *testing.T) {
	today := testToday()

	for _, input := range []string{"", "завтра", "32", "12.13", "2026-06-15"} {
		_, err := parseUserDate(input, today)
		assert.Error(t, err, "ожидалась ошибка для %q", input)
	}
}

func TestParseDateRange(t *testing.T) {
	today := testToday()

	start, end, err := parseDateRange("20.06.2026", today)
	require.NoError(t, err)
	assert.Equal(t, start, end)

	start, end, err = parseDateRange("20.06.2026-25.06.2026", today)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 6, 20, 0, 0, 0, 0, today.Location()), start)
	assert.Equal(t, time.Date(2026, 6, 25, 0, 0, 0, 0, today.Location()), end)

	_, _, err = parseDateRange("25.06.2026-20.06.2026", today)
	assert.Error(t, err, "конец раньше начала")
}

func TestExtractAttachment(t *testing.T) {
	document := &tgapi.Message{
		MessageID: 10,
		Document:  &tgapi.Document{FileID: "doc-1", FileName: "акт.pdf", FileSize: 1024},
	}
	file, ok := extractAttachment(document)
	require.True(t, ok)
	assert.Equal(t, dto.AttachedFileDTO{FileID: "doc-1", FileName: "акт.pdf"}, file)

	// Из фото берется самый крупный размер.
	photo := &tgapi.Message{
		MessageID: 11,
		Photo: []tgapi.PhotoSize{
			{FileID: "small", FileSize: 100},
			{FileID: "big", FileSize: 9000},
			{FileID: "medium", FileSize: 500},
		},
	}
	file, ok = extractAttachment(photo)
	require.True(t, ok)
	assert.Equal(t, "big", file.FileID)

	text := &tgapi.Message{MessageID: 12, Text: "просто текст"}
	_, ok = extractAttachment(text)
	assert.False(t, ok)
}

func TestExtractAttachment_OversizedFile(t *testing.T) {
	oversized := &tgapi.Message{
		MessageID: 13,
		Document:  &tgapi.Document{FileID: "doc-2", FileName: "видео.zip", FileSize: maxAttachmentSize + 1},
	}
	file, ok := extractAttachment(oversized)
	require.True(t, ok)
	assert.Empty(t, file.FileID, "пустой FileID означает превышение лимита размера")
	assert.Equal(t, "видео.zip", file.FileName)
}

func TestDayLoadEmoji(t *testing.T) {
	assert.Equal(t, "✅", dayLoadEmoji(dto.DayStatsDTO{TicketsCount: 1, Limit: 10}))
	assert.Equal(t, "⚠️", dayLoadEmoji(dto.DayStatsDTO{TicketsCount: 5, Limit: 10}))
	assert.Equal(t, "⛔", dayLoadEmoji(dto.DayStatsDTO{TicketsCount: 10, Limit: 10}))
}

func TestRolePermissionsByAlias(t *testing.T) {
	for _, role := range []string{"USER", "MANAGER", "ADMIN"} {
		permissions, ok := rolePermissionsByAlias(role)
		require.True(t, ok, role)
		assert.NotEmpty(t, permissions)
	}

	_, ok := rolePermissionsByAlias("SUPERVISOR")
	assert.False(t, ok)
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "короткое", truncate("короткое", 40))
	assert.Equal(t, "длин…", truncate("длинное название", 6))
}
