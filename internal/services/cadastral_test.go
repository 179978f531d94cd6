package services

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"ticket-bot/internal/integrations/nspd"
	"ticket-bot/pkg/constants"
	"ticket-bot/pkg/geo"
)

type fakeNspdProvider struct {
	objects map[string]*nspd.CadastralObject
	calls   int
}

func (f *fakeNspdProvider) GetObjectInfo(ctx context.Context, cadastralNumber string, order geo.Order) (*nspd.CadastralObject, error) {
	f.calls++
	object, ok := f.objects[cadastralNumber]
	if !ok {
		return nil, errors.New("объект не найден")
	}
	return object, nil
}

type memoryCache struct {
	data map[string]string
}

func newMemoryCache() *memoryCache {
	return &memoryCache{data: make(map[string]string)}
}

func (m *memoryCache) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	m.data[key] = fmt.Sprint(value)
	return nil
}

func (m *memoryCache) Get(ctx context.Context, key string) (string, error) {
	value, ok := m.data[key]
	if !ok {
		return "", errors.New("ключ не найден")
	}
	return value, nil
}

func (m *memoryCache) Del(ctx context.Context, keys ...string) error {
	for _, key := range keys {
		delete(m.data, key)
	}
	return nil
}

func sampleObject(number string) *nspd.CadastralObject {
	point := geo.Point{20.45, 54.71}
	return &nspd.CadastralObject{
		CadastralNumber: number,
		Point:           &point,
	}
}

func TestExtractNumbers(t *testing.T) {
	provider := &fakeNspdProvider{}
	service := NewCadastralService(provider, newMemoryCache(), time.Hour, zap.NewNop())

	text := "Выезд по участкам 39:03:000000:4646 и 39:01:010203:15,\n" +
		"повторно 39:03:000000:4646. Не номер: 12:34:56."
	numbers := service.ExtractNumbers(text)

	assert.Equal(t, []string{"39:01:010203:15", "39:03:000000:4646"}, numbers)
}

func TestExtractNumbers_NoMatches(t *testing.T) {
	service := NewCadastralService(&fakeNspdProvider{}, newMemoryCache(), time.Hour, zap.NewNop())
	assert.Nil(t, service.ExtractNumbers("обычный текст без номеров"))
}

func TestGetObject_CachesResult(t *testing.T) {
	const number = "39:03:000000:4646"
	provider := &fakeNspdProvider{objects: map[string]*nspd.CadastralObject{
		number: sampleObject(number),
	}}
	cache := newMemoryCache()
	service := NewCadastralService(provider, cache, time.Hour, zap.NewNop())

	first, err := service.GetObject(context.Background(), number)
	require.NoError(t, err)
	assert.Equal(t, number, first.CadastralNumber)

	second, err := service.GetObject(context.Background(), number)
	require.NoError(t, err)
	assert.Equal(t, first.CadastralNumber, second.CadastralNumber)

	assert.Equal(t, 1, provider.calls, "повторный запрос должен обслуживаться из кеша")
	assert.Contains(t, cache.data, fmt.Sprintf(constants.CacheKeyNspdObject, number))
}

func TestGetObject_CorruptCacheRefetches(t *testing.T) {
	const number = "39:03:000000:4646"
	provider := &fakeNspdProvider{objects: map[string]*nspd.CadastralObject{
		number: sampleObject(number),
	}}
	cache := newMemoryCache()
	cache.data[fmt.Sprintf(constants.CacheKeyNspdObject, number)] = "{оборванный json"

	service := NewCadastralService(provider, cache, time.Hour, zap.NewNop())

	object, err := service.GetObject(context.Background(), number)
	require.NoError(t, err)
	assert.Equal(t, number, object.CadastralNumber)
	assert.Equal(t, 1, provider.calls)
}

func TestGetObjectsForText_SkipsFailedNumbers(t *testing.T) {
	provider := &fakeNspdProvider{objects: map[string]*nspd.CadastralObject{
		"39:03:000000:4646": sampleObject("39:03:000000:4646"),
		// 39:01:010203:15 отсутствует - геопортал о нем не знает.
	}}
	service := NewCadastralService(provider, newMemoryCache(), time.Hour, zap.NewNop())

	objects := service.GetObjectsForText(context.Background(),
		"участки 39:01:010203:15 и 39:03:000000:4646")

	require.Len(t, objects, 1)
	assert.Equal(t, "39:03:000000:4646", objects[0].CadastralNumber)
}
