package breaker

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	apperrors "ticket-bot/pkg/errors"
)

func newTestBreaker(t *testing.T, threshold int, cooldown time.Duration) (*Breaker, *time.Time) {
	t.Helper()
	current := time.Date(2024, 5, 27, 12, 0, 0, 0, time.UTC)
	b := New("test_breaker", threshold, cooldown, zap.NewNop())
	b.SetNow(func() time.Time { return current })
	return b, &current
}

func TestBreaker_OpensAfterThreshold(t *testing.T) {
	b, _ := newTestBreaker(t, 2, 5*time.Minute)

	require.NoError(t, b.Allow())
	b.Failure()
	assert.Equal(t, StateClosed, b.State(), "одна ошибка ниже порога не размыкает цепь")

	require.NoError(t, b.Allow())
	b.Failure()
	assert.Equal(t, StateOpen, b.State(), "вторая последовательная ошибка должна разомкнуть цепь")

	err := b.Allow()
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.ErrCircuitOpen))
}

func TestBreaker_SuccessResetsFailureCount(t *testing.T) {
	b, _ := newTestBreaker(t, 2, 5*time.Minute)

	b.Failure()
	b.Success()
	b.Failure()
	assert.Equal(t, StateClosed, b.State(), "после успеха счетчик должен сброситься")

	b.Failure()
	assert.Equal(t, StateOpen, b.State())
}

func TestBreaker_RecoversAfterCooldown(t *testing.T) {
	b, current := newTestBreaker(t, 2, 5*time.Minute)

	b.Failure()
	b.Failure()
	require.Equal(t, StateOpen, b.State())

	// До истечения cooldown запросы отклоняются без обращения к сети.
	*current = current.Add(4 * time.Minute)
	assert.ErrorIs(t, b.Allow(), apperrors.ErrCircuitOpen)

	// После cooldown пропускается один пробный запрос.
	*current = current.Add(2 * time.Minute)
	require.NoError(t, b.Allow())
	assert.Equal(t, StateHalfOpen, b.State())

	b.Success()
	assert.Equal(t, StateClosed, b.State())

	// Счетчик сброшен: для повторного размыкания нужны снова две ошибки.
	b.Failure()
	assert.Equal(t, StateClosed, b.State())
	b.Failure()
	assert.Equal(t, StateOpen, b.State())
}

func TestBreaker_HalfOpenSingleProbe(t *testing.T) {
	b, current := newTestBreaker(t, 1, time.Minute)

	b.Failure()
	require.Equal(t, StateOpen, b.State())

	*current = current.Add(2 * time.Minute)
	require.NoError(t, b.Allow(), "первый вызов после cooldown становится пробным")

	// Пока пробный запрос не завершен, остальные вызовы отклоняются.
	assert.ErrorIs(t, b.Allow(), apperrors.ErrCircuitOpen)
	assert.ErrorIs(t, b.Allow(), apperrors.ErrCircuitOpen)

	b.Success()
	assert.NoError(t, b.Allow())
}

func TestBreaker_HalfOpenFailureRestartsCooldown(t *testing.T) {
	b, current := newTestBreaker(t, 2, 5*time.Minute)

	b.Failure()
	b.Failure()

	*current = current.Add(6 * time.Minute)
	require.NoError(t, b.Allow())
	b.Failure()
	require.Equal(t, StateOpen, b.State())

	// Cooldown перезапущен от момента провала пробного запроса.
	*current = current.Add(4 * time.Minute)
	assert.ErrorIs(t, b.Allow(), apperrors.ErrCircuitOpen)

	*current = current.Add(2 * time.Minute)
	assert.NoError(t, b.Allow())
}
