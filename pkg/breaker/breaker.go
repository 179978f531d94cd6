package breaker

import (
	"sync"
	"time"

	"go.uber.org/zap"

	apperrors "ticket-bot/pkg/errors"
)

// State - состояние цепи.
type State int

const (
	StateClosed   State = iota // Запросы разрешены
	StateOpen                  // Запросы блокируются до истечения cooldown
	StateHalfOpen              // Разрешен ровно один пробный запрос
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "CLOSED"
	case StateOpen:
		return "OPEN"
	case StateHalfOpen:
		return "HALF_OPEN"
	default:
		return "UNKNOWN"
	}
}

// Breaker защищает нестабильный внешний сервис: после threshold последовательных
// ошибок запросы блокируются на cooldown, затем пропускается один пробный запрос.
// Один экземпляр на один внешний сервис, безопасен для конкурентного вызова.
type Breaker struct {
	mu sync.Mutex

	state         State
	failureCount  int
	lastFailure   time.Time
	probeInFlight bool

	threshold int
	cooldown  time.Duration

	now    func() time.Time
	logger *zap.Logger
}

func New(name string, threshold int, cooldown time.Duration, logger *zap.Logger) *Breaker {
	if threshold < 1 {
		threshold = 1
	}
	return &Breaker{
		state:     StateClosed,
		threshold: threshold,
		cooldown:  cooldown,
		now:       time.Now,
		logger:    logger.Named(name),
	}
}

// Allow решает, можно ли выполнять запрос.
// Возвращает apperrors.ErrCircuitOpen, если запрос должен быть отклонен без
// обращения к сети. В состоянии HALF_OPEN пропускается ровно один пробный
// запрос: конкурентные вызовы до его завершения отклоняются.
func (b *Breaker) Allow() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case StateClosed:
		return nil
	case StateOpen:
		if b.now().After(b.lastFailure.Add(b.cooldown)) {
			b.state = StateHalfOpen
			b.probeInFlight = true
			b.logger.Warn("cooldown истёк, цепь в состоянии HALF_OPEN, пропускаем пробный запрос")
			return nil
		}
		return apperrors.ErrCircuitOpen
	case StateHalfOpen:
		if b.probeInFlight {
			return apperrors.ErrCircuitOpen
		}
		b.probeInFlight = true
		return nil
	}
	return nil
}

// Success фиксирует успешный запрос: счетчик ошибок сбрасывается, цепь замыкается.
func (b *Breaker) Success() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state == StateHalfOpen {
		b.logger.Info("пробный запрос успешен, цепь замкнута (CLOSED)")
	}
	b.failureCount = 0
	b.state = StateClosed
	b.probeInFlight = false
}

// Failure фиксирует сбойный запрос. Провал пробного запроса в HALF_OPEN
// немедленно размыкает цепь и перезапускает cooldown.
func (b *Breaker) Failure() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state == StateHalfOpen {
		b.state = StateOpen
		b.lastFailure = b.now()
		b.probeInFlight = false
		b.logger.Error("пробный запрос провален, цепь снова разомкнута (OPEN)",
			zap.Duration("cooldown", b.cooldown))
		return
	}

	b.failureCount++
	if b.failureCount >= b.threshold {
		b.state = StateOpen
		b.lastFailure = b.now()
		b.logger.Error("порог ошибок достигнут, цепь разомкнута (OPEN)",
			zap.Int("failure_count", b.failureCount),
			zap.Duration("cooldown", b.cooldown))
	}
}

// State возвращает текущее состояние цепи.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// SetNow подменяет источник времени. Используется в тестах.
func (b *Breaker) SetNow(now func() time.Time) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.now = now
}
