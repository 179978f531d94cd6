package megaplan

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"ticket-bot/pkg/breaker"
	"ticket-bot/pkg/config"
	apperrors "ticket-bot/pkg/errors"
)

// newTestProvider создает провайдер, направленный на тестовый сервер.
func newTestProvider(t *testing.T, baseURL string) *Provider {
	t.Helper()
	cfg := config.MegaplanConfig{
		BaseURL:        baseURL,
		Login:          "bot@example.com",
		Password:       "secret",
		ProgramID:      13,
		TokenBuffer:    60 * time.Second,
		RequestTimeout: 5 * time.Second,
		LocalTZOffset:  2 * time.Hour,
	}
	brk := breaker.New("megaplan_breaker", 2, 5*time.Minute, zap.NewNop())
	return New(cfg, brk, zap.NewNop())
}

// authHandler отвечает на запросы логина и считает их количество.
func authHandler(loginCount *int64, expiresIn int64) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if r.PostFormValue("grant_type") != "password" {
			http.Error(w, "unsupported grant_type", http.StatusBadRequest)
			return
		}
		n := atomic.AddInt64(loginCount, 1)
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"access_token":"token-%d","expires_in":%d}`, n, expiresIn)
	}
}

func TestGetToken_ReusedWithinLifetime(t *testing.T) {
	var loginCount int64
	mux := http.NewServeMux()
	mux.Handle(authEndpoint, authHandler(&loginCount, 3600))
	server := httptest.NewServer(mux)
	defer server.Close()

	p := newTestProvider(t, server.URL)

	first, err := p.getToken(context.Background())
	require.NoError(t, err)
	second, err := p.getToken(context.Background())
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.EqualValues(t, 1, loginCount, "в пределах срока жизни токена выполняется ровно один вход")
}

func TestGetToken_ConcurrentCallersSingleLogin(t *testing.T) {
	var loginCount int64
	mux := http.NewServeMux()
	mux.Handle(authEndpoint, authHandler(&loginCount, 3600))
	server := httptest.NewServer(mux)
	defer server.Close()

	p := newTestProvider(t, server.URL)

	const callers = 20
	tokens := make([]string, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			token, err := p.getToken(context.Background())
			assert.NoError(t, err)
			tokens[i] = token
		}(i)
	}
	wg.Wait()

	assert.EqualValues(t, 1, loginCount, "конкурентные вызовы не должны порождать несколько входов")
	for _, token := range tokens {
		assert.Equal(t, tokens[0], token, "все вызовы получают один и тот же токен")
	}
}

func TestGetToken_InvalidateForcesRelogin(t *testing.T) {
	var loginCount int64
	mux := http.NewServeMux()
	mux.Handle(authEndpoint, authHandler(&loginCount, 3600))
	server := httptest.NewServer(mux)
	defer server.Close()

	p := newTestProvider(t, server.URL)

	first, err := p.getToken(context.Background())
	require.NoError(t, err)

	p.invalidateToken()

	second, err := p.getToken(context.Background())
	require.NoError(t, err)

	assert.NotEqual(t, first, second, "после сброса выдается свежий токен")
	assert.EqualValues(t, 2, loginCount)
}

func TestGetToken_BufferExpiryForcesRelogin(t *testing.T) {
	var loginCount int64
	mux := http.NewServeMux()
	mux.Handle(authEndpoint, authHandler(&loginCount, 70))
	server := httptest.NewServer(mux)
	defer server.Close()

	p := newTestProvider(t, server.URL)
	current := time.Date(2024, 5, 27, 12, 0, 0, 0, time.UTC)
	p.now = func() time.Time { return current }

	_, err := p.getToken(context.Background())
	require.NoError(t, err)

	// expires_in=70с при буфере 60с: токен валиден лишь 10 секунд.
	current = current.Add(30 * time.Second)
	_, err = p.getToken(context.Background())
	require.NoError(t, err)
	assert.EqualValues(t, 2, loginCount, "токен в буферной зоне истечения считается недействительным")
}

func TestGetToken_LoginFailure(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc(authEndpoint, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad credentials", http.StatusForbidden)
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	p := newTestProvider(t, server.URL)

	_, err := p.getToken(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrNoToken)
	assert.Empty(t, p.token, "после неудачного входа токен не хранится")
}

func TestGetToken_MissingTokenField(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc(authEndpoint, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"expires_in":3600}`)
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	p := newTestProvider(t, server.URL)

	_, err := p.getToken(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrNoToken)
}

func TestRequest_UnauthorizedInvalidatesToken(t *testing.T) {
	var loginCount int64
	mux := http.NewServeMux()
	mux.Handle(authEndpoint, authHandler(&loginCount, 3600))
	mux.HandleFunc("/api/v3/some", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "token revoked", http.StatusUnauthorized)
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	p := newTestProvider(t, server.URL)

	_, err := p.request(context.Background(), http.MethodGet, "/api/v3/some", nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrUnauthorized)

	// Текущий запрос провален, но следующий самовосстанавливается через повторный вход.
	_, err = p.getToken(context.Background())
	require.NoError(t, err)
	assert.EqualValues(t, 2, loginCount)
}
