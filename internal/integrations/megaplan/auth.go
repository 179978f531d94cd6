package megaplan

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	apperrors "ticket-bot/pkg/errors"
)

const authEndpoint = "/api/v3/auth/access_token"

type authResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int64  `json:"expires_in"`
}

// getToken возвращает действительный токен доступа, при необходимости выполняя
// повторный вход. Проверка и вход выполняются атомарно: конкурентные вызовы
// никогда не приводят к двум одновременным обменам логина на токен - первый
// захвативший мьютекс выполняет вход, остальные видят уже сохраненный токен.
func (p *Provider) getToken(ctx context.Context) (string, error) {
	p.tokenMutex.RLock()
	if p.token != "" && p.now().Before(p.tokenExpiry) {
		defer p.tokenMutex.RUnlock()
		return p.token, nil
	}
	p.tokenMutex.RUnlock()

	p.tokenMutex.Lock()
	defer p.tokenMutex.Unlock()

	// Повторная проверка внутри Lock на случай, если другая горутина уже обновила токен
	if p.token != "" && p.now().Before(p.tokenExpiry) {
		return p.token, nil
	}

	token, expiresIn, err := p.doLogin(ctx)
	if err != nil {
		// Сбрасываем состояние: следующий вызов попробует войти заново.
		p.token = ""
		p.tokenExpiry = time.Time{}
		p.logger.Error("не удалось обновить токен CRM", zap.Error(err))
		return "", fmt.Errorf("%w: %v", apperrors.ErrNoToken, err)
	}

	p.token = token
	// Токен считается недействительным за tokenBuffer до заявленного срока.
	p.tokenExpiry = p.now().Add(time.Duration(expiresIn)*time.Second - p.tokenBuffer)
	p.logger.Info("успешная аутентификация в CRM",
		zap.Time("token_expiry", p.tokenExpiry))

	return p.token, nil
}

// doLogin выполняет обмен логина и пароля на токен доступа.
func (p *Provider) doLogin(ctx context.Context) (string, int64, error) {
	p.logger.Info("попытка аутентификации в CRM", zap.String("login", p.login))

	form := url.Values{}
	form.Set("username", p.login)
	form.Set("password", p.password)
	form.Set("grant_type", "password")

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+authEndpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return "", 0, fmt.Errorf("ошибка создания запроса на аутентификацию: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return "", 0, fmt.Errorf("ошибка выполнения запроса на аутентификацию: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		bodyBytes, _ := io.ReadAll(resp.Body)
		return "", 0, apperrors.NewApiError(resp.StatusCode, string(bodyBytes))
	}

	var authResp authResponse
	if err := json.NewDecoder(resp.Body).Decode(&authResp); err != nil {
		return "", 0, fmt.Errorf("ошибка парсинга ответа с токеном: %w", err)
	}

	if authResp.AccessToken == "" {
		return "", 0, apperrors.ErrTokenMissing
	}
	if authResp.ExpiresIn <= 0 {
		// CRM не вернула срок жизни - используем час, как документированный дефолт.
		authResp.ExpiresIn = 3600
	}

	return authResp.AccessToken, authResp.ExpiresIn, nil
}

// invalidateToken сбрасывает сохраненный токен. Вызывается при 401 от CRM:
// текущий запрос завершается ошибкой, следующий выполнит повторный вход.
func (p *Provider) invalidateToken() {
	p.tokenMutex.Lock()
	defer p.tokenMutex.Unlock()
	p.token = ""
	p.tokenExpiry = time.Time{}
	p.logger.Warn("токен CRM сброшен, следующий запрос выполнит повторный вход")
}
