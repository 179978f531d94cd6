package megaplan

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"

	"go.uber.org/zap"

	apperrors "ticket-bot/pkg/errors"
)

// apiResponse - стандартный конверт ответа Мегаплана.
type apiResponse struct {
	Meta *apiMeta        `json:"meta"`
	Data json.RawMessage `json:"data"`
}

type apiMeta struct {
	Status int               `json:"status"`
	Errors []json.RawMessage `json:"errors"`
}

// request - обертка для выполнения аутентифицированных запросов к API CRM.
// Проверяет circuit breaker, получает токен, прикрепляет его как Bearer
// и разбирает стандартный конверт ответа.
//
// Учет для breaker: транспортные ошибки, 5xx и нечитаемые ответы считаются
// сбоем; любой осмысленный ответ сервиса (2xx и 4xx) - успехом.
// 401 дополнительно сбрасывает токен, чтобы следующий запрос переавторизовался.
func (p *Provider) request(ctx context.Context, method, endpoint string, jsonBody interface{}) (json.RawMessage, error) {
	if err := p.breaker.Allow(); err != nil {
		p.logger.Warn("запрос к CRM отклонен circuit breaker", zap.String("endpoint", endpoint))
		return nil, err
	}

	token, err := p.getToken(ctx)
	if err != nil {
		return nil, err
	}

	var bodyReader io.Reader
	if jsonBody != nil {
		encoded, err := json.Marshal(jsonBody)
		if err != nil {
			return nil, fmt.Errorf("ошибка сериализации тела запроса для %s: %w", endpoint, err)
		}
		bodyReader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, p.baseURL+endpoint, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("ошибка создания запроса %s %s: %w", method, endpoint, err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	if jsonBody != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	return p.do(req, endpoint)
}

// requestMultipart выполняет аутентифицированный POST с телом multipart/form-data.
// Используется для загрузки файлов (ключ "files[]" согласно документации Мегаплана).
func (p *Provider) requestMultipart(ctx context.Context, endpoint, fileName string, content []byte) (json.RawMessage, error) {
	if err := p.breaker.Allow(); err != nil {
		p.logger.Warn("запрос к CRM отклонен circuit breaker", zap.String("endpoint", endpoint))
		return nil, err
	}

	token, err := p.getToken(ctx)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	part, err := writer.CreateFormFile("files[]", fileName)
	if err != nil {
		return nil, fmt.Errorf("ошибка подготовки multipart-формы: %w", err)
	}
	if _, err := part.Write(content); err != nil {
		return nil, fmt.Errorf("ошибка записи содержимого файла в форму: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("ошибка завершения multipart-формы: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+endpoint, &buf)
	if err != nil {
		return nil, fmt.Errorf("ошибка создания запроса загрузки файла: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", writer.FormDataContentType())

	return p.do(req, endpoint)
}

func (p *Provider) do(req *http.Request, endpoint string) (json.RawMessage, error) {
	p.logger.Debug("выполнение запроса к CRM",
		zap.String("method", req.Method),
		zap.String("endpoint", endpoint))

	resp, err := p.httpClient.Do(req)
	if err != nil {
		p.breaker.Failure()
		return nil, fmt.Errorf("ошибка выполнения запроса к %s: %w", endpoint, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		p.breaker.Failure()
		return nil, fmt.Errorf("ошибка чтения ответа от %s: %w", endpoint, err)
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		p.breaker.Success()
		p.logger.Warn("получен 401 Unauthorized, возможно токен отозван",
			zap.String("endpoint", endpoint))
		p.invalidateToken()
		return nil, fmt.Errorf("%w: %s", apperrors.ErrUnauthorized, endpoint)
	case resp.StatusCode >= http.StatusInternalServerError:
		p.breaker.Failure()
		return nil, apperrors.NewApiError(resp.StatusCode, string(body))
	case resp.StatusCode >= http.StatusBadRequest:
		p.breaker.Success()
		return nil, apperrors.NewApiError(resp.StatusCode, string(body))
	}

	var envelope apiResponse
	if err := json.Unmarshal(body, &envelope); err != nil {
		p.breaker.Failure()
		return nil, fmt.Errorf("%w: %v", apperrors.ErrUnexpectedResponse, err)
	}
	p.breaker.Success()

	if envelope.Meta != nil && len(envelope.Meta.Errors) > 0 {
		p.logger.Warn("CRM вернула ошибки в meta",
			zap.String("endpoint", endpoint),
			zap.Int("count", len(envelope.Meta.Errors)))
	}

	return envelope.Data, nil
}
