// Пакет captcha — проверка токенов reCAPTCHA.
package captcha

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// ErrNotConfigured — секретный ключ не задан, проверка невозможна.
var ErrNotConfigured = errors.New("reCAPTCHA не настроена")

// verifyResponse — ответ siteverify.
type verifyResponse struct {
	Success    bool     `json:"success"`
	Hostname   string   `json:"hostname"`
	ErrorCodes []string `json:"error-codes"`
}

// Client — HTTP-клиент к API проверки reCAPTCHA.
type Client struct {
	verifyURL string
	secret    string

	httpClient *http.Client
	logger     *slog.Logger
}

// New создаёт клиент reCAPTCHA.
// verifyURL — адрес siteverify, secret — секретный ключ сайта.
func New(verifyURL, secret string, httpClient *http.Client, logger *slog.Logger) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &Client{
		verifyURL:  strings.TrimRight(verifyURL, "/"),
		secret:     secret,
		httpClient: httpClient,
		logger:     logger.With(slog.String("component", "captcha_client")),
	}
}

// Verify проверяет токен. Возвращает false без ошибки, если сервис
// ответил отказом, и ошибку, если проверку выполнить не удалось.
func (c *Client) Verify(ctx context.Context, token string) (bool, error) {
	if c.secret == "" {
		return false, ErrNotConfigured
	}
	if token == "" {
		return false, nil
	}

	q := url.Values{
		"secret":   {c.secret},
		"response": {token},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.verifyURL+"?"+q.Encode(), nil)
	if err != nil {
		return false, fmt.Errorf("создание запроса reCAPTCHA: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return false, fmt.Errorf("запрос reCAPTCHA: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return false, fmt.Errorf("reCAPTCHA вернула статус %d: %s", resp.StatusCode, string(body))
	}

	var vr verifyResponse
	if err := json.NewDecoder(resp.Body).Decode(&vr); err != nil {
		return false, fmt.Errorf("декодирование ответа reCAPTCHA: %w", err)
	}

	if !vr.Success {
		c.logger.Info("Токен reCAPTCHA отклонён",
			slog.Any("error_codes", vr.ErrorCodes),
		)
	}
	return vr.Success, nil
}

// Endpoint возвращает адрес проверки (для dephealth).
func (c *Client) Endpoint() string {
	return c.verifyURL
}
