// Пакет notify — уведомления о новых заявках через HTTP API отправки писем.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/bigkaa/shipdesk/internal/domain/model"
)

// mailRequest — тело запроса к почтовому API.
type mailRequest struct {
	FromName string `json:"fromName"`
	To       string `json:"to"`
	ReplyTo  string `json:"replyTo"`
	Subject  string `json:"subject"`
	Body     string `json:"body"`
	Code     string `json:"code"`
	Token    string `json:"token"`
	CC       string `json:"cc"`
	BCC      string `json:"bcc"`
	Local    bool   `json:"local"`
}

// Client — клиент почтового API.
type Client struct {
	apiURL      string
	token       string
	to          string
	companyName string

	httpClient *http.Client
	logger     *slog.Logger
}

// New создаёт клиент уведомлений.
// apiURL — адрес API отправки, to — получатель, companyName — имя в теме письма.
func New(apiURL, token, to, companyName string, httpClient *http.Client, logger *slog.Logger) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &Client{
		apiURL:      apiURL,
		token:       token,
		to:          to,
		companyName: companyName,
		httpClient:  httpClient,
		logger:      logger.With(slog.String("component", "notify_client")),
	}
}

// Endpoint возвращает адрес почтового API (для dephealth).
func (c *Client) Endpoint() string {
	return c.apiURL
}

// ContactReceived отправляет письмо о новой заявке.
func (c *Client) ContactReceived(ctx context.Context, contact *model.Contact) error {
	name := senderName(contact)

	body, err := Body(ctx, contact)
	if err != nil {
		return fmt.Errorf("формирование письма: %w", err)
	}

	payload := mailRequest{
		FromName: name,
		To:       c.to,
		ReplyTo:  contact.Email,
		Subject:  fmt.Sprintf("%s - Contact Form - %s", c.companyName, name),
		Body:     body,
		Token:    c.token,
		Local:    true,
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("сериализация письма: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiURL, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("создание запроса к почтовому API: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("запрос к почтовому API: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("почтовый API вернул статус %d: %s", resp.StatusCode, string(body))
	}

	c.logger.Debug("Уведомление о заявке отправлено",
		slog.String("contact_id", contact.ID),
	)
	return nil
}

func senderName(c *model.Contact) string {
	if c.FullName != "" {
		return c.FullName
	}
	return strings.TrimSpace(c.FirstName + " " + c.LastName)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
