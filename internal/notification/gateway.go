package notification

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/akriventsev/vouchers/internal/core"
)

// Channel канал доставки нотификации
type Channel string

const (
	ChannelEmail Channel = "email"
	ChannelSMS   Channel = "sms"
)

// Message нотификация, готовая к отправке
type Message struct {
	Channel   Channel
	Recipient string
	Subject   string
	Body      string
}

// GatewayConfig конфигурация шлюза сообщений
type GatewayConfig struct {
	BaseURL string
	Timeout time.Duration
}

// Gateway клиент шлюза сообщений. Одна успешная отправка означает один
// исходящий вызов; шлюз сам занимается фактической доставкой.
type Gateway struct {
	config GatewayConfig
	client *http.Client
}

// NewGateway создает новый клиент шлюза сообщений
func NewGateway(config GatewayConfig) *Gateway {
	timeout := config.Timeout
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	return &Gateway{
		config: config,
		client: &http.Client{Timeout: timeout},
	}
}

type emailRequest struct {
	ToAddress string `json:"to_address"`
	Subject   string `json:"subject"`
	Body      string `json:"body"`
}

type smsRequest struct {
	Destination string `json:"destination"`
	Message     string `json:"message"`
}

// Send отправляет сообщение через шлюз под bearer-токеном. Транспортная
// ошибка или не-2xx ответ дают DELIVERY_FAILED; политика повторов
// принадлежит вызывающему слою доставки событий.
func (g *Gateway) Send(ctx context.Context, message Message, accessToken string) error {
	var path string
	var payload interface{}

	switch message.Channel {
	case ChannelEmail:
		path = "/api/email"
		payload = emailRequest{
			ToAddress: message.Recipient,
			Subject:   message.Subject,
			Body:      message.Body,
		}
	case ChannelSMS:
		path = "/api/sms"
		payload = smsRequest{
			Destination: message.Recipient,
			Message:     message.Body,
		}
	default:
		return fmt.Errorf("unknown notification channel: %s", message.Channel)
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal %s request: %w", message.Channel, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.config.BaseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build %s request: %w", message.Channel, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+accessToken)

	resp, err := g.client.Do(req)
	if err != nil {
		return core.Wrap(err, core.CodeDeliveryFailed, fmt.Sprintf("%s delivery failed", message.Channel))
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return core.NewError(core.CodeDeliveryFailed,
			"%s gateway responded with status %d", message.Channel, resp.StatusCode)
	}

	return nil
}
