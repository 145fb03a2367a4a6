package notification

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/akriventsev/vouchers/internal/core"
)

// TokenProviderConfig конфигурация провайдера токенов
type TokenProviderConfig struct {
	BaseURL      string
	ClientID     string
	ClientSecret string
	Timeout      time.Duration
}

// Token выданный bearer-токен
type Token struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int64  `json:"expires_in"`
}

// TokenProvider клиент обмена client credentials на bearer-токен
type TokenProvider struct {
	config TokenProviderConfig
	client *http.Client
}

// NewTokenProvider создает новый клиент провайдера токенов
func NewTokenProvider(config TokenProviderConfig) *TokenProvider {
	timeout := config.Timeout
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	return &TokenProvider{
		config: config,
		client: &http.Client{Timeout: timeout},
	}
}

// GetToken выполняет client credentials обмен. Отказ провайдера или
// транспортная ошибка дают AUTHENTICATION_FAILED: обработчик события
// прерывается без побочных эффектов.
func (p *TokenProvider) GetToken(ctx context.Context) (Token, error) {
	form := url.Values{}
	form.Set("grant_type", "client_credentials")
	form.Set("client_id", p.config.ClientID)
	form.Set("client_secret", p.config.ClientSecret)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		p.config.BaseURL+"/token", strings.NewReader(form.Encode()))
	if err != nil {
		return Token{}, fmt.Errorf("failed to build token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := p.client.Do(req)
	if err != nil {
		return Token{}, core.Wrap(err, core.CodeAuthenticationFailed, "token request failed")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Token{}, core.NewError(core.CodeAuthenticationFailed,
			"token provider rejected request with status %d", resp.StatusCode)
	}

	var token Token
	if err := json.NewDecoder(resp.Body).Decode(&token); err != nil {
		return Token{}, core.Wrap(err, core.CodeAuthenticationFailed, "failed to decode token response")
	}
	if token.AccessToken == "" {
		return Token{}, core.NewError(core.CodeAuthenticationFailed, "token provider returned empty access token")
	}

	return token, nil
}
