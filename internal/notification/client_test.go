package notification

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/akriventsev/vouchers/internal/core"
)

func TestTokenProvider_GetToken(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/token" {
			t.Errorf("Expected /token path, got %s", r.URL.Path)
		}
		if err := r.ParseForm(); err != nil {
			t.Fatalf("Expected no error, got %v", err)
		}
		if r.PostForm.Get("grant_type") != "client_credentials" {
			t.Errorf("Expected client_credentials grant, got %q", r.PostForm.Get("grant_type"))
		}
		if r.PostForm.Get("client_id") != "service" {
			t.Errorf("Expected client id service, got %q", r.PostForm.Get("client_id"))
		}
		json.NewEncoder(w).Encode(Token{AccessToken: "abc", TokenType: "Bearer", ExpiresIn: 3600}) //nolint:errcheck
	}))
	defer server.Close()

	provider := NewTokenProvider(TokenProviderConfig{
		BaseURL:      server.URL,
		ClientID:     "service",
		ClientSecret: "secret",
	})

	token, err := provider.GetToken(context.Background())
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if token.AccessToken != "abc" {
		t.Errorf("Expected access token abc, got %q", token.AccessToken)
	}
}

func TestTokenProvider_Rejected(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	provider := NewTokenProvider(TokenProviderConfig{BaseURL: server.URL})
	if _, err := provider.GetToken(context.Background()); !core.IsAuthenticationFailed(err) {
		t.Fatalf("Expected AUTHENTICATION_FAILED, got %v", err)
	}
}

func TestTokenProvider_EmptyToken(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(Token{}) //nolint:errcheck
	}))
	defer server.Close()

	provider := NewTokenProvider(TokenProviderConfig{BaseURL: server.URL})
	if _, err := provider.GetToken(context.Background()); !core.IsAuthenticationFailed(err) {
		t.Fatalf("Expected AUTHENTICATION_FAILED, got %v", err)
	}
}

func TestGateway_SendEmail(t *testing.T) {
	var received emailRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/email" {
			t.Errorf("Expected /api/email path, got %s", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer abc" {
			t.Errorf("Expected bearer token, got %q", r.Header.Get("Authorization"))
		}
		if err := json.NewDecoder(r.Body).Decode(&received); err != nil {
			t.Fatalf("Expected no error, got %v", err)
		}
	}))
	defer server.Close()

	gateway := NewGateway(GatewayConfig{BaseURL: server.URL})
	err := gateway.Send(context.Background(), Message{
		Channel:   ChannelEmail,
		Recipient: "buyer@example.com",
		Subject:   "Voucher Issued",
		Body:      "<html>voucher</html>",
	}, "abc")
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if received.ToAddress != "buyer@example.com" || received.Subject != "Voucher Issued" {
		t.Errorf("Expected email payload, got %+v", received)
	}
}

func TestGateway_SendSMS(t *testing.T) {
	var received smsRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/sms" {
			t.Errorf("Expected /api/sms path, got %s", r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&received); err != nil {
			t.Fatalf("Expected no error, got %v", err)
		}
	}))
	defer server.Close()

	gateway := NewGateway(GatewayConfig{BaseURL: server.URL})
	err := gateway.Send(context.Background(), Message{
		Channel:   ChannelSMS,
		Recipient: "+27831234567",
		Body:      "Your voucher code is 42",
	}, "abc")
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if received.Destination != "+27831234567" {
		t.Errorf("Expected sms payload, got %+v", received)
	}
}

func TestGateway_SendFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	gateway := NewGateway(GatewayConfig{BaseURL: server.URL})
	err := gateway.Send(context.Background(), Message{
		Channel:   ChannelEmail,
		Recipient: "buyer@example.com",
	}, "abc")
	if !core.IsDeliveryFailed(err) {
		t.Fatalf("Expected DELIVERY_FAILED, got %v", err)
	}
}
