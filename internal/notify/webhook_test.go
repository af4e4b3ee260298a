package notify

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/healthcard/healthcard-api/pkg/config"
	"github.com/healthcard/healthcard-api/pkg/logger"
	"github.com/healthcard/healthcard-api/pkg/types"
)

func TestSendCode(t *testing.T) {
	t.Run("posts the payload with the api key header", func(t *testing.T) {
		var received types.CodeEmail
		var apiKey string

		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			apiKey = r.Header.Get("x-make-apikey")
			assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
			assert.NoError(t, json.NewDecoder(r.Body).Decode(&received))
			w.WriteHeader(http.StatusOK)
		}))
		defer server.Close()

		n := NewWebhookNotifier(&config.EmailConfig{
			WebhookURL: server.URL,
			APIKey:     "secret-key",
			AppName:    "HealthCard",
		}, logger.New("error"))

		err := n.SendCode(context.Background(), types.CodeEmail{
			Channel:          types.ChannelVisitOTP,
			ToEmail:          "pat1@example.com",
			ResetCode:        "123456",
			ExpiresInMinutes: 10,
		})
		assert.NoError(t, err)
		assert.Equal(t, "secret-key", apiKey)
		assert.Equal(t, "123456", received.ResetCode)
		assert.Equal(t, types.ChannelVisitOTP, received.Channel)
		assert.Equal(t, "HealthCard", received.AppName, "app name defaults from config")
	})

	t.Run("non-2xx is a delivery failure", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadGateway)
		}))
		defer server.Close()

		n := NewWebhookNotifier(&config.EmailConfig{WebhookURL: server.URL}, logger.New("error"))
		err := n.SendCode(context.Background(), types.CodeEmail{ResetCode: "123456"})
		assert.True(t, types.IsType(err, types.ErrorTypeUnavailable))
	})

	t.Run("unreachable webhook is a delivery failure", func(t *testing.T) {
		n := NewWebhookNotifier(&config.EmailConfig{WebhookURL: "http://127.0.0.1:1"}, logger.New("error"))
		err := n.SendCode(context.Background(), types.CodeEmail{ResetCode: "123456"})
		assert.True(t, types.IsType(err, types.ErrorTypeUnavailable))
	})

	t.Run("unconfigured channel fails closed", func(t *testing.T) {
		n := NewWebhookNotifier(&config.EmailConfig{}, logger.New("error"))
		assert.False(t, n.Configured())

		err := n.SendCode(context.Background(), types.CodeEmail{ResetCode: "123456"})
		assert.True(t, types.IsType(err, types.ErrorTypeUnavailable))
	})
}
