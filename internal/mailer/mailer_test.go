package mailer

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"inbox-service/pkg/config"
)

func newTestMailer(url string) *HTTPMailer {
	return New(&config.MailConfig{
		APIKey:    "test-api-key",
		BaseURL:   url,
		FromEmail: "support@acme.test",
		FromName:  "Acme Support",
	})
}

func TestSend(t *testing.T) {
	var gotAuth string
	var gotReq sendRequest

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/emails", r.URL.Path)
		gotAuth = r.Header.Get("Authorization")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotReq))

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"id":"msg_123"}`))
	}))
	defer srv.Close()

	m := newTestMailer(srv.URL)
	id, err := m.Send(context.Background(), Message{
		To:      "visitor@example.com",
		Subject: "Re: your message",
		Text:    "Thanks for reaching out.",
	})
	require.NoError(t, err)

	assert.Equal(t, "msg_123", id)
	assert.Equal(t, "Bearer test-api-key", gotAuth)
	assert.Equal(t, "Acme Support <support@acme.test>", gotReq.From)
	assert.Equal(t, "visitor@example.com", gotReq.To)
	assert.Equal(t, "Re: your message", gotReq.Subject)
	assert.Equal(t, "Thanks for reaching out.", gotReq.Text)
}

func TestSendProviderError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		w.Write([]byte(`{"message":"invalid recipient"}`))
	}))
	defer srv.Close()

	m := newTestMailer(srv.URL)
	_, err := m.Send(context.Background(), Message{To: "bad", Subject: "x", Text: "y"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "422")
}

func TestSendUnreachableProvider(t *testing.T) {
	m := newTestMailer("http://127.0.0.1:1")
	_, err := m.Send(context.Background(), Message{To: "a@b.test", Subject: "x", Text: "y"})
	assert.Error(t, err)
}
