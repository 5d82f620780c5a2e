package hint

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sql-sandbox/configs"
)

func TestChatClientGenerate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))

		var body chatRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "test-model", body.Model)
		require.Len(t, body.Messages, 1)
		assert.Equal(t, "the prompt", body.Messages[0].Content)

		_, _ = w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"  Try GROUP BY.  "}}]}`))
	}))
	defer srv.Close()

	c := NewChatClient(configs.HintConfig{Endpoint: srv.URL, APIKey: "secret", Model: "test-model"}, srv.Client())
	text, err := c.Generate(context.Background(), "the prompt")
	require.NoError(t, err)
	assert.Equal(t, "Try GROUP BY.", text)
}

func TestChatClientErrors(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		body      string
		temporary bool
		message   string
	}{
		{name: "ServerError", status: http.StatusBadGateway, body: `oops`, temporary: true, message: "Bad Gateway"},
		{name: "RateLimited", status: http.StatusTooManyRequests, body: `{"error":{"message":"slow down"}}`, temporary: true, message: "slow down"},
		{name: "BadKey", status: http.StatusUnauthorized, body: `{"error":{"message":"invalid api key"}}`, message: "invalid api key"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			_, err := NewChatClient(configs.HintConfig{Endpoint: srv.URL}, srv.Client()).Generate(context.Background(), "p")
			var statusErr *StatusError
			require.ErrorAs(t, err, &statusErr)
			assert.Equal(t, tt.status, statusErr.StatusCode)
			assert.Equal(t, tt.temporary, statusErr.Temporary())
			assert.Equal(t, tt.message, statusErr.Message)
		})
	}

	t.Run("NoChoices", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"choices":[]}`))
		}))
		defer srv.Close()

		_, err := NewChatClient(configs.HintConfig{Endpoint: srv.URL}, srv.Client()).Generate(context.Background(), "p")
		assert.ErrorContains(t, err, "no choices")
	})
}
