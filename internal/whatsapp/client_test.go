package whatsapp

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() (*slog.Logger, *bytes.Buffer) {
	var buf bytes.Buffer
	return slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})), &buf
}

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	logger, _ := testLogger()
	return New(Config{
		BaseURL:       server.URL,
		PhoneNumberID: "123456",
		AccessToken:   "token-abc",
	}, logger)
}

func TestClient_SendText(t *testing.T) {
	t.Parallel()

	var got map[string]any
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v22.0/123456/messages", r.URL.Path)
		assert.Equal(t, "Bearer token-abc", r.Header.Get("Authorization"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		body, err := io.ReadAll(r.Body)
		assert.NoError(t, err)
		assert.NoError(t, json.Unmarshal(body, &got))

		w.Header().Set("Content-Type", "application/json")
		_, _ = fmt.Fprint(w, `{"messaging_product":"whatsapp","contacts":[{"input":"521","wa_id":"521"}],"messages":[{"id":"wamid.1"}]}`)
	})

	res, err := client.SendText(context.Background(), "5215512345678", "hola")
	require.NoError(t, err)
	assert.Equal(t, "wamid.1", res.MessageID)
	assert.False(t, res.Suppressed)

	assert.Equal(t, map[string]any{
		"messaging_product": "whatsapp",
		"to":                "5215512345678",
		"type":              "text",
		"text":              map[string]any{"body": "hola"},
	}, got)
}

func TestClient_SendButtons(t *testing.T) {
	t.Parallel()

	var got map[string]any
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = fmt.Fprint(w, `{"messages":[{"id":"wamid.2"}]}`)
	})

	res, err := client.SendButtons(context.Background(), "521", "¿Qué tan fuerte es?", []Button{
		{ID: "pain_leve", Title: "Leve"},
		{ID: "pain_fuerte", Title: "Fuerte"},
	})
	require.NoError(t, err)
	assert.Equal(t, "wamid.2", res.MessageID)

	want := map[string]any{
		"messaging_product": "whatsapp",
		"to":                "521",
		"type":              "interactive",
		"interactive": map[string]any{
			"type": "button",
			"body": map[string]any{"text": "¿Qué tan fuerte es?"},
			"action": map[string]any{
				"buttons": []any{
					map[string]any{"type": "reply", "reply": map[string]any{"id": "pain_leve", "title": "Leve"}},
					map[string]any{"type": "reply", "reply": map[string]any{"id": "pain_fuerte", "title": "Fuerte"}},
				},
			},
		},
	}
	assert.Equal(t, want, got)
}

func TestClient_SendFailed(t *testing.T) {
	t.Parallel()

	for _, status := range []int{http.StatusBadRequest, http.StatusUnauthorized, http.StatusInternalServerError} {
		t.Run(http.StatusText(status), func(t *testing.T) {
			client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(status)
				_, _ = fmt.Fprint(w, `{"error":{"message":"nope"}}`)
			})

			_, err := client.SendText(context.Background(), "521", "hola")
			require.Error(t, err)

			var sendErr *SendError
			require.True(t, errors.As(err, &sendErr))
			assert.Equal(t, status, sendErr.Status)
			assert.Equal(t, `{"error":{"message":"nope"}}`, sendErr.Body)
			assert.Contains(t, err.Error(), fmt.Sprintf("whatsapp send failed: %d", status))
		})
	}
}

func TestClient_SendErrorBodyTruncated(t *testing.T) {
	t.Parallel()

	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = fmt.Fprint(w, strings.Repeat("x", maxErrorBodySize*2))
	})

	_, err := client.SendText(context.Background(), "521", "hola")
	var sendErr *SendError
	require.True(t, errors.As(err, &sendErr))
	assert.Len(t, sendErr.Body, maxErrorBodySize)
}

func TestClient_UnreadableSuccessResponse(t *testing.T) {
	t.Parallel()

	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = fmt.Fprint(w, "ok")
	})

	res, err := client.SendText(context.Background(), "521", "hola")
	require.NoError(t, err)
	assert.Empty(t, res.MessageID)
}

func TestClient_NetworkFailure(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	logger, _ := testLogger()
	client := New(Config{BaseURL: url, PhoneNumberID: "1", AccessToken: "t"}, logger)

	_, err := client.SendText(context.Background(), "521", "hola")
	require.Error(t, err)
	var sendErr *SendError
	assert.False(t, errors.As(err, &sendErr))
}

func TestClient_TestModeMakesNoCall(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
	}))
	defer server.Close()

	logger, logs := testLogger()
	client := New(Config{BaseURL: server.URL, TestMode: true}, logger)
	assert.True(t, client.TestMode())

	res, err := client.SendText(context.Background(), "521", "hola")
	require.NoError(t, err)
	assert.True(t, res.Suppressed)
	assert.True(t, strings.HasPrefix(res.MessageID, "suppressed-"))

	res, err = client.SendButtons(context.Background(), "521", "elige", []Button{{ID: "a", Title: "A"}})
	require.NoError(t, err)
	assert.True(t, res.Suppressed)

	assert.Equal(t, int32(0), calls.Load())
	assert.Contains(t, logs.String(), "sendText suppressed")
	assert.Contains(t, logs.String(), "sendButtons suppressed")
}

func TestClient_RejectsBadInput(t *testing.T) {
	t.Parallel()

	logger, _ := testLogger()
	client := New(Config{TestMode: true}, logger)
	ctx := context.Background()

	_, err := client.SendText(ctx, "", "hola")
	assert.ErrorIs(t, err, ErrNoRecipient)

	_, err = client.SendText(ctx, "521", "")
	assert.ErrorIs(t, err, ErrEmptyBody)

	_, err = client.SendButtons(ctx, "521", "elige", nil)
	assert.ErrorIs(t, err, ErrInvalidButtons)
}

func TestValidateButtons(t *testing.T) {
	tests := []struct {
		name    string
		buttons []Button
		wantErr bool
	}{
		{name: "one button", buttons: []Button{{ID: "a", Title: "A"}}},
		{name: "three buttons", buttons: []Button{{ID: "a", Title: "A"}, {ID: "b", Title: "B"}, {ID: "c", Title: "C"}}},
		{name: "accented title at limit", buttons: []Button{{ID: "a", Title: strings.Repeat("í", MaxButtonTitle)}}},
		{name: "none", buttons: nil, wantErr: true},
		{name: "four buttons", buttons: []Button{{ID: "a", Title: "A"}, {ID: "b", Title: "B"}, {ID: "c", Title: "C"}, {ID: "d", Title: "D"}}, wantErr: true},
		{name: "empty id", buttons: []Button{{ID: "", Title: "A"}}, wantErr: true},
		{name: "long id", buttons: []Button{{ID: strings.Repeat("x", MaxButtonIDBytes+1), Title: "A"}}, wantErr: true},
		{name: "duplicate id", buttons: []Button{{ID: "a", Title: "A"}, {ID: "a", Title: "B"}}, wantErr: true},
		{name: "empty title", buttons: []Button{{ID: "a", Title: ""}}, wantErr: true},
		{name: "long title", buttons: []Button{{ID: "a", Title: strings.Repeat("x", MaxButtonTitle+1)}}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateButtons(tt.buttons)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidButtons)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestClient_SendRateLimitHonoursContext(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = fmt.Fprint(w, `{"messages":[{"id":"wamid.3"}]}`)
	}))
	defer server.Close()

	logger, _ := testLogger()
	client := New(Config{
		BaseURL:       server.URL,
		PhoneNumberID: "123456",
		AccessToken:   "t",
		SendRate:      0.001,
	}, logger)
	require.NotNil(t, client.limiter)

	_, err := client.SendText(context.Background(), "521", "first")
	require.NoError(t, err, "burst of one passes immediately")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = client.SendText(ctx, "521", "second")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "send rate limit")
}

func TestClient_SendRateLimitBoundedByTimeout(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = fmt.Fprint(w, `{"messages":[{"id":"wamid.4"}]}`)
	}))
	defer server.Close()

	logger, _ := testLogger()
	client := New(Config{
		BaseURL:       server.URL,
		PhoneNumberID: "123456",
		AccessToken:   "t",
		Timeout:       100 * time.Millisecond,
		SendRate:      0.01,
	}, logger)

	_, err := client.SendText(context.Background(), "521", "first")
	require.NoError(t, err)

	// No deadline on the caller's context: the client timeout must still apply.
	start := time.Now()
	_, err = client.SendText(context.WithoutCancel(context.Background()), "521", "second")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "send rate limit")
	assert.Less(t, time.Since(start), time.Second)
}

func TestNew_AppliesDefaults(t *testing.T) {
	logger, _ := testLogger()
	client := New(Config{PhoneNumberID: "42"}, logger)

	assert.Equal(t, "https://graph.facebook.com/v22.0/42/messages", client.messagesURL())
	assert.Equal(t, DefaultTimeout, client.client.Timeout)
	assert.Nil(t, client.limiter)
}
