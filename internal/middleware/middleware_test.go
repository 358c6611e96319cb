package middleware

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/humatest"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/delordemm1/routine-notifier/internal/contextx"
)

type okResponse struct {
	Body struct {
		OK bool `json:"ok"`
	}
}

func cronAPI(t *testing.T, secret string) humatest.TestAPI {
	t.Helper()
	_, api := humatest.New(t)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	huma.Register(api, huma.Operation{
		Method:      http.MethodPost,
		Path:        "/cron",
		Middlewares: huma.Middlewares{CronSecretHuma(secret, logger)},
	}, func(ctx context.Context, input *struct{}) (*okResponse, error) {
		resp := &okResponse{}
		resp.Body.OK = true
		return resp, nil
	})
	return api
}

func TestCronSecretHuma(t *testing.T) {
	api := cronAPI(t, "s3cret")

	resp := api.Post("/cron")
	assert.Equal(t, http.StatusUnauthorized, resp.Code)
	assert.JSONEq(t, `{"error":"Unauthorized"}`, resp.Body.String())

	resp = api.Post("/cron", "Authorization: Bearer wrong")
	assert.Equal(t, http.StatusUnauthorized, resp.Code)

	resp = api.Post("/cron", "Authorization: s3cret")
	assert.Equal(t, http.StatusUnauthorized, resp.Code)

	resp = api.Post("/cron", "Authorization: Bearer s3cret")
	assert.Equal(t, http.StatusOK, resp.Code)
}

func TestCronSecretHuma_NoSecretConfigured(t *testing.T) {
	api := cronAPI(t, "")

	resp := api.Post("/cron")
	assert.Equal(t, http.StatusOK, resp.Code)
}

func TestCorrelationID(t *testing.T) {
	var seen string
	h := chimw.RequestID(CorrelationID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = contextx.CorrelationID(r.Context())
	})))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(CorrelationIDHeader, "abc-123")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, "abc-123", seen)
	assert.Equal(t, "abc-123", rec.Header().Get(CorrelationIDHeader))

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	require.NotEmpty(t, seen)
	assert.NotEqual(t, "abc-123", seen)
}
