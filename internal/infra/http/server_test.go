package http

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func TestHealthz(t *testing.T) {
	srv := NewServer(":0", zerolog.Nop())
	rec := httptest.NewRecorder()
	srv.Router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("ожидали 200, получили %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"ok"`) {
		t.Fatalf("неожиданное тело: %s", rec.Body.String())
	}
}

func TestWebhookSecretMiddleware(t *testing.T) {
	srv := NewServer(":0", zerolog.Nop())
	srv.Router.With(WebhookSecretMiddleware("s3cret")).Post("/bot/webhook", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	rec := httptest.NewRecorder()
	srv.Router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/bot/webhook", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("без секрета ожидали 401, получили %d", rec.Code)
	}

	req := httptest.NewRequest(http.MethodPost, "/bot/webhook", nil)
	req.Header.Set(SecretTokenHeader, "s3cret")
	rec = httptest.NewRecorder()
	srv.Router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("с секретом ожидали 200, получили %d", rec.Code)
	}
}

func TestWebhookSecretDisabled(t *testing.T) {
	handler := WebhookSecretMiddleware("")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/", nil))
	if rec.Code != http.StatusNoContent {
		t.Fatalf("пустой секрет должен отключать проверку, получили %d", rec.Code)
	}
}

func TestServeStopsOnCancel(t *testing.T) {
	srv := NewServer("127.0.0.1:0", zerolog.Nop())
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Serve(ctx) }()
	time.Sleep(20 * time.Millisecond)
	cancel()
	select {
	case err := <-done:
		if err != context.Canceled {
			t.Fatalf("ожидали context.Canceled, получили %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("сервер не остановился")
	}
}
