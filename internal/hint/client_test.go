package hint

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/wikiquiz-go/wikiquiz-round-backend/internal/platform/config"
)

func newTestClient(baseURL string) Client {
	return NewClient(config.HintConfig{
		BaseURL: baseURL,
		APIKey:  "test-key",
		Model:   "test-model",
		Timeout: 2 * time.Second,
	})
}

func TestAsk_SendsModelAndAuth(t *testing.T) {
	var gotBody askRequestBody
	var gotAuth string

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Errorf("failed to decode request body: %v", err)
		}
		json.NewEncoder(w).Encode(askResponseBody{Answer: "a helpful hint"})
	}))
	defer server.Close()

	answer, err := newTestClient(server.URL).Ask(context.Background(), Request{
		System:   "you are a hint assistant",
		Question: "is it in Europe?",
	})
	if err != nil {
		t.Fatalf("Ask failed: %v", err)
	}
	if answer != "a helpful hint" {
		t.Fatalf("unexpected answer %q", answer)
	}
	if gotAuth != "Bearer test-key" {
		t.Fatalf("unexpected auth header %q", gotAuth)
	}
	if gotBody.Model != "test-model" || gotBody.Question != "is it in Europe?" {
		t.Fatalf("unexpected request body: %+v", gotBody)
	}
}

func TestAsk_UpstreamHTTPError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	_, err := newTestClient(server.URL).Ask(context.Background(), Request{Question: "q"})
	if !errors.Is(err, ErrUpstreamUnavailable) {
		t.Fatalf("expected ErrUpstreamUnavailable, got %v", err)
	}
}

func TestAsk_UpstreamApplicationError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(askResponseBody{Error: "model overloaded"})
	}))
	defer server.Close()

	_, err := newTestClient(server.URL).Ask(context.Background(), Request{Question: "q"})
	if !errors.Is(err, ErrUpstreamUnavailable) {
		t.Fatalf("expected ErrUpstreamUnavailable, got %v", err)
	}
}

func TestAsk_UnreachableHost(t *testing.T) {
	_, err := newTestClient("http://127.0.0.1:1").Ask(context.Background(), Request{Question: "q"})
	if !errors.Is(err, ErrUpstreamUnavailable) {
		t.Fatalf("expected ErrUpstreamUnavailable, got %v", err)
	}
}

func TestAsk_HonorsContextCancellation(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(500 * time.Millisecond)
	}))
	defer server.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := newTestClient(server.URL).Ask(ctx, Request{Question: "q"})
	if err == nil {
		t.Fatalf("expected error for cancelled context")
	}
}
