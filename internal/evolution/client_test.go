package evolution

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"conviaq_backend/platform/logger"
)

type testConfig struct {
	url string
}

func (c testConfig) GetEvolutionURL() string           { return c.url }
func (c testConfig) GetEvolutionAPIKey() string        { return "test-key" }
func (c testConfig) GetEvolutionWebhookSecret() string { return "hook-secret" }
func (c testConfig) IsEvolutionEnabled() bool          { return c.url != "" }

func TestSendTextSetsAPIKeyHeader(t *testing.T) {
	var gotKey, gotPath string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotKey = r.Header.Get("apikey")
		gotPath = r.URL.Path

		var req sendTextRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if req.Number != "5215512345678" || req.Text != "hola" {
			t.Errorf("request = %+v", req)
		}

		json.NewEncoder(w).Encode(map[string]any{
			"key": map[string]string{"id": "MSG123"},
		})
	}))
	defer server.Close()

	client := NewClient(testConfig{url: server.URL}, logger.New("test"))

	id, err := client.SendText(context.Background(), "tenant-1", "5215512345678", "hola")
	if err != nil {
		t.Fatalf("SendText: %v", err)
	}
	if id != "MSG123" {
		t.Fatalf("message id = %q, want MSG123", id)
	}
	if gotKey != "test-key" {
		t.Fatalf("apikey header = %q", gotKey)
	}
	if gotPath != "/message/sendText/tenant-1" {
		t.Fatalf("path = %q", gotPath)
	}
}

func TestConnectionState(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"instance": map[string]string{"state": "open"},
		})
	}))
	defer server.Close()

	client := NewClient(testConfig{url: server.URL}, logger.New("test"))

	state, err := client.ConnectionState(context.Background(), "tenant-1")
	if err != nil {
		t.Fatalf("ConnectionState: %v", err)
	}
	if state != "open" {
		t.Fatalf("state = %q, want open", state)
	}
}

func TestErrorStatusSurfacesBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"instance not found"}`, http.StatusNotFound)
	}))
	defer server.Close()

	client := NewClient(testConfig{url: server.URL}, logger.New("test"))

	_, err := client.ConnectionState(context.Background(), "ghost")
	var statusErr *StatusError
	if !errors.As(err, &statusErr) {
		t.Fatalf("err = %v, want StatusError", err)
	}
	if statusErr.StatusCode != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", statusErr.StatusCode)
	}
}

func TestDisabledClientRefusesCalls(t *testing.T) {
	client := NewClient(testConfig{}, logger.New("test"))

	if client.Enabled() {
		t.Fatalf("client should be disabled without a URL")
	}
	if _, err := client.SendText(context.Background(), "x", "1", "hi"); err == nil {
		t.Fatalf("expected error from disabled client")
	}
}
