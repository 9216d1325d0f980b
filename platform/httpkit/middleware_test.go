package httpkit

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
)

type staticJWTConfig struct {
	secret string
}

func (c staticJWTConfig) GetJWTAccessSecret() string { return c.secret }

func TestAuthRequiredRejectsMissingTokenWithAckEnvelope(t *testing.T) {
	gin.SetMode(gin.TestMode)
	engine := gin.New()
	engine.Use(AuthRequired(staticJWTConfig{secret: "topsecret"}))
	engine.PATCH("/leads/:id/stage", func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodPatch, "/leads/1/stage", nil)
	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}

	var body AckResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body.OK {
		t.Fatal("ok = true on a rejected request")
	}
	if body.Error != "missing token" {
		t.Fatalf("error = %q, want missing token", body.Error)
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(rec.Body.Bytes(), &raw); err != nil {
		t.Fatalf("decode raw body: %v", err)
	}
	if _, ok := raw["ok"]; !ok {
		t.Fatal(`body has no "ok" field`)
	}
}

func TestAuthRequiredRejectsGarbageToken(t *testing.T) {
	gin.SetMode(gin.TestMode)
	engine := gin.New()
	engine.Use(AuthRequired(staticJWTConfig{secret: "topsecret"}))
	engine.GET("/ping", func(c *gin.Context) { c.Status(http.StatusOK) })

	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set("Authorization", "Bearer not-a-jwt")
	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
	var body AckResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body.OK || body.Error != "invalid token" {
		t.Fatalf("body = %+v, want ok=false, invalid token", body)
	}
}
