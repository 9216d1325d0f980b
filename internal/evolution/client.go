// Package evolution is a thin HTTP client for the Evolution WhatsApp gateway.
// Every tenant gets one gateway instance; messages in and out of the platform
// flow through it.
package evolution

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"conviaq_backend/platform/config"
	"conviaq_backend/platform/logger"
)

// Client talks to a single Evolution API deployment.
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
	log     *logger.Logger
	enabled bool
}

func NewClient(cfg config.EvolutionConfig, log *logger.Logger) *Client {
	return &Client{
		baseURL: cfg.GetEvolutionURL(),
		apiKey:  cfg.GetEvolutionAPIKey(),
		http:    &http.Client{Timeout: 15 * time.Second},
		log:     log,
		enabled: cfg.IsEvolutionEnabled(),
	}
}

// Enabled reports whether a gateway is configured. Callers degrade to
// conversation-only mode when it is not.
func (c *Client) Enabled() bool {
	return c.enabled
}

// Instance is the gateway-side WhatsApp session for one tenant.
type Instance struct {
	InstanceName string `json:"instanceName"`
	Status       string `json:"status"`
}

type createInstanceRequest struct {
	InstanceName string `json:"instanceName"`
	Integration  string `json:"integration"`
	QRCode       bool   `json:"qrcode"`
	WebhookURL   string `json:"webhook,omitempty"`
}

// CreateInstance registers a new gateway instance for a tenant.
func (c *Client) CreateInstance(ctx context.Context, instanceName, webhookURL string) (Instance, error) {
	var out struct {
		Instance Instance `json:"instance"`
	}
	err := c.do(ctx, http.MethodPost, "/instance/create", createInstanceRequest{
		InstanceName: instanceName,
		Integration:  "WHATSAPP-BAILEYS",
		QRCode:       true,
		WebhookURL:   webhookURL,
	}, &out)
	if err != nil {
		return Instance{}, err
	}
	return out.Instance, nil
}

// ConnectionState reports the session state: open, connecting or close.
func (c *Client) ConnectionState(ctx context.Context, instanceName string) (string, error) {
	var out struct {
		Instance struct {
			State string `json:"state"`
		} `json:"instance"`
	}
	err := c.do(ctx, http.MethodGet, "/instance/connectionState/"+instanceName, nil, &out)
	if err != nil {
		return "", err
	}
	return out.Instance.State, nil
}

// Connect returns the pairing QR code for an instance that is not yet linked.
func (c *Client) Connect(ctx context.Context, instanceName string) (string, error) {
	var out struct {
		Base64 string `json:"base64"`
		Code   string `json:"code"`
	}
	err := c.do(ctx, http.MethodGet, "/instance/connect/"+instanceName, nil, &out)
	if err != nil {
		return "", err
	}
	if out.Base64 != "" {
		return out.Base64, nil
	}
	return out.Code, nil
}

type sendTextRequest struct {
	Number string `json:"number"`
	Text   string `json:"text"`
}

// SendText sends a plain text message to a phone number in E.164 digits.
// The returned id is the gateway's message id, used to correlate webhook
// delivery updates.
func (c *Client) SendText(ctx context.Context, instanceName, number, text string) (string, error) {
	var out struct {
		Key struct {
			ID string `json:"id"`
		} `json:"key"`
	}
	err := c.do(ctx, http.MethodPost, "/message/sendText/"+instanceName, sendTextRequest{
		Number: number,
		Text:   text,
	}, &out)
	if err != nil {
		return "", err
	}
	return out.Key.ID, nil
}

// DeleteInstance tears down a tenant's gateway session.
func (c *Client) DeleteInstance(ctx context.Context, instanceName string) error {
	return c.do(ctx, http.MethodDelete, "/instance/delete/"+instanceName, nil, nil)
}

// StatusError is a non-2xx gateway answer.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("evolution: status %d: %s", e.StatusCode, e.Body)
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	if !c.enabled {
		return fmt.Errorf("evolution: gateway not configured")
	}

	var body io.Reader
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("evolution: encode request: %w", err)
		}
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("evolution: build request: %w", err)
	}
	req.Header.Set("apikey", c.apiKey)
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("evolution: %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("evolution: read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &StatusError{StatusCode: resp.StatusCode, Body: string(raw)}
	}

	if out != nil && len(raw) > 0 {
		if err := json.Unmarshal(raw, out); err != nil {
			return fmt.Errorf("evolution: decode response: %w", err)
		}
	}
	return nil
}
