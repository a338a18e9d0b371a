package mailer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// FunctionSender posts messages to an HTTP "callable function" endpoint
// that performs the actual delivery. The request body is {"data": msg}.
type FunctionSender struct {
	URL  string
	HTTP *http.Client
}

// NewFunctionSender creates a sender with a bounded request timeout.
func NewFunctionSender(url string) *FunctionSender {
	return &FunctionSender{
		URL:  url,
		HTTP: &http.Client{Timeout: 10 * time.Second},
	}
}

func (c *FunctionSender) Send(ctx context.Context, msg Message) error {
	if err := msg.Validate(); err != nil {
		return err
	}
	if c.URL == "" {
		return fmt.Errorf("mail function url not configured")
	}

	body, err := json.Marshal(map[string]Message{"data": msg})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.URL, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return fmt.Errorf("mail function request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		bodyBytes, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("mail function error %s: %s", resp.Status, string(bodyBytes))
	}

	var out struct {
		Error *struct {
			Status  string `json:"status"`
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil && err != io.EOF {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	if out.Error != nil {
		return fmt.Errorf("mail function error %s: %s", out.Error.Status, out.Error.Message)
	}
	return nil
}

// Health checks that the endpoint answers at all.
func (c *FunctionSender) Health(ctx context.Context) error {
	if c.URL == "" {
		return fmt.Errorf("mail function url not configured")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodOptions, c.URL, nil)
	if err != nil {
		return err
	}
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return fmt.Errorf("mail function unavailable: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 500 {
		return fmt.Errorf("mail function unhealthy: %s", resp.Status)
	}
	return nil
}
