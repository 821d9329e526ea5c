package ollama

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/kirillkom/docs-assistant/internal/infrastructure/resilience"
)

const serviceName = "ollama"

func (c *Client) postJSON(ctx context.Context, path string, payload any, out any, operation string) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s request: %w", operation, err)
	}

	err = c.exec.Execute(ctx, "ollama."+operation, func(ctx context.Context) error {
		resp, err := c.send(ctx, path, body, operation)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decode %s response: %w", operation, err)
		}
		return nil
	}, resilience.ClassifyHTTPError)
	return resilience.WrapTemporary("ollama "+operation, err)
}

// openStream retries only until the response headers arrive; the caller owns
// the returned body.
func (c *Client) openStream(ctx context.Context, path string, payload any, operation string) (*http.Response, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal %s request: %w", operation, err)
	}

	resp, err := resilience.Call(ctx, c.exec, "ollama."+operation, func(ctx context.Context) (*http.Response, error) {
		return c.send(ctx, path, body, operation)
	}, resilience.ClassifyHTTPError)
	return resp, resilience.WrapTemporary("ollama "+operation, err)
}

func (c *Client) send(ctx context.Context, path string, body []byte, operation string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create %s request: %w", operation, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("ollama %s request: %w", operation, err)
	}
	if resp.StatusCode >= 300 {
		defer resp.Body.Close()
		return nil, resilience.NewHTTPStatusError(serviceName, operation, resp)
	}
	return resp, nil
}
