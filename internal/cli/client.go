package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"tradebook/internal/model"
)

// Client talks to a tradebook server.
type Client struct {
	base string
	http *http.Client
}

// NewClient creates a client for the server at base, e.g. http://localhost:8000.
func NewClient(base string, hc *http.Client) *Client {
	if hc == nil {
		hc = &http.Client{Timeout: 10 * time.Second}
	}
	return &Client{base: strings.TrimRight(base, "/"), http: hc}
}

// APIError is a non-2xx response.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("server returned %d: %s", e.Status, e.Message)
}

// Get fetches path and returns the raw JSON body.
func (c *Client) Get(ctx context.Context, path string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base+path, nil)
	if err != nil {
		return nil, err
	}
	return c.do(req)
}

// Submit posts a trade request. otp is sent in the X-OTP header when set.
func (c *Client) Submit(ctx context.Context, tr model.TradeRequest, otp string) ([]byte, error) {
	body, err := json.Marshal(tr)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+"/trades", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if otp != "" {
		req.Header.Set("X-OTP", otp)
	}
	return c.do(req)
}

func (c *Client) do(req *http.Request) ([]byte, error) {
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", req.Method, req.URL.Path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode >= 300 {
		return nil, &APIError{Status: resp.StatusCode, Message: errorMessage(body)}
	}
	return body, nil
}

// errorMessage flattens {"error": "..."} and {"error": {field: [msgs]}}.
func errorMessage(body []byte) string {
	var env struct {
		Error json.RawMessage `json:"error"`
	}
	if err := json.Unmarshal(body, &env); err != nil || len(env.Error) == 0 {
		return strings.TrimSpace(string(body))
	}
	var msg string
	if json.Unmarshal(env.Error, &msg) == nil {
		return msg
	}
	var fields map[string][]string
	if json.Unmarshal(env.Error, &fields) == nil {
		names := make([]string, 0, len(fields))
		for f := range fields {
			names = append(names, f)
		}
		sort.Strings(names)
		parts := make([]string, 0, len(names))
		for _, f := range names {
			parts = append(parts, f+": "+strings.Join(fields[f], " "))
		}
		return strings.Join(parts, "; ")
	}
	return string(env.Error)
}

func symbolPath(prefix, symbol string, q url.Values) string {
	p := prefix + "/" + url.PathEscape(model.NormalizeSymbol(symbol))
	if len(q) > 0 {
		p += "?" + q.Encode()
	}
	return p
}
