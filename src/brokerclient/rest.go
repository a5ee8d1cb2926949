package brokerclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/oakmont-systems/futures-engine/src/eventmodels"
)

// Get issues an authorized GET against the broker REST surface and decodes
// the JSON response into out.
func (c *Client) Get(ctx context.Context, path string, params url.Values, out interface{}) error {
	endpoint := c.restURL + path
	if len(params) > 0 {
		endpoint = fmt.Sprintf("%s?%s", endpoint, params.Encode())
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("Client:Get(): failed to create request: %w", err)
	}

	return c.do(req, true, out)
}

// Post issues an authorized POST with a JSON body.
func (c *Client) Post(ctx context.Context, path string, body, out interface{}) error {
	return c.post(ctx, path, body, true, out)
}

// doPost is the unauthorized variant used by the auth handshake itself.
func (c *Client) doPost(ctx context.Context, path string, body, out interface{}) error {
	return c.post(ctx, path, body, false, out)
}

func (c *Client) post(ctx context.Context, path string, body interface{}, authorized bool, out interface{}) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("Client:Post(): failed to marshal body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.restURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("Client:Post(): failed to create request: %w", err)
	}

	req.Header.Add("Content-Type", "application/json")

	return c.do(req, authorized, out)
}

func (c *Client) do(req *http.Request, authorized bool, out interface{}) error {
	req.Header.Add("Accept", "application/json")
	if authorized {
		req.Header.Add("Authorization", fmt.Sprintf("Bearer %s", c.Token().Trading))
	}

	res, err := c.httpClient.Do(req)
	if err != nil {
		return &eventmodels.TransportError{Op: req.URL.Path, Err: err}
	}

	defer res.Body.Close()

	responseBody, err := io.ReadAll(res.Body)
	if err != nil {
		return &eventmodels.TransportError{Op: req.URL.Path, Err: err}
	}

	if res.StatusCode == http.StatusUnauthorized {
		return &eventmodels.AuthError{Reason: res.Status}
	}

	if res.StatusCode >= 400 {
		return fmt.Errorf("Client:do(): %s returned %s: %s", req.URL.Path, res.Status, string(responseBody))
	}

	if out == nil {
		return nil
	}

	if err := json.Unmarshal(responseBody, out); err != nil {
		return fmt.Errorf("Client:do(): failed to parse response from %s: %w", req.URL.Path, err)
	}

	return nil
}
