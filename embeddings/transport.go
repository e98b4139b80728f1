package embeddings

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
)

const maxErrorBody = 64 << 10

// StatusError is returned when a provider answers with a non-200 status.
type StatusError struct {
	Provider string
	Code     int
	Body     string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%s: status %d", e.Provider, e.Code)
	}
	return fmt.Sprintf("%s: status %d: %s", e.Provider, e.Code, e.Body)
}

// Temporary reports whether the provider may accept the same call later.
func (e *StatusError) Temporary() bool {
	return e.Code == http.StatusTooManyRequests || e.Code >= http.StatusInternalServerError
}

// Temporary reports whether err carries a provider status worth retrying.
func Temporary(err error) bool {
	var status *StatusError
	return errors.As(err, &status) && status.Temporary()
}

// Call is one JSON request to a provider endpoint.
type Call struct {
	Provider string
	Method   string
	URL      string
	Header   map[string]string
	In       any
	Out      any
}

// Do sends the call with client, decoding a 200 answer into c.Out.
func (c Call) Do(ctx context.Context, client *http.Client) error {
	var body io.Reader
	if c.In != nil {
		data, err := json.Marshal(c.In)
		if err != nil {
			return fmt.Errorf("%s: marshal request: %w", c.Provider, err)
		}
		body = bytes.NewReader(data)
	}
	method := c.Method
	if method == "" {
		method = http.MethodPost
	}
	req, err := http.NewRequestWithContext(ctx, method, c.URL, body)
	if err != nil {
		return fmt.Errorf("%s: create request: %w", c.Provider, err)
	}
	if c.In != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range c.Header {
		req.Header.Set(k, v)
	}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("%s: send request: %w", c.Provider, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return &StatusError{Provider: c.Provider, Code: resp.StatusCode, Body: strings.TrimSpace(string(data))}
	}
	if c.Out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(c.Out); err != nil {
		return fmt.Errorf("%s: decode response: %w", c.Provider, err)
	}
	return nil
}

// Single returns the only vector of a one-text embedding call.
func Single(vectors [][]float32, err error) ([]float32, error) {
	if err != nil {
		return nil, err
	}
	if err := CheckCount(vectors, 1); err != nil {
		return nil, err
	}
	return vectors[0], nil
}
