package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/DoctorGattino/blog/types"
)

// maxErrorBody caps how much of a failed response is kept for diagnostics
const maxErrorBody = 4096

// doJSONRequest performs a JSON request with the given method, path, payload, and result.
// It attaches the session token, maps non-2xx responses onto the error kinds in types,
// and decodes the body into result unless result is nil.
func (c *Client) doJSONRequest(ctx context.Context, method, path string, payload, result interface{}) error {
	url := c.baseURL + path

	var body io.Reader
	if payload != nil {
		jsonData, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		body = bytes.NewBuffer(jsonData)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token := c.token(); token != "" {
		req.Header.Set("Authorization", "Token "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &types.APIError{
			Kind:   types.ErrTransportFailure,
			Method: method,
			Path:   path,
			Err:    err,
		}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		bodyBytes, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return classifyResponse(method, path, resp.StatusCode, bodyBytes)
	}

	if result != nil && resp.StatusCode != http.StatusNoContent {
		if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
			return &types.APIError{
				Kind:       types.ErrTransportFailure,
				Method:     method,
				Path:       path,
				StatusCode: resp.StatusCode,
				Err:        fmt.Errorf("failed to decode response: %w", err),
			}
		}
	}

	return nil
}

// classifyResponse turns a failed response into the matching error kind
func classifyResponse(method, path string, status int, body []byte) error {
	apiErr := &types.APIError{
		Method:     method,
		Path:       path,
		StatusCode: status,
		Body:       string(body),
	}

	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		apiErr.Kind = types.ErrUnauthenticated
		return apiErr
	case status == http.StatusNotFound:
		apiErr.Kind = types.ErrNotFound
		return apiErr
	case status >= 500:
		apiErr.Kind = types.ErrTransportFailure
		return apiErr
	}

	fields, ok := parseFieldErrors(body)
	if ok || status == http.StatusUnprocessableEntity {
		return &types.ValidationError{Fields: fields}
	}

	apiErr.Kind = types.ErrValidationFailed
	return apiErr
}

// parseFieldErrors reads {"errors": {"field": ["msg", ...] | "msg"}}
func parseFieldErrors(body []byte) (map[string][]string, bool) {
	var envelope struct {
		Errors map[string]json.RawMessage `json:"errors"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil || envelope.Errors == nil {
		return nil, false
	}

	fields := make(map[string][]string, len(envelope.Errors))
	for k, raw := range envelope.Errors {
		var list []string
		if err := json.Unmarshal(raw, &list); err == nil {
			fields[k] = list
			continue
		}
		var single string
		if err := json.Unmarshal(raw, &single); err == nil {
			fields[k] = []string{single}
			continue
		}
		fields[k] = []string{string(raw)}
	}
	return fields, true
}
