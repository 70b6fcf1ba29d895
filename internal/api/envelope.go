package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

// maxBodySize bounds how much of a response body is read.
const maxBodySize = 10 << 20

// Envelope is the common response wrapper of the backend.
type Envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data,omitempty"`
	Error   string          `json:"error,omitempty"`
	Message string          `json:"message,omitempty"`
	Details *Details        `json:"details,omitempty"`
}

// HasData reports whether the envelope carries a non-null data payload.
func (e *Envelope) HasData() bool {
	d := bytes.TrimSpace(e.Data)
	return len(d) > 0 && !bytes.Equal(d, []byte("null"))
}

// decodeResponse reads resp and unmarshals the envelope's data into out.
// A nil out accepts an envelope without data.
func decodeResponse(resp *http.Response, out any) error {
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return networkError(err)
	}

	ok := resp.StatusCode >= 200 && resp.StatusCode < 300

	var env Envelope
	if err := json.Unmarshal(body, &env); err != nil {
		if !ok {
			return &Error{Status: resp.StatusCode, Message: errorMessage(nil, resp.StatusCode)}
		}
		return &Error{
			Status:  resp.StatusCode,
			Message: "Invalid response from server",
			cause:   fmt.Errorf("failed to decode envelope: %w", err),
		}
	}

	if !ok || !env.Success {
		return &Error{
			Status:  resp.StatusCode,
			Message: errorMessage(&env, resp.StatusCode),
			Details: env.Details,
		}
	}

	if out == nil {
		return nil
	}
	if !env.HasData() {
		return &Error{Status: resp.StatusCode, Message: "Response contained no data"}
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return &Error{
			Status:  resp.StatusCode,
			Message: "Invalid response from server",
			cause:   fmt.Errorf("failed to decode data: %w", err),
		}
	}
	return nil
}
