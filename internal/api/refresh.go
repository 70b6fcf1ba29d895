package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
)

// RefreshPath is the token refresh endpoint.
const RefreshPath = "/api/v1/auth/refresh"

// TokenPair is the data payload of login and refresh responses.
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token,omitempty"`
}

// refresher exchanges the stored refresh token for a new access token.
//
// It must be given an uninstrumented client: going through the bearer/refresh
// chain would send a 401 from the refresh endpoint back into refresh.
type refresher struct {
	baseURL     string
	client      *http.Client
	tokens      *Tokens
	nav         Navigator
	reauthRoute string
}

func (r *refresher) refresh(ctx context.Context) (string, error) {
	refreshToken := r.tokens.Refresh()
	if refreshToken == "" {
		r.tokens.Clear()
		r.nav.Redirect(r.reauthRoute)
		return "", noRefreshTokenError()
	}

	payload, err := json.Marshal(map[string]string{"refresh_token": refreshToken})
	if err != nil {
		return "", fmt.Errorf("failed to encode refresh request: %w", err)
	}

	url := strings.TrimRight(r.baseURL, "/") + RefreshPath
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("failed to create refresh request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		return "", networkError(err)
	}
	defer resp.Body.Close()

	var pair TokenPair
	if err := decodeResponse(resp, &pair); err != nil {
		return "", err
	}
	if pair.AccessToken == "" {
		return "", &Error{Status: resp.StatusCode, Message: "Refresh response contained no access token"}
	}

	if err := r.tokens.Set(pair.AccessToken, pair.RefreshToken); err != nil {
		return "", fmt.Errorf("failed to store refreshed tokens: %w", err)
	}
	return pair.AccessToken, nil
}
