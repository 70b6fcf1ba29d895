package api_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/johan-st/dbstudio/internal/api"
	"github.com/johan-st/dbstudio/internal/api/apimock"
	"github.com/johan-st/dbstudio/internal/storage"
	"github.com/johan-st/dbstudio/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uber-go/tally"
	"go.uber.org/mock/gomock"
)

type fixture struct {
	backend *testutil.Backend
	store   *storage.Memory
	client  *api.Client
	scope   tally.TestScope
}

func newFixture(t *testing.T, nav api.Navigator) *fixture {
	t.Helper()

	f := &fixture{
		backend: testutil.NewBackend(t),
		store:   storage.NewMemory(),
		scope:   tally.NewTestScope("", nil),
	}
	f.client = api.NewClient(api.Options{
		BaseURL:     f.backend.URL,
		Timeout:     5 * time.Second,
		ReauthRoute: "/login",
		Tokens:      api.NewTokens(f.store),
		Navigator:   nav,
		Logger:      testutil.NewLogger(t),
		Scope:       f.scope,
	})
	return f
}

func (f *fixture) seedTokens(t *testing.T, access, refresh string) {
	t.Helper()
	require.NoError(t, f.store.Set(storage.KeyAccessToken, access))
	require.NoError(t, f.store.Set(storage.KeyRefreshToken, refresh))
}

func (f *fixture) counter(name string) int64 {
	c, ok := f.scope.Snapshot().Counters()[name+"+"]
	if !ok {
		return 0
	}
	return c.Value()
}

type profile struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

// onlyWith answers 401 unless the request carries the given bearer token.
func onlyWith(token string, data any) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer "+token {
			testutil.WriteError(w, http.StatusUnauthorized, "Unauthorized")
			return
		}
		testutil.WriteData(w, http.StatusOK, data)
	}
}

func TestClient_AttachesBearerToken(t *testing.T) {
	f := newFixture(t, nil)
	f.seedTokens(t, "access-1", "refresh-1")
	f.backend.Router.Get("/api/v1/profile", onlyWith("access-1", profile{ID: "u1", Email: "a@b.c"}))

	var got profile
	err := f.client.Get(context.Background(), "/api/v1/profile", &got)
	require.NoError(t, err)
	assert.Equal(t, "u1", got.ID)

	calls := f.backend.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, "Bearer access-1", calls[0].Authorization)
	assert.Equal(t, int64(1), f.counter("requests"))
}

func TestClient_NoTokenSendsNoAuthorization(t *testing.T) {
	f := newFixture(t, nil)
	f.backend.Router.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		testutil.WriteData(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	require.NoError(t, f.client.Get(context.Background(), "/health", nil))
	assert.Empty(t, f.backend.Calls()[0].Authorization)
}

func TestClient_RefreshesOnceAndRetries(t *testing.T) {
	f := newFixture(t, nil)
	f.seedTokens(t, "expired", "refresh-1")

	f.backend.Router.Get("/api/v1/profile", onlyWith("access-2", profile{ID: "u1"}))
	f.backend.Router.Post(api.RefreshPath, func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		json.NewDecoder(r.Body).Decode(&body)
		if body["refresh_token"] != "refresh-1" {
			testutil.WriteError(w, http.StatusUnauthorized, "bad refresh token")
			return
		}
		testutil.WriteData(w, http.StatusOK, api.TokenPair{AccessToken: "access-2", RefreshToken: "refresh-2"})
	})

	var got profile
	err := f.client.Get(context.Background(), "/api/v1/profile", &got)
	require.NoError(t, err)
	assert.Equal(t, "u1", got.ID)

	access, _, _ := f.store.Get(storage.KeyAccessToken)
	refresh, _, _ := f.store.Get(storage.KeyRefreshToken)
	assert.Equal(t, "access-2", access)
	assert.Equal(t, "refresh-2", refresh)

	profileCalls := f.backend.CallsTo(http.MethodGet, "/api/v1/profile")
	require.Len(t, profileCalls, 2)
	assert.Equal(t, "Bearer expired", profileCalls[0].Authorization)
	assert.Equal(t, "Bearer access-2", profileCalls[1].Authorization)

	// The refresh call goes out on the bare client.
	refreshCalls := f.backend.CallsTo(http.MethodPost, api.RefreshPath)
	require.Len(t, refreshCalls, 1)
	assert.Empty(t, refreshCalls[0].Authorization)

	assert.Equal(t, int64(1), f.counter("refresh.success"))
	assert.Equal(t, int64(1), f.counter("retries"))
}

func TestClient_RefreshKeepsRefreshTokenWhenNotRotated(t *testing.T) {
	f := newFixture(t, nil)
	f.seedTokens(t, "expired", "refresh-1")

	f.backend.Router.Get("/api/v1/profile", onlyWith("access-2", profile{ID: "u1"}))
	f.backend.Router.Post(api.RefreshPath, func(w http.ResponseWriter, r *http.Request) {
		testutil.WriteData(w, http.StatusOK, map[string]string{"access_token": "access-2"})
	})

	require.NoError(t, f.client.Get(context.Background(), "/api/v1/profile", nil))

	refresh, ok, _ := f.store.Get(storage.KeyRefreshToken)
	assert.True(t, ok)
	assert.Equal(t, "refresh-1", refresh)
}

func TestClient_RefreshFailureClearsTokensAndRedirects(t *testing.T) {
	ctrl := gomock.NewController(t)
	nav := apimock.NewMockNavigator(ctrl)
	nav.EXPECT().Redirect("/login").Times(1)

	f := newFixture(t, nav)
	f.seedTokens(t, "expired", "revoked")

	f.backend.Router.Get("/api/v1/profile", onlyWith("never", nil))
	f.backend.Router.Post(api.RefreshPath, func(w http.ResponseWriter, r *http.Request) {
		testutil.WriteError(w, http.StatusUnauthorized, "refresh token revoked")
	})

	err := f.client.Get(context.Background(), "/api/v1/profile", nil)
	require.Error(t, err)

	var apiErr *api.Error
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusUnauthorized, apiErr.Status)
	assert.ErrorIs(t, err, api.ErrSessionExpired)
	assert.True(t, api.IsUnauthorized(err))

	_, ok, _ := f.store.Get(storage.KeyAccessToken)
	assert.False(t, ok, "access token should be cleared")
	_, ok, _ = f.store.Get(storage.KeyRefreshToken)
	assert.False(t, ok, "refresh token should be cleared")

	assert.Len(t, f.backend.CallsTo(http.MethodGet, "/api/v1/profile"), 1)
	assert.Equal(t, int64(1), f.counter("refresh.failure"))
}

func TestClient_NoRefreshToken(t *testing.T) {
	var redirects []string
	nav := api.NavigatorFunc(func(route string) { redirects = append(redirects, route) })

	f := newFixture(t, nav)
	require.NoError(t, f.store.Set(storage.KeyAccessToken, "expired"))
	f.backend.Router.Get("/api/v1/profile", onlyWith("never", nil))

	err := f.client.Get(context.Background(), "/api/v1/profile", nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, api.ErrNoRefreshToken)
	assert.Equal(t, "No refresh token available", err.Error())
	assert.True(t, api.IsUnauthorized(err))
	assert.Equal(t, []string{"/login"}, redirects)

	assert.Empty(t, f.backend.CallsTo(http.MethodPost, api.RefreshPath))
	_, ok, _ := f.store.Get(storage.KeyAccessToken)
	assert.False(t, ok)
}

func TestClient_RetriesAtMostOnce(t *testing.T) {
	f := newFixture(t, nil)
	f.seedTokens(t, "expired", "refresh-1")

	f.backend.Router.Get("/api/v1/profile", onlyWith("never", nil))
	f.backend.Router.Post(api.RefreshPath, func(w http.ResponseWriter, r *http.Request) {
		testutil.WriteData(w, http.StatusOK, api.TokenPair{AccessToken: "access-2"})
	})

	err := f.client.Get(context.Background(), "/api/v1/profile", nil)
	require.Error(t, err)
	assert.True(t, api.IsUnauthorized(err))
	assert.Equal(t, "Unauthorized", err.Error())

	assert.Len(t, f.backend.CallsTo(http.MethodGet, "/api/v1/profile"), 2)
	assert.Len(t, f.backend.CallsTo(http.MethodPost, api.RefreshPath), 1)
}

func TestClient_ReplaysRequestBody(t *testing.T) {
	f := newFixture(t, nil)
	f.seedTokens(t, "expired", "refresh-1")

	f.backend.Router.Put("/api/v1/profile", onlyWith("access-2", profile{ID: "u1", Email: "new@b.c"}))
	f.backend.Router.Post(api.RefreshPath, func(w http.ResponseWriter, r *http.Request) {
		testutil.WriteData(w, http.StatusOK, api.TokenPair{AccessToken: "access-2"})
	})

	var got profile
	err := f.client.Put(context.Background(), "/api/v1/profile", map[string]string{"email": "new@b.c"}, &got)
	require.NoError(t, err)

	calls := f.backend.CallsTo(http.MethodPut, "/api/v1/profile")
	require.Len(t, calls, 2)
	assert.JSONEq(t, `{"email":"new@b.c"}`, calls[0].Body)
	assert.JSONEq(t, `{"email":"new@b.c"}`, calls[1].Body)
	assert.Equal(t, "application/json", calls[1].ContentType)
}

func TestClient_UploadIsReplayed(t *testing.T) {
	f := newFixture(t, nil)
	f.seedTokens(t, "expired", "refresh-1")

	var attempts atomic.Int32
	f.backend.Router.Post("/api/v1/profile/picture", func(w http.ResponseWriter, r *http.Request) {
		attempts.Add(1)
		if r.Header.Get("Authorization") != "Bearer access-2" {
			testutil.WriteError(w, http.StatusUnauthorized, "Unauthorized")
			return
		}
		file, header, err := r.FormFile("file")
		if err != nil {
			testutil.WriteError(w, http.StatusBadRequest, err.Error())
			return
		}
		defer file.Close()
		testutil.WriteData(w, http.StatusOK, map[string]string{"filename": header.Filename})
	})
	f.backend.Router.Post(api.RefreshPath, func(w http.ResponseWriter, r *http.Request) {
		testutil.WriteData(w, http.StatusOK, api.TokenPair{AccessToken: "access-2"})
	})

	var got map[string]string
	err := f.client.Upload(context.Background(), http.MethodPost, "/api/v1/profile/picture",
		"file", "me.png", strings.NewReader("png-bytes"), &got)
	require.NoError(t, err)
	assert.Equal(t, "me.png", got["filename"])
	assert.Equal(t, int32(2), attempts.Load())
}

func TestClient_ErrorMessages(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantMsg string
	}{
		{
			name:    "error field",
			status:  http.StatusOK,
			body:    `{"success":false,"error":"X"}`,
			wantMsg: "X",
		},
		{
			name:    "message field",
			status:  http.StatusBadRequest,
			body:    `{"success":false,"message":"Bad things"}`,
			wantMsg: "Bad things",
		},
		{
			name:    "error wins over message",
			status:  http.StatusBadRequest,
			body:    `{"success":false,"error":"first","message":"second"}`,
			wantMsg: "first",
		},
		{
			name:    "details errors joined",
			status:  http.StatusBadRequest,
			body:    `{"success":false,"details":{"errors":["A","B"]}}`,
			wantMsg: "A; B",
		},
		{
			name:    "validation errors joined",
			status:  http.StatusUnprocessableEntity,
			body:    `{"success":false,"details":{"validation_errors":[{"field":"email","message":"is required"},{"field":"name","message":"too long"}]}}`,
			wantMsg: "email: is required; name: too long",
		},
		{
			name:    "status text fallback",
			status:  http.StatusForbidden,
			body:    `{"success":false}`,
			wantMsg: "Forbidden",
		},
		{
			name:    "non-json error body",
			status:  http.StatusBadGateway,
			body:    `<html>bad gateway</html>`,
			wantMsg: "Bad Gateway",
		},
		{
			name:    "non-json success body",
			status:  http.StatusOK,
			body:    `not json`,
			wantMsg: "Invalid response from server",
		},
		{
			name:    "success without data",
			status:  http.StatusOK,
			body:    `{"success":true}`,
			wantMsg: "Response contained no data",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, nil)
			f.backend.Router.Get("/thing", func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			})

			var out map[string]any
			err := f.client.Get(context.Background(), "/thing", &out)
			require.Error(t, err)

			var apiErr *api.Error
			require.ErrorAs(t, err, &apiErr)
			assert.Equal(t, tt.wantMsg, apiErr.Message)
			assert.Equal(t, tt.status, apiErr.Status)
		})
	}
}

func TestClient_VoidCallAcceptsMissingData(t *testing.T) {
	f := newFixture(t, nil)
	f.backend.Router.Post("/api/v1/auth/logout", func(w http.ResponseWriter, r *http.Request) {
		testutil.WriteJSON(w, http.StatusOK, map[string]any{"success": true, "message": "Logged out"})
	})

	assert.NoError(t, f.client.Post(context.Background(), "/api/v1/auth/logout", nil, nil))
}

func TestClient_DetailsArePreserved(t *testing.T) {
	f := newFixture(t, nil)
	f.backend.Router.Post("/api/v1/auth/register", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"success":false,"error":"Validation failed","details":{"validation_errors":[{"field":"email","message":"taken"}]}}`))
	})

	err := f.client.Post(context.Background(), "/api/v1/auth/register", map[string]string{"email": "a@b.c"}, nil)

	var apiErr *api.Error
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "Validation failed", apiErr.Message)
	require.NotNil(t, apiErr.Details)
	require.Len(t, apiErr.Details.ValidationErrors, 1)
	assert.Equal(t, "email", apiErr.Details.ValidationErrors[0].Field)
}

func TestClient_NetworkError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	scope := tally.NewTestScope("", nil)
	client := api.NewClient(api.Options{
		BaseURL: url,
		Timeout: time.Second,
		Tokens:  api.NewTokens(storage.NewMemory()),
		Scope:   scope,
	})

	err := client.Get(context.Background(), "/anything", nil)
	require.Error(t, err)

	var apiErr *api.Error
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, 0, apiErr.Status)
	assert.Equal(t, "Network error: unable to reach the server", apiErr.Message)
	assert.True(t, errors.Is(err, api.ErrNetwork))

	c, ok := scope.Snapshot().Counters()["errors+status=0"]
	require.True(t, ok)
	assert.Equal(t, int64(1), c.Value())
}

func TestClient_Reconfigure(t *testing.T) {
	old := testutil.NewBackend(t)
	f := newFixture(t, nil)
	f.client.Reconfigure(old.URL+"/", 0)
	assert.Equal(t, old.URL, f.client.BaseURL())

	f.client.Reconfigure(f.backend.URL, time.Second)
	f.backend.Router.Get("/ping", func(w http.ResponseWriter, r *http.Request) {
		testutil.WriteData(w, http.StatusOK, "pong")
	})

	var got string
	require.NoError(t, f.client.Get(context.Background(), "/ping", &got))
	assert.Equal(t, "pong", got)
	assert.Empty(t, old.Calls())
}

func TestClient_RefreshTokenDirect(t *testing.T) {
	f := newFixture(t, nil)
	f.seedTokens(t, "a1", "r1")
	f.backend.Router.Post(api.RefreshPath, func(w http.ResponseWriter, r *http.Request) {
		testutil.WriteData(w, http.StatusOK, api.TokenPair{AccessToken: "a2", RefreshToken: "r2"})
	})

	token, err := f.client.RefreshToken(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "a2", token)
	assert.Equal(t, "a2", f.client.Tokens().Access())
	assert.Equal(t, "r2", f.client.Tokens().Refresh())
}
