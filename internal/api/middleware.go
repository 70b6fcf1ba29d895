package api

import (
	"context"
	"errors"
	"net/http"
)

// Doer sends an HTTP request. *http.Client satisfies it.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// DoerFunc adapts a function to Doer.
type DoerFunc func(req *http.Request) (*http.Response, error)

// Do implements Doer.
func (f DoerFunc) Do(req *http.Request) (*http.Response, error) {
	return f(req)
}

// Middleware wraps a Doer.
type Middleware func(next Doer) Doer

// Chain wraps d so that the first middleware is the outermost.
func Chain(d Doer, middleware ...Middleware) Doer {
	for i := len(middleware) - 1; i >= 0; i-- {
		d = middleware[i](d)
	}
	return d
}

// BearerAuth attaches the stored access token, if any, to every request.
func BearerAuth(tokens *Tokens) Middleware {
	return func(next Doer) Doer {
		return DoerFunc(func(req *http.Request) (*http.Response, error) {
			if token := tokens.Access(); token != "" {
				req = req.Clone(req.Context())
				req.Header.Set("Authorization", "Bearer "+token)
			}
			return next.Do(req)
		})
	}
}

var errBodyNotReplayable = errors.New("request body cannot be replayed")

type retriedKey struct{}

// WithoutRefresh returns a context whose requests are not refreshed and
// replayed on a 401. Credential endpoints use it so a rejected login surfaces
// the server's message.
func WithoutRefresh(ctx context.Context) context.Context {
	return markRetried(ctx)
}

func markRetried(ctx context.Context) context.Context {
	return context.WithValue(ctx, retriedKey{}, true)
}

func wasRetried(ctx context.Context) bool {
	v, _ := ctx.Value(retriedKey{}).(bool)
	return v
}

// cloneForRetry returns a copy of req with a fresh body, marked as retried.
func cloneForRetry(req *http.Request) (*http.Request, error) {
	retry := req.Clone(markRetried(req.Context()))
	if req.Body != nil && req.Body != http.NoBody {
		if req.GetBody == nil {
			return nil, errBodyNotReplayable
		}
		body, err := req.GetBody()
		if err != nil {
			return nil, err
		}
		retry.Body = body
	}
	return retry, nil
}
