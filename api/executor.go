package api

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/gravitational/trace"
	"github.com/tidwall/gjson"

	"github.com/pixiscript/dashboard/lib/logger"
)

const (
	backendMaxConns    = 100
	backendHTTPTimeout = 10 * time.Second
)

func makeBackendClient(baseURL string) *resty.Client {
	return resty.
		NewWithClient(&http.Client{
			Timeout: backendHTTPTimeout,
			Transport: &http.Transport{
				MaxConnsPerHost:     backendMaxConns,
				MaxIdleConnsPerHost: backendMaxConns,
			},
		}).
		SetHeader("Accept", "application/json").
		SetBaseURL(strings.TrimRight(baseURL, "/"))
}

// Executor issues single authenticated requests against the backend
// API and normalizes every failure mode into a RequestError. It is
// token-agnostic: callers hand it an already-validated access token,
// keeping refresh decisions out of the transport path. It never
// retries; retry policy belongs to the caller.
type Executor struct {
	client *resty.Client
}

// NewExecutor returns an executor for the API at baseURL.
func NewExecutor(baseURL string) *Executor {
	return &Executor{client: makeBackendClient(baseURL)}
}

// Do issues one request. A 204 response yields a nil body without any
// JSON parsing; any other 2xx yields the raw response body.
func (e *Executor) Do(ctx context.Context, method, path string, body interface{}, token string) ([]byte, error) {
	req := e.client.R().
		SetContext(ctx).
		SetHeader("Authorization", "Bearer "+token).
		SetHeader("Content-Type", "application/json")
	if body != nil {
		req.SetBody(body)
	}
	resp, err := req.Execute(method, path)
	return e.result(ctx, resp, err, method, path)
}

// DownloadBinary issues a GET for a binary (file) response. The JSON
// content-type override is deliberately omitted.
func (e *Executor) DownloadBinary(ctx context.Context, path, token string) ([]byte, error) {
	resp, err := e.client.R().
		SetContext(ctx).
		SetHeader("Authorization", "Bearer "+token).
		Get(path)
	return e.result(ctx, resp, err, http.MethodGet, path)
}

func (e *Executor) result(ctx context.Context, resp *resty.Response, err error, method, path string) ([]byte, error) {
	log := logger.Get(ctx)
	if err != nil {
		log.WithError(err).Errorf("%s %s failed without an HTTP response", method, path)
		return nil, trace.Wrap(&RequestError{
			Method:  method,
			Path:    path,
			Message: err.Error(),
		})
	}

	status := resp.StatusCode()
	switch {
	case status == http.StatusNoContent:
		return nil, nil
	case status >= http.StatusOK && status < http.StatusMultipleChoices:
		return resp.Body(), nil
	}

	message := gjson.GetBytes(resp.Body(), "message").String()
	if message == "" {
		message = fmt.Sprintf("Request failed with status %d", status)
	}
	log.Errorf("%s %s: %s (status %d)", method, path, message, status)
	return nil, trace.Wrap(&RequestError{
		Status:  status,
		Method:  method,
		Path:    path,
		Message: message,
	})
}
