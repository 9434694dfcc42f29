package connector

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/pkg/errors"
)

const maxErrorBody = 512

// NewHTTPClient returns a client whose transport keeps enough idle connections for every worker
// to reuse its own.
func NewHTTPClient(timeout time.Duration, insecureSkipVerify bool) *http.Client {
	t := http.DefaultTransport.(*http.Transport).Clone()
	t.MaxIdleConns = 2000
	t.MaxConnsPerHost = 2000
	t.MaxIdleConnsPerHost = 2000
	if insecureSkipVerify {
		t.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}
	}
	return &http.Client{
		Timeout:   timeout,
		Transport: t,
	}
}

// Request describes one JSON call against a backend.
type Request struct {
	Method string
	URL    string
	Header http.Header
	Body   any
	// Out receives the decoded response body when non-nil.
	Out any
}

// Do sends req and returns the status code. Status codes >= 300 are returned as *StatusError.
func Do(ctx context.Context, client *http.Client, req Request) (int, error) {
	var body io.Reader
	if req.Body != nil {
		data, err := json.Marshal(req.Body)
		if err != nil {
			return 0, errors.Wrap(err, "encoding request body")
		}
		body = bytes.NewReader(data)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, req.URL, body)
	if err != nil {
		return 0, errors.Wrap(err, "building request")
	}
	for k, vs := range req.Header {
		for _, v := range vs {
			httpReq.Header.Add(k, v)
		}
	}
	if req.Body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	httpReq.Header.Set("Accept", "application/json")

	resp, err := client.Do(httpReq)
	if err != nil {
		return 0, errors.Wrapf(err, "%s %s", req.Method, req.URL)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return resp.StatusCode, &StatusError{
			Method: req.Method,
			URL:    req.URL,
			Code:   resp.StatusCode,
			Body:   string(bytes.TrimSpace(b)),
		}
	}

	if req.Out != nil {
		if err := json.NewDecoder(resp.Body).Decode(req.Out); err != nil && err != io.EOF {
			return resp.StatusCode, errors.Wrapf(err, "decoding response of %s %s", req.Method, req.URL)
		}
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return resp.StatusCode, nil
}

// Retryable reports whether err is worth another attempt: transport failures, 429 and 5xx.
func Retryable(err error) bool {
	if err == nil {
		return false
	}
	var se *StatusError
	if errors.As(err, &se) {
		return se.Code == http.StatusTooManyRequests || se.Code >= 500
	}
	return !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded)
}

// Bearer returns an Authorization header carrying token.
func Bearer(token string) http.Header {
	h := http.Header{}
	h.Set("Authorization", "Bearer "+token)
	return h
}
