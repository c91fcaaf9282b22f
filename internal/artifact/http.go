package artifact

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/sells-group/natural-conversion/internal/resilience"
)

// HTTPStore keeps artifacts behind a base URL: HEAD to test, GET to read and
// PUT to write. It suits S3-compatible buckets with public-write or
// pre-authorised endpoints and plain WebDAV-style servers.
type HTTPStore struct {
	base    string
	client  *http.Client
	retry   resilience.Policy
	limiter *rate.Limiter
}

// NewHTTPStore returns a store rooted at base. A nil client gets a default
// client with a 5 minute timeout.
func NewHTTPStore(base string, opts Options, client *http.Client) *HTTPStore {
	if client == nil {
		client = &http.Client{Timeout: 5 * time.Minute}
	}
	s := &HTTPStore{
		base:    strings.TrimRight(base, "/"),
		client:  client,
		retry:   opts.Retry,
		limiter: newLimiter(opts.RequestsPerSecond),
	}
	s.retry.OnRetry = resilience.LogRetries("http", s.base)
	return s
}

func (s *HTTPStore) url(key string) (string, error) {
	k, err := cleanKey(key)
	if err != nil {
		return "", err
	}
	return s.base + "/" + k, nil
}

// do sends one request and classifies the status. The caller owns the
// response body on success.
func (s *HTTPStore) do(ctx context.Context, method, u string, body []byte) (*http.Response, error) {
	if err := wait(ctx, s.limiter); err != nil {
		return nil, err
	}
	var rd io.Reader
	if body != nil {
		rd = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, u, rd)
	if err != nil {
		return nil, eris.Wrapf(err, "build %s request", method)
	}
	if body != nil {
		req.ContentLength = int64(len(body))
		req.Header.Set("Content-Type", "application/octet-stream")
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, eris.Wrapf(err, "%s %s", method, u)
	}
	if resilience.IsTransientHTTPStatus(resp.StatusCode) {
		_ = resp.Body.Close()
		return nil, resilience.NewTransientError(
			eris.Errorf("%s %s: status %d", method, u, resp.StatusCode), resp.StatusCode)
	}
	return resp, nil
}

// Exists implements Store: 2xx is present, 404 is absent, anything else is
// an error.
func (s *HTTPStore) Exists(ctx context.Context, key string) (bool, error) {
	u, err := s.url(key)
	if err != nil {
		return false, err
	}
	return resilience.DoVal(ctx, s.retry, func(ctx context.Context) (bool, error) {
		resp, err := s.do(ctx, http.MethodHead, u, nil)
		if err != nil {
			return false, err
		}
		_ = resp.Body.Close()

		switch {
		case resp.StatusCode == http.StatusNotFound:
			return false, nil
		case resp.StatusCode >= 200 && resp.StatusCode < 300:
			return true, nil
		default:
			return false, eris.Errorf("HEAD %s: status %d", u, resp.StatusCode)
		}
	})
}

// Put implements Store.
func (s *HTTPStore) Put(ctx context.Context, key string, r io.Reader) error {
	u, err := s.url(key)
	if err != nil {
		return err
	}
	body, err := io.ReadAll(r)
	if err != nil {
		return eris.Wrapf(err, "artifact: read body for %s", key)
	}
	if body == nil {
		body = []byte{}
	}

	return resilience.Do(ctx, s.retry, func(ctx context.Context) error {
		resp, err := s.do(ctx, http.MethodPut, u, body)
		if err != nil {
			return err
		}
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return eris.Errorf("PUT %s: status %d", u, resp.StatusCode)
		}
		zap.L().Debug("http: stored artifact", zap.String("url", u), zap.Int("bytes", len(body)))
		return nil
	})
}

// Get implements Store.
func (s *HTTPStore) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	u, err := s.url(key)
	if err != nil {
		return nil, err
	}
	return resilience.DoVal(ctx, s.retry, func(ctx context.Context) (io.ReadCloser, error) {
		resp, err := s.do(ctx, http.MethodGet, u, nil)
		if err != nil {
			return nil, err
		}
		switch {
		case resp.StatusCode == http.StatusNotFound:
			_ = resp.Body.Close()
			return nil, eris.Wrapf(ErrNotFound, "key %s", key)
		case resp.StatusCode < 200 || resp.StatusCode >= 300:
			_ = resp.Body.Close()
			return nil, eris.Errorf("GET %s: status %d", u, resp.StatusCode)
		}
		return resp.Body, nil
	})
}
