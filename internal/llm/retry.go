package llm

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/glance-db/glance/internal/glanceerr"
)

// httpError carries the status code through the retry decision so
// retryNonStreaming can distinguish 401 (permanent) from 429/5xx (transient).
type httpError struct {
	status int
	body   string
}

func (e *httpError) Error() string { return e.body }

func isRetryableStatus(status int) bool {
	return status == http.StatusTooManyRequests || status >= 500
}

// retryNonStreaming retries f up to 3 attempts total with exponential
// backoff starting at 1s, per §4.E. It never retries a 401 or a
// non-transient network error.
func retryNonStreaming(ctx context.Context, provider string, f func() (string, error)) (string, error) {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = time.Second
	policy := backoff.WithContext(backoff.WithMaxRetries(bo, 2), ctx)

	var result string
	err := backoff.Retry(func() error {
		r, err := f()
		if err == nil {
			result = r
			return nil
		}
		if httpErr, ok := err.(*httpError); ok {
			if httpErr.status == http.StatusUnauthorized {
				return backoff.Permanent(glanceerr.LlmErr("Authentication failed. Check your " + strings.ToUpper(provider) + "_API_KEY."))
			}
			if isRetryableStatus(httpErr.status) {
				return err
			}
			return backoff.Permanent(glanceerr.LlmErr(httpErr.body))
		}
		if isTransientNetErr(err) {
			return err
		}
		return backoff.Permanent(err)
	}, policy)

	if err != nil {
		if gErr, ok := err.(*glanceerr.Error); ok {
			return "", gErr
		}
		return "", glanceerr.LlmErr(err.Error())
	}
	return result, nil
}

func isTransientNetErr(err error) bool {
	msg := strings.ToLower(err.Error())
	for _, p := range []string{"timeout", "connection refused", "connection reset", "temporarily unavailable", "eof"} {
		if strings.Contains(msg, p) {
			return true
		}
	}
	return false
}
