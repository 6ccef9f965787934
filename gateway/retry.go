package gateway

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/jrsteele09/go-auth-client/metrics"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

// buildRetryClients derives the GET client, which retries transient failures,
// and the single attempt client used by every other method. Both share the
// instrumented transport and the per attempt timeout.
func (c *Client) buildRetryClients() {
	timeout := c.timeout
	if timeout <= 0 {
		timeout = c.httpClient.Timeout
	}
	base := c.httpClient.Transport
	if base == nil {
		base = http.DefaultTransport
	}
	httpClient := &http.Client{
		Transport:     &instrumentedTransport{base: base, metrics: c.metrics, now: c.nowFunc},
		Timeout:       timeout,
		CheckRedirect: c.httpClient.CheckRedirect,
		Jar:           c.httpClient.Jar,
	}
	c.retrying = c.newRetryClient(httpClient, c.retryAttempts)
	c.single = c.newRetryClient(httpClient, 0)
}

func (c *Client) newRetryClient(httpClient *http.Client, retryMax int) *retryablehttp.Client {
	rc := retryablehttp.NewClient()
	rc.HTTPClient = httpClient
	rc.RetryMax = retryMax
	rc.RetryWaitMin = c.retryDelay
	rc.RetryWaitMax = c.retryDelay * time.Duration(max(retryMax, 1))
	rc.CheckRetry = checkRetry
	rc.Backoff = linearBackoff
	rc.ErrorHandler = retryablehttp.PassthroughErrorHandler
	rc.Logger = nil
	if c.debug {
		rc.Logger = retryLogger{logger: c.logger}
	}
	m := c.metrics
	rc.RequestLogHook = func(_ retryablehttp.Logger, req *http.Request, retry int) {
		if retry > 0 {
			m.ObserveHTTPRetry(req.Method)
		}
	}
	return rc
}

// checkRetry retries network failures and 5xx responses. Caller cancellation
// and token source failures end the call immediately.
func checkRetry(ctx context.Context, resp *http.Response, err error) (bool, error) {
	if ctx.Err() != nil {
		return false, ctx.Err()
	}
	if err != nil {
		var cerr *credentialError
		if errors.As(err, &cerr) {
			return false, err
		}
		return true, nil
	}
	return shouldRetry(resp.StatusCode), nil
}

// linearBackoff waits RetryWaitMin*n before the nth retry.
func linearBackoff(wait, _ time.Duration, attemptNum int, _ *http.Response) time.Duration {
	return wait * time.Duration(attemptNum+1)
}

// instrumentedTransport records every attempt, retries included. Status 0
// marks a request that produced no response.
type instrumentedTransport struct {
	base    http.RoundTripper
	metrics *metrics.Metrics
	now     func() time.Time
}

func (t *instrumentedTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	start := t.now()
	resp, err := t.base.RoundTrip(req)
	status := 0
	if err == nil {
		status = resp.StatusCode
	}
	t.metrics.ObserveHTTPRequest(req.Method, status, t.now().Sub(start))
	return resp, err
}

type retryLogger struct {
	logger zerolog.Logger
}

var _ retryablehttp.LeveledLogger = retryLogger{}

func (l retryLogger) Error(msg string, keysAndValues ...any) {
	l.event(l.logger.Error(), msg, keysAndValues)
}

func (l retryLogger) Info(msg string, keysAndValues ...any) {
	l.event(l.logger.Info(), msg, keysAndValues)
}

func (l retryLogger) Debug(msg string, keysAndValues ...any) {
	l.event(l.logger.Debug(), msg, keysAndValues)
}

func (l retryLogger) Warn(msg string, keysAndValues ...any) {
	l.event(l.logger.Warn(), msg, keysAndValues)
}

func (l retryLogger) event(e *zerolog.Event, msg string, keysAndValues []any) {
	for i := 0; i+1 < len(keysAndValues); i += 2 {
		e = e.Interface(fmt.Sprint(keysAndValues[i]), keysAndValues[i+1])
	}
	e.Msg(msg)
}
