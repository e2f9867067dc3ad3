package probe

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

// HealthResult is the outcome of an HTTP health probe. The three states the
// caller must be able to tell apart:
//
//	Reachable=false                  connection never completed
//	Reachable=true, StatusOK=false   server answered with a non-2xx status
//	Reachable=true, StatusOK=true    healthy
type HealthResult struct {
	Reachable  bool
	StatusOK   bool
	StatusCode int
	Latency    time.Duration
	Class      LatencyClass
	ObservedAt time.Time
}

// HTTP issues a single GET against rawURL bounded by timeout. Connection
// failures are a normal unreachable result; only a malformed URL is an error.
func HTTP(ctx context.Context, rawURL string, timeout time.Duration) (HealthResult, error) {
	u, err := url.Parse(rawURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return HealthResult{}, fmt.Errorf("invalid health url %q", rawURL)
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	reqCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, u.String(), nil)
	if err != nil {
		return HealthResult{}, err
	}
	client := &http.Client{Timeout: timeout}
	started := time.Now()
	resp, err := client.Do(req)
	elapsed := time.Since(started)
	res := HealthResult{Latency: elapsed, ObservedAt: started}
	if err != nil {
		if isTimeout(err) {
			res.Class = LatencyTimeout
		} else {
			res.Class = classify(false, elapsed, timeout)
		}
		return res, nil
	}
	defer func() {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		_ = resp.Body.Close()
	}()
	res.Reachable = true
	res.StatusCode = resp.StatusCode
	res.StatusOK = resp.StatusCode >= 200 && resp.StatusCode < 300
	res.Class = classify(true, elapsed, timeout)
	return res, nil
}
