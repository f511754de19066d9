package health

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"
)

// CheckHTTPServer checks that the server at address answers healthPath with a 2xx status.
func CheckHTTPServer(address string, healthPath string) func(context.Context, bool) (int, string, error) {
	client := &http.Client{Timeout: 2 * time.Second}

	return func(ctx context.Context, _ bool) (int, string, error) {
		target, err := url.JoinPath(address, healthPath)
		if err != nil {
			return http.StatusServiceUnavailable, fmt.Sprintf("invalid health url %s%s", address, healthPath), err
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
		if err != nil {
			return http.StatusServiceUnavailable, fmt.Sprintf("HTTP server at %s failed to create request", address), err
		}

		resp, err := client.Do(req)
		if err != nil {
			return http.StatusServiceUnavailable, fmt.Sprintf("HTTP server at %s not accepting connections", address), err
		}

		_ = resp.Body.Close()

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return http.StatusServiceUnavailable, fmt.Sprintf("HTTP server at %s returned status %d", address, resp.StatusCode), nil
		}

		return http.StatusOK, fmt.Sprintf("HTTP server at %s is listening", address), nil
	}
}
