package httpclient

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"
)

// HTTPClient is shared by all outbound clients; tests swap it for the
// client of an httptest server.
var HTTPClient = &http.Client{Timeout: 30 * time.Second}

// GetBytes downloads url and returns the body when the status is 2xx.
func GetBytes(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		return nil, err
	}
	resp, err := HTTPClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("download failed: %s", resp.Status)
	}
	return data, nil
}
