package vendors

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"strings"

	"github.com/bulkverify/credits-portal/pkg/api_client/helpers/httpclient"
)

func buildURL(base, endpoint string) (*url.URL, error) {
	base = strings.TrimSpace(base)
	if base == "" {
		return nil, ErrDisabled
	}
	pu, err := url.Parse(base)
	if err != nil {
		return nil, fmt.Errorf("invalid vendor base url: %w", err)
	}
	pu.Path = path.Join(pu.Path, endpoint)
	return pu, nil
}

// doJSON sends payload (when non-nil) as JSON and decodes a 2xx response into
// out (when non-nil).
func doJSON(ctx context.Context, vendor, method, base, endpoint string, headers map[string]string, payload, out any) error {
	pu, err := buildURL(base, endpoint)
	if err != nil {
		return err
	}

	var body io.Reader = http.NoBody
	if payload != nil {
		buf, err := json.Marshal(payload)
		if err != nil {
			return err
		}
		body = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, pu.String(), body)
	if err != nil {
		return err
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := httpclient.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &HTTPError{
			Vendor:     vendor,
			Endpoint:   endpoint,
			StatusCode: resp.StatusCode,
			Body:       strings.TrimSpace(string(data)),
		}
	}
	if out == nil || len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode %s %s response: %w", vendor, endpoint, err)
	}
	return nil
}
