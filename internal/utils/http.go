package utils

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

// DoGetSync performs a synchronous HTTP GET request and decodes the JSON
// response body into OutputStruct.
//
// Error handling strategy:
//   - Context errors (timeout, cancellation) are propagated immediately
//   - HTTP errors (connection failures, non-2xx status) return the error
//   - JSON parsing errors include a response preview for debugging
//
// The response body is always closed before the function returns.
func DoGetSync[OutputStruct any](ctx context.Context, client *http.Client, url string, headers map[string]string) (*OutputStruct, error) {
	httpClient := client
	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("error creating request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	for key, value := range headers {
		req.Header.Set(key, value)
	}

	res, err := httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("error sending request: %w", err)
	}
	defer res.Body.Close() //nolint:errcheck

	respBody, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, fmt.Errorf("error reading response body: %w", err)
	}

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		return nil, fmt.Errorf("unexpected status %d: %s", res.StatusCode, TruncateString(string(respBody), 200))
	}

	output := new(OutputStruct)
	if err := json.Unmarshal(respBody, output); err != nil {
		return nil, fmt.Errorf("error parsing response (%s): %w", TruncateString(string(respBody), 200), err)
	}

	return output, nil
}
