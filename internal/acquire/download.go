// SPDX-License-Identifier: MPL-2.0

package acquire

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
)

// maxPayloadBytes caps a single download (1 GiB).
const maxPayloadBytes = 1 << 30

// download streams rawURL into path and returns the number of bytes written.
func download(ctx context.Context, client *http.Client, userAgent, rawURL, path string) (int64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, http.NoBody)
	if err != nil {
		return 0, fmt.Errorf("creating request: %w", err)
	}
	if userAgent != "" {
		req.Header.Set("User-Agent", userAgent)
	}

	resp, err := client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("GET %s: %w", redactURL(rawURL), err)
	}
	defer func() { _ = resp.Body.Close() }() // read-only response body

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return 0, &HTTPStatusError{URL: rawURL, StatusCode: resp.StatusCode}
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return 0, fmt.Errorf("creating payload file: %w", err)
	}

	n, copyErr := io.Copy(f, io.LimitReader(resp.Body, maxPayloadBytes+1))
	closeErr := f.Close()
	switch {
	case copyErr != nil:
		return n, fmt.Errorf("reading %s: %w", redactURL(rawURL), copyErr)
	case closeErr != nil:
		return n, fmt.Errorf("writing payload: %w", closeErr)
	case n > maxPayloadBytes:
		return n, ErrPayloadTooLarge
	case n == 0:
		return 0, ErrEmptyPayload
	}
	return n, nil
}

// redactURL strips query parameters and fragments from a URL for safe
// inclusion in logs and error messages.
func redactURL(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "<invalid URL>"
	}
	u.RawQuery = ""
	u.Fragment = ""
	u.User = nil
	return u.String()
}
