package importer

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"
)

// MaxPayloadSize bounds a downloaded or uploaded export.
const MaxPayloadSize = 32 << 20

// retryBackoff is the wait before the given retry attempt (1-based).
var retryBackoff = func(attempt int) time.Duration {
	return time.Duration(1<<uint(attempt)) * time.Second
}

// Fetch downloads an export from url with three attempts.
func Fetch(ctx context.Context, url string) ([]byte, error) {
	client := &http.Client{Timeout: 2 * time.Minute}

	var lastErr error
	for attempt := 0; attempt < 3; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(retryBackoff(attempt)):
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return nil, fmt.Errorf("create request: %w", err)
		}

		resp, err := client.Do(req)
		if err != nil {
			lastErr = err
			continue
		}

		if resp.StatusCode != http.StatusOK {
			resp.Body.Close()
			lastErr = fmt.Errorf("HTTP %d for %s", resp.StatusCode, url)
			continue
		}

		var buf bytes.Buffer
		n, copyErr := io.Copy(&buf, io.LimitReader(resp.Body, MaxPayloadSize+1))
		resp.Body.Close()
		if copyErr != nil {
			lastErr = copyErr
			continue
		}
		if n > MaxPayloadSize {
			return nil, fmt.Errorf("payload at %s exceeds %d bytes", url, MaxPayloadSize)
		}
		return buf.Bytes(), nil
	}
	return nil, fmt.Errorf("download %s failed after 3 attempts: %w", url, lastErr)
}
