package fetchers

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"
)

const (
	userAgent      = "courtwatch/1.0"
	maxPayloadSize = 4 << 20
	titleBudget    = 300
)

func defaultClient() *http.Client {
	return &http.Client{Timeout: 20 * time.Second}
}

func get(ctx context.Context, client *http.Client, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("source returned %s", resp.Status)
	}

	payload, err := io.ReadAll(io.LimitReader(resp.Body, maxPayloadSize))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	return payload, nil
}
