package slackbridge

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"
)

const maxFileBytes = 20 * 1024 * 1024

var fileClient = &http.Client{Timeout: 30 * time.Second}

func (b *Bridge) fetcher(url string) func(context.Context) ([]byte, error) {
	return func(ctx context.Context) ([]byte, error) {
		return b.downloadFile(ctx, url)
	}
}

func (b *Bridge) downloadFile(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build file request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+b.botToken)

	resp, err := fileClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("download file: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("download file: unexpected status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxFileBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}
	if len(data) > maxFileBytes {
		return nil, fmt.Errorf("file too large: exceeds %d bytes", maxFileBytes)
	}
	return data, nil
}
