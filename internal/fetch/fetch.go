package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

// 上游订阅原文的大小上限, 超过视为下载失败
const maxBodyBytes = 16 << 20

var (
	ErrInvalidURL     = errors.New("subscription url is invalid")
	ErrDownloadFailed = errors.New("subscription download failed")
)

var httpClient = &http.Client{
	Timeout: 30 * time.Second,
}

// Subscription 从远程地址下载订阅原文
// 数据仅保存在内存中,不写入磁盘
func Subscription(ctx context.Context, rawURL string) ([]byte, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidURL, err)
	}
	if (parsed.Scheme != "http" && parsed.Scheme != "https") || parsed.Host == "" {
		return nil, fmt.Errorf("%w: %q", ErrInvalidURL, rawURL)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidURL, err)
	}
	req.Header.Set("User-Agent", "clash.meta")

	resp, err := httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDownloadFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: unexpected status %d from %s", ErrDownloadFailed, resp.StatusCode, rawURL)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes+1))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDownloadFailed, err)
	}
	if len(data) > maxBodyBytes {
		return nil, fmt.Errorf("%w: response body exceeds %d bytes", ErrDownloadFailed, maxBodyBytes)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty response body", ErrDownloadFailed)
	}

	return data, nil
}
