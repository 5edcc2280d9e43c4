package imagecache

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"
)

const maxImageBytes = 10 << 20

// Transport загружает сырые байты по URL. Отмена выполняется через ctx.
type Transport interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

// TransportFunc адаптирует функцию к Transport.
type TransportFunc func(ctx context.Context, url string) ([]byte, error)

func (f TransportFunc) Fetch(ctx context.Context, url string) ([]byte, error) {
	return f(ctx, url)
}

// HTTPTransport загружает миниатюры по HTTP.
type HTTPTransport struct {
	client   *http.Client
	maxBytes int64
}

// NewHTTPTransport создаёт транспорт с таймаутом timeout на запрос.
func NewHTTPTransport(timeout time.Duration) *HTTPTransport {
	return &HTTPTransport{
		client:   &http.Client{Timeout: timeout},
		maxBytes: maxImageBytes,
	}
}

func (t *HTTPTransport) Fetch(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request for url %s: %w", url, err)
	}
	req.Header.Set("Accept", "image/*")

	resp, err := t.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch url %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status code %d for url %s", resp.StatusCode, url)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, t.maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read body of %s: %w", url, err)
	}
	if int64(len(data)) > t.maxBytes {
		return nil, fmt.Errorf("image %s exceeds %d bytes", url, t.maxBytes)
	}
	return data, nil
}
