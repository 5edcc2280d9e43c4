package fetcher

import (
	"context"
	"strings"
	"sync"
	"time"

	"articlewave/internal/models"
)

// MockSource отдаёт фиксированные статьи без сети. Используется для демонстрации
// и UI-проверок: с задержкой, чтобы был виден индикатор загрузки, или с ошибкой,
// чтобы показать экран повтора.
type MockSource struct {
	delay   time.Duration
	failing bool

	mu    sync.Mutex
	calls map[string]int
}

// NewMockSource создаёт тестовый источник. failing включает постоянную ошибку.
func NewMockSource(delay time.Duration, failing bool) *MockSource {
	return &MockSource{delay: delay, failing: failing, calls: make(map[string]int)}
}

func (s *MockSource) Fetch(ctx context.Context, country string) ([]models.Article, error) {
	s.mu.Lock()
	s.calls[strings.ToLower(country)]++
	s.mu.Unlock()

	if s.delay > 0 {
		timer := time.NewTimer(s.delay)
		defer timer.Stop()
		select {
		case <-timer.C:
		case <-ctx.Done():
			return nil, NewSourceError(TransportFailure, country, "", ctx.Err())
		}
	}
	if s.failing {
		return nil, NewSourceError(UpstreamReported, country, "mocked API error", nil)
	}
	return StubArticles(country), nil
}

// Calls возвращает число запросов по стране.
func (s *MockSource) Calls(country string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[strings.ToLower(country)]
}

// StubArticles строит детерминированный список статей для страны.
func StubArticles(country string) []models.Article {
	country = strings.ToLower(country)
	return []models.Article{
		{
			Title:       "Top story (" + country + ")",
			Author:      models.StringPtr("Test Author"),
			Description: models.StringPtr("Test Description"),
			SourceURL:   "http://example.com/" + country + "/top",
			ImageURL:    models.StringPtr("http://example.com/" + country + "/image.png"),
			PublishedAt: "2021-05-01T12:34:56Z",
			Content:     models.StringPtr("Test Content"),
			SourceName:  models.StringPtr("source-name"),
		},
		{
			Title:       "Second story (" + country + ")",
			SourceURL:   "http://example.com/" + country + "/second",
			PublishedAt: "2021-05-01T10:00:00Z",
		},
	}
}
