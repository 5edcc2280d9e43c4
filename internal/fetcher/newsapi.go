package fetcher

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"articlewave/internal/logger"
	"articlewave/internal/models"
)

// NewsAPISource получает главные новости страны из NewsAPI.
type NewsAPISource struct {
	client  *http.Client
	baseURL string
	apiKey  string
}

// NewNewsAPISource создаёт источник с базовым адресом baseURL (например https://newsapi.org/v2).
func NewNewsAPISource(baseURL, apiKey string, timeout time.Duration) *NewsAPISource {
	return &NewsAPISource{
		client:  &http.Client{Timeout: timeout},
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
	}
}

// Fetch запрашивает /top-headlines?country=..&apiKey=.. и разбирает ответ.
// Ответ со status "error" превращается в UpstreamReported с сообщением сервиса.
func (s *NewsAPISource) Fetch(ctx context.Context, country string) ([]models.Article, error) {
	endpoint, err := s.endpoint(country)
	if err != nil {
		return nil, NewSourceError(InvalidRequest, country, "", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, NewSourceError(InvalidRequest, country, "", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, NewSourceError(TransportFailure, country, "", err)
	}
	defer resp.Body.Close()

	var body models.TopHeadlinesResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		if resp.StatusCode != http.StatusOK {
			return nil, NewSourceError(TransportFailure, country, fmt.Sprintf("unexpected status code %d", resp.StatusCode), nil)
		}
		return nil, NewSourceError(DecodeFailure, country, "", err)
	}

	if body.Status == "error" {
		msg := "Unknown error from API"
		if body.Message != nil && *body.Message != "" {
			msg = *body.Message
		}
		return nil, NewSourceError(UpstreamReported, country, msg, nil)
	}
	if body.Status != "ok" {
		return nil, NewSourceError(DecodeFailure, country, fmt.Sprintf("unexpected status %q", body.Status), nil)
	}

	if body.TotalResults != nil {
		logger.Log.WithFields(logger.Fields{
			"country":       country,
			"total_results": *body.TotalResults,
		}).Debug("Top headlines received")
	}

	articles := make([]models.Article, 0, len(body.Articles))
	for _, a := range body.Articles {
		articles = append(articles, a.ToArticle())
	}
	return articles, nil
}

func (s *NewsAPISource) endpoint(country string) (string, error) {
	if strings.TrimSpace(country) == "" {
		return "", fmt.Errorf("country code is required")
	}
	if s.apiKey == "" {
		return "", fmt.Errorf("api key is required")
	}
	u, err := url.Parse(s.baseURL + "/top-headlines")
	if err != nil {
		return "", fmt.Errorf("invalid base url %s: %w", s.baseURL, err)
	}
	q := u.Query()
	q.Set("country", strings.ToLower(country))
	q.Set("apiKey", s.apiKey)
	u.RawQuery = q.Encode()
	return u.String(), nil
}
