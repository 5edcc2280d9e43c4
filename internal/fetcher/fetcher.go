package fetcher

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"articlewave/internal/models"

	"github.com/PuerkitoBio/goquery"
	"github.com/mmcdole/gofeed"
)

// RSSSource читает статьи из RSS/Atom-ленты, назначенной стране.
type RSSSource struct {
	client *http.Client
	feeds  map[string]string
}

// NewRSSSource создаёт источник по соответствию «код страны → URL ленты».
func NewRSSSource(feeds map[string]string, timeout time.Duration) *RSSSource {
	normalized := make(map[string]string, len(feeds))
	for country, u := range feeds {
		normalized[strings.ToLower(country)] = u
	}
	return &RSSSource{
		client: &http.Client{Timeout: timeout},
		feeds:  normalized,
	}
}

func (s *RSSSource) Fetch(ctx context.Context, country string) ([]models.Article, error) {
	feedURL, ok := s.feeds[strings.ToLower(country)]
	if !ok {
		return nil, NewSourceError(InvalidRequest, country, "no feed configured", nil)
	}
	articles, err := FetchRSS(ctx, s.client, feedURL)
	if err != nil {
		if se, ok := err.(*SourceError); ok {
			se.Country = country
			return nil, se
		}
		return nil, NewSourceError(TransportFailure, country, "", err)
	}
	return articles, nil
}

// FetchRSS загружает ленту по url и переводит её элементы в статьи.
func FetchRSS(ctx context.Context, client *http.Client, url string) ([]models.Article, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, NewSourceError(InvalidRequest, "", "", err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, NewSourceError(TransportFailure, "", "", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, NewSourceError(TransportFailure, "", fmt.Sprintf("unexpected status code %d for url %s", resp.StatusCode, url), nil)
	}

	feed, err := gofeed.NewParser().Parse(resp.Body)
	if err != nil {
		return nil, NewSourceError(DecodeFailure, "", "", err)
	}

	articles := make([]models.Article, 0, len(feed.Items))
	for _, item := range feed.Items {
		articles = append(articles, itemToArticle(feed, item))
	}
	return articles, nil
}

func itemToArticle(feed *gofeed.Feed, item *gofeed.Item) models.Article {
	published := item.Published
	if item.PublishedParsed != nil {
		published = item.PublishedParsed.UTC().Format(time.RFC3339)
	} else if item.UpdatedParsed != nil {
		published = item.UpdatedParsed.UTC().Format(time.RFC3339)
	}

	var author string
	if len(item.Authors) > 0 && item.Authors[0] != nil {
		author = item.Authors[0].Name
	}

	text, inlineImage := inspectHTML(item.Description)
	content, contentImage := inspectHTML(item.Content)

	return models.Article{
		Title:       strings.TrimSpace(item.Title),
		Author:      models.StringPtr(author),
		Description: models.StringPtr(text),
		SourceURL:   item.Link,
		ImageURL:    models.StringPtr(firstNonEmpty(itemImage(item), inlineImage, contentImage)),
		PublishedAt: published,
		Content:     models.StringPtr(content),
		SourceName:  models.StringPtr(feed.Title),
	}
}

// itemImage ищет миниатюру в явных полях элемента: image, затем вложения-картинки.
func itemImage(item *gofeed.Item) string {
	if item.Image != nil && item.Image.URL != "" {
		return item.Image.URL
	}
	for _, enc := range item.Enclosures {
		if enc != nil && strings.HasPrefix(enc.Type, "image/") {
			return enc.URL
		}
	}
	return ""
}

// inspectHTML возвращает текст фрагмента без разметки и src первой картинки в нём.
func inspectHTML(fragment string) (string, string) {
	if strings.TrimSpace(fragment) == "" {
		return "", ""
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(fragment))
	if err != nil {
		return strings.TrimSpace(fragment), ""
	}
	src, _ := doc.Find("img").First().Attr("src")
	text := strings.Join(strings.Fields(doc.Text()), " ")
	return text, src
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
