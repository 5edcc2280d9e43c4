package worker

import (
	"context"
	"fmt"

	"articlewave/internal/fetcher"
	"articlewave/internal/logger"
	"articlewave/internal/models"
)

// ArticleStore сохраняет статьи страны. Реализуется db.Database.
type ArticleStore interface {
	SaveArticles(ctx context.Context, country string, articles []models.Article) (int, error)
}

// Importer переносит статьи из удалённого источника в хранилище, откуда их затем
// читает db.Database как ArticleSource.
type Importer struct {
	source fetcher.ArticleSource
	store  ArticleStore
}

func NewImporter(source fetcher.ArticleSource, store ArticleStore) *Importer {
	return &Importer{source: source, store: store}
}

// Import загружает статьи страны и сохраняет их. Возвращает число сохранённых.
func (w *Importer) Import(ctx context.Context, country string) (int, error) {
	log := logger.Log.WithField("country", country)
	log.Info("Importing articles")

	articles, err := w.source.Fetch(ctx, country)
	if err != nil {
		log.Errorf("Fetch failed: %v", err)
		return 0, fmt.Errorf("import %s: %w", country, err)
	}

	saved, err := w.store.SaveArticles(ctx, country, articles)
	if err != nil {
		log.Errorf("Save articles failed: %v", err)
		return saved, fmt.Errorf("import %s: %w", country, err)
	}

	log.Infof("Imported %d articles", saved)
	return saved, nil
}

// ImportAll импортирует каждую страну по очереди. Ошибка одной страны не прерывает остальные;
// возвращается первая из них.
func (w *Importer) ImportAll(ctx context.Context, countries []string) (int, error) {
	var (
		total    int
		firstErr error
	)
	for _, country := range countries {
		if ctx.Err() != nil {
			return total, ctx.Err()
		}
		n, err := w.Import(ctx, country)
		total += n
		if err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return total, firstErr
}
