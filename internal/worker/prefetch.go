package worker

import (
	"articlewave/internal/imagecache"
	"articlewave/internal/logger"
	"articlewave/internal/models"
)

// ImageFetcher запускает загрузку миниатюры, не дожидаясь её. Реализуется imagecache.Cache.
type ImageFetcher interface {
	Fetch(key string) *imagecache.Waiter
}

// Prefetcher раздаёт загрузки миниатюр для только что полученного списка статей.
type Prefetcher struct {
	images ImageFetcher
}

func NewPrefetcher(images ImageFetcher) *Prefetcher {
	return &Prefetcher{images: images}
}

// Prefetch запрашивает миниатюру каждой статьи с корректным URL и сразу возвращается.
// Результаты отдельных загрузок сюда не возвращаются: их получают через подписку кеша.
// Возвращает число запущенных запросов.
func (p *Prefetcher) Prefetch(articles []models.Article) int {
	if p == nil || p.images == nil {
		return 0
	}
	started := 0
	for _, a := range articles {
		if !a.HasImage() || !imagecache.ValidKey(*a.ImageURL) {
			continue
		}
		p.images.Fetch(*a.ImageURL)
		started++
	}
	if skipped := len(articles) - started; skipped > 0 {
		logger.Log.WithFields(logger.Fields{
			"requested": started,
			"skipped":   skipped,
		}).Debug("Prefetching thumbnails")
	}
	return started
}
