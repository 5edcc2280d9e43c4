// Package controller управляет списком статей выбранной страны: состояние
// Idle/Loading/Loaded/Error, повтор, фоновое обновление и предзагрузка миниатюр.
package controller

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"articlewave/internal/fetcher"
	"articlewave/internal/imagecache"
	"articlewave/internal/logger"
	"articlewave/internal/metrics"
	"articlewave/internal/models"
	"articlewave/internal/notify"
	"articlewave/internal/worker"
)

// Images: часть кеша миниатюр, нужная контроллеру.
type Images interface {
	Fetch(key string) *imagecache.Waiter
	Cancel(key string)
}

// Option меняет настройки контроллера.
type Option func(*Controller)

// WithDiscardStale включает режим «побеждает последний запрос»: ответ на запрос,
// после которого был сделан новый, отбрасывается. По умолчанию побеждает последний
// пришедший ответ.
func WithDiscardStale(discard bool) Option {
	return func(c *Controller) {
		c.discardStale = discard
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Controller) {
		c.metrics = m
	}
}

// WithCountry задаёт страну, которую используют Retry и Refresh до первого выбора.
func WithCountry(code string) Option {
	return func(c *Controller) {
		if code != "" {
			c.country = strings.ToLower(code)
		}
	}
}

// Controller: конечный автомат списка статей.
type Controller struct {
	source       fetcher.ArticleSource
	images       Images
	prefetcher   *worker.Prefetcher
	metrics      *metrics.Metrics
	discardStale bool
	hub          *notify.Hub[models.FetchState]

	ctx    context.Context
	cancel context.CancelFunc

	mu         sync.Mutex
	state      models.FetchState
	country    string
	generation uint64
	closed     bool
	inflight   sync.WaitGroup
}

// New создаёт контроллер в состоянии Idle. images может быть nil: тогда миниатюры
// не предзагружаются.
func New(source fetcher.ArticleSource, images Images, options ...Option) *Controller {
	ctx, cancel := context.WithCancel(context.Background())
	c := &Controller{
		source:  source,
		images:  images,
		state:   models.Idle(),
		country: models.DefaultCountry,
		ctx:     ctx,
		cancel:  cancel,
	}
	if images != nil {
		c.prefetcher = worker.NewPrefetcher(images)
	}
	for _, option := range options {
		option(c)
	}
	c.hub = notify.NewHub[models.FetchState](func(name string, recovered any) {
		logger.Log.WithField("subscription", name).Errorf("State handler panicked: %v", recovered)
	})
	return c
}

// FetchArticles запоминает страну и запускает загрузку списка в фоне.
// При isRefreshing == false состояние сразу становится Loading; при обновлении
// текущее содержимое остаётся видимым до ответа.
func (c *Controller) FetchArticles(country string, isRefreshing bool) {
	c.start(strings.ToLower(country), false, isRefreshing)
}

// Retry повторяет запрос для текущей страны с полной индикацией загрузки.
func (c *Controller) Retry() {
	c.start("", true, false)
}

// SelectCountry: выбор страны пользователем.
func (c *Controller) SelectCountry(code string) {
	c.FetchArticles(code, false)
}

// Refresh: обновление жестом pull-to-refresh или по таймеру.
func (c *Controller) Refresh() {
	c.start("", true, true)
}

// RowDidDisappear отменяет загрузку миниатюры строки, ушедшей с экрана.
func (c *Controller) RowDidDisappear(imageURL string) {
	if c.images == nil || imageURL == "" {
		return
	}
	c.images.Cancel(imageURL)
}

// State возвращает копию текущего состояния.
func (c *Controller) State() models.FetchState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.Clone()
}

// Country возвращает текущую выбранную страну.
func (c *Controller) Country() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.country
}

// Subscribe подписывает handler на смену состояния. Первым handler получает текущее
// состояние, затем каждый переход в порядке публикации.
func (c *Controller) Subscribe(name string, handler func(models.FetchState)) (*notify.Subscription[models.FetchState], error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	sub, err := c.hub.Subscribe(name, handler, c.state.Clone())
	if err != nil {
		return nil, fmt.Errorf("subscribe state: %w", err)
	}
	return sub, nil
}

// Wait ждёт завершения всех запущенных запросов списка.
func (c *Controller) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		c.inflight.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("wait for list fetches: %w", ctx.Err())
	}
}

// Close отменяет запросы списка и останавливает рассылку состояний.
// Кеш миниатюр контроллеру не принадлежит и не закрывается.
func (c *Controller) Close(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.mu.Unlock()

	c.cancel()
	if err := c.Wait(ctx); err != nil {
		return fmt.Errorf("close controller: %w", err)
	}
	if err := c.hub.Close(ctx); err != nil {
		return fmt.Errorf("close controller: %w", err)
	}
	return nil
}

func (c *Controller) start(country string, useCurrent, isRefreshing bool) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	if useCurrent || country == "" {
		country = c.country
	}
	c.country = country
	c.generation++
	generation := c.generation
	if !isRefreshing {
		c.setStateLocked(models.Loading())
	}
	c.inflight.Add(1)
	c.mu.Unlock()

	logger.Log.WithFields(logger.Fields{
		"country":    country,
		"refreshing": isRefreshing,
	}).Debug("Fetching articles")

	go c.run(country, generation)
}

func (c *Controller) run(country string, generation uint64) {
	defer c.inflight.Done()

	started := time.Now()
	articles, err := c.source.Fetch(c.ctx, country)
	elapsed := time.Since(started).Seconds()

	log := logger.Log.WithField("country", country)

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	if c.discardStale && generation != c.generation {
		c.mu.Unlock()
		c.metrics.ListFetched(country, metrics.ListStale, elapsed)
		log.Debug("Discarding response of superseded request")
		return
	}
	if err != nil {
		c.setStateLocked(models.Failed(err))
	} else {
		c.setStateLocked(models.Loaded(articles))
	}
	c.mu.Unlock()

	if err != nil {
		c.metrics.ListFetched(country, metrics.ListError, elapsed)
		log.WithField("kind", fetcher.KindOf(err).String()).Errorf("Failed to fetch articles: %v", err)
		return
	}

	c.metrics.ListFetched(country, metrics.ListSuccess, elapsed)
	prefetched := c.prefetcher.Prefetch(articles)
	log.WithFields(logger.Fields{
		"articles":   len(articles),
		"prefetched": prefetched,
	}).Info("Articles loaded")
}

// setStateLocked заменяет состояние и публикует его; вызывается под c.mu, поэтому
// подписчики видят переходы в том же порядке, в каком они произошли.
func (c *Controller) setStateLocked(s models.FetchState) {
	c.state = s
	c.hub.Publish(s.Clone())
	c.metrics.Transition(s.Kind.String())
}
