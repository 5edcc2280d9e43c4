// Package imagecache хранит декодированные миниатюры статей в памяти.
//
// На каждый ключ одновременно существует не более одной сетевой загрузки: повторные
// запросы того же ключа присоединяются к ней как ожидающие. Успешный результат
// записывается в кеш до того, как ожидающие получат ответ.
package imagecache

import (
	"container/list"
	"context"
	"errors"
	"fmt"
	"sync"

	"articlewave/internal/logger"
	"articlewave/internal/metrics"
	"articlewave/internal/models"
	"articlewave/internal/notify"
)

// Option меняет настройки кеша.
type Option func(*Cache)

// WithDecoder подменяет декодер изображений.
func WithDecoder(decoder Decoder) Option {
	return func(c *Cache) {
		if decoder != nil {
			c.decoder = decoder
		}
	}
}

// WithMetrics подключает prometheus-коллекторы.
func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Cache) {
		c.metrics = m
	}
}

// WithMaxEntries включает вытеснение давно не использованных записей сверх n. 0 отключает ограничение.
func WithMaxEntries(n int) Option {
	return func(c *Cache) {
		if n > 0 {
			c.maxEntries = n
		}
	}
}

// WithMaxBytes ограничивает суммарный размер записей в кеше (исходные байты и
// декодированные пиксели, см. models.Image.Size). 0 отключает ограничение.
func WithMaxBytes(n int64) Option {
	return func(c *Cache) {
		if n > 0 {
			c.maxBytes = n
		}
	}
}

// Cache: кеш миниатюр с объединением одновременных загрузок и отменой.
type Cache struct {
	transport  Transport
	decoder    Decoder
	metrics    *metrics.Metrics
	maxEntries int
	maxBytes   int64
	ready      *notify.Hub[models.ImageReady]

	mu      sync.Mutex
	closed  bool
	entries map[string]*list.Element
	lru     *list.List
	bytes   int64
	pending map[string]*pendingFetch
	loads   sync.WaitGroup
}

type cacheEntry struct {
	key   string
	image *models.Image
}

// pendingFetch: выполняющаяся загрузка и очередь ожидающих в порядке регистрации.
type pendingFetch struct {
	key     string
	cancel  context.CancelFunc
	waiters []*Waiter
}

// New создаёт пустой кеш поверх transport.
func New(transport Transport, options ...Option) *Cache {
	c := &Cache{
		transport: transport,
		decoder:   StdDecoder{},
		entries:   make(map[string]*list.Element),
		lru:       list.New(),
		pending:   make(map[string]*pendingFetch),
	}
	for _, option := range options {
		option(c)
	}
	c.ready = notify.NewHub[models.ImageReady](func(name string, recovered any) {
		logger.Log.WithField("subscription", name).Errorf("Image ready handler panicked: %v", recovered)
	})
	return c
}

// Fetch запрашивает изображение по ключу и сразу возвращает ожидающего.
// Закешированный ключ разрешается немедленно, без обращения к сети; ключ, для которого
// уже идёт загрузка, присоединяется к ней; иначе запускается ровно одна загрузка.
func (c *Cache) Fetch(rawKey string) *Waiter {
	key, err := NormalizeKey(rawKey)
	if err != nil {
		c.metrics.ImageRequest(metrics.OutcomeInvalid)
		return resolvedWaiter(rawKey, nil, err)
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return resolvedWaiter(key, nil, fetchError(key, ErrClosed, nil))
	}
	if el, ok := c.entries[key]; ok {
		c.lru.MoveToFront(el)
		img := el.Value.(*cacheEntry).image
		c.mu.Unlock()
		c.metrics.ImageRequest(metrics.OutcomeHit)
		return resolvedWaiter(key, img, nil)
	}

	w := newWaiter(key)
	if p, ok := c.pending[key]; ok {
		p.waiters = append(p.waiters, w)
		c.mu.Unlock()
		c.metrics.ImageRequest(metrics.OutcomeCoalesced)
		return w
	}

	ctx, cancel := context.WithCancel(context.Background())
	p := &pendingFetch{key: key, cancel: cancel, waiters: []*Waiter{w}}
	c.pending[key] = p
	c.loads.Add(1)
	c.reportSizesLocked()
	c.mu.Unlock()

	c.metrics.ImageRequest(metrics.OutcomeMiss)
	go c.load(ctx, p)
	return w
}

// Get загружает изображение и ждёт результата либо отмены ctx.
func (c *Cache) Get(ctx context.Context, key string) (*models.Image, error) {
	return c.Fetch(key).Wait(ctx)
}

// Cancel отменяет выполняющуюся загрузку ключа. Её ожидающие получают ErrCancelled,
// кеш не меняется. Без активной загрузки вызов ничего не делает.
func (c *Cache) Cancel(rawKey string) {
	key, err := NormalizeKey(rawKey)
	if err != nil {
		return
	}

	c.mu.Lock()
	p, ok := c.pending[key]
	if !ok {
		c.mu.Unlock()
		return
	}
	delete(c.pending, key)
	p.cancel()
	cancelled := fetchError(key, ErrCancelled, nil)
	for _, w := range p.waiters {
		w.resolve(nil, cancelled)
	}
	c.reportSizesLocked()
	c.mu.Unlock()

	c.metrics.ImageFetched(metrics.ResultCancelled)
	logger.Log.WithFields(logger.Fields{
		"url":     key,
		"waiters": len(p.waiters),
	}).Debug("Image fetch cancelled")
}

// Peek возвращает закешированное изображение без загрузки.
func (c *Cache) Peek(rawKey string) (*models.Image, bool) {
	key, err := NormalizeKey(rawKey)
	if err != nil {
		return nil, false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	el, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	return el.Value.(*cacheEntry).image, true
}

// IsPending сообщает, идёт ли сейчас загрузка ключа.
func (c *Cache) IsPending(rawKey string) bool {
	key, err := NormalizeKey(rawKey)
	if err != nil {
		return false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.pending[key]
	return ok
}

// Len возвращает число закешированных изображений.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lru.Len()
}

// SubscribeReady подписывает handler на уведомления об успешно загруженных изображениях.
// При отмене уведомление не отправляется.
func (c *Cache) SubscribeReady(name string, handler func(models.ImageReady)) (*notify.Subscription[models.ImageReady], error) {
	sub, err := c.ready.Subscribe(name, handler)
	if err != nil {
		return nil, fmt.Errorf("subscribe image ready: %w", err)
	}
	return sub, nil
}

// Close отменяет все загрузки, очищает кеш и останавливает рассылку уведомлений.
func (c *Cache) Close(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	for key, p := range c.pending {
		p.cancel()
		closed := fetchError(key, ErrClosed, nil)
		for _, w := range p.waiters {
			w.resolve(nil, closed)
		}
	}
	c.pending = make(map[string]*pendingFetch)
	c.entries = make(map[string]*list.Element)
	c.lru.Init()
	c.bytes = 0
	c.reportSizesLocked()
	c.mu.Unlock()

	done := make(chan struct{})
	go func() {
		c.loads.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		return fmt.Errorf("close image cache: %w", ctx.Err())
	}

	if err := c.ready.Close(ctx); err != nil {
		return fmt.Errorf("close image cache: %w", err)
	}
	return nil
}

// load выполняет сетевой запрос и декодирование вне блокировки, затем под блокировкой
// записывает кеш и разрешает ожидающих. Результат отменённой загрузки отбрасывается.
func (c *Cache) load(ctx context.Context, p *pendingFetch) {
	defer c.loads.Done()
	defer p.cancel()

	log := logger.Log.WithField("url", p.key)
	log.Debug("Fetching image")

	var img *models.Image
	data, err := c.transport.Fetch(ctx, p.key)
	if err != nil {
		err = fetchError(p.key, ErrTransport, err)
	} else if img, err = c.decoder.Decode(p.key, data); err != nil {
		img = nil
		err = fetchError(p.key, ErrDecode, err)
	} else if img == nil {
		err = fetchError(p.key, ErrDecode, errors.New("decoder returned no image"))
	}

	c.mu.Lock()
	if c.pending[p.key] != p {
		c.mu.Unlock()
		c.metrics.ImageFetched(metrics.ResultDiscarded)
		log.Debug("Discarding result of cancelled image fetch")
		return
	}
	delete(c.pending, p.key)
	if err == nil {
		c.storeLocked(p.key, img)
	}
	for _, w := range p.waiters {
		w.resolve(img, err)
	}
	if err == nil {
		c.ready.Publish(models.ImageReady{Key: p.key, Image: img})
	}
	c.reportSizesLocked()
	c.mu.Unlock()

	log = log.WithField("waiters", len(p.waiters))
	switch {
	case err == nil:
		c.metrics.ImageFetched(metrics.ResultSuccess)
		log.WithField("bytes", len(img.Data)).Debug("Image cached")
	case isKind(err, ErrDecode):
		c.metrics.ImageFetched(metrics.ResultDecode)
		log.Warnf("Failed to decode image: %v", err)
	default:
		c.metrics.ImageFetched(metrics.ResultTransport)
		log.Warnf("Failed to fetch image: %v", err)
	}
}

// storeLocked добавляет запись и вытесняет самые старые сверх ограничений.
func (c *Cache) storeLocked(key string, img *models.Image) {
	if el, ok := c.entries[key]; ok {
		old := el.Value.(*cacheEntry)
		c.bytes -= old.image.Size()
		old.image = img
		c.lru.MoveToFront(el)
	} else {
		c.entries[key] = c.lru.PushFront(&cacheEntry{key: key, image: img})
	}
	c.bytes += img.Size()

	for c.lru.Len() > 1 && c.overLimitLocked() {
		el := c.lru.Back()
		entry := el.Value.(*cacheEntry)
		c.lru.Remove(el)
		delete(c.entries, entry.key)
		c.bytes -= entry.image.Size()
		c.metrics.ImageEvicted()
	}
}

func (c *Cache) overLimitLocked() bool {
	if c.maxEntries > 0 && c.lru.Len() > c.maxEntries {
		return true
	}
	return c.maxBytes > 0 && c.bytes > c.maxBytes
}

func (c *Cache) reportSizesLocked() {
	c.metrics.ImageSizes(c.lru.Len(), len(c.pending))
}
