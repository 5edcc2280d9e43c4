package controller_test

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"io"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"articlewave/internal/controller"
	"articlewave/internal/fetcher"
	"articlewave/internal/imagecache"
	"articlewave/internal/logger"
	"articlewave/internal/models"

	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

const (
	timeout = 2 * time.Second
	tick    = 5 * time.Millisecond
)

func TestMain(m *testing.M) {
	logger.Init()
	logger.SetOutput(io.Discard)
	goleak.VerifyTestMain(m)
}

// countingSource отвечает по стране заранее заданными статьями или ошибкой и считает вызовы.
type countingSource struct {
	mu       sync.Mutex
	calls    map[string]int
	articles map[string][]models.Article
	err      error
	gates    map[string]chan struct{}
}

func newCountingSource() *countingSource {
	return &countingSource{
		calls:    make(map[string]int),
		articles: make(map[string][]models.Article),
		gates:    make(map[string]chan struct{}),
	}
}

func (s *countingSource) Fetch(ctx context.Context, country string) ([]models.Article, error) {
	s.mu.Lock()
	s.calls[country]++
	gate := s.gates[country]
	s.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	return s.articles[country], nil
}

func (s *countingSource) set(country string, articles []models.Article) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.articles[country] = articles
}

func (s *countingSource) fail(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.err = err
}

func (s *countingSource) hold(country string) chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	gate := make(chan struct{})
	s.gates[country] = gate
	return gate
}

func (s *countingSource) Calls(country string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[country]
}

type recorder struct {
	mu     sync.Mutex
	states []models.FetchState
}

func (r *recorder) handle(s models.FetchState) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.states = append(r.states, s)
}

func (r *recorder) kinds() []models.StateKind {
	r.mu.Lock()
	defer r.mu.Unlock()
	kinds := make([]models.StateKind, 0, len(r.states))
	for _, s := range r.states {
		kinds = append(kinds, s.Kind)
	}
	return kinds
}

func (r *recorder) last() models.FetchState {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.states[len(r.states)-1]
}

func subscribe(t *testing.T, c *controller.Controller) *recorder {
	t.Helper()
	r := &recorder{}
	_, err := c.Subscribe("test", r.handle)
	require.NoError(t, err)
	return r
}

func closeController(t *testing.T, c *controller.Controller) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	require.NoError(t, c.Close(ctx))
}

func waitIdle(t *testing.T, c *controller.Controller) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	require.NoError(t, c.Wait(ctx))
}

func article(title string) models.Article {
	return models.Article{Title: title, SourceURL: "http://example.com/" + title, PublishedAt: "2021-05-01T12:34:56Z"}
}

func TestStateSequenceIdleLoadingLoaded(t *testing.T) {
	source := newCountingSource()
	source.set("br", []models.Article{article("one")})

	c := controller.New(source, nil)
	defer closeController(t, c)
	require.Equal(t, models.StateIdle, c.State().Kind)

	r := subscribe(t, c)
	c.FetchArticles("br", false)
	waitIdle(t, c)

	require.Eventually(t, func() bool { return len(r.kinds()) == 3 }, timeout, tick)
	require.Equal(t, []models.StateKind{models.StateIdle, models.StateLoading, models.StateLoaded}, r.kinds())
	require.Equal(t, "one", r.last().Articles[0].Title)
	require.Equal(t, "br", c.Country())
}

func TestErrorThenRetryRefetchesSameCountry(t *testing.T) {
	source := newCountingSource()
	source.fail(&fetcher.SourceError{Kind: fetcher.UpstreamReported, Country: "br", Message: "boom"})

	c := controller.New(source, nil)
	defer closeController(t, c)
	r := subscribe(t, c)

	c.FetchArticles("br", false)
	waitIdle(t, c)

	state := c.State()
	require.Equal(t, models.StateError, state.Kind)
	require.Equal(t, fetcher.UpstreamReported, fetcher.KindOf(state.Err))
	require.Equal(t, 1, source.Calls("br"))

	source.fail(nil)
	source.set("br", []models.Article{article("back")})
	c.Retry()
	waitIdle(t, c)

	require.Equal(t, 2, source.Calls("br"))
	require.Equal(t, models.StateLoaded, c.State().Kind)
	require.Eventually(t, func() bool { return len(r.kinds()) == 5 }, timeout, tick)
	require.Equal(t, []models.StateKind{
		models.StateIdle,
		models.StateLoading,
		models.StateError,
		models.StateLoading,
		models.StateLoaded,
	}, r.kinds())
}

func TestRefreshKeepsContentVisible(t *testing.T) {
	source := newCountingSource()
	source.set("br", []models.Article{article("old")})

	c := controller.New(source, nil)
	defer closeController(t, c)

	c.FetchArticles("br", false)
	waitIdle(t, c)

	r := subscribe(t, c)
	source.set("br", []models.Article{article("new"), article("newer")})
	c.FetchArticles("br", true)
	waitIdle(t, c)

	require.Eventually(t, func() bool { return len(r.kinds()) == 2 }, timeout, tick)
	require.Equal(t, []models.StateKind{models.StateLoaded, models.StateLoaded}, r.kinds())
	require.Len(t, r.last().Articles, 2)

	source.fail(&fetcher.SourceError{Kind: fetcher.TransportFailure, Country: "br"})
	c.Refresh()
	waitIdle(t, c)

	require.Eventually(t, func() bool { return len(r.kinds()) == 3 }, timeout, tick)
	require.Equal(t, []models.StateKind{models.StateLoaded, models.StateLoaded, models.StateError}, r.kinds())
}

func TestRefreshUsesSelectedCountry(t *testing.T) {
	source := newCountingSource()
	c := controller.New(source, nil, controller.WithCountry("PT"))
	defer closeController(t, c)

	require.Equal(t, "pt", c.Country())
	c.Refresh()
	waitIdle(t, c)
	require.Equal(t, 1, source.Calls("pt"))

	c.SelectCountry("US")
	waitIdle(t, c)
	c.Refresh()
	waitIdle(t, c)
	require.Equal(t, 2, source.Calls("us"))
}

func pngBytes(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 2, 2))
	img.Set(0, 0, color.RGBA{R: 255, A: 255})
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestImageReadyFiresOnceEndToEnd(t *testing.T) {
	const imageURL = "http://x/img.png"
	data := pngBytes(t)

	var transportCalls atomic.Int32
	transport := imagecache.TransportFunc(func(_ context.Context, url string) ([]byte, error) {
		transportCalls.Add(1)
		return data, nil
	})
	cache := imagecache.New(transport)
	defer cache.Close(context.Background())

	var (
		mu    sync.Mutex
		ready []models.ImageReady
	)
	_, err := cache.SubscribeReady("test", func(ev models.ImageReady) {
		mu.Lock()
		defer mu.Unlock()
		ready = append(ready, ev)
	})
	require.NoError(t, err)

	source := newCountingSource()
	source.set("br", []models.Article{{
		Title:       "with image",
		SourceURL:   "http://example.com/a",
		ImageURL:    models.StringPtr(imageURL),
		PublishedAt: "2021-05-01T12:34:56Z",
	}})

	c := controller.New(source, cache)
	defer closeController(t, c)

	c.FetchArticles("br", false)
	waitIdle(t, c)

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(ready) == 1
	}, timeout, tick)

	mu.Lock()
	require.Equal(t, imageURL, ready[0].Key)
	require.Equal(t, data, ready[0].Image.Data)
	require.Equal(t, 2, ready[0].Image.Width)
	mu.Unlock()

	img, err := cache.Get(context.Background(), imageURL)
	require.NoError(t, err)
	require.Equal(t, data, img.Data)
	require.Equal(t, int32(1), transportCalls.Load())

	mu.Lock()
	require.Len(t, ready, 1)
	mu.Unlock()
}

func TestRetryRefetchesFailedImages(t *testing.T) {
	const imageURL = "http://x/broken.png"
	var transportCalls atomic.Int32
	transport := imagecache.TransportFunc(func(_ context.Context, url string) ([]byte, error) {
		transportCalls.Add(1)
		return []byte("not an image"), nil
	})
	cache := imagecache.New(transport)
	defer cache.Close(context.Background())

	source := newCountingSource()
	source.set("br", []models.Article{{Title: "a", ImageURL: models.StringPtr(imageURL)}})

	c := controller.New(source, cache)
	defer closeController(t, c)

	c.FetchArticles("br", false)
	waitIdle(t, c)
	require.Eventually(t, func() bool { return transportCalls.Load() == 1 && !cache.IsPending(imageURL) }, timeout, tick)
	require.Zero(t, cache.Len())

	c.Retry()
	waitIdle(t, c)
	require.Eventually(t, func() bool { return transportCalls.Load() == 2 }, timeout, tick)
	require.Equal(t, models.StateLoaded, c.State().Kind)
}

func TestRowDidDisappearCancelsPendingImage(t *testing.T) {
	const imageURL = "http://x/slow.png"
	started := make(chan struct{}, 1)
	transport := imagecache.TransportFunc(func(ctx context.Context, url string) ([]byte, error) {
		started <- struct{}{}
		<-ctx.Done()
		return nil, ctx.Err()
	})
	cache := imagecache.New(transport)
	defer cache.Close(context.Background())

	source := newCountingSource()
	source.set("br", []models.Article{{Title: "a", ImageURL: models.StringPtr(imageURL)}})

	c := controller.New(source, cache)
	defer closeController(t, c)

	c.FetchArticles("br", false)
	waitIdle(t, c)

	select {
	case <-started:
	case <-time.After(timeout):
		t.Fatal("image fetch was not started")
	}
	require.True(t, cache.IsPending(imageURL))

	c.RowDidDisappear(imageURL)
	require.False(t, cache.IsPending(imageURL))
	require.Zero(t, cache.Len())

	c.RowDidDisappear(imageURL)
	c.RowDidDisappear("")
}

func TestLastResponseWinsByDefault(t *testing.T) {
	source := newCountingSource()
	source.set("br", []models.Article{article("br")})
	source.set("us", []models.Article{article("us")})
	gate := source.hold("br")

	c := controller.New(source, nil)
	defer closeController(t, c)

	c.SelectCountry("br")
	require.Eventually(t, func() bool { return source.Calls("br") == 1 }, timeout, tick)
	c.SelectCountry("us")
	require.Eventually(t, func() bool { return c.State().Kind == models.StateLoaded }, timeout, tick)
	require.Equal(t, "us", c.State().Articles[0].Title)

	close(gate)
	waitIdle(t, c)

	require.Equal(t, "br", c.State().Articles[0].Title)
	require.Equal(t, "us", c.Country())
}

func TestDiscardStaleKeepsLatestRequest(t *testing.T) {
	source := newCountingSource()
	source.set("br", []models.Article{article("br")})
	source.set("us", []models.Article{article("us")})
	gate := source.hold("br")

	c := controller.New(source, nil, controller.WithDiscardStale(true))
	defer closeController(t, c)

	c.SelectCountry("br")
	require.Eventually(t, func() bool { return source.Calls("br") == 1 }, timeout, tick)
	c.SelectCountry("us")
	require.Eventually(t, func() bool { return c.State().Kind == models.StateLoaded }, timeout, tick)

	close(gate)
	waitIdle(t, c)

	require.Equal(t, "us", c.State().Articles[0].Title)
}

func TestCloseStopsController(t *testing.T) {
	source := newCountingSource()
	gate := source.hold("br")
	defer close(gate)

	c := controller.New(source, nil)
	c.FetchArticles("br", false)
	require.Eventually(t, func() bool { return source.Calls("br") == 1 }, timeout, tick)

	closeController(t, c)
	require.NoError(t, c.Close(context.Background()))

	c.FetchArticles("us", false)
	require.Zero(t, source.Calls("us"))

	_, err := c.Subscribe("late", func(models.FetchState) {})
	require.Error(t, err)
}
