package imagecache

import (
	"context"
	"errors"
	"fmt"

	"articlewave/internal/models"
)

// Waiter: результат одного вызова Fetch. Разрешается ровно один раз.
type Waiter struct {
	key  string
	done chan struct{}
	img  *models.Image
	err  error
}

func newWaiter(key string) *Waiter {
	return &Waiter{key: key, done: make(chan struct{})}
}

func resolvedWaiter(key string, img *models.Image, err error) *Waiter {
	w := newWaiter(key)
	w.resolve(img, err)
	return w
}

// resolve вызывается под блокировкой кеша, поэтому повторное разрешение невозможно.
func (w *Waiter) resolve(img *models.Image, err error) {
	w.img = img
	w.err = err
	close(w.done)
}

// Key возвращает нормализованный ключ.
func (w *Waiter) Key() string {
	return w.key
}

// Done закрывается, когда результат готов.
func (w *Waiter) Done() <-chan struct{} {
	return w.done
}

// Result возвращает результат без ожидания; до разрешения возвращает ErrPending.
func (w *Waiter) Result() (*models.Image, error) {
	select {
	case <-w.done:
		return w.img, w.err
	default:
		return nil, ErrPending
	}
}

// Wait ждёт результата либо отмены ctx. Отмена ctx не отменяет саму загрузку.
func (w *Waiter) Wait(ctx context.Context) (*models.Image, error) {
	select {
	case <-w.done:
		return w.img, w.err
	case <-ctx.Done():
		return nil, fmt.Errorf("wait for %s: %w", w.key, ctx.Err())
	}
}

func isKind(err, kind error) bool {
	var fe *FetchError
	return errors.As(err, &fe) && fe.Kind == kind
}
