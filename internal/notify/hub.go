// Package notify доставляет значения подписчикам строго в порядке публикации.
//
// У каждого подписчика своя неограниченная очередь и одна горутина доставки, поэтому
// Publish никогда не блокируется на медленном обработчике, а обработчик одного
// подписчика никогда не вызывается конкурентно сам с собой.
package notify

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
)

// ErrClosed возвращается при подписке на закрытый хаб.
var ErrClosed = errors.New("notify: hub closed")

// Handler обрабатывает одно опубликованное значение.
type Handler[T any] func(T)

// Hub: последовательная рассылка значений типа T.
type Hub[T any] struct {
	mu      sync.Mutex
	nextID  int64
	closed  bool
	subs    map[int64]*Subscription[T]
	onPanic func(name string, recovered any)
}

// NewHub создаёт пустой хаб. onPanic вызывается, если обработчик паникует; может быть nil.
func NewHub[T any](onPanic func(name string, recovered any)) *Hub[T] {
	return &Hub[T]{
		subs:    make(map[int64]*Subscription[T]),
		onPanic: onPanic,
	}
}

// Subscribe регистрирует обработчик. Если initial не nil, его значения ставятся в очередь
// подписчика раньше любых последующих публикаций.
func (h *Hub[T]) Subscribe(name string, handler Handler[T], initial ...T) (*Subscription[T], error) {
	if handler == nil {
		return nil, fmt.Errorf("subscribe %s: nil handler", name)
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return nil, fmt.Errorf("subscribe %s: %w", name, ErrClosed)
	}

	h.nextID++
	if name == "" {
		name = fmt.Sprintf("subscription-%d", h.nextID)
	}
	sub := newSubscription(h.nextID, name, handler, h)
	for _, v := range initial {
		sub.push(v)
	}
	h.subs[sub.id] = sub
	go sub.run()

	return sub, nil
}

// Publish ставит значение в очередь каждого подписчика. Вызовы Publish, упорядоченные
// вызывающей стороной, доставляются в том же порядке.
func (h *Hub[T]) Publish(v T) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	for _, sub := range h.subs {
		sub.push(v)
	}
}

// Len возвращает число активных подписок.
func (h *Hub[T]) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

// Close останавливает все подписки и ждёт их завершения либо отмены ctx.
// Недоставленные значения отбрасываются.
func (h *Hub[T]) Close(ctx context.Context) error {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return nil
	}
	h.closed = true
	subs := make([]*Subscription[T], 0, len(h.subs))
	for _, sub := range h.subs {
		subs = append(subs, sub)
	}
	h.subs = make(map[int64]*Subscription[T])
	h.mu.Unlock()

	var errs []error
	for _, sub := range subs {
		if err := sub.shutdown(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("close hub: %w", errors.Join(errs...))
	}
	return nil
}

func (h *Hub[T]) unsubscribe(ctx context.Context, id int64) error {
	h.mu.Lock()
	sub, found := h.subs[id]
	if found {
		delete(h.subs, id)
	}
	h.mu.Unlock()

	if !found {
		return nil
	}
	return sub.shutdown(ctx)
}

func (h *Hub[T]) reportPanic(name string, recovered any) {
	if h.onPanic != nil {
		h.onPanic(name, recovered)
	}
}

// Subscription: одна зарегистрированная подписка.
type Subscription[T any] struct {
	id      int64
	name    string
	handler Handler[T]
	hub     *Hub[T]

	mu     sync.Mutex
	cond   *sync.Cond
	queue  []T
	closed atomic.Bool
	done   chan struct{}
}

func newSubscription[T any](id int64, name string, handler Handler[T], hub *Hub[T]) *Subscription[T] {
	sub := &Subscription[T]{
		id:      id,
		name:    name,
		handler: handler,
		hub:     hub,
		done:    make(chan struct{}),
	}
	sub.cond = sync.NewCond(&sub.mu)
	return sub
}

// Name возвращает имя подписки.
func (s *Subscription[T]) Name() string {
	return s.name
}

// Close снимает подписку и ждёт окончания текущей доставки.
func (s *Subscription[T]) Close(ctx context.Context) error {
	return s.hub.unsubscribe(ctx, s.id)
}

func (s *Subscription[T]) push(v T) {
	s.mu.Lock()
	s.queue = append(s.queue, v)
	s.mu.Unlock()
	s.cond.Signal()
}

// run доставляет значения по одному, пока подписка не закрыта.
func (s *Subscription[T]) run() {
	defer close(s.done)
	for {
		s.mu.Lock()
		for len(s.queue) == 0 && !s.closed.Load() {
			s.cond.Wait()
		}
		if s.closed.Load() {
			s.queue = nil
			s.mu.Unlock()
			return
		}
		v := s.queue[0]
		var zero T
		s.queue[0] = zero
		s.queue = s.queue[1:]
		s.mu.Unlock()

		s.deliver(v)
	}
}

func (s *Subscription[T]) deliver(v T) {
	defer func() {
		if r := recover(); r != nil {
			s.hub.reportPanic(s.name, r)
		}
	}()
	s.handler(v)
}

func (s *Subscription[T]) shutdown(ctx context.Context) error {
	s.mu.Lock()
	s.closed.Store(true)
	s.mu.Unlock()
	s.cond.Broadcast()

	select {
	case <-s.done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("shutdown subscription %s: %w", s.name, ctx.Err())
	}
}
