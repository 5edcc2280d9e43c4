package imagecache

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidKey: ключ не является абсолютным http(s) URL.
	ErrInvalidKey = errors.New("imagecache: invalid resource key")
	// ErrTransport: сетевой запрос завершился ошибкой.
	ErrTransport = errors.New("imagecache: transport failure")
	// ErrDecode: полученные байты не удалось декодировать в изображение.
	ErrDecode = errors.New("imagecache: decode failure")
	// ErrCancelled: загрузка отменена до завершения, ожидающие брошены.
	ErrCancelled = errors.New("imagecache: fetch cancelled")
	// ErrClosed: кеш закрыт.
	ErrClosed = errors.New("imagecache: cache closed")
	// ErrPending: результат ещё не готов.
	ErrPending = errors.New("imagecache: result not ready")
)

// FetchError описывает неудачную загрузку по ключу. Kind содержит одну из сигнальных ошибок
// пакета, Err хранит исходную причину, если она есть.
type FetchError struct {
	Key  string
	Kind error
	Err  error
}

func (e *FetchError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("fetch %s: %v", e.Key, e.Kind)
	}
	return fmt.Sprintf("fetch %s: %v: %v", e.Key, e.Kind, e.Err)
}

func (e *FetchError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

func fetchError(key string, kind, err error) *FetchError {
	return &FetchError{Key: key, Kind: kind, Err: err}
}
