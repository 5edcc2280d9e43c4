package fetcher

import (
	"context"
	"errors"
	"fmt"

	"articlewave/internal/models"
)

// ArticleSource возвращает список статей для кода страны.
type ArticleSource interface {
	Fetch(ctx context.Context, country string) ([]models.Article, error)
}

// SourceFunc адаптирует функцию к ArticleSource.
type SourceFunc func(ctx context.Context, country string) ([]models.Article, error)

func (f SourceFunc) Fetch(ctx context.Context, country string) ([]models.Article, error) {
	return f(ctx, country)
}

// ErrorKind классифицирует сбой источника. Контроллер списка на неё не ветвится,
// она нужна для журналов.
type ErrorKind int

const (
	InvalidRequest ErrorKind = iota + 1
	TransportFailure
	UpstreamReported
	DecodeFailure
)

func (k ErrorKind) String() string {
	switch k {
	case InvalidRequest:
		return "invalid_request"
	case TransportFailure:
		return "transport_failure"
	case UpstreamReported:
		return "upstream_error"
	case DecodeFailure:
		return "decode_failure"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// SourceError: ошибка получения списка статей.
type SourceError struct {
	Kind    ErrorKind
	Country string
	Message string
	Err     error
}

func (e *SourceError) Error() string {
	msg := fmt.Sprintf("fetch articles for %q: %s", e.Country, e.Kind)
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *SourceError) Unwrap() error {
	return e.Err
}

// KindOf возвращает вид ошибки источника или 0, если err не SourceError.
func KindOf(err error) ErrorKind {
	var se *SourceError
	if errors.As(err, &se) {
		return se.Kind
	}
	return 0
}

// NewSourceError создаёт ошибку источника. Используется реализациями ArticleSource вне пакета.
func NewSourceError(kind ErrorKind, country, message string, err error) *SourceError {
	return &SourceError{Kind: kind, Country: country, Message: message, Err: err}
}
