package models

import "fmt"

// StateKind: вариант состояния загрузки списка.
type StateKind int

const (
	StateIdle StateKind = iota
	StateLoading
	StateLoaded
	StateError
)

func (k StateKind) String() string {
	switch k {
	case StateIdle:
		return "idle"
	case StateLoading:
		return "loading"
	case StateLoaded:
		return "loaded"
	case StateError:
		return "error"
	default:
		return fmt.Sprintf("state(%d)", int(k))
	}
}

// MarshalText позволяет кодировать вариант строкой в JSON.
func (k StateKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// FetchState: снимок состояния списка. Articles заполнен только для StateLoaded,
// Err заполнен только для StateError и служит исключительно для диагностики.
type FetchState struct {
	Kind     StateKind `json:"state"`
	Articles []Article `json:"articles,omitempty"`
	Err      error     `json:"-"`
}

func Idle() FetchState    { return FetchState{Kind: StateIdle} }
func Loading() FetchState { return FetchState{Kind: StateLoading} }

// Loaded создаёт состояние с собственной копией списка статей.
func Loaded(articles []Article) FetchState {
	if articles == nil {
		articles = []Article{}
	}
	return FetchState{Kind: StateLoaded, Articles: CloneArticles(articles)}
}

func Failed(err error) FetchState {
	return FetchState{Kind: StateError, Err: err}
}

// Clone возвращает независимую копию снимка.
func (s FetchState) Clone() FetchState {
	s.Articles = CloneArticles(s.Articles)
	return s
}
