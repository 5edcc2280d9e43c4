package models

// Article представляет одну новость из списка заголовков.
// Значение неизменяемо после создания: стабильного идентификатора у источника нет,
// поэтому статьи сравниваются по значению полей.
type Article struct {
	Title       string  `json:"title"`
	Author      *string `json:"author,omitempty"`
	Description *string `json:"description,omitempty"`
	SourceURL   string  `json:"url"`
	ImageURL    *string `json:"url_to_image,omitempty"`
	PublishedAt string  `json:"published_at"`
	Content     *string `json:"content,omitempty"`
	SourceName  *string `json:"source_name,omitempty"`
}

// HasImage сообщает, указана ли у статьи ссылка на миниатюру.
func (a Article) HasImage() bool {
	return a.ImageURL != nil && *a.ImageURL != ""
}

// StringPtr возвращает указатель на s, либо nil для пустой строки.
func StringPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// CloneArticles копирует срез, чтобы наблюдатели не делили память с владельцем состояния.
func CloneArticles(articles []Article) []Article {
	if articles == nil {
		return nil
	}
	out := make([]Article, len(articles))
	copy(out, articles)
	return out
}
