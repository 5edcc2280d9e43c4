package models

// TopHeadlinesResponse: ответ NewsAPI на запрос /top-headlines.
// При Status == "error" заполнены Code и Message, а Articles отсутствует.
type TopHeadlinesResponse struct {
	Status       string           `json:"status"`
	TotalResults *int             `json:"totalResults"`
	Articles     []NewsAPIArticle `json:"articles"`
	Code         *string          `json:"code"`
	Message      *string          `json:"message"`
}

// NewsAPISource: издание, опубликовавшее статью.
type NewsAPISource struct {
	ID   *string `json:"id"`
	Name *string `json:"name"`
}

// NewsAPIArticle: статья в формате NewsAPI.
type NewsAPIArticle struct {
	Source      NewsAPISource `json:"source"`
	Author      *string       `json:"author"`
	Title       string        `json:"title"`
	Description *string       `json:"description"`
	URL         string        `json:"url"`
	URLToImage  *string       `json:"urlToImage"`
	PublishedAt string        `json:"publishedAt"`
	Content     *string       `json:"content"`
}

// ToArticle переводит статью NewsAPI в модель клиента.
func (a NewsAPIArticle) ToArticle() Article {
	return Article{
		Title:       a.Title,
		Author:      a.Author,
		Description: a.Description,
		SourceURL:   a.URL,
		ImageURL:    a.URLToImage,
		PublishedAt: a.PublishedAt,
		Content:     a.Content,
		SourceName:  a.Source.Name,
	}
}
