package db

import (
	"context"
	"fmt"
	"strings"

	"articlewave/internal/fetcher"
	"articlewave/internal/models"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// DefaultLimit: сколько статей страны отдаёт Fetch.
const DefaultLimit = 50

// Schema создаёт таблицу статей. Дата публикации хранится строкой в том виде,
// в каком её вернул источник.
const Schema = `
CREATE TABLE IF NOT EXISTS articles (
	id SERIAL PRIMARY KEY,
	country VARCHAR(8) NOT NULL,
	title TEXT NOT NULL,
	author TEXT,
	description TEXT,
	source_url VARCHAR(2048) NOT NULL,
	image_url VARCHAR(2048),
	published_at TEXT NOT NULL,
	content TEXT,
	source_name TEXT,
	UNIQUE (country, source_url)
);
`

// Database инкапсулирует пул соединений к PostgreSQL.
type Database struct {
	Pool  *pgxpool.Pool
	Limit int
}

// NewDB создаёт новый пул соединений по connString и возвращает Database.
func NewDB(ctx context.Context, connString string) (*Database, error) {
	pool, err := pgxpool.New(ctx, connString)
	if err != nil {
		return nil, fmt.Errorf("unable to create connection pool: %w", err)
	}
	return &Database{Pool: pool, Limit: DefaultLimit}, nil
}

// Close закрывает пул соединений.
func (db *Database) Close() {
	db.Pool.Close()
}

func (db *Database) Ping(ctx context.Context) error {
	return db.Pool.Ping(ctx)
}

// Migrate применяет Schema.
func (db *Database) Migrate(ctx context.Context) error {
	if _, err := db.Pool.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}

// SaveArticles сохраняет статьи страны. Статья с уже известным source_url обновляется.
// Возвращает число записанных строк.
func (db *Database) SaveArticles(ctx context.Context, country string, articles []models.Article) (int, error) {
	country = strings.ToLower(country)
	batch := &pgx.Batch{}
	for _, a := range articles {
		batch.Queue(`
			INSERT INTO articles (country, title, author, description, source_url, image_url, published_at, content, source_name)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
			ON CONFLICT (country, source_url) DO UPDATE SET
				title = EXCLUDED.title,
				author = EXCLUDED.author,
				description = EXCLUDED.description,
				image_url = EXCLUDED.image_url,
				published_at = EXCLUDED.published_at,
				content = EXCLUDED.content,
				source_name = EXCLUDED.source_name
		`, country, a.Title, a.Author, a.Description, a.SourceURL, a.ImageURL, a.PublishedAt, a.Content, a.SourceName)
	}

	results := db.Pool.SendBatch(ctx, batch)
	defer results.Close()

	saved := 0
	for range articles {
		if _, err := results.Exec(); err != nil {
			return saved, fmt.Errorf("save article: %w", err)
		}
		saved++
	}
	return saved, nil
}

// Fetch возвращает последние статьи страны, новые первыми. Реализует fetcher.ArticleSource;
// ошибки имеют тип *fetcher.SourceError.
func (db *Database) Fetch(ctx context.Context, country string) ([]models.Article, error) {
	limit := db.Limit
	if limit <= 0 {
		limit = DefaultLimit
	}

	rows, err := db.Pool.Query(ctx, `
		SELECT title, author, description, source_url, image_url, published_at, content, source_name
		FROM articles
		WHERE country = $1
		ORDER BY published_at DESC, id DESC
		LIMIT $2
	`, strings.ToLower(country), limit)
	if err != nil {
		return nil, fetcher.NewSourceError(fetcher.TransportFailure, country, "query articles", err)
	}
	defer rows.Close()

	articles := []models.Article{}
	for rows.Next() {
		var a models.Article
		if err := rows.Scan(&a.Title, &a.Author, &a.Description, &a.SourceURL, &a.ImageURL, &a.PublishedAt, &a.Content, &a.SourceName); err != nil {
			return nil, fetcher.NewSourceError(fetcher.DecodeFailure, country, "scan article", err)
		}
		articles = append(articles, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fetcher.NewSourceError(fetcher.TransportFailure, country, "read articles", err)
	}
	return articles, nil
}
