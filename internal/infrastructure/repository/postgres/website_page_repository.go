package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/kirillkom/docs-assistant/internal/core/domain"
)

const defaultListLimit = 100

type WebsitePageRepository struct {
	db *sql.DB
}

func NewWebsitePageRepository(db *sql.DB) *WebsitePageRepository {
	return &WebsitePageRepository{db: db}
}

// Upsert registers a page or re-queues a known one. Indexing results from a
// previous run are kept until MarkIndexed overwrites them.
func (r *WebsitePageRepository) Upsert(ctx context.Context, page *domain.WebsitePage) error {
	_, err := r.db.ExecContext(ctx, `
INSERT INTO website_pages (url, domain, status, error_message, created_at, updated_at)
VALUES ($1,$2,$3,'',$4,$5)
ON CONFLICT (url) DO UPDATE
SET domain = EXCLUDED.domain, status = EXCLUDED.status, error_message = '', updated_at = EXCLUDED.updated_at
`, page.URL, page.Domain, string(page.Status), page.CreatedAt, page.UpdatedAt)
	if err != nil {
		return fmt.Errorf("upsert website page: %w", err)
	}
	return nil
}

func (r *WebsitePageRepository) GetByURL(ctx context.Context, rawURL string) (*domain.WebsitePage, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT url, domain, title, word_count, chunk_count, status, error_message, scraped_at, created_at, updated_at
FROM website_pages
WHERE url = $1
`, rawURL)

	page, err := scanPage(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.WrapError(domain.ErrNotFound, "get website page", fmt.Errorf("url=%s", rawURL))
		}
		return nil, fmt.Errorf("get website page: %w", err)
	}
	return &page, nil
}

func (r *WebsitePageRepository) UpdateStatus(ctx context.Context, rawURL string, status domain.PageStatus, errMessage string) error {
	result, err := r.db.ExecContext(ctx, `
UPDATE website_pages
SET status = $2, error_message = $3, updated_at = $4
WHERE url = $1
`, rawURL, string(status), errMessage, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("update website page status: %w", err)
	}
	return requireRow(result, "update website page status", rawURL)
}

func (r *WebsitePageRepository) MarkIndexed(ctx context.Context, page *domain.WebsitePage) error {
	result, err := r.db.ExecContext(ctx, `
UPDATE website_pages
SET domain = $2, title = $3, word_count = $4, chunk_count = $5, status = $6, error_message = '', scraped_at = $7, updated_at = $8
WHERE url = $1
`, page.URL, page.Domain, page.Title, page.WordCount, page.ChunkCount, string(domain.PageStatusIndexed), page.ScrapedAt, page.UpdatedAt)
	if err != nil {
		return fmt.Errorf("mark website page indexed: %w", err)
	}
	return requireRow(result, "mark website page indexed", page.URL)
}

func (r *WebsitePageRepository) List(ctx context.Context, limit int) ([]domain.WebsitePage, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}
	rows, err := r.db.QueryContext(ctx, `
SELECT url, domain, title, word_count, chunk_count, status, error_message, scraped_at, created_at, updated_at
FROM website_pages
ORDER BY updated_at DESC
LIMIT $1
`, limit)
	if err != nil {
		return nil, fmt.Errorf("list website pages: %w", err)
	}
	defer rows.Close()

	out := make([]domain.WebsitePage, 0)
	for rows.Next() {
		page, err := scanPage(rows)
		if err != nil {
			return nil, fmt.Errorf("scan website page: %w", err)
		}
		out = append(out, page)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate website pages: %w", err)
	}
	return out, nil
}

func requireRow(result sql.Result, operation, rawURL string) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s rows affected: %w", operation, err)
	}
	if rows == 0 {
		return domain.WrapError(domain.ErrNotFound, operation, fmt.Errorf("url=%s", rawURL))
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPage(row rowScanner) (domain.WebsitePage, error) {
	var page domain.WebsitePage
	var status string
	var scrapedAt sql.NullTime
	err := row.Scan(
		&page.URL,
		&page.Domain,
		&page.Title,
		&page.WordCount,
		&page.ChunkCount,
		&status,
		&page.Error,
		&scrapedAt,
		&page.CreatedAt,
		&page.UpdatedAt,
	)
	if err != nil {
		return domain.WebsitePage{}, err
	}
	page.Status = domain.PageStatus(status)
	if scrapedAt.Valid {
		t := scrapedAt.Time
		page.ScrapedAt = &t
	}
	return page, nil
}
