package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/Muchai10/safeguardcrawler/internal/storage/models"
	"github.com/Muchai10/safeguardcrawler/pkg/logger"
)

type Client struct {
	db  *sql.DB
	now func() time.Time
}

// NewClient creates the parent directory of dbPath if needed.
func NewClient(dbPath string) (*Client, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// One writer at a time; the scan loop is the only writer anyway.
	db.SetMaxOpenConns(1)

	_, err = db.Exec("PRAGMA journal_mode = WAL")
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	logger.Info("SQLite client initialized", zap.String("path", dbPath))

	return &Client{db: db, now: time.Now}, nil
}

func (c *Client) Close() error {
	return c.db.Close()
}

func (c *Client) InitSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS twitter_alerts (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		keyword_searched TEXT NOT NULL,
		post_url TEXT UNIQUE NOT NULL,
		author_handle TEXT,
		content TEXT,
		created_at INTEGER,
		threat_category TEXT NOT NULL,
		threat_level INTEGER NOT NULL,
		sentiment TEXT,
		sentiment_score REAL,
		ingested_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_alerts_category ON twitter_alerts(threat_category);
	CREATE INDEX IF NOT EXISTS idx_alerts_ingested ON twitter_alerts(ingested_at);
	`

	_, err := c.db.Exec(schema)
	if err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}

	logger.Info("SQLite schema initialized")
	return nil
}

// UpsertThreats writes the batch in one transaction keyed on post_url.
func (c *Client) UpsertThreats(ctx context.Context, records []models.ThreatRecord) (int, error) {
	if len(records) == 0 {
		return 0, nil
	}

	query := `
		INSERT INTO twitter_alerts (keyword_searched, post_url, author_handle, content, created_at,
			threat_category, threat_level, sentiment, sentiment_score, ingested_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(post_url) DO UPDATE SET
			keyword_searched = excluded.keyword_searched,
			author_handle = excluded.author_handle,
			content = excluded.content,
			created_at = excluded.created_at,
			threat_category = excluded.threat_category,
			threat_level = excluded.threat_level,
			sentiment = excluded.sentiment,
			sentiment_score = excluded.sentiment_score,
			ingested_at = excluded.ingested_at
	`

	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, query)
	if err != nil {
		return 0, fmt.Errorf("failed to prepare upsert: %w", err)
	}
	defer stmt.Close()

	ingestedAt := c.now().Unix()
	for _, r := range records {
		var postedAt sql.NullInt64
		if r.PostedAt != nil {
			postedAt = sql.NullInt64{Int64: r.PostedAt.Unix(), Valid: true}
		}

		_, err := stmt.ExecContext(ctx,
			r.KeywordSearched,
			r.PostURL,
			r.AuthorHandle,
			r.Content,
			postedAt,
			r.ThreatCategory,
			r.ThreatLevel,
			r.Sentiment,
			r.SentimentScore,
			ingestedAt,
		)
		if err != nil {
			return 0, fmt.Errorf("failed to upsert %s: %w", r.PostURL, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit upsert: %w", err)
	}

	logger.Debug("Threats upserted", zap.Int("count", len(records)))
	return len(records), nil
}

func (c *Client) ListThreats(ctx context.Context, filter models.AlertFilter) ([]models.ThreatRecord, error) {
	query := `
		SELECT id, keyword_searched, post_url, author_handle, content, created_at,
			threat_category, threat_level, sentiment, sentiment_score, ingested_at
		FROM twitter_alerts
	`
	args := []any{}
	if filter.Category != "" {
		query += " WHERE threat_category = ?"
		args = append(args, filter.Category)
	}
	query += " ORDER BY ingested_at DESC, id DESC LIMIT ?"
	args = append(args, filter.Limit)

	rows, err := c.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list threats: %w", err)
	}
	defer rows.Close()

	records := make([]models.ThreatRecord, 0)
	for rows.Next() {
		var r models.ThreatRecord
		var postedAt sql.NullInt64
		var author, content, label sql.NullString
		var score sql.NullFloat64
		var ingestedAt int64

		err := rows.Scan(
			&r.ID,
			&r.KeywordSearched,
			&r.PostURL,
			&author,
			&content,
			&postedAt,
			&r.ThreatCategory,
			&r.ThreatLevel,
			&label,
			&score,
			&ingestedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}

		r.AuthorHandle = author.String
		r.Content = content.String
		r.Sentiment = label.String
		r.SentimentScore = score.Float64
		if postedAt.Valid {
			ts := time.Unix(postedAt.Int64, 0).UTC()
			r.PostedAt = &ts
		}
		r.IngestedAt = time.Unix(ingestedAt, 0).UTC()
		records = append(records, r)
	}

	return records, rows.Err()
}

func (c *Client) CountByCategory(ctx context.Context, since time.Time) ([]models.CategoryCount, error) {
	query := `
		SELECT threat_category, COUNT(*)
		FROM twitter_alerts
		WHERE ingested_at >= ?
		GROUP BY threat_category
		ORDER BY COUNT(*) DESC
	`

	rows, err := c.db.QueryContext(ctx, query, since.Unix())
	if err != nil {
		return nil, fmt.Errorf("failed to count by category: %w", err)
	}
	defer rows.Close()

	counts := make([]models.CategoryCount, 0)
	for rows.Next() {
		var cc models.CategoryCount
		if err := rows.Scan(&cc.Category, &cc.Count); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		counts = append(counts, cc)
	}

	return counts, rows.Err()
}

func (c *Client) DailyCounts(ctx context.Context, since time.Time) ([]models.DailyCount, error) {
	query := `
		SELECT strftime('%Y-%m-%d', ingested_at, 'unixepoch') AS day, COUNT(*)
		FROM twitter_alerts
		WHERE ingested_at >= ?
		GROUP BY day
		ORDER BY day
	`

	rows, err := c.db.QueryContext(ctx, query, since.Unix())
	if err != nil {
		return nil, fmt.Errorf("failed to get daily counts: %w", err)
	}
	defer rows.Close()

	counts := make([]models.DailyCount, 0)
	for rows.Next() {
		var dc models.DailyCount
		if err := rows.Scan(&dc.Day, &dc.Count); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		counts = append(counts, dc)
	}

	return counts, rows.Err()
}

func (c *Client) Ping(ctx context.Context) error {
	return c.db.PingContext(ctx)
}
