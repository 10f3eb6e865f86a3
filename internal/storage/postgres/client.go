// Package postgres stores threat records in a Postgres table through gorm.
// A Supabase connection string works as-is.
package postgres

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	gpostgres "gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	glogger "gorm.io/gorm/logger"

	"github.com/Muchai10/safeguardcrawler/internal/storage/models"
	"github.com/Muchai10/safeguardcrawler/pkg/logger"
)

type Client struct {
	db  *gorm.DB
	now func() time.Time
}

func NewClient(dsn string) (*Client, error) {
	gdb, err := gorm.Open(gpostgres.Open(dsn), &gorm.Config{
		Logger: glogger.Default.LogMode(glogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}

	sqldb, err := gdb.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get sql handle: %w", err)
	}
	sqldb.SetMaxOpenConns(5)
	sqldb.SetMaxIdleConns(2)
	sqldb.SetConnMaxLifetime(30 * time.Minute)

	logger.Info("Postgres client initialized")

	return &Client{db: gdb, now: time.Now}, nil
}

func (c *Client) Close() error {
	sqldb, err := c.db.DB()
	if err != nil {
		return err
	}
	return sqldb.Close()
}

func (c *Client) InitSchema() error {
	if err := c.db.AutoMigrate(&models.ThreatRecord{}); err != nil {
		return fmt.Errorf("failed to migrate schema: %w", err)
	}
	logger.Info("Postgres schema initialized")
	return nil
}

func (c *Client) UpsertThreats(ctx context.Context, records []models.ThreatRecord) (int, error) {
	if len(records) == 0 {
		return 0, nil
	}

	ingestedAt := c.now().UTC()
	rows := make([]models.ThreatRecord, len(records))
	for i, r := range records {
		r.ID = 0
		r.IngestedAt = ingestedAt
		rows[i] = r
	}

	err := upsertStatement(c.db.WithContext(ctx), rows).Error
	if err != nil {
		return 0, fmt.Errorf("failed to upsert threats: %w", err)
	}

	logger.Debug("Threats upserted", zap.Int("count", len(rows)))
	return len(rows), nil
}

func (c *Client) ListThreats(ctx context.Context, filter models.AlertFilter) ([]models.ThreatRecord, error) {
	var items []models.ThreatRecord
	if err := listStatement(c.db.WithContext(ctx), filter).Find(&items).Error; err != nil {
		return nil, fmt.Errorf("failed to list threats: %w", err)
	}
	return items, nil
}

// upsertStatement inserts rows, overwriting every column but the key when
// post_url already exists.
func upsertStatement(tx *gorm.DB, rows []models.ThreatRecord) *gorm.DB {
	return tx.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "post_url"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"keyword_searched",
			"author_handle",
			"content",
			"created_at",
			"threat_category",
			"threat_level",
			"sentiment",
			"sentiment_score",
			"ingested_at",
		}),
	}).Create(&rows)
}

func listStatement(tx *gorm.DB, filter models.AlertFilter) *gorm.DB {
	query := tx.Model(&models.ThreatRecord{})
	if filter.Category != "" {
		query = query.Where("threat_category = ?", filter.Category)
	}
	return query.Order("ingested_at DESC").Order("id DESC").Limit(filter.Limit)
}

func (c *Client) CountByCategory(ctx context.Context, since time.Time) ([]models.CategoryCount, error) {
	var counts []models.CategoryCount
	err := c.db.WithContext(ctx).Model(&models.ThreatRecord{}).
		Select("threat_category AS category, COUNT(*) AS count").
		Where("ingested_at >= ?", since).
		Group("threat_category").
		Order("count DESC").
		Scan(&counts).Error
	if err != nil {
		return nil, fmt.Errorf("failed to count by category: %w", err)
	}
	return counts, nil
}

func (c *Client) DailyCounts(ctx context.Context, since time.Time) ([]models.DailyCount, error) {
	var counts []models.DailyCount
	err := c.db.WithContext(ctx).Model(&models.ThreatRecord{}).
		Select("to_char(ingested_at AT TIME ZONE 'UTC', 'YYYY-MM-DD') AS day, COUNT(*) AS count").
		Where("ingested_at >= ?", since).
		Group("day").
		Order("day").
		Scan(&counts).Error
	if err != nil {
		return nil, fmt.Errorf("failed to get daily counts: %w", err)
	}
	return counts, nil
}

func (c *Client) Ping(ctx context.Context) error {
	sqldb, err := c.db.DB()
	if err != nil {
		return err
	}
	return sqldb.PingContext(ctx)
}
