package query

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Muchai10/safeguardcrawler/internal/storage/models"
	"github.com/Muchai10/safeguardcrawler/internal/threat"
	"github.com/Muchai10/safeguardcrawler/pkg/logger"
)

const (
	DefaultLimit = 50
	MaxLimit     = 200
	DefaultDays  = 7
	MaxDays      = 90
)

var (
	ErrNoStore         = errors.New("alert storage not configured")
	ErrInvalidCategory = errors.New("unknown threat category")
)

type Reader interface {
	ListThreats(ctx context.Context, filter models.AlertFilter) ([]models.ThreatRecord, error)
	CountByCategory(ctx context.Context, since time.Time) ([]models.CategoryCount, error)
	DailyCounts(ctx context.Context, since time.Time) ([]models.DailyCount, error)
}

type Engine struct {
	reader Reader
	now    func() time.Time
}

type ListRequest struct {
	Limit    int
	Category string
}

type ListResponse struct {
	ID        string                `json:"id"`
	Alerts    []models.ThreatRecord `json:"alerts"`
	Count     int                   `json:"count"`
	LatencyMS int                   `json:"latency_ms"`
}

type StatsResponse struct {
	Days       int                    `json:"days"`
	Since      time.Time              `json:"since"`
	Total      int64                  `json:"total"`
	ByCategory []models.CategoryCount `json:"by_category"`
	Daily      []models.DailyCount    `json:"daily"`
}

// NewEngine accepts a nil reader; every query then fails with ErrNoStore.
func NewEngine(reader Reader) *Engine {
	return &Engine{reader: reader, now: time.Now}
}

func (e *Engine) ListAlerts(ctx context.Context, req ListRequest) (*ListResponse, error) {
	if e.reader == nil {
		return nil, ErrNoStore
	}

	startTime := time.Now()
	queryID := uuid.New().String()

	limit := req.Limit
	if limit <= 0 {
		limit = DefaultLimit
	}
	limit = min(limit, MaxLimit)

	if req.Category != "" && !threat.Category(req.Category).Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidCategory, req.Category)
	}

	alerts, err := e.reader.ListThreats(ctx, models.AlertFilter{Limit: limit, Category: req.Category})
	if err != nil {
		return nil, fmt.Errorf("failed to list alerts: %w", err)
	}

	latency := int(time.Since(startTime).Milliseconds())
	logger.Debug("Alerts listed",
		zap.String("query_id", queryID),
		zap.Int("count", len(alerts)),
		zap.String("category", req.Category),
		zap.Int("latency_ms", latency),
	)

	return &ListResponse{
		ID:        queryID,
		Alerts:    alerts,
		Count:     len(alerts),
		LatencyMS: latency,
	}, nil
}

// Stats aggregates alerts ingested in the last days days, counting today.
func (e *Engine) Stats(ctx context.Context, days int) (*StatsResponse, error) {
	if e.reader == nil {
		return nil, ErrNoStore
	}
	if days <= 0 {
		days = DefaultDays
	}
	days = min(days, MaxDays)

	now := e.now().UTC()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	since := today.AddDate(0, 0, -(days - 1))

	byCategory, err := e.reader.CountByCategory(ctx, since)
	if err != nil {
		return nil, fmt.Errorf("failed to count by category: %w", err)
	}
	daily, err := e.reader.DailyCounts(ctx, since)
	if err != nil {
		return nil, fmt.Errorf("failed to get daily counts: %w", err)
	}

	var total int64
	for _, c := range byCategory {
		total += c.Count
	}

	return &StatsResponse{
		Days:       days,
		Since:      since,
		Total:      total,
		ByCategory: byCategory,
		Daily:      fillDays(since, days, daily),
	}, nil
}

// fillDays returns one entry per day so charts get a continuous series.
func fillDays(since time.Time, days int, counts []models.DailyCount) []models.DailyCount {
	byDay := make(map[string]int64, len(counts))
	for _, c := range counts {
		byDay[c.Day] = c.Count
	}

	out := make([]models.DailyCount, 0, days)
	for i := 0; i < days; i++ {
		day := since.AddDate(0, 0, i).Format("2006-01-02")
		out = append(out, models.DailyCount{Day: day, Count: byDay[day]})
	}
	return out
}
