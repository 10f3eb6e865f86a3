package postgres

import (
	"context"
	"strings"
	"testing"
	"time"

	gpostgres "gorm.io/driver/postgres"
	"gorm.io/gorm"
	glogger "gorm.io/gorm/logger"

	"github.com/Muchai10/safeguardcrawler/internal/storage/models"
)

// newDryRunClient builds SQL without a server; the pgx pool never dials.
func newDryRunClient(t *testing.T) *Client {
	t.Helper()

	gdb, err := gorm.Open(gpostgres.New(gpostgres.Config{
		DSN: "host=localhost user=safeguard dbname=safeguard sslmode=disable",
	}), &gorm.Config{
		DryRun:               true,
		DisableAutomaticPing: true,
		Logger:               glogger.Default.LogMode(glogger.Silent),
	})
	if err != nil {
		t.Fatalf("open: %v", err)
	}

	now := time.Date(2024, 3, 5, 21, 15, 0, 0, time.UTC)
	return &Client{db: gdb, now: func() time.Time { return now }}
}

func sampleRecords() []models.ThreatRecord {
	return []models.ThreatRecord{{
		KeywordSearched: "kill you",
		PostURL:         "https://twitter.com/user/status/1",
		AuthorHandle:    "user_42",
		Content:         "I will kill you in Nairobi tomorrow",
		ThreatCategory:  "high_threat",
		ThreatLevel:     95,
		Sentiment:       "Negative",
		SentimentScore:  0.912,
	}}
}

func TestUpsertStatementKeysOnPostURL(t *testing.T) {
	c := newDryRunClient(t)

	sql := c.db.ToSQL(func(tx *gorm.DB) *gorm.DB {
		return upsertStatement(tx, sampleRecords())
	})

	for _, want := range []string{
		`INSERT INTO "twitter_alerts"`,
		`ON CONFLICT ("post_url") DO UPDATE SET`,
		`"threat_level"="excluded"."threat_level"`,
		`"sentiment"="excluded"."sentiment"`,
		`"ingested_at"="excluded"."ingested_at"`,
	} {
		if !strings.Contains(sql, want) {
			t.Fatalf("sql missing %q:\n%s", want, sql)
		}
	}
	if strings.Contains(sql, `"post_url"="excluded"."post_url"`) {
		t.Fatalf("natural key must not be rewritten:\n%s", sql)
	}
}

func TestUpsertThreatsDryRun(t *testing.T) {
	c := newDryRunClient(t)

	n, err := c.UpsertThreats(context.Background(), sampleRecords())
	if err != nil {
		t.Fatalf("UpsertThreats: %v", err)
	}
	if n != 1 {
		t.Fatalf("n=%d want 1", n)
	}

	n, err = c.UpsertThreats(context.Background(), nil)
	if err != nil || n != 0 {
		t.Fatalf("empty batch: n=%d err=%v", n, err)
	}
}

func TestListStatement(t *testing.T) {
	c := newDryRunClient(t)

	tests := []struct {
		filter  models.AlertFilter
		want    []string
		notWant string
	}{
		{
			filter: models.AlertFilter{Limit: 5, Category: "high_threat"},
			want:   []string{`threat_category = 'high_threat'`, `ORDER BY ingested_at DESC,id DESC`, `LIMIT 5`},
		},
		{
			filter:  models.AlertFilter{Limit: 50},
			want:    []string{`FROM "twitter_alerts"`, `LIMIT 50`},
			notWant: "WHERE",
		},
	}
	for _, tt := range tests {
		sql := c.db.ToSQL(func(tx *gorm.DB) *gorm.DB {
			var items []models.ThreatRecord
			return listStatement(tx, tt.filter).Find(&items)
		})
		for _, want := range tt.want {
			if !strings.Contains(sql, want) {
				t.Fatalf("filter %+v: sql missing %q:\n%s", tt.filter, want, sql)
			}
		}
		if tt.notWant != "" && strings.Contains(sql, tt.notWant) {
			t.Fatalf("filter %+v: unexpected %q:\n%s", tt.filter, tt.notWant, sql)
		}
	}
}
