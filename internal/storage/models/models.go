package models

import (
	"strconv"
	"time"
)

// ThreatRecord is one admitted post. PostURL is the natural key; writing the
// same URL again replaces the earlier row.
type ThreatRecord struct {
	ID              uint       `gorm:"primaryKey" json:"id,omitempty"`
	KeywordSearched string     `gorm:"column:keyword_searched;not null" json:"keyword_searched"`
	PostURL         string     `gorm:"column:post_url;uniqueIndex;not null" json:"post_url"`
	AuthorHandle    string     `gorm:"column:author_handle" json:"author_handle"`
	Content         string     `gorm:"column:content;type:text" json:"content"`
	PostedAt        *time.Time `gorm:"column:created_at" json:"created_at"`
	ThreatCategory  string     `gorm:"column:threat_category;index" json:"threat_category"`
	ThreatLevel     int        `gorm:"column:threat_level" json:"threat_level"`
	Sentiment       string     `gorm:"column:sentiment" json:"sentiment"`
	SentimentScore  float64    `gorm:"column:sentiment_score" json:"sentiment_score"`
	IngestedAt      time.Time  `gorm:"column:ingested_at;index" json:"ingested_at"`
}

func (ThreatRecord) TableName() string {
	return "twitter_alerts"
}

// Columns is the fixed export order shared by the CSV backup and the table.
func Columns() []string {
	return []string{
		"keyword_searched",
		"post_url",
		"author_handle",
		"content",
		"created_at",
		"threat_category",
		"threat_level",
		"sentiment",
		"sentiment_score",
	}
}

// Row renders r in Columns order. A nil timestamp becomes an empty cell.
func (r ThreatRecord) Row() []string {
	var postedAt string
	if r.PostedAt != nil {
		postedAt = r.PostedAt.UTC().Format(time.RFC3339)
	}
	return []string{
		r.KeywordSearched,
		r.PostURL,
		r.AuthorHandle,
		r.Content,
		postedAt,
		r.ThreatCategory,
		strconv.Itoa(r.ThreatLevel),
		r.Sentiment,
		strconv.FormatFloat(r.SentimentScore, 'f', -1, 64),
	}
}

type AlertFilter struct {
	Limit    int
	Category string
}

type CategoryCount struct {
	Category string `json:"category"`
	Count    int64  `json:"count"`
}

type DailyCount struct {
	Day   string `json:"day"`
	Count int64  `json:"count"`
}
