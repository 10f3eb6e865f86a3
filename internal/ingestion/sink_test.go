package ingestion

import (
	"context"
	"encoding/csv"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/Muchai10/safeguardcrawler/internal/storage/models"
)

func batch(n int) []models.ThreatRecord {
	posted := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	out := make([]models.ThreatRecord, 0, n)
	for i := 0; i < n; i++ {
		r := models.ThreatRecord{
			KeywordSearched: "kill you",
			PostURL:         "https://twitter.com/user/status/" + string(rune('a'+i)),
			AuthorHandle:    "user_42",
			Content:         "I will kill you, \"quoted\", tomorrow",
			ThreatCategory:  "high_threat",
			ThreatLevel:     85,
			Sentiment:       "N/A",
		}
		if i == 0 {
			r.PostedAt = &posted
		}
		out = append(out, r)
	}
	return out
}

func readCSV(t *testing.T, path string) [][]string {
	t.Helper()
	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open backup: %v", err)
	}
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatalf("read backup: %v", err)
	}
	return rows
}

type fakeStore struct {
	got []models.ThreatRecord
	err error
}

func (f *fakeStore) UpsertThreats(ctx context.Context, records []models.ThreatRecord) (int, error) {
	if f.err != nil {
		return 0, f.err
	}
	f.got = append(f.got, records...)
	return len(records), nil
}

type fakeNotifier struct {
	published int
}

func (f *fakeNotifier) Publish(records []models.ThreatRecord) {
	f.published += len(records)
}

func TestPersistWithoutStoreWritesBackupOnly(t *testing.T) {
	path := filepath.Join(t.TempDir(), "threats.csv")
	s := NewSink(nil, nil, path)

	res, err := s.Persist(context.Background(), batch(3))
	if err != nil {
		t.Fatalf("Persist: %v", err)
	}
	if !res.Degraded || res.Records != 3 || res.Uploaded != 0 || res.BackupPath != path {
		t.Fatalf("result=%+v", res)
	}

	rows := readCSV(t, path)
	if len(rows) != 4 {
		t.Fatalf("rows=%d want header + 3", len(rows))
	}
	if strings.Join(rows[0], ",") != strings.Join(models.Columns(), ",") {
		t.Fatalf("header=%v", rows[0])
	}
	if rows[1][4] != "2024-05-01T10:00:00Z" || rows[2][4] != "" {
		t.Fatalf("created_at cells=%q,%q", rows[1][4], rows[2][4])
	}
	if rows[1][3] != `I will kill you, "quoted", tomorrow` {
		t.Fatalf("content=%q", rows[1][3])
	}
}

func TestPersistOverwritesBackupEachCycle(t *testing.T) {
	path := filepath.Join(t.TempDir(), "threats.csv")
	s := NewSink(nil, nil, path)

	if _, err := s.Persist(context.Background(), batch(3)); err != nil {
		t.Fatalf("Persist: %v", err)
	}
	if _, err := s.Persist(context.Background(), batch(1)); err != nil {
		t.Fatalf("Persist: %v", err)
	}
	if rows := readCSV(t, path); len(rows) != 2 {
		t.Fatalf("rows=%d want header + 1", len(rows))
	}

	entries, _ := os.ReadDir(filepath.Dir(path))
	if len(entries) != 1 {
		t.Fatalf("temp files left behind: %d entries", len(entries))
	}
}

func TestPersistUploadFailureKeepsBackup(t *testing.T) {
	path := filepath.Join(t.TempDir(), "threats.csv")
	store := &fakeStore{err: errors.New("connection refused")}
	n := &fakeNotifier{}
	s := NewSink(store, n, path)

	res, err := s.Persist(context.Background(), batch(2))
	if err != nil {
		t.Fatalf("Persist: %v", err)
	}
	if res.UploadErr == nil || res.Uploaded != 0 || res.Degraded {
		t.Fatalf("result=%+v", res)
	}
	if rows := readCSV(t, path); len(rows) != 3 {
		t.Fatalf("rows=%d want header + 2", len(rows))
	}
	if n.published != 2 {
		t.Fatalf("published=%d want 2", n.published)
	}
}

func TestPersistUploads(t *testing.T) {
	path := filepath.Join(t.TempDir(), "threats.csv")
	store := &fakeStore{}
	s := NewSink(store, nil, path)

	res, err := s.Persist(context.Background(), batch(2))
	if err != nil {
		t.Fatalf("Persist: %v", err)
	}
	if res.Uploaded != 2 || len(store.got) != 2 || res.UploadErr != nil {
		t.Fatalf("result=%+v", res)
	}
}

func TestPersistEmptyBatchIsNoop(t *testing.T) {
	path := filepath.Join(t.TempDir(), "threats.csv")
	store := &fakeStore{}
	s := NewSink(store, nil, path)

	res, err := s.Persist(context.Background(), nil)
	if err != nil || res.Records != 0 {
		t.Fatalf("res=%+v err=%v", res, err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Fatalf("backup written for empty batch")
	}
	if len(store.got) != 0 {
		t.Fatalf("store called for empty batch")
	}
}
