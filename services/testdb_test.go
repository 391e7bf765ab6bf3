package services

import (
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"bestsellers-etl/models"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// newTestDB opens a migrated warehouse in a temp-file SQLite database.
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	path := filepath.Join(t.TempDir(), "warehouse.db")
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, models.AutoMigrate(db))
	return db
}

func fixedClock(ts time.Time) func() time.Time {
	return func() time.Time { return ts }
}

func ymd(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

const minimalPayload = `{
  "status": "OK",
  "num_results": 1,
  "results": {
    "published_date": "2024-01-01",
    "lists": [
      {
        "list_id": "L1",
        "books": [
          {"primary_isbn13": "123", "rank": 1, "price": 9.99, "publisher": "Acme"}
        ]
      }
    ]
  }
}`

const fullPayload = `{
  "status": "OK",
  "num_results": 3,
  "results": {
    "bestsellers_date": "2024-01-06",
    "published_date": "2024-01-21",
    "previous_published_date": "2024-01-14",
    "next_published_date": "",
    "lists": [
      {
        "list_id": 704,
        "list_name": "Combined Print and E-Book Fiction",
        "display_name": "Combined Print & E-Book Fiction",
        "updated": "WEEKLY",
        "list_image": "https://example.com/img.jpg",
        "books": [
          {
            "title": "FOURTH WING", "author": "Rebecca Yarros", "publisher": "Red Tower",
            "primary_isbn13": "9781649374042", "primary_isbn10": "1649374046",
            "rank": 1, "rank_last_week": 2, "weeks_on_list": 20, "price": "0.00",
            "created_date": "2024-01-10 22:10:05", "updated_date": "2024-01-10 22:14:03"
          },
          {
            "title": "IRON FLAME", "author": "Rebecca Yarros", "publisher": "Red Tower",
            "primary_isbn13": "9781649374172", "rank": 2, "rank_last_week": 1,
            "weeks_on_list": 10, "price": 12.5
          }
        ]
      },
      {
        "list_id": "hardcover-fiction",
        "list_name": "Hardcover Fiction",
        "books": [
          {
            "title": "THE WOMEN", "author": "Kristin Hannah", "publisher": "St. Martin's",
            "primary_isbn13": "9781250178633", "rank": 1, "price": 0,
            "rank_last_week": 0, "weeks_on_list": 1
          },
          {
            "title": "FOURTH WING", "author": "Rebecca Yarros", "publisher": "Red Tower",
            "primary_isbn13": "9781649374042", "rank": 6, "price": 0
          }
        ]
      }
    ]
  }
}`

func decodePayload(t *testing.T, payload string) *RawResponse {
	t.Helper()
	var raw RawResponse
	require.NoError(t, json.Unmarshal([]byte(payload), &raw))
	return &raw
}
