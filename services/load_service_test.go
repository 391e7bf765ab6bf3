package services

import (
	"context"
	"testing"
	"time"

	"bestsellers-etl/models"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func transformPayload(t *testing.T, payload string) *TransformedBatch {
	t.Helper()
	batch, err := NewTransformer(transformClock, nil).Transform(decodePayload(t, payload))
	require.NoError(t, err)
	return batch
}

func countRows(t *testing.T, db *gorm.DB, model interface{}) int64 {
	t.Helper()
	var n int64
	require.NoError(t, db.Model(model).Count(&n).Error)
	return n
}

func TestLoad_IsIdempotentOnNaturalKeys(t *testing.T) {
	db := newTestDB(t)
	loader := NewWarehouseLoader(db, nil, nil)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		_, err := loader.Load(ctx, transformPayload(t, minimalPayload))
		require.NoError(t, err, "load #%d", i+1)
	}

	assert.EqualValues(t, 1, countRows(t, db, &models.DimDate{}))
	assert.EqualValues(t, 1, countRows(t, db, &models.DimPublisher{}))
	assert.EqualValues(t, 1, countRows(t, db, &models.DimList{}))
	assert.EqualValues(t, 1, countRows(t, db, &models.DimBook{}))
	assert.EqualValues(t, 1, countRows(t, db, &models.FactBookRanking{}))
	assert.EqualValues(t, 1, countRows(t, db, &models.FactPublisherPerformance{}))

	var book models.DimBook
	require.NoError(t, db.Where("primary_isbn13 = ?", "123").First(&book).Error)
	var publisher models.DimPublisher
	require.NoError(t, db.First(&publisher, book.PublisherKey).Error)
	assert.Equal(t, "Acme", publisher.PublisherName)

	var ranking models.FactBookRanking
	require.NoError(t, db.First(&ranking).Error)
	assert.Equal(t, 20240101, ranking.DateKey)
	assert.Equal(t, book.BookKey, ranking.BookKey)
	assert.Equal(t, 1, ranking.Rank)
	assert.Equal(t, "9.99", ranking.Price.StringFixed(2))
}

func TestLoad_ExistingDimensionRowsWin(t *testing.T) {
	db := newTestDB(t)
	loader := NewWarehouseLoader(db, nil, nil)
	ctx := context.Background()

	_, err := loader.Load(ctx, transformPayload(t, fullPayload))
	require.NoError(t, err)

	batch := transformPayload(t, fullPayload)
	renamed := "Renamed List"
	batch.Lists[0].ListName = &renamed
	nextWeek := ymd(2024, time.January, 28)
	batch.Dates[0].NextPublishedDate = &nextWeek
	_, err = loader.Load(ctx, batch)
	require.NoError(t, err)

	var list models.DimList
	require.NoError(t, db.Where("list_id = ?", "704").First(&list).Error)
	require.NotNil(t, list.ListName)
	assert.Equal(t, "Combined Print and E-Book Fiction", *list.ListName)

	var dimDate models.DimDate
	require.NoError(t, db.First(&dimDate, 20240121).Error)
	require.NotNil(t, dimDate.NextPublishedDate)
	assert.True(t, dimDate.NextPublishedDate.Equal(nextWeek))
}

func TestLoad_DropsUnresolvableRowsSilently(t *testing.T) {
	db := newTestDB(t)
	loader := NewWarehouseLoader(db, nil, nil)

	batch := transformPayload(t, minimalPayload)
	orphan := batch.Books[0]
	orphan.Book.PrimaryISBN13 = "456"
	orphan.PublisherName = ""
	batch.Books = append(batch.Books, orphan)
	batch.Rankings = append(batch.Rankings,
		RankingRecord{ISBN13: "456", ListID: "L1", PublishedDate: ymd(2024, time.January, 1), Rank: 2},
		RankingRecord{ISBN13: "123", ListID: "missing", PublishedDate: ymd(2024, time.January, 1), Rank: 3},
	)

	result, err := loader.Load(context.Background(), batch)
	require.NoError(t, err)
	assert.Equal(t, 1, result.DroppedBooks)
	assert.Equal(t, 2, result.DroppedRankings)
	assert.EqualValues(t, 1, countRows(t, db, &models.DimBook{}))
	assert.EqualValues(t, 1, countRows(t, db, &models.FactBookRanking{}))
}

func TestLoad_RollsBackWhenAggregateStepFails(t *testing.T) {
	db := newTestDB(t)
	require.NoError(t, db.Migrator().DropTable(&models.FactPublisherPerformance{}))

	_, err := NewWarehouseLoader(db, nil, nil).Load(context.Background(), transformPayload(t, fullPayload))
	require.ErrorIs(t, err, ErrLoad)

	assert.Zero(t, countRows(t, db, &models.DimDate{}))
	assert.Zero(t, countRows(t, db, &models.DimPublisher{}))
	assert.Zero(t, countRows(t, db, &models.DimList{}))
	assert.Zero(t, countRows(t, db, &models.DimBook{}))
	assert.Zero(t, countRows(t, db, &models.FactBookRanking{}))
}

func performanceFor(t *testing.T, db *gorm.DB, publisher, listID string) models.FactPublisherPerformance {
	t.Helper()
	var row models.FactPublisherPerformance
	err := db.Table("fact_publisher_performance AS pp").
		Select("pp.*").
		Joins("JOIN dim_publisher p ON p.publisher_key = pp.publisher_key").
		Joins("JOIN dim_list l ON l.list_key = pp.list_key").
		Where("p.publisher_name = ? AND l.list_id = ?", publisher, listID).
		Scan(&row).Error
	require.NoError(t, err)
	require.NotZero(t, row.PerformanceKey, "no performance row for %s/%s", publisher, listID)
	return row
}

func TestLoad_RecomputesPublisherPerformance(t *testing.T) {
	db := newTestDB(t)
	reg := prometheus.NewRegistry()
	metrics := NewMetrics(reg)
	loader := NewWarehouseLoader(db, metrics, nil)
	ctx := context.Background()

	_, err := loader.Load(ctx, transformPayload(t, fullPayload))
	require.NoError(t, err)
	assert.EqualValues(t, 3, countRows(t, db, &models.FactPublisherPerformance{}))

	red := performanceFor(t, db, "Red Tower", "704")
	assert.Equal(t, 9, red.TotalPoints)
	assert.Equal(t, 2, red.BooksInTop5)
	assert.Equal(t, 1, red.Rank1Count)
	assert.Equal(t, 1, red.Rank2Count)
	assert.Equal(t, 1, red.Quarter)
	assert.Equal(t, 2024, red.Year)

	outside := performanceFor(t, db, "Red Tower", "hardcover-fiction")
	assert.Zero(t, outside.TotalPoints)
	assert.Zero(t, outside.BooksInTop5)

	// The same week reloaded with a corrected rank replaces the metrics.
	batch := transformPayload(t, fullPayload)
	batch.Rankings[1].Rank = 3
	_, err = loader.Load(ctx, batch)
	require.NoError(t, err)

	assert.EqualValues(t, 3, countRows(t, db, &models.FactPublisherPerformance{}))
	red = performanceFor(t, db, "Red Tower", "704")
	assert.Equal(t, 8, red.TotalPoints)
	assert.Equal(t, 2, red.BooksInTop5)
	assert.Equal(t, 0, red.Rank2Count)
	assert.Equal(t, 1, red.Rank3Count)

	assert.Equal(t, float64(3), testutil.ToFloat64(metrics.RowsWritten.WithLabelValues("dim_book")))
}

func TestLoad_NilBatch(t *testing.T) {
	_, err := NewWarehouseLoader(newTestDB(t), nil, nil).Load(context.Background(), nil)
	assert.ErrorIs(t, err, ErrLoad)
}
