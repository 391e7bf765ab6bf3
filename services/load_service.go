package services

import (
	"context"
	"fmt"
	"time"

	"bestsellers-etl/config"
	"bestsellers-etl/models"
	"bestsellers-etl/utils"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Loader writes one transformed batch to the warehouse.
type Loader interface {
	Load(ctx context.Context, batch *TransformedBatch) (*LoadResult, error)
}

// LoadResult counts rows written per table and records skipped by the load.
type LoadResult struct {
	Dates           int64 `json:"dates"`
	Publishers      int64 `json:"publishers"`
	Lists           int64 `json:"lists"`
	Books           int64 `json:"books"`
	Rankings        int64 `json:"rankings"`
	Performance     int64 `json:"performance"`
	DroppedBooks    int   `json:"dropped_books"`
	DroppedRankings int   `json:"dropped_rankings"`
}

// RowsByTable maps warehouse table names to the rows written to them.
func (r *LoadResult) RowsByTable() map[string]int64 {
	return map[string]int64{
		models.DimDate{}.TableName():                  r.Dates,
		models.DimPublisher{}.TableName():             r.Publishers,
		models.DimList{}.TableName():                  r.Lists,
		models.DimBook{}.TableName():                  r.Books,
		models.FactBookRanking{}.TableName():          r.Rankings,
		models.FactPublisherPerformance{}.TableName(): r.Performance,
	}
}

// WarehouseLoader upserts batches inside a single transaction per batch.
type WarehouseLoader struct {
	db      *gorm.DB
	metrics *Metrics
	logger  *zap.Logger
}

// NewWarehouseLoader constructs a WarehouseLoader.
func NewWarehouseLoader(db *gorm.DB, metrics *Metrics, logger *zap.Logger) *WarehouseLoader {
	if db == nil {
		db = config.DB
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WarehouseLoader{db: db, metrics: metrics, logger: logger}
}

type loadStep struct {
	name string
	run  func(tx *gorm.DB, batch *TransformedBatch, result *LoadResult) error
}

// Load writes batch in dependency order: dates, publishers, lists, books,
// rankings, then publisher performance. Later steps resolve keys written by
// earlier ones, so the order is fixed. Any failure rolls the whole batch back.
func (l *WarehouseLoader) Load(ctx context.Context, batch *TransformedBatch) (*LoadResult, error) {
	if batch == nil {
		return nil, fmt.Errorf("%w: batch is nil", ErrLoad)
	}

	steps := []loadStep{
		{"dates", l.loadDates},
		{"publishers", l.loadPublishers},
		{"lists", l.loadLists},
		{"books", l.loadBooks},
		{"rankings", l.loadRankings},
		{"publisher performance", l.loadPublisherPerformance},
	}

	l.logger.Info("starting data load")
	started := time.Now()
	result := &LoadResult{}
	err := l.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, step := range steps {
			if err := step.run(tx, batch, result); err != nil {
				return fmt.Errorf("%s: %w", step.name, err)
			}
		}
		return nil
	})
	if err != nil {
		l.metrics.observeLoad(time.Since(started), nil)
		l.logger.Error("data load failed, transaction rolled back", zap.Error(err))
		return nil, fmt.Errorf("%w: %v", ErrLoad, err)
	}
	l.metrics.observeLoad(time.Since(started), result)

	l.logger.Info("data load completed",
		zap.Int64("dates", result.Dates),
		zap.Int64("publishers", result.Publishers),
		zap.Int64("lists", result.Lists),
		zap.Int64("books", result.Books),
		zap.Int64("rankings", result.Rankings),
		zap.Int64("performance", result.Performance),
		zap.Int("dropped_books", result.DroppedBooks),
		zap.Int("dropped_rankings", result.DroppedRankings))
	return result, nil
}

// loadDates upserts date rows; only the linked published dates change on conflict.
func (l *WarehouseLoader) loadDates(tx *gorm.DB, batch *TransformedBatch, result *LoadResult) error {
	if len(batch.Dates) == 0 {
		return nil
	}
	rows := append([]models.DimDate(nil), batch.Dates...)
	res := tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "date_key"}},
		DoUpdates: clause.AssignmentColumns(models.DimDateLinkedColumns),
	}).Create(&rows)
	if res.Error != nil {
		return res.Error
	}
	result.Dates = res.RowsAffected
	return nil
}

// The three dimension loaders below insert only when no current row exists
// for the natural key; an existing current row always wins.

func (l *WarehouseLoader) loadPublishers(tx *gorm.DB, batch *TransformedBatch, result *LoadResult) error {
	if len(batch.Publishers) == 0 {
		return nil
	}
	rows := append([]models.DimPublisher(nil), batch.Publishers...)
	res := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&rows)
	if res.Error != nil {
		return res.Error
	}
	result.Publishers = res.RowsAffected
	return nil
}

func (l *WarehouseLoader) loadLists(tx *gorm.DB, batch *TransformedBatch, result *LoadResult) error {
	if len(batch.Lists) == 0 {
		return nil
	}
	rows := append([]models.DimList(nil), batch.Lists...)
	res := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&rows)
	if res.Error != nil {
		return res.Error
	}
	result.Lists = res.RowsAffected
	return nil
}

func (l *WarehouseLoader) loadBooks(tx *gorm.DB, batch *TransformedBatch, result *LoadResult) error {
	if len(batch.Books) == 0 {
		return nil
	}

	names := make([]string, 0, len(batch.Books))
	for _, rec := range batch.Books {
		if rec.PublisherName != "" {
			names = append(names, rec.PublisherName)
		}
	}
	keyByName := make(map[string]uint, len(names))
	if len(names) > 0 {
		var publishers []models.DimPublisher
		if err := tx.Where("publisher_name IN ? AND is_current = ?", names, true).
			Find(&publishers).Error; err != nil {
			return err
		}
		for _, p := range publishers {
			keyByName[p.PublisherName] = p.PublisherKey
		}
	}

	rows := make([]models.DimBook, 0, len(batch.Books))
	for _, rec := range batch.Books {
		key, ok := keyByName[rec.PublisherName]
		if !ok {
			result.DroppedBooks++
			l.logger.Debug("skipping book without current publisher",
				zap.String("isbn13", rec.Book.PrimaryISBN13),
				zap.String("publisher", rec.PublisherName))
			continue
		}
		book := rec.Book
		book.BookKey = 0
		book.PublisherKey = key
		rows = append(rows, book)
	}
	if len(rows) == 0 {
		return nil
	}

	res := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&rows)
	if res.Error != nil {
		return res.Error
	}
	result.Books = res.RowsAffected
	return nil
}

// loadRankings resolves each ranking against the date row and the current
// book and list rows. Rankings that resolve to nothing are dropped silently.
func (l *WarehouseLoader) loadRankings(tx *gorm.DB, batch *TransformedBatch, result *LoadResult) error {
	if len(batch.Rankings) == 0 {
		return nil
	}

	dateKeys := make([]int, 0, 1)
	isbns := make([]string, 0, len(batch.Rankings))
	listIDs := make([]string, 0, len(batch.Lists))
	for _, r := range batch.Rankings {
		dateKeys = append(dateKeys, utils.DateKey(r.PublishedDate))
		isbns = append(isbns, r.ISBN13)
		listIDs = append(listIDs, r.ListID)
	}

	var dates []models.DimDate
	if err := tx.Select("date_key").Where("date_key IN ?", dateKeys).Find(&dates).Error; err != nil {
		return err
	}
	knownDates := make(map[int]struct{}, len(dates))
	for _, d := range dates {
		knownDates[d.DateKey] = struct{}{}
	}

	var books []models.DimBook
	if err := tx.Select("book_key", "primary_isbn13").
		Where("primary_isbn13 IN ? AND is_current = ?", isbns, true).
		Find(&books).Error; err != nil {
		return err
	}
	bookKeys := make(map[string]uint, len(books))
	for _, b := range books {
		bookKeys[b.PrimaryISBN13] = b.BookKey
	}

	var lists []models.DimList
	if err := tx.Select("list_key", "list_id").
		Where("list_id IN ? AND is_current = ?", listIDs, true).
		Find(&lists).Error; err != nil {
		return err
	}
	listKeys := make(map[string]uint, len(lists))
	for _, li := range lists {
		listKeys[li.ListID] = li.ListKey
	}

	type rankingID struct {
		date int
		book uint
		list uint
	}
	seen := make(map[rankingID]int, len(batch.Rankings))
	rows := make([]models.FactBookRanking, 0, len(batch.Rankings))
	for _, r := range batch.Rankings {
		dateKey := utils.DateKey(r.PublishedDate)
		_, dateOK := knownDates[dateKey]
		bookKey, bookOK := bookKeys[r.ISBN13]
		listKey, listOK := listKeys[r.ListID]
		if !dateOK || !bookOK || !listOK {
			result.DroppedRankings++
			l.logger.Debug("skipping ranking without current dimensions",
				zap.String("isbn13", r.ISBN13),
				zap.String("list_id", r.ListID),
				zap.Int("date_key", dateKey))
			continue
		}

		row := models.FactBookRanking{
			DateKey:      dateKey,
			BookKey:      bookKey,
			ListKey:      listKey,
			Rank:         r.Rank,
			Price:        r.Price,
			WeeksOnList:  r.WeeksOnList,
			RankLastWeek: r.RankLastWeek,
		}
		id := rankingID{dateKey, bookKey, listKey}
		if idx, dup := seen[id]; dup {
			rows[idx] = row
			continue
		}
		seen[id] = len(rows)
		rows = append(rows, row)
	}
	if len(rows) == 0 {
		return nil
	}

	res := tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "date_key"}, {Name: "book_key"}, {Name: "list_key"}},
		DoUpdates: clause.AssignmentColumns(models.FactBookRankingRefreshColumns),
	}).Create(&rows)
	if res.Error != nil {
		return res.Error
	}
	result.Rankings = res.RowsAffected
	return nil
}

const publisherPerformanceSelect = `p.publisher_key AS publisher_key,
	d.date_key AS date_key,
	f.list_key AS list_key,
	d.quarter AS quarter,
	d.year AS year,
	SUM(CASE WHEN f.rank <= 5 THEN 6 - f.rank ELSE 0 END) AS total_points,
	COUNT(CASE WHEN f.rank <= 5 THEN 1 END) AS books_in_top_5,
	COUNT(CASE WHEN f.rank = 1 THEN 1 END) AS rank_1_count,
	COUNT(CASE WHEN f.rank = 2 THEN 1 END) AS rank_2_count,
	COUNT(CASE WHEN f.rank = 3 THEN 1 END) AS rank_3_count,
	COUNT(CASE WHEN f.rank = 4 THEN 1 END) AS rank_4_count,
	COUNT(CASE WHEN f.rank = 5 THEN 1 END) AS rank_5_count`

// loadPublisherPerformance recomputes the aggregate from every ranking of
// the batch's dates and replaces existing rows. A book's publisher key never
// changes once written, so rows of other dates cannot be affected.
func (l *WarehouseLoader) loadPublisherPerformance(tx *gorm.DB, batch *TransformedBatch, result *LoadResult) error {
	if len(batch.Dates) == 0 {
		return nil
	}
	dateKeys := make([]int, 0, len(batch.Dates))
	for _, d := range batch.Dates {
		dateKeys = append(dateKeys, d.DateKey)
	}

	var rows []models.FactPublisherPerformance
	if err := tx.Table("fact_book_rankings AS f").
		Select(publisherPerformanceSelect).
		Joins("JOIN dim_book b ON f.book_key = b.book_key").
		Joins("JOIN dim_publisher p ON b.publisher_key = p.publisher_key").
		Joins("JOIN dim_date d ON f.date_key = d.date_key").
		Where("d.date_key IN ?", dateKeys).
		Group("p.publisher_key, d.date_key, f.list_key, d.quarter, d.year").
		Scan(&rows).Error; err != nil {
		return err
	}
	if len(rows) == 0 {
		return nil
	}

	res := tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "publisher_key"}, {Name: "date_key"}, {Name: "list_key"}},
		DoUpdates: clause.AssignmentColumns(models.FactPublisherPerformanceMetricColumns),
	}).Create(&rows)
	if res.Error != nil {
		return res.Error
	}
	result.Performance = res.RowsAffected
	return nil
}
