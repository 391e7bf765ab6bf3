package services

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"bestsellers-etl/models"
	"bestsellers-etl/utils"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// BookRecord is a book dimension row whose publisher key is resolved at load time.
type BookRecord struct {
	Book          models.DimBook
	PublisherName string
}

// RankingRecord is a ranking fact whose dimension keys are resolved at load time.
type RankingRecord struct {
	ISBN13        string
	ListID        string
	PublishedDate time.Time
	Rank          int
	Price         decimal.Decimal
	WeeksOnList   *int
	RankLastWeek  *int
}

// TransformedBatch holds every record derived from one API response.
type TransformedBatch struct {
	Dates      []models.DimDate
	Publishers []models.DimPublisher
	Lists      []models.DimList
	Books      []BookRecord
	Rankings   []RankingRecord
}

// Transformer maps raw API responses onto the dimensional model. It performs
// no I/O; the clock only stamps effective_start_date.
type Transformer struct {
	now    func() time.Time
	logger *zap.Logger
}

// NewTransformer constructs a Transformer. A nil clock means time.Now.
func NewTransformer(now func() time.Time, logger *zap.Logger) *Transformer {
	if now == nil {
		now = time.Now
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Transformer{now: now, logger: logger}
}

// Transform builds a TransformedBatch from raw. Any missing or malformed
// required field fails the whole response with ErrTransformation.
func (t *Transformer) Transform(raw *RawResponse) (*TransformedBatch, error) {
	if raw == nil || raw.Results == nil {
		return nil, fmt.Errorf("%w: response has no results", ErrTransformation)
	}
	results := raw.Results

	published, err := utils.ParseDate(results.PublishedDate)
	if err != nil {
		return nil, fmt.Errorf("%w: published_date: %v", ErrTransformation, err)
	}
	linked := make(map[string]*time.Time, 3)
	for _, field := range []struct{ name, value string }{
		{"bestsellers_date", results.BestsellersDate},
		{"previous_published_date", results.PreviousPublishedDate},
		{"next_published_date", results.NextPublishedDate},
	} {
		parsed, err := utils.ParseOptionalDate(field.value)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrTransformation, field.name, err)
		}
		linked[field.name] = parsed
	}

	effective := utils.TruncateDay(t.now())
	batch := &TransformedBatch{
		Dates: []models.DimDate{buildDimDate(published, linked)},
	}

	publishers := make(map[string]struct{})
	for i, list := range results.Lists {
		listID := strings.TrimSpace(list.ListID.String())
		if listID == "" {
			return nil, fmt.Errorf("%w: list %d has no list_id", ErrTransformation, i)
		}
		batch.Lists = append(batch.Lists, models.DimList{
			ListID:             listID,
			ListName:           optionalString(list.ListName),
			DisplayName:        optionalString(list.DisplayName),
			UpdateFrequency:    optionalString(list.Updated),
			ListImageURL:       optionalString(list.ListImage),
			EffectiveStartDate: effective,
			IsCurrent:          true,
		})

		for j, book := range list.Books {
			record, err := buildBookRecord(book, effective)
			if err != nil {
				return nil, fmt.Errorf("%w: list %s book %d: %v", ErrTransformation, listID, j, err)
			}
			ranking, err := buildRankingRecord(book, record.Book.PrimaryISBN13, listID, published)
			if err != nil {
				return nil, fmt.Errorf("%w: list %s book %d: %v", ErrTransformation, listID, j, err)
			}
			if record.PublisherName != "" {
				publishers[record.PublisherName] = struct{}{}
			}
			batch.Books = append(batch.Books, *record)
			batch.Rankings = append(batch.Rankings, *ranking)
		}
	}

	names := make([]string, 0, len(publishers))
	for name := range publishers {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		batch.Publishers = append(batch.Publishers, models.DimPublisher{
			PublisherName:      name,
			EffectiveStartDate: effective,
			IsCurrent:          true,
		})
	}

	t.logger.Info("transformation completed",
		zap.String("published_date", utils.FormatDate(published)),
		zap.Int("lists", len(batch.Lists)),
		zap.Int("books", len(batch.Books)),
		zap.Int("publishers", len(batch.Publishers)))
	return batch, nil
}

func buildDimDate(published time.Time, linked map[string]*time.Time) models.DimDate {
	_, week := published.ISOWeek()
	weekStart, weekEnd := utils.WeekBounds(published)
	quarter := utils.Quarter(published)
	publishedCopy := published

	return models.DimDate{
		DateKey:               utils.DateKey(published),
		FullDate:              published,
		Year:                  published.Year(),
		Quarter:               quarter,
		QuarterName:           fmt.Sprintf("Q%d %d", quarter, published.Year()),
		Month:                 int(published.Month()),
		MonthName:             published.Month().String(),
		WeekOfYear:            week,
		WeekStartDate:         weekStart,
		WeekEndDate:           weekEnd,
		BestsellersDate:       linked["bestsellers_date"],
		PublishedDate:         &publishedCopy,
		PreviousPublishedDate: linked["previous_published_date"],
		NextPublishedDate:     linked["next_published_date"],
	}
}

func buildBookRecord(book RawBook, effective time.Time) (*BookRecord, error) {
	isbn13 := strings.TrimSpace(book.PrimaryISBN13.String())
	if isbn13 == "" {
		return nil, errors.New("missing primary_isbn13")
	}
	created, err := utils.ParseOptionalTimestamp(book.CreatedDate)
	if err != nil {
		return nil, fmt.Errorf("created_date: %v", err)
	}
	updated, err := utils.ParseOptionalTimestamp(book.UpdatedDate)
	if err != nil {
		return nil, fmt.Errorf("updated_date: %v", err)
	}

	return &BookRecord{
		PublisherName: strings.TrimSpace(book.Publisher),
		Book: models.DimBook{
			Title:              optionalString(book.Title),
			Author:             optionalString(book.Author),
			Contributor:        optionalString(book.Contributor),
			ContributorNote:    optionalString(book.ContributorNote),
			AgeGroup:           optionalString(book.AgeGroup),
			PrimaryISBN13:      isbn13,
			PrimaryISBN10:      optionalString(book.PrimaryISBN10.String()),
			Description:        optionalString(book.Description),
			CreatedDate:        created,
			UpdatedDate:        updated,
			EffectiveStartDate: effective,
			IsCurrent:          true,
		},
	}, nil
}

func buildRankingRecord(book RawBook, isbn13, listID string, published time.Time) (*RankingRecord, error) {
	rank, err := decodeInt("rank", book.Rank)
	if err != nil {
		return nil, err
	}
	if rank == nil {
		return nil, errors.New("missing rank")
	}
	price, err := decodePrice(book.Price)
	if err != nil {
		return nil, err
	}
	weeks, err := decodeInt("weeks_on_list", book.WeeksOnList)
	if err != nil {
		return nil, err
	}
	lastWeek, err := decodeInt("rank_last_week", book.RankLastWeek)
	if err != nil {
		return nil, err
	}

	return &RankingRecord{
		ISBN13:        isbn13,
		ListID:        listID,
		PublishedDate: published,
		Rank:          *rank,
		Price:         price,
		WeeksOnList:   weeks,
		RankLastWeek:  lastWeek,
	}, nil
}

func isNullJSON(raw json.RawMessage) bool {
	raw = bytes.TrimSpace(raw)
	return len(raw) == 0 || string(raw) == "null"
}

// decodeInt accepts JSON integers only; absent or null yields nil.
func decodeInt(field string, raw json.RawMessage) (*int, error) {
	if isNullJSON(raw) {
		return nil, nil
	}
	var v int
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, fmt.Errorf("%s: expected integer, got %s", field, string(raw))
	}
	return &v, nil
}

// decodePrice accepts a JSON number or a numeric string.
func decodePrice(raw json.RawMessage) (decimal.Decimal, error) {
	if isNullJSON(raw) {
		return decimal.Decimal{}, errors.New("missing price")
	}
	var price decimal.Decimal
	if err := price.UnmarshalJSON(bytes.TrimSpace(raw)); err != nil {
		return decimal.Decimal{}, fmt.Errorf("price: expected number, got %s", string(raw))
	}
	return price, nil
}
