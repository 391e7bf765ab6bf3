package models

import "github.com/shopspring/decimal"

type FactBookRanking struct {
	RankingKey   uint64          `json:"ranking_key" gorm:"column:ranking_key;primaryKey;autoIncrement"`
	DateKey      int             `json:"date_key" gorm:"column:date_key;not null;uniqueIndex:uk_ranking_date_book_list"`
	BookKey      uint            `json:"book_key" gorm:"column:book_key;not null;uniqueIndex:uk_ranking_date_book_list"`
	ListKey      uint            `json:"list_key" gorm:"column:list_key;not null;uniqueIndex:uk_ranking_date_book_list"`
	Rank         int             `json:"rank" gorm:"column:rank;not null"`
	Price        decimal.Decimal `json:"price" gorm:"column:price;type:decimal(10,2);not null"`
	WeeksOnList  *int            `json:"weeks_on_list,omitempty" gorm:"column:weeks_on_list"`
	RankLastWeek *int            `json:"rank_last_week,omitempty" gorm:"column:rank_last_week"`
}

func (FactBookRanking) TableName() string { return "fact_book_rankings" }

// FactBookRankingRefreshColumns are overwritten when a ranking is loaded again.
var FactBookRankingRefreshColumns = []string{"rank", "price", "weeks_on_list", "rank_last_week"}

// FactPublisherPerformance aggregates rankings per publisher, date and list.
type FactPublisherPerformance struct {
	PerformanceKey uint64 `json:"performance_key" gorm:"column:performance_key;primaryKey;autoIncrement"`
	PublisherKey   uint   `json:"publisher_key" gorm:"column:publisher_key;not null;uniqueIndex:uk_publisher_date_list"`
	DateKey        int    `json:"date_key" gorm:"column:date_key;not null;uniqueIndex:uk_publisher_date_list"`
	ListKey        uint   `json:"list_key" gorm:"column:list_key;not null;uniqueIndex:uk_publisher_date_list"`
	Quarter        int    `json:"quarter" gorm:"column:quarter;not null"`
	Year           int    `json:"year" gorm:"column:year;not null"`
	TotalPoints    int    `json:"total_points" gorm:"column:total_points;not null"`
	BooksInTop5    int    `json:"books_in_top_5" gorm:"column:books_in_top_5;not null"`
	Rank1Count     int    `json:"rank_1_count" gorm:"column:rank_1_count;not null"`
	Rank2Count     int    `json:"rank_2_count" gorm:"column:rank_2_count;not null"`
	Rank3Count     int    `json:"rank_3_count" gorm:"column:rank_3_count;not null"`
	Rank4Count     int    `json:"rank_4_count" gorm:"column:rank_4_count;not null"`
	Rank5Count     int    `json:"rank_5_count" gorm:"column:rank_5_count;not null"`
}

func (FactPublisherPerformance) TableName() string { return "fact_publisher_performance" }

// FactPublisherPerformanceMetricColumns are replaced, never accumulated, on conflict.
var FactPublisherPerformanceMetricColumns = []string{
	"quarter", "year", "total_points", "books_in_top_5",
	"rank_1_count", "rank_2_count", "rank_3_count", "rank_4_count", "rank_5_count",
}
