package models

import "time"

// DimDate is one row per distinct published date.
type DimDate struct {
	DateKey               int        `json:"date_key" gorm:"column:date_key;primaryKey;autoIncrement:false"`
	FullDate              time.Time  `json:"full_date" gorm:"column:full_date;type:date;not null;uniqueIndex:uk_dim_date_full_date"`
	Year                  int        `json:"year" gorm:"column:year;not null"`
	Quarter               int        `json:"quarter" gorm:"column:quarter;not null"`
	QuarterName           string     `json:"quarter_name" gorm:"column:quarter_name;type:varchar(16);not null"`
	Month                 int        `json:"month" gorm:"column:month;not null"`
	MonthName             string     `json:"month_name" gorm:"column:month_name;type:varchar(16);not null"`
	WeekOfYear            int        `json:"week_of_year" gorm:"column:week_of_year;not null"`
	WeekStartDate         time.Time  `json:"week_start_date" gorm:"column:week_start_date;type:date;not null"`
	WeekEndDate           time.Time  `json:"week_end_date" gorm:"column:week_end_date;type:date;not null"`
	BestsellersDate       *time.Time `json:"bestsellers_date,omitempty" gorm:"column:bestsellers_date;type:date"`
	PublishedDate         *time.Time `json:"published_date,omitempty" gorm:"column:published_date;type:date"`
	PreviousPublishedDate *time.Time `json:"previous_published_date,omitempty" gorm:"column:previous_published_date;type:date"`
	NextPublishedDate     *time.Time `json:"next_published_date,omitempty" gorm:"column:next_published_date;type:date"`
}

func (DimDate) TableName() string { return "dim_date" }

// DimDateLinkedColumns may be refreshed when a date row already exists.
var DimDateLinkedColumns = []string{"bestsellers_date", "previous_published_date", "next_published_date"}

type DimPublisher struct {
	PublisherKey       uint      `json:"publisher_key" gorm:"column:publisher_key;primaryKey;autoIncrement"`
	PublisherName      string    `json:"publisher_name" gorm:"column:publisher_name;type:varchar(255);not null;uniqueIndex:uk_publisher_name_current"`
	EffectiveStartDate time.Time `json:"effective_start_date" gorm:"column:effective_start_date;type:date;not null"`
	IsCurrent          bool      `json:"is_current" gorm:"column:is_current;not null;uniqueIndex:uk_publisher_name_current"`
}

func (DimPublisher) TableName() string { return "dim_publisher" }

type DimList struct {
	ListKey            uint      `json:"list_key" gorm:"column:list_key;primaryKey;autoIncrement"`
	ListID             string    `json:"list_id" gorm:"column:list_id;type:varchar(64);not null;uniqueIndex:uk_list_id_current"`
	ListName           *string   `json:"list_name,omitempty" gorm:"column:list_name;type:varchar(255)"`
	DisplayName        *string   `json:"display_name,omitempty" gorm:"column:display_name;type:varchar(255)"`
	UpdateFrequency    *string   `json:"update_frequency,omitempty" gorm:"column:update_frequency;type:varchar(32)"`
	ListImageURL       *string   `json:"list_image_url,omitempty" gorm:"column:list_image_url;type:text"`
	EffectiveStartDate time.Time `json:"effective_start_date" gorm:"column:effective_start_date;type:date;not null"`
	IsCurrent          bool      `json:"is_current" gorm:"column:is_current;not null;uniqueIndex:uk_list_id_current"`
}

func (DimList) TableName() string { return "dim_list" }

type DimBook struct {
	BookKey            uint       `json:"book_key" gorm:"column:book_key;primaryKey;autoIncrement"`
	Title              *string    `json:"title,omitempty" gorm:"column:title;type:varchar(512)"`
	Author             *string    `json:"author,omitempty" gorm:"column:author;type:varchar(512)"`
	Contributor        *string    `json:"contributor,omitempty" gorm:"column:contributor;type:varchar(512)"`
	ContributorNote    *string    `json:"contributor_note,omitempty" gorm:"column:contributor_note;type:varchar(512)"`
	AgeGroup           *string    `json:"age_group,omitempty" gorm:"column:age_group;type:varchar(64)"`
	PublisherKey       uint       `json:"publisher_key" gorm:"column:publisher_key;not null;index"`
	PrimaryISBN13      string     `json:"primary_isbn13" gorm:"column:primary_isbn13;type:varchar(13);not null;uniqueIndex:uk_isbn13_current"`
	PrimaryISBN10      *string    `json:"primary_isbn10,omitempty" gorm:"column:primary_isbn10;type:varchar(10)"`
	Description        *string    `json:"description,omitempty" gorm:"column:description;type:text"`
	CreatedDate        *time.Time `json:"created_date,omitempty" gorm:"column:created_date"`
	UpdatedDate        *time.Time `json:"updated_date,omitempty" gorm:"column:updated_date"`
	EffectiveStartDate time.Time  `json:"effective_start_date" gorm:"column:effective_start_date;type:date;not null"`
	IsCurrent          bool       `json:"is_current" gorm:"column:is_current;not null;uniqueIndex:uk_isbn13_current"`
}

func (DimBook) TableName() string { return "dim_book" }
