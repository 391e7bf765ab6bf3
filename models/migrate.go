package models

import "gorm.io/gorm"

// WarehouseModels lists every table the pipeline reads or writes.
func WarehouseModels() []interface{} {
	return []interface{}{
		&DimDate{},
		&DimPublisher{},
		&DimList{},
		&DimBook{},
		&FactBookRanking{},
		&FactPublisherPerformance{},
		&LoadStatus{},
		&EtlRun{},
		&ApiRequest{},
	}
}

// AutoMigrate creates missing warehouse tables and indexes. It is meant for
// local databases and tests; production schemas are managed outside this repo.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(WarehouseModels()...)
}
