package models

import (
	"log"

	"bitbucket.org/mmdatafocus/pharmasync_backend/config"
)

func MigrateTable() {
	db := config.GetDB()

	err := db.AutoMigrate(
		&ImportBatch{}, &RawRow{},
		&NormalizedProduct{}, &ChangeRecord{}, &ApplyLogEntry{},
		&SupplierMarkup{},
		&IdempotencyKey{},
	)
	if err != nil {
		log.Fatal(err)
	}
}
