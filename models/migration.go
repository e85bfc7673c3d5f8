package models

import (
	"log"

	"github.com/mmdatafocus/ridelake_backend/config"
)

func MigrateTable() {
	db := config.GetDB()

	err := db.AutoMigrate(
		&BronzeDriver{}, &BronzeVehicle{}, &BronzeRider{}, &BronzeTrip{}, &BronzePayment{},
		&SilverDriver{}, &SilverVehicle{}, &SilverRider{}, &SilverTrip{}, &SilverPayment{},
		&AuditRejectedRow{}, &AuditDqResult{}, &AuditEtlLog{}, &AuditReconResult{},
		&EtlBatchRun{}, &EtlEventRecord{},
	)
	if err != nil {
		log.Fatal(err)
	}
}
