package tracking

import (
	"log/slog"

	"github.com/go-gormigrate/gormigrate/v2"
	"gorm.io/gorm"

	"github.com/jayakrishnap100/california-housing-mlops/pkg/errors"
)

// migration0 is the schema of the first tracker release.
func migration0(db *gorm.DB) error {
	if err := db.AutoMigrate(&Experiment{}, &Run{}, &Param{}, &Metric{}, &RegisteredModel{}, &ModelVersion{}); err != nil {
		return errors.Wrap(err, "error creating tracking tables")
	}
	return nil
}

// migration1 adds the logged_models table.
func migration1(db *gorm.DB) error {
	if err := db.Migrator().CreateTable(&LoggedModel{}); err != nil {
		return errors.Wrap(err, "error creating logged_models table")
	}
	return nil
}

func rollback1(db *gorm.DB) error {
	if err := db.Migrator().DropTable(&LoggedModel{}); err != nil {
		return errors.Wrap(err, "error dropping logged_models table")
	}
	return nil
}

// GetMigrator returns the migrator for the tracking schema.
func GetMigrator(db *gorm.DB) *gormigrate.Gormigrate {
	migrator := gormigrate.New(db, gormigrate.DefaultOptions, []*gormigrate.Migration{
		{
			ID:      "0",
			Migrate: migration0,
		},
		{
			ID:       "1",
			Migrate:  migration1,
			Rollback: rollback1,
		},
	})

	migrator.InitSchema(func(txn *gorm.DB) error {
		// A clean database gets the latest schema directly.
		slog.Info("clean tracking database detected, running full schema initialization")

		dbType := txn.Dialector.Name()
		if dbType == "sqlite" || dbType == "sqlite3" {
			if err := txn.Exec("PRAGMA foreign_keys = ON").Error; err != nil {
				slog.Error("error enabling foreign keys for SQLite", "error", err)
			}
		}

		return txn.AutoMigrate(
			&Experiment{}, &Run{}, &Param{}, &Metric{}, &RegisteredModel{}, &ModelVersion{}, &LoggedModel{},
		)
	})

	return migrator
}
