package gorm

import (
	"github.com/go-gormigrate/gormigrate/v2"
	"gorm.io/gorm"
)

// runMigrations runs all database migrations using gormigrate.
func runMigrations(db *gorm.DB) error {
	m := gormigrate.New(db, gormigrate.DefaultOptions, []*gormigrate.Migration{
		// Migration 001: exercise catalog
		{
			ID: "001_exercises",
			Migrate: func(tx *gorm.DB) error {
				if err := tx.AutoMigrate(&Exercise{}); err != nil {
					return err
				}
				return tx.AutoMigrate(&ExerciseMuscleGroup{})
			},
			Rollback: func(tx *gorm.DB) error {
				return tx.Migrator().DropTable("exercise_muscle_groups", "exercises")
			},
		},

		// Migration 002: exercise records
		{
			ID: "002_exercise_records",
			Migrate: func(tx *gorm.DB) error {
				return tx.AutoMigrate(&ExerciseRecord{})
			},
			Rollback: func(tx *gorm.DB) error {
				return tx.Migrator().DropTable("exercise_records")
			},
		},
	})

	return m.Migrate()
}
