// Package gorm provides the GORM-backed local exercise and record store.
package gorm

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/thebtf/workoutdiary/pkg/models"
)

// GORM Models

// Exercise is a row of the exercise catalog.
type Exercise struct {
	ID             string `gorm:"primaryKey;type:text"`
	Name           string `gorm:"uniqueIndex;not null"`
	Description    string `gorm:"type:text"`
	VideoURL       string `gorm:"type:text"`
	Difficulty     string `gorm:"type:text;check:difficulty IN ('EASY', 'INTERMEDIATE', 'ADVANCED', 'EXPERT');default:'EASY';index"`
	CreatedAtEpoch int64  `gorm:"not null"`

	MuscleGroups []ExerciseMuscleGroup `gorm:"foreignKey:ExerciseID"`
}

func (Exercise) TableName() string { return "exercises" }

// BeforeCreate assigns an id and creation time.
func (e *Exercise) BeforeCreate(tx *gorm.DB) error {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.CreatedAtEpoch == 0 {
		e.CreatedAtEpoch = time.Now().UnixMilli()
	}
	return nil
}

// ExerciseMuscleGroup links an exercise to a muscle group it trains.
type ExerciseMuscleGroup struct {
	ExerciseID  string `gorm:"primaryKey;type:text"`
	MuscleGroup string `gorm:"primaryKey;type:text;index"`
	Main        bool   `gorm:"default:false"`
}

func (ExerciseMuscleGroup) TableName() string { return "exercise_muscle_groups" }

// ExerciseRecord is one logged session of an exercise. A user has at most
// one record per exercise and 30-minute slot.
type ExerciseRecord struct {
	ID             string         `gorm:"primaryKey;type:text"`
	Username       string         `gorm:"not null;uniqueIndex:idx_records_slot,priority:1;index:idx_records_history,priority:1"`
	ExerciseName   string         `gorm:"not null;uniqueIndex:idx_records_slot,priority:2;index:idx_records_history,priority:2"`
	SlotEpoch      int64          `gorm:"not null;uniqueIndex:idx_records_slot,priority:3;index:idx_records_history,priority:3,sort:desc"`
	Note           string         `gorm:"type:text"`
	Sets           models.SetList `gorm:"type:text"` // JSON array
	CreatedAtEpoch int64          `gorm:"not null"`
	UpdatedAtEpoch int64          `gorm:"not null"`
}

func (ExerciseRecord) TableName() string { return "exercise_records" }

// BeforeCreate assigns an id and timestamps.
func (r *ExerciseRecord) BeforeCreate(tx *gorm.DB) error {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	now := time.Now().UnixMilli()
	if r.CreatedAtEpoch == 0 {
		r.CreatedAtEpoch = now
	}
	if r.UpdatedAtEpoch == 0 {
		r.UpdatedAtEpoch = now
	}
	return nil
}

func toModelExercise(e *Exercise) models.Exercise {
	out := models.Exercise{
		ID:          e.ID,
		Name:        e.Name,
		Description: e.Description,
		VideoURL:    e.VideoURL,
		Difficulty:  models.NamedRef{Name: e.Difficulty},
	}
	for _, g := range e.MuscleGroups {
		ref := models.NamedRef{Name: g.MuscleGroup}
		out.MuscleGroups = append(out.MuscleGroups, ref)
		if g.Main {
			out.MainMuscleGroups = append(out.MainMuscleGroups, ref)
		}
	}
	return out
}

func toModelExercises(rows []Exercise) []models.Exercise {
	out := make([]models.Exercise, 0, len(rows))
	for i := range rows {
		out = append(out, toModelExercise(&rows[i]))
	}
	return out
}

func fromModelExercise(e models.Exercise) *Exercise {
	row := &Exercise{
		ID:          e.ID,
		Name:        e.Name,
		Description: e.Description,
		VideoURL:    e.VideoURL,
		Difficulty:  e.Difficulty.Name,
	}
	if row.Difficulty == "" {
		row.Difficulty = models.DifficultyEasy
	}
	main := make(map[string]bool, len(e.MainMuscleGroups))
	for _, g := range e.MainMuscleGroups {
		main[g.Name] = true
	}
	seen := make(map[string]bool, len(e.MuscleGroups))
	for _, g := range e.MuscleGroups {
		if seen[g.Name] {
			continue
		}
		seen[g.Name] = true
		row.MuscleGroups = append(row.MuscleGroups, ExerciseMuscleGroup{MuscleGroup: g.Name, Main: main[g.Name]})
	}
	return row
}

func toModelRecord(r *ExerciseRecord) models.Record {
	return models.Record{
		ID:           r.ID,
		ExerciseName: r.ExerciseName,
		Note:         r.Note,
		Date:         time.UnixMilli(r.SlotEpoch).UTC(),
		Sets:         r.Sets,
	}
}

func toModelRecords(rows []ExerciseRecord) []models.Record {
	out := make([]models.Record, 0, len(rows))
	for i := range rows {
		out = append(out, toModelRecord(&rows[i]))
	}
	return out
}
