package gorm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/thebtf/workoutdiary/internal/query"
	"github.com/thebtf/workoutdiary/pkg/models"
)

// ErrNotFound is returned when a looked-up row does not exist.
var ErrNotFound = errors.New("not found")

// ExerciseStore provides exercise catalog operations.
type ExerciseStore struct {
	db *gorm.DB
}

// NewExerciseStore creates a new exercise store.
func NewExerciseStore(store *Store) *ExerciseStore {
	return &ExerciseStore{db: store.DB}
}

// Source returns the exercise search as a query source.
func (s *ExerciseStore) Source() query.Source[models.Exercise] {
	return query.SourceFunc[models.Exercise](s.Search)
}

// Search returns one page of exercises ordered by name. q.Text matches a
// case-insensitive substring of the name, or the exact name when q.Strict.
// q.Filters keeps exercises training any of the muscle groups, or all of
// them when q.Strict.
func (s *ExerciseStore) Search(ctx context.Context, q models.Query, page int) (models.Page[models.Exercise], error) {
	if !q.Valid() {
		return models.Page[models.Exercise]{}, fmt.Errorf("%w: page size %d", query.ErrInvalidQuery, q.PageSize)
	}

	tx := s.db.WithContext(ctx).Model(&Exercise{})
	if text := strings.TrimSpace(q.Text); text != "" {
		if q.Strict {
			tx = tx.Where("name = ?", text)
		} else {
			tx = tx.Where(`LOWER(name) LIKE ? ESCAPE '\'`, containsPattern(text))
		}
	}
	if len(q.Filters) > 0 {
		sub := s.db.Model(&ExerciseMuscleGroup{}).
			Select("exercise_id").
			Where("muscle_group IN ?", q.Filters)
		if q.Strict {
			sub = sub.Group("exercise_id").Having("COUNT(DISTINCT muscle_group) = ?", len(q.Filters))
		}
		tx = tx.Where("id IN (?)", sub)
	}

	var rows []Exercise
	err := tx.Preload("MuscleGroups", func(db *gorm.DB) *gorm.DB {
		return db.Order("main DESC, muscle_group ASC")
	}).
		Order("name ASC").
		Scopes(pageScope(page, q.PageSize)).
		Find(&rows).Error
	if err != nil {
		return models.Page[models.Exercise]{}, fmt.Errorf("search exercises: %w", err)
	}

	rows, hasNext := trimPage(rows, q.PageSize)
	return models.Page[models.Exercise]{Items: toModelExercises(rows), HasNext: hasNext}, nil
}

// Get returns the exercise with the given name.
func (s *ExerciseStore) Get(ctx context.Context, name string) (models.Exercise, error) {
	var row Exercise
	err := s.db.WithContext(ctx).Preload("MuscleGroups").Where("name = ?", name).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return models.Exercise{}, fmt.Errorf("exercise %q: %w", name, ErrNotFound)
	}
	if err != nil {
		return models.Exercise{}, err
	}
	return toModelExercise(&row), nil
}

// Upsert inserts the exercise or replaces the one with the same name,
// including its muscle groups.
func (s *ExerciseStore) Upsert(ctx context.Context, e models.Exercise) (models.Exercise, error) {
	row := fromModelExercise(e)

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing Exercise
		err := tx.Where("name = ?", row.Name).First(&existing).Error
		switch {
		case err == nil:
			row.ID = existing.ID
			row.CreatedAtEpoch = existing.CreatedAtEpoch
			if err := tx.Where("exercise_id = ?", row.ID).Delete(&ExerciseMuscleGroup{}).Error; err != nil {
				return err
			}
		case !errors.Is(err, gorm.ErrRecordNotFound):
			return err
		}

		groups := row.MuscleGroups
		row.MuscleGroups = nil
		if err := tx.Omit(clause.Associations).Save(row).Error; err != nil {
			return err
		}
		for i := range groups {
			groups[i].ExerciseID = row.ID
		}
		if len(groups) > 0 {
			if err := tx.Create(&groups).Error; err != nil {
				return err
			}
		}
		row.MuscleGroups = groups
		return nil
	})
	if err != nil {
		return models.Exercise{}, fmt.Errorf("upsert exercise %q: %w", e.Name, err)
	}
	return toModelExercise(row), nil
}

// MuscleGroups returns the distinct muscle groups referenced by the catalog.
func (s *ExerciseStore) MuscleGroups(ctx context.Context) ([]string, error) {
	var names []string
	err := s.db.WithContext(ctx).
		Model(&ExerciseMuscleGroup{}).
		Distinct("muscle_group").
		Order("muscle_group ASC").
		Pluck("muscle_group", &names).Error
	return names, err
}
