package gorm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/thebtf/workoutdiary/internal/query"
	"github.com/thebtf/workoutdiary/internal/submit"
	"github.com/thebtf/workoutdiary/pkg/models"
)

// RecordStore provides exercise record operations for one user.
type RecordStore struct {
	db       *gorm.DB
	username string
}

// NewRecordStore creates a record store scoped to username.
func NewRecordStore(store *Store, username string) *RecordStore {
	return &RecordStore{db: store.DB, username: username}
}

// Source returns the record history search as a query source.
func (s *RecordStore) Source() query.Source[models.Record] {
	return query.SourceFunc[models.Record](s.Search)
}

// Search returns one page of the user's records, newest slot first. With
// q.Strict, q.Text must equal the exercise name; otherwise it matches a
// case-insensitive substring.
func (s *RecordStore) Search(ctx context.Context, q models.Query, page int) (models.Page[models.Record], error) {
	if !q.Valid() {
		return models.Page[models.Record]{}, fmt.Errorf("%w: page size %d", query.ErrInvalidQuery, q.PageSize)
	}

	tx := s.db.WithContext(ctx).Model(&ExerciseRecord{}).Where("username = ?", s.username)
	if text := strings.TrimSpace(q.Text); text != "" {
		if q.Strict {
			tx = tx.Where("exercise_name = ?", text)
		} else {
			tx = tx.Where(`LOWER(exercise_name) LIKE ? ESCAPE '\'`, containsPattern(text))
		}
	}

	var rows []ExerciseRecord
	err := tx.Order("slot_epoch DESC").Order("id ASC").
		Scopes(pageScope(page, q.PageSize)).
		Find(&rows).Error
	if err != nil {
		return models.Page[models.Record]{}, fmt.Errorf("search records: %w", err)
	}

	rows, hasNext := trimPage(rows, q.PageSize)
	return models.Page[models.Record]{Items: toModelRecords(rows), HasNext: hasNext}, nil
}

// AddRecord stores a submission at its slot. A later submission for the
// same exercise and slot replaces the earlier one's sets and note.
func (s *RecordStore) AddRecord(ctx context.Context, sub submit.Submission) (models.Record, error) {
	now := time.Now().UnixMilli()
	row := &ExerciseRecord{
		Username:       s.username,
		ExerciseName:   sub.ExerciseName,
		SlotEpoch:      submit.Slot(sub.Date).UnixMilli(),
		Note:           sub.Note,
		Sets:           models.SetList(sub.Sets),
		CreatedAtEpoch: now,
		UpdatedAtEpoch: now,
	}

	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "username"}, {Name: "exercise_name"}, {Name: "slot_epoch"}},
		DoUpdates: clause.AssignmentColumns([]string{"note", "sets", "updated_at_epoch"}),
	}).Create(row).Error
	if err != nil {
		return models.Record{}, fmt.Errorf("add record: %w", err)
	}

	// On conflict the stored row keeps its first id.
	var stored ExerciseRecord
	err = s.db.WithContext(ctx).
		Where("username = ? AND exercise_name = ? AND slot_epoch = ?", row.Username, row.ExerciseName, row.SlotEpoch).
		First(&stored).Error
	if err != nil {
		return models.Record{}, fmt.Errorf("reload record: %w", err)
	}
	return toModelRecord(&stored), nil
}

// Get returns the user's record with the given id.
func (s *RecordStore) Get(ctx context.Context, id string) (models.Record, error) {
	var row ExerciseRecord
	err := s.db.WithContext(ctx).Where("id = ? AND username = ?", id, s.username).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return models.Record{}, fmt.Errorf("record %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return models.Record{}, err
	}
	return toModelRecord(&row), nil
}

// Count returns how many records the user has for exercise.
func (s *RecordStore) Count(ctx context.Context, exercise string) (int64, error) {
	var n int64
	err := s.db.WithContext(ctx).Model(&ExerciseRecord{}).
		Where("username = ? AND exercise_name = ?", s.username, exercise).
		Count(&n).Error
	return n, err
}
