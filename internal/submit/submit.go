// Package submit turns record-entry rows into a submission for the record
// source.
package submit

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/thebtf/workoutdiary/pkg/models"
)

// EmptyMessage is shown to the user when a submission has nothing to save.
const EmptyMessage = "Need at least one record."

// DateTimeLayout is the slot format understood by the remote record API.
const DateTimeLayout = "2006-01-02_15-04"

var (
	// ErrEmptySubmission is returned when there is no set or the first row is incomplete.
	ErrEmptySubmission = errors.New("empty submission")
	// ErrInvalidRow is returned when a row holds a non-numeric value.
	ErrInvalidRow = errors.New("invalid row")
	// ErrNoExercise is returned when the exercise name is blank.
	ErrNoExercise = errors.New("exercise name required")
)

// Row is one line of the entry form: a weight lifted for a number of
// repetitions. Empty strings mean the field was left blank.
type Row struct {
	Weight      string `json:"weight"`
	Repetitions string `json:"repetitions"`
}

func (r Row) complete() bool {
	return strings.TrimSpace(r.Weight) != "" && strings.TrimSpace(r.Repetitions) != ""
}

// Submission is a validated record ready to be stored.
type Submission struct {
	Date         time.Time    `json:"date"`
	ExerciseName string       `json:"exerciseName"`
	Note         string       `json:"note,omitempty"`
	Sets         []models.Set `json:"sets"`
}

// Build validates rows grouped per set and expands them into sets. Each
// complete row contributes Repetitions copies of Weight; incomplete rows are
// dropped, as are sets left empty. at is snapped to its 30-minute slot.
func Build(exercise string, sets [][]Row, note string, at time.Time) (Submission, error) {
	exercise = strings.TrimSpace(exercise)
	if exercise == "" {
		return Submission{}, ErrNoExercise
	}
	if len(sets) == 0 || len(sets[0]) == 0 || !sets[0][0].complete() {
		return Submission{}, ErrEmptySubmission
	}

	out := make([]models.Set, 0, len(sets))
	for i, rows := range sets {
		var reps []float64
		for j, row := range rows {
			if !row.complete() {
				continue
			}
			weight, err := strconv.ParseFloat(strings.TrimSpace(row.Weight), 64)
			if err != nil {
				return Submission{}, fmt.Errorf("%w: set %d row %d weight %q", ErrInvalidRow, i+1, j+1, row.Weight)
			}
			count, err := strconv.Atoi(strings.TrimSpace(row.Repetitions))
			if err != nil || count < 0 {
				return Submission{}, fmt.Errorf("%w: set %d row %d repetitions %q", ErrInvalidRow, i+1, j+1, row.Repetitions)
			}
			for k := 0; k < count; k++ {
				reps = append(reps, weight)
			}
		}
		if len(reps) > 0 {
			out = append(out, models.Set{Repetitions: reps})
		}
	}
	if len(out) == 0 {
		return Submission{}, ErrEmptySubmission
	}

	return Submission{
		ExerciseName: exercise,
		Note:         strings.TrimSpace(note),
		Sets:         out,
		Date:         Slot(at),
	}, nil
}

// Slot snaps t to the start of its 30-minute slot: minutes 0-29 become :00,
// minutes 30-59 become :30.
func Slot(t time.Time) time.Time {
	minute := 0
	if t.Minute() > 29 {
		minute = 30
	}
	return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), minute, 0, 0, t.Location())
}

// ParseDateTime parses a slot string in DateTimeLayout in loc.
func ParseDateTime(s string, loc *time.Location) (time.Time, error) {
	t, err := time.ParseInLocation(DateTimeLayout, s, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse datetime %q: %w", s, err)
	}
	return Slot(t), nil
}

// DateTime renders the submission slot in DateTimeLayout.
func (s Submission) DateTime() string {
	return s.Date.Format(DateTimeLayout)
}

// SetMatrix returns the sets as plain weight lists, the shape the remote
// API accepts.
func (s Submission) SetMatrix() [][]float64 {
	out := make([][]float64, 0, len(s.Sets))
	for _, set := range s.Sets {
		out = append(out, append([]float64(nil), set.Repetitions...))
	}
	return out
}

// Record returns the submission as a record with the given id.
func (s Submission) Record(id string) models.Record {
	return models.Record{
		ID:           id,
		ExerciseName: s.ExerciseName,
		Note:         s.Note,
		Date:         s.Date,
		Sets:         models.SetList(s.Sets),
	}
}
