// Package models contains domain models for workoutdiary.
package models

import (
	"database/sql/driver"
	"fmt"
	"time"

	"github.com/goccy/go-json"
)

// Set is one set of an exercise: the weight lifted on each repetition.
type Set struct {
	Repetitions []float64 `json:"repetitions"`
}

// Total returns the sum of all repetition weights in the set.
func (s Set) Total() float64 {
	var total float64
	for _, w := range s.Repetitions {
		total += w
	}
	return total
}

// Max returns the heaviest repetition. ok is false for an empty set.
func (s Set) Max() (max float64, ok bool) {
	for i, w := range s.Repetitions {
		if i == 0 || w > max {
			max = w
		}
	}
	return max, len(s.Repetitions) > 0
}

// SetList is a JSON-encoded list of sets that implements sql.Scanner and driver.Valuer.
type SetList []Set

// Scan implements sql.Scanner for SetList.
func (s *SetList) Scan(value interface{}) error {
	if value == nil {
		*s = nil
		return nil
	}

	var data []byte
	switch v := value.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("scan SetList: unsupported type %T", value)
	}

	if len(data) == 0 {
		*s = nil
		return nil
	}
	return json.Unmarshal(data, s)
}

// Value implements driver.Valuer for SetList.
func (s SetList) Value() (driver.Value, error) {
	if s == nil {
		return "[]", nil
	}
	data, err := json.Marshal(s)
	if err != nil {
		return nil, err
	}
	return string(data), nil
}

// Record is one logged exercise session, as delivered by the record source.
type Record struct {
	Date         time.Time `json:"date"`
	ID           string    `json:"id"`
	ExerciseName string    `json:"exerciseName"`
	Note         string    `json:"note,omitempty"`
	Sets         SetList   `json:"sets"`
}

// Key identifies the record inside a page cache.
func (r Record) Key() string { return r.ID }

// Total returns the summed weight across every set of the record.
func (r Record) Total() float64 {
	var total float64
	for _, s := range r.Sets {
		total += s.Total()
	}
	return total
}
