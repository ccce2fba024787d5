package remote

import (
	"bytes"
	"fmt"
	"strconv"
	"time"

	"github.com/goccy/go-json"

	"github.com/thebtf/workoutdiary/pkg/models"
)

// wireRecord is an exercise record as the API serializes it. Dates arrive
// either as epoch milliseconds or as RFC 3339 strings; sets either as
// objects with a repetitions list or as bare weight lists.
type wireRecord struct {
	ID           string            `json:"id"`
	ExerciseName string            `json:"exerciseName"`
	Note         string            `json:"note"`
	Date         json.RawMessage   `json:"date"`
	Sets         []json.RawMessage `json:"sets"`
}

func (w wireRecord) record() (models.Record, error) {
	date, err := parseDate(w.Date)
	if err != nil {
		return models.Record{}, err
	}

	sets := make(models.SetList, 0, len(w.Sets))
	for i, raw := range w.Sets {
		s, err := parseSet(raw)
		if err != nil {
			return models.Record{}, fmt.Errorf("set %d: %w", i, err)
		}
		sets = append(sets, s)
	}

	return models.Record{
		ID:           w.ID,
		ExerciseName: w.ExerciseName,
		Note:         w.Note,
		Date:         date,
		Sets:         sets,
	}, nil
}

func parseDate(raw json.RawMessage) (time.Time, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return time.Time{}, fmt.Errorf("missing date")
	}
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return time.Time{}, fmt.Errorf("date: %w", err)
		}
		t, err := time.Parse(time.RFC3339, s)
		if err != nil {
			return time.Time{}, fmt.Errorf("date: %w", err)
		}
		return t, nil
	}
	ms, err := strconv.ParseInt(string(raw), 10, 64)
	if err != nil {
		return time.Time{}, fmt.Errorf("date: %w", err)
	}
	return time.UnixMilli(ms).UTC(), nil
}

func parseSet(raw json.RawMessage) (models.Set, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) > 0 && raw[0] == '[' {
		var reps []float64
		if err := json.Unmarshal(raw, &reps); err != nil {
			return models.Set{}, err
		}
		return models.Set{Repetitions: reps}, nil
	}
	var s models.Set
	if err := json.Unmarshal(raw, &s); err != nil {
		return models.Set{}, err
	}
	return s, nil
}
