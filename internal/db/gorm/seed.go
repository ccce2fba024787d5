package gorm

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/thebtf/workoutdiary/internal/submit"
	"github.com/thebtf/workoutdiary/pkg/models"
)

func ref(names ...string) []models.NamedRef {
	out := make([]models.NamedRef, 0, len(names))
	for _, n := range names {
		out = append(out, models.NamedRef{Name: n})
	}
	return out
}

// DemoExercises is the catalog written by Seed.
var DemoExercises = []models.Exercise{
	{
		Name:             "Bench press",
		Description:      "Barbell press from a flat bench.",
		Difficulty:       models.NamedRef{Name: models.DifficultyIntermediate},
		MuscleGroups:     ref("CHEST", "TRICEPS", "DELTOIDS"),
		MainMuscleGroups: ref("CHEST"),
	},
	{
		Name:             "Back squat",
		Description:      "Barbell squat with the bar on the upper back.",
		Difficulty:       models.NamedRef{Name: models.DifficultyAdvanced},
		MuscleGroups:     ref("QUADRICEPS", "GLUTEUS", "HAMSTRINGS", "CORE"),
		MainMuscleGroups: ref("QUADRICEPS"),
	},
	{
		Name:             "Barbell row",
		Difficulty:       models.NamedRef{Name: models.DifficultyIntermediate},
		MuscleGroups:     ref("BACK", "BICEPS"),
		MainMuscleGroups: ref("BACK"),
	},
	{
		Name:             "Biceps curl",
		Difficulty:       models.NamedRef{Name: models.DifficultyEasy},
		MuscleGroups:     ref("BICEPS"),
		MainMuscleGroups: ref("BICEPS"),
	},
	{
		Name:             "Standing calf raise",
		Difficulty:       models.NamedRef{Name: models.DifficultyEasy},
		MuscleGroups:     ref("CALVES"),
		MainMuscleGroups: ref("CALVES"),
	},
	{
		Name:             "Plank",
		Difficulty:       models.NamedRef{Name: models.DifficultyEasy},
		MuscleGroups:     ref("CORE", "ABDOMINAL_MUSCLE"),
		MainMuscleGroups: ref("CORE"),
	},
}

// Seed writes the demo catalog and, for every demo exercise, sessions
// records spaced every third day ending at now. Existing rows are
// overwritten, so Seed can run repeatedly.
func Seed(ctx context.Context, store *Store, username string, sessions int, now time.Time) error {
	exercises := NewExerciseStore(store)
	records := NewRecordStore(store, username)

	for i, e := range DemoExercises {
		if _, err := exercises.Upsert(ctx, e); err != nil {
			return err
		}
		base := 40.0 + float64(i*10)
		for n := 0; n < sessions; n++ {
			day := now.AddDate(0, 0, -3*(sessions-1-n))
			weight := base + float64(n%4)*2.5
			sub := submit.Submission{
				ExerciseName: e.Name,
				Date:         day,
				Note:         fmt.Sprintf("session %d", n+1),
				Sets: []models.Set{
					{Repetitions: []float64{weight, weight, weight, weight, weight}},
					{Repetitions: []float64{weight + 5, weight + 5, weight + 5}},
				},
			}
			if _, err := records.AddRecord(ctx, sub); err != nil {
				return err
			}
		}
	}

	log.Info().
		Int("exercises", len(DemoExercises)).
		Int("sessions", sessions).
		Str("username", username).
		Msg("Seeded demo data")
	return nil
}
