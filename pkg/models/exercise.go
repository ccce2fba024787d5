package models

// NamedRef is a reference to a named catalog entry (muscle group, difficulty).
type NamedRef struct {
	ID   string `json:"id,omitempty" yaml:"id,omitempty"`
	Name string `json:"name" yaml:"name"`
}

// MuscleGroup is a selectable filter for the exercise list.
type MuscleGroup struct {
	ID          string `json:"id,omitempty" yaml:"id,omitempty"`
	Name        string `json:"name" yaml:"name"`
	MedicalName string `json:"medicalName,omitempty" yaml:"medical_name,omitempty"`
	Group       string `json:"group,omitempty" yaml:"group,omitempty"`
}

// Difficulty levels known to the record store.
const (
	DifficultyEasy         = "EASY"
	DifficultyIntermediate = "INTERMEDIATE"
	DifficultyAdvanced     = "ADVANCED"
	DifficultyExpert       = "EXPERT"
)

// Exercise is an entry of the exercise catalog shown in the list stream.
type Exercise struct {
	ID               string     `json:"id"`
	Name             string     `json:"name"`
	Description      string     `json:"description,omitempty"`
	VideoURL         string     `json:"videoURL,omitempty"`
	Difficulty       NamedRef   `json:"difficulty"`
	MuscleGroups     []NamedRef `json:"muscleGroups,omitempty"`
	MainMuscleGroups []NamedRef `json:"mainMuscleGroups,omitempty"`
}

// Key identifies the exercise inside a page cache.
func (e Exercise) Key() string { return e.ID }

// MuscleGroupNames returns the names of the exercise's muscle groups.
func (e Exercise) MuscleGroupNames() []string {
	names := make([]string, 0, len(e.MuscleGroups))
	for _, g := range e.MuscleGroups {
		names = append(names, g.Name)
	}
	return names
}
