package catalog

import "github.com/thebtf/workoutdiary/pkg/models"

var builtin = []models.MuscleGroup{
	{Name: "CHEST", MedicalName: "Pectoralis major", Group: "UPPER_BODY"},
	{Name: "BACK", MedicalName: "Latissimus dorsi", Group: "UPPER_BODY"},
	{Name: "DELTOIDS", MedicalName: "Deltoideus", Group: "UPPER_BODY"},
	{Name: "BICEPS", MedicalName: "Biceps brachii", Group: "ARMS"},
	{Name: "TRICEPS", MedicalName: "Triceps brachii", Group: "ARMS"},
	{Name: "ABDOMINAL_MUSCLE", MedicalName: "Rectus abdominis", Group: "CORE"},
	{Name: "CORE", MedicalName: "Transversus abdominis", Group: "CORE"},
	{Name: "GLUTEUS", MedicalName: "Gluteus maximus", Group: "LOWER_BODY"},
	{Name: "QUADRICEPS", MedicalName: "Quadriceps femoris", Group: "LOWER_BODY"},
	{Name: "HAMSTRINGS", MedicalName: "Biceps femoris", Group: "LOWER_BODY"},
	{Name: "CALVES", MedicalName: "Gastrocnemius", Group: "LOWER_BODY"},
}

// Default returns the built-in catalog.
func Default() *Catalog {
	return New(builtin)
}

// Grouped returns muscle-group names keyed by their body region, each list
// in definition order. Entries without a region are listed under "".
func (c *Catalog) Grouped() map[string][]string {
	out := make(map[string][]string)
	for _, name := range c.order {
		g := c.byName[name]
		out[g.Group] = append(out[g.Group], g.Name)
	}
	return out
}
