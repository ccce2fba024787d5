// Package catalog manages the YAML muscle-group catalog used to filter the
// exercise list.
package catalog

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/natefinch/atomic"
	"gopkg.in/yaml.v3"

	"github.com/thebtf/workoutdiary/pkg/models"
)

// AllGroups is the selector value meaning "no muscle-group filter".
const AllGroups = "ALL"

// ErrUnknownMuscleGroup is returned when a selection names no catalog entry.
var ErrUnknownMuscleGroup = errors.New("unknown muscle group")

// File is the top-level YAML structure.
type File struct {
	MuscleGroups []models.MuscleGroup `yaml:"muscle_groups"`
}

// Catalog holds muscle groups keyed by upper-cased name.
type Catalog struct {
	byName map[string]*models.MuscleGroup
	order  []string // definition order, upper-cased
}

// New builds a catalog from groups. Names are upper-cased; later entries
// with the same name replace earlier ones.
func New(groups []models.MuscleGroup) *Catalog {
	c := &Catalog{byName: make(map[string]*models.MuscleGroup, len(groups))}
	for i := range groups {
		g := groups[i]
		g.Name = strings.ToUpper(strings.TrimSpace(g.Name))
		if g.Name == "" {
			continue
		}
		if _, seen := c.byName[g.Name]; !seen {
			c.order = append(c.order, g.Name)
		}
		c.byName[g.Name] = &g
	}
	return c
}

// Load reads the YAML catalog at path. A missing file yields the built-in
// catalog.
func Load(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Default(), nil
		}
		return nil, err
	}

	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse catalog %s: %w", path, err)
	}
	return New(f.MuscleGroups), nil
}

// Save writes the catalog to path as YAML.
func (c *Catalog) Save(path string) error {
	data, err := yaml.Marshal(File{MuscleGroups: c.All()})
	if err != nil {
		return fmt.Errorf("marshal catalog: %w", err)
	}
	return atomic.WriteFile(path, bytes.NewReader(data))
}

// Get returns a muscle group by name, ignoring case.
func (c *Catalog) Get(name string) (models.MuscleGroup, bool) {
	g, ok := c.byName[strings.ToUpper(strings.TrimSpace(name))]
	if !ok {
		return models.MuscleGroup{}, false
	}
	return *g, true
}

// All returns all muscle groups in definition order.
func (c *Catalog) All() []models.MuscleGroup {
	result := make([]models.MuscleGroup, 0, len(c.order))
	for _, name := range c.order {
		result = append(result, *c.byName[name])
	}
	return result
}

// Names returns the sorted muscle-group names.
func (c *Catalog) Names() []string {
	names := make([]string, len(c.order))
	copy(names, c.order)
	sort.Strings(names)
	return names
}

// Len returns the number of muscle groups.
func (c *Catalog) Len() int { return len(c.order) }

// Resolve turns a selector value into query filters. AllGroups and the
// empty selection mean no filter.
func (c *Catalog) Resolve(selection string) ([]string, error) {
	selection = strings.TrimSpace(selection)
	if selection == "" || strings.EqualFold(selection, AllGroups) {
		return nil, nil
	}
	g, ok := c.Get(selection)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownMuscleGroup, selection)
	}
	return []string{g.Name}, nil
}

// Options returns the selector values in display order, AllGroups first.
func (c *Catalog) Options() []string {
	return append([]string{AllGroups}, c.order...)
}
