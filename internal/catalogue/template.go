// Package catalogue holds unit templates: the static data a unit is built
// from (skill, default stance, radio ranges, movement). A Catalogue is
// read-only once loaded and may be shared between goroutines.
package catalogue

import (
	"fmt"
	"math"
	"time"

	"cuelang.org/go/cue/token"

	"github.com/roach88/opcon/internal/toem"
)

// DefaultTerrain is used by MoveTime when a terrain has no friction entry.
const DefaultTerrain = "open"

// Template describes one kind of unit.
type Template struct {
	Name   string `yaml:"name" json:"name"`
	Skill  string `yaml:"skill" json:"skill"`
	Stance string `yaml:"stance" json:"stance"`

	// Radio ranges in metres. Within CommEffective the link to higher HQ
	// is good; beyond CommMax there is none.
	CommEffective float64 `yaml:"comm_effective" json:"comm_effective"`
	CommMax       float64 `yaml:"comm_max" json:"comm_max"`

	// Speed is the road march speed in km/h.
	Speed float64 `yaml:"speed" json:"speed"`

	// Friction scales Speed per terrain type. Factors are in (0, 1].
	Friction map[string]float64 `yaml:"friction" json:"friction"`
}

// TemplateError reports an invalid template field.
type TemplateError struct {
	Template string
	Field    string
	Message  string
	Pos      token.Pos // CUE position if loaded from CUE
}

func (e *TemplateError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: template %q: %s: %s",
			e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(), e.Template, e.Field, e.Message)
	}
	return fmt.Sprintf("template %q: %s: %s", e.Template, e.Field, e.Message)
}

// Validate checks the template's fields.
func (t Template) Validate() error {
	fail := func(field, format string, args ...any) error {
		return &TemplateError{Template: t.Name, Field: field, Message: fmt.Sprintf(format, args...)}
	}

	if t.Name == "" {
		return fail("name", "name is required")
	}
	if !toem.IsConcept(t.Skill) {
		return fail("skill", "unknown skill level %q", t.Skill)
	}
	if t.CommEffective < 0 {
		return fail("comm_effective", "must be >= 0, got %g", t.CommEffective)
	}
	if t.CommMax < t.CommEffective {
		return fail("comm_max", "must be >= comm_effective (%g), got %g", t.CommEffective, t.CommMax)
	}
	if t.Speed < 0 {
		return fail("speed", "must be >= 0, got %g", t.Speed)
	}
	for terrain, f := range t.Friction {
		if f <= 0 || f > 1 {
			return fail("friction", "%s factor must be in (0, 1], got %g", terrain, f)
		}
	}
	return nil
}

// FrictionFor returns the speed factor for terrain. Terrain without an
// entry falls back to DefaultTerrain and then to 1.
func (t Template) FrictionFor(terrain string) float64 {
	if f, ok := t.Friction[terrain]; ok {
		return f
	}
	if f, ok := t.Friction[DefaultTerrain]; ok {
		return f
	}
	return 1
}

// MoveTime returns how long the unit needs to cover dist metres over
// terrain. Stationary templates fail.
func (t Template) MoveTime(dist float64, terrain string) (time.Duration, error) {
	if dist < 0 {
		return 0, fmt.Errorf("template %q: negative distance %g", t.Name, dist)
	}
	if dist == 0 {
		return 0, nil
	}
	mps := t.Speed * 1000 / 3600 * t.FrictionFor(terrain)
	if mps <= 0 {
		return 0, fmt.Errorf("template %q: cannot move (speed %g)", t.Name, t.Speed)
	}
	secs := math.Ceil(dist / mps)
	return time.Duration(secs) * time.Second, nil
}
