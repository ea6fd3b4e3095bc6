package catalogue

import (
	"errors"
	"fmt"
	"sort"
)

// ErrUnknownTemplate is returned by MustGet-style lookups for a name not in
// the catalogue.
var ErrUnknownTemplate = errors.New("unknown template")

// Catalogue is a named set of templates.
type Catalogue struct {
	templates map[string]Template
}

// New validates templates and indexes them by name. Duplicate names fail.
func New(templates ...Template) (*Catalogue, error) {
	c := &Catalogue{templates: make(map[string]Template, len(templates))}
	for _, t := range templates {
		if err := t.Validate(); err != nil {
			return nil, err
		}
		if _, dup := c.templates[t.Name]; dup {
			return nil, &TemplateError{Template: t.Name, Field: "name", Message: "duplicate template"}
		}
		c.templates[t.Name] = t
	}
	return c, nil
}

// Get returns the template called name.
func (c *Catalogue) Get(name string) (Template, bool) {
	t, ok := c.templates[name]
	return t, ok
}

// Lookup is Get with an error for missing names.
func (c *Catalogue) Lookup(name string) (Template, error) {
	t, ok := c.templates[name]
	if !ok {
		return Template{}, fmt.Errorf("%w: %q", ErrUnknownTemplate, name)
	}
	return t, nil
}

// Names returns template names in sorted order.
func (c *Catalogue) Names() []string {
	names := make([]string, 0, len(c.templates))
	for n := range c.templates {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Len returns the number of templates.
func (c *Catalogue) Len() int { return len(c.templates) }
