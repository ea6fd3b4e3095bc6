package catalogue

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/load"
	"gopkg.in/yaml.v3"
)

type yamlFile struct {
	Templates []Template `yaml:"templates"`
}

// LoadYAML reads a catalogue file of the form
//
//	templates:
//	  - name: rifle-coy
//	    skill: regular
//	    ...
func LoadYAML(path string) (*Catalogue, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalogue: %w", err)
	}
	c, err := ParseYAML(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return c, nil
}

// ParseYAML decodes catalogue YAML. Unknown fields are rejected.
func ParseYAML(data []byte) (*Catalogue, error) {
	var f yamlFile
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	return New(f.Templates...)
}

// LoadCUE builds the CUE package in dir and decodes every field of its
// top-level "template" struct. The field label is the template name unless
// the value sets one.
//
//	template: "rifle-coy": {skill: "regular", comm_effective: 2000, ...}
//
// Constraints and defaults in the CUE files are applied by CUE before
// decoding; the result is then validated like any other template.
func LoadCUE(dir string) (*Catalogue, error) {
	if _, err := os.Stat(dir); err != nil {
		return nil, fmt.Errorf("catalogue directory: %w", err)
	}

	ctx := cuecontext.New()
	instances := load.Instances([]string{"."}, &load.Config{Dir: dir})
	if len(instances) == 0 {
		return nil, fmt.Errorf("no CUE instances in %s", dir)
	}
	inst := instances[0]
	if inst.Err != nil {
		return nil, fmt.Errorf("loading CUE files: %w", inst.Err)
	}

	value := ctx.BuildInstance(inst)
	if err := value.Err(); err != nil {
		return nil, fmt.Errorf("building CUE value: %w", err)
	}
	return decodeCUE(value)
}

// ParseCUE compiles a single CUE source string. Used by tests and for
// inline catalogues.
func ParseCUE(src string) (*Catalogue, error) {
	value := cuecontext.New().CompileString(src)
	if err := value.Err(); err != nil {
		return nil, fmt.Errorf("compiling CUE: %w", err)
	}
	return decodeCUE(value)
}

func decodeCUE(value cue.Value) (*Catalogue, error) {
	root := value.LookupPath(cue.ParsePath("template"))
	if !root.Exists() {
		return nil, errors.New("no template struct found")
	}

	iter, err := root.Fields()
	if err != nil {
		return nil, fmt.Errorf("iterating templates: %w", err)
	}

	var templates []Template
	for iter.Next() {
		v := iter.Value()
		var t Template
		if err := v.Decode(&t); err != nil {
			return nil, &TemplateError{Template: iter.Label(), Field: "template", Message: err.Error(), Pos: v.Pos()}
		}
		if t.Name == "" {
			t.Name = iter.Label()
		}
		if err := t.Validate(); err != nil {
			var te *TemplateError
			if errors.As(err, &te) {
				te.Pos = v.Pos()
			}
			return nil, err
		}
		templates = append(templates, t)
	}
	return New(templates...)
}
