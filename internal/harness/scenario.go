package harness

import (
	"bytes"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/roach88/opcon/internal/catalogue"
	"github.com/roach88/opcon/internal/geo"
)

// Scenario is a scripted simulation run with expectations about its end
// state and trace.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	Description string `yaml:"description"`

	// Start is the simulation start. Defaults to DefaultStart.
	Start time.Time `yaml:"start,omitempty"`

	// Seed drives a PCG source when Variates is empty.
	Seed uint64 `yaml:"seed,omitempty"`

	// Variates, when set, are replayed in order and then cycled.
	Variates []float64 `yaml:"variates,omitempty"`

	// Catalogue is a YAML template file, or a directory of CUE files,
	// relative to the scenario file.
	Catalogue string `yaml:"catalogue,omitempty"`

	// Templates are inline templates, added after the catalogue file.
	Templates []catalogue.Template `yaml:"templates,omitempty"`

	// CommInRange overrides the C4I comm level within effective range.
	CommInRange float64 `yaml:"comm_in_range,omitempty"`

	// Origin anchors the planar frame for unit locations and location
	// assertions.
	Origin *geo.LatLon `yaml:"origin,omitempty"`

	Units      []UnitSpec    `yaml:"units"`
	Events     []EventSpec   `yaml:"events"`
	RunUntil   time.Duration `yaml:"run_until"`
	Assertions []Assertion   `yaml:"assertions"`

	// dir is where relative paths resolve from.
	dir string
}

// UnitSpec places one unit.
type UnitSpec struct {
	UID         string  `yaml:"uid"`
	Name        string  `yaml:"name"`
	Template    string  `yaml:"template"`
	Stance      string  `yaml:"stance,omitempty"`
	Position    geo.Vec `yaml:"position"`
	HQ          string  `yaml:"hq,omitempty"`
	Morale      int     `yaml:"morale,omitempty"`
	Fatigue     int     `yaml:"fatigue,omitempty"`
	Suppression int     `yaml:"suppression,omitempty"`

	// Location places the unit geographically instead of by Position.
	Location *geo.LatLon `yaml:"location,omitempty"`
}

// EventSpec posts one call or memo. Exactly one of Method and Memo is set.
type EventSpec struct {
	At     time.Duration  `yaml:"at"`
	Parent string         `yaml:"parent"`
	Method string         `yaml:"method,omitempty"`
	Args   []any          `yaml:"args,omitempty"`
	Kwargs map[string]any `yaml:"kwargs,omitempty"`
	Memo   string         `yaml:"memo,omitempty"`
	Data   any            `yaml:"data,omitempty"`
}

// Assertion checks the end state or the trace.
type Assertion struct {
	// Type is one of the Assert* constants.
	Type string `yaml:"type"`

	// Unit and Counter select a counter (unit_counter) or Factor a band (band).
	Unit    string `yaml:"unit,omitempty"`
	Counter string `yaml:"counter,omitempty"`
	Factor  string `yaml:"factor,omitempty"`

	// Value is the expected counter; Label the expected band.
	Value int    `yaml:"value,omitempty"`
	Label string `yaml:"label,omitempty"`

	// Tag and Count are used by memo_count; Event and Count by trace_count.
	Tag   string `yaml:"tag,omitempty"`
	Event string `yaml:"event,omitempty"`
	Count int    `yaml:"count,omitempty"`

	// Events is the expected order for trace_order.
	Events []string `yaml:"events,omitempty"`

	// Lat, Lon and Within (metres) are used by location.
	Lat    float64 `yaml:"lat,omitempty"`
	Lon    float64 `yaml:"lon,omitempty"`
	Within float64 `yaml:"within,omitempty"`
}

// Assertion type constants.
const (
	AssertUnitCounter = "unit_counter"
	AssertMemoCount   = "memo_count"
	AssertTraceOrder  = "trace_order"
	AssertTraceCount  = "trace_count"
	AssertBand        = "band"
	AssertLocation    = "location"
)

// DefaultStart is the simulation start of scenarios that give none.
var DefaultStart = time.Date(1944, time.June, 6, 0, 0, 0, 0, time.UTC)

// LoadScenario reads and validates a scenario file. Unknown fields are
// rejected so typos fail loudly.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	s, err := ParseScenario(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	s.dir = filepath.Dir(path)
	if s.Catalogue != "" {
		if _, err := os.Stat(s.resolve(s.Catalogue)); err != nil {
			return nil, fmt.Errorf("invalid scenario: catalogue: %w", err)
		}
	}
	return s, nil
}

// ParseScenario decodes and validates a scenario. Relative catalogue paths
// resolve against the working directory.
func ParseScenario(data []byte) (*Scenario, error) {
	var s Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&s); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	if err := validateScenario(&s); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &s, nil
}

// LoadDir loads every *.yaml and *.yml scenario under dir, sorted by path.
func LoadDir(dir string) ([]*Scenario, error) {
	var paths []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		ext := strings.ToLower(filepath.Ext(path))
		if !d.IsDir() && (ext == ".yaml" || ext == ".yml") {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan %s: %w", dir, err)
	}
	sort.Strings(paths)

	scenarios := make([]*Scenario, 0, len(paths))
	for _, p := range paths {
		s, err := LoadScenario(p)
		if err != nil {
			return nil, err
		}
		scenarios = append(scenarios, s)
	}
	return scenarios, nil
}

// projector returns the frame for geographic positions, or nil when the
// scenario has no origin.
func (s *Scenario) projector() (*geo.Projector, error) {
	if s.Origin == nil {
		return nil, nil
	}
	return geo.NewProjector(*s.Origin)
}

func (s *Scenario) resolve(path string) string {
	if filepath.IsAbs(path) || s.dir == "" {
		return path
	}
	return filepath.Join(s.dir, path)
}

func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.RunUntil < 0 {
		return fmt.Errorf("run_until must not be negative")
	}
	for _, v := range s.Variates {
		if v < 0 || v >= 1 {
			return fmt.Errorf("variates must be in [0, 1), got %v", v)
		}
	}
	if s.CommInRange < 0 || s.CommInRange > 1 {
		return fmt.Errorf("comm_in_range must be in [0, 1]")
	}
	if s.Origin != nil {
		if _, err := geo.NewProjector(*s.Origin); err != nil {
			return fmt.Errorf("origin: %w", err)
		}
	}

	uids := make(map[string]bool, len(s.Units))
	for i, u := range s.Units {
		switch {
		case u.UID == "":
			return fmt.Errorf("units[%d]: uid is required", i)
		case uids[u.UID]:
			return fmt.Errorf("units[%d]: duplicate uid %q", i, u.UID)
		case u.Template == "":
			return fmt.Errorf("units[%d]: template is required", i)
		case u.Morale < 0 || u.Fatigue < 0 || u.Suppression < 0:
			return fmt.Errorf("units[%d]: counters must not be negative", i)
		case u.Location != nil && s.Origin == nil:
			return fmt.Errorf("units[%d]: location needs a scenario origin", i)
		case u.Location != nil && u.Position != (geo.Vec{}):
			return fmt.Errorf("units[%d]: position and location are exclusive", i)
		case u.Location != nil && !u.Location.Valid():
			return fmt.Errorf("units[%d]: invalid location", i)
		}
		uids[u.UID] = true
	}
	for i, u := range s.Units {
		if u.HQ != "" && !uids[u.HQ] {
			return fmt.Errorf("units[%d]: unknown hq %q", i, u.HQ)
		}
	}

	for i, e := range s.Events {
		switch {
		case e.Parent == "":
			return fmt.Errorf("events[%d]: parent is required", i)
		case e.Method == "" && e.Memo == "":
			return fmt.Errorf("events[%d]: one of method or memo is required", i)
		case e.Method != "" && e.Memo != "":
			return fmt.Errorf("events[%d]: method and memo are exclusive", i)
		case e.At < 0:
			return fmt.Errorf("events[%d]: at must not be negative", i)
		}
	}

	for i := range s.Assertions {
		if err := validateAssertion(i, &s.Assertions[i]); err != nil {
			return err
		}
		if s.Assertions[i].Type == AssertLocation && s.Origin == nil {
			return fmt.Errorf("assertions[%d]: location needs a scenario origin", i)
		}
	}
	return nil
}

func validateAssertion(index int, a *Assertion) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}

	switch a.Type {
	case AssertUnitCounter:
		if a.Unit == "" || a.Counter == "" {
			return fmt.Errorf("assertions[%d]: unit and counter are required for unit_counter", index)
		}
	case AssertMemoCount:
		if a.Tag == "" {
			return fmt.Errorf("assertions[%d]: tag is required for memo_count", index)
		}
	case AssertTraceOrder:
		if len(a.Events) == 0 {
			return fmt.Errorf("assertions[%d]: events list is required for trace_order", index)
		}
	case AssertTraceCount:
		if a.Event == "" {
			return fmt.Errorf("assertions[%d]: event is required for trace_count", index)
		}
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for trace_count", index)
		}
	case AssertBand:
		if a.Unit == "" || a.Factor == "" || a.Label == "" {
			return fmt.Errorf("assertions[%d]: unit, factor and label are required for band", index)
		}
	case AssertLocation:
		if a.Unit == "" || a.Within <= 0 {
			return fmt.Errorf("assertions[%d]: unit and a positive within are required for location", index)
		}
		if !(geo.LatLon{Lat: a.Lat, Lon: a.Lon}).Valid() {
			return fmt.Errorf("assertions[%d]: invalid lat/lon for location", index)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}
	return nil
}
