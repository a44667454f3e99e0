package dataset

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"thermal_envelope/internal/estimator"
	"thermal_envelope/internal/service"

	"gopkg.in/yaml.v3"
)

// Guess is an optional starting point for the nonlinear refinement.
type Guess struct {
	REnv float64 `yaml:"r_env"`
	CIn  float64 `yaml:"c_in"`
}

// FitOptions are the per-series fit settings a manifest can carry. Zero
// values mean "not set".
type FitOptions struct {
	Method          string  `yaml:"method"`
	Dt              float64 `yaml:"dt"`
	TimeUnit        string  `yaml:"time_unit"`
	HoldoutFraction float64 `yaml:"holdout_fraction"`
	HoldoutIndex    int     `yaml:"holdout_index"`
	InitialGuess    *Guess  `yaml:"initial_guess"`
}

// merge returns o with unset fields taken from base.
func (o FitOptions) merge(base FitOptions) FitOptions {
	if o.Method == "" {
		o.Method = base.Method
	}
	if o.Dt == 0 {
		o.Dt = base.Dt
	}
	if o.TimeUnit == "" {
		o.TimeUnit = base.TimeUnit
	}
	if o.HoldoutFraction == 0 && o.HoldoutIndex == 0 {
		o.HoldoutFraction, o.HoldoutIndex = base.HoldoutFraction, base.HoldoutIndex
	}
	if o.InitialGuess == nil {
		o.InitialGuess = base.InitialGuess
	}
	return o
}

// Entry is one series of a manifest.
type Entry struct {
	ID         string `yaml:"id"`
	CSV        string `yaml:"csv"`
	FitOptions `yaml:",inline"`
}

// Manifest lists the series of a batch run:
//
//	defaults:
//	  time_unit: hour
//	  dt: 1
//	series:
//	  - id: room-101
//	    csv: room-101.csv
//	  - id: room-102
//	    csv: room-102.csv
//	    method: linear
type Manifest struct {
	Defaults FitOptions `yaml:"defaults"`
	Series   []Entry    `yaml:"series"`

	dir string
}

// LoadManifest reads a manifest. Relative CSV paths are resolved against the
// manifest's directory.
func LoadManifest(path string) (*Manifest, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var m Manifest
	if err := yaml.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("parse manifest %s: %w", path, err)
	}
	m.dir = filepath.Dir(path)
	if err := m.Validate(); err != nil {
		return nil, fmt.Errorf("manifest %s: %w", path, err)
	}
	return &m, nil
}

// Validate checks that every entry names a unique id and a CSV file.
func (m *Manifest) Validate() error {
	if len(m.Series) == 0 {
		return errors.New("no series listed")
	}
	seen := make(map[string]bool, len(m.Series))
	for i, e := range m.Series {
		if e.ID == "" {
			return fmt.Errorf("series[%d]: id is required", i)
		}
		if e.CSV == "" {
			return fmt.Errorf("series[%d] (%s): csv is required", i, e.ID)
		}
		if seen[e.ID] {
			return fmt.Errorf("series[%d]: duplicate id %q", i, e.ID)
		}
		seen[e.ID] = true
	}
	return nil
}

// Requests loads every listed CSV and returns one fit request per entry, in
// manifest order.
func (m *Manifest) Requests() ([]service.FitRequest, error) {
	out := make([]service.FitRequest, 0, len(m.Series))
	for _, e := range m.Series {
		path := e.CSV
		if !filepath.IsAbs(path) {
			path = filepath.Join(m.dir, path)
		}
		t, err := ReadCSVFile(path)
		if err != nil {
			return nil, fmt.Errorf("series %s: %w", e.ID, err)
		}
		out = append(out, t.Request(e.ID, e.FitOptions.merge(m.Defaults)))
	}
	return out, nil
}

// Request builds a fit request for the table.
func (t *Table) Request(id string, o FitOptions) service.FitRequest {
	req := service.FitRequest{
		SeriesID:        id,
		TIn:             t.TIn,
		TOut:            t.TOut,
		QIn:             t.QIn,
		Dt:              o.Dt,
		Timestamps:      t.Timestamps,
		TimeUnit:        o.TimeUnit,
		Method:          o.Method,
		HoldoutFraction: o.HoldoutFraction,
		HoldoutIndex:    o.HoldoutIndex,
	}
	if g := o.InitialGuess; g != nil {
		req.InitialGuess = &estimator.Params{R: g.REnv, C: g.CIn}
	}
	return req
}
