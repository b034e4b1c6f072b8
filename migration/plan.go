package migration

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/Skyrin/go-migrate/e"
	"github.com/Skyrin/go-migrate/verify"
	"gopkg.in/yaml.v3"
)

const (
	// DefaultAbortAfter consecutive fatal statements before the run is aborted
	// (or the prompt is asked)
	DefaultAbortAfter = 5

	ECode000401 = e.Code0004 + "01"
	ECode000402 = e.Code0004 + "02"
	ECode000403 = e.Code0004 + "03"
	ECode000404 = e.Code0004 + "04"
	ECode000405 = e.Code0004 + "05"
	ECode000406 = e.Code0004 + "06"
	ECode000407 = e.Code0004 + "07"
)

// Plan a migration file and what it takes for it to be considered applied
type Plan struct {
	Name string `yaml:"name"`
	File string `yaml:"file"`
	// Tolerable case insensitive regular expressions, on top of the defaults
	Tolerable []string `yaml:"tolerate,omitempty"`
	// Probes checked after all statements ran
	Probes []*verify.Probe `yaml:"probes,omitempty"`
	// DisableForeignKeys turns foreign key checks off for the statement loop.
	// They are turned back on however the loop ends.
	DisableForeignKeys bool `yaml:"disable_foreign_keys,omitempty"`
	// AbortAfter consecutive fatal statements, nil means DefaultAbortAfter
	// and 0 never aborts
	AbortAfter *int `yaml:"abort_after,omitempty"`
}

// GetAbortAfter returns the abort threshold, applying the default
func (p *Plan) GetAbortAfter() int {
	if p.AbortAfter == nil {
		return DefaultAbortAfter
	}
	return *p.AbortAfter
}

// Validate checks the plan is runnable
func (p *Plan) Validate() (err error) {
	if p.File == "" {
		return e.N(ECode000401, fmt.Sprintf("plan %q has no file", p.Name))
	}
	if p.AbortAfter != nil && *p.AbortAfter < 0 {
		return e.N(ECode000402, fmt.Sprintf("plan %q abort_after must not be negative", p.Name))
	}
	for _, pr := range p.Probes {
		if err := pr.Validate(); err != nil {
			return e.W(err, ECode000403, fmt.Sprintf("plan: %s", p.Name))
		}
	}

	return nil
}

// Manifest a named list of plans
type Manifest struct {
	Migrations []*Plan `yaml:"migrations"`
}

// LoadManifest decodes a YAML manifest
func LoadManifest(r io.Reader) (m *Manifest, err error) {
	m = &Manifest{}
	if err := yaml.NewDecoder(r).Decode(m); err != nil && err != io.EOF {
		return nil, e.W(err, ECode000404)
	}

	seen := make(map[string]bool, len(m.Migrations))
	for _, p := range m.Migrations {
		if p.Name == "" || seen[p.Name] {
			return nil, e.N(ECode000405, fmt.Sprintf("plan name %q is empty or duplicated", p.Name))
		}
		seen[p.Name] = true

		if err := p.Validate(); err != nil {
			return nil, e.W(err, ECode000405)
		}
	}

	return m, nil
}

// LoadManifestFile loads the manifest at path. Relative plan files are
// resolved against the manifest's directory.
func LoadManifestFile(path string) (m *Manifest, err error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, e.W(err, ECode000406, fmt.Sprintf("path: %s", path))
	}
	defer f.Close()

	m, err = LoadManifest(f)
	if err != nil {
		return nil, e.W(err, ECode000406, fmt.Sprintf("path: %s", path))
	}

	dir := filepath.Dir(path)
	for _, p := range m.Migrations {
		if !filepath.IsAbs(p.File) {
			p.File = filepath.Join(dir, p.File)
		}
	}

	return m, nil
}

// Get returns the plan with the name
func (m *Manifest) Get(name string) (p *Plan, err error) {
	for _, p := range m.Migrations {
		if p.Name == name {
			return p, nil
		}
	}

	return nil, e.WWM(nil, ECode000407, e.MsgPlanDoesNotExist, fmt.Sprintf("name: %s", name))
}
