// Package profile loads YAML matching profiles for the tmatch command.
//
// A profile lists the templates to look for in one search image:
//
//	backend: gpu
//	image: frame.png
//	templates:
//	  - file: start.png
//	    method: ccoeff_normed
//	    threshold: 0.9
//	  - file: coin.png
//	    method: sqdiff_normed
//	    multi: true
//	    merge: connected
//	    region: [0, 0, 960, 540]
//
// Method and threshold default to the calibrated values of the method, so
// an entry may name a file only.
package profile

import (
	"errors"
	"fmt"
	"image"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/gogpu/tmatch"
)

// ErrNoTemplates is returned for a profile without template entries.
var ErrNoTemplates = errors.New("profile: no templates")

// Profile is a validated matching profile.
type Profile struct {
	Backend   string
	Image     string
	Templates []Template
}

// Template is one validated template entry.
type Template struct {
	Name    string
	File    string
	Options tmatch.MatcherOptions
	Multi   bool
	Merge   tmatch.MergeMode
	// Region restricts the search to part of the image. Empty means the
	// whole image.
	Region image.Rectangle
}

type rawProfile struct {
	Backend   string        `yaml:"backend"`
	Image     string        `yaml:"image"`
	Templates []rawTemplate `yaml:"templates"`
}

type rawTemplate struct {
	Name      string   `yaml:"name"`
	File      string   `yaml:"file"`
	Method    string   `yaml:"method"`
	Threshold *float32 `yaml:"threshold"`
	Padding   bool     `yaml:"padding"`
	Multi     bool     `yaml:"multi"`
	Merge     string   `yaml:"merge"`
	Region    []int    `yaml:"region"`
}

// Load reads and validates the profile at path. Relative image and template
// paths are resolved against the profile's directory.
func Load(path string) (*Profile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("profile: %w", err)
	}
	p, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	dir := filepath.Dir(path)
	p.Image = resolve(dir, p.Image)
	for i := range p.Templates {
		p.Templates[i].File = resolve(dir, p.Templates[i].File)
	}
	return p, nil
}

// Parse decodes and validates a profile. Invalid option combinations fail
// here with tmatch.ErrConfigurationMismatch rather than at match time.
func Parse(data []byte) (*Profile, error) {
	var raw rawProfile
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("profile: %w", err)
	}
	if len(raw.Templates) == 0 {
		return nil, ErrNoTemplates
	}

	p := &Profile{Backend: raw.Backend, Image: raw.Image}
	if p.Backend == "" {
		p.Backend = tmatch.SoftwareBackendName
	}
	for i, rt := range raw.Templates {
		t, err := rt.build()
		if err != nil {
			return nil, fmt.Errorf("profile: template %d: %w", i, err)
		}
		p.Templates = append(p.Templates, t)
	}
	return p, nil
}

func (rt rawTemplate) build() (Template, error) {
	if rt.File == "" {
		return Template{}, errors.New("missing file")
	}
	t := Template{Name: rt.Name, File: rt.File, Multi: rt.Multi}
	if t.Name == "" {
		t.Name = filepath.Base(rt.File)
	}

	opts := tmatch.DefaultMatcherOptions()
	if rt.Method != "" {
		m, err := tmatch.ParseMethod(rt.Method)
		if err != nil {
			return Template{}, err
		}
		opts = tmatch.MethodDefault(m)
	}
	if rt.Threshold != nil {
		opts = opts.WithThreshold(*rt.Threshold)
	}
	opts.Padding = rt.Padding
	if err := opts.Validate(); err != nil {
		return Template{}, err
	}
	t.Options = opts

	merge, err := tmatch.ParseMergeMode(rt.Merge)
	if err != nil {
		return Template{}, err
	}
	t.Merge = merge

	switch len(rt.Region) {
	case 0:
	case 4:
		t.Region = image.Rect(rt.Region[0], rt.Region[1], rt.Region[2], rt.Region[3])
		if t.Region.Empty() {
			return Template{}, fmt.Errorf("empty region %v", rt.Region)
		}
	default:
		return Template{}, fmt.Errorf("region needs 4 values [x0, y0, x1, y1], got %d", len(rt.Region))
	}
	return t, nil
}

func resolve(dir, path string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(dir, path)
}
