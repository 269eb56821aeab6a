package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Property is one managed pool of listings priced together.
type Property struct {
	Name string `yaml:"name"`
	// Listings in priority order; the distributor ladders prices in this order.
	Listings []int64 `yaml:"listings"`
	// LongTermPremium overrides DEFAULT_LONG_TERM_PREMIUM when set.
	LongTermPremium *float64 `yaml:"long_term_premium"`
	// LongTermPremiums overrides the premium for individual listings.
	LongTermPremiums map[int64]float64 `yaml:"long_term_premiums"`
	// SameDayFloor overrides individual months (1-12) of the default floor.
	SameDayFloor map[int]float64 `yaml:"same_day_floor"`
	// CalendarFile is an optional CSV export imported by `pricer import`.
	CalendarFile string `yaml:"calendar_file"`
}

type propertyFile struct {
	Properties []Property `yaml:"properties"`
}

// LoadProperties reads the property YAML. Relative calendar paths are
// resolved against the file's directory.
func LoadProperties(path string) ([]Property, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			fmt.Printf("[WARN] property file %s not found\n", path)
			return nil, nil
		}
		return nil, err
	}
	var f propertyFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	for i := range f.Properties {
		p := &f.Properties[i]
		if p.CalendarFile != "" && !filepath.IsAbs(p.CalendarFile) {
			p.CalendarFile = filepath.Join(filepath.Dir(path), p.CalendarFile)
		}
	}
	return f.Properties, nil
}

func (p Property) problems() []string {
	var errs []string
	if p.Name == "" {
		errs = append(errs, "property with empty name")
	}
	if len(p.Listings) == 0 {
		errs = append(errs, fmt.Sprintf("property %q has no listings", p.Name))
	}
	seen := map[int64]bool{}
	for _, id := range p.Listings {
		if seen[id] {
			errs = append(errs, fmt.Sprintf("property %q lists %d twice", p.Name, id))
		}
		seen[id] = true
	}
	for id, v := range p.LongTermPremiums {
		if !seen[id] {
			errs = append(errs, fmt.Sprintf("property %q: long_term_premiums names unknown listing %d", p.Name, id))
		}
		if v < 0 {
			errs = append(errs, fmt.Sprintf("property %q: negative long-term premium for listing %d", p.Name, id))
		}
	}
	for m := range p.SameDayFloor {
		if m < 1 || m > 12 {
			errs = append(errs, fmt.Sprintf("property %q: same_day_floor month %d out of range", p.Name, m))
		}
	}
	return errs
}
