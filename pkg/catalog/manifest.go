package catalog

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Manifest is the YAML catalog maintained by plant administration: the
// components, the recipes with their coefficients, and the products.
type Manifest struct {
	Components []string      `yaml:"components"`
	Recipes    []RecipeSpec  `yaml:"recipes"`
	Products   []ProductSpec `yaml:"products"`
}

// RecipeSpec is one recipe and its per-kilogram coefficients keyed by component.
type RecipeSpec struct {
	Name  string             `yaml:"name"`
	Items map[string]float64 `yaml:"items"`
}

// ProductSpec is one product as declared in the external system.
type ProductSpec struct {
	Name            string  `yaml:"name"`
	PackageWeightKg float64 `yaml:"package_weight_kg"`
	Recipe          string  `yaml:"recipe,omitempty"`
}

// LoadManifest reads and validates a catalog manifest.
func LoadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog %s: %w", path, err)
	}
	return ParseManifest(data)
}

// ParseManifest decodes and validates a catalog manifest.
func ParseManifest(data []byte) (*Manifest, error) {
	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse catalog: %w", err)
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return &m, nil
}

// Validate checks references and value ranges.
func (m *Manifest) Validate() error {
	components := make(map[string]bool, len(m.Components))
	for _, c := range m.Components {
		if c == "" {
			return fmt.Errorf("catalog: empty component name")
		}
		components[c] = true
	}

	recipes := make(map[string]bool, len(m.Recipes))
	for _, r := range m.Recipes {
		if r.Name == "" {
			return fmt.Errorf("catalog: recipe without name")
		}
		if recipes[r.Name] {
			return fmt.Errorf("catalog: duplicate recipe %q", r.Name)
		}
		recipes[r.Name] = true
		for comp, q := range r.Items {
			if !components[comp] {
				return fmt.Errorf("catalog: recipe %q uses unknown component %q", r.Name, comp)
			}
			if q < 0 {
				return fmt.Errorf("catalog: recipe %q component %q: negative coefficient %v", r.Name, comp, q)
			}
		}
	}

	keys := make(map[string]string, len(m.Products))
	for _, p := range m.Products {
		key := NormalizeKey(p.Name)
		if key == "" {
			return fmt.Errorf("catalog: product without name")
		}
		if prev, ok := keys[key]; ok {
			return fmt.Errorf("catalog: products %q and %q share the match key %q", prev, p.Name, key)
		}
		keys[key] = p.Name
		if p.PackageWeightKg <= 0 {
			return fmt.Errorf("catalog: product %q: package weight must be > 0", p.Name)
		}
		if p.Recipe != "" && !recipes[p.Recipe] {
			return fmt.Errorf("catalog: product %q references unknown recipe %q", p.Name, p.Recipe)
		}
	}
	return nil
}
