// Package catalog resolves placeable object type names to geometry.
package catalog

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/golang/geo/r3"
	"gopkg.in/yaml.v3"

	"github.com/GoSim-25-26J-441/scene-synth/internal/geometry"
)

// ErrUnknownType is returned when a name does not resolve to a catalog entry
var ErrUnknownType = errors.New("unknown object type")

// TypeSpec is one catalog entry as written in YAML
type TypeSpec struct {
	Name  string     `yaml:"name"`
	Shape string     `yaml:"shape"`
	Size  [3]float64 `yaml:"size"`
}

// File is the on-disk catalog document
type File struct {
	Types []TypeSpec `yaml:"types"`
}

// Type is a resolved placeable type
type Type struct {
	Name  string
	Shape string
	Size  r3.Vector
	Mesh  *geometry.Mesh // nil when the type has no geometry
}

// HasGeometry reports whether the type can be rendered
func (t *Type) HasGeometry() bool {
	return t.Mesh != nil && t.Mesh.TriangleCount() > 0
}

// Catalog is an ordered, case-insensitively indexed set of types
type Catalog struct {
	types  []*Type
	byName map[string]*Type
}

// New builds a catalog from specs, constructing every mesh up front
func New(specs []TypeSpec) (*Catalog, error) {
	if len(specs) == 0 {
		return nil, fmt.Errorf("catalog must contain at least one type")
	}
	c := &Catalog{byName: make(map[string]*Type, len(specs))}
	for i, spec := range specs {
		if spec.Name == "" {
			return nil, fmt.Errorf("type %d: name is required", i)
		}
		key := strings.ToLower(spec.Name)
		if _, dup := c.byName[key]; dup {
			return nil, fmt.Errorf("type %d: duplicate name %q", i, spec.Name)
		}
		size := r3.Vector{X: spec.Size[0], Y: spec.Size[1], Z: spec.Size[2]}
		mesh, err := BuildMesh(spec.Shape, size)
		if err != nil {
			return nil, fmt.Errorf("type %s: %w", spec.Name, err)
		}
		t := &Type{Name: spec.Name, Shape: spec.Shape, Size: size, Mesh: mesh}
		c.types = append(c.types, t)
		c.byName[key] = t
	}
	return c, nil
}

// Default returns the built-in catalog
func Default() *Catalog {
	c, err := New([]TypeSpec{
		{Name: "Crate", Shape: ShapeBox, Size: [3]float64{1, 1, 1}},
		{Name: "Table", Shape: ShapeBox, Size: [3]float64{2, 0.8, 1}},
		{Name: "Barrel", Shape: ShapeOpenBox, Size: [3]float64{0.8, 1.2, 0.8}},
		{Name: "Ramp", Shape: ShapeWedge, Size: [3]float64{2, 1, 1}},
		{Name: "Shelf", Shape: ShapeShelf, Size: [3]float64{1.5, 2, 0.5}},
		{Name: "Rug", Shape: ShapePlane, Size: [3]float64{2, 0, 1.5}},
	})
	if err != nil {
		panic(fmt.Sprintf("built-in catalog: %v", err))
	}
	return c
}

// Parse reads a catalog YAML document
func Parse(data []byte) (*Catalog, error) {
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse catalog yaml: %w", err)
	}
	return New(f.Types)
}

// Load reads a catalog file
func Load(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog file %s: %w", path, err)
	}
	c, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("failed to load catalog file %s: %w", path, err)
	}
	return c, nil
}

// Lookup resolves a type name, ignoring case
func (c *Catalog) Lookup(name string) (*Type, error) {
	if t, ok := c.byName[strings.ToLower(name)]; ok {
		return t, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownType, name)
}

// Len returns the number of types
func (c *Catalog) Len() int {
	return len(c.types)
}

// At returns the i-th type in declaration order
func (c *Catalog) At(i int) *Type {
	return c.types[i]
}

// Names lists type names in declaration order
func (c *Catalog) Names() []string {
	names := make([]string, len(c.types))
	for i, t := range c.types {
		names[i] = t.Name
	}
	return names
}
