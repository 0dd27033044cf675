// Package scenefile reads and writes the JSON scene description.
package scenefile

import (
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/golang/geo/r3"
	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/GoSim-25-26J-441/scene-synth/internal/catalog"
	"github.com/GoSim-25-26J-441/scene-synth/internal/scene"
	"github.com/GoSim-25-26J-441/scene-synth/pkg/logger"
)

// OutputSceneName is written into every saved scene
const OutputSceneName = "Optimized Scene"

// ErrSchema wraps schema validation failures
var ErrSchema = errors.New("scene document does not match schema")

//go:embed scene.schema.json
var schemaText string

var schema = jsonschema.MustCompileString("scene.schema.json", schemaText)

// Vec3 is the document form of a vector
type Vec3 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

func fromVector(v r3.Vector) Vec3 { return Vec3{X: v.X, Y: v.Y, Z: v.Z} }

// Vector converts to r3
func (v Vec3) Vector() r3.Vector { return r3.Vector{X: v.X, Y: v.Y, Z: v.Z} }

// Object is one placed object
type Object struct {
	Name     string `json:"name"`
	Position Vec3   `json:"position"`
	Rotation Vec3   `json:"rotation"`
	Scale    *Vec3  `json:"scale,omitempty"`
}

// Light is one point light
type Light struct {
	Position  Vec3    `json:"position"`
	Intensity float64 `json:"intensity"`
}

// Document is the top-level scene file
type Document struct {
	SceneName string   `json:"sceneName"`
	Objects   []Object `json:"objects"`
	Lights    []Light  `json:"lights"`
}

// Decode validates data against the scene schema and decodes it
func Decode(data []byte) (*Document, error) {
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse scene json: %w", err)
	}
	if err := schema.Validate(raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSchema, err)
	}
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to decode scene json: %w", err)
	}
	return &doc, nil
}

// Encode renders the document as indented JSON
func Encode(doc *Document) ([]byte, error) {
	if doc.Objects == nil {
		doc.Objects = []Object{}
	}
	if doc.Lights == nil {
		doc.Lights = []Light{}
	}
	return json.MarshalIndent(doc, "", "  ")
}

// Load reads a scene file and converts it into an unevaluated state
func Load(path string, cat *catalog.Catalog) (*scene.State, []string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read scene file: %w", err)
	}
	doc, err := Decode(data)
	if err != nil {
		return nil, nil, err
	}
	s, warnings := ToState(doc, cat)
	return s, warnings, nil
}

// ToState resolves object names through the catalog. Unresolved names are
// skipped and reported as warnings.
func ToState(doc *Document, cat *catalog.Catalog) (*scene.State, []string) {
	var warnings []string
	objects := make([]scene.PlacedObject, 0, len(doc.Objects))
	for _, o := range doc.Objects {
		t, err := cat.Lookup(o.Name)
		if err != nil {
			logger.Warn("object type not found in catalog", "name", o.Name)
			warnings = append(warnings, fmt.Sprintf("object type not found: %s", o.Name))
			continue
		}
		scale := Vec3{X: 1, Y: 1, Z: 1}
		if o.Scale != nil {
			scale = *o.Scale
		}
		objects = append(objects, scene.PlacedObject{
			Type:     t.Name,
			Position: o.Position.Vector(),
			Rotation: o.Rotation.Vector(),
			Scale:    scale.Vector(),
		})
	}
	lights := make([]scene.PlacedLight, 0, len(doc.Lights))
	for _, l := range doc.Lights {
		lights = append(lights, scene.PlacedLight{Position: l.Position.Vector(), Intensity: l.Intensity})
	}
	return scene.NewState(objects, lights), warnings
}

// FromState converts a state into a document named OutputSceneName
func FromState(s *scene.State) *Document {
	doc := &Document{
		SceneName: OutputSceneName,
		Objects:   make([]Object, 0, len(s.Objects)),
		Lights:    make([]Light, 0, len(s.Lights)),
	}
	for _, o := range s.Objects {
		scale := fromVector(o.Pose().Scale)
		doc.Objects = append(doc.Objects, Object{
			Name:     o.Type,
			Position: fromVector(o.Position),
			Rotation: fromVector(o.Rotation),
			Scale:    &scale,
		})
	}
	for _, l := range s.Lights {
		doc.Lights = append(doc.Lights, Light{Position: fromVector(l.Position), Intensity: l.Intensity})
	}
	return doc
}

// Save writes the state to path
func Save(path string, s *scene.State) error {
	data, err := Encode(FromState(s))
	if err != nil {
		return fmt.Errorf("failed to encode scene: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create scene directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write scene file: %w", err)
	}
	return nil
}
