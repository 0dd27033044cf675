package scenefile

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/golang/geo/r3"

	"github.com/GoSim-25-26J-441/scene-synth/internal/catalog"
	"github.com/GoSim-25-26J-441/scene-synth/internal/scene"
)

const sample = `{
  "sceneName": "Warehouse",
  "objects": [
    {"name": "crate", "position": {"x": 1, "y": -2, "z": 3}, "rotation": {"x": 0, "y": 90, "z": 0}},
    {"name": "Sofa", "position": {"x": 0, "y": 0, "z": 0}},
    {"name": "TABLE", "position": {"x": -4, "y": -2, "z": 2}, "rotation": {"x": 0, "y": 0, "z": 0}, "scale": {"x": 2, "y": 1, "z": 1}}
  ],
  "lights": [
    {"position": {"x": 0, "y": 4, "z": 0}, "intensity": 1.5}
  ]
}`

func TestDecodeAndConvert(t *testing.T) {
	doc, err := Decode([]byte(sample))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	s, warnings := ToState(doc, catalog.Default())
	if len(warnings) != 1 {
		t.Fatalf("expected 1 warning for the unknown type, got %v", warnings)
	}
	if len(s.Objects) != 2 || len(s.Lights) != 1 {
		t.Fatalf("expected 2 objects and 1 light, got %d/%d", len(s.Objects), len(s.Lights))
	}
	crate := s.Objects[0]
	if crate.Type != "Crate" {
		t.Fatalf("expected canonical type name Crate, got %q", crate.Type)
	}
	if crate.Scale != (r3.Vector{X: 1, Y: 1, Z: 1}) {
		t.Fatalf("expected default unit scale, got %v", crate.Scale)
	}
	if crate.Rotation.Y != 90 {
		t.Fatalf("expected yaw 90, got %v", crate.Rotation)
	}
	if s.Objects[1].Scale.X != 2 {
		t.Fatalf("expected explicit scale kept, got %v", s.Objects[1].Scale)
	}
	if s.Objects[0].ID == s.Objects[1].ID {
		t.Fatalf("expected distinct ids")
	}
	if s.Lights[0].Intensity != 1.5 {
		t.Fatalf("expected intensity 1.5, got %f", s.Lights[0].Intensity)
	}
}

func TestDecodeSchemaViolations(t *testing.T) {
	tests := []struct {
		name string
		json string
	}{
		{"object without position", `{"objects":[{"name":"Crate"}]}`},
		{"empty name", `{"objects":[{"name":"","position":{"x":0,"y":0,"z":0}}]}`},
		{"vector missing component", `{"objects":[{"name":"Crate","position":{"x":0,"y":0}}]}`},
		{"negative intensity", `{"lights":[{"position":{"x":0,"y":0,"z":0},"intensity":-1}]}`},
		{"zero intensity", `{"lights":[{"position":{"x":0,"y":0,"z":0},"intensity":0}]}`},
		{"string coordinate", `{"lights":[{"position":{"x":"a","y":0,"z":0},"intensity":1}]}`},
		{"objects not array", `{"objects":{}}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode([]byte(tt.json))
			if !errors.Is(err, ErrSchema) {
				t.Fatalf("expected ErrSchema, got %v", err)
			}
		})
	}

	if _, err := Decode([]byte("{not json")); err == nil || errors.Is(err, ErrSchema) {
		t.Fatalf("expected a parse error, got %v", err)
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	s := scene.NewState([]scene.PlacedObject{
		{Type: "Shelf", Position: r3.Vector{X: 1, Y: -2, Z: 1}, Rotation: r3.Vector{Y: 45}},
		{Type: "Rug", Position: r3.Vector{X: -3, Y: -2, Z: 0}, Scale: r3.Vector{X: 1, Y: 1, Z: 2}},
	}, []scene.PlacedLight{{Position: r3.Vector{Y: 3}, Intensity: 0.75}})

	path := filepath.Join(t.TempDir(), "out.json")
	if err := Save(path, s); err != nil {
		t.Fatalf("save failed: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read failed: %v", err)
	}
	doc, err := Decode(data)
	if err != nil {
		t.Fatalf("saved file should validate: %v", err)
	}
	if doc.SceneName != OutputSceneName {
		t.Fatalf("expected scene name %q, got %q", OutputSceneName, doc.SceneName)
	}

	loaded, warnings, err := Load(path, catalog.Default())
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if len(warnings) != 0 {
		t.Fatalf("unexpected warnings %v", warnings)
	}
	if len(loaded.Objects) != 2 || len(loaded.Lights) != 1 {
		t.Fatalf("unexpected counts %d/%d", len(loaded.Objects), len(loaded.Lights))
	}
	for i, o := range loaded.Objects {
		want := s.Objects[i]
		if o.Type != want.Type || o.Position != want.Position || o.Rotation != want.Rotation || o.Scale != want.Scale {
			t.Fatalf("object %d: got %+v, want %+v", i, o, want)
		}
	}
	if loaded.Lights[0] != s.Lights[0] {
		t.Fatalf("light mismatch: %+v vs %+v", loaded.Lights[0], s.Lights[0])
	}
}

func TestSaveCreatesParentDirs(t *testing.T) {
	path := filepath.Join(t.TempDir(), "runs", "abc", "scene.json")
	if err := Save(path, scene.NewState(nil, nil)); err != nil {
		t.Fatalf("save failed: %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("expected scene file: %v", err)
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, _, err := Load(filepath.Join(t.TempDir(), "missing.json"), catalog.Default())
	if !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("expected not-exist error, got %v", err)
	}
}

func TestEncodeEmptyState(t *testing.T) {
	data, err := Encode(FromState(scene.NewState(nil, nil)))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := Decode(data); err != nil {
		t.Fatalf("empty scene should validate: %v", err)
	}
}
