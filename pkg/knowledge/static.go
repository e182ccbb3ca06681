package knowledge

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/teslashibe/go-swarm/internal/log"
	"github.com/teslashibe/go-swarm/pkg/action"
	"github.com/teslashibe/go-swarm/pkg/sensor"
)

// kbVersion is the knowledge base schema this build reads and writes.
const kbVersion = 1

type kbFile struct {
	Version  int         `json:"version"`
	Dim      int         `json:"dim"`
	Concepts []kbConcept `json:"concepts"`
}

type kbConcept struct {
	Label    string    `json:"label"`
	Category string    `json:"category"`
	Vector   []float64 `json:"vector"`
}

// LoadStatic reads a knowledge base file. Entries with an unknown category
// or the wrong dimension are skipped and logged; a bad version or
// unreadable file is an error.
func LoadStatic(path string) ([]Concept, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read knowledge base: %w", err)
	}
	return ParseStatic(data)
}

// ParseStatic decodes knowledge base JSON.
func ParseStatic(data []byte) ([]Concept, error) {
	var kb kbFile
	if err := json.Unmarshal(data, &kb); err != nil {
		return nil, fmt.Errorf("parse knowledge base: %w", err)
	}
	if kb.Version != kbVersion {
		return nil, fmt.Errorf("%w: %d", ErrBadVersion, kb.Version)
	}
	if kb.Dim != 0 && kb.Dim != sensor.Dim {
		return nil, fmt.Errorf("%w: file has %d, want %d", ErrDimension, kb.Dim, sensor.Dim)
	}

	logger := log.Component("knowledge")
	out := make([]Concept, 0, len(kb.Concepts))
	for _, c := range kb.Concepts {
		cat, err := action.ParseCategory(c.Category)
		if err != nil {
			logger.Warn("skipping concept", "label", c.Label, "error", err)
			continue
		}
		if len(c.Vector) != sensor.Dim {
			logger.Warn("skipping concept", "label", c.Label, "dim", len(c.Vector))
			continue
		}
		v := sensor.Vector(c.Vector).Normalized()
		if v.Norm() == 0 {
			logger.Warn("skipping concept", "label", c.Label, "reason", "zero vector")
			continue
		}
		out = append(out, Concept{Label: c.Label, Category: cat, Vector: v, Origin: Static})
	}
	return out, nil
}

// WriteStatic writes concepts as a knowledge base file, atomically.
func WriteStatic(path string, concepts []Concept) error {
	kb := kbFile{Version: kbVersion, Dim: sensor.Dim}
	for _, c := range concepts {
		kb.Concepts = append(kb.Concepts, kbConcept{
			Label:    c.Label,
			Category: c.Category.String(),
			Vector:   c.Vector,
		})
	}
	sort.Slice(kb.Concepts, func(i, j int) bool { return kb.Concepts[i].Label < kb.Concepts[j].Label })

	data, err := json.MarshalIndent(kb, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal knowledge base: %w", err)
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("create knowledge base dir: %w", err)
		}
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("write knowledge base: %w", err)
	}
	return os.Rename(tmp, path)
}
