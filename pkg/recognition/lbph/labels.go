package lbph

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
)

// LabelMap maps classifier labels to employee ids.
type LabelMap map[int]string

// Assign returns the label for id, allocating the next free one if needed.
func (m LabelMap) Assign(id string) int {
	next := 0
	for label, existing := range m {
		if existing == id {
			return label
		}
		if label >= next {
			next = label + 1
		}
	}
	m[next] = id
	return next
}

// Only returns the entries whose id is in ids.
func (m LabelMap) Only(ids []string) LabelMap {
	keep := make(map[string]bool, len(ids))
	for _, id := range ids {
		keep[id] = true
	}
	out := LabelMap{}
	for label, id := range m {
		if keep[id] {
			out[label] = id
		}
	}
	return out
}

// IDs returns the mapped employee ids ordered by label.
func (m LabelMap) IDs() []string {
	labels := make([]int, 0, len(m))
	for l := range m {
		labels = append(labels, l)
	}
	sort.Ints(labels)

	ids := make([]string, len(labels))
	for i, l := range labels {
		ids[i] = m[l]
	}
	return ids
}

// LoadLabels reads a label map written by SaveLabels.
func LoadLabels(path string) (LabelMap, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	m := LabelMap{}
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return m, nil
}

// SaveLabels writes the label map as JSON.
func SaveLabels(path string, m LabelMap) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}
