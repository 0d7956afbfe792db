package roster

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Source supplies the initial roster.
type Source interface {
	Load() ([]Employee, error)
}

// Writer is implemented by sources that can persist the roster.
type Writer interface {
	Save([]Employee) error
}

// DefaultEmployees is the seed used when no roster file exists yet.
func DefaultEmployees() []Employee {
	return []Employee{
		{ID: "001", Name: "张三"},
		{ID: "002", Name: "李四"},
		{ID: "003", Name: "王五"},
	}
}

// Static is a fixed, read-only roster.
type Static struct {
	Employees []Employee
}

// Load implements Source.
func (s Static) Load() ([]Employee, error) {
	out := make([]Employee, len(s.Employees))
	copy(out, s.Employees)
	return out, nil
}

// JSONFile stores the roster as an indented JSON array of {id, name}.
type JSONFile struct {
	Path string
}

// Load implements Source. A missing file is seeded with DefaultEmployees and
// written back.
func (f JSONFile) Load() ([]Employee, error) {
	data, err := os.ReadFile(f.Path)
	if os.IsNotExist(err) {
		seed := DefaultEmployees()
		if err := f.Save(seed); err != nil {
			return nil, err
		}
		return seed, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", f.Path, err)
	}

	var employees []Employee
	if err := json.Unmarshal(data, &employees); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", f.Path, err)
	}
	return employees, nil
}

// Save implements Writer.
func (f JSONFile) Save(employees []Employee) error {
	if err := os.MkdirAll(filepath.Dir(f.Path), 0755); err != nil {
		return err
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if employees == nil {
		employees = []Employee{}
	}
	if err := enc.Encode(employees); err != nil {
		return fmt.Errorf("failed to encode roster: %w", err)
	}

	tmp := f.Path + ".tmp"
	if err := os.WriteFile(tmp, buf.Bytes(), 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", tmp, err)
	}
	return os.Rename(tmp, f.Path)
}
