// Package roster holds the enrolled employees the kiosk recognizes.
package roster

import (
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/MrCodeEU/facekiosk/pkg/logging"
)

var (
	// ErrEmployeeNotFound is returned when an id is not in the roster.
	ErrEmployeeNotFound = errors.New("employee not found")
	// ErrInvalidEmployee is returned when an id or name is unusable.
	ErrInvalidEmployee = errors.New("invalid employee")
	// ErrInvalidImage is returned when an enrollment image cannot be decoded.
	ErrInvalidImage = errors.New("invalid enrollment image")
)

// Employee is one enrolled person.
type Employee struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	ImagePath string    `json:"-"`
	Signature []float32 `json:"-"`
}

// HasSignature reports whether a face signature has been computed.
func (e Employee) HasSignature() bool {
	return len(e.Signature) > 0
}

// Roster is the in-memory employee list, ordered by insertion.
// It is safe for concurrent use.
type Roster struct {
	mu        sync.RWMutex
	employees []Employee
	index     map[string]int
	source    Source
	facesDir  string
}

// New creates an empty roster backed by source. Enrollment images live in
// facesDir.
func New(source Source, facesDir string) *Roster {
	return &Roster{
		index:    make(map[string]int),
		source:   source,
		facesDir: facesDir,
	}
}

// Load replaces the roster contents with the source's records.
func (r *Roster) Load() error {
	if r.source == nil {
		return nil
	}
	employees, err := r.source.Load()
	if err != nil {
		return fmt.Errorf("failed to load roster: %w", err)
	}

	r.mu.Lock()
	r.employees = r.employees[:0]
	r.index = make(map[string]int, len(employees))
	for _, e := range employees {
		r.put(e)
	}
	n := len(r.employees)
	r.mu.Unlock()

	logging.Component("roster").Infof("Loaded %d employees", n)
	return nil
}

// put must be called with the write lock held.
func (r *Roster) put(e Employee) {
	if e.ImagePath == "" {
		e.ImagePath = r.ImagePath(e.Name)
	}
	if i, ok := r.index[e.ID]; ok {
		if e.Signature == nil {
			e.Signature = r.employees[i].Signature
		}
		r.employees[i] = e
		return
	}
	r.index[e.ID] = len(r.employees)
	r.employees = append(r.employees, e)
}

// Add inserts an employee. An existing id is overwritten in place.
func (r *Roster) Add(e Employee) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.put(e)
}

// Enroll copies the image at imagePath into the faces folder as
// <name>.jpg, adds the employee and persists the roster. Re-enrolling an
// existing id drops its signature, which belongs to the old image.
func (r *Roster) Enroll(id, name, imagePath string) (Employee, error) {
	id = strings.TrimSpace(id)
	name = strings.TrimSpace(name)
	if id == "" || name == "" {
		return Employee{}, fmt.Errorf("%w: id and name are required", ErrInvalidEmployee)
	}
	if strings.ContainsAny(name, `/\`) || name == "." || name == ".." {
		return Employee{}, fmt.Errorf("%w: name %q cannot be used as a file name", ErrInvalidEmployee, name)
	}

	dest := r.ImagePath(name)
	if err := copyAsJPEG(imagePath, dest); err != nil {
		return Employee{}, err
	}

	e := Employee{ID: id, Name: name, ImagePath: dest}
	r.mu.Lock()
	r.put(e)
	r.employees[r.index[id]].Signature = nil
	r.mu.Unlock()

	if err := r.Save(); err != nil {
		return e, err
	}

	logging.Component("roster").Infof("Enrolled %s (%s)", name, id)
	return e, nil
}

// SetSignature attaches a computed face signature to an employee.
func (r *Roster) SetSignature(id string, signature []float32) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	i, ok := r.index[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrEmployeeNotFound, id)
	}
	r.employees[i].Signature = signature
	return nil
}

// Employees returns a snapshot of the roster in insertion order.
func (r *Roster) Employees() []Employee {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Employee, len(r.employees))
	copy(out, r.employees)
	return out
}

// Lookup returns the employee with the given id.
func (r *Roster) Lookup(id string) (Employee, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	i, ok := r.index[id]
	if !ok {
		return Employee{}, false
	}
	return r.employees[i], true
}

// Len returns the number of enrolled employees.
func (r *Roster) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.employees)
}

// ImagePath returns where the enrollment image for name is stored.
func (r *Roster) ImagePath(name string) string {
	return filepath.Join(r.facesDir, name+".jpg")
}

// Save writes the roster back to its source when the source is writable.
func (r *Roster) Save() error {
	w, ok := r.source.(Writer)
	if !ok {
		return nil
	}
	if err := w.Save(r.Employees()); err != nil {
		return fmt.Errorf("failed to save roster: %w", err)
	}
	return nil
}

func copyAsJPEG(src, dest string) error {
	f, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("failed to open enrollment image: %w", err)
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidImage, err)
	}

	if err := os.MkdirAll(filepath.Dir(dest), 0755); err != nil {
		return fmt.Errorf("failed to create faces directory: %w", err)
	}

	out, err := os.Create(dest)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", dest, err)
	}
	if err := jpeg.Encode(out, img, &jpeg.Options{Quality: 95}); err != nil {
		out.Close()
		return fmt.Errorf("failed to encode %s: %w", dest, err)
	}
	return out.Close()
}
