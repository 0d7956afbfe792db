package recognition

import (
	"fmt"

	"github.com/MrCodeEU/facekiosk/pkg/logging"
	"github.com/MrCodeEU/facekiosk/pkg/roster"
)

// Result is the outcome of matching one frame.
type Result struct {
	Faces      []Detection
	Match      *Detection
	ModelReady bool
	Enrolled   int
	Err        error
}

// Matcher runs a Backend against the current roster.
type Matcher struct {
	backend Backend
	roster  *roster.Roster
}

// NewMatcher creates a Matcher.
func NewMatcher(backend Backend, r *roster.Roster) *Matcher {
	return &Matcher{backend: backend, roster: r}
}

// Backend returns the underlying backend.
func (m *Matcher) Backend() Backend {
	return m.backend
}

// Match judges one frame. Backend errors and panics are logged and reported
// as a result without a match.
func (m *Matcher) Match(frame []byte) (res Result) {
	res.ModelReady = m.backend.Ready()
	if !res.ModelReady {
		return res
	}

	defer func() {
		if p := recover(); p != nil {
			res = Result{ModelReady: true, Enrolled: res.Enrolled, Err: fmt.Errorf("recognition panic: %v", p)}
			logging.Component("matcher").Errorf("Recognition panicked: %v", p)
		}
	}()

	gallery := m.roster.Employees()
	res.Enrolled = len(gallery)
	faces, err := m.backend.Recognize(frame, gallery)
	if err != nil {
		logging.Component("matcher").Warnf("Recognition failed: %v", err)
		res.Err = err
		return res
	}

	res.Faces = faces
	for i := range faces {
		if faces[i].Accepted {
			res.Match = &res.Faces[i]
			break
		}
	}
	return res
}
