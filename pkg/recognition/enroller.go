package recognition

import (
	"errors"
	"fmt"
	"os"

	"github.com/MrCodeEU/facekiosk/pkg/logging"
	"github.com/MrCodeEU/facekiosk/pkg/roster"
	"github.com/MrCodeEU/facekiosk/pkg/storage"
)

// Enroller computes face signatures from enrollment images and attaches them
// to the roster. Signatures are cached so unchanged images are not
// re-processed on every start.
type Enroller struct {
	rec    *DlibRecognizer
	store  *storage.SignatureStore
	roster *roster.Roster
}

// NewEnroller creates an Enroller. store may be nil to disable caching.
func NewEnroller(rec *DlibRecognizer, store *storage.SignatureStore, r *roster.Roster) *Enroller {
	return &Enroller{rec: rec, store: store, roster: r}
}

// Report summarizes an enrollment pass.
type Report struct {
	Loaded  []string
	Missing []string
	Failed  map[string]error
}

// Signature returns the signature for one employee, using the cache when the
// image has not changed.
func (e *Enroller) Signature(emp roster.Employee) ([]float32, error) {
	digest, err := storage.DigestFile(emp.ImagePath)
	if err != nil {
		return nil, err
	}

	if e.store != nil {
		if sig, err := e.store.Fresh(emp.ID, digest); err == nil {
			logging.Debugf("Using cached signature for %s", emp.ID)
			return sig.Values, nil
		} else if !errors.Is(err, storage.ErrSignatureNotFound) && !errors.Is(err, storage.ErrStale) {
			logging.Warnf("Ignoring unreadable signature cache for %s: %v", emp.ID, err)
		}
	}

	data, err := os.ReadFile(emp.ImagePath)
	if err != nil {
		return nil, err
	}
	faces, err := e.rec.DetectFaces(data)
	if err != nil {
		return nil, err
	}
	values := make([]float32, len(faces[0].Descriptor))
	copy(values, faces[0].Descriptor[:])

	if e.store != nil {
		if err := e.store.Save(storage.Signature{
			EmployeeID:  emp.ID,
			Name:        emp.Name,
			Values:      values,
			ImageDigest: digest,
		}); err != nil {
			logging.Warnf("Failed to cache signature for %s: %v", emp.ID, err)
		}
	}
	return values, nil
}

// Refresh computes signatures for every roster entry that has an image.
// progress, when set, is called once per employee.
func (e *Enroller) Refresh(progress func(roster.Employee)) Report {
	report := Report{Failed: map[string]error{}}
	log := logging.Component("enroll")

	for _, emp := range e.roster.Employees() {
		if progress != nil {
			progress(emp)
		}
		if _, err := os.Stat(emp.ImagePath); err != nil {
			report.Missing = append(report.Missing, emp.ID)
			continue
		}

		values, err := e.Signature(emp)
		if err != nil {
			log.Warnf("No signature for %s (%s): %v", emp.Name, emp.ID, err)
			report.Failed[emp.ID] = err
			continue
		}
		if err := e.roster.SetSignature(emp.ID, values); err != nil {
			report.Failed[emp.ID] = err
			continue
		}
		report.Loaded = append(report.Loaded, emp.ID)
	}

	log.Infof("Loaded %d face signatures", len(report.Loaded))
	return report
}

// Enroll computes and attaches the signature for a single employee.
func (e *Enroller) Enroll(id string) error {
	emp, ok := e.roster.Lookup(id)
	if !ok {
		return fmt.Errorf("%w: %s", roster.ErrEmployeeNotFound, id)
	}
	values, err := e.Signature(emp)
	if err != nil {
		return fmt.Errorf("failed to compute signature for %s: %w", id, err)
	}
	return e.roster.SetSignature(id, values)
}
