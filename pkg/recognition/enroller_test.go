package recognition

import (
	"errors"
	"image"
	"os"
	"testing"

	"github.com/Kagami/go-face"
	"github.com/MrCodeEU/facekiosk/pkg/roster"
	"github.com/MrCodeEU/facekiosk/pkg/storage"
)

func enrollFixture(t *testing.T) (*roster.Roster, *storage.SignatureStore) {
	t.Helper()
	dir := t.TempDir()
	r := roster.New(roster.Static{Employees: roster.DefaultEmployees()}, dir)
	if err := r.Load(); err != nil {
		t.Fatal(err)
	}
	// Only 张三 and 李四 have images.
	for _, name := range []string{"张三", "李四"} {
		if err := os.WriteFile(r.ImagePath(name), []byte("jpeg of "+name), 0644); err != nil {
			t.Fatal(err)
		}
	}
	store, err := storage.NewSignatureStore(t.TempDir(), true)
	if err != nil {
		t.Fatal(err)
	}
	return r, store
}

func TestEnroller_RefreshAttachesSignatures(t *testing.T) {
	r, store := enrollFixture(t)
	calls := 0
	rec := loadedRecognizer(t, &MockFaceEngine{
		RecognizeFunc: func(data []byte) ([]face.Face, error) {
			calls++
			if string(data) == "jpeg of 李四" {
				return nil, nil
			}
			return []face.Face{{Rectangle: image.Rect(0, 0, 10, 10), Descriptor: descriptor(0.5)}}, nil
		},
	})

	seen := 0
	report := NewEnroller(rec, store, r).Refresh(func(roster.Employee) { seen++ })

	if seen != 3 {
		t.Errorf("expected progress for 3 employees, got %d", seen)
	}
	if len(report.Loaded) != 1 || report.Loaded[0] != "001" {
		t.Errorf("expected 001 loaded, got %v", report.Loaded)
	}
	if !errors.Is(report.Failed["002"], ErrNoFaceDetected) {
		t.Errorf("expected 002 to fail with no face, got %v", report.Failed["002"])
	}
	if len(report.Missing) != 1 || report.Missing[0] != "003" {
		t.Errorf("expected 003 missing, got %v", report.Missing)
	}

	e, _ := r.Lookup("001")
	if !e.HasSignature() || e.Signature[0] != 0.5 {
		t.Errorf("signature not attached: %v", e.Signature)
	}
	if calls != 2 {
		t.Errorf("expected 2 engine calls, got %d", calls)
	}
}

func TestEnroller_UsesCacheForUnchangedImage(t *testing.T) {
	r, store := enrollFixture(t)
	calls := 0
	rec := loadedRecognizer(t, &MockFaceEngine{
		RecognizeFunc: func(data []byte) ([]face.Face, error) {
			calls++
			return []face.Face{{Descriptor: descriptor(0.25)}}, nil
		},
	})
	enroller := NewEnroller(rec, store, r)

	if err := enroller.Enroll("001"); err != nil {
		t.Fatalf("first Enroll failed: %v", err)
	}
	if err := enroller.Enroll("001"); err != nil {
		t.Fatalf("second Enroll failed: %v", err)
	}
	if calls != 1 {
		t.Errorf("expected cached signature on second enroll, engine called %d times", calls)
	}

	// Replacing the image invalidates the cache.
	e, _ := r.Lookup("001")
	if err := os.WriteFile(e.ImagePath, []byte("new photo"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := enroller.Enroll("001"); err != nil {
		t.Fatalf("third Enroll failed: %v", err)
	}
	if calls != 2 {
		t.Errorf("expected recompute after image change, engine called %d times", calls)
	}
}

func TestEnroller_EnrollUnknown(t *testing.T) {
	r, store := enrollFixture(t)
	rec := loadedRecognizer(t, &MockFaceEngine{})
	err := NewEnroller(rec, store, r).Enroll("999")
	if !errors.Is(err, roster.ErrEmployeeNotFound) {
		t.Errorf("expected ErrEmployeeNotFound, got %v", err)
	}
}

func TestEnroller_WithoutStore(t *testing.T) {
	r, _ := enrollFixture(t)
	rec := loadedRecognizer(t, &MockFaceEngine{
		RecognizeFunc: func(data []byte) ([]face.Face, error) {
			return []face.Face{{Descriptor: descriptor(1)}}, nil
		},
	})
	if err := NewEnroller(rec, nil, r).Enroll("002"); err != nil {
		t.Fatalf("Enroll without cache failed: %v", err)
	}
}
