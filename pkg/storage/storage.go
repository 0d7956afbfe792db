// Package storage caches computed face signatures on disk.
// Signatures are encrypted at rest using NaCl secretbox with a key tied to the
// machine, so a copied data directory is useless elsewhere.
package storage

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/MrCodeEU/facekiosk/pkg/logging"
	"golang.org/x/crypto/nacl/secretbox"
)

const (
	// NonceSize is the size of the nonce used for encryption
	NonceSize = 24
	// KeySize is the size of the encryption key
	KeySize = 32
)

// Signature is the cached descriptor of one employee's enrollment image.
type Signature struct {
	EmployeeID  string    `json:"employee_id"`
	Name        string    `json:"name"`
	Values      []float32 `json:"values"`
	ImageDigest string    `json:"image_digest"`
	ComputedAt  time.Time `json:"computed_at"`
}

// ErrSignatureNotFound is returned when no signature is cached for an employee.
var ErrSignatureNotFound = errors.New("signature not found")

// ErrStale is returned when the cached signature was computed from a
// different image than the one currently on disk.
var ErrStale = errors.New("signature is stale")

// ErrInvalidID is returned for identifiers that cannot be used as file names.
var ErrInvalidID = errors.New("invalid employee id")

// ErrEncryption is returned when encryption/decryption fails.
var ErrEncryption = errors.New("encryption error")

// SignatureStore keeps one file per employee id.
type SignatureStore struct {
	dir               string
	encryptionEnabled bool
	encryptionKey     [KeySize]byte
}

// NewSignatureStore creates the store rooted at dir.
func NewSignatureStore(dir string, encryptionEnabled bool) (*SignatureStore, error) {
	s := &SignatureStore{
		dir:               dir,
		encryptionEnabled: encryptionEnabled,
	}

	if encryptionEnabled {
		s.encryptionKey = deriveKey()
	}

	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create signatures directory: %w", err)
	}

	return s, nil
}

// deriveKey derives an encryption key from machine-specific information.
func deriveKey() [KeySize]byte {
	var identity strings.Builder

	if machineID, err := os.ReadFile("/etc/machine-id"); err == nil {
		identity.Write(machineID)
	}
	if hostname, err := os.Hostname(); err == nil {
		identity.WriteString(hostname)
	}
	identity.WriteString(fmt.Sprintf("%d", os.Getuid()))
	identity.WriteString("facekiosk-signatures-v1")

	return sha256.Sum256([]byte(identity.String()))
}

func validID(id string) bool {
	if id == "" || id == "." || id == ".." {
		return false
	}
	return !strings.ContainsAny(id, `/\`)
}

func (s *SignatureStore) path(id string) string {
	ext := ".json"
	if s.encryptionEnabled {
		ext = ".enc"
	}
	return filepath.Join(s.dir, id+ext)
}

// Save writes the signature, replacing any previous one for the same id.
func (s *SignatureStore) Save(sig Signature) error {
	if !validID(sig.EmployeeID) {
		return fmt.Errorf("%w: %q", ErrInvalidID, sig.EmployeeID)
	}
	if sig.ComputedAt.IsZero() {
		sig.ComputedAt = time.Now()
	}

	data, err := json.MarshalIndent(sig, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal signature: %w", err)
	}

	if s.encryptionEnabled {
		data, err = s.encrypt(data)
		if err != nil {
			return fmt.Errorf("failed to encrypt signature: %w", err)
		}
	}

	if err := os.WriteFile(s.path(sig.EmployeeID), data, 0600); err != nil {
		return fmt.Errorf("failed to write signature: %w", err)
	}

	logging.Debugf("Saved signature for employee %s", sig.EmployeeID)
	return nil
}

// Load reads the cached signature for id.
func (s *SignatureStore) Load(id string) (*Signature, error) {
	if !validID(id) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidID, id)
	}

	data, err := os.ReadFile(s.path(id))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrSignatureNotFound
		}
		return nil, fmt.Errorf("failed to read signature: %w", err)
	}

	if s.encryptionEnabled {
		data, err = s.decrypt(data)
		if err != nil {
			return nil, fmt.Errorf("failed to decrypt signature: %w", err)
		}
	}

	var sig Signature
	if err := json.Unmarshal(data, &sig); err != nil {
		return nil, fmt.Errorf("failed to unmarshal signature: %w", err)
	}
	return &sig, nil
}

// Fresh loads the signature for id and checks it was computed from an image
// with the given digest.
func (s *SignatureStore) Fresh(id, digest string) (*Signature, error) {
	sig, err := s.Load(id)
	if err != nil {
		return nil, err
	}
	if sig.ImageDigest != digest {
		return sig, ErrStale
	}
	return sig, nil
}

// Delete removes the cached signature for id.
func (s *SignatureStore) Delete(id string) error {
	if !validID(id) {
		return fmt.Errorf("%w: %q", ErrInvalidID, id)
	}
	if err := os.Remove(s.path(id)); err != nil {
		if os.IsNotExist(err) {
			return ErrSignatureNotFound
		}
		return fmt.Errorf("failed to delete signature: %w", err)
	}
	return nil
}

// IDs returns the employee ids that have a cached signature, sorted.
func (s *SignatureStore) IDs() ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return []string{}, nil
		}
		return nil, fmt.Errorf("failed to list signatures: %w", err)
	}

	ext := filepath.Ext(s.path("x"))
	ids := []string{}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if name := entry.Name(); strings.HasSuffix(name, ext) {
			ids = append(ids, strings.TrimSuffix(name, ext))
		}
	}
	sort.Strings(ids)
	return ids, nil
}

// DigestFile returns the hex SHA-256 of the file at path.
func DigestFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// encrypt encrypts data using NaCl secretbox.
func (s *SignatureStore) encrypt(plaintext []byte) ([]byte, error) {
	var nonce [NonceSize]byte
	if _, err := io.ReadFull(rand.Reader, nonce[:]); err != nil {
		return nil, err
	}
	return secretbox.Seal(nonce[:], plaintext, &nonce, &s.encryptionKey), nil
}

// decrypt decrypts data using NaCl secretbox.
func (s *SignatureStore) decrypt(ciphertext []byte) ([]byte, error) {
	if len(ciphertext) < NonceSize {
		return nil, ErrEncryption
	}

	var nonce [NonceSize]byte
	copy(nonce[:], ciphertext[:NonceSize])

	plaintext, ok := secretbox.Open(nil, ciphertext[NonceSize:], &nonce, &s.encryptionKey)
	if !ok {
		return nil, ErrEncryption
	}
	return plaintext, nil
}
