package cert

import (
	"crypto/x509"
	"encoding/hex"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// File layout under the store directory.
const (
	identityCertFile = "identity.pem"
	identityKeyFile  = "identity.key"
	caDir            = "ca"
	crlFile          = "crl.pem"
)

// FileStore is a file-based implementation of the Store interface.
// Certificates and keys are stored as PEM files.
type FileStore struct {
	*MemoryStore

	// saveMu serializes Save and Load against each other.
	saveMu  sync.Mutex
	baseDir string
}

// NewFileStore creates a new file-based certificate store.
// The baseDir is the root directory for storing certificates.
func NewFileStore(baseDir string) *FileStore {
	return &FileStore{
		MemoryStore: NewMemoryStore(),
		baseDir:     baseDir,
	}
}

// Dir returns the store directory.
func (s *FileStore) Dir() string {
	return s.baseDir
}

// Save persists all material to disk. Trust anchor files no longer in the
// store are removed.
func (s *FileStore) Save() error {
	s.saveMu.Lock()
	defer s.saveMu.Unlock()

	if err := os.MkdirAll(filepath.Join(s.baseDir, caDir), 0755); err != nil {
		return err
	}

	if id, err := s.Identity(); err == nil {
		if err := s.saveIdentity(id); err != nil {
			return err
		}
	}

	keep := make(map[string]bool)
	for _, c := range s.TrustedCAs() {
		name := caFileName(c)
		keep[name] = true
		if err := WriteCertFile(filepath.Join(s.baseDir, caDir, name), c); err != nil {
			return err
		}
	}
	entries, err := os.ReadDir(filepath.Join(s.baseDir, caDir))
	if err != nil {
		return err
	}
	for _, e := range entries {
		if !e.IsDir() && !keep[e.Name()] {
			_ = os.Remove(filepath.Join(s.baseDir, caDir, e.Name()))
		}
	}

	crlPath := filepath.Join(s.baseDir, crlFile)
	if crl := s.CRL(); crl != nil {
		return os.WriteFile(crlPath, EncodeCRLPEM(crl.Raw), 0644)
	}
	if err := os.Remove(crlPath); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

// Load reads all material from disk. A missing directory is an empty store.
func (s *FileStore) Load() error {
	s.saveMu.Lock()
	defer s.saveMu.Unlock()

	if _, err := os.Stat(s.baseDir); os.IsNotExist(err) {
		return nil
	}

	id, err := s.loadIdentity()
	switch {
	case err == nil:
		if err := s.SetIdentity(id); err != nil {
			return err
		}
	case !errors.Is(err, os.ErrNotExist):
		return err
	}

	entries, err := os.ReadDir(filepath.Join(s.baseDir, caDir))
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".pem") {
			continue
		}
		c, err := ReadCertFile(filepath.Join(s.baseDir, caDir, e.Name()))
		if err != nil {
			return err
		}
		if err := s.AddTrustedCA(c); err != nil {
			return err
		}
	}

	crl, err := LoadCRL(filepath.Join(s.baseDir, crlFile))
	switch {
	case err == nil:
		return s.SetCRL(crl)
	case errors.Is(err, os.ErrNotExist):
		return nil
	default:
		return err
	}
}

func (s *FileStore) saveIdentity(id *Identity) error {
	var pemData []byte
	pemData = append(pemData, EncodeCertPEM(id.Certificate)...)
	for _, c := range id.Chain {
		pemData = append(pemData, EncodeCertPEM(c)...)
	}
	if err := os.WriteFile(filepath.Join(s.baseDir, identityCertFile), pemData, 0644); err != nil {
		return err
	}
	return WriteKeyFile(filepath.Join(s.baseDir, identityKeyFile), id.PrivateKey)
}

func (s *FileStore) loadIdentity() (*Identity, error) {
	data, err := os.ReadFile(filepath.Join(s.baseDir, identityCertFile))
	if err != nil {
		return nil, err
	}
	chain, err := DecodeCertsPEM(data)
	if err != nil {
		return nil, err
	}
	key, err := ReadKeyFile(filepath.Join(s.baseDir, identityKeyFile))
	if err != nil {
		return nil, err
	}
	return &Identity{Certificate: chain[0], PrivateKey: key, Chain: chain[1:]}, nil
}

func caFileName(c *x509.Certificate) string {
	id := c.SubjectKeyId
	if len(id) == 0 {
		id = c.SerialNumber.Bytes()
	}
	return hex.EncodeToString(id) + ".pem"
}

// Verify FileStore implements Store.
var _ Store = (*FileStore)(nil)
