package cert

import (
	"bytes"
	"crypto/x509"
	"sync"
)

// MemoryStore is an in-memory implementation of the Store interface.
// This is primarily useful for testing and nodes that don't need persistence.
type MemoryStore struct {
	mu       sync.RWMutex
	identity *Identity
	cas      []*x509.Certificate
	crl      *x509.RevocationList
}

// NewMemoryStore creates a new in-memory certificate store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// Identity returns the node identity.
func (s *MemoryStore) Identity() (*Identity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.identity == nil {
		return nil, ErrCertNotFound
	}
	return s.identity, nil
}

// SetIdentity stores the node identity.
func (s *MemoryStore) SetIdentity(id *Identity) error {
	if id == nil || id.Certificate == nil || id.PrivateKey == nil {
		return ErrInvalidCert
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.identity = id
	return nil
}

// TrustedCAs returns a copy of the trust anchors.
func (s *MemoryStore) TrustedCAs() []*x509.Certificate {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]*x509.Certificate(nil), s.cas...)
}

// AddTrustedCA adds a trust anchor.
func (s *MemoryStore) AddTrustedCA(c *x509.Certificate) error {
	if c == nil {
		return ErrInvalidCert
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.cas {
		if bytes.Equal(existing.Raw, c.Raw) {
			return nil
		}
	}
	s.cas = append(s.cas, c)
	return nil
}

// RemoveTrustedCA removes a trust anchor by subject key ID.
func (s *MemoryStore) RemoveTrustedCA(ski []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, c := range s.cas {
		if bytes.Equal(c.SubjectKeyId, ski) {
			s.cas = append(s.cas[:i], s.cas[i+1:]...)
			return nil
		}
	}
	return ErrCertNotFound
}

// CRL returns the revocation list.
func (s *MemoryStore) CRL() *x509.RevocationList {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.crl
}

// SetCRL replaces the revocation list.
func (s *MemoryStore) SetCRL(crl *x509.RevocationList) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.crl = crl
	return nil
}

// Save is a no-op.
func (s *MemoryStore) Save() error { return nil }

// Load is a no-op.
func (s *MemoryStore) Load() error { return nil }

var _ Store = (*MemoryStore)(nil)
