package cert

import (
	"crypto/x509"
	"errors"
)

// Store errors.
var (
	ErrCertNotFound = errors.New("cert: certificate not found")
	ErrInvalidCert  = errors.New("cert: invalid certificate")
)

// Store holds a node's security material: its own identity, the trust
// anchors it accepts peers from and an optional revocation list.
// Implementations must be safe for concurrent access.
type Store interface {
	// Identity returns the node's identity, or ErrCertNotFound.
	Identity() (*Identity, error)

	// SetIdentity replaces the node's identity.
	SetIdentity(id *Identity) error

	// TrustedCAs returns every trust anchor.
	TrustedCAs() []*x509.Certificate

	// AddTrustedCA adds a trust anchor. Adding one twice is a no-op.
	AddTrustedCA(c *x509.Certificate) error

	// RemoveTrustedCA removes the anchor with the given subject key ID.
	// Returns ErrCertNotFound if there is none.
	RemoveTrustedCA(ski []byte) error

	// CRL returns the revocation list, or nil.
	CRL() *x509.RevocationList

	// SetCRL replaces the revocation list. Nil clears it.
	SetCRL(crl *x509.RevocationList) error

	// Save persists the store to its backing storage.
	// For in-memory stores, this may be a no-op.
	Save() error

	// Load reads the store from its backing storage.
	// For in-memory stores, this may be a no-op.
	Load() error
}

// TrustPool returns the store's trust anchors as a pool, or nil when there
// are none.
func TrustPool(s Store) *x509.CertPool {
	cas := s.TrustedCAs()
	if len(cas) == 0 {
		return nil
	}
	pool := x509.NewCertPool()
	for _, c := range cas {
		pool.AddCert(c)
	}
	return pool
}
