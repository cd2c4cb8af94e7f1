package cert

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/sha1"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"fmt"
	"math/big"
	"time"

	"github.com/google/uuid"

	"github.com/iotivity/ca-go/pkg/secure"
)

// Certificate validity periods.
const (
	// CAValidity is the validity of a generated trust anchor.
	CAValidity = 20 * 365 * 24 * time.Hour

	// IdentityValidity is the validity of a device identity certificate.
	IdentityValidity = 365 * 24 * time.Hour

	// RenewalWindow is how long before expiry an identity should be renewed.
	RenewalWindow = 30 * 24 * time.Hour
)

// Identity is a certificate with its private key and any intermediates
// between it and the trust anchor.
type Identity struct {
	Certificate *x509.Certificate
	PrivateKey  *ecdsa.PrivateKey
	Chain       []*x509.Certificate
}

// TLSCertificate returns the identity in the form crypto/tls and pion/dtls
// expect.
func (id *Identity) TLSCertificate() tls.Certificate {
	chain := append([]*x509.Certificate{id.Certificate}, id.Chain...)
	return tlsCertificate(chain, id.PrivateKey)
}

// DeviceID returns the UUID embedded in the subject.
func (id *Identity) DeviceID() (uuid.UUID, error) {
	return secure.PeerID([]*x509.Certificate{id.Certificate})
}

// ExpiresAt returns when the certificate expires.
func (id *Identity) ExpiresAt() time.Time {
	return id.Certificate.NotAfter
}

// NeedsRenewal reports whether the certificate is inside the renewal window.
func (id *Identity) NeedsRenewal() bool {
	return time.Until(id.Certificate.NotAfter) < RenewalWindow
}

// IsExpired reports whether the certificate has expired.
func (id *Identity) IsExpired() bool {
	return time.Now().After(id.Certificate.NotAfter)
}

// DeviceCommonName is the subject common name carrying a device UUID.
func DeviceCommonName(deviceID uuid.UUID) string {
	return secure.PeerIDPrefix + deviceID.String()
}

// GenerateKey creates a P-256 key.
func GenerateKey() (*ecdsa.PrivateKey, error) {
	return ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
}

// NewCA creates a self-signed trust anchor.
func NewCA(name string) (*Identity, error) {
	key, err := GenerateKey()
	if err != nil {
		return nil, err
	}
	template, err := baseTemplate(pkix.Name{CommonName: name}, CAValidity, &key.PublicKey)
	if err != nil {
		return nil, err
	}
	template.IsCA = true
	template.KeyUsage = x509.KeyUsageCertSign | x509.KeyUsageCRLSign | x509.KeyUsageDigitalSignature

	return sign(template, template, &key.PublicKey, key, key)
}

// NewSelfSigned creates a self-signed identity for deviceID.
func NewSelfSigned(deviceID uuid.UUID) (*Identity, error) {
	key, err := GenerateKey()
	if err != nil {
		return nil, err
	}
	template, err := deviceTemplate(deviceID, &key.PublicKey)
	if err != nil {
		return nil, err
	}
	return sign(template, template, &key.PublicKey, key, key)
}

// Issue creates an identity for deviceID signed by ca.
func Issue(ca *Identity, deviceID uuid.UUID) (*Identity, error) {
	if ca == nil || !ca.Certificate.IsCA {
		return nil, fmt.Errorf("%w: issuer is not a CA", ErrInvalidCert)
	}
	key, err := GenerateKey()
	if err != nil {
		return nil, err
	}
	template, err := deviceTemplate(deviceID, &key.PublicKey)
	if err != nil {
		return nil, err
	}
	template.AuthorityKeyId = ca.Certificate.SubjectKeyId

	id, err := sign(template, ca.Certificate, &key.PublicKey, ca.PrivateKey, key)
	if err != nil {
		return nil, err
	}
	id.Chain = append(id.Chain, ca.Chain...)
	return id, nil
}

// NewCRL creates a revocation list signed by ca listing the given serials.
// The result is DER encoded.
func NewCRL(ca *Identity, number int64, revoked ...*big.Int) ([]byte, error) {
	now := time.Now()
	entries := make([]x509.RevocationListEntry, 0, len(revoked))
	for _, serial := range revoked {
		entries = append(entries, x509.RevocationListEntry{SerialNumber: serial, RevocationTime: now})
	}
	return x509.CreateRevocationList(rand.Reader, &x509.RevocationList{
		Number:                    big.NewInt(number),
		ThisUpdate:                now,
		NextUpdate:                now.Add(7 * 24 * time.Hour),
		RevokedCertificateEntries: entries,
	}, ca.Certificate, ca.PrivateKey)
}

func deviceTemplate(deviceID uuid.UUID, pub *ecdsa.PublicKey) (*x509.Certificate, error) {
	template, err := baseTemplate(pkix.Name{CommonName: DeviceCommonName(deviceID)}, IdentityValidity, pub)
	if err != nil {
		return nil, err
	}
	template.KeyUsage = x509.KeyUsageDigitalSignature
	template.ExtKeyUsage = []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth, x509.ExtKeyUsageClientAuth}
	return template, nil
}

func baseTemplate(subject pkix.Name, validity time.Duration, pub *ecdsa.PublicKey) (*x509.Certificate, error) {
	serial, err := rand.Int(rand.Reader, new(big.Int).Lsh(big.NewInt(1), 127))
	if err != nil {
		return nil, err
	}
	ski, err := subjectKeyID(pub)
	if err != nil {
		return nil, err
	}
	now := time.Now()
	return &x509.Certificate{
		SerialNumber:          serial,
		Subject:               subject,
		NotBefore:             now.Add(-time.Minute),
		NotAfter:              now.Add(validity),
		SubjectKeyId:          ski,
		BasicConstraintsValid: true,
	}, nil
}

func sign(template, parent *x509.Certificate, pub *ecdsa.PublicKey, signer, key *ecdsa.PrivateKey) (*Identity, error) {
	der, err := x509.CreateCertificate(rand.Reader, template, parent, pub, signer)
	if err != nil {
		return nil, err
	}
	c, err := x509.ParseCertificate(der)
	if err != nil {
		return nil, err
	}
	return &Identity{Certificate: c, PrivateKey: key}, nil
}

// subjectKeyID is the SHA-1 of the encoded public key.
func subjectKeyID(pub *ecdsa.PublicKey) ([]byte, error) {
	der, err := x509.MarshalPKIXPublicKey(pub)
	if err != nil {
		return nil, err
	}
	sum := sha1.Sum(der)
	return sum[:], nil
}
