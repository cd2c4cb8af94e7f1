package cert

import (
	"crypto/x509"
	"errors"
	"fmt"
	"time"

	"github.com/iotivity/ca-go/pkg/secure"
)

// Verification errors.
var (
	ErrCertExpired     = errors.New("cert: certificate has expired")
	ErrCertNotYetValid = errors.New("cert: certificate is not yet valid")
	ErrInvalidChain    = errors.New("cert: invalid certificate chain")
	ErrRevoked         = errors.New("cert: certificate revoked")
)

// Verify checks the validity period of c, that it chains to one of roots
// through intermediates, and that crl (optional) does not list it.
func Verify(c *x509.Certificate, roots []*x509.Certificate, intermediates []*x509.Certificate, crl *x509.RevocationList) error {
	if c == nil {
		return ErrInvalidCert
	}
	if len(roots) == 0 {
		return fmt.Errorf("%w: no trust anchors", ErrInvalidChain)
	}

	now := time.Now()
	if now.Before(c.NotBefore) {
		return ErrCertNotYetValid
	}
	if now.After(c.NotAfter) {
		return ErrCertExpired
	}

	opts := x509.VerifyOptions{
		Roots:         x509.NewCertPool(),
		Intermediates: x509.NewCertPool(),
		CurrentTime:   now,
		KeyUsages:     []x509.ExtKeyUsage{x509.ExtKeyUsageAny},
	}
	for _, r := range roots {
		opts.Roots.AddCert(r)
	}
	for _, i := range intermediates {
		opts.Intermediates.AddCert(i)
	}
	if _, err := c.Verify(opts); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidChain, err)
	}

	if IsRevoked(c, crl) {
		return fmt.Errorf("%w: serial %s", ErrRevoked, c.SerialNumber)
	}
	return nil
}

// IsRevoked reports whether crl lists the serial of c. A nil list revokes
// nothing.
func IsRevoked(c *x509.Certificate, crl *x509.RevocationList) bool {
	if c == nil || crl == nil {
		return false
	}
	for _, entry := range crl.RevokedCertificateEntries {
		if entry.SerialNumber != nil && entry.SerialNumber.Cmp(c.SerialNumber) == 0 {
			return true
		}
	}
	return false
}

// Info is a human-readable summary of a certificate.
type Info struct {
	DeviceID   string
	CommonName string
	Issuer     string
	Serial     string
	NotBefore  time.Time
	NotAfter   time.Time
	IsCA       bool
	SKI        []byte
	AKI        []byte
}

// GetInfo summarises c. DeviceID is empty when the subject carries no UUID.
func GetInfo(c *x509.Certificate) *Info {
	if c == nil {
		return nil
	}
	info := &Info{
		CommonName: c.Subject.CommonName,
		Issuer:     c.Issuer.CommonName,
		Serial:     c.SerialNumber.Text(16),
		NotBefore:  c.NotBefore,
		NotAfter:   c.NotAfter,
		IsCA:       c.IsCA,
		SKI:        c.SubjectKeyId,
		AKI:        c.AuthorityKeyId,
	}
	if id, err := secure.PeerID([]*x509.Certificate{c}); err == nil {
		info.DeviceID = id.String()
	}
	return info
}
