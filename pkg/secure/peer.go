package secure

import (
	"crypto/x509"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// PeerIDPrefix marks the device UUID inside a certificate subject,
// e.g. "CN=uuid:2c5b7f1e-0d3a-4c4e-9f1b-6a2d3e4f5a6b".
const PeerIDPrefix = "uuid:"

// ErrNoPeerID indicates a certificate subject without a device UUID.
var ErrNoPeerID = errors.New("secure: no peer UUID in certificate subject")

// PeerID extracts the device UUID from the subject of the leaf certificate.
// The common name is searched first, then the full subject string.
func PeerID(chain []*x509.Certificate) (uuid.UUID, error) {
	if len(chain) == 0 || chain[0] == nil {
		return uuid.Nil, ErrNoPeerCertificate
	}
	leaf := chain[0]

	for _, subject := range []string{leaf.Subject.CommonName, leaf.Subject.String()} {
		idx := strings.Index(subject, PeerIDPrefix)
		if idx < 0 {
			continue
		}
		rest := subject[idx+len(PeerIDPrefix):]
		if len(rest) < 36 {
			return uuid.Nil, fmt.Errorf("%w: truncated", ErrNoPeerID)
		}
		id, err := uuid.Parse(rest[:36])
		if err != nil {
			return uuid.Nil, fmt.Errorf("%w: %v", ErrNoPeerID, err)
		}
		return id, nil
	}
	return uuid.Nil, ErrNoPeerID
}
