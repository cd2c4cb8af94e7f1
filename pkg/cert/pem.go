package cert

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/tls"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
	"os"
)

// PEM block types.
const (
	blockCertificate = "CERTIFICATE"
	blockECKey       = "EC PRIVATE KEY"
	blockPKCS8Key    = "PRIVATE KEY"
	blockCRL         = "X509 CRL"
)

// PEM encoding/decoding errors.
var (
	ErrInvalidPEM    = errors.New("cert: invalid PEM data")
	ErrInvalidKey    = errors.New("cert: invalid private key")
	ErrUnsupportedEC = errors.New("cert: unsupported key type")
)

// EncodeCertPEM encodes an X.509 certificate to PEM format.
func EncodeCertPEM(cert *x509.Certificate) []byte {
	return pem.EncodeToMemory(&pem.Block{
		Type:  blockCertificate,
		Bytes: cert.Raw,
	})
}

// DecodeCertPEM decodes the first PEM-encoded certificate in data.
func DecodeCertPEM(data []byte) (*x509.Certificate, error) {
	certs, err := DecodeCertsPEM(data)
	if err != nil {
		return nil, err
	}
	return certs[0], nil
}

// DecodeCertsPEM decodes every certificate block in data, skipping other
// block types. A bundle without certificates is invalid.
func DecodeCertsPEM(data []byte) ([]*x509.Certificate, error) {
	var certs []*x509.Certificate
	for {
		var block *pem.Block
		block, data = pem.Decode(data)
		if block == nil {
			break
		}
		if block.Type != blockCertificate {
			continue
		}
		c, err := x509.ParseCertificate(block.Bytes)
		if err != nil {
			return nil, err
		}
		certs = append(certs, c)
	}
	if len(certs) == 0 {
		return nil, ErrInvalidPEM
	}
	return certs, nil
}

// EncodeKeyPEM encodes an ECDSA private key to PEM format.
func EncodeKeyPEM(key *ecdsa.PrivateKey) ([]byte, error) {
	der, err := x509.MarshalECPrivateKey(key)
	if err != nil {
		return nil, err
	}
	return pem.EncodeToMemory(&pem.Block{
		Type:  blockECKey,
		Bytes: der,
	}), nil
}

// DecodeKeyPEM decodes a PEM-encoded ECDSA private key in SEC 1 or PKCS #8
// form.
func DecodeKeyPEM(data []byte) (*ecdsa.PrivateKey, error) {
	block, _ := pem.Decode(data)
	if block == nil {
		return nil, ErrInvalidPEM
	}
	switch block.Type {
	case blockECKey:
		return x509.ParseECPrivateKey(block.Bytes)
	case blockPKCS8Key:
		key, err := x509.ParsePKCS8PrivateKey(block.Bytes)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidKey, err)
		}
		ec, ok := key.(*ecdsa.PrivateKey)
		if !ok {
			return nil, ErrUnsupportedEC
		}
		return ec, nil
	default:
		return nil, ErrInvalidPEM
	}
}

// DecodeCRL parses a revocation list in PEM or DER form.
func DecodeCRL(data []byte) (*x509.RevocationList, error) {
	if block, _ := pem.Decode(data); block != nil {
		if block.Type != blockCRL {
			return nil, ErrInvalidPEM
		}
		data = block.Bytes
	}
	return x509.ParseRevocationList(data)
}

// EncodeCRLPEM wraps a DER revocation list in PEM.
func EncodeCRLPEM(der []byte) []byte {
	return pem.EncodeToMemory(&pem.Block{Type: blockCRL, Bytes: der})
}

// WriteCertFile writes a certificate to a PEM file.
func WriteCertFile(path string, cert *x509.Certificate) error {
	return os.WriteFile(path, EncodeCertPEM(cert), 0644)
}

// ReadCertFile reads a certificate from a PEM file.
func ReadCertFile(path string) (*x509.Certificate, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return DecodeCertPEM(data)
}

// WriteKeyFile writes a private key to a PEM file with restricted permissions.
func WriteKeyFile(path string, key *ecdsa.PrivateKey) error {
	data, err := EncodeKeyPEM(key)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0600)
}

// ReadKeyFile reads a private key from a PEM file.
func ReadKeyFile(path string) (*ecdsa.PrivateKey, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return DecodeKeyPEM(data)
}

// LoadCertPool reads a PEM bundle of CA certificates.
func LoadCertPool(path string) (*x509.CertPool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	certs, err := DecodeCertsPEM(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	pool := x509.NewCertPool()
	for _, c := range certs {
		pool.AddCert(c)
	}
	return pool, nil
}

// LoadCRL reads a revocation list file.
func LoadCRL(path string) (*x509.RevocationList, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	crl, err := DecodeCRL(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return crl, nil
}

// LoadKeyPair reads a certificate chain and its key. The certificate file
// may hold intermediates after the leaf.
func LoadKeyPair(certPath, keyPath string) (tls.Certificate, error) {
	data, err := os.ReadFile(certPath)
	if err != nil {
		return tls.Certificate{}, err
	}
	chain, err := DecodeCertsPEM(data)
	if err != nil {
		return tls.Certificate{}, fmt.Errorf("%s: %w", certPath, err)
	}
	key, err := ReadKeyFile(keyPath)
	if err != nil {
		return tls.Certificate{}, fmt.Errorf("%s: %w", keyPath, err)
	}
	return tlsCertificate(chain, key), nil
}

func tlsCertificate(chain []*x509.Certificate, key crypto.Signer) tls.Certificate {
	out := tls.Certificate{PrivateKey: key, Leaf: chain[0]}
	for _, c := range chain {
		out.Certificate = append(out.Certificate, c.Raw)
	}
	return out
}
