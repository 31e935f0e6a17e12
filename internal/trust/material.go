package trust

import (
	"crypto/x509"
	"encoding/pem"
	"fmt"
	"os"
)

// Material is the bundled trust input read from local files at run time.
// None of it is ever fetched.
type Material struct {
	Root      *x509.Certificate
	Publisher *x509.Certificate
}

// LoadMaterial reads the pinned root and the publisher leaf certificate.
func LoadMaterial(rootPath, publisherPath string) (*Material, error) {
	root, err := LoadCertificate(rootPath)
	if err != nil {
		return nil, fmt.Errorf("root certificate: %w", err)
	}
	leaf, err := LoadCertificate(publisherPath)
	if err != nil {
		return nil, fmt.Errorf("publisher certificate: %w", err)
	}
	return &Material{Root: root, Publisher: leaf}, nil
}

// LoadCertificate reads one certificate from a PEM (or raw DER) file.
func LoadCertificate(path string) (*x509.Certificate, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ParseCertificate(b)
}

// ParseCertificate accepts PEM or DER bytes.
func ParseCertificate(data []byte) (*x509.Certificate, error) {
	if block, _ := pem.Decode(data); block != nil {
		data = block.Bytes
	}
	return x509.ParseCertificate(data)
}

// ParseCRL accepts PEM or DER bytes.
func ParseCRL(data []byte) (*x509.RevocationList, error) {
	if block, _ := pem.Decode(data); block != nil {
		data = block.Bytes
	}
	return x509.ParseRevocationList(data)
}

// LoadCRL reads a revocation list from a local file.
func LoadCRL(path string) (*x509.RevocationList, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ParseCRL(b)
}
