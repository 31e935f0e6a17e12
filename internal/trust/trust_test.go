package trust

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"math/big"
	"os"
	"path/filepath"
	"testing"
	"time"
)

type testCA struct {
	cert *x509.Certificate
	key  *rsa.PrivateKey
}

func newTestCA(t *testing.T, cn string) *testCA {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("generate CA key: %v", err)
	}
	tmpl := &x509.Certificate{
		SerialNumber:          big.NewInt(1),
		Subject:               pkix.Name{CommonName: cn},
		NotBefore:             time.Now().Add(-time.Hour),
		NotAfter:              time.Now().Add(24 * time.Hour),
		IsCA:                  true,
		BasicConstraintsValid: true,
		KeyUsage:              x509.KeyUsageCertSign | x509.KeyUsageCRLSign,
	}
	der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, &key.PublicKey, key)
	if err != nil {
		t.Fatalf("create CA cert: %v", err)
	}
	cert, err := x509.ParseCertificate(der)
	if err != nil {
		t.Fatalf("parse CA cert: %v", err)
	}
	return &testCA{cert: cert, key: key}
}

func (ca *testCA) issueLeaf(t *testing.T, cn string, serial int64) (*x509.Certificate, *rsa.PrivateKey) {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("generate leaf key: %v", err)
	}
	tmpl := &x509.Certificate{
		SerialNumber: big.NewInt(serial),
		Subject:      pkix.Name{CommonName: cn},
		NotBefore:    time.Now().Add(-time.Hour),
		NotAfter:     time.Now().Add(24 * time.Hour),
		KeyUsage:     x509.KeyUsageDigitalSignature,
	}
	der, err := x509.CreateCertificate(rand.Reader, tmpl, ca.cert, &key.PublicKey, ca.key)
	if err != nil {
		t.Fatalf("create leaf cert: %v", err)
	}
	cert, err := x509.ParseCertificate(der)
	if err != nil {
		t.Fatalf("parse leaf cert: %v", err)
	}
	return cert, key
}

func (ca *testCA) issueCRL(t *testing.T, revoked ...*big.Int) *x509.RevocationList {
	t.Helper()
	entries := make([]x509.RevocationListEntry, 0, len(revoked))
	for _, sn := range revoked {
		entries = append(entries, x509.RevocationListEntry{
			SerialNumber:   sn,
			RevocationTime: time.Now().Add(-time.Minute),
		})
	}
	tmpl := &x509.RevocationList{
		Number:                    big.NewInt(1),
		ThisUpdate:                time.Now().Add(-time.Minute),
		NextUpdate:                time.Now().Add(24 * time.Hour),
		RevokedCertificateEntries: entries,
	}
	der, err := x509.CreateRevocationList(rand.Reader, tmpl, ca.cert, ca.key)
	if err != nil {
		t.Fatalf("create CRL: %v", err)
	}
	crl, err := x509.ParseRevocationList(der)
	if err != nil {
		t.Fatalf("parse CRL: %v", err)
	}
	return crl
}

func TestValidateChain(t *testing.T) {
	t.Parallel()
	ca := newTestCA(t, "Test Root Authority")
	other := newTestCA(t, "Other Authority")
	leaf, _ := ca.issueLeaf(t, "announced", 42)

	store := NewStore(ca.cert)
	if !store.ValidateChain(leaf) {
		t.Fatal("expected leaf issued by root to validate")
	}

	foreign := NewStore(other.cert)
	if foreign.ValidateChain(leaf) {
		t.Fatal("leaf must not validate against a different anchor")
	}
	if store.ValidateChain(nil) {
		t.Fatal("nil leaf must not validate")
	}
}

func TestValidateCRLSignature(t *testing.T) {
	t.Parallel()
	ca := newTestCA(t, "Test Root Authority")
	other := newTestCA(t, "Other Authority")

	crl := ca.issueCRL(t)
	store := NewStore(ca.cert)
	if !store.ValidateCRLSignature(crl) {
		t.Fatal("expected CRL signed by root to validate")
	}

	forged := other.issueCRL(t)
	if store.ValidateCRLSignature(forged) {
		t.Fatal("CRL signed by a different anchor must not validate")
	}
}

func TestIsRevoked(t *testing.T) {
	t.Parallel()
	ca := newTestCA(t, "Test Root Authority")
	store := NewStore(ca.cert)

	crl := ca.issueCRL(t, big.NewInt(7), big.NewInt(13))

	tests := []struct {
		serial int64
		want   bool
	}{
		{7, true},
		{13, true},
		{42, false},
		{1, false},
	}
	for _, tt := range tests {
		if got := store.IsRevoked(crl, big.NewInt(tt.serial)); got != tt.want {
			t.Fatalf("IsRevoked(%d) = %v, want %v", tt.serial, got, tt.want)
		}
	}

	if store.IsRevoked(nil, big.NewInt(7)) {
		t.Fatal("nil CRL must report not revoked (fails elsewhere first)")
	}
}

func TestLoadMaterialPEM(t *testing.T) {
	t.Parallel()
	ca := newTestCA(t, "Test Root Authority")
	leaf, _ := ca.issueLeaf(t, "announced", 3)

	dir := t.TempDir()
	rootPath := filepath.Join(dir, "root.crt")
	leafPath := filepath.Join(dir, "publisher.crt")
	writePEM(t, rootPath, "CERTIFICATE", ca.cert.Raw)
	writePEM(t, leafPath, "CERTIFICATE", leaf.Raw)

	m, err := LoadMaterial(rootPath, leafPath)
	if err != nil {
		t.Fatalf("LoadMaterial: %v", err)
	}
	if m.Root.Subject.CommonName != "Test Root Authority" {
		t.Fatalf("unexpected root CN %q", m.Root.Subject.CommonName)
	}
	if m.Publisher.Subject.CommonName != "announced" {
		t.Fatalf("unexpected publisher CN %q", m.Publisher.Subject.CommonName)
	}
}

func TestParseCRLAcceptsDERAndPEM(t *testing.T) {
	t.Parallel()
	ca := newTestCA(t, "Test Root Authority")
	crl := ca.issueCRL(t, big.NewInt(9))

	if _, err := ParseCRL(crl.Raw); err != nil {
		t.Fatalf("DER parse: %v", err)
	}
	pemBytes := pem.EncodeToMemory(&pem.Block{Type: "X509 CRL", Bytes: crl.Raw})
	parsed, err := ParseCRL(pemBytes)
	if err != nil {
		t.Fatalf("PEM parse: %v", err)
	}
	if len(parsed.RevokedCertificateEntries) != 1 {
		t.Fatalf("expected 1 revoked entry, got %d", len(parsed.RevokedCertificateEntries))
	}
}

func writePEM(t *testing.T, path, blockType string, der []byte) {
	t.Helper()
	b := pem.EncodeToMemory(&pem.Block{Type: blockType, Bytes: der})
	if err := os.WriteFile(path, b, 0o600); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}
