// Package trust holds the pinned root authority and the certificate/CRL
// verification primitives built on it.
//
// There is exactly one anchor: the same root validates both the fetched
// revocation list and the bundled publisher certificate. All checks report
// a plain bool; any cryptographic mismatch is "untrusted", not an error to
// be inspected.
package trust

import (
	"crypto/x509"
	"math/big"
)

// Store wraps the pinned root anchor.
//
// The anchor is loaded once per process from bundled material and is never
// replaced by anything obtained remotely.
type Store struct {
	root *x509.Certificate
}

func NewStore(root *x509.Certificate) *Store {
	return &Store{root: root}
}

// Root returns the pinned anchor certificate.
func (s *Store) Root() *x509.Certificate { return s.root }

// ValidateChain reports whether leaf was issued directly by the root anchor.
// There is no intermediate chain in this trust model.
func (s *Store) ValidateChain(leaf *x509.Certificate) bool {
	if s == nil || s.root == nil || leaf == nil {
		return false
	}
	return leaf.CheckSignatureFrom(s.root) == nil
}

// ValidateCRLSignature reports whether the revocation list itself was signed
// by the root anchor. An unsigned or foreign CRL must never be consulted:
// accepting it would let an attacker present an empty "nothing is revoked"
// list.
func (s *Store) ValidateCRLSignature(crl *x509.RevocationList) bool {
	if s == nil || s.root == nil || crl == nil {
		return false
	}
	return crl.CheckSignatureFrom(s.root) == nil
}

// IsRevoked reports whether serial appears in the list. Absence means not
// revoked.
func (s *Store) IsRevoked(crl *x509.RevocationList, serial *big.Int) bool {
	if crl == nil || serial == nil {
		return false
	}
	for _, entry := range crl.RevokedCertificateEntries {
		if entry.SerialNumber != nil && entry.SerialNumber.Cmp(serial) == 0 {
			return true
		}
	}
	return false
}
