package feed

import (
	"context"
	"crypto"
	"crypto/rsa"
	"crypto/sha512"
	"crypto/x509"
	"encoding/base64"
	"fmt"
	"strings"

	"announced/internal/trust"
)

// AuthKind names the exact reason a run's feed was rejected.
type AuthKind string

const (
	KindFetchFailed         AuthKind = "fetch_failed"
	KindMissingSignature    AuthKind = "missing_signature"
	KindInvalidCRLSignature AuthKind = "invalid_crl_signature"
	KindCertificateRevoked  AuthKind = "certificate_revoked"
	KindUntrustedCert       AuthKind = "untrusted_certificate"
	KindIdentityMismatch    AuthKind = "identity_mismatch"
	KindEmptyBody           AuthKind = "empty_body"
	KindSignatureMismatch   AuthKind = "signature_mismatch"
)

// AuthError is a single rejection verdict. There is no partial trust: any
// AuthError means the whole run's data is untrusted.
type AuthError struct {
	Kind AuthKind
	Err  error
}

func (e *AuthError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("feed rejected (%s): %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("feed rejected (%s)", e.Kind)
}

func (e *AuthError) Unwrap() error { return e.Err }

func authErr(kind AuthKind, err error) *AuthError { return &AuthError{Kind: kind, Err: err} }

// CRLSource provides the revocation list for one verification pass. The
// list is obtained fresh each run and is never cached across runs.
type CRLSource interface {
	CRL(ctx context.Context) (*x509.RevocationList, error)
}

// RemoteCRL fetches the revocation list from a fixed endpoint.
type RemoteCRL struct {
	Fetcher  *Fetcher
	Resource string
}

func (r *RemoteCRL) CRL(ctx context.Context) (*x509.RevocationList, error) {
	b, err := r.Fetcher.Fetch(ctx, r.Resource)
	if err != nil {
		return nil, err
	}
	return trust.ParseCRL(b)
}

// LocalCRL reads the bundled revocation list file each pass.
type LocalCRL struct {
	Path string
}

func (l *LocalCRL) CRL(ctx context.Context) (*x509.RevocationList, error) {
	_ = ctx
	return trust.LoadCRL(l.Path)
}

// Authenticator produces a single verdict per run: the raw feed body is
// authentic and unrevoked, or a specific AuthError.
type Authenticator struct {
	fetcher *Fetcher
	store   *trust.Store
	leaf    *x509.Certificate
	crl     CRLSource

	// expectedCN is the publisher identity the leaf must carry.
	expectedCN string
}

func NewAuthenticator(fetcher *Fetcher, store *trust.Store, leaf *x509.Certificate, crl CRLSource, expectedCN string) *Authenticator {
	return &Authenticator{
		fetcher:    fetcher,
		store:      store,
		leaf:       leaf,
		crl:        crl,
		expectedCN: expectedCN,
	}
}

// Authenticate runs the ordered verification pipeline and returns the raw,
// now-trusted body bytes.
//
// Order matters: the CRL's own authenticity is checked before it is
// consulted (no unauthenticated "nothing revoked" bypass), and revocation
// and identity are checked on the certificate before the payload signature,
// so a compromised-but-correctly-signing publisher is rejected before its
// content is ever trusted.
func (a *Authenticator) Authenticate(ctx context.Context) ([]byte, error) {
	// 1. Detached signature must exist.
	sigRaw, err := a.fetcher.Fetch(ctx, SignatureResource)
	if err != nil {
		return nil, authErr(KindFetchFailed, err)
	}
	sigB64 := strings.TrimSpace(string(sigRaw))
	if sigB64 == "" {
		return nil, authErr(KindMissingSignature, nil)
	}
	sig, err := base64.StdEncoding.DecodeString(sigB64)
	if err != nil {
		return nil, authErr(KindMissingSignature, err)
	}

	// 2-3. Fresh CRL, authenticated against the pinned root before use.
	crl, err := a.crl.CRL(ctx)
	if err != nil {
		if _, ok := err.(*FetchError); ok {
			return nil, authErr(KindFetchFailed, err)
		}
		return nil, authErr(KindInvalidCRLSignature, err)
	}
	if !a.store.ValidateCRLSignature(crl) {
		return nil, authErr(KindInvalidCRLSignature, nil)
	}

	// 4. Publisher certificate must not be revoked.
	if a.store.IsRevoked(crl, a.leaf.SerialNumber) {
		return nil, authErr(KindCertificateRevoked, fmt.Errorf("serial %s", a.leaf.SerialNumber))
	}

	// 5. Publisher certificate must be issued by the pinned root.
	if !a.store.ValidateChain(a.leaf) {
		return nil, authErr(KindUntrustedCert, nil)
	}

	// 6. Publisher certificate must carry the expected identity.
	cn := a.leaf.Subject.CommonName
	if cn == "" {
		return nil, authErr(KindIdentityMismatch, fmt.Errorf("certificate has no CN"))
	}
	if cn != a.expectedCN {
		return nil, authErr(KindIdentityMismatch, fmt.Errorf("certificate issued to %q", cn))
	}

	// 7. Body must exist.
	body, err := a.fetcher.Fetch(ctx, BodyResource)
	if err != nil {
		return nil, authErr(KindFetchFailed, err)
	}
	if len(body) == 0 {
		return nil, authErr(KindEmptyBody, nil)
	}

	// 8. Detached signature must cover the raw body bytes.
	pub, ok := a.leaf.PublicKey.(*rsa.PublicKey)
	if !ok {
		return nil, authErr(KindUntrustedCert, fmt.Errorf("unsupported public key type %T", a.leaf.PublicKey))
	}
	digest := sha512.Sum512(body)
	if err := rsa.VerifyPKCS1v15(pub, crypto.SHA512, digest[:], sig); err != nil {
		return nil, authErr(KindSignatureMismatch, nil)
	}

	return body, nil
}
